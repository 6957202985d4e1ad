package event

import (
	"context"
	"time"
)

type LoanStatusChangedEvent struct {
	LoanID    int64     `json:"loanId"`
	ClientID  int64     `json:"clientId"`
	OldStatus string    `json:"oldStatus"`
	NewStatus string    `json:"newStatus"`
	TotalOwed string    `json:"totalOwed"`
	Timestamp time.Time `json:"timestamp"`
}

type PaymentRecordedEvent struct {
	LoanID      int64             `json:"loanId"`
	Amount      string            `json:"amount"`
	ReceivedAt  time.Time         `json:"receivedAt"`
	Breakdown   []AllocationSlice `json:"breakdown"`
	Overpayment string            `json:"overpayment,omitempty"`
	Timestamp   time.Time         `json:"timestamp"`
}

// AllocationSlice mirrors one breakdown entry of a recorded payment.
type AllocationSlice struct {
	Target   string `json:"target"`
	ChargeID *int64 `json:"chargeId,omitempty"`
	Amount   string `json:"amount"`
}

type ClientCreatedEvent struct {
	ClientID  int64     `json:"clientId"`
	Name      string    `json:"name"`
	GroupName string    `json:"groupName,omitempty"`
	Timestamp time.Time `json:"timestamp"`
}

type EventPublisher interface {
	PublishLoanStatusChanged(ctx context.Context, event LoanStatusChangedEvent) error
	PublishPaymentRecorded(ctx context.Context, event PaymentRecordedEvent) error
	PublishClientCreated(ctx context.Context, event ClientCreatedEvent) error
}

// NoopPublisher satisfies EventPublisher when messaging is disabled.
type NoopPublisher struct{}

func (NoopPublisher) PublishLoanStatusChanged(context.Context, LoanStatusChangedEvent) error {
	return nil
}

func (NoopPublisher) PublishPaymentRecorded(context.Context, PaymentRecordedEvent) error {
	return nil
}

func (NoopPublisher) PublishClientCreated(context.Context, ClientCreatedEvent) error {
	return nil
}
