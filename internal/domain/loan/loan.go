package loan

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lending-engine/internal/pkg/apperrors"
)

// DefaultInterestRate is the lender-wide flat rate applied when loan
// creation does not supply one.
var DefaultInterestRate = decimal.New(40, -2)

type LoanStatus string

const (
	StatusActive  LoanStatus = "ACTIVE"
	StatusPartial LoanStatus = "PARTIAL"
	StatusOverdue LoanStatus = "OVERDUE"
	StatusPaid    LoanStatus = "PAID"
)

// Allocation targets recorded in a payment breakdown.
const (
	TargetInterest  = "interest"
	TargetPrincipal = "principal"
)

// InterestCharge is one accrual period's interest. Amount never changes
// after creation; partial payments accumulate in AmountPaid and Paid flips
// only when the charge is fully covered.
type InterestCharge struct {
	ID          int64
	LoanID      int64
	PeriodStart time.Time
	PeriodEnd   time.Time
	Amount      decimal.Decimal
	AmountPaid  decimal.Decimal
	Paid        bool
	CreatedAt   time.Time
}

// Outstanding is the portion of the charge not yet covered by payments.
func (c *InterestCharge) Outstanding() decimal.Decimal {
	return c.Amount.Sub(c.AmountPaid)
}

// AllocationEntry records where one slice of a payment went. ChargeID is
// set for interest entries and nil for the principal entry.
type AllocationEntry struct {
	Target   string          `json:"target"`
	ChargeID *int64          `json:"chargeId,omitempty"`
	Amount   decimal.Decimal `json:"amount"`
}

type Payment struct {
	ID         int64
	LoanID     int64
	Amount     decimal.Decimal
	ReceivedAt time.Time
	Breakdown  []AllocationEntry
	CreatedAt  time.Time
}

type Loan struct {
	ID                int64
	ClientID          int64
	OriginalPrincipal decimal.Decimal
	CurrentPrincipal  decimal.Decimal
	InterestRate      decimal.Decimal
	StartDate         time.Time
	DueDate           time.Time
	Status            LoanStatus
	Charges           []InterestCharge
	Payments          []Payment
	CreatedAt         time.Time
	UpdatedAt         time.Time
}

// NewLoan builds a loan with its initial interest charge covering the first
// accrual period. A zero rate selects DefaultInterestRate.
func NewLoan(clientID int64, principal, rate decimal.Decimal, startDate time.Time) (*Loan, error) {
	if principal.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: principal must be greater than zero", apperrors.ErrInvalidAmount)
	}
	if rate.IsZero() {
		rate = DefaultInterestRate
	}
	if startDate.IsZero() {
		startDate = time.Now().UTC().Truncate(24 * time.Hour)
	}

	initialInterest, err := ComputeInterest(principal, rate)
	if err != nil {
		return nil, err
	}

	dueDate := startDate.AddDate(0, 1, 0)
	l := &Loan{
		ClientID:          clientID,
		OriginalPrincipal: principal,
		CurrentPrincipal:  principal,
		InterestRate:      rate,
		StartDate:         startDate,
		DueDate:           dueDate,
		Status:            StatusActive,
		Charges: []InterestCharge{{
			PeriodStart: startDate,
			PeriodEnd:   dueDate,
			Amount:      initialInterest,
			AmountPaid:  decimal.Zero,
		}},
	}

	return l, nil
}

// UnpaidCharges returns pointers to the loan's unpaid charges in accrual
// order. Charges are appended in period order, so no re-sort is needed.
func (l *Loan) UnpaidCharges() []*InterestCharge {
	unpaid := make([]*InterestCharge, 0, len(l.Charges))
	for i := range l.Charges {
		if !l.Charges[i].Paid {
			unpaid = append(unpaid, &l.Charges[i])
		}
	}
	return unpaid
}

// UnpaidInterest sums the outstanding portion of all unpaid charges.
func (l *Loan) UnpaidInterest() decimal.Decimal {
	total := decimal.Zero
	for i := range l.Charges {
		if !l.Charges[i].Paid {
			total = total.Add(l.Charges[i].Outstanding())
		}
	}
	return total
}

// TotalOwed is the current principal plus all unpaid interest.
func (l *Loan) TotalOwed() decimal.Decimal {
	return l.CurrentPrincipal.Add(l.UnpaidInterest())
}

// ClassifyStatus derives a loan's status from current facts. It is a pure
// function recomputed on every read, never a stored transition log.
// Decision order, first match wins: fully settled loans are Paid regardless
// of dates; anything owed past the due date is Overdue; a loan with payment
// history is Partial; everything else is Active.
func ClassifyStatus(totalOwed decimal.Decimal, dueDate time.Time, paymentsCount int, today time.Time) LoanStatus {
	switch {
	case totalOwed.LessThanOrEqual(decimal.Zero):
		return StatusPaid
	case today.After(dueDate):
		return StatusOverdue
	case paymentsCount > 0:
		return StatusPartial
	default:
		return StatusActive
	}
}
