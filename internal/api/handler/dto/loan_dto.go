package dto

import (
	"fmt"
	"strconv"
	"time"

	"github.com/shopspring/decimal"

	"lending-engine/internal/domain/loan"
)

type CreateLoanRequest struct {
	ClientID     int64  `json:"clientId"`
	Principal    string `json:"principal"`
	InterestRate string `json:"interestRate,omitempty"`
	StartDate    string `json:"startDate"`
}

func (r *CreateLoanRequest) Validate() error {
	if r.ClientID <= 0 {
		return fmt.Errorf("clientId must be a positive number")
	}
	principal, err := decimal.NewFromString(r.Principal)
	if err != nil {
		return fmt.Errorf("invalid numeric format for principal: %w", err)
	}
	if principal.LessThanOrEqual(decimal.Zero) {
		return fmt.Errorf("principal must be greater than zero")
	}
	if r.InterestRate != "" {
		rate, err := decimal.NewFromString(r.InterestRate)
		if err != nil {
			return fmt.Errorf("invalid numeric format for interestRate: %w", err)
		}
		if rate.LessThanOrEqual(decimal.Zero) || rate.GreaterThan(decimal.NewFromInt(1)) {
			return fmt.Errorf("interestRate must be within (0, 1]")
		}
	}
	if _, err := time.Parse(time.RFC3339[:10], r.StartDate); err != nil || r.StartDate == "" {
		return fmt.Errorf("invalid startDate format (use YYYY-MM-DD): %w", err)
	}
	return nil
}

type RecordPaymentRequest struct {
	Amount     string `json:"amount"`
	ReceivedAt string `json:"receivedAt,omitempty"`
}

func (r *RecordPaymentRequest) Validate() error {
	if _, err := decimal.NewFromString(r.Amount); err != nil || r.Amount == "" {
		return fmt.Errorf("invalid payment amount: %w", err)
	}
	if r.ReceivedAt != "" {
		if _, err := time.Parse(time.RFC3339[:10], r.ReceivedAt); err != nil {
			return fmt.Errorf("invalid receivedAt format (use YYYY-MM-DD): %w", err)
		}
	}
	return nil
}

type RecordAccrualRequest struct {
	AsOf string `json:"asOf,omitempty"`
}

func (r *RecordAccrualRequest) Validate() error {
	if r.AsOf != "" {
		if _, err := time.Parse(time.RFC3339[:10], r.AsOf); err != nil {
			return fmt.Errorf("invalid asOf format (use YYYY-MM-DD): %w", err)
		}
	}
	return nil
}

type LoanResponse struct {
	ID                string                  `json:"id"`
	ClientID          string                  `json:"clientId"`
	OriginalPrincipal string                  `json:"originalPrincipal"`
	CurrentPrincipal  string                  `json:"currentPrincipal"`
	InterestRate      string                  `json:"interestRate"`
	StartDate         string                  `json:"startDate"`
	DueDate           string                  `json:"dueDate"`
	Status            string                  `json:"status"`
	CreatedAt         time.Time               `json:"createdAt"`
	UpdatedAt         time.Time               `json:"updatedAt"`
	Charges           []ChargeResponse        `json:"charges,omitempty"`
	Payments          []PaymentRecordResponse `json:"payments,omitempty"`
}

type ChargeResponse struct {
	ID          string `json:"id"`
	PeriodStart string `json:"periodStart"`
	PeriodEnd   string `json:"periodEnd"`
	Amount      string `json:"amount"`
	AmountPaid  string `json:"amountPaid"`
	Paid        bool   `json:"paid"`
}

type PaymentRecordResponse struct {
	ID         string                    `json:"id"`
	Amount     string                    `json:"amount"`
	ReceivedAt string                    `json:"receivedAt"`
	Breakdown  []AllocationEntryResponse `json:"breakdown"`
}

type AllocationEntryResponse struct {
	Target   string  `json:"target"`
	ChargeID *string `json:"chargeId,omitempty"`
	Amount   string  `json:"amount"`
}

type SummaryResponse struct {
	LoanID           string `json:"loanId"`
	TotalOwed        string `json:"totalOwed"`
	UnpaidInterest   string `json:"unpaidInterest"`
	CurrentPrincipal string `json:"currentPrincipal"`
	Status           string `json:"status"`
}

type PaymentResultResponse struct {
	LoanID             string                    `json:"loanId"`
	Breakdown          []AllocationEntryResponse `json:"breakdown"`
	RemainingPrincipal string                    `json:"remainingPrincipal"`
	Overpayment        string                    `json:"overpayment,omitempty"`
}

type AccrualResultResponse struct {
	LoanID          string `json:"loanId"`
	ChargesAppended int    `json:"chargesAppended"`
}

type ErrorDetail struct {
	Code    string `json:"code,omitempty"`
	Message string `json:"message"`
	Field   string `json:"field,omitempty"`
}

type ErrorResponse struct {
	Error ErrorDetail `json:"error"`
}

type TokenRequest struct {
	Username string `json:"username"`
}

func NewLoanResponse(domainLoan *loan.Loan, includeLedger bool) LoanResponse {
	resp := LoanResponse{
		ID:                strconv.FormatInt(domainLoan.ID, 10),
		ClientID:          strconv.FormatInt(domainLoan.ClientID, 10),
		OriginalPrincipal: domainLoan.OriginalPrincipal.StringFixed(2),
		CurrentPrincipal:  domainLoan.CurrentPrincipal.StringFixed(2),
		InterestRate:      domainLoan.InterestRate.String(),
		StartDate:         domainLoan.StartDate.Format(time.RFC3339[:10]),
		DueDate:           domainLoan.DueDate.Format(time.RFC3339[:10]),
		Status:            string(domainLoan.Status),
		CreatedAt:         domainLoan.CreatedAt,
		UpdatedAt:         domainLoan.UpdatedAt,
	}

	if includeLedger {
		resp.Charges = make([]ChargeResponse, len(domainLoan.Charges))
		for i := range domainLoan.Charges {
			resp.Charges[i] = NewChargeResponse(&domainLoan.Charges[i])
		}
		resp.Payments = make([]PaymentRecordResponse, len(domainLoan.Payments))
		for i := range domainLoan.Payments {
			resp.Payments[i] = NewPaymentRecordResponse(&domainLoan.Payments[i])
		}
	}

	return resp
}

func NewChargeResponse(c *loan.InterestCharge) ChargeResponse {
	return ChargeResponse{
		ID:          strconv.FormatInt(c.ID, 10),
		PeriodStart: c.PeriodStart.Format(time.RFC3339[:10]),
		PeriodEnd:   c.PeriodEnd.Format(time.RFC3339[:10]),
		Amount:      c.Amount.StringFixed(2),
		AmountPaid:  c.AmountPaid.StringFixed(2),
		Paid:        c.Paid,
	}
}

func NewPaymentRecordResponse(p *loan.Payment) PaymentRecordResponse {
	return PaymentRecordResponse{
		ID:         strconv.FormatInt(p.ID, 10),
		Amount:     p.Amount.StringFixed(2),
		ReceivedAt: p.ReceivedAt.Format(time.RFC3339[:10]),
		Breakdown:  NewBreakdownResponse(p.Breakdown),
	}
}

func NewBreakdownResponse(entries []loan.AllocationEntry) []AllocationEntryResponse {
	out := make([]AllocationEntryResponse, len(entries))
	for i, e := range entries {
		var chargeIDStr *string
		if e.ChargeID != nil {
			s := strconv.FormatInt(*e.ChargeID, 10)
			chargeIDStr = &s
		}
		out[i] = AllocationEntryResponse{
			Target:   e.Target,
			ChargeID: chargeIDStr,
			Amount:   e.Amount.StringFixed(2),
		}
	}
	return out
}

func NewSummaryResponse(loanID int64, s *loan.Summary) SummaryResponse {
	return SummaryResponse{
		LoanID:           strconv.FormatInt(loanID, 10),
		TotalOwed:        s.TotalOwed.StringFixed(2),
		UnpaidInterest:   s.UnpaidInterest.StringFixed(2),
		CurrentPrincipal: s.CurrentPrincipal.StringFixed(2),
		Status:           string(s.Status),
	}
}

func NewPaymentResultResponse(loanID int64, res *loan.AllocationResult) PaymentResultResponse {
	resp := PaymentResultResponse{
		LoanID:             strconv.FormatInt(loanID, 10),
		Breakdown:          NewBreakdownResponse(res.Breakdown),
		RemainingPrincipal: res.RemainingPrincipal.StringFixed(2),
	}
	if res.Overpayment.IsPositive() {
		resp.Overpayment = res.Overpayment.StringFixed(2)
	}
	return resp
}
