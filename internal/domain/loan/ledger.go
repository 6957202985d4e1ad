package loan

import (
	"fmt"
	"time"

	"github.com/shopspring/decimal"

	"lending-engine/internal/pkg/apperrors"
)

// Summary is the derived view of a loan's balances exposed to callers.
type Summary struct {
	TotalOwed        decimal.Decimal
	Status           LoanStatus
	UnpaidInterest   decimal.Decimal
	CurrentPrincipal decimal.Decimal
}

// Ledger owns one loan's charge and payment sequences. It is the only
// component that mutates CurrentPrincipal and charge Paid flags; callers
// serialize concurrent operations on the same loan.
type Ledger struct {
	loan *Loan
}

func NewLedger(l *Loan) *Ledger {
	if l == nil {
		panic("ledger requires a loan")
	}
	return &Ledger{loan: l}
}

func (g *Ledger) Loan() *Loan {
	return g.loan
}

// RecordAccrual appends one interest charge for every accrual period that
// has fully elapsed since the last charge, computing each on the principal
// current at that point, and advances the loan's due date to the end of the
// newest period. Calling it again with the same asOf appends nothing: a
// period is charged at most once.
func (g *Ledger) RecordAccrual(asOf time.Time) ([]InterestCharge, error) {
	l := g.loan

	var appended []InterestCharge
	for asOf.After(l.DueDate) {
		periodStart := l.DueDate
		periodEnd := periodStart.AddDate(0, 1, 0)

		if g.hasChargeForPeriod(periodStart) {
			l.DueDate = periodEnd
			continue
		}

		amount, err := ComputeInterest(l.CurrentPrincipal, l.InterestRate)
		if err != nil {
			return nil, err
		}

		charge := InterestCharge{
			LoanID:      l.ID,
			PeriodStart: periodStart,
			PeriodEnd:   periodEnd,
			Amount:      amount,
			AmountPaid:  decimal.Zero,
		}
		l.Charges = append(l.Charges, charge)
		appended = append(appended, charge)
		l.DueDate = periodEnd
	}

	if len(appended) > 0 {
		g.RefreshStatus(asOf)
	}
	return appended, nil
}

func (g *Ledger) hasChargeForPeriod(periodStart time.Time) bool {
	for i := range g.loan.Charges {
		if g.loan.Charges[i].PeriodStart.Equal(periodStart) {
			return true
		}
	}
	return false
}

// RecordPayment allocates amount against the loan's unpaid charges and
// principal, appends the audit Payment with its breakdown, and refreshes
// the status. On error nothing is mutated.
func (g *Ledger) RecordPayment(amount decimal.Decimal, receivedAt time.Time) (*AllocationResult, error) {
	l := g.loan

	if amount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: payment amount %s must be positive", apperrors.ErrInvalidAmount, amount.StringFixed(2))
	}
	if l.TotalOwed().LessThanOrEqual(decimal.Zero) {
		return nil, apperrors.ErrLoanFullyPaid
	}

	result, err := Allocate(amount, l.UnpaidCharges(), l.CurrentPrincipal)
	if err != nil {
		return nil, err
	}

	l.CurrentPrincipal = result.RemainingPrincipal
	l.Payments = append(l.Payments, Payment{
		LoanID:     l.ID,
		Amount:     amount,
		ReceivedAt: receivedAt,
		Breakdown:  result.Breakdown,
	})
	g.RefreshStatus(receivedAt)

	return result, nil
}

// RefreshStatus re-derives the loan's cached status from current facts.
func (g *Ledger) RefreshStatus(asOf time.Time) {
	l := g.loan
	l.Status = ClassifyStatus(l.TotalOwed(), l.DueDate, len(l.Payments), asOf)
}

// Summary derives the loan's current balances without mutating anything.
func (g *Ledger) Summary(asOf time.Time) Summary {
	l := g.loan
	unpaidInterest := l.UnpaidInterest()
	totalOwed := l.CurrentPrincipal.Add(unpaidInterest)
	return Summary{
		TotalOwed:        totalOwed,
		Status:           ClassifyStatus(totalOwed, l.DueDate, len(l.Payments), asOf),
		UnpaidInterest:   unpaidInterest,
		CurrentPrincipal: l.CurrentPrincipal,
	}
}
