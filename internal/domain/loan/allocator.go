package loan

import (
	"fmt"

	"github.com/shopspring/decimal"

	"lending-engine/internal/pkg/apperrors"
)

// AllocationResult reports how a payment was distributed. Breakdown entries
// sum exactly to the payment amount minus Overpayment; no currency is
// created or destroyed.
type AllocationResult struct {
	Breakdown          []AllocationEntry
	RemainingPrincipal decimal.Decimal
	Overpayment        decimal.Decimal
	FullyAllocated     bool
}

// Allocate distributes paymentAmount across the given unpaid charges
// (oldest first) and then the principal.
//
// Each charge is either fully covered, flipping Paid, or receives the whole
// remainder into its AmountPaid running total and stops the interest pass.
// Whatever survives the interest pass reduces the principal, floored at
// zero; any excess beyond that is surfaced as Overpayment for the caller to
// decide on, never silently absorbed.
//
// All validation happens before any charge is touched, so a failed call
// leaves every input unmodified.
func Allocate(paymentAmount decimal.Decimal, charges []*InterestCharge, currentPrincipal decimal.Decimal) (*AllocationResult, error) {
	if paymentAmount.LessThanOrEqual(decimal.Zero) {
		return nil, fmt.Errorf("%w: payment amount %s must be positive", apperrors.ErrInvalidAmount, paymentAmount.StringFixed(2))
	}
	for _, c := range charges {
		if c.Paid {
			return nil, fmt.Errorf("%w: charge %d is already paid", apperrors.ErrInconsistentState, c.ID)
		}
		if c.AmountPaid.GreaterThan(c.Amount) {
			return nil, fmt.Errorf("%w: charge %d paid %s beyond its amount %s",
				apperrors.ErrInconsistentState, c.ID, c.AmountPaid.StringFixed(2), c.Amount.StringFixed(2))
		}
	}

	remaining := paymentAmount
	breakdown := make([]AllocationEntry, 0, len(charges)+1)

	for _, c := range charges {
		if remaining.LessThanOrEqual(decimal.Zero) {
			break
		}
		outstanding := c.Outstanding()
		if remaining.GreaterThanOrEqual(outstanding) {
			c.AmountPaid = c.Amount
			c.Paid = true
			breakdown = append(breakdown, AllocationEntry{Target: TargetInterest, ChargeID: &c.ID, Amount: outstanding})
			remaining = remaining.Sub(outstanding)
		} else {
			c.AmountPaid = c.AmountPaid.Add(remaining)
			breakdown = append(breakdown, AllocationEntry{Target: TargetInterest, ChargeID: &c.ID, Amount: remaining})
			remaining = decimal.Zero
		}
	}

	newPrincipal := currentPrincipal
	overpayment := decimal.Zero
	if remaining.GreaterThan(decimal.Zero) {
		applied := decimal.Min(remaining, currentPrincipal)
		if applied.GreaterThan(decimal.Zero) {
			breakdown = append(breakdown, AllocationEntry{Target: TargetPrincipal, Amount: applied})
			newPrincipal = currentPrincipal.Sub(applied)
		}
		overpayment = remaining.Sub(applied)
	}

	return &AllocationResult{
		Breakdown:          breakdown,
		RemainingPrincipal: newPrincipal,
		Overpayment:        overpayment,
		FullyAllocated:     overpayment.IsZero(),
	}, nil
}
