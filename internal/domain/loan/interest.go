package loan

import (
	"fmt"

	"github.com/shopspring/decimal"

	"lending-engine/internal/pkg/apperrors"
)

var one = decimal.New(1, 0)

// ComputeInterest returns the interest owed for one accrual period on the
// given principal: principal * rate, rounded half-up to two decimal places.
// Deterministic and side-effect free.
func ComputeInterest(principal, rate decimal.Decimal) (decimal.Decimal, error) {
	if principal.IsNegative() {
		return decimal.Zero, fmt.Errorf("%w: principal %s is negative", apperrors.ErrInvalidAmount, principal.StringFixed(2))
	}
	if rate.LessThanOrEqual(decimal.Zero) || rate.GreaterThan(one) {
		return decimal.Zero, fmt.Errorf("%w: rate %s outside (0, 1]", apperrors.ErrInvalidRate, rate.String())
	}

	// Round is half away from zero, which for the non-negative amounts
	// admitted above is exactly half-up.
	return principal.Mul(rate).Round(2), nil
}
