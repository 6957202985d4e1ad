package loan

import (
	"context"

	"github.com/jackc/pgx/v5"
)

type Repository interface {
	CreateLoan(ctx context.Context, newLoan *Loan) (*Loan, error)

	GetLoanByID(ctx context.Context, loanID int64) (*Loan, error)

	GetAllOpenLoanIDs(ctx context.Context) ([]int64, error)

	// GetLoanForUpdate loads the loan with its charges and payments inside
	// tx, locking the loan row so concurrent payments and accruals against
	// the same loan serialize.
	GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*Loan, error)

	InsertChargesInTx(ctx context.Context, tx pgx.Tx, loanID int64, charges []InterestCharge) error

	UpdateChargeInTx(ctx context.Context, tx pgx.Tx, charge *InterestCharge) error

	InsertPaymentInTx(ctx context.Context, tx pgx.Tx, payment *Payment) error

	// UpdateLoanStateInTx persists the loan's principal, due date and the
	// derived status projection.
	UpdateLoanStateInTx(ctx context.Context, tx pgx.Tx, l *Loan) error

	BeginTx(ctx context.Context) (pgx.Tx, error)

	CommitTx(ctx context.Context, tx pgx.Tx) error

	RollbackTx(ctx context.Context, tx pgx.Tx) error
}
