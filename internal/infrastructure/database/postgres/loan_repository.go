package postgres

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/pashagolub/pgxmock/v4"

	"lending-engine/internal/domain/loan"
	"lending-engine/internal/infrastructure/monitoring"
	"lending-engine/internal/pkg/apperrors"
)

type DBPool interface {
	Begin(ctx context.Context) (pgx.Tx, error)
	QueryRow(ctx context.Context, sql string, args ...any) pgx.Row
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
	Exec(ctx context.Context, sql string, args ...any) (pgconn.CommandTag, error)
	Close()
}

type LoanRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ DBPool = (*pgxpool.Pool)(nil)

var _ DBPool = (pgxmock.PgxPoolIface)(nil)

var _ loan.Repository = (*LoanRepository)(nil)

var errMsgFormat = "%w: %w"

func NewLoanRepository(db DBPool, logger *slog.Logger) *LoanRepository {
	return &LoanRepository{db: db, logger: logger.With("component", "LoanRepository")}
}

func (r *LoanRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	tx, err := r.db.Begin(ctx)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to begin transaction", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return tx, nil
}

func (r *LoanRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	if err := tx.Commit(ctx); err != nil {
		r.logger.ErrorContext(ctx, "Failed to commit transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	err := tx.Rollback(ctx)
	if err != nil && !errors.Is(err, pgx.ErrTxClosed) {
		r.logger.ErrorContext(ctx, "Failed to rollback transaction", "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	tx, err := r.BeginTx(ctx)
	if err != nil {
		return nil, err
	}
	defer r.RollbackTx(ctx, tx)

	loanSQL := `
        INSERT INTO loans (client_id, original_principal, current_principal, interest_rate, start_date, due_date, status, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, $6, $7, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	created := *newLoan
	err = tx.QueryRow(ctx, loanSQL,
		newLoan.ClientID, newLoan.OriginalPrincipal, newLoan.CurrentPrincipal,
		newLoan.InterestRate, newLoan.StartDate, newLoan.DueDate, newLoan.Status,
	).Scan(&created.ID, &created.CreatedAt, &created.UpdatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert loan", "error", err)
		return nil, fmt.Errorf("%w: failed to insert loan: %w", apperrors.ErrDatabase, err)
	}
	r.logger.InfoContext(ctx, "Loan created in DB", "loan_id", created.ID)

	if len(created.Charges) > 0 {
		chargeSQL := `
            INSERT INTO interest_charges (loan_id, period_start, period_end, amount, amount_paid, is_paid, created_at)
            VALUES ($1, $2, $3, $4, $5, $6, NOW())`

		batch := &pgx.Batch{}
		for i := range created.Charges {
			created.Charges[i].LoanID = created.ID
			c := &created.Charges[i]
			batch.Queue(chargeSQL, created.ID, c.PeriodStart, c.PeriodEnd, c.Amount, c.AmountPaid, c.Paid)
		}

		results := tx.SendBatch(ctx, batch)
		for i := 0; i < len(created.Charges); i++ {
			if _, err = results.Exec(); err != nil {
				results.Close()
				r.logger.ErrorContext(ctx, "Failed executing charge batch insert", "error", err, "entry_index", i, "loan_id", created.ID)
				return nil, fmt.Errorf("%w: failed inserting interest charge %d: %w", apperrors.ErrDatabase, i+1, err)
			}
		}
		if err = results.Close(); err != nil {
			r.logger.ErrorContext(ctx, "Failed closing charge batch results", "error", err, "loan_id", created.ID)
			return nil, fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
		}
	}

	if err := r.CommitTx(ctx, tx); err != nil {
		return nil, err
	}
	return &created, nil
}

func (r *LoanRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	query := `
        SELECT id, client_id, original_principal, current_principal, interest_rate, start_date, due_date, status, created_at, updated_at
        FROM loans
        WHERE id = $1`
	status := "success"
	startTime := time.Now()

	var l loan.Loan
	err := r.db.QueryRow(ctx, query, loanID).Scan(
		&l.ID, &l.ClientID, &l.OriginalPrincipal, &l.CurrentPrincipal,
		&l.InterestRate, &l.StartDate, &l.DueDate, &l.Status,
		&l.CreatedAt, &l.UpdatedAt,
	)

	if err != nil {
		status = "error"
	}
	monitoring.RecordDBQuery("GetLoanByID", status, time.Since(startTime))

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to get loan by ID", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	if l.Charges, err = r.getCharges(ctx, r.db, loanID); err != nil {
		return nil, err
	}
	if l.Payments, err = r.getPayments(ctx, r.db, loanID); err != nil {
		return nil, err
	}
	return &l, nil
}

func (r *LoanRepository) GetAllOpenLoanIDs(ctx context.Context) ([]int64, error) {
	query := `SELECT id FROM loans WHERE status <> $1 ORDER BY id`
	status := "success"
	startTime := time.Now()

	rows, err := r.db.Query(ctx, query, loan.StatusPaid)
	if err != nil {
		monitoring.RecordDBQuery("GetAllOpenLoanIDs", "error", time.Since(startTime))
		r.logger.ErrorContext(ctx, "Failed to query open loan IDs", "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	var ids []int64
	for rows.Next() {
		var id int64
		if err := rows.Scan(&id); err != nil {
			monitoring.RecordDBQuery("GetAllOpenLoanIDs", "error", time.Since(startTime))
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		ids = append(ids, id)
	}
	if err := rows.Err(); err != nil {
		monitoring.RecordDBQuery("GetAllOpenLoanIDs", "error", time.Since(startTime))
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	monitoring.RecordDBQuery("GetAllOpenLoanIDs", status, time.Since(startTime))
	return ids, nil
}

func (r *LoanRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*loan.Loan, error) {
	query := `
        SELECT id, client_id, original_principal, current_principal, interest_rate, start_date, due_date, status, created_at, updated_at
        FROM loans
        WHERE id = $1
        FOR UPDATE`

	var l loan.Loan
	err := tx.QueryRow(ctx, query, loanID).Scan(
		&l.ID, &l.ClientID, &l.OriginalPrincipal, &l.CurrentPrincipal,
		&l.InterestRate, &l.StartDate, &l.DueDate, &l.Status,
		&l.CreatedAt, &l.UpdatedAt,
	)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Loan not found for update", "loan_id", loanID)
			return nil, apperrors.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to lock loan row", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}

	if l.Charges, err = r.getCharges(ctx, tx, loanID); err != nil {
		return nil, err
	}
	if l.Payments, err = r.getPayments(ctx, tx, loanID); err != nil {
		return nil, err
	}
	return &l, nil
}

type querier interface {
	Query(ctx context.Context, sql string, args ...any) (pgx.Rows, error)
}

func (r *LoanRepository) getCharges(ctx context.Context, q querier, loanID int64) ([]loan.InterestCharge, error) {
	query := `
        SELECT id, loan_id, period_start, period_end, amount, amount_paid, is_paid, created_at
        FROM interest_charges
        WHERE loan_id = $1
        ORDER BY period_start ASC`

	rows, err := q.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query interest charges", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	var charges []loan.InterestCharge
	for rows.Next() {
		var c loan.InterestCharge
		if err := rows.Scan(&c.ID, &c.LoanID, &c.PeriodStart, &c.PeriodEnd, &c.Amount, &c.AmountPaid, &c.Paid, &c.CreatedAt); err != nil {
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		charges = append(charges, c)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return charges, nil
}

func (r *LoanRepository) getPayments(ctx context.Context, q querier, loanID int64) ([]loan.Payment, error) {
	query := `
        SELECT id, loan_id, amount, received_at, breakdown, created_at
        FROM payments
        WHERE loan_id = $1
        ORDER BY received_at ASC, id ASC`

	rows, err := q.Query(ctx, query, loanID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query payments", "loan_id", loanID, "error", err)
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	var payments []loan.Payment
	for rows.Next() {
		var p loan.Payment
		var breakdownJSON []byte
		if err := rows.Scan(&p.ID, &p.LoanID, &p.Amount, &p.ReceivedAt, &breakdownJSON, &p.CreatedAt); err != nil {
			return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
		}
		if len(breakdownJSON) > 0 {
			if err := json.Unmarshal(breakdownJSON, &p.Breakdown); err != nil {
				return nil, fmt.Errorf("%w: failed to decode payment breakdown: %w", apperrors.ErrDatabase, err)
			}
		}
		payments = append(payments, p)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return payments, nil
}

func (r *LoanRepository) InsertChargesInTx(ctx context.Context, tx pgx.Tx, loanID int64, charges []loan.InterestCharge) error {
	if len(charges) == 0 {
		return nil
	}
	chargeSQL := `
        INSERT INTO interest_charges (loan_id, period_start, period_end, amount, amount_paid, is_paid, created_at)
        VALUES ($1, $2, $3, $4, $5, $6, NOW())`

	batch := &pgx.Batch{}
	for i := range charges {
		c := &charges[i]
		batch.Queue(chargeSQL, loanID, c.PeriodStart, c.PeriodEnd, c.Amount, c.AmountPaid, c.Paid)
	}

	results := tx.SendBatch(ctx, batch)
	for i := 0; i < len(charges); i++ {
		if _, err := results.Exec(); err != nil {
			results.Close()
			r.logger.ErrorContext(ctx, "Failed executing charge batch insert", "error", err, "entry_index", i, "loan_id", loanID)
			return fmt.Errorf("%w: failed inserting interest charge %d: %w", apperrors.ErrDatabase, i+1, err)
		}
	}
	if err := results.Close(); err != nil {
		return fmt.Errorf("%w: closing batch results failed: %w", apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) UpdateChargeInTx(ctx context.Context, tx pgx.Tx, charge *loan.InterestCharge) error {
	updateSQL := `
        UPDATE interest_charges
        SET amount_paid = $1, is_paid = $2
        WHERE id = $3`

	cmdTag, err := tx.Exec(ctx, updateSQL, charge.AmountPaid, charge.Paid, charge.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update interest charge", "charge_id", charge.ID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: interest charge %d not found", apperrors.ErrNotFound, charge.ID)
	}
	return nil
}

func (r *LoanRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, payment *loan.Payment) error {
	breakdownJSON, err := json.Marshal(payment.Breakdown)
	if err != nil {
		return fmt.Errorf("%w: failed to encode payment breakdown: %w", apperrors.ErrInternalServer, err)
	}

	insertSQL := `
        INSERT INTO payments (loan_id, amount, received_at, breakdown, created_at)
        VALUES ($1, $2, $3, $4, NOW())
        RETURNING id, created_at`

	err = tx.QueryRow(ctx, insertSQL, payment.LoanID, payment.Amount, payment.ReceivedAt, breakdownJSON).
		Scan(&payment.ID, &payment.CreatedAt)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to insert payment", "loan_id", payment.LoanID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	return nil
}

func (r *LoanRepository) UpdateLoanStateInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) error {
	// The status column is a cached projection; summaries always re-derive.
	updateSQL := `
        UPDATE loans
        SET current_principal = $1, due_date = $2, status = $3, updated_at = NOW()
        WHERE id = $4`

	cmdTag, err := tx.Exec(ctx, updateSQL, l.CurrentPrincipal, l.DueDate, l.Status, l.ID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to update loan state", "loan_id", l.ID, "error", err)
		return fmt.Errorf(errMsgFormat, apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		return fmt.Errorf("%w: loan %d not found", apperrors.ErrNotFound, l.ID)
	}
	return nil
}
