package postgres

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"

	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"

	"lending-engine/internal/domain/client"
	"lending-engine/internal/pkg/apperrors"
)

const uniqueViolationCode = "23505"

type ClientRepository struct {
	db     DBPool
	logger *slog.Logger
}

var _ client.ClientRepository = (*ClientRepository)(nil)

func NewClientRepository(db DBPool, logger *slog.Logger) *ClientRepository {
	if db == nil {
		panic("DBPool cannot be nil for ClientRepository")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewClientRepository, using default stderr handler")
	}
	return &ClientRepository{
		db:     db,
		logger: logger.With("component", "ClientRepository"),
	}
}

func (r *ClientRepository) Save(ctx context.Context, c *client.Client) error {
	if c == nil {
		return fmt.Errorf("%w: client cannot be nil", apperrors.ErrInvalidArgument)
	}

	if c.ClientID == 0 {
		return r.createClient(ctx, c)
	}
	return r.updateClient(ctx, c)
}

func (r *ClientRepository) createClient(ctx context.Context, c *client.Client) error {
	r.logger.InfoContext(ctx, "Attempting to insert new client", slog.String("name", c.Name))

	query := `
        INSERT INTO clients (name, phone, group_name, active, loan_id, created_at, updated_at)
        VALUES ($1, $2, $3, $4, $5, NOW(), NOW())
        RETURNING id, created_at, updated_at`

	err := r.db.QueryRow(ctx, query,
		c.Name,
		c.Phone,
		c.GroupName,
		c.Active,
		c.LoanID,
	).Scan(
		&c.ClientID,
		&c.CreateDate,
		&c.UpdatedAt,
	)

	if err != nil {
		if isUniqueViolation(err) {
			r.logger.WarnContext(ctx, "Failed to insert client due to unique constraint violation", slog.Any("error", err))
			return apperrors.ErrAlreadyExists
		}
		r.logger.ErrorContext(ctx, "Failed to insert client", slog.Any("error", err))
		return fmt.Errorf("%w: failed to insert client: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Client inserted successfully", slog.Int64("clientID", c.ClientID))
	return nil
}

func (r *ClientRepository) updateClient(ctx context.Context, c *client.Client) error {
	r.logger.InfoContext(ctx, "Attempting to update client")

	query := `
        UPDATE clients
        SET name = $1,
            phone = $2,
            group_name = $3,
            active = $4,
            loan_id = $5,
            updated_at = NOW()
        WHERE id = $6`

	cmdTag, err := r.db.Exec(ctx, query,
		c.Name,
		c.Phone,
		c.GroupName,
		c.Active,
		c.LoanID,
		c.ClientID,
	)

	if err != nil {
		if isUniqueViolation(err) {
			r.logger.WarnContext(ctx, "Failed to update client due to unique constraint violation", slog.Any("error", err))
			return client.ErrDuplicateLoanID
		}
		r.logger.ErrorContext(ctx, "Failed to update client", slog.Any("error", err))
		return fmt.Errorf("%w: failed to update client: %w", apperrors.ErrDatabase, err)
	}

	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Update affected zero rows, client likely not found")
		return client.ErrNotFound
	}

	r.logger.InfoContext(ctx, "Client updated successfully")
	return nil
}

func (r *ClientRepository) FindByID(ctx context.Context, clientID int64) (*client.Client, error) {
	query := `
        SELECT id, name, phone, group_name, active, loan_id, created_at, updated_at
        FROM clients
        WHERE id = $1`

	return r.scanOne(ctx, query, clientID)
}

func (r *ClientRepository) FindByLoanID(ctx context.Context, loanID int64) (*client.Client, error) {
	query := `
        SELECT id, name, phone, group_name, active, loan_id, created_at, updated_at
        FROM clients
        WHERE loan_id = $1`

	return r.scanOne(ctx, query, loanID)
}

func (r *ClientRepository) scanOne(ctx context.Context, query string, arg any) (*client.Client, error) {
	var c client.Client
	err := r.db.QueryRow(ctx, query, arg).Scan(
		&c.ClientID,
		&c.Name,
		&c.Phone,
		&c.GroupName,
		&c.Active,
		&c.LoanID,
		&c.CreateDate,
		&c.UpdatedAt,
	)

	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			r.logger.WarnContext(ctx, "Client not found")
			return nil, client.ErrNotFound
		}
		r.logger.ErrorContext(ctx, "Failed to query/scan client", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to get client: %w", apperrors.ErrDatabase, err)
	}

	return &c, nil
}

func (r *ClientRepository) FindAll(ctx context.Context, activeOnly bool) ([]*client.Client, error) {
	baseQuery := `
        SELECT id, name, phone, group_name, active, loan_id, created_at, updated_at
        FROM clients`
	args := []any{}
	query := baseQuery
	if activeOnly {
		query += " WHERE active = $1"
		args = append(args, true)
	}
	query += " ORDER BY id ASC"

	rows, err := r.db.Query(ctx, query, args...)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to query clients", slog.Any("error", err))
		return nil, fmt.Errorf("%w: failed to query clients: %w", apperrors.ErrDatabase, err)
	}
	defer rows.Close()

	clients := make([]*client.Client, 0)
	for rows.Next() {
		var c client.Client
		err := rows.Scan(
			&c.ClientID,
			&c.Name,
			&c.Phone,
			&c.GroupName,
			&c.Active,
			&c.LoanID,
			&c.CreateDate,
			&c.UpdatedAt,
		)
		if err != nil {
			r.logger.ErrorContext(ctx, "Failed to scan client row", slog.Any("error", err))
			return nil, fmt.Errorf("%w: failed to scan client row: %w", apperrors.ErrDatabase, err)
		}
		clients = append(clients, &c)
	}

	if err = rows.Err(); err != nil {
		r.logger.ErrorContext(ctx, "Error iterating client rows", slog.Any("error", err))
		return nil, fmt.Errorf("%w: error iterating client rows: %w", apperrors.ErrDatabase, err)
	}

	r.logger.InfoContext(ctx, "Finished finding clients", slog.Int("count", len(clients)))
	return clients, nil
}

func (r *ClientRepository) SetActiveStatus(ctx context.Context, clientID int64, isActive bool) error {
	query := `
        UPDATE clients
        SET active = $1, updated_at = NOW()
        WHERE id = $2`

	cmdTag, err := r.db.Exec(ctx, query, isActive, clientID)
	if err != nil {
		r.logger.ErrorContext(ctx, "Failed to set client active status", slog.Any("error", err))
		return fmt.Errorf("%w: failed to set client active status: %w", apperrors.ErrDatabase, err)
	}
	if cmdTag.RowsAffected() == 0 {
		r.logger.WarnContext(ctx, "Update affected zero rows, client likely not found")
		return client.ErrNotFound
	}

	return nil
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == uniqueViolationCode
}
