package loan

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"

	"lending-engine/internal/domain/client"
	"lending-engine/internal/event"
	"lending-engine/internal/infrastructure/monitoring"
	"lending-engine/internal/pkg/apperrors"
)

type LoanService interface {
	// CreateLoan disburses a loan to a client, computing the first interest
	// charge at creation time. A zero rate selects the lender default.
	CreateLoan(ctx context.Context, clientID int64, principal, rate decimal.Decimal, startDate time.Time) (*Loan, error)

	GetLoan(ctx context.Context, loanID int64) (*Loan, error)

	GetSummary(ctx context.Context, loanID int64) (*Summary, error)

	// RecordPayment allocates a payment against the loan's unpaid interest
	// charges and principal inside one transaction.
	RecordPayment(ctx context.Context, loanID int64, amount decimal.Decimal, receivedAt time.Time) (*AllocationResult, error)

	// RecordAccrual appends interest charges for every accrual period
	// elapsed up to asOf. Returns how many charges were appended.
	RecordAccrual(ctx context.Context, loanID int64, asOf time.Time) (int, error)
}

type loanServiceImpl struct {
	repo          Repository
	clientService client.ClientService
	pub           event.EventPublisher
	defaultRate   decimal.Decimal
	logger        *slog.Logger
}

// NewLoanService wires the loan domain together. defaultRate is the
// lender-wide rate substituted when CreateLoan receives a zero rate; a
// non-positive defaultRate falls back to DefaultInterestRate.
func NewLoanService(r Repository, cs client.ClientService, pub event.EventPublisher, defaultRate decimal.Decimal, logger *slog.Logger) LoanService {
	if pub == nil {
		pub = event.NoopPublisher{}
	}
	if !defaultRate.IsPositive() {
		defaultRate = DefaultInterestRate
	}
	return &loanServiceImpl{repo: r, clientService: cs, pub: pub, defaultRate: defaultRate, logger: logger}
}

func (s *loanServiceImpl) CreateLoan(ctx context.Context, clientID int64, principal, rate decimal.Decimal, startDate time.Time) (*Loan, error) {
	s.logger.Info("Creating new loan", "clientID", clientID)

	cl, err := s.clientService.GetClient(ctx, clientID)
	if err != nil {
		if errors.Is(err, client.ErrNotFound) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("Client not found", slog.Any("error", err))
			return nil, fmt.Errorf("%w: client %d not found", apperrors.ErrValidation, clientID)
		}
		s.logger.Error("Failed to get client details from client service", slog.Any("error", err))
		return nil, fmt.Errorf("failed to verify client status: %w", err)
	}

	if !cl.Active {
		s.logger.Error("Attempted to create loan for inactive client", "clientID", clientID)
		return nil, fmt.Errorf("%w: client %d is not active", apperrors.ErrValidation, clientID)
	}

	if cl.LoanID != nil {
		existingLoan, err := s.GetLoan(ctx, *cl.LoanID)
		if err != nil {
			s.logger.Error("Failed to get existing loan details", "error", err)
			return nil, fmt.Errorf("failed to get existing loan details: %w", err)
		}
		if existingLoan.Status != StatusPaid {
			s.logger.Error("Client already has an open loan", "clientID", clientID, "loanID", existingLoan.ID)
			return nil, fmt.Errorf("%w (LoanID: %d)", client.ErrClientAlreadyHasLoan, existingLoan.ID)
		}
	}

	if rate.IsZero() {
		rate = s.defaultRate
	}
	newLoan, err := NewLoan(clientID, principal, rate, startDate)
	if err != nil {
		s.logger.Error("Failed to create new loan object", "error", err)
		return nil, err
	}

	createdLoan, err := s.repo.CreateLoan(ctx, newLoan)
	if err != nil {
		s.logger.Error("Failed to save loan and initial charge", "error", err)
		return nil, fmt.Errorf("%w: failed to save loan: %v", apperrors.ErrInternalServer, err)
	}

	if err := s.clientService.AssignLoanToClient(ctx, clientID, createdLoan.ID); err != nil {
		s.logger.Error("Failed to assign loan to client", "error", err)
		return nil, fmt.Errorf("failed to assign loan to client: %w", err)
	}

	monitoring.RecordLoanCreated()
	s.logger.Info("Loan created successfully", "loanID", createdLoan.ID, "clientID", clientID)
	return createdLoan, nil
}

func (s *loanServiceImpl) GetLoan(ctx context.Context, loanID int64) (*Loan, error) {
	l, err := s.repo.GetLoanByID(ctx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Warn("Loan not found", "loanID", loanID)
			return nil, fmt.Errorf("%w: loan with ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.Error("Failed to get loan", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: failed to get loan %d: %v", apperrors.ErrInternalServer, loanID, err)
	}
	return l, nil
}

func (s *loanServiceImpl) GetSummary(ctx context.Context, loanID int64) (*Summary, error) {
	l, err := s.GetLoan(ctx, loanID)
	if err != nil {
		return nil, err
	}
	summary := NewLedger(l).Summary(time.Now())
	return &summary, nil
}

func (s *loanServiceImpl) RecordPayment(ctx context.Context, loanID int64, amount decimal.Decimal, receivedAt time.Time) (result *AllocationResult, err error) {
	s.logger.Info("Recording payment", "loanID", loanID, "amount", amount.StringFixed(2))
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "error", err)
		return nil, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}

	defer func() {
		status := "success"
		switch {
		case errors.Is(err, apperrors.ErrInvalidAmount):
			status = "failure_amount"
		case errors.Is(err, apperrors.ErrLoanFullyPaid):
			status = "failure_fully_paid"
		case errors.Is(err, apperrors.ErrInconsistentState):
			status = "failure_inconsistent"
		case err != nil:
			status = "failure_internal"
		}
		monitoring.RecordPayment(status)
		if p := recover(); p != nil {
			s.logger.Error("Panic occurred during payment processing", "loanID", loanID, "error", p)
			_ = s.repo.RollbackTx(ctx, tx)
			panic(p)
		} else if err != nil {
			s.logger.Error("Rolling back transaction due to error", "error", err)
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			s.logger.Error("Loan not found", "loanID", loanID, "error", err)
			return nil, fmt.Errorf("%w: cannot record payment, loan ID %d not found", apperrors.ErrNotFound, loanID)
		}
		s.logger.Error("Failed to load loan for payment", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: could not load loan for payment: %v", apperrors.ErrInternalServer, err)
	}

	oldStatus := l.Status
	ledger := NewLedger(l)
	result, err = ledger.RecordPayment(amount, receivedAt)
	if err != nil {
		s.logger.Error("Payment rejected by ledger", "loanID", loanID, "error", err)
		return nil, err
	}

	for _, entry := range result.Breakdown {
		if entry.ChargeID == nil {
			continue
		}
		charge := findCharge(l, *entry.ChargeID)
		if charge == nil {
			err = fmt.Errorf("%w: allocated charge %d missing from loan", apperrors.ErrInternalServer, *entry.ChargeID)
			return nil, err
		}
		if err = s.repo.UpdateChargeInTx(ctx, tx, charge); err != nil {
			s.logger.Error("Failed to update interest charge", "loanID", loanID, "chargeID", charge.ID, "error", err)
			return nil, fmt.Errorf("%w: could not update interest charge: %v", apperrors.ErrInternalServer, err)
		}
	}

	payment := &l.Payments[len(l.Payments)-1]
	if err = s.repo.InsertPaymentInTx(ctx, tx, payment); err != nil {
		s.logger.Error("Failed to insert payment", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: could not insert payment: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.repo.UpdateLoanStateInTx(ctx, tx, l); err != nil {
		s.logger.Error("Failed to update loan state", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: could not update loan state: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		s.logger.Error("Failed to commit transaction", "loanID", loanID, "error", err)
		return nil, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	if result.Overpayment.GreaterThan(decimal.Zero) {
		monitoring.RecordOverpayment()
		s.logger.Warn("Payment exceeded total owed", "loanID", loanID, "overpayment", result.Overpayment.StringFixed(2))
	}

	s.publishPaymentEvents(ctx, l, oldStatus, amount, receivedAt, result)
	s.logger.Info("Payment processed successfully", "loanID", loanID, "amount", amount.StringFixed(2), "status", l.Status)
	return result, nil
}

func (s *loanServiceImpl) RecordAccrual(ctx context.Context, loanID int64, asOf time.Time) (appended int, err error) {
	s.logger.Info("Recording accrual", "loanID", loanID, "asOf", asOf)
	tx, err := s.repo.BeginTx(ctx)
	if err != nil {
		s.logger.Error("Failed to begin transaction", "error", err)
		return 0, fmt.Errorf("%w: could not begin transaction: %v", apperrors.ErrInternalServer, err)
	}

	defer func() {
		if err != nil {
			s.logger.Error("Rolling back accrual transaction due to error", "error", err)
			_ = s.repo.RollbackTx(ctx, tx)
		}
	}()

	l, err := s.repo.GetLoanForUpdate(ctx, tx, loanID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) || errors.Is(err, apperrors.ErrNotFound) {
			return 0, fmt.Errorf("%w: cannot record accrual, loan ID %d not found", apperrors.ErrNotFound, loanID)
		}
		return 0, fmt.Errorf("%w: could not load loan for accrual: %v", apperrors.ErrInternalServer, err)
	}

	oldStatus := l.Status
	charges, err := NewLedger(l).RecordAccrual(asOf)
	if err != nil {
		return 0, err
	}

	if len(charges) == 0 {
		// Nothing elapsed since the last charge; release the lock.
		if err = s.repo.RollbackTx(ctx, tx); err != nil {
			return 0, fmt.Errorf("%w: could not release accrual transaction: %v", apperrors.ErrInternalServer, err)
		}
		return 0, nil
	}

	if err = s.repo.InsertChargesInTx(ctx, tx, l.ID, charges); err != nil {
		return 0, fmt.Errorf("%w: could not insert interest charges: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.repo.UpdateLoanStateInTx(ctx, tx, l); err != nil {
		return 0, fmt.Errorf("%w: could not update loan state: %v", apperrors.ErrInternalServer, err)
	}

	if err = s.repo.CommitTx(ctx, tx); err != nil {
		return 0, fmt.Errorf("%w: could not commit transaction: %v", apperrors.ErrInternalServer, err)
	}

	monitoring.RecordAccrualCharges(len(charges))
	if l.Status != oldStatus {
		s.publishStatusChanged(ctx, l, oldStatus)
	}
	s.logger.Info("Accrual recorded", "loanID", loanID, "charges_appended", len(charges), "due_date", l.DueDate)
	return len(charges), nil
}

func (s *loanServiceImpl) publishPaymentEvents(ctx context.Context, l *Loan, oldStatus LoanStatus, amount decimal.Decimal, receivedAt time.Time, result *AllocationResult) {
	breakdown := make([]event.AllocationSlice, 0, len(result.Breakdown))
	for _, entry := range result.Breakdown {
		breakdown = append(breakdown, event.AllocationSlice{
			Target:   entry.Target,
			ChargeID: entry.ChargeID,
			Amount:   entry.Amount.StringFixed(2),
		})
	}
	paymentEvent := event.PaymentRecordedEvent{
		LoanID:     l.ID,
		Amount:     amount.StringFixed(2),
		ReceivedAt: receivedAt,
		Breakdown:  breakdown,
		Timestamp:  time.Now(),
	}
	if result.Overpayment.GreaterThan(decimal.Zero) {
		paymentEvent.Overpayment = result.Overpayment.StringFixed(2)
	}
	if pubErr := s.pub.PublishPaymentRecorded(ctx, paymentEvent); pubErr != nil {
		s.logger.Error("Payment recorded, but failed to publish event", slog.Any("error", pubErr))
	}

	if l.Status != oldStatus {
		s.publishStatusChanged(ctx, l, oldStatus)
	}
}

func (s *loanServiceImpl) publishStatusChanged(ctx context.Context, l *Loan, oldStatus LoanStatus) {
	statusEvent := event.LoanStatusChangedEvent{
		LoanID:    l.ID,
		ClientID:  l.ClientID,
		OldStatus: string(oldStatus),
		NewStatus: string(l.Status),
		TotalOwed: l.TotalOwed().StringFixed(2),
		Timestamp: time.Now(),
	}
	if pubErr := s.pub.PublishLoanStatusChanged(ctx, statusEvent); pubErr != nil {
		s.logger.Error("Failed to publish loan status change event", slog.Any("error", pubErr))
	}
}

func findCharge(l *Loan, chargeID int64) *InterestCharge {
	for i := range l.Charges {
		if l.Charges[i].ID == chargeID {
			return &l.Charges[i]
		}
	}
	return nil
}
