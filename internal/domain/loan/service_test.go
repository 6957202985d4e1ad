package loan_test

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/jackc/pgx/v5"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"

	"lending-engine/internal/domain/client"
	"lending-engine/internal/domain/loan"
	"lending-engine/internal/event"
	"lending-engine/internal/pkg/apperrors"
)

type MockRepository struct {
	mock.Mock
}

func (m *MockRepository) CreateLoan(ctx context.Context, newLoan *loan.Loan) (*loan.Loan, error) {
	args := m.Called(ctx, newLoan)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) GetLoanByID(ctx context.Context, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) GetAllOpenLoanIDs(ctx context.Context) ([]int64, error) {
	args := m.Called(ctx)
	if ids, ok := args.Get(0).([]int64); ok {
		return ids, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) GetLoanForUpdate(ctx context.Context, tx pgx.Tx, loanID int64) (*loan.Loan, error) {
	args := m.Called(ctx, tx, loanID)
	if l, ok := args.Get(0).(*loan.Loan); ok {
		return l, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) InsertChargesInTx(ctx context.Context, tx pgx.Tx, loanID int64, charges []loan.InterestCharge) error {
	return m.Called(ctx, tx, loanID, charges).Error(0)
}

func (m *MockRepository) UpdateChargeInTx(ctx context.Context, tx pgx.Tx, charge *loan.InterestCharge) error {
	return m.Called(ctx, tx, charge).Error(0)
}

func (m *MockRepository) InsertPaymentInTx(ctx context.Context, tx pgx.Tx, payment *loan.Payment) error {
	return m.Called(ctx, tx, payment).Error(0)
}

func (m *MockRepository) UpdateLoanStateInTx(ctx context.Context, tx pgx.Tx, l *loan.Loan) error {
	return m.Called(ctx, tx, l).Error(0)
}

func (m *MockRepository) BeginTx(ctx context.Context) (pgx.Tx, error) {
	args := m.Called(ctx)
	if tx, ok := args.Get(0).(pgx.Tx); ok {
		return tx, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockRepository) CommitTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

func (m *MockRepository) RollbackTx(ctx context.Context, tx pgx.Tx) error {
	return m.Called(ctx, tx).Error(0)
}

type MockClientService struct {
	mock.Mock
}

func (m *MockClientService) CreateNewClient(ctx context.Context, name, phone, groupName string) (*client.Client, error) {
	args := m.Called(ctx, name, phone, groupName)
	if c, ok := args.Get(0).(*client.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClientService) GetClient(ctx context.Context, clientID int64) (*client.Client, error) {
	args := m.Called(ctx, clientID)
	if c, ok := args.Get(0).(*client.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClientService) ListActiveClients(ctx context.Context) ([]*client.Client, error) {
	args := m.Called(ctx)
	if clients, ok := args.Get(0).([]*client.Client); ok {
		return clients, args.Error(1)
	}
	return nil, args.Error(1)
}

func (m *MockClientService) AssignLoanToClient(ctx context.Context, clientID int64, loanID int64) error {
	return m.Called(ctx, clientID, loanID).Error(0)
}

func (m *MockClientService) DeactivateClient(ctx context.Context, clientID int64) error {
	return m.Called(ctx, clientID).Error(0)
}

func (m *MockClientService) ReactivateClient(ctx context.Context, clientID int64) error {
	return m.Called(ctx, clientID).Error(0)
}

func (m *MockClientService) FindClientByLoan(ctx context.Context, loanID int64) (*client.Client, error) {
	args := m.Called(ctx, loanID)
	if c, ok := args.Get(0).(*client.Client); ok {
		return c, args.Error(1)
	}
	return nil, args.Error(1)
}

type MockEventPublisher struct {
	mock.Mock
}

func (m *MockEventPublisher) PublishLoanStatusChanged(ctx context.Context, e event.LoanStatusChangedEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockEventPublisher) PublishPaymentRecorded(ctx context.Context, e event.PaymentRecordedEvent) error {
	return m.Called(ctx, e).Error(0)
}

func (m *MockEventPublisher) PublishClientCreated(ctx context.Context, e event.ClientCreatedEvent) error {
	return m.Called(ctx, e).Error(0)
}

func newLoanService(t *testing.T) (loan.LoanService, *MockRepository, *MockClientService, *MockEventPublisher) {
	t.Helper()
	repo := new(MockRepository)
	clients := new(MockClientService)
	pub := new(MockEventPublisher)
	logger := slog.New(slog.NewTextHandler(io.Discard, nil))
	return loan.NewLoanService(repo, clients, pub, decimal.Zero, logger), repo, clients, pub
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func activeClient(clientID int64) *client.Client {
	return &client.Client{ClientID: clientID, Name: "Amina", Active: true}
}

// openLoan builds a persisted loan one partial payment away from its due
// date, with a single unpaid interest charge of 4000 on a 10000 principal.
func openLoan(loanID int64) *loan.Loan {
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)
	return &loan.Loan{
		ID:                loanID,
		ClientID:          7,
		OriginalPrincipal: dec("10000"),
		CurrentPrincipal:  dec("10000"),
		InterestRate:      dec("0.40"),
		StartDate:         start,
		DueDate:           start.AddDate(0, 1, 0),
		Status:            loan.StatusActive,
		Charges: []loan.InterestCharge{{
			ID:          10,
			LoanID:      loanID,
			PeriodStart: start,
			PeriodEnd:   start.AddDate(0, 1, 0),
			Amount:      dec("4000"),
			AmountPaid:  decimal.Zero,
		}},
	}
}

func TestLoanServiceCreateLoan(t *testing.T) {
	ctx := context.Background()
	start := time.Date(2025, 2, 1, 0, 0, 0, 0, time.UTC)

	t.Run("creates loan and assigns it to the client", func(t *testing.T) {
		svc, repo, clients, _ := newLoanService(t)
		clients.On("GetClient", ctx, int64(7)).Return(activeClient(7), nil)
		created := openLoan(42)
		repo.On("CreateLoan", ctx, mock.AnythingOfType("*loan.Loan")).Return(created, nil)
		clients.On("AssignLoanToClient", ctx, int64(7), int64(42)).Return(nil)

		l, err := svc.CreateLoan(ctx, 7, dec("10000"), decimal.Zero, start)

		require.NoError(t, err)
		assert.Equal(t, int64(42), l.ID)
		repo.AssertExpectations(t)
		clients.AssertExpectations(t)
	})

	t.Run("zero rate picks up the configured default", func(t *testing.T) {
		repo := new(MockRepository)
		clients := new(MockClientService)
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := loan.NewLoanService(repo, clients, nil, dec("0.10"), logger)

		clients.On("GetClient", ctx, int64(7)).Return(activeClient(7), nil)
		repo.On("CreateLoan", ctx, mock.MatchedBy(func(l *loan.Loan) bool {
			return l.InterestRate.Equal(dec("0.10")) &&
				len(l.Charges) == 1 &&
				l.Charges[0].Amount.Equal(dec("1000"))
		})).Return(openLoan(42), nil)
		clients.On("AssignLoanToClient", ctx, int64(7), int64(42)).Return(nil)

		_, err := svc.CreateLoan(ctx, 7, dec("10000"), decimal.Zero, start)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("explicit rate wins over the configured default", func(t *testing.T) {
		repo := new(MockRepository)
		clients := new(MockClientService)
		logger := slog.New(slog.NewTextHandler(io.Discard, nil))
		svc := loan.NewLoanService(repo, clients, nil, dec("0.10"), logger)

		clients.On("GetClient", ctx, int64(7)).Return(activeClient(7), nil)
		repo.On("CreateLoan", ctx, mock.MatchedBy(func(l *loan.Loan) bool {
			return l.InterestRate.Equal(dec("0.25"))
		})).Return(openLoan(42), nil)
		clients.On("AssignLoanToClient", ctx, int64(7), int64(42)).Return(nil)

		_, err := svc.CreateLoan(ctx, 7, dec("10000"), dec("0.25"), start)

		require.NoError(t, err)
		repo.AssertExpectations(t)
	})

	t.Run("rejects unknown client", func(t *testing.T) {
		svc, _, clients, _ := newLoanService(t)
		clients.On("GetClient", ctx, int64(7)).Return(nil, client.ErrNotFound)

		_, err := svc.CreateLoan(ctx, 7, dec("10000"), decimal.Zero, start)

		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("rejects inactive client", func(t *testing.T) {
		svc, _, clients, _ := newLoanService(t)
		inactive := activeClient(7)
		inactive.Active = false
		clients.On("GetClient", ctx, int64(7)).Return(inactive, nil)

		_, err := svc.CreateLoan(ctx, 7, dec("10000"), decimal.Zero, start)

		assert.ErrorIs(t, err, apperrors.ErrValidation)
	})

	t.Run("rejects client with an open loan", func(t *testing.T) {
		svc, repo, clients, _ := newLoanService(t)
		existingID := int64(42)
		cl := activeClient(7)
		cl.LoanID = &existingID
		clients.On("GetClient", ctx, int64(7)).Return(cl, nil)
		repo.On("GetLoanByID", ctx, existingID).Return(openLoan(existingID), nil)

		_, err := svc.CreateLoan(ctx, 7, dec("10000"), decimal.Zero, start)

		assert.ErrorIs(t, err, client.ErrClientAlreadyHasLoan)
		repo.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
	})

	t.Run("allows a new loan once the previous one is paid off", func(t *testing.T) {
		svc, repo, clients, _ := newLoanService(t)
		existingID := int64(42)
		cl := activeClient(7)
		cl.LoanID = &existingID
		paidOff := openLoan(existingID)
		paidOff.Status = loan.StatusPaid
		clients.On("GetClient", ctx, int64(7)).Return(cl, nil)
		repo.On("GetLoanByID", ctx, existingID).Return(paidOff, nil)
		repo.On("CreateLoan", ctx, mock.AnythingOfType("*loan.Loan")).Return(openLoan(43), nil)
		clients.On("AssignLoanToClient", ctx, int64(7), int64(43)).Return(nil)

		l, err := svc.CreateLoan(ctx, 7, dec("10000"), decimal.Zero, start)

		require.NoError(t, err)
		assert.Equal(t, int64(43), l.ID)
	})

	t.Run("propagates invalid principal", func(t *testing.T) {
		svc, repo, clients, _ := newLoanService(t)
		clients.On("GetClient", ctx, int64(7)).Return(activeClient(7), nil)

		_, err := svc.CreateLoan(ctx, 7, dec("-10"), decimal.Zero, start)

		assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
		repo.AssertNotCalled(t, "CreateLoan", mock.Anything, mock.Anything)
	})
}

func TestLoanServiceGetLoan(t *testing.T) {
	ctx := context.Background()

	t.Run("maps missing rows to not found", func(t *testing.T) {
		svc, repo, _, _ := newLoanService(t)
		repo.On("GetLoanByID", ctx, int64(99)).Return(nil, pgx.ErrNoRows)

		_, err := svc.GetLoan(ctx, 99)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("wraps other repository failures", func(t *testing.T) {
		svc, repo, _, _ := newLoanService(t)
		repo.On("GetLoanByID", ctx, int64(99)).Return(nil, errors.New("connection reset"))

		_, err := svc.GetLoan(ctx, 99)

		assert.ErrorIs(t, err, apperrors.ErrInternalServer)
	})
}

func TestLoanServiceGetSummary(t *testing.T) {
	ctx := context.Background()

	svc, repo, _, _ := newLoanService(t)
	repo.On("GetLoanByID", ctx, int64(42)).Return(openLoan(42), nil)

	s, err := svc.GetSummary(ctx, 42)

	require.NoError(t, err)
	assert.Equal(t, "14000", s.TotalOwed.String())
	assert.Equal(t, "4000", s.UnpaidInterest.String())
	assert.Equal(t, "10000", s.CurrentPrincipal.String())
}

func TestLoanServiceRecordPayment(t *testing.T) {
	ctx := context.Background()
	receivedAt := time.Date(2025, 2, 10, 0, 0, 0, 0, time.UTC)

	t.Run("persists allocation and commits", func(t *testing.T) {
		svc, repo, _, pub := newLoanService(t)
		l := openLoan(42)
		repo.On("BeginTx", ctx).Return(nil, nil)
		repo.On("GetLoanForUpdate", ctx, nil, int64(42)).Return(l, nil)
		repo.On("UpdateChargeInTx", ctx, nil, mock.MatchedBy(func(c *loan.InterestCharge) bool {
			return c.ID == 10 && c.AmountPaid.Equal(dec("3000")) && !c.Paid
		})).Return(nil)
		repo.On("InsertPaymentInTx", ctx, nil, mock.MatchedBy(func(p *loan.Payment) bool {
			return p.Amount.Equal(dec("3000")) && p.ReceivedAt.Equal(receivedAt)
		})).Return(nil)
		repo.On("UpdateLoanStateInTx", ctx, nil, l).Return(nil)
		repo.On("CommitTx", ctx, nil).Return(nil)
		pub.On("PublishPaymentRecorded", ctx, mock.AnythingOfType("event.PaymentRecordedEvent")).Return(nil)
		pub.On("PublishLoanStatusChanged", ctx, mock.AnythingOfType("event.LoanStatusChangedEvent")).Return(nil)

		result, err := svc.RecordPayment(ctx, 42, dec("3000"), receivedAt)

		require.NoError(t, err)
		assert.True(t, result.Overpayment.IsZero())
		assert.Equal(t, loan.StatusPartial, l.Status)
		repo.AssertExpectations(t)
		repo.AssertNotCalled(t, "RollbackTx", mock.Anything, mock.Anything)
		pub.AssertExpectations(t)
	})

	t.Run("rolls back when the ledger rejects the amount", func(t *testing.T) {
		svc, repo, _, _ := newLoanService(t)
		repo.On("BeginTx", ctx).Return(nil, nil)
		repo.On("GetLoanForUpdate", ctx, nil, int64(42)).Return(openLoan(42), nil)
		repo.On("RollbackTx", ctx, nil).Return(nil)

		_, err := svc.RecordPayment(ctx, 42, decimal.Zero, receivedAt)

		assert.ErrorIs(t, err, apperrors.ErrInvalidAmount)
		repo.AssertCalled(t, "RollbackTx", ctx, nil)
		repo.AssertNotCalled(t, "InsertPaymentInTx", mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CommitTx", mock.Anything, mock.Anything)
	})

	t.Run("rejects payments against a settled loan", func(t *testing.T) {
		svc, repo, _, _ := newLoanService(t)
		settled := openLoan(42)
		settled.CurrentPrincipal = decimal.Zero
		settled.Charges[0].AmountPaid = settled.Charges[0].Amount
		settled.Charges[0].Paid = true
		settled.Status = loan.StatusPaid
		repo.On("BeginTx", ctx).Return(nil, nil)
		repo.On("GetLoanForUpdate", ctx, nil, int64(42)).Return(settled, nil)
		repo.On("RollbackTx", ctx, nil).Return(nil)

		_, err := svc.RecordPayment(ctx, 42, dec("100"), receivedAt)

		assert.ErrorIs(t, err, apperrors.ErrLoanFullyPaid)
	})

	t.Run("maps missing loan to not found", func(t *testing.T) {
		svc, repo, _, _ := newLoanService(t)
		repo.On("BeginTx", ctx).Return(nil, nil)
		repo.On("GetLoanForUpdate", ctx, nil, int64(99)).Return(nil, apperrors.ErrNotFound)
		repo.On("RollbackTx", ctx, nil).Return(nil)

		_, err := svc.RecordPayment(ctx, 99, dec("100"), receivedAt)

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})

	t.Run("rolls back when the commit fails", func(t *testing.T) {
		svc, repo, _, _ := newLoanService(t)
		repo.On("BeginTx", ctx).Return(nil, nil)
		repo.On("GetLoanForUpdate", ctx, nil, int64(42)).Return(openLoan(42), nil)
		repo.On("UpdateChargeInTx", ctx, nil, mock.Anything).Return(nil)
		repo.On("InsertPaymentInTx", ctx, nil, mock.Anything).Return(nil)
		repo.On("UpdateLoanStateInTx", ctx, nil, mock.Anything).Return(nil)
		repo.On("CommitTx", ctx, nil).Return(errors.New("commit failed"))
		repo.On("RollbackTx", ctx, nil).Return(nil)

		_, err := svc.RecordPayment(ctx, 42, dec("3000"), receivedAt)

		assert.ErrorIs(t, err, apperrors.ErrInternalServer)
		repo.AssertCalled(t, "RollbackTx", ctx, nil)
	})
}

func TestLoanServiceRecordAccrual(t *testing.T) {
	ctx := context.Background()

	t.Run("inserts elapsed charges and commits", func(t *testing.T) {
		svc, repo, _, _ := newLoanService(t)
		l := openLoan(42)
		asOf := l.DueDate.AddDate(0, 1, 1)
		repo.On("BeginTx", ctx).Return(nil, nil)
		repo.On("GetLoanForUpdate", ctx, nil, int64(42)).Return(l, nil)
		repo.On("InsertChargesInTx", ctx, nil, int64(42), mock.MatchedBy(func(charges []loan.InterestCharge) bool {
			return len(charges) == 2
		})).Return(nil)
		repo.On("UpdateLoanStateInTx", ctx, nil, l).Return(nil)
		repo.On("CommitTx", ctx, nil).Return(nil)

		appended, err := svc.RecordAccrual(ctx, 42, asOf)

		require.NoError(t, err)
		assert.Equal(t, 2, appended)
		repo.AssertExpectations(t)
	})

	t.Run("releases the lock when nothing is due", func(t *testing.T) {
		svc, repo, _, _ := newLoanService(t)
		l := openLoan(42)
		repo.On("BeginTx", ctx).Return(nil, nil)
		repo.On("GetLoanForUpdate", ctx, nil, int64(42)).Return(l, nil)
		repo.On("RollbackTx", ctx, nil).Return(nil)

		appended, err := svc.RecordAccrual(ctx, 42, l.DueDate)

		require.NoError(t, err)
		assert.Zero(t, appended)
		repo.AssertNotCalled(t, "InsertChargesInTx", mock.Anything, mock.Anything, mock.Anything, mock.Anything)
		repo.AssertNotCalled(t, "CommitTx", mock.Anything, mock.Anything)
	})

	t.Run("maps missing loan to not found", func(t *testing.T) {
		svc, repo, _, _ := newLoanService(t)
		repo.On("BeginTx", ctx).Return(nil, nil)
		repo.On("GetLoanForUpdate", ctx, nil, int64(99)).Return(nil, pgx.ErrNoRows)
		repo.On("RollbackTx", ctx, nil).Return(nil)

		_, err := svc.RecordAccrual(ctx, 99, time.Now())

		assert.ErrorIs(t, err, apperrors.ErrNotFound)
	})
}
