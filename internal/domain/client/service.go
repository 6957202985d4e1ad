package client

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"os"
	"strings"
	"time"

	"lending-engine/internal/event"
)

const clientNotFound = "Client not found by repository"

type ClientService interface {
	CreateNewClient(ctx context.Context, name, phone, groupName string) (*Client, error)
	GetClient(ctx context.Context, clientID int64) (*Client, error)
	ListActiveClients(ctx context.Context) ([]*Client, error)
	AssignLoanToClient(ctx context.Context, clientID int64, loanID int64) error
	DeactivateClient(ctx context.Context, clientID int64) error
	ReactivateClient(ctx context.Context, clientID int64) error
	FindClientByLoan(ctx context.Context, loanID int64) (*Client, error)
}

var _ ClientService = (*clientService)(nil)

type clientService struct {
	repo   ClientRepository
	pub    event.EventPublisher
	logger *slog.Logger
}

func NewClientService(repo ClientRepository, eventPublisher event.EventPublisher, logger *slog.Logger) ClientService {
	if repo == nil {
		panic("client repository cannot be nil")
	}
	if logger == nil {
		logger = slog.New(slog.NewTextHandler(os.Stderr, &slog.HandlerOptions{Level: slog.LevelWarn}))
		logger.Warn("Warning: No logger provided to NewClientService, using default stderr handler")
	}
	if eventPublisher == nil {
		eventPublisher = event.NoopPublisher{}
	}

	return &clientService{
		repo:   repo,
		pub:    eventPublisher,
		logger: logger.With(slog.String("component", "clientService")),
	}
}

func (s *clientService) CreateNewClient(ctx context.Context, name, phone, groupName string) (*Client, error) {
	s.logger.InfoContext(ctx, "Attempting to create new client")

	name = strings.TrimSpace(name)
	phone = strings.TrimSpace(phone)
	groupName = strings.TrimSpace(groupName)
	if name == "" {
		s.logger.WarnContext(ctx, "Validation failed: name is empty")
		return nil, errors.New("client name cannot be empty")
	}

	c := NewClient(name, phone, groupName)

	if err := s.repo.Save(ctx, c); err != nil {
		s.logger.ErrorContext(ctx, "Repository failed to save new client", slog.Any("error", err))
		return nil, fmt.Errorf("failed to save new client: %w", err)
	}

	createdEvent := event.ClientCreatedEvent{
		ClientID:  c.ClientID,
		Name:      c.Name,
		GroupName: c.GroupName,
		Timestamp: time.Now(),
	}
	if pubErr := s.pub.PublishClientCreated(ctx, createdEvent); pubErr != nil {
		s.logger.ErrorContext(ctx, "Client created, but failed to publish creation event", slog.Any("error", pubErr))
	}

	s.logger.InfoContext(ctx, "Successfully created new client", slog.Int64("clientID", c.ClientID))
	return c, nil
}

func (s *clientService) GetClient(ctx context.Context, clientID int64) (*Client, error) {
	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, clientNotFound, slog.Int64("clientID", clientID))
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error finding client", slog.Any("error", err))
		return nil, fmt.Errorf("failed to get client %d: %w", clientID, err)
	}
	return c, nil
}

func (s *clientService) ListActiveClients(ctx context.Context) ([]*Client, error) {
	clients, err := s.repo.FindAll(ctx, true)
	if err != nil {
		s.logger.ErrorContext(ctx, "Repository error listing active clients", slog.Any("error", err))
		return nil, fmt.Errorf("failed to list active clients: %w", err)
	}
	s.logger.InfoContext(ctx, "Retrieved active clients", slog.Int("count", len(clients)))
	return clients, nil
}

func (s *clientService) AssignLoanToClient(ctx context.Context, clientID int64, loanID int64) error {
	s.logger.InfoContext(ctx, "Attempting to assign loan to client", slog.Int64("clientID", clientID), slog.Int64("loanID", loanID))

	if loanID <= 0 {
		s.logger.WarnContext(ctx, "Validation failed: invalid loan ID provided")
		return errors.New("invalid loan ID provided")
	}

	c, err := s.repo.FindByID(ctx, clientID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, clientNotFound)
			return ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error finding client", slog.Any("error", err))
		return fmt.Errorf("cannot find client %d to assign loan: %w", clientID, err)
	}

	if !c.Active {
		s.logger.WarnContext(ctx, "Business rule failed: cannot assign loan to inactive client")
		return fmt.Errorf("cannot assign loan to inactive client %d", clientID)
	}

	if c.LoanID != nil {
		if *c.LoanID == loanID {
			s.logger.InfoContext(ctx, "Loan already assigned to this client, no action needed")
			return nil
		}
		s.logger.WarnContext(ctx, "Business rule failed: client already has a different loan assigned", slog.Int64("existing_loanID", *c.LoanID))
		return fmt.Errorf("%w (LoanID: %d)", ErrClientAlreadyHasLoan, *c.LoanID)
	}

	c.AssignLoan(loanID)
	if err := s.repo.Save(ctx, c); err != nil {
		if errors.Is(err, ErrDuplicateLoanID) {
			s.logger.WarnContext(ctx, "Duplicate loan ID conflict detected during save")
			return ErrDuplicateLoanID
		}
		if errors.Is(err, ErrNotFound) {
			s.logger.ErrorContext(ctx, "Client disappeared before save could complete")
			return ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository failed to save loan assignment", slog.Any("error", err))
		return fmt.Errorf("failed to save loan assignment for client %d: %w", clientID, err)
	}

	s.logger.InfoContext(ctx, "Successfully assigned loan to client")
	return nil
}

func (s *clientService) DeactivateClient(ctx context.Context, clientID int64) error {
	err := s.repo.SetActiveStatus(ctx, clientID, false)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, clientNotFound, slog.Int64("clientID", clientID))
			return ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error deactivating client", slog.Any("error", err))
		return fmt.Errorf("failed to deactivate client %d: %w", clientID, err)
	}
	s.logger.InfoContext(ctx, "Successfully deactivated client", slog.Int64("clientID", clientID))
	return nil
}

func (s *clientService) ReactivateClient(ctx context.Context, clientID int64) error {
	err := s.repo.SetActiveStatus(ctx, clientID, true)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, clientNotFound, slog.Int64("clientID", clientID))
			return ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error reactivating client", slog.Any("error", err))
		return fmt.Errorf("failed to reactivate client %d: %w", clientID, err)
	}
	s.logger.InfoContext(ctx, "Successfully reactivated client", slog.Int64("clientID", clientID))
	return nil
}

func (s *clientService) FindClientByLoan(ctx context.Context, loanID int64) (*Client, error) {
	c, err := s.repo.FindByLoanID(ctx, loanID)
	if err != nil {
		if errors.Is(err, ErrNotFound) {
			s.logger.WarnContext(ctx, "Client not found by repository for this loan ID", slog.Int64("loanID", loanID))
			return nil, ErrNotFound
		}
		s.logger.ErrorContext(ctx, "Repository error finding client by loan ID", slog.Any("error", err))
		return nil, fmt.Errorf("failed to find client by loan ID %d: %w", loanID, err)
	}
	return c, nil
}
