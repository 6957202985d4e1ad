package client

import (
	"context"
	"errors"
)

var (
	ErrNotFound = errors.New("client not found")

	ErrDuplicateLoanID = errors.New("loan ID already assigned to another client")

	ErrClientAlreadyHasLoan = errors.New("client already has an assigned open loan")
)

type ClientRepository interface {
	Save(ctx context.Context, c *Client) error

	FindByID(ctx context.Context, clientID int64) (*Client, error)

	FindByLoanID(ctx context.Context, loanID int64) (*Client, error)

	FindAll(ctx context.Context, activeOnly bool) ([]*Client, error)

	SetActiveStatus(ctx context.Context, clientID int64, isActive bool) error
}
