package dto

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lending-engine/internal/domain/client"
)

func TestCreateClientRequestValidate(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		req := CreateClientRequest{Name: "Aparna", Phone: "9876543210", GroupName: "Maple"}
		assert.NoError(t, req.Validate())
	})

	t.Run("rejects blank name", func(t *testing.T) {
		req := CreateClientRequest{Name: "   ", GroupName: "Maple"}
		assert.ErrorContains(t, req.Validate(), "name cannot be empty")
	})

	t.Run("rejects blank group", func(t *testing.T) {
		req := CreateClientRequest{Name: "Aparna"}
		assert.ErrorContains(t, req.Validate(), "groupName cannot be empty")
	})
}

func TestAssignLoanRequestValidate(t *testing.T) {
	t.Run("valid request", func(t *testing.T) {
		req := AssignLoanRequest{LoanID: 42}
		assert.NoError(t, req.Validate())
	})

	t.Run("rejects non-positive loan id", func(t *testing.T) {
		req := AssignLoanRequest{LoanID: 0}
		assert.ErrorContains(t, req.Validate(), "loanId must be a positive number")
	})
}

func TestNewClientResponse(t *testing.T) {
	now := time.Now()

	t.Run("client without loan", func(t *testing.T) {
		c := &client.Client{
			ClientID:   7,
			Name:       "Aparna",
			Phone:      "9876543210",
			GroupName:  "Maple",
			Active:     true,
			CreateDate: now,
			UpdatedAt:  now,
		}

		resp := NewClientResponse(c)

		assert.Equal(t, "7", resp.ClientID)
		assert.Equal(t, "Aparna", resp.Name)
		assert.True(t, resp.Active)
		assert.Nil(t, resp.LoanID)
	})

	t.Run("client with assigned loan", func(t *testing.T) {
		loanID := int64(42)
		c := &client.Client{ClientID: 7, Name: "Aparna", Active: true, LoanID: &loanID}

		resp := NewClientResponse(c)

		assert.NotNil(t, resp.LoanID)
		assert.Equal(t, "42", *resp.LoanID)
	})

	t.Run("nil client yields zero response", func(t *testing.T) {
		resp := NewClientResponse(nil)
		assert.Equal(t, ClientResponse{}, resp)
	})
}
