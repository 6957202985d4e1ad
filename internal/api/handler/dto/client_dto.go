package dto

import (
	"fmt"
	"strconv"
	"strings"
	"time"

	"lending-engine/internal/domain/client"
)

type CreateClientRequest struct {
	Name      string `json:"name"`
	Phone     string `json:"phone"`
	GroupName string `json:"groupName"`
}

func (r *CreateClientRequest) Validate() error {
	if strings.TrimSpace(r.Name) == "" {
		return fmt.Errorf("name cannot be empty")
	}
	if strings.TrimSpace(r.GroupName) == "" {
		return fmt.Errorf("groupName cannot be empty")
	}
	return nil
}

type AssignLoanRequest struct {
	LoanID int64 `json:"loanId"`
}

func (r *AssignLoanRequest) Validate() error {
	if r.LoanID <= 0 {
		return fmt.Errorf("loanId must be a positive number")
	}
	return nil
}

type ClientResponse struct {
	ClientID   string    `json:"clientId"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	GroupName  string    `json:"groupName"`
	Active     bool      `json:"active"`
	LoanID     *string   `json:"loanId,omitempty"`
	CreateDate time.Time `json:"createDate"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewClientResponse(c *client.Client) ClientResponse {
	if c == nil {
		return ClientResponse{}
	}

	var loanIDStr *string
	if c.LoanID != nil {
		s := strconv.FormatInt(*c.LoanID, 10)
		loanIDStr = &s
	}

	return ClientResponse{
		ClientID:   strconv.FormatInt(c.ClientID, 10),
		Name:       c.Name,
		Phone:      c.Phone,
		GroupName:  c.GroupName,
		Active:     c.Active,
		LoanID:     loanIDStr,
		CreateDate: c.CreateDate,
		UpdatedAt:  c.UpdatedAt,
	}
}
