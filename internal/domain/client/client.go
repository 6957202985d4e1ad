package client

import "time"

// Client is a borrower record. Lending groups are a bookkeeping label
// carried on the client; group membership has no effect on the ledger.
type Client struct {
	ClientID   int64     `json:"clientId"`
	Name       string    `json:"name"`
	Phone      string    `json:"phone"`
	GroupName  string    `json:"groupName,omitempty"`
	Active     bool      `json:"active"`
	LoanID     *int64    `json:"loanId,omitempty"`
	CreateDate time.Time `json:"createDate"`
	UpdatedAt  time.Time `json:"updatedAt"`
}

func NewClient(name, phone, groupName string) *Client {
	now := time.Now()
	return &Client{
		Name:       name,
		Phone:      phone,
		GroupName:  groupName,
		Active:     true,
		LoanID:     nil,
		CreateDate: now,
		UpdatedAt:  now,
	}
}

func (c *Client) AssignLoan(loanID int64) {
	c.LoanID = &loanID
	c.UpdatedAt = time.Now()
}

func (c *Client) Deactivate() {
	if c.Active {
		c.Active = false
		c.UpdatedAt = time.Now()
	}
}

func (c *Client) Reactivate() {
	if !c.Active {
		c.Active = true
		c.UpdatedAt = time.Now()
	}
}
