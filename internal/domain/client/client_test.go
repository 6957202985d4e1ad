package client_test

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"

	"lending-engine/internal/domain/client"
)

func TestNewClient(t *testing.T) {
	timeBefore := time.Now()
	c := client.NewClient("Amina Yusuf", "0712345678", "Umoja Group")
	timeAfter := time.Now()

	assert.NotNil(t, c)
	assert.Equal(t, "Amina Yusuf", c.Name)
	assert.Equal(t, "0712345678", c.Phone)
	assert.Equal(t, "Umoja Group", c.GroupName)
	assert.True(t, c.Active, "new client should be active")
	assert.Nil(t, c.LoanID, "new client should have no loan")
	assert.Equal(t, int64(0), c.ClientID)

	assert.False(t, c.CreateDate.IsZero())
	assert.Equal(t, c.CreateDate, c.UpdatedAt)
	assert.True(t, !c.CreateDate.Before(timeBefore) && !c.CreateDate.After(timeAfter))
}

func TestClient_AssignLoan(t *testing.T) {
	c := client.NewClient("Bobi Wine", "0700000001", "")
	initialUpdateTime := c.UpdatedAt
	loanID := int64(101)

	time.Sleep(1 * time.Millisecond)
	c.AssignLoan(loanID)

	assert.NotNil(t, c.LoanID)
	if c.LoanID != nil {
		assert.Equal(t, loanID, *c.LoanID)
	}
	assert.True(t, c.UpdatedAt.After(initialUpdateTime))
}

func TestClient_Deactivate(t *testing.T) {
	t.Run("deactivates an active client", func(t *testing.T) {
		c := client.NewClient("Grace Achieng", "0700000002", "Umoja Group")
		initialUpdateTime := c.UpdatedAt

		time.Sleep(1 * time.Millisecond)
		c.Deactivate()

		assert.False(t, c.Active)
		assert.True(t, c.UpdatedAt.After(initialUpdateTime))
	})

	t.Run("already inactive client is untouched", func(t *testing.T) {
		c := client.NewClient("Hassan Omar", "0700000003", "")
		c.Active = false
		initialUpdateTime := time.Now()
		c.UpdatedAt = initialUpdateTime

		time.Sleep(1 * time.Millisecond)
		c.Deactivate()

		assert.False(t, c.Active)
		assert.Equal(t, initialUpdateTime, c.UpdatedAt)
	})
}

func TestClient_Reactivate(t *testing.T) {
	t.Run("reactivates an inactive client", func(t *testing.T) {
		c := client.NewClient("Janet Wanjiru", "0700000004", "")
		c.Active = false
		initialUpdateTime := time.Now()
		c.UpdatedAt = initialUpdateTime

		time.Sleep(1 * time.Millisecond)
		c.Reactivate()

		assert.True(t, c.Active)
		assert.True(t, c.UpdatedAt.After(initialUpdateTime))
	})

	t.Run("already active client is untouched", func(t *testing.T) {
		c := client.NewClient("Kito Mbeki", "0700000005", "")
		initialUpdateTime := c.UpdatedAt

		time.Sleep(1 * time.Millisecond)
		c.Reactivate()

		assert.True(t, c.Active)
		assert.Equal(t, initialUpdateTime, c.UpdatedAt)
	})
}
