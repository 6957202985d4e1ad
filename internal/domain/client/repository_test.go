package client

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockClientRepository struct {
	mock.Mock
}

func (_m *MockClientRepository) Save(ctx context.Context, c *Client) error {
	ret := _m.Called(ctx, c)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, *Client) error); ok {
		r0 = rf(ctx, c)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

func (_m *MockClientRepository) FindByID(ctx context.Context, clientID int64) (*Client, error) {
	ret := _m.Called(ctx, clientID)

	var r0 *Client
	if rf, ok := ret.Get(0).(func(context.Context, int64) *Client); ok {
		r0 = rf(ctx, clientID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*Client)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, int64) error); ok {
		r1 = rf(ctx, clientID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockClientRepository) FindByLoanID(ctx context.Context, loanID int64) (*Client, error) {
	ret := _m.Called(ctx, loanID)

	var r0 *Client
	if rf, ok := ret.Get(0).(func(context.Context, int64) *Client); ok {
		r0 = rf(ctx, loanID)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).(*Client)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, int64) error); ok {
		r1 = rf(ctx, loanID)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockClientRepository) FindAll(ctx context.Context, activeOnly bool) ([]*Client, error) {
	ret := _m.Called(ctx, activeOnly)

	var r0 []*Client
	if rf, ok := ret.Get(0).(func(context.Context, bool) []*Client); ok {
		r0 = rf(ctx, activeOnly)
	} else {
		if ret.Get(0) != nil {
			r0 = ret.Get(0).([]*Client)
		}
	}

	var r1 error
	if rf, ok := ret.Get(1).(func(context.Context, bool) error); ok {
		r1 = rf(ctx, activeOnly)
	} else {
		r1 = ret.Error(1)
	}

	return r0, r1
}

func (_m *MockClientRepository) SetActiveStatus(ctx context.Context, clientID int64, isActive bool) error {
	ret := _m.Called(ctx, clientID, isActive)

	var r0 error
	if rf, ok := ret.Get(0).(func(context.Context, int64, bool) error); ok {
		r0 = rf(ctx, clientID, isActive)
	} else {
		r0 = ret.Error(0)
	}

	return r0
}

var _ ClientRepository = (*MockClientRepository)(nil)
