// Package mocks provides test doubles for the store package.
package mocks

import (
	"context"
	"time"

	mock "github.com/stretchr/testify/mock"

	model "github.com/sells-group/brand-research/internal/model"
	store "github.com/sells-group/brand-research/internal/store"
)

// MockStore is a mock type for the Store interface.
type MockStore struct {
	mock.Mock
}

var _ store.Store = (*MockStore)(nil)

// SaveProfile provides a mock function with given fields: ctx, rec
func (_m *MockStore) SaveProfile(ctx context.Context, rec *model.ProfileRecord) error {
	ret := _m.Called(ctx, rec)
	if rf, ok := ret.Get(0).(func(context.Context, *model.ProfileRecord) error); ok {
		return rf(ctx, rec)
	}
	return ret.Error(0)
}

// GetProfile provides a mock function with given fields: ctx, id
func (_m *MockStore) GetProfile(ctx context.Context, id string) (*model.ProfileRecord, error) {
	ret := _m.Called(ctx, id)
	var r0 *model.ProfileRecord
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.ProfileRecord)
	}
	return r0, ret.Error(1)
}

// ListProfiles provides a mock function with given fields: ctx, limit, offset
func (_m *MockStore) ListProfiles(ctx context.Context, limit, offset int) ([]model.ProfileRecord, error) {
	ret := _m.Called(ctx, limit, offset)
	var r0 []model.ProfileRecord
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.ProfileRecord)
	}
	return r0, ret.Error(1)
}

// CreatePosts provides a mock function with given fields: ctx, posts
func (_m *MockStore) CreatePosts(ctx context.Context, posts []model.Post) error {
	ret := _m.Called(ctx, posts)
	if rf, ok := ret.Get(0).(func(context.Context, []model.Post) error); ok {
		return rf(ctx, posts)
	}
	return ret.Error(0)
}

// GetPost provides a mock function with given fields: ctx, id
func (_m *MockStore) GetPost(ctx context.Context, id string) (*model.Post, error) {
	ret := _m.Called(ctx, id)
	var r0 *model.Post
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Post)
	}
	return r0, ret.Error(1)
}

// ListPosts provides a mock function with given fields: ctx, filter
func (_m *MockStore) ListPosts(ctx context.Context, filter store.PostFilter) ([]model.Post, error) {
	ret := _m.Called(ctx, filter)
	var r0 []model.Post
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Post)
	}
	return r0, ret.Error(1)
}

// SchedulePost provides a mock function with given fields: ctx, id, at
func (_m *MockStore) SchedulePost(ctx context.Context, id string, at time.Time) (*model.Post, error) {
	ret := _m.Called(ctx, id, at)
	var r0 *model.Post
	if ret.Get(0) != nil {
		r0 = ret.Get(0).(*model.Post)
	}
	return r0, ret.Error(1)
}

// ClaimDuePosts provides a mock function with given fields: ctx, now, limit
func (_m *MockStore) ClaimDuePosts(ctx context.Context, now time.Time, limit int) ([]model.Post, error) {
	ret := _m.Called(ctx, now, limit)
	var r0 []model.Post
	if ret.Get(0) != nil {
		r0 = ret.Get(0).([]model.Post)
	}
	return r0, ret.Error(1)
}

// UpdatePostStatus provides a mock function with given fields: ctx, id, update
func (_m *MockStore) UpdatePostStatus(ctx context.Context, id string, update store.PostUpdate) error {
	ret := _m.Called(ctx, id, update)
	return ret.Error(0)
}

// Ping provides a mock function with given fields: ctx
func (_m *MockStore) Ping(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

// Migrate provides a mock function with given fields: ctx
func (_m *MockStore) Migrate(ctx context.Context) error {
	ret := _m.Called(ctx)
	return ret.Error(0)
}

// Close provides a mock function with no fields
func (_m *MockStore) Close() error {
	ret := _m.Called()
	return ret.Error(0)
}

// NewMockStore creates a new instance of MockStore. It also registers a
// cleanup function to assert the mocks expectations.
func NewMockStore(t interface {
	mock.TestingT
	Cleanup(func())
}) *MockStore {
	m := &MockStore{}
	m.Mock.Test(t)
	t.Cleanup(func() { m.AssertExpectations(t) })
	return m
}
