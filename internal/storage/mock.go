package storage

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/canvaslab/mention-core/pkg/canvas"
)

type MockBackend struct {
	mock.Mock
}

func (m *MockBackend) GetItem(ctx context.Context, scopeID, id string) (*canvas.Item, error) {
	args := m.Called(ctx, scopeID, id)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*canvas.Item), args.Error(1)
}

func (m *MockBackend) FindItemByTitle(ctx context.Context, scopeID, title string) (*canvas.Item, error) {
	args := m.Called(ctx, scopeID, title)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*canvas.Item), args.Error(1)
}

func (m *MockBackend) CreateItem(ctx context.Context, item canvas.Item) (*canvas.Item, error) {
	args := m.Called(ctx, item)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*canvas.Item), args.Error(1)
}

func (m *MockBackend) DeleteItem(ctx context.Context, scopeID, id string) error {
	args := m.Called(ctx, scopeID, id)
	return args.Error(0)
}

func (m *MockBackend) ListItems(ctx context.Context, scopeID string) ([]canvas.Item, error) {
	args := m.Called(ctx, scopeID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]canvas.Item), args.Error(1)
}

func (m *MockBackend) GetStatistics(ctx context.Context) (map[string]int, error) {
	args := m.Called(ctx)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(map[string]int), args.Error(1)
}

func (m *MockBackend) ListOutgoing(ctx context.Context, sourceID string) ([]canvas.Link, error) {
	args := m.Called(ctx, sourceID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).([]canvas.Link), args.Error(1)
}

func (m *MockBackend) UpsertLink(ctx context.Context, sourceID, targetID, snippet string) error {
	args := m.Called(ctx, sourceID, targetID, snippet)
	return args.Error(0)
}

func (m *MockBackend) DeleteLink(ctx context.Context, sourceID, targetID string) error {
	args := m.Called(ctx, sourceID, targetID)
	return args.Error(0)
}

func (m *MockBackend) Close() error {
	args := m.Called()
	return args.Error(0)
}
