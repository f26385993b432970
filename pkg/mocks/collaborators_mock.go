package mocks

import (
	"context"

	"github.com/stretchr/testify/mock"

	"github.com/nova-hud/nova/pkg/models"
	"github.com/nova-hud/nova/pkg/protocol"
)

// MockCompleter is a mock implementation of protocol.Completer.
type MockCompleter struct {
	mock.Mock
}

func (m *MockCompleter) Complete(ctx context.Context, req protocol.CompletionRequest) (protocol.Completion, error) {
	args := m.Called(ctx, req)

	return args.Get(0).(protocol.Completion), args.Error(1)
}

// MockFetcher is a mock implementation of protocol.Fetcher.
type MockFetcher struct {
	mock.Mock
}

func (m *MockFetcher) Fetch(ctx context.Context, req protocol.FetchRequest) (models.NodeOutput, error) {
	args := m.Called(ctx, req)

	return args.Get(0).(models.NodeOutput), args.Error(1)
}

// MockDispatcher is a mock implementation of protocol.Dispatcher.
type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) Dispatch(ctx context.Context, req protocol.DispatchRequest) ([]protocol.DispatchResult, error) {
	args := m.Called(ctx, req)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}

	return args.Get(0).([]protocol.DispatchResult), args.Error(1)
}
