package chat

import (
	"context"

	"github.com/stretchr/testify/mock"
)

type MockDispatcher struct {
	mock.Mock
}

func (m *MockDispatcher) NotifyOffline(ctx context.Context, roomId string, senderId int, text string) error {
	args := m.Called(ctx, roomId, senderId, text)
	return args.Error(0)
}
