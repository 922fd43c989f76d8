package presence

import (
	"context"

	"github.com/skillswap/skillswap-chat/internal/types"
	"github.com/stretchr/testify/mock"
)

type MockTracker struct {
	mock.Mock
}

func (m *MockTracker) Connect(ctx context.Context, userId int) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}
func (m *MockTracker) Heartbeat(ctx context.Context, userId int) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}
func (m *MockTracker) Disconnect(ctx context.Context, userId int) error {
	args := m.Called(ctx, userId)
	return args.Error(0)
}
func (m *MockTracker) Get(ctx context.Context, userId int) (types.PresenceRecord, bool, error) {
	args := m.Called(ctx, userId)
	return args.Get(0).(types.PresenceRecord), args.Bool(1), args.Error(2)
}
func (m *MockTracker) Watch(ctx context.Context, userId int) (<-chan types.PresenceRecord, error) {
	args := m.Called(ctx, userId)
	if ch, ok := args.Get(0).(chan types.PresenceRecord); ok {
		return ch, args.Error(1)
	}
	return nil, args.Error(1)
}
