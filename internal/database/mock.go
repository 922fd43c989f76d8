package database

import (
	"github.com/stretchr/testify/mock"
)

type MockChatRepository struct {
	mock.Mock
}

func (m *MockChatRepository) Ping() error {
	args := m.Called()
	return args.Error(0)
}
func (m *MockChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	args := m.Called(params)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountById(accountId int) (User, error) {
	args := m.Called(accountId)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetAccountByEmail(email string) (User, error) {
	args := m.Called(email)
	return args.Get(0).(User), args.Error(1)
}
func (m *MockChatRepository) GetRoom(roomId string) (Room, error) {
	args := m.Called(roomId)
	return args.Get(0).(Room), args.Error(1)
}
func (m *MockChatRepository) CreateRoom(params CreateRoomParams) (bool, error) {
	args := m.Called(params)
	return args.Bool(0), args.Error(1)
}
func (m *MockChatRepository) ListRoomsForAccount(accountId int) ([]Room, error) {
	args := m.Called(accountId)
	return args.Get(0).([]Room), args.Error(1)
}
func (m *MockChatRepository) AppendMessage(roomId string, senderId int, body string) (Message, error) {
	args := m.Called(roomId, senderId, body)
	return args.Get(0).(Message), args.Error(1)
}
func (m *MockChatRepository) MarkMessagesSeen(roomId string, messageIds []string, accountId int) error {
	args := m.Called(roomId, messageIds, accountId)
	return args.Error(0)
}
func (m *MockChatRepository) GetMessages(roomId, before string, limit int) ([]Message, error) {
	args := m.Called(roomId, before, limit)
	return args.Get(0).([]Message), args.Error(1)
}
func (m *MockChatRepository) SavePushSubscription(params SavePushSubscriptionParams) error {
	args := m.Called(params)
	return args.Error(0)
}
func (m *MockChatRepository) DeletePushSubscription(accountId int, endpoint string) error {
	args := m.Called(accountId, endpoint)
	return args.Error(0)
}
func (m *MockChatRepository) DeletePushSubscriptionByEndpoint(endpoint string) error {
	args := m.Called(endpoint)
	return args.Error(0)
}
func (m *MockChatRepository) ListPushSubscriptions(accountId int) ([]PushSubscription, error) {
	args := m.Called(accountId)
	return args.Get(0).([]PushSubscription), args.Error(1)
}
