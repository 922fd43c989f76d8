package database

import "errors"

// ErrNotParticipant is returned when an account acts on a room it does not
// belong to. Missing rows surface as sql.ErrNoRows.
var ErrNotParticipant = errors.New("account is not a participant of the room")

type ChatRepository interface {
	Ping() error
	CreateAccount(params CreateAccountParams) (User, error)
	UpdateAccount(params UpdateAccountParams) (User, error)
	GetAccountById(accountId int) (User, error)
	GetAccountByEmail(email string) (User, error)
	GetRoom(roomId string) (Room, error)
	CreateRoom(params CreateRoomParams) (bool, error)
	ListRoomsForAccount(accountId int) ([]Room, error)
	AppendMessage(roomId string, senderId int, body string) (Message, error)
	MarkMessagesSeen(roomId string, messageIds []string, accountId int) error
	GetMessages(roomId, before string, limit int) ([]Message, error)
	SavePushSubscription(params SavePushSubscriptionParams) error
	DeletePushSubscription(accountId int, endpoint string) error
	DeletePushSubscriptionByEndpoint(endpoint string) error
	ListPushSubscriptions(accountId int) ([]PushSubscription, error)
}
