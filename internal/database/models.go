package database

import "time"

type User struct {
	Id           int
	Username     string
	EmailAddress string
	AvatarUrl    string
	PasswordHash string
	CreatedAt    time.Time
	UpdatedAt    time.Time
}

// Room is a 1:1 conversation. The participant columns are ordered so that
// ParticipantA < ParticipantB, matching the deterministic room id. The
// *Name/*Avatar columns are snapshots taken at creation time, and the
// last_message_* columns are the denormalized summary of the newest message.
type Room struct {
	Id                  string
	ParticipantA        int
	ParticipantB        int
	ParticipantAName    string
	ParticipantAAvatar  string
	ParticipantBName    string
	ParticipantBAvatar  string
	LastMessageText     string
	LastMessageSenderId int
	LastMessageAt       time.Time
	LastMessageSeenBy   []int64
	CreatedAt           time.Time
}

type Message struct {
	Id        string
	RoomId    string
	SenderId  int
	Body      string
	SeenBy    []int64
	CreatedAt time.Time
}

type PushSubscription struct {
	Id        int
	AccountId int
	Endpoint  string
	P256dh    string
	Auth      string
	CreatedAt time.Time
}

type CreateAccountParams struct {
	Username     string
	EmailAddress string
	AvatarUrl    string
	PasswordHash string
}

type UpdateAccountParams struct {
	UserId       int
	Username     string
	AvatarUrl    string
	PasswordHash string
}

type CreateRoomParams struct {
	Id                 string
	ParticipantA       int
	ParticipantB       int
	ParticipantAName   string
	ParticipantAAvatar string
	ParticipantBName   string
	ParticipantBAvatar string
	// Synthetic "room created" summary, stamped with the creating user.
	LastMessageText     string
	LastMessageSenderId int
}

type SavePushSubscriptionParams struct {
	AccountId int
	Endpoint  string
	P256dh    string
	Auth      string
}
