package types

import (
	"time"
)

type User struct {
	Id           int       `json:"id"`
	Username     string    `json:"username"`
	EmailAddress string    `json:"email_address,omitempty"`
	AvatarUrl    string    `json:"avatar_url,omitempty"`
	Password     string    `json:"-"`
	CreatedAt    time.Time `json:"created_at,omitempty"`
	UpdatedAt    time.Time `json:"updated_at,omitempty"`
}

// ParticipantInfo is the denormalized profile snapshot stored on a room
// at creation time. It is not live-updated when the account changes.
type ParticipantInfo struct {
	UserId int    `json:"user_id"`
	Name   string `json:"name"`
	Avatar string `json:"avatar,omitempty"`
}

// LastMessage is the summary of the newest message in a room, kept on the
// room itself so list views don't scan the message log.
type LastMessage struct {
	Text      string    `json:"text"`
	SenderId  int       `json:"sender_id"`
	Timestamp time.Time `json:"timestamp"`
	SeenBy    []int     `json:"seen_by"`
}

type Room struct {
	Id              string            `json:"id"`
	Participants    []int             `json:"participants"`
	ParticipantInfo []ParticipantInfo `json:"participant_info"`
	LastMessage     *LastMessage      `json:"last_message,omitempty"`
	CreatedAt       time.Time         `json:"created_at,omitempty"`
}

type Message struct {
	Id        string    `json:"id"`
	RoomId    string    `json:"room_id"`
	SenderId  int       `json:"sender_id"`
	Text      string    `json:"text"`
	SeenBy    []int     `json:"seen_by"`
	Timestamp time.Time `json:"timestamp"`
}

// PresenceRecord is the single mutable online/offline record per user.
type PresenceRecord struct {
	IsOnline bool      `json:"is_online"`
	LastSeen time.Time `json:"last_seen"`
}

type PushData struct {
	Url string `json:"url"`
}

// PushPayload is the wire format delivered to the browser's push handler.
type PushPayload struct {
	Title string   `json:"title"`
	Body  string   `json:"body"`
	Icon  string   `json:"icon,omitempty"`
	Data  PushData `json:"data"`
}

type PushSubscription struct {
	Endpoint string `json:"endpoint"`
	P256dh   string `json:"p256dh"`
	Auth     string `json:"auth"`
}
