package chat

import "errors"

var (
	// ErrSelfChat is returned when a user attempts to open a room with
	// themselves.
	ErrSelfChat = errors.New("cannot create a chat room with yourself")
	// ErrEmptyMessage is returned when a message is empty after trimming.
	ErrEmptyMessage = errors.New("message cannot be empty")
	ErrRoomNotFound = errors.New("room not found")
	ErrUserNotFound = errors.New("user not found")
	// ErrNotParticipant is returned when a user acts on a room they do not
	// belong to.
	ErrNotParticipant = errors.New("user is not a participant of this chat room")
)
