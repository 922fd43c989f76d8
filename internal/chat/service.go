package chat

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"log"
	"strings"

	"github.com/skillswap/skillswap-chat/internal/database"
	"github.com/skillswap/skillswap-chat/internal/stats"
	"github.com/skillswap/skillswap-chat/internal/types"
)

const chatCreatedText = "Chat created"

// Dispatcher delivers push notifications for messages sent while the
// recipient is offline. Implemented by the push package.
type Dispatcher interface {
	NotifyOffline(ctx context.Context, roomId string, senderId int, text string) error
}

// Service orchestrates room creation, message sends and seen receipts.
// The caller's identity is always an explicit parameter supplied by the
// serving layer from a verified session.
type Service struct {
	log        *log.Logger
	db         database.ChatRepository
	dispatcher Dispatcher
	stats      stats.StatsProvider
}

func NewService(logger *log.Logger, db database.ChatRepository, dispatcher Dispatcher, su stats.StatsProvider) *Service {
	su.RegisterMetric("TotalMessagesSent")
	su.RegisterMetric("TotalRoomsCreated")

	return &Service{
		log:        logger,
		db:         db,
		dispatcher: dispatcher,
		stats:      su,
	}
}

// CreateOrGetRoom returns the room for the caller and the other user,
// creating it on first contact. Creation snapshots both users' public
// profiles and seeds the last-message summary with a synthetic entry
// stamped with the caller. Repeated and concurrent calls from either
// direction converge on the same room.
func (s *Service) CreateOrGetRoom(ctx context.Context, callerId, otherId int) (types.Room, error) {
	if callerId == otherId {
		return types.Room{}, ErrSelfChat
	}

	roomId := RoomId(callerId, otherId)

	room, err := s.db.GetRoom(roomId)
	if err == nil {
		return toRoom(room), nil
	}
	if !errors.Is(err, sql.ErrNoRows) {
		return types.Room{}, fmt.Errorf("get room: %w", err)
	}

	caller, err := s.db.GetAccountById(callerId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrUserNotFound
		}
		return types.Room{}, fmt.Errorf("get caller account: %w", err)
	}

	other, err := s.db.GetAccountById(otherId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrUserNotFound
		}
		return types.Room{}, fmt.Errorf("get other account: %w", err)
	}

	a, b := caller, other
	if b.Id < a.Id {
		a, b = b, a
	}

	created, err := s.db.CreateRoom(database.CreateRoomParams{
		Id:                  roomId,
		ParticipantA:        a.Id,
		ParticipantB:        b.Id,
		ParticipantAName:    a.Username,
		ParticipantAAvatar:  a.AvatarUrl,
		ParticipantBName:    b.Username,
		ParticipantBAvatar:  b.AvatarUrl,
		LastMessageText:     chatCreatedText,
		LastMessageSenderId: callerId,
	})
	if err != nil {
		return types.Room{}, fmt.Errorf("create room: %w", err)
	}

	if created {
		s.stats.Incr("TotalRoomsCreated")
	}

	// Re-read so a concurrent creator's row wins over our params.
	room, err = s.db.GetRoom(roomId)
	if err != nil {
		return types.Room{}, fmt.Errorf("get room after create: %w", err)
	}

	return toRoom(room), nil
}

// SendMessage appends a message to the room's log and updates the room's
// last-message summary atomically. After the commit the offline-recipient
// notification is dispatched best-effort; a dispatch failure never fails
// the send.
func (s *Service) SendMessage(ctx context.Context, callerId int, roomId, text string) (types.Message, error) {
	text = strings.TrimSpace(text)
	if text == "" {
		return types.Message{}, ErrEmptyMessage
	}

	msg, err := s.db.AppendMessage(roomId, callerId, text)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Message{}, ErrRoomNotFound
		}
		if errors.Is(err, database.ErrNotParticipant) {
			return types.Message{}, ErrNotParticipant
		}
		return types.Message{}, fmt.Errorf("append message: %w", err)
	}

	s.stats.Incr("TotalMessagesSent")

	if s.dispatcher != nil {
		if err := s.dispatcher.NotifyOffline(ctx, roomId, callerId, text); err != nil {
			s.log.Printf("notify offline user for room %q: %v", roomId, err)
		}
	}

	return toMessage(msg), nil
}

// MarkSeen adds the caller to the seen-by set of each given message and to
// the room's last-message summary. All updates are idempotent unions, so
// replaying the call produces the same final state.
func (s *Service) MarkSeen(ctx context.Context, callerId int, roomId string, messageIds []string) error {
	if len(messageIds) == 0 {
		return nil
	}

	room, err := s.db.GetRoom(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return ErrRoomNotFound
		}
		return fmt.Errorf("get room: %w", err)
	}

	if !isParticipant(room, callerId) {
		return ErrNotParticipant
	}

	if err := s.db.MarkMessagesSeen(roomId, messageIds, callerId); err != nil {
		return fmt.Errorf("mark messages seen: %w", err)
	}

	return nil
}

// Room returns a single room, restricted to its participants.
func (s *Service) Room(ctx context.Context, callerId int, roomId string) (types.Room, error) {
	room, err := s.db.GetRoom(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return types.Room{}, ErrRoomNotFound
		}
		return types.Room{}, fmt.Errorf("get room: %w", err)
	}

	if !isParticipant(room, callerId) {
		return types.Room{}, ErrNotParticipant
	}

	return toRoom(room), nil
}

// ListRooms returns the caller's rooms with their last-message summaries,
// newest activity first.
func (s *Service) ListRooms(ctx context.Context, callerId int) ([]types.Room, error) {
	dbRooms, err := s.db.ListRoomsForAccount(callerId)
	if err != nil {
		return nil, fmt.Errorf("list rooms: %w", err)
	}

	rooms := make([]types.Room, len(dbRooms))
	for i, r := range dbRooms {
		rooms[i] = toRoom(r)
	}

	return rooms, nil
}

// Messages returns a page of a room's log, restricted to its participants.
func (s *Service) Messages(ctx context.Context, callerId int, roomId, before string, limit int) ([]types.Message, error) {
	room, err := s.db.GetRoom(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil, ErrRoomNotFound
		}
		return nil, fmt.Errorf("get room: %w", err)
	}

	if !isParticipant(room, callerId) {
		return nil, ErrNotParticipant
	}

	dbMsgs, err := s.db.GetMessages(roomId, before, limit)
	if err != nil {
		return nil, fmt.Errorf("get messages: %w", err)
	}

	msgs := make([]types.Message, len(dbMsgs))
	for i, m := range dbMsgs {
		msgs[i] = toMessage(m)
	}

	return msgs, nil
}

func isParticipant(room database.Room, accountId int) bool {
	return accountId == room.ParticipantA || accountId == room.ParticipantB
}

func toSeenBy(ids []int64) []int {
	seenBy := make([]int, len(ids))
	for i, id := range ids {
		seenBy[i] = int(id)
	}
	return seenBy
}

func toRoom(r database.Room) types.Room {
	return types.Room{
		Id:           r.Id,
		Participants: []int{r.ParticipantA, r.ParticipantB},
		ParticipantInfo: []types.ParticipantInfo{
			{UserId: r.ParticipantA, Name: r.ParticipantAName, Avatar: r.ParticipantAAvatar},
			{UserId: r.ParticipantB, Name: r.ParticipantBName, Avatar: r.ParticipantBAvatar},
		},
		LastMessage: &types.LastMessage{
			Text:      r.LastMessageText,
			SenderId:  r.LastMessageSenderId,
			Timestamp: r.LastMessageAt,
			SeenBy:    toSeenBy(r.LastMessageSeenBy),
		},
		CreatedAt: r.CreatedAt,
	}
}

func toMessage(m database.Message) types.Message {
	return types.Message{
		Id:        m.Id,
		RoomId:    m.RoomId,
		SenderId:  m.SenderId,
		Text:      m.Body,
		SeenBy:    toSeenBy(m.SeenBy),
		Timestamp: m.CreatedAt,
	}
}
