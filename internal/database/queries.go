package database

import (
	"fmt"
	"time"

	"github.com/lib/pq"
	"github.com/oklog/ulid/v2"
)

const roomColumns = "id, participant_a, participant_b, " +
	"participant_a_name, participant_a_avatar, participant_b_name, participant_b_avatar, " +
	"last_message_text, last_message_sender_id, last_message_at, last_message_seen_by, created_at"

func (db *PgChatRepository) CreateAccount(params CreateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"INSERT INTO accounts (username, email, avatar_url, password_hash, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) RETURNING id, username, email, avatar_url",
		params.Username,
		params.EmailAddress,
		params.AvatarUrl,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.AvatarUrl,
	)

	return u, err
}

func (db *PgChatRepository) UpdateAccount(params UpdateAccountParams) (User, error) {
	res := db.conn.QueryRow(
		"UPDATE accounts SET username = $2, avatar_url = $3, password_hash = $4, updated_at = $5 "+
			"WHERE id = $1 RETURNING id, username, email, avatar_url",
		params.UserId,
		params.Username,
		params.AvatarUrl,
		params.PasswordHash,
		time.Now().UTC(),
	)

	var u User
	err := res.Scan(
		&u.Id,
		&u.Username,
		&u.EmailAddress,
		&u.AvatarUrl,
	)

	return u, err
}

func (db *PgChatRepository) GetAccountById(accountId int) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, avatar_url FROM accounts "+
			"WHERE id = $1 LIMIT 1",
		accountId,
	)

	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.AvatarUrl,
	)

	return user, err
}

func (db *PgChatRepository) GetAccountByEmail(email string) (User, error) {
	row := db.conn.QueryRow(
		"SELECT id, username, email, avatar_url, password_hash FROM accounts "+
			"WHERE email = $1 LIMIT 1",
		email,
	)
	var user User
	err := row.Scan(
		&user.Id,
		&user.Username,
		&user.EmailAddress,
		&user.AvatarUrl,
		&user.PasswordHash,
	)

	return user, err
}

func scanRoom(row interface{ Scan(...any) error }) (Room, error) {
	var room Room
	err := row.Scan(
		&room.Id,
		&room.ParticipantA,
		&room.ParticipantB,
		&room.ParticipantAName,
		&room.ParticipantAAvatar,
		&room.ParticipantBName,
		&room.ParticipantBAvatar,
		&room.LastMessageText,
		&room.LastMessageSenderId,
		&room.LastMessageAt,
		pq.Array(&room.LastMessageSeenBy),
		&room.CreatedAt,
	)

	return room, err
}

func (db *PgChatRepository) GetRoom(roomId string) (Room, error) {
	row := db.conn.QueryRow(
		"SELECT "+roomColumns+" FROM rooms WHERE id = $1 LIMIT 1",
		roomId,
	)

	return scanRoom(row)
}

// CreateRoom inserts a room keyed by its deterministic id. The insert is
// conditional on the id not existing, so concurrent creators from either
// direction converge on a single row. Returns false if the room already
// existed.
func (db *PgChatRepository) CreateRoom(params CreateRoomParams) (bool, error) {
	res, err := db.conn.Exec(
		"INSERT INTO rooms ("+roomColumns+") "+
			"VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10, $11, $12) "+
			"ON CONFLICT (id) DO NOTHING",
		params.Id,
		params.ParticipantA,
		params.ParticipantB,
		params.ParticipantAName,
		params.ParticipantAAvatar,
		params.ParticipantBName,
		params.ParticipantBAvatar,
		params.LastMessageText,
		params.LastMessageSenderId,
		time.Now().UTC(),
		pq.Array([]int64{int64(params.LastMessageSenderId)}),
		time.Now().UTC(),
	)
	if err != nil {
		return false, err
	}

	n, err := res.RowsAffected()
	if err != nil {
		return false, err
	}

	return n > 0, nil
}

func (db *PgChatRepository) ListRoomsForAccount(accountId int) ([]Room, error) {
	rows, err := db.conn.Query(
		"SELECT "+roomColumns+" FROM rooms "+
			"WHERE participant_a = $1 OR participant_b = $1 "+
			"ORDER BY last_message_at DESC",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var rooms []Room
	for rows.Next() {
		room, err := scanRoom(rows)
		if err != nil {
			return nil, fmt.Errorf("scan room: %w", err)
		}

		rooms = append(rooms, room)
	}

	return rooms, rows.Err()
}

// AppendMessage appends a message to a room's log and overwrites the room's
// last-message summary in a single transaction. The room row is locked for
// the duration, so concurrent sends serialize and the summary always matches
// the newest committed message. The message timestamp is assigned by the
// database at commit time.
func (db *PgChatRepository) AppendMessage(roomId string, senderId int, body string) (Message, error) {
	tx, err := db.conn.Begin()
	if err != nil {
		return Message{}, err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	var a, b int
	err = tx.QueryRow(
		"SELECT participant_a, participant_b FROM rooms WHERE id = $1 FOR UPDATE",
		roomId,
	).Scan(&a, &b)
	if err != nil {
		return Message{}, err
	}

	if senderId != a && senderId != b {
		err = ErrNotParticipant
		return Message{}, err
	}

	msg := Message{
		Id:       ulid.Make().String(),
		RoomId:   roomId,
		SenderId: senderId,
		Body:     body,
		SeenBy:   []int64{int64(senderId)},
	}

	err = tx.QueryRow(
		"INSERT INTO messages (id, room_id, sender_id, body, seen_by, created_at) "+
			"VALUES ($1, $2, $3, $4, $5, now()) RETURNING created_at",
		msg.Id,
		msg.RoomId,
		msg.SenderId,
		msg.Body,
		pq.Array(msg.SeenBy),
	).Scan(&msg.CreatedAt)
	if err != nil {
		return Message{}, err
	}

	_, err = tx.Exec(
		"UPDATE rooms SET last_message_text = $2, last_message_sender_id = $3, "+
			"last_message_at = $4, last_message_seen_by = $5 WHERE id = $1",
		roomId,
		msg.Body,
		msg.SenderId,
		msg.CreatedAt,
		pq.Array(msg.SeenBy),
	)
	if err != nil {
		return Message{}, err
	}

	if err = tx.Commit(); err != nil {
		return Message{}, err
	}

	return msg, nil
}

// MarkMessagesSeen adds the account to the seen-by set of each message and
// to the room's last-message summary. Every update is an idempotent set
// union, so replays and concurrent calls settle on the same state.
func (db *PgChatRepository) MarkMessagesSeen(roomId string, messageIds []string, accountId int) error {
	tx, err := db.conn.Begin()
	if err != nil {
		return err
	}
	defer func() {
		if err != nil {
			tx.Rollback()
		}
	}()

	for _, messageId := range messageIds {
		_, err = tx.Exec(
			"UPDATE messages SET seen_by = array_append(seen_by, $3) "+
				"WHERE id = $1 AND room_id = $2 AND NOT ($3 = ANY(seen_by))",
			messageId,
			roomId,
			accountId,
		)
		if err != nil {
			return err
		}
	}

	_, err = tx.Exec(
		"UPDATE rooms SET last_message_seen_by = array_append(last_message_seen_by, $2) "+
			"WHERE id = $1 AND NOT ($2 = ANY(last_message_seen_by))",
		roomId,
		accountId,
	)
	if err != nil {
		return err
	}

	return tx.Commit()
}

// GetMessages returns a page of a room's log, newest first. ULID message ids
// sort by creation time, so the "before" cursor is a message id.
func (db *PgChatRepository) GetMessages(roomId, before string, limit int) ([]Message, error) {
	if limit <= 0 {
		limit = 50
	}

	rows, err := db.conn.Query(
		"SELECT id, room_id, sender_id, body, seen_by, created_at FROM messages "+
			"WHERE room_id = $1 AND ($2 = '' OR id < $2) ORDER BY id DESC LIMIT $3",
		roomId,
		before,
		limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var messages = make([]Message, 0, limit)
	for rows.Next() {
		var msg Message
		if err = rows.Scan(&msg.Id, &msg.RoomId, &msg.SenderId, &msg.Body, pq.Array(&msg.SeenBy), &msg.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan message: %w", err)
		}

		messages = append(messages, msg)
	}

	return messages, rows.Err()
}

// SavePushSubscription upserts by endpoint. Re-registering an endpoint that
// belonged to another account moves its ownership to the caller.
func (db *PgChatRepository) SavePushSubscription(params SavePushSubscriptionParams) error {
	_, err := db.conn.Exec(
		"INSERT INTO push_subscriptions (account_id, endpoint, p256dh, auth, created_at) "+
			"VALUES ($1, $2, $3, $4, $5) "+
			"ON CONFLICT (endpoint) DO UPDATE SET account_id = EXCLUDED.account_id",
		params.AccountId,
		params.Endpoint,
		params.P256dh,
		params.Auth,
		time.Now().UTC(),
	)

	return err
}

func (db *PgChatRepository) DeletePushSubscription(accountId int, endpoint string) error {
	_, err := db.conn.Exec(
		"DELETE FROM push_subscriptions WHERE endpoint = $1 AND account_id = $2",
		endpoint,
		accountId,
	)

	return err
}

// DeletePushSubscriptionByEndpoint removes an endpoint regardless of owner.
// Used when the push service reports the endpoint permanently gone.
func (db *PgChatRepository) DeletePushSubscriptionByEndpoint(endpoint string) error {
	_, err := db.conn.Exec(
		"DELETE FROM push_subscriptions WHERE endpoint = $1",
		endpoint,
	)

	return err
}

func (db *PgChatRepository) ListPushSubscriptions(accountId int) ([]PushSubscription, error) {
	rows, err := db.conn.Query(
		"SELECT id, account_id, endpoint, p256dh, auth, created_at FROM push_subscriptions "+
			"WHERE account_id = $1",
		accountId,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var subs = make([]PushSubscription, 0)
	for rows.Next() {
		var sub PushSubscription
		if err = rows.Scan(&sub.Id, &sub.AccountId, &sub.Endpoint, &sub.P256dh, &sub.Auth, &sub.CreatedAt); err != nil {
			return nil, fmt.Errorf("scan push subscription: %w", err)
		}

		subs = append(subs, sub)
	}

	return subs, rows.Err()
}
