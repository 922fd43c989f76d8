package server

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"sync"
	"time"

	"github.com/gorilla/websocket"
	"github.com/skillswap/skillswap-chat/internal/chat"
	"github.com/skillswap/skillswap-chat/internal/types"
)

const (
	writeWait      = 10 * time.Second
	pongWait       = 60 * time.Second
	pingInterval   = (pongWait * 9) / 10
	maxMessageSize = 4096
)

type Client struct {
	conn        *websocket.Conn
	chatServer  *ChatServer
	log         *log.Logger
	user        types.User
	send        chan *ServerMessage
	rooms       map[string]struct{}
	roomsLock   sync.RWMutex
	watches     map[int]context.CancelFunc
	watchesLock sync.Mutex
	stop        chan struct{}
	stopOnce    sync.Once
}

func NewClient(user types.User, conn *websocket.Conn, cs *ChatServer, l *log.Logger) *Client {
	return &Client{
		conn:       conn,
		chatServer: cs,
		log:        l,
		user:       user,
		send:       make(chan *ServerMessage, 256),
		rooms:      make(map[string]struct{}),
		watches:    make(map[int]context.CancelFunc),
		stop:       make(chan struct{}),
	}
}

func (c *Client) Write() {
	ticker := time.NewTicker(pingInterval)
	defer func() {
		ticker.Stop()
		c.conn.Close()
	}()

	for {
		select {
		case msg, ok := <-c.send:
			if !ok {
				return
			}

			bytes, err := json.Marshal(msg)
			if err != nil {
				c.log.Println("failed to serialize message:", err)
				continue
			}

			if !c.sendMessage(websocket.TextMessage, bytes) {
				return
			}
		case <-c.stop:
			return
		case <-ticker.C:
			if !c.sendMessage(websocket.PingMessage, nil) {
				return
			}

			// piggyback on the ping cadence to keep the presence
			// record from expiring
			if err := c.chatServer.tracker.Heartbeat(context.Background(), c.user.Id); err != nil {
				c.log.Printf("presence heartbeat for user %d: %v", c.user.Id, err)
			}
		}
	}
}

func (c *Client) Read() {
	defer func() {
		c.conn.Close()
		c.cleanup()
	}()

	c.conn.SetReadLimit(maxMessageSize)
	c.conn.SetReadDeadline(time.Now().Add(pongWait))
	c.conn.SetPongHandler(func(appData string) error { c.conn.SetReadDeadline(time.Now().Add(pongWait)); return nil })
	for {
		_, raw, err := c.conn.ReadMessage()
		if err != nil {
			if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
				websocket.CloseNormalClosure) {
				c.log.Printf("ws: read: %v", err)
			}
			break
		}

		var msg ClientMessage
		if err := json.Unmarshal(raw, &msg); err != nil {
			c.log.Println("error parsing message:", err)
			c.queueMessage(ErrInvalidMessage(-1))
			continue
		}

		msg.client = c
		msg.UserId = c.user.Id
		msg.Timestamp = Now()

		switch {
		case msg.Join != nil:
			c.joinRoom(&msg)
		case msg.Leave != nil:
			c.leaveRoom(&msg)
		case msg.Publish != nil:
			c.publish(&msg)
		case msg.Seen != nil:
			c.markSeen(&msg)
		case msg.PresenceSub != nil:
			c.presenceSub(&msg)
		default:
			c.queueMessage(ErrInvalidMessage(msg.Id))
		}
	}
}

// joinRoom validates membership before handing the request to the run loop,
// so the fan-out maps only ever hold authorized clients.
func (c *Client) joinRoom(msg *ClientMessage) {
	room, err := c.chatServer.chatService.Room(context.Background(), c.user.Id, msg.Join.RoomId)
	if err != nil {
		c.queueMessage(c.errorMessage(msg.Id, err))
		return
	}

	msg.room = room
	select {
	case c.chatServer.joinChan <- msg:
	default:
		c.log.Printf("joinChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) leaveRoom(msg *ClientMessage) {
	if !c.inRoom(msg.Leave.RoomId) {
		c.queueMessage(ErrRoomNotFound(msg.Id))
		return
	}

	select {
	case c.chatServer.leaveChan <- msg:
	default:
		c.log.Printf("leaveChan full")
		c.queueMessage(ErrServiceUnavailable(msg.Id))
	}
}

func (c *Client) publish(msg *ClientMessage) {
	sent, err := c.chatServer.chatService.SendMessage(context.Background(), c.user.Id, msg.Publish.RoomId, msg.Publish.Content)
	if err != nil {
		c.queueMessage(c.errorMessage(msg.Id, err))
		return
	}

	c.queueMessage(NoErrOK(msg.Id, sent))

	c.chatServer.Broadcast(msg.Publish.RoomId, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Message:     &sent,
		SkipClient:  c,
	})
}

func (c *Client) markSeen(msg *ClientMessage) {
	err := c.chatServer.chatService.MarkSeen(context.Background(), c.user.Id, msg.Seen.RoomId, msg.Seen.MessageIds)
	if err != nil {
		c.queueMessage(c.errorMessage(msg.Id, err))
		return
	}

	c.queueMessage(NoErrAccepted(msg.Id))

	c.chatServer.Broadcast(msg.Seen.RoomId, &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Seen: &SeenNotification{
				RoomId:     msg.Seen.RoomId,
				MessageIds: msg.Seen.MessageIds,
				UserId:     c.user.Id,
			},
		},
		SkipClient: c,
	})
}

// presenceSub starts or stops a presence watch on another user. Updates are
// streamed back over this connection until unsubscribed or disconnect.
func (c *Client) presenceSub(msg *ClientMessage) {
	userId := msg.PresenceSub.UserId
	if userId <= 0 {
		c.queueMessage(ErrBadRequest(msg.Id, "invalid user id"))
		return
	}

	c.watchesLock.Lock()
	if cancel, ok := c.watches[userId]; ok {
		cancel()
		delete(c.watches, userId)
	}

	if msg.PresenceSub.Unsubscribe {
		c.watchesLock.Unlock()
		c.queueMessage(NoErrAccepted(msg.Id))
		return
	}

	ctx, cancel := context.WithCancel(context.Background())
	updates, err := c.chatServer.tracker.Watch(ctx, userId)
	if err != nil {
		c.watchesLock.Unlock()
		cancel()
		c.log.Printf("watch presence for user %d: %v", userId, err)
		c.queueMessage(ErrInternalError(msg.Id))
		return
	}

	c.watches[userId] = cancel
	c.watchesLock.Unlock()

	c.queueMessage(NoErrAccepted(msg.Id))

	go func() {
		for rec := range updates {
			c.queueMessage(&ServerMessage{
				BaseMessage: BaseMessage{Timestamp: Now()},
				Notification: &Notification{
					Presence: &PresenceNotification{
						UserId:   userId,
						IsOnline: rec.IsOnline,
						LastSeen: rec.LastSeen,
					},
				},
			})
		}
	}()
}

func (c *Client) errorMessage(id int, err error) *ServerMessage {
	switch {
	case errors.Is(err, chat.ErrRoomNotFound):
		return ErrRoomNotFound(id)
	case errors.Is(err, chat.ErrNotParticipant):
		return ErrForbidden(id)
	case errors.Is(err, chat.ErrEmptyMessage):
		return ErrBadRequest(id, err.Error())
	default:
		c.log.Printf("chat operation for user %d: %v", c.user.Id, err)
		return ErrInternalError(id)
	}
}

func (c *Client) queueMessage(msg *ServerMessage) bool {
	select {
	case c.send <- msg:
	default:
		c.log.Println("failed to send message to client, channel is full")
		return false
	}

	return true
}

func (c *Client) sendMessage(msgType int, msg []byte) bool {
	c.conn.SetWriteDeadline(time.Now().Add(writeWait))

	if err := c.conn.WriteMessage(msgType, msg); err != nil {
		if websocket.IsUnexpectedCloseError(err, websocket.CloseGoingAway, websocket.CloseAbnormalClosure,
			websocket.CloseNormalClosure) {
			c.log.Printf("write message: %s", err)
		}
		return false
	}

	return true
}

func (c *Client) stopClient() {
	c.stopOnce.Do(func() { close(c.stop) })
}

func (c *Client) cleanup() {
	c.cancelWatches()
	c.chatServer.deRegisterChan <- c
	c.stopClient()
}

func (c *Client) cancelWatches() {
	c.watchesLock.Lock()
	defer c.watchesLock.Unlock()

	for userId, cancel := range c.watches {
		cancel()
		delete(c.watches, userId)
	}
}

func (c *Client) addRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()
	c.rooms[id] = struct{}{}
}

func (c *Client) delRoom(id string) {
	c.roomsLock.Lock()
	defer c.roomsLock.Unlock()
	delete(c.rooms, id)
}

func (c *Client) inRoom(id string) bool {
	c.roomsLock.RLock()
	defer c.roomsLock.RUnlock()
	_, ok := c.rooms[id]
	return ok
}
