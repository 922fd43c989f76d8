package server

import (
	"context"
	"log"

	"github.com/skillswap/skillswap-chat/internal/chat"
	"github.com/skillswap/skillswap-chat/internal/presence"
	"github.com/skillswap/skillswap-chat/internal/stats"
)

// ChatServer owns the set of live websocket clients and fans chat events out
// to them. All maps are confined to the Run goroutine; clients talk to it
// exclusively through channels.
type ChatServer struct {
	log            *log.Logger
	chatService    *chat.Service
	tracker        presence.Tracker
	stats          stats.StatsProvider
	clients        map[*Client]struct{}
	userClients    map[int]map[*Client]struct{}
	rooms          map[string]map[*Client]struct{}
	RegisterChan   chan *Client
	deRegisterChan chan *Client
	joinChan       chan *ClientMessage
	leaveChan      chan *ClientMessage
	broadcastChan  chan broadcastReq
	stop           chan stopReq
}

// broadcastReq delivers a ServerMessage to every client joined to a room,
// or to every connection of a single user when userId is set.
type broadcastReq struct {
	roomId string
	userId int
	msg    *ServerMessage
}

type stopReq struct {
	done chan struct{}
}

func NewChatServer(logger *log.Logger, cs *chat.Service, tracker presence.Tracker, su stats.StatsProvider) *ChatServer {
	su.RegisterMetric("NumConnectedClients")
	su.RegisterMetric("NumActiveRooms")

	return &ChatServer{
		log:            logger,
		chatService:    cs,
		tracker:        tracker,
		stats:          su,
		clients:        make(map[*Client]struct{}),
		userClients:    make(map[int]map[*Client]struct{}),
		rooms:          make(map[string]map[*Client]struct{}),
		RegisterChan:   make(chan *Client),
		deRegisterChan: make(chan *Client),
		joinChan:       make(chan *ClientMessage, 256),
		leaveChan:      make(chan *ClientMessage, 256),
		broadcastChan:  make(chan broadcastReq, 256),
		stop:           make(chan stopReq),
	}
}

func (cs *ChatServer) Run() {
	for {
		select {
		case client := <-cs.RegisterChan:
			cs.log.Printf("adding connection for user %d", client.user.Id)
			cs.addClient(client)
		case client := <-cs.deRegisterChan:
			cs.log.Printf("removing connection for user %d", client.user.Id)
			cs.removeClient(client)
		case msg := <-cs.joinChan:
			cs.join(msg)
		case msg := <-cs.leaveChan:
			cs.leave(msg)
		case req := <-cs.broadcastChan:
			cs.broadcast(req)
		case req := <-cs.stop:
			cs.log.Println("closing client connections")
			for c := range cs.clients {
				c.stopClient()
			}
			close(req.done)
			return
		}
	}
}

// Shutdown stops the run loop and closes every client connection. It returns
// early if ctx expires first.
func (cs *ChatServer) Shutdown(ctx context.Context) error {
	req := stopReq{done: make(chan struct{})}

	select {
	case cs.stop <- req:
	case <-ctx.Done():
		return ctx.Err()
	}

	select {
	case <-req.done:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

func (cs *ChatServer) addClient(c *Client) {
	cs.clients[c] = struct{}{}
	cs.stats.Incr("NumConnectedClients")

	conns, ok := cs.userClients[c.user.Id]
	if !ok {
		conns = make(map[*Client]struct{})
		cs.userClients[c.user.Id] = conns

		// first connection for this user, announce them online
		if err := cs.tracker.Connect(context.Background(), c.user.Id); err != nil {
			cs.log.Printf("mark user %d online: %v", c.user.Id, err)
		}
	}
	conns[c] = struct{}{}
}

func (cs *ChatServer) removeClient(c *Client) {
	if _, ok := cs.clients[c]; !ok {
		return
	}

	delete(cs.clients, c)
	cs.stats.Decr("NumConnectedClients")

	for roomId, members := range cs.rooms {
		if _, ok := members[c]; ok {
			cs.removeFromRoom(roomId, c)
		}
	}

	conns := cs.userClients[c.user.Id]
	delete(conns, c)
	if len(conns) == 0 {
		delete(cs.userClients, c.user.Id)

		// last connection gone, announce them offline
		if err := cs.tracker.Disconnect(context.Background(), c.user.Id); err != nil {
			cs.log.Printf("mark user %d offline: %v", c.user.Id, err)
		}
	}
}

func (cs *ChatServer) join(msg *ClientMessage) {
	members, ok := cs.rooms[msg.room.Id]
	if !ok {
		members = make(map[*Client]struct{})
		cs.rooms[msg.room.Id] = members
		cs.stats.Incr("NumActiveRooms")
	}
	members[msg.client] = struct{}{}

	msg.client.addRoom(msg.room.Id)
	msg.client.queueMessage(NoErrOK(msg.Id, msg.room))
}

func (cs *ChatServer) leave(msg *ClientMessage) {
	cs.removeFromRoom(msg.Leave.RoomId, msg.client)
	msg.client.delRoom(msg.Leave.RoomId)
	msg.client.queueMessage(NoErrOK(msg.Id, nil))
}

func (cs *ChatServer) removeFromRoom(roomId string, c *Client) {
	members, ok := cs.rooms[roomId]
	if !ok {
		return
	}

	delete(members, c)
	if len(members) == 0 {
		delete(cs.rooms, roomId)
		cs.stats.Decr("NumActiveRooms")
	}
}

func (cs *ChatServer) broadcast(req broadcastReq) {
	if req.userId != 0 {
		for c := range cs.userClients[req.userId] {
			if c == req.msg.SkipClient {
				continue
			}
			c.queueMessage(req.msg)
		}
		return
	}

	joined := cs.rooms[req.roomId]
	for c := range joined {
		if c == req.msg.SkipClient {
			continue
		}
		c.queueMessage(req.msg)
	}

	// participants not currently joined still get a lightweight nudge so
	// their room list can refresh
	if req.msg.Message == nil {
		return
	}

	a, b, err := chat.ParseRoomId(req.roomId)
	if err != nil {
		cs.log.Printf("parse room id %q: %v", req.roomId, err)
		return
	}

	nudge := &ServerMessage{
		BaseMessage: BaseMessage{Timestamp: Now()},
		Notification: &Notification{
			Message: &MessageNotification{
				RoomId:    req.roomId,
				MessageId: req.msg.Message.Id,
				SenderId:  req.msg.Message.SenderId,
			},
		},
	}

	for _, userId := range []int{a, b} {
		for c := range cs.userClients[userId] {
			if _, ok := joined[c]; ok {
				continue
			}
			c.queueMessage(nudge)
		}
	}
}

// Broadcast queues a fan-out request without blocking the caller.
func (cs *ChatServer) Broadcast(roomId string, msg *ServerMessage) bool {
	select {
	case cs.broadcastChan <- broadcastReq{roomId: roomId, msg: msg}:
		return true
	default:
		cs.log.Printf("broadcast channel full, dropping message for room %q", roomId)
		return false
	}
}

// BroadcastToUser queues a fan-out request targeting every connection of a
// single user.
func (cs *ChatServer) BroadcastToUser(userId int, msg *ServerMessage) bool {
	select {
	case cs.broadcastChan <- broadcastReq{userId: userId, msg: msg}:
		return true
	default:
		cs.log.Printf("broadcast channel full, dropping message for user %d", userId)
		return false
	}
}
