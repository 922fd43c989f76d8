package server

import (
	"database/sql"
	"errors"
	"testing"
	"time"

	"github.com/skillswap/skillswap-chat/internal/chat"
	"github.com/skillswap/skillswap-chat/internal/database"
	"github.com/skillswap/skillswap-chat/internal/presence"
	"github.com/skillswap/skillswap-chat/internal/stats"
	"github.com/skillswap/skillswap-chat/internal/types"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
)

func roomRow() database.Room {
	return database.Room{
		Id:                "1_2",
		ParticipantA:      1,
		ParticipantB:      2,
		ParticipantAName:  "alice",
		ParticipantBName:  "bob",
		LastMessageSeenBy: []int64{1},
	}
}

func attachClient(cs *ChatServer, userId int) *Client {
	c := newTestClient(userId)
	c.chatServer = cs
	c.log = cs.log
	return c
}

func TestClient_joinRoom(t *testing.T) {
	t.Run("queues validated join to the run loop", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoom", "1_2").Return(roomRow(), nil).Once()

		cs := newTestChatServer(t, mockRepo, &presence.MockTracker{}, &stats.MockStatsUpdater{})
		client := attachClient(cs, 1)

		client.joinRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{RoomId: "1_2"},
			UserId:      1,
			client:      client,
		})

		select {
		case msg := <-cs.joinChan:
			assert.Equal(t, "1_2", msg.room.Id, "expected validated room on the join request")
			assert.Equal(t, client, msg.client, "expected the requesting client on the join request")
		default:
			t.Error("expected join request to be queued to the run loop")
		}
	})

	t.Run("rejects join to a missing room", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoom", "1_2").Return(database.Room{}, sql.ErrNoRows).Once()

		cs := newTestChatServer(t, mockRepo, &presence.MockTracker{}, &stats.MockStatsUpdater{})
		client := attachClient(cs, 1)

		client.joinRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{RoomId: "1_2"},
			client:      client,
		})

		assert.Len(t, cs.joinChan, 0, "expected no join request for a missing room")

		select {
		case msg := <-client.send:
			assert.Equal(t, 404, msg.Response.ResponseCode, "expected response code to be 404")
		default:
			t.Error("expected error response to be queued to client")
		}
	})

	t.Run("rejects join from a non-participant", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoom", "1_2").Return(roomRow(), nil).Once()

		cs := newTestChatServer(t, mockRepo, &presence.MockTracker{}, &stats.MockStatsUpdater{})
		client := attachClient(cs, 3)

		client.joinRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 1, Timestamp: Now()},
			Join:        &Join{RoomId: "1_2"},
			client:      client,
		})

		assert.Len(t, cs.joinChan, 0, "expected no join request for a non-participant")

		select {
		case msg := <-client.send:
			assert.Equal(t, 403, msg.Response.ResponseCode, "expected response code to be 403")
		default:
			t.Error("expected error response to be queued to client")
		}
	})
}

func TestClient_leaveRoom(t *testing.T) {
	t.Run("queues leave for a joined room", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &presence.MockTracker{}, &stats.MockStatsUpdater{})
		client := attachClient(cs, 1)
		client.addRoom("1_2")

		client.leaveRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2, Timestamp: Now()},
			Leave:       &Leave{RoomId: "1_2"},
			client:      client,
		})

		select {
		case msg := <-cs.leaveChan:
			assert.Equal(t, "1_2", msg.Leave.RoomId, "expected leave request for the joined room")
		default:
			t.Error("expected leave request to be queued to the run loop")
		}
	})

	t.Run("rejects leave for a room the client never joined", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &presence.MockTracker{}, &stats.MockStatsUpdater{})
		client := attachClient(cs, 1)

		client.leaveRoom(&ClientMessage{
			BaseMessage: BaseMessage{Id: 2, Timestamp: Now()},
			Leave:       &Leave{RoomId: "1_2"},
			client:      client,
		})

		assert.Len(t, cs.leaveChan, 0, "expected no leave request for an unjoined room")

		select {
		case msg := <-client.send:
			assert.Equal(t, 404, msg.Response.ResponseCode, "expected response code to be 404")
		default:
			t.Error("expected error response to be queued to client")
		}
	})
}

func TestClient_publish(t *testing.T) {
	t.Run("confirms to sender and broadcasts to the room", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("AppendMessage", "1_2", 1, "hello").Return(database.Message{
			Id:       "01HYMSG",
			RoomId:   "1_2",
			SenderId: 1,
			Body:     "hello",
			SeenBy:   []int64{1},
		}, nil).Once()

		su := &stats.MockStatsUpdater{}
		su.On("Incr", "TotalMessagesSent").Once()
		defer su.AssertExpectations(t)

		cs := newTestChatServer(t, mockRepo, &presence.MockTracker{}, su)
		client := attachClient(cs, 1)

		client.publish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3, Timestamp: Now()},
			Publish:     &Publish{RoomId: "1_2", Content: "hello"},
			client:      client,
		})

		select {
		case msg := <-client.send:
			assert.Equal(t, 3, msg.Id, "expected response id to match publish id")
			assert.Equal(t, 200, msg.Response.ResponseCode, "expected response code to be 200")
			sent, ok := msg.Response.Data.(types.Message)
			assert.True(t, ok, "expected stored message in response data")
			assert.Equal(t, "01HYMSG", sent.Id, "expected stored message id")
		default:
			t.Error("expected confirmation to be queued to the sender")
		}

		select {
		case req := <-cs.broadcastChan:
			assert.Equal(t, "1_2", req.roomId, "expected broadcast for the room")
			assert.NotNil(t, req.msg.Message, "expected message payload on the broadcast")
			assert.Equal(t, "01HYMSG", req.msg.Message.Id, "expected stored message id on the broadcast")
			assert.Equal(t, client, req.msg.SkipClient, "expected the sender to be skipped")
		default:
			t.Error("expected broadcast request to be queued")
		}
	})

	t.Run("maps service errors without broadcasting", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("AppendMessage", "1_2", 3, "hello").Return(database.Message{}, database.ErrNotParticipant).Once()

		cs := newTestChatServer(t, mockRepo, &presence.MockTracker{}, &stats.MockStatsUpdater{})
		client := attachClient(cs, 3)

		client.publish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3, Timestamp: Now()},
			Publish:     &Publish{RoomId: "1_2", Content: "hello"},
			client:      client,
		})

		assert.Len(t, cs.broadcastChan, 0, "expected no broadcast on a failed publish")

		select {
		case msg := <-client.send:
			assert.Equal(t, 403, msg.Response.ResponseCode, "expected response code to be 403")
		default:
			t.Error("expected error response to be queued to client")
		}
	})

	t.Run("rejects whitespace-only content", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &presence.MockTracker{}, &stats.MockStatsUpdater{})
		client := attachClient(cs, 1)

		client.publish(&ClientMessage{
			BaseMessage: BaseMessage{Id: 3, Timestamp: Now()},
			Publish:     &Publish{RoomId: "1_2", Content: "   "},
			client:      client,
		})

		select {
		case msg := <-client.send:
			assert.Equal(t, 400, msg.Response.ResponseCode, "expected response code to be 400")
		default:
			t.Error("expected error response to be queued to client")
		}
	})
}

func TestClient_markSeen(t *testing.T) {
	t.Run("acknowledges and broadcasts the receipt", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoom", "1_2").Return(roomRow(), nil).Once()
		mockRepo.On("MarkMessagesSeen", "1_2", []string{"m1", "m2"}, 2).Return(nil).Once()

		cs := newTestChatServer(t, mockRepo, &presence.MockTracker{}, &stats.MockStatsUpdater{})
		client := attachClient(cs, 2)

		client.markSeen(&ClientMessage{
			BaseMessage: BaseMessage{Id: 4, Timestamp: Now()},
			Seen:        &Seen{RoomId: "1_2", MessageIds: []string{"m1", "m2"}},
			client:      client,
		})

		select {
		case msg := <-client.send:
			assert.Equal(t, 202, msg.Response.ResponseCode, "expected response code to be 202")
		default:
			t.Error("expected acknowledgement to be queued to client")
		}

		select {
		case req := <-cs.broadcastChan:
			assert.Equal(t, "1_2", req.roomId, "expected broadcast for the room")
			assert.NotNil(t, req.msg.Notification, "expected a notification on the broadcast")
			assert.NotNil(t, req.msg.Notification.Seen, "expected a seen notification")
			assert.Equal(t, []string{"m1", "m2"}, req.msg.Notification.Seen.MessageIds, "expected message ids on the receipt")
			assert.Equal(t, 2, req.msg.Notification.Seen.UserId, "expected the reader's id on the receipt")
		default:
			t.Error("expected broadcast request to be queued")
		}
	})

	t.Run("maps missing room to 404", func(t *testing.T) {
		mockRepo := &database.MockChatRepository{}
		defer mockRepo.AssertExpectations(t)
		mockRepo.On("GetRoom", "1_2").Return(database.Room{}, sql.ErrNoRows).Once()

		cs := newTestChatServer(t, mockRepo, &presence.MockTracker{}, &stats.MockStatsUpdater{})
		client := attachClient(cs, 2)

		client.markSeen(&ClientMessage{
			BaseMessage: BaseMessage{Id: 4, Timestamp: Now()},
			Seen:        &Seen{RoomId: "1_2", MessageIds: []string{"m1"}},
			client:      client,
		})

		assert.Len(t, cs.broadcastChan, 0, "expected no broadcast on a failed receipt")

		select {
		case msg := <-client.send:
			assert.Equal(t, 404, msg.Response.ResponseCode, "expected response code to be 404")
		default:
			t.Error("expected error response to be queued to client")
		}
	})
}

func TestClient_presenceSub(t *testing.T) {
	t.Run("streams watched presence updates to the connection", func(t *testing.T) {
		updates := make(chan types.PresenceRecord, 1)

		mockTracker := &presence.MockTracker{}
		defer mockTracker.AssertExpectations(t)
		mockTracker.On("Watch", mock.Anything, 2).Return(updates, nil).Once()

		cs := newTestChatServer(t, &database.MockChatRepository{}, mockTracker, &stats.MockStatsUpdater{})
		client := attachClient(cs, 1)

		client.presenceSub(&ClientMessage{
			BaseMessage: BaseMessage{Id: 5, Timestamp: Now()},
			PresenceSub: &PresenceSub{UserId: 2},
			client:      client,
		})

		select {
		case msg := <-client.send:
			assert.Equal(t, 202, msg.Response.ResponseCode, "expected response code to be 202")
		default:
			t.Error("expected acknowledgement to be queued to client")
		}

		lastSeen := Now()
		updates <- types.PresenceRecord{IsOnline: true, LastSeen: lastSeen}
		close(updates)

		select {
		case msg := <-client.send:
			assert.NotNil(t, msg.Notification, "expected a notification message")
			assert.NotNil(t, msg.Notification.Presence, "expected a presence notification")
			assert.Equal(t, 2, msg.Notification.Presence.UserId, "expected the watched user's id")
			assert.True(t, msg.Notification.Presence.IsOnline, "expected the online transition to be forwarded")
			assert.Equal(t, lastSeen, msg.Notification.Presence.LastSeen, "expected last seen to be forwarded")
		case <-time.After(time.Second):
			t.Error("expected presence update to be forwarded to the connection")
		}
	})

	t.Run("unsubscribe cancels an active watch", func(t *testing.T) {
		updates := make(chan types.PresenceRecord)

		mockTracker := &presence.MockTracker{}
		defer mockTracker.AssertExpectations(t)
		mockTracker.On("Watch", mock.Anything, 2).Return(updates, nil).Once()

		cs := newTestChatServer(t, &database.MockChatRepository{}, mockTracker, &stats.MockStatsUpdater{})
		client := attachClient(cs, 1)

		client.presenceSub(&ClientMessage{
			BaseMessage: BaseMessage{Id: 5, Timestamp: Now()},
			PresenceSub: &PresenceSub{UserId: 2},
			client:      client,
		})
		<-client.send

		client.presenceSub(&ClientMessage{
			BaseMessage: BaseMessage{Id: 6, Timestamp: Now()},
			PresenceSub: &PresenceSub{UserId: 2, Unsubscribe: true},
			client:      client,
		})

		assert.NotContains(t, client.watches, 2, "expected the watch to be removed on unsubscribe")

		select {
		case msg := <-client.send:
			assert.Equal(t, 6, msg.Id, "expected acknowledgement for the unsubscribe")
			assert.Equal(t, 202, msg.Response.ResponseCode, "expected response code to be 202")
		default:
			t.Error("expected acknowledgement to be queued to client")
		}
	})

	t.Run("rejects an invalid user id", func(t *testing.T) {
		cs := newTestChatServer(t, &database.MockChatRepository{}, &presence.MockTracker{}, &stats.MockStatsUpdater{})
		client := attachClient(cs, 1)

		client.presenceSub(&ClientMessage{
			BaseMessage: BaseMessage{Id: 5, Timestamp: Now()},
			PresenceSub: &PresenceSub{UserId: 0},
			client:      client,
		})

		select {
		case msg := <-client.send:
			assert.Equal(t, 400, msg.Response.ResponseCode, "expected response code to be 400")
		default:
			t.Error("expected error response to be queued to client")
		}
	})

	t.Run("watch error maps to 500", func(t *testing.T) {
		mockTracker := &presence.MockTracker{}
		defer mockTracker.AssertExpectations(t)
		mockTracker.On("Watch", mock.Anything, 2).Return(nil, errors.New("redis down")).Once()

		cs := newTestChatServer(t, &database.MockChatRepository{}, mockTracker, &stats.MockStatsUpdater{})
		client := attachClient(cs, 1)

		client.presenceSub(&ClientMessage{
			BaseMessage: BaseMessage{Id: 5, Timestamp: Now()},
			PresenceSub: &PresenceSub{UserId: 2},
			client:      client,
		})

		assert.NotContains(t, client.watches, 2, "expected no watch to be tracked on error")

		select {
		case msg := <-client.send:
			assert.Equal(t, 500, msg.Response.ResponseCode, "expected response code to be 500")
		default:
			t.Error("expected error response to be queued to client")
		}
	})
}

func Test_errorMessage(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{}, &presence.MockTracker{}, &stats.MockStatsUpdater{})
	client := attachClient(cs, 1)

	tcases := []struct {
		name         string
		err          error
		expectedCode int
	}{
		{
			name:         "room not found",
			err:          chat.ErrRoomNotFound,
			expectedCode: 404,
		},
		{
			name:         "not a participant",
			err:          chat.ErrNotParticipant,
			expectedCode: 403,
		},
		{
			name:         "empty message",
			err:          chat.ErrEmptyMessage,
			expectedCode: 400,
		},
		{
			name:         "unexpected error",
			err:          errors.New("db error"),
			expectedCode: 500,
		},
	}

	for _, tc := range tcases {
		t.Run(tc.name, func(t *testing.T) {
			msg := client.errorMessage(1, tc.err)
			assert.NotNil(t, msg.Response, "expected response message")
			assert.Equal(t, 1, msg.Id, "expected id to be preserved")
			assert.Equal(t, tc.expectedCode, msg.Response.ResponseCode, "expected response code to match")
		})
	}
}

func Test_queueMessage(t *testing.T) {
	cs := newTestChatServer(t, &database.MockChatRepository{}, &presence.MockTracker{}, &stats.MockStatsUpdater{})
	client := attachClient(cs, 1)
	client.send = make(chan *ServerMessage, 1)

	assert.True(t, client.queueMessage(NoErrAccepted(1)), "expected message to be queued")
	assert.False(t, client.queueMessage(NoErrAccepted(2)), "expected queue to reject when full")
}
