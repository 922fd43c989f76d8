package presence

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/redis/go-redis/v9"
	"github.com/skillswap/skillswap-chat/internal/types"
)

// onlineTTL bounds how long a crashed connection can appear online. Live
// connections refresh it via Heartbeat well inside the window.
const onlineTTL = 60 * time.Second

type RedisTracker struct {
	log    *log.Logger
	client *redis.Client
}

func NewRedisTracker(logger *log.Logger, redisURL string) (*RedisTracker, error) {
	opts, err := redis.ParseURL(redisURL)
	if err != nil {
		return nil, fmt.Errorf("parse redis URL: %w", err)
	}

	client := redis.NewClient(opts)
	if err := client.Ping(context.Background()).Err(); err != nil {
		return nil, fmt.Errorf("redis ping: %w", err)
	}

	return &RedisTracker{log: logger, client: client}, nil
}

func (t *RedisTracker) Close() error {
	return t.client.Close()
}

func presenceKey(userId int) string {
	return fmt.Sprintf("presence:%d", userId)
}

func presenceChannel(userId int) string {
	return fmt.Sprintf("presence-updates:%d", userId)
}

// set writes the record and publishes it to watchers in one pipeline.
// A zero ttl makes the record persistent.
func (t *RedisTracker) set(ctx context.Context, userId int, rec types.PresenceRecord, ttl time.Duration) error {
	data, err := json.Marshal(rec)
	if err != nil {
		return fmt.Errorf("marshal presence record: %w", err)
	}

	pipe := t.client.TxPipeline()
	pipe.Set(ctx, presenceKey(userId), data, ttl)
	pipe.Publish(ctx, presenceChannel(userId), data)
	if _, err := pipe.Exec(ctx); err != nil {
		return fmt.Errorf("write presence record: %w", err)
	}

	return nil
}

func (t *RedisTracker) Connect(ctx context.Context, userId int) error {
	return t.set(ctx, userId, types.PresenceRecord{
		IsOnline: true,
		LastSeen: time.Now().UTC(),
	}, onlineTTL)
}

func (t *RedisTracker) Heartbeat(ctx context.Context, userId int) error {
	ok, err := t.client.Expire(ctx, presenceKey(userId), onlineTTL).Result()
	if err != nil {
		return fmt.Errorf("extend presence record: %w", err)
	}
	if !ok {
		// record expired between heartbeats, re-announce
		return t.Connect(ctx, userId)
	}

	return nil
}

func (t *RedisTracker) Disconnect(ctx context.Context, userId int) error {
	return t.set(ctx, userId, types.PresenceRecord{
		IsOnline: false,
		LastSeen: time.Now().UTC(),
	}, 0)
}

func (t *RedisTracker) Get(ctx context.Context, userId int) (types.PresenceRecord, bool, error) {
	data, err := t.client.Get(ctx, presenceKey(userId)).Bytes()
	if err != nil {
		if errors.Is(err, redis.Nil) {
			return types.PresenceRecord{}, false, nil
		}
		return types.PresenceRecord{}, false, fmt.Errorf("read presence record: %w", err)
	}

	var rec types.PresenceRecord
	if err := json.Unmarshal(data, &rec); err != nil {
		return types.PresenceRecord{}, false, fmt.Errorf("unmarshal presence record: %w", err)
	}

	return rec, true, nil
}

func (t *RedisTracker) Watch(ctx context.Context, userId int) (<-chan types.PresenceRecord, error) {
	sub := t.client.Subscribe(ctx, presenceChannel(userId))
	// force the subscription onto the wire before snapshotting, so no
	// transition between snapshot and subscribe is lost
	if _, err := sub.Receive(ctx); err != nil {
		sub.Close()
		return nil, fmt.Errorf("subscribe presence channel: %w", err)
	}

	ch := make(chan types.PresenceRecord, 8)

	go func() {
		defer close(ch)
		defer sub.Close()

		if rec, found, err := t.Get(ctx, userId); err != nil {
			t.log.Printf("presence snapshot for user %d: %v", userId, err)
		} else if found {
			select {
			case ch <- rec:
			case <-ctx.Done():
				return
			}
		}

		msgCh := sub.Channel()
		for {
			select {
			case <-ctx.Done():
				return
			case msg, ok := <-msgCh:
				if !ok {
					return
				}

				var rec types.PresenceRecord
				if err := json.Unmarshal([]byte(msg.Payload), &rec); err != nil {
					t.log.Printf("unmarshal presence update for user %d: %v", userId, err)
					continue
				}

				select {
				case ch <- rec:
				case <-ctx.Done():
					return
				}
			}
		}
	}()

	return ch, nil
}
