package push

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"log"
	"net/http"

	webpush "github.com/SherClockHolmes/webpush-go"
	"github.com/skillswap/skillswap-chat/internal/config"
	"github.com/skillswap/skillswap-chat/internal/database"
	"github.com/skillswap/skillswap-chat/internal/presence"
	"github.com/skillswap/skillswap-chat/internal/stats"
	"github.com/skillswap/skillswap-chat/internal/types"
)

const fallbackTitle = "New Message"

type sendFunc func(ctx context.Context, payload []byte, sub *webpush.Subscription, opts *webpush.Options) (*http.Response, error)

// WebPushDispatcher delivers a message notification to a recipient's
// registered browser endpoints when the recipient is offline. Delivery is
// best-effort: per-endpoint failures are logged and never surface to the
// triggering send.
type WebPushDispatcher struct {
	log     *log.Logger
	db      database.ChatRepository
	tracker presence.Tracker
	stats   stats.StatsProvider
	opts    *webpush.Options
	send    sendFunc
}

func NewWebPushDispatcher(logger *log.Logger, db database.ChatRepository, tracker presence.Tracker, su stats.StatsProvider, cfg *config.Config) *WebPushDispatcher {
	su.RegisterMetric("TotalNotificationsSent")
	su.RegisterMetric("TotalSubscriptionsPruned")

	return &WebPushDispatcher{
		log:     logger,
		db:      db,
		tracker: tracker,
		stats:   su,
		opts: &webpush.Options{
			Subscriber:      cfg.VAPIDSubject,
			VAPIDPublicKey:  cfg.VAPIDPublicKey,
			VAPIDPrivateKey: cfg.VAPIDPrivateKey,
			TTL:             60,
		},
		send: webpush.SendNotificationWithContext,
	}
}

// NotifyOffline pushes the message to the other participant's endpoints if
// that participant is offline. An absent presence record means the user
// never connected and is not notified.
func (d *WebPushDispatcher) NotifyOffline(ctx context.Context, roomId string, senderId int, text string) error {
	room, err := d.db.GetRoom(roomId)
	if err != nil {
		if errors.Is(err, sql.ErrNoRows) {
			return nil
		}
		return fmt.Errorf("get room: %w", err)
	}

	recipientId := room.ParticipantA
	if recipientId == senderId {
		recipientId = room.ParticipantB
	}

	rec, found, err := d.tracker.Get(ctx, recipientId)
	if err != nil {
		return fmt.Errorf("get presence for user %d: %w", recipientId, err)
	}
	if !found || rec.IsOnline {
		return nil
	}

	subs, err := d.db.ListPushSubscriptions(recipientId)
	if err != nil {
		return fmt.Errorf("list push subscriptions for user %d: %w", recipientId, err)
	}
	if len(subs) == 0 {
		return nil
	}

	title, icon := fallbackTitle, ""
	if sender, err := d.db.GetAccountById(senderId); err != nil {
		d.log.Printf("get sender account %d: %v", senderId, err)
	} else {
		title, icon = sender.Username, sender.AvatarUrl
	}

	payload, err := json.Marshal(types.PushPayload{
		Title: title,
		Body:  text,
		Icon:  icon,
		Data:  types.PushData{Url: "/chat/" + roomId},
	})
	if err != nil {
		return fmt.Errorf("marshal push payload: %w", err)
	}

	for _, sub := range subs {
		d.dispatch(ctx, payload, sub)
	}

	return nil
}

func (d *WebPushDispatcher) dispatch(ctx context.Context, payload []byte, sub database.PushSubscription) {
	resp, err := d.send(ctx, payload, &webpush.Subscription{
		Endpoint: sub.Endpoint,
		Keys: webpush.Keys{
			P256dh: sub.P256dh,
			Auth:   sub.Auth,
		},
	}, d.opts)
	if err != nil {
		d.log.Printf("send push notification to %q: %v", sub.Endpoint, err)
		return
	}
	defer resp.Body.Close()

	switch {
	case resp.StatusCode == http.StatusGone || resp.StatusCode == http.StatusNotFound:
		// endpoint is permanently dead, drop its subscription
		if err := d.db.DeletePushSubscriptionByEndpoint(sub.Endpoint); err != nil {
			d.log.Printf("prune push subscription %q: %v", sub.Endpoint, err)
			return
		}
		d.stats.Incr("TotalSubscriptionsPruned")
	case resp.StatusCode >= http.StatusBadRequest:
		d.log.Printf("push service returned %d for %q", resp.StatusCode, sub.Endpoint)
	default:
		d.stats.Incr("TotalNotificationsSent")
	}
}
