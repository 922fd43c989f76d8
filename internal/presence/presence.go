package presence

import (
	"context"

	"github.com/skillswap/skillswap-chat/internal/types"
)

// Tracker maintains the single online/offline record per user and fans out
// every transition to watchers. Multi-device sessions are not
// reference-counted: the last transition wins.
type Tracker interface {
	// Connect marks the user online. The offline fallback (expiry of the
	// online record) is armed atomically with the online write, so a
	// dropped connection can never leave a stale online flag.
	Connect(ctx context.Context, userId int) error
	// Heartbeat extends the online record's lifetime while the connection
	// is alive.
	Heartbeat(ctx context.Context, userId int) error
	// Disconnect marks the user offline immediately (explicit sign-out or
	// connection teardown). The record persists so last-seen survives.
	Disconnect(ctx context.Context, userId int) error
	// Get returns the user's current record. found is false when the user
	// has never connected.
	Get(ctx context.Context, userId int) (rec types.PresenceRecord, found bool, err error)
	// Watch streams the user's record: the current value first, then every
	// subsequent transition, until ctx is cancelled.
	Watch(ctx context.Context, userId int) (<-chan types.PresenceRecord, error)
}
