package huddlews

import (
	"context"

	"github.com/huddle-live/huddle-go-utils/huddle-ws/connectiondao"
)

// ConnectionDirectory is the durable source of truth for room membership.
// Consistency relies on the store's row-level atomicity; there are no
// cross-row transactions, and a stale index entry self-heals through TTL
// expiry and gone-eviction on delivery.
type ConnectionDirectory interface {
	Put(ctx context.Context, conn connectiondao.Connection) error
	Get(ctx context.Context, connectionID string) (*connectiondao.Connection, error)
	Delete(ctx context.Context, connectionID string) error
	QueryByRoom(ctx context.Context, roomID string) ([]connectiondao.Connection, error)
	QueryByUser(ctx context.Context, userID string) ([]connectiondao.Connection, error)
}

// PresenceStore tracks a user's aggregate online status.
type PresenceStore interface {
	SetOnline(ctx context.Context, userID, connectionID string) error
	SetOffline(ctx context.Context, userID string) error
}

var _ ConnectionDirectory = (*connectiondao.DAO)(nil)
