package huddlews

import (
	"context"
	"time"

	"github.com/rs/zerolog"

	"github.com/huddle-live/huddle-go-utils/faults"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/connectiondao"
	"github.com/huddle-live/huddle-go-utils/resilience"
)

// RoomNotifier fans a room event out to its members.
type RoomNotifier interface {
	Broadcast(ctx context.Context, roomID string, event Event, excludeConnectionID string)
}

// Lifecycle manages a connection's entry and exit. Per connection the only
// transitions are connect then disconnect; a disconnect for an unknown or
// already-reaped connection is a logged no-op.
type Lifecycle struct {
	Connections ConnectionDirectory
	Presence    PresenceStore
	Rooms       RoomNotifier
	Logger      zerolog.Logger

	ConnTTL       time.Duration // TTL for connection rows (default 2 hours)
	MaxAttempts   int           // retry ceiling for store mutations (default 3)
	BaseDelay     time.Duration // retry base delay (default 100ms)
	LookupTimeout time.Duration // disconnect lookup budget (default 5s)
}

// OnConnect records a new connection and marks its user online. If the
// connection was opened into a room, the room is told exactly once that the
// user joined. A missing userID is a validation failure and is never
// retried.
func (l *Lifecycle) OnConnect(ctx context.Context, connectionID, endpoint, userID, roomID string) error {
	if userID == "" {
		return faults.Validation("connect %v rejected: userId is required", connectionID)
	}

	ttl := l.ConnTTL
	if ttl == 0 {
		ttl = 2 * time.Hour
	}
	conn := connectiondao.Connection{
		ConnectionID: connectionID,
		UserID:       userID,
		RoomID:       roomID,
		Endpoint:     endpoint,
		ConnectedAt:  time.Now().Unix(),
		TTL:          time.Now().Add(ttl).Unix(),
	}

	if err := l.retry(ctx, func(ctx context.Context) error {
		return l.Connections.Put(ctx, conn)
	}); err != nil {
		l.Logger.Error().Err(err).Str("connection_id", connectionID).Msg("failed to store connection")
		return err
	}

	if err := l.retry(ctx, func(ctx context.Context) error {
		return l.Presence.SetOnline(ctx, userID, connectionID)
	}); err != nil {
		l.Logger.Error().Err(err).Str("user_id", userID).Msg("failed to mark user online")
		return err
	}

	if roomID != "" {
		l.Rooms.Broadcast(ctx, roomID, UserJoined(roomID, userID), connectionID)
	}

	l.Logger.Info().
		Str("connection_id", connectionID).
		Str("user_id", userID).
		Str("room_id", roomID).
		Msg("connection established")
	return nil
}

// OnDisconnect tears a connection down. The lookup runs under a hard
// timeout budget; a connection that is already gone is success, so calling
// disconnect twice never errors the second time.
func (l *Lifecycle) OnDisconnect(ctx context.Context, connectionID string) error {
	timeout := l.LookupTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var conn *connectiondao.Connection
	err := resilience.WithTimeout(ctx, "connection lookup", timeout, func(ctx context.Context) error {
		found, err := l.Connections.Get(ctx, connectionID)
		conn = found
		return err
	})
	if err != nil {
		l.Logger.Error().Err(err).Str("connection_id", connectionID).Msg("failed to look up connection")
		return err
	}
	if conn == nil {
		l.Logger.Info().Str("connection_id", connectionID).Msg("connection already gone, nothing to do")
		return nil
	}

	if err := l.retry(ctx, func(ctx context.Context) error {
		return l.Connections.Delete(ctx, connectionID)
	}); err != nil {
		l.Logger.Error().Err(err).Str("connection_id", connectionID).Msg("failed to delete connection")
		return err
	}

	if err := l.retry(ctx, func(ctx context.Context) error {
		return l.Presence.SetOffline(ctx, conn.UserID)
	}); err != nil {
		l.Logger.Error().Err(err).Str("user_id", conn.UserID).Msg("failed to mark user offline")
		return err
	}

	if conn.RoomID != "" {
		l.Rooms.Broadcast(ctx, conn.RoomID, UserLeft(conn.RoomID, conn.UserID), connectionID)
	}

	l.Logger.Info().
		Str("connection_id", connectionID).
		Str("user_id", conn.UserID).
		Msg("connection closed")
	return nil
}

func (l *Lifecycle) retry(ctx context.Context, op resilience.Operation) error {
	maxAttempts := l.MaxAttempts
	if maxAttempts <= 0 {
		maxAttempts = 3
	}
	baseDelay := l.BaseDelay
	if baseDelay <= 0 {
		baseDelay = 100 * time.Millisecond
	}
	return resilience.WithRetry(ctx, maxAttempts, baseDelay, op)
}
