package huddlews

import (
	"context"
	"errors"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi"
	"github.com/aws/aws-sdk-go/service/apigatewaymanagementapi/apigatewaymanagementapiiface"
	"github.com/rs/zerolog"
	"golang.org/x/sync/errgroup"

	"github.com/huddle-live/huddle-go-utils/faults"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/connectiondao"
	"github.com/huddle-live/huddle-go-utils/resilience"
)

// Broadcaster fans out room events to WebSocket peers. Deliveries are
// concurrent and independent: one unreachable peer never blocks or fails
// delivery to the rest of the room, and a broadcast never errors to its
// caller.
type Broadcaster struct {
	Connections ConnectionDirectory
	Logger      zerolog.Logger
	Concurrency int // max concurrent PostToConnection calls (default 50)

	// QueryTimeout bounds the membership lookup (default 5s).
	QueryTimeout time.Duration
	// DeliveryTimeout bounds each PostToConnection call (default 10s).
	DeliveryTimeout time.Duration
	// Breaker, when set, guards the push channel. Scope one breaker per
	// broadcaster; the rolling counters are not shared across dependencies.
	Breaker *resilience.Breaker

	// NewManagementClient overrides management client construction (tests).
	NewManagementClient func(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI

	// mgmtClients caches API Gateway Management API clients by endpoint
	mgmtMu      sync.RWMutex
	mgmtClients map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
}

// Broadcast resolves every connection in the room and delivers the event to
// each, excluding excludeConnectionID if set. It returns only after all
// per-recipient attempts have settled.
func (b *Broadcaster) Broadcast(ctx context.Context, roomID string, event Event, excludeConnectionID string) {
	conns, ok := b.resolve(ctx, "room query", func(ctx context.Context) ([]connectiondao.Connection, error) {
		return b.Connections.QueryByRoom(ctx, roomID)
	})
	if !ok {
		return
	}
	b.fanOut(ctx, conns, event, excludeConnectionID)
}

// NotifyUser delivers the event to every connection belonging to a user.
func (b *Broadcaster) NotifyUser(ctx context.Context, userID string, event Event) {
	conns, ok := b.resolve(ctx, "user query", func(ctx context.Context) ([]connectiondao.Connection, error) {
		return b.Connections.QueryByUser(ctx, userID)
	})
	if !ok {
		return
	}
	b.fanOut(ctx, conns, event, "")
}

func (b *Broadcaster) resolve(ctx context.Context, name string, query func(ctx context.Context) ([]connectiondao.Connection, error)) ([]connectiondao.Connection, bool) {
	timeout := b.QueryTimeout
	if timeout <= 0 {
		timeout = 5 * time.Second
	}

	var conns []connectiondao.Connection
	err := resilience.WithTimeout(ctx, name, timeout, func(ctx context.Context) error {
		found, err := query(ctx)
		conns = found
		return err
	})
	if err != nil {
		b.Logger.Error().Err(err).Str("event_kind", name).Msg("failed to resolve recipients")
		return nil, false
	}
	return conns, true
}

func (b *Broadcaster) fanOut(ctx context.Context, conns []connectiondao.Connection, event Event, excludeConnectionID string) {
	data, err := event.Marshal()
	if err != nil {
		b.Logger.Error().Err(err).Str("type", event.Type).Msg("failed to serialize event")
		return
	}

	concurrency := b.Concurrency
	if concurrency <= 0 {
		concurrency = 50
	}

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for _, conn := range conns {
		if conn.ConnectionID == excludeConnectionID {
			continue
		}
		conn := conn
		g.Go(func() error {
			b.deliver(ctx, conn, event.Type, data)
			return nil
		})
	}

	_ = g.Wait() // deliver never returns an error; Wait is only the join barrier
}

// deliver posts the serialized event to one connection. A gone transport is
// a signal to evict the directory row, not an error; every other failure is
// logged and swallowed so the remaining recipients are unaffected.
func (b *Broadcaster) deliver(ctx context.Context, conn connectiondao.Connection, eventType string, data []byte) {
	client := b.managementClient(conn.Endpoint)

	post := func(ctx context.Context) error {
		_, err := client.PostToConnectionWithContext(ctx, &apigatewaymanagementapi.PostToConnectionInput{
			ConnectionId: aws.String(conn.ConnectionID),
			Data:         data,
		})
		if err != nil && isGone(err) {
			return faults.Stale(conn.ConnectionID)
		}
		return err
	}

	timeout := b.DeliveryTimeout
	if timeout <= 0 {
		timeout = 10 * time.Second
	}
	guarded := func(ctx context.Context) error {
		return resilience.WithTimeout(ctx, "delivery", timeout, post)
	}

	var err error
	if b.Breaker != nil {
		err = b.Breaker.Do(ctx, guarded)
	} else {
		err = guarded(ctx)
	}
	if err == nil {
		return
	}

	if faults.IsStale(err) {
		b.Logger.Info().
			Str("connection_id", conn.ConnectionID).
			Msg("connection gone, evicting")
		b.evict(ctx, conn.ConnectionID)
		return
	}

	b.Logger.Error().Err(err).
		Str("connection_id", conn.ConnectionID).
		Str("type", eventType).
		Msg("failed to deliver event")
}

// evict removes a stale connection row. Best effort only; a failed delete is
// logged, not retried, since the row also expires by TTL.
func (b *Broadcaster) evict(ctx context.Context, connectionID string) {
	if err := b.Connections.Delete(ctx, connectionID); err != nil {
		b.Logger.Error().Err(err).Str("connection_id", connectionID).Msg("failed to delete gone connection")
	}
}

func (b *Broadcaster) managementClient(endpoint string) apigatewaymanagementapiiface.ApiGatewayManagementApiAPI {
	b.mgmtMu.RLock()
	if client, ok := b.mgmtClients[endpoint]; ok {
		b.mgmtMu.RUnlock()
		return client
	}
	b.mgmtMu.RUnlock()

	b.mgmtMu.Lock()
	defer b.mgmtMu.Unlock()

	// Double-check after acquiring write lock
	if client, ok := b.mgmtClients[endpoint]; ok {
		return client
	}

	if b.mgmtClients == nil {
		b.mgmtClients = make(map[string]apigatewaymanagementapiiface.ApiGatewayManagementApiAPI)
	}

	var client apigatewaymanagementapiiface.ApiGatewayManagementApiAPI
	if b.NewManagementClient != nil {
		client = b.NewManagementClient(endpoint)
	} else {
		sess := session.Must(session.NewSession(aws.NewConfig().WithEndpoint(endpoint)))
		client = apigatewaymanagementapi.New(sess)
	}
	b.mgmtClients[endpoint] = client
	return client
}

// isGone reports whether the delivery channel said the remote transport no
// longer exists (HTTP 410).
func isGone(err error) bool {
	var gone *apigatewaymanagementapi.GoneException
	if errors.As(err, &gone) {
		return true
	}
	var ae awserr.Error
	return errors.As(err, &ae) && ae.Code() == apigatewaymanagementapi.ErrCodeGoneException
}
