package huddlews

import (
	"context"
	"testing"
	"time"

	"github.com/tj/assert"

	"github.com/huddle-live/huddle-go-utils/huddle-ws/connectiondao"
)

func TestBroadcast(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to every room member except the excluded connection", func(t *testing.T) {
		directory := newFakeDirectory(
			connectiondao.Connection{ConnectionID: "conn-a", UserID: "alice", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
			connectiondao.Connection{ConnectionID: "conn-b", UserID: "bob", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
			connectiondao.Connection{ConnectionID: "conn-c", UserID: "carol", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
			connectiondao.Connection{ConnectionID: "conn-z", UserID: "zed", RoomID: "room-2", Endpoint: "https://ws.test/prod"},
		)
		mgmt := newFakeManagementAPI()
		b := newTestBroadcaster(directory, mgmt)

		b.Broadcast(ctx, "room-1", ChatMessage("room-1", "alice", nil), "conn-a")

		assert.Equal(t, 0, mgmt.postedTo("conn-a"))
		assert.Equal(t, 1, mgmt.postedTo("conn-b"))
		assert.Equal(t, 1, mgmt.postedTo("conn-c"))
		assert.Equal(t, 0, mgmt.postedTo("conn-z"))
	})

	t.Run("gone connection is evicted from the directory", func(t *testing.T) {
		directory := newFakeDirectory(
			connectiondao.Connection{ConnectionID: "conn-a", UserID: "alice", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
			connectiondao.Connection{ConnectionID: "conn-b", UserID: "bob", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
			connectiondao.Connection{ConnectionID: "conn-c", UserID: "carol", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
		)
		mgmt := newFakeManagementAPI()
		mgmt.gone["conn-b"] = true
		b := newTestBroadcaster(directory, mgmt)

		b.Broadcast(ctx, "room-1", UserJoined("room-1", "alice"), "conn-a")

		conns, err := directory.QueryByRoom(ctx, "room-1")
		assert.Nil(t, err)
		assert.Len(t, conns, 2)
		for _, conn := range conns {
			assert.NotEqual(t, "conn-b", conn.ConnectionID)
		}

		// a follow-up broadcast no longer attempts the evicted connection
		b.Broadcast(ctx, "room-1", UserLeft("room-1", "bob"), "")
		assert.Equal(t, 1, mgmt.postedTo("conn-b"))
	})

	t.Run("one failing delivery does not affect the others", func(t *testing.T) {
		directory := newFakeDirectory(
			connectiondao.Connection{ConnectionID: "conn-a", UserID: "alice", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
			connectiondao.Connection{ConnectionID: "conn-b", UserID: "bob", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
			connectiondao.Connection{ConnectionID: "conn-c", UserID: "carol", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
		)
		mgmt := newFakeManagementAPI()
		mgmt.failing["conn-b"] = true
		b := newTestBroadcaster(directory, mgmt)

		b.Broadcast(ctx, "room-1", RoomEnded("room-1"), "")

		assert.Equal(t, 1, mgmt.postedTo("conn-a"))
		assert.Equal(t, 1, mgmt.postedTo("conn-c"))

		// a non-gone failure must not evict the row
		conns, err := directory.QueryByRoom(ctx, "room-1")
		assert.Nil(t, err)
		assert.Len(t, conns, 3)
	})

	t.Run("empty room is a no-op", func(t *testing.T) {
		directory := newFakeDirectory()
		mgmt := newFakeManagementAPI()
		b := newTestBroadcaster(directory, mgmt)

		b.Broadcast(ctx, "room-1", RoomEnded("room-1"), "")

		assert.Len(t, mgmt.posted, 0)
	})

	t.Run("slow membership query is abandoned under the timeout budget", func(t *testing.T) {
		directory := newFakeDirectory(
			connectiondao.Connection{ConnectionID: "conn-a", UserID: "alice", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
		)
		mgmt := newFakeManagementAPI()
		b := newTestBroadcaster(directory, mgmt)
		b.QueryTimeout = 10 * time.Millisecond
		b.Connections = slowDirectory{fakeDirectory: directory, delay: 250 * time.Millisecond}

		b.Broadcast(ctx, "room-1", RoomEnded("room-1"), "")

		assert.Len(t, mgmt.posted, 0)
	})
}

func TestNotifyUser(t *testing.T) {
	ctx := context.Background()

	t.Run("delivers to every connection the user holds", func(t *testing.T) {
		directory := newFakeDirectory(
			connectiondao.Connection{ConnectionID: "conn-a1", UserID: "alice", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
			connectiondao.Connection{ConnectionID: "conn-a2", UserID: "alice", RoomID: "room-2", Endpoint: "https://ws.test/prod"},
			connectiondao.Connection{ConnectionID: "conn-b", UserID: "bob", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
		)
		mgmt := newFakeManagementAPI()
		b := newTestBroadcaster(directory, mgmt)

		b.NotifyUser(ctx, "alice", Event{Type: EventPong})

		assert.Equal(t, 1, mgmt.postedTo("conn-a1"))
		assert.Equal(t, 1, mgmt.postedTo("conn-a2"))
		assert.Equal(t, 0, mgmt.postedTo("conn-b"))
	})
}

// slowDirectory delays room queries to exercise the timeout guard.
type slowDirectory struct {
	*fakeDirectory
	delay time.Duration
}

func (d slowDirectory) QueryByRoom(ctx context.Context, roomID string) ([]connectiondao.Connection, error) {
	select {
	case <-time.After(d.delay):
	case <-ctx.Done():
		return nil, ctx.Err()
	}
	return d.fakeDirectory.QueryByRoom(ctx, roomID)
}
