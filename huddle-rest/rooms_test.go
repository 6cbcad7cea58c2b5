package huddlerest

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/tj/assert"

	huddlews "github.com/huddle-live/huddle-go-utils/huddle-ws"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/connectiondao"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/meetingdao"
)

type fakeMeetings struct {
	meetings map[string]meetingdao.Meeting
	deleted  []string
}

func (f *fakeMeetings) Get(ctx context.Context, roomID string) (*meetingdao.Meeting, error) {
	meeting, ok := f.meetings[roomID]
	if !ok {
		return nil, nil
	}
	return &meeting, nil
}

func (f *fakeMeetings) Delete(ctx context.Context, roomID string) error {
	f.deleted = append(f.deleted, roomID)
	return nil
}

type fakeTerminator struct {
	terminated []string
}

func (f *fakeTerminator) Terminate(ctx context.Context, meetingID string) error {
	f.terminated = append(f.terminated, meetingID)
	return nil
}

type fakeNotifier struct {
	events []huddlews.Event
}

func (f *fakeNotifier) Broadcast(ctx context.Context, roomID string, event huddlews.Event, excludeConnectionID string) {
	f.events = append(f.events, event)
}

type fakeConnections struct {
	conns []connectiondao.Connection
}

func (f *fakeConnections) Put(ctx context.Context, conn connectiondao.Connection) error { return nil }
func (f *fakeConnections) Get(ctx context.Context, connectionID string) (*connectiondao.Connection, error) {
	return nil, nil
}
func (f *fakeConnections) Delete(ctx context.Context, connectionID string) error { return nil }
func (f *fakeConnections) QueryByRoom(ctx context.Context, roomID string) ([]connectiondao.Connection, error) {
	return f.conns, nil
}
func (f *fakeConnections) QueryByUser(ctx context.Context, userID string) ([]connectiondao.Connection, error) {
	return nil, nil
}

func newTestAdmin() (*RoomAdmin, *fakeMeetings, *fakeTerminator, *fakeNotifier) {
	meetings := &fakeMeetings{meetings: map[string]meetingdao.Meeting{
		"room-1": {RoomID: "room-1", MeetingID: "meet-1", CreatedAt: time.Now().Unix()},
	}}
	sessions := &fakeTerminator{}
	notifier := &fakeNotifier{}
	admin := &RoomAdmin{
		Meetings: meetings,
		Sessions: sessions,
		Rooms:    notifier,
		Connections: &fakeConnections{conns: []connectiondao.Connection{
			{ConnectionID: "conn-a", UserID: "alice", RoomID: "room-1"},
			{ConnectionID: "conn-b", UserID: "bob", RoomID: "room-1"},
		}},
		AdminToken: "s3cret",
	}
	return admin, meetings, sessions, notifier
}

func TestEndRoom(t *testing.T) {
	t.Run("ends the session and tells the room", func(t *testing.T) {
		admin, meetings, sessions, notifier := newTestAdmin()

		req := httptest.NewRequest(http.MethodPost, "/rooms/room-1/end", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		w := httptest.NewRecorder()
		admin.Routes().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)
		assert.Equal(t, []string{"meet-1"}, sessions.terminated)
		assert.Equal(t, []string{"room-1"}, meetings.deleted)
		assert.Len(t, notifier.events, 1)
		assert.Equal(t, huddlews.EventRoomEnded, notifier.events[0].Type)
	})

	t.Run("unknown room is a 404", func(t *testing.T) {
		admin, _, sessions, _ := newTestAdmin()

		req := httptest.NewRequest(http.MethodPost, "/rooms/room-9/end", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		w := httptest.NewRecorder()
		admin.Routes().ServeHTTP(w, req)

		assert.Equal(t, http.StatusNotFound, w.Code)
		assert.Len(t, sessions.terminated, 0)
	})

	t.Run("missing token is a 401", func(t *testing.T) {
		admin, _, sessions, _ := newTestAdmin()

		req := httptest.NewRequest(http.MethodPost, "/rooms/room-1/end", nil)
		w := httptest.NewRecorder()
		admin.Routes().ServeHTTP(w, req)

		assert.Equal(t, http.StatusUnauthorized, w.Code)
		assert.Len(t, sessions.terminated, 0)
	})
}

func TestListConnections(t *testing.T) {
	t.Run("returns the room roster", func(t *testing.T) {
		admin, _, _, _ := newTestAdmin()

		req := httptest.NewRequest(http.MethodGet, "/rooms/room-1/connections", nil)
		req.Header.Set("Authorization", "Bearer s3cret")
		w := httptest.NewRecorder()
		admin.Routes().ServeHTTP(w, req)

		assert.Equal(t, http.StatusOK, w.Code)

		var members []struct {
			ConnectionID string `json:"connectionId"`
			UserID       string `json:"userId"`
		}
		assert.Nil(t, json.Unmarshal(w.Body.Bytes(), &members))
		assert.Len(t, members, 2)
	})
}
