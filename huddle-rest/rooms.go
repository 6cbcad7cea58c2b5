package huddlerest

import (
	"context"
	"encoding/json"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/rs/zerolog"

	huddlews "github.com/huddle-live/huddle-go-utils/huddle-ws"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/meetingdao"
)

// MeetingStore is the directory view the admin routes need.
type MeetingStore interface {
	Get(ctx context.Context, roomID string) (*meetingdao.Meeting, error)
	Delete(ctx context.Context, roomID string) error
}

// SessionTerminator ends an external conferencing session.
type SessionTerminator interface {
	Terminate(ctx context.Context, meetingID string) error
}

// RoomAdmin serves the explicit room administration surface: ending a room
// and inspecting its roster.
type RoomAdmin struct {
	Meetings    MeetingStore
	Sessions    SessionTerminator
	Rooms       huddlews.RoomNotifier
	Connections huddlews.ConnectionDirectory
	Logger      zerolog.Logger

	// AdminToken guards the routes when non-empty.
	AdminToken string
}

func (a *RoomAdmin) Routes() chi.Router {
	r := chi.NewRouter()
	r.Use(a.requireToken)
	r.Post("/rooms/{roomID}/end", a.endRoom)
	r.Get("/rooms/{roomID}/connections", a.listConnections)
	return r
}

// endRoom terminates the room's conferencing session, removes the directory
// row, and tells remaining peers the room is over. Termination is
// idempotent, so ending an already-ended room succeeds.
func (a *RoomAdmin) endRoom(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	roomID := chi.URLParam(req, "roomID")

	meeting, err := a.Meetings.Get(ctx, roomID)
	if err != nil {
		a.Logger.Error().Err(err).Str("room_id", roomID).Msg("failed to look up meeting")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "lookup failed"})
		return
	}
	if meeting == nil {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "room not found"})
		return
	}

	if err := a.Sessions.Terminate(ctx, meeting.MeetingID); err != nil {
		a.Logger.Error().Err(err).Str("room_id", roomID).Msg("failed to terminate session")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "terminate failed"})
		return
	}
	if err := a.Meetings.Delete(ctx, roomID); err != nil {
		a.Logger.Error().Err(err).Str("room_id", roomID).Msg("failed to delete meeting row")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "delete failed"})
		return
	}

	a.Rooms.Broadcast(ctx, roomID, huddlews.RoomEnded(roomID), "")

	a.Logger.Info().Str("room_id", roomID).Msg("room ended")
	writeJSON(w, http.StatusOK, map[string]bool{"ended": true})
}

func (a *RoomAdmin) listConnections(w http.ResponseWriter, req *http.Request) {
	ctx := req.Context()
	roomID := chi.URLParam(req, "roomID")

	conns, err := a.Connections.QueryByRoom(ctx, roomID)
	if err != nil {
		a.Logger.Error().Err(err).Str("room_id", roomID).Msg("failed to query room connections")
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "query failed"})
		return
	}

	type member struct {
		ConnectionID string `json:"connectionId"`
		UserID       string `json:"userId"`
		ConnectedAt  int64  `json:"connectedAt"`
	}
	members := make([]member, 0, len(conns))
	for _, conn := range conns {
		members = append(members, member{
			ConnectionID: conn.ConnectionID,
			UserID:       conn.UserID,
			ConnectedAt:  conn.ConnectedAt,
		})
	}
	writeJSON(w, http.StatusOK, members)
}

func (a *RoomAdmin) requireToken(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, req *http.Request) {
		if a.AdminToken != "" && req.Header.Get("Authorization") != "Bearer "+a.AdminToken {
			writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "unauthorized"})
			return
		}
		next.ServeHTTP(w, req)
	})
}

func writeJSON(w http.ResponseWriter, status int, v interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
