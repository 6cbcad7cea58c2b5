package huddlews

import (
	"encoding/json"
	"fmt"
	"time"
)

// Room event types pushed to connected peers.
const (
	EventUserJoined  = "user_joined"
	EventUserLeft    = "user_left"
	EventChatMessage = "chat_message"
	EventRoomEnded   = "room_ended"
	EventPong        = "pong"
)

// Event is the frame delivered to every member of a room.
type Event struct {
	Type    string          `json:"type"`
	RoomID  string          `json:"roomId,omitempty"`
	UserID  string          `json:"userId,omitempty"`
	SentAt  int64           `json:"sentAt,omitempty"`
	Payload json.RawMessage `json:"payload,omitempty"`
}

// Marshal serializes the event once; the same bytes are posted to every
// recipient of a fan-out.
func (e Event) Marshal() ([]byte, error) {
	data, err := json.Marshal(e)
	if err != nil {
		return nil, fmt.Errorf("marshalling %v event: %w", e.Type, err)
	}
	return data, nil
}

// UserJoined builds the event broadcast when a peer enters a room.
func UserJoined(roomID, userID string) Event {
	return Event{Type: EventUserJoined, RoomID: roomID, UserID: userID, SentAt: time.Now().Unix()}
}

// UserLeft builds the event broadcast when a peer leaves a room.
func UserLeft(roomID, userID string) Event {
	return Event{Type: EventUserLeft, RoomID: roomID, UserID: userID, SentAt: time.Now().Unix()}
}

// RoomEnded builds the event broadcast when a room is explicitly ended.
func RoomEnded(roomID string) Event {
	return Event{Type: EventRoomEnded, RoomID: roomID, SentAt: time.Now().Unix()}
}

// ChatMessage builds a chat event carrying a user-composed body.
func ChatMessage(roomID, userID string, body json.RawMessage) Event {
	return Event{Type: EventChatMessage, RoomID: roomID, UserID: userID, SentAt: time.Now().Unix(), Payload: body}
}

// Inbound client message actions on the $default route.
const (
	ActionSendMessage = "send_message"
	ActionPing        = "ping"
)

// ClientMessage is a frame received from a connected client.
type ClientMessage struct {
	Action string          `json:"action"`
	Body   json.RawMessage `json:"body,omitempty"`
}

// ParseClientMessage parses a client frame from a JSON string.
func ParseClientMessage(body string) (*ClientMessage, error) {
	var msg ClientMessage
	if err := json.Unmarshal([]byte(body), &msg); err != nil {
		return nil, fmt.Errorf("invalid client message: %w", err)
	}
	if msg.Action == "" {
		return nil, fmt.Errorf("missing message action")
	}
	return &msg, nil
}

// PongFrame returns the reply to a client ping.
func PongFrame() []byte {
	b, _ := json.Marshal(Event{Type: EventPong, SentAt: time.Now().Unix()})
	return b
}
