package huddlews

import (
	"encoding/json"
	"testing"

	"github.com/tj/assert"
)

func TestParseClientMessage(t *testing.T) {
	t.Run("parses a send_message frame", func(t *testing.T) {
		msg, err := ParseClientMessage(`{"action":"send_message","body":{"text":"hello"}}`)
		assert.Nil(t, err)
		assert.Equal(t, ActionSendMessage, msg.Action)
		assert.Equal(t, `{"text":"hello"}`, string(msg.Body))
	})

	t.Run("rejects malformed json", func(t *testing.T) {
		_, err := ParseClientMessage(`not json`)
		assert.NotNil(t, err)
	})

	t.Run("rejects a frame without an action", func(t *testing.T) {
		_, err := ParseClientMessage(`{"body":{"text":"hello"}}`)
		assert.NotNil(t, err)
	})
}

func TestEventMarshal(t *testing.T) {
	t.Run("chat events carry the raw body", func(t *testing.T) {
		data, err := ChatMessage("room-1", "alice", json.RawMessage(`{"text":"hi"}`)).Marshal()
		assert.Nil(t, err)

		var got Event
		assert.Nil(t, json.Unmarshal(data, &got))
		assert.Equal(t, EventChatMessage, got.Type)
		assert.Equal(t, "room-1", got.RoomID)
		assert.Equal(t, "alice", got.UserID)
		assert.Equal(t, `{"text":"hi"}`, string(got.Payload))
		assert.True(t, got.SentAt > 0)
	})

	t.Run("pong frames are well formed", func(t *testing.T) {
		var got Event
		assert.Nil(t, json.Unmarshal(PongFrame(), &got))
		assert.Equal(t, EventPong, got.Type)
	})
}
