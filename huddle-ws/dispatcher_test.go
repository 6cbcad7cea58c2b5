package huddlews

import (
	"context"
	"encoding/json"
	"testing"

	"github.com/aws/aws-lambda-go/events"
	"github.com/tj/assert"

	"github.com/huddle-live/huddle-go-utils/huddle-ws/connectiondao"
	"github.com/huddle-live/huddle-go-utils/huddle-ws/publish"
)

func kinesisEvent(t *testing.T, envelopes ...publish.Envelope) events.KinesisEvent {
	var records []events.KinesisEventRecord
	for _, envelope := range envelopes {
		data, err := json.Marshal(envelope)
		assert.Nil(t, err)
		records = append(records, events.KinesisEventRecord{
			Kinesis: events.KinesisRecord{Data: data},
		})
	}
	return events.KinesisEvent{Records: records}
}

func TestDispatcher(t *testing.T) {
	ctx := context.Background()

	t.Run("room envelope fans out to the room", func(t *testing.T) {
		directory := newFakeDirectory(
			connectiondao.Connection{ConnectionID: "conn-a", UserID: "alice", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
			connectiondao.Connection{ConnectionID: "conn-b", UserID: "bob", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
		)
		mgmt := newFakeManagementAPI()
		d := &Dispatcher{Broadcaster: newTestBroadcaster(directory, mgmt)}

		event, err := RoomEnded("room-1").Marshal()
		assert.Nil(t, err)

		assert.Nil(t, d.HandleKinesisEvent(ctx, kinesisEvent(t, publish.Envelope{
			RoomID: "room-1",
			Event:  event,
		})))
		assert.Equal(t, 1, mgmt.postedTo("conn-a"))
		assert.Equal(t, 1, mgmt.postedTo("conn-b"))
	})

	t.Run("user envelope reaches only that user", func(t *testing.T) {
		directory := newFakeDirectory(
			connectiondao.Connection{ConnectionID: "conn-a", UserID: "alice", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
			connectiondao.Connection{ConnectionID: "conn-b", UserID: "bob", RoomID: "room-1", Endpoint: "https://ws.test/prod"},
		)
		mgmt := newFakeManagementAPI()
		d := &Dispatcher{Broadcaster: newTestBroadcaster(directory, mgmt)}

		event, err := (Event{Type: EventPong}).Marshal()
		assert.Nil(t, err)

		assert.Nil(t, d.HandleKinesisEvent(ctx, kinesisEvent(t, publish.Envelope{
			UserID: "bob",
			Event:  event,
		})))
		assert.Equal(t, 0, mgmt.postedTo("conn-a"))
		assert.Equal(t, 1, mgmt.postedTo("conn-b"))
	})

	t.Run("a bad record is skipped, the batch succeeds", func(t *testing.T) {
		mgmt := newFakeManagementAPI()
		d := &Dispatcher{Broadcaster: newTestBroadcaster(newFakeDirectory(), mgmt)}

		err := d.HandleKinesisEvent(ctx, events.KinesisEvent{Records: []events.KinesisEventRecord{
			{Kinesis: events.KinesisRecord{Data: []byte("not json")}},
		}})
		assert.Nil(t, err)
		assert.Len(t, mgmt.posted, 0)
	})
}
