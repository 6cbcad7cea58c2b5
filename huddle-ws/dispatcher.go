package huddlews

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-lambda-go/events"
	consumer "github.com/harlow/kinesis-consumer"
	"github.com/rs/zerolog"

	"github.com/huddle-live/huddle-go-utils/huddle-ws/publish"
)

// Dispatcher consumes the realtime events stream and fans each envelope out
// through the Broadcaster.
type Dispatcher struct {
	Broadcaster *Broadcaster
	Logger      zerolog.Logger
}

// HandleKinesisEvent processes a batch of Kinesis records. A bad record is
// logged and skipped rather than failing the whole batch.
func (d *Dispatcher) HandleKinesisEvent(ctx context.Context, event events.KinesisEvent) error {
	for _, record := range event.Records {
		if err := d.processData(ctx, record.Kinesis.Data); err != nil {
			d.Logger.Error().Err(err).
				Str("event_id", record.EventID).
				Msg("failed to process kinesis record")
		}
	}
	return nil
}

func (d *Dispatcher) processData(ctx context.Context, data []byte) error {
	var envelope publish.Envelope
	if err := json.Unmarshal(data, &envelope); err != nil {
		return fmt.Errorf("unmarshalling kinesis record: %w", err)
	}

	var event Event
	if err := json.Unmarshal(envelope.Event, &event); err != nil {
		return fmt.Errorf("unmarshalling envelope event: %w", err)
	}

	switch {
	case envelope.UserID != "":
		d.Broadcaster.NotifyUser(ctx, envelope.UserID, event)
	case envelope.RoomID != "":
		d.Broadcaster.Broadcast(ctx, envelope.RoomID, event, envelope.ExcludeConnectionID)
	default:
		d.Logger.Warn().Msg("envelope has neither room nor user, skipping")
	}
	return nil
}

// ListenConsole tails the live stream from the latest position. Used when
// running outside Lambda.
func (d *Dispatcher) ListenConsole(ctx context.Context, streamName string) error {
	c, err := consumer.New(streamName, consumer.WithShardIteratorType("LATEST"))
	if err != nil {
		return fmt.Errorf("creating kinesis consumer for %v: %w", streamName, err)
	}

	ctx = d.Logger.WithContext(ctx)
	fmt.Println("Listening...")
	return c.Scan(ctx, func(record *consumer.Record) error {
		if err := d.processData(ctx, record.Data); err != nil {
			d.Logger.Error().Err(err).Msg("failed to process stream record")
		}
		return nil
	})
}
