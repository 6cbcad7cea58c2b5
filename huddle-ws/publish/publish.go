// Package publish pushes room events onto the realtime Kinesis stream so
// that other services can fan them out without talking to the delivery
// channel directly.
package publish

import (
	"context"
	"encoding/json"
	"fmt"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/session"
	"github.com/aws/aws-sdk-go/service/kinesis"
	"github.com/aws/aws-sdk-go/service/kinesis/kinesisiface"
)

// Envelope is the message format published to the realtime events stream.
// Exactly one of RoomID or UserID is set: RoomID targets a room fan-out,
// UserID targets all of one user's connections.
type Envelope struct {
	RoomID              string          `json:"roomId,omitempty"`
	UserID              string          `json:"userId,omitempty"`
	ExcludeConnectionID string          `json:"excludeConnectionId,omitempty"`
	Event               json.RawMessage `json:"event"`
}

// Publisher publishes events to the realtime Kinesis stream.
type Publisher struct {
	client     kinesisiface.KinesisAPI
	streamName string
}

// New creates a new Publisher.
func New(client kinesisiface.KinesisAPI, streamName string) *Publisher {
	return &Publisher{
		client:     client,
		streamName: streamName,
	}
}

// Build creates a new Publisher using the standard stream name for the given
// environment.
func Build(env string) *Publisher {
	sess := session.Must(session.NewSession(aws.NewConfig()))
	client := kinesis.New(sess)
	return New(client, StreamName(env))
}

// StreamName returns the Kinesis stream name for the given environment.
func StreamName(env string) string {
	return env + "-huddle-ws-events"
}

// SendRoom publishes a room-targeted event. The room id is the partition key
// so events within one room preserve their order on the stream.
func (p *Publisher) SendRoom(ctx context.Context, roomID, excludeConnectionID string, event interface{}) error {
	return p.send(ctx, roomID, Envelope{RoomID: roomID, ExcludeConnectionID: excludeConnectionID}, event)
}

// SendUser publishes a user-targeted event, partitioned by user id.
func (p *Publisher) SendUser(ctx context.Context, userID string, event interface{}) error {
	return p.send(ctx, userID, Envelope{UserID: userID}, event)
}

func (p *Publisher) send(ctx context.Context, partitionKey string, envelope Envelope, event interface{}) error {
	eventBytes, err := json.Marshal(event)
	if err != nil {
		return fmt.Errorf("marshalling event: %w", err)
	}
	envelope.Event = eventBytes

	data, err := json.Marshal(envelope)
	if err != nil {
		return fmt.Errorf("marshalling envelope: %w", err)
	}

	_, err = p.client.PutRecordWithContext(ctx, &kinesis.PutRecordInput{
		StreamName:   aws.String(p.streamName),
		PartitionKey: aws.String(partitionKey),
		Data:         data,
	})
	if err != nil {
		return fmt.Errorf("publishing to kinesis stream %v: %w", p.streamName, err)
	}

	return nil
}
