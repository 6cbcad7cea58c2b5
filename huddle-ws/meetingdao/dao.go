package meetingdao

import (
	"context"
	"errors"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/aws"
	"github.com/aws/aws-sdk-go/aws/awserr"
	"github.com/aws/aws-sdk-go/service/dynamodb"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbattribute"
	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"

	"github.com/huddle-live/huddle-go-utils/faults"
)

// DAO provides access to the meetings table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new meetings DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Meeting{}),
		api:       api,
		tableName: tableName,
	}
}

// Put stores a meeting record.
func (d *DAO) Put(ctx context.Context, m Meeting) error {
	if m.RecordType == "" {
		m.RecordType = RecordTypeMeeting
	}
	if err := d.table.Put(m).RunWithContext(ctx); err != nil {
		return faults.TransientStore(fmt.Sprintf("failed to put meeting for room %v", m.RoomID), err)
	}
	return nil
}

// Get retrieves the meeting bound to a room. A missing row returns (nil, nil).
func (d *DAO) Get(ctx context.Context, roomID string) (*Meeting, error) {
	var m Meeting
	if err := d.table.Get(roomID).ScanWithContext(ctx, &m); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, nil
		}
		return nil, faults.TransientStore(fmt.Sprintf("failed to get meeting for room %v", roomID), err)
	}
	return &m, nil
}

// Delete removes the meeting bound to a room. Deleting a missing row is not
// an error, so terminated sessions stay terminated.
func (d *DAO) Delete(ctx context.Context, roomID string) error {
	if err := d.table.Delete(roomID).RunWithContext(ctx); err != nil {
		return faults.TransientStore(fmt.Sprintf("failed to delete meeting for room %v", roomID), err)
	}
	return nil
}

// ListActive scans the meetings table and returns the real sessions eligible
// for processing: rate-limit bookkeeping rows and rows whose processing lock
// is still held are filtered out.
func (d *DAO) ListActive(ctx context.Context) ([]Meeting, error) {
	input := &dynamodb.ScanInput{
		TableName:        aws.String(d.tableName),
		FilterExpression: aws.String("record_type = :meeting AND (attribute_not_exists(lock_expires_at) OR lock_expires_at < :now)"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":meeting": {S: aws.String(RecordTypeMeeting)},
			":now":     {N: aws.String(fmt.Sprintf("%d", time.Now().Unix()))},
		},
	}

	var meetings []Meeting
	for {
		output, err := d.api.ScanWithContext(ctx, input)
		if err != nil {
			return nil, faults.TransientStore("failed to scan meetings table", err)
		}

		var page []Meeting
		if err := dynamodbattribute.UnmarshalListOfMaps(output.Items, &page); err != nil {
			return nil, fmt.Errorf("failed to unmarshal meetings page: %w", err)
		}
		meetings = append(meetings, page...)

		if output.LastEvaluatedKey == nil {
			break
		}
		input.ExclusiveStartKey = output.LastEvaluatedKey
	}
	return meetings, nil
}

// Lock claims a room's meeting for exclusive processing until the given
// time. The lock is advisory; concurrent sweeps terminating the same meeting
// are idempotent, the lock only avoids duplicate work. The update is
// conditional on the row still existing so a concurrent delete never leaves
// a bare lock row behind; a row that is already gone counts as locked.
func (d *DAO) Lock(ctx context.Context, roomID string, until time.Time) error {
	_, err := d.api.UpdateItemWithContext(ctx, &dynamodb.UpdateItemInput{
		TableName: aws.String(d.tableName),
		Key: map[string]*dynamodb.AttributeValue{
			"pk": {S: aws.String(roomID)},
		},
		ConditionExpression: aws.String("attribute_exists(pk)"),
		UpdateExpression:    aws.String("SET lock_expires_at = :until"),
		ExpressionAttributeValues: map[string]*dynamodb.AttributeValue{
			":until": {N: aws.String(fmt.Sprintf("%d", until.Unix()))},
		},
	})
	if err != nil {
		var ae awserr.Error
		if errors.As(err, &ae) && ae.Code() == dynamodb.ErrCodeConditionalCheckFailedException {
			return nil
		}
		return faults.TransientStore(fmt.Sprintf("failed to lock meeting for room %v", roomID), err)
	}
	return nil
}
