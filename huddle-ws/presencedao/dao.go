package presencedao

import (
	"context"
	"fmt"
	"time"

	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"

	"github.com/huddle-live/huddle-go-utils/faults"
)

// DAO provides access to the user presence table.
type DAO struct {
	table *ddb.Table
}

// New creates a new presence DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table: ddb.New(api).MustTable(tableName, Presence{}),
	}
}

// Get retrieves a user's presence row. A user with no row returns (nil, nil).
func (d *DAO) Get(ctx context.Context, userID string) (*Presence, error) {
	var p Presence
	if err := d.table.Get(userID).ScanWithContext(ctx, &p); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, nil
		}
		return nil, faults.TransientStore(fmt.Sprintf("failed to get presence for user %v", userID), err)
	}
	return &p, nil
}

// SetOnline marks a user online, recording the owning connection.
func (d *DAO) SetOnline(ctx context.Context, userID, connectionID string) error {
	return d.put(ctx, Presence{
		UserID:       userID,
		Status:       StatusOnline,
		LastSeen:     time.Now().Unix(),
		ConnectionID: connectionID,
	})
}

// SetOffline marks a user offline and clears the connection back-reference.
func (d *DAO) SetOffline(ctx context.Context, userID string) error {
	return d.put(ctx, Presence{
		UserID:   userID,
		Status:   StatusOffline,
		LastSeen: time.Now().Unix(),
	})
}

func (d *DAO) put(ctx context.Context, p Presence) error {
	if err := d.table.Put(p).RunWithContext(ctx); err != nil {
		return faults.TransientStore(fmt.Sprintf("failed to put presence for user %v", p.UserID), err)
	}
	return nil
}
