package connectiondao

import (
	"context"
	"fmt"

	"github.com/aws/aws-sdk-go/service/dynamodb/dynamodbiface"
	"github.com/savaki/ddb"

	"github.com/huddle-live/huddle-go-utils/faults"
)

// DAO provides access to the WebSocket connections table.
type DAO struct {
	table     *ddb.Table
	api       dynamodbiface.DynamoDBAPI
	tableName string
}

// New creates a new connections DAO.
func New(api dynamodbiface.DynamoDBAPI, tableName string) *DAO {
	return &DAO{
		table:     ddb.New(api).MustTable(tableName, Connection{}),
		api:       api,
		tableName: tableName,
	}
}

// Put stores a connection record.
func (d *DAO) Put(ctx context.Context, conn Connection) error {
	if err := d.table.Put(conn).RunWithContext(ctx); err != nil {
		return faults.TransientStore(fmt.Sprintf("failed to put connection %v", conn.ConnectionID), err)
	}
	return nil
}

// Get retrieves a connection record by ID. A missing row returns (nil, nil)
// so that disconnect of an already-reaped connection stays a no-op.
func (d *DAO) Get(ctx context.Context, connectionID string) (*Connection, error) {
	var conn Connection
	if err := d.table.Get(connectionID).ScanWithContext(ctx, &conn); err != nil {
		if ddb.IsItemNotFoundError(err) {
			return nil, nil
		}
		return nil, faults.TransientStore(fmt.Sprintf("failed to get connection %v", connectionID), err)
	}
	return &conn, nil
}

// Delete removes a connection record by ID.
func (d *DAO) Delete(ctx context.Context, connectionID string) error {
	if err := d.table.Delete(connectionID).RunWithContext(ctx); err != nil {
		return faults.TransientStore(fmt.Sprintf("failed to delete connection %v", connectionID), err)
	}
	return nil
}

// QueryByRoom returns all connections in a room using the RoomIndex GSI.
func (d *DAO) QueryByRoom(ctx context.Context, roomID string) ([]Connection, error) {
	var conns []Connection
	err := d.table.Query("#RoomID = ?", roomID).
		IndexName("RoomIndex").
		FindAllWithContext(ctx, &conns)
	if err != nil {
		return nil, faults.TransientStore(fmt.Sprintf("failed to query connections by room %v", roomID), err)
	}
	return conns, nil
}

// QueryByUser returns all connections for a user using the UserIndex GSI.
func (d *DAO) QueryByUser(ctx context.Context, userID string) ([]Connection, error) {
	var conns []Connection
	err := d.table.Query("#UserID = ?", userID).
		IndexName("UserIndex").
		FindAllWithContext(ctx, &conns)
	if err != nil {
		return nil, faults.TransientStore(fmt.Sprintf("failed to query connections by user %v", userID), err)
	}
	return conns, nil
}
