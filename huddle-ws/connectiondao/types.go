package connectiondao

// Connection represents one live WebSocket transport session stored in
// DynamoDB. RoomID is optional; a connection may exist before joining a room.
type Connection struct {
	ConnectionID string `dynamodbav:"pk" ddb:"hash"`
	UserID       string `dynamodbav:"user_id" ddb:"gsi_hash:UserIndex"`
	RoomID       string `dynamodbav:"room_id,omitempty" ddb:"gsi_hash:RoomIndex"`
	Endpoint     string `dynamodbav:"endpoint"`
	ConnectedAt  int64  `dynamodbav:"connected_at"`
	TTL          int64  `dynamodbav:"ttl"`
}
