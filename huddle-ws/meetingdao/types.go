package meetingdao

// Record types stored in the meetings table. The table doubles as
// rate-limit bookkeeping storage; only RecordTypeMeeting rows describe real
// conferencing sessions.
const (
	RecordTypeMeeting   = "meeting"
	RecordTypeRateLimit = "ratelimit"
)

// Meeting binds a room to its externally-hosted conferencing session. Each
// active room has at most one meeting row.
type Meeting struct {
	RoomID        string `dynamodbav:"pk" ddb:"hash"`
	MeetingID     string `dynamodbav:"meeting_id"`
	RecordType    string `dynamodbav:"record_type"`
	CreatedAt     int64  `dynamodbav:"created_at"`
	CreatedBy     string `dynamodbav:"created_by,omitempty"`
	LockExpiresAt int64  `dynamodbav:"lock_expires_at,omitempty"`
	TTL           int64  `dynamodbav:"ttl,omitempty"`
}
