package presencedao

const (
	StatusOnline  = "online"
	StatusOffline = "offline"
)

// Presence represents a user's aggregate online status. ConnectionID is a
// back-reference to the most recent live connection; it is cleared when the
// user goes offline.
type Presence struct {
	UserID       string `dynamodbav:"pk" ddb:"hash"`
	Status       string `dynamodbav:"status"`
	LastSeen     int64  `dynamodbav:"last_seen"`
	ConnectionID string `dynamodbav:"connection_id,omitempty"`
}
