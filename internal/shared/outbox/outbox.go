package outbox

import "time"

const (
	StatusPending   = "pending"
	StatusPublished = "published"
)

// Message is an outbox row written in the same transaction as the state
// change it announces. Payload holds the JSON encoded event envelope.
type Message struct {
	OutboxID     string
	EventType    string
	PartitionKey string
	Payload      []byte
	Status       string
	CreatedAt    time.Time
}
