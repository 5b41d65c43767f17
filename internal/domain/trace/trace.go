package trace

import (
	"encoding/json"
	"time"
)

// Entry records one group update the server published to stream subscribers.
type Entry struct {
	Timestamp   time.Time       `json:"timestamp"`
	Serial      string          `json:"serial"`
	EventType   string          `json:"event_type"`
	Status      string          `json:"status"`
	Subscribers int             `json:"subscribers"`
	Payload     json.RawMessage `json:"payload"`
}
