package group

import (
	"context"
	"time"
)

// Record is one persisted event row. Records sharing a serial form a Group.
type Record struct {
	ID          int64
	Serial      string
	EventType   EventType
	Description string
	EventData   string
	CreatedAt   time.Time
}

// Event converts the record into its wire form. EventData is carried as a JSON
// string so the stored text reaches clients byte-for-byte.
func (r Record) Event() Event {
	created := r.CreatedAt
	ev := Event{
		EventType:   r.EventType,
		Description: r.Description,
		CreatedAt:   &created,
	}
	if r.EventData != "" {
		ev.EventData = quoteJSON(r.EventData)
	}
	return ev
}

// Repository is the port for persisting and querying event records.
type Repository interface {
	// Append stores a record and returns it with ID and CreatedAt populated.
	Append(ctx context.Context, rec Record) (Record, error)

	// FindBySerial returns every record of one group, oldest first.
	FindBySerial(ctx context.Context, serial string) ([]Record, error)

	// FindRecent returns up to limit records, newest first.
	FindRecent(ctx context.Context, limit int) ([]Record, error)

	// DeleteAll removes every record.
	DeleteAll(ctx context.Context) error
}
