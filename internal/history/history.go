package history

import (
	"context"
	"time"

	"github.com/loykin/tempchan/internal/store"
)

// EventType defines the kind of slot lifecycle event.
type EventType string

const (
	EventAllocated EventType = "allocated"
	EventEvicted   EventType = "evicted"
	EventAdopted   EventType = "adopted"
	// EventRemoved covers slots dropped without an eviction delete: the
	// resource vanished externally or was stale at reconciliation.
	EventRemoved EventType = "removed"
)

// Event represents a slot lifecycle event to be exported to external systems.
type Event struct {
	Type       EventType    `json:"type"`
	OccurredAt time.Time    `json:"occurred_at"`
	Detail     string       `json:"detail,omitempty"`
	Record     store.Record `json:"record"`
}

// Sink is a destination for history events (analytics/statistics systems).
// Implementations must be safe for concurrent use. Send failures are logged
// by the caller and never block or fail slot operations.
type Sink interface {
	Send(ctx context.Context, e Event) error
}
