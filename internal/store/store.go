package store

import (
	"context"
	"time"
)

// Record is the persisted state for one slot. LastEmptyAt is nil while the
// slot has never been observed empty. Timestamps are stored in UTC.
type Record struct {
	SlotID      string     `json:"slot_id"`
	GroupID     string     `json:"group_id"`
	PresetName  string     `json:"preset_name"`
	CreatedAt   time.Time  `json:"created_at"`
	LastEmptyAt *time.Time `json:"last_empty_at,omitempty"`
}

// Store persists the whole slot table. Save rewrites the full set on every
// mutation; the table is small (bounded by the preset catalog) so wholesale
// rewrites keep crash recovery simple. Load returning an empty set for
// absent state is expected on first start.
type Store interface {
	EnsureSchema(ctx context.Context) error
	Load(ctx context.Context) ([]Record, error)
	Save(ctx context.Context, recs []Record) error
	Close() error
}
