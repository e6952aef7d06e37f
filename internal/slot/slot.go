package slot

import (
	"errors"
	"fmt"
	"time"
)

// EvictionMode selects how a slot's eviction deadline is computed.
type EvictionMode string

const (
	// ModeEmptyGrace evicts a slot a fixed grace period after it was last
	// observed empty.
	ModeEmptyGrace EvictionMode = "empty-grace"
	// ModeTTL keeps a slot at least Lifetime from creation and at least
	// Grace past its most recent empty transition, whichever is later.
	ModeTTL EvictionMode = "ttl"
)

// Policy holds the deadline parameters for one deployment.
type Policy struct {
	Mode     EvictionMode
	Grace    time.Duration
	Lifetime time.Duration
}

func (p Policy) Validate() error {
	switch p.Mode {
	case ModeEmptyGrace:
		if p.Grace <= 0 {
			return errors.New("eviction grace must be > 0")
		}
	case ModeTTL:
		if p.Grace <= 0 {
			return errors.New("eviction grace must be > 0")
		}
		if p.Lifetime <= 0 {
			return errors.New("eviction lifetime must be > 0 in ttl mode")
		}
	default:
		return fmt.Errorf("unsupported eviction mode: %q", p.Mode)
	}
	return nil
}

// Slot is one live allocation of a preset name, bound to a single external
// resource id. ID is opaque and assigned by the platform at creation.
// LastEmptyAt is nil while the slot has never been observed empty.
type Slot struct {
	ID          string
	GroupID     string
	PresetName  string
	CreatedAt   time.Time
	LastEmptyAt *time.Time
}

// Deadline computes the eviction deadline for a slot under the given policy.
// ok is false when no deadline applies yet (empty-grace mode before the
// first empty transition).
func (s Slot) Deadline(p Policy) (deadline time.Time, ok bool) {
	switch p.Mode {
	case ModeTTL:
		deadline = s.CreatedAt.Add(p.Lifetime)
		if s.LastEmptyAt != nil {
			if d := s.LastEmptyAt.Add(p.Grace); d.After(deadline) {
				deadline = d
			}
		}
		return deadline, true
	default: // empty-grace
		if s.LastEmptyAt == nil {
			return time.Time{}, false
		}
		return s.LastEmptyAt.Add(p.Grace), true
	}
}
