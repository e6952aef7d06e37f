package allocator

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/loykin/tempchan/internal/catalog"
	"github.com/loykin/tempchan/internal/clock"
	"github.com/loykin/tempchan/internal/platform"
	"github.com/loykin/tempchan/internal/slot"
)

// Recorder persists a freshly created slot. It is called after the external
// resource exists and before the requester is moved in, so a crash window
// between creation and persistence is as small as the store allows.
type Recorder interface {
	Record(ctx context.Context, s slot.Slot) error
}

// Request asks for one slot. Name is optional: when set it must be a preset
// of the group (picker flow); when empty the first free preset in priority
// order is used.
type Request struct {
	GroupID  string
	MemberID string
	Name     string
}

// Allocator picks a free preset name, creates the resource, records the slot
// and moves the requester in. It holds no mutable state; race safety comes
// from re-listing live names immediately before creation. There is no
// cross-process lock: the guarantee is best effort and depends on the
// platform serializing creation calls.
type Allocator struct {
	pf  platform.Platform
	cat *catalog.Catalog
	clk clock.Clock
}

func New(pf platform.Platform, cat *catalog.Catalog, clk clock.Clock) *Allocator {
	return &Allocator{pf: pf, cat: cat, clk: clk}
}

// Candidates returns the group's presets not currently used by a live
// resource, preserving preset priority order.
func (a *Allocator) Candidates(ctx context.Context, g catalog.Group) ([]string, error) {
	live, err := a.pf.ListLive(ctx, g.Container)
	if err != nil {
		return nil, fmt.Errorf("list live resources: %w", err)
	}
	used := make(map[string]struct{}, len(live))
	for _, r := range live {
		used[r.Name] = struct{}{}
	}
	var out []string
	for _, n := range g.Presets {
		if _, taken := used[n]; !taken {
			out = append(out, n)
		}
	}
	return out, nil
}

// Allocate performs the allocation sequence. On a move failure the slot has
// already been created and recorded: the returned slot is valid and the
// error is a *slot.MoveFailedError; the scheduler reclaims the resource once
// it is observed empty.
func (a *Allocator) Allocate(ctx context.Context, req Request, rec Recorder) (slot.Slot, error) {
	g, ok := a.cat.Group(req.GroupID)
	if !ok {
		return slot.Slot{}, slot.ErrUnknownGroup
	}
	if req.Name != "" && !g.HasPreset(req.Name) {
		return slot.Slot{}, slot.ErrUnknownPreset
	}

	candidates, err := a.Candidates(ctx, g)
	if err != nil {
		return slot.Slot{}, &slot.CreateFailedError{Err: err}
	}
	if len(candidates) == 0 {
		return slot.Slot{}, slot.ErrNoCapacity
	}

	chosen := req.Name
	if chosen == "" {
		chosen = candidates[0]
	} else if !contains(candidates, chosen) {
		return slot.Slot{}, slot.ErrRaceLost
	}

	// Re-list immediately before creation: the first read may be stale by
	// now. This double-check is the sole race-safety mechanism.
	fresh, err := a.Candidates(ctx, g)
	if err != nil {
		return slot.Slot{}, &slot.CreateFailedError{Err: err}
	}
	if !contains(fresh, chosen) {
		return slot.Slot{}, slot.ErrRaceLost
	}

	res, err := a.pf.Create(ctx, g.Container, chosen)
	if err != nil {
		// No partial slot is recorded on creation failure.
		return slot.Slot{}, &slot.CreateFailedError{Err: err}
	}

	s := slot.Slot{
		ID:         res.ID,
		GroupID:    g.ID,
		PresetName: chosen,
		CreatedAt:  a.clk.Now().UTC(),
	}
	if err := rec.Record(ctx, s); err != nil {
		// The resource exists but is not persisted; reconciliation adopts
		// it on the next start.
		return slot.Slot{}, fmt.Errorf("record slot %s: %w", s.ID, err)
	}

	// Admin allocations carry no member to move.
	if req.MemberID != "" {
		if err := a.pf.Move(ctx, req.MemberID, s.ID); err != nil {
			slog.Warn("member move failed after allocation", "slot", s.ID, "member", req.MemberID, "error", err)
			return s, &slot.MoveFailedError{SlotID: s.ID, Err: err}
		}
	}
	return s, nil
}

func contains(names []string, name string) bool {
	for _, n := range names {
		if n == name {
			return true
		}
	}
	return false
}
