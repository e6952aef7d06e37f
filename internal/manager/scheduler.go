package manager

import (
	"context"
	"errors"
	"log/slog"
	"time"

	"github.com/loykin/tempchan/internal/allocator"
	"github.com/loykin/tempchan/internal/history"
	"github.com/loykin/tempchan/internal/metrics"
	"github.com/loykin/tempchan/internal/platform"
	"github.com/loykin/tempchan/internal/slot"
)

// handleOccupancy drives both the trigger flow and the eviction scheduler.
// All branches run on the control loop.
func (m *Manager) handleOccupancy(ctx context.Context, ev platform.OccupancyEvent) {
	// Trigger entry starts the allocation flow.
	if g, ok := m.cat.GroupByTrigger(ev.ToID); ok && ev.MemberID != "" {
		switch m.cfg.PickMode {
		case PickManual:
			m.pend.Add(ev.MemberID, g.ID)
			metrics.SetPendingRequests(len(m.pend.All()))
			slog.Info("pending request recorded", "member", ev.MemberID, "group", g.ID)
		default:
			if _, err := m.handleAllocate(ctx, allocator.Request{GroupID: g.ID, MemberID: ev.MemberID}); err != nil {
				slog.Warn("trigger allocation failed", "member", ev.MemberID, "group", g.ID, "error", err)
			}
		}
	}

	// Someone joined a tracked slot: cancel its pending eviction.
	if ev.ToID != "" {
		if s, tracked := m.slots[ev.ToID]; tracked {
			m.cancelTimer(ev.ToID)
			m.markOccupied(ctx, s)
		}
	}

	// Someone left a tracked slot: re-read occupancy and maybe start the
	// grace period.
	if ev.FromID != "" && ev.FromID != ev.ToID {
		if s, tracked := m.slots[ev.FromID]; tracked {
			m.observeMaybeEmpty(ctx, s)
		}
	}
}

// observeMaybeEmpty re-reads the slot's live occupancy and, on an empty
// observation, stamps LastEmptyAt, persists and (re-)arms the timer.
// LastEmptyAt is non-nil only while the slot is known empty: it is stamped on
// the first empty observation and cleared the moment occupancy is seen again,
// so a repeated leave event never moves the deadline in either mode.
func (m *Manager) observeMaybeEmpty(ctx context.Context, s *slot.Slot) {
	res, ok, err := m.pf.Resource(ctx, s.ID)
	if err != nil {
		slog.Warn("occupancy read failed", "slot", s.ID, "error", err)
		return
	}
	if !ok {
		m.untrack(ctx, s.ID, history.EventRemoved, "vanished")
		return
	}
	if res.Occupants > 0 {
		m.markOccupied(ctx, s)
		return
	}
	if s.LastEmptyAt == nil {
		now := m.clk.Now().UTC()
		s.LastEmptyAt = &now
		m.persist(ctx)
	} else if _, armed := m.timers[s.ID]; armed {
		return
	}
	if deadline, ok := s.Deadline(m.cfg.Policy); ok {
		m.armTimer(s.ID, deadline)
	}
}

// markOccupied drops the empty stamp so the next empty transition starts a
// fresh grace window instead of reusing a stale timestamp.
func (m *Manager) markOccupied(ctx context.Context, s *slot.Slot) {
	if s.LastEmptyAt == nil {
		return
	}
	s.LastEmptyAt = nil
	m.persist(ctx)
}

// armTimer schedules an evict-candidate message for the slot. At most one
// timer is live per slot id: arming always cancels the previous one. The
// callback only posts a message; state is touched on the control loop.
func (m *Manager) armTimer(slotID string, deadline time.Time) {
	m.cancelTimer(slotID)
	d := deadline.Sub(m.clk.Now())
	if d < 0 {
		d = 0
	}
	m.timers[slotID] = m.clk.AfterFunc(d, func() {
		select {
		case m.ctrl <- ctrlMsg{typ: ctrlEvictCandidate, slotID: slotID}:
		case <-m.done:
		}
	})
}

func (m *Manager) cancelTimer(slotID string) {
	if t, ok := m.timers[slotID]; ok {
		t.Stop()
		delete(m.timers, slotID)
	}
}

// handleEvictCandidate runs when a timer fires. The fire may be stale:
// occupancy is re-read and a non-empty slot is left alone. A later empty
// transition re-arms, so no re-arm happens here.
func (m *Manager) handleEvictCandidate(ctx context.Context, slotID string) {
	s, tracked := m.slots[slotID]
	if !tracked {
		return
	}
	delete(m.timers, slotID) // fired; nothing to stop

	res, ok, err := m.pf.Resource(ctx, slotID)
	if err != nil {
		// Left for the next fire or reconciliation; no tight retry loop.
		slog.Warn("eviction occupancy read failed", "slot", slotID, "error", err)
		return
	}
	if !ok {
		m.untrack(ctx, slotID, history.EventRemoved, "vanished")
		return
	}
	if res.Occupants > 0 {
		// Stale fire. Occupancy may have arrived without a join event.
		m.markOccupied(ctx, s)
		return
	}
	if err := m.pf.Delete(ctx, slotID); err != nil {
		slog.Warn("resource delete failed, leaving for reconciliation", "slot", slotID, "error", err)
		return
	}
	slog.Info("slot evicted", "slot", slotID, "group", s.GroupID, "name", s.PresetName)
	m.untrack(ctx, slotID, history.EventEvicted, "grace_elapsed")
}

// handleEvict is the manual/API eviction path: delete-if-empty semantics,
// idempotent for unknown or already-deleted ids.
func (m *Manager) handleEvict(ctx context.Context, slotID, reason string) error {
	s, tracked := m.slots[slotID]
	if !tracked {
		return nil
	}
	res, ok, err := m.pf.Resource(ctx, slotID)
	if err != nil {
		return err
	}
	if ok {
		if res.Occupants > 0 {
			return ErrOccupied
		}
		if err := m.pf.Delete(ctx, slotID); err != nil {
			return err
		}
		slog.Info("slot evicted", "slot", slotID, "group", s.GroupID, "reason", reason)
		m.untrack(ctx, slotID, history.EventEvicted, reason)
		return nil
	}
	m.untrack(ctx, slotID, history.EventRemoved, "vanished")
	return nil
}

// untrack removes a slot from the table, cancels its timer, persists and
// reports the removal.
func (m *Manager) untrack(ctx context.Context, slotID string, typ history.EventType, reason string) {
	s, tracked := m.slots[slotID]
	if !tracked {
		return
	}
	snapshot := *s
	m.cancelTimer(slotID)
	delete(m.slots, slotID)
	m.persist(ctx)
	metrics.IncEviction(reason)
	m.emit(ctx, typ, reason, snapshot)
}

// handleAllocate runs the full allocation sequence on the control loop.
func (m *Manager) handleAllocate(ctx context.Context, req allocator.Request) (slot.Slot, error) {
	start := m.clk.Now()
	s, err := m.alloc.Allocate(ctx, req, recorderFunc(func(ctx context.Context, s slot.Slot) error {
		cp := s
		m.slots[s.ID] = &cp
		m.persist(ctx)
		return nil
	}))
	metrics.ObserveAllocationDuration(m.clk.Now().Sub(start).Seconds())

	var moveErr *slot.MoveFailedError
	switch {
	case err == nil:
		metrics.IncAllocation("success")
		m.emit(ctx, history.EventAllocated, "", s)
		m.afterAllocate(ctx, s, false)
		slog.Info("slot allocated", "slot", s.ID, "group", s.GroupID, "name", s.PresetName, "member", req.MemberID)
		return s, nil
	case errors.As(err, &moveErr):
		// The slot exists and is tracked; the member never arrived, so the
		// resource is empty and eligible for eviction right away.
		metrics.IncAllocation("move_failed")
		m.emit(ctx, history.EventAllocated, "move failed", s)
		m.afterAllocate(ctx, s, true)
		return s, err
	case errors.Is(err, slot.ErrNoCapacity):
		metrics.IncAllocation("no_capacity")
		return slot.Slot{}, err
	case errors.Is(err, slot.ErrRaceLost):
		metrics.IncAllocation("race_lost")
		return slot.Slot{}, err
	default:
		metrics.IncAllocation("create_failed")
		return slot.Slot{}, err
	}
}

// afterAllocate arms the lifetime timer in ttl mode and, when the move
// failed, treats the fresh slot as observed-empty immediately.
func (m *Manager) afterAllocate(ctx context.Context, s slot.Slot, moveFailed bool) {
	tracked, ok := m.slots[s.ID]
	if !ok {
		return
	}
	if moveFailed {
		m.observeMaybeEmpty(ctx, tracked)
		return
	}
	if m.cfg.Policy.Mode == slot.ModeTTL {
		if deadline, ok := tracked.Deadline(m.cfg.Policy); ok {
			m.armTimer(s.ID, deadline)
		}
	}
}

// handleCompletePick honors a pending request: it must be unexpired and the
// requester still physically in the group's trigger context.
func (m *Manager) handleCompletePick(ctx context.Context, memberID, name string) (slot.Slot, error) {
	req, ok := m.pend.Get(memberID)
	if !ok {
		return slot.Slot{}, errors.New("no pending request for member")
	}
	g, ok := m.cat.Group(req.GroupID)
	if !ok {
		m.pend.Remove(memberID)
		return slot.Slot{}, slot.ErrUnknownGroup
	}
	loc, present, err := m.pf.MemberLocation(ctx, memberID)
	if err != nil {
		return slot.Slot{}, err
	}
	if !present || loc != g.Trigger {
		m.pend.Remove(memberID)
		metrics.SetPendingRequests(len(m.pend.All()))
		return slot.Slot{}, errors.New("requester left the trigger context")
	}

	s, err := m.handleAllocate(ctx, allocator.Request{GroupID: req.GroupID, MemberID: memberID, Name: name})
	if err != nil && !isMoveFailed(err) {
		// RaceLost and NoCapacity keep the request alive so the requester
		// can pick another name.
		if errors.Is(err, slot.ErrRaceLost) || errors.Is(err, slot.ErrNoCapacity) {
			return slot.Slot{}, err
		}
		m.pend.Remove(memberID)
		metrics.SetPendingRequests(len(m.pend.All()))
		return slot.Slot{}, err
	}
	m.pend.Remove(memberID)
	metrics.SetPendingRequests(len(m.pend.All()))
	return s, err
}

func isMoveFailed(err error) bool {
	var me *slot.MoveFailedError
	return errors.As(err, &me)
}

type recorderFunc func(ctx context.Context, s slot.Slot) error

func (f recorderFunc) Record(ctx context.Context, s slot.Slot) error { return f(ctx, s) }
