package manager

import (
	"context"
	"log/slog"
	"time"

	"github.com/loykin/tempchan/internal/history"
	"github.com/loykin/tempchan/internal/platform"
	"github.com/loykin/tempchan/internal/slot"
	"github.com/loykin/tempchan/internal/store"
)

// reconcile rebuilds the slot table from the store and the platform's live
// view. It runs before the control loop starts, so it owns the maps.
//
// Persisted slots whose resource is gone are dropped. Live resources carrying
// a preset name that nothing tracks are adopted with a fresh CreatedAt: the
// daemon may have crashed between Create and Save, and leaking them forever
// is worse than restarting their lifetime. Empty slots get their eviction
// timer re-armed from persisted timestamps so a restart does not grant extra
// grace.
func (m *Manager) reconcile(ctx context.Context) {
	recs, err := m.st.Load(ctx)
	if err != nil {
		slog.Warn("store load failed, starting from live state only", "error", err)
		recs = nil
	}
	persisted := make(map[string]store.Record, len(recs))
	for _, r := range recs {
		persisted[r.SlotID] = r
	}

	now := m.clk.Now().UTC()
	for _, g := range m.cat.Groups() {
		live, err := m.pf.ListLive(ctx, g.Container)
		if err != nil {
			// Keep the group's records tracked rather than dropping slots
			// we merely failed to see. No timers: the next empty
			// observation or restart sorts them out.
			slog.Error("live listing failed, keeping persisted records", "group", g.ID, "error", err)
			for id, rec := range persisted {
				if rec.GroupID != g.ID {
					continue
				}
				m.slots[id] = &slot.Slot{
					ID:          rec.SlotID,
					GroupID:     rec.GroupID,
					PresetName:  rec.PresetName,
					CreatedAt:   rec.CreatedAt,
					LastEmptyAt: rec.LastEmptyAt,
				}
				delete(persisted, id)
			}
			continue
		}
		for _, res := range live {
			if res.ID == g.Trigger {
				continue
			}
			rec, known := persisted[res.ID]
			switch {
			case known:
				s := &slot.Slot{
					ID:          rec.SlotID,
					GroupID:     rec.GroupID,
					PresetName:  rec.PresetName,
					CreatedAt:   rec.CreatedAt,
					LastEmptyAt: rec.LastEmptyAt,
				}
				m.slots[s.ID] = s
				m.rearm(s, res, now)
				delete(persisted, res.ID)
			case g.HasPreset(res.Name):
				s := &slot.Slot{
					ID:         res.ID,
					GroupID:    g.ID,
					PresetName: res.Name,
					CreatedAt:  now,
				}
				m.slots[s.ID] = s
				m.rearm(s, res, now)
				slog.Info("adopted orphan slot", "slot", s.ID, "group", g.ID, "name", res.Name)
				m.emit(ctx, history.EventAdopted, "found live without record", *s)
			}
		}
	}

	// Whatever is left in persisted has no live resource behind it.
	for id, rec := range persisted {
		slog.Info("dropping stale slot record", "slot", id, "group", rec.GroupID, "name", rec.PresetName)
		m.emit(ctx, history.EventRemoved, "stale record", slot.Slot{
			ID:          rec.SlotID,
			GroupID:     rec.GroupID,
			PresetName:  rec.PresetName,
			CreatedAt:   rec.CreatedAt,
			LastEmptyAt: rec.LastEmptyAt,
		})
	}

	m.persist(ctx)
	slog.Info("reconciled slot table", "tracked", len(m.slots), "dropped", len(persisted))
}

// rearm restarts the eviction timer for a reconciled slot. Occupied slots get
// a lifetime timer only in ttl mode; the next empty transition arms the rest.
// Empty slots without a persisted empty timestamp are stamped now, so the
// grace window starts over rather than never.
func (m *Manager) rearm(s *slot.Slot, res platform.Resource, now time.Time) {
	if res.Occupants > 0 {
		// The persisted empty stamp predates the occupants seen now.
		s.LastEmptyAt = nil
		if m.cfg.Policy.Mode == slot.ModeTTL {
			if deadline, ok := s.Deadline(m.cfg.Policy); ok {
				m.armTimer(s.ID, deadline)
			}
		}
		return
	}
	if s.LastEmptyAt == nil {
		t := now
		s.LastEmptyAt = &t
	}
	if deadline, ok := s.Deadline(m.cfg.Policy); ok {
		m.armTimer(s.ID, deadline)
	}
}
