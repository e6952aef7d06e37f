package manager

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sort"
	"time"

	"github.com/loykin/tempchan/internal/allocator"
	"github.com/loykin/tempchan/internal/catalog"
	"github.com/loykin/tempchan/internal/clock"
	"github.com/loykin/tempchan/internal/history"
	"github.com/loykin/tempchan/internal/metrics"
	"github.com/loykin/tempchan/internal/pending"
	"github.com/loykin/tempchan/internal/platform"
	"github.com/loykin/tempchan/internal/slot"
	"github.com/loykin/tempchan/internal/store"
)

// PickMode controls what happens when a member enters a trigger context.
type PickMode string

const (
	// PickAuto allocates the first free preset immediately.
	PickAuto PickMode = "auto"
	// PickManual records a pending request; the allocation completes
	// through CompletePick with the requester's chosen name.
	PickManual PickMode = "manual"
)

// Config is the manager's static configuration, validated at startup.
type Config struct {
	Policy     slot.Policy
	PickMode   PickMode
	PendingTTL time.Duration
}

func (c Config) Validate() error {
	if err := c.Policy.Validate(); err != nil {
		return err
	}
	switch c.PickMode {
	case PickAuto, PickManual:
	default:
		return fmt.Errorf("unsupported pick mode: %q", c.PickMode)
	}
	if c.PickMode == PickManual && c.PendingTTL <= 0 {
		return errors.New("pending ttl must be > 0 in manual pick mode")
	}
	return nil
}

// ErrOccupied is returned by manual eviction of a slot that still has
// occupants.
var ErrOccupied = errors.New("slot is occupied")

// Manager owns the slot table and all timers. It is a single logical actor:
// every mutation runs on the control loop goroutine, and timer fires are
// delivered as messages to the same loop rather than touching state from
// timer callbacks. Public methods are safe for concurrent use; they post a
// message and wait for the reply.
type Manager struct {
	cfg   Config
	cat   *catalog.Catalog
	pf    platform.Platform
	st    store.Store
	clk   clock.Clock
	alloc *allocator.Allocator
	pend  *pending.Registry
	sinks []history.Sink

	ctrl chan ctrlMsg
	done chan struct{}

	// owned by the control loop
	slots  map[string]*slot.Slot
	timers map[string]clock.Timer
}

// Option tweaks manager construction.
type Option func(*Manager)

// WithClock injects a clock (tests use the fake).
func WithClock(clk clock.Clock) Option {
	return func(m *Manager) { m.clk = clk }
}

// WithHistorySinks configures lifecycle event sinks.
func WithHistorySinks(sinks ...history.Sink) Option {
	return func(m *Manager) { m.sinks = sinks }
}

func New(cfg Config, cat *catalog.Catalog, pf platform.Platform, st store.Store, opts ...Option) (*Manager, error) {
	if err := cfg.Validate(); err != nil {
		return nil, err
	}
	m := &Manager{
		cfg:    cfg,
		cat:    cat,
		pf:     pf,
		st:     st,
		clk:    clock.Real{},
		ctrl:   make(chan ctrlMsg, 16),
		done:   make(chan struct{}),
		slots:  make(map[string]*slot.Slot),
		timers: make(map[string]clock.Timer),
	}
	for _, o := range opts {
		o(m)
	}
	m.alloc = allocator.New(pf, cat, m.clk)
	ttl := cfg.PendingTTL
	if ttl <= 0 {
		ttl = time.Minute
	}
	m.pend = pending.NewRegistry(m.clk, ttl)
	return m, nil
}

// Start reconciles persisted state against the platform and then launches
// the control loop. It must be called before any event is delivered.
func (m *Manager) Start(ctx context.Context) error {
	if err := m.st.EnsureSchema(ctx); err != nil {
		return fmt.Errorf("ensure store schema: %w", err)
	}
	m.reconcile(ctx)
	go m.run(ctx)
	return nil
}

// Shutdown stops the control loop and cancels all timers. Pending slots stay
// persisted; the next start reconciles them.
func (m *Manager) Shutdown() {
	reply := make(chan ctrlReply, 1)
	select {
	case m.ctrl <- ctrlMsg{typ: ctrlShutdown, reply: reply}:
		// The send can land in the buffer after the loop already exited on
		// its context, in which case nobody will answer; done unblocks the
		// wait either way.
		select {
		case <-reply:
		case <-m.done:
		}
	case <-m.done:
	}
}

// Catalog exposes the group catalog for read-only use by the API layer.
func (m *Manager) Catalog() *catalog.Catalog { return m.cat }

// HandleOccupancy processes one occupancy-change event. Trigger entries
// start the allocation flow; leaves and joins drive the eviction scheduler.
func (m *Manager) HandleOccupancy(ctx context.Context, ev platform.OccupancyEvent) {
	m.post(ctx, ctrlMsg{typ: ctrlOccupancy, ev: ev})
}

// Allocate requests a slot directly (admin API, auto-mode trigger handling).
func (m *Manager) Allocate(ctx context.Context, req allocator.Request) (slot.Slot, error) {
	r := m.post(ctx, ctrlMsg{typ: ctrlAllocate, req: req})
	return r.slot, r.err
}

// CompletePick finishes a manual-mode allocation with the requester's chosen
// name. The pending request must be unexpired and the requester still in the
// group's trigger context.
func (m *Manager) CompletePick(ctx context.Context, memberID, name string) (slot.Slot, error) {
	r := m.post(ctx, ctrlMsg{typ: ctrlCompletePick, req: allocator.Request{MemberID: memberID, Name: name}})
	return r.slot, r.err
}

// EvictIfEmpty deletes the slot's resource and untracks it, provided it has
// no occupants. Unknown ids are a no-op: eviction is idempotent.
func (m *Manager) EvictIfEmpty(ctx context.Context, slotID string) error {
	return m.post(ctx, ctrlMsg{typ: ctrlEvict, slotID: slotID}).err
}

// Slots returns a snapshot of tracked slots ordered by creation time.
func (m *Manager) Slots(ctx context.Context) []slot.Slot {
	return m.post(ctx, ctrlMsg{typ: ctrlSnapshot}).slots
}

// Pending returns a snapshot of live pending requests.
func (m *Manager) Pending() []pending.Request { return m.pend.All() }

// RunPendingSweeper purges expired pick requests on a fixed interval until
// ctx is done. Run it on its own goroutine in manual pick mode.
func (m *Manager) RunPendingSweeper(ctx context.Context, interval time.Duration) {
	m.pend.RunSweeper(ctx, interval)
}

type ctrlType int

const (
	ctrlOccupancy ctrlType = iota
	ctrlAllocate
	ctrlCompletePick
	ctrlEvict
	ctrlEvictCandidate
	ctrlSnapshot
	ctrlShutdown
)

type ctrlMsg struct {
	typ    ctrlType
	ev     platform.OccupancyEvent
	req    allocator.Request
	slotID string
	reply  chan ctrlReply
}

type ctrlReply struct {
	slot  slot.Slot
	slots []slot.Slot
	err   error
}

func (m *Manager) post(ctx context.Context, msg ctrlMsg) ctrlReply {
	if msg.reply == nil {
		msg.reply = make(chan ctrlReply, 1)
	}
	select {
	case m.ctrl <- msg:
	case <-m.done:
		return ctrlReply{err: errors.New("manager stopped")}
	case <-ctx.Done():
		return ctrlReply{err: ctx.Err()}
	}
	select {
	case r := <-msg.reply:
		return r
	case <-m.done:
		return ctrlReply{err: errors.New("manager stopped")}
	}
}

func (m *Manager) run(ctx context.Context) {
	defer close(m.done)
	for {
		select {
		case <-ctx.Done():
			m.stopTimers()
			return
		case msg := <-m.ctrl:
			var r ctrlReply
			switch msg.typ {
			case ctrlOccupancy:
				m.handleOccupancy(ctx, msg.ev)
			case ctrlAllocate:
				r.slot, r.err = m.handleAllocate(ctx, msg.req)
			case ctrlCompletePick:
				r.slot, r.err = m.handleCompletePick(ctx, msg.req.MemberID, msg.req.Name)
			case ctrlEvict:
				r.err = m.handleEvict(ctx, msg.slotID, "manual")
			case ctrlEvictCandidate:
				m.handleEvictCandidate(ctx, msg.slotID)
			case ctrlSnapshot:
				r.slots = m.snapshot()
			case ctrlShutdown:
				m.stopTimers()
				if msg.reply != nil {
					msg.reply <- r
				}
				return
			}
			if msg.reply != nil {
				msg.reply <- r
			}
		}
	}
}

func (m *Manager) stopTimers() {
	for id, t := range m.timers {
		t.Stop()
		delete(m.timers, id)
	}
}

func (m *Manager) snapshot() []slot.Slot {
	out := make([]slot.Slot, 0, len(m.slots))
	for _, s := range m.slots {
		out = append(out, *s)
	}
	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// persist writes the whole slot table synchronously. A failure is logged and
// not propagated: the store is repaired by reconciliation on the next start.
func (m *Manager) persist(ctx context.Context) {
	recs := make([]store.Record, 0, len(m.slots))
	for _, s := range m.slots {
		recs = append(recs, store.Record{
			SlotID:      s.ID,
			GroupID:     s.GroupID,
			PresetName:  s.PresetName,
			CreatedAt:   s.CreatedAt,
			LastEmptyAt: s.LastEmptyAt,
		})
	}
	sort.Slice(recs, func(i, j int) bool { return recs[i].SlotID < recs[j].SlotID })
	if err := m.st.Save(ctx, recs); err != nil {
		slog.Error("persist slot table failed", "slots", len(recs), "error", err)
	}
	m.updateGauges()
}

func (m *Manager) updateGauges() {
	counts := make(map[string]int)
	for _, g := range m.cat.Groups() {
		counts[g.ID] = 0
	}
	for _, s := range m.slots {
		counts[s.GroupID]++
	}
	for g, n := range counts {
		metrics.SetActiveSlots(g, n)
	}
	metrics.SetPendingRequests(len(m.pend.All()))
}

func (m *Manager) emit(ctx context.Context, typ history.EventType, detail string, s slot.Slot) {
	if len(m.sinks) == 0 {
		return
	}
	e := history.Event{
		Type:       typ,
		OccurredAt: m.clk.Now().UTC(),
		Detail:     detail,
		Record: store.Record{
			SlotID:      s.ID,
			GroupID:     s.GroupID,
			PresetName:  s.PresetName,
			CreatedAt:   s.CreatedAt,
			LastEmptyAt: s.LastEmptyAt,
		},
	}
	for _, sink := range m.sinks {
		if err := sink.Send(ctx, e); err != nil {
			slog.Warn("history sink send failed", "type", string(typ), "slot", s.ID, "error", err)
		}
	}
}
