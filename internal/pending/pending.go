package pending

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/loykin/tempchan/internal/clock"
)

// Request ties a requester to a group while a name pick is outstanding. It is
// honored only while unexpired and the requester is still in the trigger
// context (the second half is checked by the caller against the platform).
type Request struct {
	MemberID  string
	GroupID   string
	CreatedAt time.Time
	ExpiresAt time.Time
}

// Registry holds pending requests keyed by member. A member has at most one
// outstanding request; a new trigger entry replaces the old one.
type Registry struct {
	mu       sync.Mutex
	clk      clock.Clock
	ttl      time.Duration
	byMember map[string]Request
}

func NewRegistry(clk clock.Clock, ttl time.Duration) *Registry {
	return &Registry{
		clk:      clk,
		ttl:      ttl,
		byMember: make(map[string]Request),
	}
}

// Add records a pending request for member in group, replacing any prior one.
func (r *Registry) Add(memberID, groupID string) Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clk.Now()
	req := Request{MemberID: memberID, GroupID: groupID, CreatedAt: now, ExpiresAt: now.Add(r.ttl)}
	r.byMember[memberID] = req
	return req
}

// Get returns the member's live request. Expired requests are dropped on
// access, so a stale entry is never honored even between sweeps.
func (r *Registry) Get(memberID string) (Request, bool) {
	r.mu.Lock()
	defer r.mu.Unlock()
	req, ok := r.byMember[memberID]
	if !ok {
		return Request{}, false
	}
	if r.clk.Now().After(req.ExpiresAt) {
		delete(r.byMember, memberID)
		return Request{}, false
	}
	return req, true
}

// Remove drops the member's request (success, timeout, or member left).
func (r *Registry) Remove(memberID string) {
	r.mu.Lock()
	defer r.mu.Unlock()
	delete(r.byMember, memberID)
}

// Len reports the number of stored requests, expired or not.
func (r *Registry) Len() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	return len(r.byMember)
}

// Sweep purges expired requests and returns how many were removed.
func (r *Registry) Sweep() int {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clk.Now()
	removed := 0
	for m, req := range r.byMember {
		if now.After(req.ExpiresAt) {
			delete(r.byMember, m)
			removed++
		}
	}
	return removed
}

// All returns a snapshot of live requests.
func (r *Registry) All() []Request {
	r.mu.Lock()
	defer r.mu.Unlock()
	now := r.clk.Now()
	out := make([]Request, 0, len(r.byMember))
	for _, req := range r.byMember {
		if now.After(req.ExpiresAt) {
			continue
		}
		out = append(out, req)
	}
	return out
}

// RunSweeper purges expired requests on a fixed interval until ctx is done.
func (r *Registry) RunSweeper(ctx context.Context, interval time.Duration) {
	t := time.NewTicker(interval)
	defer t.Stop()
	for {
		select {
		case <-ctx.Done():
			return
		case <-t.C:
			if n := r.Sweep(); n > 0 {
				slog.Debug("purged expired pending requests", "count", n)
			}
		}
	}
}
