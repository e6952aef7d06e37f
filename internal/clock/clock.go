package clock

import (
	"sync"
	"time"
)

// Clock abstracts time for the eviction scheduler so deadline behavior can be
// tested against a manual clock.
type Clock interface {
	Now() time.Time
	// AfterFunc schedules fn to run once after d. fn runs on its own
	// goroutine for the real clock and inline on Advance for the fake.
	AfterFunc(d time.Duration, fn func()) Timer
}

// Timer is a cancelable scheduled call.
type Timer interface {
	// Stop prevents the call from firing. It reports whether the call was
	// still pending.
	Stop() bool
}

// Real is the wall clock.
type Real struct{}

func (Real) Now() time.Time { return time.Now() }

func (Real) AfterFunc(d time.Duration, fn func()) Timer { return time.AfterFunc(d, fn) }

// Fake is a manually advanced clock for tests.
type Fake struct {
	mu     sync.Mutex
	now    time.Time
	timers []*fakeTimer
}

// NewFake returns a fake clock pinned at start.
func NewFake(start time.Time) *Fake {
	return &Fake{now: start}
}

func (f *Fake) Now() time.Time {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.now
}

func (f *Fake) AfterFunc(d time.Duration, fn func()) Timer {
	f.mu.Lock()
	defer f.mu.Unlock()
	t := &fakeTimer{clk: f, at: f.now.Add(d), fn: fn}
	f.timers = append(f.timers, t)
	return t
}

// Advance moves the clock forward and fires every pending timer whose
// deadline has passed, in deadline order. Callbacks run synchronously on the
// caller's goroutine.
func (f *Fake) Advance(d time.Duration) {
	f.mu.Lock()
	f.now = f.now.Add(d)
	f.mu.Unlock()
	for {
		t := f.popDue()
		if t == nil {
			return
		}
		t.fn()
	}
}

func (f *Fake) popDue() *fakeTimer {
	f.mu.Lock()
	defer f.mu.Unlock()
	bestIdx := -1
	for i, t := range f.timers {
		if t.stopped || t.at.After(f.now) {
			continue
		}
		if bestIdx == -1 || t.at.Before(f.timers[bestIdx].at) {
			bestIdx = i
		}
	}
	if bestIdx == -1 {
		return nil
	}
	t := f.timers[bestIdx]
	t.stopped = true
	f.timers = append(f.timers[:bestIdx], f.timers[bestIdx+1:]...)
	return t
}

type fakeTimer struct {
	clk     *Fake
	at      time.Time
	fn      func()
	stopped bool
}

func (t *fakeTimer) Stop() bool {
	t.clk.mu.Lock()
	defer t.clk.mu.Unlock()
	if t.stopped {
		return false
	}
	t.stopped = true
	for i, x := range t.clk.timers {
		if x == t {
			t.clk.timers = append(t.clk.timers[:i], t.clk.timers[i+1:]...)
			break
		}
	}
	return true
}
