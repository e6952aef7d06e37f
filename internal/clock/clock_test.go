package clock

import (
	"testing"
	"time"
)

func TestFakeAdvanceFiresInOrder(t *testing.T) {
	start := time.Date(2025, 1, 1, 0, 0, 0, 0, time.UTC)
	clk := NewFake(start)

	var fired []string
	clk.AfterFunc(2*time.Second, func() { fired = append(fired, "b") })
	clk.AfterFunc(1*time.Second, func() { fired = append(fired, "a") })
	clk.AfterFunc(10*time.Second, func() { fired = append(fired, "late") })

	clk.Advance(5 * time.Second)
	if len(fired) != 2 || fired[0] != "a" || fired[1] != "b" {
		t.Fatalf("fired=%v", fired)
	}
	if got := clk.Now(); !got.Equal(start.Add(5 * time.Second)) {
		t.Fatalf("Now=%v", got)
	}

	clk.Advance(5 * time.Second)
	if len(fired) != 3 || fired[2] != "late" {
		t.Fatalf("fired=%v", fired)
	}
}

func TestFakeStop(t *testing.T) {
	clk := NewFake(time.Unix(0, 0))
	ran := false
	tm := clk.AfterFunc(time.Second, func() { ran = true })
	if !tm.Stop() {
		t.Fatalf("first Stop should report pending")
	}
	if tm.Stop() {
		t.Fatalf("second Stop should report already stopped")
	}
	clk.Advance(2 * time.Second)
	if ran {
		t.Fatalf("stopped timer fired")
	}
}
