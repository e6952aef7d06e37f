package metrics

import (
	"testing"

	"github.com/prometheus/client_golang/prometheus"
)

func TestRegisterIdempotent(t *testing.T) {
	reg := prometheus.NewRegistry()
	if err := Register(reg); err != nil {
		t.Fatalf("first register: %v", err)
	}
	// Second call must be a no-op, not a duplicate registration error.
	if err := Register(reg); err != nil {
		t.Fatalf("second register: %v", err)
	}
}

func TestHelpersAfterRegister(t *testing.T) {
	_ = Register(prometheus.NewRegistry())
	// Must not panic.
	IncAllocation("success")
	IncAllocation("no_capacity")
	IncEviction("grace_elapsed")
	SetActiveSlots("racing", 3)
	SetPendingRequests(1)
	ObserveAllocationDuration(0.05)
}
