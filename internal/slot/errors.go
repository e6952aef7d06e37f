package slot

import (
	"errors"
	"fmt"
)

// Allocation and tracking failures. None of these are fatal to the daemon;
// they are surfaced to the requester or swallowed per policy.
var (
	// ErrNoCapacity means every preset in the group is currently in use.
	ErrNoCapacity = errors.New("no free preset name in group")
	// ErrRaceLost means the chosen name was taken between the availability
	// check and creation. The caller may retry selection.
	ErrRaceLost = errors.New("preset name taken during allocation")
	// ErrStaleSlot means a tracked resource no longer exists externally.
	ErrStaleSlot = errors.New("tracked resource no longer exists")
	// ErrUnknownGroup means the request referenced a group not in the catalog.
	ErrUnknownGroup = errors.New("unknown group")
	// ErrUnknownPreset means the requested name is not in the group's catalog.
	ErrUnknownPreset = errors.New("name is not a preset of the group")
)

// CreateFailedError wraps a platform error from resource creation. No slot
// is recorded when creation fails.
type CreateFailedError struct{ Err error }

func (e *CreateFailedError) Error() string { return fmt.Sprintf("resource create failed: %v", e.Err) }
func (e *CreateFailedError) Unwrap() error { return e.Err }

// MoveFailedError wraps a platform error from moving the requester into the
// created resource. The slot stays recorded; the scheduler reclaims it once
// it is observed empty.
type MoveFailedError struct {
	SlotID string
	Err    error
}

func (e *MoveFailedError) Error() string {
	return fmt.Sprintf("member move into %s failed: %v", e.SlotID, e.Err)
}
func (e *MoveFailedError) Unwrap() error { return e.Err }
