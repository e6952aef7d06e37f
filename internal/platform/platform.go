package platform

import "context"

// Resource is a live external resource as the platform reports it.
type Resource struct {
	ID        string
	Name      string
	Occupants int
}

// OccupancyEvent is delivered by the platform adapter whenever a member
// changes location. FromID/ToID are empty when the member was not in, or is
// leaving, any tracked resource. A ToID equal to a group's trigger context is
// a trigger entry.
type OccupancyEvent struct {
	MemberID string
	FromID   string
	ToID     string
}

// Platform is the external collaborator (the chat platform). Transport,
// authentication and retry policy live behind this interface and are assumed
// reliable; every method may still fail and callers convert failures to the
// allocator's error taxonomy at the call site.
type Platform interface {
	// ListLive returns the resources currently alive under a container.
	ListLive(ctx context.Context, containerID string) ([]Resource, error)
	// Resource resolves a single resource by id. ok is false when it no
	// longer exists.
	Resource(ctx context.Context, id string) (Resource, bool, error)
	// Create creates a named resource under a container and returns it.
	Create(ctx context.Context, containerID, name string) (Resource, error)
	// Delete removes a resource. Deleting an already-gone id is not an error.
	Delete(ctx context.Context, id string) error
	// Move places a member into a resource.
	Move(ctx context.Context, memberID, resourceID string) error
	// MemberLocation reports which resource a member currently occupies.
	MemberLocation(ctx context.Context, memberID string) (resourceID string, ok bool, err error)
}
