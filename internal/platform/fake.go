package platform

import (
	"context"
	"fmt"
	"sync"
)

// Fake is an in-memory Platform used by tests and dry-run mode. It is safe
// for concurrent use. Error injection hooks let tests exercise failure paths.
type Fake struct {
	mu      sync.Mutex
	nextID  int
	byID    map[string]*fakeResource
	members map[string]string // member id -> resource id

	CreateErr error
	DeleteErr error
	MoveErr   error
	ListErr   error

	creates int
	deletes int
}

type fakeResource struct {
	container string
	name      string
	occupants map[string]struct{}
}

func NewFake() *Fake {
	return &Fake{
		byID:    make(map[string]*fakeResource),
		members: make(map[string]string),
	}
}

func (f *Fake) ListLive(_ context.Context, containerID string) ([]Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.ListErr != nil {
		return nil, f.ListErr
	}
	var out []Resource
	for id, r := range f.byID {
		if r.container != containerID {
			continue
		}
		out = append(out, Resource{ID: id, Name: r.name, Occupants: len(r.occupants)})
	}
	return out, nil
}

func (f *Fake) Resource(_ context.Context, id string) (Resource, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r, ok := f.byID[id]
	if !ok {
		return Resource{}, false, nil
	}
	return Resource{ID: id, Name: r.name, Occupants: len(r.occupants)}, true, nil
}

func (f *Fake) Create(_ context.Context, containerID, name string) (Resource, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.CreateErr != nil {
		return Resource{}, f.CreateErr
	}
	f.nextID++
	id := fmt.Sprintf("res-%d", f.nextID)
	f.byID[id] = &fakeResource{container: containerID, name: name, occupants: make(map[string]struct{})}
	f.creates++
	return Resource{ID: id, Name: name}, nil
}

func (f *Fake) Delete(_ context.Context, id string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.DeleteErr != nil {
		return f.DeleteErr
	}
	r, ok := f.byID[id]
	if !ok {
		return nil // idempotent
	}
	for m := range r.occupants {
		delete(f.members, m)
	}
	delete(f.byID, id)
	f.deletes++
	return nil
}

func (f *Fake) Move(_ context.Context, memberID, resourceID string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.MoveErr != nil {
		return f.MoveErr
	}
	dst, ok := f.byID[resourceID]
	if !ok {
		return fmt.Errorf("no such resource: %s", resourceID)
	}
	if prev, ok := f.members[memberID]; ok {
		if r := f.byID[prev]; r != nil {
			delete(r.occupants, memberID)
		}
	}
	dst.occupants[memberID] = struct{}{}
	f.members[memberID] = resourceID
	return nil
}

func (f *Fake) MemberLocation(_ context.Context, memberID string) (string, bool, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	id, ok := f.members[memberID]
	return id, ok, nil
}

// Seed inserts a resource with a fixed id, for restart/reconcile tests.
func (f *Fake) Seed(id, containerID, name string, occupants ...string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	r := &fakeResource{container: containerID, name: name, occupants: make(map[string]struct{})}
	for _, m := range occupants {
		r.occupants[m] = struct{}{}
		f.members[m] = id
	}
	f.byID[id] = r
}

// Leave removes a member from whatever resource it occupies.
func (f *Fake) Leave(memberID string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if prev, ok := f.members[memberID]; ok {
		if r := f.byID[prev]; r != nil {
			delete(r.occupants, memberID)
		}
		delete(f.members, memberID)
	}
}

// Creates and Deletes report how many create/delete calls succeeded.
func (f *Fake) Creates() int { f.mu.Lock(); defer f.mu.Unlock(); return f.creates }
func (f *Fake) Deletes() int { f.mu.Lock(); defer f.mu.Unlock(); return f.deletes }
