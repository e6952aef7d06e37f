package tempchan

import (
	"context"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/tempchan/internal/platform"
)

func TestFacadeEmbedding(t *testing.T) {
	ctx := context.Background()
	pf := platform.NewFake()
	pf.Seed("trig-1", "lobby", "Join to Create")

	st, err := NewStore("jsonfile://" + filepath.Join(t.TempDir(), "slots.json"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer func() { _ = st.Close() }()

	m, err := New(Config{
		Policy:   Policy{Mode: ModeEmptyGrace, Grace: time.Minute},
		PickMode: PickAuto,
	}, []Group{
		{ID: "g1", Label: "Gaming", Container: "lobby", Trigger: "trig-1", Presets: []string{"Alpha"}},
	}, pf, st)
	if err != nil {
		t.Fatalf("new: %v", err)
	}
	if err := m.Start(ctx); err != nil {
		t.Fatalf("start: %v", err)
	}
	defer m.Shutdown()

	s, err := m.Allocate(ctx, Request{GroupID: "g1", MemberID: "m1"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if s.PresetName != "Alpha" {
		t.Fatalf("unexpected slot: %+v", s)
	}
	if got := m.Slots(ctx); len(got) != 1 {
		t.Fatalf("expected 1 slot, got %d", len(got))
	}

	pf.Leave("m1")
	if err := m.EvictIfEmpty(ctx, s.ID); err != nil {
		t.Fatalf("evict: %v", err)
	}
	if got := m.Slots(ctx); len(got) != 0 {
		t.Fatalf("slot still tracked")
	}
}

func TestNewRejectsInvalidConfig(t *testing.T) {
	pf := platform.NewFake()
	st, err := NewStore("jsonfile://" + filepath.Join(t.TempDir(), "slots.json"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	defer func() { _ = st.Close() }()

	_, err = New(Config{Policy: Policy{Mode: "bogus"}}, []Group{
		{ID: "g1", Label: "G", Container: "c", Trigger: "t", Presets: []string{"A"}},
	}, pf, st)
	if err == nil {
		t.Fatalf("expected error for invalid policy")
	}
}
