package main

import (
	"context"
	"encoding/json"
	"net/http/httptest"
	"os"
	"path/filepath"
	"testing"
	"time"

	"github.com/loykin/tempchan/internal/catalog"
	"github.com/loykin/tempchan/internal/manager"
	"github.com/loykin/tempchan/internal/platform"
	"github.com/loykin/tempchan/internal/server"
	"github.com/loykin/tempchan/internal/slot"
	"github.com/loykin/tempchan/internal/store/jsonfile"
)

func TestBuildRootRegistersCommands(t *testing.T) {
	root := buildRoot()
	want := map[string]bool{
		"serve": false, "slots": false, "groups": false,
		"pending": false, "allocate": false, "pick": false, "evict": false,
	}
	for _, c := range root.Commands() {
		if _, ok := want[c.Name()]; ok {
			want[c.Name()] = true
		}
	}
	for name, found := range want {
		if !found {
			t.Fatalf("command %q not registered", name)
		}
	}
}

// startDaemon wires a real manager behind an httptest server so the CLI
// commands go through the same path as against a live daemon.
func startDaemon(t *testing.T) *httptest.Server {
	t.Helper()
	pf := platform.NewFake()
	pf.Seed("trig-1", "lobby", "Join to Create")
	cat, err := catalog.New([]catalog.Group{
		{ID: "g1", Label: "Gaming", Container: "lobby", Trigger: "trig-1", Presets: []string{"Alpha", "Beta"}},
	})
	if err != nil {
		t.Fatalf("catalog: %v", err)
	}
	st, err := jsonfile.New(filepath.Join(t.TempDir(), "slots.json"))
	if err != nil {
		t.Fatalf("store: %v", err)
	}
	m, err := manager.New(manager.Config{
		Policy:   slot.Policy{Mode: slot.ModeEmptyGrace, Grace: time.Minute},
		PickMode: manager.PickAuto,
	}, cat, pf, st)
	if err != nil {
		t.Fatalf("manager: %v", err)
	}
	if err := m.Start(context.Background()); err != nil {
		t.Fatalf("start: %v", err)
	}
	t.Cleanup(m.Shutdown)

	srv := httptest.NewServer(server.NewRouter(m, "/api").Handler())
	t.Cleanup(srv.Close)
	return srv
}

func runCmd(t *testing.T, args ...string) (string, error) {
	t.Helper()
	old := os.Stdout
	r, w, err := os.Pipe()
	if err != nil {
		t.Fatalf("pipe: %v", err)
	}
	os.Stdout = w

	root := buildRoot()
	root.SetArgs(args)
	execErr := root.Execute()

	_ = w.Close()
	os.Stdout = old
	buf := make([]byte, 64<<10)
	n, _ := r.Read(buf)
	return string(buf[:n]), execErr
}

func TestAllocateAndSlotsCommands(t *testing.T) {
	srv := startDaemon(t)
	api := srv.URL + "/api"

	out, err := runCmd(t, "allocate", "--group", "g1", "--member", "m1", "--api-url", api)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	var s struct {
		ID   string `json:"id"`
		Name string `json:"name"`
	}
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("decode allocate output: %v (%q)", err, out)
	}
	if s.Name != "Alpha" {
		t.Fatalf("expected Alpha, got %q", s.Name)
	}

	out, err = runCmd(t, "slots", "--api-url", api)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	var slots []struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &slots); err != nil {
		t.Fatalf("decode slots output: %v", err)
	}
	if len(slots) != 1 || slots[0].ID != s.ID {
		t.Fatalf("unexpected slots: %+v", slots)
	}
}

func TestAllocateRequiresGroup(t *testing.T) {
	if _, err := runCmd(t, "allocate"); err == nil {
		t.Fatalf("expected error without --group")
	}
}

func TestEvictCommand(t *testing.T) {
	srv := startDaemon(t)
	api := srv.URL + "/api"

	out, err := runCmd(t, "allocate", "--group", "g1", "--api-url", api)
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	var s struct {
		ID string `json:"id"`
	}
	if err := json.Unmarshal([]byte(out), &s); err != nil {
		t.Fatalf("decode: %v", err)
	}

	// No member was moved in, so the slot is empty and evictable.
	if _, err := runCmd(t, "evict", "--slot", s.ID, "--api-url", api); err != nil {
		t.Fatalf("evict: %v", err)
	}
}

func TestCommandsFailWhenDaemonUnreachable(t *testing.T) {
	_, err := runCmd(t, "slots", "--api-url", "http://127.0.0.1:1/api", "--api-timeout", "100ms")
	if err == nil {
		t.Fatalf("expected connection error")
	}
}
