package client

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"
)

func newTestServer(t *testing.T) (*httptest.Server, *Client) {
	t.Helper()
	mux := http.NewServeMux()
	mux.HandleFunc("GET /api/healthz", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(OKResponse{OK: true})
	})
	mux.HandleFunc("GET /api/slots", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode([]Slot{
			{ID: "res-1", GroupID: "g1", Name: "Alpha", CreatedAt: time.Now().UTC()},
		})
	})
	mux.HandleFunc("POST /api/allocate", func(w http.ResponseWriter, r *http.Request) {
		var req AllocateRequest
		if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
			w.WriteHeader(http.StatusBadRequest)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "invalid JSON"})
			return
		}
		if req.GroupID == "full" {
			w.WriteHeader(http.StatusConflict)
			_ = json.NewEncoder(w).Encode(ErrorResponse{Error: "no free preset name"})
			return
		}
		_ = json.NewEncoder(w).Encode(Slot{ID: "res-2", GroupID: req.GroupID, Name: "Beta"})
	})
	mux.HandleFunc("POST /api/evict", func(w http.ResponseWriter, _ *http.Request) {
		_ = json.NewEncoder(w).Encode(OKResponse{OK: true})
	})
	srv := httptest.NewServer(mux)
	t.Cleanup(srv.Close)
	return srv, New(Config{BaseURL: srv.URL + "/api"})
}

func TestClientHealthAndSlots(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	if err := c.Health(ctx); err != nil {
		t.Fatalf("health: %v", err)
	}
	slots, err := c.Slots(ctx)
	if err != nil {
		t.Fatalf("slots: %v", err)
	}
	if len(slots) != 1 || slots[0].Name != "Alpha" {
		t.Fatalf("unexpected slots: %+v", slots)
	}
}

func TestClientAllocate(t *testing.T) {
	_, c := newTestServer(t)
	ctx := context.Background()

	s, err := c.Allocate(ctx, AllocateRequest{GroupID: "g1", MemberID: "m1"})
	if err != nil {
		t.Fatalf("allocate: %v", err)
	}
	if s.Name != "Beta" {
		t.Fatalf("unexpected slot: %+v", s)
	}
}

func TestClientAPIError(t *testing.T) {
	_, c := newTestServer(t)

	_, err := c.Allocate(context.Background(), AllocateRequest{GroupID: "full", MemberID: "m1"})
	var apiErr *APIError
	if !errors.As(err, &apiErr) {
		t.Fatalf("expected APIError, got %v", err)
	}
	if apiErr.Status != http.StatusConflict || apiErr.Message != "no free preset name" {
		t.Fatalf("unexpected api error: %+v", apiErr)
	}
}

func TestClientEvict(t *testing.T) {
	_, c := newTestServer(t)
	if err := c.Evict(context.Background(), "res-1"); err != nil {
		t.Fatalf("evict: %v", err)
	}
}

func TestClientDefaults(t *testing.T) {
	c := New(Config{})
	if c.baseURL != DefaultConfig().BaseURL {
		t.Fatalf("default base url: %q", c.baseURL)
	}
	if c.client.Timeout != DefaultConfig().Timeout {
		t.Fatalf("default timeout: %v", c.client.Timeout)
	}
}
