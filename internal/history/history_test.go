package history

import (
	"testing"
	"time"

	"github.com/loykin/tempchan/internal/store"
)

func TestEventCreation(t *testing.T) {
	record := store.Record{
		SlotID:     "res-7",
		GroupID:    "racing",
		PresetName: "Team One",
		CreatedAt:  time.Now().UTC(),
	}

	event := Event{
		Type:       EventAllocated,
		OccurredAt: time.Now(),
		Record:     record,
	}

	if event.Type != EventAllocated {
		t.Errorf("Expected event type %s, got %s", EventAllocated, event.Type)
	}
	if event.Record.SlotID != "res-7" {
		t.Errorf("Expected slot id res-7, got %s", event.Record.SlotID)
	}
	if event.Record.PresetName != "Team One" {
		t.Errorf("Expected preset Team One, got %s", event.Record.PresetName)
	}
}

func TestEventTypes(t *testing.T) {
	testCases := []struct {
		name      string
		eventType EventType
	}{
		{"allocated event", EventAllocated},
		{"evicted event", EventEvicted},
		{"adopted event", EventAdopted},
		{"removed event", EventRemoved},
	}
	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			e := Event{Type: tc.eventType, OccurredAt: time.Now()}
			if e.Type != tc.eventType {
				t.Errorf("type mismatch: %s", e.Type)
			}
		})
	}
}
