package slot

import (
	"errors"
	"testing"
	"time"
)

func TestPolicyValidate(t *testing.T) {
	tests := []struct {
		name    string
		p       Policy
		wantErr bool
	}{
		{"empty-grace valid", Policy{Mode: ModeEmptyGrace, Grace: 15 * time.Second}, false},
		{"empty-grace zero grace", Policy{Mode: ModeEmptyGrace}, true},
		{"ttl valid", Policy{Mode: ModeTTL, Grace: 15 * time.Second, Lifetime: time.Hour}, false},
		{"ttl missing lifetime", Policy{Mode: ModeTTL, Grace: 15 * time.Second}, true},
		{"unknown mode", Policy{Mode: "forever", Grace: time.Second}, true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			err := tt.p.Validate()
			if (err != nil) != tt.wantErr {
				t.Fatalf("Validate() err=%v wantErr=%v", err, tt.wantErr)
			}
		})
	}
}

func TestDeadlineEmptyGrace(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Policy{Mode: ModeEmptyGrace, Grace: 15 * time.Second}

	s := Slot{ID: "r1", GroupID: "g", PresetName: "A", CreatedAt: created}
	if _, ok := s.Deadline(p); ok {
		t.Fatalf("expected no deadline before first empty transition")
	}

	empty := created.Add(time.Minute)
	s.LastEmptyAt = &empty
	d, ok := s.Deadline(p)
	if !ok {
		t.Fatalf("expected deadline once empty")
	}
	if want := empty.Add(15 * time.Second); !d.Equal(want) {
		t.Fatalf("deadline=%v want=%v", d, want)
	}
}

func TestDeadlineTTL(t *testing.T) {
	created := time.Date(2025, 3, 1, 12, 0, 0, 0, time.UTC)
	p := Policy{Mode: ModeTTL, Grace: 30 * time.Second, Lifetime: 10 * time.Minute}

	// Never empty: lifetime applies from creation.
	s := Slot{ID: "r1", GroupID: "g", PresetName: "A", CreatedAt: created}
	d, ok := s.Deadline(p)
	if !ok || !d.Equal(created.Add(10*time.Minute)) {
		t.Fatalf("deadline=%v ok=%v, want lifetime from creation", d, ok)
	}

	// Early empty transition: lifetime still dominates.
	early := created.Add(time.Minute)
	s.LastEmptyAt = &early
	if d, _ := s.Deadline(p); !d.Equal(created.Add(10 * time.Minute)) {
		t.Fatalf("deadline=%v, lifetime should dominate early empty", d)
	}

	// Empty transition near end of life extends past the lifetime.
	late := created.Add(10 * time.Minute)
	s.LastEmptyAt = &late
	if d, _ := s.Deadline(p); !d.Equal(late.Add(30 * time.Second)) {
		t.Fatalf("deadline=%v, grace past last empty should dominate", d)
	}
}

func TestErrorWrapping(t *testing.T) {
	base := errors.New("boom")
	var ce error = &CreateFailedError{Err: base}
	if !errors.Is(ce, base) {
		t.Fatalf("CreateFailedError should unwrap to cause")
	}
	var me error = &MoveFailedError{SlotID: "r1", Err: base}
	if !errors.Is(me, base) {
		t.Fatalf("MoveFailedError should unwrap to cause")
	}
	var target *MoveFailedError
	if !errors.As(me, &target) || target.SlotID != "r1" {
		t.Fatalf("errors.As should recover MoveFailedError")
	}
}
