package id_test

import (
	"strings"
	"testing"

	"github.com/xraph/bnpl/id"
)

func TestConstructors(t *testing.T) {
	tests := []struct {
		name   string
		newFn  func() id.ID
		prefix string
	}{
		{"EventID", id.NewEventID, "evt_"},
		{"DisputeID", id.NewDisputeID, "dsp_"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			got := tt.newFn().String()
			if !strings.HasPrefix(got, tt.prefix) {
				t.Errorf("expected prefix %q, got %q", tt.prefix, got)
			}
		})
	}
}

func TestNew(t *testing.T) {
	i := id.New(id.PrefixEvent)
	if i.IsNil() {
		t.Fatal("expected non-nil ID")
	}
	if i.Prefix() != id.PrefixEvent {
		t.Errorf("expected prefix %q, got %q", id.PrefixEvent, i.Prefix())
	}
}

func TestParseRoundTrip(t *testing.T) {
	tests := []struct {
		name    string
		newFn   func() id.ID
		parseFn func(string) (id.ID, error)
	}{
		{"EventID", id.NewEventID, id.ParseEventID},
		{"DisputeID", id.NewDisputeID, id.ParseDisputeID},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			original := tt.newFn()
			parsed, err := tt.parseFn(original.String())
			if err != nil {
				t.Fatalf("parse: %v", err)
			}
			if parsed.String() != original.String() {
				t.Errorf("round trip: got %q, want %q", parsed.String(), original.String())
			}
		})
	}
}

func TestParseRejections(t *testing.T) {
	if _, err := id.Parse(""); err == nil {
		t.Error("empty string accepted")
	}
	if _, err := id.Parse("not a typeid"); err == nil {
		t.Error("garbage accepted")
	}
	if _, err := id.ParseDisputeID(id.NewEventID().String()); err == nil {
		t.Error("wrong prefix accepted")
	}
}

func TestUniqueness(t *testing.T) {
	seen := make(map[string]bool)
	for i := 0; i < 1000; i++ {
		s := id.NewEventID().String()
		if seen[s] {
			t.Fatalf("duplicate ID: %s", s)
		}
		seen[s] = true
	}
}

func TestNilID(t *testing.T) {
	if !id.Nil.IsNil() {
		t.Error("Nil.IsNil() false")
	}
	if id.Nil.String() != "" {
		t.Errorf("Nil.String(): %q", id.Nil.String())
	}
}
