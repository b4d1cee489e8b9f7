package mirror_test

import (
	"context"
	"testing"
	"time"

	"github.com/xraph/bnpl/mirror"
	"github.com/xraph/bnpl/types"
)

var stamp = time.Date(2026, 3, 1, 12, 0, 0, 0, time.UTC)

func TestEventKinds(t *testing.T) {
	due := stamp.Add(14 * 24 * time.Hour)

	tests := []struct {
		name string
		ev   mirror.Event
		kind mirror.Kind
	}{
		{"loan created", mirror.NewLoanCreated(stamp, "u", "m", 1, types.USD(100), due), mirror.KindLoanCreated},
		{"repayment", mirror.NewRepayment(stamp, "u", "m", 1, types.USD(100), true), mirror.KindRepayment},
		{"default", mirror.NewDefault(stamp, "u", 1, types.USD(100), 3), mirror.KindDefault},
		{"dispute", mirror.NewDispute(stamp, "u", "m", 1, "late delivery"), mirror.KindDispute},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if tt.ev.Kind() != tt.kind {
				t.Errorf("kind: got %s, want %s", tt.ev.Kind(), tt.kind)
			}
			if tt.ev.EventID().IsNil() {
				t.Error("event ID not assigned")
			}
			if !tt.ev.OccurredAt().Equal(stamp) {
				t.Errorf("occurred at: got %v, want %v", tt.ev.OccurredAt(), stamp)
			}
		})
	}
}

func TestDisputeGetsOwnID(t *testing.T) {
	d := mirror.NewDispute(stamp, "u", "m", 1, "reason")
	if d.DisputeID.IsNil() {
		t.Fatal("dispute ID not assigned")
	}
	if d.DisputeID.String() == d.EventID().String() {
		t.Error("dispute ID equals event ID")
	}
}

func TestSinkFunc(t *testing.T) {
	var got mirror.Event
	sink := mirror.SinkFunc(func(_ context.Context, e mirror.Event) error {
		got = e
		return nil
	})

	ev := mirror.NewDefault(stamp, "u", 7, types.USD(500), 1)
	if err := sink.Emit(context.Background(), ev); err != nil {
		t.Fatalf("emit: %v", err)
	}
	if got != ev {
		t.Error("event not delivered")
	}
}

func TestNopSink(t *testing.T) {
	if err := mirror.NopSink().Emit(context.Background(), mirror.NewRepayment(stamp, "u", "m", 1, types.USD(1), false)); err != nil {
		t.Errorf("nop sink returned: %v", err)
	}
}
