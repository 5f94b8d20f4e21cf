package present

import (
	"bytes"
	"encoding/json"
	"testing"

	"github.com/jemini-foods/api/internal/enum"
)

func TestRender_Idempotent(t *testing.T) {
	for _, kind := range []string{enum.KindOrder, enum.KindReservation} {
		for _, s := range []string{"pending", "booked", "making", "confirmed", "completed", "bogus"} {
			for _, v := range []Variant{Full, Compact, Minimal} {
				a, err := json.Marshal(Render(kind, s, v))
				if err != nil {
					t.Fatalf("marshal: %v", err)
				}
				b, err := json.Marshal(Render(kind, s, v))
				if err != nil {
					t.Fatalf("marshal: %v", err)
				}
				if !bytes.Equal(a, b) {
					t.Errorf("%s/%s/%s: outputs differ: %s vs %s", kind, s, v, a, b)
				}
			}
		}
	}
}

func TestRender_Variants(t *testing.T) {
	full := Render(enum.KindOrder, "ready", Full)
	if full.Label != "Ready for Pickup" || full.ColorToken != "green" || full.Description == "" || full.Progress == nil {
		t.Errorf("full view missing metadata: %+v", full)
	}

	compact := Render(enum.KindOrder, "ready", Compact)
	if compact.Label != "Ready for Pickup" || compact.Icon != "package-check" {
		t.Errorf("compact view: got %+v", compact)
	}
	if compact.ColorToken != "" || compact.Description != "" || compact.Progress != nil {
		t.Errorf("compact view carries extra metadata: %+v", compact)
	}

	minimal := Render(enum.KindOrder, "ready", Minimal)
	if minimal.Label != "" || minimal.Icon != "" {
		t.Errorf("minimal view carries labels: %+v", minimal)
	}
	if minimal.Progress == nil || *minimal.Progress != 1 {
		t.Errorf("minimal progress: got %v, want 1", minimal.Progress)
	}
}

func TestProgress(t *testing.T) {
	tests := []struct {
		kind, status string
		want         float64
	}{
		{enum.KindOrder, "pending", 0},
		{enum.KindOrder, "booked", 0},
		{enum.KindOrder, "taken", 1.0 / 3.0},
		{enum.KindOrder, "making", 2.0 / 3.0},
		{enum.KindOrder, "ready", 1},
		{enum.KindOrder, "completed", 1},
		{enum.KindOrder, "rejected", 0},
		{enum.KindOrder, "Making", 0},
		{enum.KindReservation, "pending", 0},
		{enum.KindReservation, "confirmed", 0.5},
		{enum.KindReservation, "completed", 1},
		{enum.KindReservation, "cancelled", 0},
		{"invoice", "paid", 0},
	}
	for _, tt := range tests {
		if got := Progress(tt.kind, tt.status); got != tt.want {
			t.Errorf("Progress(%s, %s): got %v, want %v", tt.kind, tt.status, got, tt.want)
		}
	}
}

func TestDescribe_UnknownFallsBack(t *testing.T) {
	for _, s := range []string{"", "in_progress", "Making"} {
		if got := DescribeOrder(s); got != Unknown {
			t.Errorf("DescribeOrder(%q): got %+v, want Unknown", s, got)
		}
	}
	if got := Describe("invoice", "booked"); got != Unknown {
		t.Errorf("Describe(invoice): got %+v, want Unknown", got)
	}
	if got := Render(enum.KindOrder, "bogus", Compact); got.Label != "Unknown" {
		t.Errorf("compact unknown label: got %q", got.Label)
	}
}

func TestDescribe_SharedLiteralsDifferByKind(t *testing.T) {
	if DescribeOrder("pending") == DescribeReservation("pending") {
		t.Error("order and reservation pending should have distinct metadata")
	}
}

func TestParseVariant(t *testing.T) {
	if ParseVariant("compact") != Compact || ParseVariant("minimal") != Minimal {
		t.Error("known variants not parsed")
	}
	if ParseVariant("") != Full || ParseVariant("tiny") != Full {
		t.Error("unknown variant should fall back to full")
	}
}

func TestOrderTracker(t *testing.T) {
	steps := OrderTracker("making")
	if len(steps) != 4 {
		t.Fatalf("steps: got %d, want 4", len(steps))
	}
	wantDone := []bool{true, true, false, false}
	for i, s := range steps {
		if s.Done != wantDone[i] {
			t.Errorf("step %d (%s) done: got %v, want %v", i, s.Status, s.Done, wantDone[i])
		}
	}
	if !steps[2].Current {
		t.Error("making should be the current step")
	}

	for i, s := range OrderTracker("completed") {
		if !s.Done || s.Current {
			t.Errorf("completed step %d: got done=%v current=%v", i, s.Done, s.Current)
		}
	}
	for i, s := range OrderTracker("rejected") {
		if s.Done || s.Current {
			t.Errorf("rejected step %d: got done=%v current=%v", i, s.Done, s.Current)
		}
	}
}
