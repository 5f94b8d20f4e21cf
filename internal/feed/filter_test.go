package feed

import (
	"errors"
	"net/url"
	"testing"

	"github.com/google/uuid"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/present"
	"github.com/jemini-foods/api/internal/status"
)

func TestFromQueryDefaults(t *testing.T) {
	f, err := FromQuery(url.Values{})
	if err != nil {
		t.Fatalf("FromQuery: %v", err)
	}
	if f.Kind != enum.KindOrder {
		t.Errorf("kind: got %q, want %q", f.Kind, enum.KindOrder)
	}
	if f.Variant != present.Compact {
		t.Errorf("variant: got %q, want compact", f.Variant)
	}
	if got := f.Topic(); got != "orders" {
		t.Errorf("topic: got %q, want orders", got)
	}
}

func TestTopicIsCanonical(t *testing.T) {
	owner := uuid.MustParse("3f2a9c1e-0000-4000-8000-000000000001")
	a, err := FromQuery(url.Values{
		"kind":    {"orders"},
		"owner":   {owner.String()},
		"status":  {"ready,making,ready"},
		"variant": {"full"},
	})
	if err != nil {
		t.Fatalf("FromQuery: %v", err)
	}
	b, err := FromQuery(url.Values{
		"variant": {"full"},
		"status":  {"making, ready"},
		"owner":   {owner.String()},
	})
	if err != nil {
		t.Fatalf("FromQuery: %v", err)
	}

	want := "orders:owner:" + owner.String() + ":status:making,ready:variant:full"
	if a.Topic() != want {
		t.Errorf("topic a: got %q, want %q", a.Topic(), want)
	}
	if b.Topic() != a.Topic() {
		t.Errorf("topic b: got %q, want %q", b.Topic(), a.Topic())
	}
}

func TestParseTopicRoundTrip(t *testing.T) {
	topics := []string{
		"orders",
		"reservations",
		"orders:id:3f2a9c1e-0000-4000-8000-000000000001",
		"orders:date:2025-06-02:status:booked,taken",
		"reservations:owner:3f2a9c1e-0000-4000-8000-000000000001:variant:minimal",
	}
	for _, topic := range topics {
		f, err := ParseTopic(topic)
		if err != nil {
			t.Errorf("ParseTopic(%q): %v", topic, err)
			continue
		}
		if got := f.Topic(); got != topic {
			t.Errorf("round trip: got %q, want %q", got, topic)
		}
	}
}

func TestParseTopicRejects(t *testing.T) {
	for _, topic := range []string{
		"",
		"menu",
		"orders:id",
		"orders:id:not-a-uuid",
		"orders:colour:red",
		"orders:status:cooking",
		"reservations:status:ready",
		"orders:date:02-06-2025",
	} {
		if _, err := ParseTopic(topic); !errors.Is(err, ErrInvalidFilter) {
			t.Errorf("ParseTopic(%q): got %v, want ErrInvalidFilter", topic, err)
		}
	}
}

func TestFromQueryRejects(t *testing.T) {
	tests := []struct {
		name string
		q    url.Values
	}{
		{"kind", url.Values{"kind": {"menu"}}},
		{"id", url.Values{"id": {"42"}}},
		{"owner", url.Values{"owner": {"me"}}},
		{"date", url.Values{"date": {"tomorrow"}}},
		{"status", url.Values{"kind": {"reservations"}, "status": {"making"}}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := FromQuery(tt.q); !errors.Is(err, ErrInvalidFilter) {
				t.Errorf("got %v, want ErrInvalidFilter", err)
			}
		})
	}
}

func TestTouchesIgnoresStatus(t *testing.T) {
	owner := uuid.New()
	date, _ := database.ParseDate("2025-06-02")
	o := database.Order{ID: uuid.New(), CustomerID: owner, PickupDate: date, Status: status.OrderReady}

	tests := []struct {
		name string
		f    Filter
		want bool
	}{
		{"all orders", Filter{Kind: enum.KindOrder}, true},
		{"by id", Filter{Kind: enum.KindOrder, EntityID: o.ID}, true},
		{"other id", Filter{Kind: enum.KindOrder, EntityID: uuid.New()}, false},
		{"by owner", Filter{Kind: enum.KindOrder, OwnerID: owner}, true},
		{"other owner", Filter{Kind: enum.KindOrder, OwnerID: uuid.New()}, false},
		{"by date", Filter{Kind: enum.KindOrder, Date: "2025-06-02"}, true},
		{"other date", Filter{Kind: enum.KindOrder, Date: "2025-06-03"}, false},
		{"status left", Filter{Kind: enum.KindOrder, Statuses: []string{"making"}}, true},
		{"reservations", Filter{Kind: enum.KindReservation}, false},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if got := tt.f.touchesOrder(o); got != tt.want {
				t.Errorf("got %v, want %v", got, tt.want)
			}
		})
	}
}
