package feed

import (
	"context"
	"encoding/json"
	"errors"
	"slices"
	"sort"
	"sync"
	"testing"
	"time"

	"github.com/google/uuid"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/present"
	"github.com/jemini-foods/api/internal/status"
	"github.com/jemini-foods/api/internal/ws"
)

// --- Fakes ---

type fakeSnapshotStore struct {
	mu           sync.Mutex
	orders       []database.Order
	reservations []database.Reservation
	err          error
}

func (s *fakeSnapshotStore) ListOrders(_ context.Context, arg database.ListOrdersParams) ([]database.Order, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []database.Order
	for _, o := range s.orders {
		if arg.ID.Valid && uuid.UUID(arg.ID.Bytes) != o.ID {
			continue
		}
		if arg.CustomerID.Valid && uuid.UUID(arg.CustomerID.Bytes) != o.CustomerID {
			continue
		}
		if arg.PickupDate.Valid && !arg.PickupDate.Time.Equal(o.PickupDate.Time) {
			continue
		}
		if len(arg.Statuses) > 0 && !slices.Contains(arg.Statuses, string(o.Status)) {
			continue
		}
		out = append(out, o)
	}
	return out, nil
}

func (s *fakeSnapshotStore) ListReservations(_ context.Context, arg database.ListReservationsParams) ([]database.Reservation, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.err != nil {
		return nil, s.err
	}
	var out []database.Reservation
	for _, r := range s.reservations {
		if arg.ID.Valid && uuid.UUID(arg.ID.Bytes) != r.ID {
			continue
		}
		if arg.CustomerID.Valid && uuid.UUID(arg.CustomerID.Bytes) != r.CustomerID {
			continue
		}
		if len(arg.Statuses) > 0 && !slices.Contains(arg.Statuses, string(r.Status)) {
			continue
		}
		out = append(out, r)
	}
	return out, nil
}

func (s *fakeSnapshotStore) setOrderStatus(id uuid.UUID, st status.OrderStatus) database.Order {
	s.mu.Lock()
	defer s.mu.Unlock()
	for i := range s.orders {
		if s.orders[i].ID == id {
			s.orders[i].Status = st
			return s.orders[i]
		}
	}
	return database.Order{}
}

type fakeHub struct {
	mu         sync.Mutex
	topics     map[string]bool
	initial    map[string][]byte
	broadcasts map[string][][]byte
}

func newFakeHub() *fakeHub {
	return &fakeHub{
		topics:     make(map[string]bool),
		initial:    make(map[string][]byte),
		broadcasts: make(map[string][][]byte),
	}
}

func (h *fakeHub) Topics() []string {
	h.mu.Lock()
	defer h.mu.Unlock()
	var out []string
	for t := range h.topics {
		out = append(out, t)
	}
	sort.Strings(out)
	return out
}

func (h *fakeHub) Broadcast(topic string, msg []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.broadcasts[topic] = append(h.broadcasts[topic], msg)
}

func (h *fakeHub) Register(c *ws.Client, initial []byte) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.topics[c.Topic()] = true
	h.initial[c.Topic()] = initial
}

func decodeSnapshot(t *testing.T, b []byte) Snapshot {
	t.Helper()
	var s Snapshot
	if err := json.Unmarshal(b, &s); err != nil {
		t.Fatalf("unmarshal snapshot: %v", err)
	}
	return s
}

func newTestPublisher(store *fakeSnapshotStore) (*Publisher, *fakeHub) {
	hub := newFakeHub()
	b := NewBuilder(store)
	b.now = func() time.Time { return time.Date(2025, 6, 1, 8, 0, 0, 0, time.UTC) }
	return NewPublisher(b, hub, time.Second), hub
}

func subscribe(t *testing.T, p *Publisher, topic string) {
	t.Helper()
	if err := p.Subscribe(context.Background(), ws.NewClient(nil, nil, topic)); err != nil {
		t.Fatalf("Subscribe(%q): %v", topic, err)
	}
}

// --- Subscribe ---

func TestSubscribeSendsInitialSnapshot(t *testing.T) {
	order := database.Order{ID: uuid.New(), CustomerID: uuid.New(), CustomerName: "Ada", Status: status.OrderBooked}
	p, hub := newTestPublisher(&fakeSnapshotStore{orders: []database.Order{order}})

	subscribe(t, p, "orders")

	snap := decodeSnapshot(t, hub.initial["orders"])
	if snap.Type != "snapshot" || snap.Topic != "orders" {
		t.Errorf("header: got %s/%s", snap.Type, snap.Topic)
	}
	if len(snap.Items) != 1 || snap.Items[0].ID != order.ID {
		t.Fatalf("items: got %+v", snap.Items)
	}
	if snap.Items[0].View.Label != "Order Booked" {
		t.Errorf("label: got %q, want Order Booked", snap.Items[0].View.Label)
	}
}

func TestSubscribeEmptyItemsIsArray(t *testing.T) {
	p, hub := newTestPublisher(&fakeSnapshotStore{})
	subscribe(t, p, "reservations")

	var raw map[string]json.RawMessage
	if err := json.Unmarshal(hub.initial["reservations"], &raw); err != nil {
		t.Fatalf("unmarshal: %v", err)
	}
	if string(raw["items"]) != "[]" {
		t.Errorf("items: got %s, want []", raw["items"])
	}
}

func TestSubscribeRejectsBadTopic(t *testing.T) {
	p, hub := newTestPublisher(&fakeSnapshotStore{})
	err := p.Subscribe(context.Background(), ws.NewClient(nil, nil, "menu"))
	if !errors.Is(err, ErrInvalidFilter) {
		t.Errorf("got %v, want ErrInvalidFilter", err)
	}
	if len(hub.Topics()) != 0 {
		t.Errorf("topics: got %v, want none", hub.Topics())
	}
}

func TestSubscribeStoreError(t *testing.T) {
	p, hub := newTestPublisher(&fakeSnapshotStore{err: errors.New("db down")})
	if err := p.Subscribe(context.Background(), ws.NewClient(nil, nil, "orders")); err == nil {
		t.Fatal("expected error, got nil")
	}
	if len(hub.Topics()) != 0 {
		t.Errorf("topics: got %v, want none", hub.Topics())
	}
}

// --- Changed ---

func TestOrderChangedRefreshesTwoAdminViews(t *testing.T) {
	order := database.Order{ID: uuid.New(), CustomerID: uuid.New(), Status: status.OrderMaking}
	store := &fakeSnapshotStore{orders: []database.Order{order}}
	p, hub := newTestPublisher(store)

	subscribe(t, p, "orders")
	subscribe(t, p, "orders")

	updated := store.setOrderStatus(order.ID, status.OrderReady)
	p.OrderChanged(context.Background(), updated)

	got := hub.broadcasts["orders"]
	if len(got) != 1 {
		t.Fatalf("broadcasts: got %d, want 1", len(got))
	}
	snap := decodeSnapshot(t, got[0])
	if len(snap.Items) != 1 {
		t.Fatalf("items: got %d, want 1", len(snap.Items))
	}
	view := snap.Items[0].View
	if view.Variant != present.Compact || view.Label != "Ready for Pickup" {
		t.Errorf("view: got %+v, want compact Ready for Pickup", view)
	}
	if view.Description != "" {
		t.Errorf("compact view carries description %q", view.Description)
	}
}

func TestOrderChangedOnlyMatchingTopics(t *testing.T) {
	mine := uuid.New()
	order := database.Order{ID: uuid.New(), CustomerID: mine, Status: status.OrderBooked}
	store := &fakeSnapshotStore{orders: []database.Order{order}}
	p, hub := newTestPublisher(store)

	mineTopic := "orders:owner:" + mine.String()
	otherTopic := "orders:owner:" + uuid.New().String()
	subscribe(t, p, mineTopic)
	subscribe(t, p, otherTopic)
	subscribe(t, p, "reservations")

	p.OrderChanged(context.Background(), store.setOrderStatus(order.ID, status.OrderTaken))

	if len(hub.broadcasts[mineTopic]) != 1 {
		t.Errorf("owner topic: got %d broadcasts, want 1", len(hub.broadcasts[mineTopic]))
	}
	if len(hub.broadcasts[otherTopic]) != 0 {
		t.Errorf("other owner: got %d broadcasts, want 0", len(hub.broadcasts[otherTopic]))
	}
	if len(hub.broadcasts["reservations"]) != 0 {
		t.Errorf("reservations: got %d broadcasts, want 0", len(hub.broadcasts["reservations"]))
	}
}

func TestOrderChangedLeavesStatusFilter(t *testing.T) {
	order := database.Order{ID: uuid.New(), CustomerID: uuid.New(), Status: status.OrderReady}
	store := &fakeSnapshotStore{orders: []database.Order{order}}
	p, hub := newTestPublisher(store)

	subscribe(t, p, "orders:status:ready")
	if n := len(decodeSnapshot(t, hub.initial["orders:status:ready"]).Items); n != 1 {
		t.Fatalf("initial items: got %d, want 1", n)
	}

	p.OrderChanged(context.Background(), store.setOrderStatus(order.ID, status.OrderCompleted))

	got := hub.broadcasts["orders:status:ready"]
	if len(got) != 1 {
		t.Fatalf("broadcasts: got %d, want 1", len(got))
	}
	if n := len(decodeSnapshot(t, got[0]).Items); n != 0 {
		t.Errorf("items after completion: got %d, want 0", n)
	}
}

func TestReservationChangedMinimalVariant(t *testing.T) {
	res := database.Reservation{ID: uuid.New(), CustomerID: uuid.New(), Status: status.ReservationConfirmed, PartySize: 4}
	p, hub := newTestPublisher(&fakeSnapshotStore{reservations: []database.Reservation{res}})

	topic := "reservations:id:" + res.ID.String() + ":variant:minimal"
	subscribe(t, p, topic)
	p.ReservationChanged(context.Background(), res)

	got := hub.broadcasts[topic]
	if len(got) != 1 {
		t.Fatalf("broadcasts: got %d, want 1", len(got))
	}
	item := decodeSnapshot(t, got[0]).Items[0]
	if item.View.Label != "" || item.View.Progress == nil {
		t.Errorf("minimal view: got %+v", item.View)
	}
	if item.PartySize != 4 {
		t.Errorf("party size: got %d, want 4", item.PartySize)
	}
}

func TestChangedSurvivesCancelledCaller(t *testing.T) {
	order := database.Order{ID: uuid.New(), CustomerID: uuid.New(), Status: status.OrderBooked}
	p, hub := newTestPublisher(&fakeSnapshotStore{orders: []database.Order{order}})
	subscribe(t, p, "orders")

	ctx, cancel := context.WithCancel(context.Background())
	cancel()
	p.OrderChanged(ctx, order)

	if len(hub.broadcasts["orders"]) != 1 {
		t.Errorf("broadcasts: got %d, want 1", len(hub.broadcasts["orders"]))
	}
}

func TestChangedStoreErrorSkipsBroadcast(t *testing.T) {
	order := database.Order{ID: uuid.New(), Status: status.OrderBooked}
	store := &fakeSnapshotStore{orders: []database.Order{order}}
	p, hub := newTestPublisher(store)
	subscribe(t, p, "orders")

	store.err = errors.New("db down")
	p.OrderChanged(context.Background(), order)

	if len(hub.broadcasts["orders"]) != 0 {
		t.Errorf("broadcasts: got %d, want 0", len(hub.broadcasts["orders"]))
	}
}
