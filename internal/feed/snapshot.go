package feed

import (
	"context"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/present"
	"github.com/shopspring/decimal"
)

// maxEntries caps one snapshot.
const maxEntries = 200

// SnapshotStore is satisfied by *database.Queries; narrow interface for testability.
type SnapshotStore interface {
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
	ListReservations(ctx context.Context, arg database.ListReservationsParams) ([]database.Reservation, error)
}

// Snapshot is the full current state of one subscription. Consumers replace
// their state with it; there is no diff.
type Snapshot struct {
	Type        string    `json:"type"`
	Topic       string    `json:"topic"`
	Kind        string    `json:"kind"`
	Items       []Entry   `json:"items"`
	GeneratedAt time.Time `json:"generated_at"`
}

// Entry is one record in a snapshot, with its rendered status view.
type Entry struct {
	ID           uuid.UUID    `json:"id"`
	Status       string       `json:"status"`
	View         present.View `json:"view"`
	CustomerID   uuid.UUID    `json:"customer_id"`
	CustomerName string       `json:"customer_name"`
	Date         string       `json:"date"`
	Time         string       `json:"time"`

	Items            []database.OrderItem      `json:"items,omitempty"`
	Total            *decimal.Decimal          `json:"total,omitempty"`
	AssignedChefID   *uuid.UUID                `json:"assigned_chef_id,omitempty"`
	EstimatedReadyAt *time.Time                `json:"estimated_ready_at,omitempty"`
	StatusTimestamps database.StatusTimestamps `json:"status_timestamps,omitempty"`

	PartySize int32      `json:"party_size,omitempty"`
	TableID   *uuid.UUID `json:"table_id,omitempty"`
}

func OrderEntry(o database.Order, v present.Variant) Entry {
	total := database.NumericToDecimal(o.Total)
	e := Entry{
		ID:               o.ID,
		Status:           string(o.Status),
		View:             present.Render(enum.KindOrder, string(o.Status), v),
		CustomerID:       o.CustomerID,
		CustomerName:     o.CustomerName,
		Date:             database.FormatDate(o.PickupDate),
		Time:             o.PickupTime,
		Items:            o.Items,
		Total:            &total,
		StatusTimestamps: o.StatusTimestamps,
	}
	if o.AssignedChefID.Valid {
		id := uuid.UUID(o.AssignedChefID.Bytes)
		e.AssignedChefID = &id
	}
	if o.EstimatedReadyAt.Valid {
		at := o.EstimatedReadyAt.Time
		e.EstimatedReadyAt = &at
	}
	return e
}

func ReservationEntry(r database.Reservation, v present.Variant) Entry {
	e := Entry{
		ID:           r.ID,
		Status:       string(r.Status),
		View:         present.Render(enum.KindReservation, string(r.Status), v),
		CustomerID:   r.CustomerID,
		CustomerName: r.CustomerName,
		Date:         database.FormatDate(r.ReservationDate),
		Time:         r.ReservationTime,
		PartySize:    r.PartySize,
	}
	if r.TableID.Valid {
		id := uuid.UUID(r.TableID.Bytes)
		e.TableID = &id
	}
	return e
}

// Builder loads snapshots from the store.
type Builder struct {
	store SnapshotStore
	now   func() time.Time
}

func NewBuilder(store SnapshotStore) *Builder {
	return &Builder{store: store, now: time.Now}
}

// Build reloads every record matching f.
func (b *Builder) Build(ctx context.Context, f Filter) (Snapshot, error) {
	date, err := database.ParseDate(f.Date)
	if err != nil {
		return Snapshot{}, err
	}
	snap := Snapshot{
		Type:        "snapshot",
		Topic:       f.Topic(),
		Kind:        f.Kind,
		Items:       []Entry{},
		GeneratedAt: b.now().UTC(),
	}

	if f.Kind == enum.KindReservation {
		rows, err := b.store.ListReservations(ctx, database.ListReservationsParams{
			ID:              database.UUIDOrNull(f.EntityID),
			CustomerID:      database.UUIDOrNull(f.OwnerID),
			ReservationDate: date,
			Statuses:        f.Statuses,
			Limit:           maxEntries,
		})
		if err != nil {
			return Snapshot{}, fmt.Errorf("list reservations: %w", err)
		}
		for _, r := range rows {
			snap.Items = append(snap.Items, ReservationEntry(r, f.Variant))
		}
		return snap, nil
	}

	rows, err := b.store.ListOrders(ctx, database.ListOrdersParams{
		ID:         database.UUIDOrNull(f.EntityID),
		CustomerID: database.UUIDOrNull(f.OwnerID),
		PickupDate: date,
		Statuses:   f.Statuses,
		Limit:      maxEntries,
	})
	if err != nil {
		return Snapshot{}, fmt.Errorf("list orders: %w", err)
	}
	for _, o := range rows {
		snap.Items = append(snap.Items, OrderEntry(o, f.Variant))
	}
	return snap, nil
}
