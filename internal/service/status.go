package service

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/inflight"
	"github.com/jemini-foods/api/internal/notify"
	"github.com/jemini-foods/api/internal/present"
	"github.com/jemini-foods/api/internal/redisx"
	"github.com/jemini-foods/api/internal/status"
)

// Errors returned by the status service. Handlers map each to an HTTP status.
var (
	ErrIllegalTransition  = errors.New("illegal status transition")
	ErrUnauthorizedRole   = errors.New("role is not allowed to change this status")
	ErrMutationInFlight   = errors.New("another change to this record is in progress")
	ErrNotFound           = errors.New("not found")
	ErrCorruptStatus      = errors.New("stored status is not recognised")
	ErrPersistenceFailure = errors.New("status change could not be saved")
	ErrInvalidChef        = errors.New("assignee is not an active chef")
	ErrTableUnavailable   = errors.New("table is not available for this reservation")
)

// StatusStore is satisfied by *database.Queries; narrow interface for testability.
type StatusStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	UpdateOrderStatus(ctx context.Context, arg database.UpdateOrderStatusParams) (database.Order, error)
	SetOrderEstimatedReady(ctx context.Context, arg database.SetOrderEstimatedReadyParams) (database.Order, error)
	GetReservation(ctx context.Context, id uuid.UUID) (database.Reservation, error)
	UpdateReservationStatus(ctx context.Context, arg database.UpdateReservationStatusParams) (database.Reservation, error)
	GetTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	ListAvailableTables(ctx context.Context, arg database.ListAvailableTablesParams) ([]database.DiningTable, error)
	GetUserByID(ctx context.Context, id uuid.UUID) (database.User, error)
}

// FeedPublisher receives every committed change so live subscribers can refresh.
type FeedPublisher interface {
	OrderChanged(ctx context.Context, o database.Order)
	ReservationChanged(ctx context.Context, r database.Reservation)
}

// StatusCache stores the latest order status for cheap polling reads.
// An entry is either current or absent.
type StatusCache interface {
	Set(ctx context.Context, orderID string, snap redisx.StatusSnapshot) error
	Delete(ctx context.Context, orderID string) error
}

// Actor is the authenticated caller behind a mutation.
type Actor struct {
	UserID uuid.UUID
	Role   string
}

// MutationRequest asks for EntityID to move to Status.
type MutationRequest struct {
	EntityID uuid.UUID
	Status   string
	Actor    Actor
}

// ReservationMutation is a reservation status change, optionally seating the
// party at TableID when confirming.
type ReservationMutation struct {
	MutationRequest
	TableID uuid.UUID
}

type OrderResult struct {
	Order    database.Order
	Previous status.OrderStatus
	View     present.View
	Toast    string
}

type ReservationResult struct {
	Reservation database.Reservation
	Previous    status.ReservationStatus
	View        present.View
	Toast       string
}

// StatusService is the only writer of order and reservation status.
type StatusService struct {
	store    StatusStore
	guard    inflight.Guard
	notifier notify.Notifier
	feed     FeedPublisher
	cache    StatusCache
	timeout  time.Duration
	now      func() time.Time
}

// NewStatusService creates a StatusService. notifier, feed and cache may be nil.
func NewStatusService(store StatusStore, guard inflight.Guard, notifier notify.Notifier, feed FeedPublisher, cache StatusCache, timeout time.Duration) *StatusService {
	if guard == nil {
		guard = inflight.NewLocal()
	}
	return &StatusService{
		store:    store,
		guard:    guard,
		notifier: notifier,
		feed:     feed,
		cache:    cache,
		timeout:  timeout,
		now:      time.Now,
	}
}

// AdvanceOrder moves an order one step along its progression, or into rejected.
func (s *StatusService) AdvanceOrder(ctx context.Context, req MutationRequest) (*OrderResult, error) {
	to, err := status.ParseOrderStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllegalTransition, err)
	}
	if !status.CanMutate(req.Actor.Role, enum.KindOrder) {
		return nil, ErrUnauthorizedRole
	}
	return s.mutateOrder(ctx, req.EntityID, to, req.Actor, pgtype.UUID{}, func(from status.OrderStatus) error {
		ok, err := status.IsForwardOrderTransition(from, to)
		if err != nil {
			return fmt.Errorf("%w: %w", ErrIllegalTransition, err)
		}
		if !ok {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
		}
		return nil
	})
}

// AssignChef hands a booked order to a chef, which takes it.
func (s *StatusService) AssignChef(ctx context.Context, orderID, chefID uuid.UUID, actor Actor) (*OrderResult, error) {
	if actor.Role != enum.RoleAdmin && actor.Role != enum.RoleSystem {
		return nil, ErrUnauthorizedRole
	}
	if chefID == uuid.Nil {
		return nil, ErrInvalidChef
	}
	return s.mutateOrder(ctx, orderID, status.OrderTaken, actor, database.UUIDOrNull(chefID), func(from status.OrderStatus) error {
		if from != status.OrderBooked && from != status.OrderPending {
			return fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, status.OrderTaken)
		}
		return nil
	})
}

// SetEstimatedReady records when a non-terminal order should be ready.
func (s *StatusService) SetEstimatedReady(ctx context.Context, orderID uuid.UUID, at time.Time, actor Actor) (*OrderResult, error) {
	if !status.CanMutate(actor.Role, enum.KindOrder) {
		return nil, ErrUnauthorizedRole
	}
	release, err := s.acquire(ctx, enum.KindOrder, orderID)
	if err != nil {
		return nil, err
	}
	defer release()

	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	updated, err := s.store.SetOrderEstimatedReady(wctx, database.SetOrderEstimatedReadyParams{
		ID:               orderID,
		EstimatedReadyAt: pgtype.Timestamptz{Time: at, Valid: true},
	})
	if errors.Is(err, pgx.ErrNoRows) {
		cur, lerr := s.loadOrder(wctx, orderID)
		if lerr != nil {
			return nil, lerr
		}
		return nil, fmt.Errorf("%w: order is %s", ErrIllegalTransition, cur.Status)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	if s.feed != nil {
		s.feed.OrderChanged(ctx, updated)
	}
	return &OrderResult{
		Order:    updated,
		Previous: updated.Status,
		View:     present.Render(enum.KindOrder, string(updated.Status), present.Full),
	}, nil
}

// UpdateReservation moves a reservation along its progression or cancels it.
func (s *StatusService) UpdateReservation(ctx context.Context, req ReservationMutation) (*ReservationResult, error) {
	to, err := status.ParseReservationStatus(req.Status)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllegalTransition, err)
	}
	if !status.CanMutate(req.Actor.Role, enum.KindReservation) {
		return nil, ErrUnauthorizedRole
	}
	if req.TableID != uuid.Nil && to != status.ReservationConfirmed {
		return nil, fmt.Errorf("%w: a table can only be assigned when confirming", ErrTableUnavailable)
	}

	release, err := s.acquire(ctx, enum.KindReservation, req.EntityID)
	if err != nil {
		return nil, err
	}
	defer release()

	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.store.GetReservation(wctx, req.EntityID)
	if err != nil {
		return nil, classifyLoad(err)
	}
	from, err := status.ParseReservationStatus(string(cur.Status))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStatus, err)
	}
	ok, err := status.IsForwardReservationTransition(from, to)
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrIllegalTransition, err)
	}
	if !ok {
		return nil, fmt.Errorf("%w: %s -> %s", ErrIllegalTransition, from, to)
	}
	if req.TableID != uuid.Nil {
		if err := s.checkTable(wctx, cur, req.TableID); err != nil {
			return nil, err
		}
	}

	updated, err := s.store.UpdateReservationStatus(wctx, database.UpdateReservationStatusParams{
		ID:         cur.ID,
		FromStatus: from,
		ToStatus:   to,
		TableID:    database.UUIDOrNull(req.TableID),
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: status changed concurrently", ErrIllegalTransition)
	}
	if isTableSlotConflict(err) {
		return nil, fmt.Errorf("%w: booked concurrently", ErrTableUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	ev := s.reservationEvent(updated, from, req.Actor)
	s.deliver(ctx, ev)
	if s.feed != nil {
		s.feed.ReservationChanged(ctx, updated)
	}

	return &ReservationResult{
		Reservation: updated,
		Previous:    from,
		View:        present.Render(enum.KindReservation, string(updated.Status), present.Full),
		Toast:       notify.ToastMessage(ev),
	}, nil
}

// mutateOrder runs the shared load, check, persist and notify sequence.
// check sees the stored status and decides whether the move is legal.
func (s *StatusService) mutateOrder(ctx context.Context, id uuid.UUID, to status.OrderStatus, actor Actor, chef pgtype.UUID, check func(from status.OrderStatus) error) (*OrderResult, error) {
	release, err := s.acquire(ctx, enum.KindOrder, id)
	if err != nil {
		return nil, err
	}
	defer release()

	wctx, cancel := context.WithTimeout(ctx, s.timeout)
	defer cancel()

	cur, err := s.loadOrder(wctx, id)
	if err != nil {
		return nil, err
	}
	from, err := status.ParseOrderStatus(string(cur.Status))
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrCorruptStatus, err)
	}
	if err := check(from); err != nil {
		return nil, err
	}
	if chef.Valid {
		if err := s.checkChef(wctx, chef.Bytes); err != nil {
			return nil, err
		}
	}

	s.evict(wctx, cur.ID)

	key, _ := status.TimestampKey(to)
	updated, err := s.store.UpdateOrderStatus(wctx, database.UpdateOrderStatusParams{
		ID:             cur.ID,
		FromStatus:     from,
		ToStatus:       to,
		TimestampKey:   key,
		StampedAt:      s.now(),
		AssignedChefID: chef,
	})
	if errors.Is(err, pgx.ErrNoRows) {
		return nil, fmt.Errorf("%w: status changed concurrently", ErrIllegalTransition)
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}

	if s.cache != nil {
		snap := redisx.StatusSnapshot{
			CustomerID: updated.CustomerID,
			Status:     string(updated.Status),
			UpdatedAt:  updated.UpdatedAt,
		}
		if err := s.cache.Set(ctx, updated.ID.String(), snap); err != nil {
			log.Printf("WARN: cache order status %s: %v", updated.ID, err)
			s.evict(ctx, updated.ID)
		}
	}
	ev := s.orderEvent(updated, from, actor)
	s.deliver(ctx, ev)
	if s.feed != nil {
		s.feed.OrderChanged(ctx, updated)
	}

	return &OrderResult{
		Order:    updated,
		Previous: from,
		View:     present.Render(enum.KindOrder, string(updated.Status), present.Full),
		Toast:    notify.ToastMessage(ev),
	}, nil
}

// evict drops the cached status so readers fall back to the store.
func (s *StatusService) evict(ctx context.Context, id uuid.UUID) {
	if s.cache == nil {
		return
	}
	if err := s.cache.Delete(ctx, id.String()); err != nil {
		log.Printf("WARN: evict cached order status %s: %v", id, err)
	}
}

func (s *StatusService) acquire(ctx context.Context, kind string, id uuid.UUID) (func(), error) {
	release, err := s.guard.Acquire(ctx, inflight.Key(kind, id.String()))
	if errors.Is(err, inflight.ErrBusy) {
		return nil, ErrMutationInFlight
	}
	if err != nil {
		return nil, fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	return release, nil
}

func (s *StatusService) loadOrder(ctx context.Context, id uuid.UUID) (database.Order, error) {
	o, err := s.store.GetOrder(ctx, id)
	if err != nil {
		return database.Order{}, classifyLoad(err)
	}
	return o, nil
}

func (s *StatusService) checkChef(ctx context.Context, id uuid.UUID) error {
	u, err := s.store.GetUserByID(ctx, id)
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrInvalidChef
	}
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	if u.Role != enum.RoleChef || !u.IsActive {
		return ErrInvalidChef
	}
	return nil
}

// checkTable accepts the table the reservation already holds, or any
// active table with room that is free for the slot.
func (s *StatusService) checkTable(ctx context.Context, r database.Reservation, tableID uuid.UUID) error {
	if r.TableID.Valid && uuid.UUID(r.TableID.Bytes) == tableID {
		return nil
	}
	free, err := s.store.ListAvailableTables(ctx, database.ListAvailableTablesParams{
		ReservationDate: r.ReservationDate,
		ReservationTime: r.ReservationTime,
		PartySize:       r.PartySize,
	})
	if err != nil {
		return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
	}
	for _, t := range free {
		if t.ID == tableID {
			return nil
		}
	}
	return ErrTableUnavailable
}

func classifyLoad(err error) error {
	if errors.Is(err, pgx.ErrNoRows) {
		return ErrNotFound
	}
	return fmt.Errorf("%w: %w", ErrPersistenceFailure, err)
}

// deliver never fails the caller; the status change is already committed.
func (s *StatusService) deliver(ctx context.Context, ev notify.Event) {
	if s.notifier == nil {
		return
	}
	if err := s.notifier.Notify(ctx, ev); err != nil {
		log.Printf("WARN: notification delivery failed: %s %s %s->%s: %v",
			ev.Kind, ev.EntityID, ev.OldStatus, ev.NewStatus, err)
	}
}

func (s *StatusService) orderEvent(o database.Order, from status.OrderStatus, actor Actor) notify.Event {
	return notify.Event{
		ID:            uuid.New(),
		Kind:          enum.KindOrder,
		EntityID:      o.ID,
		OldStatus:     string(from),
		NewStatus:     string(o.Status),
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		CustomerID:    o.CustomerID,
		CustomerName:  o.CustomerName,
		CustomerPhone: o.CustomerPhone,
		OccurredAt:    s.now().UTC(),
	}
}

func (s *StatusService) reservationEvent(r database.Reservation, from status.ReservationStatus, actor Actor) notify.Event {
	return notify.Event{
		ID:            uuid.New(),
		Kind:          enum.KindReservation,
		EntityID:      r.ID,
		OldStatus:     string(from),
		NewStatus:     string(r.Status),
		ActorID:       actor.UserID,
		ActorRole:     actor.Role,
		CustomerID:    r.CustomerID,
		CustomerName:  r.CustomerName,
		CustomerPhone: r.CustomerPhone,
		OccurredAt:    s.now().UTC(),
	}
}
