package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jemini-foods/api/internal/database"
)

var (
	ErrInvalidPartySize       = errors.New("party_size must be between 1 and 20")
	ErrReservationDateInvalid = errors.New("reservation_date is required and must not be in the past")
	ErrInvalidReservationTime = errors.New("invalid reservation_time, use HH:MM")
)

const maxPartySize = 20

// tableSlotIndex backs the one-live-reservation-per-table-slot rule.
const tableSlotIndex = "reservations_table_slot_key"

// ReservationStore is satisfied by *database.Queries; narrow interface for testability.
type ReservationStore interface {
	GetTable(ctx context.Context, id uuid.UUID) (database.DiningTable, error)
	ListAvailableTables(ctx context.Context, arg database.ListAvailableTablesParams) ([]database.DiningTable, error)
	CreateReservation(ctx context.Context, arg database.CreateReservationParams) (database.Reservation, error)
}

type CreateReservationRequest struct {
	CustomerID      uuid.UUID
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ReservationDate string // YYYY-MM-DD
	ReservationTime string // HH:MM
	PartySize       int32
	TableID         string // optional
	SpecialRequests string
}

// ReservationService books tables. New reservations are always pending.
type ReservationService struct {
	store ReservationStore
	feed  FeedPublisher
	now   func() time.Time
}

// NewReservationService creates a ReservationService. feed may be nil.
func NewReservationService(store ReservationStore, feed FeedPublisher) *ReservationService {
	return &ReservationService{store: store, feed: feed, now: time.Now}
}

func (s *ReservationService) CreateReservation(ctx context.Context, req CreateReservationRequest) (*database.Reservation, error) {
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, ErrCustomerRequired
	}
	if req.PartySize <= 0 || req.PartySize > maxPartySize {
		return nil, ErrInvalidPartySize
	}
	if req.ReservationDate == "" {
		return nil, ErrReservationDateInvalid
	}
	date, err := database.ParseDate(req.ReservationDate)
	if err != nil {
		return nil, err
	}
	now := s.now()
	if date.Time.Before(time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)) {
		return nil, ErrReservationDateInvalid
	}
	if _, err := time.Parse(timeLayout, req.ReservationTime); err != nil {
		return nil, ErrInvalidReservationTime
	}

	var tableID uuid.UUID
	if req.TableID != "" {
		tableID, err = uuid.Parse(req.TableID)
		if err != nil {
			return nil, ErrTableUnavailable
		}
		if err := s.checkFree(ctx, date, req.ReservationTime, req.PartySize, tableID); err != nil {
			return nil, err
		}
	}

	res, err := s.store.CreateReservation(ctx, database.CreateReservationParams{
		CustomerID:      req.CustomerID,
		CustomerName:    strings.TrimSpace(req.CustomerName),
		CustomerEmail:   req.CustomerEmail,
		CustomerPhone:   req.CustomerPhone,
		ReservationDate: date,
		ReservationTime: req.ReservationTime,
		PartySize:       req.PartySize,
		TableID:         database.UUIDOrNull(tableID),
		SpecialRequests: database.TextOrNull(strings.TrimSpace(req.SpecialRequests)),
	})
	if isTableSlotConflict(err) {
		return nil, fmt.Errorf("%w: booked concurrently", ErrTableUnavailable)
	}
	if err != nil {
		return nil, fmt.Errorf("create reservation: %w", err)
	}

	if s.feed != nil {
		s.feed.ReservationChanged(ctx, res)
	}
	return &res, nil
}

// checkFree fails unless tableID is active, seats the party and is not held
// by another pending or confirmed reservation for the slot.
func (s *ReservationService) checkFree(ctx context.Context, date pgtype.Date, at string, party int32, tableID uuid.UUID) error {
	if _, err := s.store.GetTable(ctx, tableID); err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			return ErrTableUnavailable
		}
		return fmt.Errorf("get table: %w", err)
	}
	free, err := s.store.ListAvailableTables(ctx, database.ListAvailableTablesParams{
		ReservationDate: date,
		ReservationTime: at,
		PartySize:       party,
	})
	if err != nil {
		return fmt.Errorf("list available tables: %w", err)
	}
	for _, t := range free {
		if t.ID == tableID {
			return nil
		}
	}
	return ErrTableUnavailable
}

// isTableSlotConflict reports a unique violation on the table slot index.
func isTableSlotConflict(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505" && pgErr.ConstraintName == tableSlotIndex
}
