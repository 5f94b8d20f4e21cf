package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jemini-foods/api/internal/status"
)

const reservationColumns = `id, customer_id, customer_name, customer_email, customer_phone,
reservation_date, reservation_time, party_size, table_id, special_requests, status,
status_changed_at, created_at`

func scanReservation(row pgx.Row) (Reservation, error) {
	var r Reservation
	err := row.Scan(
		&r.ID,
		&r.CustomerID,
		&r.CustomerName,
		&r.CustomerEmail,
		&r.CustomerPhone,
		&r.ReservationDate,
		&r.ReservationTime,
		&r.PartySize,
		&r.TableID,
		&r.SpecialRequests,
		&r.Status,
		&r.StatusChangedAt,
		&r.CreatedAt,
	)
	return r, err
}

type CreateReservationParams struct {
	CustomerID      uuid.UUID
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ReservationDate pgtype.Date
	ReservationTime string
	PartySize       int32
	TableID         pgtype.UUID
	SpecialRequests pgtype.Text
}

const createReservation = `
INSERT INTO reservations (customer_id, customer_name, customer_email, customer_phone,
    reservation_date, reservation_time, party_size, table_id, special_requests, status)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, 'pending')
RETURNING ` + reservationColumns

func (q *Queries) CreateReservation(ctx context.Context, arg CreateReservationParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, createReservation,
		arg.CustomerID,
		arg.CustomerName,
		arg.CustomerEmail,
		arg.CustomerPhone,
		arg.ReservationDate,
		arg.ReservationTime,
		arg.PartySize,
		arg.TableID,
		arg.SpecialRequests,
	))
}

const getReservation = `SELECT ` + reservationColumns + ` FROM reservations WHERE id = $1`

func (q *Queries) GetReservation(ctx context.Context, id uuid.UUID) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, getReservation, id))
}

// ListReservationsParams filters reservations. Zero-valued fields do not filter.
type ListReservationsParams struct {
	ID              pgtype.UUID
	CustomerID      pgtype.UUID
	ReservationDate pgtype.Date
	Statuses        []string
	Limit           int32
	Offset          int32
}

const listReservations = `
SELECT ` + reservationColumns + ` FROM reservations
WHERE ($1::uuid IS NULL OR id = $1)
  AND ($2::uuid IS NULL OR customer_id = $2)
  AND ($3::date IS NULL OR reservation_date = $3)
  AND ($4::text[] IS NULL OR cardinality($4::text[]) = 0 OR status = ANY($4::text[]))
ORDER BY reservation_date, reservation_time, created_at
LIMIT NULLIF($5::int, 0) OFFSET $6`

func (q *Queries) ListReservations(ctx context.Context, arg ListReservationsParams) ([]Reservation, error) {
	rows, err := q.db.Query(ctx, listReservations,
		arg.ID,
		arg.CustomerID,
		arg.ReservationDate,
		arg.Statuses,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Reservation
	for rows.Next() {
		r, err := scanReservation(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, r)
	}
	return items, rows.Err()
}

type UpdateReservationStatusParams struct {
	ID         uuid.UUID
	FromStatus status.ReservationStatus
	ToStatus   status.ReservationStatus
	TableID    pgtype.UUID
}

const updateReservationStatus = `
UPDATE reservations
SET status = $3,
    table_id = COALESCE($4::uuid, table_id),
    status_changed_at = now()
WHERE id = $1 AND status = $2
RETURNING ` + reservationColumns

func (q *Queries) UpdateReservationStatus(ctx context.Context, arg UpdateReservationStatusParams) (Reservation, error) {
	return scanReservation(q.db.QueryRow(ctx, updateReservationStatus,
		arg.ID,
		string(arg.FromStatus),
		string(arg.ToStatus),
		arg.TableID,
	))
}
