package database

import (
	"context"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jemini-foods/api/internal/status"
)

const orderColumns = `id, customer_id, customer_name, customer_email, customer_phone, items, total,
pickup_date, pickup_time, assigned_chef_id, estimated_ready_at, status, status_timestamps,
created_at, updated_at`

func scanOrder(row pgx.Row) (Order, error) {
	var o Order
	err := row.Scan(
		&o.ID,
		&o.CustomerID,
		&o.CustomerName,
		&o.CustomerEmail,
		&o.CustomerPhone,
		&o.Items,
		&o.Total,
		&o.PickupDate,
		&o.PickupTime,
		&o.AssignedChefID,
		&o.EstimatedReadyAt,
		&o.Status,
		&o.StatusTimestamps,
		&o.CreatedAt,
		&o.UpdatedAt,
	)
	if o.StatusTimestamps == nil {
		o.StatusTimestamps = StatusTimestamps{}
	}
	return o, err
}

type CreateOrderParams struct {
	CustomerID       uuid.UUID
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	Items            []OrderItem
	Total            pgtype.Numeric
	PickupDate       pgtype.Date
	PickupTime       string
	Status           status.OrderStatus
	StatusTimestamps StatusTimestamps
}

const createOrder = `
INSERT INTO orders (customer_id, customer_name, customer_email, customer_phone, items, total,
    pickup_date, pickup_time, status, status_timestamps)
VALUES ($1, $2, $3, $4, $5, $6, $7, $8, $9, $10)
RETURNING ` + orderColumns

func (q *Queries) CreateOrder(ctx context.Context, arg CreateOrderParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, createOrder,
		arg.CustomerID,
		arg.CustomerName,
		arg.CustomerEmail,
		arg.CustomerPhone,
		arg.Items,
		arg.Total,
		arg.PickupDate,
		arg.PickupTime,
		string(arg.Status),
		arg.StatusTimestamps,
	))
}

const getOrder = `SELECT ` + orderColumns + ` FROM orders WHERE id = $1`

func (q *Queries) GetOrder(ctx context.Context, id uuid.UUID) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, getOrder, id))
}

// ListOrdersParams filters orders. Zero-valued fields do not filter.
type ListOrdersParams struct {
	ID             pgtype.UUID
	CustomerID     pgtype.UUID
	PickupDate     pgtype.Date
	Statuses       []string
	AssignedChefID pgtype.UUID
	Limit          int32
	Offset         int32
}

const listOrders = `
SELECT ` + orderColumns + ` FROM orders
WHERE ($1::uuid IS NULL OR id = $1)
  AND ($2::uuid IS NULL OR customer_id = $2)
  AND ($3::date IS NULL OR pickup_date = $3)
  AND ($4::text[] IS NULL OR cardinality($4::text[]) = 0 OR status = ANY($4::text[]))
  AND ($5::uuid IS NULL OR assigned_chef_id = $5)
ORDER BY pickup_date, pickup_time, created_at
LIMIT NULLIF($6::int, 0) OFFSET $7`

func (q *Queries) ListOrders(ctx context.Context, arg ListOrdersParams) ([]Order, error) {
	rows, err := q.db.Query(ctx, listOrders,
		arg.ID,
		arg.CustomerID,
		arg.PickupDate,
		arg.Statuses,
		arg.AssignedChefID,
		arg.Limit,
		arg.Offset,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Order
	for rows.Next() {
		o, err := scanOrder(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, o)
	}
	return items, rows.Err()
}

// UpdateOrderStatusParams describes one compare-and-swap status write.
// TimestampKey may be empty when the target status has no slot.
type UpdateOrderStatusParams struct {
	ID             uuid.UUID
	FromStatus     status.OrderStatus
	ToStatus       status.OrderStatus
	TimestampKey   string
	StampedAt      time.Time
	AssignedChefID pgtype.UUID
}

// The status only changes while the row still holds FromStatus. A timestamp
// key is written only if absent, so earlier stamps are never overwritten.
const updateOrderStatus = `
UPDATE orders
SET status = $3,
    status_timestamps = CASE
        WHEN $4::text = '' OR status_timestamps ? $4::text THEN status_timestamps
        ELSE status_timestamps || jsonb_build_object($4::text, $5::text)
    END,
    assigned_chef_id = COALESCE($6::uuid, assigned_chef_id),
    updated_at = now()
WHERE id = $1 AND status = $2
RETURNING ` + orderColumns

func (q *Queries) UpdateOrderStatus(ctx context.Context, arg UpdateOrderStatusParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, updateOrderStatus,
		arg.ID,
		string(arg.FromStatus),
		string(arg.ToStatus),
		arg.TimestampKey,
		arg.StampedAt.UTC().Format(time.RFC3339Nano),
		arg.AssignedChefID,
	))
}

type SetOrderEstimatedReadyParams struct {
	ID               uuid.UUID
	EstimatedReadyAt pgtype.Timestamptz
}

const setOrderEstimatedReady = `
UPDATE orders SET estimated_ready_at = $2, updated_at = now()
WHERE id = $1 AND status NOT IN ('completed', 'rejected')
RETURNING ` + orderColumns

func (q *Queries) SetOrderEstimatedReady(ctx context.Context, arg SetOrderEstimatedReadyParams) (Order, error) {
	return scanOrder(q.db.QueryRow(ctx, setOrderEstimatedReady, arg.ID, arg.EstimatedReadyAt))
}
