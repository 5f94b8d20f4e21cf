package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const tableColumns = `id, label, capacity, table_type, location, is_active, created_at`

func scanTable(row pgx.Row) (DiningTable, error) {
	var t DiningTable
	err := row.Scan(
		&t.ID,
		&t.Label,
		&t.Capacity,
		&t.TableType,
		&t.Location,
		&t.IsActive,
		&t.CreatedAt,
	)
	return t, err
}

func collectTables(rows pgx.Rows) ([]DiningTable, error) {
	defer rows.Close()
	var items []DiningTable
	for rows.Next() {
		t, err := scanTable(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, t)
	}
	return items, rows.Err()
}

const listTables = `SELECT ` + tableColumns + ` FROM dining_tables WHERE is_active = true ORDER BY label`

func (q *Queries) ListTables(ctx context.Context) ([]DiningTable, error) {
	rows, err := q.db.Query(ctx, listTables)
	if err != nil {
		return nil, err
	}
	return collectTables(rows)
}

const getTable = `SELECT ` + tableColumns + ` FROM dining_tables WHERE id = $1`

func (q *Queries) GetTable(ctx context.Context, id uuid.UUID) (DiningTable, error) {
	return scanTable(q.db.QueryRow(ctx, getTable, id))
}

type CreateTableParams struct {
	Label     string
	Capacity  int32
	TableType string
	Location  pgtype.Text
}

const createTable = `
INSERT INTO dining_tables (label, capacity, table_type, location)
VALUES ($1, $2, $3, $4)
RETURNING ` + tableColumns

func (q *Queries) CreateTable(ctx context.Context, arg CreateTableParams) (DiningTable, error) {
	return scanTable(q.db.QueryRow(ctx, createTable, arg.Label, arg.Capacity, arg.TableType, arg.Location))
}

type ListAvailableTablesParams struct {
	ReservationDate pgtype.Date
	ReservationTime string
	PartySize       int32
	TableType       string
}

// A table is held by any pending or confirmed reservation for the same slot.
const listAvailableTables = `
SELECT ` + tableColumns + ` FROM dining_tables t
WHERE t.is_active = true
  AND t.capacity >= $3
  AND ($4::text = '' OR t.table_type = $4)
  AND NOT EXISTS (
    SELECT 1 FROM reservations r
    WHERE r.table_id = t.id
      AND r.reservation_date = $1
      AND r.reservation_time = $2
      AND r.status IN ('pending', 'confirmed')
  )
ORDER BY t.capacity, t.label`

func (q *Queries) ListAvailableTables(ctx context.Context, arg ListAvailableTablesParams) ([]DiningTable, error) {
	rows, err := q.db.Query(ctx, listAvailableTables,
		arg.ReservationDate,
		arg.ReservationTime,
		arg.PartySize,
		arg.TableType,
	)
	if err != nil {
		return nil, err
	}
	return collectTables(rows)
}
