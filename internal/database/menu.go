package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const menuItemColumns = `id, name, description, price, category, image_url, is_available, created_at, updated_at`

func scanMenuItem(row pgx.Row) (MenuItem, error) {
	var m MenuItem
	err := row.Scan(
		&m.ID,
		&m.Name,
		&m.Description,
		&m.Price,
		&m.Category,
		&m.ImageUrl,
		&m.IsAvailable,
		&m.CreatedAt,
		&m.UpdatedAt,
	)
	return m, err
}

type ListMenuItemsParams struct {
	Category      string
	AvailableOnly bool
}

const listMenuItems = `
SELECT ` + menuItemColumns + ` FROM menu_items
WHERE ($1::text = '' OR category = $1)
  AND (NOT $2::bool OR is_available = true)
ORDER BY category, name`

func (q *Queries) ListMenuItems(ctx context.Context, arg ListMenuItemsParams) ([]MenuItem, error) {
	rows, err := q.db.Query(ctx, listMenuItems, arg.Category, arg.AvailableOnly)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []MenuItem
	for rows.Next() {
		m, err := scanMenuItem(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, m)
	}
	return items, rows.Err()
}

const getMenuItem = `SELECT ` + menuItemColumns + ` FROM menu_items WHERE id = $1`

func (q *Queries) GetMenuItem(ctx context.Context, id uuid.UUID) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, getMenuItem, id))
}

type CreateMenuItemParams struct {
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	ImageUrl    pgtype.Text
}

const createMenuItem = `
INSERT INTO menu_items (name, description, price, category, image_url)
VALUES ($1, $2, $3, $4, $5)
RETURNING ` + menuItemColumns

func (q *Queries) CreateMenuItem(ctx context.Context, arg CreateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, createMenuItem,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.Category,
		arg.ImageUrl,
	))
}

type UpdateMenuItemParams struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	ImageUrl    pgtype.Text
	IsAvailable bool
}

const updateMenuItem = `
UPDATE menu_items
SET name = $2, description = $3, price = $4, category = $5, image_url = $6,
    is_available = $7, updated_at = now()
WHERE id = $1
RETURNING ` + menuItemColumns

func (q *Queries) UpdateMenuItem(ctx context.Context, arg UpdateMenuItemParams) (MenuItem, error) {
	return scanMenuItem(q.db.QueryRow(ctx, updateMenuItem,
		arg.ID,
		arg.Name,
		arg.Description,
		arg.Price,
		arg.Category,
		arg.ImageUrl,
		arg.IsAvailable,
	))
}

const withdrawMenuItem = `UPDATE menu_items SET is_available = false, updated_at = now() WHERE id = $1 RETURNING id`

// WithdrawMenuItem hides an item from the menu. Items are never deleted
// because past orders reference them.
func (q *Queries) WithdrawMenuItem(ctx context.Context, id uuid.UUID) (uuid.UUID, error) {
	var out uuid.UUID
	err := q.db.QueryRow(ctx, withdrawMenuItem, id).Scan(&out)
	return out, err
}
