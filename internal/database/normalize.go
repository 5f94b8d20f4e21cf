package database

import (
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jemini-foods/api/internal/status"
	"github.com/shopspring/decimal"
)

const dateLayout = "2006-01-02"

var (
	ErrInvalidItem = errors.New("invalid order item")
	ErrInvalidDate = errors.New("invalid date, use YYYY-MM-DD")
)

// UnmarshalJSON accepts the canonical item shape as well as the older
// camelCase/short keys (menuItemId, qty, price) found in early records.
func (it *OrderItem) UnmarshalJSON(b []byte) error {
	var raw struct {
		MenuItemID *uuid.UUID       `json:"menu_item_id"`
		LegacyID   *uuid.UUID       `json:"menuItemId"`
		Name       string           `json:"name"`
		Quantity   *int32           `json:"quantity"`
		Qty        *int32           `json:"qty"`
		UnitPrice  *decimal.Decimal `json:"unit_price"`
		Price      *decimal.Decimal `json:"price"`
	}
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	*it = OrderItem{Name: raw.Name}
	switch {
	case raw.MenuItemID != nil:
		it.MenuItemID = *raw.MenuItemID
	case raw.LegacyID != nil:
		it.MenuItemID = *raw.LegacyID
	}
	switch {
	case raw.Quantity != nil:
		it.Quantity = *raw.Quantity
	case raw.Qty != nil:
		it.Quantity = *raw.Qty
	}
	switch {
	case raw.UnitPrice != nil:
		it.UnitPrice = *raw.UnitPrice
	case raw.Price != nil:
		it.UnitPrice = *raw.Price
	}
	return nil
}

// UnmarshalJSON keeps only the known timestamp keys; anything else stored
// under status_timestamps is dropped.
func (m *StatusTimestamps) UnmarshalJSON(b []byte) error {
	var raw map[string]*time.Time
	if err := json.Unmarshal(b, &raw); err != nil {
		return err
	}
	out := make(StatusTimestamps, len(raw))
	for k, v := range raw {
		if v == nil || !status.IsTimestampKey(k) {
			continue
		}
		out[k] = *v
	}
	*m = out
	return nil
}

// ValidateItems checks every line before it is written.
func ValidateItems(items []OrderItem) error {
	if len(items) == 0 {
		return fmt.Errorf("%w: at least one item is required", ErrInvalidItem)
	}
	for i, it := range items {
		if it.MenuItemID == uuid.Nil {
			return fmt.Errorf("%w: items[%d]: menu_item_id is required", ErrInvalidItem, i)
		}
		if it.Name == "" {
			return fmt.Errorf("%w: items[%d]: name is required", ErrInvalidItem, i)
		}
		if it.Quantity <= 0 {
			return fmt.Errorf("%w: items[%d]: quantity must be > 0", ErrInvalidItem, i)
		}
		if it.UnitPrice.IsNegative() {
			return fmt.Errorf("%w: items[%d]: unit_price must be >= 0", ErrInvalidItem, i)
		}
	}
	return nil
}

// ItemsTotal sums quantity * unit_price over items.
func ItemsTotal(items []OrderItem) decimal.Decimal {
	total := decimal.Zero
	for _, it := range items {
		total = total.Add(it.UnitPrice.Mul(decimal.NewFromInt32(it.Quantity)))
	}
	return total
}

// ParseDate parses a YYYY-MM-DD date. The empty string yields an invalid
// (NULL) date and no error.
func ParseDate(s string) (pgtype.Date, error) {
	if s == "" {
		return pgtype.Date{}, nil
	}
	t, err := time.Parse(dateLayout, s)
	if err != nil {
		return pgtype.Date{}, fmt.Errorf("%w: %q", ErrInvalidDate, s)
	}
	return pgtype.Date{Time: t, Valid: true}, nil
}

// FormatDate renders d as YYYY-MM-DD, or "" when NULL.
func FormatDate(d pgtype.Date) string {
	if !d.Valid {
		return ""
	}
	return d.Time.Format(dateLayout)
}

func NumericToDecimal(n pgtype.Numeric) decimal.Decimal {
	if !n.Valid {
		return decimal.Zero
	}
	val, err := n.Value()
	if err != nil || val == nil {
		return decimal.Zero
	}
	d, err := decimal.NewFromString(val.(string))
	if err != nil {
		return decimal.Zero
	}
	return d
}

func DecimalToNumeric(d decimal.Decimal) pgtype.Numeric {
	var n pgtype.Numeric
	_ = n.Scan(d.StringFixed(2))
	return n
}

func UUIDOrNull(id uuid.UUID) pgtype.UUID {
	if id == uuid.Nil {
		return pgtype.UUID{}
	}
	return pgtype.UUID{Bytes: id, Valid: true}
}

func TextOrNull(s string) pgtype.Text {
	if s == "" {
		return pgtype.Text{}
	}
	return pgtype.Text{String: s, Valid: true}
}
