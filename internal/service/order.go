package service

import (
	"context"
	"errors"
	"fmt"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/status"
)

// Errors returned by the order service.
var (
	ErrEmptyItems          = errors.New("items are required")
	ErrInvalidQuantity     = errors.New("quantity must be > 0")
	ErrInvalidMenuItemID   = errors.New("invalid menu_item_id")
	ErrMenuItemNotFound    = errors.New("menu item not found")
	ErrMenuItemUnavailable = errors.New("menu item is not available")
	ErrPickupDateRequired  = errors.New("pickup_date is required")
	ErrInvalidPickupTime   = errors.New("invalid pickup_time, use HH:MM")
	ErrPickupInPast        = errors.New("pickup_date is in the past")
	ErrCustomerRequired    = errors.New("customer name is required")
)

const timeLayout = "15:04"

// TxBeginner starts a new database transaction.
type TxBeginner interface {
	Begin(ctx context.Context) (pgx.Tx, error)
}

// OrderStore defines the DB methods needed to create orders.
// Satisfied by *database.Queries (and its WithTx variant).
type OrderStore interface {
	GetMenuItem(ctx context.Context, id uuid.UUID) (database.MenuItem, error)
	CreateOrder(ctx context.Context, arg database.CreateOrderParams) (database.Order, error)
}

// NewOrderStore creates an OrderStore from a DBTX (pool or tx).
// This allows the service to create store instances from transactions.
type NewOrderStore func(db database.DBTX) OrderStore

// CreateOrderRequest is the validated input for placing a pre-order.
type CreateOrderRequest struct {
	CustomerID    uuid.UUID
	CustomerName  string
	CustomerEmail string
	CustomerPhone string
	PickupDate    string // YYYY-MM-DD
	PickupTime    string // HH:MM
	Items         []CreateOrderItemRequest
}

// CreateOrderItemRequest is a single line of the order.
type CreateOrderItemRequest struct {
	MenuItemID string
	Quantity   int32
}

// OrderService handles pre-order creation.
type OrderService struct {
	pool     TxBeginner
	newStore NewOrderStore
	feed     FeedPublisher
	now      func() time.Time
}

// NewOrderService creates a new OrderService. feed may be nil.
func NewOrderService(pool TxBeginner, newStore NewOrderStore, feed FeedPublisher) *OrderService {
	return &OrderService{pool: pool, newStore: newStore, feed: feed, now: time.Now}
}

// CreateOrder prices every line from the menu and stores the order as booked.
func (s *OrderService) CreateOrder(ctx context.Context, req CreateOrderRequest) (*database.Order, error) {
	if len(req.Items) == 0 {
		return nil, ErrEmptyItems
	}
	if strings.TrimSpace(req.CustomerName) == "" {
		return nil, ErrCustomerRequired
	}
	if req.PickupDate == "" {
		return nil, ErrPickupDateRequired
	}
	pickupDate, err := database.ParseDate(req.PickupDate)
	if err != nil {
		return nil, err
	}
	now := s.now()
	today := time.Date(now.Year(), now.Month(), now.Day(), 0, 0, 0, 0, time.UTC)
	if pickupDate.Time.Before(today) {
		return nil, ErrPickupInPast
	}
	if _, err := time.Parse(timeLayout, req.PickupTime); err != nil {
		return nil, ErrInvalidPickupTime
	}

	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx) //nolint:errcheck

	store := s.newStore(tx)

	// --- Resolve items and prices ---
	items := make([]database.OrderItem, 0, len(req.Items))
	for i, item := range req.Items {
		if item.Quantity <= 0 {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidQuantity)
		}
		menuItemID, err := uuid.Parse(item.MenuItemID)
		if err != nil {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrInvalidMenuItemID)
		}
		mi, err := store.GetMenuItem(ctx, menuItemID)
		if err != nil {
			if errors.Is(err, pgx.ErrNoRows) {
				return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemNotFound)
			}
			return nil, fmt.Errorf("item[%d]: get menu item: %w", i, err)
		}
		if !mi.IsAvailable {
			return nil, fmt.Errorf("item[%d]: %w", i, ErrMenuItemUnavailable)
		}
		items = append(items, database.OrderItem{
			MenuItemID: mi.ID,
			Name:       mi.Name,
			Quantity:   item.Quantity,
			UnitPrice:  database.NumericToDecimal(mi.Price),
		})
	}
	if err := database.ValidateItems(items); err != nil {
		return nil, err
	}
	total := database.ItemsTotal(items)
	bookedKey, _ := status.TimestampKey(status.OrderBooked)

	// --- Insert order ---
	order, err := store.CreateOrder(ctx, database.CreateOrderParams{
		CustomerID:       req.CustomerID,
		CustomerName:     strings.TrimSpace(req.CustomerName),
		CustomerEmail:    req.CustomerEmail,
		CustomerPhone:    req.CustomerPhone,
		Items:            items,
		Total:            database.DecimalToNumeric(total),
		PickupDate:       pickupDate,
		PickupTime:       req.PickupTime,
		Status:           status.OrderBooked,
		StatusTimestamps: database.StatusTimestamps{bookedKey: now.UTC()},
	})
	if err != nil {
		return nil, fmt.Errorf("create order: %w", err)
	}

	// --- Commit ---
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}

	if s.feed != nil {
		s.feed.OrderChanged(ctx, order)
	}
	return &order, nil
}
