package database

import (
	"time"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5/pgtype"
	"github.com/jemini-foods/api/internal/status"
	"github.com/shopspring/decimal"
)

type User struct {
	ID             uuid.UUID
	Email          string
	HashedPassword string
	FullName       string
	Phone          pgtype.Text
	Role           string
	IsActive       bool
	CreatedAt      time.Time
	UpdatedAt      time.Time
}

type MenuItem struct {
	ID          uuid.UUID
	Name        string
	Description pgtype.Text
	Price       pgtype.Numeric
	Category    string
	ImageUrl    pgtype.Text
	IsAvailable bool
	CreatedAt   time.Time
	UpdatedAt   time.Time
}

// OrderItem is one line of an order, stored inside orders.items (jsonb).
type OrderItem struct {
	MenuItemID uuid.UUID       `json:"menu_item_id"`
	Name       string          `json:"name"`
	Quantity   int32           `json:"quantity"`
	UnitPrice  decimal.Decimal `json:"unit_price"`
}

// StatusTimestamps maps a timestamp key (booked, taken, making, ready) to
// the moment the order entered that status. Stored as orders.status_timestamps.
type StatusTimestamps map[string]time.Time

type Order struct {
	ID               uuid.UUID
	CustomerID       uuid.UUID
	CustomerName     string
	CustomerEmail    string
	CustomerPhone    string
	Items            []OrderItem
	Total            pgtype.Numeric
	PickupDate       pgtype.Date
	PickupTime       string
	AssignedChefID   pgtype.UUID
	EstimatedReadyAt pgtype.Timestamptz
	Status           status.OrderStatus
	StatusTimestamps StatusTimestamps
	CreatedAt        time.Time
	UpdatedAt        time.Time
}

type DiningTable struct {
	ID        uuid.UUID
	Label     string
	Capacity  int32
	TableType string
	Location  pgtype.Text
	IsActive  bool
	CreatedAt time.Time
}

type Reservation struct {
	ID              uuid.UUID
	CustomerID      uuid.UUID
	CustomerName    string
	CustomerEmail   string
	CustomerPhone   string
	ReservationDate pgtype.Date
	ReservationTime string
	PartySize       int32
	TableID         pgtype.UUID
	SpecialRequests pgtype.Text
	Status          status.ReservationStatus
	StatusChangedAt pgtype.Timestamptz
	CreatedAt       time.Time
}

type Notification struct {
	ID           uuid.UUID
	UserID       uuid.UUID
	Title        string
	Message      string
	EntityKind   string
	EntityID     uuid.UUID
	Status       string
	WhatsappLink pgtype.Text
	IsRead       bool
	CreatedAt    time.Time
}

type NotificationPreference struct {
	UserID    uuid.UUID
	InApp     bool
	Whatsapp  bool
	Email     bool
	UpdatedAt time.Time
}
