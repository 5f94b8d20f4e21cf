package notify

import (
	"context"
	"errors"
	"fmt"

	"github.com/google/uuid"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/enum"
)

// InAppStore is satisfied by *database.Queries; narrow interface for testability.
type InAppStore interface {
	GetNotificationPreference(ctx context.Context, userID uuid.UUID) (database.NotificationPreference, error)
	CreateNotification(ctx context.Context, arg database.CreateNotificationParams) (database.Notification, error)
}

// InApp writes a notification row for the customer who owns the entity.
// When the customer accepts WhatsApp messages the row carries a deep link.
type InApp struct {
	store    InAppStore
	whatsapp WhatsApp
}

func NewInApp(store InAppStore, whatsapp WhatsApp) *InApp {
	return &InApp{store: store, whatsapp: whatsapp}
}

func (n *InApp) Notify(ctx context.Context, ev Event) error {
	if ev.CustomerID == uuid.Nil {
		return nil
	}
	// Staff acting on their own booking do not notify themselves.
	if ev.ActorID == ev.CustomerID {
		return nil
	}
	pref, err := n.store.GetNotificationPreference(ctx, ev.CustomerID)
	if err != nil {
		return fmt.Errorf("load preferences: %w", err)
	}
	if !pref.InApp {
		return nil
	}

	params := database.CreateNotificationParams{
		UserID:     ev.CustomerID,
		Title:      title(ev),
		Message:    n.whatsapp.Message(ev),
		EntityKind: ev.Kind,
		EntityID:   ev.EntityID,
		Status:     ev.NewStatus,
	}
	if pref.Whatsapp {
		link, err := n.whatsapp.Link(ev)
		if err != nil && !errors.Is(err, ErrNoPhone) {
			return err
		}
		params.WhatsappLink = database.TextOrNull(link)
	}

	if _, err := n.store.CreateNotification(ctx, params); err != nil {
		return fmt.Errorf("create notification: %w", err)
	}
	return nil
}

func title(ev Event) string {
	if ev.Kind == enum.KindReservation {
		return "Reservation update"
	}
	return "Order update"
}
