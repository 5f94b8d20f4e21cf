package database

import (
	"context"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgtype"
)

const notificationColumns = `id, user_id, title, message, entity_kind, entity_id, status,
whatsapp_link, is_read, created_at`

func scanNotification(row pgx.Row) (Notification, error) {
	var n Notification
	err := row.Scan(
		&n.ID,
		&n.UserID,
		&n.Title,
		&n.Message,
		&n.EntityKind,
		&n.EntityID,
		&n.Status,
		&n.WhatsappLink,
		&n.IsRead,
		&n.CreatedAt,
	)
	return n, err
}

type CreateNotificationParams struct {
	UserID       uuid.UUID
	Title        string
	Message      string
	EntityKind   string
	EntityID     uuid.UUID
	Status       string
	WhatsappLink pgtype.Text
}

const createNotification = `
INSERT INTO notifications (user_id, title, message, entity_kind, entity_id, status, whatsapp_link)
VALUES ($1, $2, $3, $4, $5, $6, $7)
RETURNING ` + notificationColumns

func (q *Queries) CreateNotification(ctx context.Context, arg CreateNotificationParams) (Notification, error) {
	return scanNotification(q.db.QueryRow(ctx, createNotification,
		arg.UserID,
		arg.Title,
		arg.Message,
		arg.EntityKind,
		arg.EntityID,
		arg.Status,
		arg.WhatsappLink,
	))
}

type ListNotificationsParams struct {
	UserID     uuid.UUID
	UnreadOnly bool
	Limit      int32
}

const listNotifications = `
SELECT ` + notificationColumns + ` FROM notifications
WHERE user_id = $1 AND (NOT $2::bool OR is_read = false)
ORDER BY created_at DESC
LIMIT NULLIF($3::int, 0)`

func (q *Queries) ListNotifications(ctx context.Context, arg ListNotificationsParams) ([]Notification, error) {
	rows, err := q.db.Query(ctx, listNotifications, arg.UserID, arg.UnreadOnly, arg.Limit)
	if err != nil {
		return nil, err
	}
	defer rows.Close()
	var items []Notification
	for rows.Next() {
		n, err := scanNotification(rows)
		if err != nil {
			return nil, err
		}
		items = append(items, n)
	}
	return items, rows.Err()
}

type MarkNotificationReadParams struct {
	ID     uuid.UUID
	UserID uuid.UUID
}

const markNotificationRead = `
UPDATE notifications SET is_read = true
WHERE id = $1 AND user_id = $2
RETURNING ` + notificationColumns

func (q *Queries) MarkNotificationRead(ctx context.Context, arg MarkNotificationReadParams) (Notification, error) {
	return scanNotification(q.db.QueryRow(ctx, markNotificationRead, arg.ID, arg.UserID))
}

const countUnreadNotifications = `SELECT count(*) FROM notifications WHERE user_id = $1 AND is_read = false`

func (q *Queries) CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error) {
	var n int64
	err := q.db.QueryRow(ctx, countUnreadNotifications, userID).Scan(&n)
	return n, err
}

// Users without a row get the defaults: in-app and WhatsApp on, e-mail off.
const getNotificationPreference = `
SELECT $1::uuid,
       COALESCE(p.in_app, true),
       COALESCE(p.whatsapp, true),
       COALESCE(p.email, false),
       COALESCE(p.updated_at, now())
FROM (SELECT 1) AS one
LEFT JOIN notification_preferences p ON p.user_id = $1`

func (q *Queries) GetNotificationPreference(ctx context.Context, userID uuid.UUID) (NotificationPreference, error) {
	var p NotificationPreference
	err := q.db.QueryRow(ctx, getNotificationPreference, userID).Scan(
		&p.UserID,
		&p.InApp,
		&p.Whatsapp,
		&p.Email,
		&p.UpdatedAt,
	)
	return p, err
}

type UpsertNotificationPreferenceParams struct {
	UserID   uuid.UUID
	InApp    bool
	Whatsapp bool
	Email    bool
}

const upsertNotificationPreference = `
INSERT INTO notification_preferences (user_id, in_app, whatsapp, email)
VALUES ($1, $2, $3, $4)
ON CONFLICT (user_id) DO UPDATE
SET in_app = EXCLUDED.in_app, whatsapp = EXCLUDED.whatsapp, email = EXCLUDED.email, updated_at = now()
RETURNING user_id, in_app, whatsapp, email, updated_at`

func (q *Queries) UpsertNotificationPreference(ctx context.Context, arg UpsertNotificationPreferenceParams) (NotificationPreference, error) {
	var p NotificationPreference
	err := q.db.QueryRow(ctx, upsertNotificationPreference, arg.UserID, arg.InApp, arg.Whatsapp, arg.Email).Scan(
		&p.UserID,
		&p.InApp,
		&p.Whatsapp,
		&p.Email,
		&p.UpdatedAt,
	)
	return p, err
}
