package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/middleware"
)

// NotificationStore defines the database methods needed by notification handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type NotificationStore interface {
	ListNotifications(ctx context.Context, arg database.ListNotificationsParams) ([]database.Notification, error)
	CountUnreadNotifications(ctx context.Context, userID uuid.UUID) (int64, error)
	MarkNotificationRead(ctx context.Context, arg database.MarkNotificationReadParams) (database.Notification, error)
	GetNotificationPreference(ctx context.Context, userID uuid.UUID) (database.NotificationPreference, error)
	UpsertNotificationPreference(ctx context.Context, arg database.UpsertNotificationPreferenceParams) (database.NotificationPreference, error)
}

// NotificationHandler serves the caller's in-app notifications.
type NotificationHandler struct {
	store NotificationStore
}

// NewNotificationHandler creates a new NotificationHandler.
func NewNotificationHandler(store NotificationStore) *NotificationHandler {
	return &NotificationHandler{store: store}
}

// RegisterRoutes registers notification endpoints: /notifications
func (h *NotificationHandler) RegisterRoutes(r chi.Router) {
	r.Get("/", h.List)
	r.Post("/{id}/read", h.MarkRead)
	r.Get("/preferences", h.GetPreferences)
	r.Put("/preferences", h.UpdatePreferences)
}

type notificationResponse struct {
	ID           uuid.UUID `json:"id"`
	Title        string    `json:"title"`
	Message      string    `json:"message"`
	EntityKind   string    `json:"entity_kind"`
	EntityID     uuid.UUID `json:"entity_id"`
	Status       string    `json:"status"`
	WhatsappLink *string   `json:"whatsapp_link"`
	IsRead       bool      `json:"is_read"`
	CreatedAt    time.Time `json:"created_at"`
}

type notificationListResponse struct {
	Notifications []notificationResponse `json:"notifications"`
	Unread        int64                  `json:"unread"`
}

type preferenceRequest struct {
	InApp    *bool `json:"in_app"`
	Whatsapp *bool `json:"whatsapp"`
	Email    *bool `json:"email"`
}

type preferenceResponse struct {
	InApp     bool      `json:"in_app"`
	Whatsapp  bool      `json:"whatsapp"`
	Email     bool      `json:"email"`
	UpdatedAt time.Time `json:"updated_at"`
}

func toNotificationResponse(n database.Notification) notificationResponse {
	resp := notificationResponse{
		ID:         n.ID,
		Title:      n.Title,
		Message:    n.Message,
		EntityKind: n.EntityKind,
		EntityID:   n.EntityID,
		Status:     n.Status,
		IsRead:     n.IsRead,
		CreatedAt:  n.CreatedAt,
	}
	if n.WhatsappLink.Valid {
		resp.WhatsappLink = &n.WhatsappLink.String
	}
	return resp
}

func toPreferenceResponse(p database.NotificationPreference) preferenceResponse {
	return preferenceResponse{InApp: p.InApp, Whatsapp: p.Whatsapp, Email: p.Email, UpdatedAt: p.UpdatedAt}
}

// List handles GET /notifications?unread=true&limit=N.
func (h *NotificationHandler) List(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	limit := 50
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 && v <= 100 {
			limit = v
		}
	}

	items, err := h.store.ListNotifications(r.Context(), database.ListNotificationsParams{
		UserID:     claims.UserID,
		UnreadOnly: r.URL.Query().Get("unread") == "true",
		Limit:      int32(limit),
	})
	if err != nil {
		log.Printf("ERROR: list notifications: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	unread, err := h.store.CountUnreadNotifications(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: count unread notifications: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]notificationResponse, len(items))
	for i, n := range items {
		resp[i] = toNotificationResponse(n)
	}
	writeJSON(w, http.StatusOK, notificationListResponse{Notifications: resp, Unread: unread})
}

// MarkRead handles POST /notifications/{id}/read.
func (h *NotificationHandler) MarkRead(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid notification ID"})
		return
	}

	n, err := h.store.MarkNotificationRead(r.Context(), database.MarkNotificationReadParams{ID: id, UserID: claims.UserID})
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "notification not found"})
			return
		}
		log.Printf("ERROR: mark notification read: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toNotificationResponse(n))
}

// GetPreferences handles GET /notifications/preferences.
func (h *NotificationHandler) GetPreferences(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	p, err := h.store.GetNotificationPreference(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: get notification preference: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toPreferenceResponse(p))
}

// UpdatePreferences handles PUT /notifications/preferences. Omitted
// channels keep their current setting.
func (h *NotificationHandler) UpdatePreferences(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	var req preferenceRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	cur, err := h.store.GetNotificationPreference(r.Context(), claims.UserID)
	if err != nil {
		log.Printf("ERROR: get notification preference: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	arg := database.UpsertNotificationPreferenceParams{
		UserID:   claims.UserID,
		InApp:    cur.InApp,
		Whatsapp: cur.Whatsapp,
		Email:    cur.Email,
	}
	if req.InApp != nil {
		arg.InApp = *req.InApp
	}
	if req.Whatsapp != nil {
		arg.Whatsapp = *req.Whatsapp
	}
	if req.Email != nil {
		arg.Email = *req.Email
	}

	p, err := h.store.UpsertNotificationPreference(r.Context(), arg)
	if err != nil {
		log.Printf("ERROR: update notification preference: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, toPreferenceResponse(p))
}
