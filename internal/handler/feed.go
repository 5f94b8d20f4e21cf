package handler

import (
	"context"
	"errors"
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/feed"
	"github.com/jemini-foods/api/internal/middleware"
	"github.com/jemini-foods/api/internal/ws"
)

// FeedSubscriber is satisfied by *feed.Publisher.
type FeedSubscriber interface {
	Subscribe(ctx context.Context, c *ws.Client) error
}

// FeedHandler upgrades connections to the live status feed.
type FeedHandler struct {
	hub  *ws.Hub
	feed FeedSubscriber
}

// NewFeedHandler creates a new FeedHandler.
func NewFeedHandler(hub *ws.Hub, sub FeedSubscriber) *FeedHandler {
	return &FeedHandler{hub: hub, feed: sub}
}

// RegisterRoutes registers GET /ws/feed. Expected to be mounted behind
// Authenticate, which accepts ?token= on upgrade requests.
func (h *FeedHandler) RegisterRoutes(r chi.Router) {
	r.Get("/ws/feed", h.Serve)
}

// Serve validates the subscription filter, upgrades, and sends the
// initial snapshot. Customers are pinned to their own records.
func (h *FeedHandler) Serve(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	f, err := feed.FromQuery(r.URL.Query())
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
		return
	}
	if !enum.IsStaffRole(claims.Role) {
		if f.OwnerID != uuid.Nil && f.OwnerID != claims.UserID {
			writeJSON(w, http.StatusForbidden, map[string]string{"error": "cannot watch another customer's records"})
			return
		}
		f.OwnerID = claims.UserID
	}

	conn, err := ws.Upgrade(w, r)
	if err != nil {
		log.Printf("ERROR: websocket upgrade: %v", err)
		return
	}

	client := ws.NewClient(h.hub, conn, f.Topic())
	if err := h.feed.Subscribe(r.Context(), client); err != nil {
		log.Printf("ERROR: feed subscribe %s: %v", f.Topic(), err)
		code := websocket.CloseInternalServerErr
		if errors.Is(err, feed.ErrInvalidFilter) {
			code = websocket.ClosePolicyViolation
		}
		conn.WriteMessage(websocket.CloseMessage, websocket.FormatCloseMessage(code, "subscribe failed"))
		conn.Close()
		return
	}

	go client.WritePump()
	go client.ReadPump()
}
