package handler

import (
	"context"
	"encoding/json"
	"errors"
	"log"
	"net/http"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/middleware"
	"github.com/jemini-foods/api/internal/notify"
	"github.com/jemini-foods/api/internal/present"
	"github.com/jemini-foods/api/internal/service"
)

// ReservationServicer is satisfied by *service.ReservationService.
type ReservationServicer interface {
	CreateReservation(ctx context.Context, req service.CreateReservationRequest) (*database.Reservation, error)
}

// ReservationStatusServicer is satisfied by *service.StatusService.
type ReservationStatusServicer interface {
	UpdateReservation(ctx context.Context, req service.ReservationMutation) (*service.ReservationResult, error)
}

// ReservationStore defines the database methods needed by reservation read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type ReservationStore interface {
	GetReservation(ctx context.Context, id uuid.UUID) (database.Reservation, error)
	ListReservations(ctx context.Context, arg database.ListReservationsParams) ([]database.Reservation, error)
}

// ReservationHandler handles table reservation endpoints.
type ReservationHandler struct {
	svc      ReservationServicer
	status   ReservationStatusServicer
	store    ReservationStore
	whatsapp notify.WhatsApp
}

// NewReservationHandler creates a new ReservationHandler.
func NewReservationHandler(svc ReservationServicer, statusSvc ReservationStatusServicer, store ReservationStore, whatsapp notify.WhatsApp) *ReservationHandler {
	return &ReservationHandler{svc: svc, status: statusSvc, store: store, whatsapp: whatsapp}
}

// RegisterRoutes registers reservation endpoints. Expected to be mounted
// behind Authenticate at /reservations.
func (h *ReservationHandler) RegisterRoutes(r chi.Router) {
	r.With(middleware.RequireRole(enum.RoleCustomer)).Post("/", h.Create)
	r.Get("/mine", h.ListMine)
	r.With(middleware.RequireRole(enum.RoleAdmin)).Get("/", h.List)
	r.Get("/{id}", h.Get)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.With(middleware.RequireRole(enum.RoleAdmin, enum.RoleChef)).Get("/{id}/whatsapp-link", h.WhatsAppLink)
}

// --- Request / Response types ---

type createReservationRequest struct {
	CustomerName    string `json:"customer_name"`
	CustomerEmail   string `json:"customer_email"`
	CustomerPhone   string `json:"customer_phone"`
	ReservationDate string `json:"reservation_date"`
	ReservationTime string `json:"reservation_time"`
	PartySize       int32  `json:"party_size"`
	TableID         string `json:"table_id"`
	SpecialRequests string `json:"special_requests"`
}

type updateReservationStatusRequest struct {
	Status  string `json:"status"`
	TableID string `json:"table_id"`
}

type reservationResponse struct {
	ID              uuid.UUID    `json:"id"`
	CustomerID      uuid.UUID    `json:"customer_id"`
	CustomerName    string       `json:"customer_name"`
	CustomerEmail   string       `json:"customer_email"`
	CustomerPhone   string       `json:"customer_phone"`
	ReservationDate string       `json:"reservation_date"`
	ReservationTime string       `json:"reservation_time"`
	PartySize       int32        `json:"party_size"`
	TableID         *uuid.UUID   `json:"table_id"`
	SpecialRequests *string      `json:"special_requests"`
	Status          string       `json:"status"`
	StatusChangedAt *time.Time   `json:"status_changed_at"`
	View            present.View `json:"view"`
	CreatedAt       time.Time    `json:"created_at"`
}

type reservationMutationResponse struct {
	Reservation    reservationResponse `json:"reservation"`
	PreviousStatus string              `json:"previous_status"`
	Toast          string              `json:"toast,omitempty"`
}

type reservationListResponse struct {
	Reservations []reservationResponse `json:"reservations"`
	Limit        int                   `json:"limit"`
	Offset       int                   `json:"offset"`
}

func toReservationResponse(res database.Reservation) reservationResponse {
	resp := reservationResponse{
		ID:              res.ID,
		CustomerID:      res.CustomerID,
		CustomerName:    res.CustomerName,
		CustomerEmail:   res.CustomerEmail,
		CustomerPhone:   res.CustomerPhone,
		ReservationDate: database.FormatDate(res.ReservationDate),
		ReservationTime: res.ReservationTime,
		PartySize:       res.PartySize,
		Status:          string(res.Status),
		View:            present.Render(enum.KindReservation, string(res.Status), present.Full),
		CreatedAt:       res.CreatedAt,
	}
	if res.TableID.Valid {
		id := uuid.UUID(res.TableID.Bytes)
		resp.TableID = &id
	}
	if res.SpecialRequests.Valid {
		resp.SpecialRequests = &res.SpecialRequests.String
	}
	if res.StatusChangedAt.Valid {
		at := res.StatusChangedAt.Time
		resp.StatusChangedAt = &at
	}
	return resp
}

// --- Handlers ---

// Create handles POST /reservations.
func (h *ReservationHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createReservationRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	res, err := h.svc.CreateReservation(r.Context(), service.CreateReservationRequest{
		CustomerID:      claims.UserID,
		CustomerName:    req.CustomerName,
		CustomerEmail:   strings.TrimSpace(req.CustomerEmail),
		CustomerPhone:   strings.TrimSpace(req.CustomerPhone),
		ReservationDate: req.ReservationDate,
		ReservationTime: req.ReservationTime,
		PartySize:       req.PartySize,
		TableID:         req.TableID,
		SpecialRequests: req.SpecialRequests,
	})
	if err != nil {
		if isReservationValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create reservation: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toReservationResponse(*res))
}

// ListMine handles GET /reservations/mine.
func (h *ReservationHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	limit, offset := parsePagination(r)
	h.list(w, r, database.ListReservationsParams{
		CustomerID: database.UUIDOrNull(claims.UserID),
		Limit:      int32(limit),
		Offset:     int32(offset),
	})
}

// List handles GET /reservations?date=&status=a,b.
func (h *ReservationHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	params := database.ListReservationsParams{Limit: int32(limit), Offset: int32(offset)}
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := database.ParseDate(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
			return
		}
		params.ReservationDate = d
	}
	if s := r.URL.Query().Get("status"); s != "" {
		params.Statuses = strings.Split(s, ",")
	}
	h.list(w, r, params)
}

func (h *ReservationHandler) list(w http.ResponseWriter, r *http.Request, params database.ListReservationsParams) {
	rows, err := h.store.ListReservations(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list reservations: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	resp := make([]reservationResponse, len(rows))
	for i, res := range rows {
		resp[i] = toReservationResponse(res)
	}
	writeJSON(w, http.StatusOK, reservationListResponse{
		Reservations: resp,
		Limit:        int(params.Limit),
		Offset:       int(params.Offset),
	})
}

// Get handles GET /reservations/{id}.
func (h *ReservationHandler) Get(w http.ResponseWriter, r *http.Request) {
	res, ok := h.loadReservation(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toReservationResponse(res))
}

// UpdateStatus handles PATCH /reservations/{id}/status. A table_id may
// accompany a confirmation.
func (h *ReservationHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reservation ID"})
		return
	}

	var req updateReservationStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}
	var tableID uuid.UUID
	if req.TableID != "" {
		if tableID, err = uuid.Parse(req.TableID); err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table_id"})
			return
		}
	}

	res, err := h.status.UpdateReservation(r.Context(), service.ReservationMutation{
		MutationRequest: service.MutationRequest{
			EntityID: id,
			Status:   req.Status,
			Actor:    actorFrom(claims),
		},
		TableID: tableID,
	})
	if err != nil {
		writeMutationError(w, "update reservation status", err)
		return
	}
	writeJSON(w, http.StatusOK, reservationMutationResponse{
		Reservation:    toReservationResponse(res.Reservation),
		PreviousStatus: string(res.Previous),
		Toast:          res.Toast,
	})
}

// WhatsAppLink handles GET /reservations/{id}/whatsapp-link.
func (h *ReservationHandler) WhatsAppLink(w http.ResponseWriter, r *http.Request) {
	res, ok := h.loadReservation(w, r)
	if !ok {
		return
	}
	writeWhatsAppLink(w, h.whatsapp, notify.Event{
		Kind:          enum.KindReservation,
		EntityID:      res.ID,
		NewStatus:     string(res.Status),
		CustomerID:    res.CustomerID,
		CustomerName:  res.CustomerName,
		CustomerPhone: res.CustomerPhone,
	})
}

// --- Helpers ---

func (h *ReservationHandler) loadReservation(w http.ResponseWriter, r *http.Request) (database.Reservation, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return database.Reservation{}, false
	}
	id, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid reservation ID"})
		return database.Reservation{}, false
	}

	res, err := h.store.GetReservation(r.Context(), id)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "reservation not found"})
			return database.Reservation{}, false
		}
		log.Printf("ERROR: get reservation: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.Reservation{}, false
	}
	if !canView(claims, res.CustomerID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "reservation not found"})
		return database.Reservation{}, false
	}
	return res, true
}

func isReservationValidationError(err error) bool {
	return errors.Is(err, service.ErrCustomerRequired) ||
		errors.Is(err, service.ErrInvalidPartySize) ||
		errors.Is(err, service.ErrReservationDateInvalid) ||
		errors.Is(err, service.ErrInvalidReservationTime) ||
		errors.Is(err, service.ErrTableUnavailable) ||
		errors.Is(err, database.ErrInvalidDate)
}
