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
	"github.com/jemini-foods/api/internal/auth"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/middleware"
	"github.com/jemini-foods/api/internal/notify"
	"github.com/jemini-foods/api/internal/present"
	"github.com/jemini-foods/api/internal/redisx"
	"github.com/jemini-foods/api/internal/service"
)

// OrderServicer defines the service methods needed to place orders.
// Satisfied by *service.OrderService; narrow interface for testability.
type OrderServicer interface {
	CreateOrder(ctx context.Context, req service.CreateOrderRequest) (*database.Order, error)
}

// OrderStatusServicer is satisfied by *service.StatusService.
type OrderStatusServicer interface {
	AdvanceOrder(ctx context.Context, req service.MutationRequest) (*service.OrderResult, error)
	AssignChef(ctx context.Context, orderID, chefID uuid.UUID, actor service.Actor) (*service.OrderResult, error)
	SetEstimatedReady(ctx context.Context, orderID uuid.UUID, at time.Time, actor service.Actor) (*service.OrderResult, error)
}

// OrderStore defines the database methods needed by order read handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type OrderStore interface {
	GetOrder(ctx context.Context, id uuid.UUID) (database.Order, error)
	ListOrders(ctx context.Context, arg database.ListOrdersParams) ([]database.Order, error)
}

// StatusReader is satisfied by *redisx.StatusCache.
type StatusReader interface {
	Get(ctx context.Context, orderID string) (redisx.StatusSnapshot, bool, error)
}

// OrderHandler handles order endpoints.
type OrderHandler struct {
	svc      OrderServicer
	status   OrderStatusServicer
	store    OrderStore
	cache    StatusReader
	whatsapp notify.WhatsApp
}

// NewOrderHandler creates a new OrderHandler. cache may be nil.
func NewOrderHandler(svc OrderServicer, statusSvc OrderStatusServicer, store OrderStore, cache StatusReader, whatsapp notify.WhatsApp) *OrderHandler {
	return &OrderHandler{svc: svc, status: statusSvc, store: store, cache: cache, whatsapp: whatsapp}
}

// RegisterRoutes registers order endpoints on the given Chi router.
// Expected to be mounted behind Authenticate at /orders.
func (h *OrderHandler) RegisterRoutes(r chi.Router) {
	staff := middleware.RequireRole(enum.RoleAdmin, enum.RoleChef)

	r.With(middleware.RequireRole(enum.RoleCustomer)).Post("/", h.Create)
	r.Get("/mine", h.ListMine)
	r.With(middleware.RequireRole(enum.RoleAdmin)).Get("/", h.List)
	r.With(middleware.RequireRole(enum.RoleChef)).Get("/assigned", h.ListAssigned)
	r.Get("/{id}", h.Get)
	r.Get("/{id}/status", h.GetStatus)
	r.Patch("/{id}/status", h.UpdateStatus)
	r.Post("/{id}/assign", h.AssignChef)
	r.Put("/{id}/eta", h.SetEstimatedReady)
	r.With(staff).Get("/{id}/whatsapp-link", h.WhatsAppLink)
}

// --- Request / Response types ---

type createOrderRequest struct {
	CustomerName  string                   `json:"customer_name"`
	CustomerEmail string                   `json:"customer_email"`
	CustomerPhone string                   `json:"customer_phone"`
	PickupDate    string                   `json:"pickup_date"`
	PickupTime    string                   `json:"pickup_time"`
	Items         []createOrderItemRequest `json:"items"`
}

type createOrderItemRequest struct {
	MenuItemID string `json:"menu_item_id"`
	Quantity   int32  `json:"quantity"`
}

type orderItemResponse struct {
	MenuItemID uuid.UUID `json:"menu_item_id"`
	Name       string    `json:"name"`
	Quantity   int32     `json:"quantity"`
	UnitPrice  string    `json:"unit_price"`
	Subtotal   string    `json:"subtotal"`
}

type orderResponse struct {
	ID               uuid.UUID            `json:"id"`
	CustomerID       uuid.UUID            `json:"customer_id"`
	CustomerName     string               `json:"customer_name"`
	CustomerEmail    string               `json:"customer_email"`
	CustomerPhone    string               `json:"customer_phone"`
	Items            []orderItemResponse  `json:"items"`
	Total            string               `json:"total"`
	PickupDate       string               `json:"pickup_date"`
	PickupTime       string               `json:"pickup_time"`
	AssignedChefID   *uuid.UUID           `json:"assigned_chef_id"`
	EstimatedReadyAt *time.Time           `json:"estimated_ready_at"`
	Status           string               `json:"status"`
	StatusTimestamps map[string]time.Time `json:"status_timestamps"`
	View             present.View         `json:"view"`
	CreatedAt        time.Time            `json:"created_at"`
	UpdatedAt        time.Time            `json:"updated_at"`
}

// orderMutationResponse is returned by every status-changing endpoint.
type orderMutationResponse struct {
	Order          orderResponse `json:"order"`
	PreviousStatus string        `json:"previous_status"`
	Toast          string        `json:"toast,omitempty"`
}

type orderStatusResponse struct {
	OrderID   uuid.UUID      `json:"order_id"`
	Status    string         `json:"status"`
	View      present.View   `json:"view"`
	Tracker   []present.Step `json:"tracker"`
	UpdatedAt time.Time      `json:"updated_at"`
	Cached    bool           `json:"cached"`
}

type orderListResponse struct {
	Orders []orderResponse `json:"orders"`
	Limit  int             `json:"limit"`
	Offset int             `json:"offset"`
}

type updateStatusRequest struct {
	Status string `json:"status"`
}

type assignChefRequest struct {
	ChefID string `json:"chef_id"`
}

type etaRequest struct {
	EstimatedReadyAt time.Time `json:"estimated_ready_at"`
}

type whatsAppLinkResponse struct {
	Link    string `json:"link"`
	Message string `json:"message"`
}

func toOrderResponse(o database.Order) orderResponse {
	resp := orderResponse{
		ID:               o.ID,
		CustomerID:       o.CustomerID,
		CustomerName:     o.CustomerName,
		CustomerEmail:    o.CustomerEmail,
		CustomerPhone:    o.CustomerPhone,
		Items:            make([]orderItemResponse, len(o.Items)),
		Total:            numericToString(o.Total),
		PickupDate:       database.FormatDate(o.PickupDate),
		PickupTime:       o.PickupTime,
		Status:           string(o.Status),
		StatusTimestamps: o.StatusTimestamps,
		View:             present.Render(enum.KindOrder, string(o.Status), present.Full),
		CreatedAt:        o.CreatedAt,
		UpdatedAt:        o.UpdatedAt,
	}
	if resp.StatusTimestamps == nil {
		resp.StatusTimestamps = map[string]time.Time{}
	}
	for i, it := range o.Items {
		resp.Items[i] = orderItemResponse{
			MenuItemID: it.MenuItemID,
			Name:       it.Name,
			Quantity:   it.Quantity,
			UnitPrice:  it.UnitPrice.StringFixed(2),
			Subtotal:   database.ItemsTotal([]database.OrderItem{it}).StringFixed(2),
		}
	}
	if o.AssignedChefID.Valid {
		id := uuid.UUID(o.AssignedChefID.Bytes)
		resp.AssignedChefID = &id
	}
	if o.EstimatedReadyAt.Valid {
		at := o.EstimatedReadyAt.Time
		resp.EstimatedReadyAt = &at
	}
	return resp
}

func toOrderMutationResponse(res *service.OrderResult) orderMutationResponse {
	return orderMutationResponse{
		Order:          toOrderResponse(res.Order),
		PreviousStatus: string(res.Previous),
		Toast:          res.Toast,
	}
}

// canView reports whether the caller may read order o.
func canView(c *auth.Claims, customerID uuid.UUID) bool {
	return enum.IsStaffRole(c.Role) || c.Role == enum.RoleSystem || c.UserID == customerID
}

// --- Handlers ---

// Create handles POST /orders.
func (h *OrderHandler) Create(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}

	var req createOrderRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}

	items := make([]service.CreateOrderItemRequest, len(req.Items))
	for i, it := range req.Items {
		items[i] = service.CreateOrderItemRequest{MenuItemID: it.MenuItemID, Quantity: it.Quantity}
	}

	order, err := h.svc.CreateOrder(r.Context(), service.CreateOrderRequest{
		CustomerID:    claims.UserID,
		CustomerName:  req.CustomerName,
		CustomerEmail: strings.TrimSpace(req.CustomerEmail),
		CustomerPhone: strings.TrimSpace(req.CustomerPhone),
		PickupDate:    req.PickupDate,
		PickupTime:    req.PickupTime,
		Items:         items,
	})
	if err != nil {
		if isOrderValidationError(err) {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
			return
		}
		log.Printf("ERROR: create order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	writeJSON(w, http.StatusCreated, toOrderResponse(*order))
}

// ListMine handles GET /orders/mine.
func (h *OrderHandler) ListMine(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	limit, offset := parsePagination(r)
	h.list(w, r, database.ListOrdersParams{
		CustomerID: database.UUIDOrNull(claims.UserID),
		Limit:      int32(limit),
		Offset:     int32(offset),
	})
}

// List handles GET /orders?date=&status=a,b for the admin dashboard.
func (h *OrderHandler) List(w http.ResponseWriter, r *http.Request) {
	limit, offset := parsePagination(r)
	params := database.ListOrdersParams{Limit: int32(limit), Offset: int32(offset)}
	if !applyOrderFilters(w, r, &params) {
		return
	}
	h.list(w, r, params)
}

// ListAssigned handles GET /orders/assigned for the calling chef.
func (h *OrderHandler) ListAssigned(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	limit, offset := parsePagination(r)
	params := database.ListOrdersParams{
		AssignedChefID: database.UUIDOrNull(claims.UserID),
		Limit:          int32(limit),
		Offset:         int32(offset),
	}
	if !applyOrderFilters(w, r, &params) {
		return
	}
	h.list(w, r, params)
}

func applyOrderFilters(w http.ResponseWriter, r *http.Request, params *database.ListOrdersParams) bool {
	if s := r.URL.Query().Get("date"); s != "" {
		d, err := database.ParseDate(s)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid date format, use YYYY-MM-DD"})
			return false
		}
		params.PickupDate = d
	}
	if s := r.URL.Query().Get("status"); s != "" {
		params.Statuses = strings.Split(s, ",")
	}
	return true
}

func (h *OrderHandler) list(w http.ResponseWriter, r *http.Request, params database.ListOrdersParams) {
	orders, err := h.store.ListOrders(r.Context(), params)
	if err != nil {
		log.Printf("ERROR: list orders: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}

	resp := make([]orderResponse, len(orders))
	for i, o := range orders {
		resp[i] = toOrderResponse(o)
	}
	writeJSON(w, http.StatusOK, orderListResponse{
		Orders: resp,
		Limit:  int(params.Limit),
		Offset: int(params.Offset),
	})
}

// Get handles GET /orders/{id}. Customers only see their own orders.
func (h *OrderHandler) Get(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, toOrderResponse(order))
}

// GetStatus handles GET /orders/{id}/status, preferring the Redis snapshot.
func (h *OrderHandler) GetStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	if h.cache != nil {
		snap, hit, err := h.cache.Get(r.Context(), orderID.String())
		if err != nil {
			log.Printf("WARN: read cached order status %s: %v", orderID, err)
		}
		if hit && canView(claims, snap.CustomerID) {
			writeJSON(w, http.StatusOK, statusResponse(orderID, snap.Status, snap.UpdatedAt, true))
			return
		}
	}

	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	writeJSON(w, http.StatusOK, statusResponse(order.ID, string(order.Status), order.UpdatedAt, false))
}

func statusResponse(id uuid.UUID, s string, at time.Time, cached bool) orderStatusResponse {
	return orderStatusResponse{
		OrderID:   id,
		Status:    s,
		View:      present.Render(enum.KindOrder, s, present.Full),
		Tracker:   present.OrderTracker(s),
		UpdatedAt: at,
		Cached:    cached,
	}
}

// UpdateStatus handles PATCH /orders/{id}/status.
func (h *OrderHandler) UpdateStatus(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req updateStatusRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.Status == "" {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "status is required"})
		return
	}

	res, err := h.status.AdvanceOrder(r.Context(), service.MutationRequest{
		EntityID: orderID,
		Status:   req.Status,
		Actor:    actorFrom(claims),
	})
	if err != nil {
		writeMutationError(w, "update order status", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderMutationResponse(res))
}

// AssignChef handles POST /orders/{id}/assign.
func (h *OrderHandler) AssignChef(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req assignChefRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	chefID, err := uuid.Parse(req.ChefID)
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid chef_id"})
		return
	}

	res, err := h.status.AssignChef(r.Context(), orderID, chefID, actorFrom(claims))
	if err != nil {
		writeMutationError(w, "assign chef", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderMutationResponse(res))
}

// SetEstimatedReady handles PUT /orders/{id}/eta.
func (h *OrderHandler) SetEstimatedReady(w http.ResponseWriter, r *http.Request) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return
	}

	var req etaRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	if req.EstimatedReadyAt.IsZero() {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "estimated_ready_at is required"})
		return
	}

	res, err := h.status.SetEstimatedReady(r.Context(), orderID, req.EstimatedReadyAt, actorFrom(claims))
	if err != nil {
		writeMutationError(w, "set estimated ready", err)
		return
	}
	writeJSON(w, http.StatusOK, toOrderMutationResponse(res))
}

// WhatsAppLink handles GET /orders/{id}/whatsapp-link.
func (h *OrderHandler) WhatsAppLink(w http.ResponseWriter, r *http.Request) {
	order, ok := h.loadOrder(w, r)
	if !ok {
		return
	}
	ev := notify.Event{
		Kind:          enum.KindOrder,
		EntityID:      order.ID,
		NewStatus:     string(order.Status),
		CustomerID:    order.CustomerID,
		CustomerName:  order.CustomerName,
		CustomerPhone: order.CustomerPhone,
	}
	writeWhatsAppLink(w, h.whatsapp, ev)
}

// --- Helpers ---

// loadOrder resolves {id} and hides other customers' orders behind 404.
func (h *OrderHandler) loadOrder(w http.ResponseWriter, r *http.Request) (database.Order, bool) {
	claims := middleware.ClaimsFromContext(r.Context())
	if claims == nil {
		writeJSON(w, http.StatusUnauthorized, map[string]string{"error": "not authenticated"})
		return database.Order{}, false
	}
	orderID, err := uuid.Parse(chi.URLParam(r, "id"))
	if err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid order ID"})
		return database.Order{}, false
	}

	order, err := h.store.GetOrder(r.Context(), orderID)
	if err != nil {
		if errors.Is(err, pgx.ErrNoRows) {
			writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
			return database.Order{}, false
		}
		log.Printf("ERROR: get order: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return database.Order{}, false
	}
	if !canView(claims, order.CustomerID) {
		writeJSON(w, http.StatusNotFound, map[string]string{"error": "order not found"})
		return database.Order{}, false
	}
	return order, true
}

func writeWhatsAppLink(w http.ResponseWriter, wa notify.WhatsApp, ev notify.Event) {
	link, err := wa.Link(ev)
	if err != nil {
		if errors.Is(err, notify.ErrNoPhone) {
			writeJSON(w, http.StatusUnprocessableEntity, map[string]string{"error": "customer has no phone number"})
			return
		}
		log.Printf("ERROR: whatsapp link: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusOK, whatsAppLinkResponse{Link: link, Message: wa.Message(ev)})
}

// isOrderValidationError checks if the error is a known validation error
// from the service layer that should result in 400 Bad Request.
func isOrderValidationError(err error) bool {
	return errors.Is(err, service.ErrEmptyItems) ||
		errors.Is(err, service.ErrInvalidQuantity) ||
		errors.Is(err, service.ErrInvalidMenuItemID) ||
		errors.Is(err, service.ErrMenuItemNotFound) ||
		errors.Is(err, service.ErrMenuItemUnavailable) ||
		errors.Is(err, service.ErrPickupDateRequired) ||
		errors.Is(err, service.ErrInvalidPickupTime) ||
		errors.Is(err, service.ErrPickupInPast) ||
		errors.Is(err, service.ErrCustomerRequired) ||
		errors.Is(err, database.ErrInvalidItem) ||
		errors.Is(err, database.ErrInvalidDate)
}
