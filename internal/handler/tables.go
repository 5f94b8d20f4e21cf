package handler

import (
	"context"
	"encoding/json"
	"log"
	"net/http"
	"strconv"
	"strings"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/middleware"
)

// TableStore defines the database methods needed by table handlers.
// Satisfied by *database.Queries; narrow interface for testability.
type TableStore interface {
	ListTables(ctx context.Context) ([]database.DiningTable, error)
	CreateTable(ctx context.Context, arg database.CreateTableParams) (database.DiningTable, error)
	ListAvailableTables(ctx context.Context, arg database.ListAvailableTablesParams) ([]database.DiningTable, error)
}

// TableHandler handles dining table endpoints.
type TableHandler struct {
	store TableStore
}

// NewTableHandler creates a new TableHandler.
func NewTableHandler(store TableStore) *TableHandler {
	return &TableHandler{store: store}
}

// RegisterRoutes registers table endpoints: /tables
func (h *TableHandler) RegisterRoutes(r chi.Router) {
	r.Get("/available", h.Available)
	r.With(middleware.RequireRole(enum.RoleAdmin, enum.RoleChef)).Get("/", h.List)
	r.With(middleware.RequireRole(enum.RoleAdmin)).Post("/", h.Create)
}

type createTableRequest struct {
	Label     string `json:"label"`
	Capacity  int32  `json:"capacity"`
	TableType string `json:"table_type"`
	Location  string `json:"location"`
}

type tableResponse struct {
	ID        uuid.UUID `json:"id"`
	Label     string    `json:"label"`
	Capacity  int32     `json:"capacity"`
	TableType string    `json:"table_type"`
	Location  *string   `json:"location"`
	IsActive  bool      `json:"is_active"`
	CreatedAt time.Time `json:"created_at"`
}

func toTableResponse(t database.DiningTable) tableResponse {
	resp := tableResponse{
		ID:        t.ID,
		Label:     t.Label,
		Capacity:  t.Capacity,
		TableType: t.TableType,
		IsActive:  t.IsActive,
		CreatedAt: t.CreatedAt,
	}
	if t.Location.Valid {
		resp.Location = &t.Location.String
	}
	return resp
}

func writeTables(w http.ResponseWriter, tables []database.DiningTable) {
	resp := make([]tableResponse, len(tables))
	for i, t := range tables {
		resp[i] = toTableResponse(t)
	}
	writeJSON(w, http.StatusOK, resp)
}

// List returns every active table.
func (h *TableHandler) List(w http.ResponseWriter, r *http.Request) {
	tables, err := h.store.ListTables(r.Context())
	if err != nil {
		log.Printf("ERROR: list tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeTables(w, tables)
}

// Available handles GET /tables/available?date=&time=&party_size=&type=.
func (h *TableHandler) Available(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	date, err := database.ParseDate(q.Get("date"))
	if err != nil || !date.Valid {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "date is required, use YYYY-MM-DD"})
		return
	}
	at := q.Get("time")
	if _, err := time.Parse("15:04", at); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "time is required, use HH:MM"})
		return
	}
	party, err := strconv.Atoi(q.Get("party_size"))
	if err != nil || party <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "party_size must be a positive number"})
		return
	}
	tableType := q.Get("type")
	if tableType != "" && !enum.IsValidTableType(tableType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table type"})
		return
	}

	tables, err := h.store.ListAvailableTables(r.Context(), database.ListAvailableTablesParams{
		ReservationDate: date,
		ReservationTime: at,
		PartySize:       int32(party),
		TableType:       tableType,
	})
	if err != nil {
		log.Printf("ERROR: list available tables: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeTables(w, tables)
}

// Create adds a dining table.
func (h *TableHandler) Create(w http.ResponseWriter, r *http.Request) {
	var req createTableRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid request body"})
		return
	}
	req.Label = strings.TrimSpace(req.Label)
	if req.Label == "" || req.Capacity <= 0 {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "label and a positive capacity are required"})
		return
	}
	if req.TableType == "" {
		req.TableType = enum.TableTypeStandard
	}
	if !enum.IsValidTableType(req.TableType) {
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid table type"})
		return
	}

	t, err := h.store.CreateTable(r.Context(), database.CreateTableParams{
		Label:     req.Label,
		Capacity:  req.Capacity,
		TableType: req.TableType,
		Location:  database.TextOrNull(strings.TrimSpace(req.Location)),
	})
	if err != nil {
		if isUniqueViolation(err) {
			writeJSON(w, http.StatusConflict, map[string]string{"error": "table label already exists"})
			return
		}
		log.Printf("ERROR: create table: %v", err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
		return
	}
	writeJSON(w, http.StatusCreated, toTableResponse(t))
}
