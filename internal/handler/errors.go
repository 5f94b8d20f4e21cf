package handler

import (
	"errors"
	"log"
	"net/http"
	"strconv"

	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jemini-foods/api/internal/auth"
	"github.com/jemini-foods/api/internal/service"
)

// writeMutationError maps status gateway errors to HTTP responses.
func writeMutationError(w http.ResponseWriter, op string, err error) {
	switch {
	case errors.Is(err, service.ErrUnauthorizedRole):
		writeJSON(w, http.StatusForbidden, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrNotFound):
		writeJSON(w, http.StatusNotFound, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrIllegalTransition),
		errors.Is(err, service.ErrMutationInFlight),
		errors.Is(err, service.ErrCorruptStatus):
		writeJSON(w, http.StatusConflict, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrInvalidChef),
		errors.Is(err, service.ErrTableUnavailable):
		writeJSON(w, http.StatusBadRequest, map[string]string{"error": err.Error()})
	case errors.Is(err, service.ErrPersistenceFailure):
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusServiceUnavailable, map[string]string{"error": service.ErrPersistenceFailure.Error()})
	default:
		log.Printf("ERROR: %s: %v", op, err)
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": "internal server error"})
	}
}

func actorFrom(c *auth.Claims) service.Actor {
	return service.Actor{UserID: c.UserID, Role: c.Role}
}

func isUniqueViolation(err error) bool {
	var pgErr *pgconn.PgError
	return errors.As(err, &pgErr) && pgErr.Code == "23505"
}

// parsePagination reads limit (default 20, max 100) and offset.
func parsePagination(r *http.Request) (limit, offset int) {
	limit = 20
	if s := r.URL.Query().Get("limit"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v > 0 {
			limit = v
		}
	}
	if limit > 100 {
		limit = 100
	}
	if s := r.URL.Query().Get("offset"); s != "" {
		if v, err := strconv.Atoi(s); err == nil && v >= 0 {
			offset = v
		}
	}
	return limit, offset
}
