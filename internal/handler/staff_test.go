package handler_test

import (
	"context"
	"net/http"
	"testing"

	"github.com/go-chi/chi/v5"
	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgconn"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/handler"
	"github.com/jemini-foods/api/internal/middleware"
	"golang.org/x/crypto/bcrypt"
)

// --- Mock store ---

type mockStaffStore struct {
	users map[uuid.UUID]database.User
}

func newMockStaffStore() *mockStaffStore {
	return &mockStaffStore{users: make(map[uuid.UUID]database.User)}
}

func (m *mockStaffStore) add(email, role string) database.User {
	u := database.User{ID: uuid.New(), Email: email, FullName: email, Role: role, IsActive: true}
	m.users[u.ID] = u
	return u
}

func (m *mockStaffStore) ListUsersByRole(_ context.Context, role string) ([]database.User, error) {
	var out []database.User
	for _, u := range m.users {
		if u.IsActive && (role == "" || u.Role == role) {
			out = append(out, u)
		}
	}
	return out, nil
}

func (m *mockStaffStore) CreateUser(_ context.Context, arg database.CreateUserParams) (database.User, error) {
	for _, u := range m.users {
		if u.Email == arg.Email {
			return database.User{}, &pgconn.PgError{Code: "23505", Message: "duplicate key value violates unique constraint"}
		}
	}
	u := database.User{
		ID:             uuid.New(),
		Email:          arg.Email,
		HashedPassword: arg.HashedPassword,
		FullName:       arg.FullName,
		Phone:          arg.Phone,
		Role:           arg.Role,
		IsActive:       true,
	}
	m.users[u.ID] = u
	return u, nil
}

func (m *mockStaffStore) DeactivateUser(_ context.Context, id uuid.UUID) (uuid.UUID, error) {
	u, ok := m.users[id]
	if !ok || !u.IsActive {
		return uuid.Nil, pgx.ErrNoRows
	}
	u.IsActive = false
	m.users[id] = u
	return id, nil
}

func setupStaffRouter(store *mockStaffStore) *chi.Mux {
	h := handler.NewStaffHandler(store)
	r := chi.NewRouter()
	r.Use(middleware.Authenticate(testJWTSecret))
	r.With(middleware.RequireRole("admin")).Route("/staff", h.RegisterRoutes)
	return r
}

// --- List ---

func TestStaffList_ExcludesCustomers(t *testing.T) {
	store := newMockStaffStore()
	store.add("admin@jemini.test", "admin")
	store.add("chef@jemini.test", "chef")
	store.add("ada@example.com", "customer")
	router := setupStaffRouter(store)

	rr := doAuthRequest(t, router, "GET", "/staff", nil, adminClaims)
	if rr.Code != http.StatusOK {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusOK)
	}
	if got := decodeList(t, rr); len(got) != 2 {
		t.Errorf("staff: got %d, want 2", len(got))
	}

	rr = doAuthRequest(t, router, "GET", "/staff?role=chef", nil, adminClaims)
	got := decodeList(t, rr)
	if len(got) != 1 || got[0]["role"] != "chef" {
		t.Errorf("chefs: got %v", got)
	}

	rr = doAuthRequest(t, router, "GET", "/staff?role=customer", nil, adminClaims)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("customer role: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}

func TestStaffRoutes_AdminOnly(t *testing.T) {
	router := setupStaffRouter(newMockStaffStore())
	if rr := doAuthRequest(t, router, "GET", "/staff", nil, chefClaims); rr.Code != http.StatusForbidden {
		t.Errorf("chef: got %d, want %d", rr.Code, http.StatusForbidden)
	}
}

// --- Create ---

func TestStaffCreate_Chef(t *testing.T) {
	store := newMockStaffStore()
	rr := doAuthRequest(t, setupStaffRouter(store), "POST", "/staff", map[string]string{
		"email":     "Tunde@Jemini.test",
		"password":  "kitchen-2025",
		"full_name": " Tunde Bello ",
		"phone":     "+234 802 000 0000",
		"role":      "chef",
	}, adminClaims)

	if rr.Code != http.StatusCreated {
		t.Fatalf("status: got %d, want %d; body: %s", rr.Code, http.StatusCreated, rr.Body.String())
	}
	resp := decodeResponse(t, rr)
	if resp["email"] != "tunde@jemini.test" || resp["full_name"] != "Tunde Bello" || resp["role"] != "chef" {
		t.Errorf("got %v", resp)
	}
	if _, ok := resp["hashed_password"]; ok {
		t.Error("response must not include hashed_password")
	}

	created := store.users[uuid.MustParse(resp["id"].(string))]
	if err := bcrypt.CompareHashAndPassword([]byte(created.HashedPassword), []byte("kitchen-2025")); err != nil {
		t.Errorf("password not hashed with bcrypt: %v", err)
	}
}

func TestStaffCreate_Validation(t *testing.T) {
	base := func() map[string]string {
		return map[string]string{"email": "x@jemini.test", "password": "longenough", "full_name": "X", "role": "chef"}
	}
	tests := []struct {
		name   string
		mutate func(m map[string]string)
	}{
		{"missing email", func(m map[string]string) { delete(m, "email") }},
		{"bad email", func(m map[string]string) { m["email"] = "nope" }},
		{"customer role", func(m map[string]string) { m["role"] = "customer" }},
		{"system role", func(m map[string]string) { m["role"] = "system" }},
		{"short password", func(m map[string]string) { m["password"] = "short" }},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			body := base()
			tt.mutate(body)
			rr := doAuthRequest(t, setupStaffRouter(newMockStaffStore()), "POST", "/staff", body, adminClaims)
			if rr.Code != http.StatusBadRequest {
				t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
			}
		})
	}
}

func TestStaffCreate_DuplicateEmail(t *testing.T) {
	store := newMockStaffStore()
	store.add("chef@jemini.test", "chef")
	rr := doAuthRequest(t, setupStaffRouter(store), "POST", "/staff", map[string]string{
		"email": "chef@jemini.test", "password": "longenough", "full_name": "Chef", "role": "chef",
	}, adminClaims)
	if rr.Code != http.StatusConflict {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusConflict)
	}
}

// --- Delete ---

func TestStaffDelete(t *testing.T) {
	store := newMockStaffStore()
	chef := store.add("chef@jemini.test", "chef")
	router := setupStaffRouter(store)

	rr := doAuthRequest(t, router, "DELETE", "/staff/"+chef.ID.String(), nil, adminClaims)
	if rr.Code != http.StatusNoContent {
		t.Fatalf("status: got %d, want %d", rr.Code, http.StatusNoContent)
	}
	if store.users[chef.ID].IsActive {
		t.Error("chef should be deactivated")
	}

	rr = doAuthRequest(t, router, "DELETE", "/staff/"+chef.ID.String(), nil, adminClaims)
	if rr.Code != http.StatusNotFound {
		t.Errorf("second delete: got %d, want %d", rr.Code, http.StatusNotFound)
	}
}

func TestStaffDelete_Self(t *testing.T) {
	rr := doAuthRequest(t, setupStaffRouter(newMockStaffStore()), "DELETE", "/staff/"+adminClaims.UserID.String(), nil, adminClaims)
	if rr.Code != http.StatusBadRequest {
		t.Errorf("status: got %d, want %d", rr.Code, http.StatusBadRequest)
	}
}
