//go:build integration

package handler_test

import (
	"bytes"
	"context"
	"database/sql"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	"github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	"github.com/google/uuid"
	"github.com/gorilla/websocket"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/jemini-foods/api/internal/config"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/feed"
	"github.com/jemini-foods/api/internal/inflight"
	"github.com/jemini-foods/api/internal/notify"
	"github.com/jemini-foods/api/internal/router"
	"github.com/jemini-foods/api/internal/service"
	"github.com/jemini-foods/api/internal/ws"
	_ "github.com/lib/pq"
	"github.com/testcontainers/testcontainers-go"
	tcpostgres "github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
	"golang.org/x/crypto/bcrypt"
)

// TestIntegrationFlow exercises order and reservation lifecycles against a
// real PostgreSQL database with every handler wired through the router.
func TestIntegrationFlow(t *testing.T) {
	ctx := context.Background()

	connStr, cleanup := setupPostgresContainer(t, ctx)
	defer cleanup()

	runMigrations(t, connStr)

	pool, err := pgxpool.New(ctx, connStr)
	if err != nil {
		t.Fatalf("create pool: %v", err)
	}
	defer pool.Close()

	// Initialize dependencies the way cmd/server does, without Redis or brokers.
	cfg := &config.Config{
		Port:            "8081",
		DatabaseURL:     connStr,
		JWTSecret:       "integration-test-secret",
		MutationTimeout: 5 * time.Second,
		AllowedOrigins:  []string{"*"},
	}
	queries := database.New(pool)
	hub := ws.NewHub()
	publisher := feed.NewPublisher(feed.NewBuilder(queries), hub, cfg.MutationTimeout)
	whatsapp := notify.WhatsApp{}
	newOrderStore := func(db database.DBTX) service.OrderStore { return database.New(db) }

	r := router.New(cfg, queries, hub, router.Services{
		Orders:       service.NewOrderService(pool, newOrderStore, publisher),
		Reservations: service.NewReservationService(queries, publisher),
		Status: service.NewStatusService(queries, inflight.NewLocal(),
			notify.NewInApp(queries, whatsapp), publisher, nil, cfg.MutationTimeout),
		Feed:     publisher,
		WhatsApp: whatsapp,
	})

	server := httptest.NewServer(r)
	defer server.Close()

	tomorrow := time.Now().AddDate(0, 0, 1).Format("2006-01-02")

	// --- 1. Bootstrap admin (manual DB insert) and log in ---
	createAdminUser(t, ctx, pool)
	adminToken := login(t, server, "admin@test.com", "password123")

	// --- 2. Admin creates a chef, a menu item and a table ---
	chef := httpPostJSON(t, server, "/staff", map[string]interface{}{
		"email": "chef@test.com", "password": "password123", "full_name": "Chef Tunde", "role": "chef",
	}, adminToken)
	chefID := chef["id"].(string)
	chefToken := login(t, server, "chef@test.com", "password123")

	menuItem := httpPostJSON(t, server, "/menu", map[string]interface{}{
		"name": "Jollof Rice", "price": "12.50", "category": "mains",
	}, adminToken)
	menuItemID := menuItem["id"].(string)

	table := httpPostJSON(t, server, "/tables", map[string]interface{}{
		"label": "B2", "capacity": 6, "table_type": "booth",
	}, adminToken)
	tableID := table["id"].(string)

	// --- 3. Customer registers and opens the live feed ---
	reg := httpPostJSON(t, server, "/auth/register", map[string]interface{}{
		"email": "ada@example.com", "password": "password123", "full_name": "Ada Obi", "phone": "+234 801 555 0101",
	}, "")
	customerToken := reg["access_token"].(string)

	conn := dialIntegrationFeed(t, server, "kind=orders", customerToken)
	defer conn.Close()
	if snap := readFeedSnapshot(t, conn); len(snap.Items) != 0 {
		t.Fatalf("initial snapshot: got %d items, want 0", len(snap.Items))
	}

	// --- 4. Customer places a pre-order ---
	order := httpPostJSON(t, server, "/orders", map[string]interface{}{
		"customer_name":  "Ada Obi",
		"customer_phone": "+234 801 555 0101",
		"pickup_date":    tomorrow,
		"pickup_time":    "12:30",
		"items":          []map[string]interface{}{{"menu_item_id": menuItemID, "quantity": 2}},
	}, customerToken)
	orderID := order["id"].(string)
	if order["total"] != "25.00" || order["status"] != "booked" {
		t.Fatalf("order: got total=%v status=%v, want 25.00 booked", order["total"], order["status"])
	}

	snap := readFeedSnapshot(t, conn)
	if len(snap.Items) != 1 || snap.Items[0].Status != "booked" {
		t.Fatalf("feed after create: got %+v", snap.Items)
	}

	// --- 5. Admin assigns the chef, chef cooks ---
	httpPostJSON(t, server, "/orders/"+orderID+"/assign", map[string]interface{}{"chef_id": chefID}, adminToken)
	if snap := readFeedSnapshot(t, conn); snap.Items[0].Status != "taken" {
		t.Fatalf("feed after assign: got %s, want taken", snap.Items[0].Status)
	}

	assigned := httpGetList(t, server, "/orders/assigned", chefToken, "orders")
	if len(assigned) != 1 {
		t.Fatalf("assigned orders: got %d, want 1", len(assigned))
	}

	for _, next := range []string{"making", "ready"} {
		res := httpDoJSON(t, server, "PATCH", "/orders/"+orderID+"/status", map[string]interface{}{"status": next}, chefToken, http.StatusOK)
		if res["previous_status"] == next {
			t.Errorf("%s: previous_status unchanged", next)
		}
		if snap := readFeedSnapshot(t, conn); snap.Items[0].Status != next {
			t.Fatalf("feed after %s: got %s", next, snap.Items[0].Status)
		}
	}

	// Backward moves are rejected and leave the order untouched.
	httpDoJSON(t, server, "PATCH", "/orders/"+orderID+"/status", map[string]interface{}{"status": "taken"}, chefToken, http.StatusConflict)
	// Customers cannot change status.
	httpDoJSON(t, server, "PATCH", "/orders/"+orderID+"/status", map[string]interface{}{"status": "completed"}, customerToken, http.StatusForbidden)

	st := httpGetJSON(t, server, "/orders/"+orderID+"/status", customerToken)
	if st["status"] != "ready" {
		t.Fatalf("status read: got %v, want ready", st["status"])
	}

	// --- 6. Customer sees in-app notifications with WhatsApp links ---
	notes := httpGetJSON(t, server, "/notifications", customerToken)
	if unread := notes["unread"].(float64); unread < 3 {
		t.Errorf("unread notifications: got %v, want at least 3", unread)
	}
	link := httpGetJSON(t, server, "/orders/"+orderID+"/whatsapp-link", adminToken)
	if l, _ := link["link"].(string); !strings.HasPrefix(l, "https://wa.me/2348015550101?text=") {
		t.Errorf("whatsapp link: got %v", link["link"])
	}

	// --- 7. Reservation confirmed with a table ---
	res := httpPostJSON(t, server, "/reservations", map[string]interface{}{
		"customer_name": "Ada Obi", "reservation_date": tomorrow, "reservation_time": "19:00", "party_size": 4,
	}, customerToken)
	reservationID := res["id"].(string)
	if res["status"] != "pending" {
		t.Fatalf("reservation status: got %v, want pending", res["status"])
	}

	available := httpGetList(t, server, "/tables/available?date="+tomorrow+"&time=19:00&party_size=4", customerToken, "")
	if len(available) != 1 {
		t.Fatalf("available tables before confirm: got %d, want 1", len(available))
	}

	confirmed := httpDoJSON(t, server, "PATCH", "/reservations/"+reservationID+"/status",
		map[string]interface{}{"status": "confirmed", "table_id": tableID}, adminToken, http.StatusOK)
	if confirmed["previous_status"] != "pending" {
		t.Errorf("previous_status: got %v", confirmed["previous_status"])
	}

	available = httpGetList(t, server, "/tables/available?date="+tomorrow+"&time=19:00&party_size=4", customerToken, "")
	if len(available) != 0 {
		t.Errorf("available tables after confirm: got %d, want 0", len(available))
	}

	// Chefs cannot manage reservations.
	httpDoJSON(t, server, "PATCH", "/reservations/"+reservationID+"/status",
		map[string]interface{}{"status": "completed"}, chefToken, http.StatusForbidden)

	t.Log("Integration flow completed successfully")
}

// --- Setup helpers ---

func setupPostgresContainer(t *testing.T, ctx context.Context) (string, func()) {
	t.Helper()

	pgContainer, err := tcpostgres.Run(ctx,
		"postgres:16-alpine",
		tcpostgres.WithDatabase("jemini_test"),
		tcpostgres.WithUsername("jemini"),
		tcpostgres.WithPassword("jemini"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(60*time.Second)),
	)
	if err != nil {
		t.Fatalf("start postgres container: %v", err)
	}

	connStr, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	if err != nil {
		t.Fatalf("get connection string: %v", err)
	}

	cleanup := func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("terminate container: %v", err)
		}
	}
	return connStr, cleanup
}

func runMigrations(t *testing.T, connStr string) {
	t.Helper()

	// Connect with stdlib for migrate
	db, err := sql.Open("postgres", connStr)
	if err != nil {
		t.Fatalf("open db for migrations: %v", err)
	}
	defer db.Close()

	driver, err := postgres.WithInstance(db, &postgres.Config{})
	if err != nil {
		t.Fatalf("create migrate driver: %v", err)
	}

	// Go test sets cwd to the package directory.
	m, err := migrate.NewWithDatabaseInstance("file://../../migrations", "postgres", driver)
	if err != nil {
		t.Fatalf("create migrate instance: %v", err)
	}
	if err := m.Up(); err != nil && err != migrate.ErrNoChange {
		t.Fatalf("run migrations: %v", err)
	}
}

func createAdminUser(t *testing.T, ctx context.Context, pool *pgxpool.Pool) uuid.UUID {
	t.Helper()
	hashed, err := bcrypt.GenerateFromPassword([]byte("password123"), bcrypt.DefaultCost)
	if err != nil {
		t.Fatalf("hash password: %v", err)
	}
	var id uuid.UUID
	err = pool.QueryRow(ctx, `
		INSERT INTO users (email, hashed_password, full_name, role)
		VALUES ($1, $2, $3, 'admin')
		RETURNING id`, "admin@test.com", string(hashed), "Admin").Scan(&id)
	if err != nil {
		t.Fatalf("insert admin: %v", err)
	}
	return id
}

func login(t *testing.T, server *httptest.Server, email, password string) string {
	t.Helper()
	resp := httpPostJSON(t, server, "/auth/login", map[string]interface{}{
		"email":    email,
		"password": password,
	}, "")
	token, ok := resp["access_token"].(string)
	if !ok || token == "" {
		t.Fatalf("login failed: no access_token in response: %+v", resp)
	}
	return token
}

func dialIntegrationFeed(t *testing.T, server *httptest.Server, query, token string) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(server.URL, "http") + "/ws/feed?" + query + "&token=" + token
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	if err != nil {
		t.Fatalf("dial feed: %v", err)
	}
	return conn
}

func readFeedSnapshot(t *testing.T, conn *websocket.Conn) feed.Snapshot {
	t.Helper()
	conn.SetReadDeadline(time.Now().Add(5 * time.Second))
	var snap feed.Snapshot
	if err := conn.ReadJSON(&snap); err != nil {
		t.Fatalf("read feed snapshot: %v", err)
	}
	return snap
}

// --- HTTP helpers ---

func httpPostJSON(t *testing.T, server *httptest.Server, path string, body map[string]interface{}, token string) map[string]interface{} {
	t.Helper()
	req := newJSONRequest(t, "POST", server.URL+path, body, token)
	return doExpect2xx(t, req)
}

func httpGetJSON(t *testing.T, server *httptest.Server, path string, token string) map[string]interface{} {
	t.Helper()
	req := newJSONRequest(t, "GET", server.URL+path, nil, token)
	return doExpect2xx(t, req)
}

// httpGetList reads a JSON array, either bare or under key.
func httpGetList(t *testing.T, server *httptest.Server, path, token, key string) []interface{} {
	t.Helper()
	req := newJSONRequest(t, "GET", server.URL+path, nil, token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET %s: status %d", path, resp.StatusCode)
	}
	if key == "" {
		var out []interface{}
		if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
			t.Fatalf("decode response: %v", err)
		}
		return out
	}
	var out map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&out); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	list, _ := out[key].([]interface{})
	return list
}

func httpDoJSON(t *testing.T, server *httptest.Server, method, path string, body map[string]interface{}, token string, want int) map[string]interface{} {
	t.Helper()
	req := newJSONRequest(t, method, server.URL+path, body, token)
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	var result map[string]interface{}
	json.NewDecoder(resp.Body).Decode(&result)
	if resp.StatusCode != want {
		t.Fatalf("%s %s: status %d, want %d, body: %v", method, path, resp.StatusCode, want, result)
	}
	return result
}

func newJSONRequest(t *testing.T, method, url string, body map[string]interface{}, token string) *http.Request {
	t.Helper()
	var reader *bytes.Reader
	if body != nil {
		b, err := json.Marshal(body)
		if err != nil {
			t.Fatalf("marshal body: %v", err)
		}
		reader = bytes.NewReader(b)
	} else {
		reader = bytes.NewReader(nil)
	}
	req, err := http.NewRequest(method, url, reader)
	if err != nil {
		t.Fatalf("create request: %v", err)
	}
	req.Header.Set("Content-Type", "application/json")
	if token != "" {
		req.Header.Set("Authorization", "Bearer "+token)
	}
	return req
}

func doExpect2xx(t *testing.T, req *http.Request) map[string]interface{} {
	t.Helper()
	resp, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatalf("do request: %v", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		var errResp map[string]interface{}
		json.NewDecoder(resp.Body).Decode(&errResp)
		t.Fatalf("%s %s: status %d, body: %v", req.Method, req.URL.Path, resp.StatusCode, errResp)
	}

	var result map[string]interface{}
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatalf("decode response: %v", err)
	}
	return result
}
