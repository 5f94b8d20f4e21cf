package router

import (
	"log"
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"
	"github.com/jemini-foods/api/internal/config"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/enum"
	"github.com/jemini-foods/api/internal/handler"
	mw "github.com/jemini-foods/api/internal/middleware"
	"github.com/jemini-foods/api/internal/notify"
	"github.com/jemini-foods/api/internal/ws"
)

// Services bundles the collaborators built in main. Cache may be nil.
type Services struct {
	Orders       handler.OrderServicer
	Reservations handler.ReservationServicer
	Status       StatusGateway
	Feed         handler.FeedSubscriber
	Cache        handler.StatusReader
	WhatsApp     notify.WhatsApp
}

// StatusGateway is satisfied by *service.StatusService.
type StatusGateway interface {
	handler.OrderStatusServicer
	handler.ReservationStatusServicer
}

// New creates a Chi router with all application routes wired up.
// Applies authentication and role-based middleware as needed.
func New(cfg *config.Config, queries *database.Queries, hub *ws.Hub, svc Services) chi.Router {
	r := chi.NewRouter()

	// Standard middleware
	r.Use(middleware.RequestID)
	r.Use(middleware.Logger)
	r.Use(middleware.Recoverer)

	r.Use(cors.Handler(cors.Options{
		AllowedOrigins:   cfg.AllowedOrigins,
		AllowedMethods:   []string{"GET", "POST", "PUT", "PATCH", "DELETE", "OPTIONS"},
		AllowedHeaders:   []string{"Accept", "Authorization", "Content-Type"},
		ExposedHeaders:   []string{"Link"},
		AllowCredentials: true,
		MaxAge:           300, // 5 minutes
	}))

	// Public routes
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json")
		w.Write([]byte(`{"status":"ok","version":"1.0.0"}`))
	})

	authHandler := handler.NewAuthHandler(queries, cfg.JWTSecret)
	authHandler.RegisterRoutes(r)

	menuHandler := handler.NewMenuHandler(queries)
	r.Route("/menu", func(r chi.Router) {
		menuHandler.RegisterRoutes(r)
		r.Group(func(r chi.Router) {
			r.Use(mw.Authenticate(cfg.JWTSecret))
			r.Use(mw.RequireRole(enum.RoleAdmin))
			menuHandler.RegisterAdminRoutes(r)
		})
	})

	// Protected routes (require authentication)
	r.Group(func(r chi.Router) {
		r.Use(mw.Authenticate(cfg.JWTSecret))

		orderHandler := handler.NewOrderHandler(svc.Orders, svc.Status, queries, svc.Cache, svc.WhatsApp)
		r.Route("/orders", orderHandler.RegisterRoutes)

		reservationHandler := handler.NewReservationHandler(svc.Reservations, svc.Status, queries, svc.WhatsApp)
		r.Route("/reservations", reservationHandler.RegisterRoutes)

		tableHandler := handler.NewTableHandler(queries)
		r.Route("/tables", tableHandler.RegisterRoutes)

		notificationHandler := handler.NewNotificationHandler(queries)
		r.Route("/notifications", notificationHandler.RegisterRoutes)

		// Admin-only routes
		r.Group(func(r chi.Router) {
			r.Use(mw.RequireRole(enum.RoleAdmin))
			staffHandler := handler.NewStaffHandler(queries)
			r.Route("/staff", staffHandler.RegisterRoutes)
		})

		// Live status feed; Authenticate accepts ?token= on upgrade requests
		feedHandler := handler.NewFeedHandler(hub, svc.Feed)
		feedHandler.RegisterRoutes(r)
	})

	log.Println("Router initialized with all handlers")
	return r
}
