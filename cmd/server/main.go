package main

import (
	"context"
	"log"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/jemini-foods/api/internal/config"
	"github.com/jemini-foods/api/internal/database"
	"github.com/jemini-foods/api/internal/feed"
	"github.com/jemini-foods/api/internal/handler"
	"github.com/jemini-foods/api/internal/inflight"
	"github.com/jemini-foods/api/internal/notify"
	"github.com/jemini-foods/api/internal/redisx"
	"github.com/jemini-foods/api/internal/router"
	"github.com/jemini-foods/api/internal/service"
	"github.com/jemini-foods/api/internal/ws"
	"github.com/joho/godotenv"
)

// inflightSlack keeps a Redis hold alive slightly past the mutation deadline.
const inflightSlack = 5 * time.Second

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		log.Fatalf("config: %v", err)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// DB
	pool, err := database.Connect(ctx, cfg.DatabaseURL)
	if err != nil {
		log.Fatalf("db connect: %v", err)
	}
	defer pool.Close()
	queries := database.New(pool)

	// Redis (optional): shared in-flight guard and status cache
	var (
		guard       inflight.Guard = inflight.NewLocal()
		statusCache service.StatusCache
		statusRead  handler.StatusReader
	)
	if cfg.RedisAddr != "" {
		rdb := redisx.New(cfg.RedisAddr)
		defer rdb.Close()
		guard = inflight.NewRedis(rdb, cfg.MutationTimeout+inflightSlack)
		c := redisx.NewStatusCache(rdb)
		statusCache, statusRead = c, c
		log.Printf("Redis enabled at %s", cfg.RedisAddr)
	}

	// Notification sinks
	whatsapp := notify.WhatsApp{
		OrderTemplate:       cfg.WhatsAppOrderTemplate,
		ReservationTemplate: cfg.WhatsAppReservationTemplate,
	}
	sinks := notify.Fanout{notify.NewInApp(queries, whatsapp)}

	if cfg.AMQPURL != "" {
		mq, err := notify.DialAMQP(cfg.AMQPURL)
		if err != nil {
			log.Printf("WARN: amqp disabled: %v", err)
		} else {
			defer mq.Close()
			sinks = append(sinks, mq)
		}
	}

	var prod *notify.Producer
	if len(cfg.KafkaBrokers) > 0 {
		prod = notify.NewProducer(cfg.KafkaBrokers, notify.TopicStatusChanged, 1024)
		prod.Start()
		sinks = append(sinks, notify.NewKafka(prod, cfg.ServiceName))
	}

	notifier := notify.NewAsync(sinks, 256, 5*time.Second)
	notifier.Start()

	// Live feed
	hub := ws.NewHub()
	publisher := feed.NewPublisher(feed.NewBuilder(queries), hub, cfg.MutationTimeout)

	// Services
	newOrderStore := func(db database.DBTX) service.OrderStore {
		return database.New(db)
	}
	orderService := service.NewOrderService(pool, newOrderStore, publisher)
	reservationService := service.NewReservationService(queries, publisher)
	statusService := service.NewStatusService(queries, guard, notifier, publisher, statusCache, cfg.MutationTimeout)

	r := router.New(cfg, queries, hub, router.Services{
		Orders:       orderService,
		Reservations: reservationService,
		Status:       statusService,
		Feed:         publisher,
		Cache:        statusRead,
		WhatsApp:     whatsapp,
	})

	// HTTP server
	srv := &http.Server{Addr: ":" + cfg.Port, Handler: r}

	// graceful shutdown
	go func() {
		log.Printf("Starting server on :%s", cfg.Port)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatalf("listen: %v", err)
		}
	}()

	sig := make(chan os.Signal, 1)
	signal.Notify(sig, syscall.SIGINT, syscall.SIGTERM)
	<-sig
	log.Println("shutting down...")

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer shutdownCancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Printf("ERROR: http shutdown: %v", err)
	}
	notifier.Close() // drain pending notifications before closing sinks
	if prod != nil {
		prod.Close()
	}
}
