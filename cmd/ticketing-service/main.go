package main

import (
	"context"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-redis/redis/v8"
	"github.com/joho/godotenv"

	"ticketing/internal/api"
	"ticketing/internal/checkin"
	checkindb "ticketing/internal/checkin/db"
	"ticketing/internal/config"
	"ticketing/internal/database"
	"ticketing/internal/database/migrations"
	"ticketing/internal/events"
	eventsdb "ticketing/internal/events/db"
	"ticketing/internal/issuance"
	issuancedb "ticketing/internal/issuance/db"
	"ticketing/internal/kafka"
	"ticketing/internal/logger"
	"ticketing/internal/monitoring"
	"ticketing/internal/notifications"
	notificationsdb "ticketing/internal/notifications/db"
	"ticketing/internal/payments"
	paymentsdb "ticketing/internal/payments/db"
	"ticketing/internal/pricing"
	"ticketing/internal/promo"
	"ticketing/internal/qr"
	redislock "ticketing/internal/redis"
)

func main() {
	_ = godotenv.Load()

	cfg := config.Load()
	log := logger.NewLogger()
	defer log.Close()

	bunDB, err := database.Connect(cfg.Database, log)
	if err != nil {
		log.Fatal("DATABASE", "connection failed: "+err.Error())
	}
	defer bunDB.Close()

	runner := migrations.NewRunner(bunDB, migrations.DefaultOptions(), log)
	if err := runner.Up(); err != nil {
		log.Fatal("DATABASE", "migrations failed: "+err.Error())
	}
	defer runner.Close()

	redisClient := redis.NewClient(&redis.Options{Addr: cfg.Redis.Addr})
	defer redisClient.Close()
	if err := redisClient.Ping(context.Background()).Err(); err != nil {
		log.Warn("REDIS", "unavailable, scan locking disabled: "+err.Error())
	}

	var producer *kafka.Producer
	if cfg.Kafka.Enabled {
		if err := kafka.EnsureTopicsExist(cfg.Kafka.Brokers, []string{cfg.Kafka.NotificationsTopic}, log); err != nil {
			log.Warn("KAFKA", "topic setup failed: "+err.Error())
		}
		producer = kafka.NewProducer(cfg.Kafka.Brokers, cfg.Kafka.NotificationsTopic)
		defer producer.Close()
		log.LogKafka("CONNECT", cfg.Kafka.NotificationsTopic, "producer ready")
	}

	var publisher notifications.Publisher
	if producer != nil {
		publisher = producer
	}
	notifier := notifications.NewService(notificationsdb.New(bunDB), publisher, log)

	issuanceStore := issuancedb.New(bunDB)
	qrGenerator := qr.NewGenerator(cfg.QR.Secret)
	issuanceSvc := issuance.NewService(issuanceStore, pricing.NewEngine(), qrGenerator, notifier, log)

	scanLock := redislock.NewScanLock(redisClient, cfg.Redis.ScanLockTTL, log)
	checkinSvc := checkin.NewService(checkindb.New(bunDB), scanLock, log)

	paymentSvc := payments.NewService(paymentsdb.New(bunDB), notifier, log)
	eventSvc := events.NewService(eventsdb.New(bunDB), log)

	// Nightly sweep against promo counter drift.
	reconciler := promo.NewReconciler(issuanceStore, log)
	go func() {
		_ = reconciler.Run(context.Background())
		ticker := time.NewTicker(24 * time.Hour)
		defer ticker.Stop()
		for range ticker.C {
			_ = reconciler.Run(context.Background())
		}
	}()

	handler := api.NewHandler(issuanceSvc, checkinSvc, paymentSvc, eventSvc, issuanceStore, qrGenerator, log)
	handler.Notify = notifier

	r := chi.NewRouter()
	r.Mount("/api/v1", handler.Routes())
	r.Handle("/metrics", monitoring.Handler())
	r.Get("/health", func(w http.ResponseWriter, _ *http.Request) {
		w.WriteHeader(http.StatusOK)
		w.Write([]byte("ok"))
	})

	server := &http.Server{
		Addr:         cfg.Server.Port,
		Handler:      r,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
		IdleTimeout:  cfg.Server.IdleTimeout,
	}

	go func() {
		log.Info("SERVER", "ticketing service on "+cfg.Server.Port)
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Fatal("SERVER", "http error: "+err.Error())
		}
	}()

	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	<-stop

	ctxShutdown, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_ = server.Shutdown(ctxShutdown)
	log.Info("SERVER", "shutdown complete")
}
