package main

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"campusmarket-be/internal/assignment"
	"campusmarket-be/internal/cart"
	"campusmarket-be/internal/checkout"
	"campusmarket-be/internal/config"
	"campusmarket-be/internal/db"
	"campusmarket-be/internal/delivery"
	"campusmarket-be/internal/inventory"
	"campusmarket-be/internal/jobs"
	"campusmarket-be/internal/logger"
	"campusmarket-be/internal/middleware"
	"campusmarket-be/internal/notification"
	"campusmarket-be/internal/order"
	"campusmarket-be/internal/payment"
	"campusmarket-be/internal/payment/webhook"
	"campusmarket-be/internal/product"
	"campusmarket-be/internal/transport"
	"campusmarket-be/internal/user"

	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

const shutdownTimeout = 15 * time.Second

var (
	initDBFunc      = db.NewDatabase
	startServerFunc = func(srv *http.Server) error { return srv.ListenAndServe() }
)

func main() {
	if err := run(); err != nil {
		logger.L().Fatal("server exited", zap.Error(err))
	}
}

func run() error {
	cfg := config.LoadConfig()
	logger.Init(logger.Options{Env: cfg.AppEnv, Level: cfg.LogLevel})
	defer logger.Sync()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	conn, err := initDBFunc(cfg)
	if err != nil {
		return err
	}
	defer conn.Close()

	rdb := redis.NewClient(&redis.Options{Addr: cfg.RedisAddr})
	defer rdb.Close()

	// Notifications
	bgCtx, cancelBg := context.WithCancel(context.Background())
	defer cancelBg()

	var notifier notification.Dispatcher = notification.NopDispatcher{}
	var kafka *notification.KafkaDispatcher
	var jm *jobs.JobManager
	if len(cfg.KafkaBrokers) > 0 {
		kafka = notification.NewKafkaDispatcher(cfg.KafkaBrokers, cfg.KafkaNotificationTopic)
		kafka.Start(bgCtx)
		notifier = kafka

		jm = jobs.NewJobManager(kafka, cfg.NotifyRetrySpec)
		if err := jm.StartAll(); err != nil {
			return err
		}
	} else {
		logger.L().Warn("KAFKA_BROKERS not set, notifications are dropped")
	}

	limiter := middleware.NewRateLimiter(cfg.InternalServiceKey)
	go limiter.Cleanup(bgCtx)

	srv := &http.Server{
		Addr:              ":" + cfg.AppPort,
		Handler:           newServer(cfg, conn, rdb, notifier, limiter),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errCh := make(chan error, 1)
	go func() {
		logger.L().Info("🚀 HTTP server running", zap.String("addr", srv.Addr))
		errCh <- startServerFunc(srv)
	}()

	select {
	case err := <-errCh:
		if err != nil && !errors.Is(err, http.ErrServerClosed) {
			return fmt.Errorf("http server: %w", err)
		}
	case <-ctx.Done():
		logger.L().Info("shutdown signal received")
	}

	// 1️⃣ Stop accepting requests and drain in-flight ones
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		logger.L().Error("graceful shutdown failed", zap.Error(err))
	}

	// 2️⃣ Stop jobs, then flush the notification queue
	if jm != nil {
		jm.StopAll()
	}
	cancelBg()
	if kafka != nil {
		kafka.WaitClosed()
	}

	logger.L().Info("server stopped")
	return nil
}

// newServer wires repositories, engines and services into the HTTP router.
func newServer(cfg *config.Config, conn *sql.DB, rdb *redis.Client, notifier notification.Dispatcher, limiter *middleware.RateLimiter) http.Handler {
	productRepo := product.NewRepository(conn)
	deliveryRepo := delivery.NewRepository(conn)
	cartRepo := cart.NewRepository(conn)
	userRepo := user.NewRepository(conn)
	orderRepo := order.NewRepository()

	orderEngine := order.NewEngine(order.Deps{
		DB:         conn,
		Orders:     orderRepo,
		Products:   productRepo,
		Ledger:     inventory.NewLedger(),
		Deliveries: deliveryRepo,
		Carts:      cartRepo,
		Notifier:   notifier,
	})

	assignmentEngine := assignment.NewEngine(assignment.Deps{
		DB:         conn,
		Deliveries: deliveryRepo,
		Orders:     orderRepo,
		Products:   productRepo,
		Users:      userRepo,
		Notifier:   notifier,
	})

	cartSvc := cart.NewService(cartRepo, productRepo)
	checkoutSvc := checkout.NewService(conn, orderEngine, cartRepo, notifier)

	var dedup payment.Deduper = payment.NopDeduper{}
	if rdb != nil {
		dedup = payment.NewRedisDeduper(rdb)
	}
	paymentSvc := payment.NewService(payment.NewRepository(conn), dedup, orderEngine)

	h := transport.NewHandler(cartSvc, checkoutSvc, orderEngine, assignmentEngine)

	return transport.NewRouter(transport.RouterConfig{
		JWTSecret:      cfg.JWTSecret,
		RequestTimeout: cfg.RequestTimeout,
		Limiter:        limiter,
	}, h, webhook.NewWebhookHandler(paymentSvc, cfg.PaymentCallbackToken))
}
