package main

import (
	"context"
	"database/sql"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/aurapay/aurapay/internal/config"
	"github.com/aurapay/aurapay/internal/domain"
	"github.com/aurapay/aurapay/internal/engine"
	"github.com/aurapay/aurapay/internal/fee"
	"github.com/aurapay/aurapay/internal/gateway"
	"github.com/aurapay/aurapay/internal/handler"
	"github.com/aurapay/aurapay/internal/logging"
	"github.com/aurapay/aurapay/internal/middleware"
	"github.com/aurapay/aurapay/internal/repository"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		slog.Error("failed to load config", "error", err)
		os.Exit(1)
	}

	logging.Init("aurapay-api", cfg.LogLevel, cfg.AppEnv)

	db, err := connectDB(cfg)
	if err != nil {
		slog.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	accounts := repository.NewAccountRepository(db)
	ledger := repository.NewLedgerRepository(db)
	orders := repository.NewOrderRepository(db)
	withdrawals := repository.NewWithdrawalRepository(db)

	fees, err := fee.NewPolicy(cfg.FeeMode, cfg.FeePercent)
	if err != nil {
		slog.Error("invalid fee policy", "error", err)
		os.Exit(1)
	}

	gw := gateway.NewClient(
		cfg.GatewayBaseURL,
		cfg.GatewayClientID,
		cfg.GatewayClientSecret,
		time.Duration(cfg.GatewayTimeoutS)*time.Second,
	)

	eng := engine.New(accounts, ledger, orders, withdrawals, gw, fees, db, cfg)

	workerCtx, stopWorkers := context.WithCancel(context.Background())
	defer stopWorkers()

	payouts := engine.NewPayoutWorker(
		withdrawals, gw, slog.Default(),
		domain.Currency(cfg.Currency),
		time.Duration(cfg.PayoutIntervalS)*time.Second,
	)
	go payouts.Start(workerCtx)

	sweeper := engine.NewOrderSweeper(
		orders, slog.Default(),
		time.Duration(cfg.OrderTTLMin)*time.Minute,
		time.Duration(cfg.SweepIntervalS)*time.Second,
	)
	go sweeper.Start(workerCtx)

	orderHandler := handler.NewOrderHandler(eng)
	withdrawalHandler := handler.NewWithdrawalHandler(eng)
	accountHandler := handler.NewAccountHandler(eng)
	healthHandler := handler.NewHealthHandler(db)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /health", healthHandler.Liveness)
	mux.HandleFunc("GET /health/ready", healthHandler.Readiness)

	authed := middleware.Auth(cfg.JWTSecret)
	mux.Handle("POST /api/v1/orders", authed(http.HandlerFunc(orderHandler.Create)))
	mux.Handle("POST /api/v1/orders/{id}/capture", authed(http.HandlerFunc(orderHandler.Capture)))
	mux.Handle("POST /api/v1/withdrawals", authed(http.HandlerFunc(withdrawalHandler.Create)))
	mux.Handle("GET /api/v1/account", authed(http.HandlerFunc(accountHandler.Get)))
	mux.Handle("GET /api/v1/account/history", authed(http.HandlerFunc(accountHandler.History)))

	root := middleware.Tracing(middleware.Logging(middleware.Recovery(mux)))

	addr := fmt.Sprintf(":%d", cfg.Port)
	srv := &http.Server{
		Addr:              addr,
		Handler:           root,
		ReadTimeout:       15 * time.Second,
		WriteTimeout:      15 * time.Second,
		IdleTimeout:       60 * time.Second,
		ReadHeaderTimeout: 5 * time.Second,
	}

	go func() {
		slog.Info("server started", "addr", addr)
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			slog.Error("server error", "error", err)
			os.Exit(1)
		}
	}()

	quit := make(chan os.Signal, 1)
	signal.Notify(quit, syscall.SIGINT, syscall.SIGTERM)
	<-quit

	slog.Info("shutting down server")
	stopWorkers()

	ctx, cancel := context.WithTimeout(context.Background(), 30*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		slog.Error("server forced to shutdown", "error", err)
		os.Exit(1)
	}
	slog.Info("server stopped")
}

func connectDB(cfg *config.Config) (*sql.DB, error) {
	pool := repository.PoolConfig{
		MaxOpenConns:     cfg.DBMaxOpenConns,
		MaxIdleConns:     cfg.DBMaxIdleConns,
		ConnMaxLifetimeS: cfg.DBConnMaxLifetimeS,
		ConnMaxIdleTimeS: cfg.DBConnMaxIdleTimeS,
	}

	var err error
	for i := range 30 {
		var db *sql.DB
		db, err = repository.NewPostgresDB(context.Background(), cfg.DatabaseURL, pool)
		if err == nil {
			return db, nil
		}
		slog.Info("waiting for database", "attempt", i+1)
		time.Sleep(time.Second)
	}

	return nil, fmt.Errorf("connectDB: gave up after 30 attempts: %w", err)
}
