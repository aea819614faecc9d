package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	webAdapter "cafe-ledger/internal/adapters/web"
	"cafe-ledger/internal/config"
	"cafe-ledger/internal/core"
	"cafe-ledger/internal/db"
	"cafe-ledger/internal/logger"

	"github.com/joho/godotenv"
	_ "github.com/lib/pq"
	"github.com/pressly/goose/v3"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

func runMigrations(dsn string) error {
	sqlDB, err := goose.OpenDBWithDriver("postgres", dsn)
	if err != nil {
		return err
	}
	defer func() { _ = sqlDB.Close() }()
	return goose.Up(sqlDB, "migrations")
}

func main() {
	_ = godotenv.Load()

	cfg, err := config.Load(os.Getenv("CONFIG_FILE"))
	if err != nil {
		panic(err)
	}

	log := logger.New(cfg.App.Env)

	if err := runMigrations(cfg.Postgres.DSN); err != nil {
		log.Error("migrations failed", "err", err)
		os.Exit(1)
	}
	log.Info("migrations applied")

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	pool, err := db.NewPool(ctx, cfg.Postgres.DSN)
	if err != nil {
		log.Error("db connect failed", "err", err)
		os.Exit(1)
	}
	defer pool.Close()
	log.Info("db connected")

	stockService := core.NewStockService(pool)
	settingsService := core.NewSettingsService(pool)
	catalogService := core.NewCatalogService(pool)
	recipeService := core.NewRecipeService(pool)
	salesService := core.NewSalesService(pool, stockService, settingsService)
	orderService := core.NewOrderService(pool)
	receivableService := core.NewReceivableService(pool, settingsService)
	expenseService := core.NewExpenseService(pool)
	reportingService := core.NewReportingService(pool)

	handler := webAdapter.NewHandler(webAdapter.Services{
		Catalog:     catalogService,
		Recipes:     recipeService,
		Stock:       stockService,
		Sales:       salesService,
		Orders:      orderService,
		Receivables: receivableService,
		Expenses:    expenseService,
		Settings:    settingsService,
		Reporting:   reportingService,
	}, cfg.Server.AllowedOrigins)

	mux := http.NewServeMux()
	mux.Handle("/", handler)
	if cfg.Metrics.Enabled {
		mux.Handle("/metrics", promhttp.Handler())
	}

	srv := &http.Server{
		Addr:              cfg.Server.Addr,
		Handler:           mux,
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		log.Info("server starting", "addr", cfg.Server.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			log.Error("http server error", "err", err)
			stop()
		}
	}()

	<-ctx.Done()
	shutdownCtx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("shutdown error", "err", err)
	}
	log.Info("graceful shutdown complete")
}
