package main

import (
	"context"
	"net/http"
	"os"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"

	"github.com/keylinehq/keyline-backend/api/routes"
	"github.com/keylinehq/keyline-backend/internal/inventory"
	"github.com/keylinehq/keyline-backend/internal/orders"
	"github.com/keylinehq/keyline-backend/internal/products"
	"github.com/keylinehq/keyline-backend/pkg/config"
	"github.com/keylinehq/keyline-backend/pkg/db"
	"github.com/keylinehq/keyline-backend/pkg/logger"
	"github.com/keylinehq/keyline-backend/pkg/metrics"
	"github.com/keylinehq/keyline-backend/pkg/migrate"
	"github.com/keylinehq/keyline-backend/pkg/redis"
	"github.com/keylinehq/keyline-backend/pkg/storage"
	"github.com/keylinehq/keyline-backend/pkg/storage/r2"
)

type blobStore interface {
	storage.Store
	storage.URLSigner
	Ping(ctx context.Context) error
}

func main() {
	logg := logger.New(logger.Options{ServiceName: "api"})

	if err := godotenv.Load(); err != nil {
		logg.Warn(context.Background(), ".env file not found, relying on environment")
	}

	cfg, err := config.Load()
	if err != nil {
		logg.Error(context.Background(), "failed to load config", err)
		os.Exit(1)
	}

	logg = logger.New(logger.Options{
		ServiceName: "api",
		Level:       logger.ParseLevel(cfg.App.LogLevel),
		WarnStack:   cfg.App.LogWarnStack,
	})

	dbClient, err := db.New(context.Background(), cfg.DB, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap database", err)
		os.Exit(1)
	}
	defer func() {
		if err := dbClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing database", err)
		}
	}()

	if err := migrate.MaybeRunDev(context.Background(), cfg, logg, dbClient); err != nil {
		logg.Error(context.Background(), "failed to run dev migrations", err)
		os.Exit(1)
	}

	redisClient, err := redis.New(context.Background(), cfg.Redis, logg)
	if err != nil {
		logg.Error(context.Background(), "failed to bootstrap redis", err)
		os.Exit(1)
	}
	defer func() {
		if err := redisClient.Close(); err != nil {
			logg.Error(context.Background(), "error closing redis", err)
		}
	}()

	var store blobStore
	switch {
	case cfg.R2.Configured():
		r2Client, err := r2.NewClient(context.Background(), cfg.R2, logg)
		if err != nil {
			logg.Error(context.Background(), "failed to bootstrap r2", err)
			os.Exit(1)
		}
		store = r2Client
	case cfg.App.IsDev():
		logg.Warn(context.Background(), "r2 not configured, falling back to in-memory storage")
		store = storage.NewMemory()
	default:
		logg.Error(context.Background(), "r2 storage must be configured outside dev", nil)
		os.Exit(1)
	}

	invMetrics := metrics.NewInventoryMetrics(prometheus.DefaultRegisterer)

	invRepo := inventory.NewRepository(dbClient.DB())
	events := inventory.NewEventRepository(dbClient.DB())
	aggregator := inventory.NewAggregator(dbClient.DB(), logg)
	reservation := inventory.NewReservationEngine(invRepo, store, logg, invMetrics, cfg.Inventory.ReservationAttempts)
	mutation := inventory.NewMutationEngine(invRepo, events, aggregator, store, logg, invMetrics,
		cfg.Inventory.MaxUploadBytes, cfg.Inventory.MaxLinesPerBatch)
	streamer := inventory.NewStreamer(invRepo, events, store, logg)

	productRepo := products.NewRepository(dbClient.DB())
	productService := products.NewService(productRepo)

	invService := inventory.NewService(invRepo, events, reservation, mutation, streamer, aggregator, productRepo, logg)
	orderService := orders.NewService(orders.NewRepository(dbClient.DB()), invService, store, store, logg, 0)

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx := logg.WithFields(context.Background(), map[string]any{
		"env":  cfg.App.Env,
		"addr": addr,
	})
	logg.Info(ctx, "starting api server")

	server := &http.Server{
		Addr:    addr,
		Handler: routes.NewRouter(cfg, logg, dbClient, store, redisClient, productService, invService, orderService),
	}

	if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}
