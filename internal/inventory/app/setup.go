// Package app wires the inventory service: storage backend, store, services and transports.
package app

import (
	"context"
	"fmt"
	"log/slog"
	"net/http"

	"github.com/abgdnv/stockbook/internal/config"
	"github.com/abgdnv/stockbook/internal/inventory/kv"
	"github.com/abgdnv/stockbook/internal/inventory/service"
	"github.com/abgdnv/stockbook/internal/inventory/store"
	"github.com/abgdnv/stockbook/internal/inventory/transport/rest"
	"github.com/abgdnv/stockbook/internal/platform/metrics"
	"github.com/abgdnv/stockbook/internal/platform/server"
	"github.com/go-chi/chi/v5"
	"google.golang.org/grpc"
	"google.golang.org/grpc/health"
	healthpb "google.golang.org/grpc/health/grpc_health_v1"
)

type Dependencies struct {
	Store     *store.Store
	Inventory service.Inventory
	Metrics   *metrics.Metrics
	Health    *health.Server
	Logger    *slog.Logger
}

// OpenBackend opens the kv backend selected by the storage driver.
// The returned func releases it.
func OpenBackend(ctx context.Context, cfg config.StorageConfig, logger *slog.Logger) (kv.Backend, func(), error) {
	switch cfg.Driver {
	case config.DriverMemory:
		logger.Warn("Using in-memory storage, state is lost on exit")
		return kv.NewMemory(), func() {}, nil
	case config.DriverFile:
		backend, err := kv.NewFile(cfg.Dir)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Using file storage", "dir", cfg.Dir)
		return backend, func() {}, nil
	case config.DriverPostgres:
		if err := kv.Migrate(cfg.Database.URL); err != nil {
			return nil, nil, err
		}
		pool, err := kv.NewPool(ctx, cfg.Database.URL, cfg.Database.Timeout)
		if err != nil {
			return nil, nil, err
		}
		logger.Info("Successfully connected to the database!")
		var backend kv.Backend = kv.NewPostgres(pool)
		if cfg.Breaker.Enabled {
			backend = kv.NewBreaker(backend, "inventory-postgres", kv.BreakerSettings{
				ConsecutiveFailures: cfg.Breaker.ConsecutiveFailures,
				ErrorRatePercent:    cfg.Breaker.ErrorRatePercent,
				OpenTimeout:         cfg.Breaker.OpenTimeout,
			})
		}
		return backend, pool.Close, nil
	default:
		return nil, nil, fmt.Errorf("unknown storage driver: %q", cfg.Driver)
	}
}

// SetupDependencies loads the store from backend and builds the services on top of it.
func SetupDependencies(ctx context.Context, backend kv.Backend, cfg *config.Config, logger *slog.Logger) (*Dependencies, error) {
	opts := store.Options{
		ProductsKey:   cfg.Storage.ProductsKey,
		SalesKey:      cfg.Storage.SalesKey,
		TrackBuyPrice: cfg.Inventory.TrackBuyPrice,
		IDStrategy:    store.IDStrategy(cfg.Inventory.IDStrategy),
		Logger:        logger,
	}
	if cfg.Inventory.SeedDemo {
		opts.Seed = store.DemoSeed()
	}
	st := store.New(backend, opts)
	if err := st.Load(ctx); err != nil {
		return nil, fmt.Errorf("failed to load inventory: %w", err)
	}

	deps := &Dependencies{
		Store:  st,
		Health: health.NewServer(),
		Logger: logger,
	}
	svcCfg := service.Config{
		TrackBuyPrice:     cfg.Inventory.TrackBuyPrice,
		LowStockThreshold: cfg.Inventory.LowStockThreshold,
		SortByName:        cfg.Inventory.SortByName,
		CurrencySymbol:    cfg.Inventory.CurrencySymbol,
	}
	if cfg.Metrics.Enabled {
		deps.Metrics = metrics.New(cfg.Metrics.Prefix)
		svcCfg.Observer = deps.Metrics
	}
	deps.Inventory = service.NewService(st, svcCfg, logger)
	deps.Health.SetServingStatus("", healthpb.HealthCheckResponse_SERVING)
	return deps, nil
}

// SetupHttpHandler initializes the router and routes of the inventory service.
// Used by E2E tests to set up the HTTP server with the necessary routes and middleware.
func SetupHttpHandler(deps *Dependencies, cfg *config.Config) http.Handler {
	var mux *chi.Mux
	if deps.Metrics != nil {
		mux = server.NewChiRouter(deps.Logger, deps.Metrics.Middleware)
		mux.Handle(cfg.Metrics.Path, deps.Metrics.Handler())
	} else {
		mux = server.NewChiRouter(deps.Logger)
	}
	rest.NewHandler(deps.Inventory, deps.Logger).RegisterRoutes(mux)
	return mux
}

// SetupHttpServer creates and configures an HTTP server for the inventory service.
func SetupHttpServer(deps *Dependencies, cfg *config.Config) *http.Server {
	mux := SetupHttpHandler(deps, cfg)

	httpCfg := server.HTTPConfig{
		Port:           cfg.HTTPServer.Port,
		MaxHeaderBytes: cfg.HTTPServer.MaxHeaderBytes,
		ReadTimeout:    cfg.HTTPServer.Timeout.Read,
		WriteTimeout:   cfg.HTTPServer.Timeout.Write,
		IdleTimeout:    cfg.HTTPServer.Timeout.Idle,
		ReadHeader:     cfg.HTTPServer.Timeout.ReadHeader,
	}

	return server.NewHTTPServer(httpCfg, mux)
}

// SetupGrpcServer initializes the gRPC server serving the health service.
func SetupGrpcServer(deps *Dependencies, reflectionEnabled bool) *grpc.Server {
	return server.NewGRPCServer(reflectionEnabled, server.RegisterHealth(deps.Health))
}
