package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/venue-orders/internal/domain/auth"
	"github.com/xenking/venue-orders/internal/domain/catalog"
	"github.com/xenking/venue-orders/internal/domain/order"
	"github.com/xenking/venue-orders/internal/handler"
	"github.com/xenking/venue-orders/internal/seed"
	"github.com/xenking/venue-orders/internal/storage/memory"
	"github.com/xenking/venue-orders/internal/storage/postgres"
	"github.com/xenking/venue-orders/pkg/health"
	"github.com/xenking/venue-orders/pkg/httpmiddleware"
)

const serviceName = "venue-api"

// stores bundles the storage contracts of one backend.
type stores struct {
	catalog catalog.Repository
	ledger  catalog.Ledger
	orders  order.Repository
	apikeys auth.Repository

	ready health.CheckFunc
	close func()
}

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing",
		zap.String("addr", cfg.Addr),
		zap.String("storage", cfg.Storage),
		zap.String("initial_status", cfg.Orders.InitialStatus),
	)

	st, err := openStores(ctx, lg, cfg)
	if err != nil {
		return err
	}
	defer st.close()

	healthSvc := health.New()
	if st.ready != nil {
		healthSvc.AddReadinessCheck(cfg.Storage, 5*time.Second, st.ready)
	}
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))
	healthSvc.Start(ctx, 10*time.Second)
	healthSvc.SetReady(true)

	h, err := newHandler(ctx, m, cfg, st, healthSvc)
	if err != nil {
		return err
	}

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler:           h,
	}

	// Graceful shutdown: wait for context cancellation, drain, then stop.
	shutdownDone := make(chan struct{})
	go func() {
		<-ctx.Done()
		healthSvc.SetReady(false)
		lg.Info("Readiness set to false, draining", zap.Duration("delay", cfg.Graceful.ReadinessDelay))
		time.Sleep(cfg.Graceful.ReadinessDelay)

		shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.Graceful.ShutdownTimeout)
		defer cancel()

		lg.Info("Shutting down server", zap.Duration("timeout", cfg.Graceful.ShutdownTimeout))
		if err := server.Shutdown(shutdownCtx); err != nil {
			lg.Error("Server shutdown error", zap.Error(err))
		}
		healthSvc.Stop()
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHandler builds the services and the middleware-wrapped mux.
func newHandler(
	ctx context.Context,
	t httpmiddleware.TelemetryProvider,
	cfg *Config,
	st *stores,
	healthSvc *health.Health,
) (http.Handler, error) {
	orderService, err := order.NewService(st.orders,
		order.WithInitialStatus(order.Status(cfg.Orders.InitialStatus)),
		order.WithTracerProvider(t.TracerProvider()),
		order.WithMeterProvider(t.MeterProvider()),
	)
	if err != nil {
		return nil, errors.Wrap(err, "create order service")
	}
	h := handler.NewHandler(catalog.NewService(st.catalog, st.ledger), orderService)
	securityHandler := handler.NewSecurityHandler(st.apikeys, []byte(cfg.APIKeyPepper))

	api := http.NewServeMux()
	h.Register(api)
	routeFinder := httpmiddleware.MakeRouteFinder(api)

	mux := http.NewServeMux()
	mux.HandleFunc("GET /livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("GET /readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/api/", securityHandler.Middleware(api))

	return httpmiddleware.Wrap(mux,
		httpmiddleware.Recovery(),
		httpmiddleware.CORS(httpmiddleware.CORSConfig{
			AllowOrigins:     cfg.CORS.Origins,
			AllowHeaders:     []string{"Content-Type", "Authorization", "api_key"},
			ExposeHeaders:    []string{httpmiddleware.RequestIDHeader, "Retry-After"},
			AllowCredentials: cfg.CORS.AllowCredentials,
			MaxAge:           86400,
		}),
		httpmiddleware.RateLimitWithCleanup(ctx, httpmiddleware.RateLimitConfig{
			Rate:  cfg.RateLimit.Rate,
			Burst: cfg.RateLimit.Burst,
			Idle:  cfg.RateLimit.Idle,
		}),
		httpmiddleware.RequestID(),
		httpmiddleware.InjectLogger(zctx.From(ctx)),
		httpmiddleware.Instrument(serviceName, routeFinder, t),
		httpmiddleware.LogRequests(routeFinder),
		httpmiddleware.Labeler(routeFinder),
	), nil
}

// openStores connects the configured storage backend.
func openStores(ctx context.Context, lg *zap.Logger, cfg *Config) (*stores, error) {
	if cfg.Storage == StorageMemory {
		return openMemory(ctx, lg, cfg)
	}

	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return nil, errors.Wrap(err, "create db pool")
	}
	if err := postgres.RunMigrations(ctx, pool); err != nil {
		pool.Close()
		return nil, errors.Wrap(err, "run migrations")
	}

	catalogRepo := postgres.NewCatalogRepository(pool)
	return &stores{
		catalog: catalogRepo,
		ledger:  catalogRepo,
		orders:  postgres.NewOrderRepository(pool),
		apikeys: postgres.NewAPIKeyRepository(pool),
		ready:   health.PingCheck(pool),
		close:   pool.Close,
	}, nil
}

// openMemory creates an in-memory store seeded with the configured menu.
func openMemory(ctx context.Context, lg *zap.Logger, cfg *Config) (*stores, error) {
	store := memory.New()

	menu, err := seed.ReadFile(cfg.Seed.MenuFile)
	if err != nil {
		return nil, errors.Wrap(err, "read menu")
	}
	stats, err := seed.Apply(ctx, lg, store, menu)
	if err != nil {
		return nil, errors.Wrap(err, "seed menu")
	}
	lg.Info("Seeded in-memory menu",
		zap.Int("categories", stats.Categories),
		zap.Int("items", stats.Items),
	)

	if cfg.Seed.StaffKey != "" {
		if _, err := seed.StaffKey(ctx, store, []byte(cfg.APIKeyPepper), "seed", cfg.Seed.StaffKey); err != nil {
			return nil, errors.Wrap(err, "seed staff key")
		}
	} else {
		lg.Warn("No staff key configured, staff routes are unreachable")
	}

	return &stores{
		catalog: store,
		ledger:  store,
		orders:  store,
		apikeys: store,
		close:   func() {},
	}, nil
}
