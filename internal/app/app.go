package app

import (
	"context"
	"net/http"
	"time"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/app"
	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5/pgxpool"
	amqp "github.com/rabbitmq/amqp091-go"
	goredis "github.com/redis/go-redis/v9"
	"go.opentelemetry.io/contrib/instrumentation/net/http/otelhttp"
	"go.uber.org/zap"

	"github.com/modaluna/storefront/internal/domain/cart"
	"github.com/modaluna/storefront/internal/domain/checkout"
	"github.com/modaluna/storefront/internal/events"
	"github.com/modaluna/storefront/internal/handler"
	"github.com/modaluna/storefront/internal/postgres"
	storeredis "github.com/modaluna/storefront/internal/redis"
	"github.com/modaluna/storefront/internal/session"
	"github.com/modaluna/storefront/pkg/health"
	"github.com/modaluna/storefront/pkg/httpmiddleware"
)

// Run creates all dependencies, starts the HTTP server, and handles graceful
// shutdown. It is the single wiring point for the application.
func Run(ctx context.Context, lg *zap.Logger, m *app.Telemetry, cfg *Config) error {
	lg.Info("Initializing", zap.String("addr", cfg.Addr))

	// PostgreSQL pool + migrations.
	pool, err := postgres.NewPool(ctx, cfg.DatabaseURL)
	if err != nil {
		return errors.Wrap(err, "create db pool")
	}
	defer pool.Close()

	if err := postgres.RunMigrations(ctx, pool); err != nil {
		return errors.Wrap(err, "run migrations")
	}

	// Health check service.
	healthSvc := health.New()
	healthSvc.AddReadinessCheck("postgres", 5*time.Second, func(ctx context.Context) error {
		return pool.Ping(ctx)
	})
	healthSvc.AddLivenessCheck("goroutines", time.Second, health.GoroutineCountCheck(10000))

	// Repositories.
	productRepo := postgres.NewProductRepository(pool)
	userRepo := postgres.NewUserRepository(pool)
	roleRepo := postgres.NewRoleRepository(pool)
	checkoutRepo := postgres.NewCheckoutRepository(pool, cfg.Checkout.Atomic)

	// Holding store for carts of logged-out users.
	holding, err := newHoldingStore(ctx, cfg, pool, healthSvc)
	if err != nil {
		return errors.Wrap(err, "create holding store")
	}
	lg.Info("Holding store ready", zap.String("backend", cfg.Holding.Backend))

	// Event publisher.
	publisher, closePublisher, err := newEventPublisher(cfg, lg)
	if err != nil {
		return errors.Wrap(err, "create event publisher")
	}
	defer closePublisher()

	// Sessions double as the per-session cart store.
	sessions := session.NewManager([]byte(cfg.Session.Secret), cfg.Session.TTL, holding)
	sessions.StartSweep(ctx, 10*time.Minute)

	// Domain services.
	cartSvc := cart.NewService(productRepo, sessions)
	checkoutSvc := checkout.NewService(sessions, checkoutRepo, publisher, lg)

	// HTTP handlers.
	h := handler.New(
		handler.Config{ImageBaseURL: cfg.ImageBaseURL},
		handler.Deps{
			Sessions: sessions,
			Carts:    cartSvc,
			Checkout: checkoutSvc,
			Products: productRepo,
			Users:    userRepo,
			Roles:    roleRepo,
			Invoices: checkoutRepo,
		},
	)

	mux := http.NewServeMux()
	mux.HandleFunc("/livez", healthSvc.LiveEndpoint)
	mux.HandleFunc("/readyz", healthSvc.ReadyEndpoint)
	mux.Handle("/", otelhttp.NewHandler(h.Routes(), "storefront",
		otelhttp.WithTracerProvider(m.TracerProvider()),
		otelhttp.WithMeterProvider(m.MeterProvider()),
	))

	server := &http.Server{
		ReadHeaderTimeout: time.Second,
		ReadTimeout:       5 * time.Second,
		WriteTimeout:      10 * time.Second,
		IdleTimeout:       120 * time.Second,
		MaxHeaderBytes:    1 << 20,
		Addr:              cfg.Addr,
		Handler: httpmiddleware.Wrap(mux,
			httpmiddleware.Recovery(),
			httpmiddleware.RateLimit(httpmiddleware.RateLimitConfig{
				Max:    cfg.RateLimit.Max,
				Window: cfg.RateLimit.Window,
			}),
			httpmiddleware.RequestID(),
			httpmiddleware.InjectLogger(zctx.From(ctx)),
			httpmiddleware.LogRequests(),
			sessions.Middleware,
		),
	}

	healthSvc.SetReady(true)

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
		close(shutdownDone)
	}()

	lg.Info("Server listening", zap.String("addr", cfg.Addr))
	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return errors.Wrap(err, "server")
	}
	<-shutdownDone
	return nil
}

// newHoldingStore builds the configured holding backend. The memory backend
// sweeps itself; the redis backend registers a readiness check.
func newHoldingStore(ctx context.Context, cfg *Config, pool *pgxpool.Pool, healthSvc *health.Health) (cart.HoldingStore, error) {
	switch cfg.Holding.Backend {
	case "memory":
		holding := cart.NewMemoryHolding(cfg.Holding.TTL)
		holding.StartSweep(ctx, time.Hour)
		return holding, nil
	case "postgres":
		return postgres.NewHoldingRepository(pool), nil
	case "redis":
		opts, err := goredis.ParseURL(cfg.Holding.RedisURL)
		if err != nil {
			return nil, errors.Wrap(err, "parse redis URL")
		}
		client := goredis.NewClient(opts)
		healthSvc.AddReadinessCheck("redis", 5*time.Second, func(ctx context.Context) error {
			return client.Ping(ctx).Err()
		})
		return storeredis.NewHolding(client, cfg.Holding.TTL), nil
	default:
		return nil, errors.Errorf("unknown holding backend %q", cfg.Holding.Backend)
	}
}

// newEventPublisher dials RabbitMQ when configured, falling back to a no-op
// publisher otherwise.
func newEventPublisher(cfg *Config, lg *zap.Logger) (checkout.EventPublisher, func(), error) {
	if cfg.Events.AMQPURL == "" {
		lg.Info("Event publishing disabled, no AMQP URL configured")
		return events.Noop{}, func() {}, nil
	}

	conn, err := amqp.Dial(cfg.Events.AMQPURL)
	if err != nil {
		return nil, nil, errors.Wrap(err, "dial amqp")
	}
	pub, err := events.NewPublisher(conn)
	if err != nil {
		_ = conn.Close()
		return nil, nil, errors.Wrap(err, "open publisher")
	}
	closeAll := func() {
		_ = pub.Close()
		_ = conn.Close()
	}
	return pub, closeAll, nil
}
