package main

import (
	"context"
	"errors"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/joho/godotenv"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/collectors"
	"go.uber.org/multierr"

	"github.com/angelmondragon/assetcart/api/controllers"
	"github.com/angelmondragon/assetcart/api/routes"
	"github.com/angelmondragon/assetcart/internal/cart"
	"github.com/angelmondragon/assetcart/internal/checkout"
	"github.com/angelmondragon/assetcart/internal/orders"
	"github.com/angelmondragon/assetcart/internal/storefront"
	"github.com/angelmondragon/assetcart/internal/sweeper"
	"github.com/angelmondragon/assetcart/pkg/config"
	"github.com/angelmondragon/assetcart/pkg/db"
	"github.com/angelmondragon/assetcart/pkg/idempotency"
	"github.com/angelmondragon/assetcart/pkg/logger"
	"github.com/angelmondragon/assetcart/pkg/metrics"
	"github.com/angelmondragon/assetcart/pkg/migrate"
	pkgredis "github.com/angelmondragon/assetcart/pkg/redis"
)

const shutdownTimeout = 20 * time.Second

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

	if err := run(cfg, logg); err != nil {
		logg.Error(context.Background(), "api server stopped unexpectedly", err)
		os.Exit(1)
	}
}

func run(cfg *config.Config, logg *logger.Logger) (err error) {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	dbClient, err := db.New(ctx, cfg.DB, logg)
	if err != nil {
		return err
	}
	defer func() { err = multierr.Append(err, dbClient.Close()) }()

	if err := migrate.MaybeRunDev(ctx, cfg, logg, dbClient); err != nil {
		return err
	}

	var redisClient *pkgredis.Client
	if cfg.Redis.Enabled() {
		redisClient, err = pkgredis.New(ctx, cfg.Redis, logg)
		if err != nil {
			return err
		}
		defer func() { err = multierr.Append(err, redisClient.Close()) }()
	}

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))
	cartMetrics := metrics.NewCartMetrics(registry)
	checkoutMetrics := metrics.NewCheckoutMetrics(registry)

	slots, err := cartSlots(cfg, redisClient)
	if err != nil {
		return err
	}
	carts, err := cart.NewManager(slots, logg, cartMetrics)
	if err != nil {
		return err
	}
	carts.Subscribe(cart.CountRecorder(logg, cartMetrics))

	var (
		ordersSvc orders.Service
		idemStore pkgredis.IdempotencyStore
		ready     = map[string]controllers.Pinger{"db": dbClient}
	)
	if redisClient != nil {
		guard, err := idempotency.NewManager(redisClient, cfg.Idempotency.OrderTTL)
		if err != nil {
			return err
		}
		ordersSvc, err = orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, guard, logg)
		if err != nil {
			return err
		}
		idemStore = redisClient
		ready["redis"] = redisClient
	} else {
		ordersSvc, err = orders.NewService(orders.NewRepository(dbClient.DB()), dbClient, nil, logg)
		if err != nil {
			return err
		}
	}

	gateway, err := checkout.NewGateway(ordersSvc, cfg.Checkout.SubmitTimeout, logg, checkoutMetrics)
	if err != nil {
		return err
	}
	storefrontSvc, err := storefront.NewService(carts, gateway, ordersSvc, logg)
	if err != nil {
		return err
	}

	sweep, err := newSweeper(cfg, logg, carts, storefrontSvc, cartMetrics)
	if err != nil {
		return err
	}
	go func() {
		if err := sweep.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
			logg.Error(ctx, "sweeper stopped", err)
		}
	}()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	logCtx := logg.WithFields(ctx, map[string]any{
		"env":          cfg.App.Env,
		"addr":         addr,
		"cart_storage": cfg.Cart.Storage,
		"db_dialect":   dbClient.Dialect(),
	})
	logg.Info(logCtx, "starting api server")

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(cfg, logg, routes.Dependencies{
			Storefront:  storefrontSvc,
			Idempotency: idemStore,
			Gatherer:    registry,
			Ready:       ready,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		serveErr <- server.ListenAndServe()
	}()

	select {
	case err := <-serveErr:
		if errors.Is(err, http.ErrServerClosed) {
			return nil
		}
		return err
	case <-ctx.Done():
	}

	logg.Info(logCtx, "shutting down api server")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	return server.Shutdown(shutdownCtx)
}

// newSweeper evicts idle carts and checkout sessions from memory.
func newSweeper(cfg *config.Config, logg *logger.Logger, carts sweeper.IdleEvictor, sessions sweeper.IdleEvictor, m *metrics.CartMetrics) (*sweeper.Service, error) {
	cartJob, err := sweeper.NewIdleEvictionJob("evict_idle_carts", carts, cfg.Cart.IdleTTL, func(n int) {
		m.AddEvictions(metrics.EvictionCart, n)
	})
	if err != nil {
		return nil, err
	}
	sessionJob, err := sweeper.NewIdleEvictionJob("evict_idle_checkouts", sessions, cfg.Checkout.SessionIdleTTL, func(n int) {
		m.AddEvictions(metrics.EvictionSession, n)
	})
	if err != nil {
		return nil, err
	}
	return sweeper.NewService(sweeper.ServiceParams{
		Logger:   logg,
		Jobs:     []sweeper.Job{cartJob, sessionJob},
		Interval: cfg.Cart.SweepInterval,
	})
}

func cartSlots(cfg *config.Config, redisClient *pkgredis.Client) (cart.Slots, error) {
	if !cfg.Cart.UsesRedis() {
		return cart.NewMemorySlots(), nil
	}
	if redisClient == nil {
		return nil, errors.New("redis cart storage requires " + config.EnvRedisURL)
	}
	return cart.NewRedisSlots(redisClient, cfg.Cart.SlotTTL)
}
