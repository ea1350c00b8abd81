package main

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/fjod/storefront/internal/cache"
	"github.com/fjod/storefront/internal/config"
	h "github.com/fjod/storefront/internal/http"
	"github.com/fjod/storefront/internal/localcart"
	"github.com/fjod/storefront/internal/logger"
	"github.com/fjod/storefront/internal/metrics"
	"github.com/fjod/storefront/internal/poller"
	"github.com/fjod/storefront/internal/publisher"
	"github.com/fjod/storefront/internal/remote"
	"github.com/fjod/storefront/internal/repository"
	"github.com/fjod/storefront/internal/session"
	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/singleflight"
)

func runServe(parent context.Context, cfg *config.Config) error {
	if parent == nil {
		parent = context.Background()
	}
	log := logger.New(cfg.LogLevel)
	slog.SetDefault(log)
	log.Info("storefront starting", "version", Version, "port", cfg.HTTPPort)

	ctx, stop := signal.NotifyContext(parent, syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	m := metrics.New()

	// Database setup
	creds := credentials(cfg)
	repo, err := repository.NewRepository(creds)
	if err != nil {
		return fmt.Errorf("connect to database: %w", err)
	}
	defer repo.Close()
	if err := repo.RunMigrations(creds); err != nil {
		return fmt.Errorf("run migrations: %w", err)
	}
	log.Info("database migrations completed")

	mongoDB, err := repository.ConnectMongoDB(ctx, cfg.MongoURI, cfg.MongoDBName)
	if err != nil {
		return err
	}
	defer func() {
		if err := mongoDB.Client().Disconnect(context.Background()); err != nil {
			log.Warn("mongo disconnect failed", "error", err)
		}
	}()
	guestCarts := repository.NewLocalCartRepository(mongoDB)
	if err := guestCarts.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create guest cart indexes: %w", err)
	}
	wishlists := repository.NewWishlistRepository(mongoDB)
	if err := wishlists.CreateIndexes(ctx); err != nil {
		return fmt.Errorf("create wishlist indexes: %w", err)
	}
	log.Info("connected to MongoDB", "db", cfg.MongoDBName)

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.RedisAddr,
		Password: cfg.RedisPassword,
		DB:       0,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(ctx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	snapshots := cache.NewRedisCache(redisClient)
	log.Info("redis ping succeeded", "addr", cfg.RedisAddr)

	// Remote services
	clientOpts := func(service, baseURL string) remote.Options {
		return remote.Options{
			Service: service,
			BaseURL: baseURL,
			Timeout: cfg.RequestTimeout,
			Metrics: m,
			Logger:  log,
		}
	}
	authClient := remote.NewAuthClient(clientOpts("auth", cfg.Services.AuthURL))
	cartClient := remote.NewCartClient(clientOpts("cart", cfg.Services.CartURL))
	orderClient := remote.NewOrderClient(clientOpts("order", cfg.Services.OrderURL))
	productClient := remote.NewProductClient(clientOpts("product", cfg.Services.ProductURL))
	pushClient := remote.NewPushClient(clientOpts("push", cfg.Services.PushURL))

	registry := session.NewRegistry(session.Deps{
		Auth:       authClient,
		Cart:       cartClient,
		Catalog:    productClient,
		Orders:     orderClient,
		Push:       pushClient,
		Ledger:     repo,
		Snapshots:  snapshots,
		GuestCarts: guestCarts,
		Wishlists:  wishlists,
		Policy:     localcart.Policy{MaxQuantity: cfg.MaxQuantity},
		Window:     cfg.PaymentSessionWindow,
		Metrics:    m,
		Logger:     log,
		Group:      &singleflight.Group{},
	}, cfg.SessionIdleTTL)

	// Background workers
	outbox := publisher.NewOutboxPoller(repo, publisher.NewWriter(cfg.KafkaBrokers...), log)
	defer func() {
		if err := outbox.Close(); err != nil {
			log.Warn("closing kafka writer failed", "error", err)
		}
	}()
	// Every instance must see every checkout event, so each gets its own group.
	consumer := poller.NewPoller(
		poller.NewReader(consumerGroup(cfg.HTTPPort), cfg.KafkaBrokers...),
		snapshots, guestCarts, registry, log)
	defer consumer.Close()

	var wg sync.WaitGroup
	for _, run := range []func(context.Context){
		outbox.Run,
		consumer.Run,
		func(ctx context.Context) { registry.Run(ctx, time.Minute) },
	} {
		wg.Add(1)
		go func() {
			defer wg.Done()
			run(ctx)
		}()
	}

	router := h.NewRouter(h.RouterOptions{
		Sessions:       registry,
		Catalog:        productClient,
		RequestTimeout: cfg.RequestTimeout,
		MaxBodySize:    cfg.MaxRequestBodySize,
		Limiter:        h.NewSessionLimiter(cfg.MutationRateLimit, cfg.MutationBurst, cfg.RateLimitSessions),
		Metrics:        m.Handler(),
		Health: func() error {
			if err := repo.Ping(); err != nil {
				return fmt.Errorf("postgres: %w", err)
			}
			return nil
		},
	})

	srv := &http.Server{
		Addr:         ":" + cfg.HTTPPort,
		Handler:      router,
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("storefront listening", "addr", srv.Addr)
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	select {
	case err := <-serveErr:
		if err != nil {
			stop()
			wg.Wait()
			return fmt.Errorf("server error: %w", err)
		}
	case <-ctx.Done():
	}

	// Graceful shutdown
	log.Info("shutting down server...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", "error", err)
	}
	stop()
	wg.Wait()

	log.Info("server exited")
	return nil
}

func consumerGroup(port string) string {
	host, err := os.Hostname()
	if err != nil || host == "" {
		host = "local"
	}
	return fmt.Sprintf("storefront-%s-%s", host, port)
}
