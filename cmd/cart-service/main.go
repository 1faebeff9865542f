package main

import (
	"context"
	"errors"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/hy-aurora/unimart-sub000/internal/auth"
	c "github.com/hy-aurora/unimart-sub000/internal/cache"
	"github.com/hy-aurora/unimart-sub000/internal/catalog"
	"github.com/hy-aurora/unimart-sub000/internal/config"
	h "github.com/hy-aurora/unimart-sub000/internal/http"
	"github.com/hy-aurora/unimart-sub000/internal/poller"
	"github.com/hy-aurora/unimart-sub000/internal/repository"
	s "github.com/hy-aurora/unimart-sub000/internal/service"
	"github.com/hy-aurora/unimart-sub000/pkg/logger"
	"github.com/redis/go-redis/v9"
	"go.uber.org/zap"
)

func main() {
	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log, err := logger.New(cfg.LogLevel, cfg.Environment)
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to create logger: %v\n", err)
		os.Exit(1)
	}
	defer log.Sync()

	if err := run(cfg, log); err != nil {
		log.Fatal("cart service failed", zap.Error(err))
	}
}

func run(cfg *config.Config, log *zap.Logger) error {
	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	// Set up MongoDB connection
	startupCtx, cancel := context.WithTimeout(ctx, 15*time.Second)
	defer cancel()
	mongoDB, err := repository.ConnectMongoDB(startupCtx, cfg.Mongo.URI, cfg.Mongo.DBName)
	if err != nil {
		return fmt.Errorf("failed to connect to MongoDB: %w", err)
	}
	defer func() {
		disconnectCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
		defer cancel()
		if err := mongoDB.Client().Disconnect(disconnectCtx); err != nil {
			log.Warn("mongo disconnect failed", zap.Error(err))
		}
	}()
	if err := repository.EnsureIndexes(startupCtx, mongoDB); err != nil {
		return err
	}
	log.Info("connected to MongoDB", zap.String("database", cfg.Mongo.DBName))

	redisClient := redis.NewClient(&redis.Options{
		Addr:     cfg.Redis.Addr,
		Password: cfg.Redis.Password,
		DB:       cfg.Redis.DB,
	})
	defer redisClient.Close()
	if err := redisClient.Ping(startupCtx).Err(); err != nil {
		return fmt.Errorf("redis connection failed: %w", err)
	}
	log.Info("redis ping succeeded", zap.String("addr", cfg.Redis.Addr))

	var guests c.GuestStore
	switch cfg.Cart.GuestStore {
	case config.GuestStoreMemory:
		mem := c.NewMemoryGuestStore(cfg.Cart.GuestTTL, c.DefaultCleanupInterval)
		defer mem.Close()
		guests = mem
	default:
		guests = c.NewRedisGuestStore(redisClient, cfg.Cart.GuestTTL)
	}
	log.Info("guest cart store selected", zap.String("store", cfg.Cart.GuestStore))

	products := catalog.NewClient(repository.NewMongoProductRepository(mongoDB), catalog.Config{
		ConsecutiveFailures: cfg.Catalog.BreakerFailures,
		OpenTimeout:         cfg.Catalog.BreakerTimeout,
	}, log)

	service := s.NewCartService(s.Deps{
		Carts:    repository.NewMongoRepository(mongoDB),
		Users:    repository.NewMongoUserRepository(mongoDB),
		Insights: repository.NewMongoInsightRepository(mongoDB),
		Catalog:  products,
		Cache:    c.NewRedisCache(redisClient, cfg.Cart.CacheTTL),
		Guests:   guests,
		Identity: auth.ContextIdentity{},
		Logger:   log,
	}, s.Options{PlaceholderImage: cfg.Cart.PlaceholderImage})
	defer service.Close()

	pollerDone := make(chan struct{})
	if cfg.KafkaEnabled() {
		checkoutPoller := poller.NewPoller(service, poller.Config{
			Brokers: cfg.Kafka.Brokers,
			Topic:   cfg.Kafka.CheckoutTopic,
			GroupID: cfg.Kafka.GroupID,
		}, log)
		go func() {
			defer close(pollerDone)
			checkoutPoller.Run(ctx)
		}()
		defer checkoutPoller.Close()
	} else {
		close(pollerDone)
		log.Info("KAFKA_BROKERS not set, checkout poller disabled")
	}

	srv := &http.Server{
		Addr: ":" + cfg.HTTPPort,
		Handler: h.NewRouter(h.RouterConfig{
			Service:        service,
			Tokens:         auth.NewValidator(cfg.Auth.JWTSecret, cfg.Auth.JWTIssuer),
			Logger:         log,
			RequestTimeout: cfg.RequestTimeout,
			AllowedOrigins: cfg.CORSOrigins,
		}),
		ReadTimeout:  10 * time.Second,
		WriteTimeout: cfg.RequestTimeout + 5*time.Second,
		IdleTimeout:  60 * time.Second,
	}

	serveErr := make(chan error, 1)
	go func() {
		log.Info("cart service listening", zap.String("port", cfg.HTTPPort))
		if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			serveErr <- err
		}
		close(serveErr)
	}()

	// Wait for interrupt signal
	select {
	case <-ctx.Done():
	case err := <-serveErr:
		if err != nil {
			return fmt.Errorf("server error: %w", err)
		}
	}

	log.Info("shutting down cart service...")
	shutdownCtx, cancel := context.WithTimeout(context.Background(), cfg.ShutdownTimeout)
	defer cancel()
	if err := srv.Shutdown(shutdownCtx); err != nil {
		log.Error("server forced to shutdown", zap.Error(err))
	}

	stop()
	<-pollerDone
	log.Info("cart service stopped")
	return nil
}
