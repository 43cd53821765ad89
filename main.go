package main

import (
	"context"
	"errors"
	"flag"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"go.mongodb.org/mongo-driver/mongo"
	"go.uber.org/zap"
	"golang.org/x/sync/errgroup"

	"github.com/Nisarg2003/real-tractors-and-equipments/internal/api"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/api/handlers"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/cache"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/captcha"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/config"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/db"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/email"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/logging"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/metrics"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/services"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/storage"
	"github.com/Nisarg2003/real-tractors-and-equipments/internal/tasks"
)

const shutdownTimeout = 15 * time.Second

var runMode = flag.String("m", "all", "Run mode: 'api', 'bg' (background tasks), 'all' (default)")

func main() {
	flag.Parse()

	cfg, err := config.Load(*runMode)
	if err != nil {
		fmt.Fprintf(os.Stderr, "Failed to load configuration: %v\n", err)
		os.Exit(1)
	}

	logger := logging.New(cfg.LogLevel, cfg.LogEncoding)
	defer func() { _ = logger.Sync() }()

	if err := run(cfg, logger); err != nil {
		logger.Error("Exiting with error", zap.Error(err))
		_ = logger.Sync()
		os.Exit(1)
	}
	logger.Info("Server gracefully stopped")
}

func run(cfg *config.Config, logger *zap.Logger) error {
	runAPI, runBG := false, false
	switch cfg.RunMode {
	case "api":
		runAPI = true
	case "bg":
		runBG = true
	case "all":
		runAPI, runBG = true, true
	default:
		return fmt.Errorf("invalid run mode %q", cfg.RunMode)
	}

	mongoClient, mongoDb, err := db.ConnectDB(cfg.MongoURI, cfg.MongoDbName, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := db.DisconnectDB(mongoClient, logger); err != nil {
			logger.Warn("Error disconnecting from MongoDB", zap.Error(err))
		}
	}()

	redisClient, err := cache.ConnectRedis(cfg.RedisAddr, cfg.RedisPassword, cfg.RedisDB, logger)
	if err != nil {
		return err
	}
	defer func() {
		if err := cache.DisconnectRedis(redisClient, logger); err != nil {
			logger.Warn("Error disconnecting from Redis", zap.Error(err))
		}
	}()

	ctx, stop := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer stop()

	shutdownChan := make(chan struct{}, 1)
	m := metrics.New()

	g, gctx := errgroup.WithContext(ctx)
	var servers []*http.Server

	serviceSrv := &http.Server{
		Addr:              ":" + cfg.ServiceApiPort,
		Handler:           api.SetupServiceRouter(healthChecks(mongoClient, redisClient), m, shutdownChan, logger),
		ReadHeaderTimeout: 10 * time.Second,
	}
	servers = append(servers, serviceSrv)

	if runAPI {
		indexCtx, cancel := context.WithTimeout(ctx, 30*time.Second)
		err := db.EnsureIndexes(indexCtx, mongoDb)
		cancel()
		if err != nil {
			return err
		}

		mediaStore, err := storage.NewMediaStore(ctx, cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize media store: %w", err)
		}

		taskClient := tasks.NewClient(redisClient, cfg.NotifyEmail, logger)
		defer func() {
			if err := taskClient.Close(); err != nil {
				logger.Warn("Error closing task client", zap.Error(err))
			}
		}()

		catalog := cache.NewCatalogCache(redisClient, cfg.CatalogCacheTTL, logger)
		router, rateLimiter := api.SetupRouter(cfg, api.Services{
			Listings:  services.NewListingService(mongoDb, mediaStore, catalog, logger),
			Inquiries: services.NewInquiryService(mongoDb, taskClient, logger),
			Accounts:  services.NewAccountService(mongoDb, cfg, logger),
			Captcha:   captcha.NewTurnstileVerifier(cfg, logger),
			Metrics:   m,
		}, logger)
		defer rateLimiter.Stop()

		apiSrv := &http.Server{
			Addr:              ":" + cfg.ApiPort,
			Handler:           router,
			ReadHeaderTimeout: 10 * time.Second,
		}
		servers = append(servers, apiSrv)
	}

	if runBG {
		sender, err := email.NewSender(cfg, logger)
		if err != nil {
			return fmt.Errorf("failed to initialize email sender: %w", err)
		}
		taskSrv, mux := tasks.SetupServer(redisClient, tasks.NewTaskProcessor(sender, logger), logger)
		if err := taskSrv.Start(mux); err != nil {
			return fmt.Errorf("failed to start background task server: %w", err)
		}
		logger.Info("Background task server started")
		defer func() {
			taskSrv.Shutdown()
			logger.Info("Background task server stopped")
		}()
	}

	for _, srv := range servers {
		g.Go(func() error { return listen(srv, logger) })
	}
	logger.Info("Application started", zap.String("mode", cfg.RunMode))

	g.Go(func() error {
		select {
		case <-gctx.Done():
			logger.Info("Shutting down gracefully")
		case <-shutdownChan:
			logger.Info("Shutdown requested via Service API, shutting down gracefully")
		}

		shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
		defer cancel()
		var errs []error
		for _, srv := range servers {
			if err := srv.Shutdown(shutdownCtx); err != nil {
				errs = append(errs, fmt.Errorf("shutdown %s: %w", srv.Addr, err))
			}
		}
		return errors.Join(errs...)
	})

	return g.Wait()
}

// listen serves until Shutdown is called.
func listen(srv *http.Server, logger *zap.Logger) error {
	logger.Info("Listening", zap.String("addr", srv.Addr))
	if err := srv.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		return fmt.Errorf("listen on %s: %w", srv.Addr, err)
	}
	logger.Info("Server stopped", zap.String("addr", srv.Addr))
	return nil
}

func healthChecks(mongoClient *mongo.Client, rdb *redis.Client) map[string]handlers.HealthCheck {
	return map[string]handlers.HealthCheck{
		"mongo": func(ctx context.Context) error { return mongoClient.Ping(ctx, nil) },
		"redis": func(ctx context.Context) error { return rdb.Ping(ctx).Err() },
	}
}
