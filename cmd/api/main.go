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

	"github.com/angelmondragon/ordersync-backend/api/routes"
	"github.com/angelmondragon/ordersync-backend/internal/articles"
	"github.com/angelmondragon/ordersync-backend/internal/board"
	"github.com/angelmondragon/ordersync-backend/internal/cache"
	"github.com/angelmondragon/ordersync-backend/internal/cron"
	"github.com/angelmondragon/ordersync-backend/internal/orders"
	"github.com/angelmondragon/ordersync-backend/internal/reconcile"
	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/internal/status"
	"github.com/angelmondragon/ordersync-backend/pkg/config"
	"github.com/angelmondragon/ordersync-backend/pkg/db"
	"github.com/angelmondragon/ordersync-backend/pkg/instance"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/migrate"
	"github.com/angelmondragon/ordersync-backend/pkg/redis"
)

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

	registry := prometheus.NewRegistry()
	registry.MustRegister(collectors.NewGoCollector(), collectors.NewProcessCollector(collectors.ProcessCollectorOpts{}))

	store := cache.NewStore()
	statusRepo := status.NewRepository(dbClient.DB())

	statusService, err := status.NewService(status.ServiceParams{
		Logger: logg,
		Repo:   statusRepo,
		Lines:  store,
		Tx:     dbClient,
	})
	requireResource(logg, "status service", err)

	ordersService, err := orders.NewService(orders.ServiceParams{
		Logger: logg,
		Repo:   orders.NewRepository(dbClient.DB()),
		Cache:  store,
		Status: statusService,
		Tx:     dbClient,
	})
	requireResource(logg, "orders service", err)

	boardService, err := board.NewService(store, statusRepo, nil)
	requireResource(logg, "board service", err)

	articleProducer, err := snapshot.NewScriptProducer(snapshot.ScriptParams{
		Logger:        logg,
		Name:          "articles",
		Command:       cfg.Sync.ArticlesCommand,
		OutputPath:    cfg.Sync.ArticlesOutput,
		Timeout:       cfg.Sync.ProducerTimeout,
		RetryAttempts: cfg.Sync.RetryAttempts,
		RetryBase:     cfg.Sync.RetryBase,
		RetryCap:      cfg.Sync.RetryCap,
	})
	requireResource(logg, "articles producer", err)

	articlesService, err := articles.NewService(articles.ServiceParams{
		Logger:   logg,
		Repo:     articles.NewRepository(dbClient.DB()),
		Producer: articleProducer,
		Tx:       dbClient,
	})
	requireResource(logg, "articles service", err)

	reloads, err := reconcile.NewReloadRequests(redisClient, redisClient.RequestKey(cron.ReloadRequestName))
	requireResource(logg, "reload requests", err)

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	port := os.Getenv("PORT")
	if port == "" {
		port = cfg.App.Port
	}
	addr := ":" + port
	ctx = logg.WithFields(ctx, map[string]any{
		"env":      cfg.App.Env,
		"addr":     addr,
		"instance": instance.ID(),
		"embedded": cfg.Sync.Embedded,
	})

	// Every replica follows what the leading scheduler publishes. With the scheduler
	// embedded, one replica at a time also leads and refreshes the store itself.
	follower, err := cache.NewFollower(cache.FollowerParams{
		Logger:   logg,
		Store:    store,
		Redis:    redisClient,
		Prefix:   cfg.Publish.KeyPrefix,
		Interval: cfg.Publish.FollowInterval,
	})
	requireResource(logg, "cache follower", err)
	if cfg.Sync.Embedded {
		worker, err := cron.NewWorker(ctx, cron.WorkerParams{
			Config:     cfg,
			Logger:     logg,
			DB:         dbClient,
			Redis:      redisClient,
			Store:      store,
			Articles:   articlesService,
			Registerer: registry,
		})
		requireResource(logg, "embedded sync worker", err)
		go func() {
			if err := worker.Service.Run(ctx); err != nil && !errors.Is(err, context.Canceled) {
				logg.Error(ctx, "embedded scheduler stopped unexpectedly", err)
			}
		}()
	}
	go func() {
		if err := follower.Run(ctx); err != nil {
			logg.Error(ctx, "cache follower stopped unexpectedly", err)
		}
	}()

	server := &http.Server{
		Addr: addr,
		Handler: routes.NewRouter(routes.Deps{
			Config:   cfg,
			Logger:   logg,
			DB:       dbClient,
			Redis:    redisClient,
			Cache:    store,
			Gatherer: registry,
			Orders:   ordersService,
			Residues: statusService,
			Board:    boardService,
			Articles: articlesService,
			Reloads:  reloads,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	go func() {
		<-ctx.Done()
		shutdownCtx, cancel := context.WithTimeout(context.WithoutCancel(ctx), 10*time.Second)
		defer cancel()
		if err := server.Shutdown(shutdownCtx); err != nil {
			logg.Error(shutdownCtx, "api server shutdown failed", err)
		}
	}()

	logg.Info(ctx, "starting api server")

	if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
		logg.Error(ctx, "api server stopped unexpectedly", err)
		os.Exit(1)
	}

	logg.Info(ctx, "api server shutting down gracefully")
}

func requireResource(logg *logger.Logger, resource string, err error) {
	if err == nil {
		return
	}
	logg.Error(context.Background(), "failed to create "+resource, err)
	os.Exit(1)
}
