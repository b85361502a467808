package cron

import (
	"context"
	"fmt"

	"github.com/prometheus/client_golang/prometheus"

	"github.com/angelmondragon/ordersync-backend/internal/articles"
	"github.com/angelmondragon/ordersync-backend/internal/cache"
	"github.com/angelmondragon/ordersync-backend/internal/reconcile"
	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/pkg/config"
	"github.com/angelmondragon/ordersync-backend/pkg/db"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/metrics"
	"github.com/angelmondragon/ordersync-backend/pkg/redis"
)

// ReloadRequestName is the request flag raised after an article import.
const ReloadRequestName = "orders-full-reload"

// WorkerParams wires the scheduler used by cmd/sync-worker and by the API when the
// scheduler is embedded.
type WorkerParams struct {
	Config     *config.Config
	Logger     *logger.Logger
	DB         *db.Client
	Redis      *redis.Client
	Store      *cache.Store
	Articles   *articles.Service
	Registerer prometheus.Registerer
}

// Worker is a ready-to-run scheduler plus the engine it drives. Follower keeps the
// store current while this process is not the leading scheduler.
type Worker struct {
	Service  *Service
	Engine   *reconcile.Engine
	Follower *cache.Follower
}

// NewWorker builds producers, engine, publisher and jobs from configuration. The store
// is seeded from the last published generations so followers accept what comes next.
func NewWorker(ctx context.Context, params WorkerParams) (*Worker, error) {
	cfg := params.Config
	logg := params.Logger
	if cfg == nil {
		return nil, fmt.Errorf("config required")
	}
	if logg == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.DB == nil {
		return nil, fmt.Errorf("db client required")
	}
	if params.Redis == nil {
		return nil, fmt.Errorf("redis client required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("cache store required")
	}

	publisher, err := cache.NewPublisher(params.Redis, cfg.Publish.KeyPrefix, cfg.Publish.PayloadTTL)
	if err != nil {
		return nil, fmt.Errorf("cache publisher: %w", err)
	}
	follower, err := cache.NewFollower(cache.FollowerParams{
		Logger:   logg,
		Store:    params.Store,
		Redis:    params.Redis,
		Prefix:   cfg.Publish.KeyPrefix,
		Interval: cfg.Publish.FollowInterval,
	})
	if err != nil {
		return nil, fmt.Errorf("cache follower: %w", err)
	}
	orders, stock, err := publisher.LastPublished(ctx)
	if err != nil {
		logg.Warn(logg.WithField(ctx, "error", err.Error()), "could not read last published generations")
	} else {
		params.Store.Seed(orders, stock)
	}

	syncCfg := cfg.Sync
	ordersProducer, err := snapshot.NewScriptProducer(snapshot.ScriptParams{
		Logger:        logg,
		Name:          "orders",
		Command:       syncCfg.OrdersCommand,
		OutputPath:    syncCfg.OrdersOutput,
		Env:           []string{"ORDERS_FROM_DATE=" + syncCfg.OrdersFromDate},
		Timeout:       syncCfg.ProducerTimeout,
		RetryAttempts: syncCfg.RetryAttempts,
		RetryBase:     syncCfg.RetryBase,
		RetryCap:      syncCfg.RetryCap,
	})
	if err != nil {
		return nil, fmt.Errorf("orders producer: %w", err)
	}
	stockProducer, err := snapshot.NewScriptProducer(snapshot.ScriptParams{
		Logger:        logg,
		Name:          "stock",
		Command:       syncCfg.StockCommand,
		OutputPath:    syncCfg.StockOutput,
		Timeout:       syncCfg.ProducerTimeout,
		RetryAttempts: syncCfg.RetryAttempts,
		RetryBase:     syncCfg.RetryBase,
		RetryCap:      syncCfg.RetryCap,
	})
	if err != nil {
		return nil, fmt.Errorf("stock producer: %w", err)
	}

	references := params.Articles
	if references == nil {
		references, err = articles.NewService(articles.ServiceParams{
			Logger: logg,
			Repo:   articles.NewRepository(params.DB.DB()),
			Tx:     params.DB,
		})
		if err != nil {
			return nil, fmt.Errorf("articles service: %w", err)
		}
	}

	engine, err := reconcile.NewEngine(reconcile.EngineParams{
		Logger:     logg,
		Store:      params.Store,
		Orders:     ordersProducer,
		Stock:      stockProducer,
		References: references,
		Audit:      reconcile.NewAuditRepository(params.DB.DB()),
		Tx:         params.DB,
		Publisher:  publisher,
		Source:     follower,
		Metrics:    metrics.NewReconcileMetrics(params.Registerer),
	})
	if err != nil {
		return nil, fmt.Errorf("reconcile engine: %w", err)
	}

	reloads, err := reconcile.NewReloadRequests(params.Redis, params.Redis.RequestKey(ReloadRequestName))
	if err != nil {
		return nil, fmt.Errorf("reload requests: %w", err)
	}

	jobParams := JobParams{Logger: logg, Engine: engine, Reloads: reloads}
	incremental, err := NewIncrementalJob(jobParams)
	if err != nil {
		return nil, err
	}
	full, err := NewFullReloadJob(jobParams)
	if err != nil {
		return nil, err
	}
	stockJob, err := NewStockJob(jobParams)
	if err != nil {
		return nil, err
	}

	loc := syncCfg.Location()
	fullSchedule, err := DailyOrCron(syncCfg.FullReloadCron, syncCfg.FullReloadHours, loc)
	if err != nil {
		return nil, fmt.Errorf("full reload schedule: %w", err)
	}
	stockSchedule, err := DailyOrCron(syncCfg.StockReloadCron, syncCfg.StockReloadHours, loc)
	if err != nil {
		return nil, fmt.Errorf("stock reload schedule: %w", err)
	}
	registry := NewRegistry(
		Entry{Job: incremental, Schedule: Every(syncCfg.IncrementalEvery), AtStartup: true},
		Entry{Job: full, Schedule: fullSchedule},
		Entry{Job: stockJob, Schedule: stockSchedule, AtStartup: true},
	)

	env := cfg.App.Env
	if env == "" {
		env = "local"
	}
	client := params.Redis
	locks := RedisLocks(client, func(job string) string { return client.LockKey(env, job) }, 0)
	leaderTTL := syncCfg.LeaderTTL
	if leaderTTL <= 0 {
		leaderTTL = defaultLeaderTTL
	}
	leader, err := NewRedisLock(client, client.LeaderKey(env), leaderTTL)
	if err != nil {
		return nil, fmt.Errorf("leader lock: %w", err)
	}

	service, err := NewService(ServiceParams{
		Logger:        logg,
		Registry:      registry,
		Locks:         locks,
		Metrics:       metrics.NewJobMetrics(params.Registerer),
		Leader:        leader,
		LeaderRefresh: leaderTTL / 3,
		OnLead:        engine.Resume,
	})
	if err != nil {
		return nil, fmt.Errorf("cron service: %w", err)
	}
	return &Worker{Service: service, Engine: engine, Follower: follower}, nil
}
