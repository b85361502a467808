package cron

import (
	"context"
	"fmt"

	"github.com/angelmondragon/ordersync-backend/internal/reconcile"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

const (
	JobOrdersIncremental = "orders-incremental"
	JobOrdersFull        = "orders-full"
	JobStock             = "stock"
)

type refresher interface {
	RefreshIncremental(ctx context.Context) (reconcile.Report, error)
	RefreshFull(ctx context.Context) (reconcile.Report, error)
	RefreshStock(ctx context.Context) (reconcile.Report, error)
}

type reloadFlag interface {
	Consume(ctx context.Context) (bool, error)
}

// JobParams wires the sync jobs to the reconciliation engine.
type JobParams struct {
	Logger  *logger.Logger
	Engine  refresher
	Reloads reloadFlag
}

func (p JobParams) validate() error {
	if p.Logger == nil {
		return fmt.Errorf("logger required")
	}
	if p.Engine == nil {
		return fmt.Errorf("engine required")
	}
	return nil
}

type incrementalJob struct {
	logg    *logger.Logger
	engine  refresher
	reloads reloadFlag
}

// NewIncrementalJob reconciles orders on every tick. A pending reload request
// turns the tick into a full reload.
func NewIncrementalJob(params JobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &incrementalJob{logg: params.Logger, engine: params.Engine, reloads: params.Reloads}, nil
}

func (j *incrementalJob) Name() string { return JobOrdersIncremental }

func (j *incrementalJob) Run(ctx context.Context) error {
	if j.reloads != nil {
		requested, err := j.reloads.Consume(ctx)
		if err != nil {
			j.logg.Error(ctx, "failed to read reload request", err)
		}
		if requested {
			j.logg.Info(ctx, "reload requested; running full order reload")
			report, err := j.engine.RefreshFull(ctx)
			logReport(ctx, j.logg, report, err)
			return err
		}
	}
	report, err := j.engine.RefreshIncremental(ctx)
	logReport(ctx, j.logg, report, err)
	return err
}

type fullJob struct {
	logg   *logger.Logger
	engine refresher
}

// NewFullReloadJob replaces the order cache wholesale.
func NewFullReloadJob(params JobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &fullJob{logg: params.Logger, engine: params.Engine}, nil
}

func (j *fullJob) Name() string { return JobOrdersFull }

func (j *fullJob) Run(ctx context.Context) error {
	report, err := j.engine.RefreshFull(ctx)
	logReport(ctx, j.logg, report, err)
	return err
}

type stockJob struct {
	logg   *logger.Logger
	engine refresher
}

// NewStockJob reloads the stock cache.
func NewStockJob(params JobParams) (Job, error) {
	if err := params.validate(); err != nil {
		return nil, err
	}
	return &stockJob{logg: params.Logger, engine: params.Engine}, nil
}

func (j *stockJob) Name() string { return JobStock }

func (j *stockJob) Run(ctx context.Context) error {
	report, err := j.engine.RefreshStock(ctx)
	logReport(ctx, j.logg, report, err)
	return err
}

func logReport(ctx context.Context, logg *logger.Logger, report reconcile.Report, err error) {
	if err != nil {
		return
	}
	if !report.Swapped {
		logg.Debug(ctx, "no changes detected")
		return
	}
	ctx = logg.WithFields(ctx, map[string]any{
		"mode":            report.Mode,
		"generation":      report.Generation,
		"lines":           report.Lines,
		"changed_serials": len(report.ChangedSerials),
		"removed_saved":   report.RemovedSaved,
	})
	logg.Info(ctx, "cache refreshed")
}
