package reconcile

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"go.uber.org/multierr"
	"gorm.io/gorm"

	"github.com/angelmondragon/ordersync-backend/internal/cache"
	"github.com/angelmondragon/ordersync-backend/internal/enrichment"
	"github.com/angelmondragon/ordersync-backend/internal/snapshot"
	"github.com/angelmondragon/ordersync-backend/pkg/db/models"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/metrics"
)

const (
	ModeIncremental = "incremental"
	ModeFull        = "full"
	ModeStock       = "stock"
)

type txRunner interface {
	WithTx(ctx context.Context, fn func(tx *gorm.DB) error) error
}

type referenceLoader interface {
	LoadIndex(ctx context.Context) (enrichment.Lookup, error)
}

type publisher interface {
	PublishOrders(ctx context.Context, gen *cache.OrdersGeneration) error
	PublishStock(ctx context.Context, gen *cache.StockGeneration) error
}

// generationSource installs the newest published generations into the local store.
type generationSource interface {
	Poll(ctx context.Context) (bool, error)
}

// EngineParams wires the refresh engine.
type EngineParams struct {
	Logger     *logger.Logger
	Store      *cache.Store
	Orders     snapshot.OrderProducer
	Stock      snapshot.StockProducer
	References referenceLoader
	Audit      AuditRepository
	Tx         txRunner
	Publisher  publisher
	// Source lets Resume adopt what another worker published before this one diffs.
	Source  generationSource
	Metrics *metrics.ReconcileMetrics
	Now     func() time.Time
}

// Report summarises one refresh.
type Report struct {
	Mode           string   `json:"mode"`
	Generation     uint64   `json:"generation"`
	Lines          int      `json:"lines"`
	Swapped        bool     `json:"swapped"`
	Bootstrap      bool     `json:"bootstrap"`
	ChangedSerials []string `json:"changed_serials,omitempty"`
	RemovedFound   int      `json:"removed_found"`
	RemovedSaved   int      `json:"removed_saved"`
	Warnings       int      `json:"warnings"`
	AuditFailed    bool     `json:"audit_failed"`
	PublishStale   bool     `json:"publish_stale,omitempty"`
}

// Engine refreshes the cache store from the producers. Order refreshes, full or
// incremental, never overlap.
type Engine struct {
	logg       *logger.Logger
	store      *cache.Store
	orders     snapshot.OrderProducer
	stock      snapshot.StockProducer
	references referenceLoader
	audit      AuditRepository
	tx         txRunner
	publisher  publisher
	source     generationSource
	metrics    *metrics.ReconcileMetrics
	now        func() time.Time

	ordersMu sync.Mutex
	stockMu  sync.Mutex
}

// NewEngine validates params and returns an engine.
func NewEngine(params EngineParams) (*Engine, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Store == nil {
		return nil, fmt.Errorf("cache store required")
	}
	if params.Orders == nil {
		return nil, fmt.Errorf("order producer required")
	}
	if params.References == nil {
		return nil, fmt.Errorf("reference loader required")
	}
	if params.Audit == nil {
		return nil, fmt.Errorf("audit repository required")
	}
	if params.Tx == nil {
		return nil, fmt.Errorf("transaction runner required")
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	return &Engine{
		logg:       params.Logger,
		store:      params.Store,
		orders:     params.Orders,
		stock:      params.Stock,
		references: params.References,
		audit:      params.Audit,
		tx:         params.Tx,
		publisher:  params.Publisher,
		source:     params.Source,
		metrics:    params.Metrics,
		now:        now,
	}, nil
}

// Resume installs the newest published generations before this engine starts
// refreshing, so a worker taking over from another one diffs against what readers
// currently see and numbers its generations above it.
func (e *Engine) Resume(ctx context.Context) error {
	if e.source == nil {
		return nil
	}
	e.ordersMu.Lock()
	defer e.ordersMu.Unlock()
	e.stockMu.Lock()
	defer e.stockMu.Unlock()

	installed, err := e.source.Poll(ctx)
	if err != nil {
		return fmt.Errorf("adopt published generations: %w", err)
	}
	fields := map[string]any{"installed": installed}
	if gen := e.store.Orders(); gen != nil {
		fields["orders_generation"] = gen.Number
	}
	if gen := e.store.Stock(); gen != nil {
		fields["stock_generation"] = gen.Number
	}
	e.logg.Info(e.logg.WithFields(ctx, fields), "engine resumed from published generations")
	return nil
}

// RefreshIncremental reconciles a fresh snapshot against the installed generation. When
// nothing changed the store is left untouched.
func (e *Engine) RefreshIncremental(ctx context.Context) (Report, error) {
	e.ordersMu.Lock()
	defer e.ordersMu.Unlock()

	start := e.now()
	ctx = e.logg.WithField(ctx, "mode", ModeIncremental)
	report := Report{Mode: ModeIncremental}

	lines, warnings, err := e.produceOrders(ctx, enrichment.ModeIncremental)
	if err != nil {
		e.metrics.IncRefreshFailure(ModeIncremental)
		return report, err
	}
	report.Warnings = warnings

	// Only a store with nothing installed bootstraps. An installed but empty generation
	// is diffed like any other, so repeated empty snapshots stay a no-op.
	prev := e.store.Orders()
	var outcome Outcome
	if prev == nil {
		outcome = Outcome{Bootstrap: true, Changed: true, Removed: map[string][]snapshot.OrderLine{}}
	} else {
		report.Generation = prev.Number
		report.Lines = len(prev.Lines)
		outcome = Diff(prev.Lines, lines)
	}
	if !outcome.Changed {
		e.metrics.ObserveRefresh(ModeIncremental, e.now().Sub(start))
		e.logg.Debug(ctx, "order snapshot unchanged")
		return report, nil
	}

	report.Bootstrap = outcome.Bootstrap
	report.ChangedSerials = outcome.ChangedSerials
	report.RemovedFound = outcome.RemovedCount()

	if !outcome.Bootstrap && report.RemovedFound > 0 {
		saved, err := e.persistRemoved(ctx, outcome.Removed)
		if err != nil {
			report.AuditFailed = true
			e.metrics.AddReconciled("audit_failed", report.RemovedFound)
			e.logg.Error(ctx, "failed to persist removed lines, installing snapshot anyway", err)
		}
		report.RemovedSaved = saved
		e.metrics.AddReconciled("removed", saved)
	}

	var modified map[string][]snapshot.OrderLine
	if len(outcome.ChangedSerials) > 0 {
		modified = make(map[string][]snapshot.OrderLine, len(outcome.ChangedSerials))
		for _, serial := range outcome.ChangedSerials {
			modified[serial] = outcome.Removed[serial]
		}
	}

	gen := e.store.CommitOrders(lines, modified)
	report.Swapped = true
	report.Generation = gen.Number
	report.Lines = len(gen.Lines)
	report.PublishStale = e.afterOrdersCommit(ctx, gen)
	e.metrics.ObserveRefresh(ModeIncremental, e.now().Sub(start))

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"generation":      gen.Number,
		"lines":           len(gen.Lines),
		"bootstrap":       outcome.Bootstrap,
		"count_changed":   outcome.CountChanged,
		"changed_orders":  len(outcome.ChangedSerials),
		"removed_found":   report.RemovedFound,
		"removed_saved":   report.RemovedSaved,
		"enrich_warnings": warnings,
	}), "order cache refreshed")
	return report, nil
}

// RefreshFull replaces the orders generation unconditionally and clears the
// modified-orders index.
func (e *Engine) RefreshFull(ctx context.Context) (Report, error) {
	e.ordersMu.Lock()
	defer e.ordersMu.Unlock()

	start := e.now()
	ctx = e.logg.WithField(ctx, "mode", ModeFull)
	report := Report{Mode: ModeFull}

	lines, warnings, err := e.produceOrders(ctx, enrichment.ModeFull)
	if err != nil {
		e.metrics.IncRefreshFailure(ModeFull)
		return report, err
	}
	report.Warnings = warnings
	report.Bootstrap = e.store.Orders() == nil

	gen := e.store.CommitOrders(lines, map[string][]snapshot.OrderLine{})
	report.Swapped = true
	report.Generation = gen.Number
	report.Lines = len(gen.Lines)
	report.PublishStale = e.afterOrdersCommit(ctx, gen)
	e.metrics.ObserveRefresh(ModeFull, e.now().Sub(start))

	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"generation":      gen.Number,
		"lines":           len(gen.Lines),
		"enrich_warnings": warnings,
	}), "order cache reloaded")
	return report, nil
}

// RefreshStock replaces the stock generation. It does not wait for order refreshes.
func (e *Engine) RefreshStock(ctx context.Context) (Report, error) {
	e.stockMu.Lock()
	defer e.stockMu.Unlock()

	start := e.now()
	ctx = e.logg.WithField(ctx, "mode", ModeStock)
	report := Report{Mode: ModeStock}

	if e.stock == nil {
		return report, fmt.Errorf("stock producer not configured")
	}
	lines, err := e.stock.ProduceStock(ctx)
	if err != nil {
		e.metrics.IncRefreshFailure(ModeStock)
		return report, fmt.Errorf("produce stock snapshot: %w", err)
	}

	gen := e.store.CommitStock(lines)
	report.Swapped = true
	report.Generation = gen.Number
	report.Lines = len(gen.Lines)
	e.metrics.SetGeneration(ModeStock, gen.Number, len(gen.Lines))
	if e.publisher != nil {
		report.PublishStale = e.publishFailed(ctx, ModeStock, gen.Number, e.publisher.PublishStock(ctx, gen))
	}
	e.metrics.ObserveRefresh(ModeStock, e.now().Sub(start))
	e.logg.Info(e.logg.WithFields(ctx, map[string]any{
		"generation": gen.Number,
		"lines":      len(gen.Lines),
	}), "stock cache reloaded")
	return report, nil
}

func (e *Engine) produceOrders(ctx context.Context, mode enrichment.Mode) ([]snapshot.OrderLine, int, error) {
	raws, err := e.orders.ProduceOrders(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("produce order snapshot: %w", err)
	}
	lookup, err := e.references.LoadIndex(ctx)
	if err != nil {
		return nil, 0, fmt.Errorf("load article reference: %w", err)
	}
	lines, warn := enrichment.New(lookup, e.now).EnrichAll(raws, mode)
	warnings := len(multierr.Errors(warn))
	if warnings > 0 {
		e.metrics.AddWarnings(mode.String(), warnings)
		e.logg.Warn(e.logg.WithFields(ctx, map[string]any{
			"count":  warnings,
			"detail": firstN(multierr.Errors(warn), 5),
		}), "order enrichment warnings")
	}
	return lines, warnings, nil
}

// persistRemoved writes the disappeared lines that are not already recorded, in one
// transaction. It returns how many rows were written.
func (e *Engine) persistRemoved(ctx context.Context, removed map[string][]snapshot.OrderLine) (int, error) {
	serials := make([]string, 0, len(removed))
	for serial, lines := range removed {
		if len(lines) > 0 {
			serials = append(serials, serial)
		}
	}

	saved := 0
	err := e.tx.WithTx(ctx, func(tx *gorm.DB) error {
		audit := e.audit.WithTx(tx)
		existing, err := audit.RemovedForSerials(ctx, serials)
		if err != nil {
			return fmt.Errorf("load recorded removed lines: %w", err)
		}
		seen := make(map[string]bool, len(existing))
		for _, row := range existing {
			seen[snapshot.RemovedKey(row.Serial, row.ArticleCode, row.Quantity.String(), row.Unit)] = true
		}

		rows := make([]models.ModifiedOrderLine, 0)
		for _, serial := range serials {
			for _, line := range removed[serial] {
				key := snapshot.RemovedKey(line.Serial, line.ArticleCode, line.Quantity.String(), line.Unit)
				if seen[key] {
					continue
				}
				seen[key] = true
				rows = append(rows, line.ToModifiedLine(true))
			}
		}
		if err := audit.CreateRemoved(ctx, rows); err != nil {
			return fmt.Errorf("insert removed lines: %w", err)
		}
		saved = len(rows)
		return nil
	})
	if err != nil {
		return 0, err
	}
	return saved, nil
}

func (e *Engine) afterOrdersCommit(ctx context.Context, gen *cache.OrdersGeneration) bool {
	e.metrics.SetGeneration("orders", gen.Number, len(gen.Lines))
	if e.publisher == nil {
		return false
	}
	return e.publishFailed(ctx, "orders", gen.Number, e.publisher.PublishOrders(ctx, gen))
}

// publishFailed logs a publish error and reports whether it was refused as stale.
func (e *Engine) publishFailed(ctx context.Context, slot string, number uint64, err error) bool {
	if err == nil {
		return false
	}
	ctx = e.logg.WithFields(ctx, map[string]any{"slot": slot, "generation": number})
	if errors.Is(err, cache.ErrStaleGeneration) {
		e.logg.Warn(ctx, "newer generation already published by another worker; local generation not shared")
		return true
	}
	e.logg.Error(ctx, "failed to publish generation", err)
	return false
}

func firstN(errs []error, n int) []string {
	if len(errs) < n {
		n = len(errs)
	}
	out := make([]string, 0, n)
	for _, err := range errs[:n] {
		out = append(out, err.Error())
	}
	return out
}
