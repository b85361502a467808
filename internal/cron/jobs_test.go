package cron

import (
	"context"
	"errors"
	"testing"

	"github.com/angelmondragon/ordersync-backend/internal/reconcile"
	"github.com/angelmondragon/ordersync-backend/pkg/logger"
)

type fakeEngine struct {
	calls []string
	err   error
}

func (f *fakeEngine) RefreshIncremental(context.Context) (reconcile.Report, error) {
	f.calls = append(f.calls, reconcile.ModeIncremental)
	return reconcile.Report{Mode: reconcile.ModeIncremental}, f.err
}

func (f *fakeEngine) RefreshFull(context.Context) (reconcile.Report, error) {
	f.calls = append(f.calls, reconcile.ModeFull)
	return reconcile.Report{Mode: reconcile.ModeFull, Swapped: true}, f.err
}

func (f *fakeEngine) RefreshStock(context.Context) (reconcile.Report, error) {
	f.calls = append(f.calls, reconcile.ModeStock)
	return reconcile.Report{Mode: reconcile.ModeStock, Swapped: true}, f.err
}

type fakeFlag struct {
	pending bool
	err     error
}

func (f *fakeFlag) Consume(context.Context) (bool, error) {
	pending := f.pending
	f.pending = false
	return pending, f.err
}

func TestIncrementalJobHonoursReloadRequest(t *testing.T) {
	engine := &fakeEngine{}
	flag := &fakeFlag{pending: true}
	job, err := NewIncrementalJob(JobParams{Logger: logger.Nop(), Engine: engine, Reloads: flag})
	if err != nil {
		t.Fatalf("build job: %v", err)
	}
	ctx := context.Background()
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if err := job.Run(ctx); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(engine.calls) != 2 || engine.calls[0] != reconcile.ModeFull || engine.calls[1] != reconcile.ModeIncremental {
		t.Fatalf("unexpected calls %v", engine.calls)
	}
}

func TestIncrementalJobFallsBackWhenFlagUnreadable(t *testing.T) {
	engine := &fakeEngine{}
	job, _ := NewIncrementalJob(JobParams{Logger: logger.Nop(), Engine: engine, Reloads: &fakeFlag{err: errors.New("redis down")}})
	if err := job.Run(context.Background()); err != nil {
		t.Fatalf("run: %v", err)
	}
	if len(engine.calls) != 1 || engine.calls[0] != reconcile.ModeIncremental {
		t.Fatalf("unexpected calls %v", engine.calls)
	}
}

func TestJobsPropagateEngineErrors(t *testing.T) {
	engine := &fakeEngine{err: errors.New("producer failed")}
	full, _ := NewFullReloadJob(JobParams{Logger: logger.Nop(), Engine: engine})
	stock, _ := NewStockJob(JobParams{Logger: logger.Nop(), Engine: engine})

	if err := full.Run(context.Background()); err == nil {
		t.Fatal("expected full reload error")
	}
	if err := stock.Run(context.Background()); err == nil {
		t.Fatal("expected stock error")
	}
	if full.Name() != JobOrdersFull || stock.Name() != JobStock {
		t.Fatalf("unexpected job names %s %s", full.Name(), stock.Name())
	}
}

func TestJobParamsValidate(t *testing.T) {
	if _, err := NewStockJob(JobParams{Logger: logger.Nop()}); err == nil {
		t.Fatal("expected missing engine to fail")
	}
}
