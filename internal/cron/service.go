package cron

import (
	"context"
	"fmt"
	"sync"
	"time"

	"github.com/angelmondragon/ordersync-backend/pkg/logger"
	"github.com/angelmondragon/ordersync-backend/pkg/metrics"
)

// ServiceParams configure the scheduler.
type ServiceParams struct {
	Logger   *logger.Logger
	Registry *Registry
	Locks    LockFactory
	Metrics  *metrics.JobMetrics
	Now      func() time.Time
	// LockRefresh is how often a held lease is extended while its job runs.
	LockRefresh time.Duration

	// Leader, when set, is held for as long as this process schedules jobs. Processes
	// without it stand by and retry every LeaderRefresh.
	Leader        LeaderLock
	LeaderRefresh time.Duration
	// OnLead runs after leadership is won and before any job starts. An error gives
	// the lease back.
	OnLead func(ctx context.Context) error
}

// Service runs every registered job on its own schedule. Each job has its own
// goroutine, so a slow order reload never delays the stock reload, and a job
// never overlaps itself inside one process.
type Service struct {
	logg     *logger.Logger
	registry *Registry
	locks    LockFactory
	metrics  *metrics.JobMetrics
	now      func() time.Time
	refresh  time.Duration

	leader        LeaderLock
	leaderRefresh time.Duration
	onLead        func(ctx context.Context) error
}

// NewService builds the scheduler.
func NewService(params ServiceParams) (*Service, error) {
	if params.Logger == nil {
		return nil, fmt.Errorf("logger required")
	}
	if params.Locks == nil {
		return nil, fmt.Errorf("lock factory required")
	}
	registry := params.Registry
	if registry == nil {
		registry = NewRegistry()
	}
	now := params.Now
	if now == nil {
		now = time.Now
	}
	refresh := params.LockRefresh
	if refresh <= 0 {
		refresh = defaultLockTTL / 3
	}
	leaderRefresh := params.LeaderRefresh
	if leaderRefresh <= 0 {
		leaderRefresh = defaultLeaderTTL / 3
	}
	return &Service{
		logg:     params.Logger,
		registry: registry,
		locks:    params.Locks,
		metrics:  params.Metrics,
		now:      now,
		refresh:  refresh,

		leader:        params.Leader,
		leaderRefresh: leaderRefresh,
		onLead:        params.OnLead,
	}, nil
}

// Run blocks until the context is canceled. With a leader lock it only runs the jobs
// while it holds the lease; otherwise it runs them straight away.
func (s *Service) Run(ctx context.Context) error {
	if ctx == nil {
		ctx = context.Background()
	}
	if s.leader == nil {
		s.runJobs(ctx)
	} else {
		s.campaign(ctx)
	}
	s.logg.Info(ctx, "scheduler context canceled")
	return ctx.Err()
}

func (s *Service) campaign(ctx context.Context) {
	ctx = s.logg.WithField(ctx, "component", "scheduler-leader")
	standby := false
	for {
		held, err := s.leader.Acquire(ctx)
		switch {
		case err != nil:
			if ctx.Err() == nil {
				s.logg.Error(ctx, "leader lease acquire failed", err)
			}
		case held:
			standby = false
			s.term(ctx)
		case !standby:
			standby = true
			s.logg.Info(ctx, "another scheduler is leading; standing by")
		}

		timer := time.NewTimer(s.leaderRefresh)
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
	}
}

// term runs the jobs for one leadership term. It returns when the lease is lost or ctx
// is canceled, after every job loop has stopped and the lease is released.
func (s *Service) term(ctx context.Context) {
	termCtx, cancel := context.WithCancel(ctx)
	defer cancel()
	defer func() {
		if err := s.leader.Release(context.WithoutCancel(ctx)); err != nil {
			s.logg.Error(ctx, "failed to release leader lease", err)
		}
	}()

	s.logg.Info(ctx, "scheduler leadership acquired")
	stop := s.keepLease(termCtx, s.leader, cancel)
	defer stop()

	if s.onLead != nil {
		if err := s.onLead(termCtx); err != nil {
			s.logg.Error(ctx, "failed to prepare leadership term; stepping down", err)
			return
		}
	}
	s.runJobs(termCtx)
	if ctx.Err() == nil {
		s.logg.Warn(ctx, "scheduler leadership lost; jobs stopped")
	}
}

func (s *Service) runJobs(ctx context.Context) {
	var wg sync.WaitGroup
	for _, entry := range s.registry.Entries() {
		wg.Add(1)
		go func(entry Entry) {
			defer wg.Done()
			s.loop(ctx, entry)
		}(entry)
	}
	<-ctx.Done()
	wg.Wait()
}

func (s *Service) loop(ctx context.Context, entry Entry) {
	jobCtx := s.logg.WithJob(ctx, entry.Job.Name())
	next := entry.Schedule.Next(s.now())
	if entry.AtStartup {
		next = s.now()
	}
	for {
		if next.IsZero() {
			s.logg.Info(jobCtx, "job has no upcoming run; loop stopped")
			return
		}
		timer := time.NewTimer(time.Until(next))
		select {
		case <-ctx.Done():
			timer.Stop()
			return
		case <-timer.C:
		}
		s.execute(jobCtx, entry.Job)
		next = entry.Schedule.Next(s.now())
	}
}

// execute runs one job under its cross-process lock. It reports whether the
// job ran.
func (s *Service) execute(ctx context.Context, job Job) bool {
	lock, err := s.locks(job.Name())
	if err != nil {
		s.logg.Error(ctx, "failed to build job lock", err)
		s.metrics.IncFailure(job.Name())
		return false
	}
	locked, err := lock.Acquire(ctx)
	if err != nil {
		s.logg.Error(ctx, "lock acquire failed", err)
		s.metrics.IncFailure(job.Name())
		return false
	}
	if !locked {
		s.logg.Info(ctx, "another sync worker holds the job lock; skipping this run")
		s.metrics.IncSkipped(job.Name())
		return false
	}
	defer func() {
		if relErr := lock.Release(context.WithoutCancel(ctx)); relErr != nil {
			s.logg.Error(ctx, "failed to release job lock", relErr)
		}
	}()
	if refresher, ok := lock.(Refresher); ok {
		stop := s.keepLease(ctx, refresher, nil)
		defer stop()
	}

	jobCtx := s.logg.WithField(ctx, "event", "cron.job")
	s.logg.Debug(jobCtx, "job start")
	start := s.now()
	err = job.Run(jobCtx)
	duration := s.now().Sub(start)
	s.metrics.ObserveDuration(job.Name(), duration)
	jobCtx = s.logg.WithField(jobCtx, "duration_ms", duration.Milliseconds())
	if err != nil {
		s.logg.Error(jobCtx, "job failed", err)
		s.metrics.IncFailure(job.Name())
		return true
	}
	s.logg.Debug(jobCtx, "job completed")
	s.metrics.IncSuccess(job.Name())
	return true
}

// keepLease extends the lock until stop is called. A lost lease is logged and reported
// to onLost when set; a running job lock is left to finish since its writes are
// idempotent. With onLost, two refresh errors in a row also count as lost, because the
// lease may expire before a third attempt.
func (s *Service) keepLease(ctx context.Context, lock Refresher, onLost func()) (stop func()) {
	interval := s.refresh
	if onLost != nil {
		interval = s.leaderRefresh
	}
	leaseCtx, cancel := context.WithCancel(ctx)
	var wg sync.WaitGroup
	wg.Add(1)
	go func() {
		defer wg.Done()
		ticker := time.NewTicker(interval)
		defer ticker.Stop()
		failures := 0
		for {
			select {
			case <-leaseCtx.Done():
				return
			case <-ticker.C:
				held, err := lock.Refresh(leaseCtx)
				if err != nil {
					if leaseCtx.Err() != nil {
						return
					}
					s.logg.Error(leaseCtx, "lock refresh failed", err)
					failures++
					if onLost != nil && failures >= 2 {
						onLost()
						return
					}
					continue
				}
				failures = 0
				if !held {
					s.logg.Warn(leaseCtx, "lock lease lost while held")
					if onLost != nil {
						onLost()
					}
					return
				}
			}
		}
	}()
	return func() {
		cancel()
		wg.Wait()
	}
}
