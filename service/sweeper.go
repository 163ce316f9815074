package service

import (
	"context"
	"log/slog"
	"sync"
	"sync/atomic"
	"time"
)

// SweepFunc removes stale entries and reports how many went away
type SweepFunc func(ctx context.Context) (int, error)

type sweepJob struct {
	name     string
	interval time.Duration
	sweep    SweepFunc
	running  atomic.Bool
}

// Sweeper runs periodic cleanup jobs until its context ends. A job whose
// previous run is still in progress skips the tick.
type Sweeper struct {
	logger *slog.Logger
	jobs   []*sweepJob
	wg     sync.WaitGroup
}

// NewSweeper creates a sweeper with no jobs
func NewSweeper(logger *slog.Logger) *Sweeper {
	return &Sweeper{logger: logger}
}

// Add registers a job. It must be called before Start.
func (s *Sweeper) Add(name string, interval time.Duration, sweep SweepFunc) {
	s.jobs = append(s.jobs, &sweepJob{name: name, interval: interval, sweep: sweep})
}

// Start launches one goroutine per job
func (s *Sweeper) Start(ctx context.Context) {
	for _, job := range s.jobs {
		s.wg.Add(1)
		go s.loop(ctx, job)
	}
	s.logger.Info("sweeper started", "jobs", len(s.jobs))
}

// Wait blocks until every job loop has returned
func (s *Sweeper) Wait() {
	s.wg.Wait()
}

func (s *Sweeper) loop(ctx context.Context, job *sweepJob) {
	defer s.wg.Done()

	ticker := time.NewTicker(job.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			return
		case <-ticker.C:
			s.run(ctx, job)
		}
	}
}

// RunOnce runs every job a single time, respecting the overlap guard
func (s *Sweeper) RunOnce(ctx context.Context) {
	for _, job := range s.jobs {
		s.run(ctx, job)
	}
}

func (s *Sweeper) run(ctx context.Context, job *sweepJob) {
	if !job.running.CompareAndSwap(false, true) {
		s.logger.Debug("sweep still running, skipping tick", "job", job.name)
		return
	}
	defer job.running.Store(false)

	start := time.Now()
	removed, err := job.sweep(ctx)
	if err != nil {
		s.logger.Error("sweep failed", "job", job.name, "error", err)
		return
	}
	if removed > 0 {
		s.logger.Info("sweep completed",
			"job", job.name,
			"removed", removed,
			"duration", time.Since(start),
		)
	}
}
