// Package scheduler triggers jobs on a cron schedule. A job never overlaps
// with itself: a tick that fires while the previous run is active is skipped.
package scheduler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/robfig/cron/v3"
)

// Job is the work triggered on each tick.
type Job func(ctx context.Context)

// Scheduler wraps a cron.Cron bound to a parent context.
type Scheduler struct {
	cron *cron.Cron
	ctx  context.Context

	mu      sync.Mutex
	running map[string]*sync.Mutex
}

// New creates a scheduler whose jobs receive ctx.
func New(ctx context.Context) *Scheduler {
	logger := slogLogger{}
	return &Scheduler{
		cron: cron.New(
			cron.WithLogger(logger),
			cron.WithChain(cron.Recover(logger), cron.SkipIfStillRunning(logger)),
		),
		ctx:     ctx,
		running: map[string]*sync.Mutex{},
	}
}

// Register adds a job under a standard cron spec ("@every 6h", "0 */6 * * *").
// The parsed schedule is returned so callers can compute the next run.
func (s *Scheduler) Register(name, spec string, job Job) (cron.Schedule, error) {
	sched, err := cron.ParseStandard(spec)
	if err != nil {
		return nil, fmt.Errorf("parse schedule %q: %w", spec, err)
	}
	s.cron.Schedule(sched, cron.FuncJob(func() {
		s.Trigger(name, job)
	}))
	slog.Info("job registered", "job", name, "schedule", spec, "next_run", sched.Next(time.Now()))
	return sched, nil
}

// Trigger runs job now unless a run of the same name is still active.
// It reports whether the job ran.
func (s *Scheduler) Trigger(name string, job Job) bool {
	guard := s.guard(name)
	if !guard.TryLock() {
		slog.Warn("job still running, skipping", "job", name)
		return false
	}
	defer guard.Unlock()

	if s.ctx.Err() != nil {
		return false
	}
	slog.Info("job triggered", "job", name)
	job(s.ctx)
	return true
}

func (s *Scheduler) guard(name string) *sync.Mutex {
	s.mu.Lock()
	defer s.mu.Unlock()
	g, ok := s.running[name]
	if !ok {
		g = &sync.Mutex{}
		s.running[name] = g
	}
	return g
}

// Start starts the cron scheduler in its own goroutine.
func (s *Scheduler) Start() {
	s.cron.Start()
	slog.Info("scheduler started")
}

// Stop stops scheduling and waits for running jobs to finish or ctx to end.
func (s *Scheduler) Stop(ctx context.Context) {
	done := s.cron.Stop()
	select {
	case <-done.Done():
	case <-ctx.Done():
		slog.Warn("scheduler stop timed out with jobs still running")
	}
	slog.Info("scheduler stopped")
}

// slogLogger は cron.Logger を slog に流します。
type slogLogger struct{}

func (slogLogger) Info(msg string, keysAndValues ...any) {
	slog.Debug("cron: "+msg, keysAndValues...)
}

func (slogLogger) Error(err error, msg string, keysAndValues ...any) {
	slog.Error("cron: "+msg, append(keysAndValues, "error", err)...)
}
