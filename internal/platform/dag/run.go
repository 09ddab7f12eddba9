package dag

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"golang.org/x/sync/errgroup"
)

// State はタスクまたは実行全体の状態です。
type State string

const (
	StatePending        State = "pending"
	StateRunning        State = "running"
	StateSuccess        State = "success"
	StateFailed         State = "failed"
	StateUpstreamFailed State = "upstream_failed"
	StateSkipped        State = "skipped" // 中断により未実行
)

// TaskResult is the final state of one task in a run.
type TaskResult struct {
	ID         string    `json:"id"`
	State      State     `json:"state"`
	Attempts   int       `json:"attempts"`
	Error      string    `json:"error,omitempty"`
	StartedAt  time.Time `json:"started_at,omitzero"`
	FinishedAt time.Time `json:"finished_at,omitzero"`
}

// RunResult is the outcome of one graph run.
type RunResult struct {
	Graph      string       `json:"graph"`
	RunID      string       `json:"run_id"`
	State      State        `json:"state"`
	StartedAt  time.Time    `json:"started_at"`
	FinishedAt time.Time    `json:"finished_at"`
	Tasks      []TaskResult `json:"tasks"`
}

// Succeeded reports whether every task succeeded.
func (r RunResult) Succeeded() bool { return r.State == StateSuccess }

// Task returns the result of the given task.
func (r RunResult) Task(id string) (TaskResult, bool) {
	for _, t := range r.Tasks {
		if t.ID == id {
			return t, true
		}
	}
	return TaskResult{}, false
}

// Run executes the graph once. It validates the graph first and returns an
// error only if it is invalid; task failures are reported in the result.
func (g *Graph) Run(ctx context.Context, runID string) (RunResult, error) {
	layers, err := g.Layers()
	if err != nil {
		return RunResult{}, err
	}

	res := RunResult{Graph: g.name, RunID: runID, StartedAt: time.Now()}
	var mu sync.Mutex
	results := make(map[string]*TaskResult, len(g.tasks))
	for _, id := range g.order {
		results[id] = &TaskResult{ID: id, State: StatePending}
	}
	stateOf := func(id string) State {
		mu.Lock()
		defer mu.Unlock()
		return results[id].State
	}

	slog.Info("dag run started", "dag", g.name, "run_id", runID, "tasks", len(g.tasks))

	for _, layer := range layers {
		var eg errgroup.Group
		eg.SetLimit(g.opts.MaxParallel)

		for _, id := range layer {
			t := g.tasks[id]
			eg.Go(func() error {
				tr := results[id]

				for _, dep := range t.deps {
					if st := stateOf(dep); st != StateSuccess {
						mu.Lock()
						tr.State = StateUpstreamFailed
						tr.Error = fmt.Sprintf("%s: %s is %s", ErrUpstreamFailed, dep, st)
						mu.Unlock()
						slog.Warn("task not run", "dag", g.name, "task", id, "upstream", dep, "upstream_state", st)
						return nil
					}
				}
				if ctx.Err() != nil {
					mu.Lock()
					tr.State = StateSkipped
					mu.Unlock()
					return nil
				}

				state, attempts, started, err := g.runTask(ctx, t, func() {
					mu.Lock()
					tr.State = StateRunning
					mu.Unlock()
				})

				mu.Lock()
				tr.State, tr.Attempts, tr.StartedAt, tr.FinishedAt = state, attempts, started, time.Now()
				if err != nil {
					tr.Error = err.Error()
				}
				mu.Unlock()
				return nil
			})
		}
		_ = eg.Wait()
	}

	res.State = StateSuccess
	for _, id := range g.order {
		tr := *results[id]
		res.Tasks = append(res.Tasks, tr)
		if tr.State != StateSuccess {
			res.State = StateFailed
		}
	}
	res.FinishedAt = time.Now()

	slog.Info("dag run finished", "dag", g.name, "run_id", runID, "state", res.State,
		"elapsed", res.FinishedAt.Sub(res.StartedAt))
	return res, nil
}

// runTask runs one task with its retries.
func (g *Graph) runTask(ctx context.Context, t *task, onStart func()) (State, int, time.Time, error) {
	retries := g.retriesFor(t)
	started := time.Now()
	onStart()

	var err error
	for attempt := 1; attempt <= retries+1; attempt++ {
		slog.Info("task started", "dag", g.name, "task", t.id, "attempt", attempt)
		err = safeRun(ctx, t)
		if err == nil {
			slog.Info("task succeeded", "dag", g.name, "task", t.id, "attempt", attempt)
			return StateSuccess, attempt, started, nil
		}
		if errors.Is(err, context.Canceled) || ctx.Err() != nil {
			slog.Warn("task interrupted", "dag", g.name, "task", t.id, "attempt", attempt, "error", err)
			return StateFailed, attempt, started, err
		}
		if attempt > retries {
			slog.Error("task failed", "dag", g.name, "task", t.id, "attempt", attempt, "error", err)
			return StateFailed, attempt, started, err
		}

		slog.Warn("task failed, retrying", "dag", g.name, "task", t.id, "attempt", attempt,
			"retry_delay", g.opts.RetryDelay, "error", err)
		if werr := wait(ctx, g.opts.RetryDelay); werr != nil {
			return StateFailed, attempt, started, err
		}
	}
	return StateFailed, retries + 1, started, err
}

// safeRun はタスク内のpanicをエラーに変換します。
func safeRun(ctx context.Context, t *task) (err error) {
	defer func() {
		if r := recover(); r != nil {
			err = fmt.Errorf("task %s panicked: %v", t.id, r)
		}
	}()
	return t.run(ctx)
}

func wait(ctx context.Context, d time.Duration) error {
	if d <= 0 {
		return ctx.Err()
	}
	timer := time.NewTimer(d)
	defer timer.Stop()
	select {
	case <-ctx.Done():
		return ctx.Err()
	case <-timer.C:
		return nil
	}
}
