// Package dag runs a small set of dependent tasks in topological order.
//
// Tasks whose dependencies all succeeded run in the same layer, concurrently
// up to MaxParallel. A failed task is retried; once its attempts are used up
// every task downstream of it ends as upstream_failed without running.
package dag

import (
	"context"
	"fmt"
	"slices"
	"time"
)

// TaskFunc is the unit of work of a task.
type TaskFunc func(ctx context.Context) error

type task struct {
	id      string
	run     TaskFunc
	deps    []string
	retries int // -1 はグラフの既定値を使う
}

// TaskOption configures a task added to a Graph.
type TaskOption func(*task)

// After declares the tasks that must succeed before this one runs.
func After(deps ...string) TaskOption {
	return func(t *task) { t.deps = append(t.deps, deps...) }
}

// WithRetries overrides the graph default retry count for one task.
func WithRetries(n int) TaskOption {
	return func(t *task) { t.retries = max(n, 0) }
}

// Options are graph-wide defaults.
type Options struct {
	Retries     int
	RetryDelay  time.Duration
	MaxParallel int
}

// Graph is a DAG of named tasks. It is not safe for concurrent mutation;
// build it once and run it any number of times.
type Graph struct {
	name  string
	opts  Options
	tasks map[string]*task
	order []string // 追加順
}

// New creates an empty graph.
func New(name string, opts Options) *Graph {
	if opts.MaxParallel <= 0 {
		opts.MaxParallel = 1
	}
	if opts.Retries < 0 {
		opts.Retries = 0
	}
	return &Graph{name: name, opts: opts, tasks: map[string]*task{}}
}

// Name returns the graph name.
func (g *Graph) Name() string { return g.name }

// Add registers a task.
func (g *Graph) Add(id string, run TaskFunc, opts ...TaskOption) error {
	if _, ok := g.tasks[id]; ok {
		return fmt.Errorf("%w: %s", ErrDuplicateTask, id)
	}
	t := &task{id: id, run: run, retries: -1}
	for _, opt := range opts {
		opt(t)
	}
	g.tasks[id] = t
	g.order = append(g.order, id)
	return nil
}

// TaskIDs returns task ids in insertion order.
func (g *Graph) TaskIDs() []string {
	return slices.Clone(g.order)
}

// Layers validates the graph and groups tasks into execution layers.
// Every task appears in a later layer than all of its dependencies.
func (g *Graph) Layers() ([][]string, error) {
	indegree := make(map[string]int, len(g.tasks))
	children := make(map[string][]string, len(g.tasks))
	for _, id := range g.order {
		t := g.tasks[id]
		for _, dep := range t.deps {
			if _, ok := g.tasks[dep]; !ok {
				return nil, fmt.Errorf("%w: %s depends on %s", ErrUnknownDependency, id, dep)
			}
			indegree[id]++
			children[dep] = append(children[dep], id)
		}
	}

	var layers [][]string
	var current []string
	for _, id := range g.order {
		if indegree[id] == 0 {
			current = append(current, id)
		}
	}

	placed := 0
	for len(current) > 0 {
		layers = append(layers, current)
		placed += len(current)

		var next []string
		for _, id := range current {
			for _, child := range children[id] {
				indegree[child]--
				if indegree[child] == 0 {
					next = append(next, child)
				}
			}
		}
		current = next
	}

	if placed != len(g.tasks) {
		var stuck []string
		for _, id := range g.order {
			if indegree[id] > 0 {
				stuck = append(stuck, id)
			}
		}
		return nil, fmt.Errorf("%w: %v", ErrCycle, stuck)
	}
	return layers, nil
}

func (g *Graph) retriesFor(t *task) int {
	if t.retries >= 0 {
		return t.retries
	}
	return g.opts.Retries
}
