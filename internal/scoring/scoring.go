package scoring

import (
	"context"
	"fmt"
	"sort"

	"golang.org/x/sync/errgroup"
)

// Task scores the i-th candidate. It stores its own result and never fails the batch.
type Task func(ctx context.Context, i int)

// Strategy decides how the candidates of one request are scored.
type Strategy interface {
	Name() string
	// Run calls task for indexes [0, n). It stops launching tasks once ctx is done
	// and then returns ctx.Err().
	Run(ctx context.Context, n int, task Task) error
}

// Sequential scores candidates one after another in index order.
type Sequential struct{}

// Name implements Strategy.
func (Sequential) Name() string { return "sequential" }

// Run implements Strategy.
func (Sequential) Run(ctx context.Context, n int, task Task) error {
	for i := 0; i < n; i++ {
		if err := ctx.Err(); err != nil {
			return err
		}
		task(ctx, i)
	}
	return ctx.Err()
}

// Parallel scores up to MaxConcurrency candidates at once.
type Parallel struct {
	MaxConcurrency int
}

// Name implements Strategy.
func (Parallel) Name() string { return "parallel" }

// Run implements Strategy.
func (p Parallel) Run(ctx context.Context, n int, task Task) error {
	limit := p.MaxConcurrency
	if limit < 1 {
		limit = 1
	}

	// A plain group: one task ending early must not cancel its siblings.
	var g errgroup.Group
	g.SetLimit(limit)
	for i := 0; i < n; i++ {
		if ctx.Err() != nil {
			break
		}
		g.Go(func() error {
			if ctx.Err() != nil {
				return nil
			}
			task(ctx, i)
			return nil
		})
	}
	_ = g.Wait()
	return ctx.Err()
}

// Registry keeps a mapping from strategy names to their implementations.
type Registry struct {
	strategies map[string]Strategy
}

// NewRegistry builds an empty registry.
func NewRegistry() *Registry {
	return &Registry{strategies: map[string]Strategy{}}
}

// DefaultRegistry registers the sequential and parallel strategies.
func DefaultRegistry(maxConcurrency int) *Registry {
	r := NewRegistry()
	r.Register(Sequential{})
	r.Register(Parallel{MaxConcurrency: maxConcurrency})
	return r
}

// Register adds or replaces a strategy implementation.
func (r *Registry) Register(strategy Strategy) {
	if r.strategies == nil {
		r.strategies = map[string]Strategy{}
	}
	r.strategies[strategy.Name()] = strategy
}

// Resolve returns a strategy by name or an error if it is absent.
func (r *Registry) Resolve(name string) (Strategy, error) {
	if strategy, ok := r.strategies[name]; ok {
		return strategy, nil
	}
	return nil, fmt.Errorf("scoring strategy %s is not registered", name)
}

// Names lists registered strategies alphabetically.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
