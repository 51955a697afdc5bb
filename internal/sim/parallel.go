package sim

import (
	"context"
	"fmt"
	"runtime"

	"golang.org/x/sync/errgroup"
)

// Ensemble runs one simulation per initial state concurrently. Systems,
// integrators and controllers implementing Forker are copied per run so
// that scratch space is never shared between goroutines.
type Ensemble struct {
	base    *Simulator
	workers int
}

func NewEnsemble(s *Simulator, workers int) *Ensemble {
	if workers <= 0 {
		workers = runtime.GOMAXPROCS(0)
	}
	return &Ensemble{base: s, workers: workers}
}

// Run returns results in the order of initial. Metrics are not shared: each
// run gets fresh copies through the factory, which receives that run's
// dynamics and may be nil.
func (e *Ensemble) Run(ctx context.Context, initial []State, cfg Config, metrics func(Dynamics) []Metric) ([]*Result, error) {
	results := make([]*Result, len(initial))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(e.workers)

	for i, x0 := range initial {
		i, x0 := i, x0 // per-iteration copies for the go 1.21 loop semantics
		cfgCopy := cfg
		cfgCopy.Seed = cfg.Seed + int64(i)

		g.Go(func() error {
			dyn := e.forkDynamics()
			sim := New(dyn, e.forkIntegrator(), e.forkController())
			if metrics != nil {
				for _, m := range metrics(dyn) {
					sim.AddMetric(m)
				}
			}
			res, err := sim.Run(ctx, x0, cfgCopy)
			if err != nil {
				return fmt.Errorf("run %d: %w", i, err)
			}
			results[i] = res
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		return nil, err
	}
	return results, nil
}

func (e *Ensemble) forkDynamics() Dynamics {
	if f, ok := e.base.dyn.(Forker[Dynamics]); ok {
		return f.Fork()
	}
	return e.base.dyn
}

func (e *Ensemble) forkIntegrator() Integrator {
	if f, ok := e.base.integrator.(Forker[Integrator]); ok {
		return f.Fork()
	}
	return e.base.integrator
}

func (e *Ensemble) forkController() Controller {
	if f, ok := e.base.controller.(Forker[Controller]); ok {
		return f.Fork()
	}
	return e.base.controller
}
