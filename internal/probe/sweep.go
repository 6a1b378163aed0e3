package probe

import (
	"context"

	"github.com/pmoves-ai/pulse/internal/catalog"
	"golang.org/x/sync/errgroup"
)

// DefaultConcurrency bounds how many services are probed in parallel during a sweep.
const DefaultConcurrency = 16

// Sweep probes every service in services with at most concurrency probes in flight. Results are
// returned in the same order as services. A failing service never aborts the sweep; ctx
// cancellation does, with aborted probes reporting StatusUnknown.
func (p *Prober) Sweep(ctx context.Context, services []catalog.Service, concurrency int) []Result {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	results := make([]Result, len(services))

	g, ctx := errgroup.WithContext(ctx)
	g.SetLimit(concurrency)

	for i, svc := range services {
		i, svc := i, svc
		g.Go(func() error {
			results[i] = p.Probe(ctx, svc)
			return nil
		})
	}

	// Probes never return errors; Wait is purely a join.
	_ = g.Wait()

	return results
}
