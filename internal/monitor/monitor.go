/*
Package monitor runs the periodic probe loop and holds the latest snapshot of platform health.
*/
package monitor

import (
	"context"
	"sync"
	"time"

	"github.com/go-logr/logr"
	"github.com/pmoves-ai/pulse/internal/catalog"
	"github.com/pmoves-ai/pulse/internal/event"
	"github.com/pmoves-ai/pulse/internal/metrics"
	"github.com/pmoves-ai/pulse/internal/probe"
)

// DefaultInterval is the sweep interval when none is configured.
const DefaultInterval = 15 * time.Second

// staleSweeps is how many missed intervals make the monitor report itself unhealthy.
const staleSweeps = 3

// Snapshot is the immutable result of one sweep.
type Snapshot struct {
	Results []probe.Result
	TakenAt time.Time
	Sweep   uint64

	byService map[string]probe.Result
}

// NewSnapshot builds a Snapshot from results, indexing them by service name.
func NewSnapshot(results []probe.Result, takenAt time.Time, sweep uint64) Snapshot {
	s := Snapshot{
		Results:   results,
		TakenAt:   takenAt,
		Sweep:     sweep,
		byService: make(map[string]probe.Result, len(results)),
	}
	for _, r := range results {
		s.byService[r.Service] = r
	}
	return s
}

// Result retrieves the result for the named service from the snapshot.
func (s Snapshot) Result(name string) (probe.Result, bool) {
	r, ok := s.byService[name]
	return r, ok
}

// Monitor owns the sweep loop. It reads the catalog from a Store on every sweep so hot reloads
// take effect without coordination.
type Monitor struct {
	logger      logr.Logger
	store       *catalog.Store
	prober      *probe.Prober
	publisher   *event.Publisher
	metrics     *metrics.Metrics
	interval    time.Duration
	concurrency int

	kick chan struct{}

	mu        sync.RWMutex
	snapshot  Snapshot
	startedAt time.Time
}

// Config collects the Monitor's dependencies. Publisher may be nil to disable event publishing.
type Config struct {
	Logger      logr.Logger
	Store       *catalog.Store
	Prober      *probe.Prober
	Publisher   *event.Publisher
	Metrics     *metrics.Metrics
	Interval    time.Duration
	Concurrency int
}

// New creates a Monitor from cfg.
func New(cfg Config) *Monitor {
	interval := cfg.Interval
	if interval <= 0 {
		interval = DefaultInterval
	}

	return &Monitor{
		logger:      cfg.Logger,
		store:       cfg.Store,
		prober:      cfg.Prober,
		publisher:   cfg.Publisher,
		metrics:     cfg.Metrics,
		interval:    interval,
		concurrency: cfg.Concurrency,
		kick:        make(chan struct{}, 1),
	}
}

// Run is a blocking call that sweeps the catalog on the configured interval until ctx is
// cancelled. The first sweep starts immediately.
func (m *Monitor) Run(ctx context.Context) error {
	m.mu.Lock()
	m.startedAt = time.Now()
	m.mu.Unlock()

	ticker := time.NewTicker(m.interval)
	defer ticker.Stop()

	m.sweep(ctx)

	for {
		select {
		case <-ctx.Done():
			return nil
		case <-ticker.C:
			m.sweep(ctx)
		case <-m.kick:
			m.sweep(ctx)
		}
	}
}

// Kick requests an immediate sweep. It is safe to call from any goroutine and never blocks;
// the catalog watcher uses it so reloads don't wait out the interval.
func (m *Monitor) Kick() {
	select {
	case m.kick <- struct{}{}:
	default:
	}
}

// Latest returns the most recent snapshot. Before the first sweep completes it returns a zero
// snapshot with no results.
func (m *Monitor) Latest() Snapshot {
	m.mu.RLock()
	defer m.mu.RUnlock()
	return m.snapshot
}

// IsHealthy reports whether the monitor itself is functioning: a sweep has completed recently
// enough. It satisfies the health check endpoint's client interface.
func (m *Monitor) IsHealthy(context.Context) bool {
	m.mu.RLock()
	defer m.mu.RUnlock()

	grace := time.Duration(staleSweeps) * m.interval

	if m.snapshot.Sweep == 0 {
		// Still starting up; only unhealthy if the first sweep is overdue.
		return m.startedAt.IsZero() || time.Since(m.startedAt) < grace
	}

	return time.Since(m.snapshot.TakenAt) < grace
}

func (m *Monitor) sweep(ctx context.Context) {
	services := m.store.Get().All()

	start := time.Now()
	results := m.prober.Sweep(ctx, services, m.concurrency)
	elapsed := time.Since(start)

	if ctx.Err() != nil {
		// Shutdown mid-sweep; don't publish a partial view.
		return
	}

	if m.metrics != nil {
		m.metrics.CatalogSize.Set(float64(len(services)))
		m.metrics.ObserveSweep(results, elapsed)
	}

	previous := m.Latest()
	next := NewSnapshot(results, time.Now(), previous.Sweep+1)

	// Drop removed series before the shrunk snapshot becomes visible so readers never observe
	// a smaller snapshot alongside stale metrics.
	m.forgetRemoved(previous, next)

	m.mu.Lock()
	m.snapshot = next
	m.mu.Unlock()

	m.logger.V(1).Info("Sweep complete",
		"sweep", next.Sweep,
		"services", len(results),
		"elapsed", elapsed,
	)

	m.publishTransitions(previous, next)
}

// publishTransitions emits an event for every service whose status changed between sweeps.
func (m *Monitor) publishTransitions(previous, next Snapshot) {
	for _, r := range next.Results {
		prev, ok := previous.byService[r.Service]
		if !ok {
			// First observation of this service; not a transition.
			continue
		}

		if prev.Status == r.Status {
			continue
		}
		if prev.Status == probe.StatusUnknown || r.Status == probe.StatusUnknown {
			continue
		}

		transition := event.Transition{
			Service:    r.Service,
			Tier:       r.Tier,
			From:       prev.Status,
			To:         r.Status,
			Latency:    r.Latency,
			Error:      r.Err,
			ObservedAt: r.CheckedAt,
		}

		m.logger.Info("Service transitioned",
			"service", r.Service,
			"tier", r.Tier,
			"from", prev.Status,
			"to", r.Status,
		)

		m.publisher.Publish(transition)
	}
}

// forgetRemoved drops metric series for services a reload removed from the catalog.
func (m *Monitor) forgetRemoved(previous, next Snapshot) {
	if m.metrics == nil {
		return
	}

	for name, r := range previous.byService {
		if _, ok := next.byService[name]; !ok {
			m.metrics.ForgetService(name, r.Tier)
		}
	}
}
