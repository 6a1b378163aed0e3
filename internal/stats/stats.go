/*
Package stats derives per-tier and platform wide statistics from a sweep of probe results.
*/
package stats

import (
	"sort"
	"time"

	"github.com/pmoves-ai/pulse/internal/probe"
)

// TierStats summarizes the health of a single tier.
type TierStats struct {
	Tier      string `json:"tier"`
	Total     int    `json:"total"`
	Healthy   int    `json:"healthy"`
	Degraded  int    `json:"degraded"`
	Unhealthy int    `json:"unhealthy"`
	Unknown   int    `json:"unknown"`

	// Availability is Healthy/Total. Unknown services count against availability; a service
	// that can't be probed can't be served.
	Availability float64 `json:"availability"`

	LatencyP50 time.Duration `json:"latency_p50_ns"`
	LatencyP95 time.Duration `json:"latency_p95_ns"`
	LatencyMax time.Duration `json:"latency_max_ns"`
}

// Rollup is the platform wide health summary.
type Rollup struct {
	Status      probe.Status `json:"status"`
	Tiers       []TierStats  `json:"tiers"`
	Services    int          `json:"services"`
	GeneratedAt time.Time    `json:"generated_at"`
}

// availabilityFloor is the tier availability below which the whole platform is considered
// unhealthy.
const availabilityFloor = 0.5

// coreTier services are load-bearing; a single unhealthy one fails the platform rollup.
const coreTier = "core"

// Compute aggregates results into per-tier statistics sorted by tier name.
func Compute(results []probe.Result) []TierStats {
	grouped := make(map[string][]probe.Result)
	for _, r := range results {
		grouped[r.Tier] = append(grouped[r.Tier], r)
	}

	tiers := make([]TierStats, 0, len(grouped))
	for tier, rs := range grouped {
		tiers = append(tiers, computeTier(tier, rs))
	}

	sort.Slice(tiers, func(i, j int) bool { return tiers[i].Tier < tiers[j].Tier })

	return tiers
}

// Overall reduces tier statistics to a single platform status.
//
// The platform is unhealthy when any populated tier drops below the availability floor or any
// core tier service is unhealthy. It is degraded when any service is degraded, unhealthy or
// unknown. Otherwise it is healthy.
func Overall(tiers []TierStats) probe.Status {
	status := probe.StatusHealthy

	for _, t := range tiers {
		if t.Total == 0 {
			continue
		}

		if t.Availability < availabilityFloor {
			return probe.StatusUnhealthy
		}
		if t.Tier == coreTier && t.Unhealthy > 0 {
			return probe.StatusUnhealthy
		}

		if t.Degraded > 0 || t.Unhealthy > 0 || t.Unknown > 0 {
			status = probe.StatusDegraded
		}
	}

	return status
}

// NewRollup computes the full platform rollup for results.
func NewRollup(results []probe.Result, now time.Time) Rollup {
	tiers := Compute(results)

	return Rollup{
		Status:      Overall(tiers),
		Tiers:       tiers,
		Services:    len(results),
		GeneratedAt: now,
	}
}

func computeTier(tier string, results []probe.Result) TierStats {
	ts := TierStats{
		Tier:  tier,
		Total: len(results),
	}

	// Latencies from reachable services only; a dialing failure's latency measures the
	// network stack, not the service.
	latencies := make([]float64, 0, len(results))

	for _, r := range results {
		switch r.Status {
		case probe.StatusHealthy:
			ts.Healthy++
			latencies = append(latencies, float64(r.Latency))
		case probe.StatusDegraded:
			ts.Degraded++
			latencies = append(latencies, float64(r.Latency))
		case probe.StatusUnhealthy:
			ts.Unhealthy++
		default:
			ts.Unknown++
		}
	}

	if ts.Total > 0 {
		ts.Availability = float64(ts.Healthy) / float64(ts.Total)
	}

	if len(latencies) > 0 {
		sort.Float64s(latencies)
		ts.LatencyP50 = time.Duration(quantile(latencies, 0.50))
		ts.LatencyP95 = time.Duration(quantile(latencies, 0.95))
		ts.LatencyMax = time.Duration(latencies[len(latencies)-1])
	}

	return ts
}

// quantile computes the q-quantile of sorted using linear interpolation between closest ranks.
func quantile(sorted []float64, q float64) float64 {
	if len(sorted) == 1 {
		return sorted[0]
	}

	pos := q * float64(len(sorted)-1)
	lo := int(pos)
	hi := lo + 1
	if hi >= len(sorted) {
		return sorted[len(sorted)-1]
	}

	frac := pos - float64(lo)
	return sorted[lo]*(1-frac) + sorted[hi]*frac
}
