package stats_test

import (
	"testing"
	"time"

	"github.com/pmoves-ai/pulse/internal/probe"
	. "github.com/pmoves-ai/pulse/internal/stats"
)

func result(tier string, status probe.Status, latency time.Duration) probe.Result {
	return probe.Result{
		Service: "svc",
		Tier:    tier,
		Status:  status,
		Latency: latency,
	}
}

func TestComputeGroupsAndSorts(t *testing.T) {
	results := []probe.Result{
		result("media", probe.StatusHealthy, 10*time.Millisecond),
		result("core", probe.StatusHealthy, 5*time.Millisecond),
		result("core", probe.StatusUnhealthy, 0),
		result("agents", probe.StatusDegraded, 30*time.Millisecond),
	}

	tiers := Compute(results)

	if len(tiers) != 3 {
		t.Fatalf("expected 3 tiers, got %d", len(tiers))
	}

	// Sorted by tier name.
	for i, expect := range []string{"agents", "core", "media"} {
		if tiers[i].Tier != expect {
			t.Fatalf("tier %d: expected %v, got %v", i, expect, tiers[i].Tier)
		}
	}

	core := tiers[1]
	if core.Total != 2 || core.Healthy != 1 || core.Unhealthy != 1 {
		t.Fatalf("unexpected core stats: %+v", core)
	}
	if core.Availability != 0.5 {
		t.Fatalf("expected core availability 0.5, got %v", core.Availability)
	}
}

func TestComputeLatencyQuantiles(t *testing.T) {
	results := make([]probe.Result, 0, 10)
	for i := 1; i <= 10; i++ {
		results = append(results, result("core", probe.StatusHealthy, time.Duration(i)*time.Millisecond))
	}
	// Unreachable services contribute no latency samples.
	results = append(results, result("core", probe.StatusUnhealthy, 0))

	tiers := Compute(results)
	core := tiers[0]

	if core.LatencyMax != 10*time.Millisecond {
		t.Fatalf("expected max 10ms, got %v", core.LatencyMax)
	}
	if core.LatencyP50 != 5500*time.Microsecond {
		t.Fatalf("expected p50 5.5ms, got %v", core.LatencyP50)
	}
	if core.LatencyP95 <= core.LatencyP50 || core.LatencyP95 > core.LatencyMax {
		t.Fatalf("p95 out of range: %v", core.LatencyP95)
	}
}

func TestOverall(t *testing.T) {
	cases := []struct {
		Name    string
		Results []probe.Result
		Expect  probe.Status
	}{
		{
			Name:    "EmptyIsHealthy",
			Results: nil,
			Expect:  probe.StatusHealthy,
		},
		{
			Name: "AllHealthy",
			Results: []probe.Result{
				result("core", probe.StatusHealthy, time.Millisecond),
				result("media", probe.StatusHealthy, time.Millisecond),
			},
			Expect: probe.StatusHealthy,
		},
		{
			Name: "DegradedService",
			Results: []probe.Result{
				result("core", probe.StatusHealthy, time.Millisecond),
				result("media", probe.StatusDegraded, time.Millisecond),
			},
			Expect: probe.StatusDegraded,
		},
		{
			Name: "UnknownServiceDegrades",
			Results: []probe.Result{
				result("core", probe.StatusHealthy, time.Millisecond),
				result("media", probe.StatusUnknown, 0),
			},
			Expect: probe.StatusDegraded,
		},
		{
			Name: "UnhealthyCoreServiceFailsPlatform",
			Results: []probe.Result{
				result("core", probe.StatusHealthy, time.Millisecond),
				result("core", probe.StatusHealthy, time.Millisecond),
				result("core", probe.StatusHealthy, time.Millisecond),
				result("core", probe.StatusUnhealthy, 0),
			},
			Expect: probe.StatusUnhealthy,
		},
		{
			Name: "TierBelowAvailabilityFloor",
			Results: []probe.Result{
				result("media", probe.StatusHealthy, time.Millisecond),
				result("media", probe.StatusUnhealthy, 0),
				result("media", probe.StatusUnhealthy, 0),
			},
			Expect: probe.StatusUnhealthy,
		},
		{
			Name: "NonCoreUnhealthyAboveFloorDegrades",
			Results: []probe.Result{
				result("media", probe.StatusHealthy, time.Millisecond),
				result("media", probe.StatusHealthy, time.Millisecond),
				result("media", probe.StatusUnhealthy, 0),
			},
			Expect: probe.StatusDegraded,
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			rollup := NewRollup(tc.Results, time.Now())
			if rollup.Status != tc.Expect {
				t.Fatalf("expected %v, got %v", tc.Expect, rollup.Status)
			}
			if rollup.Services != len(tc.Results) {
				t.Fatalf("expected %d services, got %d", len(tc.Results), rollup.Services)
			}
		})
	}
}
