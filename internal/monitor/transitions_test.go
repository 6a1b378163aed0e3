package monitor

import (
	"testing"
	"time"

	"github.com/go-logr/logr"
	"github.com/pmoves-ai/pulse/internal/event"
	"github.com/pmoves-ai/pulse/internal/probe"
)

type recordingConn struct {
	subjects []string
}

func (c *recordingConn) Publish(subject string, _ []byte) error {
	c.subjects = append(c.subjects, subject)
	return nil
}

func (c *recordingConn) Drain() error { return nil }

func snapshotOf(sweep uint64, results ...probe.Result) Snapshot {
	return NewSnapshot(results, time.Now(), sweep)
}

func TestPublishTransitions(t *testing.T) {
	cases := []struct {
		Name           string
		Previous       Snapshot
		Next           Snapshot
		ExpectSubjects []string
	}{
		{
			Name: "KnownToKnownPublishes",
			Previous: snapshotOf(1,
				probe.Result{Service: "a", Tier: "core", Status: probe.StatusHealthy},
			),
			Next: snapshotOf(2,
				probe.Result{Service: "a", Tier: "core", Status: probe.StatusUnhealthy},
			),
			ExpectSubjects: []string{"pmoves.health.core.a"},
		},
		{
			Name: "StableStatusIsSilent",
			Previous: snapshotOf(1,
				probe.Result{Service: "a", Tier: "core", Status: probe.StatusHealthy},
			),
			Next: snapshotOf(2,
				probe.Result{Service: "a", Tier: "core", Status: probe.StatusHealthy},
			),
		},
		{
			// A service's first probe after being added to the catalog moves it out of
			// unknown; that is a baseline, not a transition.
			Name: "UnknownToKnownIsSilent",
			Previous: snapshotOf(1,
				probe.Result{Service: "a", Tier: "core", Status: probe.StatusUnknown},
			),
			Next: snapshotOf(2,
				probe.Result{Service: "a", Tier: "core", Status: probe.StatusHealthy},
			),
		},
		{
			// An aborted sweep reports unknown; losing sight of a service says nothing about
			// the service itself.
			Name: "KnownToUnknownIsSilent",
			Previous: snapshotOf(1,
				probe.Result{Service: "a", Tier: "core", Status: probe.StatusHealthy},
			),
			Next: snapshotOf(2,
				probe.Result{Service: "a", Tier: "core", Status: probe.StatusUnknown},
			),
		},
		{
			Name:     "FirstObservationIsSilent",
			Previous: snapshotOf(1),
			Next: snapshotOf(2,
				probe.Result{Service: "a", Tier: "core", Status: probe.StatusUnhealthy},
			),
		},
	}

	for _, tc := range cases {
		t.Run(tc.Name, func(t *testing.T) {
			conn := &recordingConn{}

			m := New(Config{
				Logger:    logr.Discard(),
				Publisher: event.NewPublisher(logr.Discard(), conn),
				Interval:  time.Second,
			})

			m.publishTransitions(tc.Previous, tc.Next)

			if len(conn.subjects) != len(tc.ExpectSubjects) {
				t.Fatalf("expected %d events, got %v", len(tc.ExpectSubjects), conn.subjects)
			}
			for i, subject := range tc.ExpectSubjects {
				if conn.subjects[i] != subject {
					t.Fatalf("event %d: expected subject %v, got %v", i, subject, conn.subjects[i])
				}
			}
		})
	}
}
