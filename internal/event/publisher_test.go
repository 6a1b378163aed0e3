package event_test

import (
	"encoding/json"
	"errors"
	"testing"
	"time"

	"github.com/go-logr/logr"
	. "github.com/pmoves-ai/pulse/internal/event"
	"github.com/pmoves-ai/pulse/internal/event/cgp"
	"github.com/pmoves-ai/pulse/internal/probe"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type fakeConn struct {
	subjects []string
	payloads [][]byte
	err      error
}

func (f *fakeConn) Publish(subject string, data []byte) error {
	f.subjects = append(f.subjects, subject)
	f.payloads = append(f.payloads, data)
	return f.err
}

func (f *fakeConn) Drain() error { return nil }

func TestSubject(t *testing.T) {
	assert.Equal(t, "pmoves.health.core.chit-gateway", Subject("core", "chit-gateway"))
}

func TestPublishWrapsTransitionInEnvelope(t *testing.T) {
	nc := &fakeConn{}
	pub := NewPublisher(logr.Discard(), nc)

	transition := Transition{
		Service:    "chit-gateway",
		Tier:       "core",
		From:       probe.StatusHealthy,
		To:         probe.StatusUnhealthy,
		Error:      "connection refused",
		ObservedAt: time.Now().UTC(),
	}

	pub.Publish(transition)

	require.Len(t, nc.subjects, 1)
	assert.Equal(t, "pmoves.health.core.chit-gateway", nc.subjects[0])

	var envelope cgp.Envelope
	require.NoError(t, json.Unmarshal(nc.payloads[0], &envelope))

	assert.Equal(t, "health.transition", envelope.Kind)
	assert.Equal(t, "pulse", envelope.Source)
	assert.Equal(t, "core", envelope.Geometry.Tier)
	assert.NotEmpty(t, envelope.ID)
	assert.False(t, envelope.EmittedAt.IsZero())

	var decoded Transition
	require.NoError(t, json.Unmarshal(envelope.Payload, &decoded))
	assert.Equal(t, transition, decoded)
}

func TestPublishSwallowsBrokerErrors(t *testing.T) {
	nc := &fakeConn{err: errors.New("broker gone")}
	pub := NewPublisher(logr.Discard(), nc)

	// Must not panic or propagate.
	pub.Publish(Transition{Service: "svc", Tier: "core"})

	assert.Len(t, nc.subjects, 1)
}

func TestNilPublisherDropsEvents(t *testing.T) {
	var pub *Publisher

	pub.Publish(Transition{Service: "svc", Tier: "core"})
	pub.Close()
}
