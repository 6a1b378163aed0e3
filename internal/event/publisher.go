/*
Package event publishes status transition events to the platform NATS bus as CGP envelopes.
*/
package event

import (
	"fmt"
	"time"

	"github.com/go-logr/logr"
	"github.com/nats-io/nats.go"
	"github.com/pkg/errors"
	"github.com/pmoves-ai/pulse/internal/event/cgp"
	"github.com/pmoves-ai/pulse/internal/probe"
)

// source identifies pulse as the emitter in published envelopes.
const source = "pulse"

// Transition describes a service moving between health states.
type Transition struct {
	Service    string        `json:"service"`
	Tier       string        `json:"tier"`
	From       probe.Status  `json:"from"`
	To         probe.Status  `json:"to"`
	Latency    time.Duration `json:"latency_ns"`
	Error      string        `json:"error,omitempty"`
	ObservedAt time.Time     `json:"observed_at"`
}

// Subject is the NATS subject a transition for svc in tier is published on. Subjects follow
// pmoves.health.<tier>.<service> so consumers can subscribe per tier.
func Subject(tier, service string) string {
	return fmt.Sprintf("pmoves.health.%s.%s", tier, service)
}

// conn is the subset of nats.Conn the publisher uses.
type conn interface {
	Publish(subject string, data []byte) error
	Drain() error
}

// Publisher publishes transitions to NATS. A nil Publisher is valid and drops every event,
// which is how pulse runs when no NATS URL is configured.
type Publisher struct {
	logger logr.Logger
	nc     conn
}

// Connect dials the NATS server at url and returns a Publisher over the connection.
func Connect(logger logr.Logger, url string) (*Publisher, error) {
	nc, err := nats.Connect(
		url,
		nats.Name(source),
		nats.MaxReconnects(-1),
		nats.ReconnectWait(2*time.Second),
	)
	if err != nil {
		return nil, errors.Wrapf(err, "connect nats at %v", url)
	}

	return &Publisher{logger: logger, nc: nc}, nil
}

// NewPublisher wraps an existing connection. It exists for tests.
func NewPublisher(logger logr.Logger, nc conn) *Publisher {
	return &Publisher{logger: logger, nc: nc}
}

// Publish emits t as a CGP envelope. Publishing is fire and forget; failures are logged, never
// propagated, so a broker outage can't take down probing.
func (p *Publisher) Publish(t Transition) {
	if p == nil {
		return
	}

	envelope, err := cgp.New("health.transition", source, cgp.Geometry{Tier: t.Tier}, t)
	if err != nil {
		p.logger.Error(err, "Build transition envelope", "service", t.Service)
		return
	}

	data, err := envelope.Marshal()
	if err != nil {
		p.logger.Error(err, "Marshal transition envelope", "service", t.Service)
		return
	}

	if err := p.nc.Publish(Subject(t.Tier, t.Service), data); err != nil {
		p.logger.Error(err, "Publish transition", "service", t.Service, "tier", t.Tier)
	}
}

// Close drains the underlying connection.
func (p *Publisher) Close() {
	if p == nil {
		return
	}

	if err := p.nc.Drain(); err != nil {
		p.logger.Error(err, "Drain nats connection")
	}
}
