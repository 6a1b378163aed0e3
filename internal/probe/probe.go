/*
Package probe performs HTTP health probes against catalog services and classifies the results.
*/
package probe

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"time"

	"github.com/cenkalti/backoff/v4"
	"github.com/pmoves-ai/pulse/internal/catalog"
)

// Status is the classified health of a single service.
type Status string

const (
	StatusHealthy   Status = "healthy"
	StatusDegraded  Status = "degraded"
	StatusUnhealthy Status = "unhealthy"

	// StatusUnknown is reported for services that haven't completed a probe, such as services
	// newly added to the catalog or probes aborted by shutdown.
	StatusUnknown Status = "unknown"
)

// maxBodyBytes caps how much of a health response body is read for classification. Health
// endpoints returning more than this are classified on status code alone.
const maxBodyBytes = 64 << 10

// transportRetries is the number of times a probe is retried after a transport failure. HTTP
// error statuses are never retried; the service answered.
const transportRetries = 1

// Result is the outcome of probing a single service.
type Result struct {
	Service    string        `json:"service"`
	Tier       string        `json:"tier"`
	Status     Status        `json:"status"`
	StatusCode int           `json:"status_code,omitempty"`
	Latency    time.Duration `json:"latency_ns"`
	CheckedAt  time.Time     `json:"checked_at"`
	Err        string        `json:"error,omitempty"`
}

// Prober probes service health endpoints.
type Prober struct {
	client *http.Client
}

// New creates a Prober. Probe attempts are bounded by each service's own timeout rather than a
// client wide timeout.
func New() *Prober {
	return &Prober{
		client: &http.Client{
			// Health endpoints should answer directly; treat a redirect as the response.
			CheckRedirect: func(*http.Request, []*http.Request) error {
				return http.ErrUseLastResponse
			},
		},
	}
}

// Probe performs a single health check of svc. Transport failures are retried once with
// exponential backoff. The returned Result always names the service and tier, even on failure.
func (p *Prober) Probe(ctx context.Context, svc catalog.Service) Result {
	result := Result{
		Service: svc.Name,
		Tier:    svc.Tier,
	}

	attempt := func() error {
		attemptCtx, cancel := context.WithTimeout(ctx, svc.Timeout)
		defer cancel()

		req, err := http.NewRequestWithContext(attemptCtx, http.MethodGet, svc.HealthURL(), nil)
		if err != nil {
			// A malformed URL is not transient.
			return backoff.Permanent(err)
		}
		req.Header.Set("Accept", "application/json")

		start := time.Now()
		resp, err := p.client.Do(req)
		result.Latency = time.Since(start)
		result.CheckedAt = time.Now()

		if err != nil {
			return err
		}
		defer resp.Body.Close()

		body, _ := io.ReadAll(io.LimitReader(resp.Body, maxBodyBytes))

		result.StatusCode = resp.StatusCode
		result.Status = classify(resp.StatusCode, body)
		result.Err = ""

		return nil
	}

	bo := backoff.WithContext(
		backoff.WithMaxRetries(backoff.NewExponentialBackOff(), transportRetries),
		ctx,
	)

	if err := backoff.Retry(attempt, bo); err != nil {
		if ctx.Err() != nil {
			// The sweep was aborted; this is not a verdict on the service.
			result.Status = StatusUnknown
		} else {
			result.Status = StatusUnhealthy
		}
		result.Err = err.Error()
	}

	return result
}

// classify maps an HTTP response to a Status.
//
// 2xx is healthy unless the body is a JSON document self-reporting degradation. 429 and 5xx are
// unhealthy. Anything else means the endpoint is alive but the health contract is broken, which
// is reported as degraded.
func classify(statusCode int, body []byte) Status {
	switch {
	case statusCode >= 200 && statusCode < 300:
		if selfReportsDegraded(body) {
			return StatusDegraded
		}
		return StatusHealthy

	case statusCode == http.StatusTooManyRequests || statusCode >= 500:
		return StatusUnhealthy

	default:
		return StatusDegraded
	}
}

// selfReportsDegraded inspects body for a JSON object with a "status" field claiming
// degradation. Non-JSON bodies never degrade a 2xx response.
func selfReportsDegraded(body []byte) bool {
	var payload struct {
		Status string `json:"status"`
	}

	if err := json.Unmarshal(body, &payload); err != nil {
		return false
	}

	switch payload.Status {
	case "degraded", "degrading":
		return true
	default:
		return false
	}
}
