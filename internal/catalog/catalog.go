/*
Package catalog defines the PMOVES.AI service catalog. The catalog is the authoritative list
of platform services pulse probes, sourced from a YAML flatfile.
*/
package catalog

import (
	"sort"
	"sync/atomic"
	"time"

	"github.com/pkg/errors"
)

// ErrServiceNotFound indicates a service could not be found for the given name.
var ErrServiceNotFound = errors.New("service not found")

const (
	// DefaultTier is assigned to services that don't declare a tier.
	DefaultTier = "core"

	// DefaultHealthPath is probed when a service doesn't declare a health path.
	DefaultHealthPath = "/healthz"

	// DefaultTimeout bounds a single probe attempt when a service doesn't declare a timeout.
	DefaultTimeout = 5 * time.Second

	// MaxTimeout caps per-service probe timeouts so a single slow service can't stall a sweep.
	MaxTimeout = 30 * time.Second
)

// Service is a single entry in the catalog.
type Service struct {
	// Name uniquely identifies the service within the catalog.
	Name string

	// Tier groups services for statistics, e.g. "core", "media", "agents".
	Tier string

	// URL is the base http(s) address of the service.
	URL string

	// HealthPath is the path probed for health, relative to URL.
	HealthPath string

	// Timeout bounds a single probe attempt.
	Timeout time.Duration

	// Labels carry free-form operator metadata. They are echoed on the API, never interpreted.
	Labels map[string]string
}

// HealthURL is the fully qualified health endpoint for the service.
func (s Service) HealthURL() string {
	return s.URL + s.HealthPath
}

// Catalog is an immutable set of services indexed by name and tier. Construct instances with
// New, FromYAML or FromYAMLFile.
type Catalog struct {
	services []Service
	byName   map[string]Service
	byTier   map[string][]Service
}

// New constructs a Catalog from services. Services are validated and defaulted; a duplicate
// name is an error.
func New(services []Service) (*Catalog, error) {
	c := &Catalog{
		byName: make(map[string]Service, len(services)),
		byTier: make(map[string][]Service),
	}

	for i, svc := range services {
		svc, err := validate(svc)
		if err != nil {
			return nil, errors.Wrapf(err, "service %d", i)
		}

		if _, ok := c.byName[svc.Name]; ok {
			return nil, errors.Errorf("duplicate service name: %v", svc.Name)
		}

		c.services = append(c.services, svc)
		c.byName[svc.Name] = svc
		c.byTier[svc.Tier] = append(c.byTier[svc.Tier], svc)
	}

	return c, nil
}

// Lookup retrieves the service named name. If no service exists it returns ErrServiceNotFound.
func (c *Catalog) Lookup(name string) (Service, error) {
	svc, ok := c.byName[name]
	if !ok {
		return Service{}, ErrServiceNotFound
	}

	return svc, nil
}

// All returns every service in catalog order. The returned slice is a copy.
func (c *Catalog) All() []Service {
	services := make([]Service, len(c.services))
	copy(services, c.services)
	return services
}

// Tier returns the services belonging to tier in catalog order. An unknown tier returns nil.
func (c *Catalog) Tier(tier string) []Service {
	services, ok := c.byTier[tier]
	if !ok {
		return nil
	}

	out := make([]Service, len(services))
	copy(out, services)
	return out
}

// Tiers returns the distinct tier names sorted lexicographically.
func (c *Catalog) Tiers() []string {
	tiers := make([]string, 0, len(c.byTier))
	for tier := range c.byTier {
		tiers = append(tiers, tier)
	}
	sort.Strings(tiers)
	return tiers
}

// Len is the number of services in the catalog.
func (c *Catalog) Len() int {
	return len(c.services)
}

// Store is a concurrency safe holder for the current Catalog. It exists so the watcher can swap
// in a reloaded catalog while the monitor and API keep reading.
type Store struct {
	v atomic.Pointer[Catalog]
}

// NewStore creates a Store seeded with c.
func NewStore(c *Catalog) *Store {
	s := &Store{}
	s.v.Store(c)
	return s
}

// Get returns the current catalog.
func (s *Store) Get() *Catalog {
	return s.v.Load()
}

// Set swaps the current catalog for c.
func (s *Store) Set(c *Catalog) {
	s.v.Store(c)
}
