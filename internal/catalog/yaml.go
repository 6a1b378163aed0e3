package catalog

import (
	"io"
	"net/url"
	"os"
	"strings"
	"time"

	"github.com/pkg/errors"
	"gopkg.in/yaml.v2"
)

// serviceYAML is the raw flatfile representation of a Service.
type serviceYAML struct {
	Name       string            `yaml:"name"`
	Tier       string            `yaml:"tier"`
	URL        string            `yaml:"url"`
	HealthPath string            `yaml:"healthPath"`
	Timeout    string            `yaml:"timeout"`
	Labels     map[string]string `yaml:"labels"`
}

// FromYAML constructs a new Catalog using data from r to define services. r should provide raw
// YAML data.
func FromYAML(r io.Reader) (*Catalog, error) {
	var raw []serviceYAML
	decoder := yaml.NewDecoder(r)
	if err := decoder.Decode(&raw); err != nil {
		if errors.Is(err, io.EOF) {
			// An empty file is an empty catalog.
			return New(nil)
		}
		return nil, err
	}

	services := make([]Service, 0, len(raw))
	for i, entry := range raw {
		svc, err := toService(entry)
		if err != nil {
			return nil, errors.Wrapf(err, "service %d", i)
		}
		services = append(services, svc)
	}

	return New(services)
}

// FromYAMLFile constructs a new Catalog using data from the YAML file at path.
func FromYAMLFile(path string) (*Catalog, error) {
	if path == "" {
		return nil, errors.New("catalog: path cannot be empty")
	}

	fh, err := os.Open(path)
	if err != nil {
		return nil, err
	}
	defer fh.Close()

	return FromYAML(fh)
}

func toService(raw serviceYAML) (Service, error) {
	svc := Service{
		Name:       raw.Name,
		Tier:       raw.Tier,
		URL:        raw.URL,
		HealthPath: raw.HealthPath,
		Labels:     raw.Labels,
	}

	if raw.Timeout != "" {
		timeout, err := time.ParseDuration(raw.Timeout)
		if err != nil {
			return Service{}, errors.Wrap(err, "parse timeout")
		}
		svc.Timeout = timeout
	}

	return svc, nil
}

// validate checks svc and fills in defaults. It returns the defaulted service.
func validate(svc Service) (Service, error) {
	if svc.Name == "" {
		return Service{}, errors.New("name cannot be empty")
	}

	u, err := url.Parse(svc.URL)
	if err != nil {
		return Service{}, errors.Wrapf(err, "parse url for %v", svc.Name)
	}
	if u.Scheme != "http" && u.Scheme != "https" {
		return Service{}, errors.Errorf("%v: url must be absolute http or https, got %q", svc.Name, svc.URL)
	}
	if u.Host == "" {
		return Service{}, errors.Errorf("%v: url is missing a host", svc.Name)
	}

	// Normalize so HealthURL never produces a double slash.
	svc.URL = strings.TrimSuffix(svc.URL, "/")

	if svc.Tier == "" {
		svc.Tier = DefaultTier
	}

	if svc.HealthPath == "" {
		svc.HealthPath = DefaultHealthPath
	}
	if !strings.HasPrefix(svc.HealthPath, "/") {
		svc.HealthPath = "/" + svc.HealthPath
	}

	if svc.Timeout <= 0 {
		svc.Timeout = DefaultTimeout
	}
	if svc.Timeout > MaxTimeout {
		svc.Timeout = MaxTimeout
	}

	return svc, nil
}
