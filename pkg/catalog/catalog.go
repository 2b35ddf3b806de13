package catalog

import (
	"errors"
	"fmt"
	"strings"
)

var (
	ErrEmptyService     = errors.New("service name must not be empty")
	ErrDuplicateService = errors.New("duplicate service")
	ErrEmptyFunction    = errors.New("function name must not be empty")
	ErrDuplicateFunc    = errors.New("duplicate function")
)

// Service is one catalog entry: a service name and the functions it exposes.
type Service struct {
	Name      string
	Functions []string
}

// Catalog is a read-only registry of services and their functions.
// Service names compare case-insensitively but keep their stored casing;
// function names compare exactly.
type Catalog struct {
	services []Service
	index    map[string]int // lowercased name → position in services
}

// New builds a Catalog from services, in the given order.
func New(services ...Service) (*Catalog, error) {
	c := &Catalog{
		services: make([]Service, 0, len(services)),
		index:    make(map[string]int, len(services)),
	}
	for _, s := range services {
		if strings.TrimSpace(s.Name) == "" {
			return nil, ErrEmptyService
		}
		key := strings.ToLower(s.Name)
		if i, ok := c.index[key]; ok {
			return nil, fmt.Errorf("%w: %q collides with %q", ErrDuplicateService, s.Name, c.services[i].Name)
		}
		seen := make(map[string]bool, len(s.Functions))
		funcs := make([]string, 0, len(s.Functions))
		for _, f := range s.Functions {
			if f == "" {
				return nil, fmt.Errorf("service %q: %w", s.Name, ErrEmptyFunction)
			}
			if seen[f] {
				return nil, fmt.Errorf("service %q: %w %q", s.Name, ErrDuplicateFunc, f)
			}
			seen[f] = true
			funcs = append(funcs, f)
		}
		c.index[key] = len(c.services)
		c.services = append(c.services, Service{Name: s.Name, Functions: funcs})
	}
	return c, nil
}

// MustNew is like New but panics on error. Intended for static tables.
func MustNew(services ...Service) *Catalog {
	c, err := New(services...)
	if err != nil {
		panic(err)
	}
	return c
}

func (c *Catalog) lookup(service string) (Service, bool) {
	if c == nil {
		return Service{}, false
	}
	i, ok := c.index[strings.ToLower(service)]
	if !ok {
		return Service{}, false
	}
	return c.services[i], true
}

// HasService reports whether service is registered (case-insensitive).
func (c *Catalog) HasService(service string) bool {
	_, ok := c.lookup(service)
	return ok
}

// Supports reports whether function is listed under service.
func (c *Catalog) Supports(service, function string) bool {
	s, ok := c.lookup(service)
	if !ok {
		return false
	}
	for _, f := range s.Functions {
		if f == function {
			return true
		}
	}
	return false
}

// FunctionsFor returns the functions of service in catalog order, or nil if
// the service is unknown. The returned slice is a copy.
func (c *Catalog) FunctionsFor(service string) []string {
	s, ok := c.lookup(service)
	if !ok {
		return nil
	}
	out := make([]string, len(s.Functions))
	copy(out, s.Functions)
	return out
}

// Canonical returns the stored casing of service.
func (c *Catalog) Canonical(service string) (string, bool) {
	s, ok := c.lookup(service)
	return s.Name, ok
}

// Services returns the service names in catalog order.
func (c *Catalog) Services() []string {
	if c == nil {
		return nil
	}
	out := make([]string, len(c.services))
	for i, s := range c.services {
		out[i] = s.Name
	}
	return out
}

// Len returns the number of services.
func (c *Catalog) Len() int {
	if c == nil {
		return 0
	}
	return len(c.services)
}
