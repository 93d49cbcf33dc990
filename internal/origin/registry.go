package origin

import (
	"fmt"
)

// Registry holds the fixed set of configured origins. Membership never
// changes during the process lifetime; weights and counters do.
type Registry struct {
	origins []*Origin
	byURL   map[string]*Origin
}

// NewRegistry builds a registry from the configured origins. At least one
// origin is required and duplicates are rejected.
func NewRegistry(origins []*Origin) (*Registry, error) {
	if len(origins) == 0 {
		return nil, fmt.Errorf("no origins configured")
	}

	byURL := make(map[string]*Origin, len(origins))
	for _, o := range origins {
		key := o.URL().String()
		if _, dup := byURL[key]; dup {
			return nil, fmt.Errorf("duplicate origin %q", key)
		}
		byURL[key] = o
	}

	return &Registry{origins: origins, byURL: byURL}, nil
}

// Origins returns all origins in configuration order (copy of the slice).
func (r *Registry) Origins() []*Origin {
	out := make([]*Origin, len(r.origins))
	copy(out, r.origins)
	return out
}

// Lookup resolves an origin by its configured base URL.
func (r *Registry) Lookup(rawURL string) (*Origin, bool) {
	o, ok := r.byURL[rawURL]
	return o, ok
}

// First returns the first configured origin. It is the fail-open target when
// no origin is confirmed healthy.
func (r *Registry) First() *Origin {
	return r.origins[0]
}

// Size returns the number of configured origins.
func (r *Registry) Size() int {
	return len(r.origins)
}
