package source

import (
	"slices"

	"github.com/rotisserie/eris"

	"github.com/sells-group/lead-pipeline/internal/normalize"
)

// Registry maps connector names to implementations.
type Registry struct {
	connectors map[string]Connector
	order      []string // registration order for deterministic iteration
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{connectors: make(map[string]Connector)}
}

// Register adds c. Registering a name twice replaces the earlier connector
// but keeps its position.
func (r *Registry) Register(c Connector) {
	name := c.Name()
	if _, ok := r.connectors[name]; !ok {
		r.order = append(r.order, name)
	}
	r.connectors[name] = c
}

// Get returns a connector by name.
func (r *Registry) Get(name string) (Connector, error) {
	c, ok := r.connectors[name]
	if !ok {
		return nil, eris.Errorf("source: unknown connector %q", name)
	}
	return c, nil
}

// Select returns the connectors to run for countries. If names is non-empty
// only those connectors are considered. Connectors without a country always
// match; an empty countries list matches everything.
func (r *Registry) Select(countries, names []string) ([]Connector, error) {
	var candidates []Connector
	if len(names) > 0 {
		for _, name := range names {
			c, err := r.Get(name)
			if err != nil {
				return nil, err
			}
			candidates = append(candidates, c)
		}
	} else {
		candidates = r.All()
	}

	wanted := make([]string, 0, len(countries))
	for _, c := range countries {
		wanted = append(wanted, normalize.Country(c))
	}

	var out []Connector
	for _, c := range candidates {
		if c.Country() == "" || len(wanted) == 0 || slices.Contains(wanted, normalize.Country(c.Country())) {
			out = append(out, c)
		}
	}
	return out, nil
}

// All returns every connector in registration order.
func (r *Registry) All() []Connector {
	out := make([]Connector, 0, len(r.order))
	for _, name := range r.order {
		out = append(out, r.connectors[name])
	}
	return out
}

// AllNames returns registered names in registration order.
func (r *Registry) AllNames() []string {
	return slices.Clone(r.order)
}
