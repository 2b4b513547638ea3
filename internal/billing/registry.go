package billing

import (
	"fmt"
	"sort"
)

// Registry resolves a gateway by the name stored on a payment.
type Registry struct {
	gateways    map[string]Gateway
	defaultName string
}

// NewRegistry creates a registry. The first gateway is the default unless
// defaultName names another registered gateway.
func NewRegistry(defaultName string, gateways ...Gateway) *Registry {
	r := &Registry{gateways: make(map[string]Gateway, len(gateways))}
	for _, g := range gateways {
		r.gateways[g.Name()] = g
		if r.defaultName == "" {
			r.defaultName = g.Name()
		}
	}
	if _, ok := r.gateways[defaultName]; ok {
		r.defaultName = defaultName
	}
	return r
}

// Get returns the gateway registered under name.
func (r *Registry) Get(name string) (Gateway, error) {
	g, ok := r.gateways[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q", ErrUnsupportedGateway, name)
	}
	return g, nil
}

// Resolve returns the named gateway, or the default when name is empty.
func (r *Registry) Resolve(name string) (Gateway, error) {
	if name == "" {
		name = r.defaultName
	}
	return r.Get(name)
}

// Default returns the default gateway name.
func (r *Registry) Default() string {
	return r.defaultName
}

// Names lists registered gateways in lexical order.
func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.gateways))
	for name := range r.gateways {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
