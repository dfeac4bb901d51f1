package oauth

import "strings"

// Registry holds the strategies for configured providers. Providers with
// missing credentials are simply never registered, so looking one up fails
// with a typed error rather than a nil strategy.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

// Register adds a strategy under its canonical provider name.
func (r *Registry) Register(s Strategy) {
	r.strategies[strings.ToUpper(s.Provider())] = s
}

// Get returns the strategy for the provider (case-insensitive) or
// ErrUnsupportedProvider.
func (r *Registry) Get(provider string) (Strategy, error) {
	s, ok := r.strategies[strings.ToUpper(provider)]
	if !ok {
		return nil, ErrUnsupportedProvider
	}
	return s, nil
}

// Providers returns the canonical names of all configured providers.
func (r *Registry) Providers() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	return names
}
