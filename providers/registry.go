package providers

// Registry manages the registered generation providers and embedders for
// lookup by name.
type Registry struct {
	providers map[string]Provider
	embedders map[string]Embedder
}

// NewRegistry creates an empty registry.
func NewRegistry() *Registry {
	return &Registry{
		providers: make(map[string]Provider),
		embedders: make(map[string]Embedder),
	}
}

// Register adds a generation provider.
func (r *Registry) Register(p Provider) {
	r.providers[p.Name()] = p
}

// RegisterEmbedder adds an embedder.
func (r *Registry) RegisterEmbedder(e Embedder) {
	r.embedders[e.Name()] = e
}

// Get returns a generation provider by name.
func (r *Registry) Get(name string) (Provider, bool) {
	p, ok := r.providers[name]
	return p, ok
}

// GetEmbedder returns an embedder by name.
func (r *Registry) GetEmbedder(name string) (Embedder, bool) {
	e, ok := r.embedders[name]
	return e, ok
}

// List returns the names of all registered generation providers.
func (r *Registry) List() []string {
	names := make([]string, 0, len(r.providers))
	for name := range r.providers {
		names = append(names, name)
	}
	return names
}

// ListEmbedders returns the names of all registered embedders.
func (r *Registry) ListEmbedders() []string {
	names := make([]string, 0, len(r.embedders))
	for name := range r.embedders {
		names = append(names, name)
	}
	return names
}
