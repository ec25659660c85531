package agent

// Registry exposes agent lookup for HTTP handlers and the relay.
type Registry interface {
	List() []Agent
	FindBySlug(slug string) (Agent, bool)
}

// MemoryRegistry implements Registry with an in-memory slice. Agent rosters
// change at deploy time, not at runtime, so nothing fancier is needed.
type MemoryRegistry struct {
	items []Agent
}

// NewMemoryRegistry returns a MemoryRegistry preloaded with the supplied agents.
func NewMemoryRegistry(items []Agent) *MemoryRegistry {
	return &MemoryRegistry{items: append([]Agent(nil), items...)}
}

// List returns the registered agents.
func (r *MemoryRegistry) List() []Agent {
	return append([]Agent(nil), r.items...)
}

// FindBySlug looks up an agent by its slug.
func (r *MemoryRegistry) FindBySlug(slug string) (Agent, bool) {
	for _, item := range r.items {
		if item.Slug == slug {
			return item, true
		}
	}
	return Agent{}, false
}
