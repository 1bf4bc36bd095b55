package policy

import (
	"fmt"
	"sort"
)

// Registry holds all target presets.
type Registry struct {
	presets map[string]TargetPreset
}

// NewRegistry creates a registry with all default presets.
func NewRegistry() *Registry {
	r := &Registry{
		presets: make(map[string]TargetPreset),
	}

	r.Register(NewSteamPreset())
	r.Register(NewDota2Preset())

	return r
}

// NewRegistryWithPresets creates a registry with custom presets (for testing).
func NewRegistryWithPresets(presets ...TargetPreset) *Registry {
	r := &Registry{
		presets: make(map[string]TargetPreset),
	}
	for _, p := range presets {
		r.Register(p)
	}
	return r
}

// Register adds a preset to the registry.
func (r *Registry) Register(p TargetPreset) {
	r.presets[p.ID()] = p
}

// Get returns a preset by ID.
func (r *Registry) Get(id string) (TargetPreset, bool) {
	p, ok := r.presets[id]
	return p, ok
}

// Resolve looks up every ID, failing on the first unknown one.
func (r *Registry) Resolve(ids ...string) ([]TargetPreset, error) {
	out := make([]TargetPreset, 0, len(ids))
	for _, id := range ids {
		p, ok := r.presets[id]
		if !ok {
			return nil, fmt.Errorf("preset not found: %s", id)
		}
		out = append(out, p)
	}
	return out, nil
}

// List returns all preset IDs, sorted.
func (r *Registry) List() []string {
	ids := make([]string, 0, len(r.presets))
	for id := range r.presets {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}
