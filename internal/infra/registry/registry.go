// Package registry holds the immutable, named collection of
// configured adapters.
package registry

import (
	"fmt"
	"log/slog"

	"github.com/ied-systems/ied/internal/core/domain"
)

// Registry is read-only after construction. Lookups by name are O(1);
// ordered iteration returns adapters in configuration order so fan-out
// logs and test fixtures stay deterministic.
type Registry struct {
	byName []entry
	index  map[string]int
}

type entry struct {
	descriptor domain.AdapterDescriptor
}

// New builds a Registry from the supplied descriptors. Construction
// fails fast with domain.ErrNoAdaptersConfigured if descriptors is
// empty, and with a descriptive error if any name or chain id repeats.
// log may be nil, in which case no warnings are emitted.
func New(descriptors []domain.AdapterDescriptor, log *slog.Logger) (*Registry, error) {
	if len(descriptors) == 0 {
		return nil, domain.ErrNoAdaptersConfigured
	}

	r := &Registry{index: make(map[string]int, len(descriptors))}
	seenChainIDs := make(map[string]string, len(descriptors))

	for _, d := range descriptors {
		if _, exists := r.index[d.Name]; exists {
			return nil, fmt.Errorf("duplicate adapter name: %s", d.Name)
		}
		if d.ChainID == "" && log != nil {
			log.Warn("adapter has no chain id configured, keying cache entries by adapter name instead", "adapter", d.Name)
		}
		key := d.CacheKey()
		if owner, exists := seenChainIDs[key]; exists {
			return nil, fmt.Errorf("adapter %s and %s share cache key %q", owner, d.Name, key)
		}
		seenChainIDs[key] = d.Name

		r.index[d.Name] = len(r.byName)
		r.byName = append(r.byName, entry{descriptor: d})
	}

	return r, nil
}

// All returns every adapter descriptor in configuration order.
func (r *Registry) All() []domain.AdapterDescriptor {
	out := make([]domain.AdapterDescriptor, len(r.byName))
	for i, e := range r.byName {
		out[i] = e.descriptor
	}
	return out
}

// ByName looks up a descriptor by adapter name.
func (r *Registry) ByName(name string) (domain.AdapterDescriptor, bool) {
	i, ok := r.index[name]
	if !ok {
		return domain.AdapterDescriptor{}, false
	}
	return r.byName[i].descriptor, true
}

// ChainIDs returns the cache key of every configured adapter, in
// configuration order.
func (r *Registry) ChainIDs() []string {
	out := make([]string, len(r.byName))
	for i, e := range r.byName {
		out[i] = e.descriptor.CacheKey()
	}
	return out
}

// Len returns the number of configured adapters.
func (r *Registry) Len() int {
	return len(r.byName)
}
