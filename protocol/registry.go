package protocol

import (
	"context"
	"fmt"
	"sort"
	"sync"
)

// entry is one (firstLevel, Plugin) pair. The plugin governs levels in
// [firstLevel, nextEntry.firstLevel).
type entry struct {
	firstLevel int64
	plugin     Plugin
}

// Registry is an ordered, non-overlapping collection of plugin entries
// sorted by firstLevel ascending. For any level at or above the smallest
// registered firstLevel, exactly one entry's interval contains it. The
// registry grows by one entry per observed protocol migration and never
// shrinks.
type Registry struct {
	resolver Resolver

	mu      sync.RWMutex
	entries []entry
}

// NewRegistry creates an empty Registry resolving new plugins through r.
func NewRegistry(r Resolver) *Registry {
	return &Registry{resolver: r}
}

// PluginForLevel returns the plugin whose interval contains level. It is a
// pure local lookup and never queries the host chain.
func (r *Registry) PluginForLevel(level int64) (Plugin, error) {
	r.mu.RLock()
	defer r.mu.RUnlock()

	// index of the first entry with firstLevel > level
	i := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].firstLevel > level
	})
	if i == 0 {
		return nil, fmt.Errorf("%w: %d", ErrNoPluginForLevel, level)
	}
	return r.entries[i-1].plugin, nil
}

// MayAdd registers a plugin for the given protocol generation starting at
// firstLevel, resolving its implementation through the host chain. It is
// idempotent: a generation already covered by an entry is left untouched.
func (r *Registry) MayAdd(ctx context.Context, firstLevel int64, protoLevel int) error {
	if r.covers(protoLevel) {
		return nil
	}

	plugin, err := r.resolver.PluginForProto(ctx, protoLevel)
	if err != nil {
		return err
	}

	// resolution suspended, another caller may have inserted meanwhile
	r.mu.Lock()
	defer r.mu.Unlock()
	for _, e := range r.entries {
		if e.plugin.ProtoLevel() == protoLevel {
			return nil
		}
	}
	r.insert(entry{firstLevel: firstLevel, plugin: plugin})
	log.Infow("registered protocol plugin",
		"name", plugin.Name(), "proto", protoLevel, "first_level", firstLevel)
	return nil
}

// InitialPlugins seeds the registry with entries covering the last
// attestationLag+2 levels of history ending at currentLevel, one entry per
// distinct protocol generation found in that window. That window is the
// minimum for which past protocol parameters may still be queried; keeping
// the whole interval history would be unbounded.
func (r *Registry) InitialPlugins(ctx context.Context, currentLevel, attestationLag int64) error {
	window := attestationLag + 2
	oldest := currentLevel - window + 1
	if oldest < 0 {
		oldest = 0
	}

	lastProto := -1
	for level := oldest; level <= currentLevel; level++ {
		proto, err := r.resolver.ProtoOfLevel(ctx, level)
		if err != nil {
			return fmt.Errorf("protocol: resolving proto at level %d: %w", level, err)
		}
		if proto == lastProto {
			continue
		}
		if err := r.MayAdd(ctx, level, proto); err != nil {
			return err
		}
		lastProto = proto
	}
	return nil
}

// Len returns the number of registered entries.
func (r *Registry) Len() int {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return len(r.entries)
}

func (r *Registry) covers(protoLevel int) bool {
	r.mu.RLock()
	defer r.mu.RUnlock()
	for _, e := range r.entries {
		if e.plugin.ProtoLevel() == protoLevel {
			return true
		}
	}
	return false
}

// insert keeps entries sorted by firstLevel ascending. Callers hold r.mu.
func (r *Registry) insert(e entry) {
	i := sort.Search(len(r.entries), func(i int) bool {
		return r.entries[i].firstLevel >= e.firstLevel
	})
	if i < len(r.entries) && r.entries[i].firstLevel == e.firstLevel {
		return
	}
	r.entries = append(r.entries, entry{})
	copy(r.entries[i+1:], r.entries[i:])
	r.entries[i] = e
}
