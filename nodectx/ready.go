package nodectx

import (
	"context"
	"errors"
	"fmt"

	"github.com/cantina-forks/dal-node/dal"
	"github.com/cantina-forks/dal-node/dal/cache"
	"github.com/cantina-forks/dal-node/protocol"
	"github.com/cantina-forks/dal-node/recovery"
)

// DefaultCommitteeCacheSize bounds the number of per-level committees kept
// in memory.
const DefaultCommitteeCacheSize = 50

// Ready carries everything the node needs once the first protocol plugin
// has been resolved: protocol parameters, the plugin registry, the bounded
// committee cache and the reconstruction/amplification coordinator.
// The struct itself is immutable; its fields guard their own mutation.
type Ready struct {
	Params   dal.Parameters
	Registry *protocol.Registry
	Recovery *recovery.Coordinator

	committees *cache.Cache[int64, dal.Committee]
}

func newReady(params dal.Parameters, registry *protocol.Registry) (*Ready, error) {
	if err := params.Validate(); err != nil {
		return nil, err
	}
	committees, err := cache.New[int64, dal.Committee]("committee", DefaultCommitteeCacheSize)
	if err != nil {
		return nil, err
	}
	return &Ready{
		Params:     params,
		Registry:   registry,
		Recovery:   recovery.NewCoordinator(),
		committees: committees,
	}, nil
}

// FetchCommittee returns the committee at the given level, querying the
// host chain through the level's plugin on a cache miss. Committees are
// deterministic over finalized chain state, so a cached level is never
// refetched until evicted.
func (r *Ready) FetchCommittee(ctx context.Context, level int64) (dal.Committee, error) {
	if c, err := r.committees.Get(level); err == nil {
		return c, nil
	}

	plugin, err := r.Registry.PluginForLevel(level)
	if err != nil {
		return nil, err
	}
	c, err := plugin.Committee(ctx, level)
	if err != nil {
		return nil, fmt.Errorf("nodectx: fetching committee at level %d: %w", level, err)
	}
	r.committees.Put(level, c)
	return c, nil
}

// CachedAssignment returns the shard indices assigned to participant at
// level, if the level's committee is already cached. It never triggers a
// network query; read paths that must not suspend use it.
func (r *Ready) CachedAssignment(level int64, participant string) (dal.ShardIndexes, bool) {
	c, err := r.committees.Get(level)
	if errors.Is(err, cache.ErrCacheMiss) {
		return nil, false
	}
	return c.Assignment(participant)
}

// CommitteeCacheLen is exposed for introspection and tests.
func (r *Ready) CommitteeCacheLen() int {
	return r.committees.Len()
}
