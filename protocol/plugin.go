// Package protocol maps host-chain block levels to the protocol-behavior
// plugin valid at that level, absorbing protocol migrations as they are
// observed on chain.
package protocol

import (
	"context"
	"errors"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cantina-forks/dal-node/dal"
)

var log = logging.Logger("protocol")

var (
	// ErrNoPluginForLevel is returned by Registry.PluginForLevel when the
	// requested level precedes the earliest registered entry.
	ErrNoPluginForLevel = errors.New("protocol: no plugin for level")
	// ErrNoPluginForProto is returned when the host chain knows no plugin
	// implementation for a protocol generation.
	ErrNoPluginForProto = errors.New("protocol: no plugin for protocol")
)

// Plugin bundles the protocol-dependent constants and behavior of one
// host-chain protocol generation. Implementations are selected at runtime
// through the Registry, one per generation.
type Plugin interface {
	// Name is the human-readable protocol name.
	Name() string
	// ProtoLevel is the protocol generation counter this plugin serves.
	ProtoLevel() int
	// Parameters returns the DAL constants of this generation.
	Parameters() dal.Parameters
	// AttestationLag is the number of levels between a slot's publication
	// and its attestation.
	AttestationLag() int64
	// SlotCount is the number of slot indices available per level.
	SlotCount() int
	// Committee computes the shard assignment for the given level from
	// host-chain state. Deterministic over finalized state, safe to cache.
	Committee(ctx context.Context, level int64) (dal.Committee, error)
}

// Resolver fetches plugin implementations and per-level protocol
// generations from the host chain. It is a suspension point: callers must
// not hold registry locks across it.
type Resolver interface {
	// PluginForProto returns the plugin implementation serving the given
	// protocol generation, or ErrNoPluginForProto.
	PluginForProto(ctx context.Context, protoLevel int) (Plugin, error)
	// ProtoOfLevel returns the protocol generation active at the given level.
	ProtoOfLevel(ctx context.Context, level int64) (int, error)
}

// ResolvePluginForLevel performs a one-shot query-and-resolve for the
// plugin governing the given level. It is the cold path used before any
// Registry exists; once a Registry is built, PluginForLevel serves the
// same question locally.
func ResolvePluginForLevel(ctx context.Context, r Resolver, level int64) (Plugin, error) {
	proto, err := r.ProtoOfLevel(ctx, level)
	if err != nil {
		return nil, err
	}
	return r.PluginForProto(ctx, proto)
}
