// Package chain connects the DAL node to its host chain: it defines the
// client interface over which protocol generations, committees and the
// block stream are queried, and the crawler daemon that replays blocks to
// drive node readiness and plugin-registry growth.
package chain

import (
	"context"

	logging "github.com/ipfs/go-log/v2"

	"github.com/cantina-forks/dal-node/dal"
)

var log = logging.Logger("chain")

// Protocols reports the protocol generations at the chain head.
type Protocols struct {
	Current int
	Next    int
}

// BlockInfo is the crawler's view of one finalized block. Blocks arrive in
// level order, without gaps.
type BlockInfo struct {
	Hash       string
	Level      int64
	ProtoLevel int
}

// ProtocolInfo describes one protocol generation as reported by the host
// chain, including its DAL parameter set.
type ProtocolInfo struct {
	Name          string
	ProtoLevel    int
	NumberOfSlots int
	Parameters    dal.Parameters
}

// Client is the host-chain RPC surface this node consumes. All methods are
// suspension points.
type Client interface {
	// ProtocolsAtHead returns the current and next protocol generations.
	ProtocolsAtHead(ctx context.Context) (Protocols, error)
	// ProtoOfLevel returns the protocol generation active at level.
	ProtoOfLevel(ctx context.Context, level int64) (int, error)
	// ProtocolInfo fetches the description of a protocol generation.
	ProtocolInfo(ctx context.Context, protoLevel int) (ProtocolInfo, error)
	// CommitteeForLevel samples the DAL committee at level from chain state.
	CommitteeForLevel(ctx context.Context, level int64) (dal.Committee, error)
	// BlockStream subscribes to the finalized block stream. The returned
	// channel is closed when the subscription breaks; the caller
	// resubscribes.
	BlockStream(ctx context.Context) (<-chan BlockInfo, error)
}
