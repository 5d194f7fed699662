// Package gossip is the coordination façade over the libp2p pubsub mesh
// used to disseminate slot headers and shards. It manages connections and
// topic membership and exposes read-only snapshots of mesh state, peer
// scores and the message propagation window. The gossip protocol's own
// validation and mesh maintenance stay inside the pubsub engine.
package gossip

import (
	"context"
	"fmt"
	"time"

	logging "github.com/ipfs/go-log/v2"
	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/host"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

var log = logging.Logger("gossip")

// scoreInspectPeriod is how often the pubsub engine reports peer score
// snapshots to the manager.
const scoreInspectPeriod = 5 * time.Second

// Manager owns the node's pubsub instance and the set of joined topics.
type Manager struct {
	host   host.Host
	pubsub *pubsub.PubSub

	topics *topicSet
	tracer *tracer
	scores *scoreBook

	bootstrapTopics map[string]struct{}
}

// Option configures a Manager.
type Option func(*Manager)

// WithBootstrapTopics marks topics that exist only for initial peer
// discovery; Connections can exclude them from its report.
func WithBootstrapTopics(topics ...string) Option {
	return func(m *Manager) {
		for _, t := range topics {
			m.bootstrapTopics[t] = struct{}{}
		}
	}
}

// NewManager constructs the gossipsub router over the given host.
func NewManager(ctx context.Context, h host.Host, opts ...Option) (*Manager, error) {
	m := &Manager{
		host:            h,
		topics:          newTopicSet(),
		tracer:          newTracer(),
		scores:          newScoreBook(),
		bootstrapTopics: make(map[string]struct{}),
	}
	for _, opt := range opts {
		opt(m)
	}

	ps, err := pubsub.NewGossipSub(ctx, h,
		pubsub.WithPeerScore(peerScoreParams(), peerScoreThresholds()),
		pubsub.WithPeerScoreInspect(m.scores.update, scoreInspectPeriod),
		pubsub.WithRawTracer(m.tracer),
	)
	if err != nil {
		return nil, fmt.Errorf("gossip: creating gossipsub: %w", err)
	}
	m.pubsub = ps
	return m, nil
}

// Stop leaves every joined topic.
func (m *Manager) Stop(context.Context) error {
	return m.topics.closeAll()
}

// Connect dials the given point and waits at most timeout for the
// connection to establish.
func (m *Manager) Connect(ctx context.Context, addr ma.Multiaddr, timeout time.Duration) error {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return fmt.Errorf("gossip: parsing point %s: %w", addr, err)
	}
	if timeout > 0 {
		var cancel context.CancelFunc
		ctx, cancel = context.WithTimeout(ctx, timeout)
		defer cancel()
	}
	if err := m.host.Connect(ctx, *info); err != nil {
		return fmt.Errorf("gossip: connecting to %s: %w", info.ID, err)
	}
	return nil
}

// DisconnectPoint closes every connection established over the given
// address.
func (m *Manager) DisconnectPoint(ctx context.Context, addr ma.Multiaddr) error {
	info, err := peer.AddrInfoFromP2pAddr(addr)
	if err != nil {
		return fmt.Errorf("gossip: parsing point %s: %w", addr, err)
	}
	return m.DisconnectPeer(ctx, info.ID, 0)
}

// DisconnectPeer closes all connections to the peer. With a positive
// grace period it waits up to that long for teardown to be observed.
func (m *Manager) DisconnectPeer(ctx context.Context, id peer.ID, grace time.Duration) error {
	if err := m.host.Network().ClosePeer(id); err != nil {
		return fmt.Errorf("gossip: disconnecting %s: %w", id, err)
	}
	if grace <= 0 {
		return nil
	}

	deadline := time.NewTimer(grace)
	defer deadline.Stop()
	ticker := time.NewTicker(10 * time.Millisecond)
	defer ticker.Stop()
	for m.host.Network().Connectedness(id) == network.Connected {
		select {
		case <-ticker.C:
		case <-deadline.C:
			return nil
		case <-ctx.Done():
			return ctx.Err()
		}
	}
	return nil
}

// ID returns the local peer identity.
func (m *Manager) ID() peer.ID {
	return m.host.ID()
}

func peerScoreParams() *pubsub.PeerScoreParams {
	return &pubsub.PeerScoreParams{
		AppSpecificScore: func(peer.ID) float64 { return 0 },
		DecayInterval:    time.Minute,
		DecayToZero:      0.01,
		RetainScore:      10 * time.Minute,
	}
}

func peerScoreThresholds() *pubsub.PeerScoreThresholds {
	return &pubsub.PeerScoreThresholds{
		GossipThreshold:             -4000,
		PublishThreshold:            -8000,
		GraylistThreshold:           -16000,
		AcceptPXThreshold:           100,
		OpportunisticGraftThreshold: 5,
	}
}
