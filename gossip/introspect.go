package gossip

import (
	"sort"
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/network"
	"github.com/libp2p/go-libp2p/core/peer"
	ma "github.com/multiformats/go-multiaddr"
)

// TopicPeers reports one topic together with the peers currently known on
// its mesh.
type TopicPeers struct {
	Topic string    `json:"topic"`
	Peers []peer.ID `json:"peers"`
}

// ConnectionInfo is a read-only snapshot of one peer connection, used for
// observability and RPC reporting only.
type ConnectionInfo struct {
	Peer      peer.ID        `json:"peer"`
	Addrs     []ma.Multiaddr `json:"addrs"`
	Direction string         `json:"direction"`
	Opened    time.Time      `json:"opened"`
	Topics    []string       `json:"topics"`
}

// PeerScore is one peer's current gossipsub reputation.
type PeerScore struct {
	Peer  peer.ID `json:"peer"`
	Score float64 `json:"score"`
}

// Topics returns the names of all joined topics, sorted.
func (m *Manager) Topics() []string {
	names := m.topics.names()
	sort.Strings(names)
	return names
}

// TopicsWithPeers reports topic membership. With subscribedOnly it covers
// only topics this node actively subscribes to; otherwise every joined
// topic, including publish-only ones.
func (m *Manager) TopicsWithPeers(subscribedOnly bool) []TopicPeers {
	var names []string
	if subscribedOnly {
		names = m.pubsub.GetTopics()
	} else {
		names = m.topics.names()
	}
	sort.Strings(names)

	out := make([]TopicPeers, 0, len(names))
	for _, name := range names {
		out = append(out, TopicPeers{Topic: name, Peers: m.pubsub.ListPeers(name)})
	}
	return out
}

// Connections snapshots every live connection. With ignoreBootstrapTopics
// the per-connection topic list omits topics that exist only for peer
// discovery.
func (m *Manager) Connections(ignoreBootstrapTopics bool) []ConnectionInfo {
	var out []ConnectionInfo
	for _, conn := range m.host.Network().Conns() {
		p := conn.RemotePeer()
		stat := conn.Stat()
		out = append(out, ConnectionInfo{
			Peer:      p,
			Addrs:     []ma.Multiaddr{conn.RemoteMultiaddr()},
			Direction: direction(stat.Direction),
			Opened:    stat.Opened,
			Topics:    m.peerTopics(p, ignoreBootstrapTopics),
		})
	}
	return out
}

// Scores returns each known peer's current reputation score, purely for
// diagnostics.
func (m *Manager) Scores() []PeerScore {
	return m.scores.snapshot()
}

// Backoffs reports topic-scoped reconnection backoffs still in effect.
func (m *Manager) Backoffs() map[string]map[peer.ID]time.Time {
	return m.tracer.activeBackoffs()
}

// MessageWindow reports, per gossip tick, how many message identifiers are
// retained per topic. It serves reasoning about propagation windows; no
// business logic consumes it.
func (m *Manager) MessageWindow() map[int64]map[string]int {
	return m.tracer.messageWindow()
}

func (m *Manager) peerTopics(p peer.ID, ignoreBootstrap bool) []string {
	var topics []string
	for _, name := range m.topics.names() {
		if ignoreBootstrap {
			if _, ok := m.bootstrapTopics[name]; ok {
				continue
			}
		}
		for _, member := range m.pubsub.ListPeers(name) {
			if member == p {
				topics = append(topics, name)
				break
			}
		}
	}
	sort.Strings(topics)
	return topics
}

func direction(d network.Direction) string {
	switch d {
	case network.DirInbound:
		return "inbound"
	case network.DirOutbound:
		return "outbound"
	default:
		return "unknown"
	}
}

// scoreBook retains the latest peer score snapshot pushed by the pubsub
// engine's score inspector.
type scoreBook struct {
	mu     sync.Mutex
	scores map[peer.ID]float64
}

func newScoreBook() *scoreBook {
	return &scoreBook{scores: make(map[peer.ID]float64)}
}

func (sb *scoreBook) update(snapshot map[peer.ID]*pubsub.PeerScoreSnapshot) {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	for p, snap := range snapshot {
		sb.scores[p] = snap.Score
	}
}

func (sb *scoreBook) snapshot() []PeerScore {
	sb.mu.Lock()
	defer sb.mu.Unlock()
	out := make([]PeerScore, 0, len(sb.scores))
	for p, score := range sb.scores {
		out = append(out, PeerScore{Peer: p, Score: score})
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Peer < out[j].Peer })
	return out
}
