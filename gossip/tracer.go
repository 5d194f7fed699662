package gossip

import (
	"sync"
	"time"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
	"github.com/libp2p/go-libp2p/core/peer"
	"github.com/libp2p/go-libp2p/core/protocol"
)

const (
	// TickInterval is the width of one message-window bucket, aligned
	// with the gossipsub heartbeat.
	TickInterval = time.Second
	// windowTicks is how many past ticks of message counts are retained.
	windowTicks = 12
	// pruneBackoff mirrors the gossipsub prune backoff applied to a peer
	// before it may rejoin a topic mesh.
	pruneBackoff = time.Minute
)

// tracer observes raw pubsub events to maintain the per-tick message
// window and topic-scoped prune backoffs. It feeds introspection only;
// no business logic consumes it.
type tracer struct {
	mu sync.Mutex

	// tick (unix seconds) → topic → retained message-ID count
	window map[int64]map[string]int
	// topic → peer → backoff expiry
	backoffs map[string]map[peer.ID]time.Time

	now func() time.Time
}

var _ pubsub.RawTracer = (*tracer)(nil)

func newTracer() *tracer {
	return &tracer{
		window:   make(map[int64]map[string]int),
		backoffs: make(map[string]map[peer.ID]time.Time),
		now:      time.Now,
	}
}

func (t *tracer) DeliverMessage(msg *pubsub.Message) {
	t.mu.Lock()
	defer t.mu.Unlock()

	tick := t.now().Truncate(TickInterval).Unix()
	bucket, ok := t.window[tick]
	if !ok {
		bucket = make(map[string]int)
		t.window[tick] = bucket
		t.dropStaleTicks(tick)
	}
	bucket[msg.GetTopic()]++
}

func (t *tracer) Prune(p peer.ID, topic string) {
	t.mu.Lock()
	defer t.mu.Unlock()

	peers, ok := t.backoffs[topic]
	if !ok {
		peers = make(map[peer.ID]time.Time)
		t.backoffs[topic] = peers
	}
	peers[p] = t.now().Add(pruneBackoff)
}

// messageWindow snapshots retained message counts per tick per topic.
func (t *tracer) messageWindow() map[int64]map[string]int {
	t.mu.Lock()
	defer t.mu.Unlock()

	out := make(map[int64]map[string]int, len(t.window))
	for tick, bucket := range t.window {
		topics := make(map[string]int, len(bucket))
		for topic, count := range bucket {
			topics[topic] = count
		}
		out[tick] = topics
	}
	return out
}

// activeBackoffs snapshots unexpired prune backoffs per topic.
func (t *tracer) activeBackoffs() map[string]map[peer.ID]time.Time {
	t.mu.Lock()
	defer t.mu.Unlock()

	now := t.now()
	out := make(map[string]map[peer.ID]time.Time)
	for topic, peers := range t.backoffs {
		for p, until := range peers {
			if until.Before(now) {
				delete(peers, p)
				continue
			}
			if out[topic] == nil {
				out[topic] = make(map[peer.ID]time.Time)
			}
			out[topic][p] = until
		}
		if len(peers) == 0 {
			delete(t.backoffs, topic)
		}
	}
	return out
}

// dropStaleTicks keeps the window bounded. Callers hold t.mu.
func (t *tracer) dropStaleTicks(current int64) {
	horizon := current - windowTicks*int64(TickInterval/time.Second)
	for tick := range t.window {
		if tick <= horizon {
			delete(t.window, tick)
		}
	}
}

// remaining RawTracer callbacks are not tracked

func (t *tracer) AddPeer(peer.ID, protocol.ID)          {}
func (t *tracer) RemovePeer(peer.ID)                    {}
func (t *tracer) Join(string)                           {}
func (t *tracer) Leave(string)                          {}
func (t *tracer) Graft(peer.ID, string)                 {}
func (t *tracer) ValidateMessage(*pubsub.Message)       {}
func (t *tracer) RejectMessage(*pubsub.Message, string) {}
func (t *tracer) DuplicateMessage(*pubsub.Message)      {}
func (t *tracer) ThrottlePeer(peer.ID)                  {}
func (t *tracer) RecvRPC(*pubsub.RPC)                   {}
func (t *tracer) SendRPC(*pubsub.RPC, peer.ID)          {}
func (t *tracer) DropRPC(*pubsub.RPC, peer.ID)          {}
func (t *tracer) UndeliverableMessage(*pubsub.Message)  {}
