package gossip

import (
	"context"
	"fmt"
	"sync"

	pubsub "github.com/libp2p/go-libp2p-pubsub"
)

// TopicName derives the deterministic topic for a (slot index, participant)
// pair, so that subscription scope can be computed from a committee.
func TopicName(slotIndex int, participant string) string {
	return fmt.Sprintf("dal/v1/slot_index_%d/pkh_%s", slotIndex, participant)
}

// topicSet tracks the topics this node has joined.
type topicSet struct {
	mu     sync.Mutex
	topics map[string]*pubsub.Topic
}

func newTopicSet() *topicSet {
	return &topicSet{topics: make(map[string]*pubsub.Topic)}
}

func (ts *topicSet) get(name string) (*pubsub.Topic, bool) {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	t, ok := ts.topics[name]
	return t, ok
}

func (ts *topicSet) names() []string {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	names := make([]string, 0, len(ts.topics))
	for name := range ts.topics {
		names = append(names, name)
	}
	return names
}

func (ts *topicSet) closeAll() error {
	ts.mu.Lock()
	defer ts.mu.Unlock()
	var firstErr error
	for name, t := range ts.topics {
		if err := t.Close(); err != nil && firstErr == nil {
			firstErr = fmt.Errorf("gossip: closing topic %s: %w", name, err)
		}
		delete(ts.topics, name)
	}
	return firstErr
}

// Join enters the topic's mesh, making it publishable and subscribable.
// Joining an already joined topic is a no-op.
func (m *Manager) Join(topic string) error {
	m.topics.mu.Lock()
	defer m.topics.mu.Unlock()
	if _, ok := m.topics.topics[topic]; ok {
		return nil
	}
	t, err := m.pubsub.Join(topic)
	if err != nil {
		return fmt.Errorf("gossip: joining topic %s: %w", topic, err)
	}
	m.topics.topics[topic] = t
	return nil
}

// Publish broadcasts data on the topic, joining it first if needed.
func (m *Manager) Publish(ctx context.Context, topic string, data []byte) error {
	if err := m.Join(topic); err != nil {
		return err
	}
	t, _ := m.topics.get(topic)
	return t.Publish(ctx, data)
}

// Subscription delivers messages published on one topic.
type Subscription struct {
	sub *pubsub.Subscription
}

// Subscribe joins the topic if needed and returns a new Subscription on it.
func (m *Manager) Subscribe(topic string) (*Subscription, error) {
	if err := m.Join(topic); err != nil {
		return nil, err
	}
	t, _ := m.topics.get(topic)
	sub, err := t.Subscribe()
	if err != nil {
		return nil, fmt.Errorf("gossip: subscribing to %s: %w", topic, err)
	}
	return &Subscription{sub: sub}, nil
}

// Next blocks until the next message on the topic arrives.
func (s *Subscription) Next(ctx context.Context) ([]byte, error) {
	msg, err := s.sub.Next(ctx)
	if err != nil {
		return nil, err
	}
	log.Debugw("received message", "topic", msg.GetTopic(), "sender", msg.ReceivedFrom)
	return msg.Data, nil
}

// Cancel stops the subscription.
func (s *Subscription) Cancel() {
	s.sub.Cancel()
}
