package gossip

import (
	"context"
	"testing"
	"time"

	mocknet "github.com/libp2p/go-libp2p/p2p/net/mock"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestManagers(t *testing.T, n int) []*Manager {
	t.Helper()
	net, err := mocknet.FullMeshConnected(n)
	require.NoError(t, err)
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	t.Cleanup(cancel)

	managers := make([]*Manager, n)
	for i, h := range net.Hosts() {
		m, err := NewManager(ctx, h)
		require.NoError(t, err)
		t.Cleanup(func() { _ = m.Stop(context.Background()) })
		managers[i] = m
	}
	return managers
}

func TestTopicName(t *testing.T) {
	assert.Equal(t, "dal/v1/slot_index_3/pkh_tz1abc", TopicName(3, "tz1abc"))
	assert.Equal(t, TopicName(3, "tz1abc"), TopicName(3, "tz1abc"))
	assert.NotEqual(t, TopicName(3, "tz1abc"), TopicName(4, "tz1abc"))
}

func TestManager_PublishSubscribe(t *testing.T) {
	ms := newTestManagers(t, 2)
	topic := TopicName(0, "tz1member")

	sub, err := ms[1].Subscribe(topic)
	require.NoError(t, err)
	defer sub.Cancel()

	require.NoError(t, ms[0].Join(topic))
	// wait for the mesh to learn about the subscription
	require.Eventually(t, func() bool {
		return len(ms[0].pubsub.ListPeers(topic)) > 0
	}, 3*time.Second, 10*time.Millisecond)

	require.NoError(t, ms[0].Publish(context.Background(), topic, []byte("shard-bytes")))

	ctx, cancel := context.WithTimeout(context.Background(), 3*time.Second)
	defer cancel()
	data, err := sub.Next(ctx)
	require.NoError(t, err)
	assert.Equal(t, []byte("shard-bytes"), data)
}

func TestManager_Topics(t *testing.T) {
	ms := newTestManagers(t, 1)
	m := ms[0]

	assert.Empty(t, m.Topics())

	require.NoError(t, m.Join(TopicName(1, "tz1a")))
	require.NoError(t, m.Join(TopicName(0, "tz1a")))
	require.NoError(t, m.Join(TopicName(1, "tz1a"))) // idempotent

	assert.Equal(t, []string{TopicName(0, "tz1a"), TopicName(1, "tz1a")}, m.Topics())
}

func TestManager_TopicsWithPeers(t *testing.T) {
	ms := newTestManagers(t, 2)
	topic := TopicName(2, "tz1b")

	// joined but not subscribed: reported only with subscribedOnly=false
	require.NoError(t, ms[0].Join(topic))
	subscribed := ms[0].TopicsWithPeers(true)
	assert.Empty(t, subscribed)
	all := ms[0].TopicsWithPeers(false)
	require.Len(t, all, 1)
	assert.Equal(t, topic, all[0].Topic)

	sub, err := ms[0].Subscribe(topic)
	require.NoError(t, err)
	defer sub.Cancel()

	_, err = ms[1].Subscribe(topic)
	require.NoError(t, err)

	require.Eventually(t, func() bool {
		report := ms[0].TopicsWithPeers(true)
		return len(report) == 1 && len(report[0].Peers) == 1
	}, 3*time.Second, 10*time.Millisecond)
}

func TestManager_Connections(t *testing.T) {
	ms := newTestManagers(t, 2)

	conns := ms[0].Connections(false)
	require.Len(t, conns, 1)
	assert.Equal(t, ms[1].ID(), conns[0].Peer)
	assert.NotZero(t, conns[0].Opened)
}

func TestManager_DisconnectPeer(t *testing.T) {
	ms := newTestManagers(t, 2)

	require.Len(t, ms[0].Connections(false), 1)
	err := ms[0].DisconnectPeer(context.Background(), ms[1].ID(), time.Second)
	require.NoError(t, err)
	assert.Empty(t, ms[0].Connections(false))
}

func TestTracer_MessageWindow(t *testing.T) {
	tr := newTracer()
	now := time.Unix(1000, 0)
	tr.now = func() time.Time { return now }

	window := tr.messageWindow()
	assert.Empty(t, window)

	// counts bucket per tick and topic
	tr.window[now.Unix()] = map[string]int{"topic-a": 3, "topic-b": 1}
	now = now.Add(TickInterval)
	tr.window[now.Unix()] = map[string]int{"topic-a": 2}

	window = tr.messageWindow()
	require.Len(t, window, 2)
	assert.Equal(t, 3, window[1000]["topic-a"])
	assert.Equal(t, 2, window[1001]["topic-a"])
}

func TestTracer_DropsStaleTicks(t *testing.T) {
	tr := newTracer()
	now := time.Unix(1000, 0)
	tr.now = func() time.Time { return now }

	tr.window[now.Unix()] = map[string]int{"topic-a": 1}

	now = now.Add((windowTicks + 1) * TickInterval)
	tr.mu.Lock()
	tr.window[now.Unix()] = map[string]int{"topic-a": 1}
	tr.dropStaleTicks(now.Unix())
	tr.mu.Unlock()

	window := tr.messageWindow()
	require.Len(t, window, 1)
	_, ok := window[1000]
	assert.False(t, ok)
}

func TestTracer_Backoffs(t *testing.T) {
	tr := newTracer()
	now := time.Unix(2000, 0)
	tr.now = func() time.Time { return now }

	tr.Prune("peer-1", "topic-a")
	backoffs := tr.activeBackoffs()
	require.Contains(t, backoffs, "topic-a")
	assert.Len(t, backoffs["topic-a"], 1)

	// expired backoffs are dropped
	now = now.Add(pruneBackoff + time.Second)
	assert.Empty(t, tr.activeBackoffs())
}
