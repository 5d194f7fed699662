package nodebuilder

import (
	"bytes"
	"context"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"go.uber.org/fx"

	"github.com/cantina-forks/dal-node/api/gateway"
	"github.com/cantina-forks/dal-node/chain"
	"github.com/cantina-forks/dal-node/dal"
)

var testParams = dal.Parameters{
	SlotSize:         512,
	PageSize:         64,
	ShardCount:       16,
	RedundancyFactor: 4,
	AttestationLag:   4,
}

// scriptedChain serves a single-generation chain whose blocks are pushed
// through push().
type scriptedChain struct {
	mu     sync.Mutex
	stream chan chain.BlockInfo
}

func (s *scriptedChain) ProtocolsAtHead(context.Context) (chain.Protocols, error) {
	return chain.Protocols{Current: 1, Next: 1}, nil
}

func (s *scriptedChain) ProtoOfLevel(context.Context, int64) (int, error) {
	return 1, nil
}

func (s *scriptedChain) ProtocolInfo(_ context.Context, protoLevel int) (chain.ProtocolInfo, error) {
	return chain.ProtocolInfo{
		Name:          "proto_001",
		ProtoLevel:    protoLevel,
		NumberOfSlots: 8,
		Parameters:    testParams,
	}, nil
}

func (s *scriptedChain) CommitteeForLevel(context.Context, int64) (dal.Committee, error) {
	return dal.Committee{"tz1member": {0, 1, 2}}, nil
}

func (s *scriptedChain) BlockStream(context.Context) (<-chan chain.BlockInfo, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.stream = make(chan chain.BlockInfo, 16)
	return s.stream, nil
}

func (s *scriptedChain) push(blocks ...chain.BlockInfo) {
	s.mu.Lock()
	defer s.mu.Unlock()
	for _, b := range blocks {
		s.stream <- b
	}
}

func (s *scriptedChain) subscribed() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.stream != nil
}

func startTestNode(t *testing.T) (*Node, *scriptedChain) {
	t.Helper()
	client := &scriptedChain{}
	nd := TestNode(t, fx.Replace(
		fx.Annotate(client, fx.As(new(chain.Client))),
	))

	ctx, cancel := context.WithTimeout(context.Background(), time.Minute)
	t.Cleanup(cancel)
	require.NoError(t, nd.Start(ctx))
	t.Cleanup(func() {
		require.NoError(t, nd.Stop(ctx))
	})
	return nd, client
}

func TestNodeLifecycle(t *testing.T) {
	nd, client := startTestNode(t)

	// not ready until the crawler has seen a block
	_, err := nd.NodeCtx.GetReady()
	require.Error(t, err)

	require.Eventually(t, client.subscribed, time.Second, time.Millisecond)
	client.push(
		chain.BlockInfo{Hash: "B10", Level: 10, ProtoLevel: 1},
		chain.BlockInfo{Hash: "B11", Level: 11, ProtoLevel: 1},
		chain.BlockInfo{Hash: "B12", Level: 12, ProtoLevel: 1},
	)

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	ready, err := nd.NodeCtx.WaitReady(ctx)
	require.NoError(t, err)
	assert.Equal(t, testParams, ready.Params)

	p, err := ready.Registry.PluginForLevel(12)
	require.NoError(t, err)
	assert.Equal(t, 1, p.ProtoLevel())
}

func TestNodeGatewaySlotRoundtrip(t *testing.T) {
	nd, client := startTestNode(t)

	require.Eventually(t, client.subscribed, time.Second, time.Millisecond)
	client.push(chain.BlockInfo{Hash: "B10", Level: 10, ProtoLevel: 1})

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()
	_, err := nd.NodeCtx.WaitReady(ctx)
	require.NoError(t, err)

	base := "http://" + nd.GatewayServer.ListenAddr()
	data := bytes.Repeat([]byte("s"), testParams.SlotSize)

	resp, err := http.Post(base+"/slot", "application/octet-stream", bytes.NewReader(data))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var posted gateway.PostSlotResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&posted))
	require.NotEmpty(t, posted.Commitment)

	got, err := http.Get(base + "/slot/" + posted.Commitment)
	require.NoError(t, err)
	defer got.Body.Close()
	require.Equal(t, http.StatusOK, got.StatusCode)

	stored, err := io.ReadAll(got.Body)
	require.NoError(t, err)
	assert.Equal(t, data, stored)

	shard, err := http.Get(fmt.Sprintf("%s/shard/%s/3", base, posted.Commitment))
	require.NoError(t, err)
	defer shard.Body.Close()
	assert.Equal(t, http.StatusOK, shard.StatusCode)
}
