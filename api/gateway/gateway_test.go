package gateway

import (
	"bufio"
	"bytes"
	"context"
	"crypto/sha256"
	"encoding/json"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/ipfs/go-datastore"
	ds_sync "github.com/ipfs/go-datastore/sync"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/cantina-forks/dal-node/dal"
	"github.com/cantina-forks/dal-node/nodectx"
	"github.com/cantina-forks/dal-node/protocol"
	"github.com/cantina-forks/dal-node/store"
)

var testParams = dal.Parameters{
	SlotSize:         512,
	PageSize:         128,
	ShardCount:       4,
	RedundancyFactor: 2,
	AttestationLag:   4,
}

type testPlugin struct{}

func (testPlugin) Name() string               { return "test_proto" }
func (testPlugin) ProtoLevel() int            { return 1 }
func (testPlugin) Parameters() dal.Parameters { return testParams }
func (testPlugin) AttestationLag() int64      { return testParams.AttestationLag }
func (testPlugin) SlotCount() int             { return 8 }
func (testPlugin) Committee(context.Context, int64) (dal.Committee, error) {
	return dal.Committee{}, nil
}

type testResolver struct{}

func (testResolver) PluginForProto(context.Context, int) (protocol.Plugin, error) {
	return testPlugin{}, nil
}
func (testResolver) ProtoOfLevel(context.Context, int64) (int, error) { return 1, nil }

// hashCoder derives commitments by hashing and shards by even splitting,
// standing in for a real erasure coder.
type hashCoder struct{}

func (hashCoder) Commit(data []byte) (dal.Commitment, []byte, error) {
	sum := sha256.Sum256(data)
	return sum[:], []byte("proof"), nil
}

func (hashCoder) Shards(data []byte) ([]dal.Shard, error) {
	shards := make([]dal.Shard, testParams.ShardCount)
	size := (len(data) + len(shards) - 1) / len(shards)
	for i := range shards {
		start := i * size
		end := start + size
		if start > len(data) {
			start = len(data)
		}
		if end > len(data) {
			end = len(data)
		}
		shards[i] = dal.Shard{Index: i, Payload: data[start:end], Proof: []byte("p")}
	}
	return shards, nil
}

func newTestHandler(t *testing.T, makeReady bool) (*Handler, *store.Store) {
	t.Helper()
	node := nodectx.New()
	if makeReady {
		err := node.SetReady(context.Background(), testResolver{}, testPlugin{}, testParams, 10)
		require.NoError(t, err)
	}
	st, err := store.New(
		ds_sync.MutexWrap(datastore.NewMapDatastore()),
		store.Parameters{SlotCacheSize: 4, ShardCacheSize: 16, ProofCacheSize: 4},
	)
	require.NoError(t, err)
	return NewHandler(node, st, hashCoder{}), st
}

func newTestServer(t *testing.T, h *Handler) *httptest.Server {
	t.Helper()
	srv := NewServer("localhost", "0")
	h.RegisterEndpoints(srv)
	ts := httptest.NewServer(srv)
	t.Cleanup(ts.Close)
	return ts
}

func TestGateway_NotReady(t *testing.T) {
	h, _ := newTestHandler(t, false)
	ts := newTestServer(t, h)

	resp, err := http.Get(ts.URL + "/slot/ab")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusServiceUnavailable, resp.StatusCode)

	var body errorResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Contains(t, body.Error, "starting")
}

func TestGateway_SlotRoundtrip(t *testing.T) {
	h, _ := newTestHandler(t, true)
	ts := newTestServer(t, h)
	content := bytes.Repeat([]byte("blueprint"), 20)

	resp, err := http.Post(ts.URL+"/slot", "application/octet-stream", bytes.NewReader(content))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var posted PostSlotResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&posted))
	require.NotEmpty(t, posted.Commitment)

	get, err := http.Get(ts.URL + "/slot/" + posted.Commitment)
	require.NoError(t, err)
	defer get.Body.Close()
	require.Equal(t, http.StatusOK, get.StatusCode)

	var buf bytes.Buffer
	_, err = buf.ReadFrom(get.Body)
	require.NoError(t, err)
	assert.Equal(t, content, buf.Bytes())
}

func TestGateway_SlotNotFound(t *testing.T) {
	h, _ := newTestHandler(t, true)
	ts := newTestServer(t, h)

	resp, err := http.Get(ts.URL + "/slot/deadbeef")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestGateway_SlotPages(t *testing.T) {
	h, _ := newTestHandler(t, true)
	ts := newTestServer(t, h)
	content := bytes.Repeat([]byte{0xCD}, 200)

	resp, err := http.Post(ts.URL+"/slot", "application/octet-stream", bytes.NewReader(content))
	require.NoError(t, err)
	defer resp.Body.Close()
	var posted PostSlotResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&posted))

	pagesResp, err := http.Get(ts.URL + "/slot/" + posted.Commitment + "/pages")
	require.NoError(t, err)
	defer pagesResp.Body.Close()
	require.Equal(t, http.StatusOK, pagesResp.StatusCode)

	var pages PagesResponse
	require.NoError(t, json.NewDecoder(pagesResp.Body).Decode(&pages))
	require.Len(t, pages.Pages, testParams.PageCount())
	assert.Equal(t, content[:128], pages.Pages[0])
}

func TestGateway_GetShard(t *testing.T) {
	h, st := newTestHandler(t, true)
	ts := newTestServer(t, h)
	ctx := context.Background()

	commitment := dal.Commitment{0xAA, 0xBB}
	shard := dal.Shard{Index: 3, Payload: []byte("fragment"), Proof: []byte("p")}
	require.NoError(t, st.PutShard(ctx, commitment, shard))

	resp, err := http.Get(fmt.Sprintf("%s/shard/%s/3", ts.URL, commitment))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got dal.Shard
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	assert.Equal(t, shard, got)

	missing, err := http.Get(fmt.Sprintf("%s/shard/%s/9", ts.URL, commitment))
	require.NoError(t, err)
	defer missing.Body.Close()
	assert.Equal(t, http.StatusNotFound, missing.StatusCode)
}

func TestGateway_PostShards(t *testing.T) {
	h, st := newTestHandler(t, true)
	ts := newTestServer(t, h)
	ctx := context.Background()

	commitment := dal.Commitment{0x01}
	for i := 0; i < 4; i++ {
		require.NoError(t, st.PutShard(ctx, commitment, dal.Shard{Index: i, Payload: []byte{byte(i)}}))
	}

	body, err := json.Marshal(ShardsRequest{Indices: []int{1, 3}})
	require.NoError(t, err)
	resp, err := http.Post(ts.URL+"/shards/"+commitment.String(), "application/json", bytes.NewReader(body))
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got ShardsResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Shards, 2)
	assert.Equal(t, 1, got.Shards[0].Index)
	assert.Equal(t, 3, got.Shards[1].Index)

	// empty index list is an invalid request
	empty, err := http.Post(ts.URL+"/shards/"+commitment.String(), "application/json",
		bytes.NewReader([]byte(`{"indices":[]}`)))
	require.NoError(t, err)
	defer empty.Body.Close()
	assert.Equal(t, http.StatusBadRequest, empty.StatusCode)
}

func TestGateway_StoredHeaders(t *testing.T) {
	h, st := newTestHandler(t, true)
	ts := newTestServer(t, h)
	ctx := context.Background()

	header := dal.SlotHeader{
		ID:         dal.SlotID{Level: 10, Index: 0},
		Commitment: dal.Commitment{0x42},
		Status:     dal.StatusAttested,
	}
	require.NoError(t, st.AddHeaderStatus(ctx, "B10", header))

	resp, err := http.Get(ts.URL + "/stored_slot_headers/B10")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var got StoredHeadersResponse
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&got))
	require.Len(t, got.Headers, 1)
	assert.Equal(t, "42", got.Headers[0].Commitment)
	assert.Equal(t, string(dal.StatusAttested), got.Headers[0].Status)
}

func TestGateway_MonitorHeadersStream(t *testing.T) {
	h, st := newTestHandler(t, true)
	ts := newTestServer(t, h)

	resp, err := http.Get(ts.URL + "/monitor/slot_headers")
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	header := dal.SlotHeader{
		ID:         dal.SlotID{Level: 12, Index: 1},
		Commitment: dal.Commitment{0x07},
		Status:     dal.StatusWaitingAttestation,
	}
	reader := bufio.NewReader(resp.Body)
	lineCh := make(chan []byte, 1)
	go func() {
		line, err := reader.ReadBytes('\n')
		if err == nil {
			lineCh <- line
		}
	}()

	// republish until the handler's subscription observes a header
	var line []byte
	require.Eventually(t, func() bool {
		require.NoError(t, st.AddHeaderStatus(context.Background(), "B12", header))
		select {
		case line = <-lineCh:
			return true
		default:
			return false
		}
	}, 3*time.Second, 50*time.Millisecond)

	var got dal.SlotHeader
	require.NoError(t, json.Unmarshal(line, &got))
	assert.Equal(t, header.ID, got.ID)

	// shutdown terminates the stream cleanly
	require.NoError(t, st.Stop(context.Background()))
	_, err = reader.ReadBytes('\n')
	assert.Error(t, err)
}
