package gateway

import (
	"encoding/json"
	"errors"
	"net/http"
	"strconv"

	"github.com/gorilla/mux"

	"github.com/cantina-forks/dal-node/dal"
)

const (
	shardEndpoint  = "/shard"
	shardsEndpoint = "/shards"
)

var shardIndexKey = "index"

var (
	errEmptySlot  = errors.New("empty slot content")
	errNoIndices  = errors.New("no shard indices requested")
	errShardIndex = errors.New("invalid shard index")
)

// ShardsRequest lists the shard indices to fetch for one commitment.
type ShardsRequest struct {
	Indices []int `json:"indices"`
}

// ShardsResponse carries the requested shards.
type ShardsResponse struct {
	Shards []dal.Shard `json:"shards"`
}

func (h *Handler) handleGetShard(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, shardEndpoint); !ok {
		return
	}
	commitment, err := parseCommitment(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, shardEndpoint, err)
		return
	}
	index, err := strconv.Atoi(mux.Vars(r)[shardIndexKey])
	if err != nil || index < 0 {
		writeError(w, http.StatusBadRequest, shardEndpoint, errShardIndex)
		return
	}

	shard, err := h.store.GetShard(r.Context(), commitment, index)
	if err != nil {
		writeGetError(w, shardEndpoint, err)
		return
	}
	writeJSON(w, shardEndpoint, shard)
}

func (h *Handler) handlePostShards(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, shardsEndpoint); !ok {
		return
	}
	commitment, err := parseCommitment(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, shardsEndpoint, err)
		return
	}

	var req ShardsRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		writeError(w, http.StatusBadRequest, shardsEndpoint, err)
		return
	}
	if len(req.Indices) == 0 {
		writeError(w, http.StatusBadRequest, shardsEndpoint, errNoIndices)
		return
	}

	shards, err := h.store.GetShards(r.Context(), commitment, req.Indices)
	if err != nil {
		writeGetError(w, shardsEndpoint, err)
		return
	}
	writeJSON(w, shardsEndpoint, ShardsResponse{Shards: shards})
}
