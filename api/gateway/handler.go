package gateway

import (
	"errors"
	"net/http"

	"github.com/cantina-forks/dal-node/dal"
	"github.com/cantina-forks/dal-node/nodectx"
	"github.com/cantina-forks/dal-node/store"
)

// Coder turns raw slot bytes into a commitment with proof and into
// shards. The cryptographic scheme behind it is pluggable.
type Coder interface {
	Commit(data []byte) (dal.Commitment, []byte, error)
	Shards(data []byte) ([]dal.Shard, error)
}

// Handler serves the gateway endpoints over the node's state, store and
// coder.
type Handler struct {
	node  *nodectx.Context
	store *store.Store
	coder Coder
}

func NewHandler(node *nodectx.Context, store *store.Store, coder Coder) *Handler {
	return &Handler{
		node:  node,
		store: store,
		coder: coder,
	}
}

// ready gates a request on node readiness, mapping ErrNotReady to the
// "service starting" response.
func (h *Handler) ready(w http.ResponseWriter, endpoint string) (*nodectx.Ready, bool) {
	ready, err := h.node.GetReady()
	if err != nil {
		writeError(w, http.StatusServiceUnavailable, endpoint, errServiceStarting)
		return nil, false
	}
	return ready, true
}

var errServiceStarting = errors.New("service is starting")

// writeGetError maps store lookup failures onto the error taxonomy.
func writeGetError(w http.ResponseWriter, endpoint string, err error) {
	switch {
	case errors.Is(err, store.ErrNotFound):
		writeError(w, http.StatusNotFound, endpoint, err)
	default:
		writeError(w, http.StatusInternalServerError, endpoint, err)
	}
}
