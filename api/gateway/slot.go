package gateway

import (
	"io"
	"net/http"

	"github.com/gorilla/mux"

	"github.com/cantina-forks/dal-node/dal"
)

const (
	slotEndpoint      = "/slot"
	slotPagesEndpoint = "/slot/{commitment}/pages"
)

var commitmentKey = "commitment"

// PostSlotResponse carries the commitment assigned to freshly posted slot
// content.
type PostSlotResponse struct {
	Commitment string `json:"commitment"`
}

// PagesResponse is the ordered list of a slot's page chunks.
type PagesResponse struct {
	Pages [][]byte `json:"pages"`
}

func (h *Handler) handlePostSlot(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, slotEndpoint); !ok {
		return
	}

	data, err := io.ReadAll(r.Body)
	if err != nil {
		writeError(w, http.StatusBadRequest, slotEndpoint, err)
		return
	}
	if len(data) == 0 {
		writeError(w, http.StatusBadRequest, slotEndpoint, errEmptySlot)
		return
	}

	commitment, proof, err := h.coder.Commit(data)
	if err != nil {
		writeError(w, http.StatusBadRequest, slotEndpoint, err)
		return
	}
	shards, err := h.coder.Shards(data)
	if err != nil {
		writeError(w, http.StatusInternalServerError, slotEndpoint, err)
		return
	}

	ctx := r.Context()
	if err := h.store.PutSlot(ctx, commitment, data); err != nil {
		writeError(w, http.StatusInternalServerError, slotEndpoint, err)
		return
	}
	if err := h.store.PutProof(ctx, commitment, proof); err != nil {
		writeError(w, http.StatusInternalServerError, slotEndpoint, err)
		return
	}
	for _, shard := range shards {
		if err := h.store.PutShard(ctx, commitment, shard); err != nil {
			writeError(w, http.StatusInternalServerError, slotEndpoint, err)
			return
		}
	}

	writeJSON(w, slotEndpoint, PostSlotResponse{Commitment: commitment.String()})
}

func (h *Handler) handleGetSlot(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, slotEndpoint); !ok {
		return
	}
	commitment, err := parseCommitment(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, slotEndpoint, err)
		return
	}

	data, err := h.store.GetSlot(r.Context(), commitment)
	if err != nil {
		writeGetError(w, slotEndpoint, err)
		return
	}
	w.Header().Set("Content-Type", "application/octet-stream")
	if _, err := w.Write(data); err != nil {
		log.Errorw("serving request", "endpoint", slotEndpoint, "err", err)
	}
}

func (h *Handler) handleGetSlotPages(w http.ResponseWriter, r *http.Request) {
	ready, ok := h.ready(w, slotPagesEndpoint)
	if !ok {
		return
	}
	commitment, err := parseCommitment(r)
	if err != nil {
		writeError(w, http.StatusBadRequest, slotPagesEndpoint, err)
		return
	}

	pages, err := h.store.Pages(r.Context(), commitment, ready.Params)
	if err != nil {
		writeGetError(w, slotPagesEndpoint, err)
		return
	}
	writeJSON(w, slotPagesEndpoint, PagesResponse{Pages: pages})
}

func parseCommitment(r *http.Request) (dal.Commitment, error) {
	return dal.CommitmentFromString(mux.Vars(r)[commitmentKey])
}
