package gateway

import (
	"encoding/json"
	"net/http"

	"github.com/gorilla/mux"
)

const (
	monitorHeadersEndpoint = "/monitor/slot_headers"
	storedHeadersEndpoint  = "/stored_slot_headers"
)

var blockHashKey = "block_hash"

// StoredHeader is one (commitment, status) pair known for a block.
type StoredHeader struct {
	Commitment string `json:"commitment"`
	Status     string `json:"status"`
}

// StoredHeadersResponse lists the slot headers recorded for a block hash.
type StoredHeadersResponse struct {
	Headers []StoredHeader `json:"slot_headers"`
}

// handleMonitorHeaders streams newly observed slot headers as JSON lines.
// The stream stays open until the caller disconnects or the node shuts
// down; shutdown ends the stream cleanly rather than erroring.
func (h *Handler) handleMonitorHeaders(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, monitorHeadersEndpoint); !ok {
		return
	}

	flusher, ok := w.(http.Flusher)
	if !ok {
		writeError(w, http.StatusInternalServerError, monitorHeadersEndpoint, errNoStreaming)
		return
	}

	sub, cancel := h.store.WatchHeaders()
	defer cancel()

	enc := json.NewEncoder(w)
	flusher.Flush()
	for {
		select {
		case header, open := <-sub:
			if !open {
				return
			}
			if err := enc.Encode(header); err != nil {
				log.Debugw("monitor stream closed", "err", err)
				return
			}
			flusher.Flush()
		case <-r.Context().Done():
			return
		}
	}
}

func (h *Handler) handleStoredHeaders(w http.ResponseWriter, r *http.Request) {
	if _, ok := h.ready(w, storedHeadersEndpoint); !ok {
		return
	}

	blockHash := mux.Vars(r)[blockHashKey]
	headers, err := h.store.HeaderStatuses(r.Context(), blockHash)
	if err != nil {
		writeGetError(w, storedHeadersEndpoint, err)
		return
	}

	resp := StoredHeadersResponse{Headers: make([]StoredHeader, 0, len(headers))}
	for _, header := range headers {
		resp.Headers = append(resp.Headers, StoredHeader{
			Commitment: header.Commitment.String(),
			Status:     string(header.Status),
		})
	}
	writeJSON(w, storedHeadersEndpoint, resp)
}
