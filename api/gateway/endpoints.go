package gateway

import (
	"errors"
	"fmt"
	"net/http"
)

var errNoStreaming = errors.New("response writer does not support streaming")

// RegisterEndpoints wires every gateway endpoint onto the server.
func (h *Handler) RegisterEndpoints(srv *Server) {
	// slot endpoints
	srv.RegisterHandlerFunc(slotEndpoint, h.handlePostSlot, http.MethodPost)
	srv.RegisterHandlerFunc(fmt.Sprintf("%s/{%s}", slotEndpoint, commitmentKey),
		h.handleGetSlot, http.MethodGet)
	srv.RegisterHandlerFunc(fmt.Sprintf("%s/{%s}/pages", slotEndpoint, commitmentKey),
		h.handleGetSlotPages, http.MethodGet)

	// shard endpoints
	srv.RegisterHandlerFunc(fmt.Sprintf("%s/{%s}/{%s}", shardEndpoint, commitmentKey, shardIndexKey),
		h.handleGetShard, http.MethodGet)
	srv.RegisterHandlerFunc(fmt.Sprintf("%s/{%s}", shardsEndpoint, commitmentKey),
		h.handlePostShards, http.MethodPost)

	// slot header endpoints
	srv.RegisterHandlerFunc(monitorHeadersEndpoint, h.handleMonitorHeaders, http.MethodGet)
	srv.RegisterHandlerFunc(fmt.Sprintf("%s/{%s}", storedHeadersEndpoint, blockHashKey),
		h.handleStoredHeaders, http.MethodGet)
}
