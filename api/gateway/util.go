package gateway

import (
	"encoding/json"
	"net/http"
)

type errorResponse struct {
	Error string `json:"error"`
}

func writeError(w http.ResponseWriter, statusCode int, endpoint string, err error) {
	log.Debugw("serving request", "endpoint", endpoint, "err", err)

	w.WriteHeader(statusCode)
	body, mErr := json.Marshal(errorResponse{Error: err.Error()})
	if mErr != nil {
		log.Errorw("encoding error response", "endpoint", endpoint, "err", mErr)
		return
	}
	if _, err := w.Write(body); err != nil {
		log.Errorw("writing error response", "endpoint", endpoint, "err", err)
	}
}

func writeJSON(w http.ResponseWriter, endpoint string, resp any) {
	body, err := json.Marshal(resp)
	if err != nil {
		writeError(w, http.StatusInternalServerError, endpoint, err)
		return
	}
	if _, err := w.Write(body); err != nil {
		log.Errorw("serving request", "endpoint", endpoint, "err", err)
	}
}
