package server

import (
	"encoding/json"
	"net/http"

	"github.com/amiaddur/wavepipe/internal/download"
)

// Client facing error messages
const (
	MsgMissingURL   = "missing url"
	MsgInfoFailed   = "failed to fetch info"
	MsgDownloadFail = "download failed"
	MsgRateLimited  = "rate limit exceeded"
	MsgInternal     = "internal server error"
)

type errorResponse struct {
	Error   string `json:"error"`
	Details string `json:"details,omitempty"`
}

// statusFor maps a pipeline error to an HTTP status
func statusFor(err error) int {
	switch download.Classify(err) {
	case download.FailureInvalidURL:
		return http.StatusBadRequest
	case download.FailureToolNotFound:
		return http.StatusServiceUnavailable
	case download.FailureTimeout:
		return http.StatusGatewayTimeout
	case download.FailureCanceled:
		return StatusClientClosedRequest
	default:
		return http.StatusInternalServerError
	}
}

// StatusClientClosedRequest is logged when the client went away first
const StatusClientClosedRequest = 499

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, status int, message string, err error) {
	resp := errorResponse{Error: message}
	if err != nil {
		resp.Details = err.Error()
	}
	writeJSON(w, status, resp)
}
