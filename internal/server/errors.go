package server

import (
	"encoding/json"
	"errors"
	"math"
	"net/http"
	"strconv"
	"time"

	"github.com/Rajchodisetti/stock-insights/internal/adapters"
)

// ErrorResponse is the body of every non-2xx reply
type ErrorResponse struct {
	Error      string `json:"error"`
	Detail     string `json:"detail"`
	RetryAfter int    `json:"retry_after,omitempty"`
	RequestID  string `json:"request_id,omitempty"`
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}

func writeError(w http.ResponseWriter, r *http.Request, status int, code, detail string, retryAfter time.Duration) {
	resp := ErrorResponse{Error: code, Detail: detail, RequestID: GetRequestID(r.Context())}
	if retryAfter > 0 {
		resp.RetryAfter = int(math.Ceil(retryAfter.Seconds()))
		w.Header().Set("Retry-After", strconv.Itoa(resp.RetryAfter))
	}
	writeJSON(w, status, resp)
}

// statusForKind maps a fetch error kind to the HTTP status we reply with
func statusForKind(kind adapters.ErrorKind) int {
	switch kind {
	case adapters.KindUnsupportedMarket:
		return http.StatusBadRequest
	case adapters.KindRateLimited:
		return http.StatusTooManyRequests
	case adapters.KindTimeout:
		return http.StatusGatewayTimeout
	case adapters.KindAuthFailure, adapters.KindProviderError, adapters.KindMalformed, adapters.KindNetwork:
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}

// writeFetchError renders err as {error: kind, detail, retry_after?}.
func writeFetchError(w http.ResponseWriter, r *http.Request, err error) {
	var fe *adapters.FetchError
	if !errors.As(err, &fe) {
		writeError(w, r, http.StatusInternalServerError, "internal", err.Error(), 0)
		return
	}
	detail := fe.Message
	if detail == "" {
		detail = fe.Error()
	}
	writeError(w, r, statusForKind(fe.Kind), string(fe.Kind), detail, fe.RetryAfter)
}
