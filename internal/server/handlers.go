package server

import (
	"errors"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/Rajchodisetti/stock-insights/internal/adapters"
)

const maxTrendingLimit = 50

// OKResponse wraps a successful provider payload
type OKResponse struct {
	OK adapters.Payload `json:"ok"`
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.deps.Client.Tracker().Snapshot())
}

func (s *Server) handlePreflight(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	function := strings.TrimSpace(q.Get("function"))
	if function == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "function is required", 0)
		return
	}
	writeJSON(w, http.StatusOK, s.deps.Client.Tracker().Preflight(function, q.Get("symbol")))
}

func (s *Server) handleTrending(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	limit := s.deps.DefaultTrendingLimit
	if raw := q.Get("limit"); raw != "" {
		n, err := strconv.Atoi(raw)
		if err != nil || n < 0 || n > maxTrendingLimit {
			writeError(w, r, http.StatusBadRequest, "bad_request", "limit must be an integer between 0 and 50", 0)
			return
		}
		limit = n
	}
	var exclude []string
	for _, part := range strings.Split(q.Get("exclude"), ",") {
		if part = strings.TrimSpace(part); part != "" {
			exclude = append(exclude, part)
		}
	}

	entries := s.deps.Trending.TrendingExcluding(r.Context(), limit, exclude)
	writeJSON(w, http.StatusOK, map[string]any{
		"stocks": entries,
		"status": s.deps.Client.Tracker().Snapshot(),
	})
}

// handleFetch proxies one budgeted provider call. Parameters other than
// function and symbol are forwarded as-is.
func (s *Server) handleFetch(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	function := strings.TrimSpace(q.Get("function"))
	if function == "" {
		writeError(w, r, http.StatusBadRequest, "bad_request", "function is required", 0)
		return
	}
	params := url.Values{}
	for k, vs := range q {
		switch strings.ToLower(k) {
		case "function", "symbol", "apikey":
			continue
		}
		params[k] = vs
	}

	payload, err := s.deps.Client.Call(r.Context(), function, q.Get("symbol"), params)
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, OKResponse{OK: payload})
}

func (s *Server) handleStockData(w http.ResponseWriter, r *http.Request) {
	data, err := s.deps.Enricher.StockData(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, data)
}

func (s *Server) handleTechnicalAnalysis(w http.ResponseWriter, r *http.Request) {
	ta, err := s.deps.Enricher.TechnicalAnalysis(r.Context(), chi.URLParam(r, "symbol"))
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, ta)
}

func (s *Server) handleSearch(w http.ResponseWriter, r *http.Request) {
	matches, err := s.deps.Enricher.SearchSymbols(r.Context(), r.URL.Query().Get("keywords"))
	if errors.Is(err, adapters.ErrEmptyKeywords) {
		writeError(w, r, http.StatusBadRequest, "bad_request", err.Error(), 0)
		return
	}
	if err != nil {
		writeFetchError(w, r, err)
		return
	}
	writeJSON(w, http.StatusOK, map[string]any{"matches": matches, "count": len(matches)})
}
