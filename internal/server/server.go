package server

import (
	"context"
	"fmt"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/stock-insights/internal/adapters"
	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

// Deps are the collaborators the HTTP surface exposes
type Deps struct {
	Client   *adapters.FetchClient
	Trending *adapters.TrendingAggregator
	Enricher *adapters.Enricher

	DefaultTrendingLimit int
	FetchRPS             float64
	FetchBurst           int
}

// Server represents the HTTP server
type Server struct {
	router *chi.Mux
	server *http.Server
	host   string
	port   int
	deps   Deps
}

// New creates a new HTTP server instance
func New(host string, port int, deps Deps) *Server {
	if deps.DefaultTrendingLimit <= 0 {
		deps.DefaultTrendingLimit = 10
	}
	if deps.FetchRPS <= 0 {
		deps.FetchRPS = 1
	}
	if deps.FetchBurst <= 0 {
		deps.FetchBurst = 1
	}

	r := chi.NewRouter()
	r.Use(middleware.RealIP)
	r.Use(RequestID)
	r.Use(RequestMetrics)
	r.Use(Recovery)

	r.NotFound(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusNotFound, "not_found", "the requested resource was not found", 0)
	})
	r.MethodNotAllowed(func(w http.ResponseWriter, req *http.Request) {
		writeError(w, req, http.StatusMethodNotAllowed, "method_not_allowed", "the requested method is not allowed for this resource", 0)
	})

	s := &Server{router: r, host: host, port: port, deps: deps}
	s.registerRoutes(rate.NewLimiter(rate.Limit(deps.FetchRPS), deps.FetchBurst))
	return s
}

// Start starts the HTTP server
func (s *Server) Start() error {
	addr := fmt.Sprintf("%s:%d", s.host, s.port)
	s.server = &http.Server{
		Addr:         addr,
		Handler:      s.router,
		ReadTimeout:  30 * time.Second,
		WriteTimeout: 90 * time.Second, // trending scans wait on call spacing
		IdleTimeout:  120 * time.Second,
	}

	observ.Log("http_server_starting", map[string]any{"addr": addr})
	return s.server.ListenAndServe()
}

// Shutdown gracefully shuts down the HTTP server
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server == nil {
		return nil
	}
	observ.Log("http_server_stopping", nil)
	return s.server.Shutdown(ctx)
}

// Handler exposes the underlying router for testing
func (s *Server) Handler() http.Handler {
	return s.router
}
