package server

import (
	"github.com/go-chi/chi/v5"
	"golang.org/x/time/rate"

	"github.com/Rajchodisetti/stock-insights/internal/observ"
)

// registerRoutes registers all HTTP routes
func (s *Server) registerRoutes(fetchLimiter *rate.Limiter) {
	s.router.Get("/health", observ.Health().ServeHTTP)
	s.router.Get("/health/detail", observ.HealthHandler().ServeHTTP)
	s.router.Get("/metrics", observ.Handler().ServeHTTP)

	s.router.Route("/v1", func(r chi.Router) {
		r.Get("/status", s.handleStatus)
		r.Get("/preflight", s.handlePreflight)

		// routes that spend provider budget share one local request budget
		r.Group(func(r chi.Router) {
			r.Use(LimitRate(fetchLimiter))
			r.Get("/trending", s.handleTrending)
			r.Get("/fetch", s.handleFetch)
			r.Get("/search", s.handleSearch)
			r.Get("/stock/{symbol}", s.handleStockData)
			r.Get("/analysis/{symbol}", s.handleTechnicalAnalysis)
		})
	})
}
