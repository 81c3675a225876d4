package main

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"github.com/govtrack/backend/internal/identity"
	"github.com/govtrack/backend/internal/metrics"
	"github.com/govtrack/backend/internal/policy"
	"github.com/govtrack/backend/internal/publication"
	"github.com/govtrack/backend/internal/repository"
)

type server struct {
	log           *slog.Logger
	sources       repository.SourceRepository
	opportunities repository.OpportunityRepository
	tracking      repository.TrackingRepository
	health        func(ctx context.Context) error
	verifier      identity.Verifier
	policy        policy.Policy
	events        publication.Publisher
	metrics       *metrics.API
	region        string
	emulator      bool
	now           func() time.Time
}

// routes builds the router. gatherer may be nil when metrics are not exposed.
func (s *server) routes(requestTimeout time.Duration, gatherer prometheus.Gatherer) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	if requestTimeout > 0 {
		r.Use(middleware.Timeout(requestTimeout))
	}

	r.Get("/health", s.handleHealth)
	r.Get("/opportunities", s.handleListOpportunities)
	if gatherer != nil {
		r.Handle("/metrics", promhttp.HandlerFor(gatherer, promhttp.HandlerOpts{}))
	}

	r.Group(func(r chi.Router) {
		r.Use(s.requireAuth)
		r.Post("/tracking", s.handleSaveTracking)
		r.Get("/tracking", s.handleListTracking)

		r.Route("/admin", func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/opportunities", s.handleSaveOpportunity)
			r.Post("/opportunities/{id}/verify", s.handleVerify)
			r.Post("/opportunities/{id}/reject", s.handleReject)
			r.Post("/sources", s.handleSaveSource)
		})
	})

	return r
}
