package http

import (
	"net/http"

	"github.com/frontandrew/ivisit/internal/delivery/http/middleware"
	"github.com/frontandrew/ivisit/internal/domain"
	"github.com/frontandrew/ivisit/internal/pkg/config"
	"github.com/frontandrew/ivisit/internal/pkg/logger"
	"github.com/frontandrew/ivisit/internal/pkg/metrics"
	"github.com/go-chi/chi/v5"
	chiMiddleware "github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// Handlers - все обработчики API
type Handlers struct {
	Session  *SessionHandler
	Entry    *EntryHandler
	Pass     *PassHandler
	Incident *IncidentHandler
	Job      *JobHandler
}

// Router содержит все зависимости для HTTP роутера
type Router struct {
	handlers Handlers
	tokens   middleware.TokenValidator
	failures middleware.FailureCounter
	metrics  *metrics.Metrics
	gatherer prometheus.Gatherer
	config   *config.Config
	logger   logger.Logger
}

// NewRouter создает новый HTTP router
func NewRouter(
	handlers Handlers,
	tokens middleware.TokenValidator,
	failures middleware.FailureCounter,
	m *metrics.Metrics,
	gatherer prometheus.Gatherer,
	config *config.Config,
	logger logger.Logger,
) *Router {
	return &Router{
		handlers: handlers,
		tokens:   tokens,
		failures: failures,
		metrics:  m,
		gatherer: gatherer,
		config:   config,
		logger:   logger,
	}
}

// Setup настраивает все маршруты
func (rt *Router) Setup() http.Handler {
	r := chi.NewRouter()

	// Глобальные middleware
	r.Use(chiMiddleware.RequestID)
	r.Use(chiMiddleware.RealIP)
	r.Use(middleware.RecoveryMiddleware(rt.logger))
	r.Use(middleware.LoggingMiddleware(rt.logger))
	r.Use(middleware.MetricsMiddleware(rt.metrics))
	r.Use(middleware.CORSMiddleware(middleware.CORSConfig{
		AllowedOrigins: rt.config.CORS.AllowedOrigins,
		AllowedMethods: rt.config.CORS.AllowedMethods,
		AllowedHeaders: rt.config.CORS.AllowedHeaders,
	}))

	// Health check endpoint (публичный)
	r.Get("/health", func(w http.ResponseWriter, r *http.Request) {
		respondJSON(w, http.StatusOK, map[string]string{
			"status": "healthy",
		})
	})
	r.Handle("/metrics", promhttp.HandlerFor(rt.gatherer, promhttp.HandlerOpts{}))

	h := rt.handlers

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.AuthMiddleware(rt.tokens, rt.failures, rt.metrics, rt.logger))
		r.Use(middleware.RequireRole(domain.RoleGuard, domain.RoleAdmin))

		r.Route("/sessions", func(r chi.Router) {
			r.Get("/", h.Session.ListAll)
			r.Get("/active", h.Session.ListActive)
			r.Get("/archived", h.Session.ListArchived)
			r.Post("/check-in", h.Session.CheckIn)

			r.Route("/{id}", func(r chi.Router) {
				r.Get("/", h.Session.Get)
				r.Post("/check-out", h.Session.CheckOut)
				r.Post("/pass", h.Session.GrantPass)
				r.Delete("/pass", h.Session.RevokePass)
				r.Post("/entries", h.Session.RecordEntry)
			})
		})

		r.Route("/entries", func(r chi.Router) {
			r.Get("/recent", h.Entry.ListRecent)
			r.Get("/archived", h.Entry.ListArchived)
		})

		r.Route("/passes", func(r chi.Router) {
			r.Get("/", h.Pass.ListPasses)
			r.Get("/available", h.Pass.ListAvailable)
			r.Get("/by-uid/{uid}", h.Pass.GetPassByUID)
			r.Get("/{id}", h.Pass.GetPassByID)

			// Admin only endpoints
			r.Group(func(r chi.Router) {
				r.Use(middleware.RequireRole(domain.RoleAdmin))
				r.Post("/", h.Pass.CreatePass)
				r.Put("/{id}", h.Pass.UpdatePass)
				r.Put("/{id}/status", h.Pass.SetPassStatus)
				r.Delete("/{id}", h.Pass.DeletePass)
			})
		})

		r.Route("/incidents", func(r chi.Router) {
			r.Get("/", h.Incident.ListIncidents)
			r.Post("/", h.Incident.CreateIncident)
			r.Patch("/{id}/close", h.Incident.CloseIncident)
		})

		r.Route("/admin", func(r chi.Router) {
			r.Use(middleware.RequireRole(domain.RoleAdmin))
			r.Post("/visitors/{id}/soft-close", h.Session.SoftCloseExtraneous)
			r.Post("/jobs/overstay/run", h.Job.RunOverstay)
			r.Post("/jobs/archive/run", h.Job.RunArchive)
		})
	})

	return r
}
