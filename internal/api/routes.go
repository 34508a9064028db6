package api

import (
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/render"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	"routeplanner/internal/metrics"
)

// Routes builds the HTTP router.
func (s *Server) Routes() http.Handler {
	metrics.RegisterDefault()

	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.RealIP)
	r.Use(middleware.Recoverer)
	r.Use(metricsMiddleware)

	r.Get("/healthz", s.HealthHandler)
	r.Get("/readyz", s.ReadyHandler)
	r.Handle("/metrics", promhttp.HandlerFor(metrics.Registry, promhttp.HandlerOpts{}))
	r.Get("/debug/info", s.DebugJSON)
	r.Get("/openapi.yaml", s.OpenAPIHandler)
	r.Get("/openapi.json", s.OpenAPIJSONHandler)
	r.Get("/docs", s.DocsHandler)

	r.Route("/v1", func(r chi.Router) {
		r.Use(s.authenticate)
		r.Get("/optimizer/config", s.OptimizerConfigHandler)
		r.Get("/events/stream", s.TenantEventsStreamHandler)
		r.Get("/ws", s.WSHandler)

		r.Route("/tours", func(r chi.Router) {
			r.Get("/", s.ListToursHandler)
			r.Get("/stats", s.TourStatsHandler)
			r.Group(func(r chi.Router) {
				r.Use(s.requirePlanner)
				r.Use(s.rateLimit)
				r.With(render.SetContentType(render.ContentTypeJSON)).Post("/", s.CreateTourHandler)
				r.Post("/batch", s.BatchToursHandler)
				r.Post("/import", s.ImportToursHandler)
			})
			r.Route("/{tourID}", func(r chi.Router) {
				r.Get("/", s.GetTourHandler)
				r.Get("/text", s.TourTextHandler)
				r.Get("/events/stream", s.TourEventsStreamHandler)
				r.With(s.requirePlanner).Delete("/", s.DeleteTourHandler)
			})
		})

		r.Group(func(r chi.Router) {
			r.Use(s.requireAdmin)
			r.Post("/subscriptions", s.CreateSubscriptionHandler)
			r.Get("/subscriptions", s.ListSubscriptionsHandler)
			r.Delete("/subscriptions/{subID}", s.DeleteSubscriptionHandler)
			r.Get("/admin/webhook-deliveries", s.WebhookDeliveriesHandler)
			r.Post("/admin/webhook-deliveries/{deliveryID}/retry", s.WebhookDeliveryRetryHandler)
		})
	})
	return r
}

// metricsMiddleware records request counts and durations by route pattern so
// tour IDs do not explode label cardinality.
func metricsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		start := time.Now()
		ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
		next.ServeHTTP(ww, r)
		path := "unmatched"
		if rc := chi.RouteContext(r.Context()); rc != nil && rc.RoutePattern() != "" {
			path = rc.RoutePattern()
		}
		status := strconv.Itoa(ww.Status())
		metrics.HTTPRequests.WithLabelValues(r.Method, path, status).Inc()
		metrics.HTTPDuration.WithLabelValues(r.Method, path, status).Observe(time.Since(start).Seconds())
	})
}
