// internal/handler/router.go
package handler

import (
	"encoding/json"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.uber.org/zap"

	"github.com/unclebandit/endorsenyc-backend/internal/controller"
)

// API bundles everything the server mounts.
type API struct {
	Endorsements *controller.EndorsementController
	Admin        *controller.AdminController
	Reference    *controller.ReferenceController
	Feeds        *controller.FeedController
	Classify     *ClassifyHandler
	Status       *StatusHandler
	Sources      *SourcesHandler
	Health       *HealthHandler
	// Ready reports whether the database is reachable. nil means always ready.
	Ready func() bool
	Log   *zap.Logger
}

// NewRouter wires the REST API, the health check and /metrics.
func NewRouter(api *API) http.Handler {
	r := chi.NewRouter()
	r.Use(middleware.RequestID)
	r.Use(middleware.Recoverer)
	if api.Log != nil {
		r.Use(requestLogger(api.Log))
	}

	r.Get("/api/health", api.Health.Health)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api", func(r chi.Router) {
		r.Post("/classify", api.Classify.Classify)
		r.Post("/rss/test", api.Feeds.TestFeed)

		r.Group(func(r chi.Router) {
			r.Use(requireReady(api.Ready))

			r.Get("/candidates", api.Reference.ListCandidates)
			r.Get("/endorsers", api.Reference.ListEndorsers)
			r.Post("/endorsers", api.Reference.CreateEndorser)

			r.Get("/endorsements", api.Endorsements.ListEndorsements)
			r.Post("/endorsements", api.Endorsements.CreateEndorsement)
			r.Post("/endorsements/{id}/verify", api.Endorsements.VerifyEndorsement)
			r.Post("/endorsements/{id}/retract", api.Endorsements.RetractEndorsement)

			r.Get("/rss/feeds", api.Feeds.ListFeeds)
			r.Post("/rss/feeds", api.Feeds.CreateFeed)
			r.Post("/rss/check", api.Feeds.CheckFeeds)
			r.Get("/sources", api.Sources.Sources)

			r.Get("/admin/queue", api.Admin.Queue)
			r.Post("/admin/review/{id}/approve", api.Admin.ApproveReview)
			r.Post("/admin/review/{id}/reject", api.Admin.RejectReview)
			r.With(middleware.Timeout(10*time.Minute)).Post("/admin/scrape-endorsements", api.Admin.ScrapeEndorsements)

			r.Get("/system-status", api.Status.SystemStatus)
		})
	})
	return r
}

// NewHealthRouter serves only the health check; the worker runs it.
func NewHealthRouter(h *HealthHandler) http.Handler {
	r := chi.NewRouter()
	r.Get("/api/health", h.Health)
	r.Handle("/metrics", promhttp.Handler())
	return r
}

// requireReady answers 503 while the database has not been reached yet.
func requireReady(ready func() bool) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if ready != nil && !ready() {
				w.Header().Set("Content-Type", "application/json")
				w.Header().Set("Retry-After", "5")
				w.WriteHeader(http.StatusServiceUnavailable)
				json.NewEncoder(w).Encode(map[string]any{"success": false, "error": "database unavailable"})
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

func requestLogger(log *zap.Logger) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			ww := middleware.NewWrapResponseWriter(w, r.ProtoMajor)
			start := time.Now()
			next.ServeHTTP(ww, r)
			log.Debug("http request",
				zap.String("method", r.Method),
				zap.String("path", r.URL.Path),
				zap.Int("status", ww.Status()),
				zap.Duration("duration", time.Since(start)),
				zap.String("request_id", middleware.GetReqID(r.Context())))
		})
	}
}
