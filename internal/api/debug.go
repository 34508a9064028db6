package api

import (
	"context"
	"net/http"
	"time"

	"routeplanner/internal/buildinfo"
)

func (s *Server) HealthHandler(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]string{"status": "ok"})
}

// ReadyHandler pings the Postgres store and the Redis cache when configured.
func (s *Server) ReadyHandler(w http.ResponseWriter, r *http.Request) {
	type pinger interface{ Ping(ctx context.Context) error }
	ctx, cancel := context.WithTimeout(r.Context(), 500*time.Millisecond)
	defer cancel()
	for name, dep := range map[string]any{"store": s.Store, "cache": s.Cache} {
		if p, ok := dep.(pinger); ok {
			if err := p.Ping(ctx); err != nil {
				writeProblem(w, http.StatusServiceUnavailable, "Not Ready", name+": "+err.Error(), r.URL.Path)
				return
			}
		}
	}
	writeJSON(w, http.StatusOK, map[string]string{"status": "ready"})
}

func (s *Server) DebugJSON(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, map[string]any{
		"build": buildinfo.Info(),
		"time":  time.Now().UTC().Format(time.RFC3339),
		"config": map[string]any{
			"port":               s.Cfg.Port,
			"authMode":           s.Cfg.Auth.Mode,
			"rateRps":            s.Cfg.Rate.RPS,
			"rateBurst":          s.Cfg.Rate.Burst,
			"webhookMaxAttempts": s.Cfg.Webhooks.MaxAttempts,
			"solverMode":         s.defaults.Mode.String(),
			"exactMaxN":          s.defaults.ExactMaxN,
			"maxTwoOptPasses":    s.defaults.MaxTwoOptPasses,
			"cacheTtl":           s.Cfg.Cache.TTL.String(),
			"hasDatabaseUrl":     s.Cfg.Database.URL != "",
			"hasRedisUrl":        s.Cfg.Redis.URL != "",
		},
	})
}
