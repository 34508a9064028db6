package api

import (
	"context"
	"log"
	"net/http"
	"strings"

	"routeplanner/internal/auth"
	"routeplanner/internal/cache"
	"routeplanner/internal/config"
	"routeplanner/internal/opt"
	"routeplanner/internal/store"
	"routeplanner/internal/webhooks"
)

type Server struct {
	Cfg      config.Config
	Store    store.Store
	Pub      *webhooks.Publisher
	Auth     *auth.Verifier
	Broker   EventBroker
	Cache    cache.Cache
	Limiter  *TenantLimiter
	Validate *Validator
	defaults opt.Options
}

// NewServer wires the server from cfg. Without a database URL the in-memory
// store is used; without a Redis URL the broker and result cache stay in process.
func NewServer(cfg config.Config) (*Server, error) {
	var s store.Store
	if strings.TrimSpace(cfg.Database.URL) == "" {
		s = store.NewMemory()
	} else {
		sp, err := store.NewPostgres(cfg.Database.URL)
		if err != nil {
			return nil, err
		}
		if cfg.Database.Migrate {
			if err := sp.MigrateDir(cfg.Database.MigrationsDir); err != nil {
				return nil, err
			}
		}
		s = sp
	}

	var broker EventBroker = NewBroker()
	var resultCache cache.Cache = cache.NewMemory(cfg.Cache.TTL, 4096)
	if cfg.Redis.URL != "" {
		if rb, err := NewRedisBroker(cfg.Redis.URL); err == nil {
			broker = rb
		} else {
			log.Printf("redis broker disabled: %v", err)
		}
		if rc, err := cache.NewRedis(cfg.Redis.URL, cfg.Cache.TTL); err == nil {
			resultCache = rc
		} else {
			log.Printf("redis cache disabled: %v", err)
		}
	}

	mode, _ := opt.ParseMode(cfg.Solver.Mode)
	return &Server{
		Cfg:      cfg,
		Store:    s,
		Pub:      webhooks.NewPublisher(s),
		Auth:     auth.NewVerifier(cfg.Auth),
		Broker:   broker,
		Cache:    resultCache,
		Limiter:  NewTenantLimiter(cfg.Rate.RPS, cfg.Rate.Burst),
		Validate: NewValidator(),
		defaults: opt.Options{Mode: mode, ExactMaxN: cfg.Solver.ExactMaxN, MaxTwoOptPasses: cfg.Solver.MaxTwoOptPasses},
	}, nil
}

func (s *Server) withTenant(r *http.Request) (context.Context, string) {
	tenant := s.getPrincipal(r).Tenant
	ctx := context.WithValue(r.Context(), ctxKeyTenant{}, tenant)
	return ctx, tenant
}

type ctxKeyTenant struct{}

// NewWebhookWorker creates a background worker for webhook deliveries.
func (s *Server) NewWebhookWorker() *webhooks.Worker {
	return webhooks.NewWorker(s.Store, s.Cfg.Webhooks.MaxAttempts, s.Cfg.Webhooks.PollInterval)
}

// Close releases the database handle when one is open.
func (s *Server) Close() error {
	if c, ok := s.Store.(interface{ Close() error }); ok {
		return c.Close()
	}
	return nil
}
