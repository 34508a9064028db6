// Package config loads service settings from an optional YAML file and
// environment overrides.
package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	yaml "gopkg.in/yaml.v3"
)

type Config struct {
	Port     string         `yaml:"port"`
	Database DatabaseConfig `yaml:"database"`
	Redis    RedisConfig    `yaml:"redis"`
	Rate     RateConfig     `yaml:"rate"`
	Webhooks WebhookConfig  `yaml:"webhooks"`
	Solver   SolverConfig   `yaml:"solver"`
	Cache    CacheConfig    `yaml:"cache"`
	Auth     AuthConfig     `yaml:"auth"`
}

type DatabaseConfig struct {
	URL           string `yaml:"url"`
	Migrate       bool   `yaml:"migrate"`
	MigrationsDir string `yaml:"migrationsDir"`
}

type RedisConfig struct {
	URL string `yaml:"url"`
}

// RateConfig limits solve requests. RPS <= 0 disables limiting.
type RateConfig struct {
	RPS   float64 `yaml:"rps"`
	Burst int     `yaml:"burst"`
}

type WebhookConfig struct {
	MaxAttempts  int           `yaml:"maxAttempts"`
	PollInterval time.Duration `yaml:"pollInterval"`
}

type SolverConfig struct {
	Mode            string `yaml:"mode"`
	ExactMaxN       int    `yaml:"exactMaxN"`
	MaxTwoOptPasses int    `yaml:"maxTwoOptPasses"`
	MaxPoints       int    `yaml:"maxPoints"`
	BatchWorkers    int    `yaml:"batchWorkers"`
}

type CacheConfig struct {
	TTL time.Duration `yaml:"ttl"`
}

// AuthConfig selects how bearer tokens are verified: dev (tenant:role),
// hmac (HS256) or jwks (RS256).
type AuthConfig struct {
	Mode        string `yaml:"mode"`
	HMACSecret  string `yaml:"hmacSecret"`
	JWKSURL     string `yaml:"jwksUrl"`
	TenantClaim string `yaml:"tenantClaim"`
	RoleClaim   string `yaml:"roleClaim"`
}

// Default returns the built-in settings.
func Default() Config {
	return Config{
		Port:     "8080",
		Database: DatabaseConfig{Migrate: true, MigrationsDir: "db/migrations"},
		Rate:     RateConfig{RPS: 20, Burst: 40},
		Webhooks: WebhookConfig{MaxAttempts: 10, PollInterval: time.Second},
		Solver:   SolverConfig{Mode: "auto", ExactMaxN: 12, MaxTwoOptPasses: 1000, MaxPoints: 200, BatchWorkers: 4},
		Cache:    CacheConfig{TTL: 10 * time.Minute},
		Auth:     AuthConfig{Mode: "dev", TenantClaim: "tenant", RoleClaim: "role"},
	}
}

// Load reads path (if non-empty) over the defaults, then applies env overrides.
func Load(path string) (Config, error) {
	cfg := Default()
	if strings.TrimSpace(path) != "" {
		data, err := os.ReadFile(path)
		if err != nil {
			return cfg, fmt.Errorf("read config: %w", err)
		}
		if err := yaml.Unmarshal(data, &cfg); err != nil {
			return cfg, fmt.Errorf("parse config %s: %w", path, err)
		}
	}
	if err := cfg.applyEnv(os.Getenv); err != nil {
		return cfg, err
	}
	return cfg, cfg.Validate()
}

// FromEnv loads the file named by CONFIG_FILE, if any.
func FromEnv() (Config, error) { return Load(os.Getenv("CONFIG_FILE")) }

func (c *Config) applyEnv(getenv func(string) string) error {
	if v := getenv("PORT"); v != "" {
		c.Port = v
	}
	if v := getenv("DATABASE_URL"); v != "" {
		c.Database.URL = v
	}
	if v := getenv("DB_MIGRATE"); v != "" {
		c.Database.Migrate = v != "false"
	}
	if v := getenv("REDIS_URL"); v != "" {
		c.Redis.URL = v
	}
	if v := getenv("SOLVER_MODE"); v != "" {
		c.Solver.Mode = v
	}
	if v := getenv("AUTH_MODE"); v != "" {
		c.Auth.Mode = strings.ToLower(strings.TrimSpace(v))
	}
	if v := getenv("AUTH_HMAC_SECRET"); v != "" {
		c.Auth.HMACSecret = v
	}
	if v := getenv("AUTH_JWKS_URL"); v != "" {
		c.Auth.JWKSURL = v
	}
	if v := getenv("AUTH_TENANT_CLAIM"); v != "" {
		c.Auth.TenantClaim = v
	}
	if v := getenv("AUTH_ROLE_CLAIM"); v != "" {
		c.Auth.RoleClaim = v
	}
	var err error
	set := func(key string, fn func(string) error) {
		if err != nil {
			return
		}
		if v := getenv(key); v != "" {
			if e := fn(v); e != nil {
				err = fmt.Errorf("env %s=%q: %w", key, v, e)
			}
		}
	}
	set("RATE_RPS", func(v string) (e error) { c.Rate.RPS, e = strconv.ParseFloat(v, 64); return })
	set("RATE_BURST", func(v string) (e error) { c.Rate.Burst, e = strconv.Atoi(v); return })
	set("WEBHOOK_MAX_ATTEMPTS", func(v string) (e error) { c.Webhooks.MaxAttempts, e = strconv.Atoi(v); return })
	set("EXACT_MAX_N", func(v string) (e error) { c.Solver.ExactMaxN, e = strconv.Atoi(v); return })
	set("TWO_OPT_MAX_PASSES", func(v string) (e error) { c.Solver.MaxTwoOptPasses, e = strconv.Atoi(v); return })
	set("MAX_POINTS", func(v string) (e error) { c.Solver.MaxPoints, e = strconv.Atoi(v); return })
	set("CACHE_TTL", func(v string) (e error) { c.Cache.TTL, e = time.ParseDuration(v); return })
	return err
}

// Validate rejects settings the service cannot run with.
func (c Config) Validate() error {
	if c.Port == "" {
		return fmt.Errorf("config: port required")
	}
	switch c.Solver.Mode {
	case "", "auto", "exact", "heuristic":
	default:
		return fmt.Errorf("config: unknown solver mode %q", c.Solver.Mode)
	}
	if c.Solver.ExactMaxN < 0 || c.Solver.MaxTwoOptPasses < 0 {
		return fmt.Errorf("config: solver limits must be >= 0")
	}
	if c.Solver.MaxPoints < 2 {
		return fmt.Errorf("config: solver.maxPoints must be >= 2")
	}
	if c.Webhooks.MaxAttempts <= 0 {
		return fmt.Errorf("config: webhooks.maxAttempts must be > 0")
	}
	switch c.Auth.Mode {
	case "", "dev":
	case "hmac":
		if c.Auth.HMACSecret == "" {
			return fmt.Errorf("config: auth.hmacSecret required for hmac mode")
		}
	case "jwks":
		if c.Auth.JWKSURL == "" {
			return fmt.Errorf("config: auth.jwksUrl required for jwks mode")
		}
	default:
		return fmt.Errorf("config: unknown auth mode %q", c.Auth.Mode)
	}
	if c.Rate.RPS > 0 && c.Rate.Burst <= 0 {
		return fmt.Errorf("config: rate.burst must be > 0 when rate.rps is set")
	}
	return nil
}
