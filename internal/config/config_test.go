package config

import (
	"os"
	"path/filepath"
	"testing"
	"time"
)

func TestDefaultIsValid(t *testing.T) {
	if err := Default().Validate(); err != nil {
		t.Fatalf("default config invalid: %v", err)
	}
}

func TestLoadFileAndEnv(t *testing.T) {
	path := filepath.Join(t.TempDir(), "cfg.yaml")
	body := []byte(`
port: "9090"
solver:
  mode: exact
  exactMaxN: 10
cache:
  ttl: 30s
webhooks:
  maxAttempts: 3
`)
	if err := os.WriteFile(path, body, 0o600); err != nil { t.Fatal(err) }
	t.Setenv("RATE_RPS", "5")
	t.Setenv("RATE_BURST", "7")
	t.Setenv("DB_MIGRATE", "false")

	cfg, err := Load(path)
	if err != nil { t.Fatalf("Load: %v", err) }
	if cfg.Port != "9090" || cfg.Solver.Mode != "exact" || cfg.Solver.ExactMaxN != 10 {
		t.Fatalf("file values not applied: %+v", cfg)
	}
	if cfg.Solver.MaxTwoOptPasses != 1000 { t.Fatalf("default lost: %d", cfg.Solver.MaxTwoOptPasses) }
	if cfg.Cache.TTL != 30*time.Second { t.Fatalf("ttl: %v", cfg.Cache.TTL) }
	if cfg.Webhooks.MaxAttempts != 3 { t.Fatalf("maxAttempts: %d", cfg.Webhooks.MaxAttempts) }
	if cfg.Rate.RPS != 5 || cfg.Rate.Burst != 7 { t.Fatalf("rate env not applied: %+v", cfg.Rate) }
	if cfg.Database.Migrate { t.Fatal("DB_MIGRATE=false not applied") }
}

func TestLoadBadEnv(t *testing.T) {
	t.Setenv("EXACT_MAX_N", "twelve")
	if _, err := Load(""); err == nil {
		t.Fatal("expected error for non-numeric EXACT_MAX_N")
	}
}

func TestValidateRejects(t *testing.T) {
	c := Default()
	c.Solver.Mode = "greedy"
	if c.Validate() == nil { t.Fatal("unknown mode accepted") }
	c = Default()
	c.Solver.MaxPoints = 1
	if c.Validate() == nil { t.Fatal("maxPoints=1 accepted") }
	c = Default()
	c.Rate.Burst = 0
	if c.Validate() == nil { t.Fatal("rps without burst accepted") }
	c = Default()
	c.Auth.Mode = "hmac"
	if c.Validate() == nil { t.Fatal("hmac without secret accepted") }
	c.Auth.HMACSecret = "s3cret"
	if err := c.Validate(); err != nil { t.Fatalf("hmac with secret rejected: %v", err) }
}
