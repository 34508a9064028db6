package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rand"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"math/big"
	"net/http"
	"net/http/httptest"
	"sync/atomic"
	"testing"
	"time"

	"routeplanner/internal/config"
)

func hs256(t *testing.T, secret string, claims map[string]any) string {
	t.Helper()
	hdr, _ := json.Marshal(map[string]string{"alg": "HS256", "typ": "JWT"})
	body, _ := json.Marshal(claims)
	in := base64.RawURLEncoding.EncodeToString(hdr) + "." + base64.RawURLEncoding.EncodeToString(body)
	mac := hmac.New(sha256.New, []byte(secret))
	mac.Write([]byte(in))
	return in + "." + base64.RawURLEncoding.EncodeToString(mac.Sum(nil))
}

func TestVerifyDev(t *testing.T) {
	v := NewVerifier(config.AuthConfig{})
	pr, err := v.Verify("t_acme:admin")
	if err != nil || pr.Tenant != "t_acme" || pr.Role != "admin" {
		t.Fatalf("got %+v, %v", pr, err)
	}
	if _, err := v.Verify("nocolon"); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("expected ErrInvalidToken, got %v", err)
	}
}

func TestVerifyHMAC(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Mode: "hmac", HMACSecret: "k"})
	v.now = func() time.Time { return time.Unix(1000, 0) }

	tok := hs256(t, "k", map[string]any{"tenant": "t1", "role": "Planner", "exp": 2000})
	pr, err := v.Verify(tok)
	if err != nil {
		t.Fatalf("verify: %v", err)
	}
	if pr.Tenant != "t1" || pr.Role != "planner" {
		t.Fatalf("principal = %+v", pr)
	}

	if _, err := v.Verify(hs256(t, "other", map[string]any{"tenant": "t1"})); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("wrong secret: %v", err)
	}
	if _, err := v.Verify(hs256(t, "k", map[string]any{"tenant": "t1", "exp": 999})); !errors.Is(err, ErrExpired) {
		t.Fatalf("expired: %v", err)
	}
	if _, err := v.Verify(hs256(t, "k", map[string]any{"role": "admin"})); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("missing tenant: %v", err)
	}
	pr, _ = v.Verify(hs256(t, "k", map[string]any{"tenant": "t1"}))
	if pr.Role != "viewer" {
		t.Fatalf("default role = %q", pr.Role)
	}
}

func TestVerifyMalformed(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Mode: "hmac", HMACSecret: "k"})
	for _, tok := range []string{"garbage.not.valid", "onlyone", "a.b", "e30.e30.!!"} {
		if _, err := v.Verify(tok); !errors.Is(err, ErrInvalidToken) {
			t.Fatalf("%q: %v", tok, err)
		}
	}
	hdr, _ := json.Marshal(map[string]string{"alg": "none"})
	none := base64.RawURLEncoding.EncodeToString(hdr) + "." + base64.RawURLEncoding.EncodeToString([]byte(`{"tenant":"t1","role":"admin"}`)) + "."
	if _, err := v.Verify(none); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("alg none: %v", err)
	}
}

func TestVerifyNotBefore(t *testing.T) {
	v := NewVerifier(config.AuthConfig{Mode: "hmac", HMACSecret: "k"})
	v.now = func() time.Time { return time.Unix(1000, 0) }
	if _, err := v.Verify(hs256(t, "k", map[string]any{"tenant": "t1", "nbf": 1500})); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("nbf: %v", err)
	}
}

func rs256(t *testing.T, key *rsa.PrivateKey, kid string, claims map[string]any) string {
	t.Helper()
	hdr, _ := json.Marshal(map[string]string{"alg": "RS256", "kid": kid})
	body, _ := json.Marshal(claims)
	in := base64.RawURLEncoding.EncodeToString(hdr) + "." + base64.RawURLEncoding.EncodeToString(body)
	h := sha256.Sum256([]byte(in))
	sig, err := rsa.SignPKCS1v15(rand.Reader, key, crypto.SHA256, h[:])
	if err != nil {
		t.Fatal(err)
	}
	return in + "." + base64.RawURLEncoding.EncodeToString(sig)
}

func TestVerifyJWKS(t *testing.T) {
	key, err := rsa.GenerateKey(rand.Reader, 2048)
	if err != nil {
		t.Fatal(err)
	}
	var fetches atomic.Int32
	srv := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		fetches.Add(1)
		_ = json.NewEncoder(w).Encode(map[string]any{"keys": []map[string]string{{
			"kty": "RSA",
			"kid": "k1",
			"n":   base64.RawURLEncoding.EncodeToString(key.N.Bytes()),
			"e":   base64.RawURLEncoding.EncodeToString(big.NewInt(int64(key.E)).Bytes()),
		}}})
	}))
	defer srv.Close()

	v := NewVerifier(config.AuthConfig{Mode: "jwks", JWKSURL: srv.URL})
	pr, err := v.Verify(rs256(t, key, "k1", map[string]any{"tenant": "t9", "role": "admin"}))
	if err != nil || pr.Tenant != "t9" || pr.Role != "admin" {
		t.Fatalf("got %+v, %v", pr, err)
	}
	if _, err := v.Verify(rs256(t, key, "k1", map[string]any{"tenant": "t9"})); err != nil {
		t.Fatalf("second verify: %v", err)
	}
	if n := fetches.Load(); n != 1 {
		t.Fatalf("key set fetched %d times, want 1", n)
	}
	if _, err := v.Verify(rs256(t, key, "k2", map[string]any{"tenant": "t9"})); !errors.Is(err, ErrUnknownKey) {
		t.Fatalf("unknown kid: %v", err)
	}

	other, _ := rsa.GenerateKey(rand.Reader, 2048)
	if _, err := v.Verify(rs256(t, other, "k1", map[string]any{"tenant": "t9"})); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("foreign key: %v", err)
	}
	if _, err := v.Verify(hs256(t, "k", map[string]any{"tenant": "t9"})); !errors.Is(err, ErrInvalidToken) {
		t.Fatalf("hs256 in jwks mode: %v", err)
	}
}
