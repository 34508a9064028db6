// Package auth verifies bearer tokens for the tour API.
package auth

import (
	"crypto"
	"crypto/hmac"
	"crypto/rsa"
	"crypto/sha256"
	"encoding/base64"
	"encoding/json"
	"errors"
	"fmt"
	"math/big"
	"net/http"
	"strings"
	"sync"
	"time"

	"routeplanner/internal/config"
)

// Verifier validates bearer tokens and extracts tenant/role claims.
// Supports modes: dev (tenant:role, no verification), hmac (HS256), jwks (RS256 from a JWKS URL).
type Verifier struct {
	Mode        string
	HMACSecret  []byte
	JWKSURL     string
	TenantClaim string
	RoleClaim   string

	http     *http.Client
	cacheTTL time.Duration
	now      func() time.Time

	mu        sync.RWMutex
	keys      map[string]*rsa.PublicKey
	lastFetch time.Time
}

// Principal is the caller identity attached to a request.
type Principal struct {
	Tenant string
	Role   string // admin, planner, viewer
}

var (
	ErrInvalidToken = errors.New("invalid token")
	ErrExpired      = errors.New("token expired")
	ErrUnknownKey   = errors.New("signing key not found")
)

func NewVerifier(cfg config.AuthConfig) *Verifier {
	mode := strings.ToLower(strings.TrimSpace(cfg.Mode))
	if mode == "" {
		mode = "dev"
	}
	return &Verifier{
		Mode:        mode,
		HMACSecret:  []byte(cfg.HMACSecret),
		JWKSURL:     cfg.JWKSURL,
		TenantClaim: orDefault(cfg.TenantClaim, "tenant"),
		RoleClaim:   orDefault(cfg.RoleClaim, "role"),
		http:        &http.Client{Timeout: 5 * time.Second},
		cacheTTL:    10 * time.Minute,
		now:         time.Now,
	}
}

func orDefault(v, d string) string {
	if v != "" {
		return v
	}
	return d
}

// token is a decoded compact JWS.
type token struct {
	alg, kid string
	claims   map[string]any
	signed   []byte
	sig      []byte
}

func parseToken(raw string) (token, error) {
	segs := strings.Split(raw, ".")
	if len(segs) != 3 {
		return token{}, fmt.Errorf("%w: expected three segments", ErrInvalidToken)
	}
	var parts [3][]byte
	for i, s := range segs {
		b, err := base64.RawURLEncoding.DecodeString(s)
		if err != nil {
			return token{}, fmt.Errorf("%w: segment %d: %v", ErrInvalidToken, i, err)
		}
		parts[i] = b
	}
	var hdr struct {
		Alg string `json:"alg"`
		Kid string `json:"kid"`
	}
	if err := json.Unmarshal(parts[0], &hdr); err != nil {
		return token{}, fmt.Errorf("%w: header: %v", ErrInvalidToken, err)
	}
	t := token{alg: hdr.Alg, kid: hdr.Kid, signed: []byte(segs[0] + "." + segs[1]), sig: parts[2]}
	if err := json.Unmarshal(parts[1], &t.claims); err != nil {
		return token{}, fmt.Errorf("%w: claims: %v", ErrInvalidToken, err)
	}
	return t, nil
}

// Verify checks token and returns the principal it names. Every failure
// wraps ErrInvalidToken, ErrExpired or ErrUnknownKey.
func (v *Verifier) Verify(raw string) (Principal, error) {
	if v.Mode == "dev" {
		tenant, role, ok := strings.Cut(raw, ":")
		if !ok || tenant == "" {
			return Principal{}, fmt.Errorf("%w: dev token must be tenant:role", ErrInvalidToken)
		}
		return Principal{Tenant: tenant, Role: strings.ToLower(orDefault(role, "viewer"))}, nil
	}
	t, err := parseToken(raw)
	if err != nil {
		return Principal{}, err
	}
	if err := v.checkSignature(t); err != nil {
		return Principal{}, err
	}
	now := v.now().Unix()
	if exp, ok := t.claims["exp"].(float64); ok && now > int64(exp) {
		return Principal{}, ErrExpired
	}
	if nbf, ok := t.claims["nbf"].(float64); ok && now < int64(nbf) {
		return Principal{}, fmt.Errorf("%w: not yet valid", ErrInvalidToken)
	}
	tenant, _ := t.claims[v.TenantClaim].(string)
	role, _ := t.claims[v.RoleClaim].(string)
	if tenant == "" {
		return Principal{}, fmt.Errorf("%w: missing %s claim", ErrInvalidToken, v.TenantClaim)
	}
	return Principal{Tenant: tenant, Role: strings.ToLower(orDefault(role, "viewer"))}, nil
}

func (v *Verifier) checkSignature(t token) error {
	switch v.Mode {
	case "hmac":
		if t.alg != "HS256" {
			return fmt.Errorf("%w: alg %q, want HS256", ErrInvalidToken, t.alg)
		}
		mac := hmac.New(sha256.New, v.HMACSecret)
		mac.Write(t.signed)
		if !hmac.Equal(mac.Sum(nil), t.sig) {
			return fmt.Errorf("%w: bad signature", ErrInvalidToken)
		}
	case "jwks":
		if t.alg != "RS256" {
			return fmt.Errorf("%w: alg %q, want RS256", ErrInvalidToken, t.alg)
		}
		pub, err := v.publicKey(t.kid)
		if err != nil {
			return err
		}
		h := sha256.Sum256(t.signed)
		if err := rsa.VerifyPKCS1v15(pub, crypto.SHA256, h[:], t.sig); err != nil {
			return fmt.Errorf("%w: bad signature", ErrInvalidToken)
		}
	default:
		return fmt.Errorf("%w: unsupported auth mode %q", ErrInvalidToken, v.Mode)
	}
	return nil
}

// publicKey returns the RSA key for kid, refreshing the key set when it is
// stale or does not hold kid.
func (v *Verifier) publicKey(kid string) (*rsa.PublicKey, error) {
	v.mu.RLock()
	key, ok := v.keys[kid]
	fresh := time.Since(v.lastFetch) <= v.cacheTTL
	v.mu.RUnlock()
	if ok && fresh {
		return key, nil
	}
	if err := v.refreshKeys(); err != nil {
		return nil, err
	}
	v.mu.RLock()
	key, ok = v.keys[kid]
	v.mu.RUnlock()
	if !ok {
		return nil, fmt.Errorf("%w: kid %q", ErrUnknownKey, kid)
	}
	return key, nil
}

type jwk struct {
	Kty string `json:"kty"`
	Kid string `json:"kid"`
	N   string `json:"n"`
	E   string `json:"e"`
}

func (k jwk) rsaKey() (*rsa.PublicKey, error) {
	n, err := base64.RawURLEncoding.DecodeString(k.N)
	if err != nil {
		return nil, err
	}
	e, err := base64.RawURLEncoding.DecodeString(k.E)
	if err != nil {
		return nil, err
	}
	return &rsa.PublicKey{N: new(big.Int).SetBytes(n), E: int(new(big.Int).SetBytes(e).Int64())}, nil
}

func (v *Verifier) refreshKeys() error {
	if v.JWKSURL == "" {
		return fmt.Errorf("%w: jwks url not configured", ErrUnknownKey)
	}
	resp, err := v.http.Get(v.JWKSURL)
	if err != nil {
		return fmt.Errorf("fetch jwks: %w", err)
	}
	defer func() { _ = resp.Body.Close() }()
	if resp.StatusCode != http.StatusOK {
		return fmt.Errorf("fetch jwks: status %d", resp.StatusCode)
	}
	var set struct {
		Keys []jwk `json:"keys"`
	}
	if err := json.NewDecoder(resp.Body).Decode(&set); err != nil {
		return fmt.Errorf("decode jwks: %w", err)
	}
	keys := make(map[string]*rsa.PublicKey, len(set.Keys))
	for _, k := range set.Keys {
		if !strings.EqualFold(k.Kty, "RSA") {
			continue
		}
		if pub, err := k.rsaKey(); err == nil {
			keys[k.Kid] = pub
		}
	}
	v.mu.Lock()
	v.keys = keys
	v.lastFetch = time.Now()
	v.mu.Unlock()
	return nil
}
