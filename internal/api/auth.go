// Package api implements the HTTP surface of the tour planner.
package api

import (
	"context"
	"errors"
	"net/http"
	"strings"

	"routeplanner/internal/auth"
)

type Principal struct {
	Tenant string
	Role   string // admin, planner, viewer
}

var errMissingToken = errors.New("bearer token required")

type ctxKeyPrincipal struct{}

// resolvePrincipal reads the caller from a bearer token. Without one, the
// X-Tenant-Id / X-Role headers are trusted only in dev mode.
func (s *Server) resolvePrincipal(r *http.Request) (Principal, error) {
	authz := r.Header.Get("Authorization")
	if len(authz) > len("bearer ") && strings.EqualFold(authz[:len("bearer ")], "bearer ") {
		if s.Auth == nil {
			return Principal{}, auth.ErrInvalidToken
		}
		pr, err := s.Auth.Verify(strings.TrimSpace(authz[len("bearer "):]))
		if err != nil {
			return Principal{}, err
		}
		return Principal{Tenant: pr.Tenant, Role: pr.Role}, nil
	}
	if s.Auth != nil && s.Auth.Mode != "dev" {
		return Principal{}, errMissingToken
	}
	tenant := r.Header.Get("X-Tenant-Id")
	role := strings.ToLower(r.Header.Get("X-Role"))
	if tenant == "" {
		tenant = "t_demo"
	}
	if role == "" {
		role = "admin"
	}
	return Principal{Tenant: tenant, Role: role}, nil
}

// authenticate resolves the principal once per request and rejects callers
// whose token does not verify.
func (s *Server) authenticate(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		pr, err := s.resolvePrincipal(r)
		if err != nil {
			title := "Unauthorized"
			if errors.Is(err, auth.ErrExpired) {
				title = "Token expired"
			}
			w.Header().Set("WWW-Authenticate", `Bearer realm="routeplanner"`)
			writeProblem(w, http.StatusUnauthorized, title, err.Error(), r.URL.Path)
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), ctxKeyPrincipal{}, pr)))
	})
}

// getPrincipal returns the principal set by authenticate. A request that did
// not pass through it gets no role.
func (s *Server) getPrincipal(r *http.Request) Principal {
	if pr, ok := r.Context().Value(ctxKeyPrincipal{}).(Principal); ok {
		return pr
	}
	if pr, err := s.resolvePrincipal(r); err == nil {
		return pr
	}
	return Principal{}
}

// IsAdmin reports whether the principal has the admin role.
func (p Principal) IsAdmin() bool { return p.Role == "admin" }

// CanSolve reports whether the principal may create or delete tours.
func (p Principal) CanSolve() bool { return p.Role == "admin" || p.Role == "planner" }

func (s *Server) requireAdmin(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.getPrincipal(r).IsAdmin() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "admin required", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func (s *Server) requirePlanner(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if !s.getPrincipal(r).CanSolve() {
			writeProblem(w, http.StatusForbidden, "Forbidden", "planner or admin required", r.URL.Path)
			return
		}
		next.ServeHTTP(w, r)
	})
}
