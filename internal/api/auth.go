package api

import (
	"context"
	"crypto/subtle"
	"net/http"
	"strings"
)

// Role orders what a caller may do. Higher roles include lower ones.
type Role int

const (
	RoleNone Role = iota
	RoleViewer
	RoleAnalyst
	RoleAdmin
)

func (r Role) String() string {
	switch r {
	case RoleViewer:
		return "viewer"
	case RoleAnalyst:
		return "analyst"
	case RoleAdmin:
		return "admin"
	default:
		return "none"
	}
}

// ParseRole maps a role name to a Role. Unknown names are RoleNone.
func ParseRole(s string) Role {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "viewer":
		return RoleViewer
	case "analyst":
		return RoleAnalyst
	case "admin":
		return RoleAdmin
	default:
		return RoleNone
	}
}

type roleKey struct{}

// RoleFrom returns the role the identity middleware attached to ctx.
func RoleFrom(ctx context.Context) Role {
	r, _ := ctx.Value(roleKey{}).(Role)
	return r
}

// Identity maps bearer tokens to roles. With no tokens configured every
// request runs as admin.
type Identity struct {
	tokens map[string]Role
}

func NewIdentity(tokens map[string]string) *Identity {
	id := &Identity{tokens: make(map[string]Role, len(tokens))}
	for token, name := range tokens {
		if role := ParseRole(name); role != RoleNone {
			id.tokens[token] = role
		}
	}
	return id
}

// Open reports whether authentication is disabled.
func (id *Identity) Open() bool {
	return id == nil || len(id.tokens) == 0
}

// Middleware resolves the caller's role. A missing or unknown token is 401.
func (id *Identity) Middleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		if id.Open() {
			next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey{}, RoleAdmin)))
			return
		}

		role, ok := id.lookup(bearerToken(r))
		if !ok {
			writeError(w, http.StatusUnauthorized, "unauthorized")
			return
		}
		next.ServeHTTP(w, r.WithContext(context.WithValue(r.Context(), roleKey{}, role)))
	})
}

// lookup compares against every configured token in constant time.
func (id *Identity) lookup(token string) (Role, bool) {
	if token == "" {
		return RoleNone, false
	}
	found := RoleNone
	for known, role := range id.tokens {
		if subtle.ConstantTimeCompare([]byte(known), []byte(token)) == 1 {
			found = role
		}
	}
	return found, found != RoleNone
}

// RequireRole rejects callers below min with 403.
func RequireRole(min Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			if RoleFrom(r.Context()) < min {
				writeError(w, http.StatusForbidden, "requires role "+min.String())
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// bearerToken reads the Authorization header. Browsers cannot set headers
// on a WebSocket handshake, so a token query parameter is also accepted.
func bearerToken(r *http.Request) string {
	if h := r.Header.Get("Authorization"); strings.HasPrefix(h, "Bearer ") {
		return strings.TrimSpace(strings.TrimPrefix(h, "Bearer "))
	}
	return r.URL.Query().Get("token")
}
