package auth

import (
	"context"
	"fmt"
	"net/http"
	"strings"
)

// contextKey is a custom type for context keys to avoid collisions
type contextKey string

// ContextKeyPrincipal is the context key for the authenticated caller.
const ContextKeyPrincipal contextKey = "principal"

// Principal identifies the caller of an authenticated request.
type Principal struct {
	Name string // "admin", "client" or "key:<n>" for hashed keys
	Role Role
}

type staticKey struct {
	key       string
	principal Principal
}

type hashedKey struct {
	hash      string
	principal Principal
}

// Authenticator handles authentication for API requests. Keys come from
// configuration: the plain admin and client keys, plus bcrypt-hashed keys
// with an explicit role.
type Authenticator struct {
	static []staticKey
	hashed []hashedKey
	deny   DenyFunc
}

// DenyFunc writes the response for a rejected request. status is 401 or 403.
type DenyFunc func(w http.ResponseWriter, r *http.Request, status int, message string)

// SetDenyHandler replaces the plain-text rejection response.
func (a *Authenticator) SetDenyHandler(fn DenyFunc) { a.deny = fn }

func (a *Authenticator) reject(w http.ResponseWriter, r *http.Request, status int, message string) {
	if a.deny != nil {
		a.deny(w, r, status, message)
		return
	}
	http.Error(w, message, status)
}

// NewAuthenticator creates an Authenticator. adminKey maps to superadmin and
// clientKey to readonly; empty keys are skipped. hashEntries use the
// "role:bcrypt-hash" form.
func NewAuthenticator(adminKey, clientKey string, hashEntries []string) (*Authenticator, error) {
	a := &Authenticator{}
	if adminKey != "" {
		a.static = append(a.static, staticKey{adminKey, Principal{Name: "admin", Role: RoleSuperadmin}})
	}
	if clientKey != "" {
		a.static = append(a.static, staticKey{clientKey, Principal{Name: "client", Role: RoleReadonly}})
	}
	for i, entry := range hashEntries {
		role, hash, err := ParseKeyHash(entry)
		if err != nil {
			return nil, fmt.Errorf("API_KEY_HASHES entry %d: %w", i+1, err)
		}
		a.hashed = append(a.hashed, hashedKey{hash, Principal{Name: fmt.Sprintf("key:%d", i+1), Role: role}})
	}
	return a, nil
}

// AuthResult contains the result of an authentication attempt
type AuthResult struct {
	Authenticated bool
	Principal     Principal
	Error         string
}

// Authenticate authenticates a request using the Authorization header.
func (a *Authenticator) Authenticate(authHeader string) AuthResult {
	token := bearerToken(authHeader)
	if token == "" {
		return AuthResult{Error: "missing bearer token"}
	}

	// Every static key is compared so timing does not reveal which one matched.
	var (
		match Principal
		found bool
	)
	for _, k := range a.static {
		if matchesKey(token, k.key) && !found {
			match, found = k.principal, true
		}
	}
	if found {
		return AuthResult{Authenticated: true, Principal: match}
	}

	for _, k := range a.hashed {
		if matchesHash(token, k.hash) {
			return AuthResult{Authenticated: true, Principal: k.principal}
		}
	}

	return AuthResult{Error: "invalid token"}
}

// RequireAuth is a middleware that requires authentication
func (a *Authenticator) RequireAuth(requiredRole Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			result := a.Authenticate(r.Header.Get("Authorization"))
			if !result.Authenticated {
				a.reject(w, r, http.StatusUnauthorized, result.Error)
				return
			}

			if !result.Principal.Role.Allows(requiredRole) {
				a.reject(w, r, http.StatusForbidden, "insufficient permissions")
				return
			}

			ctx := WithPrincipal(r.Context(), result.Principal)
			next.ServeHTTP(w, r.WithContext(ctx))
		})
	}
}

// WithPrincipal returns ctx carrying p.
func WithPrincipal(ctx context.Context, p Principal) context.Context {
	return context.WithValue(ctx, ContextKeyPrincipal, p)
}

// GetPrincipalFromContext extracts the caller from the request context
func GetPrincipalFromContext(ctx context.Context) (Principal, bool) {
	p, ok := ctx.Value(ContextKeyPrincipal).(Principal)
	return p, ok
}

// GetIPAddress extracts the client IP address from the request.
func GetIPAddress(r *http.Request) string {
	if xff := r.Header.Get("X-Forwarded-For"); xff != "" {
		first, _, _ := strings.Cut(xff, ",")
		return strings.TrimSpace(first)
	}
	if xri := r.Header.Get("X-Real-IP"); xri != "" {
		return xri
	}
	return r.RemoteAddr
}
