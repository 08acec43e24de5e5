package auth

import (
	"context"
	"encoding/json"
	"errors"
	"net/http"
	"slices"
	"strings"

	"github.com/scorekeep/arena/internal/domain"
)

type contextKey struct{}

// principal is what Authenticate attaches to a request.
type principal struct {
	claims *Claims
	caller domain.Caller
	valid  bool
}

var (
	errNoToken     = errors.New("missing bearer token")
	errMalformed   = errors.New("authorization header must be \"Bearer <token>\"")
	errBadIdentity = errors.New("token subject is not a user id")
)

func principalFrom(ctx context.Context) (principal, bool) {
	p, ok := ctx.Value(contextKey{}).(principal)
	return p, ok
}

// ClaimsFromContext returns the verified access-token claims, or nil.
func ClaimsFromContext(ctx context.Context) *Claims {
	p, _ := principalFrom(ctx)
	return p.claims
}

// CallerFromContext returns the authenticated caller, if any.
func CallerFromContext(ctx context.Context) (domain.Caller, bool) {
	p, ok := principalFrom(ctx)
	if !ok || !p.valid {
		return domain.Caller{}, false
	}
	return p.caller, true
}

// WithClaims returns a context carrying claims as Authenticate would attach them.
func WithClaims(ctx context.Context, claims *Claims) context.Context {
	caller, err := claims.Caller()
	return context.WithValue(ctx, contextKey{}, principal{claims: claims, caller: caller, valid: err == nil})
}

// Authenticate admits requests bearing a valid access token. Refresh tokens
// are rejected here; they are only good at the refresh endpoint.
func Authenticate(jwtMgr *JWTManager) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			token, err := bearerToken(r)
			if err != nil {
				challenge(w, err, token != "")
				return
			}
			claims, err := jwtMgr.ValidateTokenKind(token, KindAccess)
			if err != nil {
				challenge(w, err, true)
				return
			}
			if _, err := claims.Caller(); err != nil {
				challenge(w, errBadIdentity, true)
				return
			}
			next.ServeHTTP(w, r.WithContext(WithClaims(r.Context(), claims)))
		})
	}
}

// RequireRole admits authenticated callers holding one of roles.
func RequireRole(roles ...domain.Role) func(http.Handler) http.Handler {
	return func(next http.Handler) http.Handler {
		return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
			caller, ok := CallerFromContext(r.Context())
			if !ok {
				challenge(w, errNoToken, false)
				return
			}
			if !slices.Contains(roles, caller.Role) {
				writeError(w, domain.ErrForbidden("admin role required"))
				return
			}
			next.ServeHTTP(w, r)
		})
	}
}

// RequireAdmin guards the admin routes.
func RequireAdmin() func(http.Handler) http.Handler {
	return RequireRole(domain.RoleAdmin)
}

// bearerToken returns the token from "Authorization: Bearer <token>". On a
// malformed header the raw value is returned alongside the error.
func bearerToken(r *http.Request) (string, error) {
	header := strings.TrimSpace(r.Header.Get("Authorization"))
	if header == "" {
		return "", errNoToken
	}
	scheme, token, ok := strings.Cut(header, " ")
	if !ok || !strings.EqualFold(scheme, "bearer") {
		return header, errMalformed
	}
	if token = strings.TrimSpace(token); token == "" {
		return header, errMalformed
	}
	return token, nil
}

// challenge answers 401 with an RFC 6750 WWW-Authenticate header.
func challenge(w http.ResponseWriter, err error, presented bool) {
	value := `Bearer realm="arena"`
	if presented {
		value += `, error="invalid_token"`
	}
	w.Header().Set("WWW-Authenticate", value)
	writeError(w, domain.ErrUnauthorized(err.Error()))
}

func writeError(w http.ResponseWriter, err *domain.AppError) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(err.Status)
	_ = json.NewEncoder(w).Encode(err)
}
