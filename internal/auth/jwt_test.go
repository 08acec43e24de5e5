package auth

import (
	"context"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newTestJWTManager() *JWTManager {
	return NewJWTManager("test-secret-key", time.Hour, 7*24*time.Hour)
}

func testUser(role domain.Role) *domain.User {
	return &domain.User{ID: uuid.New(), Email: "test@test.com", Name: "Tess", Role: role}
}

func TestGenerateAndValidateAccessToken(t *testing.T) {
	mgr := newTestJWTManager()
	u := testUser(domain.RoleUser)

	token, err := mgr.GenerateToken(KindAccess, u)
	require.NoError(t, err)
	assert.NotEmpty(t, token)

	claims, err := mgr.ValidateTokenKind(token, KindAccess)
	require.NoError(t, err)
	assert.Equal(t, u.ID.String(), claims.Subject)
	assert.Equal(t, KindAccess, claims.Kind)
	assert.Equal(t, "test@test.com", claims.Email)
	assert.Equal(t, domain.RoleUser, claims.Role)

	caller, err := claims.Caller()
	require.NoError(t, err)
	assert.Equal(t, u.ID, caller.ID)
	assert.Equal(t, "Tess", caller.Name)
}

func TestGeneratePair(t *testing.T) {
	mgr := newTestJWTManager()
	pair, err := mgr.GeneratePair(testUser(domain.RoleAdmin))
	require.NoError(t, err)

	_, err = mgr.ValidateTokenKind(pair.Access, KindAccess)
	require.NoError(t, err)
	claims, err := mgr.ValidateTokenKind(pair.Refresh, KindRefresh)
	require.NoError(t, err)
	assert.Equal(t, domain.RoleAdmin, claims.Role)
}

func TestKindMismatchRejected(t *testing.T) {
	mgr := newTestJWTManager()

	token, err := mgr.GenerateToken(KindRefresh, testUser(domain.RoleUser))
	require.NoError(t, err)

	_, err = mgr.ValidateTokenKind(token, KindAccess)
	assert.Error(t, err)
	assert.Contains(t, err.Error(), "expected access token")
}

func TestUnknownKindRejected(t *testing.T) {
	_, err := newTestJWTManager().GenerateToken("session", testUser(domain.RoleUser))
	assert.Error(t, err)
}

func TestInvalidSecretRejected(t *testing.T) {
	mgr1 := NewJWTManager("secret-1", time.Hour, time.Hour)
	mgr2 := NewJWTManager("secret-2", time.Hour, time.Hour)

	token, err := mgr1.GenerateToken(KindAccess, testUser(domain.RoleUser))
	require.NoError(t, err)

	_, err = mgr2.ValidateToken(token)
	assert.Error(t, err)
}

func TestExpiredTokenRejected(t *testing.T) {
	clock := time.Date(2024, 6, 1, 12, 0, 0, 0, time.UTC)
	mgr := NewJWTManager("secret", time.Minute, time.Hour)
	mgr.now = func() time.Time { return clock }

	token, err := mgr.GenerateToken(KindAccess, testUser(domain.RoleUser))
	require.NoError(t, err)

	clock = clock.Add(59 * time.Second)
	_, err = mgr.ValidateToken(token)
	require.NoError(t, err)

	clock = clock.Add(2 * time.Second)
	_, err = mgr.ValidateToken(token)
	assert.ErrorIs(t, err, jwt.ErrTokenExpired)
}

func TestForeignTokensRejected(t *testing.T) {
	mgr := newTestJWTManager()
	now := time.Now()
	base := jwt.RegisteredClaims{
		Subject:   uuid.NewString(),
		IssuedAt:  jwt.NewNumericDate(now),
		ExpiresAt: jwt.NewNumericDate(now.Add(time.Hour)),
	}

	other := base
	other.Issuer = "someone-else"
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, Claims{RegisteredClaims: other, Kind: KindAccess}).
		SignedString([]byte("test-secret-key"))
	require.NoError(t, err)
	_, err = mgr.ValidateToken(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenInvalidIssuer)

	ours := base
	ours.Issuer = Issuer
	signed, err = jwt.NewWithClaims(jwt.SigningMethodHS512, Claims{RegisteredClaims: ours, Kind: KindAccess}).
		SignedString([]byte("test-secret-key"))
	require.NoError(t, err)
	_, err = mgr.ValidateToken(signed)
	assert.ErrorIs(t, err, jwt.ErrTokenSignatureInvalid)
}

func TestAuthenticateMiddleware(t *testing.T) {
	mgr := newTestJWTManager()
	u := testUser(domain.RoleUser)
	access, _ := mgr.GenerateToken(KindAccess, u)
	refresh, _ := mgr.GenerateToken(KindRefresh, u)

	var seen domain.Caller
	h := Authenticate(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		seen, _ = CallerFromContext(r.Context())
		w.WriteHeader(http.StatusNoContent)
	}))

	tests := []struct {
		name   string
		header string
		status int
	}{
		{"valid access token", "Bearer " + access, http.StatusNoContent},
		{"refresh token not accepted", "Bearer " + refresh, http.StatusUnauthorized},
		{"missing header", "", http.StatusUnauthorized},
		{"wrong scheme", "Basic abc", http.StatusUnauthorized},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/", nil)
			if tt.header != "" {
				req.Header.Set("Authorization", tt.header)
			}
			rec := httptest.NewRecorder()
			h.ServeHTTP(rec, req)
			assert.Equal(t, tt.status, rec.Code)
		})
	}
	assert.Equal(t, u.ID, seen.ID)
}

func TestAuthenticateChallenge(t *testing.T) {
	mgr := newTestJWTManager()
	h := Authenticate(mgr)(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {}))

	req := httptest.NewRequest(http.MethodGet, "/", nil)
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, `Bearer realm="arena"`, rec.Header().Get("WWW-Authenticate"))

	req.Header.Set("Authorization", "Bearer not-a-jwt")
	rec = httptest.NewRecorder()
	h.ServeHTTP(rec, req)
	assert.Equal(t, http.StatusUnauthorized, rec.Code)
	assert.Contains(t, rec.Header().Get("WWW-Authenticate"), `error="invalid_token"`)
	assert.Contains(t, rec.Body.String(), "UNAUTHORIZED")
}

func TestBearerToken(t *testing.T) {
	for _, tc := range []struct {
		header string
		token  string
		err    error
	}{
		{"Bearer abc.def", "abc.def", nil},
		{"bearer   abc.def ", "abc.def", nil},
		{"", "", errNoToken},
		{"Bearer", "Bearer", errMalformed},
		{"Bearer   ", "Bearer", errMalformed},
		{"Token abc", "Token abc", errMalformed},
	} {
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", tc.header)
		token, err := bearerToken(req)
		assert.Equal(t, tc.token, token, "header %q", tc.header)
		assert.ErrorIs(t, err, tc.err, "header %q", tc.header)
	}
}

func TestCallerFromContext(t *testing.T) {
	_, ok := CallerFromContext(context.Background())
	assert.False(t, ok)

	bad := &Claims{Role: domain.RoleUser}
	bad.Subject = "not-a-uuid"
	_, ok = CallerFromContext(WithClaims(context.Background(), bad))
	assert.False(t, ok)
	assert.Same(t, bad, ClaimsFromContext(WithClaims(context.Background(), bad)))
}

func TestRequireAdmin(t *testing.T) {
	mgr := newTestJWTManager()
	ok := http.HandlerFunc(func(w http.ResponseWriter, _ *http.Request) { w.WriteHeader(http.StatusOK) })
	h := Authenticate(mgr)(RequireAdmin()(ok))

	for _, tc := range []struct {
		role   domain.Role
		status int
	}{
		{domain.RoleAdmin, http.StatusOK},
		{domain.RoleUser, http.StatusForbidden},
	} {
		token, _ := mgr.GenerateToken(KindAccess, testUser(tc.role))
		req := httptest.NewRequest(http.MethodGet, "/", nil)
		req.Header.Set("Authorization", "Bearer "+token)
		rec := httptest.NewRecorder()
		h.ServeHTTP(rec, req)
		assert.Equal(t, tc.status, rec.Code, "role %s", tc.role)
	}
}
