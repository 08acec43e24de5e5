package auth

import (
	"fmt"
	"time"

	"github.com/golang-jwt/jwt/v5"
	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
)

// TokenKind distinguishes short-lived access tokens from refresh tokens.
type TokenKind string

const (
	KindAccess  TokenKind = "access"
	KindRefresh TokenKind = "refresh"
)

// Claims holds the custom JWT claims.
type Claims struct {
	jwt.RegisteredClaims
	Kind  TokenKind   `json:"kind"`
	Email string      `json:"email,omitempty"`
	Name  string      `json:"name,omitempty"`
	Role  domain.Role `json:"role"`
}

// UserID parses the subject as a user id.
func (c *Claims) UserID() (uuid.UUID, error) {
	return uuid.Parse(c.Subject)
}

// Caller converts the claims into the identity passed to services.
func (c *Claims) Caller() (domain.Caller, error) {
	id, err := c.UserID()
	if err != nil {
		return domain.Caller{}, fmt.Errorf("invalid subject: %w", err)
	}
	return domain.Caller{ID: id, Name: c.Name, Role: c.Role}, nil
}

// TokenPair is what login and refresh hand back to clients.
type TokenPair struct {
	Access  string `json:"access"`
	Refresh string `json:"refresh"`
}

// Issuer is the iss claim on every arena token.
const Issuer = "arena"

// JWTManager signs and verifies HS256 tokens for the arena API.
type JWTManager struct {
	secret        []byte
	accessExpiry  time.Duration
	refreshExpiry time.Duration
	parser        *jwt.Parser
	now           func() time.Time
}

// NewJWTManager creates a JWT manager with per-kind expiry durations.
func NewJWTManager(secret string, accessExpiry, refreshExpiry time.Duration) *JWTManager {
	m := &JWTManager{
		secret:        []byte(secret),
		accessExpiry:  accessExpiry,
		refreshExpiry: refreshExpiry,
		now:           time.Now,
	}
	m.parser = jwt.NewParser(
		jwt.WithValidMethods([]string{jwt.SigningMethodHS256.Alg()}),
		jwt.WithIssuer(Issuer),
		jwt.WithIssuedAt(),
		jwt.WithExpirationRequired(),
		jwt.WithTimeFunc(func() time.Time { return m.now() }),
	)
	return m
}

func (m *JWTManager) expiry(kind TokenKind) (time.Duration, error) {
	switch kind {
	case KindAccess:
		return m.accessExpiry, nil
	case KindRefresh:
		return m.refreshExpiry, nil
	}
	return 0, fmt.Errorf("unknown token kind %q", kind)
}

// GenerateToken signs a token of kind for u. Every token gets a unique jti
// so a refresh token can be revoked individually.
func (m *JWTManager) GenerateToken(kind TokenKind, u *domain.User) (string, error) {
	ttl, err := m.expiry(kind)
	if err != nil {
		return "", err
	}

	now := m.now()
	claims := Claims{
		RegisteredClaims: jwt.RegisteredClaims{
			Issuer:    Issuer,
			Subject:   u.ID.String(),
			IssuedAt:  jwt.NewNumericDate(now),
			ExpiresAt: jwt.NewNumericDate(now.Add(ttl)),
			ID:        uuid.NewString(),
		},
		Kind:  kind,
		Email: u.Email,
		Name:  u.Name,
		Role:  u.Role,
	}
	signed, err := jwt.NewWithClaims(jwt.SigningMethodHS256, claims).SignedString(m.secret)
	if err != nil {
		return "", fmt.Errorf("sign %s token: %w", kind, err)
	}
	return signed, nil
}

// GeneratePair issues an access and a refresh token for u.
func (m *JWTManager) GeneratePair(u *domain.User) (*TokenPair, error) {
	access, err := m.GenerateToken(KindAccess, u)
	if err != nil {
		return nil, err
	}
	refresh, err := m.GenerateToken(KindRefresh, u)
	if err != nil {
		return nil, err
	}
	return &TokenPair{Access: access, Refresh: refresh}, nil
}

// ValidateToken verifies signature, issuer and expiry and returns the claims.
func (m *JWTManager) ValidateToken(tokenString string) (*Claims, error) {
	claims := &Claims{}
	if _, err := m.parser.ParseWithClaims(tokenString, claims, func(*jwt.Token) (any, error) {
		return m.secret, nil
	}); err != nil {
		return nil, fmt.Errorf("parse token: %w", err)
	}
	return claims, nil
}

// ValidateTokenKind is ValidateToken that also requires the given kind.
func (m *JWTManager) ValidateTokenKind(tokenString string, expected TokenKind) (*Claims, error) {
	claims, err := m.ValidateToken(tokenString)
	if err != nil {
		return nil, err
	}
	if claims.Kind != expected {
		return nil, fmt.Errorf("expected %s token, got %q", expected, claims.Kind)
	}
	return claims, nil
}
