package projection

import (
	"context"
	"fmt"
	"time"

	"github.com/scorekeep/arena/internal/domain"
)

// IdentityProjection is the cached answer to a QR verification lookup.
type IdentityProjection struct {
	UserID   string      `json:"user_id"`
	QRID     string      `json:"qr_id"`
	Name     string      `json:"name"`
	Email    string      `json:"email"`
	Role     domain.Role `json:"role"`
	CachedAt string      `json:"cached_at"`
}

const identityTTL = 5 * time.Minute

func identityKey(qrID string) string {
	return fmt.Sprintf("projection:identity:%s", qrID)
}

// NewIdentityProjection builds the cache entry for an active user.
func NewIdentityProjection(u *domain.User) IdentityProjection {
	return IdentityProjection{
		UserID: u.ID.String(),
		QRID:   u.QRID,
		Name:   u.Name,
		Email:  u.Email,
		Role:   u.Role,
	}
}

// CacheIdentity stores a verified identity under its QR id.
func CacheIdentity(ctx context.Context, store Store, p IdentityProjection) error {
	p.CachedAt = time.Now().UTC().Format(time.RFC3339)
	return SetJSON(ctx, store, identityKey(p.QRID), p, identityTTL)
}

// GetIdentity retrieves a cached identity. Misses wrap ErrMiss.
func GetIdentity(ctx context.Context, store Store, qrID string) (*IdentityProjection, error) {
	var p IdentityProjection
	if err := GetJSON(ctx, store, identityKey(qrID), &p); err != nil {
		return nil, err
	}
	return &p, nil
}

// InvalidateIdentity removes a cached identity, e.g. after deactivation.
func InvalidateIdentity(ctx context.Context, store Store, qrID string) error {
	return store.Delete(ctx, identityKey(qrID))
}
