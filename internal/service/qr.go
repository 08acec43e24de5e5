package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"

	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/guard"
	"github.com/scorekeep/arena/internal/projection"
	"github.com/scorekeep/arena/internal/repository"
	qrcode "github.com/skip2/go-qrcode"
)

const (
	qrImageSize  = 256
	qrStorageKey = "object-store"
)

// BlobStore is where rendered QR images are published. *infra.ObjectStore
// implements it.
type BlobStore interface {
	Put(ctx context.Context, key, contentType string, data []byte) error
	Delete(ctx context.Context, key string) error
	PublicURL(key string) string
}

// VerifyResult is the answer to a QR scan.
type VerifyResult struct {
	Status  string      `json:"status"`
	Name    string      `json:"name"`
	Email   string      `json:"email"`
	Role    domain.Role `json:"role"`
	QRID    string      `json:"qr_id"`
	Message string      `json:"message"`
}

// QRService resolves QR ids to users and renders QR images.
type QRService struct {
	db      repository.DBTX
	users   repository.UserRepository
	cache   projection.Store
	blobs   BlobStore
	breaker *guard.CircuitBreaker
	logger  *slog.Logger
}

// NewQRService creates a QRService. blobs may be nil to disable uploads.
func NewQRService(db repository.DBTX, users repository.UserRepository, cache projection.Store, blobs BlobStore, breaker *guard.CircuitBreaker, logger *slog.Logger) *QRService {
	return &QRService{
		db:      db,
		users:   users,
		cache:   cache,
		blobs:   blobs,
		breaker: breaker,
		logger:  logger,
	}
}

// Verify looks up the active user holding qrID. Unknown and inactive users
// are both reported as not found.
func (s *QRService) Verify(ctx context.Context, qrID string) (*VerifyResult, error) {
	if !domain.ValidQRID(qrID) {
		return nil, domain.ErrNotFound("user", qrID)
	}

	if cached, err := projection.GetIdentity(ctx, s.cache, qrID); err == nil {
		return verified(cached), nil
	} else if !errors.Is(err, projection.ErrMiss) {
		s.logger.Warn("identity cache read failed", "qr_id", qrID, "error", err)
	}

	user, err := s.users.FindByQRID(ctx, s.db, qrID)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if user == nil || !user.IsActive {
		return nil, domain.ErrNotFound("user", qrID)
	}

	p := projection.NewIdentityProjection(user)
	if err := projection.CacheIdentity(ctx, s.cache, p); err != nil {
		s.logger.Warn("identity cache write failed", "qr_id", qrID, "error", err)
	}
	return verified(&p), nil
}

// Forget drops any cached verification for qrID.
func (s *QRService) Forget(ctx context.Context, qrID string) {
	if err := projection.InvalidateIdentity(ctx, s.cache, qrID); err != nil {
		s.logger.Warn("identity cache invalidate failed", "qr_id", qrID, "error", err)
	}
}

// Render encodes the user's QR payload ("<qr_id>|<name>") as a PNG.
func (s *QRService) Render(user *domain.User) ([]byte, error) {
	png, err := qrcode.Encode(qrPayload(user), qrcode.Low, qrImageSize)
	if err != nil {
		return nil, domain.ErrInternal("render qr", err)
	}
	return png, nil
}

// ImageURL returns the public URL of the user's uploaded QR image, if any.
func (s *QRService) ImageURL(user *domain.User) string {
	if s.blobs == nil || user.QRImageKey == "" {
		return ""
	}
	return s.blobs.PublicURL(user.QRImageKey)
}

// Publish renders and uploads the user's QR image and records its key.
// It returns "" without error when no blob store is configured.
func (s *QRService) Publish(ctx context.Context, user *domain.User) (string, error) {
	if s.blobs == nil {
		return "", nil
	}
	png, err := s.Render(user)
	if err != nil {
		return "", err
	}

	key := QRImageKey(user.QRID)
	err = s.breaker.Execute(ctx, qrStorageKey, func(ctx context.Context) error {
		return s.blobs.Put(ctx, key, "image/png", png)
	})
	if err != nil {
		return "", fmt.Errorf("upload qr image: %w", err)
	}
	if err := s.users.SetQRImageKey(ctx, s.db, user.ID, key); err != nil {
		return "", fmt.Errorf("record qr image key: %w", err)
	}
	return key, nil
}

// Withdraw deletes the user's published QR image and clears its key, so a
// deactivated user's badge no longer resolves.
func (s *QRService) Withdraw(ctx context.Context, user *domain.User) error {
	if s.blobs == nil || user.QRImageKey == "" {
		return nil
	}
	err := s.breaker.Execute(ctx, qrStorageKey, func(ctx context.Context) error {
		return s.blobs.Delete(ctx, user.QRImageKey)
	})
	if err != nil {
		return fmt.Errorf("delete qr image: %w", err)
	}
	if err := s.users.SetQRImageKey(ctx, s.db, user.ID, ""); err != nil {
		return fmt.Errorf("clear qr image key: %w", err)
	}
	user.QRImageKey = ""
	return nil
}

// QRImageKey is the object key a user's QR image is stored under.
func QRImageKey(qrID string) string { return "qr_codes/" + qrID + ".png" }

func qrPayload(user *domain.User) string {
	if user.Name == "" {
		return user.QRID
	}
	return user.QRID + "|" + user.Name
}

func verified(p *projection.IdentityProjection) *VerifyResult {
	return &VerifyResult{
		Status:  "success",
		Name:    p.Name,
		Email:   p.Email,
		Role:    p.Role,
		QRID:    p.QRID,
		Message: "User verified successfully",
	}
}
