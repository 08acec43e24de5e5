package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"time"

	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/auth"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/guard"
	"github.com/scorekeep/arena/internal/projection"
	"github.com/scorekeep/arena/internal/repository"
	"golang.org/x/crypto/bcrypt"
)

const qrIDAttempts = 5

// AuthService handles registration, login and token rotation.
type AuthService struct {
	pool    repository.TxBeginner
	users   repository.UserRepository
	outbox  repository.OutboxRepository
	jwtMgr  *auth.JWTManager
	revoked projection.Store
	lockout *guard.Lockout
	qr      *QRService
	logger  *slog.Logger
}

// NewAuthService creates a new AuthService. qr may be nil, in which case no
// QR image is published on registration.
func NewAuthService(
	pool repository.TxBeginner,
	users repository.UserRepository,
	outbox repository.OutboxRepository,
	jwtMgr *auth.JWTManager,
	revoked projection.Store,
	qr *QRService,
	logger *slog.Logger,
) *AuthService {
	return &AuthService{
		pool:    pool,
		users:   users,
		outbox:  outbox,
		jwtMgr:  jwtMgr,
		revoked: revoked,
		lockout: guard.NewLockout(guard.MaxLoginFailures, guard.LockoutWindow),
		qr:      qr,
		logger:  logger,
	}
}

// RegisterInput holds the registration request fields.
type RegisterInput struct {
	Name     string `json:"name"`
	Email    string `json:"email"`
	Password string `json:"password"`
}

// LoginInput holds the login request fields.
type LoginInput struct {
	Email    string `json:"email"`
	Password string `json:"password"`
}

// AuthResult is returned on successful registration, login or refresh.
type AuthResult struct {
	Tokens *auth.TokenPair `json:"tokens"`
	User   *domain.User    `json:"user"`
}

// Register creates a user with a fresh qr_id and returns a token pair.
func (s *AuthService) Register(ctx context.Context, input RegisterInput) (*AuthResult, error) {
	input.Email = strings.ToLower(strings.TrimSpace(input.Email))
	input.Name = strings.TrimSpace(input.Name)
	if err := domain.ValidateEmail(input.Email); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidateName("name", input.Name); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if err := domain.ValidatePassword(input.Password); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	existing, err := s.users.FindByEmail(ctx, s.pool, input.Email)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if existing != nil {
		return nil, domain.ErrConflict("email already registered")
	}

	hash, err := bcrypt.GenerateFromPassword([]byte(input.Password), bcrypt.DefaultCost)
	if err != nil {
		return nil, domain.ErrInternal("hash password", err)
	}

	var user *domain.User
	for attempt := 1; ; attempt++ {
		user, err = s.createUser(ctx, input, string(hash))
		if err == nil {
			break
		}
		if errors.Is(err, domain.ErrQRCollision) && attempt < qrIDAttempts {
			s.logger.Warn("qr id collision, retrying", "attempt", attempt)
			continue
		}
		return nil, appError("create user", err)
	}

	if s.qr != nil {
		if key, err := s.qr.Publish(ctx, user); err != nil {
			s.logger.Warn("qr image upload failed", "user_id", user.ID, "error", err)
		} else if key != "" {
			user.QRImageKey = key
		}
	}

	tokens, err := s.jwtMgr.GeneratePair(user)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}
	s.logger.Info("user registered", "user_id", user.ID, "qr_id", user.QRID)
	return &AuthResult{Tokens: tokens, User: user}, nil
}

func (s *AuthService) createUser(ctx context.Context, input RegisterInput, hash string) (*domain.User, error) {
	tx, err := s.pool.Begin(ctx)
	if err != nil {
		return nil, fmt.Errorf("begin tx: %w", err)
	}
	defer tx.Rollback(ctx)

	user := &domain.User{
		ID:           uuid.New(),
		Email:        input.Email,
		Name:         input.Name,
		Role:         domain.RoleUser,
		QRID:         domain.NewQRID(),
		IsActive:     true,
		PasswordHash: hash,
	}
	if err := s.users.Create(ctx, tx, user); err != nil {
		return nil, err
	}
	if err := s.outbox.Insert(ctx, tx, domain.NewUserRegisteredEvent(user)); err != nil {
		return nil, fmt.Errorf("insert outbox event: %w", err)
	}
	if err := tx.Commit(ctx); err != nil {
		return nil, fmt.Errorf("commit tx: %w", err)
	}
	return user, nil
}

// Login authenticates a user and returns a token pair. Failed attempts are
// recorded; too many within the lockout window lock the account.
func (s *AuthService) Login(ctx context.Context, input LoginInput, ip string) (*AuthResult, error) {
	email := strings.ToLower(strings.TrimSpace(input.Email))
	locked, err := s.lockout.Check(ctx, s.pool, email)
	if err != nil {
		s.logger.Warn("lockout check failed, allowing attempt", "error", err)
	}
	if !locked.Allowed {
		return nil, domain.ErrAccountLocked(locked.Reason)
	}

	user, err := s.users.FindByEmail(ctx, s.pool, email)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if user == nil || !user.IsActive ||
		bcrypt.CompareHashAndPassword([]byte(user.PasswordHash), []byte(input.Password)) != nil {
		s.recordAttempt(ctx, email, ip, false)
		return nil, domain.ErrUnauthorized("invalid credentials")
	}
	s.recordAttempt(ctx, email, ip, true)

	if err := s.users.TouchLastLogin(ctx, s.pool, user.ID); err != nil {
		s.logger.Warn("touch last login failed", "user_id", user.ID, "error", err)
	}

	tokens, err := s.jwtMgr.GeneratePair(user)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}
	return &AuthResult{Tokens: tokens, User: user}, nil
}

func (s *AuthService) recordAttempt(ctx context.Context, email, ip string, success bool) {
	if err := s.lockout.Record(ctx, s.pool, email, ip, success); err != nil {
		s.logger.Warn("login attempt not recorded", "success", success, "error", err)
	}
}

// Refresh exchanges a refresh token for a new pair. The presented token is
// revoked so it cannot be replayed.
func (s *AuthService) Refresh(ctx context.Context, refreshToken string) (*AuthResult, error) {
	claims, err := s.checkRefresh(ctx, refreshToken)
	if err != nil {
		return nil, err
	}
	userID, err := claims.UserID()
	if err != nil {
		return nil, domain.ErrUnauthorized("invalid token subject")
	}
	user, err := s.users.FindByID(ctx, s.pool, userID)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if user == nil || !user.IsActive {
		return nil, domain.ErrUnauthorized("user not found or inactive")
	}

	if err := s.revoke(ctx, claims); err != nil {
		return nil, domain.ErrInternal("revoke token", err)
	}
	tokens, err := s.jwtMgr.GeneratePair(user)
	if err != nil {
		return nil, domain.ErrInternal("generate token", err)
	}
	return &AuthResult{Tokens: tokens, User: user}, nil
}

// Logout revokes a refresh token.
func (s *AuthService) Logout(ctx context.Context, refreshToken string) error {
	claims, err := s.checkRefresh(ctx, refreshToken)
	if err != nil {
		return err
	}
	if err := s.revoke(ctx, claims); err != nil {
		return domain.ErrInternal("revoke token", err)
	}
	return nil
}

// Me returns the caller's user record.
func (s *AuthService) Me(ctx context.Context, userID uuid.UUID) (*domain.User, error) {
	user, err := s.users.FindByID(ctx, s.pool, userID)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user", userID.String())
	}
	return user, nil
}

func (s *AuthService) checkRefresh(ctx context.Context, token string) (*auth.Claims, error) {
	claims, err := s.jwtMgr.ValidateTokenKind(token, auth.KindRefresh)
	if err != nil {
		return nil, domain.ErrUnauthorized(err.Error())
	}
	revoked, err := s.revoked.Exists(ctx, revokedKey(claims.ID))
	if err != nil {
		return nil, domain.ErrInternal("check revocation", err)
	}
	if revoked {
		return nil, domain.ErrUnauthorized("token revoked")
	}
	return claims, nil
}

func (s *AuthService) revoke(ctx context.Context, claims *auth.Claims) error {
	ttl := time.Minute
	if claims.ExpiresAt != nil {
		if remaining := time.Until(claims.ExpiresAt.Time); remaining > ttl {
			ttl = remaining
		}
	}
	return s.revoked.Set(ctx, revokedKey(claims.ID), []byte("1"), ttl)
}

func revokedKey(jti string) string { return "auth:revoked:" + jti }
