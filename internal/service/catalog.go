package service

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/google/uuid"
	"github.com/jackc/pgx/v5"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/repository"
)

// CatalogService manages the reference data results point at: teams, games
// and (for admins) user accounts. Nothing here is ever hard-deleted.
type CatalogService struct {
	pool   repository.TxBeginner
	users  repository.UserRepository
	teams  repository.TeamRepository
	games  repository.GameRepository
	outbox repository.OutboxRepository
	qr     *QRService
	logger *slog.Logger
}

// NewCatalogService creates a CatalogService. qr is used to drop cached QR
// verifications when an account changes; it may be nil.
func NewCatalogService(
	pool repository.TxBeginner,
	users repository.UserRepository,
	teams repository.TeamRepository,
	games repository.GameRepository,
	outbox repository.OutboxRepository,
	qr *QRService,
	logger *slog.Logger,
) *CatalogService {
	return &CatalogService{
		pool:   pool,
		users:  users,
		teams:  teams,
		games:  games,
		outbox: outbox,
		qr:     qr,
		logger: logger,
	}
}

// --- teams ---

// TeamInput is the body of team create and rename requests.
type TeamInput struct {
	Name string `json:"team_name"`
}

// ListTeams returns the caller's teams. Admins may list every team.
func (s *CatalogService) ListTeams(ctx context.Context, caller domain.Caller, all, includeInactive bool) ([]domain.Team, error) {
	var (
		teams []domain.Team
		err   error
	)
	if all {
		if err := requireAdmin(caller); err != nil {
			return nil, err
		}
		teams, err = s.teams.ListAll(ctx, s.pool, includeInactive)
	} else {
		teams, err = s.teams.ListByOwner(ctx, s.pool, caller.ID, includeInactive)
	}
	if err != nil {
		return nil, domain.ErrInternal("list teams", err)
	}
	return teams, nil
}

// CreateTeam creates a team owned by the caller.
func (s *CatalogService) CreateTeam(ctx context.Context, caller domain.Caller, input TeamInput) (*domain.Team, error) {
	name := strings.TrimSpace(input.Name)
	if err := domain.ValidateName("team_name", name); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	team := &domain.Team{
		ID:       domain.NewTeamID(),
		Name:     name,
		OwnerID:  caller.ID,
		IsActive: true,
	}
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.teams.Create(ctx, tx, team); err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, domain.NewTeamEvent(domain.EventTeamCreated, team))
	})
	if err != nil {
		return nil, appError("create team", err)
	}
	s.logger.Info("team created", "team_id", team.ID, "owner_id", team.OwnerID)
	return team, nil
}

// GetTeam returns a team visible to the caller (owner or admin).
func (s *CatalogService) GetTeam(ctx context.Context, caller domain.Caller, id string) (*domain.Team, error) {
	return s.ownedTeam(ctx, s.pool, caller, id)
}

// RenameTeam changes a team's name.
func (s *CatalogService) RenameTeam(ctx context.Context, caller domain.Caller, id string, input TeamInput) (*domain.Team, error) {
	name := strings.TrimSpace(input.Name)
	if err := domain.ValidateName("team_name", name); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}

	var updated *domain.Team
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		team, err := s.ownedTeam(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		if team.Name == name {
			updated = team
			return nil
		}
		if updated, err = s.teams.Rename(ctx, tx, id, name); err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, domain.NewTeamEvent(domain.EventTeamUpdated, updated))
	})
	if err != nil {
		return nil, appError("rename team", err)
	}
	return updated, nil
}

// DeactivateTeam soft-deletes a team. Its results keep counting toward every
// aggregate; it just can't be named on new results.
func (s *CatalogService) DeactivateTeam(ctx context.Context, caller domain.Caller, id string) (*domain.Team, error) {
	var updated *domain.Team
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		team, err := s.ownedTeam(ctx, tx, caller, id)
		if err != nil {
			return err
		}
		if !team.IsActive {
			updated = team
			return nil
		}
		if updated, err = s.teams.Deactivate(ctx, tx, id); err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, domain.NewTeamEvent(domain.EventTeamDeactivated, updated))
	})
	if err != nil {
		return nil, appError("deactivate team", err)
	}
	s.logger.Info("team deactivated", "team_id", id, "by", caller.ID)
	return updated, nil
}

func (s *CatalogService) ownedTeam(ctx context.Context, db repository.DBTX, caller domain.Caller, id string) (*domain.Team, error) {
	team, err := s.teams.FindByID(ctx, db, id)
	if err != nil {
		return nil, domain.ErrInternal("find team", err)
	}
	if team == nil {
		return nil, domain.ErrNotFound("team", id)
	}
	if !team.OwnedBy(caller.ID) && !caller.IsAdmin() {
		return nil, domain.ErrForbidden("team belongs to another user")
	}
	return team, nil
}

// --- games ---

// GameInput is the body of an admin game create. Range fields default to
// 0..100; GameID is optional and generated when empty.
type GameInput struct {
	GameID      string `json:"game_id"`
	Name        string `json:"game_name"`
	Description string `json:"game_description"`
	MinPoints   *int   `json:"min_points"`
	MaxPoints   *int   `json:"max_points"`
}

// GameUpdate is the body of an admin game update. Nil fields are kept.
type GameUpdate struct {
	Name        *string `json:"game_name"`
	Description *string `json:"game_description"`
	MinPoints   *int    `json:"min_points"`
	MaxPoints   *int    `json:"max_points"`
	IsActive    *bool   `json:"is_active"`
}

// ListGames returns the catalog. Inactive games are only listed on request.
func (s *CatalogService) ListGames(ctx context.Context, includeInactive bool) ([]domain.Game, error) {
	games, err := s.games.List(ctx, s.pool, includeInactive)
	if err != nil {
		return nil, domain.ErrInternal("list games", err)
	}
	return games, nil
}

// GetGame returns one game.
func (s *CatalogService) GetGame(ctx context.Context, id string) (*domain.Game, error) {
	game, err := s.games.FindByID(ctx, s.pool, id)
	if err != nil {
		return nil, domain.ErrInternal("find game", err)
	}
	if game == nil {
		return nil, domain.ErrNotFound("game", id)
	}
	return game, nil
}

// CreateGame adds a game to the catalog. A client-supplied id that is
// already taken is a conflict.
func (s *CatalogService) CreateGame(ctx context.Context, caller domain.Caller, input GameInput) (*domain.Game, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	game := &domain.Game{
		ID:          strings.ToUpper(strings.TrimSpace(input.GameID)),
		Name:        strings.TrimSpace(input.Name),
		Description: strings.TrimSpace(input.Description),
		MinPoints:   domain.DefaultMinPoints,
		MaxPoints:   domain.DefaultMaxPoints,
		IsActive:    true,
	}
	if game.ID == "" {
		game.ID = domain.NewGameID()
	} else if err := domain.ValidateEntityID(game.ID); err != nil {
		return nil, domain.ErrValidation(err.Error())
	}
	if input.MinPoints != nil {
		game.MinPoints = *input.MinPoints
	}
	if input.MaxPoints != nil {
		game.MaxPoints = *input.MaxPoints
	}
	if err := validateGame(game); err != nil {
		return nil, err
	}

	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		if err := s.games.Create(ctx, tx, game); err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, domain.NewGameEvent(domain.EventGameCreated, game))
	})
	if err != nil {
		return nil, appError("create game", err)
	}
	s.logger.Info("game created", "game_id", game.ID, "min_points", game.MinPoints, "max_points", game.MaxPoints)
	return game, nil
}

// UpdateGame edits a game. Range changes apply to future results only;
// stored results are never re-validated.
func (s *CatalogService) UpdateGame(ctx context.Context, caller domain.Caller, id string, input GameUpdate) (*domain.Game, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}

	var updated *domain.Game
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		game, err := s.games.FindByID(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("find game: %w", err)
		}
		if game == nil {
			return domain.ErrNotFound("game", id)
		}

		next := *game
		if input.Name != nil {
			next.Name = strings.TrimSpace(*input.Name)
		}
		if input.Description != nil {
			next.Description = strings.TrimSpace(*input.Description)
		}
		if input.MinPoints != nil {
			next.MinPoints = *input.MinPoints
		}
		if input.MaxPoints != nil {
			next.MaxPoints = *input.MaxPoints
		}
		if input.IsActive != nil {
			next.IsActive = *input.IsActive
		}
		if err := validateGame(&next); err != nil {
			return err
		}
		if sameGame(game, &next) {
			updated = game
			return nil
		}

		if updated, err = s.games.Update(ctx, tx, &next); err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, domain.NewGameEvent(domain.EventGameUpdated, updated))
	})
	if err != nil {
		return nil, appError("update game", err)
	}
	return updated, nil
}

// DeactivateGame soft-deletes a game.
func (s *CatalogService) DeactivateGame(ctx context.Context, caller domain.Caller, id string) (*domain.Game, error) {
	inactive := false
	return s.UpdateGame(ctx, caller, id, GameUpdate{IsActive: &inactive})
}

func validateGame(g *domain.Game) error {
	if err := domain.ValidateName("game_name", g.Name); err != nil {
		return domain.ErrValidation(err.Error())
	}
	if err := g.ValidateRange(); err != nil {
		return domain.ErrValidation(err.Error())
	}
	return nil
}

func sameGame(a, b *domain.Game) bool {
	return a.Name == b.Name && a.Description == b.Description &&
		a.MinPoints == b.MinPoints && a.MaxPoints == b.MaxPoints && a.IsActive == b.IsActive
}

// --- users ---

// ListUsers returns every account in leaderboard order.
func (s *CatalogService) ListUsers(ctx context.Context, caller domain.Caller) ([]domain.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	users, err := s.users.List(ctx, s.pool)
	if err != nil {
		return nil, domain.ErrInternal("list users", err)
	}
	return users, nil
}

// GetUser returns one account.
func (s *CatalogService) GetUser(ctx context.Context, caller domain.Caller, id uuid.UUID) (*domain.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	user, err := s.users.FindByID(ctx, s.pool, id)
	if err != nil {
		return nil, domain.ErrInternal("find user", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user", id.String())
	}
	return user, nil
}

// SetRole changes a user's role. Admins cannot change their own role.
func (s *CatalogService) SetRole(ctx context.Context, caller domain.Caller, id uuid.UUID, role domain.Role) (*domain.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if !role.Valid() {
		return nil, domain.ErrValidation(fmt.Sprintf("unknown role %q", role))
	}
	if id == caller.ID {
		return nil, domain.ErrValidation("admins cannot change their own role")
	}

	user, err := s.mutateUser(ctx, id,
		func(u *domain.User) bool { return u.Role == role },
		func(tx pgx.Tx) (*domain.User, error) { return s.users.UpdateRole(ctx, tx, id, role) },
		func(u *domain.User) domain.OutboxDraft { return domain.NewUserRoleChangedEvent(u, caller.ID) },
	)
	if err != nil {
		return nil, err
	}
	s.forget(ctx, user)
	return user, nil
}

// SetActive activates or soft-deactivates a user. Deactivated users can no
// longer log in or be verified, but their results still count.
func (s *CatalogService) SetActive(ctx context.Context, caller domain.Caller, id uuid.UUID, active bool) (*domain.User, error) {
	if err := requireAdmin(caller); err != nil {
		return nil, err
	}
	if id == caller.ID && !active {
		return nil, domain.ErrValidation("admins cannot deactivate themselves")
	}

	user, err := s.mutateUser(ctx, id,
		func(u *domain.User) bool { return u.IsActive == active },
		func(tx pgx.Tx) (*domain.User, error) { return s.users.UpdateStatus(ctx, tx, id, active) },
		func(u *domain.User) domain.OutboxDraft { return domain.NewUserStatusEvent(u, caller.ID) },
	)
	if err != nil {
		return nil, err
	}
	s.forget(ctx, user)
	s.syncQRImage(ctx, user)
	s.logger.Info("user status changed", "user_id", id, "active", active, "by", caller.ID)
	return user, nil
}

// syncQRImage withdraws an inactive user's QR image and republishes it on
// reactivation. Storage failures are logged; the status change stands.
func (s *CatalogService) syncQRImage(ctx context.Context, u *domain.User) {
	if s.qr == nil {
		return
	}
	if !u.IsActive {
		if err := s.qr.Withdraw(ctx, u); err != nil {
			s.logger.Warn("qr image withdraw failed", "user_id", u.ID, "error", err)
		}
		return
	}
	if u.QRImageKey == "" {
		key, err := s.qr.Publish(ctx, u)
		if err != nil {
			s.logger.Warn("qr image publish failed", "user_id", u.ID, "error", err)
			return
		}
		u.QRImageKey = key
	}
}

// mutateUser loads a user, skips the write when unchanged reports true, and
// otherwise applies write and records the event in one transaction.
func (s *CatalogService) mutateUser(
	ctx context.Context,
	id uuid.UUID,
	unchanged func(*domain.User) bool,
	write func(pgx.Tx) (*domain.User, error),
	event func(*domain.User) domain.OutboxDraft,
) (*domain.User, error) {
	var updated *domain.User
	err := withTx(ctx, s.pool, func(tx pgx.Tx) error {
		user, err := s.users.FindByID(ctx, tx, id)
		if err != nil {
			return fmt.Errorf("find user: %w", err)
		}
		if user == nil {
			return domain.ErrNotFound("user", id.String())
		}
		if unchanged(user) {
			updated = user
			return nil
		}
		if updated, err = write(tx); err != nil {
			return err
		}
		return s.outbox.Insert(ctx, tx, event(updated))
	})
	if err != nil {
		return nil, appError("update user", err)
	}
	return updated, nil
}

func (s *CatalogService) forget(ctx context.Context, u *domain.User) {
	if s.qr != nil && u.QRID != "" {
		s.qr.Forget(ctx, u.QRID)
	}
}
