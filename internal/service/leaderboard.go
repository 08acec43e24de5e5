package service

import (
	"context"
	"log/slog"

	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/scorekeep/arena/internal/projection"
	"github.com/scorekeep/arena/internal/repository"
	"golang.org/x/sync/errgroup"
)

// UserGames is a user's per-game breakdown.
type UserGames struct {
	User        domain.UserSummary `json:"user"`
	TotalPoints int64              `json:"total_points"`
	Games       []domain.GameTotal `json:"games"`
}

// LeaderboardService computes aggregates on demand from the full ledger.
// Nothing is cached: every call rescans users and results.
type LeaderboardService struct {
	db      repository.DBTX
	users   repository.UserRepository
	games   repository.GameRepository
	results repository.ResultRepository
	logger  *slog.Logger
}

// NewLeaderboardService creates a LeaderboardService.
func NewLeaderboardService(db repository.DBTX, users repository.UserRepository, games repository.GameRepository, results repository.ResultRepository, logger *slog.Logger) *LeaderboardService {
	return &LeaderboardService{db: db, users: users, games: games, results: results, logger: logger}
}

// Leaderboard ranks every user, including users with no results, by total
// points. Ties keep registration order.
func (s *LeaderboardService) Leaderboard(ctx context.Context) ([]domain.LeaderboardEntry, error) {
	ctx, span := tracer.Start(ctx, "LeaderboardService.Leaderboard")
	defer span.End()

	var (
		users   []domain.User
		results []domain.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		users, err = s.users.List(gctx, s.db)
		return err
	})
	g.Go(func() error {
		var err error
		results, err = s.results.ListChronological(gctx, s.db, domain.ResultFilter{})
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, domain.ErrInternal("load leaderboard", err)
	}

	return projection.Leaderboard(results, users), nil
}

// GamesForUser groups one user's results by game.
func (s *LeaderboardService) GamesForUser(ctx context.Context, userID uuid.UUID) (*UserGames, error) {
	ctx, span := tracer.Start(ctx, "LeaderboardService.GamesForUser")
	defer span.End()

	var (
		user    *domain.User
		games   []domain.Game
		results []domain.Result
	)
	g, gctx := errgroup.WithContext(ctx)
	g.Go(func() error {
		var err error
		user, err = s.users.FindByID(gctx, s.db, userID)
		return err
	})
	g.Go(func() error {
		var err error
		games, err = s.games.List(gctx, s.db, true)
		return err
	})
	g.Go(func() error {
		var err error
		results, err = s.results.ListChronological(gctx, s.db, domain.ResultFilter{UserID: &userID})
		return err
	})
	if err := g.Wait(); err != nil {
		span.RecordError(err)
		return nil, domain.ErrInternal("load user games", err)
	}
	if user == nil {
		return nil, domain.ErrNotFound("user", userID.String())
	}

	totals := projection.GamesForUser(results, userID, games)
	var sum int64
	for _, t := range totals {
		sum += t.TotalScore
	}
	return &UserGames{User: user.Summary(), TotalPoints: sum, Games: totals}, nil
}
