package domain

import (
	"time"

	"github.com/google/uuid"
)

// ResultStatus is the derived lifecycle state of a result.
type ResultStatus string

const (
	ResultPending  ResultStatus = "pending"
	ResultVerified ResultStatus = "verified"
)

// Result represents a game_results row. User, team and game are fixed at
// creation; only points, notes and the verification stamp change afterwards.
type Result struct {
	ID              string     `json:"result_id"`
	UserID          uuid.UUID  `json:"user_id"`
	TeamID          *string    `json:"team_id,omitempty"`
	GameID          *string    `json:"game_id,omitempty"`
	PointsScored    int        `json:"points_scored"`
	PlayedAt        time.Time  `json:"played_at"`
	Notes           string     `json:"notes"`
	VerifiedByAdmin bool       `json:"verified_by_admin"`
	AdminUserID     *uuid.UUID `json:"admin_user_id,omitempty"`
	AdminName       string     `json:"admin_name,omitempty"`
	UpdatedAt       time.Time  `json:"updated_at"`
}

// Status derives the lifecycle state from the verification flag.
func (r *Result) Status() ResultStatus {
	if r.VerifiedByAdmin {
		return ResultVerified
	}
	return ResultPending
}

// ResultFilter narrows list queries. Nil fields match everything; a zero
// Limit returns all rows.
type ResultFilter struct {
	UserID *uuid.UUID
	TeamID *string
	GameID *string
	Limit  int
	Offset int
}

// LeaderboardEntry is one ranked row of the leaderboard.
type LeaderboardEntry struct {
	Rank        int         `json:"rank"`
	User        UserSummary `json:"user"`
	TotalPoints int64       `json:"total_points"`
}

// GameTotal is one row of a user's per-game breakdown. Game is nil for
// results recorded without a game.
type GameTotal struct {
	Game       *GameSummary `json:"game"`
	TotalScore int64        `json:"total_score"`
	PlayCount  int          `json:"play_count"`
}
