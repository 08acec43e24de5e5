package domain

import (
	"fmt"
	"time"
)

// Default score range for a new game.
const (
	DefaultMinPoints = 0
	DefaultMaxPoints = 100
)

// Game represents a games row. MinPoints and MaxPoints bound every new or
// updated result that references the game.
type Game struct {
	ID          string    `json:"game_id"`
	Name        string    `json:"game_name"`
	Description string    `json:"game_description"`
	MinPoints   int       `json:"min_points"`
	MaxPoints   int       `json:"max_points"`
	IsActive    bool      `json:"is_active"`
	CreatedAt   time.Time `json:"created_at"`
	UpdatedAt   time.Time `json:"updated_at"`
}

// ValidateRange checks 0 <= min <= max.
func (g *Game) ValidateRange() error {
	if g.MinPoints < 0 || g.MaxPoints < 0 {
		return fmt.Errorf("min_points and max_points must be non-negative")
	}
	if g.MinPoints > g.MaxPoints {
		return fmt.Errorf("min_points (%d) must not exceed max_points (%d)", g.MinPoints, g.MaxPoints)
	}
	return nil
}

// Summary returns the projection of the game used in aggregates.
func (g *Game) Summary() *GameSummary {
	return &GameSummary{ID: g.ID, Name: g.Name}
}

// GameSummary is the game shape embedded in per-user aggregates.
type GameSummary struct {
	ID   string `json:"game_id"`
	Name string `json:"game_name"`
}
