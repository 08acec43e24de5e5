package policy

import "github.com/scorekeep/arena/internal/domain"

// ScorePolicy holds the system-wide score rules. A nil GlobalCeiling means no
// ceiling is configured.
type ScorePolicy struct {
	GlobalCeiling *int `json:"global_ceiling,omitempty"`
}

// NewScorePolicy builds a policy from an optional ceiling.
func NewScorePolicy(ceiling *int) ScorePolicy {
	return ScorePolicy{GlobalCeiling: ceiling}
}

// Breach names used in ScoreEvaluation.BreachedLimit.
const (
	BreachGlobalCeiling = "global_ceiling"
	BreachGameRange     = "game_range"
	BreachNegative      = "negative"
)

// ScoreEvaluation holds the result of a score bounds check.
type ScoreEvaluation struct {
	Allowed       bool   `json:"allowed"`
	BreachedLimit string `json:"breached_limit,omitempty"`
	Given         int    `json:"given"`
	AllowedMin    int    `json:"allowed_min,omitempty"`
	AllowedMax    int    `json:"allowed_max,omitempty"`
	Ceiling       int    `json:"ceiling,omitempty"`
}

// EvaluateScore checks points against the global ceiling and, when game is
// non-nil, the game's inclusive range. The ceiling is checked first.
func EvaluateScore(p ScorePolicy, points int, game *domain.Game) ScoreEvaluation {
	if p.GlobalCeiling != nil && points > *p.GlobalCeiling {
		return ScoreEvaluation{
			BreachedLimit: BreachGlobalCeiling,
			Given:         points,
			Ceiling:       *p.GlobalCeiling,
		}
	}

	if game != nil {
		if points < game.MinPoints || points > game.MaxPoints {
			return ScoreEvaluation{
				BreachedLimit: BreachGameRange,
				Given:         points,
				AllowedMin:    game.MinPoints,
				AllowedMax:    game.MaxPoints,
			}
		}
		return ScoreEvaluation{Allowed: true, Given: points}
	}

	// Without a game the only lower bound is zero.
	if points < 0 {
		return ScoreEvaluation{BreachedLimit: BreachNegative, Given: points}
	}
	return ScoreEvaluation{Allowed: true, Given: points}
}

// Err converts a failed evaluation into the matching domain error, or nil.
func (e ScoreEvaluation) Err() error {
	switch {
	case e.Allowed:
		return nil
	case e.BreachedLimit == BreachGlobalCeiling:
		return domain.ErrGlobalLimitExceeded(e.Given, e.Ceiling)
	case e.BreachedLimit == BreachGameRange:
		return domain.ErrScoreOutOfRange(e.Given, e.AllowedMin, e.AllowedMax)
	default:
		return domain.ErrScoreBelowMinimum(e.Given, 0)
	}
}

// ValidateScore is EvaluateScore(...).Err().
func ValidateScore(p ScorePolicy, points int, game *domain.Game) error {
	return EvaluateScore(p, points, game).Err()
}
