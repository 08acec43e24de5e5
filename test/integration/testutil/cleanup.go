//go:build integration

package testutil

import (
	"context"
	"time"
)

// CleanAll truncates every table except the seeded game catalog, which is
// restored to its migration state.
func (env *TestEnv) CleanAll() {
	ctx, cancel := context.WithTimeout(context.Background(), 10*time.Second)
	defer cancel()

	for _, table := range []string{"game_results", "teams", "event_outbox", "login_attempts", "users"} {
		_, _ = env.Pool.Exec(ctx, "TRUNCATE TABLE "+table+" CASCADE")
	}
	_, _ = env.Pool.Exec(ctx, `DELETE FROM games WHERE game_id NOT IN ('GAME-RUNNER', 'GAME-QUIZ', 'GAME-PUZZLE')`)
	_, _ = env.Pool.Exec(ctx, `
		UPDATE games SET is_active = true, min_points = 0,
		  max_points = CASE game_id WHEN 'GAME-RUNNER' THEN 500 WHEN 'GAME-QUIZ' THEN 100 ELSE 300 END`)
}
