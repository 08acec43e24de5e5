//go:build integration

package integration

import (
	"fmt"
	"net/http"
	"sync"
	"testing"

	"github.com/scorekeep/arena/test/integration/testutil"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

type resultBody struct {
	ID              string  `json:"result_id"`
	PointsScored    int     `json:"points_scored"`
	VerifiedByAdmin bool    `json:"verified_by_admin"`
	AdminUserID     *string `json:"admin_user_id"`
	AdminName       string  `json:"admin_name"`
}

func createResult(t *testing.T, env *testutil.TestEnv, token string, body map[string]interface{}) resultBody {
	t.Helper()
	resp := env.Do(http.MethodPost, "/api/v1/results", body, token)
	require.Equal(t, http.StatusCreated, resp.StatusCode)
	var out resultBody
	testutil.DecodeJSON(t, resp, &out)
	return out
}

func TestResults_SeededRangeEnforced(t *testing.T) {
	env := testutil.NewTestEnv(t)
	user := env.Register("Ada", "ada@test.com", "securepass123")

	createResult(t, env, user.Token, map[string]interface{}{"game_id": "GAME-QUIZ", "points_scored": 100})

	resp := env.Do(http.MethodPost, "/api/v1/results",
		map[string]interface{}{"game_id": "GAME-QUIZ", "points_scored": 101}, user.Token)
	testutil.AssertErrorCode(t, resp, http.StatusBadRequest, "VALIDATION_ERROR")
}

func TestResults_GlobalCeilingWins(t *testing.T) {
	ceiling := 250
	env := testutil.NewTestEnvWith(t, testutil.Options{ScoreCeiling: &ceiling})
	user := env.Register("Ada", "ada@test.com", "securepass123")

	resp := env.Do(http.MethodPost, "/api/v1/results",
		map[string]interface{}{"game_id": "GAME-RUNNER", "points_scored": 400}, user.Token)
	var body struct {
		Details map[string]interface{} `json:"details"`
	}
	testutil.DecodeJSON(t, resp, &body)
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
	assert.Equal(t, "GLOBAL_LIMIT_EXCEEDED", body.Details["reason"])
}

func TestResults_AdminVerificationFlow(t *testing.T) {
	env := testutil.NewTestEnv(t)
	user := env.Register("Ada", "ada@test.com", "securepass123")
	admin := env.RegisterAdmin("Root", "root@test.com", "securepass123")

	created := createResult(t, env, user.Token, map[string]interface{}{"game_id": "GAME-QUIZ", "points_scored": 40})
	assert.False(t, created.VerifiedByAdmin)
	assert.Nil(t, created.AdminUserID)

	resp := env.Do(http.MethodPut, "/api/v1/admin/results/"+created.ID,
		map[string]interface{}{"points_scored": 55, "verified_by_admin": true}, admin.Token)
	require.Equal(t, http.StatusOK, resp.StatusCode)
	var updated resultBody
	testutil.DecodeJSON(t, resp, &updated)
	assert.Equal(t, 55, updated.PointsScored)
	assert.True(t, updated.VerifiedByAdmin)
	require.NotNil(t, updated.AdminUserID)
	assert.Equal(t, admin.ID.String(), *updated.AdminUserID)
	assert.Equal(t, "Root", updated.AdminName)

	// create + update
	assert.Equal(t, 2, env.CountOutboxEvents(created.ID))

	resp = env.Do(http.MethodPut, "/api/v1/admin/results/"+created.ID,
		map[string]interface{}{"points_scored": 55, "verified_by_admin": true}, admin.Token)
	resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
	assert.Equal(t, "true", resp.Header.Get("Idempotent-Replayed"))
	assert.Equal(t, 2, env.CountOutboxEvents(created.ID))
}

func TestResults_ConcurrentAdminUpdatesSerialize(t *testing.T) {
	env := testutil.NewTestEnv(t)
	user := env.Register("Ada", "ada@test.com", "securepass123")
	admin := env.RegisterAdmin("Root", "root@test.com", "securepass123")
	created := createResult(t, env, user.Token, map[string]interface{}{"game_id": "GAME-RUNNER", "points_scored": 1})

	var wg sync.WaitGroup
	for i := 0; i < 10; i++ {
		wg.Add(1)
		go func(points int) {
			defer wg.Done()
			resp := env.Do(http.MethodPut, "/api/v1/admin/results/"+created.ID,
				map[string]interface{}{"points_scored": points, "notes": fmt.Sprintf("run %d", points)}, admin.Token)
			resp.Body.Close()
		}(100 + i)
	}
	wg.Wait()

	var points int
	var notes string
	require.NoError(t, env.Pool.QueryRow(t.Context(),
		"SELECT points_scored, notes FROM game_results WHERE result_id = $1", created.ID).Scan(&points, &notes))
	assert.Equal(t, fmt.Sprintf("run %d", points), notes)
}

func TestLeaderboard_IncludesUsersWithoutResults(t *testing.T) {
	env := testutil.NewTestEnv(t)
	a := env.Register("A", "a@test.com", "securepass123")
	b := env.Register("B", "b@test.com", "securepass123")

	createResult(t, env, a.Token, map[string]interface{}{"game_id": "GAME-QUIZ", "points_scored": 5})
	createResult(t, env, a.Token, map[string]interface{}{"game_id": "GAME-PUZZLE", "points_scored": 3})

	resp := env.Do(http.MethodGet, "/api/v1/leaderboard", nil, b.Token)
	var entries []struct {
		User struct {
			ID string `json:"id"`
		} `json:"user"`
		TotalPoints int64 `json:"total_points"`
	}
	testutil.DecodeJSON(t, resp, &entries)
	require.Len(t, entries, 2)
	assert.Equal(t, a.ID.String(), entries[0].User.ID)
	assert.Equal(t, int64(8), entries[0].TotalPoints)
	assert.Equal(t, b.ID.String(), entries[1].User.ID)
	assert.Zero(t, entries[1].TotalPoints)
}
