package projection

import (
	"math/rand"
	"testing"

	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func strPtr(s string) *string { return &s }

func user(name string) domain.User {
	return domain.User{ID: uuid.New(), Name: name, Role: domain.RoleUser, IsActive: true}
}

func result(u domain.User, gameID string, points int) domain.Result {
	r := domain.Result{ID: domain.NewResultID(), UserID: u.ID, PointsScored: points}
	if gameID != "" {
		r.GameID = strPtr(gameID)
	}
	return r
}

func TestLeaderboard_ZeroFillsUsersWithoutResults(t *testing.T) {
	a, b := user("A"), user("B")
	results := []domain.Result{result(a, "GAME-1", 3), result(a, "GAME-2", 5)}

	board := Leaderboard(results, []domain.User{a, b})

	require.Len(t, board, 2)
	assert.Equal(t, a.ID, board[0].User.ID)
	assert.Equal(t, int64(8), board[0].TotalPoints)
	assert.Equal(t, 1, board[0].Rank)
	assert.Equal(t, b.ID, board[1].User.ID)
	assert.Equal(t, int64(0), board[1].TotalPoints)
	assert.Equal(t, 2, board[1].Rank)
}

func TestLeaderboard_TiesKeepInputOrder(t *testing.T) {
	a, b, c := user("A"), user("B"), user("C")
	results := []domain.Result{result(c, "", 4), result(b, "", 4), result(a, "", 1)}

	board := Leaderboard(results, []domain.User{a, b, c})

	require.Len(t, board, 3)
	assert.Equal(t, []string{"B", "C", "A"}, names(board))
	assert.Equal(t, []int{1, 1, 3}, ranks(board))

	again := Leaderboard(results, []domain.User{a, b, c})
	assert.Equal(t, board, again)
}

func TestLeaderboard_IgnoresUnknownUsers(t *testing.T) {
	a, ghost := user("A"), user("ghost")
	board := Leaderboard([]domain.Result{result(ghost, "", 50), result(a, "", 2)}, []domain.User{a})

	require.Len(t, board, 1)
	assert.Equal(t, int64(2), board[0].TotalPoints)
}

func TestLeaderboard_Empty(t *testing.T) {
	assert.Empty(t, Leaderboard(nil, nil))
}

func TestLeaderboard_Properties(t *testing.T) {
	rng := rand.New(rand.NewSource(42))

	for round := 0; round < 50; round++ {
		users := make([]domain.User, rng.Intn(8)+1)
		for i := range users {
			users[i] = user("u")
		}
		var results []domain.Result
		var sum int64
		n := rng.Intn(40)
		for i := 0; i < n; i++ {
			u := users[rng.Intn(len(users))]
			p := rng.Intn(500)
			results = append(results, result(u, []string{"", "GAME-A", "GAME-B"}[rng.Intn(3)], p))
			sum += int64(p)
		}

		board := Leaderboard(results, users)
		require.Len(t, board, len(users))

		var boardSum int64
		for i, e := range board {
			assert.GreaterOrEqual(t, e.TotalPoints, int64(0))
			if i > 0 {
				assert.GreaterOrEqual(t, board[i-1].TotalPoints, e.TotalPoints)
			}
			boardSum += e.TotalPoints

			var perGame int64
			for _, g := range GamesForUser(results, e.User.ID, nil) {
				perGame += g.TotalScore
			}
			assert.Equal(t, e.TotalPoints, perGame)
		}
		assert.Equal(t, sum, boardSum)
	}
}

func TestGamesForUser_GroupsAndOrders(t *testing.T) {
	a, b := user("A"), user("B")
	games := []domain.Game{
		{ID: "GAME-RUN", Name: "Endless Runner"},
		{ID: "GAME-QUIZ", Name: "Trivia Quiz"},
	}
	results := []domain.Result{
		result(a, "GAME-QUIZ", 10),
		result(a, "GAME-RUN", 100),
		result(b, "GAME-RUN", 999),
		result(a, "GAME-QUIZ", 20),
		result(a, "", 5),
		result(a, "GAME-GONE", 1),
	}

	got := GamesForUser(results, a.ID, games)

	require.Len(t, got, 4)
	assert.Equal(t, "Endless Runner", got[0].Game.Name)
	assert.Equal(t, int64(100), got[0].TotalScore)
	assert.Equal(t, 1, got[0].PlayCount)

	assert.Equal(t, "GAME-QUIZ", got[1].Game.ID)
	assert.Equal(t, int64(30), got[1].TotalScore)
	assert.Equal(t, 2, got[1].PlayCount)

	assert.Nil(t, got[2].Game)
	assert.Equal(t, int64(5), got[2].TotalScore)

	assert.Equal(t, "GAME-GONE", got[3].Game.ID)
	assert.Empty(t, got[3].Game.Name)
}

func TestGamesForUser_NoResults(t *testing.T) {
	got := GamesForUser(nil, uuid.New(), nil)
	assert.NotNil(t, got)
	assert.Empty(t, got)
}

func names(board []domain.LeaderboardEntry) []string {
	out := make([]string, len(board))
	for i, e := range board {
		out[i] = e.User.Name
	}
	return out
}

func ranks(board []domain.LeaderboardEntry) []int {
	out := make([]int, len(board))
	for i, e := range board {
		out[i] = e.Rank
	}
	return out
}
