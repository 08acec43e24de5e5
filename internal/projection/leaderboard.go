package projection

import (
	"sort"

	"github.com/google/uuid"
	"github.com/scorekeep/arena/internal/domain"
)

// Leaderboard ranks every user in users by the sum of their points over
// results. Users without results appear with zero. Ties keep the order of
// users, so callers control the tiebreak by how they order the input.
// Results whose user is not in users are ignored.
func Leaderboard(results []domain.Result, users []domain.User) []domain.LeaderboardEntry {
	totals := make(map[uuid.UUID]int64, len(users))
	for _, u := range users {
		totals[u.ID] = 0
	}
	for _, r := range results {
		if _, ok := totals[r.UserID]; ok {
			totals[r.UserID] += int64(r.PointsScored)
		}
	}

	entries := make([]domain.LeaderboardEntry, 0, len(users))
	seen := make(map[uuid.UUID]bool, len(users))
	for i := range users {
		u := &users[i]
		if seen[u.ID] {
			continue
		}
		seen[u.ID] = true
		entries = append(entries, domain.LeaderboardEntry{
			User:        u.Summary(),
			TotalPoints: totals[u.ID],
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		return entries[i].TotalPoints > entries[j].TotalPoints
	})

	// Competition ranking: equal totals share a rank.
	for i := range entries {
		if i > 0 && entries[i].TotalPoints == entries[i-1].TotalPoints {
			entries[i].Rank = entries[i-1].Rank
		} else {
			entries[i].Rank = i + 1
		}
	}
	return entries
}

// GamesForUser groups userID's results by game, summing points and counting
// plays, ordered by total descending. Ties keep first-appearance order.
// Results without a game form a single group with a nil Game. games supplies
// display names; ids missing from it are reported with the id only.
func GamesForUser(results []domain.Result, userID uuid.UUID, games []domain.Game) []domain.GameTotal {
	catalog := make(map[string]*domain.Game, len(games))
	for i := range games {
		catalog[games[i].ID] = &games[i]
	}

	index := make(map[string]int)
	var out []domain.GameTotal
	for _, r := range results {
		if r.UserID != userID {
			continue
		}
		key := ""
		if r.GameID != nil {
			key = *r.GameID
		}
		i, ok := index[key]
		if !ok {
			i = len(out)
			index[key] = i
			out = append(out, domain.GameTotal{Game: gameSummary(key, r.GameID != nil, catalog)})
		}
		out[i].TotalScore += int64(r.PointsScored)
		out[i].PlayCount++
	}

	sort.SliceStable(out, func(i, j int) bool {
		return out[i].TotalScore > out[j].TotalScore
	})
	if out == nil {
		out = []domain.GameTotal{}
	}
	return out
}

func gameSummary(id string, hasGame bool, catalog map[string]*domain.Game) *domain.GameSummary {
	if !hasGame {
		return nil
	}
	if g, ok := catalog[id]; ok {
		return g.Summary()
	}
	return &domain.GameSummary{ID: id}
}
