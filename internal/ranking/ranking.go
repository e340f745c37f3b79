// Package ranking orders finished participants into the final leaderboard.
package ranking

import (
	"sort"

	"retroquiz-service/internal/domain"
)

// Rank sorts standings by score descending, breaking ties by earliest last
// answer (the player who reached their score first wins the tie). Equal
// timestamps keep input order. Ranks are dense 1-based positions; exact ties
// never share a rank.
func Rank(standings []domain.Standing) []domain.RankedEntry {
	sorted := make([]domain.Standing, len(standings))
	copy(sorted, standings)

	sort.SliceStable(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].LastAnswer.Before(sorted[j].LastAnswer)
	})

	entries := make([]domain.RankedEntry, len(sorted))
	for i, s := range sorted {
		entries[i] = domain.RankedEntry{
			PlayerID: s.PlayerID,
			Username: s.Username,
			Score:    s.Score,
			Rank:     i + 1,
		}
	}
	return entries
}
