package app

import (
	"sort"

	"quiz-lobby-service/internal/domain"
)

// Rank projects the current participant set into an ordered leaderboard.
// Finished players come first, earliest finish winning; unfinished players
// follow, ordered by progress. Ties among unfinished players keep arrival
// order (participants is expected in join order). The ranking is recomputed
// on every read and never persisted.
func Rank(participants []domain.Participant, totalQuestions int) []domain.LeaderboardEntry {
	entries := make([]domain.LeaderboardEntry, 0, len(participants))
	for _, p := range participants {
		if p.Kicked {
			continue
		}
		entries = append(entries, domain.LeaderboardEntry{
			PlayerID:        p.ID,
			DisplayName:     p.DisplayName,
			CurrentQuestion: p.CurrentQuestion,
			TotalQuestions:  totalQuestions,
			IsFinished:      p.FinishedAt != nil,
			FinishedAt:      p.FinishedAt,
		})
	}

	sort.SliceStable(entries, func(i, j int) bool {
		a, b := entries[i], entries[j]
		if a.IsFinished && b.IsFinished {
			return a.FinishedAt.Before(*b.FinishedAt)
		}
		if a.IsFinished != b.IsFinished {
			return a.IsFinished
		}
		return a.CurrentQuestion > b.CurrentQuestion
	})

	return entries
}
