package matchmaking

import (
	"sort"

	"github.com/nurbekov/courtside/models"
)

// ByFairness returns a copy of players ordered by least rounds played, then
// longest time since the last game. LastPlayedAt == 0 (never played) sorts
// ahead of any real timestamp. The sort is stable, so equal players keep
// their queue order.
func ByFairness(players []models.SessionPlayer) []models.SessionPlayer {
	out := make([]models.SessionPlayer, len(players))
	copy(out, players)
	sort.SliceStable(out, func(i, j int) bool {
		if out[i].RoundsPlayed != out[j].RoundsPlayed {
			return out[i].RoundsPlayed < out[j].RoundsPlayed
		}
		return out[i].LastPlayedAt < out[j].LastPlayedAt
	})
	return out
}

// Eligible filters out paused players, preserving order.
func Eligible(players []models.SessionPlayer) []models.SessionPlayer {
	out := make([]models.SessionPlayer, 0, len(players))
	for _, p := range players {
		if !p.Paused {
			out = append(out, p)
		}
	}
	return out
}

// Paused returns only the paused players, preserving order.
func Paused(players []models.SessionPlayer) []models.SessionPlayer {
	out := make([]models.SessionPlayer, 0)
	for _, p := range players {
		if p.Paused {
			out = append(out, p)
		}
	}
	return out
}

// NextUp is the "next four" preview of a queue: the first four non-paused
// players in fairness order.
func NextUp(queue []models.SessionPlayer) []models.SessionPlayer {
	eligible := ByFairness(Eligible(queue))
	if len(eligible) > 4 {
		eligible = eligible[:4]
	}
	return eligible
}

// RankPlayers flattens a snapshot into a ranking: wins descending, then
// rounds played ascending (fewer games for the same wins ranks higher),
// then name for a stable display order.
func RankPlayers(state models.RoomState) []models.RankingEntry {
	players := make([]models.SessionPlayer, 0, len(state.Queue))
	for _, court := range state.Courts {
		if court.Current != nil {
			players = append(players, court.Current.Players()...)
		}
	}
	players = append(players, state.Queue...)

	sort.SliceStable(players, func(i, j int) bool {
		if players[i].Wins != players[j].Wins {
			return players[i].Wins > players[j].Wins
		}
		if players[i].RoundsPlayed != players[j].RoundsPlayed {
			return players[i].RoundsPlayed < players[j].RoundsPlayed
		}
		return players[i].Name < players[j].Name
	})

	entries := make([]models.RankingEntry, len(players))
	for i, p := range players {
		entries[i] = models.RankingEntry{Player: p, Rank: i + 1}
	}
	return entries
}
