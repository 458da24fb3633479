package leaderboard

import (
	"sort"
)

// Player is the slice of session state the ranking needs
type Player struct {
	ID            string
	Name          string
	Avatar        string
	Score         int
	CurrentStreak int
	Connected     bool
}

// Entry is one ranked row as broadcast to clients
type Entry struct {
	Rank          int    `json:"rank"`
	PlayerID      string `json:"playerId"`
	Name          string `json:"name"`
	Avatar        string `json:"avatar,omitempty"`
	Score         int    `json:"score"`
	CurrentStreak int    `json:"currentStreak"`
	Connected     bool   `json:"connected"`
}

// Compute ranks players by score with dense ranks: equal scores share a
// rank and the next distinct score takes rank+1. Rows order score desc,
// then name asc so ties render stably.
func Compute(players []Player) []Entry {
	sorted := make([]Player, len(players))
	copy(sorted, players)
	sort.Slice(sorted, func(i, j int) bool {
		if sorted[i].Score != sorted[j].Score {
			return sorted[i].Score > sorted[j].Score
		}
		return sorted[i].Name < sorted[j].Name
	})

	entries := make([]Entry, len(sorted))
	rank := 0
	prevScore := 0
	for i, p := range sorted {
		if i == 0 || p.Score != prevScore {
			rank++
			prevScore = p.Score
		}
		entries[i] = Entry{
			Rank:          rank,
			PlayerID:      p.ID,
			Name:          p.Name,
			Avatar:        p.Avatar,
			Score:         p.Score,
			CurrentStreak: p.CurrentStreak,
			Connected:     p.Connected,
		}
	}
	return entries
}

// TopN returns the first n entries without re-ranking
func TopN(entries []Entry, n int) []Entry {
	if n < 0 {
		n = 0
	}
	if n > len(entries) {
		n = len(entries)
	}
	return entries[:n]
}

// RankOf looks up a player's rank
func RankOf(entries []Entry, playerID string) (int, bool) {
	for _, e := range entries {
		if e.PlayerID == playerID {
			return e.Rank, true
		}
	}
	return 0, false
}
