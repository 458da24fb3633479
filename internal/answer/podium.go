package answer

import (
	"sort"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/quiz"
)

// LockedAnswer is the slice of a committed answer the podium needs
type LockedAnswer struct {
	PlayerID        string
	PlayerName      string
	Score           int
	ScorePercentage int
	TimeSpentMs     int64
}

// PodiumBonus awards one podium place
type PodiumBonus struct {
	PlayerID        string `json:"playerId"`
	PlayerName      string `json:"playerName"`
	Place           int    `json:"place"`
	Bonus           int    `json:"bonus"`
	BonusPercentage int    `json:"bonusPercentage"`
	TimeSpentMs     int64  `json:"timeSpentMs"`
}

// SpeedPodium picks the up-to-three fastest fully correct answers of a
// locked item and computes their bonuses as a percentage of each answer's
// committed score. Ties on time break on lexicographic player id so the
// result is stable. Runs once per lock; reveal never recomputes it.
func SpeedPodium(locked []LockedAnswer, cfg quiz.PodiumConfig) []PodiumBonus {
	if !cfg.Enabled {
		return nil
	}

	perfect := make([]LockedAnswer, 0, len(locked))
	for _, a := range locked {
		if a.ScorePercentage == 100 {
			perfect = append(perfect, a)
		}
	}
	if len(perfect) == 0 {
		return nil
	}

	sort.Slice(perfect, func(i, j int) bool {
		if perfect[i].TimeSpentMs != perfect[j].TimeSpentMs {
			return perfect[i].TimeSpentMs < perfect[j].TimeSpentMs
		}
		return perfect[i].PlayerID < perfect[j].PlayerID
	})

	places := len(perfect)
	if places > 3 {
		places = 3
	}

	podium := make([]PodiumBonus, 0, places)
	for i := 0; i < places; i++ {
		podium = append(podium, PodiumBonus{
			PlayerID:        perfect[i].PlayerID,
			PlayerName:      perfect[i].PlayerName,
			Place:           i + 1,
			Bonus:           roundHalf(float64(perfect[i].Score) * float64(cfg.Percentages[i]) / 100.0),
			BonusPercentage: cfg.Percentages[i],
			TimeSpentMs:     perfect[i].TimeSpentMs,
		})
	}
	return podium
}
