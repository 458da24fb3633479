package main

import (
	"fmt"

	"github.com/spf13/cobra"
	"github.com/spf13/viper"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/auth"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/cache"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/database"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/session"
)

// demoQuiz is a small snapshot covering the common item kinds, handy for
// local testing without the platform
const demoQuiz = `{
  "id": "demo-quiz",
  "title": "Friday Night Demo",
  "version": 1,
  "settings": {
    "streakBonus": true,
    "speedPodium": {"enabled": true}
  },
  "items": [
    {
      "id": "q1",
      "kind": "QUESTION",
      "question": {
        "type": "MC_SINGLE",
        "text": "Which planet is known as the Red Planet?",
        "timerSeconds": 20,
        "basePoints": 10,
        "options": [
          {"id": "a", "text": "Venus"},
          {"id": "b", "text": "Mars", "isCorrect": true},
          {"id": "c", "text": "Jupiter"},
          {"id": "d", "text": "Mercury"}
        ]
      }
    },
    {
      "id": "q2",
      "kind": "QUESTION",
      "question": {
        "type": "TRUE_FALSE",
        "text": "A group of swans is called a bevy.",
        "timerSeconds": 15,
        "basePoints": 10,
        "correctBool": true
      }
    },
    {
      "id": "q3",
      "kind": "QUESTION",
      "question": {
        "type": "ESTIMATION",
        "text": "How many keys does a standard piano have?",
        "timerSeconds": 25,
        "basePoints": 10,
        "correctValue": 88,
        "marginPercent": 10
      }
    },
    {
      "id": "m1",
      "kind": "MINIGAME",
      "minigame": {"durationSeconds": 45}
    },
    {
      "id": "sb",
      "kind": "SCOREBOARD"
    }
  ]
}`

var seedCmd = &cobra.Command{
	Use:   "seed",
	Short: "Create a demo session and print its credentials",
	RunE: func(cmd *cobra.Command, args []string) error {
		db, err := database.New(viper.GetString("data_dir"))
		if err != nil {
			return fmt.Errorf("failed to open database: %v", err)
		}
		defer db.Close()

		cacheStore := cache.New(viper.GetString("redis_addr"))
		defer cacheStore.Close()

		hostKey, err := auth.GenerateHostKey()
		if err != nil {
			return err
		}
		hostKeyHash, err := auth.HashHostKey(hostKey)
		if err != nil {
			return err
		}

		store := session.NewStore(db, cacheStore, session.StoreConfig{})
		defer store.Close()

		state, err := store.Create([]byte(demoQuiz), hostKeyHash)
		if err != nil {
			return fmt.Errorf("failed to create demo session: %v", err)
		}

		fmt.Printf("session code: %s\n", state.Code)
		fmt.Printf("host key:     %s\n", hostKey)
		return nil
	},
}

func init() {
	rootCmd.AddCommand(seedCmd)
}
