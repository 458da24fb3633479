package leaderboard

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// TestComputeDenseRanks tests that ties share a rank and the next
// distinct score takes rank+1
func TestComputeDenseRanks(t *testing.T) {
	players := []Player{
		{ID: "p1", Name: "Anna", Score: 30},
		{ID: "p2", Name: "Bram", Score: 50},
		{ID: "p3", Name: "Cees", Score: 50},
		{ID: "p4", Name: "Dana", Score: 10},
	}

	entries := Compute(players)
	require.Len(t, entries, 4)

	assert.Equal(t, 1, entries[0].Rank)
	assert.Equal(t, "Bram", entries[0].Name)
	assert.Equal(t, 1, entries[1].Rank)
	assert.Equal(t, "Cees", entries[1].Name)
	assert.Equal(t, 2, entries[2].Rank, "30 points comes directly after the tied pair")
	assert.Equal(t, "Anna", entries[2].Name)
	assert.Equal(t, 3, entries[3].Rank)
}

// TestComputeTieOrdering tests the stable name ordering inside a tie
func TestComputeTieOrdering(t *testing.T) {
	players := []Player{
		{ID: "p1", Name: "Zoe", Score: 20},
		{ID: "p2", Name: "Aart", Score: 20},
		{ID: "p3", Name: "Mila", Score: 20},
	}

	entries := Compute(players)
	require.Len(t, entries, 3)
	assert.Equal(t, []string{"Aart", "Mila", "Zoe"},
		[]string{entries[0].Name, entries[1].Name, entries[2].Name})
	for _, e := range entries {
		assert.Equal(t, 1, e.Rank)
	}
}

// TestComputeDoesNotMutateInput tests that ranking copies before sorting
func TestComputeDoesNotMutateInput(t *testing.T) {
	players := []Player{
		{ID: "p1", Name: "Anna", Score: 1},
		{ID: "p2", Name: "Bram", Score: 2},
	}

	Compute(players)
	assert.Equal(t, "p1", players[0].ID)
	assert.Equal(t, "p2", players[1].ID)
}

// TestTopNAndRankOf tests the view helpers
func TestTopNAndRankOf(t *testing.T) {
	players := []Player{
		{ID: "p1", Name: "Anna", Score: 5},
		{ID: "p2", Name: "Bram", Score: 15},
		{ID: "p3", Name: "Cees", Score: 10},
	}
	entries := Compute(players)

	top := TopN(entries, 2)
	require.Len(t, top, 2)
	assert.Equal(t, "p2", top[0].PlayerID)
	assert.Equal(t, "p3", top[1].PlayerID)

	assert.Len(t, TopN(entries, 99), 3)
	assert.Empty(t, TopN(entries, 0))

	rank, ok := RankOf(entries, "p1")
	assert.True(t, ok)
	assert.Equal(t, 3, rank)

	_, ok = RankOf(entries, "ghost")
	assert.False(t, ok)
}

// TestComputeEmpty tests the empty session edge
func TestComputeEmpty(t *testing.T) {
	assert.Empty(t, Compute(nil))
}
