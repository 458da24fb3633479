package minigame

import (
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

func fourPlayerGame(t *testing.T) *Game {
	t.Helper()
	g, err := NewGame(DefaultConfig(), []Seed{
		{PlayerID: "p1", Name: "Anna"},
		{PlayerID: "p2", Name: "Bram"},
		{PlayerID: "p3", Name: "Cees"},
		{PlayerID: "p4", Name: "Dana"},
	})
	require.NoError(t, err)
	return g
}

// TestGameTeamsAlternate tests the join-order team split
func TestGameTeamsAlternate(t *testing.T) {
	g := fourPlayerGame(t)

	assert.Equal(t, types.TeamBlue, g.participants["p1"].Team)
	assert.Equal(t, types.TeamWhite, g.participants["p2"].Team)
	assert.Equal(t, types.TeamBlue, g.participants["p3"].Team)
	assert.Equal(t, types.TeamWhite, g.participants["p4"].Team)

	_, err := NewGame(DefaultConfig(), []Seed{{PlayerID: "solo"}})
	assert.Error(t, err, "a single player cannot form two teams")
}

// TestGameTickMovesAndTags tests one 50ms step: movement then tagging
func TestGameTickMovesAndTags(t *testing.T) {
	g := fourPlayerGame(t)

	boat := g.participants["p1"]
	swan := g.participants["p2"]

	// Boat heads straight for a stationary swan three units away
	boat.X, boat.Y = 100, 100
	swan.X, swan.Y = 103, 100
	// Park the other two far away
	g.participants["p3"].X, g.participants["p3"].Y = 500, 500
	g.participants["p4"].X, g.participants["p4"].Y = 900, 550

	require.True(t, g.ApplyInput("p1", 1, 0, false))

	res := g.Step()

	// 2.0 units/s over 0.05s
	assert.InDelta(t, 100.1, boat.X, 1e-9)
	assert.InDelta(t, 100.0, boat.Y, 1e-9)

	// 2.9 units apart is inside the tag radius of 5
	require.Len(t, res.Tags, 1)
	assert.Equal(t, "p2", res.Tags[0].SwanID)
	assert.Equal(t, "p1", res.Tags[0].BoatID)
	assert.Equal(t, StatusTagged, boat.Status)
	assert.Equal(t, 1, swan.Tags)
	assert.Equal(t, PointsPerTag, swan.Points)

	// A tagged boat is out: no repeat tag, no movement, no input
	res = g.Step()
	assert.Empty(t, res.Tags)
	assert.InDelta(t, 100.1, boat.X, 1e-9)
	assert.False(t, g.ApplyInput("p1", 1, 0, false))
}

// TestGameSafeZone tests arrival scoring and ordering
func TestGameSafeZone(t *testing.T) {
	g := fourPlayerGame(t)
	cfg := g.cfg

	first := g.participants["p1"]
	second := g.participants["p3"]
	// Both boats inside the zone radius already; swans far away
	first.X, first.Y = cfg.SafeZoneX-30, cfg.SafeZoneY
	second.X, second.Y = cfg.SafeZoneX+20, cfg.SafeZoneY
	g.participants["p2"].X, g.participants["p2"].Y = 10, 10
	g.participants["p4"].X, g.participants["p4"].Y = 10, 590

	res := g.Step()

	require.Len(t, res.Safes, 2)
	assert.Equal(t, StatusSafe, first.Status)
	assert.Equal(t, StatusSafe, second.Status)
	assert.Equal(t, 1, first.SafeOrder, "join order breaks same-tick arrivals")
	assert.Equal(t, 2, second.SafeOrder)
	assert.Equal(t, PointsSafe, first.Points)

	// No active boats left ends the run
	assert.True(t, res.Ended)
	assert.True(t, g.Ended())
}

// TestGameDurationEnd tests the clock-based end condition
func TestGameDurationEnd(t *testing.T) {
	cfg := DefaultConfig()
	cfg.DurationMs = 100

	g, err := NewGame(cfg, []Seed{{PlayerID: "p1"}, {PlayerID: "p2"}})
	require.NoError(t, err)

	assert.False(t, g.Step().Ended)
	assert.True(t, g.Step().Ended)
	assert.True(t, g.Ended())

	// Stepping a finished game stays finished and does nothing
	res := g.Step()
	assert.True(t, res.Ended)
	assert.Empty(t, res.Tags)
}

// TestGameInputRateLimit tests the 30 inputs per player per second cap
func TestGameInputRateLimit(t *testing.T) {
	g := fourPlayerGame(t)

	for i := 0; i < 30; i++ {
		assert.True(t, g.ApplyInput("p1", 1, 0, false), "input %d within budget", i)
	}
	assert.False(t, g.ApplyInput("p1", 1, 0, false), "31st input in the window is dropped")
	assert.Equal(t, 1, g.DroppedInputs())

	// Other players have their own budget
	assert.True(t, g.ApplyInput("p2", 0, 1, false))

	// A new sim second resets the window. 20 ticks advance one second.
	for i := 0; i < 20; i++ {
		g.Step()
	}
	assert.True(t, g.ApplyInput("p1", 0, 1, false))
}

// TestGameBoost tests charge spend, cooldown gating and the speed boost
func TestGameBoost(t *testing.T) {
	g := fourPlayerGame(t)

	boat := g.participants["p1"]
	boat.X, boat.Y = 100, 100
	// Keep swans away so nothing tags
	g.participants["p2"].X, g.participants["p2"].Y = 800, 50
	g.participants["p4"].X, g.participants["p4"].Y = 800, 550
	g.participants["p3"].X, g.participants["p3"].Y = 300, 300

	require.True(t, g.ApplyInput("p1", 1, 0, true))
	assert.Equal(t, DefaultConfig().SprintCharges-1, boat.boost.charges)

	// Activating again during cooldown burns nothing
	g.ApplyInput("p1", 1, 0, true)
	assert.Equal(t, DefaultConfig().SprintCharges-1, boat.boost.charges)

	g.Step()
	// 2.0 * 1.75 * 0.05 while sprinting
	assert.InDelta(t, 100.175, boat.X, 1e-9)
}

// TestGameDirectionNormalized tests that diagonal input is unit length
func TestGameDirectionNormalized(t *testing.T) {
	g := fourPlayerGame(t)

	boat := g.participants["p1"]
	boat.X, boat.Y = 100, 100
	g.participants["p2"].X, g.participants["p2"].Y = 800, 50
	g.participants["p4"].X, g.participants["p4"].Y = 800, 550

	require.True(t, g.ApplyInput("p1", 3, 4, false))
	assert.InDelta(t, 0.6, boat.DirX, 1e-9)
	assert.InDelta(t, 0.8, boat.DirY, 1e-9)

	// Zero vector stops the boat
	require.True(t, g.ApplyInput("p1", 0, 0, false))
	g.Step()
	assert.InDelta(t, 100.0, boat.X, 1e-9)
}

// TestGameStandings tests final ordering with the safe-arrival tiebreak
func TestGameStandings(t *testing.T) {
	g := fourPlayerGame(t)
	cfg := g.cfg

	// p1 reaches the zone, p3 gets tagged by p2, p4 does nothing
	g.participants["p1"].X, g.participants["p1"].Y = cfg.SafeZoneX, cfg.SafeZoneY
	g.participants["p3"].X, g.participants["p3"].Y = 200, 200
	g.participants["p2"].X, g.participants["p2"].Y = 201, 200
	g.participants["p4"].X, g.participants["p4"].Y = 700, 100

	res := g.Step()
	require.Len(t, res.Tags, 1)
	require.Len(t, res.Safes, 1)
	assert.True(t, res.Ended, "no active boats remain")

	rows := g.Standings()
	require.Len(t, rows, 4)
	// Safe boat: 2 points. Tagging swan: 1 point. Rest: 0.
	assert.Equal(t, "p1", rows[0].PlayerID)
	assert.Equal(t, 2, rows[0].Points)
	assert.Equal(t, "p2", rows[1].PlayerID)
	assert.Equal(t, 1, rows[1].Points)
	assert.Equal(t, 0, rows[2].Points)
}

// TestGameSnapshot tests the broadcast view
func TestGameSnapshot(t *testing.T) {
	g := fourPlayerGame(t)

	snap := g.Snapshot()
	assert.Equal(t, g.cfg.DurationMs, snap.TimeRemainingMs)
	require.Len(t, snap.Participants, 4)
	// Join order, not map order
	assert.Equal(t, "p1", snap.Participants[0].PlayerID)
	assert.Equal(t, "p4", snap.Participants[3].PlayerID)
	assert.Equal(t, DefaultConfig().SprintCharges, snap.Participants[0].Boost.Charges)

	g.Step()
	snap = g.Snapshot()
	assert.Equal(t, g.cfg.DurationMs-g.cfg.TickMs, snap.TimeRemainingMs)
}
