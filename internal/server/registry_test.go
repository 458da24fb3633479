package server

import (
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

type qualityChange struct {
	code     string
	playerID string
	quality  types.ConnectionQuality
}

func newTestRegistry() (*Registry, *[]qualityChange, *time.Time) {
	r := NewRegistry(Config{}.withDefaults())
	now := time.Date(2025, 6, 1, 20, 0, 0, 0, time.UTC)
	clock := &now
	r.SetNow(func() time.Time { return *clock })

	var changes []qualityChange
	r.SetQualitySink(func(code, playerID string, q types.ConnectionQuality) {
		changes = append(changes, qualityChange{code, playerID, q})
	})
	return r, &changes, clock
}

func TestRegistrySweepGradesSilence(t *testing.T) {
	r, changes, clock := newTestRegistry()

	c := testClient("s1")
	c.bind("ABC123", types.RolePlayer, "p1")
	r.Track(c)
	require.Equal(t, 1, r.Count())

	// fresh socket stays good
	r.Sweep()
	assert.Empty(t, *changes)

	// 35s of silence degrades to poor
	*clock = clock.Add(35 * time.Second)
	r.Sweep()
	require.Len(t, *changes, 1)
	assert.Equal(t, qualityChange{"ABC123", "p1", types.QualityPoor}, (*changes)[0])

	// no repeat verdict while nothing changes
	r.Sweep()
	assert.Len(t, *changes, 1)

	// past the offline threshold
	*clock = clock.Add(30 * time.Second)
	r.Sweep()
	require.Len(t, *changes, 2)
	assert.Equal(t, types.QualityOffline, (*changes)[1].quality)
}

func TestRegistryTouchResetsQuality(t *testing.T) {
	r, changes, clock := newTestRegistry()

	c := testClient("s1")
	c.bind("ABC123", types.RolePlayer, "p1")
	r.Track(c)

	*clock = clock.Add(35 * time.Second)
	r.Sweep()
	require.Len(t, *changes, 1)

	// a frame arrives and the next sweep recovers the socket
	r.Touch("s1")
	r.Sweep()
	require.Len(t, *changes, 2)
	assert.Equal(t, types.QualityGood, (*changes)[1].quality)
}

func TestRegistryUnboundSocketsStaySilent(t *testing.T) {
	r, changes, clock := newTestRegistry()

	// tracked before any join frame, no player binding yet
	r.Track(testClient("s1"))

	*clock = clock.Add(2 * time.Minute)
	r.Sweep()
	assert.Empty(t, *changes, "no player to report for")
}

func TestRegistryDropReturnsBinding(t *testing.T) {
	r, _, _ := newTestRegistry()

	c := testClient("s1")
	c.bind("ABC123", types.RolePlayer, "p1")
	r.Track(c)

	code, playerID := r.Drop("s1")
	assert.Equal(t, "ABC123", code)
	assert.Equal(t, "p1", playerID)
	assert.Equal(t, 0, r.Count())

	code, playerID = r.Drop("s1")
	assert.Empty(t, code)
	assert.Empty(t, playerID)
}
