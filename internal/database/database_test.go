package database

import (
	"os"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

// setupTestDB creates a temporary database with migrations applied
func setupTestDB(t *testing.T) (*Database, func()) {
	tempDir, err := os.MkdirTemp("", "partyquiz_test")
	require.NoError(t, err)

	db, err := New(tempDir)
	require.NoError(t, err)

	cleanup := func() {
		db.Close()
		os.RemoveAll(tempDir)
	}
	return db, cleanup
}

func testSession(id, code string) *SessionRecord {
	return &SessionRecord{
		ID:           id,
		Code:         code,
		Status:       "LOBBY",
		QuizSnapshot: []byte(`{"id":"quiz-1","title":"Test Quiz"}`),
		HostKeyHash:  "hash",
		CreatedAt:    time.Now().UTC(),
	}
}

func TestSessionRoundtrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	rec := testSession("session-1", "ABC123")
	require.NoError(t, db.UpsertSession(rec))

	got, err := db.GetSessionByCode("ABC123")
	require.NoError(t, err)
	assert.Equal(t, "session-1", got.ID)
	assert.Equal(t, "LOBBY", got.Status)
	assert.Equal(t, []byte(`{"id":"quiz-1","title":"Test Quiz"}`), got.QuizSnapshot)
	assert.Nil(t, got.EndedAt)

	// Upsert replaces, never duplicates
	rec.Status = "ACTIVE"
	rec.StateVersion = 7
	rec.CurrentItemIndex = 2
	require.NoError(t, db.UpsertSession(rec))

	got, err = db.GetSessionByCode("ABC123")
	require.NoError(t, err)
	assert.Equal(t, "ACTIVE", got.Status)
	assert.Equal(t, uint64(7), got.StateVersion)
	assert.Equal(t, 2, got.CurrentItemIndex)
}

func TestGetSessionByCodeNotFound(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	_, err := db.GetSessionByCode("NOPE99")
	assert.ErrorIs(t, err, ErrNotFound)
}

func TestListSessionsFilterAndPaging(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	for i, status := range []string{"LOBBY", "ACTIVE", "ACTIVE", "ENDED"} {
		rec := testSession(
			string(rune('a'+i))+"-session",
			"CODE0"+string(rune('0'+i)),
		)
		rec.Status = status
		require.NoError(t, db.UpsertSession(rec))
	}

	active, total, err := db.ListSessions(SessionFilter{Status: "ACTIVE"})
	require.NoError(t, err)
	assert.Equal(t, 2, total)
	assert.Len(t, active, 2)

	all, total, err := db.ListSessions(SessionFilter{Page: 1, PageSize: 3})
	require.NoError(t, err)
	assert.Equal(t, 4, total)
	assert.Len(t, all, 3)

	rest, _, err := db.ListSessions(SessionFilter{Page: 2, PageSize: 3})
	require.NoError(t, err)
	assert.Len(t, rest, 1)
}

func TestPlayerRoundtrip(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, db.UpsertSession(testSession("session-1", "ABC123")))

	player := &PlayerRecord{
		ID:                "player-1",
		SessionID:         "session-1",
		Name:              "Alice",
		Avatar:            "duck",
		Score:             10,
		Streak:            1,
		DeviceFingerprint: "fp-1",
		JoinedAt:          time.Now().UTC(),
	}
	require.NoError(t, db.UpsertPlayer(player))

	player.Score = 25
	player.Streak = 2
	require.NoError(t, db.UpsertPlayer(player))

	players, err := db.GetSessionPlayers("session-1")
	require.NoError(t, err)
	require.Len(t, players, 1)
	assert.Equal(t, "Alice", players[0].Name)
	assert.Equal(t, 25, players[0].Score)
	assert.Equal(t, 2, players[0].Streak)
	assert.False(t, players[0].Kicked)
}

func TestAnswerAtMostOnce(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, db.UpsertSession(testSession("session-1", "ABC123")))

	correct := true
	answer := &AnswerRecord{
		SessionID:       "session-1",
		ItemID:          "item-1",
		PlayerID:        "player-1",
		Raw:             []byte(`"o1"`),
		Coerced:         "o1",
		IsCorrect:       &correct,
		ScorePercentage: 100,
		Score:           10,
		TimeSpentMs:     1000,
		SubmittedAt:     time.Now().UTC(),
	}
	require.NoError(t, db.UpsertAnswer(answer))

	// A replayed checkpoint converges on the same row
	answer.Score = 13
	require.NoError(t, db.UpsertAnswer(answer))

	answers, err := db.GetSessionAnswers("session-1")
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, 13, answers[0].Score)
	require.NotNil(t, answers[0].IsCorrect)
	assert.True(t, *answers[0].IsCorrect)
}

func TestDeleteItemAnswers(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, db.UpsertSession(testSession("session-1", "ABC123")))

	rows := []struct{ itemID, playerID string }{
		{"item-1", "player-a"},
		{"item-1", "player-b"},
		{"item-2", "player-a"},
	}
	for _, row := range rows {
		require.NoError(t, db.UpsertAnswer(&AnswerRecord{
			SessionID:   "session-1",
			ItemID:      row.itemID,
			PlayerID:    row.playerID,
			SubmittedAt: time.Now().UTC(),
		}))
	}

	require.NoError(t, db.DeleteItemAnswers("session-1", "item-1"))

	answers, err := db.GetSessionAnswers("session-1")
	require.NoError(t, err)
	require.Len(t, answers, 1)
	assert.Equal(t, "item-2", answers[0].ItemID)

	require.NoError(t, db.DeleteSessionAnswers("session-1"))
	answers, err = db.GetSessionAnswers("session-1")
	require.NoError(t, err)
	assert.Empty(t, answers)
}

func TestSaveScoreAdjustment(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, db.UpsertSession(testSession("session-1", "ABC123")))

	adj := &ScoreAdjustmentRecord{
		SessionID:       "session-1",
		ItemID:          "item-1",
		PlayerID:        "player-1",
		OldScore:        0,
		NewScore:        7,
		ScorePercentage: 70,
	}
	require.NoError(t, db.SaveScoreAdjustment(adj))
	assert.NotZero(t, adj.ID)
}

func TestDeleteSessionCascades(t *testing.T) {
	db, cleanup := setupTestDB(t)
	defer cleanup()

	require.NoError(t, db.UpsertSession(testSession("session-1", "ABC123")))
	require.NoError(t, db.UpsertPlayer(&PlayerRecord{
		ID: "player-1", SessionID: "session-1", Name: "Alice", JoinedAt: time.Now().UTC(),
	}))
	require.NoError(t, db.UpsertAnswer(&AnswerRecord{
		SessionID: "session-1", ItemID: "item-1", PlayerID: "player-1", SubmittedAt: time.Now().UTC(),
	}))

	require.NoError(t, db.DeleteSession("session-1"))

	players, err := db.GetSessionPlayers("session-1")
	require.NoError(t, err)
	assert.Empty(t, players)

	answers, err := db.GetSessionAnswers("session-1")
	require.NoError(t, err)
	assert.Empty(t, answers)
}
