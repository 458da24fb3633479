package server

import (
	"bytes"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"os"
	"strings"
	"testing"
	"time"

	"github.com/gorilla/websocket"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/cache"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/database"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/protocol"
)

const testPlatformSecret = "platform-test-secret"

const testQuiz = `{
  "id": "quiz-ws",
  "title": "Wire Test",
  "items": [
    {
      "id": "q1",
      "kind": "QUESTION",
      "question": {
        "type": "MC_SINGLE",
        "text": "Pick b",
        "timerSeconds": 30,
        "basePoints": 10,
        "options": [
          {"id": "a", "text": "wrong"},
          {"id": "b", "text": "right", "isCorrect": true},
          {"id": "c", "text": "also wrong"}
        ]
      }
    }
  ]
}`

func setupTestServer(t *testing.T) (*Server, *httptest.Server) {
	t.Helper()
	tempDir, err := os.MkdirTemp("", "partyquiz_server_test")
	require.NoError(t, err)

	db, err := database.New(tempDir)
	require.NoError(t, err)

	srv := New(Config{
		JWTSecret:      "test-jwt-secret",
		PlatformSecret: testPlatformSecret,
		DataDir:        tempDir,
	}, db, cache.NewMemory())
	ts := httptest.NewServer(srv.Router())

	t.Cleanup(func() {
		ts.Close()
		srv.supervisor.Shutdown()
		srv.sessions.Close()
		db.Close()
		os.RemoveAll(tempDir)
	})
	return srv, ts
}

type sessionCreds struct {
	Code      string `json:"code"`
	HostKey   string `json:"hostKey"`
	HostToken string `json:"hostToken"`
}

func createTestSession(t *testing.T, ts *httptest.Server) sessionCreds {
	t.Helper()
	req, err := http.NewRequest("POST", ts.URL+"/api/internal/sessions", bytes.NewBufferString(testQuiz))
	require.NoError(t, err)
	req.Header.Set("X-Platform-Secret", testPlatformSecret)

	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusCreated, resp.StatusCode)

	var creds sessionCreds
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&creds))
	require.Len(t, creds.Code, 6)
	require.NotEmpty(t, creds.HostKey)
	require.NotEmpty(t, creds.HostToken)
	return creds
}

func wsDial(t *testing.T, ts *httptest.Server) *websocket.Conn {
	t.Helper()
	url := "ws" + strings.TrimPrefix(ts.URL, "http") + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(url, nil)
	require.NoError(t, err)
	t.Cleanup(func() { conn.Close() })
	return conn
}

func sendCmd(t *testing.T, conn *websocket.Conn, cmdType protocol.CommandType, payload interface{}) {
	t.Helper()
	msg := map[string]interface{}{
		"type":      string(cmdType),
		"timestamp": time.Now().UTC(),
	}
	if payload != nil {
		msg["payload"] = payload
	}
	require.NoError(t, conn.WriteJSON(msg))
}

// waitEvent reads frames until one of the wanted type arrives. An ERROR
// frame fails the test unless ERROR is what we wait for.
func waitEvent(t *testing.T, conn *websocket.Conn, want protocol.EventType) *protocol.Message {
	t.Helper()
	deadline := time.Now().Add(5 * time.Second)
	conn.SetReadDeadline(deadline)
	for {
		var msg protocol.Message
		require.NoError(t, conn.ReadJSON(&msg), "waiting for %s", want)
		if msg.Type == string(want) {
			return &msg
		}
		if msg.Type == string(protocol.EventError) {
			t.Fatalf("unexpected ERROR while waiting for %s: %s", want, string(msg.Payload))
		}
		require.True(t, time.Now().Before(deadline), "timed out waiting for %s", want)
	}
}

func waitError(t *testing.T, conn *websocket.Conn, want protocol.ErrorCode) {
	t.Helper()
	msg := waitEvent(t, conn, protocol.EventError)
	var p protocol.ErrorPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &p))
	assert.Equal(t, want, p.Code)
}

func joinPlayer(t *testing.T, ts *httptest.Server, code, name, fingerprint string) (*websocket.Conn, string) {
	t.Helper()
	conn := wsDial(t, ts)
	sendCmd(t, conn, protocol.CmdJoinSession, map[string]interface{}{
		"code":              code,
		"name":              name,
		"deviceFingerprint": fingerprint,
	})
	msg := waitEvent(t, conn, protocol.EventSessionState)
	var state protocol.SessionStatePayload
	require.NoError(t, json.Unmarshal(msg.Payload, &state))
	require.NotNil(t, state.You)
	return conn, state.You.ID
}

func joinHost(t *testing.T, ts *httptest.Server, creds sessionCreds) *websocket.Conn {
	t.Helper()
	conn := wsDial(t, ts)
	sendCmd(t, conn, protocol.CmdHostJoinSession, map[string]interface{}{
		"code":    creds.Code,
		"hostKey": creds.HostKey,
	})
	waitEvent(t, conn, protocol.EventSessionState)
	return conn
}

func TestHealthEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)

	resp, err := http.Get(ts.URL + "/api/health")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)
}

func TestCreateSessionRequiresPlatformSecret(t *testing.T) {
	_, ts := setupTestServer(t)

	resp, err := http.Post(ts.URL+"/api/internal/sessions", "application/json", bytes.NewBufferString(testQuiz))
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusUnauthorized, resp.StatusCode)
}

func TestCreateSessionRejectsBadQuiz(t *testing.T) {
	_, ts := setupTestServer(t)

	req, _ := http.NewRequest("POST", ts.URL+"/api/internal/sessions", bytes.NewBufferString(`{"id":"x","items":[]}`))
	req.Header.Set("X-Platform-Secret", testPlatformSecret)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusBadRequest, resp.StatusCode)
}

func TestGetSessionByCode(t *testing.T) {
	_, ts := setupTestServer(t)
	creds := createTestSession(t, ts)

	resp, err := http.Get(ts.URL + "/api/sessions/code/" + creds.Code)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		Session protocol.SessionStatePayload `json:"session"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, creds.Code, body.Session.Code)
	assert.Equal(t, "Wire Test", body.Session.QuizTitle)

	resp, err = http.Get(ts.URL + "/api/sessions/code/ZZZZZZ")
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

// The full round: host and two players join, the host starts the only
// question, both answer, the item locks itself and the host reveals.
func TestQuestionRoundOverWebSocket(t *testing.T) {
	_, ts := setupTestServer(t)
	creds := createTestSession(t, ts)

	host := joinHost(t, ts, creds)
	p1, p1ID := joinPlayer(t, ts, creds.Code, "alice", "fp-alice")
	p2, _ := joinPlayer(t, ts, creds.Code, "bob", "fp-bob")

	sendCmd(t, host, protocol.CmdStartItem, map[string]interface{}{"itemIndex": 0})

	msg := waitEvent(t, p1, protocol.EventItemStarted)
	var started protocol.ItemStartedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &started))
	assert.Equal(t, "q1", started.ItemID)
	require.NotNil(t, started.Question)
	// the public view must not leak the correct answer
	assert.NotContains(t, string(msg.Payload), "isCorrect")
	waitEvent(t, p2, protocol.EventItemStarted)
	waitEvent(t, host, protocol.EventItemStarted)

	sendCmd(t, p1, protocol.CmdSubmitAnswer, map[string]interface{}{
		"itemId": "q1",
		"answer": "b",
	})
	waitEvent(t, p1, protocol.EventAnswerReceived)

	sendCmd(t, p2, protocol.CmdSubmitAnswer, map[string]interface{}{
		"itemId": "q1",
		"answer": "a",
	})

	// everyone answered, the item locks without host action
	waitEvent(t, host, protocol.EventItemLocked)
	waitEvent(t, p1, protocol.EventItemLocked)

	// answering after the lock is rejected
	sendCmd(t, p1, protocol.CmdSubmitAnswer, map[string]interface{}{
		"itemId": "q1",
		"answer": "c",
	})
	waitError(t, p1, protocol.ErrAnswerAfterLock)

	sendCmd(t, host, protocol.CmdRevealAnswers, nil)

	msg = waitEvent(t, p1, protocol.EventRevealAnswers)
	var reveal protocol.RevealAnswersPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &reveal))
	assert.Equal(t, []string{"b"}, reveal.CorrectOptionIDs)
	require.NotNil(t, reveal.YourResult)
	require.NotNil(t, reveal.YourResult.IsCorrect)
	assert.True(t, *reveal.YourResult.IsCorrect)
	assert.Greater(t, reveal.YourResult.Score, 0)

	msg = waitEvent(t, p2, protocol.EventRevealAnswers)
	require.NoError(t, json.Unmarshal(msg.Payload, &reveal))
	require.NotNil(t, reveal.YourResult)
	assert.Equal(t, 0, reveal.YourResult.Score)

	require.NotEmpty(t, reveal.Leaderboard)
	assert.Equal(t, p1ID, reveal.Leaderboard[0].PlayerID, "alice leads after the only question")

	sendCmd(t, host, protocol.CmdEndSession, nil)
	msg = waitEvent(t, p1, protocol.EventSessionEnded)
	var ended protocol.SessionEndedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &ended))
	assert.NotEmpty(t, ended.Leaderboard)
}

func TestHostAuthRejected(t *testing.T) {
	_, ts := setupTestServer(t)
	creds := createTestSession(t, ts)

	conn := wsDial(t, ts)
	sendCmd(t, conn, protocol.CmdHostJoinSession, map[string]interface{}{
		"code":    creds.Code,
		"hostKey": "definitely-wrong",
	})
	waitError(t, conn, protocol.ErrHostKeyInvalid)
}

func TestHostTokenJoin(t *testing.T) {
	_, ts := setupTestServer(t)
	creds := createTestSession(t, ts)

	conn := wsDial(t, ts)
	sendCmd(t, conn, protocol.CmdHostJoinSession, map[string]interface{}{
		"code":      creds.Code,
		"hostToken": creds.HostToken,
	})
	waitEvent(t, conn, protocol.EventSessionState)
}

func TestJoinUnknownSession(t *testing.T) {
	_, ts := setupTestServer(t)

	conn := wsDial(t, ts)
	sendCmd(t, conn, protocol.CmdJoinSession, map[string]interface{}{
		"code": "NOPE99",
		"name": "alice",
	})
	waitError(t, conn, protocol.ErrSessionNotFound)
}

func TestDuplicateNameRejected(t *testing.T) {
	_, ts := setupTestServer(t)
	creds := createTestSession(t, ts)

	joinPlayer(t, ts, creds.Code, "alice", "fp-1")

	conn := wsDial(t, ts)
	sendCmd(t, conn, protocol.CmdJoinSession, map[string]interface{}{
		"code": creds.Code,
		"name": "ALICE", // same name after normalization
	})
	waitError(t, conn, protocol.ErrNameTaken)
}

func TestCommandBeforeJoinRejected(t *testing.T) {
	_, ts := setupTestServer(t)

	conn := wsDial(t, ts)
	sendCmd(t, conn, protocol.CmdStartItem, map[string]interface{}{"itemIndex": 0})
	waitError(t, conn, protocol.ErrNotJoined)
}

func TestPlayerCannotDriveTheQuiz(t *testing.T) {
	_, ts := setupTestServer(t)
	creds := createTestSession(t, ts)

	conn, _ := joinPlayer(t, ts, creds.Code, "alice", "fp-1")
	sendCmd(t, conn, protocol.CmdStartItem, map[string]interface{}{"itemIndex": 0})
	waitError(t, conn, protocol.ErrNotHost)
}

func TestRejoinTokenSingleUse(t *testing.T) {
	_, ts := setupTestServer(t)
	creds := createTestSession(t, ts)

	host := joinHost(t, ts, creds)
	p1, p1ID := joinPlayer(t, ts, creds.Code, "alice", "fp-alice")

	sendCmd(t, host, protocol.CmdGenerateRejoinToken, map[string]interface{}{
		"playerId": p1ID,
	})
	msg := waitEvent(t, host, protocol.EventRejoinTokenGenerated)
	var tok protocol.RejoinTokenGeneratedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &tok))
	require.NotEmpty(t, tok.Token)
	assert.Equal(t, p1ID, tok.PlayerID)

	// the token survives the original socket dying
	p1.Close()

	fresh := wsDial(t, ts)
	sendCmd(t, fresh, protocol.CmdPlayerRejoin, map[string]interface{}{
		"token": tok.Token,
	})
	state := waitEvent(t, fresh, protocol.EventSessionState)
	var payload protocol.SessionStatePayload
	require.NoError(t, json.Unmarshal(state.Payload, &payload))
	require.NotNil(t, payload.You)
	assert.Equal(t, p1ID, payload.You.ID, "same player identity after rejoin")

	// second redemption fails, the token was consumed
	again := wsDial(t, ts)
	sendCmd(t, again, protocol.CmdPlayerRejoin, map[string]interface{}{
		"token": tok.Token,
	})
	waitError(t, again, protocol.ErrRejoinTokenExpired)
}

func TestRejoinLookupConsumesToken(t *testing.T) {
	_, ts := setupTestServer(t)
	creds := createTestSession(t, ts)

	host := joinHost(t, ts, creds)
	_, p1ID := joinPlayer(t, ts, creds.Code, "alice", "fp-alice")

	sendCmd(t, host, protocol.CmdGenerateRejoinToken, map[string]interface{}{
		"playerId": p1ID,
	})
	msg := waitEvent(t, host, protocol.EventRejoinTokenGenerated)
	var tok protocol.RejoinTokenGeneratedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &tok))

	resp, err := http.Get(ts.URL + "/api/sessions/rejoin-token/" + tok.Token)
	require.NoError(t, err)
	defer resp.Body.Close()
	require.Equal(t, http.StatusOK, resp.StatusCode)

	var body struct {
		SessionCode string `json:"sessionCode"`
		PlayerID    string `json:"playerId"`
		PlayerName  string `json:"playerName"`
		Avatar      string `json:"avatar"`
	}
	require.NoError(t, json.NewDecoder(resp.Body).Decode(&body))
	assert.Equal(t, creds.Code, body.SessionCode)
	assert.Equal(t, p1ID, body.PlayerID)
	assert.Equal(t, "alice", body.PlayerName)

	// the lookup consumed the token
	resp, err = http.Get(ts.URL + "/api/sessions/rejoin-token/" + tok.Token)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusNotFound, resp.StatusCode)
}

func TestDeviceRecognizedOnRejoin(t *testing.T) {
	_, ts := setupTestServer(t)
	creds := createTestSession(t, ts)

	_, p1ID := joinPlayer(t, ts, creds.Code, "alice", "fp-shared")

	conn := wsDial(t, ts)
	sendCmd(t, conn, protocol.CmdJoinSession, map[string]interface{}{
		"code":              creds.Code,
		"name":              "whoever",
		"deviceFingerprint": "fp-shared",
	})
	msg := waitEvent(t, conn, protocol.EventDeviceRecognized)
	var rec protocol.DeviceRecognizedPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &rec))
	assert.Equal(t, p1ID, rec.PlayerID)
	assert.Equal(t, "alice", rec.Name)

	// the client decides to continue as the recognized player
	sendCmd(t, conn, protocol.CmdRejoinAsExisting, map[string]interface{}{
		"code":              creds.Code,
		"playerId":          rec.PlayerID,
		"deviceFingerprint": "fp-shared",
	})
	state := waitEvent(t, conn, protocol.EventSessionState)
	var payload protocol.SessionStatePayload
	require.NoError(t, json.Unmarshal(state.Payload, &payload))
	require.NotNil(t, payload.You)
	assert.Equal(t, p1ID, payload.You.ID)
}

func TestPingPong(t *testing.T) {
	_, ts := setupTestServer(t)

	conn := wsDial(t, ts)
	sendCmd(t, conn, protocol.CmdPing, map[string]interface{}{"nonce": 42})
	msg := waitEvent(t, conn, protocol.EventPong)
	var pong protocol.PongPayload
	require.NoError(t, json.Unmarshal(msg.Payload, &pong))
	assert.Equal(t, int64(42), pong.Nonce)
}

func TestMalformedFramesAnswered(t *testing.T) {
	_, ts := setupTestServer(t)

	conn := wsDial(t, ts)
	require.NoError(t, conn.WriteMessage(websocket.TextMessage, []byte("not json")))
	waitError(t, conn, protocol.ErrPayloadInvalid)
}

func TestUnknownCommandAnswered(t *testing.T) {
	_, ts := setupTestServer(t)
	creds := createTestSession(t, ts)

	conn, _ := joinPlayer(t, ts, creds.Code, "alice", "fp-1")
	sendCmd(t, conn, protocol.CommandType("MAKE_ME_A_SANDWICH"), nil)
	waitError(t, conn, protocol.ErrUnknownCommand)
}

func TestArchiveEndpoint(t *testing.T) {
	_, ts := setupTestServer(t)
	creds := createTestSession(t, ts)

	req, _ := http.NewRequest("POST", ts.URL+"/api/internal/sessions/"+creds.Code+"/archive", nil)
	req.Header.Set("X-Platform-Secret", testPlatformSecret)
	resp, err := http.DefaultClient.Do(req)
	require.NoError(t, err)
	defer resp.Body.Close()
	assert.Equal(t, http.StatusOK, resp.StatusCode)

	// archived sessions refuse new joins
	conn := wsDial(t, ts)
	sendCmd(t, conn, protocol.CmdJoinSession, map[string]interface{}{
		"code": creds.Code,
		"name": "late",
	})
	waitError(t, conn, protocol.ErrSessionArchived)
}
