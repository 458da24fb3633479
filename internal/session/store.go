package session

import (
	"crypto/rand"
	"encoding/json"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/cache"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/database"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/logging"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/protocol"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/quiz"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

// StoreConfig tunes the session store. Zero values take the defaults.
type StoreConfig struct {
	PersistFailureThreshold int           // consecutive checkpoint failures before degraded
	EndedTTL                time.Duration // how long ENDED sessions linger for late readouts
	LobbyTTL                time.Duration // how long an empty LOBBY may sit idle
	CheckpointBuffer        int           // per-session checkpoint channel capacity
	CodeReserveTTL          time.Duration // cache reservation lifetime for live codes
}

func (c StoreConfig) withDefaults() StoreConfig {
	if c.PersistFailureThreshold <= 0 {
		c.PersistFailureThreshold = 8
	}
	if c.EndedTTL <= 0 {
		c.EndedTTL = 30 * time.Minute
	}
	if c.LobbyTTL <= 0 {
		c.LobbyTTL = 2 * time.Hour
	}
	if c.CheckpointBuffer <= 0 {
		c.CheckpointBuffer = 256
	}
	if c.CodeReserveTTL <= 0 {
		c.CodeReserveTTL = 24 * time.Hour
	}
	return c
}

// managed pairs a live session with its checkpoint writer
type managed struct {
	state *State
	ckpt  chan checkpoint
	done  chan struct{}
	drops int
}

// Store holds the live sessions. Gameplay mutation happens on each
// session's worker; the store lock only guards the map itself.
type Store struct {
	mu       sync.RWMutex
	sessions map[string]*managed

	db    database.Store
	cache cache.Cache
	cfg   StoreConfig
	now   func() time.Time
}

// NewStore creates a session store over the durable and cache layers
func NewStore(db database.Store, c cache.Cache, cfg StoreConfig) *Store {
	return &Store{
		sessions: make(map[string]*managed),
		db:       db,
		cache:    c,
		cfg:      cfg.withDefaults(),
		now:      func() time.Time { return time.Now().UTC() },
	}
}

// SetNow injects a clock for tests
func (st *Store) SetNow(now func() time.Time) {
	st.now = now
}

// Create mints a new session around a quiz snapshot. The code is unique
// among non-ended sessions and additionally reserved through the cache
// so concurrent replicas never hand out the same live code.
func (st *Store) Create(quizJSON []byte, hostKeyHash string) (*State, error) {
	q, err := quiz.Parse(quizJSON)
	if err != nil {
		return nil, err
	}

	code, err := st.mintCode()
	if err != nil {
		return nil, err
	}

	state := NewState(uuid.New().String(), code, q, quizJSON, hostKeyHash, st.now())

	st.mu.Lock()
	m := &managed{
		state: state,
		ckpt:  make(chan checkpoint, st.cfg.CheckpointBuffer),
		done:  make(chan struct{}),
	}
	st.sessions[code] = m
	st.mu.Unlock()
	go st.writer(m)

	state.mu.Lock()
	state.checkpointSession()
	state.mu.Unlock()
	st.Flush(state)

	logging.LogSessionEvent("session_created", code, map[string]interface{}{
		"session_id": state.ID,
		"quiz_id":    q.ID,
		"items":      len(q.Items),
	})
	return state, nil
}

// mintCode draws codes until one is free. Collisions are rare with 36^6
// codes; the retry cap only guards against a wedged cache.
func (st *Store) mintCode() (string, error) {
	for attempt := 0; attempt < 50; attempt++ {
		code, err := randomCode()
		if err != nil {
			return "", err
		}
		if st.codeLive(code) {
			continue
		}
		reserved, err := st.cache.ReserveCode(code, st.cfg.CodeReserveTTL)
		if err != nil {
			return "", fmt.Errorf("failed to reserve session code: %v", err)
		}
		if reserved {
			return code, nil
		}
	}
	return "", fmt.Errorf("failed to mint a unique session code")
}

// codeLive reports whether the code belongs to a non-ended session here
func (st *Store) codeLive(code string) bool {
	st.mu.RLock()
	defer st.mu.RUnlock()
	m, ok := st.sessions[code]
	if !ok {
		return false
	}
	m.state.mu.RLock()
	defer m.state.mu.RUnlock()
	return !m.state.Status.IsTerminal()
}

// randomCode draws 6 characters from A-Z0-9 via crypto/rand. Bytes past
// the largest multiple of the alphabet are rejected so every character
// is equally likely.
func randomCode() (string, error) {
	limit := byte(256 - 256%len(CodeAlphabet))
	out := make([]byte, 0, CodeLength)
	buf := make([]byte, 2*CodeLength)
	for len(out) < CodeLength {
		if _, err := rand.Read(buf); err != nil {
			return "", fmt.Errorf("failed to generate session code: %v", err)
		}
		for _, b := range buf {
			if b >= limit {
				continue
			}
			out = append(out, CodeAlphabet[int(b)%len(CodeAlphabet)])
			if len(out) == CodeLength {
				break
			}
		}
	}
	return string(out), nil
}

// Get returns a session already in memory
func (st *Store) Get(code string) (*State, bool) {
	st.mu.RLock()
	defer st.mu.RUnlock()
	m, ok := st.sessions[code]
	if !ok {
		return nil, false
	}
	return m.state, true
}

// GetOrLoad returns the live session, rehydrating it from the durable
// store on a cold start
func (st *Store) GetOrLoad(code string) (*State, error) {
	if state, ok := st.Get(code); ok {
		return state, nil
	}

	rec, err := st.db.GetSessionByCode(code)
	if err != nil {
		if errors.Is(err, database.ErrNotFound) {
			return nil, errf(protocol.ErrSessionNotFound, "session %s not found", code)
		}
		return nil, fmt.Errorf("failed to load session %s: %v", code, err)
	}

	state, err := st.rehydrate(rec)
	if err != nil {
		return nil, err
	}

	st.mu.Lock()
	// A concurrent load may have won the race; keep the first one.
	if existing, ok := st.sessions[code]; ok {
		st.mu.Unlock()
		return existing.state, nil
	}
	m := &managed{
		state: state,
		ckpt:  make(chan checkpoint, st.cfg.CheckpointBuffer),
		done:  make(chan struct{}),
	}
	st.sessions[code] = m
	st.mu.Unlock()
	go st.writer(m)

	logging.LogSessionEvent("session_rehydrated", code, map[string]interface{}{
		"session_id": state.ID,
		"status":     state.Status.String(),
		"players":    len(state.Players),
	})
	return state, nil
}

// rehydrate rebuilds the in-memory state from its durable rows. Players
// come back disconnected; committed answers come back as revealed runs
// so their history survives without re-applying scores.
func (st *Store) rehydrate(rec *database.SessionRecord) (*State, error) {
	q, err := quiz.Parse(rec.QuizSnapshot)
	if err != nil {
		return nil, fmt.Errorf("failed to parse quiz snapshot of session %s: %v", rec.Code, err)
	}
	status, err := types.ParseSessionStatus(rec.Status)
	if err != nil {
		return nil, fmt.Errorf("session %s: %v", rec.Code, err)
	}

	state := NewState(rec.ID, rec.Code, q, rec.QuizSnapshot, rec.HostKeyHash, rec.CreatedAt)
	state.Status = status
	state.CurrentItemIndex = rec.CurrentItemIndex
	state.Version = rec.StateVersion
	if rec.EndedAt != nil {
		state.EndedAt = *rec.EndedAt
	}

	players, err := st.db.GetSessionPlayers(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load players of session %s: %v", rec.Code, err)
	}
	for _, pr := range players {
		p := &Player{
			ID:                pr.ID,
			Name:              pr.Name,
			Avatar:            pr.Avatar,
			Score:             pr.Score,
			CurrentStreak:     pr.Streak,
			Connected:         false,
			Quality:           types.QualityOffline,
			JoinedAt:          pr.JoinedAt,
			DeviceFingerprint: pr.DeviceFingerprint,
			Kicked:            pr.Kicked,
			LeftAnnounced:     true,
		}
		state.Players[p.ID] = p
		if !p.Kicked {
			state.nameIndex[normalizeName(p.Name)] = p.ID
			if p.DeviceFingerprint != "" {
				state.fingerprintIndex[p.DeviceFingerprint] = p.ID
			}
		}
	}

	answers, err := st.db.GetSessionAnswers(rec.ID)
	if err != nil {
		return nil, fmt.Errorf("failed to load answers of session %s: %v", rec.Code, err)
	}
	for _, ar := range answers {
		run := state.Runs[ar.ItemID]
		if run == nil {
			run = &ItemRun{
				ItemID:  ar.ItemID,
				Phase:   types.ItemPhaseRevealed,
				Answers: make(map[string]*Answer),
			}
			state.Runs[ar.ItemID] = run
		}
		a := &Answer{
			ItemID:           ar.ItemID,
			PlayerID:         ar.PlayerID,
			Raw:              ar.Raw,
			IsCorrect:        ar.IsCorrect,
			ScorePercentage:  ar.ScorePercentage,
			Score:            ar.Score,
			TimeSpentMs:      ar.TimeSpentMs,
			SubmittedAt:      ar.SubmittedAt,
			ManuallyAdjusted: ar.ManuallyAdjusted,
		}
		if ar.Coerced != "" {
			var coerced interface{}
			if err := json.Unmarshal([]byte(ar.Coerced), &coerced); err == nil {
				a.Coerced = coerced
			}
		}
		run.Answers[a.PlayerID] = a
		run.Submissions = append(run.Submissions, a.PlayerID)
	}

	return state, nil
}

// Flush moves a session's queued checkpoints onto the writer channel.
// Fire-and-forget: a full channel drops the record and the session keeps
// playing from memory.
func (st *Store) Flush(state *State) {
	st.mu.RLock()
	m := st.sessions[state.Code]
	st.mu.RUnlock()
	if m == nil {
		return
	}
	for _, c := range state.takePending() {
		select {
		case m.ckpt <- c:
		default:
			m.drops++
			logging.Warn("checkpoint queue full, dropping record", map[string]interface{}{
				"session_code": state.Code,
				"drops":        m.drops,
			})
		}
	}
}

// writer drains one session's checkpoint channel into the durable store,
// in order, with a short retry per record. Past the failure threshold
// the session is flagged degraded and play continues from memory.
func (st *Store) writer(m *managed) {
	defer close(m.done)
	failures := 0
	for c := range m.ckpt {
		if err := st.applyWithRetry(c); err != nil {
			failures++
			logging.Error("checkpoint write failed", map[string]interface{}{
				"session_code": m.state.Code,
				"failures":     failures,
				"error":        err.Error(),
			})
			if failures == st.cfg.PersistFailureThreshold {
				m.state.mu.Lock()
				m.state.PersistenceDegraded = true
				m.state.mu.Unlock()
				logging.LogSessionEvent("persistence_degraded", m.state.Code, map[string]interface{}{
					"failures": failures,
				})
			}
			continue
		}
		failures = 0
	}
}

func (st *Store) applyWithRetry(c checkpoint) error {
	var err error
	backoff := 100 * time.Millisecond
	for attempt := 0; attempt < 3; attempt++ {
		if err = c.apply(st.db); err == nil {
			return nil
		}
		time.Sleep(backoff)
		backoff *= 2
	}
	return err
}

// Remove drops a session from memory and frees its code. The writer
// finishes the remaining checkpoints in the background.
func (st *Store) Remove(code string) {
	st.mu.Lock()
	m, ok := st.sessions[code]
	if ok {
		delete(st.sessions, code)
	}
	st.mu.Unlock()
	if !ok {
		return
	}

	st.Flush(m.state)
	close(m.ckpt)
	if err := st.cache.ReleaseCode(code); err != nil {
		logging.Warn("failed to release session code", map[string]interface{}{
			"session_code": code,
			"error":        err.Error(),
		})
	}
	logging.LogSessionEvent("session_removed", code, nil)
}

// Codes lists the sessions currently in memory
func (st *Store) Codes() []string {
	st.mu.RLock()
	defer st.mu.RUnlock()
	codes := make([]string, 0, len(st.sessions))
	for code := range st.sessions {
		codes = append(codes, code)
	}
	return codes
}

// CountByStatus tallies the live sessions per lifecycle status
func (st *Store) CountByStatus() map[types.SessionStatus]int {
	st.mu.RLock()
	defer st.mu.RUnlock()
	counts := make(map[types.SessionStatus]int)
	for _, m := range st.sessions {
		m.state.mu.RLock()
		counts[m.state.Status]++
		m.state.mu.RUnlock()
	}
	return counts
}

// Cleanup removes sessions nobody will come back for: ended ones past
// their readout window and lobbies that never started. Returns how many
// were removed.
func (st *Store) Cleanup() int {
	now := st.now()

	st.mu.RLock()
	var stale []string
	for code, m := range st.sessions {
		m.state.mu.RLock()
		switch {
		case m.state.Status.IsTerminal() && !m.state.EndedAt.IsZero() && now.Sub(m.state.EndedAt) > st.cfg.EndedTTL:
			stale = append(stale, code)
		case m.state.Status == types.SessionStatusLobby && len(m.state.Players) == 0 && now.Sub(m.state.CreatedAt) > st.cfg.LobbyTTL:
			stale = append(stale, code)
		}
		m.state.mu.RUnlock()
	}
	st.mu.RUnlock()

	for _, code := range stale {
		st.Remove(code)
	}
	return len(stale)
}

// Close flushes every session and waits for the writers to finish
func (st *Store) Close() {
	st.mu.Lock()
	sessions := st.sessions
	st.sessions = make(map[string]*managed)
	st.mu.Unlock()

	for _, m := range sessions {
		for _, c := range m.state.takePending() {
			select {
			case m.ckpt <- c:
			default:
			}
		}
		close(m.ckpt)
	}
	for _, m := range sessions {
		<-m.done
	}
}
