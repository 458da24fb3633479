package session

import (
	"encoding/json"
	"strings"
	"sync"
	"time"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/answer"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/leaderboard"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/protocol"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/quiz"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

// Player is one participant of a session. Leaving or losing the socket
// never deletes a player; score and answers survive for rejoin.
type Player struct {
	ID                string
	Name              string
	Avatar            string
	Score             int
	CurrentStreak     int
	Connected         bool
	Quality           types.ConnectionQuality
	JoinedAt          time.Time
	DeviceFingerprint string
	Kicked            bool
	// LeftAnnounced is set once PLAYER_LEFT went out after the
	// disconnect grace, so a later rebind knows to announce the return.
	LeftAnnounced bool
}

// Answer is a committed submission. At most one exists per item and
// player; only ADJUST_SCORE may touch it afterwards.
type Answer struct {
	ItemID           string
	PlayerID         string
	Raw              json.RawMessage
	Coerced          interface{}
	IsCorrect        *bool
	ScorePercentage  int
	Score            int
	TimeSpentMs      int64
	SubmittedAt      time.Time
	ManuallyAdjusted bool
	// StreakBefore allows exact rollback when the item is cancelled
	StreakBefore int
}

// ItemRun is the live state of one item's pass through the machine.
// Starting a cancelled item again replaces its run.
type ItemRun struct {
	ItemID    string
	Phase     types.ItemPhase
	StartedAt time.Time
	Deadline  time.Time
	// Gen guards the auto-lock timer: a late callback whose generation
	// does not match is from a cancelled or superseded run.
	Gen         int
	RemainingMs int64 // frozen time budget while paused
	Answers     map[string]*Answer
	Submissions []string // player ids in submission order
	Podium      []answer.PodiumBonus
	// reveal is cached on first REVEAL_ANSWERS; repeats re-emit it
	// verbatim, version included.
	reveal []protocol.Directed
}

// State is the authoritative in-memory session. All mutation happens on
// the owning supervisor worker; the mutex exists for read paths like the
// HTTP bootstrap snapshot.
type State struct {
	mu sync.RWMutex

	ID          string
	Code        string
	Status      types.SessionStatus
	Quiz        *quiz.Quiz
	QuizJSON    []byte // raw snapshot, checkpointed verbatim
	HostKeyHash string

	CurrentItemIndex int
	Version          uint64
	Players          map[string]*Player
	Runs             map[string]*ItemRun
	CreatedAt        time.Time
	EndedAt          time.Time

	PersistenceDegraded bool
	Quarantined         bool

	// genCounter hands out run generations; it never repeats within a
	// session, so a stale timer callback can always be told apart.
	genCounter int

	nameIndex        map[string]string // normalized name -> player id
	fingerprintIndex map[string]string // device fingerprint -> player id

	pending []checkpoint // mutations awaiting the store's writer
}

// NewState builds a fresh session around a validated quiz snapshot
func NewState(id, code string, q *quiz.Quiz, quizJSON []byte, hostKeyHash string, now time.Time) *State {
	return &State{
		ID:               id,
		Code:             code,
		Status:           types.SessionStatusLobby,
		Quiz:             q,
		QuizJSON:         quizJSON,
		HostKeyHash:      hostKeyHash,
		Players:          make(map[string]*Player),
		Runs:             make(map[string]*ItemRun),
		CreatedAt:        now,
		nameIndex:        make(map[string]string),
		fingerprintIndex: make(map[string]string),
	}
}

// normalizeName is the uniqueness key for display names
func normalizeName(name string) string {
	return answer.Normalize(name)
}

// bump registers an externally visible mutation. Every event emitted for
// it carries the new version.
func (s *State) bump() uint64 {
	s.Version++
	return s.Version
}

// CurrentItem returns the item the session points at
func (s *State) CurrentItem() *quiz.Item {
	if s.CurrentItemIndex < 0 || s.CurrentItemIndex >= len(s.Quiz.Items) {
		return nil
	}
	return &s.Quiz.Items[s.CurrentItemIndex]
}

// CurrentRun returns the run of the current item, if any
func (s *State) CurrentRun() *ItemRun {
	item := s.CurrentItem()
	if item == nil {
		return nil
	}
	return s.Runs[item.ID]
}

// currentPhase collapses the missing-run case to IDLE
func (s *State) currentPhase() types.ItemPhase {
	if run := s.CurrentRun(); run != nil {
		return run.Phase
	}
	return types.ItemPhaseIdle
}

// PlayerByName resolves a display name regardless of case and spacing
func (s *State) PlayerByName(name string) (*Player, bool) {
	id, ok := s.nameIndex[normalizeName(name)]
	if !ok {
		return nil, false
	}
	p, ok := s.Players[id]
	return p, ok
}

// PlayerByFingerprint resolves a device fingerprint to its player
func (s *State) PlayerByFingerprint(fp string) (*Player, bool) {
	if strings.TrimSpace(fp) == "" {
		return nil, false
	}
	id, ok := s.fingerprintIndex[fp]
	if !ok {
		return nil, false
	}
	p, ok := s.Players[id]
	if !ok || p.Kicked {
		return nil, false
	}
	return p, true
}

// activePlayers returns everyone still part of the game
func (s *State) activePlayers() []*Player {
	out := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if !p.Kicked {
			out = append(out, p)
		}
	}
	return out
}

// connectedCount counts non-kicked players with a live socket
func (s *State) connectedCount() int {
	n := 0
	for _, p := range s.Players {
		if !p.Kicked && p.Connected {
			n++
		}
	}
	return n
}

// Leaderboard ranks the non-kicked players
func (s *State) Leaderboard() []leaderboard.Entry {
	players := s.activePlayers()
	rows := make([]leaderboard.Player, len(players))
	for i, p := range players {
		rows[i] = leaderboard.Player{
			ID:            p.ID,
			Name:          p.Name,
			Avatar:        p.Avatar,
			Score:         p.Score,
			CurrentStreak: p.CurrentStreak,
			Connected:     p.Connected,
		}
	}
	return leaderboard.Compute(rows)
}

// playerView renders one player for the wire
func playerView(p *Player) protocol.PlayerView {
	return protocol.PlayerView{
		ID:            p.ID,
		Name:          p.Name,
		Avatar:        p.Avatar,
		Score:         p.Score,
		CurrentStreak: p.CurrentStreak,
		Connected:     p.Connected,
		Quality:       p.Quality,
	}
}

// playerViews renders the non-kicked players sorted by join time
func (s *State) playerViews() []protocol.PlayerView {
	players := s.activePlayers()
	views := make([]protocol.PlayerView, 0, len(players))
	for _, p := range players {
		views = append(views, playerView(p))
	}
	// map order is random; sort for stable frames
	for i := 1; i < len(views); i++ {
		for j := i; j > 0 && viewBefore(views[j], views[j-1]); j-- {
			views[j], views[j-1] = views[j-1], views[j]
		}
	}
	return views
}

func viewBefore(a, b protocol.PlayerView) bool {
	return a.Name < b.Name
}

// statePayload builds the SESSION_STATE snapshot. you may be empty.
func (s *State) statePayload(youID string) protocol.SessionStatePayload {
	payload := protocol.SessionStatePayload{
		Code:                s.Code,
		Status:              s.Status,
		QuizTitle:           s.Quiz.Title,
		CurrentItemIndex:    s.CurrentItemIndex,
		CurrentItemPhase:    s.currentPhase(),
		ItemCount:           len(s.Quiz.Items),
		Players:             s.playerViews(),
		Leaderboard:         s.Leaderboard(),
		PersistenceDegraded: s.PersistenceDegraded,
	}
	if p, ok := s.Players[youID]; ok {
		v := playerView(p)
		payload.You = &v
	}
	return payload
}

// StatePayload is the read-side snapshot used by the HTTP bootstrap
func (s *State) StatePayload() protocol.SessionStatePayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statePayload("")
}

// CurrentVersion reads the state version for event stamping outside a
// mutation, like direct error replies
func (s *State) CurrentVersion() uint64 {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Version
}

// StatusNow reads the lifecycle status
func (s *State) StatusNow() types.SessionStatus {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.Status
}

// NextVersion bumps the version for an externally visible change that
// lives outside the arena, like a minigame tick frame
func (s *State) NextVersion() uint64 {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.bump()
}

// StateFor renders the SESSION_STATE snapshot addressed to one player
func (s *State) StateFor(playerID string) protocol.SessionStatePayload {
	s.mu.RLock()
	defer s.mu.RUnlock()
	return s.statePayload(playerID)
}

// CodeAlphabet is the session code character set
const CodeAlphabet = "ABCDEFGHIJKLMNOPQRSTUVWXYZ0123456789"

// CodeLength is the fixed session code length
const CodeLength = 6
