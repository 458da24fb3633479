package session

import (
	"encoding/json"
	"math"
	"strings"
	"time"
	"unicode/utf8"

	"github.com/google/uuid"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/answer"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/database"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/minigame"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/protocol"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/quiz"
	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/types"
)

// MaxNameLength bounds player display names
const MaxNameLength = 50

// event stamps an outbound event with the current state version
func (s *State) event(t protocol.EventType, payload interface{}) protocol.Event {
	return protocol.NewEvent(t, payload, s.Version)
}

// guardMutable rejects commands on sessions that can no longer change
func (s *State) guardMutable() error {
	switch {
	case s.Quarantined:
		return errf(protocol.ErrSessionQuarantined, "session %s is quarantined", s.Code)
	case s.Status == types.SessionStatusEnded:
		return errf(protocol.ErrSessionEnded, "session %s has ended", s.Code)
	case s.Status == types.SessionStatusArchived:
		return errf(protocol.ErrSessionArchived, "session %s is archived", s.Code)
	}
	return nil
}

// Join creates a new player. The returned events carry the join
// broadcast and the newcomer's state snapshot.
func (s *State) Join(name, avatar, fingerprint string, now time.Time) (*Player, []protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, nil, err
	}

	name = strings.TrimSpace(name)
	if n := utf8.RuneCountInString(name); n == 0 || n > MaxNameLength {
		return nil, nil, errf(protocol.ErrNameInvalid, "name must be 1-%d characters", MaxNameLength)
	}
	if _, taken := s.nameIndex[normalizeName(name)]; taken {
		return nil, nil, errf(protocol.ErrNameTaken, "name %q is already taken", name)
	}
	if len(s.activePlayers()) >= s.Quiz.Settings.MaxPlayers {
		return nil, nil, errf(protocol.ErrSessionFull, "session %s is full", s.Code)
	}

	p := &Player{
		ID:                uuid.New().String(),
		Name:              name,
		Avatar:            avatar,
		Connected:         true,
		Quality:           types.QualityGood,
		JoinedAt:          now,
		DeviceFingerprint: strings.TrimSpace(fingerprint),
	}
	s.Players[p.ID] = p
	s.nameIndex[normalizeName(name)] = p.ID
	if p.DeviceFingerprint != "" {
		s.fingerprintIndex[p.DeviceFingerprint] = p.ID
	}

	s.bump()
	events := []protocol.Directed{
		protocol.ToAll(s.event(protocol.EventPlayerJoined, protocol.PlayerJoinedPayload{
			Player:      playerView(p),
			PlayerCount: len(s.activePlayers()),
		})),
		protocol.ToPlayer(p.ID, s.event(protocol.EventSessionState, s.statePayload(p.ID))),
	}

	s.checkpointPlayer(p)
	s.checkpointSession()
	return p, events, nil
}

// Rebind reconnects an existing player after a rejoin, a recognized
// device or a socket drop inside the grace window. A return inside the
// grace is silent; one after PLAYER_LEFT announces the player again.
func (s *State) Rebind(playerID string, now time.Time) (*Player, []protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, nil, err
	}
	p, ok := s.Players[playerID]
	if !ok || p.Kicked {
		return nil, nil, errf(protocol.ErrPlayerNotFound, "player %s is not part of session %s", playerID, s.Code)
	}

	announce := p.LeftAnnounced
	p.Connected = true
	p.Quality = types.QualityGood
	p.LeftAnnounced = false

	s.bump()
	var events []protocol.Directed
	if announce {
		events = append(events, protocol.ToAll(s.event(protocol.EventPlayerJoined, protocol.PlayerJoinedPayload{
			Player:      playerView(p),
			PlayerCount: len(s.activePlayers()),
		})))
	}
	events = append(events,
		protocol.ToPlayer(p.ID, s.event(protocol.EventSessionState, s.statePayload(p.ID))),
		protocol.ToHost(s.event(protocol.EventConnectionStatus, protocol.ConnectionStatusPayload{
			PlayerID: p.ID,
			Quality:  p.Quality,
		})),
	)

	s.checkpointPlayer(p)
	return p, events, nil
}

// Disconnect marks a player's socket gone. The caller starts the grace
// timer; nothing is broadcast until it elapses.
func (s *State) Disconnect(playerID string, now time.Time) []protocol.Directed {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.Players[playerID]
	if !ok || p.Kicked || !p.Connected {
		return nil
	}
	p.Connected = false
	p.Quality = types.QualityOffline

	s.bump()
	s.checkpointPlayer(p)
	return []protocol.Directed{
		protocol.ToHost(s.event(protocol.EventConnectionStatus, protocol.ConnectionStatusPayload{
			PlayerID: p.ID,
			Quality:  p.Quality,
		})),
	}
}

// AnnounceLeft broadcasts PLAYER_LEFT once the disconnect grace passed
// without a rebind. Score and answers stay; leaving never deletes them.
func (s *State) AnnounceLeft(playerID string, now time.Time) []protocol.Directed {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.Players[playerID]
	if !ok || p.Kicked || p.Connected || p.LeftAnnounced {
		return nil
	}
	p.LeftAnnounced = true

	s.bump()
	return []protocol.Directed{
		protocol.ToAll(s.event(protocol.EventPlayerLeft, protocol.PlayerLeftPayload{
			PlayerID:    p.ID,
			Name:        p.Name,
			Reason:      "DISCONNECTED",
			PlayerCount: s.connectedCount(),
		})),
	}
}

// SetQuality records the sweeper's verdict on a player's connection
func (s *State) SetQuality(playerID string, q types.ConnectionQuality) []protocol.Directed {
	s.mu.Lock()
	defer s.mu.Unlock()

	p, ok := s.Players[playerID]
	if !ok || p.Kicked || p.Quality == q {
		return nil
	}
	p.Quality = q

	s.bump()
	return []protocol.Directed{
		protocol.ToHost(s.event(protocol.EventConnectionStatus, protocol.ConnectionStatusPayload{
			PlayerID: p.ID,
			Quality:  q,
		})),
	}
}

// PlayerSnapshot copies a player for read paths outside the worker
func (s *State) PlayerSnapshot(playerID string) (Player, bool) {
	s.mu.RLock()
	defer s.mu.RUnlock()
	p, ok := s.Players[playerID]
	if !ok {
		return Player{}, false
	}
	return *p, true
}

// StartItem moves the session to an item and opens its run. The caller
// arms the auto-lock timer from the returned run's generation and
// deadline for question items.
func (s *State) StartItem(index int, now time.Time) (*ItemRun, []protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, nil, err
	}
	if s.Status == types.SessionStatusPaused {
		return nil, nil, errf(protocol.ErrWrongState, "session %s is paused", s.Code)
	}
	if index < 0 || index >= len(s.Quiz.Items) {
		return nil, nil, errf(protocol.ErrPayloadInvalid, "item index %d out of range", index)
	}
	if run := s.CurrentRun(); run != nil && (run.Phase == types.ItemPhaseActive || run.Phase == types.ItemPhaseLocked) {
		return nil, nil, errf(protocol.ErrWrongState, "item %s is still %s", run.ItemID, run.Phase)
	}

	item := &s.Quiz.Items[index]
	s.CurrentItemIndex = index
	s.Status = types.SessionStatusActive

	s.genCounter++
	run := &ItemRun{
		ItemID:    item.ID,
		Phase:     types.ItemPhaseActive,
		StartedAt: now,
		Gen:       s.genCounter,
		Answers:   make(map[string]*Answer),
	}
	s.Runs[item.ID] = run

	base := protocol.ItemStartedPayload{
		ItemID:    item.ID,
		ItemIndex: index,
		Kind:      item.Kind,
		StartedAt: now,
	}

	s.bump()
	var events []protocol.Directed
	switch item.Kind {
	case types.ItemKindQuestion:
		run.Deadline = now.Add(time.Duration(item.Question.TimerSeconds) * time.Second)
		base.Question = protocol.NewQuestionView(item.Question)
		base.TimerSeconds = item.Question.TimerSeconds
		events = append(events,
			protocol.ToPlayers(s.event(protocol.EventItemStarted, base)),
			protocol.ToHost(s.event(protocol.EventItemStarted, protocol.HostItemStartedPayload{
				ItemStartedPayload: base,
				FullQuestion:       item.Question,
			})),
		)

	case types.ItemKindMinigame:
		base.Minigame = item.Minigame
		events = append(events, protocol.ToAll(s.event(protocol.EventItemStarted, base)))

	case types.ItemKindScoreboard:
		run.Phase = types.ItemPhaseRevealed
		events = append(events,
			protocol.ToAll(s.event(protocol.EventItemStarted, base)),
			protocol.ToAll(s.event(protocol.EventLeaderboardUpdate, protocol.LeaderboardUpdatePayload{
				Entries: s.Leaderboard(),
			})),
		)

	case types.ItemKindBreak:
		run.Phase = types.ItemPhaseRevealed
		events = append(events, protocol.ToAll(s.event(protocol.EventItemStarted, base)))
	}

	s.checkpointSession()
	return run, events, nil
}

// SubmitAnswer judges and records a submission on the active question.
// Re-submissions before the lock overwrite the earlier record. The
// returned flag reports whether every connected player has now answered.
func (s *State) SubmitAnswer(playerID, itemID string, raw json.RawMessage, clientElapsedMs int64, now time.Time) ([]protocol.Directed, bool, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, false, err
	}
	if s.Status == types.SessionStatusPaused {
		return nil, false, errf(protocol.ErrWrongState, "session %s is paused", s.Code)
	}
	p, ok := s.Players[playerID]
	if !ok || p.Kicked {
		return nil, false, errf(protocol.ErrNotJoined, "player %s is not part of session %s", playerID, s.Code)
	}

	item := s.CurrentItem()
	run := s.CurrentRun()
	if item == nil || run == nil || item.ID != itemID {
		return nil, false, errf(protocol.ErrItemNotActive, "item %s is not the current item", itemID)
	}
	switch run.Phase {
	case types.ItemPhaseActive:
	case types.ItemPhaseLocked, types.ItemPhaseRevealed:
		return nil, false, errf(protocol.ErrAnswerAfterLock, "item %s is locked", itemID)
	default:
		return nil, false, errf(protocol.ErrItemNotActive, "item %s is not active", itemID)
	}
	if item.Kind != types.ItemKindQuestion {
		return nil, false, errf(protocol.ErrItemNotActive, "item %s takes no answers", itemID)
	}

	timeSpent := now.Sub(run.StartedAt).Milliseconds()
	if timeSpent < 0 {
		timeSpent = 0
	}
	// Client-reported elapsed is accepted only when it cannot beat the
	// server measurement.
	if clientElapsedMs > 0 && clientElapsedMs <= timeSpent {
		timeSpent = clientElapsedMs
	}

	res, err := answer.Validate(item.Question, s.Quiz.Settings.ScoringContext(), raw, p.CurrentStreak)
	if err != nil {
		// A submission that cannot be coerced still counts as answered,
		// with a zero score, so the answer counts stay consistent.
		res = answer.Result{ScorePercentage: 0, Score: 0, NextStreak: 0}
		if item.Question.Type.ScoringMode() != types.ScoringNoScore {
			wrong := false
			res.IsCorrect = &wrong
		} else {
			res.NextStreak = p.CurrentStreak
		}
	}

	_, resubmission := run.Answers[playerID]
	a := &Answer{
		ItemID:          item.ID,
		PlayerID:        playerID,
		Raw:             raw,
		Coerced:         res.Coerced,
		IsCorrect:       res.IsCorrect,
		ScorePercentage: res.ScorePercentage,
		Score:           res.Score,
		TimeSpentMs:     timeSpent,
		SubmittedAt:     now,
	}
	run.Answers[playerID] = a
	if !resubmission {
		run.Submissions = append(run.Submissions, playerID)
	}

	s.bump()
	events := []protocol.Directed{
		protocol.ToPlayer(playerID, s.event(protocol.EventAnswerReceived, protocol.AnswerReceivedPayload{ItemID: item.ID})),
		protocol.ToHost(s.event(protocol.EventPlayerAnswered, protocol.PlayerAnsweredPayload{
			ItemID:      item.ID,
			PlayerID:    playerID,
			Name:        p.Name,
			TimeSpentMs: timeSpent,
		})),
		protocol.ToAll(s.event(protocol.EventAnswerCountUpdated, protocol.AnswerCountUpdatedPayload{
			ItemID:    item.ID,
			Answered:  len(run.Answers),
			Connected: s.connectedCount(),
		})),
	}

	s.checkpointAnswer(a)
	return events, s.allConnectedAnswered(run), nil
}

// allConnectedAnswered reports whether the item can auto-lock early
func (s *State) allConnectedAnswered(run *ItemRun) bool {
	connected := 0
	for _, p := range s.Players {
		if p.Kicked || !p.Connected {
			continue
		}
		connected++
		if _, ok := run.Answers[p.ID]; !ok {
			return false
		}
	}
	return connected > 0
}

// LockItem is the host path to ACTIVE -> LOCKED
func (s *State) LockItem(now time.Time) ([]protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, err
	}
	run := s.CurrentRun()
	if run == nil || run.Phase != types.ItemPhaseActive {
		return nil, errf(protocol.ErrWrongState, "no active item to lock")
	}
	item := s.CurrentItem()
	if item.Kind != types.ItemKindQuestion {
		return nil, errf(protocol.ErrWrongState, "item %s does not lock", item.ID)
	}
	return s.lock(run, item.Question), nil
}

// LockItemIfCurrent is the timer path. A callback whose generation does
// not match the live run is from a cancelled or superseded run and is
// dropped without effect.
func (s *State) LockItemIfCurrent(gen int, now time.Time) []protocol.Directed {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Quarantined || s.Status != types.SessionStatusActive {
		return nil
	}
	run := s.CurrentRun()
	item := s.CurrentItem()
	if run == nil || item == nil || run.Gen != gen || run.Phase != types.ItemPhaseActive {
		return nil
	}
	if item.Kind != types.ItemKindQuestion {
		return nil
	}
	return s.lock(run, item.Question)
}

// lock freezes the answer set, commits scores and streaks, runs the
// speed podium and emits the lock sequence. Mutex held by caller.
func (s *State) lock(run *ItemRun, question *quiz.Question) []protocol.Directed {
	run.Phase = types.ItemPhaseLocked
	run.Deadline = time.Time{}

	scored := question.Type.ScoringMode() != types.ScoringNoScore

	for _, pid := range run.Submissions {
		a := run.Answers[pid]
		p := s.Players[pid]
		if a == nil || p == nil {
			continue
		}
		a.StreakBefore = p.CurrentStreak
		p.Score += a.Score
		if scored {
			if a.ScorePercentage == 100 {
				p.CurrentStreak++
			} else {
				p.CurrentStreak = 0
			}
		}
	}

	if scored && s.Quiz.Settings.SpeedPodium.Enabled {
		locked := make([]answer.LockedAnswer, 0, len(run.Submissions))
		for _, pid := range run.Submissions {
			a := run.Answers[pid]
			p := s.Players[pid]
			if a == nil || p == nil || p.Kicked {
				continue
			}
			locked = append(locked, answer.LockedAnswer{
				PlayerID:        pid,
				PlayerName:      p.Name,
				Score:           a.Score,
				ScorePercentage: a.ScorePercentage,
				TimeSpentMs:     a.TimeSpentMs,
			})
		}
		run.Podium = answer.SpeedPodium(locked, s.Quiz.Settings.SpeedPodium)
		for _, b := range run.Podium {
			run.Answers[b.PlayerID].Score += b.Bonus
			s.Players[b.PlayerID].Score += b.Bonus
		}
	}

	if !s.scoreSumHolds() {
		s.Quarantined = true
	}

	s.bump()
	events := []protocol.Directed{
		protocol.ToAll(s.event(protocol.EventAnswerCountUpdated, protocol.AnswerCountUpdatedPayload{
			ItemID:    run.ItemID,
			Answered:  len(run.Answers),
			Connected: s.connectedCount(),
		})),
		protocol.ToAll(s.event(protocol.EventItemLocked, protocol.ItemLockedPayload{
			ItemID:      run.ItemID,
			AnswerCount: len(run.Answers),
		})),
	}
	if len(run.Podium) > 0 {
		events = append(events, protocol.ToAll(s.event(protocol.EventSpeedPodiumResults, protocol.SpeedPodiumPayload{
			ItemID: run.ItemID,
			Podium: run.Podium,
		})))
	}
	events = append(events, protocol.ToAll(s.event(protocol.EventLeaderboardUpdate, protocol.LeaderboardUpdatePayload{
		Entries: s.Leaderboard(),
	})))

	for _, pid := range run.Submissions {
		if a := run.Answers[pid]; a != nil {
			s.checkpointAnswer(a)
		}
	}
	for _, pid := range run.Submissions {
		if p := s.Players[pid]; p != nil {
			s.checkpointPlayer(p)
		}
	}
	s.checkpointSession()
	return events
}

// scoreSumHolds checks that player totals equal the committed answers
func (s *State) scoreSumHolds() bool {
	var players, answers int
	for _, p := range s.Players {
		players += p.Score
	}
	for _, run := range s.Runs {
		if run.Phase != types.ItemPhaseLocked && run.Phase != types.ItemPhaseRevealed {
			continue
		}
		for _, a := range run.Answers {
			answers += a.Score
		}
	}
	return players == answers
}

// RevealAnswers resolves the locked item. Repeats from REVEALED re-emit
// the first reveal verbatim, original state version included.
func (s *State) RevealAnswers(now time.Time) ([]protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, err
	}
	run := s.CurrentRun()
	item := s.CurrentItem()
	if run == nil || item == nil {
		return nil, errf(protocol.ErrWrongState, "no item to reveal")
	}
	if run.Phase == types.ItemPhaseRevealed && run.reveal != nil {
		return run.reveal, nil
	}
	if run.Phase != types.ItemPhaseLocked {
		return nil, errf(protocol.ErrWrongState, "item %s is %s, not LOCKED", item.ID, run.Phase)
	}
	if item.Kind != types.ItemKindQuestion {
		return nil, errf(protocol.ErrWrongState, "item %s has nothing to reveal", item.ID)
	}

	run.Phase = types.ItemPhaseRevealed
	s.bump()

	base := s.revealPayload(run, item.Question)
	events := []protocol.Directed{
		protocol.ToHost(s.event(protocol.EventRevealAnswers, base)),
		protocol.ToDisplays(s.event(protocol.EventRevealAnswers, base)),
	}
	for _, p := range s.activePlayers() {
		own := base
		if a := run.Answers[p.ID]; a != nil {
			v := answerResultView(a)
			own.YourResult = &v
		}
		events = append(events, protocol.ToPlayer(p.ID, s.event(protocol.EventRevealAnswers, own)))
	}
	run.reveal = events

	s.checkpointSession()
	return events, nil
}

// revealPayload builds the shared reveal body. Mutex held by caller.
func (s *State) revealPayload(run *ItemRun, question *quiz.Question) protocol.RevealAnswersPayload {
	payload := protocol.RevealAnswersPayload{
		ItemID:      run.ItemID,
		Leaderboard: s.Leaderboard(),
	}

	switch question.Type.AnswerFormat() {
	case types.FormatOptionID, types.FormatOptionIDs:
		payload.CorrectOptionIDs = question.CorrectOptionIDs()
		payload.Distribution = optionDistribution(run)
	case types.FormatBoolean:
		payload.CorrectBool = question.CorrectBool
		payload.Distribution = optionDistribution(run)
	case types.FormatText:
		payload.AcceptableAnswers = question.AcceptableAnswers
	case types.FormatNumber:
		payload.CorrectValue = question.CorrectValue
	case types.FormatOrderArray:
		payload.CanonicalOrder = question.CanonicalOrder()
	}

	// Every active player appears, answered or not
	for _, p := range s.activePlayers() {
		if a := run.Answers[p.ID]; a != nil {
			payload.Results = append(payload.Results, answerResultView(a))
		} else {
			payload.Results = append(payload.Results, protocol.AnswerResultView{PlayerID: p.ID})
		}
	}
	return payload
}

func answerResultView(a *Answer) protocol.AnswerResultView {
	return protocol.AnswerResultView{
		PlayerID:        a.PlayerID,
		IsCorrect:       a.IsCorrect,
		ScorePercentage: a.ScorePercentage,
		Score:           a.Score,
		TimeSpentMs:     a.TimeSpentMs,
		Submitted:       a.Coerced,
	}
}

// optionDistribution counts picks per option id (booleans count under
// "true" and "false")
func optionDistribution(run *ItemRun) map[string]int {
	dist := make(map[string]int)
	for _, a := range run.Answers {
		switch v := a.Coerced.(type) {
		case string:
			dist[v]++
		case []string:
			for _, id := range v {
				dist[id]++
			}
		case bool:
			if v {
				dist["true"]++
			} else {
				dist["false"]++
			}
		}
	}
	return dist
}

// CancelItem voids the current run. Committed scores and streaks are
// rolled back to their pre-item values and the answer rows tombstoned,
// so the item can be started again cleanly.
func (s *State) CancelItem(now time.Time) ([]protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, err
	}
	run := s.CurrentRun()
	if run == nil || run.Phase == types.ItemPhaseCancelled {
		return nil, errf(protocol.ErrWrongState, "no item run to cancel")
	}

	committed := run.Phase == types.ItemPhaseLocked || run.Phase == types.ItemPhaseRevealed
	if committed {
		for pid, a := range run.Answers {
			if p := s.Players[pid]; p != nil {
				p.Score -= a.Score
				p.CurrentStreak = a.StreakBefore
			}
		}
	}

	run.Phase = types.ItemPhaseCancelled
	run.Deadline = time.Time{}
	run.Answers = make(map[string]*Answer)
	run.Submissions = nil
	run.Podium = nil
	run.reveal = nil

	s.bump()
	events := []protocol.Directed{
		protocol.ToAll(s.event(protocol.EventItemCancelled, protocol.ItemCancelledPayload{ItemID: run.ItemID})),
	}
	if committed {
		events = append(events, protocol.ToAll(s.event(protocol.EventLeaderboardUpdate, protocol.LeaderboardUpdatePayload{
			Entries: s.Leaderboard(),
		})))
		for _, p := range s.Players {
			s.checkpointPlayer(p)
		}
	}

	s.checkpointDeleteItemAnswers(run.ItemID)
	s.checkpointSession()
	return events, nil
}

// Pause freezes the session: no answers, no timers, no ticks
func (s *State) Pause(now time.Time) ([]protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, err
	}
	if s.Status != types.SessionStatusActive {
		return nil, errf(protocol.ErrWrongState, "session %s is %s, not ACTIVE", s.Code, s.Status)
	}
	s.Status = types.SessionStatusPaused

	var remaining int64
	if run := s.CurrentRun(); run != nil && run.Phase == types.ItemPhaseActive && !run.Deadline.IsZero() {
		remaining = run.Deadline.Sub(now).Milliseconds()
		if remaining < 0 {
			remaining = 0
		}
		run.RemainingMs = remaining
		run.Deadline = time.Time{}
	}

	s.bump()
	s.checkpointSession()
	return []protocol.Directed{
		protocol.ToAll(s.event(protocol.EventSessionPaused, protocol.SessionPausedPayload{RemainingMs: remaining})),
	}, nil
}

// Resume re-arms the frozen timer. When a run needs a new auto-lock
// timer it is returned with a fresh generation for the caller to arm.
func (s *State) Resume(now time.Time) (*ItemRun, []protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, nil, err
	}
	if s.Status != types.SessionStatusPaused {
		return nil, nil, errf(protocol.ErrWrongState, "session %s is %s, not PAUSED", s.Code, s.Status)
	}
	s.Status = types.SessionStatusActive

	var rearmed *ItemRun
	if run := s.CurrentRun(); run != nil && run.Phase == types.ItemPhaseActive && run.RemainingMs > 0 {
		s.genCounter++
		run.Gen = s.genCounter
		run.Deadline = now.Add(time.Duration(run.RemainingMs) * time.Millisecond)
		run.RemainingMs = 0
		rearmed = run
	}

	s.bump()
	s.checkpointSession()
	return rearmed, []protocol.Directed{
		protocol.ToAll(s.event(protocol.EventSessionResumed, nil)),
	}, nil
}

// End terminates the session. Allowed even when quarantined so the host
// can always shut the game down.
func (s *State) End(reason string, now time.Time) ([]protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status.IsTerminal() {
		return nil, errf(protocol.ErrSessionEnded, "session %s already ended", s.Code)
	}
	s.Status = types.SessionStatusEnded
	s.EndedAt = now
	s.genCounter++ // orphan any armed timer

	s.bump()
	s.checkpointSession()
	return []protocol.Directed{
		protocol.ToAll(s.event(protocol.EventLeaderboardUpdate, protocol.LeaderboardUpdatePayload{
			Entries: s.Leaderboard(),
		})),
		protocol.ToAll(s.event(protocol.EventSessionEnded, protocol.SessionEndedPayload{
			Reason:      reason,
			Leaderboard: s.Leaderboard(),
		})),
	}, nil
}

// Reset returns the session to a fresh lobby: scores, streaks, answers
// and runs cleared, players retained, state version still climbing.
func (s *State) Reset(now time.Time) ([]protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, err
	}

	s.Status = types.SessionStatusLobby
	s.CurrentItemIndex = 0
	s.Runs = make(map[string]*ItemRun)
	s.genCounter++
	for _, p := range s.Players {
		p.Score = 0
		p.CurrentStreak = 0
	}

	s.bump()
	events := []protocol.Directed{
		protocol.ToAll(s.event(protocol.EventSessionReset, nil)),
		protocol.ToAll(s.event(protocol.EventSessionState, s.statePayload(""))),
	}

	s.checkpointDeleteSessionAnswers()
	for _, p := range s.Players {
		s.checkpointPlayer(p)
	}
	s.checkpointSession()
	return events, nil
}

// Kick permanently removes a player from the game. Their committed
// answers stay in history; name and fingerprint are freed for reuse.
func (s *State) Kick(playerID string, now time.Time) ([]protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, err
	}
	p, ok := s.Players[playerID]
	if !ok || p.Kicked {
		return nil, errf(protocol.ErrPlayerNotFound, "player %s is not part of session %s", playerID, s.Code)
	}

	p.Kicked = true
	p.Connected = false
	delete(s.nameIndex, normalizeName(p.Name))
	if p.DeviceFingerprint != "" {
		delete(s.fingerprintIndex, p.DeviceFingerprint)
	}

	s.bump()
	events := []protocol.Directed{
		protocol.ToPlayer(p.ID, s.event(protocol.EventPlayerKicked, protocol.PlayerKickedPayload{Reason: "KICKED_BY_HOST"})),
		protocol.ToAll(s.event(protocol.EventPlayerLeft, protocol.PlayerLeftPayload{
			PlayerID:    p.ID,
			Name:        p.Name,
			Reason:      "KICKED",
			PlayerCount: s.connectedCount(),
		})),
		protocol.ToAll(s.event(protocol.EventLeaderboardUpdate, protocol.LeaderboardUpdatePayload{
			Entries: s.Leaderboard(),
		})),
	}

	s.checkpointPlayer(p)
	s.checkpointSession()
	return events, nil
}

// AdjustScore is the host override for fuzzy-text judging after reveal.
// The answer's score is recomputed from base points; streaks are not
// retroactively recomputed.
func (s *State) AdjustScore(itemID, playerID string, pct int, now time.Time) ([]protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := s.guardMutable(); err != nil {
		return nil, err
	}
	if pct < 0 || pct > 100 {
		return nil, errf(protocol.ErrPayloadInvalid, "score percentage %d out of range", pct)
	}
	run := s.Runs[itemID]
	if run == nil || run.Phase != types.ItemPhaseRevealed {
		return nil, errf(protocol.ErrWrongState, "item %s is not revealed", itemID)
	}
	item, ok := s.Quiz.ItemByID(itemID)
	if !ok || item.Kind != types.ItemKindQuestion || item.Question.Type.ScoringMode() != types.ScoringFuzzyText {
		return nil, errf(protocol.ErrWrongState, "item %s is not host-adjustable", itemID)
	}
	a := run.Answers[playerID]
	p := s.Players[playerID]
	if a == nil || p == nil {
		return nil, errf(protocol.ErrPlayerNotFound, "player %s has no answer on item %s", playerID, itemID)
	}

	oldScore := a.Score
	newScore := int(math.Round(float64(item.Question.BasePoints) * float64(pct) / 100.0))
	correct := pct > 0

	a.Score = newScore
	a.ScorePercentage = pct
	a.IsCorrect = &correct
	a.ManuallyAdjusted = true
	p.Score += newScore - oldScore

	s.bump()
	events := []protocol.Directed{
		protocol.ToAll(s.event(protocol.EventScoreAdjusted, protocol.ScoreAdjustedPayload{
			ItemID:          itemID,
			PlayerID:        playerID,
			ScorePercentage: pct,
			Score:           newScore,
			NewTotal:        p.Score,
		})),
		protocol.ToAll(s.event(protocol.EventLeaderboardUpdate, protocol.LeaderboardUpdatePayload{
			Entries: s.Leaderboard(),
		})),
	}

	s.checkpointAnswer(a)
	s.checkpointPlayer(p)
	s.checkpointAdjustment(&database.ScoreAdjustmentRecord{
		SessionID:       s.ID,
		ItemID:          itemID,
		PlayerID:        playerID,
		OldScore:        oldScore,
		NewScore:        newScore,
		ScorePercentage: pct,
	})
	s.checkpointSession()
	return events, nil
}

// Archive makes the session terminal and read-only, used when the
// underlying quiz was edited out from under it
func (s *State) Archive(now time.Time) ([]protocol.Directed, error) {
	s.mu.Lock()
	defer s.mu.Unlock()

	if s.Status.IsTerminal() {
		return nil, errf(protocol.ErrSessionArchived, "session %s is already terminal", s.Code)
	}
	s.Status = types.SessionStatusArchived
	s.EndedAt = now
	s.genCounter++

	s.bump()
	s.checkpointSession()
	return []protocol.Directed{
		protocol.ToAll(s.event(protocol.EventSessionState, s.statePayload(""))),
	}, nil
}

// MinigameSeeds lists the connected players in join order for team split
func (s *State) MinigameSeeds() []minigame.Seed {
	s.mu.RLock()
	defer s.mu.RUnlock()

	players := make([]*Player, 0, len(s.Players))
	for _, p := range s.Players {
		if !p.Kicked && p.Connected {
			players = append(players, p)
		}
	}
	for i := 1; i < len(players); i++ {
		for j := i; j > 0 && players[j].JoinedAt.Before(players[j-1].JoinedAt); j-- {
			players[j], players[j-1] = players[j-1], players[j]
		}
	}
	seeds := make([]minigame.Seed, len(players))
	for i, p := range players {
		seeds[i] = minigame.Seed{PlayerID: p.ID, Name: p.Name}
	}
	return seeds
}

// EnsureMinigameActive guards START_SWAN_CHASE: the current item must be
// an active minigame run
func (s *State) EnsureMinigameActive() (*ItemRun, error) {
	s.mu.RLock()
	defer s.mu.RUnlock()

	if err := s.guardMutable(); err != nil {
		return nil, err
	}
	if s.Status == types.SessionStatusPaused {
		return nil, errf(protocol.ErrWrongState, "session %s is paused", s.Code)
	}
	item := s.CurrentItem()
	run := s.CurrentRun()
	if item == nil || run == nil || item.Kind != types.ItemKindMinigame || run.Phase != types.ItemPhaseActive {
		return nil, errf(protocol.ErrWrongState, "current item is not an active minigame")
	}
	return run, nil
}

// CommitMinigameResults converts the final standings into committed
// answer rows (full percentage, no correctness) and reveals the item, so
// the score-sum invariant covers minigame points too
func (s *State) CommitMinigameResults(itemID string, standings []minigame.Standing, now time.Time) []protocol.Directed {
	s.mu.Lock()
	defer s.mu.Unlock()

	run := s.Runs[itemID]
	if run == nil || run.Phase != types.ItemPhaseActive {
		return nil
	}

	for _, st := range standings {
		p := s.Players[st.PlayerID]
		if p == nil || p.Kicked || st.Points == 0 {
			continue
		}
		a := &Answer{
			ItemID:          itemID,
			PlayerID:        st.PlayerID,
			ScorePercentage: 100,
			Score:           st.Points,
			SubmittedAt:     now,
			StreakBefore:    p.CurrentStreak,
		}
		run.Answers[st.PlayerID] = a
		run.Submissions = append(run.Submissions, st.PlayerID)
		p.Score += st.Points
	}
	run.Phase = types.ItemPhaseRevealed

	if !s.scoreSumHolds() {
		s.Quarantined = true
	}

	s.bump()
	events := []protocol.Directed{
		protocol.ToAll(s.event(protocol.EventSwanChaseEnded, protocol.SwanChaseEndedPayload{
			ItemID:    itemID,
			Standings: standings,
		})),
		protocol.ToAll(s.event(protocol.EventLeaderboardUpdate, protocol.LeaderboardUpdatePayload{
			Entries: s.Leaderboard(),
		})),
	}

	for _, pid := range run.Submissions {
		s.checkpointAnswer(run.Answers[pid])
		s.checkpointPlayer(s.Players[pid])
	}
	s.checkpointSession()
	return events
}
