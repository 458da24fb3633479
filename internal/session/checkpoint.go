package session

import (
	"encoding/json"
	"time"

	"github.com/Eddiekoma/partyquiz-platform-sub000/internal/database"
)

// coercedString renders a coerced answer for the normalized column
func coercedString(v interface{}) string {
	data, err := json.Marshal(v)
	if err != nil {
		return ""
	}
	return string(data)
}

// checkpointKind tags what a checkpoint record carries
type checkpointKind int

const (
	ckptSession checkpointKind = iota
	ckptPlayer
	ckptAnswer
	ckptAdjustment
	ckptDeleteItemAnswers
	ckptDeleteSessionAnswers
)

// checkpoint is one durable mutation. Records are applied strictly in
// the order they were enqueued, so a session row written after its
// answers always reflects them.
type checkpoint struct {
	kind       checkpointKind
	session    *database.SessionRecord
	player     *database.PlayerRecord
	answer     *database.AnswerRecord
	adjustment *database.ScoreAdjustmentRecord
	itemID     string
}

// apply writes the record through the store interface
func (c checkpoint) apply(db database.Store) error {
	switch c.kind {
	case ckptSession:
		return db.UpsertSession(c.session)
	case ckptPlayer:
		return db.UpsertPlayer(c.player)
	case ckptAnswer:
		return db.UpsertAnswer(c.answer)
	case ckptAdjustment:
		return db.SaveScoreAdjustment(c.adjustment)
	case ckptDeleteItemAnswers:
		return db.DeleteItemAnswers(c.session.ID, c.itemID)
	case ckptDeleteSessionAnswers:
		return db.DeleteSessionAnswers(c.session.ID)
	}
	return nil
}

// sessionRecord snapshots the session row for persistence
func (s *State) sessionRecord() *database.SessionRecord {
	rec := &database.SessionRecord{
		ID:               s.ID,
		Code:             s.Code,
		Status:           s.Status.String(),
		QuizSnapshot:     s.QuizJSON,
		HostKeyHash:      s.HostKeyHash,
		CurrentItemIndex: s.CurrentItemIndex,
		StateVersion:     s.Version,
		CreatedAt:        s.CreatedAt,
	}
	if !s.EndedAt.IsZero() {
		ended := s.EndedAt
		rec.EndedAt = &ended
	}
	return rec
}

func (s *State) playerRecord(p *Player) *database.PlayerRecord {
	rec := &database.PlayerRecord{
		ID:                p.ID,
		SessionID:         s.ID,
		Name:              p.Name,
		Avatar:            p.Avatar,
		Score:             p.Score,
		Streak:            p.CurrentStreak,
		DeviceFingerprint: p.DeviceFingerprint,
		Kicked:            p.Kicked,
		JoinedAt:          p.JoinedAt,
	}
	if !p.Connected {
		left := time.Now().UTC()
		rec.LeftAt = &left
	}
	return rec
}

func (s *State) answerRecord(a *Answer) *database.AnswerRecord {
	coerced := ""
	if a.Coerced != nil {
		coerced = coercedString(a.Coerced)
	}
	return &database.AnswerRecord{
		SessionID:        s.ID,
		ItemID:           a.ItemID,
		PlayerID:         a.PlayerID,
		Raw:              a.Raw,
		Coerced:          coerced,
		IsCorrect:        a.IsCorrect,
		ScorePercentage:  a.ScorePercentage,
		Score:            a.Score,
		TimeSpentMs:      a.TimeSpentMs,
		ManuallyAdjusted: a.ManuallyAdjusted,
		SubmittedAt:      a.SubmittedAt,
	}
}

func (s *State) checkpointSession() {
	s.pending = append(s.pending, checkpoint{kind: ckptSession, session: s.sessionRecord()})
}

func (s *State) checkpointPlayer(p *Player) {
	s.pending = append(s.pending, checkpoint{kind: ckptPlayer, player: s.playerRecord(p)})
}

func (s *State) checkpointAnswer(a *Answer) {
	s.pending = append(s.pending, checkpoint{kind: ckptAnswer, answer: s.answerRecord(a)})
}

func (s *State) checkpointAdjustment(rec *database.ScoreAdjustmentRecord) {
	s.pending = append(s.pending, checkpoint{kind: ckptAdjustment, adjustment: rec})
}

func (s *State) checkpointDeleteItemAnswers(itemID string) {
	s.pending = append(s.pending, checkpoint{
		kind:    ckptDeleteItemAnswers,
		session: &database.SessionRecord{ID: s.ID},
		itemID:  itemID,
	})
}

func (s *State) checkpointDeleteSessionAnswers() {
	s.pending = append(s.pending, checkpoint{
		kind:    ckptDeleteSessionAnswers,
		session: &database.SessionRecord{ID: s.ID},
	})
}

// takePending hands the queued checkpoints to the store and clears them
func (s *State) takePending() []checkpoint {
	s.mu.Lock()
	defer s.mu.Unlock()
	out := s.pending
	s.pending = nil
	return out
}
