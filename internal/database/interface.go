package database

// Store defines the durable-store operations the engine depends on.
// Handlers and the checkpoint writer take this interface so tests can
// inject a mock.
type Store interface {
	Close() error
	RunMigrations() error

	// Sessions
	UpsertSession(rec *SessionRecord) error
	GetSessionByCode(code string) (*SessionRecord, error)
	ListSessions(filter SessionFilter) ([]*SessionRecord, int, error)
	DeleteSession(id string) error

	// Players
	UpsertPlayer(rec *PlayerRecord) error
	GetSessionPlayers(sessionID string) ([]*PlayerRecord, error)

	// Answers
	UpsertAnswer(rec *AnswerRecord) error
	GetSessionAnswers(sessionID string) ([]*AnswerRecord, error)
	DeleteItemAnswers(sessionID, itemID string) error
	DeleteSessionAnswers(sessionID string) error

	// Score adjustments
	SaveScoreAdjustment(rec *ScoreAdjustmentRecord) error
}

// SessionFilter narrows and pages ListSessions
type SessionFilter struct {
	Status   string
	Page     int
	PageSize int
}

// Ensure Database implements Store
var _ Store = (*Database)(nil)
