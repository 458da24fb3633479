package database

import (
	"database/sql"
	"fmt"
	"os"
	"path/filepath"
	"time"

	_ "github.com/mattn/go-sqlite3"
)

// Database is the SQLite-backed durable store for sessions, players and
// answers. The in-memory session state stays authoritative; this is the
// checkpoint target and the rehydration source after a cold start.
type Database struct {
	db *sql.DB
}

// SessionRecord is the persisted shape of a session
type SessionRecord struct {
	ID               string     `json:"id"`
	Code             string     `json:"code"`
	Status           string     `json:"status"`
	QuizSnapshot     []byte     `json:"-"`
	HostKeyHash      string     `json:"-"`
	CurrentItemIndex int        `json:"current_item_index"`
	StateVersion     uint64     `json:"state_version"`
	CreatedAt        time.Time  `json:"created_at"`
	UpdatedAt        time.Time  `json:"updated_at"`
	EndedAt          *time.Time `json:"ended_at,omitempty"`
}

// PlayerRecord is the persisted shape of a player
type PlayerRecord struct {
	ID                string     `json:"id"`
	SessionID         string     `json:"session_id"`
	Name              string     `json:"name"`
	Avatar            string     `json:"avatar,omitempty"`
	Score             int        `json:"score"`
	Streak            int        `json:"streak"`
	DeviceFingerprint string     `json:"-"`
	Kicked            bool       `json:"kicked"`
	JoinedAt          time.Time  `json:"joined_at"`
	LeftAt            *time.Time `json:"left_at,omitempty"`
}

// AnswerRecord is the persisted shape of a committed answer. The primary
// key (session_id, item_id, player_id) is what makes answer commits
// at-most-once even if a checkpoint replays after recovery.
type AnswerRecord struct {
	SessionID        string    `json:"session_id"`
	ItemID           string    `json:"item_id"`
	PlayerID         string    `json:"player_id"`
	Raw              []byte    `json:"raw"`
	Coerced          string    `json:"coerced"`
	IsCorrect        *bool     `json:"is_correct,omitempty"`
	ScorePercentage  int       `json:"score_percentage"`
	Score            int       `json:"score"`
	TimeSpentMs      int64     `json:"time_spent_ms"`
	ManuallyAdjusted bool      `json:"manually_adjusted"`
	SubmittedAt      time.Time `json:"submitted_at"`
}

// ScoreAdjustmentRecord is one host override of a committed answer
type ScoreAdjustmentRecord struct {
	ID              int64     `json:"id"`
	SessionID       string    `json:"session_id"`
	ItemID          string    `json:"item_id"`
	PlayerID        string    `json:"player_id"`
	OldScore        int       `json:"old_score"`
	NewScore        int       `json:"new_score"`
	ScorePercentage int       `json:"score_percentage"`
	CreatedAt       time.Time `json:"created_at"`
}

// ErrNotFound marks lookups that matched no row
var ErrNotFound = fmt.Errorf("not found")

// New opens (or creates) the database file and applies pending
// migrations. WAL keeps the checkpoint writers from blocking reads.
func New(dataDir string) (*Database, error) {
	if err := os.MkdirAll(dataDir, 0755); err != nil {
		return nil, fmt.Errorf("failed to create data directory: %v", err)
	}

	dbPath := filepath.Join(dataDir, "partyquiz.db")
	dsn := fmt.Sprintf("file:%s?_journal_mode=WAL&_busy_timeout=5000&_foreign_keys=on", dbPath)
	db, err := sql.Open("sqlite3", dsn)
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %v", err)
	}

	d := &Database{db: db}
	if err := d.RunMigrations(); err != nil {
		db.Close()
		return nil, err
	}

	return d, nil
}

// Close closes the database connection
func (d *Database) Close() error {
	return d.db.Close()
}
