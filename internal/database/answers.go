package database

import (
	"database/sql"
	"fmt"
)

// UpsertAnswer writes a committed answer. The (session, item, player)
// primary key makes replayed checkpoints converge on one row instead of
// double-committing.
func (d *Database) UpsertAnswer(rec *AnswerRecord) error {
	query := `INSERT INTO answers (
		session_id, item_id, player_id, raw, coerced, is_correct,
		score_percentage, score, time_spent_ms, manually_adjusted, submitted_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id, item_id, player_id) DO UPDATE SET
		raw = excluded.raw,
		coerced = excluded.coerced,
		is_correct = excluded.is_correct,
		score_percentage = excluded.score_percentage,
		score = excluded.score,
		time_spent_ms = excluded.time_spent_ms,
		manually_adjusted = excluded.manually_adjusted`

	_, err := d.db.Exec(
		query,
		rec.SessionID,
		rec.ItemID,
		rec.PlayerID,
		string(rec.Raw),
		rec.Coerced,
		rec.IsCorrect,
		rec.ScorePercentage,
		rec.Score,
		rec.TimeSpentMs,
		rec.ManuallyAdjusted,
		rec.SubmittedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert answer: %v", err)
	}
	return nil
}

// GetSessionAnswers loads every committed answer of a session
func (d *Database) GetSessionAnswers(sessionID string) ([]*AnswerRecord, error) {
	query := `SELECT
		session_id, item_id, player_id, raw, coerced, is_correct,
		score_percentage, score, time_spent_ms, manually_adjusted, submitted_at
	FROM answers WHERE session_id = ? ORDER BY submitted_at, player_id`

	rows, err := d.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query answers: %v", err)
	}
	defer rows.Close()

	var answers []*AnswerRecord
	for rows.Next() {
		var rec AnswerRecord
		var raw string
		var isCorrect sql.NullBool

		err := rows.Scan(
			&rec.SessionID,
			&rec.ItemID,
			&rec.PlayerID,
			&raw,
			&rec.Coerced,
			&isCorrect,
			&rec.ScorePercentage,
			&rec.Score,
			&rec.TimeSpentMs,
			&rec.ManuallyAdjusted,
			&rec.SubmittedAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan answer: %v", err)
		}

		rec.Raw = []byte(raw)
		if isCorrect.Valid {
			rec.IsCorrect = &isCorrect.Bool
		}
		answers = append(answers, &rec)
	}

	return answers, rows.Err()
}

// DeleteItemAnswers tombstones a cancelled item's answers
func (d *Database) DeleteItemAnswers(sessionID, itemID string) error {
	if _, err := d.db.Exec("DELETE FROM answers WHERE session_id = ? AND item_id = ?", sessionID, itemID); err != nil {
		return fmt.Errorf("failed to delete item answers: %v", err)
	}
	return nil
}

// DeleteSessionAnswers clears every answer of a session (RESET_SESSION)
func (d *Database) DeleteSessionAnswers(sessionID string) error {
	if _, err := d.db.Exec("DELETE FROM answers WHERE session_id = ?", sessionID); err != nil {
		return fmt.Errorf("failed to delete session answers: %v", err)
	}
	return nil
}

// SaveScoreAdjustment appends one host override to the audit trail
func (d *Database) SaveScoreAdjustment(rec *ScoreAdjustmentRecord) error {
	query := `INSERT INTO score_adjustments (
		session_id, item_id, player_id, old_score, new_score, score_percentage
	) VALUES (?, ?, ?, ?, ?, ?)`

	result, err := d.db.Exec(
		query,
		rec.SessionID,
		rec.ItemID,
		rec.PlayerID,
		rec.OldScore,
		rec.NewScore,
		rec.ScorePercentage,
	)
	if err != nil {
		return fmt.Errorf("failed to save score adjustment: %v", err)
	}

	rec.ID, _ = result.LastInsertId()
	return nil
}
