package database

import (
	"database/sql"
	"fmt"
)

// UpsertSession writes a session row, replacing any previous checkpoint
func (d *Database) UpsertSession(rec *SessionRecord) error {
	query := `INSERT INTO sessions (
		id, code, status, quiz_snapshot, host_key_hash,
		current_item_index, state_version, created_at, updated_at, ended_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, CURRENT_TIMESTAMP, ?)
	ON CONFLICT(id) DO UPDATE SET
		code = excluded.code,
		status = excluded.status,
		quiz_snapshot = excluded.quiz_snapshot,
		host_key_hash = excluded.host_key_hash,
		current_item_index = excluded.current_item_index,
		state_version = excluded.state_version,
		updated_at = CURRENT_TIMESTAMP,
		ended_at = excluded.ended_at`

	_, err := d.db.Exec(
		query,
		rec.ID,
		rec.Code,
		rec.Status,
		string(rec.QuizSnapshot),
		rec.HostKeyHash,
		rec.CurrentItemIndex,
		rec.StateVersion,
		rec.CreatedAt,
		rec.EndedAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert session: %v", err)
	}
	return nil
}

// GetSessionByCode loads the newest session bound to a code. Codes are
// only unique among non-ended sessions, so the newest row wins.
func (d *Database) GetSessionByCode(code string) (*SessionRecord, error) {
	query := `SELECT
		id, code, status, quiz_snapshot, host_key_hash,
		current_item_index, state_version, created_at, updated_at, ended_at
	FROM sessions WHERE code = ? ORDER BY created_at DESC LIMIT 1`

	var rec SessionRecord
	var snapshot string
	var endedAt sql.NullTime

	err := d.db.QueryRow(query, code).Scan(
		&rec.ID,
		&rec.Code,
		&rec.Status,
		&snapshot,
		&rec.HostKeyHash,
		&rec.CurrentItemIndex,
		&rec.StateVersion,
		&rec.CreatedAt,
		&rec.UpdatedAt,
		&endedAt,
	)
	if err == sql.ErrNoRows {
		return nil, ErrNotFound
	}
	if err != nil {
		return nil, fmt.Errorf("failed to get session: %v", err)
	}

	rec.QuizSnapshot = []byte(snapshot)
	if endedAt.Valid {
		rec.EndedAt = &endedAt.Time
	}
	return &rec, nil
}

// ListSessions returns a page of sessions plus the unpaged total
func (d *Database) ListSessions(filter SessionFilter) ([]*SessionRecord, int, error) {
	where := ""
	args := []any{}
	if filter.Status != "" {
		where = "WHERE status = ?"
		args = append(args, filter.Status)
	}

	var total int
	countQuery := fmt.Sprintf("SELECT COUNT(*) FROM sessions %s", where)
	if err := d.db.QueryRow(countQuery, args...).Scan(&total); err != nil {
		return nil, 0, fmt.Errorf("failed to count sessions: %v", err)
	}

	if filter.PageSize <= 0 {
		filter.PageSize = 20
	}
	if filter.Page <= 0 {
		filter.Page = 1
	}
	offset := (filter.Page - 1) * filter.PageSize

	query := fmt.Sprintf(`SELECT
		id, code, status, quiz_snapshot, host_key_hash,
		current_item_index, state_version, created_at, updated_at, ended_at
	FROM sessions %s ORDER BY created_at DESC LIMIT ? OFFSET ?`, where)
	args = append(args, filter.PageSize, offset)

	rows, err := d.db.Query(query, args...)
	if err != nil {
		return nil, 0, fmt.Errorf("failed to query sessions: %v", err)
	}
	defer rows.Close()

	var sessions []*SessionRecord
	for rows.Next() {
		var rec SessionRecord
		var snapshot string
		var endedAt sql.NullTime

		err := rows.Scan(
			&rec.ID,
			&rec.Code,
			&rec.Status,
			&snapshot,
			&rec.HostKeyHash,
			&rec.CurrentItemIndex,
			&rec.StateVersion,
			&rec.CreatedAt,
			&rec.UpdatedAt,
			&endedAt,
		)
		if err != nil {
			return nil, 0, fmt.Errorf("failed to scan session: %v", err)
		}

		rec.QuizSnapshot = []byte(snapshot)
		if endedAt.Valid {
			rec.EndedAt = &endedAt.Time
		}
		sessions = append(sessions, &rec)
	}

	return sessions, total, rows.Err()
}

// DeleteSession removes a session and, via cascade, its players,
// answers and adjustments
func (d *Database) DeleteSession(id string) error {
	if _, err := d.db.Exec("DELETE FROM sessions WHERE id = ?", id); err != nil {
		return fmt.Errorf("failed to delete session: %v", err)
	}
	return nil
}
