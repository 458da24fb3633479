package database

import (
	"database/sql"
	"fmt"
)

// UpsertPlayer writes a player row, replacing any previous checkpoint
func (d *Database) UpsertPlayer(rec *PlayerRecord) error {
	query := `INSERT INTO players (
		id, session_id, name, avatar, score, streak,
		device_fingerprint, kicked, joined_at, left_at
	) VALUES (?, ?, ?, ?, ?, ?, ?, ?, ?, ?)
	ON CONFLICT(session_id, id) DO UPDATE SET
		name = excluded.name,
		avatar = excluded.avatar,
		score = excluded.score,
		streak = excluded.streak,
		device_fingerprint = excluded.device_fingerprint,
		kicked = excluded.kicked,
		left_at = excluded.left_at`

	_, err := d.db.Exec(
		query,
		rec.ID,
		rec.SessionID,
		rec.Name,
		rec.Avatar,
		rec.Score,
		rec.Streak,
		rec.DeviceFingerprint,
		rec.Kicked,
		rec.JoinedAt,
		rec.LeftAt,
	)
	if err != nil {
		return fmt.Errorf("failed to upsert player: %v", err)
	}
	return nil
}

// GetSessionPlayers loads all players of a session in join order
func (d *Database) GetSessionPlayers(sessionID string) ([]*PlayerRecord, error) {
	query := `SELECT
		id, session_id, name, avatar, score, streak,
		device_fingerprint, kicked, joined_at, left_at
	FROM players WHERE session_id = ? ORDER BY joined_at, id`

	rows, err := d.db.Query(query, sessionID)
	if err != nil {
		return nil, fmt.Errorf("failed to query players: %v", err)
	}
	defer rows.Close()

	var players []*PlayerRecord
	for rows.Next() {
		var rec PlayerRecord
		var leftAt sql.NullTime

		err := rows.Scan(
			&rec.ID,
			&rec.SessionID,
			&rec.Name,
			&rec.Avatar,
			&rec.Score,
			&rec.Streak,
			&rec.DeviceFingerprint,
			&rec.Kicked,
			&rec.JoinedAt,
			&leftAt,
		)
		if err != nil {
			return nil, fmt.Errorf("failed to scan player: %v", err)
		}

		if leftAt.Valid {
			rec.LeftAt = &leftAt.Time
		}
		players = append(players, &rec)
	}

	return players, rows.Err()
}
