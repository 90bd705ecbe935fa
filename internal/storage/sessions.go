package storage

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

// --- Sessions ---

func (s *Store) CreateSession(ctx context.Context, id string, createdAt time.Time) error {
	ts := formatTime(createdAt)
	_, err := s.db.ExecContext(ctx, `
		INSERT INTO sessions (id, created_at, updated_at, pending_text) VALUES (?, ?, ?, '')`,
		id, ts, ts,
	)
	if err != nil {
		return fmt.Errorf("inserting session %s: %w", id, err)
	}
	return nil
}

func (s *Store) GetSession(ctx context.Context, id string) (SessionRecord, error) {
	var rec SessionRecord
	var createdAt, updatedAt string
	err := s.db.QueryRowContext(ctx, `
		SELECT id, created_at, updated_at, pending_text FROM sessions WHERE id = ?`, id,
	).Scan(&rec.ID, &createdAt, &updatedAt, &rec.PendingText)
	if errors.Is(err, sql.ErrNoRows) {
		return SessionRecord{}, ErrNotFound
	}
	if err != nil {
		return SessionRecord{}, err
	}
	if rec.CreatedAt, err = parseTime(createdAt); err != nil {
		return SessionRecord{}, fmt.Errorf("parsing created_at: %w", err)
	}
	if rec.UpdatedAt, err = parseTime(updatedAt); err != nil {
		return SessionRecord{}, fmt.Errorf("parsing updated_at: %w", err)
	}
	return rec, nil
}

func (s *Store) SetPendingText(ctx context.Context, sessionID, text string) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE sessions SET pending_text = ?, updated_at = ? WHERE id = ?`,
		text, formatTime(time.Now()), sessionID,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// --- Messages ---

// AppendMessage stores a message at the end of its session's history.
func (s *Store) AppendMessage(ctx context.Context, m MessageRecord) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("beginning append transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, `
		INSERT INTO messages (id, session_id, role, kind, payload_json, created_at)
		VALUES (?, ?, ?, ?, ?, ?)`,
		m.ID, m.SessionID, m.Role, m.Kind, m.PayloadJSON, formatTime(m.CreatedAt),
	); err != nil {
		return fmt.Errorf("inserting message %s: %w", m.ID, err)
	}

	res, err := tx.ExecContext(ctx, `UPDATE sessions SET updated_at = ? WHERE id = ?`, formatTime(time.Now()), m.SessionID)
	if err != nil {
		return fmt.Errorf("touching session %s: %w", m.SessionID, err)
	}
	if err := expectOneRow(res); err != nil {
		return fmt.Errorf("session %s: %w", m.SessionID, err)
	}

	return tx.Commit()
}

// ArchiveMessage marks a message as removed from the visible log. The row is kept.
func (s *Store) ArchiveMessage(ctx context.Context, id string, removedAt time.Time) error {
	res, err := s.db.ExecContext(ctx, `
		UPDATE messages SET removed_at = ? WHERE id = ? AND removed_at IS NULL`,
		formatTime(removedAt), id,
	)
	if err != nil {
		return err
	}
	return expectOneRow(res)
}

// ActiveMessages returns the session's visible messages in append order.
func (s *Store) ActiveMessages(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	return s.queryMessages(ctx, `
		SELECT id, session_id, role, kind, payload_json, created_at, removed_at
		FROM messages WHERE session_id = ? AND removed_at IS NULL ORDER BY seq ASC`, sessionID)
}

// MessageHistory returns every message ever appended to the session,
// archived ones included, in append order.
func (s *Store) MessageHistory(ctx context.Context, sessionID string) ([]MessageRecord, error) {
	return s.queryMessages(ctx, `
		SELECT id, session_id, role, kind, payload_json, created_at, removed_at
		FROM messages WHERE session_id = ? ORDER BY seq ASC`, sessionID)
}

func (s *Store) queryMessages(ctx context.Context, query string, args ...any) ([]MessageRecord, error) {
	rows, err := s.db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []MessageRecord
	for rows.Next() {
		var m MessageRecord
		var createdAt string
		var removedAt sql.NullString
		if err := rows.Scan(&m.ID, &m.SessionID, &m.Role, &m.Kind, &m.PayloadJSON, &createdAt, &removedAt); err != nil {
			return nil, err
		}
		if m.CreatedAt, err = parseTime(createdAt); err != nil {
			return nil, fmt.Errorf("parsing created_at for message %s: %w", m.ID, err)
		}
		if removedAt.Valid {
			t, err := parseTime(removedAt.String)
			if err != nil {
				return nil, fmt.Errorf("parsing removed_at for message %s: %w", m.ID, err)
			}
			m.RemovedAt = &t
		}
		out = append(out, m)
	}
	return out, rows.Err()
}

func expectOneRow(res sql.Result) error {
	n, err := res.RowsAffected()
	if err != nil {
		return err
	}
	if n == 0 {
		return ErrNotFound
	}
	return nil
}
