package session

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"time"
)

const sessionColumns = "id, title, source_filename, slide_count, status, created_at, updated_at, expires_at"

func scanSession(scanner interface{ Scan(dest ...any) error }) (*Session, error) {
	var (
		id         string
		title      sql.NullString
		sourceName string
		slideCount int64
		statusStr  string
		createdRaw string
		updatedRaw string
		expiresRaw sql.NullString
	)

	if err := scanner.Scan(
		&id,
		&title,
		&sourceName,
		&slideCount,
		&statusStr,
		&createdRaw,
		&updatedRaw,
		&expiresRaw,
	); err != nil {
		return nil, err
	}

	sess := &Session{
		ID:             id,
		Title:          title.String,
		SourceFilename: sourceName,
		SlideCount:     int(slideCount),
		Status:         Status(statusStr),
		CreatedAt:      parseTimestamp(createdRaw),
		UpdatedAt:      parseTimestamp(updatedRaw),
	}
	if expiresRaw.Valid {
		sess.ExpiresAt = parseTimestamp(expiresRaw.String)
	}
	return sess, nil
}

func parseTimestamp(raw string) time.Time {
	if raw == "" {
		return time.Time{}
	}
	if ts, err := time.Parse(time.RFC3339Nano, raw); err == nil {
		return ts.UTC()
	}
	if ts, err := time.Parse(time.RFC3339, raw); err == nil {
		return ts.UTC()
	}
	return time.Time{}
}

func nullableString(value string) any {
	if value == "" {
		return nil
	}
	return value
}

// Create inserts a new session row in the converting state.
func (s *Store) Create(ctx context.Context, id, title, sourceFilename string) (*Session, error) {
	now := time.Now().UTC()
	timestamp := now.Format(time.RFC3339Nano)

	_, err := s.execWithRetry(
		ctx,
		`INSERT INTO sessions (
            id, title, source_filename, slide_count, status, created_at, updated_at, expires_at
        ) VALUES (?, ?, ?, ?, ?, ?, ?, ?)`,
		id,
		nullableString(title),
		sourceFilename,
		0,
		StatusConverting,
		timestamp,
		timestamp,
		nil,
	)
	if err != nil {
		return nil, fmt.Errorf("insert session: %w", err)
	}

	return s.Get(ctx, id)
}

// Get fetches a session row by identifier. Missing sessions return nil
// without error.
func (s *Store) Get(ctx context.Context, id string) (*Session, error) {
	row := s.db.QueryRowContext(ctx, `SELECT `+sessionColumns+` FROM sessions WHERE id = ?`, id)
	sess, err := scanSession(row)
	if errors.Is(err, sql.ErrNoRows) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("get session: %w", err)
	}
	return sess, nil
}

// MarkReady records a successful conversion: the slide count and the expiry
// deadline the sweeper enforces.
func (s *Store) MarkReady(ctx context.Context, id string, slideCount int, expiresAt time.Time) (*Session, error) {
	now := time.Now().UTC()
	if err := s.execWithoutResultRetry(
		ctx,
		`UPDATE sessions SET slide_count = ?, status = ?, updated_at = ?, expires_at = ? WHERE id = ?`,
		slideCount,
		StatusReady,
		now.Format(time.RFC3339Nano),
		expiresAt.UTC().Format(time.RFC3339Nano),
		id,
	); err != nil {
		return nil, fmt.Errorf("mark session ready: %w", err)
	}
	return s.Get(ctx, id)
}

// List returns all session rows ordered by creation time.
func (s *Store) List(ctx context.Context) ([]*Session, error) {
	rows, err := s.db.QueryContext(ctx, `SELECT `+sessionColumns+` FROM sessions ORDER BY created_at`)
	if err != nil {
		return nil, fmt.Errorf("list sessions: %w", err)
	}
	defer rows.Close()

	var sessions []*Session
	for rows.Next() {
		sess, err := scanSession(rows)
		if err != nil {
			return nil, err
		}
		sessions = append(sessions, sess)
	}
	return sessions, rows.Err()
}

// Count returns the number of live session rows.
func (s *Store) Count(ctx context.Context) (int, error) {
	var count int
	if err := s.db.QueryRowContext(ctx, `SELECT COUNT(1) FROM sessions`).Scan(&count); err != nil {
		return 0, fmt.Errorf("count sessions: %w", err)
	}
	return count, nil
}

func (s *Store) removeRow(ctx context.Context, id string) (bool, error) {
	res, err := s.execWithRetry(ctx, `DELETE FROM sessions WHERE id = ?`, id)
	if err != nil {
		return false, fmt.Errorf("delete session row: %w", err)
	}
	affected, err := res.RowsAffected()
	if err != nil {
		return false, fmt.Errorf("rows affected: %w", err)
	}
	return affected > 0, nil
}

// expiredIDs returns identifiers whose deadline is at or before now. The
// deadline comparison happens on parsed timestamps, not on the stored
// strings, so fractional-second formatting differences cannot skew it.
func (s *Store) expiredIDs(ctx context.Context, now time.Time) ([]string, error) {
	rows, err := s.db.QueryContext(
		ctx,
		`SELECT id, expires_at FROM sessions WHERE expires_at IS NOT NULL AND expires_at != ''`,
	)
	if err != nil {
		return nil, fmt.Errorf("query expired sessions: %w", err)
	}
	defer rows.Close()

	var ids []string
	for rows.Next() {
		var id, expiresRaw string
		if err := rows.Scan(&id, &expiresRaw); err != nil {
			return nil, err
		}
		deadline := parseTimestamp(expiresRaw)
		if deadline.IsZero() || now.Before(deadline) {
			continue
		}
		ids = append(ids, id)
	}
	return ids, rows.Err()
}
