package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
	"github.com/mapthepast/mapthepast/internal/session"
)

// DefaultLeaderboardLimit is used when Leaderboard is called with a
// non-positive limit.
const DefaultLeaderboardLimit = 10

// CreateSession stores a new active session and returns its ID.
func (s *DocStore) CreateSession(ctx context.Context, sess mapthepast.Session) (string, error) {
	if sess.ID == "" {
		sess.ID = newID()
	}
	if sess.StartedAt.IsZero() {
		sess.StartedAt = s.now().UTC()
	}
	if sess.Mode == "" {
		sess.Mode = mapthepast.ModeEndless
	}
	sess.Status = mapthepast.SessionStatusActive
	sess.EndedAt = nil

	if err := s.putSession(ctx, s.db, sess); err != nil {
		return "", fmt.Errorf("creating session: %w", err)
	}
	return sess.ID, nil
}

// GetSession returns the session with the given ID.
func (s *DocStore) GetSession(ctx context.Context, id string) (mapthepast.Session, error) {
	var sess mapthepast.Session
	err := s.get(ctx, "sessions", id, &sess)
	return sess, err
}

// UpdateSessionProgress writes the running totals of an active session.
func (s *DocStore) UpdateSessionProgress(ctx context.Context, id string, p mapthepast.Progress) error {
	return s.modifySession(ctx, id, func(sess *mapthepast.Session) error {
		if sess.Status.Terminal() {
			return session.ErrAlreadyFinalized
		}
		sess.TotalEvents = p.TotalEvents
		sess.TotalPoints = p.TotalPoints
		sess.AverageScore = p.AverageScore
		return nil
	})
}

// FinalizeSession closes a session with sum. The write is conditional on
// ended_at still being NULL, so of two concurrent finalizers only one wins.
func (s *DocStore) FinalizeSession(ctx context.Context, id string, sum mapthepast.Summary) error {
	sess, err := s.GetSession(ctx, id)
	if err != nil {
		return err
	}
	if sess.EndedAt != nil || sess.Status.Terminal() {
		return session.ErrAlreadyFinalized
	}
	session.Apply(&sess, sum)

	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	res, err := s.db.ExecContext(ctx,
		`UPDATE sessions
		 SET player_name = ?, status = ?, total_points = ?, ended_at = ?, data = jsonb(?)
		 WHERE id = ? AND ended_at IS NULL`,
		sess.PlayerName, string(sess.Status), sess.TotalPoints, formatTime(*sess.EndedAt), string(data), id,
	)
	if err != nil {
		return fmt.Errorf("finalizing session: %w", err)
	}
	if n, _ := res.RowsAffected(); n == 0 {
		return session.ErrAlreadyFinalized
	}
	return nil
}

// ListOpenSessions returns sessions with no end time that started before
// the cutoff, oldest first.
func (s *DocStore) ListOpenSessions(ctx context.Context, before time.Time) ([]mapthepast.Session, error) {
	return queryDocs[mapthepast.Session](ctx, s.db,
		`SELECT json(data) FROM sessions
		 WHERE ended_at IS NULL AND started_at < ?
		 ORDER BY started_at`,
		formatTime(before),
	)
}

// Leaderboard returns the completed sessions with the most points. Ties go
// to the earlier session.
func (s *DocStore) Leaderboard(ctx context.Context, limit int) ([]mapthepast.Session, error) {
	if limit <= 0 {
		limit = DefaultLeaderboardLimit
	}
	sessions, err := queryDocs[mapthepast.Session](ctx, s.db,
		`SELECT json(data) FROM sessions
		 WHERE status = ?
		 ORDER BY total_points DESC, started_at ASC
		 LIMIT ?`,
		string(mapthepast.SessionStatusCompleted), limit,
	)
	if err != nil {
		return nil, err
	}
	if sessions == nil {
		sessions = []mapthepast.Session{}
	}
	return sessions, nil
}

// InsertResult stores an accepted result and returns its ID. The owning
// session must exist.
func (s *DocStore) InsertResult(ctx context.Context, r mapthepast.Result) (string, error) {
	if r.ID == "" {
		r.ID = newID()
	}
	if r.CreatedAt.IsZero() {
		r.CreatedAt = s.now().UTC()
	}
	data, err := json.Marshal(r)
	if err != nil {
		return "", err
	}
	_, err = s.db.ExecContext(ctx,
		`INSERT INTO results (id, session_id, player_name, slug, score, created_at, data)
		 VALUES (?, ?, ?, ?, ?, ?, jsonb(?))`,
		r.ID, r.SessionID, r.PlayerName, r.EventSlug, r.Score, formatTime(r.CreatedAt), string(data),
	)
	if err != nil {
		return "", fmt.Errorf("inserting result: %w", err)
	}
	return r.ID, nil
}

// SessionResults returns the results of a session in the order they were
// accepted.
func (s *DocStore) SessionResults(ctx context.Context, sessionID string) ([]mapthepast.Result, error) {
	return queryDocs[mapthepast.Result](ctx, s.db,
		`SELECT json(data) FROM results WHERE session_id = ? ORDER BY created_at, rowid`,
		sessionID,
	)
}

// ListRecentSlugs returns the slugs of the player's latest results, newest
// first.
func (s *DocStore) ListRecentSlugs(ctx context.Context, player string, limit int) ([]string, error) {
	rows, err := s.db.QueryContext(ctx,
		`SELECT slug FROM results WHERE player_name = ?
		 ORDER BY created_at DESC, rowid DESC LIMIT ?`,
		player, limit,
	)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var slugs []string
	for rows.Next() {
		var slug string
		if err := rows.Scan(&slug); err != nil {
			return nil, err
		}
		slugs = append(slugs, slug)
	}
	return slugs, rows.Err()
}

type execer interface {
	ExecContext(ctx context.Context, query string, args ...any) (sql.Result, error)
}

func (s *DocStore) putSession(ctx context.Context, db execer, sess mapthepast.Session) error {
	data, err := json.Marshal(sess)
	if err != nil {
		return err
	}
	var ended any
	if sess.EndedAt != nil {
		ended = formatTime(*sess.EndedAt)
	}
	_, err = db.ExecContext(ctx,
		`INSERT INTO sessions (id, player_name, status, total_points, started_at, ended_at, data)
		 VALUES (?, ?, ?, ?, ?, ?, jsonb(?))
		 ON CONFLICT(id) DO UPDATE SET
		   player_name = excluded.player_name, status = excluded.status,
		   total_points = excluded.total_points, ended_at = excluded.ended_at,
		   data = excluded.data`,
		sess.ID, sess.PlayerName, string(sess.Status), sess.TotalPoints,
		formatTime(sess.StartedAt), ended, string(data),
	)
	return err
}

// modifySession loads a session, applies fn, and saves it in a transaction.
func (s *DocStore) modifySession(ctx context.Context, id string, fn func(*mapthepast.Session) error) error {
	tx, err := s.db.BeginTx(ctx, &sql.TxOptions{})
	if err != nil {
		return err
	}
	defer tx.Rollback()

	var data string
	var ended sql.NullString
	err = tx.QueryRowContext(ctx,
		`SELECT json(data), ended_at FROM sessions WHERE id = ?`, id,
	).Scan(&data, &ended)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}

	var sess mapthepast.Session
	if err := json.Unmarshal([]byte(data), &sess); err != nil {
		return err
	}
	if ended.Valid && sess.EndedAt == nil {
		t, err := time.Parse(timeLayout, ended.String)
		if err != nil {
			return fmt.Errorf("parsing ended_at: %w", err)
		}
		sess.EndedAt = &t
	}

	if err := fn(&sess); err != nil {
		return err
	}
	if err := s.putSession(ctx, tx, sess); err != nil {
		return err
	}
	return tx.Commit()
}
