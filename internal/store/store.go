// Package store persists the event catalog, sessions and results in
// libSQL, one JSONB document per row with the columns queries need
// mirrored alongside.
package store

import (
	"context"
	"database/sql"
	"encoding/json"
	"errors"
	"fmt"
	"time"

	"github.com/google/uuid"
)

var ErrNotFound = errors.New("not found")

// timeLayout keeps stored timestamps fixed-width so text columns sort in
// time order.
const timeLayout = "2006-01-02T15:04:05.000Z"

func formatTime(t time.Time) string {
	return t.UTC().Format(timeLayout)
}

func newID() string {
	return uuid.NewString()
}

// DocStore is the libSQL implementation of the catalog and the session
// store. The schema is owned by the migrations package.
type DocStore struct {
	db  *sql.DB
	now func() time.Time
}

func New(db *sql.DB) *DocStore {
	return &DocStore{db: db, now: time.Now}
}

// Ping checks the connection.
func (s *DocStore) Ping(ctx context.Context) error {
	return s.db.PingContext(ctx)
}

// get loads the JSONB document with the given id from table into dest.
func (s *DocStore) get(ctx context.Context, table, id string, dest any) error {
	var data string
	err := s.db.QueryRowContext(ctx,
		fmt.Sprintf(`SELECT json(data) FROM %s WHERE id = ?`, table), id,
	).Scan(&data)
	if errors.Is(err, sql.ErrNoRows) {
		return ErrNotFound
	}
	if err != nil {
		return err
	}
	return json.Unmarshal([]byte(data), dest)
}

// queryDocs runs query and decodes the single json(data) column of every
// row with decode.
func queryDocs[T any](ctx context.Context, db *sql.DB, query string, args ...any) ([]T, error) {
	rows, err := db.QueryContext(ctx, query, args...)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var out []T
	for rows.Next() {
		var data string
		if err := rows.Scan(&data); err != nil {
			return nil, err
		}
		var v T
		if err := json.Unmarshal([]byte(data), &v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
