package store

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
)

// UpsertEvents inserts or replaces catalog events by slug in one
// transaction. Events without an ID get one.
func (s *DocStore) UpsertEvents(ctx context.Context, events []mapthepast.Event) error {
	tx, err := s.db.BeginTx(ctx, nil)
	if err != nil {
		return err
	}
	defer tx.Rollback()

	for _, e := range events {
		if e.Slug == "" {
			return fmt.Errorf("event %q: slug is required", e.Title)
		}
		var existing string
		err := tx.QueryRowContext(ctx, `SELECT id FROM events WHERE slug = ?`, e.Slug).Scan(&existing)
		switch {
		case err == nil:
			e.ID = existing
		case e.ID == "":
			e.ID = newID()
		}

		data, err := json.Marshal(e)
		if err != nil {
			return err
		}
		_, err = tx.ExecContext(ctx,
			`INSERT INTO events (id, slug, theme, era, broad_era, region, data)
			 VALUES (?, ?, ?, ?, ?, ?, jsonb(?))
			 ON CONFLICT(slug) DO UPDATE SET
			   theme = excluded.theme, era = excluded.era, broad_era = excluded.broad_era,
			   region = excluded.region, data = excluded.data`,
			e.ID, e.Slug, e.Theme, e.Era, e.BroadEra, e.Region, string(data),
		)
		if err != nil {
			return fmt.Errorf("upserting event %q: %w", e.Slug, err)
		}
	}
	return tx.Commit()
}

// ListEvents returns the events matching f, ordered by slug.
func (s *DocStore) ListEvents(ctx context.Context, f mapthepast.Filters) ([]mapthepast.Event, error) {
	var (
		where []string
		args  []any
	)
	if f.Theme != "" {
		where = append(where, "theme = ?")
		args = append(args, f.Theme)
	}
	if f.Era != "" {
		where = append(where, "(era = ? OR broad_era = ?)")
		args = append(args, f.Era, f.Era)
	}
	if f.Region != "" {
		where = append(where, "region = ?")
		args = append(args, f.Region)
	}

	query := `SELECT json(data) FROM events`
	if len(where) > 0 {
		query += " WHERE " + strings.Join(where, " AND ")
	}
	query += " ORDER BY slug"

	return queryDocs[mapthepast.Event](ctx, s.db, query, args...)
}

// GetEvent returns the event with the given slug.
func (s *DocStore) GetEvent(ctx context.Context, slug string) (mapthepast.Event, error) {
	events, err := queryDocs[mapthepast.Event](ctx, s.db, `SELECT json(data) FROM events WHERE slug = ?`, slug)
	if err != nil {
		return mapthepast.Event{}, err
	}
	if len(events) == 0 {
		return mapthepast.Event{}, ErrNotFound
	}
	return events[0], nil
}

// FilterOptions lists the distinct non-empty themes, eras and regions in the
// catalog. Eras include broad eras.
func (s *DocStore) FilterOptions(ctx context.Context) (mapthepast.FilterOptions, error) {
	var opts mapthepast.FilterOptions
	var err error
	if opts.Themes, err = s.distinct(ctx, `SELECT DISTINCT theme FROM events WHERE theme != '' ORDER BY theme`); err != nil {
		return opts, err
	}
	if opts.Eras, err = s.distinct(ctx, `SELECT era FROM events WHERE era != '' UNION SELECT broad_era FROM events WHERE broad_era != '' ORDER BY 1`); err != nil {
		return opts, err
	}
	if opts.Regions, err = s.distinct(ctx, `SELECT DISTINCT region FROM events WHERE region != '' ORDER BY region`); err != nil {
		return opts, err
	}
	return opts, nil
}

func (s *DocStore) distinct(ctx context.Context, query string) ([]string, error) {
	rows, err := s.db.QueryContext(ctx, query)
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	out := []string{}
	for rows.Next() {
		var v string
		if err := rows.Scan(&v); err != nil {
			return nil, err
		}
		out = append(out, v)
	}
	return out, rows.Err()
}
