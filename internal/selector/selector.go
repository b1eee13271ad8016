// Package selector draws the next event for a round while avoiding recent
// repeats.
package selector

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"math/rand/v2"
	"sync"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
)

// DefaultRecentWindow is how many of a player's latest results count as
// "recently played".
const DefaultRecentWindow = 50

// ErrExhausted means no event matches the filters at all. Only relaxing the
// filters can fix it.
var ErrExhausted = errors.New("no events match the selected filters")

// Rand is the draw source. *rand.Rand satisfies it.
type Rand interface {
	IntN(n int) int
}

// lockedRand serializes draws from a source shared by every session.
type lockedRand struct {
	mu  sync.Mutex
	rng Rand
}

func (l *lockedRand) IntN(n int) int {
	l.mu.Lock()
	defer l.mu.Unlock()
	return l.rng.IntN(n)
}

// Selection is a drawn event. RepeatsPossible is set when every matching
// event had already been played and the draw ignored the exclusions.
type Selection struct {
	Event           mapthepast.Event
	RepeatsPossible bool
}

// Matches reports whether e passes every set filter. The era filter
// accepts either the event's era or its broad era.
func Matches(e mapthepast.Event, f mapthepast.Filters) bool {
	if f.Theme != "" && e.Theme != f.Theme {
		return false
	}
	if f.Era != "" && e.Era != f.Era && e.BroadEra != f.Era {
		return false
	}
	if f.Region != "" && e.Region != f.Region {
		return false
	}
	return true
}

// Filter returns the events matching f, in catalog order.
func Filter(pool []mapthepast.Event, f mapthepast.Filters) []mapthepast.Event {
	var out []mapthepast.Event
	for _, e := range pool {
		if Matches(e, f) {
			out = append(out, e)
		}
	}
	return out
}

// Select draws uniformly from the events matching f whose slug is not in
// excluded. When exclusion empties the pool it falls back to the filtered
// pool and flags RepeatsPossible.
func Select(pool []mapthepast.Event, f mapthepast.Filters, excluded map[string]bool, rng Rand) (Selection, error) {
	filtered := Filter(pool, f)
	if len(filtered) == 0 {
		return Selection{}, ErrExhausted
	}

	fresh := make([]mapthepast.Event, 0, len(filtered))
	for _, e := range filtered {
		if !excluded[e.Slug] {
			fresh = append(fresh, e)
		}
	}

	if len(fresh) > 0 {
		return Selection{Event: fresh[rng.IntN(len(fresh))]}, nil
	}
	return Selection{Event: filtered[rng.IntN(len(filtered))], RepeatsPossible: true}, nil
}

// Catalog is the event source.
type Catalog interface {
	ListEvents(ctx context.Context, f mapthepast.Filters) ([]mapthepast.Event, error)
}

// RecentSource reports the slugs a player has played most recently, newest
// first.
type RecentSource interface {
	ListRecentSlugs(ctx context.Context, playerName string, limit int) ([]string, error)
}

// Selector combines the catalog with the player's recent history. It is
// safe for concurrent use.
type Selector struct {
	catalog Catalog
	recent  RecentSource
	window  int
	rng     Rand
	logger  *slog.Logger
}

func New(logger *slog.Logger, catalog Catalog, recent RecentSource, window int, rng Rand) *Selector {
	if window <= 0 {
		window = DefaultRecentWindow
	}
	if rng == nil {
		rng = rand.New(rand.NewPCG(rand.Uint64(), rand.Uint64()))
	}
	return &Selector{catalog: catalog, recent: recent, window: window, rng: &lockedRand{rng: rng}, logger: logger}
}

// Next picks an event for playerName. played holds the slugs already
// accepted in the current session. A failing recent-history lookup is
// logged and the draw proceeds with the session exclusions only.
func (s *Selector) Next(ctx context.Context, playerName string, f mapthepast.Filters, played []string) (Selection, error) {
	pool, err := s.catalog.ListEvents(ctx, f)
	if err != nil {
		return Selection{}, fmt.Errorf("listing events: %w", err)
	}

	excluded := make(map[string]bool, len(played)+s.window)
	for _, slug := range played {
		excluded[slug] = true
	}
	if s.recent != nil && playerName != "" {
		slugs, err := s.recent.ListRecentSlugs(ctx, playerName, s.window)
		if err != nil {
			s.logger.Warn("recent slugs unavailable", "player", playerName, "error", err)
		}
		for _, slug := range slugs {
			excluded[slug] = true
		}
	}

	sel, err := Select(pool, f, excluded, s.rng)
	if err != nil {
		return Selection{}, err
	}
	if sel.RepeatsPossible {
		s.logger.Info("recent pool exhausted, allowing repeats", "player", playerName, "filters", f)
	}
	return sel, nil
}
