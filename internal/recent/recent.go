// Package recent keeps each player's recently played event slugs in a
// capped Redis list, falling back to the result store when Redis is
// unavailable or holds less than the requested window.
package recent

import (
	"context"
	"fmt"
	"log/slog"

	"github.com/redis/go-redis/v9"
)

const keyPrefix = "mtp:recent:"

// Source is the authoritative history, usually the result store.
type Source interface {
	ListRecentSlugs(ctx context.Context, player string, limit int) ([]string, error)
}

type Cache struct {
	rdb      *redis.Client
	fallback Source
	logger   *slog.Logger
	window   int
}

// New returns a cache holding up to window slugs per player. rdb may be nil,
// in which case every read goes to fallback.
func New(logger *slog.Logger, rdb *redis.Client, fallback Source, window int) *Cache {
	return &Cache{rdb: rdb, fallback: fallback, logger: logger, window: window}
}

func key(player string) string {
	return keyPrefix + player
}

// Push records slug as the player's most recent event and trims the list to
// the window.
func (c *Cache) Push(ctx context.Context, player, slug string) error {
	if c.rdb == nil || player == "" {
		return nil
	}
	k := key(player)
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.LPush(ctx, k, slug)
		p.LTrim(ctx, k, 0, int64(c.window-1))
		return nil
	})
	if err != nil {
		return fmt.Errorf("pushing recent slug: %w", err)
	}
	return nil
}

// ListRecentSlugs returns up to limit slugs, newest first. A Redis list
// shorter than limit may have been lost or only partly rebuilt, so the
// store fills the rest and the merged window is written back.
func (c *Cache) ListRecentSlugs(ctx context.Context, player string, limit int) ([]string, error) {
	if limit <= 0 || limit > c.window {
		limit = c.window
	}

	var cached []string
	cacheOK := false
	if c.rdb != nil {
		slugs, err := c.rdb.LRange(ctx, key(player), 0, int64(limit-1)).Result()
		switch {
		case err != nil:
			c.logger.Warn("recent cache unavailable", "player", player, "error", err)
		case len(slugs) >= limit:
			return slugs, nil
		default:
			cached, cacheOK = slugs, true
		}
	}
	if c.fallback == nil {
		return cached, nil
	}

	stored, err := c.fallback.ListRecentSlugs(ctx, player, limit)
	if err != nil {
		return cached, fmt.Errorf("listing stored recent slugs: %w", err)
	}
	merged := merge(limit, cached, stored)
	if cacheOK && len(merged) > len(cached) {
		if err := c.backfill(ctx, player, merged); err != nil {
			c.logger.Warn("recent cache backfill failed", "player", player, "error", err)
		}
	}
	return merged, nil
}

// merge concatenates newest-first lists, dropping duplicates, up to limit.
func merge(limit int, lists ...[]string) []string {
	seen := make(map[string]bool, limit)
	out := make([]string, 0, limit)
	for _, list := range lists {
		for _, slug := range list {
			if len(out) == limit {
				return out
			}
			if !seen[slug] {
				seen[slug] = true
				out = append(out, slug)
			}
		}
	}
	return out
}

// backfill replaces the player's list with slugs, newest first.
func (c *Cache) backfill(ctx context.Context, player string, slugs []string) error {
	k := key(player)
	vals := make([]any, len(slugs))
	for i, s := range slugs {
		vals[i] = s
	}
	_, err := c.rdb.TxPipelined(ctx, func(p redis.Pipeliner) error {
		p.Del(ctx, k)
		p.RPush(ctx, k, vals...)
		p.LTrim(ctx, k, 0, int64(c.window-1))
		return nil
	})
	return err
}
