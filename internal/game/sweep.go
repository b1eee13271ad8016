package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
	"github.com/mapthepast/mapthepast/internal/session"
)

// SweepStore is what the abandoned-session sweep reads and writes.
type SweepStore interface {
	ListOpenSessions(ctx context.Context, before time.Time) ([]mapthepast.Session, error)
	SessionResults(ctx context.Context, sessionID string) ([]mapthepast.Result, error)
	FinalizeSession(ctx context.Context, id string, sum mapthepast.Summary) error
}

type SweepReport struct {
	Completed int `json:"completed"`
	Abandoned int `json:"abandoned"`
	Skipped   int `json:"skipped"`
	Failed    int `json:"failed"`
}

// Sweep finalizes sessions left open since before cutoff. Sessions with
// results are completed with best-per-event totals, the rest are marked
// abandoned. live, when set, reports sessions still held by a running
// engine; those are skipped. A failing session does not stop the sweep.
func Sweep(ctx context.Context, logger *slog.Logger, st SweepStore, cutoff, now time.Time, live func(id string) bool) (SweepReport, error) {
	var rep SweepReport

	open, err := st.ListOpenSessions(ctx, cutoff)
	if err != nil {
		return rep, fmt.Errorf("listing open sessions: %w", err)
	}

	var errs []error
	for _, sess := range open {
		if live != nil && live(sess.ID) {
			rep.Skipped++
			continue
		}
		results, err := st.SessionResults(ctx, sess.ID)
		if err != nil {
			rep.Failed++
			errs = append(errs, fmt.Errorf("session %s: %w", sess.ID, err))
			continue
		}

		sum, err := session.NewAggregator(results...).Finalize(sess, "", now)
		if err == nil {
			err = st.FinalizeSession(ctx, sess.ID, sum)
		}
		switch {
		case errors.Is(err, session.ErrAlreadyFinalized):
			rep.Skipped++
			continue
		case err != nil:
			rep.Failed++
			errs = append(errs, fmt.Errorf("session %s: %w", sess.ID, err))
			continue
		}

		if sum.Status == mapthepast.SessionStatusCompleted {
			rep.Completed++
		} else {
			rep.Abandoned++
		}
		logger.Info("swept session", "session_id", sess.ID, "status", sum.Status, "total_points", sum.TotalPoints)
	}
	return rep, errors.Join(errs...)
}

// SweepStale runs Sweep for sessions older than maxAge, skipping the ones
// this engine still holds.
func (e *Engine) SweepStale(ctx context.Context, st SweepStore, maxAge time.Duration) (SweepReport, error) {
	now := e.now().UTC()
	return Sweep(ctx, e.logger, st, now.Add(-maxAge), now, func(id string) bool {
		_, ok := e.registry.Get(id)
		return ok
	})
}
