// Package game drives sessions end to end: it selects events, runs rounds,
// persists accepted results and finalizes sessions.
package game

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
	"github.com/mapthepast/mapthepast/internal/round"
	"github.com/mapthepast/mapthepast/internal/selector"
	"github.com/mapthepast/mapthepast/internal/session"
)

var (
	ErrPlayerNameRequired = errors.New("player name is required")
	ErrInvalidMode        = errors.New("mode must be endless, or fixed with a positive target")
	ErrTargetReached      = errors.New("session has reached its target number of events")
	ErrSessionNotFound    = errors.New("session not found")
	ErrSessionClosed      = errors.New("session is already finalized")
)

// DefaultTeardownTimeout bounds the background finalize started by
// Teardown.
const DefaultTeardownTimeout = 5 * time.Second

// Store is the persistence the engine writes through.
type Store interface {
	CreateSession(ctx context.Context, sess mapthepast.Session) (string, error)
	InsertResult(ctx context.Context, r mapthepast.Result) (string, error)
	UpdateSessionProgress(ctx context.Context, id string, p mapthepast.Progress) error
	FinalizeSession(ctx context.Context, id string, sum mapthepast.Summary) error
}

// Picker chooses the next event for a player.
type Picker interface {
	Next(ctx context.Context, player string, f mapthepast.Filters, played []string) (selector.Selection, error)
}

// Recorder remembers accepted events per player for cross-session repeat
// avoidance.
type Recorder interface {
	Push(ctx context.Context, player, slug string) error
}

type Config struct {
	Round           round.Config
	TeardownTimeout time.Duration
}

// Deps are the engine's collaborators. Recent and Publisher are optional.
type Deps struct {
	Store     Store
	Picker    Picker
	Scorer    *round.Scorer
	Recent    Recorder
	Publisher Publisher
}

type StartRequest struct {
	PlayerName   string             `json:"playerName"`
	Mode         mapthepast.Mode    `json:"mode,omitempty"`
	TargetEvents int                `json:"targetEvents,omitempty"`
	Filters      mapthepast.Filters `json:"filters"`
}

// RoundView is the state of a freshly started round.
type RoundView struct {
	round.Snapshot
	RepeatsPossible bool `json:"repeatsPossible"`
}

type SubmitView struct {
	Attempt  mapthepast.Attempt `json:"attempt"`
	CanRetry bool               `json:"canRetry"`
}

type AcceptView struct {
	Result        mapthepast.Result   `json:"result"`
	Reveal        round.Reveal        `json:"reveal"`
	Progress      mapthepast.Progress `json:"progress"`
	TargetReached bool                `json:"targetReached"`
}

type Engine struct {
	ctx      context.Context
	logger   *slog.Logger
	cfg      Config
	store    Store
	picker   Picker
	scorer   *round.Scorer
	recent   Recorder
	pub      Publisher
	registry *Registry
	now      func() time.Time

	bg sync.WaitGroup
}

// New builds an engine. ctx bounds the round countdowns; background
// teardowns outlive it up to their own timeout.
func New(ctx context.Context, logger *slog.Logger, cfg Config, deps Deps) *Engine {
	if cfg.TeardownTimeout <= 0 {
		cfg.TeardownTimeout = DefaultTeardownTimeout
	}
	if deps.Scorer == nil {
		deps.Scorer = round.NewScorer(nil)
	}
	if deps.Publisher == nil {
		deps.Publisher = nopPublisher{}
	}
	return &Engine{
		ctx:      ctx,
		logger:   logger,
		cfg:      cfg,
		store:    deps.Store,
		picker:   deps.Picker,
		scorer:   deps.Scorer,
		recent:   deps.Recent,
		pub:      deps.Publisher,
		registry: NewRegistry(),
		now:      time.Now,
	}
}

// Registry exposes the live session handles.
func (e *Engine) Registry() *Registry { return e.registry }

// StartSession validates req, records a new session and keeps its handle
// live.
func (e *Engine) StartSession(ctx context.Context, req StartRequest) (mapthepast.Session, error) {
	name := strings.TrimSpace(req.PlayerName)
	if name == "" {
		return mapthepast.Session{}, ErrPlayerNameRequired
	}
	switch req.Mode {
	case "", mapthepast.ModeEndless:
		req.Mode = mapthepast.ModeEndless
		req.TargetEvents = 0
	case mapthepast.ModeFixed:
		if req.TargetEvents <= 0 {
			return mapthepast.Session{}, ErrInvalidMode
		}
	default:
		return mapthepast.Session{}, ErrInvalidMode
	}

	now := e.now().UTC()
	sess := mapthepast.Session{
		PlayerName:   name,
		StartedAt:    now,
		Mode:         req.Mode,
		TargetEvents: req.TargetEvents,
		Filters:      req.Filters,
		Status:       mapthepast.SessionStatusActive,
	}
	id, err := e.store.CreateSession(ctx, sess)
	if err != nil {
		e.logger.Error("creating session failed", "player", name, "error", err)
		return mapthepast.Session{}, fmt.Errorf("creating session: %w", err)
	}
	sess.ID = id

	h := &Handle{
		sess:     sess,
		agg:      session.NewAggregator(),
		round:    round.New(e.ctx, e.logger.With("session_id", id), e.cfg.Round, e.scorer),
		lastSeen: now,
	}
	e.registry.Put(id, h)
	e.logger.Info("session started", "session_id", id, "player", name, "mode", req.Mode)
	return sess, nil
}

// handle looks up and locks the live handle for id.
func (e *Engine) handle(id string) (*Handle, error) {
	h, ok := e.registry.Get(id)
	if !ok {
		return nil, ErrSessionNotFound
	}
	h.mu.Lock()
	h.lastSeen = e.now()
	return h, nil
}

// targetReached counts distinct events, so a repeat within the session
// does not advance a fixed-mode target.
func (e *Engine) targetReached(h *Handle) bool {
	return h.sess.Mode == mapthepast.ModeFixed && h.agg.Totals().TotalEvents >= h.sess.TargetEvents
}

// Session returns the current session record.
func (e *Engine) Session(id string) (mapthepast.Session, error) {
	h, err := e.handle(id)
	if err != nil {
		return mapthepast.Session{}, err
	}
	defer h.mu.Unlock()
	return h.sess, nil
}

// NextRound selects an event and starts a round for it.
func (e *Engine) NextRound(ctx context.Context, id string) (RoundView, error) {
	h, err := e.handle(id)
	if err != nil {
		return RoundView{}, err
	}
	defer h.mu.Unlock()

	if h.finalized {
		return RoundView{}, ErrSessionClosed
	}
	if e.targetReached(h) {
		return RoundView{}, ErrTargetReached
	}
	if st := h.round.State(); st != round.StateIdle && st != round.StateAccepted {
		return RoundView{}, round.ErrInvalidTransition
	}

	sel, err := e.picker.Next(ctx, h.sess.PlayerName, h.sess.Filters, h.agg.PlayedSlugs())
	if err != nil {
		return RoundView{}, err
	}
	if err := h.round.Start(sel.Event); err != nil {
		return RoundView{}, err
	}
	h.repeats = sel.RepeatsPossible

	view := RoundView{Snapshot: h.round.Snapshot(), RepeatsPossible: sel.RepeatsPossible}
	e.pub.Publish(id, Event{Type: EventRoundStarted, SessionID: id, Data: view})
	return view, nil
}

// Round returns the current round snapshot.
func (e *Engine) Round(id string) (RoundView, error) {
	h, err := e.handle(id)
	if err != nil {
		return RoundView{}, err
	}
	defer h.mu.Unlock()
	return RoundView{Snapshot: h.round.Snapshot(), RepeatsPossible: h.repeats}, nil
}

// Submit scores a guess for the current round.
func (e *Engine) Submit(id string, g round.Guess) (SubmitView, error) {
	h, err := e.handle(id)
	if err != nil {
		return SubmitView{}, err
	}
	defer h.mu.Unlock()

	if h.finalized {
		return SubmitView{}, ErrSessionClosed
	}

	a, err := h.round.Submit(g)
	if err != nil {
		return SubmitView{}, err
	}
	view := SubmitView{Attempt: a, CanRetry: h.round.CanRetry()}
	e.pub.Publish(id, Event{Type: EventAttemptScored, SessionID: id, Data: view})
	return view, nil
}

// Retry discards the submitted attempt and returns the recenter hint.
func (e *Engine) Retry(id string) (round.Recenter, error) {
	h, err := e.handle(id)
	if err != nil {
		return round.Recenter{}, err
	}
	defer h.mu.Unlock()

	if h.finalized {
		return round.Recenter{}, ErrSessionClosed
	}

	hint, err := h.round.Retry()
	if err != nil {
		return round.Recenter{}, err
	}
	e.pub.Publish(id, Event{Type: EventRoundRetry, SessionID: id, Data: hint})
	return hint, nil
}

// Accept commits the submitted attempt, persists it and updates the
// session totals. Store failures are reported as events and logged; the
// local session state is kept.
func (e *Engine) Accept(ctx context.Context, id string) (AcceptView, error) {
	h, err := e.handle(id)
	if err != nil {
		return AcceptView{}, err
	}
	defer h.mu.Unlock()

	if h.finalized {
		return AcceptView{}, ErrSessionClosed
	}

	res, err := h.round.Accept()
	if err != nil {
		return AcceptView{}, err
	}
	reveal, _ := h.round.Reveal()

	res.SessionID = id
	res.PlayerName = h.sess.PlayerName
	res.CreatedAt = e.now().UTC()

	if rid, err := e.store.InsertResult(ctx, res); err != nil {
		e.storeError(id, "insert result", err)
	} else {
		res.ID = rid
	}

	h.agg.Add(res)
	progress := h.agg.Totals()
	h.sess.TotalEvents = progress.TotalEvents
	h.sess.TotalPoints = progress.TotalPoints
	h.sess.AverageScore = progress.AverageScore

	if err := e.store.UpdateSessionProgress(ctx, id, progress); err != nil {
		e.storeError(id, "update progress", err)
	}
	if e.recent != nil {
		if err := e.recent.Push(ctx, h.sess.PlayerName, res.EventSlug); err != nil {
			e.logger.Warn("recording recent event failed", "session_id", id, "slug", res.EventSlug, "error", err)
		}
	}

	view := AcceptView{
		Result:        res,
		Reveal:        reveal,
		Progress:      progress,
		TargetReached: e.targetReached(h),
	}
	e.pub.Publish(id, Event{Type: EventResultAccepted, SessionID: id, Data: view})
	return view, nil
}

func (e *Engine) storeError(id, op string, err error) {
	e.logger.Error("store call failed", "session_id", id, "op", op, "error", err)
	e.pub.Publish(id, Event{Type: EventStoreError, SessionID: id, Data: map[string]string{"op": op}})
}

// Finish finalizes the session. A session that is already finalized
// returns its summary again. When the store fails the session stays
// active and Finish may be retried.
func (e *Engine) Finish(ctx context.Context, id, playerName string) (mapthepast.Summary, error) {
	h, err := e.handle(id)
	if err != nil {
		return mapthepast.Summary{}, err
	}
	defer h.mu.Unlock()
	return e.finishLocked(ctx, h, playerName)
}

func (e *Engine) finishLocked(ctx context.Context, h *Handle, playerName string) (mapthepast.Summary, error) {
	if h.finalized {
		return h.summary, nil
	}
	id := h.sess.ID

	sum, err := h.agg.Finalize(h.sess, strings.TrimSpace(playerName), e.now().UTC())
	if err != nil {
		return mapthepast.Summary{}, err
	}

	err = e.store.FinalizeSession(ctx, id, sum)
	switch {
	case errors.Is(err, session.ErrAlreadyFinalized):
		e.logger.Info("session was finalized elsewhere", "session_id", id)
	case err != nil:
		e.storeError(id, "finalize session", err)
		return mapthepast.Summary{}, fmt.Errorf("finalizing session: %w", err)
	}

	session.Apply(&h.sess, sum)
	h.finalized = true
	h.summary = sum
	h.round.Close()

	e.logger.Info("session finalized", "session_id", id, "status", sum.Status, "total_points", sum.TotalPoints)
	e.pub.Publish(id, Event{Type: EventSessionFinalized, SessionID: id, Data: sum})
	return sum, nil
}

// Teardown drops the session handle and finalizes it in the background
// with its own timeout. Failures are logged and otherwise ignored.
func (e *Engine) Teardown(id string) error {
	h, ok := e.registry.Remove(id)
	if !ok {
		return ErrSessionNotFound
	}

	e.bg.Add(1)
	go func() {
		defer e.bg.Done()
		ctx, cancel := context.WithTimeout(context.WithoutCancel(e.ctx), e.cfg.TeardownTimeout)
		defer cancel()

		h.mu.Lock()
		defer h.mu.Unlock()
		if _, err := e.finishLocked(ctx, h, ""); err != nil {
			e.logger.Warn("teardown finalize failed", "session_id", id, "error", err)
		}
		h.round.Close()
	}()
	return nil
}

// Reap tears down every handle idle for longer than maxIdle and returns
// how many it dropped.
func (e *Engine) Reap(maxIdle time.Duration) int {
	ids := e.registry.idle(e.now().Add(-maxIdle))
	n := 0
	for _, id := range ids {
		if e.Teardown(id) == nil {
			n++
		}
	}
	if n > 0 {
		e.logger.Info("reaped idle sessions", "count", n)
	}
	return n
}

// Wait blocks until background teardowns have finished.
func (e *Engine) Wait() {
	e.bg.Wait()
}
