// Package round governs a single guessing round: countdown, submission,
// bounded retries and acceptance.
package round

import (
	"context"
	"errors"
	"log/slog"
	"sync"
	"time"

	"github.com/mapthepast/mapthepast/internal/geo"
	"github.com/mapthepast/mapthepast/internal/mapthepast"
)

// DefaultTimerSeconds is the countdown length of every attempt.
const DefaultTimerSeconds = 30

type State string

const (
	StateIdle          State = "idle"
	StateAwaitingGuess State = "awaiting_guess"
	StateSubmitted     State = "submitted"
	StateAccepted      State = "accepted"
)

var (
	ErrInvalidGuess      = errors.New("a location and a year are required")
	ErrInvalidTransition = errors.New("action not allowed in the current round state")
	ErrNoRetriesLeft     = errors.New("no retries left, the result must be accepted")
	ErrNotRevealed       = errors.New("answer is revealed only after the result is accepted")
)

// Guess is one submission. Coords and Year are required; City and Country
// are the optional place text used for the location bonus.
type Guess struct {
	Coords  *mapthepast.Coordinates
	Year    *int
	City    string
	Country string
}

// Recenter tells the map where to look for the next attempt.
type Recenter struct {
	Center mapthepast.Coordinates `json:"center"`
	Zoom   float64                `json:"zoom"`
}

// Reveal is the answer, shown once the round is accepted.
type Reveal struct {
	Coords          mapthepast.Coordinates `json:"coords"`
	Year            int                    `json:"year"`
	NotableLocation string                 `json:"notableLocation,omitempty"`
	City            string                 `json:"city,omitempty"`
	Country         string                 `json:"country,omitempty"`
	Caption         string                 `json:"caption,omitempty"`
}

// Snapshot is a read-only view of the round. The answer fields stay nil
// until the round is accepted.
type Snapshot struct {
	State         State               `json:"state"`
	EventSlug     string              `json:"slug,omitempty"`
	ImageURL      string              `json:"imageUrl,omitempty"`
	AttemptNumber int                 `json:"attemptNumber"`
	MaxAttempts   int                 `json:"maxAttempts"`
	TimeLeft      int                 `json:"timeLeft"`
	CanRetry      bool                `json:"canRetry"`
	LastAttempt   *mapthepast.Attempt `json:"lastAttempt,omitempty"`
	Reveal        *Reveal             `json:"reveal,omitempty"`
}

// Config tunes a Machine. A zero TickInterval means the caller drives the
// countdown through Tick.
type Config struct {
	TimerSeconds int
	TickInterval time.Duration
}

// Machine is the state machine for one round at a time. It is reused
// across rounds of a session.
type Machine struct {
	mu sync.Mutex

	ctx    context.Context
	logger *slog.Logger
	scorer *Scorer
	timer  *Countdown

	state   State
	event   mapthepast.Event
	attempt int
	last    *mapthepast.Attempt
}

// New returns an idle machine. ctx bounds the countdown goroutines.
func New(ctx context.Context, logger *slog.Logger, cfg Config, scorer *Scorer) *Machine {
	if cfg.TimerSeconds <= 0 {
		cfg.TimerSeconds = DefaultTimerSeconds
	}
	return &Machine{
		ctx:    ctx,
		logger: logger,
		scorer: scorer,
		timer:  NewCountdown(cfg.TimerSeconds, cfg.TickInterval),
		state:  StateIdle,
	}
}

// Start opens a new round for ev. Allowed when idle or after the previous
// round was accepted.
func (m *Machine) Start(ev mapthepast.Event) error {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateIdle && m.state != StateAccepted {
		return ErrInvalidTransition
	}
	m.event = ev
	m.attempt = 1
	m.last = nil
	m.state = StateAwaitingGuess
	m.timer.Start(m.ctx)
	return nil
}

// Submit scores a guess for the current attempt and stops the countdown.
// A guess that cannot be scored because of bad event data still completes
// with score 0 and IntegrityError set.
func (m *Machine) Submit(g Guess) (mapthepast.Attempt, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAwaitingGuess {
		return mapthepast.Attempt{}, ErrInvalidTransition
	}
	if g.Coords == nil || g.Year == nil || !geo.Valid(*g.Coords) {
		return mapthepast.Attempt{}, ErrInvalidGuess
	}

	m.timer.Stop()
	a, err := m.scorer.Evaluate(m.event, g)
	if err != nil {
		m.logger.Error("scoring failed", "slug", m.event.Slug, "error", err)
		a.IntegrityError = err.Error()
	}
	a.AttemptNumber = m.attempt
	a.TimeToGuessSeconds = m.timer.Elapsed()

	m.last = &a
	m.state = StateSubmitted
	return a, nil
}

// CanRetry reports whether Retry would succeed.
func (m *Machine) CanRetry() bool {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.canRetryLocked()
}

func (m *Machine) canRetryLocked() bool {
	return m.state == StateSubmitted && m.attempt < mapthepast.MaxAttempts
}

// Retry discards the submitted attempt and opens the next one. The
// returned hint recenters the map near the previous guess.
func (m *Machine) Retry() (Recenter, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateSubmitted {
		return Recenter{}, ErrInvalidTransition
	}
	if m.attempt >= mapthepast.MaxAttempts {
		return Recenter{}, ErrNoRetriesLeft
	}

	hint := Recenter{Center: m.last.Coords, Zoom: geo.RecenterZoom(m.last.DistanceKm)}
	m.attempt++
	m.last = nil
	m.state = StateAwaitingGuess
	m.timer.Start(m.ctx)
	return hint, nil
}

// Accept commits the submitted attempt. The returned Result carries the
// event snapshot; session fields are filled in by the caller.
func (m *Machine) Accept() (mapthepast.Result, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateSubmitted {
		return mapthepast.Result{}, ErrInvalidTransition
	}
	m.state = StateAccepted
	return newResult(m.event, *m.last), nil
}

// Reveal returns the answer of an accepted round.
func (m *Machine) Reveal() (Reveal, error) {
	m.mu.Lock()
	defer m.mu.Unlock()

	if m.state != StateAccepted {
		return Reveal{}, ErrNotRevealed
	}
	return m.revealLocked(), nil
}

func (m *Machine) revealLocked() Reveal {
	return Reveal{
		Coords:          m.event.Coords,
		Year:            m.event.Year,
		NotableLocation: m.event.NotableLocation,
		City:            m.event.City,
		Country:         m.event.Country,
		Caption:         m.event.Caption,
	}
}

// Tick advances the countdown by one unit. Used when the machine was
// configured without a tick interval.
func (m *Machine) Tick() {
	m.mu.Lock()
	defer m.mu.Unlock()
	if m.state == StateAwaitingGuess {
		m.timer.Tick()
	}
}

// State returns the current state.
func (m *Machine) State() State {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.state
}

// Event returns the event of the current or last round.
func (m *Machine) Event() mapthepast.Event {
	m.mu.Lock()
	defer m.mu.Unlock()
	return m.event
}

func (m *Machine) Snapshot() Snapshot {
	m.mu.Lock()
	defer m.mu.Unlock()

	s := Snapshot{
		State:         m.state,
		AttemptNumber: m.attempt,
		MaxAttempts:   mapthepast.MaxAttempts,
		TimeLeft:      m.timer.Left(),
		CanRetry:      m.canRetryLocked(),
	}
	if m.state == StateIdle {
		return s
	}
	s.EventSlug = m.event.Slug
	s.ImageURL = m.event.ImageURL
	if m.last != nil {
		a := *m.last
		s.LastAttempt = &a
	}
	if m.state == StateAccepted {
		r := m.revealLocked()
		s.Reveal = &r
	}
	return s
}

// Close stops the countdown. The machine must not be used afterwards.
func (m *Machine) Close() {
	m.timer.Stop()
}

func newResult(ev mapthepast.Event, a mapthepast.Attempt) mapthepast.Result {
	return mapthepast.Result{
		EventSlug:          ev.Slug,
		Title:              ev.Title,
		ActualYear:         ev.Year,
		GuessYear:          a.YearGuess,
		ActualCoords:       ev.Coords,
		GuessCoords:        a.Coords,
		DistanceKm:         a.DistanceKm,
		YearDiff:           a.YearDiff,
		Score:              a.Score,
		TimeToGuessSeconds: a.TimeToGuessSeconds,
		AttemptNumber:      a.AttemptNumber,
		NotableLocation:    ev.NotableLocation,
		City:               ev.City,
		Country:            ev.Country,
		Region:             ev.Region,
		Theme:              ev.Theme,
		Era:                ev.Era,
	}
}
