package round

import (
	"context"
	"errors"
	"log/slog"
	"testing"
	"time"

	"github.com/mapthepast/mapthepast/internal/mapthepast"
	"github.com/mapthepast/mapthepast/internal/region"
)

var lima = mapthepast.Event{
	Slug:             "founding-of-lima",
	Title:            "Founding of Lima",
	Year:             1535,
	Coords:           mapthepast.Coordinates{Lat: -12.0464, Lon: -77.0428},
	Region:           "South America",
	Country:          "Peru",
	City:             "Lima",
	NotableLocation:  "Plaza Mayor",
	Caption:          "Francisco Pizarro founds the City of Kings.",
	EraDurationYears: 300,
}

func newMachine(t *testing.T) *Machine {
	t.Helper()
	regions := region.New([]region.Entry{{City: "Lima", Country: "Peru", Region: "South America"}})
	m := New(context.Background(), slog.Default(), Config{TimerSeconds: 30}, NewScorer(regions))
	t.Cleanup(m.Close)
	return m
}

func guess(lat, lon float64, year int) Guess {
	return Guess{Coords: &mapthepast.Coordinates{Lat: lat, Lon: lon}, Year: &year}
}

func TestPerfectGuess(t *testing.T) {
	m := newMachine(t)
	ev := mapthepast.Event{Slug: "origin", Year: 2000, EraDurationYears: 100}
	if err := m.Start(ev); err != nil {
		t.Fatalf("start: %v", err)
	}

	a, err := m.Submit(guess(0, 0, 2000))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if a.DistanceKm != 0 || a.YearDiff != 0 {
		t.Errorf("distance/yearDiff = %v/%v, want 0/0", a.DistanceKm, a.YearDiff)
	}
	if a.Score != 2100 {
		t.Errorf("score = %d, want 2100", a.Score)
	}
	if a.AttemptNumber != 1 {
		t.Errorf("attempt = %d, want 1", a.AttemptNumber)
	}
}

func TestSubmitRejectsIncompleteGuess(t *testing.T) {
	m := newMachine(t)
	m.Start(lima)

	year := 1535
	tests := []struct {
		name string
		g    Guess
	}{
		{"no coordinates", Guess{Year: &year}},
		{"no year", Guess{Coords: &mapthepast.Coordinates{}}},
		{"out of range", Guess{Coords: &mapthepast.Coordinates{Lat: 120}, Year: &year}},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			if _, err := m.Submit(tt.g); !errors.Is(err, ErrInvalidGuess) {
				t.Fatalf("err = %v, want ErrInvalidGuess", err)
			}
			if got := m.State(); got != StateAwaitingGuess {
				t.Errorf("state = %s, want %s", got, StateAwaitingGuess)
			}
		})
	}
}

func TestRetryBoundedToThreeAttempts(t *testing.T) {
	m := newMachine(t)
	m.Start(lima)

	for attempt := 1; attempt <= mapthepast.MaxAttempts; attempt++ {
		a, err := m.Submit(guess(-13, -76, 1500))
		if err != nil {
			t.Fatalf("attempt %d submit: %v", attempt, err)
		}
		if a.AttemptNumber != attempt {
			t.Errorf("attempt number = %d, want %d", a.AttemptNumber, attempt)
		}
		if attempt == mapthepast.MaxAttempts {
			break
		}
		if !m.CanRetry() {
			t.Fatalf("attempt %d: expected retry to be available", attempt)
		}
		if _, err := m.Retry(); err != nil {
			t.Fatalf("attempt %d retry: %v", attempt, err)
		}
	}

	if m.CanRetry() {
		t.Error("CanRetry after the final attempt")
	}
	if _, err := m.Retry(); !errors.Is(err, ErrNoRetriesLeft) {
		t.Fatalf("retry after final attempt: err = %v, want ErrNoRetriesLeft", err)
	}

	res, err := m.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	if res.AttemptNumber != mapthepast.MaxAttempts {
		t.Errorf("result attempt = %d, want %d", res.AttemptNumber, mapthepast.MaxAttempts)
	}
}

func TestRetryReturnsRecenterHint(t *testing.T) {
	m := newMachine(t)
	m.Start(lima)
	m.Submit(guess(-12.1, -77.0, 1535))

	hint, err := m.Retry()
	if err != nil {
		t.Fatalf("retry: %v", err)
	}
	if hint.Center.Lat != -12.1 || hint.Center.Lon != -77.0 {
		t.Errorf("center = %v, want the previous guess", hint.Center)
	}
	if hint.Zoom != 8 {
		t.Errorf("zoom = %v, want 8 for a close miss", hint.Zoom)
	}
	if s := m.Snapshot(); s.LastAttempt != nil {
		t.Error("retry should discard the previous attempt")
	}
}

func TestTransitionsGuarded(t *testing.T) {
	m := newMachine(t)

	if _, err := m.Submit(guess(0, 0, 0)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("submit while idle: err = %v", err)
	}
	if _, err := m.Accept(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("accept while idle: err = %v", err)
	}

	m.Start(lima)
	if err := m.Start(lima); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("start during a round: err = %v", err)
	}
	if _, err := m.Retry(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("retry before submit: err = %v", err)
	}

	m.Submit(guess(0, 0, 0))
	if _, err := m.Submit(guess(0, 0, 0)); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double submit: err = %v", err)
	}
	m.Accept()
	if _, err := m.Accept(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("double accept: err = %v", err)
	}
	if _, err := m.Retry(); !errors.Is(err, ErrInvalidTransition) {
		t.Errorf("retry after accept: err = %v", err)
	}
	if err := m.Start(lima); err != nil {
		t.Errorf("start after accept: %v", err)
	}
}

func TestAnswerWithheldUntilAccepted(t *testing.T) {
	m := newMachine(t)
	m.Start(lima)

	if s := m.Snapshot(); s.Reveal != nil {
		t.Fatal("answer leaked while awaiting a guess")
	}
	m.Submit(guess(-12, -77, 1535))
	if _, err := m.Reveal(); !errors.Is(err, ErrNotRevealed) {
		t.Fatalf("reveal before accept: err = %v", err)
	}

	res, err := m.Accept()
	if err != nil {
		t.Fatalf("accept: %v", err)
	}
	r, err := m.Reveal()
	if err != nil {
		t.Fatalf("reveal: %v", err)
	}
	if r.Year != 1535 || r.Caption == "" || r.NotableLocation != "Plaza Mayor" {
		t.Errorf("reveal = %+v", r)
	}
	if res.EventSlug != lima.Slug || res.Country != "Peru" {
		t.Errorf("result = %+v", res)
	}
}

func TestLocationBonusFromPlaceText(t *testing.T) {
	m := newMachine(t)
	m.Start(lima)

	g := guess(-12.0464, -77.0428, 1535)
	g.City, g.Country = "Lima", "peru"
	a, err := m.Submit(g)
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if a.Score != 2300 {
		t.Errorf("score = %d, want 2300", a.Score)
	}
}

func TestZeroEraDurationFlagged(t *testing.T) {
	m := newMachine(t)
	m.Start(mapthepast.Event{Slug: "broken", Year: 100})

	a, err := m.Submit(guess(0, 0, 100))
	if err != nil {
		t.Fatalf("submit: %v", err)
	}
	if a.Score != 0 {
		t.Errorf("score = %d, want 0", a.Score)
	}
	if a.IntegrityError == "" {
		t.Error("expected the integrity problem to be flagged on the attempt")
	}
}

func TestCountdownTiming(t *testing.T) {
	m := newMachine(t)
	m.Start(lima)

	for i := 0; i < 12; i++ {
		m.Tick()
	}
	if s := m.Snapshot(); s.TimeLeft != 18 {
		t.Errorf("time left = %d, want 18", s.TimeLeft)
	}

	a, _ := m.Submit(guess(0, 0, 0))
	if a.TimeToGuessSeconds != 12 {
		t.Errorf("time to guess = %d, want 12", a.TimeToGuessSeconds)
	}

	m.Tick()
	if s := m.Snapshot(); s.TimeLeft != 18 {
		t.Errorf("timer kept running after submit: time left = %d", s.TimeLeft)
	}

	m.Retry()
	if s := m.Snapshot(); s.TimeLeft != 30 {
		t.Errorf("time left after retry = %d, want 30", s.TimeLeft)
	}
}

func TestCountdownStopsAtZero(t *testing.T) {
	c := NewCountdown(2, 0)
	c.Start(context.Background())

	c.Tick()
	if !c.Running() {
		t.Fatal("stopped early")
	}
	c.Tick()
	c.Tick()
	if c.Running() || c.Left() != 0 {
		t.Errorf("running=%v left=%d, want stopped at 0", c.Running(), c.Left())
	}
	if c.Elapsed() != 2 {
		t.Errorf("elapsed = %d, want 2", c.Elapsed())
	}
}

func TestCountdownTicker(t *testing.T) {
	c := NewCountdown(3, 5*time.Millisecond)
	c.Start(context.Background())
	defer c.Stop()

	deadline := time.Now().Add(2 * time.Second)
	for c.Running() && time.Now().Before(deadline) {
		time.Sleep(5 * time.Millisecond)
	}
	if c.Left() != 0 {
		t.Errorf("left = %d, want 0", c.Left())
	}
}

func TestSubmitAllowedAfterTimeout(t *testing.T) {
	m := newMachine(t)
	m.Start(lima)
	for i := 0; i < 40; i++ {
		m.Tick()
	}
	a, err := m.Submit(guess(-12, -77, 1535))
	if err != nil {
		t.Fatalf("submit after timeout: %v", err)
	}
	if a.TimeToGuessSeconds != 30 {
		t.Errorf("time to guess = %d, want 30", a.TimeToGuessSeconds)
	}
}
