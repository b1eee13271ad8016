package server

import (
	"bytes"
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"nhooyr.io/websocket"

	"github.com/mapthepast/mapthepast/internal/database"
	"github.com/mapthepast/mapthepast/internal/game"
	"github.com/mapthepast/mapthepast/internal/geocode"
	"github.com/mapthepast/mapthepast/internal/mapthepast"
	"github.com/mapthepast/mapthepast/internal/migrations"
	"github.com/mapthepast/mapthepast/internal/round"
	"github.com/mapthepast/mapthepast/internal/selector"
	"github.com/mapthepast/mapthepast/internal/store"
)

var moonLanding = mapthepast.Event{
	Slug:             "moon-landing",
	Title:            "Moon Landing",
	Year:             1969,
	Coords:           mapthepast.Coordinates{Lat: 28.5721, Lon: -80.648},
	Theme:            "science",
	Era:              "Space Age",
	Region:           "North America",
	Country:          "United States",
	Caption:          "Apollo 11 lifts off.",
	EraDurationYears: 50,
}

type stubGeocoder struct {
	err error
}

func (g stubGeocoder) ResolvePlace(_ context.Context, _ string) (mapthepast.Coordinates, error) {
	return mapthepast.Coordinates{Lat: 1.5, Lon: 2.5}, g.err
}

type firstRand struct{}

func (firstRand) IntN(int) int { return 0 }

type testEnv struct {
	router http.Handler
	engine *game.Engine
	store  *store.DocStore
	broker *Broker
}

func newTestEnv(t *testing.T, geo geocode.Geocoder) testEnv {
	t.Helper()
	ctx := context.Background()

	db, err := database.Open(ctx, database.MemoryPath)
	if err != nil {
		t.Fatalf("open db: %v", err)
	}
	t.Cleanup(func() { db.Close() })
	if err := migrations.Run(db); err != nil {
		t.Fatalf("migrations: %v", err)
	}

	st := store.New(db)
	if err := st.UpsertEvents(ctx, []mapthepast.Event{moonLanding}); err != nil {
		t.Fatalf("seed events: %v", err)
	}

	broker := NewBroker()
	engine := game.New(ctx, slog.Default(), game.Config{}, game.Deps{
		Store:     st,
		Picker:    selector.New(slog.Default(), st, st, 50, firstRand{}),
		Scorer:    round.NewScorer(nil),
		Publisher: broker,
	})
	t.Cleanup(engine.Wait)

	if geo == nil {
		geo = stubGeocoder{}
	}
	router := NewRouter(slog.Default(), Deps{
		Engine:   engine,
		Queries:  st,
		Geocoder: geo,
		Broker:   broker,
	})
	return testEnv{router: router, engine: engine, store: st, broker: broker}
}

func (e testEnv) do(t *testing.T, method, path string, body any) *httptest.ResponseRecorder {
	t.Helper()
	var buf bytes.Buffer
	if body != nil {
		if err := json.NewEncoder(&buf).Encode(body); err != nil {
			t.Fatal(err)
		}
	}
	req := httptest.NewRequest(method, path, &buf)
	rec := httptest.NewRecorder()
	e.router.ServeHTTP(rec, req)
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	if err := json.NewDecoder(rec.Body).Decode(&v); err != nil {
		t.Fatalf("decoding %q: %v", rec.Body.String(), err)
	}
	return v
}

func (e testEnv) startSession(t *testing.T) string {
	t.Helper()
	rec := e.do(t, http.MethodPost, "/api/sessions", map[string]any{"playerName": "ada"})
	if rec.Code != http.StatusCreated {
		t.Fatalf("start session status = %d, body = %s", rec.Code, rec.Body)
	}
	return decode[mapthepast.Session](t, rec).ID
}

func TestStartSessionValidation(t *testing.T) {
	env := newTestEnv(t, nil)

	tests := []struct {
		name       string
		body       string
		wantStatus int
	}{
		{"ok", `{"playerName":"ada"}`, http.StatusCreated},
		{"fixed", `{"playerName":"ada","mode":"fixed","targetEvents":5}`, http.StatusCreated},
		{"blank name", `{"playerName":" "}`, http.StatusBadRequest},
		{"bad mode", `{"playerName":"ada","mode":"blitz"}`, http.StatusBadRequest},
		{"bad json", `{`, http.StatusBadRequest},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodPost, "/api/sessions", strings.NewReader(tt.body))
			rec := httptest.NewRecorder()
			env.router.ServeHTTP(rec, req)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d (body %s)", rec.Code, tt.wantStatus, rec.Body)
			}
		})
	}
}

func TestRoundFlow(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.startSession(t)
	base := "/api/sessions/" + id

	rec := env.do(t, http.MethodPost, base+"/round/retry", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("retry before round status = %d, want 409", rec.Code)
	}

	rec = env.do(t, http.MethodPost, base+"/rounds", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("next round status = %d, body = %s", rec.Code, rec.Body)
	}
	view := decode[game.RoundView](t, rec)
	if view.EventSlug != moonLanding.Slug || view.Reveal != nil || view.TimeLeft != round.DefaultTimerSeconds {
		t.Errorf("round view = %+v", view)
	}

	rec = env.do(t, http.MethodPost, base+"/round/guess", map[string]any{"lat": 10.0})
	if rec.Code != http.StatusBadRequest {
		t.Errorf("incomplete guess status = %d, want 400", rec.Code)
	}

	rec = env.do(t, http.MethodPost, base+"/round/guess", map[string]any{
		"lat": moonLanding.Coords.Lat, "lon": moonLanding.Coords.Lon, "year": 1969,
	})
	if rec.Code != http.StatusOK {
		t.Fatalf("guess status = %d, body = %s", rec.Code, rec.Body)
	}
	sub := decode[game.SubmitView](t, rec)
	if sub.Attempt.Score != 2100 || !sub.CanRetry {
		t.Errorf("submit = %+v", sub)
	}

	rec = env.do(t, http.MethodGet, base+"/round", nil)
	snap := decode[game.RoundView](t, rec)
	if snap.State != round.StateSubmitted || snap.Reveal != nil {
		t.Errorf("snapshot before accept = %+v", snap)
	}

	rec = env.do(t, http.MethodPost, base+"/round/accept", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("accept status = %d, body = %s", rec.Code, rec.Body)
	}
	acc := decode[game.AcceptView](t, rec)
	if acc.Reveal.Caption != moonLanding.Caption || acc.Progress.TotalPoints != 2100 {
		t.Errorf("accept = %+v", acc)
	}

	rec = env.do(t, http.MethodPost, base+"/finish", nil)
	if rec.Code != http.StatusOK {
		t.Fatalf("finish status = %d, body = %s", rec.Code, rec.Body)
	}
	sum := decode[mapthepast.Summary](t, rec)
	if sum.Status != mapthepast.SessionStatusCompleted || sum.TotalPoints != 2100 {
		t.Errorf("summary = %+v", sum)
	}

	stored, err := env.store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if stored.EndedAt == nil || stored.TotalPoints != 2100 {
		t.Errorf("stored session = %+v", stored)
	}

	rec = env.do(t, http.MethodGet, "/api/leaderboard?limit=5", nil)
	board := decode[[]mapthepast.Session](t, rec)
	if len(board) != 1 || board[0].ID != id {
		t.Errorf("leaderboard = %+v", board)
	}

	rec = env.do(t, http.MethodGet, "/api/players/ada/summary", nil)
	stats := decode[mapthepast.PlayerStats](t, rec)
	if stats.TotalEvents != 1 || stats.PerfectGuesses != 1 {
		t.Errorf("player summary = %+v", stats)
	}
}

func TestExhaustedCatalog(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodPost, "/api/sessions", map[string]any{
		"playerName": "ada",
		"filters":    map[string]string{"theme": "sports"},
	})
	id := decode[mapthepast.Session](t, rec).ID

	rec = env.do(t, http.MethodPost, "/api/sessions/"+id+"/rounds", nil)
	if rec.Code != http.StatusConflict {
		t.Errorf("status = %d, want 409", rec.Code)
	}
}

func TestUnknownSession(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, path := range []string{"/rounds", "/round/guess", "/finish", "/teardown"} {
		rec := env.do(t, http.MethodPost, "/api/sessions/nope"+path, map[string]any{})
		if rec.Code != http.StatusNotFound {
			t.Errorf("POST %s status = %d, want 404", path, rec.Code)
		}
	}
}

func TestTeardown(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.startSession(t)

	rec := env.do(t, http.MethodPost, "/api/sessions/"+id+"/teardown", nil)
	if rec.Code != http.StatusAccepted {
		t.Fatalf("teardown status = %d, want 202", rec.Code)
	}
	env.engine.Wait()

	stored, err := env.store.GetSession(context.Background(), id)
	if err != nil {
		t.Fatal(err)
	}
	if stored.Status != mapthepast.SessionStatusAbandoned {
		t.Errorf("status = %q, want abandoned", stored.Status)
	}
	if rec := env.do(t, http.MethodGet, "/api/sessions/"+id, nil); rec.Code != http.StatusNotFound {
		t.Errorf("get after teardown status = %d, want 404", rec.Code)
	}
}

func TestLeaderboardLimit(t *testing.T) {
	env := newTestEnv(t, nil)
	for _, q := range []string{"0", "abc", "1000"} {
		rec := env.do(t, http.MethodGet, "/api/leaderboard?limit="+q, nil)
		if rec.Code != http.StatusBadRequest {
			t.Errorf("limit=%s status = %d, want 400", q, rec.Code)
		}
	}
}

func TestFilters(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/api/filters", nil)
	opts := decode[mapthepast.FilterOptions](t, rec)
	if len(opts.Themes) != 1 || opts.Themes[0] != "science" {
		t.Errorf("filters = %+v", opts)
	}
}

func TestCORS(t *testing.T) {
	env := newTestEnv(t, nil)
	router := NewRouter(slog.Default(), Deps{
		Engine:      env.engine,
		Queries:     env.store,
		Geocoder:    stubGeocoder{},
		Broker:      env.broker,
		CORSOrigins: []string{"http://localhost:5173"},
	})

	tests := []struct {
		origin string
		want   string
	}{
		{"http://localhost:5173", "http://localhost:5173"},
		{"http://evil.example", ""},
	}
	for _, tt := range tests {
		t.Run(tt.origin, func(t *testing.T) {
			req := httptest.NewRequest(http.MethodGet, "/api/filters", nil)
			req.Header.Set("Origin", tt.origin)
			rec := httptest.NewRecorder()
			router.ServeHTTP(rec, req)
			if got := rec.Header().Get("Access-Control-Allow-Origin"); got != tt.want {
				t.Errorf("Allow-Origin = %q, want %q", got, tt.want)
			}
		})
	}
}

func TestGeocode(t *testing.T) {
	tests := []struct {
		name       string
		geo        geocode.Geocoder
		query      string
		wantStatus int
	}{
		{"ok", stubGeocoder{}, "?q=Lima", http.StatusOK},
		{"missing q", stubGeocoder{}, "", http.StatusBadRequest},
		{"not found", stubGeocoder{err: geocode.ErrPlaceNotFound}, "?q=Atlantis", http.StatusNotFound},
		{"unavailable", stubGeocoder{err: geocode.ErrUnavailable}, "?q=Lima", http.StatusBadGateway},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			env := newTestEnv(t, tt.geo)
			rec := env.do(t, http.MethodGet, "/api/geocode"+tt.query, nil)
			if rec.Code != tt.wantStatus {
				t.Errorf("status = %d, want %d", rec.Code, tt.wantStatus)
			}
		})
	}
}

func TestSessionSocket(t *testing.T) {
	env := newTestEnv(t, nil)
	id := env.startSession(t)

	srv := httptest.NewServer(env.router)
	defer srv.Close()

	ctx, cancel := context.WithTimeout(context.Background(), 5*time.Second)
	defer cancel()

	wsURL := "ws" + srv.URL[len("http"):] + "/ws/sessions/" + id
	conn, _, err := websocket.Dial(ctx, wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.CloseNow()

	// The subscription is registered after the upgrade; publish until the
	// feed delivers so the test does not depend on that ordering.
	go func() {
		tick := time.NewTicker(20 * time.Millisecond)
		defer tick.Stop()
		for {
			select {
			case <-ctx.Done():
				return
			case <-tick.C:
				env.broker.Publish(id, game.Event{Type: game.EventRoundStarted, SessionID: id})
			}
		}
	}()

	_, data, err := conn.Read(ctx)
	if err != nil {
		t.Fatalf("read: %v", err)
	}
	var ev game.Event
	if err := json.Unmarshal(data, &ev); err != nil {
		t.Fatal(err)
	}
	if ev.Type != game.EventRoundStarted || ev.SessionID != id {
		t.Errorf("event = %+v", ev)
	}
	conn.Close(websocket.StatusNormalClosure, "done")
}

func TestSessionSocketUnknown(t *testing.T) {
	env := newTestEnv(t, nil)
	rec := env.do(t, http.MethodGet, "/ws/sessions/nope", nil)
	if rec.Code != http.StatusNotFound {
		t.Errorf("status = %d, want 404", rec.Code)
	}
}

func TestBroker(t *testing.T) {
	b := NewBroker()
	ch := b.Subscribe("s1")
	other := b.Subscribe("s2")

	b.Publish("s1", game.Event{Type: game.EventResultAccepted, SessionID: "s1"})

	select {
	case data := <-ch:
		if !strings.Contains(string(data), game.EventResultAccepted) {
			t.Errorf("data = %s", data)
		}
	default:
		t.Fatal("no event delivered")
	}
	select {
	case data := <-other:
		t.Errorf("other session received %s", data)
	default:
	}

	b.Unsubscribe("s1", ch)
	b.Unsubscribe("s2", other)
	if len(b.subs) != 0 {
		t.Errorf("subs = %v, want empty", b.subs)
	}
}
