package server

import (
	"encoding/json"
	"net/http"

	openapi "github.com/swaggest/openapi-go"
	"github.com/swaggest/openapi-go/openapi3"

	"github.com/mapthepast/mapthepast/internal/game"
	"github.com/mapthepast/mapthepast/internal/mapthepast"
	"github.com/mapthepast/mapthepast/internal/round"
)

// ErrorResponse is returned for all error responses.
type ErrorResponse struct {
	Error string `json:"error"`
}

// HealthResponse maps each dependency name to its status.
type HealthResponse map[string]struct {
	Status string `json:"status"`
}

type sessionPath struct {
	ID string `path:"id"`
}

type leaderboardQuery struct {
	Limit int `query:"limit" minimum:"1" maximum:"100" description:"Number of sessions, default 10."`
}

type playerPath struct {
	Name string `path:"name"`
}

type geocodeQuery struct {
	Q string `query:"q" required:"true" description:"Place name or \"lat,lon\"."`
}

type guessInput struct {
	sessionPath
	GuessRequest
}

type finishInput struct {
	sessionPath
	FinishRequest
}

func newOpenAPISpec() *openapi3.Spec {
	r := openapi3.NewReflector()
	r.Spec.Info.Title = "MapThePast API"
	r.Spec.Info.Version = "0.1.0"
	r.Spec.Info.WithDescription("Guess evaluation and session progression for the MapThePast game.")

	add := func(method, path, summary, desc string, req any, resp any, status int, errs ...int) {
		op, _ := r.NewOperationContext(method, path)
		op.SetSummary(summary)
		op.SetDescription(desc)
		if req != nil {
			op.AddReqStructure(req)
		}
		op.AddRespStructure(resp, openapi.WithHTTPStatus(status))
		for _, code := range errs {
			op.AddRespStructure(ErrorResponse{}, openapi.WithHTTPStatus(code))
		}
		_ = r.AddOperation(op)
	}

	add(http.MethodGet, "/healthz", "Health check",
		"Returns the health status of backend dependencies.",
		nil, HealthResponse{}, http.StatusOK)

	add(http.MethodPost, "/api/sessions", "Start session",
		"Creates a session for a player. Fixed mode needs a positive targetEvents.",
		game.StartRequest{}, mapthepast.Session{}, http.StatusCreated,
		http.StatusBadRequest)

	add(http.MethodGet, "/api/sessions/{id}", "Get session",
		"Returns the live session record with running totals.",
		sessionPath{}, mapthepast.Session{}, http.StatusOK,
		http.StatusNotFound)

	add(http.MethodPost, "/api/sessions/{id}/rounds", "Next round",
		"Selects an event, avoiding recently played ones, and starts the countdown.",
		sessionPath{}, game.RoundView{}, http.StatusOK,
		http.StatusNotFound, http.StatusConflict)

	add(http.MethodGet, "/api/sessions/{id}/round", "Current round",
		"Returns the round snapshot. The answer is included only once accepted.",
		sessionPath{}, game.RoundView{}, http.StatusOK,
		http.StatusNotFound)

	add(http.MethodPost, "/api/sessions/{id}/round/guess", "Submit guess",
		"Scores a location and year guess for the current attempt.",
		guessInput{}, game.SubmitView{}, http.StatusOK,
		http.StatusBadRequest, http.StatusNotFound, http.StatusConflict)

	add(http.MethodPost, "/api/sessions/{id}/round/retry", "Retry",
		"Discards the submitted attempt and returns a map recenter hint. At most three attempts per round.",
		sessionPath{}, round.Recenter{}, http.StatusOK,
		http.StatusNotFound, http.StatusConflict)

	add(http.MethodPost, "/api/sessions/{id}/round/accept", "Accept result",
		"Commits the submitted attempt and reveals the answer.",
		sessionPath{}, game.AcceptView{}, http.StatusOK,
		http.StatusNotFound, http.StatusConflict)

	add(http.MethodPost, "/api/sessions/{id}/finish", "Finish session",
		"Finalizes the session. Repeated calls return the same summary.",
		finishInput{}, mapthepast.Summary{}, http.StatusOK,
		http.StatusNotFound, http.StatusInternalServerError)

	add(http.MethodPost, "/api/sessions/{id}/teardown", "Leave session",
		"Drops the session and finalizes it in the background.",
		sessionPath{}, nil, http.StatusAccepted,
		http.StatusNotFound)

	getEvents, _ := r.NewOperationContext(http.MethodGet, "/api/sessions/{id}/events")
	getEvents.SetSummary("SSE event stream")
	getEvents.SetDescription("Server-Sent Events stream of the session's round and result events.")
	getEvents.AddReqStructure(sessionPath{})
	getEvents.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusOK),
		openapi.WithContentType("text/event-stream"))
	_ = r.AddOperation(getEvents)

	getWS, _ := r.NewOperationContext(http.MethodGet, "/ws/sessions/{id}")
	getWS.SetSummary("WebSocket event feed")
	getWS.SetDescription("Upgrades to a WebSocket connection carrying the same events as the SSE stream.")
	getWS.AddReqStructure(sessionPath{})
	getWS.AddRespStructure(nil, openapi.WithHTTPStatus(http.StatusSwitchingProtocols),
		openapi.WithContentType("text/plain"))
	_ = r.AddOperation(getWS)

	add(http.MethodGet, "/api/leaderboard", "Leaderboard",
		"Top completed sessions by total points.",
		leaderboardQuery{}, []mapthepast.Session{}, http.StatusOK,
		http.StatusBadRequest)

	add(http.MethodGet, "/api/players/{name}/summary", "Player summary",
		"Lifetime statistics over every result the player has recorded.",
		playerPath{}, mapthepast.PlayerStats{}, http.StatusOK,
		http.StatusBadRequest)

	add(http.MethodGet, "/api/filters", "Filter options",
		"Distinct themes, eras and regions in the catalog.",
		nil, mapthepast.FilterOptions{}, http.StatusOK)

	add(http.MethodGet, "/api/geocode", "Geocode place",
		"Resolves a place name to coordinates.",
		geocodeQuery{}, GeocodeResponse{}, http.StatusOK,
		http.StatusBadRequest, http.StatusNotFound, http.StatusBadGateway)

	return r.Spec
}

func handleOpenAPI() http.HandlerFunc {
	spec := newOpenAPISpec()
	data, _ := json.MarshalIndent(spec, "", "  ")

	return func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Content-Type", "application/json; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		_, _ = w.Write(data)
	}
}
