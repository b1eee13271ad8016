package server

import (
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mapthepast/mapthepast/internal/game"
	"github.com/mapthepast/mapthepast/internal/mapthepast"
	"github.com/mapthepast/mapthepast/internal/round"
)

// GuessRequest is a submission. Lat, Lon and Year are required; City and
// Country are the optional place text for the location bonus.
type GuessRequest struct {
	Lat     *float64 `json:"lat"`
	Lon     *float64 `json:"lon"`
	Year    *int     `json:"year"`
	City    string   `json:"city,omitempty"`
	Country string   `json:"country,omitempty"`
}

func (g GuessRequest) guess() round.Guess {
	out := round.Guess{Year: g.Year, City: g.City, Country: g.Country}
	if g.Lat != nil && g.Lon != nil {
		out.Coords = &mapthepast.Coordinates{Lat: *g.Lat, Lon: *g.Lon}
	}
	return out
}

func handleNextRound(logger *slog.Logger, engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := engine.NextRound(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleGetRound(logger *slog.Logger, engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := engine.Round(chi.URLParam(r, "id"))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleGuess(logger *slog.Logger, engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req GuessRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		view, err := engine.Submit(chi.URLParam(r, "id"), req.guess())
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}

func handleRetry(logger *slog.Logger, engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		hint, err := engine.Retry(chi.URLParam(r, "id"))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, hint)
	}
}

func handleAccept(logger *slog.Logger, engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		view, err := engine.Accept(r.Context(), chi.URLParam(r, "id"))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, view)
	}
}
