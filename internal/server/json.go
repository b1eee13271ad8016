package server

import (
	"encoding/json"
	"errors"
	"log/slog"
	"net/http"

	"github.com/mapthepast/mapthepast/internal/game"
	"github.com/mapthepast/mapthepast/internal/geocode"
	"github.com/mapthepast/mapthepast/internal/round"
	"github.com/mapthepast/mapthepast/internal/selector"
	"github.com/mapthepast/mapthepast/internal/session"
)

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json; charset=utf-8")
	w.WriteHeader(status)
	json.NewEncoder(w).Encode(v)
}

func readJSON(r *http.Request, v any) error {
	defer r.Body.Close()
	return json.NewDecoder(r.Body).Decode(v)
}

func writeError(w http.ResponseWriter, status int, msg string) {
	writeJSON(w, status, ErrorResponse{Error: msg})
}

// writeEngineError maps domain errors to HTTP statuses. Anything unknown is
// logged and reported as a 500.
func writeEngineError(w http.ResponseWriter, logger *slog.Logger, err error) {
	switch {
	case errors.Is(err, game.ErrPlayerNameRequired),
		errors.Is(err, game.ErrInvalidMode),
		errors.Is(err, round.ErrInvalidGuess):
		writeError(w, http.StatusBadRequest, err.Error())
	case errors.Is(err, game.ErrSessionNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, selector.ErrExhausted):
		writeError(w, http.StatusConflict, "no events match these filters, relax them and try again")
	case errors.Is(err, round.ErrInvalidTransition),
		errors.Is(err, round.ErrNoRetriesLeft),
		errors.Is(err, round.ErrNotRevealed),
		errors.Is(err, game.ErrTargetReached),
		errors.Is(err, game.ErrSessionClosed),
		errors.Is(err, session.ErrAlreadyFinalized):
		writeError(w, http.StatusConflict, err.Error())
	case errors.Is(err, geocode.ErrPlaceNotFound):
		writeError(w, http.StatusNotFound, err.Error())
	case errors.Is(err, geocode.ErrUnavailable):
		writeError(w, http.StatusBadGateway, err.Error())
	default:
		logger.Error("request failed", "error", err)
		writeError(w, http.StatusInternalServerError, "internal error")
	}
}
