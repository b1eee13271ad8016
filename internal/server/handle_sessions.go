package server

import (
	"errors"
	"io"
	"log/slog"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/mapthepast/mapthepast/internal/game"
)

type StartSessionRequest = game.StartRequest

type FinishRequest struct {
	PlayerName string `json:"playerName,omitempty"`
}

func handleStartSession(logger *slog.Logger, engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req StartSessionRequest
		if err := readJSON(r, &req); err != nil {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sess, err := engine.StartSession(r.Context(), req)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusCreated, sess)
	}
}

func handleGetSession(logger *slog.Logger, engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		sess, err := engine.Session(chi.URLParam(r, "id"))
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sess)
	}
}

func handleFinish(logger *slog.Logger, engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		var req FinishRequest
		// The body is optional.
		if err := readJSON(r, &req); err != nil && !errors.Is(err, io.EOF) {
			writeError(w, http.StatusBadRequest, "invalid request body")
			return
		}

		sum, err := engine.Finish(r.Context(), chi.URLParam(r, "id"), req.PlayerName)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sum)
	}
}

// handleTeardown is called when the player leaves. The finalize runs in the
// background, so the response never waits on the store.
func handleTeardown(logger *slog.Logger, engine *game.Engine) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		if err := engine.Teardown(chi.URLParam(r, "id")); err != nil {
			writeEngineError(w, logger, err)
			return
		}
		w.WriteHeader(http.StatusAccepted)
	}
}
