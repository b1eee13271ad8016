package server

import (
	"context"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi/v5"
	"nhooyr.io/websocket"

	"github.com/mapthepast/mapthepast/internal/game"
)

// handleSessionSocket streams the session's events over a websocket. The
// feed is one-way; client messages are ignored.
func handleSessionSocket(logger *slog.Logger, engine *game.Engine, broker *Broker) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		id := chi.URLParam(r, "id")
		if _, err := engine.Session(id); err != nil {
			writeError(w, http.StatusNotFound, "session not found")
			return
		}

		conn, err := websocket.Accept(w, r, &websocket.AcceptOptions{
			InsecureSkipVerify: true,
		})
		if err != nil {
			logger.Error("websocket accept failed", "session_id", id, "error", err)
			return
		}
		defer conn.CloseNow()

		ch := broker.Subscribe(id)
		defer broker.Unsubscribe(id, ch)

		ctx, cancel := context.WithTimeout(r.Context(), 2*time.Hour)
		defer cancel()
		ctx = conn.CloseRead(ctx)

		for {
			select {
			case <-ctx.Done():
				logger.Debug("websocket feed ended", "session_id", id, "error", ctx.Err())
				return
			case data := <-ch:
				if err := conn.Write(ctx, websocket.MessageText, data); err != nil {
					logger.Debug("websocket write failed", "session_id", id, "error", err)
					return
				}
			}
		}
	}
}
