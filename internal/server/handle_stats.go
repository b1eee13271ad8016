package server

import (
	"log/slog"
	"net/http"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"

	"github.com/mapthepast/mapthepast/internal/geocode"
)

const maxLeaderboardLimit = 100

func handleLeaderboard(logger *slog.Logger, q Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		limit := 0
		if s := r.URL.Query().Get("limit"); s != "" {
			n, err := strconv.Atoi(s)
			if err != nil || n <= 0 || n > maxLeaderboardLimit {
				writeError(w, http.StatusBadRequest, "limit must be between 1 and 100")
				return
			}
			limit = n
		}

		sessions, err := q.Leaderboard(r.Context(), limit)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, sessions)
	}
}

func handlePlayerSummary(logger *slog.Logger, q Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		name := strings.TrimSpace(chi.URLParam(r, "name"))
		if name == "" {
			writeError(w, http.StatusBadRequest, "player name is required")
			return
		}

		stats, err := q.PlayerSummary(r.Context(), name)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, stats)
	}
}

func handleFilters(logger *slog.Logger, q Queries) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		opts, err := q.FilterOptions(r.Context())
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, opts)
	}
}

type GeocodeResponse struct {
	Query string  `json:"query"`
	Lat   float64 `json:"lat"`
	Lon   float64 `json:"lon"`
}

func handleGeocode(logger *slog.Logger, g geocode.Geocoder) http.HandlerFunc {
	return func(w http.ResponseWriter, r *http.Request) {
		q := strings.TrimSpace(r.URL.Query().Get("q"))
		if q == "" {
			writeError(w, http.StatusBadRequest, "q query parameter required")
			return
		}

		c, err := g.ResolvePlace(r.Context(), q)
		if err != nil {
			writeEngineError(w, logger, err)
			return
		}
		writeJSON(w, http.StatusOK, GeocodeResponse{Query: q, Lat: c.Lat, Lon: c.Lon})
	}
}
