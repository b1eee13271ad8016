package server

import (
	"context"
	"log/slog"
	"net/http"
	"os"

	"github.com/go-chi/chi/v5"
	"github.com/swaggest/swgui/v5emb"

	"github.com/mapthepast/mapthepast/internal/game"
	"github.com/mapthepast/mapthepast/internal/geocode"
	"github.com/mapthepast/mapthepast/internal/mapthepast"
)

// Queries are the read-only store lookups behind the stats endpoints.
type Queries interface {
	Leaderboard(ctx context.Context, limit int) ([]mapthepast.Session, error)
	PlayerSummary(ctx context.Context, player string) (mapthepast.PlayerStats, error)
	FilterOptions(ctx context.Context) (mapthepast.FilterOptions, error)
}

type Deps struct {
	Engine   *game.Engine
	Queries  Queries
	Geocoder geocode.Geocoder
	Broker   *Broker
	// Health is mounted at /healthz when set.
	Health http.Handler
	SPADir string
	// CORSOrigins lists the browser origins allowed to call the API from
	// another host. Empty disables CORS headers.
	CORSOrigins []string
}

func addRoutes(r chi.Router, logger *slog.Logger, d Deps) {
	engine := d.Engine

	r.Get("/openapi.json", handleOpenAPI())
	r.Mount("/docs", v5emb.New("MapThePast API", "/openapi.json", "/docs"))
	if d.Health != nil {
		r.Mount("/healthz", d.Health)
	}
	r.Get("/ws/sessions/{id}", handleSessionSocket(logger, engine, d.Broker))

	r.Route("/api/sessions", func(r chi.Router) {
		r.Post("/", handleStartSession(logger, engine))
		r.Route("/{id}", func(r chi.Router) {
			r.Get("/", handleGetSession(logger, engine))
			r.Post("/rounds", handleNextRound(logger, engine))
			r.Get("/round", handleGetRound(logger, engine))
			r.Post("/round/guess", handleGuess(logger, engine))
			r.Post("/round/retry", handleRetry(logger, engine))
			r.Post("/round/accept", handleAccept(logger, engine))
			r.Post("/finish", handleFinish(logger, engine))
			r.Post("/teardown", handleTeardown(logger, engine))
			r.Get("/events", handleEvents(engine, d.Broker))
		})
	})

	r.Get("/api/leaderboard", handleLeaderboard(logger, d.Queries))
	r.Get("/api/players/{name}/summary", handlePlayerSummary(logger, d.Queries))
	r.Get("/api/filters", handleFilters(logger, d.Queries))
	r.Get("/api/geocode", handleGeocode(logger, d.Geocoder))

	if d.SPADir != "" {
		if info, err := os.Stat(d.SPADir); err == nil && info.IsDir() {
			logger.Info("serving SPA", "dir", d.SPADir)
			r.NotFound(handleSPA(d.SPADir))
		}
	}
}
