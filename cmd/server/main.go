package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/redis/go-redis/v9"
	"golang.org/x/sync/errgroup"

	"github.com/mapthepast/mapthepast/internal/catalog"
	"github.com/mapthepast/mapthepast/internal/config"
	"github.com/mapthepast/mapthepast/internal/database"
	"github.com/mapthepast/mapthepast/internal/game"
	"github.com/mapthepast/mapthepast/internal/geocode"
	"github.com/mapthepast/mapthepast/internal/handler/health"
	"github.com/mapthepast/mapthepast/internal/migrations"
	"github.com/mapthepast/mapthepast/internal/recent"
	"github.com/mapthepast/mapthepast/internal/region"
	"github.com/mapthepast/mapthepast/internal/round"
	"github.com/mapthepast/mapthepast/internal/selector"
	"github.com/mapthepast/mapthepast/internal/server"
	"github.com/mapthepast/mapthepast/internal/store"
)

// maintenanceInterval is how often idle handles are reaped and stale
// sessions swept.
const maintenanceInterval = 10 * time.Minute

func main() {
	ctx, cancel := signal.NotifyContext(context.Background(), syscall.SIGINT, syscall.SIGTERM)
	defer cancel()

	if err := run(ctx, os.Stdout); err != nil {
		fmt.Fprintf(os.Stderr, "error: %v\n", err)
		os.Exit(1)
	}
}

func run(ctx context.Context, stdout io.Writer) error {
	cfg, err := config.Load()
	if err != nil {
		return fmt.Errorf("loading config: %w", err)
	}

	logger := slog.New(slog.NewJSONHandler(stdout, &slog.HandlerOptions{
		Level: cfg.LogLevel,
	}))

	// --- SQLite ---
	db, err := database.Open(ctx, cfg.DBPath)
	if err != nil {
		return fmt.Errorf("connecting to sqlite: %w", err)
	}
	defer db.Close()

	if err := migrations.Run(db); err != nil {
		return fmt.Errorf("running migrations: %w", err)
	}
	logger.Info("connected to sqlite", "path", cfg.DBPath)

	st := store.New(db)

	if cfg.CatalogPath != "" {
		rep, err := catalog.Import(ctx, st, cfg.CatalogPath)
		if err != nil {
			return fmt.Errorf("importing catalog: %w", err)
		}
		for _, w := range rep.Warnings {
			logger.Warn("catalog record repaired", "detail", w)
		}
		if len(rep.ZeroEra) > 0 {
			logger.Error("catalog events have no era duration and will score 0", "slugs", rep.ZeroEra)
		}
		logger.Info("catalog imported", "path", cfg.CatalogPath, "events", len(rep.Events), "skipped", rep.Skipped)
	}

	// --- Redis (optional) ---
	checks := map[string]health.Checker{
		"sqlite": health.CheckFunc(st.Ping),
	}
	var rdb *redis.Client
	if cfg.RedisURL != "" {
		rdb, err = openRedis(ctx, cfg.RedisURL)
		if err != nil {
			return fmt.Errorf("connecting to redis: %w", err)
		}
		defer rdb.Close()
		checks["redis"] = health.CheckFunc(func(ctx context.Context) error { return rdb.Ping(ctx).Err() })
		logger.Info("connected to redis")
	}
	recentCache := recent.New(logger, rdb, st, cfg.RecentWindow)

	// --- Engine ---
	regions, err := region.Default()
	if err != nil {
		return fmt.Errorf("loading region table: %w", err)
	}
	geocoder := geocode.NewFallback(regions, geocode.NewNominatim(cfg.GeocoderURL, cfg.GeocoderUserAgent))
	broker := server.NewBroker()

	engine := game.New(ctx, logger, game.Config{
		Round:           round.Config{TimerSeconds: cfg.RoundTimerSeconds, TickInterval: time.Second},
		TeardownTimeout: cfg.TeardownTimeout,
	}, game.Deps{
		Store:     st,
		Picker:    selector.New(logger, st, recentCache, cfg.RecentWindow, nil),
		Scorer:    round.NewScorer(regions),
		Recent:    recentCache,
		Publisher: broker,
	})
	defer engine.Wait()

	// --- HTTP Server ---
	srv := server.New(cfg.HTTPAddr, logger, server.Deps{
		Engine:   engine,
		Queries:  st,
		Geocoder: geocoder,
		Broker:   broker,
		Health:   health.NewHandler(logger, checks).Optional("redis").Routes(),
		SPADir:   cfg.SPADir,

		CORSOrigins: cfg.CORSOrigins,
	})

	// --- Run ---
	g, gctx := errgroup.WithContext(ctx)

	g.Go(func() error {
		logger.Info("starting http server", "addr", cfg.HTTPAddr)
		return srv.Run(gctx)
	})

	g.Go(func() error {
		<-gctx.Done()
		logger.Info("shutting down http server")
		return srv.Shutdown(context.Background())
	})

	g.Go(func() error {
		tick := time.NewTicker(maintenanceInterval)
		defer tick.Stop()
		for {
			select {
			case <-gctx.Done():
				return nil
			case <-tick.C:
				engine.Reap(cfg.SessionIdle)
				rep, err := engine.SweepStale(gctx, st, cfg.SweepAge)
				if err != nil {
					logger.Warn("session sweep incomplete", "error", err)
				}
				if rep.Completed+rep.Abandoned > 0 {
					logger.Info("session sweep", "completed", rep.Completed, "abandoned", rep.Abandoned)
				}
			}
		}
	})

	return g.Wait()
}

func openRedis(ctx context.Context, rawURL string) (*redis.Client, error) {
	opt, err := redis.ParseURL(rawURL)
	if err != nil {
		return nil, fmt.Errorf("parsing redis url: %w", err)
	}
	rdb := redis.NewClient(opt)
	if err := rdb.Ping(ctx).Err(); err != nil {
		rdb.Close()
		return nil, fmt.Errorf("pinging redis: %w", err)
	}
	return rdb, nil
}
