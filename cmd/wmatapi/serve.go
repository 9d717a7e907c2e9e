package main

import (
	"context"
	"errors"
	"net/http"
	"os/signal"
	"syscall"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/amdjml/WMATAPI/internal/api"
	"github.com/amdjml/WMATAPI/internal/api/models"
	"github.com/amdjml/WMATAPI/internal/broadcast"
	"github.com/amdjml/WMATAPI/internal/config"
	"github.com/amdjml/WMATAPI/internal/feed"
	"github.com/amdjml/WMATAPI/internal/realtime"
	"github.com/amdjml/WMATAPI/internal/scheduler"
	"github.com/amdjml/WMATAPI/internal/snapshot"
	"github.com/amdjml/WMATAPI/internal/stations"
)

const (
	shutdownTimeout = 10 * time.Second
	staticTimeout   = 2 * time.Minute
)

func serveCommand() *cli.Command {
	return &cli.Command{
		Name:  "serve",
		Usage: "run the refresh loop and the HTTP/WebSocket server",
		Flags: []cli.Flag{
			&cli.StringFlag{
				Name:  "listen",
				Usage: "listen address, overrides PORT",
			},
		},
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			addr := cfg.ListenAddr()
			if c.String("listen") != "" {
				addr = c.String("listen")
			}

			ctx, stop := signal.NotifyContext(c.Context, syscall.SIGINT, syscall.SIGTERM)
			defer stop()

			return serve(ctx, cfg, addr)
		},
	}
}

func serve(ctx context.Context, cfg *config.Config, addr string) error {
	if refreshed, err := stations.RefreshIfStale(ctx, cfg.StationsFile, cfg.StaticMaxAge(), staticDownloader(cfg)); err != nil {
		log.Warn().Err(err).Msg("Station table refresh failed, using existing data")
	} else if refreshed {
		log.Info().Str("path", cfg.StationsFile).Msg("Station table rebuilt from GTFS static")
	}

	table, err := stations.Load(ctx, cfg.StationsFile)
	if err != nil {
		return err
	}

	cache := snapshot.NewCache()
	hub := broadcast.NewHub(cache, models.SnapshotEncoder(table), cfg.BroadcastTimeout())
	defer hub.Close()

	sched := scheduler.New(feed.NewFetcher(cfg.APIKey), cache, hub, scheduler.Options{
		TripUpdates:      feed.Source{Name: "trip_updates", URL: cfg.TripUpdatesURL},
		VehiclePositions: feed.Source{Name: "vehicle_positions", URL: cfg.VehiclePositionsURL},
		Interval:         cfg.RefreshInterval(),
		Limits: realtime.Limits{
			MaxTrains:  cfg.MaxTrains,
			MaxMinutes: float64(cfg.MaxMinutes),
		},
	})

	server := &http.Server{
		Addr: addr,
		Handler: api.NewRouter(api.Deps{
			Cache:       cache,
			Stations:    table,
			Hub:         hub,
			Refresh:     sched,
			CrossOrigin: cfg.CrossOrigin,
		}),
		ReadHeaderTimeout: 10 * time.Second,
	}

	errc := make(chan error, 2)
	go func() {
		errc <- sched.Run(ctx)
	}()
	go func() {
		log.Info().Str("addr", addr).Msg("Starting HTTP server")
		if err := server.ListenAndServe(); err != nil && !errors.Is(err, http.ErrServerClosed) {
			errc <- err
		}
	}()

	var runErr error
	select {
	case <-ctx.Done():
		log.Info().Msg("Shutting down")
	case runErr = <-errc:
		if errors.Is(runErr, context.Canceled) {
			runErr = nil
		}
	}

	shutdownCtx, cancel := context.WithTimeout(context.Background(), shutdownTimeout)
	defer cancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error().Err(err).Msg("HTTP server shutdown failed")
	}

	return runErr
}

// staticDownloader fetches the GTFS static zip with the WMATA credential.
// The zip is much larger than the realtime feeds so it gets its own timeout.
func staticDownloader(cfg *config.Config) stations.DownloadFunc {
	fetcher := feed.NewFetcherWithClient(cfg.APIKey, &http.Client{Timeout: staticTimeout})
	src := feed.Source{Name: "gtfs_static", URL: cfg.StaticGTFSURL}

	return func(ctx context.Context) ([]byte, error) {
		if src.URL == "" {
			return nil, errors.New("STATIC_GTFS_URL not set")
		}
		return fetcher.Fetch(ctx, src)
	}
}
