package main

import (
	"fmt"
	"time"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/amdjml/WMATAPI/internal/feed"
	"github.com/amdjml/WMATAPI/internal/realtime"
)

func checkCommand() *cli.Command {
	return &cli.Command{
		Name:  "check",
		Usage: "fetch both realtime feeds once and report what they contain",
		Action: func(c *cli.Context) error {
			cfg, err := loadConfig()
			if err != nil {
				return err
			}
			if err := cfg.Validate(); err != nil {
				return err
			}

			fetcher := feed.NewFetcher(cfg.APIKey)
			limits := realtime.Limits{MaxTrains: cfg.MaxTrains, MaxMinutes: float64(cfg.MaxMinutes)}

			raw, err := fetcher.Fetch(c.Context, feed.Source{Name: "trip_updates", URL: cfg.TripUpdatesURL})
			if err != nil {
				return err
			}
			arrivals, tripReport, err := realtime.ProcessTripUpdates(raw, time.Now(), limits)
			if err != nil {
				return err
			}

			raw, err = fetcher.Fetch(c.Context, feed.Source{Name: "vehicle_positions", URL: cfg.VehiclePositionsURL})
			if err != nil {
				return err
			}
			vehicles, vehicleReport, err := realtime.ProcessVehiclePositions(raw)
			if err != nil {
				return err
			}

			trains := 0
			for _, a := range arrivals {
				trains += a.Len()
			}

			log.Info().
				Int("entities", tripReport.Entities).
				Int("records", tripReport.Records).
				Int("skipped", tripReport.TotalSkipped()).
				Msg("Trip updates")
			log.Info().
				Int("entities", vehicleReport.Entities).
				Int("records", vehicleReport.Records).
				Int("skipped", vehicleReport.TotalSkipped()).
				Msg("Vehicle positions")

			fmt.Fprintf(c.App.Writer, "stations: %d\ntrains: %d\nvehicles: %d\n", len(arrivals), trains, len(vehicles))
			return nil
		},
	}
}
