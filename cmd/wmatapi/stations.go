package main

import (
	"context"
	"errors"
	"fmt"
	"strings"

	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/amdjml/WMATAPI/internal/config"
	"github.com/amdjml/WMATAPI/internal/static/gtfs"
	"github.com/amdjml/WMATAPI/internal/stations"
)

func stationsCommand() *cli.Command {
	return &cli.Command{
		Name:  "stations",
		Usage: "inspect or rebuild the station table",
		Subcommands: []*cli.Command{
			{
				Name:  "list",
				Usage: "print every station in the configured table",
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}

					table, err := stations.Load(c.Context, cfg.StationsFile)
					if err != nil {
						return err
					}

					for _, st := range table.All() {
						fmt.Fprintf(c.App.Writer, "%s\t%s\t%s\n", st.ID, st.Name, strings.Join(st.Routes, ","))
					}
					return nil
				},
			},
			{
				Name:  "build",
				Usage: "build the station table from a GTFS static zip",
				Flags: []cli.Flag{
					&cli.StringFlag{
						Name:  "gtfs",
						Usage: "local GTFS zip; downloaded from STATIC_GTFS_URL when empty",
					},
					&cli.StringFlag{
						Name:  "out",
						Usage: "output file (.json, .db or .sqlite); defaults to STATIONS_FILE",
					},
				},
				Action: func(c *cli.Context) error {
					cfg, err := loadConfig()
					if err != nil {
						return err
					}

					out := c.String("out")
					if out == "" {
						out = cfg.StationsFile
					}

					table, err := buildTable(c.Context, cfg, c.String("gtfs"))
					if err != nil {
						return err
					}

					if err := writeTable(c.Context, out, table); err != nil {
						return err
					}

					log.Info().Str("out", out).Int("stations", table.Len()).Msg("Station table written")
					return nil
				},
			},
		},
	}
}

func buildTable(ctx context.Context, cfg *config.Config, zipPath string) (*stations.Table, error) {
	if zipPath == "" {
		if cfg.APIKey == "" {
			return nil, config.ErrMissingAPIKey
		}
		return stations.BuildFromGTFS(ctx, staticDownloader(cfg))
	}

	data, err := gtfs.Parse(zipPath)
	if err != nil {
		return nil, err
	}
	return stations.Build(data), nil
}

func writeTable(ctx context.Context, out string, table *stations.Table) error {
	switch stations.KindOf(out) {
	case stations.KindSQLite:
		return stations.WriteSQLite(ctx, out, table)
	case stations.KindPostgres:
		return errors.New("writing a station table to postgres is not supported")
	default:
		return stations.WriteJSON(out, table)
	}
}
