package main

import (
	"os"
	"time"

	"github.com/joho/godotenv"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/urfave/cli/v2"

	"github.com/amdjml/WMATAPI/internal/config"
)

func main() {
	// a missing .env is fine
	_ = godotenv.Load()

	setupLogging(os.Getenv("LOG_FORMAT"), os.Getenv("DEBUG") == "true")

	app := &cli.App{
		Name:  "wmatapi",
		Usage: "real-time WMATA rail arrivals over HTTP and WebSocket",

		Commands: []*cli.Command{
			serveCommand(),
			checkCommand(),
			stationsCommand(),
		},
	}

	if err := app.Run(os.Args); err != nil {
		log.Fatal().Err(err).Send()
	}
}

func setupLogging(format string, debug bool) {
	if format != "JSON" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stdout, TimeFormat: time.RFC3339})
	}

	if debug {
		log.Logger = log.Logger.Level(zerolog.DebugLevel)
	} else {
		log.Logger = log.Logger.Level(zerolog.InfoLevel)
	}
}

// loadConfig loads configuration and re-applies the logging settings it
// carries, which may come from a YAML file rather than the environment
func loadConfig() (*config.Config, error) {
	cfg, err := config.Load()
	if err != nil {
		return nil, err
	}
	setupLogging(cfg.LogFormat, cfg.Debug)
	return cfg, nil
}
