package config

import (
	"errors"
	"fmt"
	"os"
	"strconv"
	"strings"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"
)

// ErrMissingAPIKey is returned by Validate when no WMATA credential is configured.
// The refresh loop must not start without one.
var ErrMissingAPIKey = errors.New("WMATA_API_KEY not set")

const (
	defaultTripUpdatesURL      = "https://api.wmata.com/gtfs/rail-gtfsrt-tripupdates.pb"
	defaultVehiclePositionsURL = "https://api.wmata.com/gtfs/rail-gtfsrt-vehiclepositions.pb"
	defaultAlertsURL           = "https://api.wmata.com/gtfs/rail-gtfsrt-alerts.pb"
	defaultStaticGTFSURL       = "https://api.wmata.com/gtfs/rail-gtfs-static.zip"
)

// Config holds all configuration for the service
type Config struct {
	// Upstream credential, sent as the api_key header
	APIKey string `yaml:"api_key" validate:"required"`

	// GTFS-RT feeds
	TripUpdatesURL      string `yaml:"trip_updates_url" validate:"required,url"`
	VehiclePositionsURL string `yaml:"vehicle_positions_url" validate:"required,url"`
	AlertsURL           string `yaml:"alerts_url" validate:"omitempty,url"`

	// Static station table: JSON file, SQLite file or postgres:// DSN
	StationsFile string `yaml:"stations_file" validate:"required"`

	// GTFS static feed used to rebuild a JSON station table older than
	// StaticRefreshDays. Zero days disables the startup refresh.
	StaticGTFSURL     string `yaml:"static_gtfs_url" validate:"omitempty,url"`
	StaticRefreshDays int    `yaml:"static_refresh_days" validate:"gte=0"`

	// Refresh cycle
	CacheSeconds            int `yaml:"cache_seconds" validate:"gt=0"`
	MaxTrains               int `yaml:"max_trains" validate:"gt=0"`
	MaxMinutes              int `yaml:"max_minutes" validate:"gt=0"`
	BroadcastTimeoutSeconds int `yaml:"broadcast_timeout_seconds" validate:"gt=0"`

	// HTTP
	Port        int    `yaml:"port" validate:"gt=0,lte=65535"`
	CrossOrigin string `yaml:"cross_origin"`

	// Logging
	Debug     bool   `yaml:"debug"`
	LogFormat string `yaml:"log_format" validate:"omitempty,oneof=JSON console"`
}

// Defaults returns the configuration used when nothing is set
func Defaults() *Config {
	return &Config{
		TripUpdatesURL:          defaultTripUpdatesURL,
		VehiclePositionsURL:     defaultVehiclePositionsURL,
		AlertsURL:               defaultAlertsURL,
		StationsFile:            "stations.json",
		StaticGTFSURL:           defaultStaticGTFSURL,
		StaticRefreshDays:       7,
		CacheSeconds:            60,
		MaxTrains:               10,
		MaxMinutes:              30,
		BroadcastTimeoutSeconds: 5,
		Port:                    5000,
		LogFormat:               "console",
	}
}

// Load builds the configuration from defaults, an optional YAML file named by
// WMATA_CONFIG_FILE, and environment variables, in increasing precedence.
// .env and .env.local in the working directory are loaded first; .env.local
// overrides values already present.
func Load() (*Config, error) {
	_ = godotenv.Load(".env")
	_ = godotenv.Overload(".env.local")

	cfg := Defaults()

	if path := os.Getenv("WMATA_CONFIG_FILE"); path != "" {
		if err := cfg.mergeFile(path); err != nil {
			return nil, err
		}
	}

	cfg.applyEnv()
	return cfg, nil
}

func (c *Config) mergeFile(path string) error {
	data, err := os.ReadFile(path)
	if err != nil {
		return fmt.Errorf("failed to read config file %s: %w", path, err)
	}
	if err := yaml.Unmarshal(data, c); err != nil {
		return fmt.Errorf("failed to parse config file %s: %w", path, err)
	}
	return nil
}

func (c *Config) applyEnv() {
	c.APIKey = getEnv("WMATA_API_KEY", c.APIKey)

	c.TripUpdatesURL = getEnv("TRIP_UPDATES_URL", c.TripUpdatesURL)
	c.VehiclePositionsURL = getEnv("VEHICLE_POSITIONS_URL", c.VehiclePositionsURL)
	c.AlertsURL = getEnv("ALERTS_URL", c.AlertsURL)

	c.StationsFile = getEnv("STATIONS_FILE", c.StationsFile)
	c.StaticGTFSURL = getEnv("STATIC_GTFS_URL", c.StaticGTFSURL)
	c.StaticRefreshDays = getEnvInt("STATIC_REFRESH_DAYS", c.StaticRefreshDays)

	c.CacheSeconds = getEnvInt("CACHE_SECONDS", c.CacheSeconds)
	c.MaxTrains = getEnvInt("MAX_TRAINS", c.MaxTrains)
	c.MaxMinutes = getEnvInt("MAX_MINUTES", c.MaxMinutes)
	c.BroadcastTimeoutSeconds = getEnvInt("BROADCAST_TIMEOUT_SECONDS", c.BroadcastTimeoutSeconds)

	c.Port = getEnvInt("PORT", c.Port)
	c.Debug = getEnvBool("DEBUG", c.Debug)
	c.CrossOrigin = getEnv("CROSS_ORIGIN", c.CrossOrigin)
	if c.CrossOrigin == "" && c.Debug {
		c.CrossOrigin = "*"
	}

	c.LogFormat = getEnv("LOG_FORMAT", c.LogFormat)
}

// Validate checks the configuration. A missing API key is reported as
// ErrMissingAPIKey so callers can refuse to start the refresh loop.
func (c *Config) Validate() error {
	if strings.TrimSpace(c.APIKey) == "" {
		return ErrMissingAPIKey
	}
	if err := validator.New().Struct(c); err != nil {
		return fmt.Errorf("invalid configuration: %w", err)
	}
	return nil
}

// RefreshInterval is the period between refresh cycles
func (c *Config) RefreshInterval() time.Duration {
	return time.Duration(c.CacheSeconds) * time.Second
}

// BroadcastTimeout bounds a single subscriber send
func (c *Config) BroadcastTimeout() time.Duration {
	return time.Duration(c.BroadcastTimeoutSeconds) * time.Second
}

// StaticMaxAge is how old a generated station table may get before it is rebuilt
func (c *Config) StaticMaxAge() time.Duration {
	return time.Duration(c.StaticRefreshDays) * 24 * time.Hour
}

// ListenAddr is the HTTP listen address
func (c *Config) ListenAddr() string {
	return ":" + strconv.Itoa(c.Port)
}

func getEnv(key, defaultValue string) string {
	if value := os.Getenv(key); value != "" {
		return value
	}
	return defaultValue
}

func getEnvInt(key string, defaultValue int) int {
	if value := os.Getenv(key); value != "" {
		if intValue, err := strconv.Atoi(value); err == nil {
			return intValue
		}
	}
	return defaultValue
}

func getEnvBool(key string, defaultValue bool) bool {
	if value := os.Getenv(key); value != "" {
		if boolValue, err := strconv.ParseBool(value); err == nil {
			return boolValue
		}
	}
	return defaultValue
}
