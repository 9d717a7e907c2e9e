package stations

import (
	"context"
	"fmt"
	"os"
	"time"

	"github.com/rs/zerolog/log"

	"github.com/amdjml/WMATAPI/internal/static/gtfs"
)

// DownloadFunc retrieves a GTFS static zip
type DownloadFunc func(ctx context.Context) ([]byte, error)

// IsStaleOrMissing reports whether the file at path is absent or was last
// written more than maxAge ago
func IsStaleOrMissing(path string, maxAge time.Duration, now time.Time) bool {
	info, err := os.Stat(path)
	if err != nil {
		return true
	}
	return now.Sub(info.ModTime()) > maxAge
}

// BuildFromGTFS downloads a GTFS static zip and derives the station table
func BuildFromGTFS(ctx context.Context, download DownloadFunc) (*Table, error) {
	raw, err := download(ctx)
	if err != nil {
		return nil, fmt.Errorf("failed to download GTFS static feed: %w", err)
	}

	data, err := gtfs.ParseBytes(raw)
	if err != nil {
		return nil, err
	}
	return Build(data), nil
}

// RefreshIfStale rebuilds a JSON station file from GTFS static data when it
// is missing or older than maxAge. It reports whether the file was rewritten.
// SQL sources are managed outside the service and never refreshed.
func RefreshIfStale(ctx context.Context, path string, maxAge time.Duration, download DownloadFunc) (bool, error) {
	if maxAge <= 0 || KindOf(path) != KindJSON {
		return false, nil
	}
	if !IsStaleOrMissing(path, maxAge, time.Now()) {
		log.Debug().Str("file", path).Msg("Station table is fresh, skipping refresh")
		return false, nil
	}

	log.Info().Str("file", path).Msg("Refreshing station table from GTFS static data")
	table, err := BuildFromGTFS(ctx, download)
	if err != nil {
		return false, err
	}
	if err := WriteJSON(path, table); err != nil {
		return false, err
	}

	log.Info().Int("stations", table.Len()).Msg("Station table refreshed")
	return true, nil
}
