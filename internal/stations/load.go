package stations

import (
	"context"
	"path/filepath"
	"strings"

	"github.com/rs/zerolog/log"
)

// Kind identifies where a station table comes from
type Kind string

const (
	KindJSON     Kind = "json"
	KindSQLite   Kind = "sqlite"
	KindPostgres Kind = "postgres"
)

// KindOf classifies a STATIONS_FILE value: a postgres:// DSN, a .db or
// .sqlite file, or anything else as JSON
func KindOf(source string) Kind {
	if strings.HasPrefix(source, "postgres://") || strings.HasPrefix(source, "postgresql://") {
		return KindPostgres
	}
	switch strings.ToLower(filepath.Ext(source)) {
	case ".db", ".sqlite", ".sqlite3":
		return KindSQLite
	}
	return KindJSON
}

// Load reads the station table from source
func Load(ctx context.Context, source string) (*Table, error) {
	var (
		table *Table
		err   error
	)

	kind := KindOf(source)
	switch kind {
	case KindPostgres:
		table, err = LoadPostgres(ctx, source)
	case KindSQLite:
		table, err = LoadSQLite(ctx, source)
	default:
		table, err = LoadJSON(source)
	}
	if err != nil {
		return nil, err
	}

	log.Info().Str("kind", string(kind)).Int("stations", table.Len()).Msg("Station table loaded")
	return table, nil
}
