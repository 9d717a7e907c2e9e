package stations

import (
	"context"
	"fmt"

	"github.com/jackc/pgx/v5/pgxpool"
)

// LoadPostgres reads the stations table from a PostgreSQL database
func LoadPostgres(ctx context.Context, databaseURL string) (*Table, error) {
	pool, err := pgxpool.New(ctx, databaseURL)
	if err != nil {
		return nil, fmt.Errorf("failed to create connection pool: %w", err)
	}
	defer pool.Close()

	if err := pool.Ping(ctx); err != nil {
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}

	rows, err := pool.Query(ctx, selectStations)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var list []Station
	for rows.Next() {
		var (
			s      Station
			routes string
		)
		if err := rows.Scan(&s.ID, &s.Name, &s.Latitude, &s.Longitude, &routes); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		if s.Latitude == nil || s.Longitude == nil {
			s.Latitude, s.Longitude = nil, nil
		}
		s.Routes = splitRoutes(routes)
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stations: %w", err)
	}

	return NewTable(list), nil
}
