package stations

import (
	"context"
	"database/sql"
	_ "embed"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"
)

// schemaSQL creates the stations table used by both SQL loaders.
// routes is a comma-separated list of route codes.
//
//go:embed schema.sql
var schemaSQL string

const selectStations = `SELECT id, name, lat, lon, routes FROM stations ORDER BY id`

func openSQLite(path string) (*sql.DB, error) {
	conn, err := sql.Open("sqlite", path+"?_pragma=busy_timeout(5000)")
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	conn.SetMaxOpenConns(1)

	if err := conn.Ping(); err != nil {
		conn.Close()
		return nil, fmt.Errorf("failed to ping database: %w", err)
	}
	return conn, nil
}

// LoadSQLite reads the stations table from a SQLite file
func LoadSQLite(ctx context.Context, path string) (*Table, error) {
	conn, err := openSQLite(path)
	if err != nil {
		return nil, err
	}
	defer conn.Close()

	rows, err := conn.QueryContext(ctx, selectStations)
	if err != nil {
		return nil, fmt.Errorf("failed to query stations: %w", err)
	}
	defer rows.Close()

	var list []Station
	for rows.Next() {
		var (
			s        Station
			lat, lon sql.NullFloat64
			routes   string
		)
		if err := rows.Scan(&s.ID, &s.Name, &lat, &lon, &routes); err != nil {
			return nil, fmt.Errorf("failed to scan station: %w", err)
		}
		if lat.Valid && lon.Valid {
			s.Latitude, s.Longitude = &lat.Float64, &lon.Float64
		}
		s.Routes = splitRoutes(routes)
		list = append(list, s)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("failed to iterate stations: %w", err)
	}

	return NewTable(list), nil
}

// WriteSQLite creates (or replaces) the stations table in a SQLite file
func WriteSQLite(ctx context.Context, path string, t *Table) error {
	conn, err := openSQLite(path)
	if err != nil {
		return err
	}
	defer conn.Close()

	tx, err := conn.BeginTx(ctx, nil)
	if err != nil {
		return fmt.Errorf("failed to begin transaction: %w", err)
	}
	defer tx.Rollback()

	if _, err := tx.ExecContext(ctx, schemaSQL); err != nil {
		return fmt.Errorf("failed to create schema: %w", err)
	}
	if _, err := tx.ExecContext(ctx, `DELETE FROM stations`); err != nil {
		return fmt.Errorf("failed to clear stations: %w", err)
	}

	stmt, err := tx.PrepareContext(ctx,
		`INSERT INTO stations (id, name, lat, lon, routes) VALUES (?, ?, ?, ?, ?)`)
	if err != nil {
		return fmt.Errorf("failed to prepare insert: %w", err)
	}
	defer stmt.Close()

	for _, s := range t.All() {
		var lat, lon sql.NullFloat64
		if loc, ok := s.Location(); ok {
			lat = sql.NullFloat64{Float64: loc.Lat, Valid: true}
			lon = sql.NullFloat64{Float64: loc.Lon, Valid: true}
		}
		if _, err := stmt.ExecContext(ctx, s.ID, s.Name, lat, lon, joinRoutes(s.Routes)); err != nil {
			return fmt.Errorf("failed to insert station %s: %w", s.ID, err)
		}
	}

	return tx.Commit()
}

func splitRoutes(s string) []string {
	routes := []string{}
	for _, r := range strings.Split(s, ",") {
		if r = strings.TrimSpace(r); r != "" {
			routes = append(routes, r)
		}
	}
	return routes
}

func joinRoutes(routes []string) string {
	return strings.Join(routes, ",")
}
