package gtfs

import (
	"archive/zip"
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"
	"strconv"
	"strings"

	"github.com/rs/zerolog/log"
)

// ErrNoStops is returned when the archive has no usable stops.txt
var ErrNoStops = errors.New("gtfs archive has no stops")

// Parse reads a GTFS zip file from disk
func Parse(zipPath string) (*Data, error) {
	r, err := zip.OpenReader(zipPath)
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	defer r.Close()

	return parseFiles(r.File)
}

// ParseBytes reads a GTFS zip held in memory
func ParseBytes(b []byte) (*Data, error) {
	r, err := zip.NewReader(bytes.NewReader(b), int64(len(b)))
	if err != nil {
		return nil, fmt.Errorf("failed to open zip: %w", err)
	}
	return parseFiles(r.File)
}

func parseFiles(zipFiles []*zip.File) (*Data, error) {
	files := make(map[string]*zip.File, len(zipFiles))
	for _, f := range zipFiles {
		files[f.Name] = f
	}

	data := &Data{}

	stops, ok := files["stops.txt"]
	if !ok {
		return nil, ErrNoStops
	}
	if err := readTable(stops, func(get fieldFunc) {
		data.Stops = append(data.Stops, Stop{
			StopID:        get("stop_id"),
			StopName:      get("stop_name"),
			StopLat:       parseFloat(get("stop_lat")),
			StopLon:       parseFloat(get("stop_lon")),
			LocationType:  parseInt(get("location_type")),
			ParentStation: get("parent_station"),
		})
	}); err != nil {
		return nil, fmt.Errorf("failed to parse stops.txt: %w", err)
	}
	if len(data.Stops) == 0 {
		return nil, ErrNoStops
	}

	// The remaining tables only enrich stations with their routes
	optional := []struct {
		name string
		row  func(get fieldFunc)
	}{
		{"routes.txt", func(get fieldFunc) {
			data.Routes = append(data.Routes, Route{
				RouteID:        get("route_id"),
				RouteShortName: get("route_short_name"),
				RouteLongName:  get("route_long_name"),
				RouteType:      parseInt(get("route_type")),
			})
		}},
		{"trips.txt", func(get fieldFunc) {
			data.Trips = append(data.Trips, Trip{
				RouteID:     get("route_id"),
				TripID:      get("trip_id"),
				DirectionID: parseInt(get("direction_id")),
			})
		}},
		{"stop_times.txt", func(get fieldFunc) {
			data.StopTimes = append(data.StopTimes, StopTime{
				TripID:       get("trip_id"),
				StopID:       get("stop_id"),
				StopSequence: parseInt(get("stop_sequence")),
			})
		}},
	}
	for _, table := range optional {
		f, ok := files[table.name]
		if !ok {
			log.Warn().Str("file", table.name).Msg("GTFS table missing")
			continue
		}
		if err := readTable(f, table.row); err != nil {
			log.Warn().Err(err).Str("file", table.name).Msg("Failed to parse GTFS table")
		}
	}

	log.Debug().
		Int("routes", len(data.Routes)).
		Int("stops", len(data.Stops)).
		Int("trips", len(data.Trips)).
		Int("stop_times", len(data.StopTimes)).
		Msg("GTFS parsed")

	return data, nil
}

type fieldFunc func(name string) string

// readTable calls row once per CSV record. Malformed records are skipped.
func readTable(f *zip.File, row func(get fieldFunc)) error {
	rc, err := f.Open()
	if err != nil {
		return err
	}
	defer rc.Close()

	reader := csv.NewReader(rc)
	reader.FieldsPerRecord = -1

	header, err := reader.Read()
	if err != nil {
		return err
	}
	idx := makeIndex(header)

	for {
		record, err := reader.Read()
		if err == io.EOF {
			return nil
		}
		if err != nil {
			continue
		}
		row(func(name string) string {
			return getField(record, idx, name)
		})
	}
}

// makeIndex maps column names to positions. The UTF-8 BOM some agencies
// emit is stripped from the first column.
func makeIndex(header []string) map[string]int {
	idx := make(map[string]int, len(header))
	for i, h := range header {
		idx[strings.TrimSpace(strings.TrimPrefix(h, "\uFEFF"))] = i
	}
	return idx
}

func getField(record []string, idx map[string]int, field string) string {
	if i, ok := idx[field]; ok && i < len(record) {
		return strings.TrimSpace(record[i])
	}
	return ""
}

func parseFloat(s string) float64 {
	v, _ := strconv.ParseFloat(s, 64)
	return v
}

func parseInt(s string) int {
	v, _ := strconv.Atoi(s)
	return v
}
