package stations

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"sort"

	"github.com/rs/zerolog/log"

	"github.com/amdjml/WMATAPI/internal/geo"
)

// Station is static reference data for one stop
type Station struct {
	ID        string   `json:"-"`
	Name      string   `json:"name"`
	Latitude  *float64 `json:"lat,omitempty"`
	Longitude *float64 `json:"lon,omitempty"`
	Routes    []string `json:"routes"`
}

// Location returns the station's coordinates, if known
func (s Station) Location() (geo.Point, bool) {
	if s.Latitude == nil || s.Longitude == nil {
		return geo.Point{}, false
	}
	return geo.Point{Lat: *s.Latitude, Lon: *s.Longitude}, true
}

// Table is the read-only station lookup loaded at startup
type Table struct {
	stations map[string]Station
}

// NewTable builds a table from a list of stations. Later duplicates win.
func NewTable(list []Station) *Table {
	t := &Table{stations: make(map[string]Station, len(list))}
	for _, s := range list {
		if s.Routes == nil {
			s.Routes = []string{}
		}
		t.stations[s.ID] = s
	}
	return t
}

// Lookup returns the station with the given id
func (t *Table) Lookup(id string) (Station, bool) {
	s, ok := t.stations[id]
	return s, ok
}

// Display returns the station's name, or the id itself for unknown stations
func (t *Table) Display(id string) string {
	if s, ok := t.stations[id]; ok && s.Name != "" {
		return s.Name
	}
	return id
}

// Len returns the number of stations
func (t *Table) Len() int {
	return len(t.stations)
}

// IDs returns every station id, sorted
func (t *Table) IDs() []string {
	ids := make([]string, 0, len(t.stations))
	for id := range t.stations {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	return ids
}

// All returns every station ordered by id
func (t *Table) All() []Station {
	out := make([]Station, 0, len(t.stations))
	for _, id := range t.IDs() {
		out = append(out, t.stations[id])
	}
	return out
}

// LoadJSON reads a station file in the {"<id>": {"name", "lat", "lon", "routes"}}
// format. A missing file is not an error: the table is empty and every
// station falls back to its id for display.
func LoadJSON(path string) (*Table, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, fs.ErrNotExist) {
		log.Warn().Str("file", path).Msg("Stations file not found, using empty station table")
		return NewTable(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read stations file: %w", err)
	}

	var raw map[string]Station
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, fmt.Errorf("failed to parse stations file %s: %w", path, err)
	}

	list := make([]Station, 0, len(raw))
	for id, s := range raw {
		s.ID = id
		list = append(list, s)
	}
	return NewTable(list), nil
}

// WriteJSON writes the table in the format LoadJSON reads
func WriteJSON(path string, t *Table) error {
	out := make(map[string]Station, t.Len())
	for id, s := range t.stations {
		out[id] = s
	}

	data, err := json.MarshalIndent(out, "", "  ")
	if err != nil {
		return fmt.Errorf("failed to encode stations: %w", err)
	}
	if err := os.WriteFile(path, append(data, '\n'), 0644); err != nil {
		return fmt.Errorf("failed to write stations file: %w", err)
	}
	return nil
}
