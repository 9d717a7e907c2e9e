package models

import (
	"encoding/json"
	"math"
	"time"

	"golang.org/x/exp/slices"

	"github.com/amdjml/WMATAPI/internal/realtime"
	"github.com/amdjml/WMATAPI/internal/snapshot"
	"github.com/amdjml/WMATAPI/internal/stations"
)

// Train is one predicted arrival as served to clients
type Train struct {
	Route   string    `json:"route"`
	Time    time.Time `json:"time"`
	Minutes float64   `json:"minutes"` // rounded to 0.1
}

// StationArrivals is a station with its arrivals in both directions.
// Location is [lat, lon] and only present when the station table has it.
type StationArrivals struct {
	ID       string      `json:"id"`
	Name     string      `json:"name"`
	Location *[2]float64 `json:"location,omitempty"`
	Distance *float64    `json:"distance,omitempty"`
	Bearing  *float64    `json:"bearing,omitempty"`
	N        []Train     `json:"N"`
	S        []Train     `json:"S"`
}

// StationsPayload is the full arrival board pushed to WebSocket subscribers
type StationsPayload struct {
	Data    []StationArrivals `json:"data"`
	Updated *time.Time        `json:"updated"`
}

// Updated returns the snapshot's generation time, or nil before the first publish
func Updated(s *snapshot.Snapshot) *time.Time {
	if s.IsEmpty() {
		return nil
	}
	t := s.GeneratedAt
	return &t
}

// RoundTo rounds v to the given number of decimal places
func RoundTo(v float64, places int) float64 {
	p := math.Pow(10, float64(places))
	return math.Round(v*p) / p
}

// NewTrains converts arrival records to their client form. The result is
// never nil.
func NewTrains(records []realtime.ArrivalRecord) []Train {
	trains := make([]Train, 0, len(records))
	for _, r := range records {
		trains = append(trains, Train{
			Route:   r.Route,
			Time:    r.ScheduledTime,
			Minutes: RoundTo(r.MinutesAway, 1),
		})
	}
	return trains
}

// NewStationArrivals joins a station's arrivals with its static data
func NewStationArrivals(id string, table *stations.Table, arrivals realtime.DirectionalArrivals) StationArrivals {
	sa := StationArrivals{
		ID:   id,
		Name: table.Display(id),
		N:    NewTrains(arrivals.Northbound),
		S:    NewTrains(arrivals.Southbound),
	}
	if st, ok := table.Lookup(id); ok {
		if loc, ok := st.Location(); ok {
			sa.Location = &[2]float64{loc.Lat, loc.Lon}
		}
	}
	return sa
}

// SortedStationIDs returns the ids of every station with arrivals, sorted
func SortedStationIDs(s *snapshot.Snapshot) []string {
	ids := make([]string, 0, len(s.Stations))
	for id := range s.Stations {
		ids = append(ids, id)
	}
	slices.Sort(ids)
	return ids
}

// BuildStationsPayload lists every station with arrivals, ordered by id
func BuildStationsPayload(s *snapshot.Snapshot, table *stations.Table) StationsPayload {
	data := make([]StationArrivals, 0, len(s.Stations))
	for _, id := range SortedStationIDs(s) {
		data = append(data, NewStationArrivals(id, table, s.Stations[id]))
	}
	return StationsPayload{Data: data, Updated: Updated(s)}
}

// SnapshotEncoder returns the function used to serialise a snapshot once
// per broadcast
func SnapshotEncoder(table *stations.Table) func(*snapshot.Snapshot) ([]byte, error) {
	return func(s *snapshot.Snapshot) ([]byte, error) {
		return json.Marshal(BuildStationsPayload(s, table))
	}
}
