package models

import (
	"time"

	"github.com/amdjml/WMATAPI/internal/scheduler"
)

// StationResponse is the JSON response for GET /by-id/{stopID}
type StationResponse struct {
	StationArrivals
	Updated *time.Time `json:"updated"`
}

// RouteResponse is the JSON response for GET /by-route/{route}
type RouteResponse struct {
	Route   string            `json:"route"`
	Data    []StationArrivals `json:"data"`
	Updated *time.Time        `json:"updated"`
}

// RoutesResponse is the JSON response for GET /routes
type RoutesResponse struct {
	Routes  []string   `json:"routes"`
	Updated *time.Time `json:"updated"`
}

// StationCount is one entry of GET /stations
type StationCount struct {
	ID     string `json:"id"`
	Name   string `json:"name"`
	Trains int    `json:"trains"`
}

// StationsListResponse is the JSON response for GET /stations
type StationsListResponse struct {
	StationsWithTrains      []StationCount `json:"stations_with_trains"`
	TotalStationsConfigured int            `json:"total_stations_configured"`
	TotalStationsWithTrains int            `json:"total_stations_with_trains"`
	AllStationIDs           []string       `json:"all_station_ids"`
	Updated                 *time.Time     `json:"updated"`
}

// Vehicle is one train position as served to clients.
// The groups tags select fields for the basic and detailed views.
type Vehicle struct {
	ID        string   `json:"id" groups:"basic,detailed"`
	Route     *string  `json:"route" groups:"basic,detailed"`
	Latitude  *float64 `json:"lat" groups:"basic,detailed"`
	Longitude *float64 `json:"lon" groups:"basic,detailed"`
	StopID    *string  `json:"stop_id" groups:"detailed"`
	StopName  *string  `json:"stop_name,omitempty" groups:"detailed"`
	Status    *string  `json:"status" groups:"detailed"`
}

// VehiclesResponse is the JSON response for GET /vehicles
type VehiclesResponse struct {
	Data    interface{} `json:"data"`
	Count   int         `json:"count"`
	Updated *time.Time  `json:"updated"`
}

// DebugResponse is the JSON response for GET /debug
type DebugResponse struct {
	LastUpdate                 *time.Time       `json:"last_update"`
	SnapshotID                 string           `json:"snapshot_id,omitempty"`
	StationsConfigured         int              `json:"stations_configured"`
	StationsWithArrivals       int              `json:"stations_with_arrivals"`
	SampleConfiguredStationIDs []string         `json:"sample_configured_station_ids"`
	SampleArrivalStationIDs    []string         `json:"sample_arrival_station_ids"`
	TotalVehicles              int              `json:"total_vehicles"`
	WebsocketClients           int              `json:"websocket_clients"`
	Refresh                    scheduler.Status `json:"refresh"`
}

// HealthResponse is the JSON response for GET /health
type HealthResponse struct {
	Status     string     `json:"status"`
	Updated    *time.Time `json:"updated"`
	AgeSeconds int        `json:"age_seconds"`
	Timestamp  time.Time  `json:"timestamp"`
}

// Health status values
const (
	HealthOK       = "ok"
	HealthStale    = "stale"
	HealthStarting = "starting"
)

// StaleAfter is how many refresh intervals may pass before the cache is
// reported stale
const StaleAfter = 3

// CalculateHealthStatus reports "ok" while the snapshot is younger than
// StaleAfter intervals, "starting" before the first publish, "stale" otherwise
func CalculateHealthStatus(age time.Duration, published bool, interval time.Duration) string {
	if !published {
		return HealthStarting
	}
	if age > StaleAfter*interval {
		return HealthStale
	}
	return HealthOK
}
