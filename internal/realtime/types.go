package realtime

import (
	"fmt"
	"time"
)

// UnknownRoute is used when a trip update carries no route_id
const UnknownRoute = "UNKNOWN"

// MinMinutesAway keeps recently departed trains visible for a few minutes
const MinMinutesAway = -5.0

// Direction is the coarse travel direction derived from a trip's direction_id
type Direction string

const (
	Northbound Direction = "N"
	Southbound Direction = "S"
)

// directionFor maps a GTFS direction_id to a Direction.
// Only an explicit 0 is northbound; 1, any other value, or an absent flag
// are all southbound.
func directionFor(directionID *uint32) Direction {
	if directionID != nil && *directionID == 0 {
		return Northbound
	}
	return Southbound
}

// ArrivalRecord is one predicted train arrival at a station
type ArrivalRecord struct {
	Route         string
	ScheduledTime time.Time
	MinutesAway   float64
}

// DirectionalArrivals holds a station's arrivals split by direction.
// Each slice is sorted by ScheduledTime and capped to Limits.MaxTrains.
type DirectionalArrivals struct {
	Northbound []ArrivalRecord
	Southbound []ArrivalRecord
}

// Get returns the arrivals for one direction
func (d DirectionalArrivals) Get(dir Direction) []ArrivalRecord {
	if dir == Northbound {
		return d.Northbound
	}
	return d.Southbound
}

// Len returns the total number of arrivals in both directions
func (d DirectionalArrivals) Len() int {
	return len(d.Northbound) + len(d.Southbound)
}

// Clone returns a deep copy
func (d DirectionalArrivals) Clone() DirectionalArrivals {
	return DirectionalArrivals{
		Northbound: append([]ArrivalRecord(nil), d.Northbound...),
		Southbound: append([]ArrivalRecord(nil), d.Southbound...),
	}
}

// VehiclePosition is a parsed vehicle position from GTFS-RT.
// Optional fields are nil when the feed omits them.
type VehiclePosition struct {
	ID            string
	Route         *string
	Latitude      *float64
	Longitude     *float64
	CurrentStopID *string
	Status        *string
}

// StatusMap maps GTFS-RT VehicleStopStatus enum to string
var StatusMap = map[int32]string{
	0: "INCOMING_AT",
	1: "STOPPED_AT",
	2: "IN_TRANSIT_TO",
}

// Limits bounds what the arrival processor keeps
type Limits struct {
	MaxTrains  int
	MaxMinutes float64
}

// SkipReason explains why a feed entity or stop-time update was dropped
type SkipReason string

const (
	SkipNoTripUpdate SkipReason = "no_trip_update"
	SkipNoStopID     SkipReason = "no_stop_id"
	SkipNoTime       SkipReason = "no_time"
	SkipOutOfWindow  SkipReason = "out_of_window"
	SkipNoVehicle    SkipReason = "no_vehicle"
)

// result carries either a decoded value or the reason it was skipped
type result[T any] struct {
	Value T
	Skip  SkipReason
}

func (r result[T]) ok() bool {
	return r.Skip == ""
}

// Report summarises a processing pass
type Report struct {
	Entities int
	Records  int
	Skipped  map[SkipReason]int
}

func newReport() Report {
	return Report{Skipped: make(map[SkipReason]int)}
}

// TotalSkipped returns the number of skipped items across all reasons
func (r Report) TotalSkipped() int {
	total := 0
	for _, n := range r.Skipped {
		total += n
	}
	return total
}

// DecodeError means the feed envelope itself could not be parsed
type DecodeError struct {
	Feed string
	Err  error
}

func (e *DecodeError) Error() string {
	return fmt.Sprintf("decode %s: %v", e.Feed, e.Err)
}

func (e *DecodeError) Unwrap() error {
	return e.Err
}
