package realtime

import (
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"golang.org/x/exp/slices"
)

// tripArrival is one surviving stop-time update, before grouping
type tripArrival struct {
	StationID string
	Direction Direction
	Record    ArrivalRecord
}

// ProcessTripUpdates decodes a trip-updates feed into per-station arrivals.
// now is the reference time for minutesAway; arrivals outside
// [MinMinutesAway, limits.MaxMinutes] are dropped. Malformed entities are
// skipped and counted in the report, they never abort the batch.
func ProcessTripUpdates(raw []byte, now time.Time, limits Limits) (map[string]DirectionalArrivals, Report, error) {
	report := newReport()

	feed, err := decodeFeed("trip_updates", raw)
	if err != nil {
		return nil, report, err
	}

	stations := make(map[string]DirectionalArrivals)
	for _, entity := range feed.Entity {
		report.Entities++

		for _, res := range decodeTripEntity(entity, now, limits) {
			if !res.ok() {
				report.Skipped[res.Skip]++
				continue
			}

			a := res.Value
			arrivals := stations[a.StationID]
			if a.Direction == Northbound {
				arrivals.Northbound = append(arrivals.Northbound, a.Record)
			} else {
				arrivals.Southbound = append(arrivals.Southbound, a.Record)
			}
			stations[a.StationID] = arrivals
		}
	}

	for id, arrivals := range stations {
		arrivals.Northbound = sortAndCap(arrivals.Northbound, limits.MaxTrains)
		arrivals.Southbound = sortAndCap(arrivals.Southbound, limits.MaxTrains)
		report.Records += arrivals.Len()
		stations[id] = arrivals
	}

	return stations, report, nil
}

// decodeTripEntity turns one feed entity into per-stop results
func decodeTripEntity(entity *gtfs.FeedEntity, now time.Time, limits Limits) []result[tripArrival] {
	tripUpdate := entity.GetTripUpdate()
	if tripUpdate == nil {
		return []result[tripArrival]{{Skip: SkipNoTripUpdate}}
	}

	route := UnknownRoute
	var directionID *uint32
	if trip := tripUpdate.Trip; trip != nil {
		if trip.RouteId != nil {
			route = *trip.RouteId
		}
		directionID = trip.DirectionId
	}
	direction := directionFor(directionID)

	results := make([]result[tripArrival], 0, len(tripUpdate.StopTimeUpdate))
	for _, stu := range tripUpdate.StopTimeUpdate {
		results = append(results, decodeStopTimeUpdate(stu, route, direction, now, limits))
	}
	return results
}

func decodeStopTimeUpdate(stu *gtfs.TripUpdate_StopTimeUpdate, route string, direction Direction, now time.Time, limits Limits) result[tripArrival] {
	if stu == nil || stu.StopId == nil || *stu.StopId == "" {
		return result[tripArrival]{Skip: SkipNoStopID}
	}

	// Prefer arrival time, fall back to departure time
	var unix int64
	switch {
	case stu.Arrival != nil && stu.Arrival.Time != nil:
		unix = *stu.Arrival.Time
	case stu.Departure != nil && stu.Departure.Time != nil:
		unix = *stu.Departure.Time
	default:
		return result[tripArrival]{Skip: SkipNoTime}
	}

	predicted := time.Unix(unix, 0).UTC()
	minutesAway := predicted.Sub(now).Minutes()
	if minutesAway > limits.MaxMinutes || minutesAway < MinMinutesAway {
		return result[tripArrival]{Skip: SkipOutOfWindow}
	}

	return result[tripArrival]{Value: tripArrival{
		StationID: *stu.StopId,
		Direction: direction,
		Record: ArrivalRecord{
			Route:         route,
			ScheduledTime: predicted,
			MinutesAway:   minutesAway,
		},
	}}
}

// sortAndCap orders arrivals by time and keeps the first maxTrains.
// The result is never nil so it encodes as an empty list.
func sortAndCap(records []ArrivalRecord, maxTrains int) []ArrivalRecord {
	if records == nil {
		return []ArrivalRecord{}
	}
	slices.SortStableFunc(records, func(a, b ArrivalRecord) int {
		return a.ScheduledTime.Compare(b.ScheduledTime)
	})
	if maxTrains >= 0 && len(records) > maxTrains {
		records = records[:maxTrains:maxTrains]
	}
	return records
}
