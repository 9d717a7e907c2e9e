package realtime

import (
	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
)

// ProcessVehiclePositions decodes a vehicle-positions feed into a flat list
// in feed order. Entities without a vehicle sub-record are skipped.
func ProcessVehiclePositions(raw []byte) ([]VehiclePosition, Report, error) {
	report := newReport()

	feed, err := decodeFeed("vehicle_positions", raw)
	if err != nil {
		return nil, report, err
	}

	vehicles := make([]VehiclePosition, 0, len(feed.Entity))
	for _, entity := range feed.Entity {
		report.Entities++

		res := decodeVehicleEntity(entity)
		if !res.ok() {
			report.Skipped[res.Skip]++
			continue
		}
		vehicles = append(vehicles, res.Value)
	}
	report.Records = len(vehicles)

	return vehicles, report, nil
}

func decodeVehicleEntity(entity *gtfs.FeedEntity) result[VehiclePosition] {
	vehicle := entity.GetVehicle()
	if vehicle == nil {
		return result[VehiclePosition]{Skip: SkipNoVehicle}
	}

	pos := VehiclePosition{ID: entity.GetId()}

	if vehicle.Trip != nil && vehicle.Trip.RouteId != nil {
		route := *vehicle.Trip.RouteId
		pos.Route = &route
	}

	if vehicle.Position != nil {
		if vehicle.Position.Latitude != nil {
			lat := float64(*vehicle.Position.Latitude)
			pos.Latitude = &lat
		}
		if vehicle.Position.Longitude != nil {
			lon := float64(*vehicle.Position.Longitude)
			pos.Longitude = &lon
		}
	}

	if vehicle.StopId != nil {
		stopID := *vehicle.StopId
		pos.CurrentStopID = &stopID
	}

	if vehicle.CurrentStatus != nil {
		if status, ok := StatusMap[int32(*vehicle.CurrentStatus)]; ok {
			pos.Status = &status
		}
	}

	return result[VehiclePosition]{Value: pos}
}
