// Package gtfsrttest builds GTFS-Realtime payloads for tests.
package gtfsrttest

import (
	"fmt"
	"time"

	gtfs "github.com/MobilityData/gtfs-realtime-bindings/golang/gtfs"
	"google.golang.org/protobuf/proto"
)

// Feed accumulates entities and marshals them into a FeedMessage
type Feed struct {
	msg *gtfs.FeedMessage
}

// NewFeed creates a feed with a valid header stamped at ts
func NewFeed(ts time.Time) *Feed {
	return &Feed{msg: &gtfs.FeedMessage{
		Header: &gtfs.FeedHeader{
			GtfsRealtimeVersion: proto.String("2.0"),
			Incrementality:      gtfs.FeedHeader_FULL_DATASET.Enum(),
			Timestamp:           proto.Uint64(uint64(ts.Unix())),
		},
	}}
}

// StopTime describes one stop-time update. Zero times are left unset.
type StopTime struct {
	StopID    string
	Arrival   time.Time
	Departure time.Time
}

// Trip describes a trip update entity. Route "" leaves route_id unset,
// a nil Direction leaves direction_id unset.
type Trip struct {
	TripID    string
	Route     string
	Direction *uint32
	Stops     []StopTime
}

// Dir is a helper for Trip.Direction
func Dir(d uint32) *uint32 {
	return &d
}

// AddTrip appends a trip-update entity
func (f *Feed) AddTrip(trip Trip) *Feed {
	td := &gtfs.TripDescriptor{TripId: proto.String(trip.TripID)}
	if trip.Route != "" {
		td.RouteId = proto.String(trip.Route)
	}
	td.DirectionId = trip.Direction

	tu := &gtfs.TripUpdate{Trip: td}
	for _, st := range trip.Stops {
		stu := &gtfs.TripUpdate_StopTimeUpdate{}
		if st.StopID != "" {
			stu.StopId = proto.String(st.StopID)
		}
		if !st.Arrival.IsZero() {
			stu.Arrival = &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(st.Arrival.Unix())}
		}
		if !st.Departure.IsZero() {
			stu.Departure = &gtfs.TripUpdate_StopTimeEvent{Time: proto.Int64(st.Departure.Unix())}
		}
		tu.StopTimeUpdate = append(tu.StopTimeUpdate, stu)
	}

	f.msg.Entity = append(f.msg.Entity, &gtfs.FeedEntity{
		Id:         proto.String(f.nextID()),
		TripUpdate: tu,
	})
	return f
}

// Vehicle describes a vehicle-position entity. Empty/nil fields are unset.
type Vehicle struct {
	ID       string
	Route    string
	Lat, Lon *float32
	StopID   string
	Status   *gtfs.VehiclePosition_VehicleStopStatus
}

// AddVehicle appends a vehicle-position entity
func (f *Feed) AddVehicle(v Vehicle) *Feed {
	vp := &gtfs.VehiclePosition{}
	if v.Route != "" {
		vp.Trip = &gtfs.TripDescriptor{RouteId: proto.String(v.Route)}
	}
	if v.Lat != nil && v.Lon != nil {
		vp.Position = &gtfs.Position{Latitude: v.Lat, Longitude: v.Lon}
	}
	if v.StopID != "" {
		vp.StopId = proto.String(v.StopID)
	}
	vp.CurrentStatus = v.Status

	id := v.ID
	if id == "" {
		id = f.nextID()
	}
	f.msg.Entity = append(f.msg.Entity, &gtfs.FeedEntity{
		Id:      proto.String(id),
		Vehicle: vp,
	})
	return f
}

// AddEmpty appends an entity with neither a trip update nor a vehicle
func (f *Feed) AddEmpty() *Feed {
	f.msg.Entity = append(f.msg.Entity, &gtfs.FeedEntity{
		Id:        proto.String(f.nextID()),
		IsDeleted: proto.Bool(true),
	})
	return f
}

// Bytes marshals the feed
func (f *Feed) Bytes() []byte {
	b, err := proto.Marshal(f.msg)
	if err != nil {
		panic(fmt.Sprintf("gtfsrttest: marshal feed: %v", err))
	}
	return b
}

func (f *Feed) nextID() string {
	return fmt.Sprintf("e%d", len(f.msg.Entity)+1)
}
