package snapshot

import (
	"time"

	"github.com/google/uuid"

	"github.com/amdjml/WMATAPI/internal/realtime"
)

// Snapshot is one published view of the network: arrivals per station,
// vehicle positions and the time it was generated. It is never mutated
// after construction.
type Snapshot struct {
	ID          string
	Stations    map[string]realtime.DirectionalArrivals
	Vehicles    []realtime.VehiclePosition
	GeneratedAt time.Time
}

// New builds a snapshot from freshly processed feed data. The inputs are
// copied so later changes by the caller cannot leak into a published snapshot.
func New(stations map[string]realtime.DirectionalArrivals, vehicles []realtime.VehiclePosition, generatedAt time.Time) *Snapshot {
	s := &Snapshot{
		ID:          uuid.New().String(),
		Stations:    make(map[string]realtime.DirectionalArrivals, len(stations)),
		Vehicles:    make([]realtime.VehiclePosition, len(vehicles)),
		GeneratedAt: generatedAt.UTC(),
	}
	for id, arrivals := range stations {
		s.Stations[id] = arrivals.Clone()
	}
	copy(s.Vehicles, vehicles)
	return s
}

// Empty is the snapshot served before the first publish
func Empty() *Snapshot {
	return &Snapshot{
		Stations: map[string]realtime.DirectionalArrivals{},
		Vehicles: []realtime.VehiclePosition{},
	}
}

// IsEmpty reports whether the snapshot was never published
func (s *Snapshot) IsEmpty() bool {
	return s.GeneratedAt.IsZero()
}

// Age returns how long ago the snapshot was generated
func (s *Snapshot) Age(now time.Time) time.Duration {
	if s.IsEmpty() {
		return 0
	}
	return now.Sub(s.GeneratedAt)
}

// Arrivals returns the arrivals for one station
func (s *Snapshot) Arrivals(stationID string) (realtime.DirectionalArrivals, bool) {
	arrivals, ok := s.Stations[stationID]
	return arrivals, ok
}

// TrainCount returns the number of arrivals across all stations
func (s *Snapshot) TrainCount() int {
	total := 0
	for _, arrivals := range s.Stations {
		total += arrivals.Len()
	}
	return total
}
