package geo

import (
	"testing"

	"github.com/stretchr/testify/assert"
)

var (
	metroCenter  = Point{Lat: 38.898303, Lon: -77.028099}
	unionStation = Point{Lat: 38.897723, Lon: -77.006745}
)

func TestHaversineKm_SamePointIsZero(t *testing.T) {
	assert.Equal(t, 0.0, HaversineKm(metroCenter, metroCenter))
	assert.Equal(t, 0.0, HaversineKm(Point{}, Point{}))
}

func TestHaversineKm_Symmetric(t *testing.T) {
	points := []Point{
		metroCenter,
		unionStation,
		{Lat: 38.95, Lon: -77.08},
		{Lat: -33.86, Lon: 151.21},
	}

	for _, a := range points {
		for _, b := range points {
			assert.InDelta(t, HaversineKm(a, b), HaversineKm(b, a), 1e-9)
		}
	}
}

func TestHaversineKm_KnownDistance(t *testing.T) {
	// Metro Center to Union Station is roughly 1.85 km
	d := HaversineKm(metroCenter, unionStation)
	assert.InDelta(t, 1.85, d, 0.05)

	// One degree of latitude is ~111.2 km
	assert.InDelta(t, 111.19, HaversineKm(Point{Lat: 0, Lon: 0}, Point{Lat: 1, Lon: 0}), 0.01)
}

func TestBearing(t *testing.T) {
	tests := []struct {
		name     string
		to       Point
		expected float64
	}{
		{"north", Point{Lat: 1, Lon: 0}, 0},
		{"east", Point{Lat: 0, Lon: 1}, 90},
		{"south", Point{Lat: -1, Lon: 0}, 180},
		{"west", Point{Lat: 0, Lon: -1}, 270},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			assert.InDelta(t, tc.expected, Bearing(Point{}, tc.to), 1e-6)
		})
	}
}

func TestWithinRadius(t *testing.T) {
	assert.True(t, WithinRadius(metroCenter, unionStation, 2))
	assert.False(t, WithinRadius(metroCenter, unionStation, 0.5))
}
