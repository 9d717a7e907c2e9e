package handlers

import (
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/go-chi/chi/v5"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/amdjml/WMATAPI/internal/api/models"
	"github.com/amdjml/WMATAPI/internal/realtime"
	"github.com/amdjml/WMATAPI/internal/scheduler"
	"github.com/amdjml/WMATAPI/internal/snapshot"
	"github.com/amdjml/WMATAPI/internal/stations"
)

var t0 = time.Date(2025, 3, 14, 8, 0, 0, 0, time.UTC)

func ptr[T any](v T) *T { return &v }

func testStations() *stations.Table {
	return stations.NewTable([]stations.Station{
		{ID: "A01", Name: "Metro Center", Latitude: ptr(38.898303), Longitude: ptr(-77.028099), Routes: []string{"RD"}},
		{ID: "A02", Name: "Farragut North", Latitude: ptr(38.903192), Longitude: ptr(-77.039766), Routes: []string{"RD"}},
		{ID: "B35", Name: "NoMa-Gallaudet U", Routes: []string{"RD"}},
		{ID: "C01", Name: "Metro Center", Latitude: ptr(38.898303), Longitude: ptr(-77.028099), Routes: []string{"BL"}},
	})
}

func arrival(route string, minutes float64) realtime.ArrivalRecord {
	return realtime.ArrivalRecord{
		Route:         route,
		ScheduledTime: t0.Add(time.Duration(minutes * float64(time.Minute))),
		MinutesAway:   minutes,
	}
}

func testSnapshot() *snapshot.Snapshot {
	return snapshot.New(map[string]realtime.DirectionalArrivals{
		"A01": {
			Northbound: []realtime.ArrivalRecord{arrival("RD", 3.04)},
			Southbound: []realtime.ArrivalRecord{arrival("RD", 5), arrival("RD", 11)},
		},
		"A02": {
			Northbound: []realtime.ArrivalRecord{},
			Southbound: []realtime.ArrivalRecord{arrival("RD", 7.26)},
		},
		"C01": {
			Northbound: []realtime.ArrivalRecord{arrival("BL", 2)},
			Southbound: []realtime.ArrivalRecord{},
		},
		"Z99": {
			Northbound: []realtime.ArrivalRecord{arrival("UNKNOWN", 1)},
			Southbound: []realtime.ArrivalRecord{},
		},
	}, []realtime.VehiclePosition{
		{ID: "v1", Route: ptr("RD"), Latitude: ptr(38.9), Longitude: ptr(-77.03), CurrentStopID: ptr("A01"), Status: ptr("STOPPED_AT")},
	}, t0)
}

func publishedCache(t *testing.T) *snapshot.Cache {
	t.Helper()
	cache := snapshot.NewCache()
	require.NoError(t, cache.Publish(testSnapshot()))
	return cache
}

func testRouter(cache SnapshotReader) http.Handler {
	arrivals := NewArrivalsHandler(cache, testStations())
	r := chi.NewRouter()
	r.Get("/by-id/{stopID}", arrivals.GetByID)
	r.Get("/by-location", arrivals.GetByLocation)
	r.Get("/by-route/{route}", arrivals.GetByRoute)
	r.Get("/routes", arrivals.GetRoutes)
	r.Get("/stations", arrivals.GetStations)
	r.Get("/vehicles", arrivals.GetVehicles)
	return r
}

func get(t *testing.T, h http.Handler, target string) *httptest.ResponseRecorder {
	t.Helper()
	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, target, nil))
	return rec
}

func decode[T any](t *testing.T, rec *httptest.ResponseRecorder) T {
	t.Helper()
	var v T
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &v), rec.Body.String())
	return v
}

func TestGetByID(t *testing.T) {
	h := testRouter(publishedCache(t))

	rec := get(t, h, "/by-id/A01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Equal(t, "application/json", rec.Header().Get("Content-Type"))

	resp := decode[models.StationResponse](t, rec)
	assert.Equal(t, "A01", resp.ID)
	assert.Equal(t, "Metro Center", resp.Name)
	require.NotNil(t, resp.Location)
	assert.InDelta(t, 38.898303, resp.Location[0], 1e-9)
	require.Len(t, resp.N, 1)
	assert.Equal(t, "RD", resp.N[0].Route)
	assert.Equal(t, 3.0, resp.N[0].Minutes)
	assert.Len(t, resp.S, 2)
	require.NotNil(t, resp.Updated)
	assert.True(t, t0.Equal(*resp.Updated))
}

func TestGetByID_KnownStationWithoutArrivals(t *testing.T) {
	rec := get(t, testRouter(publishedCache(t)), "/by-id/B35")
	require.Equal(t, http.StatusOK, rec.Code)

	body := rec.Body.String()
	assert.Contains(t, body, `"N":[]`)
	assert.Contains(t, body, `"S":[]`)
	assert.NotContains(t, body, `"location"`)
}

func TestGetByID_ArrivalsWithoutStationInfo(t *testing.T) {
	rec := get(t, testRouter(publishedCache(t)), "/by-id/Z99")
	require.Equal(t, http.StatusOK, rec.Code)
	resp := decode[models.StationResponse](t, rec)
	assert.Equal(t, "Z99", resp.Name, "unknown stations display their id")
}

func TestGetByID_NotFound(t *testing.T) {
	rec := get(t, testRouter(publishedCache(t)), "/by-id/NOPE")
	require.Equal(t, http.StatusNotFound, rec.Code)

	resp := decode[ErrorResponse](t, rec)
	assert.Equal(t, "Station not found", resp.Error)
	assert.NotEmpty(t, resp.Hint)
}

func TestGetByID_BeforeFirstPublish(t *testing.T) {
	rec := get(t, testRouter(snapshot.NewCache()), "/by-id/A01")
	require.Equal(t, http.StatusOK, rec.Code)
	assert.Contains(t, rec.Body.String(), `"updated":null`)
}

func TestGetByLocation(t *testing.T) {
	h := testRouter(publishedCache(t))

	// Just north of Metro Center; Farragut North is ~1.1km away
	rec := get(t, h, "/by-location?lat=38.8990&lon=-77.0281")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.StationsPayload](t, rec)
	require.Len(t, resp.Data, 2)
	ids := []string{resp.Data[0].ID, resp.Data[1].ID}
	assert.ElementsMatch(t, []string{"A01", "C01"}, ids)
	require.NotNil(t, resp.Data[0].Distance)
	assert.InDelta(t, 0.08, *resp.Data[0].Distance, 0.011)
	require.NotNil(t, resp.Data[0].Bearing)
	assert.InDelta(t, 180, *resp.Data[0].Bearing, 1)

	rec = get(t, h, "/by-location?lat=38.8990&lon=-77.0281&radius=2")
	resp = decode[models.StationsPayload](t, rec)
	require.Len(t, resp.Data, 3)
	assert.Equal(t, "A02", resp.Data[2].ID, "nearest first")
	for i := 1; i < len(resp.Data); i++ {
		assert.LessOrEqual(t, *resp.Data[i-1].Distance, *resp.Data[i].Distance)
	}
}

func TestGetByLocation_Invalid(t *testing.T) {
	h := testRouter(publishedCache(t))
	for _, target := range []string{
		"/by-location",
		"/by-location?lat=abc&lon=-77",
		"/by-location?lat=38.9",
		"/by-location?lat=91&lon=-77",
		"/by-location?lat=38.9&lon=-77&radius=-1",
		"/by-location?lat=NaN&lon=-77",
	} {
		rec := get(t, h, target)
		assert.Equal(t, http.StatusBadRequest, rec.Code, target)
	}
}

func TestGetByRoute(t *testing.T) {
	rec := get(t, testRouter(publishedCache(t)), "/by-route/bl")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.RouteResponse](t, rec)
	assert.Equal(t, "BL", resp.Route)
	require.Len(t, resp.Data, 1)
	assert.Equal(t, "C01", resp.Data[0].ID)
	assert.Len(t, resp.Data[0].N, 1)
	assert.NotNil(t, resp.Data[0].S)
	assert.Empty(t, resp.Data[0].S)

	rec = get(t, testRouter(publishedCache(t)), "/by-route/RD")
	resp = decode[models.RouteResponse](t, rec)
	require.Len(t, resp.Data, 2)
	assert.Equal(t, "A01", resp.Data[0].ID)
	assert.Equal(t, "A02", resp.Data[1].ID)
}

func TestGetRoutes(t *testing.T) {
	rec := get(t, testRouter(publishedCache(t)), "/routes")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.RoutesResponse](t, rec)
	assert.Equal(t, []string{"BL", "RD", "UNKNOWN"}, resp.Routes)
}

func TestGetStations(t *testing.T) {
	rec := get(t, testRouter(publishedCache(t)), "/stations")
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.StationsListResponse](t, rec)
	assert.Equal(t, 4, resp.TotalStationsConfigured)
	assert.Equal(t, 4, resp.TotalStationsWithTrains)
	assert.Equal(t, []string{"A01", "A02", "B35", "C01", "Z99"}, resp.AllStationIDs)
	require.Len(t, resp.StationsWithTrains, 4)
	assert.Equal(t, models.StationCount{ID: "A01", Name: "Metro Center", Trains: 3}, resp.StationsWithTrains[0])
}

func TestGetStations_SampleIsCapped(t *testing.T) {
	list := make([]stations.Station, 0, 30)
	for i := 0; i < 30; i++ {
		list = append(list, stations.Station{ID: string(rune('a'+i%26)) + strings.Repeat("x", i/26)})
	}
	h := NewArrivalsHandler(snapshot.NewCache(), stations.NewTable(list))

	rec := httptest.NewRecorder()
	h.GetStations(rec, httptest.NewRequest(http.MethodGet, "/stations", nil))
	resp := decode[models.StationsListResponse](t, rec)
	assert.Len(t, resp.AllStationIDs, 20)
	assert.Equal(t, 30, resp.TotalStationsConfigured)
}

func TestGetVehicles(t *testing.T) {
	h := testRouter(publishedCache(t))

	rec := get(t, h, "/vehicles")
	require.Equal(t, http.StatusOK, rec.Code)
	detailed := decode[struct {
		Data  []map[string]interface{} `json:"data"`
		Count int                      `json:"count"`
	}](t, rec)
	require.Len(t, detailed.Data, 1)
	assert.Equal(t, 1, detailed.Count)
	assert.Equal(t, "v1", detailed.Data[0]["id"])
	assert.Equal(t, "STOPPED_AT", detailed.Data[0]["status"])
	assert.Equal(t, "Metro Center", detailed.Data[0]["stop_name"])

	rec = get(t, h, "/vehicles?view=basic")
	require.Equal(t, http.StatusOK, rec.Code)
	basic := decode[struct {
		Data []map[string]interface{} `json:"data"`
	}](t, rec)
	require.Len(t, basic.Data, 1)
	assert.Equal(t, "RD", basic.Data[0]["route"])
	assert.NotContains(t, basic.Data[0], "status")

	assert.Equal(t, http.StatusBadRequest, get(t, h, "/vehicles?view=everything").Code)
}

type fakeRefresh struct {
	interval time.Duration
}

func (f fakeRefresh) Status() scheduler.Status {
	return scheduler.Status{State: "idle", Cycles: 4, Failures: 1}
}

func (f fakeRefresh) Interval() time.Duration { return f.interval }

type fakeCounter int

func (f fakeCounter) Len() int { return int(f) }

func newHealth(cache SnapshotReader, now time.Time) *HealthHandler {
	h := NewHealthHandler(cache, testStations(), fakeRefresh{interval: time.Minute}, fakeCounter(2))
	h.now = func() time.Time { return now }
	return h
}

func TestGetHealth(t *testing.T) {
	cache := publishedCache(t)
	tests := []struct {
		name   string
		cache  SnapshotReader
		now    time.Time
		code   int
		status string
	}{
		{"fresh", cache, t0.Add(time.Minute), http.StatusOK, models.HealthOK},
		{"three intervals", cache, t0.Add(3 * time.Minute), http.StatusOK, models.HealthOK},
		{"stale", cache, t0.Add(3*time.Minute + time.Second), http.StatusServiceUnavailable, models.HealthStale},
		{"never published", snapshot.NewCache(), t0, http.StatusServiceUnavailable, models.HealthStarting},
	}

	for _, tc := range tests {
		t.Run(tc.name, func(t *testing.T) {
			rec := httptest.NewRecorder()
			newHealth(tc.cache, tc.now).GetHealth(rec, httptest.NewRequest(http.MethodGet, "/health", nil))

			assert.Equal(t, tc.code, rec.Code)
			resp := decode[models.HealthResponse](t, rec)
			assert.Equal(t, tc.status, resp.Status)
		})
	}
}

func TestGetDebug(t *testing.T) {
	rec := httptest.NewRecorder()
	newHealth(publishedCache(t), t0).GetDebug(rec, httptest.NewRequest(http.MethodGet, "/debug", nil))
	require.Equal(t, http.StatusOK, rec.Code)

	resp := decode[models.DebugResponse](t, rec)
	assert.Equal(t, 4, resp.StationsConfigured)
	assert.Equal(t, 4, resp.StationsWithArrivals)
	assert.Equal(t, 1, resp.TotalVehicles)
	assert.Equal(t, 2, resp.WebsocketClients)
	assert.Equal(t, []string{"A01", "A02", "C01", "Z99"}, resp.SampleArrivalStationIDs)
	assert.EqualValues(t, 4, resp.Refresh.Cycles)
	assert.NotEmpty(t, resp.SnapshotID)
}
