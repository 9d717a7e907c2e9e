package handlers

import (
	"math"
	"net/http"
	"sort"
	"strconv"
	"strings"

	"github.com/go-chi/chi/v5"
	"github.com/liip/sheriff"
	"github.com/rs/zerolog/log"

	"github.com/amdjml/WMATAPI/internal/api/models"
	"github.com/amdjml/WMATAPI/internal/geo"
	"github.com/amdjml/WMATAPI/internal/realtime"
	"github.com/amdjml/WMATAPI/internal/snapshot"
	"github.com/amdjml/WMATAPI/internal/stations"
)

const (
	// DefaultRadiusKm is the search radius for /by-location when none is given
	DefaultRadiusKm = 0.5

	stationListSample = 20
)

// SnapshotReader provides the current snapshot
type SnapshotReader interface {
	Current() *snapshot.Snapshot
}

// ArrivalsHandler serves read-only queries over the current snapshot
type ArrivalsHandler struct {
	cache    SnapshotReader
	stations *stations.Table
}

// NewArrivalsHandler creates a new handler
func NewArrivalsHandler(cache SnapshotReader, table *stations.Table) *ArrivalsHandler {
	return &ArrivalsHandler{cache: cache, stations: table}
}

// GetByID handles GET /by-id/{stopID}
// Returns 404 only when the id is neither a known station nor has arrivals
func (h *ArrivalsHandler) GetByID(w http.ResponseWriter, r *http.Request) {
	stopID := chi.URLParam(r, "stopID")
	snap := h.cache.Current()

	_, known := h.stations.Lookup(stopID)
	arrivals, hasArrivals := snap.Arrivals(stopID)
	if !known && arrivals.Len() == 0 {
		log.Warn().
			Str("stop_id", stopID).
			Int("stations_configured", h.stations.Len()).
			Int("stations_with_arrivals", len(snap.Stations)).
			Msg("Station not found")
		writeError(w, http.StatusNotFound, "Station not found",
			"Check /stations or /routes for available station IDs")
		return
	}
	if !hasArrivals {
		arrivals = realtime.DirectionalArrivals{}
	}

	writeJSON(w, http.StatusOK, models.StationResponse{
		StationArrivals: models.NewStationArrivals(stopID, h.stations, arrivals),
		Updated:         models.Updated(snap),
	})
}

// GetByLocation handles GET /by-location?lat=&lon=&radius=
// Returns stations with arrivals within radius km, nearest first
func (h *ArrivalsHandler) GetByLocation(w http.ResponseWriter, r *http.Request) {
	q := r.URL.Query()
	lat, errLat := parseCoordinate(q.Get("lat"), 90)
	lon, errLon := parseCoordinate(q.Get("lon"), 180)
	if errLat != nil || errLon != nil {
		writeError(w, http.StatusBadRequest, "Invalid lat/lon parameters", "")
		return
	}

	radius := DefaultRadiusKm
	if raw := q.Get("radius"); raw != "" {
		v, err := strconv.ParseFloat(raw, 64)
		if err != nil || v < 0 || math.IsNaN(v) {
			writeError(w, http.StatusBadRequest, "Invalid radius parameter", "")
			return
		}
		radius = v
	}

	origin := geo.Point{Lat: lat, Lon: lon}
	snap := h.cache.Current()

	nearby := make([]models.StationArrivals, 0)
	for _, id := range models.SortedStationIDs(snap) {
		st, ok := h.stations.Lookup(id)
		if !ok {
			continue
		}
		loc, ok := st.Location()
		if !ok {
			continue
		}

		distance := geo.HaversineKm(origin, loc)
		if distance > radius {
			continue
		}

		sa := models.NewStationArrivals(id, h.stations, snap.Stations[id])
		d := models.RoundTo(distance, 2)
		b := models.RoundTo(geo.Bearing(origin, loc), 1)
		sa.Distance, sa.Bearing = &d, &b
		nearby = append(nearby, sa)
	}

	sort.SliceStable(nearby, func(i, j int) bool {
		return *nearby[i].Distance < *nearby[j].Distance
	})

	writeJSON(w, http.StatusOK, models.StationsPayload{
		Data:    nearby,
		Updated: models.Updated(snap),
	})
}

// GetByRoute handles GET /by-route/{route}
// Returns stations with at least one arrival on the route, trains filtered
// to that route
func (h *ArrivalsHandler) GetByRoute(w http.ResponseWriter, r *http.Request) {
	route := strings.ToUpper(chi.URLParam(r, "route"))
	snap := h.cache.Current()

	data := make([]models.StationArrivals, 0)
	for _, id := range models.SortedStationIDs(snap) {
		arrivals := snap.Stations[id]
		filtered := realtime.DirectionalArrivals{
			Northbound: filterRoute(arrivals.Northbound, route),
			Southbound: filterRoute(arrivals.Southbound, route),
		}
		if filtered.Len() == 0 {
			continue
		}
		data = append(data, models.NewStationArrivals(id, h.stations, filtered))
	}

	writeJSON(w, http.StatusOK, models.RouteResponse{
		Route:   route,
		Data:    data,
		Updated: models.Updated(snap),
	})
}

// GetRoutes handles GET /routes
func (h *ArrivalsHandler) GetRoutes(w http.ResponseWriter, r *http.Request) {
	snap := h.cache.Current()

	seen := make(map[string]struct{})
	for _, arrivals := range snap.Stations {
		for _, dir := range []realtime.Direction{realtime.Northbound, realtime.Southbound} {
			for _, rec := range arrivals.Get(dir) {
				seen[rec.Route] = struct{}{}
			}
		}
	}

	routes := make([]string, 0, len(seen))
	for route := range seen {
		routes = append(routes, route)
	}
	sort.Strings(routes)

	writeJSON(w, http.StatusOK, models.RoutesResponse{
		Routes:  routes,
		Updated: models.Updated(snap),
	})
}

// GetStations handles GET /stations
// Lists stations with trains plus a sample of every known station id
func (h *ArrivalsHandler) GetStations(w http.ResponseWriter, r *http.Request) {
	snap := h.cache.Current()

	counts := make([]models.StationCount, 0, len(snap.Stations))
	for _, id := range models.SortedStationIDs(snap) {
		counts = append(counts, models.StationCount{
			ID:     id,
			Name:   h.stations.Display(id),
			Trains: snap.Stations[id].Len(),
		})
	}

	all := make(map[string]struct{}, len(snap.Stations)+h.stations.Len())
	for id := range snap.Stations {
		all[id] = struct{}{}
	}
	for _, id := range h.stations.IDs() {
		all[id] = struct{}{}
	}
	ids := make([]string, 0, len(all))
	for id := range all {
		ids = append(ids, id)
	}
	sort.Strings(ids)
	if len(ids) > stationListSample {
		ids = ids[:stationListSample]
	}

	writeJSON(w, http.StatusOK, models.StationsListResponse{
		StationsWithTrains:      counts,
		TotalStationsConfigured: h.stations.Len(),
		TotalStationsWithTrains: len(snap.Stations),
		AllStationIDs:           ids,
		Updated:                 models.Updated(snap),
	})
}

// GetVehicles handles GET /vehicles?view=basic|detailed
// The basic view carries only id, route and position
func (h *ArrivalsHandler) GetVehicles(w http.ResponseWriter, r *http.Request) {
	view := r.URL.Query().Get("view")
	if view == "" {
		view = "detailed"
	}
	if view != "basic" && view != "detailed" {
		writeError(w, http.StatusBadRequest, "Invalid view parameter", "Use basic or detailed")
		return
	}

	snap := h.cache.Current()
	vehicles := make([]models.Vehicle, 0, len(snap.Vehicles))
	for _, v := range snap.Vehicles {
		mv := models.Vehicle{
			ID:        v.ID,
			Route:     v.Route,
			Latitude:  v.Latitude,
			Longitude: v.Longitude,
			StopID:    v.CurrentStopID,
			Status:    v.Status,
		}
		if v.CurrentStopID != nil {
			name := h.stations.Display(*v.CurrentStopID)
			mv.StopName = &name
		}
		vehicles = append(vehicles, mv)
	}

	reduced, err := sheriff.Marshal(&sheriff.Options{Groups: []string{view}}, vehicles)
	if err != nil {
		writeError(w, http.StatusInternalServerError, "Failed to encode vehicles", "")
		return
	}

	writeJSON(w, http.StatusOK, models.VehiclesResponse{
		Data:    reduced,
		Count:   len(vehicles),
		Updated: models.Updated(snap),
	})
}

func filterRoute(records []realtime.ArrivalRecord, route string) []realtime.ArrivalRecord {
	out := make([]realtime.ArrivalRecord, 0)
	for _, rec := range records {
		if rec.Route == route {
			out = append(out, rec)
		}
	}
	return out
}

// parseCoordinate parses a latitude or longitude bounded by ±limit
func parseCoordinate(raw string, limit float64) (float64, error) {
	v, err := strconv.ParseFloat(raw, 64)
	if err != nil {
		return 0, err
	}
	if math.IsNaN(v) || v < -limit || v > limit {
		return 0, strconv.ErrRange
	}
	return v, nil
}
