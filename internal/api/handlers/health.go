package handlers

import (
	"net/http"
	"time"

	"github.com/amdjml/WMATAPI/internal/api/models"
	"github.com/amdjml/WMATAPI/internal/scheduler"
	"github.com/amdjml/WMATAPI/internal/stations"
)

const debugSample = 10

// RefreshStatus reports on the refresh loop
type RefreshStatus interface {
	Status() scheduler.Status
	Interval() time.Duration
}

// SubscriberCounter reports how many live subscribers exist
type SubscriberCounter interface {
	Len() int
}

// HealthHandler serves health and diagnostic endpoints
type HealthHandler struct {
	cache    SnapshotReader
	stations *stations.Table
	refresh  RefreshStatus
	hub      SubscriberCounter
	now      func() time.Time
}

// NewHealthHandler creates a new handler
func NewHealthHandler(cache SnapshotReader, table *stations.Table, refresh RefreshStatus, hub SubscriberCounter) *HealthHandler {
	return &HealthHandler{
		cache:    cache,
		stations: table,
		refresh:  refresh,
		hub:      hub,
		now:      time.Now,
	}
}

// GetHealth handles GET /health
// 200 while the snapshot is fresh, 503 before the first publish or once it
// is older than models.StaleAfter refresh intervals
func (h *HealthHandler) GetHealth(w http.ResponseWriter, r *http.Request) {
	snap := h.cache.Current()
	now := h.now().UTC()
	age := snap.Age(now)

	status := models.CalculateHealthStatus(age, !snap.IsEmpty(), h.refresh.Interval())
	code := http.StatusOK
	if status != models.HealthOK {
		code = http.StatusServiceUnavailable
	}

	writeJSON(w, code, models.HealthResponse{
		Status:     status,
		Updated:    models.Updated(snap),
		AgeSeconds: int(age.Seconds()),
		Timestamp:  now,
	})
}

// GetDebug handles GET /debug
func (h *HealthHandler) GetDebug(w http.ResponseWriter, r *http.Request) {
	snap := h.cache.Current()

	configured := h.stations.IDs()
	if len(configured) > debugSample {
		configured = configured[:debugSample]
	}
	withArrivals := models.SortedStationIDs(snap)
	if len(withArrivals) > debugSample {
		withArrivals = withArrivals[:debugSample]
	}

	writeJSON(w, http.StatusOK, models.DebugResponse{
		LastUpdate:                 models.Updated(snap),
		SnapshotID:                 snap.ID,
		StationsConfigured:         h.stations.Len(),
		StationsWithArrivals:       len(snap.Stations),
		SampleConfiguredStationIDs: configured,
		SampleArrivalStationIDs:    withArrivals,
		TotalVehicles:              len(snap.Vehicles),
		WebsocketClients:           h.hub.Len(),
		Refresh:                    h.refresh.Status(),
	})
}
