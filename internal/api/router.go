package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/go-chi/cors"

	"github.com/amdjml/WMATAPI/internal/api/handlers"
	"github.com/amdjml/WMATAPI/internal/stations"
)

// Deps are the shared resources the HTTP layer reads from
type Deps struct {
	Cache    handlers.SnapshotReader
	Stations *stations.Table
	Hub      handlers.SubscriberHub
	Refresh  handlers.RefreshStatus

	// CrossOrigin enables CORS for the given origin ("*" for any) when set
	CrossOrigin string
}

// NewRouter wires every route
func NewRouter(deps Deps) http.Handler {
	arrivals := handlers.NewArrivalsHandler(deps.Cache, deps.Stations)
	health := handlers.NewHealthHandler(deps.Cache, deps.Stations, deps.Refresh, deps.Hub)
	ws := handlers.NewWSHandler(deps.Hub)

	r := chi.NewRouter()
	r.Use(middleware.Recoverer)
	r.Use(RequestLogger)

	if deps.CrossOrigin != "" {
		r.Use(cors.Handler(cors.Options{
			AllowedOrigins: []string{deps.CrossOrigin},
			AllowedMethods: []string{"GET", "OPTIONS"},
			AllowedHeaders: []string{"Content-Type"},
		}))
	}

	r.Get("/by-id/{stopID}", arrivals.GetByID)
	r.Get("/by-location", arrivals.GetByLocation)
	r.Get("/by-route/{route}", arrivals.GetByRoute)
	r.Get("/routes", arrivals.GetRoutes)
	r.Get("/stations", arrivals.GetStations)
	r.Get("/vehicles", arrivals.GetVehicles)

	r.Get("/health", health.GetHealth)
	r.Get("/debug", health.GetDebug)

	r.Handle("/ws", ws)

	return r
}
