package api

import (
	"net/http"

	"github.com/go-chi/chi/v5"
	"github.com/prometheus/client_golang/prometheus/promhttp"
)

// NewRouter creates a new HTTP router with all endpoints.
func NewRouter(deps Deps) http.Handler {
	r := chi.NewRouter()

	r.Use(Recovery)
	r.Use(Logger)
	r.Use(Metrics)

	h := NewHandler(deps)

	// Scripts fetched by routers
	r.Get("/custom.rsc", h.GetCustomScript)
	r.Get("/geoip.rsc", h.GetGeoIPScript)
	r.Get("/loader.rsc", h.GetLoaderScript)

	r.Get("/health", h.CheckHealth)
	r.Handle("/metrics", promhttp.Handler())

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/status", h.GetStatus)
		r.Post("/refresh", h.ForceRefresh)
		r.Get("/zones", h.GetZones)
		r.Get("/countries", h.GetCountries)
	})

	return r
}
