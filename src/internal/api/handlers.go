package api

import (
	"encoding/json"
	"net/http"

	"golang.org/x/time/rate"

	"github.com/wifx/geoip-rsc/src/internal/catalog"
	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/engine"
	"github.com/wifx/geoip-rsc/src/internal/refresh"
	"github.com/wifx/geoip-rsc/src/internal/rsc"
)

// ScriptEngine renders scripts for parsed requests.
type ScriptEngine interface {
	Combined(req engine.Request) (*rsc.Script, error)
	PerList(req engine.Request) (*rsc.Script, error)
	Loader(url, name string) (string, error)
}

// Refresher exposes the refresh scheduler to the API.
type Refresher interface {
	State() *refresh.State
	Families() []config.IPFamily
	Trigger(family config.IPFamily) bool
}

// CountryLister lists the country codes a block store holds data for.
type CountryLister interface {
	Countries() ([]string, error)
}

// CatalogProvider returns the current country catalog.
type CatalogProvider interface {
	Catalog() *catalog.Catalog
}

// ChangeDetector reports whether the configuration on disk differs from the
// one the service is running with.
type ChangeDetector interface {
	IsChanged() (bool, error)
}

// Deps are the collaborators of the HTTP handlers. Hasher may be nil.
type Deps struct {
	Engine    ScriptEngine
	Zones     engine.ZoneProvider
	Refresher Refresher
	Stores    map[config.IPFamily]CountryLister
	Catalog   CatalogProvider
	Hasher    ChangeDetector
	Version   VersionInfo

	// RefreshPerMinute limits forced refreshes. Zero uses the default.
	RefreshPerMinute int
}

// Handler manages all API endpoints and dependencies.
type Handler struct {
	deps           Deps
	refreshLimiter *rate.Limiter
}

// NewHandler creates a new API handler.
func NewHandler(deps Deps) *Handler {
	perMinute := deps.RefreshPerMinute
	if perMinute <= 0 {
		perMinute = config.DefaultRefreshPerMinute
	}
	return &Handler{
		deps:           deps,
		refreshLimiter: rate.NewLimiter(rate.Limit(float64(perMinute)/60), perMinute),
	}
}

// writeJSON writes a JSON response with data wrapped in DataResponse.
func writeJSON(w http.ResponseWriter, statusCode int, data interface{}) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(statusCode)
	json.NewEncoder(w).Encode(DataResponse{Data: data})
}

// writeJSONData writes a successful JSON response with data.
func writeJSONData(w http.ResponseWriter, data interface{}) {
	writeJSON(w, http.StatusOK, data)
}

// writeScript writes a RouterOS script as plain text.
func writeScript(w http.ResponseWriter, script string) {
	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.Header().Set("Cache-Control", "no-store")
	w.WriteHeader(http.StatusOK)
	w.Write([]byte(script))
}
