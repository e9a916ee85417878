package api

import (
	"net/http"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/log"
)

// ForceRefresh queues an immediate refresh for one family (?family=4|6) or
// for all of them. Families that are already refreshing are reported as
// skipped.
func (h *Handler) ForceRefresh(w http.ResponseWriter, r *http.Request) {
	if !h.refreshLimiter.Allow() {
		WriteError(w, http.StatusTooManyRequests, NewAPIError(ErrCodeRateLimited, "too many refresh requests, try again later"))
		return
	}

	families := h.deps.Refresher.Families()
	if raw := r.URL.Query().Get("family"); raw != "" {
		family, err := config.ParseIPFamily(raw)
		if err != nil {
			WriteInvalidRequest(w, err.Error())
			return
		}
		if !containsFamily(families, family) {
			WriteNotFound(w, "family "+family.String())
			return
		}
		families = []config.IPFamily{family}
	}

	resp := RefreshResponse{Triggered: []string{}, Skipped: []string{}}
	for _, f := range families {
		if h.deps.Refresher.Trigger(f) {
			log.Infof("Forced %s refresh requested", f)
			resp.Triggered = append(resp.Triggered, f.String())
		} else {
			resp.Skipped = append(resp.Skipped, f.String())
		}
	}

	writeJSON(w, http.StatusAccepted, resp)
}

func containsFamily(families []config.IPFamily, f config.IPFamily) bool {
	for _, candidate := range families {
		if candidate == f {
			return true
		}
	}
	return false
}
