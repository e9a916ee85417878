package api

import (
	"fmt"
	"net/http"
	"strings"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/log"
	"github.com/wifx/geoip-rsc/src/internal/refresh"
)

// GetStatus returns the refresh state of every family.
func (h *Handler) GetStatus(w http.ResponseWriter, r *http.Request) {
	resp := StatusResponse{
		Version:  h.deps.Version,
		Families: []FamilyStatus{},
	}

	for _, fs := range h.deps.Refresher.State().Snapshot() {
		resp.Families = append(resp.Families, toFamilyStatus(fs))
	}

	zm := h.deps.Zones.Current()
	resp.Zones = ZonesSummary{Source: string(zm.Source()), Count: zm.Len()}

	if h.deps.Hasher != nil {
		changed, err := h.deps.Hasher.IsChanged()
		if err != nil {
			log.Warnf("Failed to check configuration changes: %v", err)
		} else {
			resp.ConfigChanged = &changed
		}
	}

	writeJSONData(w, resp)
}

// CheckHealth answers with a one-line liveness summary per family.
func (h *Handler) CheckHealth(w http.ResponseWriter, r *http.Request) {
	var parts []string
	now := time.Now()
	for _, fs := range h.deps.Refresher.State().Snapshot() {
		age := int64(-1)
		if !fs.LastSuccess.IsZero() {
			age = int64(now.Sub(fs.LastSuccess).Seconds())
		}
		part := fmt.Sprintf("%s: %s, last_refresh_age=%ds, countries=%d", fs.Family, fs.Phase, age, fs.Countries)
		if fs.LastError != nil {
			part += ", last_error=" + fs.LastError.Error()
		}
		parts = append(parts, part)
	}

	w.Header().Set("Content-Type", "text/plain; charset=utf-8")
	w.WriteHeader(http.StatusOK)
	fmt.Fprintf(w, "ok (%s; zones=%d)\n", strings.Join(parts, "; "), h.deps.Zones.Current().Len())
}

func toFamilyStatus(fs refresh.FamilyState) FamilyStatus {
	st := FamilyStatus{
		Family:    fs.Family.String(),
		Phase:     string(fs.Phase),
		Countries: fs.Countries,
		Checksum:  fs.Checksum,
	}
	if !fs.LastAttempt.IsZero() {
		t := fs.LastAttempt
		st.LastAttempt = &t
	}
	if !fs.LastSuccess.IsZero() {
		t := fs.LastSuccess
		st.LastSuccess = &t
	}
	if fs.LastError != nil {
		st.LastError = fs.LastError.Error()
	}
	return st
}
