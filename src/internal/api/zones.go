package api

import (
	"net/http"
	"sort"
	"strings"

	"github.com/wifx/geoip-rsc/src/internal/config"
)

// GetZones returns the active zone definitions.
func (h *Handler) GetZones(w http.ResponseWriter, r *http.Request) {
	zm := h.deps.Zones.Current()
	out := make([]ZoneInfo, 0, zm.Len())
	for _, z := range zm.Zones() {
		out = append(out, ZoneInfo{Code: z.Code, Name: z.Name, Countries: z.Countries})
	}
	writeJSONData(w, out)
}

// GetCountries merges the country catalog with the codes present in the
// block stores. Countries with data but no catalog entry are listed without
// a name.
func (h *Handler) GetCountries(w http.ResponseWriter, r *http.Request) {
	byCode := make(map[string]*CountryInfo)
	get := func(code string) *CountryInfo {
		code = strings.ToUpper(code)
		ci, ok := byCode[code]
		if !ok {
			ci = &CountryInfo{Code: code}
			byCode[code] = ci
		}
		return ci
	}

	if h.deps.Catalog != nil {
		for _, c := range h.deps.Catalog.Catalog().Countries() {
			get(c.Code).Name = c.Name
		}
	}

	for family, lister := range h.deps.Stores {
		codes, err := lister.Countries()
		if err != nil {
			WriteInternalError(w, "failed to list "+family.String()+" countries: "+err.Error())
			return
		}
		for _, code := range codes {
			ci := get(code)
			switch family {
			case config.Ipv4:
				ci.IPv4 = true
			case config.Ipv6:
				ci.IPv6 = true
			}
		}
	}

	out := make([]CountryInfo, 0, len(byCode))
	for _, ci := range byCode {
		out = append(out, *ci)
	}
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	writeJSONData(w, out)
}
