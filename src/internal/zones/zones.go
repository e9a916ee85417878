// Package zones loads named groups of country codes.
//
// Zone definitions come from a YAML file, a legacy JSON file, or the built-in
// defaults, in that order of preference. Every source produces the same Map,
// so consumers do not care where the zones came from.
package zones

import (
	"sort"
	"strings"

	"github.com/wifx/geoip-rsc/src/internal/log"
)

// Zone is a named, ordered group of country codes. Code is upper-case and
// Countries are lower-case.
type Zone struct {
	Code      string   `json:"code" yaml:"code"`
	Name      string   `json:"name,omitempty" yaml:"name,omitempty"`
	Countries []string `json:"countries" yaml:"countries"`
}

// Source identifies where a Map was loaded from.
type Source string

const (
	SourceYAML    Source = "yaml"
	SourceLegacy  Source = "legacy_json"
	SourceBuiltin Source = "builtin"
)

// Map is an immutable set of zones keyed by upper-case code.
type Map struct {
	zones  map[string]Zone
	codes  []string
	source Source
}

// NewMap normalizes zones: codes are trimmed and upper-cased, members are
// trimmed and lower-cased, members that are not two-letter codes are dropped
// with a warning, and zones left without members are dropped. A later
// definition of the same code replaces an earlier one.
func NewMap(zones []Zone, source Source) *Map {
	m := &Map{zones: make(map[string]Zone, len(zones)), source: source}
	for _, z := range zones {
		code := strings.ToUpper(strings.TrimSpace(z.Code))
		if code == "" {
			continue
		}

		var members []string
		seen := make(map[string]bool)
		for _, c := range z.Countries {
			cc := strings.ToLower(strings.TrimSpace(c))
			if cc == "" {
				continue
			}
			if !IsCountryCode(cc) {
				log.Warnf("Zone %s: dropping invalid country code %q", code, c)
				continue
			}
			if seen[cc] {
				continue
			}
			seen[cc] = true
			members = append(members, cc)
		}
		if len(members) == 0 {
			log.Warnf("Zone %s has no valid countries, ignoring it", code)
			continue
		}

		m.zones[code] = Zone{Code: code, Name: strings.TrimSpace(z.Name), Countries: members}
	}

	for code := range m.zones {
		m.codes = append(m.codes, code)
	}
	sort.Strings(m.codes)
	return m
}

// Get looks a zone up by code, ignoring case.
func (m *Map) Get(code string) (Zone, bool) {
	z, ok := m.zones[strings.ToUpper(strings.TrimSpace(code))]
	if !ok {
		return Zone{}, false
	}
	z.Countries = append([]string(nil), z.Countries...)
	return z, true
}

// Codes returns the zone codes, sorted.
func (m *Map) Codes() []string {
	return append([]string(nil), m.codes...)
}

// Zones returns every zone sorted by code.
func (m *Map) Zones() []Zone {
	out := make([]Zone, 0, len(m.codes))
	for _, code := range m.codes {
		z, _ := m.Get(code)
		out = append(out, z)
	}
	return out
}

func (m *Map) Len() int       { return len(m.codes) }
func (m *Map) Source() Source { return m.source }

// IsCountryCode reports whether s is two ASCII letters.
func IsCountryCode(s string) bool {
	if len(s) != 2 {
		return false
	}
	for i := 0; i < 2; i++ {
		c := s[i] | 0x20
		if c < 'a' || c > 'z' {
			return false
		}
	}
	return true
}

// DefaultZones are used when no zone file is available.
func DefaultZones() []Zone {
	return []Zone{
		{
			Code: "EU",
			Name: "Europe",
			Countries: []string{
				"at", "be", "bg", "ch", "cy", "cz", "de", "dk", "ee", "es", "fi", "fr",
				"gr", "hr", "hu", "ie", "is", "it", "lt", "lu", "lv", "mt", "nl", "no",
				"pl", "pt", "ro", "se", "si", "sk",
			},
		},
		{Code: "US", Name: "United States", Countries: []string{"us"}},
	}
}
