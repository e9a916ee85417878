package api

import "time"

// DataResponse wraps successful responses with a "data" field.
type DataResponse struct {
	Data interface{} `json:"data"`
}

// StatusResponse returns the refresh state of every family.
type StatusResponse struct {
	Version  VersionInfo    `json:"version"`
	Families []FamilyStatus `json:"families"`
	Zones    ZonesSummary   `json:"zones"`
	// ConfigChanged is true when the configuration or zone files on disk
	// differ from what the service loaded. Null when unknown.
	ConfigChanged *bool `json:"config_changed"`
}

// VersionInfo contains build version information.
type VersionInfo struct {
	Version string `json:"version"`
	Date    string `json:"date"`
	Commit  string `json:"commit"`
}

// FamilyStatus is the JSON form of refresh.FamilyState.
type FamilyStatus struct {
	Family      string     `json:"family"`
	Phase       string     `json:"phase"`
	LastAttempt *time.Time `json:"last_attempt"`
	LastSuccess *time.Time `json:"last_success"`
	LastError   string     `json:"last_error,omitempty"`
	Countries   int        `json:"countries"`
	Checksum    string     `json:"checksum,omitempty"`
}

// ZonesSummary describes the active zone map.
type ZonesSummary struct {
	Source string `json:"source"`
	Count  int    `json:"count"`
}

// ZoneInfo is one zone with its member countries.
type ZoneInfo struct {
	Code      string   `json:"code"`
	Name      string   `json:"name,omitempty"`
	Countries []string `json:"countries"`
}

// CountryInfo is one country with the families it has data for.
type CountryInfo struct {
	Code string `json:"code"`
	Name string `json:"name,omitempty"`
	IPv4 bool   `json:"ipv4"`
	IPv6 bool   `json:"ipv6"`
}

// RefreshResponse reports which families a forced refresh was queued for.
type RefreshResponse struct {
	Triggered []string `json:"triggered"`
	Skipped   []string `json:"skipped"`
}
