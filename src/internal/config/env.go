package config

import (
	"fmt"
	"os"
	"strconv"
	"strings"
)

// Environment variable names. They keep the names used by earlier deployments
// of the service so existing container definitions keep working.
const (
	EnvConfigPath    = "GEOIP_CONFIG_PATH"
	EnvCountriesURL  = "GEOIP_COUNTRIES_URL"
	EnvIPv4URL       = "GEOIP_IPV4_URL"
	EnvIPv6URL       = "GEOIP_IPV6_URL"
	EnvCountriesFile = "GEOIP_COUNTRIES_FILE"
	EnvZonesFile     = "GEOIP_ZONES_FILE"
	EnvLegacyConfig  = "GEOIP_CONFIG_FILE"
	EnvDownloadDir   = "GEOIP_DOWNLOAD_DIR"
	EnvIPv4Dir       = "GEOIP_IPV4_DIR"
	EnvIPv6Dir       = "GEOIP_IPV6_DIR"
	EnvRefreshHours  = "GEOIP_REFRESH_HOURS"
	EnvFetchTimeout  = "FETCH_TIMEOUT"
	EnvTmpfsMaxSize  = "GEOIP_TMPFS_MAX_SIZE"
	EnvEntryTimeout  = "GEOIP_ENTRY_TIMEOUT"
	EnvCountryPrefix = "GEOIP_COUNTRY_PREFIX"
	EnvOldSuffix     = "GEOIP_OLD_SUFFIX"
	EnvListen        = "GEOIP_LISTEN"
)

// LookupFunc matches os.LookupEnv.
type LookupFunc func(key string) (string, bool)

// ApplyEnv overrides configuration values from the process environment.
func (c *Config) ApplyEnv() error {
	return c.ApplyEnvFrom(os.LookupEnv)
}

// ApplyEnvFrom overrides configuration values using lookup. Empty values are
// treated as unset.
func (c *Config) ApplyEnvFrom(lookup LookupFunc) error {
	get := func(key string) (string, bool) {
		v, ok := lookup(key)
		v = strings.TrimSpace(v)
		return v, ok && v != ""
	}

	strOverrides := []struct {
		key string
		dst *string
	}{
		{EnvCountriesURL, &c.Sources.CountriesHTML},
		{EnvIPv4URL, &c.Sources.IPv4TarGz},
		{EnvIPv6URL, &c.Sources.IPv6TarGz},
		{EnvCountriesFile, &c.Paths.CountriesYAML},
		{EnvZonesFile, &c.Paths.ZonesYAML},
		{EnvLegacyConfig, &c.Paths.LegacyZonesJSON},
		{EnvDownloadDir, &c.Paths.DownloadDir},
		{EnvIPv4Dir, &c.Paths.IPv4Dir},
		{EnvIPv6Dir, &c.Paths.IPv6Dir},
		{EnvTmpfsMaxSize, &c.General.TmpfsMaxSize},
		{EnvEntryTimeout, &c.General.EntryTimeout},
		{EnvOldSuffix, &c.General.OldSuffix},
		{EnvListen, &c.API.Listen},
	}
	for _, o := range strOverrides {
		if v, ok := get(o.key); ok {
			*o.dst = v
		}
	}

	if v, ok := get(EnvCountryPrefix); ok {
		c.General.ListPrefix = strings.TrimRight(v, "-")
	}

	intOverrides := []struct {
		key string
		dst *int
	}{
		{EnvRefreshHours, &c.General.RefreshHours},
		{EnvFetchTimeout, &c.General.FetchTimeoutSec},
	}
	for _, o := range intOverrides {
		v, ok := get(o.key)
		if !ok {
			continue
		}
		n, err := strconv.Atoi(v)
		if err != nil {
			return fmt.Errorf("invalid value for %s: %q is not an integer", o.key, v)
		}
		*o.dst = n
	}

	return nil
}
