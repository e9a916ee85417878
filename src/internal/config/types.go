package config

import (
	"fmt"
	"path/filepath"
	"strings"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/utils"
)

type IPFamily uint8

const (
	Ipv4 IPFamily = 4
	Ipv6 IPFamily = 6
)

// Families lists the supported families in refresh order.
var Families = []IPFamily{Ipv4, Ipv6}

func (f IPFamily) String() string {
	switch f {
	case Ipv4:
		return "ipv4"
	case Ipv6:
		return "ipv6"
	default:
		return fmt.Sprintf("ipfamily(%d)", uint8(f))
	}
}

// ParseIPFamily accepts "4", "6", "ipv4", "ipv6" (any case). An empty string
// selects IPv4.
func ParseIPFamily(s string) (IPFamily, error) {
	switch strings.ToLower(strings.TrimSpace(s)) {
	case "", "4", "ipv4", "v4":
		return Ipv4, nil
	case "6", "ipv6", "v6":
		return Ipv6, nil
	default:
		return 0, fmt.Errorf("unknown IP family %q", s)
	}
}

type Config struct {
	General *GeneralConfig `toml:"general" json:"general"`
	API     *APIConfig     `toml:"api" json:"api"`
	Sources *SourcesConfig `toml:"sources" json:"sources"`
	Paths   *PathsConfig   `toml:"paths" json:"paths"`

	_absConfigFilePath string
}

type GeneralConfig struct {
	RefreshHours    int    `toml:"refresh_hours" json:"refresh_hours" validate:"required,min=1,max=8760"`
	FetchTimeoutSec int    `toml:"fetch_timeout_sec" json:"fetch_timeout_sec" validate:"required,min=1,max=3600"`
	ListPrefix      string `toml:"list_prefix" json:"list_prefix" validate:"required,list_prefix"`
	EntryTimeout    string `toml:"entry_timeout" json:"entry_timeout" validate:"required,routeros_duration"`
	TmpfsMaxSize    string `toml:"tmpfs_max_size" json:"tmpfs_max_size" validate:"required,tmpfs_size"`
	OldSuffix       string `toml:"old_suffix" json:"old_suffix" validate:"required,list_suffix"`
	NewSuffix       string `toml:"new_suffix" json:"new_suffix" validate:"required,list_suffix,nefield=OldSuffix"`
}

type APIConfig struct {
	Enabled          *bool  `toml:"enabled" json:"enabled"`
	Listen           string `toml:"listen" json:"listen" validate:"hostport_or_empty"`
	RefreshPerMinute int    `toml:"refresh_per_minute" json:"refresh_per_minute" validate:"min=0,max=600"`
}

// SourcesConfig holds the upstream URLs. An empty URL disables that source.
type SourcesConfig struct {
	CountriesHTML string `toml:"countries_html" json:"countries_html" validate:"omitempty,url"`
	IPv4TarGz     string `toml:"ipv4_tar_gz" json:"ipv4_tar_gz" validate:"omitempty,url"`
	IPv6TarGz     string `toml:"ipv6_tar_gz" json:"ipv6_tar_gz" validate:"omitempty,url"`
}

type PathsConfig struct {
	CountriesYAML   string `toml:"countries_yaml" json:"countries_yaml" validate:"required"`
	ZonesYAML       string `toml:"zones_yaml" json:"zones_yaml"`
	LegacyZonesJSON string `toml:"legacy_zones_json" json:"legacy_zones_json"`
	IPv4Dir         string `toml:"ipv4_dir" json:"ipv4_dir" validate:"required"`
	IPv6Dir         string `toml:"ipv6_dir" json:"ipv6_dir" validate:"required"`
	DownloadDir     string `toml:"download_dir" json:"download_dir" validate:"required"`
}

func (c *Config) GetConfigDir() string {
	return filepath.Dir(c._absConfigFilePath)
}

func (c *Config) GetConfigFilePath() string {
	return c._absConfigFilePath
}

func (c *Config) abs(path string) string {
	if path == "" {
		return ""
	}
	return utils.GetAbsolutePath(path, c.GetConfigDir())
}

func (c *Config) GetAbsCountriesFile() string   { return c.abs(c.Paths.CountriesYAML) }
func (c *Config) GetAbsZonesFile() string       { return c.abs(c.Paths.ZonesYAML) }
func (c *Config) GetAbsLegacyZonesFile() string { return c.abs(c.Paths.LegacyZonesJSON) }
func (c *Config) GetAbsDownloadDir() string     { return c.abs(c.Paths.DownloadDir) }

// GetAbsBlocksDir returns the block file directory for the given family.
func (c *Config) GetAbsBlocksDir(family IPFamily) string {
	if family == Ipv6 {
		return c.abs(c.Paths.IPv6Dir)
	}
	return c.abs(c.Paths.IPv4Dir)
}

// SourceURL returns the archive URL for the family, or "" when disabled.
func (c *Config) SourceURL(family IPFamily) string {
	if family == Ipv6 {
		return c.Sources.IPv6TarGz
	}
	return c.Sources.IPv4TarGz
}

// EnabledFamilies returns the families that have an archive source.
func (c *Config) EnabledFamilies() []IPFamily {
	var out []IPFamily
	for _, f := range Families {
		if c.SourceURL(f) != "" {
			out = append(out, f)
		}
	}
	return out
}

func (c *Config) IsAPIEnabled() bool {
	return c.API != nil && (c.API.Enabled == nil || *c.API.Enabled)
}

func (g *GeneralConfig) RefreshInterval() time.Duration {
	return time.Duration(g.RefreshHours) * time.Hour
}

func (g *GeneralConfig) FetchTimeout() time.Duration {
	return time.Duration(g.FetchTimeoutSec) * time.Second
}

// EntryTimeoutDuration parses EntryTimeout. Values are checked by validation,
// so a parse failure falls back to the default.
func (g *GeneralConfig) EntryTimeoutDuration() time.Duration {
	d, err := utils.ParseRouterOSDuration(g.EntryTimeout)
	if err != nil {
		d, _ = utils.ParseRouterOSDuration(DefaultEntryTimeout)
	}
	return d
}
