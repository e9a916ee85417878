package config

import (
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"

	"github.com/pelletier/go-toml/v2"

	"github.com/wifx/geoip-rsc/src/internal/log"
)

const (
	DefaultRefreshHours     = 24
	DefaultFetchTimeoutSec  = 20
	DefaultListPrefix       = "geoip"
	DefaultEntryTimeout     = "1d 01:00:00"
	DefaultTmpfsMaxSize     = "20M"
	DefaultOldSuffix        = "-old"
	DefaultNewSuffix        = "-new"
	DefaultListen           = "0.0.0.0:8080"
	DefaultRefreshPerMinute = 6

	DefaultCountriesHTML = "https://www.ipdeny.com/ipblocks/"
	DefaultIPv4TarGz     = "https://www.ipdeny.com/ipblocks/data/countries/all-zones.tar.gz"
	DefaultIPv6TarGz     = "https://www.ipdeny.com/ipv6/ipaddresses/blocks/ipv6-all-zones.tar.gz"

	DefaultCountriesYAML   = "geoip/countries.yaml"
	DefaultZonesYAML       = "geoip/zones.yaml"
	DefaultLegacyZonesJSON = "config.json"
	DefaultIPv4Dir         = "geoip/ipv4"
	DefaultIPv6Dir         = "geoip/ipv6"
	DefaultDownloadDir     = "downloads"
)

// NewDefaultConfig returns a configuration with every field set to its default
// and paths anchored at configPath's directory.
func NewDefaultConfig(configPath string) *Config {
	cfg := &Config{}
	cfg.fillDefaults()
	cfg._absConfigFilePath = configPath
	return cfg
}

// LoadConfig reads the TOML file at configPath. A missing file is not an error:
// the defaults are used and a warning is logged. Unset fields take defaults.
func LoadConfig(configPath string) (*Config, error) {
	configFile := filepath.Clean(configPath)

	if !filepath.IsAbs(configFile) {
		if path, err := filepath.Abs(configFile); err != nil {
			return nil, fmt.Errorf("failed to get absolute path: %v", err)
		} else {
			configFile = path
		}
	}

	content, err := os.ReadFile(configFile)
	if errors.Is(err, os.ErrNotExist) {
		log.Warnf("Configuration file not found: %s, using defaults", configFile)
		return NewDefaultConfig(configFile), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read config file: %v", err)
	}

	var config Config
	if err := toml.Unmarshal(content, &config); err != nil {
		var derr *toml.DecodeError
		if errors.As(err, &derr) {
			log.Errorf(derr.String())
			row, col := derr.Position()
			log.Errorf("Error at line %d, column %d", row, col)
			return nil, fmt.Errorf("failed to parse config file")
		}
		return nil, fmt.Errorf("failed to parse config file: %v", err)
	}

	config.fillDefaults()
	config._absConfigFilePath = configFile

	log.Debugf("Configuration file path: %s", configFile)
	log.Debugf("IPv4 blocks directory: %s", config.GetAbsBlocksDir(Ipv4))
	log.Debugf("IPv6 blocks directory: %s", config.GetAbsBlocksDir(Ipv6))

	return &config, nil
}

// fillDefaults sets every zero-valued field. A [sources] table that is present
// is taken as-is so that an empty URL can disable a protocol.
func (c *Config) fillDefaults() {
	if c.General == nil {
		c.General = &GeneralConfig{}
	}
	g := c.General
	setInt(&g.RefreshHours, DefaultRefreshHours)
	setInt(&g.FetchTimeoutSec, DefaultFetchTimeoutSec)
	setString(&g.ListPrefix, DefaultListPrefix)
	setString(&g.EntryTimeout, DefaultEntryTimeout)
	setString(&g.TmpfsMaxSize, DefaultTmpfsMaxSize)
	setString(&g.OldSuffix, DefaultOldSuffix)
	setString(&g.NewSuffix, DefaultNewSuffix)

	if c.API == nil {
		c.API = &APIConfig{}
	}
	setString(&c.API.Listen, DefaultListen)
	setInt(&c.API.RefreshPerMinute, DefaultRefreshPerMinute)

	if c.Sources == nil {
		c.Sources = &SourcesConfig{
			CountriesHTML: DefaultCountriesHTML,
			IPv4TarGz:     DefaultIPv4TarGz,
			IPv6TarGz:     DefaultIPv6TarGz,
		}
	}

	if c.Paths == nil {
		c.Paths = &PathsConfig{}
	}
	p := c.Paths
	setString(&p.CountriesYAML, DefaultCountriesYAML)
	setString(&p.ZonesYAML, DefaultZonesYAML)
	setString(&p.LegacyZonesJSON, DefaultLegacyZonesJSON)
	setString(&p.IPv4Dir, DefaultIPv4Dir)
	setString(&p.IPv6Dir, DefaultIPv6Dir)
	setString(&p.DownloadDir, DefaultDownloadDir)
}

func setString(dst *string, def string) {
	if *dst == "" {
		*dst = def
	}
}

func setInt(dst *int, def int) {
	if *dst == 0 {
		*dst = def
	}
}

func (c *Config) SerializeConfig() (*bytes.Buffer, error) {
	buf := bytes.Buffer{}
	enc := toml.NewEncoder(&buf)
	enc.SetIndentTables(true)
	if err := enc.Encode(c); err != nil {
		return nil, err
	}
	return &buf, nil
}
