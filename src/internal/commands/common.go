package commands

import (
	"fmt"

	"github.com/wifx/geoip-rsc/src/internal/catalog"
	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/engine"
	"github.com/wifx/geoip-rsc/src/internal/fetcher"
	"github.com/wifx/geoip-rsc/src/internal/log"
	"github.com/wifx/geoip-rsc/src/internal/refresh"
	"github.com/wifx/geoip-rsc/src/internal/resolver"
	"github.com/wifx/geoip-rsc/src/internal/rsc"
	"github.com/wifx/geoip-rsc/src/internal/store"
	"github.com/wifx/geoip-rsc/src/internal/zones"
)

type Runner interface {
	Init(args []string, globalArgs *AppContext) error
	Run() error
	Name() string
}

type AppContext struct {
	ConfigPath string
	Verbose    bool

	// Build information reported by the status endpoint.
	Version string
	Commit  string
	Date    string
}

// loadAndValidateConfigOrFail loads the configuration file, applies
// environment overrides and validates the result.
func loadAndValidateConfigOrFail(configPath string) (*config.Config, error) {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return nil, fmt.Errorf("failed to load configuration: %v", err)
	}

	if err := cfg.ApplyEnv(); err != nil {
		return nil, fmt.Errorf("failed to apply environment overrides: %v", err)
	}

	if err := cfg.ValidateConfig(); err != nil {
		return nil, fmt.Errorf("configuration validation failed: %v", err)
	}

	return cfg, nil
}

// app holds the components shared by the commands.
type app struct {
	cfg       *config.Config
	fetcher   *fetcher.Fetcher
	stores    map[config.IPFamily]*store.Store
	zones     *zones.Registry
	engine    *engine.Engine
	scheduler *refresh.Scheduler
}

func newApp(cfg *config.Config) *app {
	a := &app{
		cfg:     cfg,
		fetcher: fetcher.New(nil),
		stores:  make(map[config.IPFamily]*store.Store),
		zones:   zones.NewRegistry(cfg.GetAbsZonesFile(), cfg.GetAbsLegacyZonesFile()),
	}

	sources := make(map[config.IPFamily]resolver.BlockSource)
	var targets []refresh.Target
	for _, family := range cfg.EnabledFamilies() {
		s := store.New(cfg.GetAbsBlocksDir(family), family)
		a.stores[family] = s
		sources[family] = s
		targets = append(targets, refresh.Target{Family: family, URL: cfg.SourceURL(family), Store: s})
	}

	a.engine = engine.New(a.zones, sources, rsc.OptionsFromConfig(cfg.General), cfg.General.ListPrefix)
	a.scheduler = refresh.NewScheduler(refresh.Options{
		Downloader: a.fetcher,
		Targets:    targets,
		Interval:   cfg.General.RefreshInterval(),
		Timeout:    cfg.General.FetchTimeout(),
		CacheDir:   cfg.GetAbsDownloadDir(),
	})

	m := a.zones.Current()
	log.Infof("Loaded %d zones (%s)", m.Len(), m.Source())
	return a
}

// loadCatalog reads the countries file. Failures leave the catalog empty,
// since names are only cosmetic.
func (a *app) loadCatalog() *catalog.Catalog {
	c, err := catalog.Load(a.cfg.GetAbsCountriesFile())
	if err != nil {
		log.Warnf("Failed to load countries: %v", err)
		return catalog.New(nil)
	}
	return c
}
