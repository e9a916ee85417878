package commands

import (
	"context"
	"flag"
	"os"
	"os/signal"
	"sync"
	"syscall"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/api"
	"github.com/wifx/geoip-rsc/src/internal/catalog"
	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/log"
)

func CreateServiceCommand() *ServiceCommand {
	sc := &ServiceCommand{
		fs: flag.NewFlagSet("service", flag.ExitOnError),
	}

	sc.fs.StringVar(&sc.listen, "listen", "", "Override the HTTP listen address (host:port)")

	return sc
}

// ServiceCommand runs the refresh loops and the HTTP server until SIGINT or
// SIGTERM. SIGHUP reloads zone definitions and the countries file, SIGUSR1
// forces a refresh of every family.
type ServiceCommand struct {
	fs     *flag.FlagSet
	ctx    *AppContext
	cfg    *config.Config
	app    *app
	listen string

	configHasher *config.ConfigHasher
	catalog      catalog.Holder
	apiRunner    *RestartableRunner
}

func (s *ServiceCommand) Name() string {
	return s.fs.Name()
}

func (s *ServiceCommand) Init(args []string, ctx *AppContext) error {
	s.ctx = ctx

	if err := s.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	s.cfg = cfg

	if s.listen != "" {
		s.cfg.API.Listen = s.listen
	}

	s.app = newApp(cfg)
	s.configHasher = config.NewConfigHasher(ctx.ConfigPath)
	s.markConfigActive()

	return nil
}

func (s *ServiceCommand) Run() error {
	log.Infof("Starting geoip-rsc service...")

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, syscall.SIGINT, syscall.SIGTERM, syscall.SIGHUP, syscall.SIGUSR1)
	defer signal.Stop(sigChan)

	s.catalog.Set(s.app.loadCatalog())

	var wg sync.WaitGroup
	wg.Add(2)
	go func() {
		defer wg.Done()
		s.fetchCatalog(ctx)
	}()
	go func() {
		defer wg.Done()
		s.app.scheduler.Run(ctx)
	}()

	if s.cfg.IsAPIEnabled() {
		if err := s.startAPIServer(ctx); err != nil {
			log.Errorf("Failed to start HTTP server: %v", err)
		}
	} else {
		log.Infof("HTTP server is disabled")
	}

	log.Infof("Service started successfully.")
	log.Infof("Send SIGHUP to reload zones, SIGUSR1 to refresh data")

	for sig := range sigChan {
		switch sig {
		case syscall.SIGHUP:
			log.Infof("Received SIGHUP signal, reloading zones...")
			s.reload()

		case syscall.SIGUSR1:
			log.Infof("Received SIGUSR1 signal, refreshing data...")
			for _, family := range s.app.scheduler.Families() {
				if !s.app.scheduler.Trigger(family) {
					log.Infof("%s refresh already in progress", family)
				}
			}

		case syscall.SIGINT, syscall.SIGTERM:
			log.Infof("Received signal %v, shutting down...", sig)
			cancel()
			s.shutdown(&wg)
			return nil
		}
	}
	return nil
}

// startAPIServer runs the HTTP server under a RestartableRunner so a failed
// listener is retried without taking the refresh loops down.
func (s *ServiceCommand) startAPIServer(ctx context.Context) error {
	stores := make(map[config.IPFamily]api.CountryLister, len(s.app.stores))
	for family, st := range s.app.stores {
		stores[family] = st
	}

	server := api.NewServer(s.cfg.API.Listen, api.Deps{
		Engine:    s.app.engine,
		Zones:     s.app.zones,
		Refresher: s.app.scheduler,
		Stores:    stores,
		Catalog:   &s.catalog,
		Hasher:    s.configHasher,
		Version: api.VersionInfo{
			Version: s.ctx.Version,
			Commit:  s.ctx.Commit,
			Date:    s.ctx.Date,
		},
		RefreshPerMinute: s.cfg.API.RefreshPerMinute,
	})

	s.apiRunner = NewRestartableRunner(RunnerConfig{
		Name:           "HTTP server",
		RestartBackoff: 2 * time.Second,
		MaxBackoff:     30 * time.Second,
	}, server.Run)

	return s.apiRunner.Start(ctx)
}

// fetchCatalog downloads the countries file on first start.
func (s *ServiceCommand) fetchCatalog(ctx context.Context) {
	written, err := catalog.FetchIfMissing(ctx, s.app.fetcher, s.cfg.Sources.CountriesHTML, s.cfg.GetAbsCountriesFile(), s.cfg.General.FetchTimeout())
	if err != nil {
		log.Warnf("Failed to fetch countries list: %v", err)
		return
	}
	if written {
		s.catalog.Set(s.app.loadCatalog())
	}
}

func (s *ServiceCommand) reload() {
	if err := s.app.zones.Reload(); err != nil {
		log.Errorf("Failed to reload zones, keeping the previous ones: %v", err)
	} else {
		m := s.app.zones.Current()
		log.Infof("Zones reloaded: %d zones (%s)", m.Len(), m.Source())
	}
	s.catalog.Set(s.app.loadCatalog())
	s.markConfigActive()

	if _, err := s.configHasher.UpdateCurrentConfigHash(); err != nil {
		log.Warnf("Failed to hash configuration on disk: %v", err)
	} else if changed, err := s.configHasher.IsChanged(); err == nil && changed {
		log.Warnf("Configuration file changed; restart the service to apply it")
	}
}

// markConfigActive records the running configuration together with the zone
// files as they are on disk now.
func (s *ServiceCommand) markConfigActive() {
	hash, err := s.configHasher.CalculateHash(s.cfg)
	if err != nil {
		log.Warnf("Failed to hash configuration: %v", err)
		return
	}
	s.configHasher.SetActiveConfigHash(hash)
}

func (s *ServiceCommand) shutdown(wg *sync.WaitGroup) {
	if s.apiRunner != nil {
		if err := s.apiRunner.Stop(); err != nil {
			log.Errorf("Failed to stop HTTP server: %v", err)
		}
	}

	done := make(chan struct{})
	go func() {
		wg.Wait()
		close(done)
	}()
	select {
	case <-done:
	case <-time.After(30 * time.Second):
		log.Warnf("Timed out waiting for refresh loops to stop")
	}

	log.Infof("Service stopped successfully")
}
