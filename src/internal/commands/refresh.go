package commands

import (
	"context"
	"flag"
	"fmt"
	"os"
	"os/signal"
	"sync/atomic"
	"syscall"

	"golang.org/x/sync/errgroup"

	"github.com/wifx/geoip-rsc/src/internal/catalog"
	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/log"
)

func CreateRefreshCommand() *RefreshCommand {
	rc := &RefreshCommand{
		fs: flag.NewFlagSet("refresh", flag.ExitOnError),
	}

	rc.fs.StringVar(&rc.family, "family", "", "Refresh only this family (4 or 6); all enabled families by default")

	return rc
}

// RefreshCommand downloads and extracts the archives once, all families in
// parallel, and fetches the countries file when it is missing.
type RefreshCommand struct {
	fs     *flag.FlagSet
	cfg    *config.Config
	app    *app
	family string

	families []config.IPFamily
}

func (c *RefreshCommand) Name() string {
	return c.fs.Name()
}

func (c *RefreshCommand) Init(args []string, ctx *AppContext) error {
	if err := c.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	c.app = newApp(cfg)

	c.families = c.app.scheduler.Families()
	if c.family != "" {
		family, err := config.ParseIPFamily(c.family)
		if err != nil {
			return err
		}
		if _, ok := c.app.stores[family]; !ok {
			return fmt.Errorf("%s source is not configured", family)
		}
		c.families = []config.IPFamily{family}
	}

	return nil
}

func (c *RefreshCommand) Run() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	// A plain Group: one family failing must not cancel the other.
	var g errgroup.Group
	var failed atomic.Int32

	for _, family := range c.families {
		family := family
		g.Go(func() error {
			if err := c.app.scheduler.RefreshNow(ctx, family); err != nil {
				log.Errorf("Failed to refresh %s data: %v", family, err)
				failed.Add(1)
				return err
			}
			fs, _ := c.app.scheduler.State().Get(family)
			log.Infof("%s data is up to date: %d countries", family, fs.Countries)
			return nil
		})
	}

	g.Go(func() error {
		if _, err := catalog.FetchIfMissing(ctx, c.app.fetcher, c.cfg.Sources.CountriesHTML, c.cfg.GetAbsCountriesFile(), c.cfg.General.FetchTimeout()); err != nil {
			log.Warnf("Failed to fetch countries list: %v", err)
		}
		return nil
	})

	if err := g.Wait(); err != nil {
		return fmt.Errorf("%d of %d families failed to refresh: %w", failed.Load(), len(c.families), err)
	}
	return nil
}
