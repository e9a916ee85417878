package commands

import (
	"flag"
	"fmt"
	"os"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/log"
	"github.com/wifx/geoip-rsc/src/internal/rsc"
)

func CreateLoaderCommand() *LoaderCommand {
	lc := &LoaderCommand{
		fs: flag.NewFlagSet("loader", flag.ExitOnError),
	}

	lc.fs.StringVar(&lc.url, "url", "", "URL of the list script the router should fetch (required)")
	lc.fs.StringVar(&lc.name, "name", rsc.DefaultLoaderName, "Name of the router script and scheduler entry")
	lc.fs.StringVar(&lc.ramdisk, "ramdisk", rsc.DefaultRamdisk, "tmpfs disk slot on the router")
	lc.fs.DurationVar(&lc.interval, "interval", 0, "Scheduler interval (default: refresh_hours from the config)")

	return lc
}

// LoaderCommand prints the router-side installer script.
type LoaderCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config

	url      string
	name     string
	ramdisk  string
	interval time.Duration
}

func (c *LoaderCommand) Name() string {
	return c.fs.Name()
}

func (c *LoaderCommand) Init(args []string, ctx *AppContext) error {
	if err := c.fs.Parse(args); err != nil {
		return err
	}
	if c.url == "" {
		return fmt.Errorf("-url is required")
	}
	log.SetForceStdErr(true)

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	if c.interval <= 0 {
		c.interval = cfg.General.RefreshInterval()
	}
	return nil
}

func (c *LoaderCommand) Run() error {
	script, err := rsc.RenderLoader(rsc.LoaderOptions{
		URL:          c.url,
		Name:         c.name,
		Ramdisk:      c.ramdisk,
		TmpfsMaxSize: c.cfg.General.TmpfsMaxSize,
		Interval:     c.interval,
	})
	if err != nil {
		return err
	}
	_, err = os.Stdout.WriteString(script)
	return err
}
