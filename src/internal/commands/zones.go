package commands

import (
	"flag"
	"fmt"
	"os"
	"strings"
	"text/tabwriter"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/zones"
)

func CreateZonesCommand() *ZonesCommand {
	return &ZonesCommand{
		fs: flag.NewFlagSet("zones", flag.ExitOnError),
	}
}

// ZonesCommand prints the zones the service would use.
type ZonesCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
	m   *zones.Map
}

func (c *ZonesCommand) Name() string {
	return c.fs.Name()
}

func (c *ZonesCommand) Init(args []string, ctx *AppContext) error {
	if err := c.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	c.cfg = cfg

	// Load directly so a broken file is reported instead of falling back.
	m, err := zones.Load(cfg.GetAbsZonesFile(), cfg.GetAbsLegacyZonesFile())
	if err != nil {
		return err
	}
	c.m = m
	return nil
}

func (c *ZonesCommand) Run() error {
	fmt.Printf("Source: %s, %d zones\n\n", c.m.Source(), c.m.Len())

	w := tabwriter.NewWriter(os.Stdout, 0, 4, 2, ' ', 0)
	fmt.Fprintln(w, "ZONE\tNAME\tCOUNTRIES")
	for _, z := range c.m.Zones() {
		fmt.Fprintf(w, "%s\t%s\t%s\n", z.Code, z.Name, strings.Join(z.Countries, ","))
	}
	return w.Flush()
}
