package commands

import (
	"flag"
	"fmt"
	"os"
	"strings"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/engine"
	"github.com/wifx/geoip-rsc/src/internal/log"
	"github.com/wifx/geoip-rsc/src/internal/rsc"
	"github.com/wifx/geoip-rsc/src/internal/utils"
)

// stringList collects a repeatable, comma-separated flag.
type stringList []string

func (l *stringList) String() string { return strings.Join(*l, ",") }

func (l *stringList) Set(v string) error {
	for _, part := range strings.Split(v, ",") {
		if part = strings.TrimSpace(part); part != "" {
			*l = append(*l, part)
		}
	}
	return nil
}

func CreateRenderCommand() *RenderCommand {
	rc := &RenderCommand{
		fs: flag.NewFlagSet("render", flag.ExitOnError),
	}

	rc.fs.Var(&rc.countries, "cc", "Country code to include (repeatable, comma-separated)")
	rc.fs.Var(&rc.zones, "zone", "Zone to include (repeatable, comma-separated)")
	rc.fs.Var(&rc.custom, "custom", "Custom CIDR to include (repeatable, comma-separated)")
	rc.fs.StringVar(&rc.family, "family", "4", "IP family: 4 or 6")
	rc.fs.BoolVar(&rc.aggregate, "aggregate", false, "Collapse adjacent networks")
	rc.fs.BoolVar(&rc.perList, "per-list", false, "Render one list per country and zone instead of a single list")
	rc.fs.StringVar(&rc.listName, "list", "", "List name for a single-list script")
	rc.fs.StringVar(&rc.prefix, "prefix", "", "List name prefix for -per-list")
	rc.fs.StringVar(&rc.output, "o", "", "Write the script to this file instead of stdout")

	return rc
}

// RenderCommand renders a script from the local block stores, the same way
// the HTTP endpoints do.
type RenderCommand struct {
	fs  *flag.FlagSet
	app *app

	countries stringList
	zones     stringList
	custom    stringList
	family    string
	aggregate bool
	perList   bool
	listName  string
	prefix    string
	output    string

	req engine.Request
}

func (c *RenderCommand) Name() string {
	return c.fs.Name()
}

func (c *RenderCommand) Init(args []string, ctx *AppContext) error {
	if err := c.fs.Parse(args); err != nil {
		return err
	}

	family, err := config.ParseIPFamily(c.family)
	if err != nil {
		return err
	}
	if c.output == "" {
		// Keep stdout for the script.
		log.SetForceStdErr(true)
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	c.app = newApp(cfg)

	c.req = engine.Request{
		Countries: c.countries,
		Zones:     c.zones,
		Custom:    c.custom,
		Family:    family,
		Aggregate: c.aggregate,
		ListName:  c.listName,
		Prefix:    c.prefix,
	}
	return nil
}

func (c *RenderCommand) Run() error {
	var script *rsc.Script
	var err error
	if c.perList {
		script, err = c.app.engine.PerList(c.req)
	} else {
		script, err = c.app.engine.Combined(c.req)
	}
	if err != nil {
		return err
	}

	for _, w := range script.Warnings() {
		log.Warnf("%v", w)
	}

	if c.output == "" {
		_, err := os.Stdout.WriteString(script.String())
		return err
	}
	if err := utils.WriteFileAtomic(c.output, []byte(script.String()), 0644); err != nil {
		return fmt.Errorf("failed to write %s: %w", c.output, err)
	}
	log.Infof("Wrote %d entries to %s", script.Entries(), c.output)
	return nil
}
