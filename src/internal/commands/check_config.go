package commands

import (
	"flag"
	"os"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/log"
)

func CreateCheckConfigCommand() *CheckConfigCommand {
	return &CheckConfigCommand{
		fs: flag.NewFlagSet("check-config", flag.ExitOnError),
	}
}

// CheckConfigCommand validates the configuration and prints the effective
// values after defaults and environment overrides.
type CheckConfigCommand struct {
	fs  *flag.FlagSet
	cfg *config.Config
}

func (c *CheckConfigCommand) Name() string {
	return c.fs.Name()
}

func (c *CheckConfigCommand) Init(args []string, ctx *AppContext) error {
	if err := c.fs.Parse(args); err != nil {
		return err
	}

	cfg, err := loadAndValidateConfigOrFail(ctx.ConfigPath)
	if err != nil {
		return err
	}
	c.cfg = cfg
	return nil
}

func (c *CheckConfigCommand) Run() error {
	buf, err := c.cfg.SerializeConfig()
	if err != nil {
		log.Errorf("Failed to serialize config: %v", err)
		return err
	}

	log.Infof("---------------- Configuration START -----------------")
	if _, err := os.Stdout.Write(buf.Bytes()); err != nil {
		return err
	}
	log.Infof("----------------- Configuration END ------------------")

	for _, family := range config.Families {
		if url := c.cfg.SourceURL(family); url != "" {
			log.Infof("%s: %s -> %s", family, url, c.cfg.GetAbsBlocksDir(family))
		} else {
			log.Infof("%s: disabled", family)
		}
	}
	log.Infof("Configuration is valid")
	return nil
}
