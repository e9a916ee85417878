package main

import (
	"flag"
	"fmt"
	"os"

	"github.com/wifx/geoip-rsc/src/internal/commands"
	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/log"
)

var (
	version = "dev"
	commit  = "n/a"
	date    = "n/a"
)

const defaultConfigPath = "/etc/geoip-rsc/geoip-rsc.conf"

func main() {
	ctx := &commands.AppContext{
		Version: version,
		Commit:  commit,
		Date:    date,
	}

	configPath := defaultConfigPath
	if env := os.Getenv(config.EnvConfigPath); env != "" {
		configPath = env
	}

	flag.StringVar(&ctx.ConfigPath, "config", configPath, "Path to configuration file (env "+config.EnvConfigPath+")")
	flag.BoolVar(&ctx.Verbose, "verbose", false, "Enable debug logging")
	quiet := flag.Bool("quiet", false, "Suppress all log output")

	flag.Usage = func() {
		fmt.Fprintf(os.Stderr, "GeoIP address lists for MikroTik RouterOS\n")
		fmt.Fprintf(os.Stderr, "Version: %s (Commit: %s, Date: %s)\n\n", version, commit, date)
		fmt.Fprintf(os.Stderr, "Usage: %s [options] <command>\n\n", os.Args[0])
		fmt.Fprintf(os.Stderr, "Commands:\n")
		fmt.Fprintf(os.Stderr, "  service                 Refresh data on a schedule and serve scripts over HTTP\n")
		fmt.Fprintf(os.Stderr, "  refresh                 Download and extract the GeoIP archives once\n")
		fmt.Fprintf(os.Stderr, "  render                  Print an address-list script for a selection\n")
		fmt.Fprintf(os.Stderr, "  loader                  Print the router-side installer script\n")
		fmt.Fprintf(os.Stderr, "  zones                   Show the active zone definitions\n")
		fmt.Fprintf(os.Stderr, "  check-config            Validate and print the effective configuration\n")
		fmt.Fprintf(os.Stderr, "Options:\n")
		flag.PrintDefaults()
	}

	flag.Parse()

	if ctx.Verbose {
		log.SetVerbose(true)
	}
	if *quiet {
		log.DisableLogs()
	}

	cmds := []commands.Runner{
		commands.CreateServiceCommand(),
		commands.CreateRefreshCommand(),
		commands.CreateRenderCommand(),
		commands.CreateLoaderCommand(),
		commands.CreateZonesCommand(),
		commands.CreateCheckConfigCommand(),
	}

	args := flag.Args()

	if len(args) < 1 {
		flag.Usage()
		os.Exit(1)
	}

	subcommand := args[0]
	for _, cmd := range cmds {
		if cmd.Name() == subcommand {
			if err := cmd.Init(args[1:], ctx); err != nil {
				log.Fatalf("Failed to initialize command: %v", err)
			}

			if err := cmd.Run(); err != nil {
				log.Fatalf("Failed to run command: %v", err)
			}

			os.Exit(0)
		}
	}

	log.Fatalf("Unknown subcommand: %s", subcommand)
}
