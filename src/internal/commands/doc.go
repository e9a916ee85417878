// Package commands implements the geoip-rsc subcommands.
//
// Each command implements the Runner interface:
//   - Init(): parse arguments and load the configuration
//   - Run(): execute the command
//   - Name(): return the command name for routing
//
// # Available Commands
//
//   - service: refresh data on a schedule and serve scripts over HTTP
//   - refresh: download and extract the archives once
//   - render: print a script for a selection from the local data
//   - loader: print the router-side installer script
//   - zones: print the active zone definitions
//   - check-config: validate and print the effective configuration
package commands
