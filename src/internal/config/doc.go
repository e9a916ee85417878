// Package config handles configuration file parsing and validation for
// geoip-rsc.
//
// The configuration is a TOML file with four sections:
//   - [general] refresh interval, fetch timeout, list naming and the RouterOS
//     entry timeout and tmpfs size used by generated scripts
//   - [api] HTTP listener settings
//   - [sources] upstream URLs for the country index and the IPv4/IPv6 archives
//   - [paths] local files and directories, relative to the config file
//
// A missing configuration file is not fatal: every field has a default. The
// GEOIP_* environment variables override file values after loading:
//
//	cfg, err := config.LoadConfig("/etc/geoip-rsc/geoip-rsc.toml")
//	if err != nil {
//	    log.Fatalf("%v", err)
//	}
//	if err := cfg.ApplyEnv(); err != nil {
//	    log.Fatalf("%v", err)
//	}
//	if err := cfg.ValidateConfig(); err != nil {
//	    log.Fatalf("%v", err)
//	}
package config
