// Package log provides simple leveled logging for geoip-rsc.
//
// The logger writes one line per message with a colored level prefix:
// DEBUG (only in verbose mode), INFO, WARN and ERROR. Messages of level ERROR
// go to stderr, everything else to stdout unless SetForceStdErr is enabled.
//
// # Example Usage
//
//	log.Infof("Refreshing %s blocks from %s", family, url)
//	log.Warnf("Zone %s references unknown country %q, skipping", zone, code)
//
// Enabling verbose mode for debug output:
//
//	log.SetVerbose(true)
//	log.Debugf("Extracted %d entries", n)
//
// Tests can capture output with SetOutput. All functions are safe for
// concurrent use.
package log
