// Package utils provides small helpers shared across geoip-rsc.
//
// # Components
//
//   - Atomic file writes: write to a temporary sibling, fsync, rename
//   - Path utilities: resolve paths relative to the configuration directory
//   - Name utilities: sanitize RouterOS address-list names and prefixes
//   - Closers: close with a logged warning instead of a lost error
//
// # Example Usage
//
//	if err := utils.WriteFileAtomic("/data/geoip/ipv4/ch.zone", body, 0644); err != nil {
//	    return err
//	}
//
//	name := utils.NormalizeListName(r.URL.Query().Get("list")) // "geoip" when empty
package utils
