package utils

import (
	"regexp"
	"strings"
)

const (
	DefaultListName = "geoip"

	maxListNameLen = 63
	maxPrefixLen   = 40
)

var unsafeNameChars = regexp.MustCompile(`[^A-Za-z0-9_\-]`)

// NormalizeListName turns user input into a RouterOS address-list name.
// Unsafe characters become underscores; empty input yields DefaultListName.
func NormalizeListName(raw string) string {
	cleaned := unsafeNameChars.ReplaceAllString(strings.TrimSpace(raw), "_")
	if cleaned == "" {
		return DefaultListName
	}
	if len(cleaned) > maxListNameLen {
		cleaned = cleaned[:maxListNameLen]
	}
	return cleaned
}

// NormalizePrefix sanitizes a list-name prefix. Trailing dashes are removed
// because the separator is added when names are built.
func NormalizePrefix(raw, defaultPrefix string) string {
	clean := func(s string) string {
		return strings.TrimRight(unsafeNameChars.ReplaceAllString(strings.TrimSpace(s), "_"), "-")
	}

	cleaned := clean(raw)
	if cleaned == "" {
		cleaned = clean(defaultPrefix)
	}
	if cleaned == "" {
		cleaned = DefaultListName
	}
	if len(cleaned) > maxPrefixLen {
		cleaned = cleaned[:maxPrefixLen]
	}
	return cleaned
}
