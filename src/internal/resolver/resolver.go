// Package resolver turns a selection of countries, zones and custom CIDRs into
// an ordered, deduplicated block list.
package resolver

import (
	"fmt"
	"net/netip"
	"strings"

	"go4.org/netipx"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/errors"
	"github.com/wifx/geoip-rsc/src/internal/log"
	"github.com/wifx/geoip-rsc/src/internal/zones"
)

// CustomGroup names the group holding user supplied CIDRs.
const CustomGroup = "custom"

// Selection is what a caller asked for. It is never persisted.
type Selection struct {
	Countries []string
	Zones     []string
	Custom    []string
	Family    config.IPFamily
	Aggregate bool
}

// IsEmpty reports whether nothing was selected.
func (s Selection) IsEmpty() bool {
	return len(s.Countries) == 0 && len(s.Zones) == 0 && len(s.Custom) == 0
}

// BlockSource reads stored blocks for a country code.
type BlockSource interface {
	Blocks(code string) ([]string, error)
}

// Group is the set of blocks contributed by one country, or by CustomGroup.
type Group struct {
	Name   string
	Blocks []string
}

type Resolution struct {
	// Zones lists the expanded zone codes in selection order.
	Zones []string
	// Codes lists the resolved country codes in first-seen order.
	Codes []string
	// Groups hold the blocks per code, followed by the custom group. Each
	// block appears in exactly one group, the first that contributed it.
	Groups []Group
	// Skipped lists codes that had no stored data or were not valid codes.
	Skipped []string
}

// Blocks flattens Groups in order.
func (r *Resolution) Blocks() []string {
	var out []string
	for _, g := range r.Groups {
		out = append(out, g.Blocks...)
	}
	return out
}

// Len returns the number of blocks.
func (r *Resolution) Len() int {
	n := 0
	for _, g := range r.Groups {
		n += len(g.Blocks)
	}
	return n
}

// Resolve expands zones (in selection order, members in zone order), appends
// directly selected countries and reads each code's blocks from src. Codes
// without data are skipped with a warning. An unknown zone fails the whole
// request with UNKNOWN_ZONE; an empty selection or an empty result fails with
// EMPTY_SELECTION.
func Resolve(sel Selection, zm *zones.Map, src BlockSource) (*Resolution, error) {
	if sel.IsEmpty() {
		return nil, errors.NewEmptySelectionError("no countries, zones or custom networks selected")
	}

	res := &Resolution{}
	seenCodes := make(map[string]bool)
	addCode := func(raw string) {
		cc := strings.ToLower(strings.TrimSpace(raw))
		if cc == "" || seenCodes[cc] {
			return
		}
		seenCodes[cc] = true
		if !zones.IsCountryCode(cc) {
			log.Warnf("Ignoring invalid country code %q", raw)
			res.Skipped = append(res.Skipped, cc)
			return
		}
		res.Codes = append(res.Codes, cc)
	}

	seenZones := make(map[string]bool)
	for _, raw := range sel.Zones {
		name := strings.ToUpper(strings.TrimSpace(raw))
		if name == "" || seenZones[name] {
			continue
		}
		seenZones[name] = true

		z, ok := zm.Get(name)
		if !ok {
			return nil, errors.NewUnknownZoneError(name)
		}
		res.Zones = append(res.Zones, z.Code)
		for _, cc := range z.Countries {
			addCode(cc)
		}
	}
	for _, cc := range sel.Countries {
		addCode(cc)
	}

	seenBlocks := make(map[string]bool)
	appendGroup := func(name string, blocks []string) {
		if sel.Aggregate {
			blocks = Aggregate(blocks)
		}
		var unique []string
		for _, b := range blocks {
			if seenBlocks[b] {
				continue
			}
			seenBlocks[b] = true
			unique = append(unique, b)
		}
		if len(unique) > 0 {
			res.Groups = append(res.Groups, Group{Name: name, Blocks: unique})
		}
	}

	var resolved []string
	for _, cc := range res.Codes {
		blocks, err := src.Blocks(cc)
		if err != nil {
			return nil, errors.NewInternalError(fmt.Sprintf("failed to read blocks for %s", strings.ToUpper(cc)), err)
		}
		if len(blocks) == 0 {
			log.Warnf("No %s data for country %s, skipping", sel.Family, strings.ToUpper(cc))
			res.Skipped = append(res.Skipped, cc)
			continue
		}
		resolved = append(resolved, cc)
		appendGroup(cc, blocks)
	}
	res.Codes = resolved

	if custom := ParseCustom(sel.Custom, sel.Family); len(custom) > 0 {
		appendGroup(CustomGroup, custom)
	}

	if res.Len() == 0 {
		return nil, errors.NewEmptySelectionError("selection resolved to no networks")
	}
	return res, nil
}

// ParseCustom keeps the entries of raw that parse as a CIDR or address of
// family, in canonical form. Entries may be separated by newlines, commas or
// spaces.
func ParseCustom(raw []string, family config.IPFamily) []string {
	var out []string
	for _, chunk := range raw {
		for _, item := range strings.FieldsFunc(chunk, func(r rune) bool {
			return r == '\n' || r == '\r' || r == ',' || r == ' ' || r == '\t' || r == ';'
		}) {
			p, ok := parsePrefix(item)
			if !ok {
				log.Debugf("Ignoring invalid custom network %q", item)
				continue
			}
			if family == config.Ipv4 && !p.Addr().Is4() {
				continue
			}
			if family == config.Ipv6 && (!p.Addr().Is6() || p.Addr().Is4In6()) {
				continue
			}
			out = append(out, p.String())
		}
	}
	return out
}

func parsePrefix(s string) (netip.Prefix, bool) {
	if strings.Contains(s, "/") {
		p, err := netip.ParsePrefix(s)
		if err != nil {
			return netip.Prefix{}, false
		}
		return p.Masked(), true
	}
	addr, err := netip.ParseAddr(s)
	if err != nil || addr.Zone() != "" {
		return netip.Prefix{}, false
	}
	return netip.PrefixFrom(addr, addr.BitLen()), true
}

// Aggregate collapses blocks into the minimal sorted set of prefixes covering
// the same addresses. Unparsable entries are dropped.
func Aggregate(blocks []string) []string {
	var b netipx.IPSetBuilder
	for _, s := range blocks {
		if p, ok := parsePrefix(s); ok {
			b.AddPrefix(p)
		}
	}
	set, err := b.IPSet()
	if err != nil {
		log.Warnf("Failed to aggregate networks: %v", err)
		return blocks
	}

	prefixes := set.Prefixes()
	out := make([]string, 0, len(prefixes))
	for _, p := range prefixes {
		out = append(out, p.String())
	}
	return out
}
