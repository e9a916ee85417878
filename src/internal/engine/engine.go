// Package engine answers script requests: it resolves a selection against the
// zone registry and the block stores and renders the RouterOS script.
package engine

import (
	"fmt"
	"sort"
	"strings"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/errors"
	"github.com/wifx/geoip-rsc/src/internal/log"
	"github.com/wifx/geoip-rsc/src/internal/resolver"
	"github.com/wifx/geoip-rsc/src/internal/rsc"
	"github.com/wifx/geoip-rsc/src/internal/utils"
	"github.com/wifx/geoip-rsc/src/internal/zones"
)

const customComment = "Custom"

// ZoneProvider returns the active zone map.
type ZoneProvider interface {
	Current() *zones.Map
}

type Engine struct {
	zones         ZoneProvider
	sources       map[config.IPFamily]resolver.BlockSource
	options       rsc.Options
	defaultPrefix string
}

func New(zp ZoneProvider, sources map[config.IPFamily]resolver.BlockSource, options rsc.Options, defaultPrefix string) *Engine {
	return &Engine{
		zones:         zp,
		sources:       sources,
		options:       options,
		defaultPrefix: defaultPrefix,
	}
}

// Request is a script request as received from HTTP or the command line.
type Request struct {
	Countries []string
	Zones     []string
	Custom    []string
	Family    config.IPFamily
	Aggregate bool
	// ListName names the single list of a combined script.
	ListName string
	// Prefix is the list-name prefix of a per-list script.
	Prefix string
}

func (r Request) selection() resolver.Selection {
	return resolver.Selection{
		Countries: r.Countries,
		Zones:     r.Zones,
		Custom:    r.Custom,
		Family:    r.Family,
		Aggregate: r.Aggregate,
	}
}

func (e *Engine) source(family config.IPFamily) (resolver.BlockSource, error) {
	src, ok := e.sources[family]
	if !ok {
		return nil, errors.NewValidationError(fmt.Sprintf("%s data is not enabled", family), nil)
	}
	return src, nil
}

// Combined merges the whole selection into one list. Every entry is commented
// with the country code it came from, or "Custom".
func (e *Engine) Combined(req Request) (*rsc.Script, error) {
	src, err := e.source(req.Family)
	if err != nil {
		return nil, err
	}

	res, err := resolver.Resolve(req.selection(), e.zones.Current(), src)
	if err != nil {
		return nil, err
	}

	list := rsc.List{Name: utils.NormalizeListName(req.ListName), Family: req.Family}
	for _, g := range res.Groups {
		comment := strings.ToUpper(g.Name)
		if g.Name == resolver.CustomGroup {
			comment = customComment
		}
		for _, b := range g.Blocks {
			list.Entries = append(list.Entries, rsc.Entry{Address: b, Comment: comment})
		}
	}

	opts := e.options
	opts.Comments = true
	log.Debugf("Rendering list %s with %d entries from %d countries", list.Name, len(list.Entries), len(res.Codes))
	return rsc.Render(opts, list), nil
}

// PerList renders one list per country ("<prefix>-<cc>"), per zone
// ("<prefix>-<ZONE>") and for custom networks ("<prefix>-custom"). Members of
// selected zones also get their own country list. An empty request renders
// one list per configured zone.
func (e *Engine) PerList(req Request) (*rsc.Script, error) {
	src, err := e.source(req.Family)
	if err != nil {
		return nil, err
	}
	zm := e.zones.Current()
	prefix := utils.NormalizePrefix(req.Prefix, e.defaultPrefix)

	allZones := len(req.Countries) == 0 && len(req.Zones) == 0 && len(req.Custom) == 0
	zoneCodes := req.Zones
	if allZones {
		zoneCodes = zm.Codes()
	}

	selectedZones, err := normalizeZones(zoneCodes, zm)
	if err != nil {
		return nil, err
	}

	countrySet := make(map[string]bool)
	for _, cc := range req.Countries {
		cc = strings.ToLower(strings.TrimSpace(cc))
		if zones.IsCountryCode(cc) {
			countrySet[cc] = true
		}
	}
	if !allZones {
		for _, z := range selectedZones {
			zone, _ := zm.Get(z)
			for _, cc := range zone.Countries {
				countrySet[cc] = true
			}
		}
	}
	countries := make([]string, 0, len(countrySet))
	for cc := range countrySet {
		countries = append(countries, cc)
	}
	sort.Strings(countries)

	var lists []rsc.List
	total := 0
	add := func(name string, blocks []string) {
		lists = append(lists, rsc.NewList(name, req.Family, blocks, ""))
		total += len(blocks)
	}

	for _, cc := range countries {
		res, err := resolver.Resolve(resolver.Selection{Countries: []string{cc}, Family: req.Family, Aggregate: req.Aggregate}, zm, src)
		if errors.CodeOf(err) == errors.ErrCodeEmptySelection {
			continue
		}
		if err != nil {
			return nil, err
		}
		add(prefix+"-"+cc, res.Blocks())
	}

	for _, z := range selectedZones {
		res, err := resolver.Resolve(resolver.Selection{Zones: []string{z}, Family: req.Family, Aggregate: req.Aggregate}, zm, src)
		switch {
		case errors.CodeOf(err) == errors.ErrCodeEmptySelection:
			add(prefix+"-"+z, nil)
		case err != nil:
			return nil, err
		default:
			add(prefix+"-"+z, res.Blocks())
		}
	}

	if custom := resolver.ParseCustom(req.Custom, req.Family); len(custom) > 0 {
		if req.Aggregate {
			custom = resolver.Aggregate(custom)
		}
		add(prefix+"-"+resolver.CustomGroup, custom)
	}

	// Never hand out a script that would empty every selected list.
	if total == 0 {
		return nil, errors.NewEmptySelectionError("selection resolved to no networks")
	}

	return rsc.Render(e.options, lists...), nil
}

// Loader renders the router-side installer for a script URL.
func (e *Engine) Loader(url, name string) (string, error) {
	return rsc.RenderLoader(rsc.LoaderOptions{
		URL:          url,
		Name:         name,
		TmpfsMaxSize: e.options.TmpfsMaxSize,
		Interval:     e.options.LoaderInterval,
	})
}

// normalizeZones upper-cases, deduplicates and sorts zone codes, failing on
// the first unknown one.
func normalizeZones(raw []string, zm *zones.Map) ([]string, error) {
	seen := make(map[string]bool)
	var out []string
	for _, z := range raw {
		code := strings.ToUpper(strings.TrimSpace(z))
		if code == "" || seen[code] {
			continue
		}
		if _, ok := zm.Get(code); !ok {
			return nil, errors.NewUnknownZoneError(code)
		}
		seen[code] = true
		out = append(out, code)
	}
	sort.Strings(out)
	return out, nil
}
