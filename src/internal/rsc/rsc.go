// Package rsc renders RouterOS scripts that replace firewall address lists
// without a window in which the list is empty or partial.
//
// Every list is rebuilt under "<name>-new", then the live list is renamed to
// "<name>-old", the new list takes the live name and the old entries are
// removed. Leftovers of an interrupted run are cleared before the rebuild. Firewall rules should match both "<name>" and "<name>-old".
package rsc

import (
	"fmt"
	"io"
	"strings"
	"time"

	"github.com/valyala/fasttemplate"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/errors"
	"github.com/wifx/geoip-rsc/src/internal/log"
	"github.com/wifx/geoip-rsc/src/internal/utils"
)

const (
	TMPL_HEADER  = "header"
	TMPL_NAME    = "name"
	TMPL_NEW     = "new"
	TMPL_OLD     = "old"
	TMPL_COUNT   = "count"
	TMPL_ENTRIES = "entries"
	TMPL_ADDRESS = "address"
	TMPL_TIMEOUT = "timeout"
	TMPL_COMMENT = "comment"
	TMPL_LISTS   = "lists"
	TMPL_TOTAL   = "total"
	TMPL_TMPFS   = "tmpfs"
)

const scriptHeaderTemplate = `# geoip-rsc address-list update
# lists: {{lists}}, entries: {{total}}
# stage through a tmpfs disk (tmpfs-max-size={{tmpfs}}) before /import
`

const listTemplate = `# list {{name}}: {{count}} entries
{{header}}
:do { remove [find list="{{new}}"] } on-error={}
:do { remove [find list="{{old}}"] } on-error={}
{{entries}}:do { set [find list="{{name}}"] list="{{old}}" } on-error={}
:do { set [find list="{{new}}"] list="{{name}}" } on-error={}
:do { remove [find list="{{old}}"] } on-error={}
`

const entryTemplate = `add list="{{new}}" address={{address}} timeout={{timeout}}{{comment}}
`

var (
	scriptHeaderTmpl = fasttemplate.New(scriptHeaderTemplate, "{{", "}}")
	listTmpl         = fasttemplate.New(listTemplate, "{{", "}}")
	entryTmpl        = fasttemplate.New(entryTemplate, "{{", "}}")
)

// Entry is one address with an optional comment.
type Entry struct {
	Address string
	Comment string
}

// List is one address list to replace on the router.
type List struct {
	Name    string
	Family  config.IPFamily
	Entries []Entry
}

// NewList builds a list from plain blocks, all sharing comment.
func NewList(name string, family config.IPFamily, blocks []string, comment string) List {
	entries := make([]Entry, len(blocks))
	for i, b := range blocks {
		entries[i] = Entry{Address: b, Comment: comment}
	}
	return List{Name: name, Family: family, Entries: entries}
}

// Options controls rendering.
type Options struct {
	EntryTimeout time.Duration
	TmpfsMaxSize string
	OldSuffix    string
	NewSuffix    string
	// Comments adds each entry's comment to the script when set.
	Comments bool
	// LoaderInterval is how often the installed router job runs.
	LoaderInterval time.Duration
}

// DefaultOptions mirrors the configuration defaults.
func DefaultOptions() Options {
	timeout, _ := utils.ParseRouterOSDuration(config.DefaultEntryTimeout)
	return Options{
		EntryTimeout: timeout,
		TmpfsMaxSize: config.DefaultTmpfsMaxSize,
		OldSuffix:    config.DefaultOldSuffix,
		NewSuffix:    config.DefaultNewSuffix,
	}
}

// OptionsFromConfig builds Options from the general configuration section.
func OptionsFromConfig(g *config.GeneralConfig) Options {
	return Options{
		EntryTimeout: g.EntryTimeoutDuration(),
		TmpfsMaxSize: g.TmpfsMaxSize,
		OldSuffix:    g.OldSuffix,
		NewSuffix:    g.NewSuffix,

		LoaderInterval: g.RefreshInterval(),
	}
}

// Script is a rendered script together with non-fatal warnings.
type Script struct {
	text     string
	entries  int
	warnings []error
}

func (s *Script) String() string { return s.text }

// Entries is the number of addresses across all lists.
func (s *Script) Entries() int { return s.entries }

// Warnings returns EMPTY_BLOCK_LIST errors for lists rendered without entries.
func (s *Script) Warnings() []error { return s.warnings }

// Render produces one script holding a swap block per list, in order.
func Render(opts Options, lists ...List) *Script {
	opts = withDefaults(opts)
	timeout := utils.FormatRouterOSDuration(opts.EntryTimeout)

	total := 0
	for _, l := range lists {
		total += len(l.Entries)
	}

	var sb strings.Builder
	scriptHeaderTmpl.ExecuteFunc(&sb, func(w io.Writer, tag string) (int, error) {
		switch tag {
		case TMPL_LISTS:
			return fmt.Fprint(w, len(lists))
		case TMPL_TOTAL:
			return fmt.Fprint(w, total)
		case TMPL_TMPFS:
			return w.Write([]byte(opts.TmpfsMaxSize))
		}
		return 0, nil
	})

	script := &Script{entries: total}
	for _, l := range lists {
		name := utils.NormalizeListName(l.Name)
		if len(l.Entries) == 0 {
			warn := errors.NewEmptyBlockListError(name)
			log.Warnf("%v", warn)
			script.warnings = append(script.warnings, warn)
		}

		newName := name + opts.NewSuffix
		var entries strings.Builder
		for _, e := range l.Entries {
			comment := ""
			if opts.Comments && e.Comment != "" {
				comment = fmt.Sprintf(` comment="%s"`, escapeString(e.Comment))
			}
			entryTmpl.ExecuteFunc(&entries, func(w io.Writer, tag string) (int, error) {
				switch tag {
				case TMPL_NEW:
					return w.Write([]byte(newName))
				case TMPL_ADDRESS:
					return w.Write([]byte(e.Address))
				case TMPL_TIMEOUT:
					return w.Write([]byte(timeout))
				case TMPL_COMMENT:
					return w.Write([]byte(comment))
				}
				return 0, nil
			})
		}

		sb.WriteString("\n")
		sb.WriteString(listTmpl.ExecuteString(map[string]interface{}{
			TMPL_HEADER:  sectionHeader(l.Family),
			TMPL_NAME:    name,
			TMPL_NEW:     newName,
			TMPL_OLD:     name + opts.OldSuffix,
			TMPL_COUNT:   fmt.Sprint(len(l.Entries)),
			TMPL_ENTRIES: entries.String(),
		}))
	}

	script.text = sb.String()
	return script
}

// Generate renders a single list. The family is taken from the blocks and
// defaults to IPv4 for an empty list.
func Generate(listName string, blocks []string, entryTimeout time.Duration, tmpfsSize string) string {
	opts := DefaultOptions()
	opts.EntryTimeout = entryTimeout
	opts.TmpfsMaxSize = tmpfsSize
	return Render(opts, NewList(listName, FamilyOf(blocks), blocks, "")).String()
}

// FamilyOf guesses the family of blocks from the first entry.
func FamilyOf(blocks []string) config.IPFamily {
	if len(blocks) > 0 && strings.Contains(blocks[0], ":") {
		return config.Ipv6
	}
	return config.Ipv4
}

func sectionHeader(family config.IPFamily) string {
	if family == config.Ipv6 {
		return "/ipv6 firewall address-list"
	}
	return "/ip firewall address-list"
}

func withDefaults(opts Options) Options {
	def := DefaultOptions()
	if opts.EntryTimeout <= 0 {
		opts.EntryTimeout = def.EntryTimeout
	}
	if opts.TmpfsMaxSize == "" {
		opts.TmpfsMaxSize = def.TmpfsMaxSize
	}
	if opts.OldSuffix == "" {
		opts.OldSuffix = def.OldSuffix
	}
	if opts.NewSuffix == "" {
		opts.NewSuffix = def.NewSuffix
	}
	return opts
}

// escapeString escapes s for use inside a RouterOS double-quoted string.
func escapeString(s string) string {
	r := strings.NewReplacer(
		`\`, `\\`,
		`"`, `\"`,
		`$`, `\$`,
		"\r", `\r`,
		"\n", `\n`,
		"\t", `\t`,
	)
	return r.Replace(s)
}
