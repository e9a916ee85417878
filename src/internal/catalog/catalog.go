// Package catalog maintains the country code to name mapping shown to users.
//
// The catalog is scraped once from the ipdeny index page and saved as YAML.
// An existing file is never overwritten, so operators may edit it.
package catalog

import (
	"context"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"regexp"
	"sort"
	"strings"
	"sync/atomic"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/wifx/geoip-rsc/src/internal/log"
	"github.com/wifx/geoip-rsc/src/internal/utils"
)

var indexEntryRegexp = regexp.MustCompile(`<p>([^<]+?)\s*\(([A-Z]{2})\)`)

type Country struct {
	Code string `yaml:"code" json:"code"`
	Name string `yaml:"name" json:"name"`
}

// Catalog is an immutable code to name lookup. Codes are upper-case.
type Catalog struct {
	countries []Country
	byCode    map[string]string
}

func New(countries []Country) *Catalog {
	c := &Catalog{byCode: make(map[string]string, len(countries))}
	for _, country := range countries {
		code := strings.ToUpper(strings.TrimSpace(country.Code))
		name := strings.TrimSpace(country.Name)
		if code == "" || name == "" {
			continue
		}
		if _, dup := c.byCode[code]; dup {
			continue
		}
		c.byCode[code] = name
		c.countries = append(c.countries, Country{Code: code, Name: name})
	}
	return c
}

// Countries returns the entries sorted by code.
func (c *Catalog) Countries() []Country {
	out := make([]Country, len(c.countries))
	copy(out, c.countries)
	sort.Slice(out, func(i, j int) bool { return out[i].Code < out[j].Code })
	return out
}

// Name returns the country name for code, or "" if unknown.
func (c *Catalog) Name(code string) string {
	return c.byCode[strings.ToUpper(code)]
}

func (c *Catalog) Len() int {
	return len(c.countries)
}

// Holder publishes the current catalog to concurrent readers.
type Holder struct {
	current atomic.Pointer[Catalog]
}

// Catalog returns the stored catalog, or an empty one before the first Set.
func (h *Holder) Catalog() *Catalog {
	if c := h.current.Load(); c != nil {
		return c
	}
	return New(nil)
}

func (h *Holder) Set(c *Catalog) {
	h.current.Store(c)
}

// ParseIndexHTML extracts "<p>Name (CC)" entries from the ipdeny index page,
// keeping the first occurrence of each code.
func ParseIndexHTML(html string) []Country {
	var out []Country
	seen := make(map[string]bool)
	for _, m := range indexEntryRegexp.FindAllStringSubmatch(html, -1) {
		code := strings.ToUpper(strings.TrimSpace(m[2]))
		if seen[code] {
			continue
		}
		seen[code] = true
		out = append(out, Country{Code: code, Name: strings.TrimSpace(m[1])})
	}
	return out
}

// Load reads a catalog file. Both a list of {code, name} items and a plain
// code: name mapping are accepted. A missing file yields an empty catalog.
func Load(path string) (*Catalog, error) {
	data, err := os.ReadFile(path)
	if errors.Is(err, os.ErrNotExist) {
		return New(nil), nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read countries file: %w", err)
	}

	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, fmt.Errorf("failed to parse countries file %s: %w", path, err)
	}
	if len(root.Content) == 0 {
		return New(nil), nil
	}

	var countries []Country
	doc := root.Content[0]
	switch doc.Kind {
	case yaml.SequenceNode:
		for _, item := range doc.Content {
			var c Country
			if item.Kind != yaml.MappingNode || item.Decode(&c) != nil {
				continue
			}
			countries = append(countries, c)
		}
	case yaml.MappingNode:
		for i := 0; i+1 < len(doc.Content); i += 2 {
			k, v := doc.Content[i], doc.Content[i+1]
			if k.Kind != yaml.ScalarNode || v.Kind != yaml.ScalarNode {
				continue
			}
			countries = append(countries, Country{Code: k.Value, Name: v.Value})
		}
	default:
		return nil, fmt.Errorf("countries file %s must be a list or a mapping", path)
	}

	c := New(countries)
	log.Debugf("Loaded %d countries from %s", c.Len(), path)
	return c, nil
}

// Save writes countries as a YAML list, replacing path atomically.
func Save(path string, countries []Country) error {
	data, err := yaml.Marshal(countries)
	if err != nil {
		return fmt.Errorf("failed to encode countries: %w", err)
	}
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		return fmt.Errorf("failed to create directory for %s: %w", path, err)
	}
	return utils.WriteFileAtomic(path, data, 0644)
}

// Fetcher downloads a URL.
type Fetcher interface {
	Fetch(ctx context.Context, url string, timeout time.Duration) ([]byte, error)
}

// FetchIfMissing scrapes url and saves the result to path unless path exists
// or url is empty. It reports whether a file was written.
func FetchIfMissing(ctx context.Context, f Fetcher, url, path string, timeout time.Duration) (bool, error) {
	if url == "" {
		return false, nil
	}
	if _, err := os.Stat(path); err == nil {
		log.Debugf("Countries file %s exists, not fetching", path)
		return false, nil
	}

	log.Infof("Fetching countries list from %s", url)
	body, err := f.Fetch(ctx, url, timeout)
	if err != nil {
		return false, err
	}

	countries := ParseIndexHTML(string(body))
	if len(countries) == 0 {
		log.Warnf("No countries found at %s", url)
		return false, nil
	}

	if err := Save(path, countries); err != nil {
		return false, err
	}
	log.Infof("Saved %d countries to %s", len(countries), path)
	return true, nil
}
