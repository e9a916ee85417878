package zones

import (
	"encoding/json"
	"errors"
	"fmt"
	"os"
	"sort"

	"gopkg.in/yaml.v3"

	"github.com/wifx/geoip-rsc/src/internal/log"
)

// Load builds a Map from yamlPath, falling back to legacyPath and then to the
// built-in defaults when a file is absent or defines no zones. A file that
// exists but cannot be parsed is an error.
func Load(yamlPath, legacyPath string) (*Map, error) {
	if yamlPath != "" {
		data, err := os.ReadFile(yamlPath)
		switch {
		case err == nil:
			zones, err := ParseYAML(data)
			if err != nil {
				return nil, fmt.Errorf("failed to parse zones file %s: %w", yamlPath, err)
			}
			if m := NewMap(zones, SourceYAML); m.Len() > 0 {
				log.Infof("Loaded %d zones from %s", m.Len(), yamlPath)
				return m, nil
			}
			log.Warnf("Zones file %s defines no zones", yamlPath)
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read zones file: %w", err)
		}
	}

	if legacyPath != "" {
		data, err := os.ReadFile(legacyPath)
		switch {
		case err == nil:
			zones, err := ParseLegacyJSON(data)
			if err != nil {
				return nil, fmt.Errorf("failed to parse legacy zones file %s: %w", legacyPath, err)
			}
			if m := NewMap(zones, SourceLegacy); m.Len() > 0 {
				log.Infof("Loaded %d zones from %s", m.Len(), legacyPath)
				return m, nil
			}
		case !errors.Is(err, os.ErrNotExist):
			return nil, fmt.Errorf("failed to read legacy zones file: %w", err)
		}
	}

	m := NewMap(DefaultZones(), SourceBuiltin)
	log.Infof("Using built-in default zones (%d zones)", m.Len())
	return m, nil
}

// ParseYAML accepts three layouts:
//
//	EU: [at, de]                  # code to members
//	zones: {EU: [at, de]}         # the same under a "zones" key
//	- {code: EU, name: Europe, countries: [at, de]}
//
// A mapping value may also be {name: ..., countries: [...]}. Entries of an
// unexpected shape are skipped.
func ParseYAML(data []byte) ([]Zone, error) {
	var root yaml.Node
	if err := yaml.Unmarshal(data, &root); err != nil {
		return nil, err
	}
	if len(root.Content) == 0 {
		return nil, nil
	}

	doc := root.Content[0]
	if doc.Kind == yaml.MappingNode {
		if inner := mappingValue(doc, "zones"); inner != nil {
			doc = inner
		}
	}

	switch doc.Kind {
	case yaml.MappingNode:
		return parseMapping(doc), nil
	case yaml.SequenceNode:
		return parseSequence(doc), nil
	default:
		return nil, fmt.Errorf("zones must be a mapping or a list")
	}
}

func mappingValue(node *yaml.Node, key string) *yaml.Node {
	for i := 0; i+1 < len(node.Content); i += 2 {
		if node.Content[i].Value == key {
			return node.Content[i+1]
		}
	}
	return nil
}

func parseMapping(node *yaml.Node) []Zone {
	var out []Zone
	for i := 0; i+1 < len(node.Content); i += 2 {
		k, v := node.Content[i], node.Content[i+1]
		if k.Kind != yaml.ScalarNode {
			continue
		}
		switch v.Kind {
		case yaml.SequenceNode:
			var members []string
			if err := v.Decode(&members); err != nil {
				log.Warnf("Zone %s: %v", k.Value, err)
				continue
			}
			out = append(out, Zone{Code: k.Value, Countries: members})
		case yaml.MappingNode:
			var z Zone
			if err := v.Decode(&z); err != nil {
				log.Warnf("Zone %s: %v", k.Value, err)
				continue
			}
			z.Code = k.Value
			out = append(out, z)
		}
	}
	return out
}

func parseSequence(node *yaml.Node) []Zone {
	var out []Zone
	for _, item := range node.Content {
		if item.Kind != yaml.MappingNode {
			continue
		}
		var z Zone
		if err := item.Decode(&z); err != nil {
			log.Warnf("Skipping zone entry at line %d: %v", item.Line, err)
			continue
		}
		if z.Code == "" {
			continue
		}
		out = append(out, z)
	}
	return out
}

// ParseLegacyJSON reads the old {"EU": ["at", ...]} zone configuration.
func ParseLegacyJSON(data []byte) ([]Zone, error) {
	var raw map[string]json.RawMessage
	if err := json.Unmarshal(data, &raw); err != nil {
		return nil, err
	}

	codes := make([]string, 0, len(raw))
	for code := range raw {
		codes = append(codes, code)
	}
	sort.Strings(codes)

	var out []Zone
	for _, code := range codes {
		var members []string
		if err := json.Unmarshal(raw[code], &members); err != nil {
			continue
		}
		out = append(out, Zone{Code: code, Countries: members})
	}
	return out, nil
}
