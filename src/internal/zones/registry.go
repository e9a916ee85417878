package zones

import (
	"sync"

	"github.com/wifx/geoip-rsc/src/internal/log"
)

// Registry holds the current Map and swaps it on Reload. Readers never see a
// partially loaded map.
type Registry struct {
	yamlPath   string
	legacyPath string

	mu      sync.RWMutex
	current *Map
}

// NewRegistry loads the zones once. A broken zone file at startup falls back
// to the built-in defaults so the service can still answer requests.
func NewRegistry(yamlPath, legacyPath string) *Registry {
	r := &Registry{yamlPath: yamlPath, legacyPath: legacyPath}
	m, err := Load(yamlPath, legacyPath)
	if err != nil {
		log.Errorf("Failed to load zones: %v", err)
		m = NewMap(DefaultZones(), SourceBuiltin)
	}
	r.current = m
	return r
}

// Current returns the active zone map.
func (r *Registry) Current() *Map {
	r.mu.RLock()
	defer r.mu.RUnlock()
	return r.current
}

// Reload re-reads the zone files. On error the previous map stays active.
func (r *Registry) Reload() error {
	if r.yamlPath == "" && r.legacyPath == "" {
		return nil
	}
	m, err := Load(r.yamlPath, r.legacyPath)
	if err != nil {
		return err
	}

	r.mu.Lock()
	r.current = m
	r.mu.Unlock()

	log.Infof("Zones reloaded: %d zones from %s", m.Len(), m.Source())
	return nil
}
