package config

import (
	"crypto/md5"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"os"
	"sync"
	"time"

	"github.com/wifx/geoip-rsc/src/internal/utils"
)

const hashCacheTTL = 5 * time.Minute

// ConfigHasher calculates an MD5 over the effective configuration and the zone
// definition files it points at. The running service records the hash it was
// started (or last reloaded) with, so callers can tell whether the files on
// disk have changed since.
type ConfigHasher struct {
	configPath string

	// Current hash (from files on disk) with caching
	currentHash     string
	currentHashTime time.Time

	// Active hash (from running service)
	activeHash string

	mu sync.RWMutex
}

// NewConfigHasher creates a new config hasher
func NewConfigHasher(configPath string) *ConfigHasher {
	return &ConfigHasher{
		configPath: configPath,
	}
}

// GetCurrentConfigHash returns cached hash of current config files.
// Calls UpdateCurrentConfigHash() on cache miss.
func (h *ConfigHasher) GetCurrentConfigHash() (string, error) {
	h.mu.RLock()
	if time.Since(h.currentHashTime) < hashCacheTTL && h.currentHash != "" {
		hash := h.currentHash
		h.mu.RUnlock()
		return hash, nil
	}
	h.mu.RUnlock()

	return h.UpdateCurrentConfigHash()
}

// UpdateCurrentConfigHash reloads the config and recalculates the hash
// regardless of cache state.
func (h *ConfigHasher) UpdateCurrentConfigHash() (string, error) {
	cfg, err := LoadConfig(h.configPath)
	if err != nil {
		return "", fmt.Errorf("failed to load config: %w", err)
	}
	if err := cfg.ApplyEnv(); err != nil {
		return "", fmt.Errorf("failed to apply environment: %w", err)
	}

	hash, err := h.CalculateHash(cfg)
	if err != nil {
		return "", fmt.Errorf("failed to calculate hash: %w", err)
	}

	h.mu.Lock()
	h.currentHash = hash
	h.currentHashTime = time.Now()
	h.mu.Unlock()

	return hash, nil
}

// CalculateHash calculates hash for a given config object
func (h *ConfigHasher) CalculateHash(config *Config) (string, error) {
	hashData := &ConfigHashData{
		General: config.General,
		Sources: config.Sources,
		Paths:   config.Paths,
		Files: map[string]string{
			"zones":        hashFile(config.GetAbsZonesFile()),
			"legacy_zones": hashFile(config.GetAbsLegacyZonesFile()),
		},
	}

	jsonBytes, err := json.Marshal(hashData)
	if err != nil {
		return "", fmt.Errorf("failed to marshal config data: %w", err)
	}

	hash := md5.Sum(jsonBytes)
	return hex.EncodeToString(hash[:]), nil
}

// GetActiveConfigHash returns hash of config that was active when service started
func (h *ConfigHasher) GetActiveConfigHash() string {
	h.mu.RLock()
	defer h.mu.RUnlock()
	return h.activeHash
}

// SetActiveConfigHash sets the hash of config when service starts or reloads
func (h *ConfigHasher) SetActiveConfigHash(hash string) {
	h.mu.Lock()
	defer h.mu.Unlock()
	h.activeHash = hash
}

// IsChanged reports whether the files on disk differ from the active config.
func (h *ConfigHasher) IsChanged() (bool, error) {
	current, err := h.GetCurrentConfigHash()
	if err != nil {
		return false, err
	}
	active := h.GetActiveConfigHash()
	return active != "" && current != active, nil
}

// hashFile returns the MD5 of path, "missing" when it does not exist, or an
// "error:" marker.
func hashFile(path string) string {
	if path == "" {
		return ""
	}
	file, err := os.Open(path)
	if os.IsNotExist(err) {
		return "missing"
	}
	if err != nil {
		return fmt.Sprintf("error:%v", err)
	}
	defer utils.CloseOrWarn(file)

	hash := md5.New()
	if _, err := io.Copy(hash, file); err != nil {
		return fmt.Sprintf("error:%v", err)
	}
	return hex.EncodeToString(hash.Sum(nil))
}

// ConfigHashData represents the structure used for hashing
type ConfigHashData struct {
	General *GeneralConfig    `json:"general"`
	Sources *SourcesConfig    `json:"sources"`
	Paths   *PathsConfig      `json:"paths"`
	Files   map[string]string `json:"files"`
}
