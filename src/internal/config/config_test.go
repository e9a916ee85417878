package config

import (
	"os"
	"path/filepath"
	"testing"
)

func TestLoadConfig_NonExistentFileUsesDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "missing.toml")

	cfg, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("Expected defaults for missing file, got error: %v", err)
	}

	if cfg.General.RefreshHours != DefaultRefreshHours {
		t.Errorf("Expected refresh_hours %d, got %d", DefaultRefreshHours, cfg.General.RefreshHours)
	}
	if cfg.General.EntryTimeout != DefaultEntryTimeout {
		t.Errorf("Expected entry_timeout %q, got %q", DefaultEntryTimeout, cfg.General.EntryTimeout)
	}
	if cfg.Sources.IPv4TarGz != DefaultIPv4TarGz {
		t.Errorf("Expected default IPv4 source, got %q", cfg.Sources.IPv4TarGz)
	}
	if got := cfg.GetAbsBlocksDir(Ipv4); got != filepath.Join(tmpDir, "geoip", "ipv4") {
		t.Errorf("Unexpected IPv4 dir: %s", got)
	}
	if err := cfg.ValidateConfig(); err != nil {
		t.Errorf("Defaults should validate: %v", err)
	}
}

func TestLoadConfig_InvalidTOML(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "invalid.toml")

	invalidTOML := `[general
	refresh_hours = 1`

	if err := os.WriteFile(configFile, []byte(invalidTOML), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	if _, err := LoadConfig(configFile); err == nil {
		t.Error("Expected error for invalid TOML")
	}
}

func TestLoadConfig_PartialConfigKeepsDefaults(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "geoip-rsc.toml")

	content := `[general]
refresh_hours = 6
list_prefix = "cc"

[paths]
ipv4_dir = "/var/lib/geoip/v4"
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	cfg, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("Expected no error: %v", err)
	}

	if cfg.General.RefreshHours != 6 {
		t.Errorf("Expected refresh_hours 6, got %d", cfg.General.RefreshHours)
	}
	if cfg.General.ListPrefix != "cc" {
		t.Errorf("Expected list_prefix cc, got %s", cfg.General.ListPrefix)
	}
	if cfg.General.FetchTimeoutSec != DefaultFetchTimeoutSec {
		t.Errorf("Expected default fetch timeout, got %d", cfg.General.FetchTimeoutSec)
	}
	if got := cfg.GetAbsBlocksDir(Ipv4); got != "/var/lib/geoip/v4" {
		t.Errorf("Absolute path should be kept, got %s", got)
	}
	if got := cfg.GetAbsBlocksDir(Ipv6); got != filepath.Join(tmpDir, DefaultIPv6Dir) {
		t.Errorf("Relative default should resolve against config dir, got %s", got)
	}
}

func TestLoadConfig_EmptySourceDisablesFamily(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "geoip-rsc.toml")

	content := `[sources]
countries_html = "https://example.com/"
ipv4_tar_gz = "https://example.com/v4.tar.gz"
ipv6_tar_gz = ""
`
	if err := os.WriteFile(configFile, []byte(content), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	cfg, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("Expected no error: %v", err)
	}

	families := cfg.EnabledFamilies()
	if len(families) != 1 || families[0] != Ipv4 {
		t.Errorf("Expected only IPv4 enabled, got %v", families)
	}
}

func TestLoadConfig_RelativePath(t *testing.T) {
	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "config.toml")

	if err := os.WriteFile(configFile, []byte("[general]\nrefresh_hours = 2\n"), 0644); err != nil {
		t.Fatalf("Failed to write test file: %v", err)
	}

	oldDir, _ := os.Getwd()
	defer os.Chdir(oldDir)
	if err := os.Chdir(tmpDir); err != nil {
		t.Fatalf("Failed to change directory: %v", err)
	}

	cfg, err := LoadConfig("config.toml")
	if err != nil {
		t.Fatalf("Expected no error for relative path: %v", err)
	}

	if !filepath.IsAbs(cfg.GetConfigFilePath()) {
		t.Errorf("Expected absolute config path, got %s", cfg.GetConfigFilePath())
	}
}

func TestSerializeConfig(t *testing.T) {
	cfg := NewDefaultConfig("/etc/geoip-rsc/geoip-rsc.toml")

	buf, err := cfg.SerializeConfig()
	if err != nil {
		t.Fatalf("Failed to serialize config: %v", err)
	}

	tmpDir := t.TempDir()
	configFile := filepath.Join(tmpDir, "roundtrip.toml")
	if err := os.WriteFile(configFile, buf.Bytes(), 0644); err != nil {
		t.Fatalf("Failed to write serialized config: %v", err)
	}

	loaded, err := LoadConfig(configFile)
	if err != nil {
		t.Fatalf("Failed to load serialized config: %v", err)
	}
	if loaded.General.EntryTimeout != cfg.General.EntryTimeout {
		t.Errorf("Entry timeout changed: %q vs %q", loaded.General.EntryTimeout, cfg.General.EntryTimeout)
	}
	if loaded.Sources.IPv6TarGz != cfg.Sources.IPv6TarGz {
		t.Errorf("IPv6 source changed: %q", loaded.Sources.IPv6TarGz)
	}
}

func TestApplyEnvFrom(t *testing.T) {
	cfg := NewDefaultConfig("/etc/geoip-rsc/geoip-rsc.toml")

	env := map[string]string{
		EnvIPv6URL:       "https://mirror.example/v6.tar.gz",
		EnvRefreshHours:  "12",
		EnvFetchTimeout:  "5",
		EnvCountryPrefix: "geo-",
		EnvEntryTimeout:  "2d",
		EnvIPv4Dir:       "/data/v4",
		EnvTmpfsMaxSize:  "",
	}
	lookup := func(key string) (string, bool) {
		v, ok := env[key]
		return v, ok
	}

	if err := cfg.ApplyEnvFrom(lookup); err != nil {
		t.Fatalf("Unexpected error: %v", err)
	}

	if cfg.Sources.IPv6TarGz != "https://mirror.example/v6.tar.gz" {
		t.Errorf("IPv6 URL not overridden: %s", cfg.Sources.IPv6TarGz)
	}
	if cfg.General.RefreshHours != 12 || cfg.General.FetchTimeoutSec != 5 {
		t.Errorf("Integer overrides not applied: %+v", cfg.General)
	}
	if cfg.General.ListPrefix != "geo" {
		t.Errorf("Expected trailing dash trimmed from prefix, got %q", cfg.General.ListPrefix)
	}
	if cfg.General.EntryTimeout != "2d" {
		t.Errorf("Entry timeout not overridden: %s", cfg.General.EntryTimeout)
	}
	if cfg.GetAbsBlocksDir(Ipv4) != "/data/v4" {
		t.Errorf("IPv4 dir not overridden: %s", cfg.GetAbsBlocksDir(Ipv4))
	}
	if cfg.General.TmpfsMaxSize != DefaultTmpfsMaxSize {
		t.Errorf("Empty env value must be ignored, got %q", cfg.General.TmpfsMaxSize)
	}
}

func TestApplyEnvFrom_InvalidInteger(t *testing.T) {
	cfg := NewDefaultConfig("/etc/geoip-rsc/geoip-rsc.toml")
	lookup := func(key string) (string, bool) {
		if key == EnvRefreshHours {
			return "daily", true
		}
		return "", false
	}

	if err := cfg.ApplyEnvFrom(lookup); err == nil {
		t.Error("Expected error for non-integer refresh hours")
	}
}
