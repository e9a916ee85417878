// Package store keeps per-country block files for one IP family.
//
// Each country lives in "<cc>.zone" (lower-case code) with one CIDR per line.
// Files are replaced with write-to-temp-then-rename, so a reader sees either
// the previous list or the new one.
package store

import (
	"bufio"
	"bytes"
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"sort"
	"strings"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/utils"
)

const zoneExt = ".zone"

type Store struct {
	dir    string
	family config.IPFamily

	// BeforeRename, when set, runs between writing the temporary file and
	// renaming it into place.
	BeforeRename func(code string)
}

func New(dir string, family config.IPFamily) *Store {
	return &Store{dir: dir, family: family}
}

func (s *Store) Dir() string             { return s.dir }
func (s *Store) Family() config.IPFamily { return s.family }

// Path returns the block file path for a country code.
func (s *Store) Path(code string) string {
	return filepath.Join(s.dir, strings.ToLower(code)+zoneExt)
}

// Blocks reads the CIDR blocks stored for code. A missing file yields
// (nil, nil).
func (s *Store) Blocks(code string) ([]string, error) {
	data, err := os.ReadFile(s.Path(code))
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to read blocks for %s: %w", code, err)
	}

	var blocks []string
	scanner := bufio.NewScanner(bytes.NewReader(data))
	for scanner.Scan() {
		line := strings.TrimSpace(scanner.Text())
		if line == "" || strings.HasPrefix(line, "#") {
			continue
		}
		blocks = append(blocks, line)
	}
	if err := scanner.Err(); err != nil {
		return nil, fmt.Errorf("failed to parse blocks for %s: %w", code, err)
	}
	return blocks, nil
}

// Countries returns the upper-case codes that have block files, sorted.
func (s *Store) Countries() ([]string, error) {
	entries, err := os.ReadDir(s.dir)
	if errors.Is(err, os.ErrNotExist) {
		return nil, nil
	}
	if err != nil {
		return nil, fmt.Errorf("failed to list %s: %w", s.dir, err)
	}

	var codes []string
	for _, e := range entries {
		name := e.Name()
		if e.IsDir() || strings.HasPrefix(name, ".") || !strings.HasSuffix(name, zoneExt) {
			continue
		}
		codes = append(codes, strings.ToUpper(strings.TrimSuffix(name, zoneExt)))
	}
	sort.Strings(codes)
	return codes, nil
}

// IsEmpty reports whether the store holds no block files.
func (s *Store) IsEmpty() bool {
	codes, err := s.Countries()
	return err != nil || len(codes) == 0
}

// Write atomically replaces the block file for code.
func (s *Store) Write(code string, blocks []string) error {
	if err := os.MkdirAll(s.dir, 0755); err != nil {
		return fmt.Errorf("failed to create %s: %w", s.dir, err)
	}

	var buf bytes.Buffer
	for _, b := range blocks {
		buf.WriteString(b)
		buf.WriteByte('\n')
	}

	var hook func()
	if s.BeforeRename != nil {
		hook = func() { s.BeforeRename(code) }
	}
	return utils.WriteFileAtomicWithHook(s.Path(code), buf.Bytes(), 0644, hook)
}
