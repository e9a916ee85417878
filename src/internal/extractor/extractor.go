// Package extractor unpacks an ipdeny tar.gz archive into a block store.
//
// The archive is fully parsed before anything is written: a corrupt or empty
// archive leaves the store untouched.
package extractor

import (
	"archive/tar"
	"bufio"
	"bytes"
	"compress/gzip"
	stderrors "errors"
	"fmt"
	"io"
	"net/netip"
	"path"
	"sort"
	"strings"

	"github.com/wifx/geoip-rsc/src/internal/config"
	"github.com/wifx/geoip-rsc/src/internal/errors"
	"github.com/wifx/geoip-rsc/src/internal/log"
)

const zoneSuffix = ".zone"

// Writer is the part of the store the extractor needs.
type Writer interface {
	Family() config.IPFamily
	Write(code string, blocks []string) error
}

// Result summarizes one extraction.
type Result struct {
	// Countries are the lower-case codes found in the archive, sorted.
	Countries []string
	// Written counts countries whose block file was replaced.
	Written int
	// Failed counts countries that had no valid blocks or could not be written.
	Failed int
	// SkippedLines counts lines dropped as unparsable or of the wrong family.
	SkippedLines int
}

// Extract parses archive and writes one block file per country into w.
func Extract(archive []byte, w Writer) (*Result, error) {
	family := w.Family()

	parsed, skipped, err := parseArchive(archive, family)
	if err != nil {
		return nil, err
	}
	if len(parsed) == 0 {
		return nil, errors.NewEmptyArchiveError("archive contains no country zone files")
	}

	res := &Result{SkippedLines: skipped}
	for code := range parsed {
		res.Countries = append(res.Countries, code)
	}
	sort.Strings(res.Countries)

	usable := 0
	for _, code := range res.Countries {
		if len(parsed[code]) > 0 {
			usable++
		}
	}
	if usable == 0 {
		return nil, errors.NewEmptyArchiveError(fmt.Sprintf("archive contains no valid %s blocks", family))
	}

	for _, code := range res.Countries {
		blocks := parsed[code]
		if len(blocks) == 0 {
			log.Warnf("No valid %s blocks for %s, keeping previous data", family, strings.ToUpper(code))
			res.Failed++
			continue
		}
		if err := w.Write(code, blocks); err != nil {
			log.Warnf("Failed to write %s blocks for %s: %v", family, strings.ToUpper(code), err)
			res.Failed++
			continue
		}
		res.Written++
	}

	if res.SkippedLines > 0 {
		log.Warnf("Skipped %d invalid %s lines", res.SkippedLines, family)
	}
	log.Infof("Extracted %s archive: %d countries written, %d failed", family, res.Written, res.Failed)

	return res, nil
}

func parseArchive(archive []byte, family config.IPFamily) (map[string][]string, int, error) {
	gz, err := gzip.NewReader(bytes.NewReader(archive))
	if err != nil {
		return nil, 0, errors.NewCorruptArchiveError("failed to open gzip stream", err)
	}
	defer gz.Close()

	parsed := make(map[string][]string)
	seen := make(map[string]map[string]struct{})
	skipped := 0

	tr := tar.NewReader(gz)
	for {
		hdr, err := tr.Next()
		if err == io.EOF {
			break
		}
		if err != nil {
			return nil, 0, errors.NewCorruptArchiveError("failed to read tar entry", err)
		}
		if hdr.Typeflag != tar.TypeReg {
			continue
		}

		code, ok := countryCode(hdr.Name)
		if !ok {
			log.Debugf("Ignoring archive entry %s", hdr.Name)
			continue
		}

		if _, exists := parsed[code]; !exists {
			parsed[code] = nil
			seen[code] = make(map[string]struct{})
		}

		scanner := bufio.NewScanner(tr)
		for scanner.Scan() {
			line := strings.TrimSpace(scanner.Text())
			if line == "" || strings.HasPrefix(line, "#") {
				continue
			}
			block, ok := parseBlock(line, family)
			if !ok {
				skipped++
				continue
			}
			if _, dup := seen[code][block]; dup {
				continue
			}
			seen[code][block] = struct{}{}
			parsed[code] = append(parsed[code], block)
		}
		if err := scanner.Err(); err != nil {
			if stderrors.Is(err, bufio.ErrTooLong) {
				return nil, 0, errors.NewCorruptArchiveError("line too long in "+hdr.Name, err)
			}
			return nil, 0, errors.NewCorruptArchiveError("failed to read "+hdr.Name, err)
		}
	}

	return parsed, skipped, nil
}

// countryCode maps "path/xx.zone" to "xx" for two-letter alphabetic codes.
func countryCode(name string) (string, bool) {
	base := path.Base(name)
	if !strings.HasSuffix(base, zoneSuffix) {
		return "", false
	}
	code := strings.ToLower(strings.TrimSuffix(base, zoneSuffix))
	if len(code) != 2 {
		return "", false
	}
	for i := 0; i < len(code); i++ {
		if code[i] < 'a' || code[i] > 'z' {
			return "", false
		}
	}
	return code, true
}

// parseBlock returns the canonical CIDR for line if it belongs to family.
func parseBlock(line string, family config.IPFamily) (string, bool) {
	var prefix netip.Prefix
	if strings.Contains(line, "/") {
		p, err := netip.ParsePrefix(line)
		if err != nil {
			return "", false
		}
		prefix = p
	} else {
		addr, err := netip.ParseAddr(line)
		if err != nil || addr.Zone() != "" {
			return "", false
		}
		prefix = netip.PrefixFrom(addr, addr.BitLen())
	}

	addr := prefix.Addr()
	switch family {
	case config.Ipv4:
		if !addr.Is4() {
			return "", false
		}
	case config.Ipv6:
		if !addr.Is6() || addr.Is4In6() {
			return "", false
		}
	}
	return prefix.Masked().String(), true
}
