package hashing

import (
	"errors"
	"os"
	"strings"

	"github.com/wifx/geoip-rsc/src/internal/log"
	"github.com/wifx/geoip-rsc/src/internal/utils"
)

const checksumSuffix = ".md5"

// IsFileChanged reports whether the checksum differs from the sidecar stored
// next to filePath. A missing file or sidecar counts as changed.
func IsFileChanged(checksum ChecksumProvider, filePath string) (bool, error) {
	if _, err := os.Stat(filePath); errors.Is(err, os.ErrNotExist) {
		return true, nil
	}

	sum, err := checksum.GetChecksum()
	if err != nil {
		return false, err
	}

	stored, err := os.ReadFile(filePath + checksumSuffix)
	if err != nil {
		log.Debugf("Failed to read checksum file '%s', assuming it's changed: %v", filePath+checksumSuffix, err)
		return true, nil
	}
	return strings.TrimSpace(string(stored)) != sum, nil
}

// WriteChecksum stores the checksum sidecar of filePath.
func WriteChecksum(checksum ChecksumProvider, filePath string) error {
	sum, err := checksum.GetChecksum()
	if err != nil {
		return err
	}
	return utils.WriteFileAtomic(filePath+checksumSuffix, []byte(sum), 0644)
}
