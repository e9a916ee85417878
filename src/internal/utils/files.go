package utils

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/wifx/geoip-rsc/src/internal/log"
)

func CloseOrWarn(file io.Closer) {
	if err := file.Close(); err != nil {
		log.Warnf("Failed to close file: %v", err)
	}
}

// WriteFileAtomic replaces path with data. Readers observe either the previous
// content or the new one, never a partially written file.
func WriteFileAtomic(path string, data []byte, perm os.FileMode) error {
	return WriteFileAtomicWithHook(path, data, perm, nil)
}

// WriteFileAtomicWithHook is WriteFileAtomic with a callback invoked after the
// temporary file is complete and before it is renamed over path.
func WriteFileAtomicWithHook(path string, data []byte, perm os.FileMode, beforeRename func()) (err error) {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-*")
	if err != nil {
		return fmt.Errorf("failed to create temporary file in %s: %w", dir, err)
	}
	tmpPath := tmp.Name()

	defer func() {
		if err != nil {
			_ = os.Remove(tmpPath)
		}
	}()

	if _, err = tmp.Write(data); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to write %s: %w", tmpPath, err)
	}
	if err = tmp.Sync(); err != nil {
		_ = tmp.Close()
		return fmt.Errorf("failed to sync %s: %w", tmpPath, err)
	}
	if err = tmp.Close(); err != nil {
		return fmt.Errorf("failed to close %s: %w", tmpPath, err)
	}
	if err = os.Chmod(tmpPath, perm); err != nil {
		return fmt.Errorf("failed to chmod %s: %w", tmpPath, err)
	}

	if beforeRename != nil {
		beforeRename()
	}

	if err = os.Rename(tmpPath, path); err != nil {
		return fmt.Errorf("failed to rename %s to %s: %w", tmpPath, path, err)
	}
	return nil
}
