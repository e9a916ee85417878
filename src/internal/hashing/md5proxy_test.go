package hashing

import (
	"crypto/md5"
	"encoding/hex"
	"errors"
	"io"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

type errorReader struct {
	err error
}

func (e *errorReader) Read(p []byte) (n int, err error) {
	return 0, e.err
}

func md5Hex(s string) string {
	sum := md5.Sum([]byte(s))
	return hex.EncodeToString(sum[:])
}

func TestChecksumReaderProxy_ReadAll(t *testing.T) {
	proxy := NewMD5ReaderProxy(strings.NewReader("1.2.3.0/24\n"))

	data, err := io.ReadAll(proxy)
	if err != nil {
		t.Fatalf("ReadAll failed: %v", err)
	}
	if string(data) != "1.2.3.0/24\n" {
		t.Errorf("data = %q", data)
	}

	sum, err := proxy.GetChecksum()
	if err != nil {
		t.Fatalf("GetChecksum failed: %v", err)
	}
	if sum != md5Hex("1.2.3.0/24\n") {
		t.Errorf("checksum = %s, want %s", sum, md5Hex("1.2.3.0/24\n"))
	}
}

func TestChecksumReaderProxy_PropagatesReadError(t *testing.T) {
	want := errors.New("connection reset")
	proxy := NewMD5ReaderProxy(&errorReader{err: want})

	if _, err := io.ReadAll(proxy); !errors.Is(err, want) {
		t.Errorf("expected %v, got %v", want, err)
	}
}

func TestIsFileChanged(t *testing.T) {
	dir := t.TempDir()
	archive := filepath.Join(dir, "all-zones.tar.gz")

	changed, err := IsFileChanged(StaticChecksum("abc"), archive)
	if err != nil || !changed {
		t.Fatalf("missing file: changed=%v err=%v, want changed", changed, err)
	}

	if err := os.WriteFile(archive, []byte("data"), 0644); err != nil {
		t.Fatal(err)
	}
	changed, _ = IsFileChanged(StaticChecksum("abc"), archive)
	if !changed {
		t.Error("missing sidecar should count as changed")
	}

	if err := WriteChecksum(StaticChecksum("abc"), archive); err != nil {
		t.Fatalf("WriteChecksum failed: %v", err)
	}
	if changed, _ = IsFileChanged(StaticChecksum("abc"), archive); changed {
		t.Error("same checksum should not count as changed")
	}
	if changed, _ = IsFileChanged(StaticChecksum("def"), archive); !changed {
		t.Error("different checksum should count as changed")
	}
}
