package utils

import (
	"os"
	"path/filepath"
	"testing"
)

func TestWriteFileAtomic_ReplacesContent(t *testing.T) {
	path := filepath.Join(t.TempDir(), "ch.zone")

	if err := WriteFileAtomic(path, []byte("1.0.0.0/8\n"), 0644); err != nil {
		t.Fatalf("first write failed: %v", err)
	}
	if err := WriteFileAtomic(path, []byte("2.0.0.0/8\n"), 0644); err != nil {
		t.Fatalf("second write failed: %v", err)
	}

	got, err := os.ReadFile(path)
	if err != nil {
		t.Fatalf("read failed: %v", err)
	}
	if string(got) != "2.0.0.0/8\n" {
		t.Errorf("content = %q, want second version", got)
	}

	entries, _ := os.ReadDir(filepath.Dir(path))
	if len(entries) != 1 {
		t.Errorf("expected no leftover temporary files, found %d entries", len(entries))
	}
}

func TestWriteFileAtomicWithHook_OldContentVisibleBeforeRename(t *testing.T) {
	path := filepath.Join(t.TempDir(), "de.zone")
	if err := WriteFileAtomic(path, []byte("old\n"), 0644); err != nil {
		t.Fatalf("seed write failed: %v", err)
	}

	var seen string
	err := WriteFileAtomicWithHook(path, []byte("new\n"), 0644, func() {
		b, err := os.ReadFile(path)
		if err != nil {
			t.Errorf("read during write failed: %v", err)
		}
		seen = string(b)
	})
	if err != nil {
		t.Fatalf("write failed: %v", err)
	}
	if seen != "old\n" {
		t.Errorf("reader saw %q before rename, want old content", seen)
	}
}

func TestWriteFileAtomic_MissingDirectory(t *testing.T) {
	path := filepath.Join(t.TempDir(), "missing", "at.zone")
	if err := WriteFileAtomic(path, []byte("x"), 0644); err == nil {
		t.Error("expected error for missing directory")
	}
}
