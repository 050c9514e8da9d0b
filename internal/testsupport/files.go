package testsupport

import (
	"bytes"
	"os"
	"path/filepath"
	"testing"
)

const sampleLine = "the quick brown fox jumps over the lazy dog\n"

// LowerText returns at least size bytes of lowercase ASCII lines.
func LowerText(size int) []byte {
	if size <= 0 {
		size = 1
	}
	return bytes.Repeat([]byte(sampleLine), size/len(sampleLine)+1)
}

// WriteText writes LowerText(size) to path, creating parent directories.
func WriteText(t testing.TB, path string, size int) []byte {
	t.Helper()

	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		t.Fatalf("mkdir for %s: %v", path, err)
	}
	data := LowerText(size)
	if err := os.WriteFile(path, data, 0o644); err != nil {
		t.Fatalf("write %s: %v", path, err)
	}
	return data
}
