package testutil

import (
	"os"
	"path/filepath"
	"testing"
)

// WriteRecordDir writes a raw record directory <root>/<id>/ for fixtures
// that must bypass the store: info is written verbatim as INFO.json unless
// empty, and files maps file names to contents.
func WriteRecordDir(t *testing.T, root, id, info string, files map[string]string) string {
	t.Helper()

	dir := filepath.Join(root, id)
	if err := os.MkdirAll(dir, 0o755); err != nil {
		t.Fatalf("WriteRecordDir: %v", err)
	}
	if info != "" {
		if err := os.WriteFile(filepath.Join(dir, "INFO.json"), []byte(info), 0o644); err != nil {
			t.Fatalf("WriteRecordDir: %v", err)
		}
	}
	for name, content := range files {
		if err := os.WriteFile(filepath.Join(dir, name), []byte(content), 0o644); err != nil {
			t.Fatalf("WriteRecordDir: %v", err)
		}
	}
	return dir
}
