package dbtest

import (
	"path/filepath"
	"testing"
)

// SQLitePath returns the path of a fresh database file in a temporary
// directory of t. Nothing exists at the path until the database is opened.
//
// With the Inspect flag set, a failed test logs the path and waits for the
// user before the directory is removed.
func SQLitePath(t *testing.T) string {
	t.Helper()

	path := filepath.Join(t.TempDir(), "chronos.db")
	t.Cleanup(func() {
		if t.Failed() && *Inspect {
			t.Logf("Database %s is kept for inspection (Ctrl+C to remove)...", path)
			waitForInspection()
		}
	})
	return path
}
