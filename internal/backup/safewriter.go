package backup

import (
	"fmt"
	"os"
	"path/filepath"
)

// SafeWriter guarantees atomic replacement of a backup file: all writes go
// to a sibling temp file, and only Commit renames it onto the final path.
// Any path that doesn't end in Commit (a panic, an early return on error)
// leaves the temp file in place for Abort to clean up, never a half-written
// file at finalPath. Grounded on karapace's
// safe_writer context manager (§4.F, §5 "Resource acquisition").
type SafeWriter struct {
	finalPath      string
	allowOverwrite bool
	temp           *os.File
	committed      bool
}

// NewSafeWriter creates the sibling temp file. allowOverwrite gates the
// final rename, not file creation: a pre-existing finalPath is only
// rejected at Commit time, so the temp file can still be written and
// inspected even when the commit would be refused.
func NewSafeWriter(finalPath string, allowOverwrite bool) (*SafeWriter, error) {
	dir := filepath.Dir(finalPath)
	temp, err := os.CreateTemp(dir, filepath.Base(finalPath)+".tmp-*")
	if err != nil {
		return nil, fmt.Errorf("creating temp file for %q: %w", finalPath, err)
	}
	return &SafeWriter{finalPath: finalPath, allowOverwrite: allowOverwrite, temp: temp}, nil
}

// Write implements io.Writer against the temp file.
func (w *SafeWriter) Write(p []byte) (int, error) { return w.temp.Write(p) }

// Commit closes the temp file and renames it onto finalPath. Refuses to
// overwrite an existing file unless allowOverwrite is set.
func (w *SafeWriter) Commit() error {
	if w.committed {
		return nil
	}
	if err := w.temp.Close(); err != nil {
		os.Remove(w.temp.Name())
		return fmt.Errorf("closing temp file for %q: %w", w.finalPath, err)
	}
	if !w.allowOverwrite {
		if _, err := os.Stat(w.finalPath); err == nil {
			os.Remove(w.temp.Name())
			return fmt.Errorf("refusing to overwrite existing backup file %q", w.finalPath)
		}
	}
	if err := os.Rename(w.temp.Name(), w.finalPath); err != nil {
		os.Remove(w.temp.Name())
		return fmt.Errorf("renaming temp file onto %q: %w", w.finalPath, err)
	}
	w.committed = true
	return nil
}

// Abort closes and removes the temp file without finalizing. Safe to call
// after Commit has already succeeded (no-op).
func (w *SafeWriter) Abort() error {
	if w.committed {
		return nil
	}
	w.temp.Close()
	return os.Remove(w.temp.Name())
}
