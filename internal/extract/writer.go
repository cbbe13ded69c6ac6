package extract

import (
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/dkritz/sql-server-extractor/internal/catalog"
)

// sanitizer replaces the characters that cannot appear in a single path
// component. Applying it twice is a no-op.
var sanitizer = strings.NewReplacer(`\`, "_", "/", "_", ":", "_")

// Sanitize makes a server or object name safe to use as one path segment.
// Two distinct names can sanitize to the same string; that collision is a
// known limitation and is not detected.
func Sanitize(name string) string {
	return sanitizer.Replace(name)
}

// Writer persists definition results under a deterministic file hierarchy:
// <root>/<sanitized server>/<kind folder>/<database>/<sanitized full name>.sql
type Writer struct {
	root   string
	server string

	now func() time.Time // injectable for tests
}

func NewWriter(root, server string) *Writer {
	return &Writer{
		root:   root,
		server: Sanitize(server),
		now:    time.Now,
	}
}

// Path returns the artifact path for an object, without touching the disk.
func (w *Writer) Path(dbName string, ref catalog.ObjectRef) string {
	return filepath.Join(w.root, w.server, ref.Kind.Folder(), dbName, Sanitize(ref.FullName())+".sql")
}

// Write persists one definition with its extraction header, overwriting any
// existing artifact at the same path. It returns the final path.
func (w *Writer) Write(dbName string, res DefinitionResult) (string, error) {
	path := w.Path(dbName, res.Object)
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return "", fmt.Errorf("failed to create artifact directory: %w", err)
	}

	var b strings.Builder
	fmt.Fprintf(&b, "-- Extracted on %s\n", w.now().Format(time.RFC3339))
	fmt.Fprintf(&b, "-- Database: %s\n", dbName)
	fmt.Fprintf(&b, "-- Object: %s\n\n", res.Object.FullName())
	b.WriteString(res.Text)

	if err := WriteFileAtomic(path, []byte(b.String())); err != nil {
		return "", fmt.Errorf("failed to write artifact for %s: %w", res.Object.FullName(), err)
	}
	return path, nil
}

// WriteFileAtomic writes to a temp file in the target directory and renames
// it into place, so a cancelled or failed run never leaves a torn file at a
// final path.
func WriteFileAtomic(path string, data []byte) error {
	dir := filepath.Dir(path)
	tmp, err := os.CreateTemp(dir, "."+filepath.Base(path)+".tmp-")
	if err != nil {
		return err
	}
	tmpName := tmp.Name()

	if _, err := tmp.Write(data); err != nil {
		tmp.Close()
		os.Remove(tmpName)
		return err
	}
	if err := tmp.Close(); err != nil {
		os.Remove(tmpName)
		return err
	}
	if err := os.Rename(tmpName, path); err != nil {
		os.Remove(tmpName)
		return err
	}
	return nil
}
