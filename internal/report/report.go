package report

import (
	"encoding/json"
	"errors"
	"fmt"
	"io/fs"
	"os"
	"path/filepath"
	"time"

	"github.com/dkritz/sql-server-extractor/internal/catalog"
	"github.com/dkritz/sql-server-extractor/internal/extract"
)

// FileName is the report's location under the output root.
const FileName = "extraction_report.json"

// Report summarizes one extraction output tree. Counts come from re-scanning
// the filesystem, so a report can be regenerated at any time and always
// reflects what actually landed on disk.
type Report struct {
	ExtractionDate  string                    `json:"extraction_date"`
	Server          string                    `json:"server"`
	OutputDirectory string                    `json:"output_directory"`
	Databases       map[string]map[string]int `json:"databases"`
}

// Generate walks <root>/<sanitized server>/<kind>/<database> and counts the
// .sql artifacts per (database, kind). Missing kind directories are normal
// for servers without objects of that kind.
func Generate(root, server string) (*Report, error) {
	serverDir := filepath.Join(root, extract.Sanitize(server))
	databases := make(map[string]map[string]int)

	for _, kind := range catalog.Kinds {
		kindDir := filepath.Join(serverDir, kind.Folder())
		entries, err := os.ReadDir(kindDir)
		if errors.Is(err, fs.ErrNotExist) {
			continue
		}
		if err != nil {
			return nil, fmt.Errorf("failed to read %s directory: %w", kind.Folder(), err)
		}

		for _, entry := range entries {
			if !entry.IsDir() {
				continue
			}
			files, err := filepath.Glob(filepath.Join(kindDir, entry.Name(), "*.sql"))
			if err != nil {
				return nil, fmt.Errorf("failed to count artifacts in %s: %w", entry.Name(), err)
			}
			if databases[entry.Name()] == nil {
				databases[entry.Name()] = make(map[string]int)
			}
			databases[entry.Name()][kind.Folder()] = len(files)
		}
	}

	return &Report{
		ExtractionDate:  time.Now().Format(time.RFC3339),
		Server:          server,
		OutputDirectory: root,
		Databases:       databases,
	}, nil
}

// Write persists the report as indented JSON at <root>/extraction_report.json
// and returns the path.
func Write(root string, r *Report) (string, error) {
	data, err := json.MarshalIndent(r, "", "  ")
	if err != nil {
		return "", fmt.Errorf("failed to encode report: %w", err)
	}
	data = append(data, '\n')

	path := filepath.Join(root, FileName)
	if err := os.MkdirAll(root, 0o755); err != nil {
		return "", fmt.Errorf("failed to create output directory: %w", err)
	}
	if err := extract.WriteFileAtomic(path, data); err != nil {
		return "", fmt.Errorf("failed to write report: %w", err)
	}
	return path, nil
}
