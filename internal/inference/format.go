package inference

import (
	"fmt"
	"path/filepath"
	"strings"
)

// Format identifies the strategy used for an upload.
type Format int

const (
	FormatCSV Format = iota + 1
	FormatJSON
	FormatRelational
)

func (f Format) String() string {
	switch f {
	case FormatCSV:
		return "csv"
	case FormatJSON:
		return "json"
	case FormatRelational:
		return "sql"
	default:
		return "unknown"
	}
}

// DetectFormat resolves the format from the filename suffix.
func DetectFormat(filename string) (Format, error) {
	lower := strings.ToLower(filename)
	switch {
	case strings.HasSuffix(lower, ".csv"):
		return FormatCSV, nil
	case strings.HasSuffix(lower, ".json"):
		return FormatJSON, nil
	case isDatabaseFile(lower), isDumpFile(lower):
		return FormatRelational, nil
	}
	return 0, newError(ErrUnsupportedFormat,
		fmt.Sprintf("unsupported file format for %q: upload a CSV, JSON, SQLite database or SQL dump file", filename), nil)
}

func isDatabaseFile(lower string) bool {
	return strings.HasSuffix(lower, ".db") || strings.HasSuffix(lower, ".sqlite")
}

func isDumpFile(lower string) bool {
	return strings.HasSuffix(lower, ".sql")
}

// TableName derives the default table name from an upload filename.
func TableName(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	switch strings.ToLower(ext) {
	case ".csv", ".json":
		return base[:len(base)-len(ext)]
	}
	return base
}

// DatabaseName derives a project name from a relational upload filename.
func DatabaseName(filename string) string {
	base := filepath.Base(filename)
	ext := filepath.Ext(base)
	switch strings.ToLower(ext) {
	case ".db", ".sqlite", ".sql":
		return base[:len(base)-len(ext)]
	}
	return base
}
