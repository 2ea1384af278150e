package schema

import (
	"fmt"
	"os"
	"path/filepath"

	"gopkg.in/yaml.v3"
)

// Document is the YAML form of an inferred schema.
type Document struct {
	Source string         `yaml:"source"`
	Tables []Table        `yaml:"tables"`
	Sample map[string]int `yaml:"sample_rows"`
}

// Document returns the YAML document for the result.
func (r *Result) Document(source string) *Document {
	doc := &Document{
		Source: source,
		Tables: r.AllTables(),
		Sample: make(map[string]int),
	}
	for _, name := range r.TableNames() {
		doc.Sample[name] = len(r.SampleFor(name))
	}
	return doc
}

// LoadYAML reads a schema document from a YAML file.
func LoadYAML(path string) (*Document, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		return nil, fmt.Errorf("reading schema file: %w", err)
	}
	d := &Document{}
	if err := yaml.Unmarshal(data, d); err != nil {
		return nil, fmt.Errorf("parsing schema: %w", err)
	}
	return d, nil
}

// WriteYAML writes the schema document to a YAML file at the given path.
func (d *Document) WriteYAML(path string) error {
	if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
		return fmt.Errorf("creating output directory: %w", err)
	}

	data, err := yaml.Marshal(d)
	if err != nil {
		return fmt.Errorf("marshaling schema: %w", err)
	}

	return os.WriteFile(path, data, 0o644)
}

// ToYAML returns the document as a YAML byte slice.
func (d *Document) ToYAML() ([]byte, error) {
	return yaml.Marshal(d)
}

// Summary returns a human-readable summary of the result.
func (r *Result) Summary() string {
	tables := r.AllTables()
	var totalCols, nullable int
	for _, t := range tables {
		totalCols += len(t.Columns)
		for _, c := range t.Columns {
			if c.Nullable {
				nullable++
			}
		}
	}

	return fmt.Sprintf(
		"Found %d tables, %d columns (%d nullable)\nSampled rows: %d",
		len(tables), totalCols, nullable, r.SampleSize(),
	)
}
