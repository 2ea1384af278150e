package schema

import (
	"encoding/json"
	"sort"
)

// Column describes one column of an inferred or reflected table.
type Column struct {
	Name     string `json:"name" yaml:"name"`
	Type     string `json:"type" yaml:"type"`
	Nullable bool   `json:"nullable" yaml:"nullable"`
}

// Table is a named, ordered list of columns.
type Table struct {
	Name    string   `json:"tableName" yaml:"table_name"`
	Columns []Column `json:"columns" yaml:"columns"`
}

// ColumnNames returns the column names in schema order.
func (t *Table) ColumnNames() []string {
	names := make([]string, len(t.Columns))
	for i, c := range t.Columns {
		names[i] = c.Name
	}
	return names
}

// Record maps column names to raw values.
type Record map[string]any

// Result is the schema and row sample produced for a single upload.
//
// CSV and JSON sources fill Table and Rows. Relational sources fill Tables
// (in reflected order) and TableRows.
type Result struct {
	Table *Table `json:"-" yaml:"-"`
	// Rows holds Record values for CSV. JSON elements pass through as decoded,
	// so non-object elements may appear.
	Rows []any `json:"-" yaml:"-"`

	Tables    []Table             `json:"-" yaml:"-"`
	TableRows map[string][]Record `json:"-" yaml:"-"`
}

// MultiTable reports whether the result came from a relational source.
func (r *Result) MultiTable() bool {
	return r.Table == nil
}

// TableNames returns table names in schema order.
func (r *Result) TableNames() []string {
	if !r.MultiTable() {
		return []string{r.Table.Name}
	}
	names := make([]string, len(r.Tables))
	for i, t := range r.Tables {
		names[i] = t.Name
	}
	return names
}

// AllTables returns the tables of the result regardless of source kind.
func (r *Result) AllTables() []Table {
	if !r.MultiTable() {
		return []Table{*r.Table}
	}
	return r.Tables
}

// SampleFor returns the sampled rows of the named table. JSON elements that are
// not objects are returned under a single "value" key.
func (r *Result) SampleFor(table string) []Record {
	if r.MultiTable() {
		return r.TableRows[table]
	}
	if table != r.Table.Name {
		return nil
	}
	out := make([]Record, 0, len(r.Rows))
	for _, row := range r.Rows {
		switch v := row.(type) {
		case Record:
			out = append(out, v)
		case map[string]any:
			out = append(out, Record(v))
		default:
			out = append(out, Record{"value": v})
		}
	}
	return out
}

// SampleSize returns the total number of sampled rows.
func (r *Result) SampleSize() int {
	if !r.MultiTable() {
		return len(r.Rows)
	}
	n := 0
	for _, rows := range r.TableRows {
		n += len(rows)
	}
	return n
}

// MarshalJSON renders {"schema": ..., "data": ...}. For relational sources
// both values are keyed by table name.
func (r *Result) MarshalJSON() ([]byte, error) {
	if !r.MultiTable() {
		rows := r.Rows
		if rows == nil {
			rows = []any{}
		}
		return json.Marshal(struct {
			Schema *Table `json:"schema"`
			Data   []any  `json:"data"`
		}{r.Table, rows})
	}

	sch := make(map[string][]Column, len(r.Tables))
	data := make(map[string][]Record, len(r.Tables))
	for _, t := range r.Tables {
		sch[t.Name] = t.Columns
		rows := r.TableRows[t.Name]
		if rows == nil {
			rows = []Record{}
		}
		data[t.Name] = rows
	}
	return json.Marshal(struct {
		Schema map[string][]Column `json:"schema"`
		Data   map[string][]Record `json:"data"`
	}{sch, data})
}

// SortedTableNames returns the relational table names in lexical order, which
// is the order map-keyed JSON output uses.
func (r *Result) SortedTableNames() []string {
	names := r.TableNames()
	sort.Strings(names)
	return names
}
