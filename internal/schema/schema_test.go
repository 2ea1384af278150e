package schema

import (
	"encoding/json"
	"os"
	"path/filepath"
	"strings"
	"testing"
)

func singleResult() *Result {
	return &Result{
		Table: &Table{
			Name: "people",
			Columns: []Column{
				{Name: "name", Type: "TEXT", Nullable: false},
				{Name: "age", Type: "TEXT", Nullable: true},
			},
		},
		Rows: []any{
			Record{"name": "ann", "age": "31"},
			Record{"name": "bob", "age": nil},
		},
	}
}

func relationalResult() *Result {
	return &Result{
		Tables: []Table{
			{Name: "orders", Columns: []Column{{Name: "id", Type: "INTEGER"}, {Name: "total", Type: "REAL", Nullable: true}}},
			{Name: "users", Columns: []Column{{Name: "id", Type: "INTEGER"}}},
		},
		TableRows: map[string][]Record{
			"orders": {{"id": int64(1), "total": 9.5}},
			"users":  {{"id": int64(1)}, {"id": int64(2)}},
		},
	}
}

func TestMarshalJSON_SingleTable(t *testing.T) {
	data, err := json.Marshal(singleResult())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got struct {
		Schema struct {
			TableName string   `json:"tableName"`
			Columns   []Column `json:"columns"`
		} `json:"schema"`
		Data []map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if got.Schema.TableName != "people" {
		t.Errorf("tableName = %q, want %q", got.Schema.TableName, "people")
	}
	if len(got.Schema.Columns) != 2 || got.Schema.Columns[1].Name != "age" || !got.Schema.Columns[1].Nullable {
		t.Errorf("columns = %+v", got.Schema.Columns)
	}
	if len(got.Data) != 2 {
		t.Fatalf("data rows = %d, want 2", len(got.Data))
	}
	if v, ok := got.Data[1]["age"]; !ok || v != nil {
		t.Errorf("row 1 age = %v (present=%v), want null", v, ok)
	}
}

func TestMarshalJSON_EmptyRowsIsArray(t *testing.T) {
	r := &Result{Table: &Table{Name: "t"}}
	data, err := json.Marshal(r)
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}
	if !strings.Contains(string(data), `"data":[]`) {
		t.Errorf("expected empty data array, got %s", data)
	}
}

func TestMarshalJSON_Relational(t *testing.T) {
	data, err := json.Marshal(relationalResult())
	if err != nil {
		t.Fatalf("Marshal: %v", err)
	}

	var got struct {
		Schema map[string][]Column         `json:"schema"`
		Data   map[string][]map[string]any `json:"data"`
	}
	if err := json.Unmarshal(data, &got); err != nil {
		t.Fatalf("Unmarshal: %v", err)
	}
	if len(got.Schema) != 2 {
		t.Errorf("schema tables = %d, want 2", len(got.Schema))
	}
	if len(got.Schema["orders"]) != 2 {
		t.Errorf("orders columns = %d, want 2", len(got.Schema["orders"]))
	}
	if len(got.Data["users"]) != 2 {
		t.Errorf("users rows = %d, want 2", len(got.Data["users"]))
	}
}

func TestTableNamesAndSample(t *testing.T) {
	r := relationalResult()
	names := r.TableNames()
	if len(names) != 2 || names[0] != "orders" || names[1] != "users" {
		t.Errorf("TableNames = %v", names)
	}
	if r.SampleSize() != 3 {
		t.Errorf("SampleSize = %d, want 3", r.SampleSize())
	}

	s := singleResult()
	if s.MultiTable() {
		t.Error("single-table result reported as multi-table")
	}
	if got := len(s.SampleFor("people")); got != 2 {
		t.Errorf("SampleFor(people) = %d rows, want 2", got)
	}
	if got := s.SampleFor("other"); got != nil {
		t.Errorf("SampleFor(other) = %v, want nil", got)
	}
}

func TestSampleFor_NonObjectElements(t *testing.T) {
	r := &Result{
		Table: &Table{Name: "mixed"},
		Rows:  []any{map[string]any{"a": 1.0}, "plain", nil},
	}
	rows := r.SampleFor("mixed")
	if len(rows) != 3 {
		t.Fatalf("rows = %d, want 3", len(rows))
	}
	if rows[1]["value"] != "plain" {
		t.Errorf("rows[1] = %v, want value=plain", rows[1])
	}
}

func TestWriteAndLoadYAML(t *testing.T) {
	doc := relationalResult().Document("shop.db")

	dir := t.TempDir()
	path := filepath.Join(dir, "out", "schema.yaml")
	if err := doc.WriteYAML(path); err != nil {
		t.Fatalf("WriteYAML: %v", err)
	}
	if _, err := os.Stat(path); err != nil {
		t.Fatalf("schema file not created: %v", err)
	}

	loaded, err := LoadYAML(path)
	if err != nil {
		t.Fatalf("LoadYAML: %v", err)
	}
	if loaded.Source != "shop.db" {
		t.Errorf("Source = %q, want %q", loaded.Source, "shop.db")
	}
	if len(loaded.Tables) != 2 {
		t.Fatalf("expected 2 tables, got %d", len(loaded.Tables))
	}
	if loaded.Tables[0].Name != "orders" {
		t.Errorf("first table = %q, want %q", loaded.Tables[0].Name, "orders")
	}
	if !loaded.Tables[0].Columns[1].Nullable {
		t.Error("orders.total should be nullable")
	}
	if loaded.Sample["users"] != 2 {
		t.Errorf("users sample = %d, want 2", loaded.Sample["users"])
	}
}

func TestLoadYAML_Missing(t *testing.T) {
	if _, err := LoadYAML(filepath.Join(t.TempDir(), "nope.yaml")); err == nil {
		t.Error("expected error for missing file")
	}
}

func TestSummary(t *testing.T) {
	s := relationalResult().Summary()
	if !strings.Contains(s, "Found 2 tables, 3 columns (1 nullable)") {
		t.Errorf("Summary = %q", s)
	}
	if !strings.Contains(s, "Sampled rows: 3") {
		t.Errorf("Summary = %q", s)
	}
}
