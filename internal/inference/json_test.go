package inference

import (
	"encoding/json"
	"errors"
	"fmt"
	"strings"
	"testing"

	"github.com/datachat/datachat/internal/schema"
)

func columnNames(cols []schema.Column) []string {
	names := make([]string, len(cols))
	for i, c := range cols {
		names[i] = c.Name
	}
	return names
}

func TestParseJSON_UnionOfKeys(t *testing.T) {
	data := []byte(`[{"b": 1, "a": "x"}, {"a": "y", "c": null}, {"b": 2, "a": "z", "c": true}]`)

	res, err := ParseJSON(data, "things.json")
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if res.Table.Name != "things" {
		t.Errorf("table name = %q, want %q", res.Table.Name, "things")
	}

	got := strings.Join(columnNames(res.Table.Columns), ",")
	if got != "b,a,c" {
		t.Errorf("columns = %s, want b,a,c", got)
	}

	nullable := map[string]bool{}
	for _, c := range res.Table.Columns {
		if c.Type != "TEXT" {
			t.Errorf("column %s type = %q, want TEXT", c.Name, c.Type)
		}
		nullable[c.Name] = c.Nullable
	}
	if !nullable["b"] {
		t.Error("b is missing from element 1 and should be nullable")
	}
	if nullable["a"] {
		t.Error("a is present everywhere and should not be nullable")
	}
	if !nullable["c"] {
		t.Error("c is null/missing and should be nullable")
	}
}

func TestParseJSON_DiscoveryPrefix(t *testing.T) {
	var elems []string
	for i := 0; i < 30; i++ {
		if i == 25 {
			elems = append(elems, fmt.Sprintf(`{"id": %d, "late": "x"}`, i))
			continue
		}
		elems = append(elems, fmt.Sprintf(`{"id": %d}`, i))
	}
	data := []byte("[" + strings.Join(elems, ",") + "]")

	res, err := ParseJSON(data, "late.json")
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if got := columnNames(res.Table.Columns); len(got) != 1 || got[0] != "id" {
		t.Errorf("columns = %v, want [id]", got)
	}
	if len(res.Rows) != 30 {
		t.Errorf("rows = %d, want 30", len(res.Rows))
	}
	if res.Table.Columns[0].Nullable {
		t.Error("id should not be nullable")
	}
}

func TestParseJSON_SampleCap(t *testing.T) {
	var b strings.Builder
	b.WriteString("[")
	for i := 0; i < 1500; i++ {
		if i > 0 {
			b.WriteString(",")
		}
		fmt.Fprintf(&b, `{"n": %d}`, i)
	}
	b.WriteString("]")

	res, err := ParseJSON([]byte(b.String()), "many.json")
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if len(res.Rows) != SampleLimit {
		t.Errorf("rows = %d, want %d", len(res.Rows), SampleLimit)
	}
	last := res.Rows[SampleLimit-1].(schema.Record)
	if last["n"] != json.Number("999") {
		t.Errorf("last n = %v, want 999", last["n"])
	}
}

func TestParseJSON_NonObjectElementsPassThrough(t *testing.T) {
	data := []byte(`[{"a": 1}, 42, "text", null, [1, 2]]`)

	res, err := ParseJSON(data, "mixed.json")
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	if len(res.Rows) != 5 {
		t.Fatalf("rows = %d, want 5", len(res.Rows))
	}
	if res.Rows[1] != json.Number("42") {
		t.Errorf("rows[1] = %#v, want json.Number(42)", res.Rows[1])
	}
	if res.Rows[2] != "text" {
		t.Errorf("rows[2] = %#v, want text", res.Rows[2])
	}
	if res.Rows[3] != nil {
		t.Errorf("rows[3] = %#v, want nil", res.Rows[3])
	}
	if len(res.Table.Columns) != 1 || !res.Table.Columns[0].Nullable {
		t.Errorf("columns = %+v, want nullable a", res.Table.Columns)
	}
}

func TestParseJSON_Errors(t *testing.T) {
	tests := []struct {
		name  string
		input string
		kind  error
	}{
		{"object", `{"a": 1}`, ErrMalformedInput},
		{"scalar", `17`, ErrMalformedInput},
		{"invalid", `[{"a": 1},`, ErrMalformedInput},
		{"trailing data", `[{"a": 1}] [2]`, ErrMalformedInput},
		{"empty", ``, ErrMalformedInput},
		{"empty array", `[]`, ErrEmptyInput},
		{"empty array with spaces", "  [ ]\n", ErrEmptyInput},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			_, err := ParseJSON([]byte(tt.input), "bad.json")
			if !errors.Is(err, tt.kind) {
				t.Fatalf("err = %v, want %v", err, tt.kind)
			}
		})
	}
}

func TestParseJSON_KeepsNativeTypes(t *testing.T) {
	data := []byte(`[{"n": 1.5, "b": false, "s": "x", "o": {"k": 1}}]`)
	res, err := ParseJSON(data, "types.json")
	if err != nil {
		t.Fatalf("ParseJSON: %v", err)
	}
	row := res.Rows[0].(schema.Record)
	if row["n"] != json.Number("1.5") {
		t.Errorf("n = %#v", row["n"])
	}
	if row["b"] != false {
		t.Errorf("b = %#v", row["b"])
	}
	if _, ok := row["o"].(map[string]any); !ok {
		t.Errorf("o = %#v, want nested object", row["o"])
	}
}
