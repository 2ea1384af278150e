package inference

import (
	"bytes"
	"encoding/json"
	"fmt"
	"io"

	"github.com/datachat/datachat/internal/schema"
)

// ParseJSON infers a single-table schema from a JSON array. Only the first
// DiscoveryPrefix elements are inspected for columns, so keys that first
// appear later are not part of the schema. Elements are sampled unfiltered.
func ParseJSON(data []byte, filename string) (*schema.Result, error) {
	dec := json.NewDecoder(bytes.NewReader(data))
	dec.UseNumber()

	var root json.RawMessage
	if err := dec.Decode(&root); err != nil {
		return nil, newError(ErrMalformedInput, fmt.Sprintf("parsing JSON file %q", filename), err)
	}
	if _, err := dec.Token(); err != io.EOF {
		return nil, newError(ErrMalformedInput,
			fmt.Sprintf("JSON file %q contains extra data after the top-level value", filename), nil)
	}

	root = bytes.TrimSpace(root)
	if len(root) == 0 || root[0] != '[' {
		return nil, newError(ErrMalformedInput,
			fmt.Sprintf("JSON file %q must contain an array of objects", filename), nil)
	}

	var elems []json.RawMessage
	if err := json.Unmarshal(root, &elems); err != nil {
		return nil, newError(ErrMalformedInput, fmt.Sprintf("parsing JSON file %q", filename), err)
	}
	if len(elems) == 0 {
		return nil, newError(ErrEmptyInput, fmt.Sprintf("JSON file %q contains an empty array", filename), nil)
	}

	sample := elems
	if len(sample) > SampleLimit {
		sample = sample[:SampleLimit]
	}
	rows := make([]any, len(sample))
	for i, raw := range sample {
		v, err := decodeValue(raw)
		if err != nil {
			return nil, newError(ErrMalformedInput, fmt.Sprintf("decoding element %d of %q", i, filename), err)
		}
		rows[i] = v
	}

	prefix := rows
	if len(prefix) > DiscoveryPrefix {
		prefix = prefix[:DiscoveryPrefix]
	}

	var keys []string
	seen := make(map[string]bool)
	for i, v := range prefix {
		if _, ok := v.(schema.Record); !ok {
			continue
		}
		for _, k := range objectKeys(sample[i]) {
			if !seen[k] {
				seen[k] = true
				keys = append(keys, k)
			}
		}
	}

	columns := make([]schema.Column, len(keys))
	for i, k := range keys {
		columns[i] = schema.Column{Name: k, Type: "TEXT", Nullable: missingOrNull(prefix, k)}
	}

	return &schema.Result{
		Table: &schema.Table{Name: TableName(filename), Columns: columns},
		Rows:  rows,
	}, nil
}

// decodeValue decodes one array element, turning objects into records and
// keeping numbers as json.Number.
func decodeValue(raw json.RawMessage) (any, error) {
	dec := json.NewDecoder(bytes.NewReader(raw))
	dec.UseNumber()
	var v any
	if err := dec.Decode(&v); err != nil {
		return nil, err
	}
	if obj, ok := v.(map[string]any); ok {
		return schema.Record(obj), nil
	}
	return v, nil
}

// objectKeys returns the keys of a JSON object in document order.
func objectKeys(raw json.RawMessage) []string {
	dec := json.NewDecoder(bytes.NewReader(raw))
	tok, err := dec.Token()
	if err != nil {
		return nil
	}
	if d, ok := tok.(json.Delim); !ok || d != '{' {
		return nil
	}

	var keys []string
	for dec.More() {
		tok, err := dec.Token()
		if err != nil {
			return keys
		}
		key, ok := tok.(string)
		if !ok {
			return keys
		}
		var skip json.RawMessage
		if err := dec.Decode(&skip); err != nil {
			return keys
		}
		keys = append(keys, key)
	}
	return keys
}

func missingOrNull(prefix []any, key string) bool {
	for _, v := range prefix {
		rec, ok := v.(schema.Record)
		if !ok {
			return true
		}
		if val, present := rec[key]; !present || val == nil {
			return true
		}
	}
	return false
}
