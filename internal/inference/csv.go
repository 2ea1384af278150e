package inference

import (
	"bytes"
	"encoding/csv"
	"errors"
	"fmt"
	"io"

	"golang.org/x/text/encoding/unicode"
	"golang.org/x/text/transform"

	"github.com/datachat/datachat/internal/schema"
)

// ParseCSV infers a single-table schema from delimited text. The first row is
// the header. Rows shorter than the header get nil for the missing trailing
// columns and values beyond the header width are dropped. Blank lines are
// kept as records with every column nil. A repeated header name becomes one
// column holding the rightmost value.
func ParseCSV(data []byte, filename string) (*schema.Result, error) {
	decoded, _, err := transform.Bytes(unicode.BOMOverride(unicode.UTF8.NewDecoder()), data)
	if err != nil {
		return nil, newError(ErrMalformedInput, fmt.Sprintf("decoding CSV file %q", filename), err)
	}

	rows, err := readCSVRows(decoded)
	if err != nil {
		return nil, newError(ErrMalformedInput, fmt.Sprintf("parsing CSV file %q", filename), err)
	}

	if len(rows) < 2 {
		return nil, newError(ErrMalformedInput,
			fmt.Sprintf("CSV file %q must contain headers and at least one data row", filename), nil)
	}

	headers := uniqueNames(rows[0])
	body := rows[1:]
	if len(body) > SampleLimit {
		body = body[:SampleLimit]
	}

	records := make([]any, len(body))
	nullable := make(map[string]bool, len(headers))
	for i, row := range body {
		rec := make(schema.Record, len(headers))
		for j, h := range rows[0] {
			if j < len(row) {
				rec[h] = row[j]
			} else if _, ok := rec[h]; !ok {
				rec[h] = nil
			}
		}
		for _, h := range headers {
			if v := rec[h]; v == nil || v == "" {
				nullable[h] = true
			}
		}
		records[i] = rec
	}

	columns := make([]schema.Column, len(headers))
	for i, h := range headers {
		columns[i] = schema.Column{Name: h, Type: "TEXT", Nullable: nullable[h]}
	}

	return &schema.Result{
		Table: &schema.Table{Name: TableName(filename), Columns: columns},
		Rows:  records,
	}, nil
}

// readCSVRows reads every record of data. encoding/csv skips empty lines;
// they are returned here as nil rows so each line of the file is one row.
func readCSVRows(data []byte) ([][]string, error) {
	cr := csv.NewReader(bytes.NewReader(data))
	cr.FieldsPerRecord = -1
	cr.LazyQuotes = true

	var rows [][]string
	consumed := 0 // lines read through the end of the last record
	var offset int64
	for {
		rec, err := cr.Read()
		if errors.Is(err, io.EOF) {
			break
		}
		if err != nil {
			return nil, err
		}
		line, _ := cr.FieldPos(0)
		for i := consumed + 1; i < line; i++ {
			rows = append(rows, nil)
		}
		rows = append(rows, rec)

		end := cr.InputOffset()
		consumed += bytes.Count(data[offset:end], newline)
		offset = end
	}

	// Only line breaks remain after the last record.
	for range bytes.Count(data[offset:], newline) {
		rows = append(rows, nil)
	}
	return rows, nil
}

var newline = []byte("\n")

// uniqueNames returns names without repeats, in first-appearance order.
func uniqueNames(names []string) []string {
	seen := make(map[string]bool, len(names))
	out := make([]string, 0, len(names))
	for _, n := range names {
		if !seen[n] {
			seen[n] = true
			out = append(out, n)
		}
	}
	return out
}
