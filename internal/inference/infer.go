// Package inference derives a schema and a bounded row sample from uploaded
// CSV, JSON, SQLite and SQL dump files.
package inference

import (
	"context"
	"fmt"
	"io"

	"github.com/datachat/datachat/internal/schema"
)

const (
	// SampleLimit caps the rows returned per table.
	SampleLimit = 1000
	// DiscoveryPrefix is the number of JSON elements inspected for columns.
	DiscoveryPrefix = 20
)

// Infer dispatches on the filename suffix and returns the strategy result
// unchanged.
func Infer(ctx context.Context, data []byte, filename string, opts ...Option) (*schema.Result, error) {
	format, err := DetectFormat(filename)
	if err != nil {
		return nil, err
	}

	switch format {
	case FormatCSV:
		return ParseCSV(data, filename)
	case FormatJSON:
		return ParseJSON(data, filename)
	case FormatRelational:
		return ParseDatabase(ctx, data, filename, opts...)
	default:
		panic(fmt.Sprintf("inference: unhandled format %d", format))
	}
}

// InferReader reads r fully into memory and calls Infer.
func InferReader(ctx context.Context, r io.Reader, filename string, opts ...Option) (*schema.Result, error) {
	if _, err := DetectFormat(filename); err != nil {
		return nil, err
	}
	data, err := io.ReadAll(r)
	if err != nil {
		return nil, fmt.Errorf("reading upload: %w", err)
	}
	return Infer(ctx, data, filename, opts...)
}
