// Package query runs ad-hoc SQL against a project's stored upload.
package query

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"strings"

	"github.com/datachat/datachat/internal/filestore"
	"github.com/datachat/datachat/internal/inference"
	"github.com/datachat/datachat/internal/schema"
)

var (
	// ErrEmptyQuery is returned for a blank query.
	ErrEmptyQuery = errors.New("query is required")
	// ErrInvalidQuery wraps errors reported by the database for a query.
	ErrInvalidQuery = errors.New("invalid query")
)

// Source identifies a stored upload.
type Source struct {
	Key      string // file store key
	Filename string // original upload name; selects the format
}

// Result is the column list and rows of a query.
type Result struct {
	Columns []string `json:"columns"`
	Rows    [][]any  `json:"rows"`
}

// Executor opens stored uploads as SQLite databases and queries them.
// Database files are opened read-only with query_only set on every
// connection, and statements run inside a transaction that is always rolled
// back, so the stored upload never changes.
type Executor struct {
	files   filestore.Store
	tempDir string
}

// New creates an executor reading uploads from files. tempDir holds
// temporary copies of remote database files.
func New(files filestore.Store, tempDir string) *Executor {
	return &Executor{files: files, tempDir: tempDir}
}

// Run executes sqlText and returns every row it produces.
func (e *Executor) Run(ctx context.Context, src Source, sqlText string) (*Result, error) {
	sqlText = strings.TrimSpace(sqlText)
	if sqlText == "" {
		return nil, ErrEmptyQuery
	}

	db, cleanup, err := e.open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		return nil, fmt.Errorf("starting query transaction: %w", err)
	}
	defer tx.Rollback()

	rows, err := tx.QueryContext(ctx, sqlText)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, fmt.Errorf("reading result columns: %w", err)
	}

	res := &Result{Columns: cols, Rows: [][]any{}}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, fmt.Errorf("scanning row: %w", err)
		}
		for i, v := range values {
			values[i] = inference.NormalizeValue(v)
		}
		res.Rows = append(res.Rows, values)
	}
	if err := rows.Err(); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidQuery, err)
	}
	return res, nil
}

// Schema reflects the tables of the stored upload.
func (e *Executor) Schema(ctx context.Context, src Source) ([]schema.Table, error) {
	db, cleanup, err := e.open(ctx, src)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	tables, err := inference.Reflect(ctx, db)
	if err != nil {
		return nil, fmt.Errorf("reflecting schema: %w", err)
	}
	return tables, nil
}

func (e *Executor) open(ctx context.Context, src Source) (*sql.DB, func(), error) {
	format, err := inference.DetectFormat(src.Filename)
	if err != nil {
		return nil, nil, err
	}

	opts := []inference.Option{inference.WithReadOnly()}
	if e.tempDir != "" {
		opts = append(opts, inference.WithTempDir(e.tempDir))
	}

	if format == inference.FormatRelational {
		if path, ok := e.files.LocalPath(src.Key); ok && !isDump(src.Filename) {
			return inference.OpenDatabase(ctx, nil, src.Filename, append(opts, inference.WithDatabasePath(path))...)
		}
	}

	data, err := e.files.Read(ctx, src.Key)
	if err != nil {
		return nil, nil, fmt.Errorf("loading stored upload: %w", err)
	}

	switch format {
	case inference.FormatRelational:
		return inference.OpenDatabase(ctx, data, src.Filename, opts...)
	default:
		res, err := inference.Infer(ctx, data, src.Filename)
		if err != nil {
			return nil, nil, err
		}
		db, err := Materialize(ctx, res)
		if err != nil {
			return nil, nil, err
		}
		return db, func() { db.Close() }, nil
	}
}

func isDump(filename string) bool {
	return strings.HasSuffix(strings.ToLower(filename), ".sql")
}
