package query

import (
	"context"
	"database/sql"
	"encoding/json"
	"fmt"
	"strings"

	_ "modernc.org/sqlite"

	"github.com/datachat/datachat/internal/schema"
)

// Materialize loads an inference result into a new in-memory SQLite database,
// one table per inferred table. Only the sampled rows are loaded.
func Materialize(ctx context.Context, res *schema.Result) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("starting load transaction: %w", err)
	}

	for _, t := range res.AllTables() {
		if err := loadTable(ctx, tx, t, res.SampleFor(t.Name)); err != nil {
			tx.Rollback()
			db.Close()
			return nil, fmt.Errorf("loading table %s: %w", t.Name, err)
		}
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, fmt.Errorf("committing load: %w", err)
	}
	return db, nil
}

func loadTable(ctx context.Context, tx *sql.Tx, t schema.Table, rows []schema.Record) error {
	cols := t.ColumnNames()
	if len(cols) == 0 {
		// Samples of non-object JSON elements.
		cols = []string{"value"}
	}

	defs := make([]string, len(cols))
	quoted := make([]string, len(cols))
	for i, c := range sqlColumnNames(cols) {
		quoted[i] = quoteIdent(c)
		typ := "TEXT"
		if i < len(t.Columns) && t.Columns[i].Type != "" {
			typ = t.Columns[i].Type
		}
		defs[i] = quoted[i] + " " + typ
	}

	create := fmt.Sprintf("CREATE TABLE %s (%s)", quoteIdent(t.Name), strings.Join(defs, ", "))
	if _, err := tx.ExecContext(ctx, create); err != nil {
		return err
	}
	if len(rows) == 0 {
		return nil
	}

	placeholders := strings.TrimSuffix(strings.Repeat("?, ", len(cols)), ", ")
	stmt, err := tx.PrepareContext(ctx, fmt.Sprintf("INSERT INTO %s (%s) VALUES (%s)",
		quoteIdent(t.Name), strings.Join(quoted, ", "), placeholders))
	if err != nil {
		return err
	}
	defer stmt.Close()

	args := make([]any, len(cols))
	for _, row := range rows {
		for i, c := range cols {
			v, err := sqlValue(row[c])
			if err != nil {
				return fmt.Errorf("column %s: %w", c, err)
			}
			args[i] = v
		}
		if _, err := stmt.ExecContext(ctx, args...); err != nil {
			return err
		}
	}
	return nil
}

// sqlValue converts decoded upload values into driver values. Nested JSON
// is stored as its JSON text.
func sqlValue(v any) (any, error) {
	switch x := v.(type) {
	case nil, string, bool, int64, float64, []byte:
		return x, nil
	case json.Number:
		return x.String(), nil
	default:
		b, err := json.Marshal(x)
		if err != nil {
			return nil, err
		}
		return string(b), nil
	}
}

// sqlColumnNames maps record keys to distinct SQLite column names. SQLite
// compares identifiers case-insensitively, so keys differing only in case get
// a numeric suffix, as do blank keys.
func sqlColumnNames(keys []string) []string {
	names := make([]string, len(keys))
	used := make(map[string]bool, len(keys))
	for i, k := range keys {
		base := k
		if strings.TrimSpace(base) == "" {
			base = fmt.Sprintf("column_%d", i+1)
		}
		name := base
		for n := 2; used[strings.ToLower(name)]; n++ {
			name = fmt.Sprintf("%s_%d", base, n)
		}
		used[strings.ToLower(name)] = true
		names[i] = name
	}
	return names
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
