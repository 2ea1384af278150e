package inference

import (
	"context"
	"database/sql"
	"fmt"
	"os"
	"strings"
	"unicode/utf8"

	_ "modernc.org/sqlite"

	"github.com/datachat/datachat/internal/schema"
)

// Option configures relational parsing.
type Option func(*dbOptions)

type dbOptions struct {
	path     string
	tempDir  string
	readOnly bool
}

// WithDatabasePath opens an already stored SQLite file instead of writing the
// uploaded bytes to a temporary file.
func WithDatabasePath(path string) Option {
	return func(o *dbOptions) {
		o.path = path
	}
}

// WithReadOnly opens database files with mode=ro and every connection with
// query_only set, so no statement can change the stored file even if it ends
// the surrounding transaction itself.
func WithReadOnly() Option {
	return func(o *dbOptions) {
		o.readOnly = true
	}
}

// WithTempDir sets the directory used for temporary database files.
func WithTempDir(dir string) Option {
	return func(o *dbOptions) {
		o.tempDir = dir
	}
}

// ParseDatabase reflects every table of a SQLite database file (.db, .sqlite)
// or of a SQL dump (.sql) executed against a fresh in-memory database, and
// samples up to SampleLimit rows per table.
func ParseDatabase(ctx context.Context, data []byte, filename string, opts ...Option) (*schema.Result, error) {
	o := &dbOptions{}
	for _, opt := range opts {
		opt(o)
	}

	db, cleanup, err := openSource(ctx, data, filename, o)
	if err != nil {
		return nil, err
	}
	defer cleanup()

	tables, err := Reflect(ctx, db)
	if err != nil {
		return nil, newError(ErrMalformedInput, fmt.Sprintf("error reflecting database schema of %q", filename), err)
	}
	if len(tables) == 0 {
		return nil, newError(ErrSchema, fmt.Sprintf("no tables found in the database %q", filename), nil)
	}

	rows := make(map[string][]schema.Record, len(tables))
	for _, t := range tables {
		sample, err := SampleTable(ctx, db, t.Name, SampleLimit)
		if err != nil {
			return nil, newError(ErrMalformedInput, fmt.Sprintf("error sampling table %q", t.Name), err)
		}
		rows[t.Name] = sample
	}

	return &schema.Result{Tables: tables, TableRows: rows}, nil
}

// OpenDatabase opens a relational upload for querying. The returned cleanup
// closes the database and removes any temporary file.
func OpenDatabase(ctx context.Context, data []byte, filename string, opts ...Option) (*sql.DB, func(), error) {
	o := &dbOptions{}
	for _, opt := range opts {
		opt(o)
	}
	return openSource(ctx, data, filename, o)
}

func openSource(ctx context.Context, data []byte, filename string, o *dbOptions) (*sql.DB, func(), error) {
	lower := strings.ToLower(filename)
	switch {
	case isDatabaseFile(lower):
		return openDatabaseFile(data, o)
	case isDumpFile(lower):
		db, err := LoadDump(ctx, string(data))
		if err != nil {
			return nil, nil, err
		}
		if o.readOnly {
			// LoadDump keeps a single connection, so the pragma covers every query.
			if _, err := db.ExecContext(ctx, "PRAGMA query_only = 1"); err != nil {
				db.Close()
				return nil, nil, fmt.Errorf("setting query_only: %w", err)
			}
		}
		return db, func() { db.Close() }, nil
	}
	return nil, nil, newError(ErrUnsupportedFormat,
		fmt.Sprintf("unsupported SQL file format for %q: upload a SQLite database file or a SQL dump file", filename), nil)
}

func openDatabaseFile(data []byte, o *dbOptions) (*sql.DB, func(), error) {
	path := o.path
	removeTemp := func() {}
	if path == "" {
		f, err := os.CreateTemp(o.tempDir, "datachat-*.db")
		if err != nil {
			return nil, nil, fmt.Errorf("creating temporary database file: %w", err)
		}
		path = f.Name()
		removeTemp = func() { os.Remove(path) }
		if _, err := f.Write(data); err != nil {
			f.Close()
			removeTemp()
			return nil, nil, fmt.Errorf("writing temporary database file: %w", err)
		}
		if err := f.Close(); err != nil {
			removeTemp()
			return nil, nil, fmt.Errorf("writing temporary database file: %w", err)
		}
	}

	dsn := path
	if o.readOnly {
		dsn = readOnlyDSN(path)
	}
	db, err := sql.Open("sqlite", dsn)
	if err != nil {
		removeTemp()
		return nil, nil, fmt.Errorf("opening database: %w", err)
	}
	return db, func() {
		db.Close()
		removeTemp()
	}, nil
}

var uriEscaper = strings.NewReplacer("%", "%25", "?", "%3f", "#", "%23")

// readOnlyDSN builds a SQLite URI that opens path read-only. The _pragma
// parameter is applied by the driver to each new connection.
func readOnlyDSN(path string) string {
	return "file:" + uriEscaper.Replace(path) + "?mode=ro&_pragma=query_only(1)"
}

// LoadDump executes a SQL script against a new in-memory database inside a
// single transaction. The first failing statement rolls the load back and is
// reported as ErrMalformedInput.
func LoadDump(ctx context.Context, script string) (*sql.DB, error) {
	db, err := sql.Open("sqlite", ":memory:")
	if err != nil {
		return nil, fmt.Errorf("opening in-memory database: %w", err)
	}
	// Every connection to :memory: is a separate database.
	db.SetMaxOpenConns(1)
	db.SetMaxIdleConns(1)
	db.SetConnMaxLifetime(0)

	tx, err := db.BeginTx(ctx, nil)
	if err != nil {
		db.Close()
		return nil, fmt.Errorf("starting dump transaction: %w", err)
	}

	for _, stmt := range SplitStatements(script) {
		if isTransactionControl(stmt) {
			continue
		}
		if _, err := tx.ExecContext(ctx, stmt); err != nil {
			tx.Rollback()
			db.Close()
			return nil, &Error{
				Kind:      ErrMalformedInput,
				Message:   fmt.Sprintf("error executing SQL statement %q", stmt),
				Statement: stmt,
				Err:       err,
			}
		}
	}

	if err := tx.Commit(); err != nil {
		db.Close()
		return nil, newError(ErrMalformedInput, "error committing SQL dump", err)
	}
	return db, nil
}

// SplitStatements splits a script on every ';'. It does not understand string
// literals, comments or escapes, so a ';' inside a literal splits the
// statement. Blank statements are dropped.
func SplitStatements(script string) []string {
	var stmts []string
	for _, part := range strings.Split(script, ";") {
		if s := strings.TrimSpace(part); s != "" {
			stmts = append(stmts, s)
		}
	}
	return stmts
}

// isTransactionControl reports statements that would conflict with the
// transaction the dump already runs in (sqlite3 .dump emits them).
func isTransactionControl(stmt string) bool {
	fields := strings.Fields(strings.ToUpper(stmt))
	if len(fields) == 0 {
		return false
	}
	switch fields[0] {
	case "BEGIN", "COMMIT", "END", "ROLLBACK":
		return len(fields) == 1 || fields[1] == "TRANSACTION" || fields[1] == "DEFERRED" ||
			fields[1] == "IMMEDIATE" || fields[1] == "EXCLUSIVE"
	}
	return false
}

// Reflect lists user tables ordered by name, each with its columns in
// definition order.
func Reflect(ctx context.Context, db *sql.DB) ([]schema.Table, error) {
	rows, err := db.QueryContext(ctx,
		`SELECT name FROM sqlite_master WHERE type = 'table' AND name NOT LIKE 'sqlite\_%' ESCAPE '\' ORDER BY name`)
	if err != nil {
		return nil, err
	}
	var names []string
	for rows.Next() {
		var name string
		if err := rows.Scan(&name); err != nil {
			rows.Close()
			return nil, err
		}
		names = append(names, name)
	}
	if err := rows.Err(); err != nil {
		rows.Close()
		return nil, err
	}
	rows.Close()

	tables := make([]schema.Table, 0, len(names))
	for _, name := range names {
		cols, err := reflectColumns(ctx, db, name)
		if err != nil {
			return nil, fmt.Errorf("reflecting columns of %s: %w", name, err)
		}
		tables = append(tables, schema.Table{Name: name, Columns: cols})
	}
	return tables, nil
}

func reflectColumns(ctx context.Context, db *sql.DB, table string) ([]schema.Column, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("PRAGMA table_info(%s)", quoteIdent(table)))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	var cols []schema.Column
	for rows.Next() {
		var (
			cid, notNull, pk int
			name, declType   string
			defaultValue     sql.NullString
		)
		if err := rows.Scan(&cid, &name, &declType, &notNull, &defaultValue, &pk); err != nil {
			return nil, err
		}
		cols = append(cols, schema.Column{
			Name:     name,
			Type:     declType,
			Nullable: notNull == 0,
		})
	}
	return cols, rows.Err()
}

// SampleTable returns up to limit rows of a table keyed by the result set's
// column names.
func SampleTable(ctx context.Context, db *sql.DB, table string, limit int) ([]schema.Record, error) {
	rows, err := db.QueryContext(ctx, fmt.Sprintf("SELECT * FROM %s LIMIT %d", quoteIdent(table), limit))
	if err != nil {
		return nil, err
	}
	defer rows.Close()

	cols, err := rows.Columns()
	if err != nil {
		return nil, err
	}

	records := []schema.Record{}
	for rows.Next() {
		values := make([]any, len(cols))
		ptrs := make([]any, len(cols))
		for i := range values {
			ptrs[i] = &values[i]
		}
		if err := rows.Scan(ptrs...); err != nil {
			return nil, err
		}
		rec := make(schema.Record, len(cols))
		for i, c := range cols {
			rec[c] = NormalizeValue(values[i])
		}
		records = append(records, rec)
	}
	return records, rows.Err()
}

// NormalizeValue converts driver values into JSON-friendly ones. Text stored
// as a blob comes back as a string; binary data stays []byte.
func NormalizeValue(v any) any {
	if b, ok := v.([]byte); ok && utf8.Valid(b) {
		return string(b)
	}
	return v
}

func quoteIdent(name string) string {
	return `"` + strings.ReplaceAll(name, `"`, `""`) + `"`
}
