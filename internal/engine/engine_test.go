package engine

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/datachat/datachat/internal/config"
	"github.com/datachat/datachat/internal/filestore"
	"github.com/datachat/datachat/internal/inference"
	"github.com/datachat/datachat/internal/query"
	"github.com/datachat/datachat/internal/report"
	"github.com/datachat/datachat/internal/store"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(io.Discard, nil))
}

func testEngine(t *testing.T, opts ...Option) *Engine {
	t.Helper()
	e := New(config.Default(), testLogger(), opts...)
	e.now = func() time.Time { return time.Date(2026, 6, 1, 12, 0, 0, 0, time.UTC) }
	return e
}

// seedProject stores a dump upload and its project record.
func seedProject(t *testing.T, e *Engine, s *store.MockStore) *store.Project {
	t.Helper()
	obj, err := e.Files.Save(context.Background(), "shop.sql", []byte(
		"CREATE TABLE items (id INTEGER, name TEXT); INSERT INTO items VALUES (1, 'pen'), (2, 'ink');"))
	if err != nil {
		t.Fatal(err)
	}
	p := &store.Project{
		ID:               3,
		ChatID:           "chat-9",
		OriginalFilename: "shop.sql",
		DatabaseDetails:  store.DatabaseDetails{FileKey: obj.Key},
	}
	if err := s.InsertProject(context.Background(), p); err != nil {
		t.Fatal(err)
	}
	return p
}

func TestNew(t *testing.T) {
	e := New(nil, testLogger())
	if e.Config == nil || e.Config.Server.Port != config.DefaultPort {
		t.Error("nil config should fall back to defaults")
	}
	if e.Files == nil || e.Queries == nil {
		t.Error("file store and executor should always be set")
	}
	if e.Store != nil || e.Reporter != nil {
		t.Error("store and reporter should be unset without options")
	}
}

func TestOpen_LocalOnly(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Directory = t.TempDir()

	e, err := Open(context.Background(), cfg, testLogger())
	if err != nil {
		t.Fatalf("Open: %v", err)
	}
	if _, ok := e.Files.(*filestore.Local); !ok {
		t.Errorf("Files = %T, want *filestore.Local", e.Files)
	}
	if e.Store != nil || e.Reporter != nil {
		t.Error("store and reporter should be unset")
	}
	if err := e.Close(context.Background()); err != nil {
		t.Errorf("Close: %v", err)
	}
}

func TestOpen_UnknownProvider(t *testing.T) {
	cfg := config.Default()
	cfg.Storage.Directory = t.TempDir()
	cfg.LLM.Provider = "cohere"

	if _, err := Open(context.Background(), cfg, testLogger()); err == nil {
		t.Error("expected error for unknown provider")
	}
}

func TestUpload_Ephemeral(t *testing.T) {
	files := filestore.NewMemory()
	e := testEngine(t, WithFiles(files))

	u, err := e.Upload(context.Background(), UploadRequest{Filename: "people.csv", Data: []byte("a,b\n1,2\n")})
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if u.Format != inference.FormatCSV || u.Result.Table.Name != "people" {
		t.Errorf("upload = %+v", u)
	}
	if u.ProjectID != 0 {
		t.Errorf("ProjectID = %d, want 0 without hooks", u.ProjectID)
	}
	if files.Len() != 1 {
		t.Errorf("stored files = %d, want 1", files.Len())
	}
}

func TestUpload_UnsupportedNotStored(t *testing.T) {
	files := filestore.NewMemory()
	e := testEngine(t, WithFiles(files))

	_, err := e.Upload(context.Background(), UploadRequest{Filename: "notes.txt", Data: []byte("x")})
	if !errors.Is(err, inference.ErrUnsupportedFormat) {
		t.Fatalf("err = %v, want ErrUnsupportedFormat", err)
	}
	if files.Len() != 0 {
		t.Error("unsupported uploads should not be stored")
	}
}

func TestUpload_LocalDatabaseUsesStoredPath(t *testing.T) {
	files, err := filestore.NewLocal(t.TempDir())
	if err != nil {
		t.Fatal(err)
	}
	e := testEngine(t, WithFiles(files))

	// An empty file is a valid, table-less SQLite database.
	_, err = e.Upload(context.Background(), UploadRequest{Filename: "empty.db", Data: []byte{}})
	if !errors.Is(err, inference.ErrSchema) {
		t.Fatalf("err = %v, want ErrSchema", err)
	}
}

func TestUpload_HooksRunInOrder(t *testing.T) {
	e := testEngine(t)
	var calls []string
	hook := func(name string) PostProcessor {
		return func(_ context.Context, u *Upload) error {
			calls = append(calls, name)
			u.ProjectID++
			return nil
		}
	}

	u, err := e.Upload(context.Background(), UploadRequest{Filename: "d.json", Data: []byte(`[{"a":1}]`)}, hook("first"), hook("second"))
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if len(calls) != 2 || calls[0] != "first" || calls[1] != "second" {
		t.Errorf("calls = %v", calls)
	}
	if u.ProjectID != 2 {
		t.Errorf("ProjectID = %d, want 2", u.ProjectID)
	}
}

func TestUpload_HookError(t *testing.T) {
	e := testEngine(t)
	boom := errors.New("boom")
	_, err := e.Upload(context.Background(), UploadRequest{Filename: "d.json", Data: []byte(`[{"a":1}]`)},
		func(context.Context, *Upload) error { return boom })
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want hook error", err)
	}
}

func TestRunQuery(t *testing.T) {
	s := &store.MockStore{}
	e := testEngine(t, WithStore(s))
	p := seedProject(t, e, s)

	msg, err := e.RunQuery(context.Background(), p.ID, "SELECT name FROM items ORDER BY id")
	if err != nil {
		t.Fatalf("RunQuery: %v", err)
	}
	if msg.Explanation != "Executed query: SELECT name FROM items ORDER BY id" {
		t.Errorf("Explanation = %q", msg.Explanation)
	}
	if msg.VisualizationType != "table" || msg.CurrentStep != 3 || len(msg.AgentSteps) != 3 {
		t.Errorf("message = %+v", msg)
	}
	if len(msg.Result) != 2 || msg.Result[0][0] != "pen" {
		t.Errorf("Result = %v", msg.Result)
	}
	if msg.ChatID != "chat-9" || msg.ProjectID != p.ID {
		t.Errorf("ChatID = %q ProjectID = %d", msg.ChatID, msg.ProjectID)
	}

	history, err := e.ChatHistory(context.Background(), "chat-9")
	if err != nil {
		t.Fatalf("ChatHistory: %v", err)
	}
	if len(history) != 1 || history[0].ID != msg.ID {
		t.Errorf("history = %+v", history)
	}

	stored, _ := s.GetProject(context.Background(), p.ID)
	if !stored.LastAccessed.Equal(msg.Timestamp) {
		t.Errorf("LastAccessed = %v, want %v", stored.LastAccessed, msg.Timestamp)
	}
}

func TestRunQuery_Errors(t *testing.T) {
	e := testEngine(t)
	if _, err := e.RunQuery(context.Background(), 1, "SELECT 1"); !errors.Is(err, ErrNoStore) {
		t.Errorf("err = %v, want ErrNoStore", err)
	}

	s := &store.MockStore{}
	e = testEngine(t, WithStore(s))
	if _, err := e.RunQuery(context.Background(), 42, "SELECT 1"); !errors.Is(err, store.ErrNotFound) {
		t.Errorf("err = %v, want ErrNotFound", err)
	}

	p := seedProject(t, e, s)
	if _, err := e.RunQuery(context.Background(), p.ID, "SELEKT"); !errors.Is(err, query.ErrInvalidQuery) {
		t.Errorf("err = %v, want ErrInvalidQuery", err)
	}
	if len(s.Messages) != 0 {
		t.Error("failed queries should not be recorded")
	}
}

func TestProjectSchema(t *testing.T) {
	s := &store.MockStore{}
	e := testEngine(t, WithStore(s))
	p := seedProject(t, e, s)

	tables, err := e.ProjectSchema(context.Background(), p.ID)
	if err != nil {
		t.Fatalf("ProjectSchema: %v", err)
	}
	if len(tables) != 1 || tables[0].Name != "items" || len(tables[0].Columns) != 2 {
		t.Errorf("tables = %+v", tables)
	}
}

func TestQueryMessage_NoColumns(t *testing.T) {
	msg := QueryMessage(&store.Project{ID: 1}, "DELETE FROM t", &query.Result{}, time.Now())
	if msg.VisualizationType != "none" {
		t.Errorf("VisualizationType = %q, want none", msg.VisualizationType)
	}
	if len(msg.FollowUpSuggestions) != 2 {
		t.Errorf("FollowUpSuggestions = %v", msg.FollowUpSuggestions)
	}
}

type stubGenerator struct{}

func (stubGenerator) Generate(context.Context, string) (string, error) {
	return "Executive summary\nAll good.", nil
}
func (stubGenerator) Model() string { return "stub" }

func TestGenerateReport(t *testing.T) {
	e := testEngine(t)
	if _, err := e.GenerateReport(context.Background(), report.Request{Columns: []string{"a"}}); !errors.Is(err, report.ErrNotConfigured) {
		t.Errorf("err = %v, want ErrNotConfigured", err)
	}

	e = testEngine(t, WithReporter(report.NewReporter(stubGenerator{}, testLogger())))
	rep, err := e.GenerateReport(context.Background(), report.Request{Columns: []string{"a"}, Rows: [][]any{{1}}})
	if err != nil {
		t.Fatalf("GenerateReport: %v", err)
	}
	if len(rep.Sections) != 1 || rep.Sections[0].Title != "Executive summary" {
		t.Errorf("sections = %+v", rep.Sections)
	}
}

func TestPing(t *testing.T) {
	e := testEngine(t)
	if err := e.Ping(context.Background()); !errors.Is(err, ErrNoStore) {
		t.Errorf("err = %v, want ErrNoStore", err)
	}
	e = testEngine(t, WithStore(&store.MockStore{}))
	if err := e.Ping(context.Background()); err != nil {
		t.Errorf("Ping: %v", err)
	}
}
