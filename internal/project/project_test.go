package project

import (
	"context"
	"errors"
	"io"
	"log/slog"
	"testing"
	"time"

	"github.com/datachat/datachat/internal/engine"
	"github.com/datachat/datachat/internal/filestore"
	"github.com/datachat/datachat/internal/store"
)

func testEngine(t *testing.T) *engine.Engine {
	t.Helper()
	return engine.New(nil, slog.New(slog.NewTextHandler(io.Discard, nil)), engine.WithFiles(filestore.NewMemory()))
}

func testTracker(s store.Store) *Tracker {
	tr := NewTracker(s, slog.New(slog.NewTextHandler(io.Discard, nil)))
	tr.now = func() time.Time { return time.Date(2026, 5, 1, 9, 0, 0, 0, time.UTC) }
	return tr
}

func TestTracker_CSVUpload(t *testing.T) {
	s := &store.MockStore{}
	tr := testTracker(s)
	eng := testEngine(t)

	u, err := eng.Upload(context.Background(), engine.UploadRequest{
		Filename: "people.csv",
		Data:     []byte("name,age\nann,31\nbob,\n"),
		UserID:   7,
		ChatID:   "chat-1",
	}, tr.PostProcess)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}
	if u.ProjectID != 1 {
		t.Errorf("ProjectID = %d, want 1", u.ProjectID)
	}

	p := s.Projects[1]
	if p == nil {
		t.Fatal("project not stored")
	}
	if p.Name != "people" || p.Description != "Database project for people" {
		t.Errorf("Name = %q Description = %q", p.Name, p.Description)
	}
	if p.UserID != 7 || p.ChatID != "chat-1" || p.Status != StatusActive || !p.DatabaseUploaded {
		t.Errorf("project = %+v", p)
	}
	if p.SharedWith == nil || len(p.SharedWith) != 0 {
		t.Errorf("SharedWith = %#v, want empty slice", p.SharedWith)
	}
	d := p.DatabaseDetails
	if d.FileKey != u.File.Key || d.Format != "csv" {
		t.Errorf("details = %+v", d)
	}
	if len(d.Tables) != 1 || d.Tables[0].TableName != "people" || len(d.Tables[0].Columns) != 2 {
		t.Errorf("tables = %+v", d.Tables)
	}
	if len(d.Data["people"]) != 2 {
		t.Errorf("data rows = %d, want 2", len(d.Data["people"]))
	}

	if len(s.Messages) != 1 {
		t.Fatalf("messages = %d, want 1", len(s.Messages))
	}
	msg := s.Messages[0]
	wantSteps := []string{
		"Database file processed successfully",
		"Detected 1 tables",
		`Table "people" with 2 columns`,
		"Ready to answer questions about your data",
	}
	if len(msg.AgentSteps) != len(wantSteps) || msg.CurrentStep != len(wantSteps) {
		t.Fatalf("steps = %+v", msg.AgentSteps)
	}
	for i, want := range wantSteps {
		if msg.AgentSteps[i].Description != want {
			t.Errorf("step %d = %q, want %q", i, msg.AgentSteps[i].Description, want)
		}
		if msg.AgentSteps[i].Status != store.StepDone || msg.AgentSteps[i].ID == "" {
			t.Errorf("step %d = %+v", i, msg.AgentSteps[i])
		}
	}
	if msg.ChatID != "chat-1" || msg.Role != store.RoleAssistant || len(msg.FollowUpSuggestions) != 3 {
		t.Errorf("message = %+v", msg)
	}
}

func TestTracker_RelationalUpload(t *testing.T) {
	s := &store.MockStore{}
	tr := testTracker(s)
	eng := testEngine(t)

	dump := []byte("CREATE TABLE b (x INT); CREATE TABLE a (y TEXT, z TEXT); INSERT INTO a VALUES ('1', '2');")
	u, err := eng.Upload(context.Background(), engine.UploadRequest{Filename: "shop.sql", Data: dump, ChatID: "c"}, tr.PostProcess)
	if err != nil {
		t.Fatalf("Upload: %v", err)
	}

	p := s.Projects[u.ProjectID]
	if p.Name != "shop" {
		t.Errorf("Name = %q, want shop", p.Name)
	}
	steps := s.Messages[0].AgentSteps
	if steps[1].Description != "Detected 2 tables" {
		t.Errorf("step 1 = %q", steps[1].Description)
	}
	if steps[2].Description != `Table "a" with 2 columns` || steps[3].Description != `Table "b" with 1 columns` {
		t.Errorf("table steps = %q, %q", steps[2].Description, steps[3].Description)
	}
}

func TestTracker_ProjectIDsIncrease(t *testing.T) {
	s := &store.MockStore{}
	tr := testTracker(s)
	eng := testEngine(t)

	var last int64
	for i := 0; i < 3; i++ {
		u, err := eng.Upload(context.Background(), engine.UploadRequest{Filename: "d.json", Data: []byte(`[{"a":1}]`)}, tr.PostProcess)
		if err != nil {
			t.Fatalf("Upload %d: %v", i, err)
		}
		if u.ProjectID <= last {
			t.Errorf("project id %d not greater than %d", u.ProjectID, last)
		}
		last = u.ProjectID
	}
}

func TestTracker_StoreFailure(t *testing.T) {
	boom := errors.New("counter unavailable")
	s := &store.MockStore{CounterErr: boom}
	tr := testTracker(s)
	eng := testEngine(t)

	_, err := eng.Upload(context.Background(), engine.UploadRequest{Filename: "d.csv", Data: []byte("a\n1\n")}, tr.PostProcess)
	if !errors.Is(err, boom) {
		t.Errorf("err = %v, want counter error", err)
	}
	if len(s.Projects) != 0 || len(s.Messages) != 0 {
		t.Error("nothing should be stored when the counter fails")
	}
}

func TestTracker_InferenceFailureSkipsHook(t *testing.T) {
	s := &store.MockStore{}
	tr := testTracker(s)
	eng := testEngine(t)

	_, err := eng.Upload(context.Background(), engine.UploadRequest{Filename: "d.csv", Data: []byte("only-header\n")}, tr.PostProcess)
	if err == nil {
		t.Fatal("expected inference error")
	}
	if s.Counter != 0 {
		t.Errorf("counter advanced to %d on failed upload", s.Counter)
	}
}

func TestName(t *testing.T) {
	tests := map[string]string{
		"people.csv":   "people",
		"events.JSON":  "events",
		"shop.db":      "shop",
		"shop.sqlite":  "shop",
		"dump.sql":     "dump",
	}
	for in, want := range tests {
		if got := Name(in); got != want {
			t.Errorf("Name(%q) = %q, want %q", in, got, want)
		}
	}
}
