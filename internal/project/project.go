// Package project records session-tracked uploads as projects with an
// assistant chat message.
package project

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/datachat/datachat/internal/engine"
	"github.com/datachat/datachat/internal/inference"
	"github.com/datachat/datachat/internal/schema"
	"github.com/datachat/datachat/internal/store"
)

// StatusActive is the status of a newly created project.
const StatusActive = "active"

// Tracker is an engine.PostProcessor that persists uploads.
type Tracker struct {
	store  store.Store
	logger *slog.Logger
	now    func() time.Time
}

// NewTracker creates a tracker writing to s.
func NewTracker(s store.Store, logger *slog.Logger) *Tracker {
	return &Tracker{store: s, logger: logger, now: time.Now}
}

// PostProcess allocates the next project id, stores the project and the
// upload's assistant message and sets u.ProjectID.
func (t *Tracker) PostProcess(ctx context.Context, u *engine.Upload) error {
	id, err := t.store.NextProjectID(ctx)
	if err != nil {
		return err
	}
	at := t.now().UTC()

	p := NewProject(id, u, at)
	if err := t.store.InsertProject(ctx, p); err != nil {
		return err
	}
	if err := t.store.InsertChatMessage(ctx, UploadMessage(u, id, at)); err != nil {
		return err
	}

	u.ProjectID = id
	t.logger.Info("project created", "project_id", id, "user_id", u.Request.UserID, "chat_id", u.Request.ChatID, "name", p.Name)
	return nil
}

// Name derives the project name from the upload filename.
func Name(filename string) string {
	format, err := inference.DetectFormat(filename)
	if err == nil && format == inference.FormatRelational {
		return inference.DatabaseName(filename)
	}
	return inference.TableName(filename)
}

// NewProject builds the project record for an upload.
func NewProject(id int64, u *engine.Upload, at time.Time) *store.Project {
	name := Name(u.Request.Filename)
	tables := u.Result.AllTables()

	entries := make([]store.TableEntry, len(tables))
	data := make(map[string][]schema.Record, len(tables))
	for i, t := range tables {
		entries[i] = store.TableEntry{TableName: t.Name, Columns: t.ColumnNames()}
		data[t.Name] = u.Result.SampleFor(t.Name)
	}

	return &store.Project{
		ID:               id,
		UserID:           u.Request.UserID,
		Name:             name,
		ChatID:           u.Request.ChatID,
		OriginalFilename: u.Request.Filename,
		FilePath:         u.File.Path,
		Description:      "Database project for " + name,
		CreatedAt:        at,
		UpdatedAt:        at,
		DatabaseUploaded: true,
		DatabaseDetails: store.DatabaseDetails{
			FilePath:         u.File.Path,
			FileKey:          u.File.Key,
			OriginalFilename: u.Request.Filename,
			DBName:           name,
			Format:           u.Format.String(),
			Tables:           entries,
			Data:             data,
		},
		Status:       StatusActive,
		SharedWith:   []int64{},
		LastAccessed: at,
	}
}

// UploadMessage builds the assistant message announcing a processed upload.
func UploadMessage(u *engine.Upload, projectID int64, at time.Time) *store.ChatMessage {
	tables := u.Result.AllTables()

	descriptions := []string{
		"Database file processed successfully",
		fmt.Sprintf("Detected %d tables", len(tables)),
	}
	for _, t := range tables {
		descriptions = append(descriptions, fmt.Sprintf("Table %q with %d columns", t.Name, len(t.Columns)))
	}
	descriptions = append(descriptions, "Ready to answer questions about your data")
	steps := engine.NewSteps(descriptions...)

	return &store.ChatMessage{
		ID:          uuid.NewString(),
		ChatID:      u.Request.ChatID,
		ProjectID:   projectID,
		Role:        store.RoleAssistant,
		Content:     "Database uploaded successfully! You can now ask questions about your data.",
		Timestamp:   at,
		AgentSteps:  steps,
		CurrentStep: len(steps),
		Explanation: "I've analyzed your database and I'm ready to help you query it.",
		FollowUpSuggestions: []string{
			"Show me the schema",
			"List all tables",
			"How many rows are in each table?",
		},
	}
}
