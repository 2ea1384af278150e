package engine

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/google/uuid"

	"github.com/datachat/datachat/internal/config"
	"github.com/datachat/datachat/internal/filestore"
	"github.com/datachat/datachat/internal/inference"
	"github.com/datachat/datachat/internal/query"
	"github.com/datachat/datachat/internal/report"
	"github.com/datachat/datachat/internal/schema"
	"github.com/datachat/datachat/internal/store"
)

// ErrNoStore is returned by operations that need the document store when
// none is configured.
var ErrNoStore = errors.New("no document store configured")

// Engine is the core service shared by the HTTP API and the CLI.
type Engine struct {
	Config   *config.Config
	Logger   *slog.Logger
	Files    filestore.Store
	Store    store.Store      // nil without mongo config
	Reporter *report.Reporter // nil without llm config
	Queries  *query.Executor

	now func() time.Time
}

// Option configures the engine.
type Option func(*Engine)

// WithFiles sets the upload file store.
func WithFiles(files filestore.Store) Option {
	return func(e *Engine) {
		e.Files = files
	}
}

// WithStore sets the document store.
func WithStore(s store.Store) Option {
	return func(e *Engine) {
		e.Store = s
	}
}

// WithReporter sets the report generator.
func WithReporter(r *report.Reporter) Option {
	return func(e *Engine) {
		e.Reporter = r
	}
}

// New creates an Engine. Without WithFiles, uploads are kept in memory.
func New(cfg *config.Config, logger *slog.Logger, opts ...Option) *Engine {
	if cfg == nil {
		cfg = config.Default()
	}
	e := &Engine{
		Config: cfg,
		Logger: logger,
		now:    time.Now,
	}
	for _, opt := range opts {
		opt(e)
	}
	if e.Files == nil {
		e.Files = filestore.NewMemory()
	}
	e.Queries = query.New(e.Files, cfg.Upload.TempDir)
	return e
}

// Open wires an Engine from the configuration: the file store, the MongoDB
// store when mongo.uri is set and the report generator when llm.provider is
// set.
func Open(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*Engine, error) {
	files, err := filestore.New(ctx, cfg.Storage)
	if err != nil {
		return nil, fmt.Errorf("opening file store: %w", err)
	}
	opts := []Option{WithFiles(files)}

	if cfg.HasStore() {
		s, err := store.NewMongoStore(ctx, cfg.Mongo.URI, cfg.Mongo.Database)
		if err != nil {
			return nil, err
		}
		opts = append(opts, WithStore(s))
		logger.Info("connected to document store", "database", cfg.Mongo.Database)
	} else {
		logger.Warn("no mongo.uri configured; project tracking, queries and chat history are disabled")
	}

	gen, err := report.NewGenerator(cfg.LLM, logger)
	switch {
	case errors.Is(err, report.ErrNotConfigured):
		logger.Info("no llm.provider configured; reports are disabled")
	case err != nil:
		return nil, fmt.Errorf("creating report generator: %w", err)
	default:
		opts = append(opts, WithReporter(report.NewReporter(gen, logger, report.WithGraphDir(cfg.LLM.GraphDir))))
	}

	return New(cfg, logger, opts...), nil
}

// Close releases the document store connection.
func (e *Engine) Close(ctx context.Context) error {
	if e.Store == nil {
		return nil
	}
	return e.Store.Close(ctx)
}

// Now returns the engine clock in UTC.
func (e *Engine) Now() time.Time {
	return e.now().UTC()
}

// UploadRequest is one uploaded file.
type UploadRequest struct {
	Filename string
	Data     []byte
	UserID   int64
	ChatID   string
}

// Upload is a processed upload passed to post-processors.
type Upload struct {
	Request   UploadRequest
	Format    inference.Format
	File      *filestore.Object
	Result    *schema.Result
	ProjectID int64 // set by the project tracker
}

// PostProcessor runs after inference succeeds. An error fails the upload.
type PostProcessor func(ctx context.Context, u *Upload) error

// Upload stores the raw file, infers its schema and sample and runs hooks in
// order.
func (e *Engine) Upload(ctx context.Context, req UploadRequest, hooks ...PostProcessor) (*Upload, error) {
	format, err := inference.DetectFormat(req.Filename)
	if err != nil {
		return nil, err
	}

	obj, err := e.Files.Save(ctx, req.Filename, req.Data)
	if err != nil {
		return nil, fmt.Errorf("storing upload: %w", err)
	}

	var opts []inference.Option
	if e.Config.Upload.TempDir != "" {
		opts = append(opts, inference.WithTempDir(e.Config.Upload.TempDir))
	}
	if path, ok := e.Files.LocalPath(obj.Key); ok && format == inference.FormatRelational {
		opts = append(opts, inference.WithDatabasePath(path))
	}

	start := time.Now()
	res, err := inference.Infer(ctx, req.Data, req.Filename, opts...)
	if err != nil {
		e.Logger.Warn("inference failed", "file", req.Filename, "format", format, "error", err)
		return nil, err
	}
	e.Logger.Info("upload processed",
		"file", req.Filename,
		"key", obj.Key,
		"format", format,
		"tables", len(res.TableNames()),
		"sampled_rows", res.SampleSize(),
		"duration", time.Since(start),
	)

	u := &Upload{Request: req, Format: format, File: obj, Result: res}
	for _, hook := range hooks {
		if err := hook(ctx, u); err != nil {
			return nil, err
		}
	}
	return u, nil
}

// RunQuery executes sqlText against a project's upload and records the
// answer in the project's chat history.
func (e *Engine) RunQuery(ctx context.Context, projectID int64, sqlText string) (*store.ChatMessage, error) {
	if e.Store == nil {
		return nil, ErrNoStore
	}
	p, err := e.Store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}

	res, err := e.Queries.Run(ctx, sourceOf(p), sqlText)
	if err != nil {
		return nil, err
	}

	msg := QueryMessage(p, sqlText, res, e.Now())
	if err := e.Store.InsertChatMessage(ctx, msg); err != nil {
		return nil, err
	}
	if err := e.Store.TouchProject(ctx, p.ID, msg.Timestamp); err != nil {
		e.Logger.Warn("updating project access time", "project_id", p.ID, "error", err)
	}
	e.Logger.Info("query executed", "project_id", p.ID, "columns", len(res.Columns), "rows", len(res.Rows))
	return msg, nil
}

// ProjectSchema reflects the tables of a project's upload.
func (e *Engine) ProjectSchema(ctx context.Context, projectID int64) ([]schema.Table, error) {
	if e.Store == nil {
		return nil, ErrNoStore
	}
	p, err := e.Store.GetProject(ctx, projectID)
	if err != nil {
		return nil, err
	}
	return e.Queries.Schema(ctx, sourceOf(p))
}

// ChatHistory returns a chat's messages, oldest first.
func (e *Engine) ChatHistory(ctx context.Context, chatID string) ([]store.ChatMessage, error) {
	if e.Store == nil {
		return nil, ErrNoStore
	}
	return e.Store.ListChatMessages(ctx, chatID)
}

// GenerateReport asks the configured model for a narrative report.
func (e *Engine) GenerateReport(ctx context.Context, req report.Request) (*report.Report, error) {
	if e.Reporter == nil {
		return nil, report.ErrNotConfigured
	}
	return e.Reporter.Generate(ctx, req)
}

// Ping checks the document store when one is configured.
func (e *Engine) Ping(ctx context.Context) error {
	if e.Store == nil {
		return ErrNoStore
	}
	return e.Store.Ping(ctx)
}

func sourceOf(p *store.Project) query.Source {
	return query.Source{Key: p.DatabaseDetails.FileKey, Filename: p.OriginalFilename}
}

// QueryMessage builds the assistant message answering a query.
func QueryMessage(p *store.Project, sqlText string, res *query.Result, at time.Time) *store.ChatMessage {
	steps := NewSteps(
		"Parsed user query",
		"Generated SQL query",
		"Executed query and retrieved results",
	)
	visualization := "none"
	if len(res.Columns) > 0 {
		visualization = "table"
	}
	return &store.ChatMessage{
		ID:                  uuid.NewString(),
		ChatID:              p.ChatID,
		ProjectID:           p.ID,
		Role:                store.RoleAssistant,
		Timestamp:           at,
		Query:               sqlText,
		Result:              res.Rows,
		Columns:             res.Columns,
		Explanation:         "Executed query: " + sqlText,
		AgentSteps:          steps,
		CurrentStep:         len(steps),
		VisualizationType:   visualization,
		FollowUpSuggestions: []string{"Show me more data", "Filter by a specific condition"},
	}
}

// NewSteps returns completed agent steps with fresh ids.
func NewSteps(descriptions ...string) []store.AgentStep {
	steps := make([]store.AgentStep, len(descriptions))
	for i, d := range descriptions {
		steps[i] = store.AgentStep{ID: uuid.NewString(), Description: d, Status: store.StepDone}
	}
	return steps
}
