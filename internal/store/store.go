// Package store persists projects and chat history in MongoDB.
package store

import (
	"context"
	"errors"
	"time"

	"github.com/datachat/datachat/internal/schema"
)

// ErrNotFound is returned when a project does not exist.
var ErrNotFound = errors.New("not found")

// Store defines the document store operations used by the service.
type Store interface {
	// NextProjectID atomically increments and returns the project counter.
	NextProjectID(ctx context.Context) (int64, error)
	InsertProject(ctx context.Context, p *Project) error
	GetProject(ctx context.Context, id int64) (*Project, error)
	TouchProject(ctx context.Context, id int64, at time.Time) error

	InsertChatMessage(ctx context.Context, msg *ChatMessage) error
	// ListChatMessages returns the messages of a chat, oldest first.
	ListChatMessages(ctx context.Context, chatID string) ([]ChatMessage, error)

	Ping(ctx context.Context) error
	Close(ctx context.Context) error
}

// Project is a session-tracked upload.
type Project struct {
	ID               int64           `bson:"_id" json:"id"`
	UserID           int64           `bson:"user_id" json:"user_id"`
	Name             string          `bson:"name" json:"name"`
	ChatID           string          `bson:"chat_id" json:"chat_id"`
	OriginalFilename string          `bson:"original_filename" json:"original_filename"`
	FilePath         string          `bson:"file_path" json:"file_path"`
	Description      string          `bson:"description" json:"description"`
	CreatedAt        time.Time       `bson:"created_at" json:"created_at"`
	UpdatedAt        time.Time       `bson:"updated_at" json:"updated_at"`
	DatabaseUploaded bool            `bson:"database_uploaded" json:"database_uploaded"`
	DatabaseDetails  DatabaseDetails `bson:"database_details" json:"database_details"`
	Status           string          `bson:"status" json:"status"`
	SharedWith       []int64         `bson:"shared_with" json:"shared_with"`
	LastAccessed     time.Time       `bson:"last_accessed" json:"last_accessed"`
}

// DatabaseDetails describes the stored upload behind a project.
type DatabaseDetails struct {
	FilePath         string                     `bson:"file_path" json:"file_path"`
	FileKey          string                     `bson:"file_key" json:"file_key"`
	OriginalFilename string                     `bson:"original_filename" json:"original_filename"`
	DBName           string                     `bson:"db_name" json:"db_name"`
	Format           string                     `bson:"format" json:"format"`
	Tables           []TableEntry               `bson:"tables" json:"tables"`
	Data             map[string][]schema.Record `bson:"data" json:"data"`
}

// TableEntry lists a table and its column names.
type TableEntry struct {
	TableName string   `bson:"table_name" json:"table_name"`
	Columns   []string `bson:"columns" json:"columns"`
}

// ChatMessage is one entry of a chat's history.
type ChatMessage struct {
	ID                  string      `bson:"_id" json:"id"`
	ChatID              string      `bson:"chat_id" json:"chat_id,omitempty"`
	ProjectID           int64       `bson:"project_id,omitempty" json:"project_id,omitempty"`
	Role                string      `bson:"role" json:"role"`
	Content             string      `bson:"content,omitempty" json:"content,omitempty"`
	Timestamp           time.Time   `bson:"timestamp" json:"timestamp"`
	Query               string      `bson:"query,omitempty" json:"query,omitempty"`
	Result              [][]any     `bson:"result,omitempty" json:"result,omitempty"`
	Columns             []string    `bson:"columns,omitempty" json:"columns,omitempty"`
	Explanation         string      `bson:"explanation" json:"explanation"`
	AgentSteps          []AgentStep `bson:"agentSteps" json:"agentSteps"`
	CurrentStep         int         `bson:"currentStep" json:"currentStep"`
	VisualizationType   string      `bson:"visualizationType,omitempty" json:"visualizationType,omitempty"`
	FollowUpSuggestions []string    `bson:"followUpSuggestions" json:"followUpSuggestions"`
}

// AgentStep is a progress step shown alongside an assistant message.
type AgentStep struct {
	ID          string `bson:"id" json:"id"`
	Description string `bson:"description" json:"description"`
	Status      string `bson:"status" json:"status"`
}

// Roles of chat messages.
const (
	RoleAssistant = "assistant"
	RoleUser      = "user"
)

// StepDone marks a completed agent step.
const StepDone = "done"
