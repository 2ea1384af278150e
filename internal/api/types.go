package api

import (
	"encoding/json"
	"time"

	"github.com/datachat/datachat/internal/schema"
	"github.com/datachat/datachat/internal/store"
)

// StatusResponse is the response for GET /api/health and the websocket
// status message.
type StatusResponse struct {
	Status  string `json:"status"`
	Store   string `json:"store"`
	Reports string `json:"reports"`
	Clients int    `json:"clients"`
}

// UploadResponse is the inferred {schema, data} of an upload, plus the
// project id for session-tracked uploads.
type UploadResponse struct {
	ProjectID int64
	Result    *schema.Result
}

// MarshalJSON adds project_id next to the result's schema and data.
func (u UploadResponse) MarshalJSON() ([]byte, error) {
	body, err := json.Marshal(u.Result)
	if err != nil {
		return nil, err
	}
	if u.ProjectID == 0 {
		return body, nil
	}
	var fields map[string]json.RawMessage
	if err := json.Unmarshal(body, &fields); err != nil {
		return nil, err
	}
	fields["project_id"], _ = json.Marshal(u.ProjectID)
	return json.Marshal(fields)
}

// UploadEvent is broadcast after an upload is processed.
type UploadEvent struct {
	Filename  string   `json:"filename"`
	Format    string   `json:"format"`
	Tables    []string `json:"tables"`
	Rows      int      `json:"rows"`
	ProjectID int64    `json:"projectId,omitempty"`
	ChatID    string   `json:"chatId,omitempty"`
}

// QueryRequest is the request body for POST /api/chat/query.
type QueryRequest struct {
	ProjectID int64  `json:"project_id"`
	Query     string `json:"query"`
}

// QueryResponse is the assistant message answering a query.
type QueryResponse struct {
	ID                  string            `json:"id"`
	Timestamp           time.Time         `json:"timestamp"`
	Query               string            `json:"query"`
	Result              [][]any           `json:"result"`
	Columns             []string          `json:"columns"`
	Explanation         string            `json:"explanation"`
	AgentSteps          []store.AgentStep `json:"agentSteps"`
	CurrentStep         int               `json:"currentStep"`
	VisualizationType   string            `json:"visualizationType"`
	FollowUpSuggestions []string          `json:"followUpSuggestions"`
}

func newQueryResponse(msg *store.ChatMessage) QueryResponse {
	resp := QueryResponse{
		ID:                  msg.ID,
		Timestamp:           msg.Timestamp,
		Query:               msg.Query,
		Result:              msg.Result,
		Columns:             msg.Columns,
		Explanation:         msg.Explanation,
		AgentSteps:          msg.AgentSteps,
		CurrentStep:         msg.CurrentStep,
		VisualizationType:   msg.VisualizationType,
		FollowUpSuggestions: msg.FollowUpSuggestions,
	}
	if resp.Result == nil {
		resp.Result = [][]any{}
	}
	if resp.Columns == nil {
		resp.Columns = []string{}
	}
	return resp
}

// SchemaResponse is the response for GET /api/chat/schema.
type SchemaResponse struct {
	ProjectID int64          `json:"project_id"`
	Tables    []schema.Table `json:"tables"`
}

// HistoryResponse is the response for GET /api/chat/history.
type HistoryResponse struct {
	ChatID   string              `json:"chat_id"`
	Messages []store.ChatMessage `json:"messages"`
}

// ReportEvent is broadcast after a report is generated.
type ReportEvent struct {
	Title    string `json:"title"`
	Model    string `json:"model"`
	Sections int    `json:"sections"`
}
