package api

import (
	"encoding/json"
	"errors"
	"io"
	"net/http"
	"strconv"
	"strings"

	"github.com/google/uuid"

	"github.com/datachat/datachat/internal/engine"
	"github.com/datachat/datachat/internal/filestore"
	"github.com/datachat/datachat/internal/inference"
	"github.com/datachat/datachat/internal/query"
	"github.com/datachat/datachat/internal/report"
	"github.com/datachat/datachat/internal/store"
	"github.com/datachat/datachat/internal/ws"
)

// multipartMemory is the part of a multipart form kept in memory; larger
// files spill to temporary files.
const multipartMemory = 32 << 20

func (s *Server) handleHealth(w http.ResponseWriter, r *http.Request) {
	st := s.status(r.Context())
	code := http.StatusOK
	if st.Status != "ok" {
		code = http.StatusServiceUnavailable
	}
	jsonResponse(w, code, st)
}

// handleUpload infers an upload without creating a project.
func (s *Server) handleUpload(w http.ResponseWriter, r *http.Request) {
	req, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	u, err := s.engine.Upload(r.Context(), req)
	if err != nil {
		s.uploadError(w, req, err)
		return
	}
	s.broadcastUpload(u)
	jsonResponse(w, http.StatusOK, UploadResponse{Result: u.Result})
}

// handleUploadStart infers an upload and records it as a new project with
// its opening chat message.
func (s *Server) handleUploadStart(w http.ResponseWriter, r *http.Request) {
	if s.tracker == nil {
		errorResponse(w, http.StatusServiceUnavailable, engine.ErrNoStore.Error())
		return
	}
	req, ok := s.readUpload(w, r)
	if !ok {
		return
	}

	if v := strings.TrimSpace(r.FormValue("user_id")); v != "" {
		id, err := strconv.ParseInt(v, 10, 64)
		if err != nil {
			errorResponse(w, http.StatusBadRequest, "invalid user_id")
			return
		}
		req.UserID = id
	}
	req.ChatID = strings.TrimSpace(r.FormValue("chat_id"))
	if req.ChatID == "" {
		req.ChatID = uuid.NewString()
	}

	u, err := s.engine.Upload(r.Context(), req, s.tracker.PostProcess)
	if err != nil {
		s.uploadError(w, req, err)
		return
	}
	s.broadcastUpload(u)
	jsonResponse(w, http.StatusOK, UploadResponse{ProjectID: u.ProjectID, Result: u.Result})
}

// readUpload reads the multipart "file" field. It writes the error response
// and returns false when there is no usable file.
func (s *Server) readUpload(w http.ResponseWriter, r *http.Request) (engine.UploadRequest, bool) {
	if s.maxUploadBytes > 0 {
		r.Body = http.MaxBytesReader(w, r.Body, s.maxUploadBytes)
	}
	if err := r.ParseMultipartForm(multipartMemory); err != nil {
		var tooLarge *http.MaxBytesError
		if errors.As(err, &tooLarge) {
			errorResponse(w, http.StatusRequestEntityTooLarge, "file exceeds the upload size limit")
			return engine.UploadRequest{}, false
		}
		errorResponse(w, http.StatusBadRequest, "No file provided")
		return engine.UploadRequest{}, false
	}

	file, header, err := r.FormFile("file")
	if errors.Is(err, http.ErrMissingFile) {
		// A part without a file name arrives as a plain form value.
		if _, ok := r.MultipartForm.Value["file"]; ok {
			errorResponse(w, http.StatusBadRequest, "No file selected")
		} else {
			errorResponse(w, http.StatusBadRequest, "No file provided")
		}
		return engine.UploadRequest{}, false
	}
	if err != nil {
		errorResponse(w, http.StatusBadRequest, err.Error())
		return engine.UploadRequest{}, false
	}
	defer file.Close()

	if header.Filename == "" {
		errorResponse(w, http.StatusBadRequest, "No file selected")
		return engine.UploadRequest{}, false
	}

	data, err := io.ReadAll(file)
	if err != nil {
		errorResponse(w, http.StatusInternalServerError, "reading upload: "+err.Error())
		return engine.UploadRequest{}, false
	}
	return engine.UploadRequest{Filename: header.Filename, Data: data}, true
}

func (s *Server) uploadError(w http.ResponseWriter, req engine.UploadRequest, err error) {
	status := statusFor(err)
	if status >= http.StatusInternalServerError {
		s.logger.Error("upload failed", "file", req.Filename, "error", err)
	}
	s.broadcast(req.ChatID, ws.MsgError, map[string]string{"message": err.Error(), "file": req.Filename})
	errorResponse(w, status, err.Error())
}

func (s *Server) broadcastUpload(u *engine.Upload) {
	s.broadcast(u.Request.ChatID, ws.MsgUploadProcessed, UploadEvent{
		Filename:  u.Request.Filename,
		Format:    u.Format.String(),
		Tables:    u.Result.TableNames(),
		Rows:      u.Result.SampleSize(),
		ProjectID: u.ProjectID,
		ChatID:    u.Request.ChatID,
	})
}

func (s *Server) handleQuery(w http.ResponseWriter, r *http.Request) {
	var req QueryRequest
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}
	if req.ProjectID == 0 {
		errorResponse(w, http.StatusBadRequest, "project_id is required")
		return
	}

	msg, err := s.engine.RunQuery(r.Context(), req.ProjectID, req.Query)
	if err != nil {
		status := statusFor(err)
		if status >= http.StatusInternalServerError {
			s.logger.Error("query failed", "project_id", req.ProjectID, "error", err)
		}
		errorResponse(w, status, err.Error())
		return
	}

	resp := newQueryResponse(msg)
	s.broadcast(msg.ChatID, ws.MsgQueryExecuted, resp)
	jsonResponse(w, http.StatusOK, resp)
}

func (s *Server) handleSchema(w http.ResponseWriter, r *http.Request) {
	id, err := strconv.ParseInt(r.URL.Query().Get("project_id"), 10, 64)
	if err != nil || id == 0 {
		errorResponse(w, http.StatusBadRequest, "project_id is required")
		return
	}

	tables, err := s.engine.ProjectSchema(r.Context(), id)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, SchemaResponse{ProjectID: id, Tables: tables})
}

func (s *Server) handleHistory(w http.ResponseWriter, r *http.Request) {
	chatID := strings.TrimSpace(r.URL.Query().Get("chat_id"))
	if chatID == "" {
		errorResponse(w, http.StatusBadRequest, "chat_id is required")
		return
	}

	msgs, err := s.engine.ChatHistory(r.Context(), chatID)
	if err != nil {
		errorResponse(w, statusFor(err), err.Error())
		return
	}
	jsonResponse(w, http.StatusOK, HistoryResponse{ChatID: chatID, Messages: msgs})
}

// handleReport generates a narrative report. ?format=text returns the
// plain-text rendering instead of JSON.
func (s *Server) handleReport(w http.ResponseWriter, r *http.Request) {
	var req report.Request
	if err := json.NewDecoder(r.Body).Decode(&req); err != nil {
		errorResponse(w, http.StatusBadRequest, "invalid request body")
		return
	}

	rep, err := s.engine.GenerateReport(r.Context(), req)
	if err != nil {
		status := statusFor(err)
		s.logger.Error("report failed", "status", status, "error", err)
		errorResponse(w, status, err.Error())
		return
	}
	s.broadcast("", ws.MsgReportReady, ReportEvent{Title: rep.Title, Model: rep.Model, Sections: len(rep.Sections)})

	if r.URL.Query().Get("format") == "text" {
		w.Header().Set("Content-Type", "text/plain; charset=utf-8")
		w.WriteHeader(http.StatusOK)
		io.WriteString(w, report.FormatText(rep))
		return
	}
	jsonResponse(w, http.StatusOK, rep)
}

// statusFor maps an engine error to an HTTP status.
func statusFor(err error) int {
	var inferErr *inference.Error
	switch {
	case errors.As(err, &inferErr),
		errors.Is(err, inference.ErrUnsupportedFormat),
		errors.Is(err, inference.ErrMalformedInput),
		errors.Is(err, inference.ErrEmptyInput),
		errors.Is(err, inference.ErrSchema),
		errors.Is(err, query.ErrEmptyQuery),
		errors.Is(err, query.ErrInvalidQuery),
		errors.Is(err, report.ErrNoData):
		return http.StatusBadRequest
	case errors.Is(err, store.ErrNotFound), errors.Is(err, filestore.ErrNotFound):
		return http.StatusNotFound
	case errors.Is(err, engine.ErrNoStore), errors.Is(err, report.ErrNotConfigured):
		return http.StatusServiceUnavailable
	case errors.Is(err, report.ErrGeneration):
		return http.StatusBadGateway
	default:
		return http.StatusInternalServerError
	}
}
