// Package api serves the upload, chat and report endpoints used by the web
// frontend.
package api

import (
	"context"
	"encoding/json"
	"fmt"
	"io/fs"
	"log/slog"
	"net/http"
	"strings"

	"github.com/datachat/datachat/internal/engine"
	"github.com/datachat/datachat/internal/project"
	"github.com/datachat/datachat/internal/ws"
)

// Server is the REST API server for the web UI.
type Server struct {
	engine         *engine.Engine
	tracker        *project.Tracker
	hub            *ws.Hub
	logger         *slog.Logger
	port           int
	server         *http.Server
	staticFS       fs.FS
	cors           bool
	maxUploadBytes int64
}

// Option configures the API server.
type Option func(*Server)

// WithStaticFS sets the filesystem holding the built frontend.
func WithStaticFS(fsys fs.FS) Option {
	return func(s *Server) {
		s.staticFS = fsys
	}
}

// WithCORS allows cross-origin requests and websocket connections.
func WithCORS(enabled bool) Option {
	return func(s *Server) {
		s.cors = enabled
	}
}

// WithHub sets the WebSocket hub.
func WithHub(hub *ws.Hub) Option {
	return func(s *Server) {
		s.hub = hub
	}
}

// WithTracker overrides the project tracker used by session-tracked uploads.
func WithTracker(t *project.Tracker) Option {
	return func(s *Server) {
		s.tracker = t
	}
}

// WithMaxUploadBytes overrides the upload size limit from the config.
func WithMaxUploadBytes(n int64) Option {
	return func(s *Server) {
		s.maxUploadBytes = n
	}
}

// New creates a new API server. Session-tracked uploads are enabled when the
// engine has a document store.
func New(eng *engine.Engine, logger *slog.Logger, port int, opts ...Option) *Server {
	s := &Server{
		engine:         eng,
		logger:         logger,
		port:           port,
		maxUploadBytes: eng.Config.Upload.MaxBytes,
	}
	if eng.Store != nil {
		s.tracker = project.NewTracker(eng.Store, logger)
	}
	for _, opt := range opts {
		opt(s)
	}
	if s.hub != nil {
		s.hub.SetStatusProvider(s.statusJSON)
		if s.cors {
			s.hub.SetOriginPatterns([]string{"*"})
		}
	}
	return s
}

// Handler returns the routed handler with request logging and, when
// enabled, CORS.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	s.registerRoutes(mux)

	var handler http.Handler = mux
	if s.cors {
		handler = s.corsMiddleware(handler)
	}
	return requestLogger(s.logger, handler)
}

// Start starts the HTTP server.
func (s *Server) Start() error {
	s.server = &http.Server{
		Addr:    fmt.Sprintf(":%d", s.port),
		Handler: s.Handler(),
	}

	s.logger.Info("starting server",
		"port", s.port,
		"cors", s.cors,
		"static", s.staticFS != nil,
		"projects", s.tracker != nil,
		"reports", s.engine.Reporter != nil,
	)
	return s.server.ListenAndServe()
}

// Shutdown gracefully stops the server.
func (s *Server) Shutdown(ctx context.Context) error {
	if s.server != nil {
		return s.server.Shutdown(ctx)
	}
	return nil
}

func (s *Server) registerRoutes(mux *http.ServeMux) {
	mux.HandleFunc("GET /api/health", s.handleHealth)
	mux.HandleFunc("POST /api/upload/{$}", s.handleUpload)
	mux.HandleFunc("POST /api/upload/start", s.handleUploadStart)
	mux.HandleFunc("POST /api/chat/query", s.handleQuery)
	mux.HandleFunc("GET /api/chat/schema", s.handleSchema)
	mux.HandleFunc("GET /api/chat/history", s.handleHistory)
	mux.HandleFunc("POST /api/report", s.handleReport)

	if s.hub != nil {
		mux.HandleFunc("/api/ws", s.hub.HandleWebSocket)
	}

	if s.staticFS != nil {
		mux.Handle("/", s.spaHandler())
	}
}

// spaHandler serves the frontend. For any path that is not a file it
// returns index.html so client-side routing works.
func (s *Server) spaHandler() http.Handler {
	fileServer := http.FileServer(http.FS(s.staticFS))
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		path := r.URL.Path
		if path == "/" {
			path = "index.html"
		} else {
			path = strings.TrimPrefix(path, "/")
		}

		f, err := s.staticFS.Open(path)
		if err == nil {
			f.Close()
			fileServer.ServeHTTP(w, r)
			return
		}

		r.URL.Path = "/"
		fileServer.ServeHTTP(w, r)
	})
}

func (s *Server) corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type")
		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusNoContent)
			return
		}
		next.ServeHTTP(w, r)
	})
}

// status reports which optional features are available.
func (s *Server) status(ctx context.Context) StatusResponse {
	st := StatusResponse{
		Status:  "ok",
		Store:   "disabled",
		Reports: "disabled",
	}
	if s.engine.Store != nil {
		st.Store = "connected"
		if err := s.engine.Ping(ctx); err != nil {
			st.Status = "degraded"
			st.Store = "unavailable"
		}
	}
	if s.engine.Reporter != nil {
		st.Reports = "enabled"
	}
	if s.hub != nil {
		st.Clients = s.hub.ClientCount()
	}
	return st
}

func (s *Server) statusJSON() ([]byte, error) {
	return json.Marshal(s.status(context.Background()))
}

// broadcast sends an event to websocket clients following chatID.
func (s *Server) broadcast(chatID string, typ ws.MessageType, payload any) {
	if s.hub == nil {
		return
	}
	s.hub.BroadcastChat(chatID, typ, payload)
}
