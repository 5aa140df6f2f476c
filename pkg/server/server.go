// Copyright (C) 2026  Go Migration Team
//
// This file may be distributed under the terms of the GNU GPLv3 license.

// Package server exposes parse jobs over HTTP and WebSocket. Every
// WebSocket connection owns one worker; the REST endpoints analyze a
// posted body synchronously and report service state.
package server

import (
	"context"
	"encoding/json"
	"io"
	"net/http"
	"strconv"
	"sync"
	"sync/atomic"
	"time"

	"github.com/gorilla/websocket"

	"gcodeviewer-go/pkg/errors"
	"gcodeviewer-go/pkg/log"
	"gcodeviewer-go/pkg/metrics"
	"gcodeviewer-go/pkg/source"
	"gcodeviewer-go/pkg/viewer"
)

// Version is reported by /server/info.
const Version = "0.1.0"

// DefaultMaxBodyBytes limits bodies posted to /api/analyze.
const DefaultMaxBodyBytes = 256 << 20

// Config holds server configuration.
type Config struct {
	// Addr to listen on, e.g. ":7130".
	Addr string
	// WebsocketPath defaults to "/websocket".
	WebsocketPath string

	// Opener resolves parse requests; its Root also backs the file
	// endpoints.
	Opener *viewer.Opener
	// Defaults are the options every new connection starts from.
	Defaults viewer.Options

	Metrics         *metrics.ViewerMetrics
	MetricsUser     string
	MetricsPassword string

	MaxBodyBytes int64
	HistorySize  int
}

// Server is the HTTP and WebSocket front of the parse workers.
type Server struct {
	cfg        Config
	log        *log.Logger
	metrics    *metrics.ViewerMetrics
	httpServer *http.Server

	upgrader websocket.Upgrader
	clients  map[int64]*WSClient
	clientMu sync.RWMutex
	nextID   int64

	files   *Files
	history *History

	restSeq   atomic.Int64
	stopping  atomic.Bool
	startTime time.Time
}

// New creates a server. It does not listen until Start.
func New(cfg Config) *Server {
	if cfg.WebsocketPath == "" {
		cfg.WebsocketPath = "/websocket"
	}
	if cfg.Opener == nil {
		cfg.Opener = &viewer.Opener{}
	}
	if cfg.Metrics == nil {
		cfg.Metrics = metrics.Global()
	}
	if cfg.MaxBodyBytes <= 0 {
		cfg.MaxBodyBytes = DefaultMaxBodyBytes
	}
	if cfg.Defaults.Bed == nil {
		cfg.Defaults = viewer.DefaultOptions()
	}
	s := &Server{
		cfg:     cfg,
		log:     log.GetLogger("server"),
		metrics: cfg.Metrics,
		upgrader: websocket.Upgrader{
			CheckOrigin: func(r *http.Request) bool { return true },
		},
		clients:   make(map[int64]*WSClient),
		files:     NewFiles(cfg.Opener.Root),
		history:   NewHistory(cfg.HistorySize),
		startTime: time.Now(),
	}
	s.httpServer = &http.Server{
		Addr:              cfg.Addr,
		Handler:           s.Handler(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	return s
}

// History returns the job history.
func (s *Server) History() *History {
	return s.history
}

// Handler returns the full route table wrapped in CORS handling.
func (s *Server) Handler() http.Handler {
	mux := http.NewServeMux()
	mux.HandleFunc(s.cfg.WebsocketPath, s.handleWebSocket)
	mux.HandleFunc("/api/analyze", s.handleAnalyze)
	mux.HandleFunc("/server/info", s.handleServerInfo)
	mux.Handle("/metrics", metrics.NewHandler(s.metrics, s.cfg.MetricsUser, s.cfg.MetricsPassword))
	s.files.Register(mux)
	s.history.Register(mux)
	return corsMiddleware(mux)
}

// Start listens on the configured address and blocks until Shutdown.
// It returns nil after a clean shutdown.
func (s *Server) Start() error {
	s.log.Info("listening on %s (websocket %s)", s.cfg.Addr, s.cfg.WebsocketPath)

	err := s.httpServer.ListenAndServe()
	if err == http.ErrServerClosed {
		return nil
	}
	return err
}

// Shutdown stops accepting connections, closes every WebSocket client
// (cancelling its job) and waits for HTTP handlers until ctx expires.
func (s *Server) Shutdown(ctx context.Context) error {
	s.stopping.Store(true)

	s.clientMu.Lock()
	clients := make([]*WSClient, 0, len(s.clients))
	for _, c := range s.clients {
		clients = append(clients, c)
	}
	s.clientMu.Unlock()
	for _, c := range clients {
		c.Close()
	}

	return s.httpServer.Shutdown(ctx)
}

func (s *Server) handleServerInfo(w http.ResponseWriter, r *http.Request) {
	s.clientMu.RLock()
	clients := len(s.clients)
	s.clientMu.RUnlock()
	state := "ready"
	if s.stopping.Load() {
		state = "shutdown"
	}
	parse := s.metrics.ParseSeconds.GetSnapshot(nil)
	avgParse := 0.0
	if parse.Count > 0 {
		avgParse = parse.Sum / float64(parse.Count)
	}

	writeJSON(w, map[string]any{
		"result": map[string]any{
			"state":          state,
			"version":        Version,
			"websocket_path": s.cfg.WebsocketPath,
			"clients":        clients,
			"active_jobs":    s.metrics.ActiveJobs.Get(nil),
			"uptime":         time.Since(s.startTime).Seconds(),
			"gcode_root":     s.cfg.Opener.Root != "",
			"jobs_parsed":    parse.Count,
			"avg_parse_time": avgParse,
		},
	})
}

// handleAnalyze parses the posted G-code synchronously and returns the
// summary. Job options come from the "options" query parameter as JSON.
func (s *Server) handleAnalyze(w http.ResponseWriter, r *http.Request) {
	if r.Method != http.MethodPost {
		http.Error(w, "Method not allowed", http.StatusMethodNotAllowed)
		return
	}
	opts, err := s.cfg.Defaults.Apply(json.RawMessage(r.URL.Query().Get("options")))
	if err != nil {
		writeJSONError(w, err, http.StatusBadRequest)
		return
	}
	data, err := io.ReadAll(http.MaxBytesReader(w, r.Body, s.cfg.MaxBodyBytes))
	if err != nil {
		writeJSONError(w, errors.SourceIOError("request body", err), http.StatusBadRequest)
		return
	}

	id := "rest-" + strconv.FormatInt(s.restSeq.Add(1), 10)
	job := viewer.NewJob(id, opts)
	s.metrics.JobStarted(viewer.SourceInline)
	s.history.Start(id, id, viewer.SourceInline, "request body")

	sum, err := job.Run(r.Context(), source.NewBuffer(string(data)), viewer.Discard)
	stats := job.Stats()
	s.history.Finish(id, sum, stats, err)
	if err != nil {
		if errors.Is(err, errors.ErrJobCancelled) {
			s.metrics.JobCancelled()
		} else {
			s.metrics.JobFailed(string(errors.CodeOf(err)))
		}
		writeJSONError(w, err, http.StatusUnprocessableEntity)
		return
	}
	s.metrics.JobCompleted(stats.ParseTime, stats.AnalyzeTime, stats.Lines, stats.Layers)
	writeJSON(w, map[string]any{"result": sum})
}

func corsMiddleware(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		w.Header().Set("Access-Control-Allow-Origin", "*")
		w.Header().Set("Access-Control-Allow-Methods", "GET, POST, DELETE, OPTIONS")
		w.Header().Set("Access-Control-Allow-Headers", "Content-Type, Authorization")

		if r.Method == http.MethodOptions {
			w.WriteHeader(http.StatusOK)
			return
		}
		next.ServeHTTP(w, r)
	})
}

func writeJSON(w http.ResponseWriter, data any) {
	w.Header().Set("Content-Type", "application/json")
	_ = json.NewEncoder(w).Encode(data)
}

func writeJSONError(w http.ResponseWriter, err error, status int) {
	w.Header().Set("Content-Type", "application/json")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(map[string]any{
		"error": map[string]any{
			"code":    string(errors.CodeOf(err)),
			"message": err.Error(),
		},
	})
}
