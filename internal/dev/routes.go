package dev

import (
	"encoding/json"
	"net/http"
	"strconv"
	"time"

	"github.com/go-chi/chi/v5"
	chimw "github.com/go-chi/chi/v5/middleware"
	"go.opentelemetry.io/otel/attribute"

	"github.com/vango-dev/devd/internal/build"
	"github.com/vango-dev/devd/internal/logs"
	"github.com/vango-dev/devd/internal/metrics"
	"github.com/vango-dev/devd/internal/reload"
	"github.com/vango-dev/devd/internal/watch"
	"github.com/vango-dev/devd/pkg/middleware"
)

const tracerName = "devd/server"

// routes builds the HTTP handler.
func (s *Server) routes() http.Handler {
	r := chi.NewRouter()
	r.Use(chimw.RequestID)
	r.Use(middleware.OpenTelemetry(
		middleware.WithTracerName(tracerName),
		middleware.WithAttributeExtractor(func(r *http.Request) []attribute.KeyValue {
			return []attribute.KeyValue{attribute.String("http.request_id", chimw.GetReqID(r.Context()))}
		}),
	))
	r.Use(s.httpMetrics)
	r.Use(s.countRequests)
	r.Use(chimw.Recoverer)
	r.Use(s.countPanics)

	r.Get("/api/status", s.handleStatus)
	r.Get("/api/build", s.handleBuild)
	r.Post("/api/build", s.handleBuild)
	r.Get("/api/logs", s.handleLogs)
	r.Delete("/api/logs", s.handleClearLogs)
	r.HandleFunc("/api/*", s.handleAPINotFound)

	r.Handle("/ws", s.hub.Handler())
	if s.config.EnableMetrics {
		r.Handle("/metrics", s.metrics.Handler())
	}
	r.Get(reload.ScriptPath, s.handleClientScript)

	r.Get("/*", s.handleStatic)
	r.Head("/*", s.handleStatic)

	return r
}

// countRequests feeds the request counter behind /api/status.
func (s *Server) countRequests(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.metrics.RecordRequest()
		next.ServeHTTP(w, r)
	})
}

// countPanics records a handler panic as a server error and passes it on
// to chi's Recoverer, which writes the 500.
func (s *Server) countPanics(next http.Handler) http.Handler {
	return http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		defer func() {
			if rec := recover(); rec != nil {
				if rec != http.ErrAbortHandler {
					s.metrics.RecordError()
					s.logger.Error("Handler panic", "path", r.URL.Path, "panic", rec)
				}
				panic(rec)
			}
		}()
		next.ServeHTTP(w, r)
	})
}

// StatusResponse is the body of GET /api/status.
type StatusResponse struct {
	Status    State                 `json:"status"`
	Uptime    int64                 `json:"uptime"`
	Metrics   metrics.ServerMetrics `json:"metrics"`
	Clients   int                   `json:"clients"`
	HotReload bool                  `json:"hotReload"`
	Building  bool                  `json:"building"`
	LastBuild *build.Result         `json:"lastBuild"`
	Watch     *watch.Stats          `json:"watch,omitempty"`
}

func (s *Server) status() StatusResponse {
	resp := StatusResponse{
		Status:    s.State(),
		Uptime:    s.Uptime().Milliseconds(),
		Metrics:   s.metrics.Metrics(),
		Clients:   s.hub.ConnectedClients(),
		HotReload: s.config.HotReload,
		Building:  s.builder.Building(),
		LastBuild: s.builder.LastResult(),
	}

	s.mu.Lock()
	w := s.watcher
	s.mu.Unlock()
	if w != nil {
		stats := w.Stats()
		resp.Watch = &stats
	}
	return resp
}

func (s *Server) handleStatus(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusOK, s.status())
}

func (s *Server) handleBuild(w http.ResponseWriter, r *http.Request) {
	result, err := s.builder.Build(r.Context())
	if err != nil {
		writeJSON(w, http.StatusInternalServerError, map[string]string{"error": err.Error()})
		return
	}
	writeJSON(w, http.StatusOK, result)
}

// LogsResponse is the body of GET /api/logs.
type LogsResponse struct {
	Entries []logs.Entry `json:"entries"`
	Count   int          `json:"count"`
}

func (s *Server) handleLogs(w http.ResponseWriter, r *http.Request) {
	var filter logs.Filter
	q := r.URL.Query()

	if v := q.Get("level"); v != "" {
		level, ok := logs.ParseLevel(v)
		if !ok {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid level " + strconv.Quote(v)})
			return
		}
		filter.Level = level
	}
	filter.Source = q.Get("source")
	if v := q.Get("since"); v != "" {
		since, err := parseSince(v)
		if err != nil {
			writeJSON(w, http.StatusBadRequest, map[string]string{"error": "invalid since " + strconv.Quote(v)})
			return
		}
		filter.Since = since
	}

	entries := s.logs.Entries(filter)
	writeJSON(w, http.StatusOK, LogsResponse{Entries: entries, Count: len(entries)})
}

// parseSince accepts RFC 3339 timestamps or Unix milliseconds.
func parseSince(v string) (time.Time, error) {
	if ms, err := strconv.ParseInt(v, 10, 64); err == nil {
		return time.UnixMilli(ms), nil
	}
	return time.Parse(time.RFC3339, v)
}

func (s *Server) handleClearLogs(w http.ResponseWriter, r *http.Request) {
	s.logs.Clear()
	w.WriteHeader(http.StatusNoContent)
}

func (s *Server) handleAPINotFound(w http.ResponseWriter, r *http.Request) {
	writeJSON(w, http.StatusNotFound, map[string]string{"error": "not found: " + r.URL.Path})
}

func (s *Server) handleClientScript(w http.ResponseWriter, r *http.Request) {
	w.Header().Set("Content-Type", "application/javascript; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write([]byte(reload.ClientScript))
}

func writeJSON(w http.ResponseWriter, status int, v any) {
	w.Header().Set("Content-Type", "application/json")
	w.Header().Set("Cache-Control", "no-cache")
	w.WriteHeader(status)
	_ = json.NewEncoder(w).Encode(v)
}
