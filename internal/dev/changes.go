package dev

import (
	"context"
	stderrors "errors"
	"fmt"
	"time"

	"github.com/vango-dev/devd/internal/build"
	"github.com/vango-dev/devd/internal/logs"
	"github.com/vango-dev/devd/internal/metrics"
	"github.com/vango-dev/devd/internal/reload"
	"github.com/vango-dev/devd/internal/watch"
)

// ErrorPayload is the data of an error broadcast.
type ErrorPayload struct {
	Message   string             `json:"message"`
	Errors    []build.Diagnostic `json:"errors,omitempty"`
	Timestamp int64              `json:"timestamp"`
}

// processChanges serializes change handling. Changes that queue up while a
// build runs are drained into one batch.
func (s *Server) processChanges(ctx context.Context, changes <-chan watch.FileChangeEvent, done chan<- struct{}) {
	defer close(done)
	for {
		select {
		case <-ctx.Done():
			return
		case change := <-changes:
			batch := []watch.FileChangeEvent{change}
			draining := true
			for draining {
				select {
				case next := <-changes:
					batch = append(batch, next)
				default:
					draining = false
				}
			}
			s.handleChanges(ctx, batch)
		}
	}
}

// handleChanges logs each change, builds once and then tells clients to
// reload the changed files whatever the build outcome.
func (s *Server) handleChanges(ctx context.Context, batch []watch.FileChangeEvent) {
	if len(batch) == 0 {
		return
	}

	files := make([]string, 0, len(batch))
	seen := make(map[string]struct{}, len(batch))
	for _, change := range batch {
		s.logger.Info(fmt.Sprintf("File %s: %s", change.Kind, change.RelPath),
			"kind", string(change.Kind), "path", change.RelPath)
		if _, ok := seen[change.RelPath]; ok {
			continue
		}
		seen[change.RelPath] = struct{}{}
		files = append(files, change.RelPath)
	}

	s.rebuild(ctx)
	if ctx.Err() != nil {
		return
	}
	s.hub.Reload(files)
}

// rebuild runs a build. When another build is in flight it waits for that
// build and runs once more so the latest sources are built.
func (s *Server) rebuild(ctx context.Context) {
	for {
		_, err := s.builder.Build(ctx)
		if err == nil {
			return
		}
		if !stderrors.Is(err, build.ErrBuildInProgress) {
			s.logger.Error("Build failed to run", "error", err)
			return
		}

		s.logger.Debug("Build in progress, rebuilding when it finishes")
		select {
		case <-s.builder.Wait():
		case <-ctx.Done():
			return
		}
	}
}

func (s *Server) buildCompleted(result *build.Result) {
	s.metrics.RecordBuildTime(result.Duration)
	s.logger.Info(fmt.Sprintf("Build completed in %dms", result.DurationMs),
		"id", result.ID,
		"strategy", string(result.Strategy),
		"assets", len(result.Assets),
		"warnings", len(result.Warnings))
	s.hub.Broadcast(reload.Message{Type: reload.TypeBuild, Data: result})
}

func (s *Server) buildFailed(result *build.Result) {
	s.metrics.RecordBuildTime(result.Duration)
	s.metrics.RecordError()

	summary := result.Summary()
	s.logger.Error("Build failed: "+summary,
		"id", result.ID,
		"errors", len(result.Errors))
	s.hub.Broadcast(reload.Message{
		Type: reload.TypeError,
		Data: ErrorPayload{
			Message:   summary,
			Errors:    result.Errors,
			Timestamp: time.Now().UnixMilli(),
		},
	})
}

// forwardLog broadcasts log entries when enabled. Entries from the broadcast
// hub itself are not forwarded.
func (s *Server) forwardLog(entry logs.Entry) {
	if !s.config.EnableLogs || entry.Source == "reload" {
		return
	}
	s.hub.Broadcast(reload.Message{Type: reload.TypeLog, Data: entry})
}

func (s *Server) forwardMetrics(m metrics.ServerMetrics) {
	if !s.config.EnableMetrics {
		return
	}
	s.hub.Broadcast(reload.Message{Type: reload.TypeMetrics, Data: m})
}
