package dev

import (
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"net"
	"net/http"
	"sync"
	"time"

	"github.com/vango-dev/devd/internal/build"
	"github.com/vango-dev/devd/internal/config"
	"github.com/vango-dev/devd/internal/errors"
	"github.com/vango-dev/devd/internal/event"
	"github.com/vango-dev/devd/internal/glob"
	"github.com/vango-dev/devd/internal/logs"
	"github.com/vango-dev/devd/internal/metrics"
	"github.com/vango-dev/devd/internal/reload"
	"github.com/vango-dev/devd/internal/watch"
	"github.com/vango-dev/devd/pkg/middleware"
)

// State is the server lifecycle state.
type State string

const (
	StateIdle     State = "idle"
	StateStarting State = "starting"
	StateRunning  State = "running"
	StateStopping State = "stopping"
	StateStopped  State = "stopped"
	StateError    State = "error"
)

// ErrAlreadyRunning is wrapped by the error Start returns when the server is
// starting or running.
var ErrAlreadyRunning = stderrors.New("server already running")

// changeQueueSize bounds change events waiting for the change loop.
const changeQueueSize = 64

// shutdownTimeout bounds listener shutdown when Stop's context has no
// deadline.
const shutdownTimeout = 5 * time.Second

// ServerOptions configures the development server.
type ServerOptions struct {
	// Config is the project configuration. Required.
	Config *config.Config

	// Logs receives every engine log line. When nil a buffer is created from
	// the config.
	Logs *logs.Buffer

	// OpenBrowser is called with the server URL once running when
	// Config.OpenBrowser is set.
	OpenBrowser func(url string) error
}

// Server is the development server.
type Server struct {
	config  *config.Config
	options ServerOptions
	logger  *slog.Logger

	logs    *logs.Buffer
	metrics *metrics.Sampler
	hub     *reload.Hub
	builder *build.Orchestrator

	httpMetrics func(http.Handler) http.Handler

	mu         sync.Mutex
	state      State
	startedAt  time.Time
	httpServer *http.Server
	addr       string
	watcher    *watch.Watcher
	patterns   []string
	cancel     context.CancelFunc
	loopDone   chan struct{}

	// OnStart is emitted with the server URL once running.
	OnStart event.Emitter[string]
	// OnStop is emitted once stopped.
	OnStop event.Emitter[struct{}]
	// OnRestart is emitted after a successful Restart.
	OnRestart event.Emitter[struct{}]
	// OnError is emitted when starting fails or the listener dies.
	OnError event.Emitter[error]
}

// NewServer creates a development server in the idle state.
func NewServer(options ServerOptions) *Server {
	cfg := options.Config
	if cfg == nil {
		cfg = config.New()
		options.Config = cfg
	}

	buf := options.Logs
	if buf == nil {
		buf = logs.NewBuffer(logs.Options{
			MaxEntries: cfg.Logs.BufferSize,
			Quiet:      cfg.Quiet,
			Verbose:    cfg.Verbose,
		})
	}
	logger := slog.New(buf.Handler("server", slog.LevelDebug))

	hub := reload.NewHub()
	hub.SetLogger(logger.With(logs.SourceKey, "reload"))

	s := &Server{
		config:  cfg,
		options: options,
		logger:  logger.With(logs.SourceKey, "server"),
		logs:    buf,
		metrics: metrics.NewSampler(metrics.Options{
			Interval: cfg.Metrics.Interval.Duration,
		}),
		hub:      hub,
		builder:  build.New(BuildOptions(cfg, logger.With(logs.SourceKey, "build"))),
		state:    StateIdle,
		patterns: CollectWatchPatterns(cfg),
	}

	s.httpMetrics = middleware.Prometheus(
		middleware.WithRegistry(s.metrics.Registerer()),
		middleware.WithSkip(func(r *http.Request) bool { return r.URL.Path == "/ws" }),
	)

	s.builder.OnComplete.Subscribe(s.buildCompleted)
	s.builder.OnError.Subscribe(s.buildFailed)
	s.logs.OnEntry.Subscribe(s.forwardLog)
	s.metrics.OnUpdate.Subscribe(s.forwardMetrics)

	return s
}

// BuildOptions maps the project configuration onto build orchestrator
// options.
func BuildOptions(cfg *config.Config, logger *slog.Logger) build.Options {
	return build.Options{
		Root:           cfg.Root(),
		SrcDir:         cfg.SrcDir,
		DistDir:        cfg.DistDir,
		PublicDir:      cfg.PublicDir,
		Compiler:       cfg.Build.Compiler,
		Args:           cfg.Build.Args,
		ProjectFile:    cfg.Build.ProjectFile,
		Timeout:        cfg.Build.Timeout.Duration,
		CopyExtensions: cfg.Build.CopyExtensions,
		Verbose:        cfg.Verbose,
		Logger:         logger,
	}
}

// Start brings the server to the running state: it starts the metrics
// sampler, enables broadcasts, binds the listener, starts the watcher when
// hot reload is on, runs an initial build and opens the browser if asked.
// Only configuration, listener and watcher failures are returned; a failed
// initial build is logged. Start is accepted from idle, stopped and error,
// so a start that failed can be retried.
func (s *Server) Start(ctx context.Context) error {
	s.mu.Lock()
	switch s.state {
	case StateStarting, StateRunning, StateStopping:
		state := s.state
		s.mu.Unlock()
		return errors.New("E240").
			WithDetail(fmt.Sprintf("Start called in state %q", state)).
			Wrap(ErrAlreadyRunning)
	}
	s.state = StateStarting
	s.mu.Unlock()

	if err := s.config.Validate(); err != nil {
		return s.fail(err)
	}

	s.metrics.Start()
	s.hub.Enable()

	ln, err := net.Listen("tcp", s.config.Address())
	if err != nil {
		s.metrics.Stop()
		s.hub.Disable()
		return s.fail(errors.New("E241").WithDetail("address " + s.config.Address()).Wrap(err))
	}

	srv := &http.Server{
		Handler:           s.routes(),
		ReadHeaderTimeout: 10 * time.Second,
	}
	go s.serve(srv, ln)

	runCtx, cancel := context.WithCancel(context.WithoutCancel(ctx))

	var (
		w        *watch.Watcher
		loopDone chan struct{}
	)
	if s.config.HotReload {
		w, loopDone, err = s.startWatcher(runCtx)
		if err != nil {
			cancel()
			s.metrics.Stop()
			s.hub.Disable()
			_ = srv.Close()
			return s.fail(errors.New("E242").Wrap(err))
		}
	}

	s.mu.Lock()
	s.httpServer = srv
	s.addr = ln.Addr().String()
	s.watcher = w
	s.cancel = cancel
	s.loopDone = loopDone
	s.startedAt = time.Now()
	s.mu.Unlock()

	url := s.URL()
	s.logger.Info("Server listening on " + url)

	if _, err := s.builder.Build(ctx); err != nil {
		s.logger.Warn("Initial build skipped", "error", err)
	}

	if s.config.OpenBrowser && s.options.OpenBrowser != nil {
		if err := s.options.OpenBrowser(url); err != nil {
			s.logger.Warn("Could not open browser", "url", url, "error", err)
		}
	}

	s.mu.Lock()
	s.state = StateRunning
	s.mu.Unlock()

	s.OnStart.Emit(url)
	return nil
}

func (s *Server) serve(srv *http.Server, ln net.Listener) {
	if err := srv.Serve(ln); err != nil && !stderrors.Is(err, http.ErrServerClosed) {
		s.logger.Error("HTTP server stopped", "error", err)
		s.OnError.Emit(err)
	}
}

func (s *Server) startWatcher(ctx context.Context) (*watch.Watcher, chan struct{}, error) {
	w, err := watch.New(watch.Options{
		Root:     s.config.Root(),
		Debounce: s.config.Watch.Debounce.Duration,
		Ignore:   s.config.IgnoreList(),
		Logger:   s.logger.With(logs.SourceKey, "watch"),
	})
	if err != nil {
		return nil, nil, err
	}

	s.mu.Lock()
	patterns := append([]string(nil), s.patterns...)
	s.mu.Unlock()

	for _, pattern := range patterns {
		if err := w.AddPattern(pattern); err != nil {
			s.logger.Warn("Watch pattern abandoned", "pattern", pattern, "error", err)
		}
	}

	changes := make(chan watch.FileChangeEvent, changeQueueSize)
	w.OnChange.Subscribe(func(ev watch.FileChangeEvent) {
		select {
		case changes <- ev:
		default:
			s.logger.Warn("Change queue full, dropping event", "path", ev.RelPath)
		}
	})
	w.OnError.Subscribe(func(err error) {
		s.metrics.RecordError()
	})

	done := make(chan struct{})
	go s.processChanges(ctx, changes, done)
	return w, done, nil
}

// fail moves the server to the error state and returns err.
func (s *Server) fail(err error) error {
	s.mu.Lock()
	s.state = StateError
	s.mu.Unlock()

	s.logger.Error("Server failed to start", "error", err)
	s.OnError.Emit(err)
	return err
}

// Stop stops the watcher, the build orchestrator, the metrics sampler, the
// broadcast channel and the listener, in that order. It is a no-op unless
// the server is running.
func (s *Server) Stop(ctx context.Context) error {
	s.mu.Lock()
	if s.state != StateRunning {
		s.mu.Unlock()
		return nil
	}
	s.state = StateStopping
	w := s.watcher
	cancel := s.cancel
	loopDone := s.loopDone
	srv := s.httpServer
	s.watcher = nil
	s.cancel = nil
	s.loopDone = nil
	s.httpServer = nil
	s.mu.Unlock()

	if w != nil {
		if err := w.Stop(); err != nil {
			s.logger.Debug("watcher stop", "error", err)
		}
	}
	if cancel != nil {
		cancel()
	}
	s.builder.Stop()
	if loopDone != nil {
		<-loopDone
	}

	s.metrics.Stop()
	s.hub.Disable()

	var shutdownErr error
	if srv != nil {
		if _, ok := ctx.Deadline(); !ok {
			var cancelShutdown context.CancelFunc
			ctx, cancelShutdown = context.WithTimeout(ctx, shutdownTimeout)
			defer cancelShutdown()
		}
		if err := srv.Shutdown(ctx); err != nil {
			_ = srv.Close()
			shutdownErr = err
		}
	}

	s.mu.Lock()
	s.state = StateStopped
	s.mu.Unlock()

	s.logger.Info("Server stopped")
	s.OnStop.Emit(struct{}{})
	return shutdownErr
}

// Restart stops and starts the server.
func (s *Server) Restart(ctx context.Context) error {
	if err := s.Stop(ctx); err != nil {
		s.logger.Warn("Restart: stop", "error", err)
	}
	if err := s.Start(ctx); err != nil {
		return err
	}
	s.OnRestart.Emit(struct{}{})
	return nil
}

// State returns the lifecycle state.
func (s *Server) State() State {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.state
}

// Addr returns the bound listener address, or "" before the first Start.
func (s *Server) Addr() string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.addr
}

// URL returns the server URL using the bound port.
func (s *Server) URL() string {
	addr := s.Addr()
	if addr == "" {
		return s.config.URL()
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return s.config.URL()
	}
	return "http://" + net.JoinHostPort(s.config.Host, port)
}

// Uptime returns the time since the server last reached the listening
// state, or zero when not running.
func (s *Server) Uptime() time.Duration {
	s.mu.Lock()
	defer s.mu.Unlock()
	if s.state != StateRunning && s.state != StateStarting {
		return 0
	}
	return time.Since(s.startedAt)
}

// AddWatchPattern watches pattern, relative to the project root, from now
// on. It is remembered across restarts.
func (s *Server) AddWatchPattern(pattern string) error {
	if err := glob.Validate(pattern); err != nil {
		return errors.New("E125").WithDetail("pattern " + pattern).Wrap(err)
	}

	s.mu.Lock()
	s.patterns = CollectWatchPatterns(&config.Config{WatchPatterns: s.patterns}, pattern)
	w := s.watcher
	s.mu.Unlock()

	if w == nil {
		return nil
	}
	return w.AddPattern(pattern)
}

// RemoveWatchPattern stops watching pattern.
func (s *Server) RemoveWatchPattern(pattern string) {
	s.mu.Lock()
	kept := s.patterns[:0]
	for _, p := range s.patterns {
		if p != pattern {
			kept = append(kept, p)
		}
	}
	s.patterns = kept
	w := s.watcher
	s.mu.Unlock()

	if w != nil {
		w.RemovePattern(pattern)
	}
}

// WatchPatterns returns the configured watch patterns.
func (s *Server) WatchPatterns() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.patterns...)
}

// Broadcast sends msg to every connected client and returns how many
// received it.
func (s *Server) Broadcast(msg reload.Message) int {
	return s.hub.Broadcast(msg)
}

// ConnectedClients returns the number of connected hot reload clients.
func (s *Server) ConnectedClients() int {
	return s.hub.ConnectedClients()
}

// Build runs a build through the orchestrator.
func (s *Server) Build(ctx context.Context) (*build.Result, error) {
	return s.builder.Build(ctx)
}

// Logs returns the log buffer.
func (s *Server) Logs() *logs.Buffer { return s.logs }

// Metrics returns the metrics sampler.
func (s *Server) Metrics() *metrics.Sampler { return s.metrics }

// Builder returns the build orchestrator.
func (s *Server) Builder() *build.Orchestrator { return s.builder }

// Hub returns the broadcast hub.
func (s *Server) Hub() *reload.Hub { return s.hub }

// Logger returns the server logger. Records land in the log buffer.
func (s *Server) Logger() *slog.Logger { return s.logger }
