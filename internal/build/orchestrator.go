package build

import (
	"bytes"
	"context"
	stderrors "errors"
	"fmt"
	"log/slog"
	"os"
	"os/exec"
	"path/filepath"
	"sync"
	"sync/atomic"
	"time"

	"github.com/google/uuid"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"

	"github.com/vango-dev/devd/internal/errors"
	"github.com/vango-dev/devd/internal/event"
)

const (
	// DefaultCompiler is the compiler binary used by the compile strategy.
	DefaultCompiler = "tsc"

	// DefaultProjectFile selects the compile strategy when present at the root.
	DefaultProjectFile = "tsconfig.json"

	// PublicSubdir is where the public directory is copied inside the output.
	PublicSubdir = "public"

	tracerName = "devd/build"
)

// ErrBuildInProgress is wrapped by the error Build returns when another
// build is already running.
var ErrBuildInProgress = stderrors.New("build already in progress")

// Options configures an Orchestrator. Relative directories are resolved
// against Root.
type Options struct {
	Root      string
	SrcDir    string
	DistDir   string
	PublicDir string

	// Compiler is the binary run by the compile strategy (default: tsc).
	Compiler string
	// Args are appended to the compiler command line.
	Args []string
	// ProjectFile is the descriptor whose presence selects the compile
	// strategy (default: tsconfig.json).
	ProjectFile string
	// Timeout bounds one compiler run. Zero means no limit.
	Timeout time.Duration
	// CopyExtensions are the source extensions the copy strategy copies
	// (default: .js, .json).
	CopyExtensions []string

	Verbose bool
	Logger  *slog.Logger
}

// Start describes a build that has just begun.
type Start struct {
	ID        string    `json:"id"`
	Strategy  Strategy  `json:"strategy"`
	StartedAt time.Time `json:"startedAt"`
}

// Orchestrator runs one build at a time.
type Orchestrator struct {
	opts   Options
	logger *slog.Logger
	tracer trace.Tracer

	building atomic.Bool

	mu     sync.Mutex
	last   *Result
	cancel context.CancelFunc
	// running is non-nil while a build is in flight and is closed when it
	// finishes.
	running chan struct{}

	spawned atomic.Uint64

	// OnStart is emitted when a build begins.
	OnStart event.Emitter[Start]
	// OnComplete is emitted with every successful result.
	OnComplete event.Emitter[*Result]
	// OnError is emitted with every failed result.
	OnError event.Emitter[*Result]
}

// New creates an Orchestrator.
func New(opts Options) *Orchestrator {
	if opts.Root == "" {
		opts.Root = "."
	}
	if opts.SrcDir == "" {
		opts.SrcDir = "src"
	}
	if opts.DistDir == "" {
		opts.DistDir = "dist"
	}
	if opts.PublicDir == "" {
		opts.PublicDir = "public"
	}
	if opts.Compiler == "" {
		opts.Compiler = DefaultCompiler
	}
	if opts.ProjectFile == "" {
		opts.ProjectFile = DefaultProjectFile
	}
	if len(opts.CopyExtensions) == 0 {
		opts.CopyExtensions = []string{".js", ".json"}
	}

	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With("component", "build")
	}

	return &Orchestrator{
		opts:   opts,
		logger: logger,
		tracer: otel.Tracer(tracerName),
	}
}

// SelectStrategy picks the compile strategy when projectFile exists under
// root and the copy strategy otherwise.
func SelectStrategy(root, projectFile string) Strategy {
	path := projectFile
	if !filepath.IsAbs(path) {
		path = filepath.Join(root, path)
	}
	if info, err := os.Stat(path); err == nil && !info.IsDir() {
		return StrategyCompile
	}
	return StrategyCopy
}

// Strategy returns the strategy the next build would use.
func (o *Orchestrator) Strategy() Strategy {
	return SelectStrategy(o.opts.Root, o.opts.ProjectFile)
}

// Building reports whether a build is in flight.
func (o *Orchestrator) Building() bool {
	return o.building.Load()
}

// LastResult returns the most recent result, or nil before the first build.
func (o *Orchestrator) LastResult() *Result {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.last
}

// Wait returns a channel that is closed when the build in flight finishes.
// With no build running the channel is already closed.
func (o *Orchestrator) Wait() <-chan struct{} {
	o.mu.Lock()
	defer o.mu.Unlock()
	if o.running == nil {
		done := make(chan struct{})
		close(done)
		return done
	}
	return o.running
}

// Spawned returns how many compiler processes have been started.
func (o *Orchestrator) Spawned() uint64 {
	return o.spawned.Load()
}

// DistPath returns the resolved output directory.
func (o *Orchestrator) DistPath() string {
	return o.resolve(o.opts.DistDir)
}

// Build runs one build to completion. Toolchain failures are reported in the
// returned Result rather than as an error; the only error is a conflict with
// a build that is already running, which wraps ErrBuildInProgress.
func (o *Orchestrator) Build(ctx context.Context) (*Result, error) {
	runCtx, cancel := context.WithCancel(ctx)
	running := make(chan struct{})

	o.mu.Lock()
	if o.running != nil {
		o.mu.Unlock()
		cancel()
		o.logger.Debug("build rejected, another build is running")
		return nil, errors.New("E201").Wrap(ErrBuildInProgress)
	}
	o.cancel = cancel
	o.running = running
	o.building.Store(true)
	o.mu.Unlock()

	if o.opts.Timeout > 0 {
		var cancelTimeout context.CancelFunc
		runCtx, cancelTimeout = context.WithTimeout(runCtx, o.opts.Timeout)
		defer cancelTimeout()
	}

	defer func() {
		o.mu.Lock()
		o.cancel = nil
		o.running = nil
		o.building.Store(false)
		o.mu.Unlock()
		cancel()
		close(running)
	}()

	result := &Result{
		ID:        uuid.NewString(),
		Strategy:  o.Strategy(),
		StartedAt: time.Now(),
	}

	runCtx, span := o.tracer.Start(runCtx, "devd.build",
		trace.WithAttributes(
			attribute.String("build.id", result.ID),
			attribute.String("build.strategy", string(result.Strategy)),
		),
	)
	defer span.End()

	o.logger.Debug("build started", "id", result.ID, "strategy", result.Strategy)
	o.OnStart.Emit(Start{ID: result.ID, Strategy: result.Strategy, StartedAt: result.StartedAt})

	o.run(runCtx, result)

	result.Success = len(result.Errors) == 0
	result.Duration = time.Since(result.StartedAt)
	result.DurationMs = result.Duration.Milliseconds()

	span.SetAttributes(
		attribute.Int("build.errors", len(result.Errors)),
		attribute.Int("build.warnings", len(result.Warnings)),
		attribute.Int("build.assets", len(result.Assets)),
	)

	o.mu.Lock()
	o.last = result
	o.mu.Unlock()

	if result.Success {
		span.SetStatus(codes.Ok, "")
		o.OnComplete.Emit(result)
	} else {
		span.SetStatus(codes.Error, result.Summary())
		o.logger.Debug("build failed", "id", result.ID, "errors", len(result.Errors))
		o.OnError.Emit(result)
	}
	return result, nil
}

func (o *Orchestrator) run(ctx context.Context, result *Result) {
	dist := o.resolve(o.opts.DistDir)
	if err := os.MkdirAll(dist, 0755); err != nil {
		result.Errors = append(result.Errors, codedDiagnostic("E204", err))
		return
	}

	switch result.Strategy {
	case StrategyCompile:
		errs, warnings := o.compile(ctx)
		result.Errors = append(result.Errors, errs...)
		result.Warnings = append(result.Warnings, warnings...)
	default:
		if err := o.copySources(dist); err != nil {
			result.Errors = append(result.Errors, codedDiagnostic("E204", err))
		}
	}

	if err := o.copyPublic(dist); err != nil {
		result.Errors = append(result.Errors, codedDiagnostic("E205", err))
	}

	assets, err := collectAssets(dist)
	if err != nil {
		result.Errors = append(result.Errors, codedDiagnostic("E204", err))
	}
	result.Assets = assets
}

// compile runs the compiler and parses its output. stderr is parsed before
// stdout since tsc reports diagnostics on stdout.
func (o *Orchestrator) compile(ctx context.Context) (errs, warnings []Diagnostic) {
	args := []string{"--project", o.resolve(o.opts.ProjectFile)}
	if o.opts.Verbose {
		args = append(args, "--listEmittedFiles")
	}
	args = append(args, o.opts.Args...)

	var stdout, stderr bytes.Buffer
	proc, err := startProcess(o.opts.Compiler, args, o.opts.Root, os.Environ(), &stdout, &stderr)
	if err != nil {
		o.logger.Warn("compiler failed to start", "compiler", o.opts.Compiler, "error", err)
		return []Diagnostic{{Code: "E202", Message: fmt.Sprintf("failed to start %s: %v", o.opts.Compiler, err)}}, nil
	}
	o.spawned.Add(1)

	var exitErr error
	select {
	case <-proc.done:
		exitErr = proc.wait()
	case <-ctx.Done():
		stopProcess(proc)
		if stderrors.Is(ctx.Err(), context.DeadlineExceeded) {
			return []Diagnostic{{
				Code:    "E203",
				Message: fmt.Sprintf("%s did not finish within %s", o.opts.Compiler, o.opts.Timeout),
			}}, nil
		}
		return []Diagnostic{{Message: "build cancelled"}}, nil
	}

	errs, warnings = ParseDiagnostics(stderr.String())
	outErrs, outWarnings := ParseStdoutDiagnostics(stdout.String())
	errs = append(errs, outErrs...)
	warnings = append(warnings, outWarnings...)

	if exitErr != nil && len(errs) == 0 {
		var ee *exec.ExitError
		if stderrors.As(exitErr, &ee) {
			errs = append(errs, Diagnostic{Message: fmt.Sprintf("%s exited with status %d", o.opts.Compiler, ee.ExitCode())})
		} else {
			errs = append(errs, Diagnostic{Message: exitErr.Error()})
		}
	}
	return errs, warnings
}

func (o *Orchestrator) copySources(dist string) error {
	src := o.resolve(o.opts.SrcDir)
	if !isDir(src) {
		return nil
	}
	_, err := copyTree(src, dist, o.opts.CopyExtensions)
	return err
}

func (o *Orchestrator) copyPublic(dist string) error {
	public := o.resolve(o.opts.PublicDir)
	if !isDir(public) {
		return nil
	}
	_, err := copyTree(public, filepath.Join(dist, PublicSubdir), nil)
	return err
}

// Stop cancels the running build, killing its compiler process, and waits
// for it to finish. It is safe to call at any time and more than once.
func (o *Orchestrator) Stop() {
	o.mu.Lock()
	cancel := o.cancel
	running := o.running
	o.mu.Unlock()

	if cancel == nil {
		return
	}
	cancel()
	<-running
}

func (o *Orchestrator) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(o.opts.Root, path)
}

func isDir(path string) bool {
	info, err := os.Stat(path)
	return err == nil && info.IsDir()
}

func codedDiagnostic(code string, err error) Diagnostic {
	de := errors.New(code).Wrap(err)
	return Diagnostic{Code: de.Code, Message: de.Message + ": " + err.Error()}
}
