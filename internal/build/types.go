package build

import (
	"fmt"
	"mime"
	"path/filepath"
	"strings"
	"time"

	"github.com/vango-dev/devd/internal/errors"
)

// Strategy is the toolchain used by one build attempt.
type Strategy string

const (
	StrategyCompile Strategy = "compile"
	StrategyCopy    Strategy = "copy"
)

// Diagnostic is one compiler message. File, Line and Column are set only
// when the compiler line carried a location.
type Diagnostic struct {
	Message string `json:"message"`
	Code    string `json:"code,omitempty"`
	File    string `json:"file,omitempty"`
	Line    int    `json:"line,omitempty"`
	Column  int    `json:"column,omitempty"`
}

// String formats the diagnostic as "file(line,col): code: message".
func (d Diagnostic) String() string {
	var b strings.Builder
	if d.File != "" {
		fmt.Fprintf(&b, "%s(%d,%d): ", d.File, d.Line, d.Column)
	}
	if d.Code != "" {
		b.WriteString(d.Code)
		b.WriteString(": ")
	}
	b.WriteString(d.Message)
	return b.String()
}

// Err converts the diagnostic into an E200 error. Located diagnostics carry
// the source lines around them; relative files are resolved against root.
func (d Diagnostic) Err(root string) *errors.DevError {
	err := errors.New("E200").WithDetail(d.Message)
	if d.Code != "" {
		err.Message = "Build failed with " + d.Code
	}
	if d.File == "" {
		return err
	}
	file := d.File
	if !filepath.IsAbs(file) {
		file = filepath.Join(root, file)
	}
	err = err.WithLocation(file, d.Line, d.Column)
	err.Location.File = d.File
	return err
}

// AssetKind classifies an output file by extension.
type AssetKind string

const (
	AssetJS    AssetKind = "js"
	AssetTS    AssetKind = "ts"
	AssetJSON  AssetKind = "json"
	AssetOther AssetKind = "other"
)

// classifyAsset determines the asset kind from the file extension.
func classifyAsset(name string) AssetKind {
	switch strings.ToLower(filepath.Ext(name)) {
	case ".js", ".mjs", ".cjs":
		return AssetJS
	case ".ts", ".mts", ".cts", ".tsx":
		return AssetTS
	case ".json":
		return AssetJSON
	default:
		return AssetOther
	}
}

// contentTypes overrides the platform MIME table for common dev assets.
var contentTypes = map[string]string{
	".html":  "text/html; charset=utf-8",
	".htm":   "text/html; charset=utf-8",
	".js":    "application/javascript; charset=utf-8",
	".mjs":   "application/javascript; charset=utf-8",
	".css":   "text/css; charset=utf-8",
	".json":  "application/json",
	".map":   "application/json",
	".png":   "image/png",
	".jpg":   "image/jpeg",
	".jpeg":  "image/jpeg",
	".gif":   "image/gif",
	".svg":   "image/svg+xml",
	".ico":   "image/x-icon",
	".webp":  "image/webp",
	".wasm":  "application/wasm",
	".txt":   "text/plain; charset=utf-8",
	".woff":  "font/woff",
	".woff2": "font/woff2",
}

// ContentType returns the Content-Type for a file name.
func ContentType(name string) string {
	ext := strings.ToLower(filepath.Ext(name))
	if ct, ok := contentTypes[ext]; ok {
		return ct
	}
	if ct := mime.TypeByExtension(ext); ct != "" {
		return ct
	}
	return "application/octet-stream"
}

// Asset is one file found in the output directory.
type Asset struct {
	Name string    `json:"name"`
	Path string    `json:"path"`
	Size int64     `json:"size"`
	Kind AssetKind `json:"kind"`
}

// Result is the outcome of one build attempt. It is never mutated after
// Build returns it.
type Result struct {
	ID         string        `json:"id"`
	Success    bool          `json:"success"`
	Strategy   Strategy      `json:"strategy"`
	Errors     []Diagnostic  `json:"errors"`
	Warnings   []Diagnostic  `json:"warnings"`
	Assets     []Asset       `json:"assets"`
	DurationMs int64         `json:"durationMs"`
	Duration   time.Duration `json:"-"`
	StartedAt  time.Time     `json:"startedAt"`
}

// Summary returns a one-line description of the failure, or "" for a
// successful result.
func (r *Result) Summary() string {
	if r == nil || r.Success {
		return ""
	}
	if len(r.Errors) == 0 {
		return "build failed"
	}
	if len(r.Errors) == 1 {
		return r.Errors[0].String()
	}
	return fmt.Sprintf("%s (and %d more errors)", r.Errors[0].String(), len(r.Errors)-1)
}
