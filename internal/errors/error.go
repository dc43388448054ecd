package errors

import (
	"bufio"
	stderrors "errors"
	"fmt"
	"os"
)

// Category represents the type of error.
type Category string

const (
	CategoryConfig    Category = "config"
	CategoryBuild     Category = "build"
	CategoryWatch     Category = "watch"
	CategoryServer    Category = "server"
	CategoryTransport Category = "transport"
	CategoryCLI       Category = "cli"
)

// Location represents a source code location.
type Location struct {
	File   string `json:"file"`
	Line   int    `json:"line"`
	Column int    `json:"column,omitempty"`
}

// String returns the location as a formatted string.
func (l *Location) String() string {
	if l == nil {
		return ""
	}
	if l.Column > 0 {
		return fmt.Sprintf("%s:%d:%d", l.File, l.Line, l.Column)
	}
	return fmt.Sprintf("%s:%d", l.File, l.Line)
}

// Snippet is a run of source lines. Start is the 1-based number of the
// first line.
type Snippet struct {
	Start int      `json:"start"`
	Lines []string `json:"lines"`
}

// snippetRadius is how many lines either side of a location are kept.
const snippetRadius = 2

// DevError is a structured error with an error code, source location and a hint.
type DevError struct {
	// Code is a unique error identifier (e.g., "E200").
	Code string

	// Category is the error type (config, build, etc.).
	Category Category

	// Message is a short description of the error.
	Message string

	// Detail is a longer explanation of the error.
	Detail string

	// Location is the source code location where the error occurred.
	Location *Location

	// Source holds the lines around Location, when the file was readable.
	Source *Snippet

	// Suggestion is a hint on how to fix the error.
	Suggestion string

	// Wrapped is the underlying error, if any.
	Wrapped error
}

// Error implements the error interface.
func (e *DevError) Error() string {
	msg := e.Message
	if e.Code != "" {
		msg = fmt.Sprintf("%s: %s", e.Code, e.Message)
	}
	if e.Wrapped != nil {
		msg += ": " + e.Wrapped.Error()
	}
	return msg
}

// Unwrap returns the wrapped error for errors.Is/As support.
func (e *DevError) Unwrap() error {
	return e.Wrapped
}

// WithLocation adds source location to the error.
func (e *DevError) WithLocation(file string, line, column int) *DevError {
	e.Location = &Location{File: file, Line: line, Column: column}
	e.Source = readSnippet(file, line, snippetRadius)
	return e
}

// WithSuggestion adds a fix suggestion to the error.
func (e *DevError) WithSuggestion(s string) *DevError {
	e.Suggestion = s
	return e
}

// WithDetail adds a detailed explanation to the error.
func (e *DevError) WithDetail(d string) *DevError {
	e.Detail = d
	return e
}

// Wrap wraps another error.
func (e *DevError) Wrap(err error) *DevError {
	e.Wrapped = err
	return e
}

// readSnippet returns up to radius lines either side of line. It returns nil
// when the file cannot be read or is shorter than line.
func readSnippet(filename string, line, radius int) *Snippet {
	if line < 1 {
		return nil
	}
	file, err := os.Open(filename)
	if err != nil {
		return nil
	}
	defer file.Close()

	first := max(line-radius, 1)
	last := line + radius
	snippet := &Snippet{Start: first}

	scanner := bufio.NewScanner(file)
	for n := 1; n <= last && scanner.Scan(); n++ {
		if n >= first {
			snippet.Lines = append(snippet.Lines, scanner.Text())
		}
	}
	if snippet.Start+len(snippet.Lines)-1 < line {
		return nil
	}
	return snippet
}

// New creates a DevError from a registered error code.
func New(code string) *DevError {
	template, ok := GetTemplate(code)
	if !ok {
		return &DevError{
			Code:    code,
			Message: "Unknown error",
		}
	}
	return &DevError{
		Code:     code,
		Category: template.Category,
		Message:  template.Message,
		Detail:   template.Detail,
	}
}

// Newf creates a new DevError with a formatted message (no code).
func Newf(category Category, format string, args ...any) *DevError {
	return &DevError{
		Category: category,
		Message:  fmt.Sprintf(format, args...),
	}
}

// FromError wraps a standard error in a DevError.
func FromError(err error, code string) *DevError {
	if err == nil {
		return nil
	}
	var de *DevError
	if stderrors.As(err, &de) {
		return de
	}
	return New(code).Wrap(err)
}

// HasCode reports whether err is, or wraps, a DevError with the given code.
func HasCode(err error, code string) bool {
	var de *DevError
	for err != nil {
		if !stderrors.As(err, &de) {
			return false
		}
		if de.Code == code {
			return true
		}
		err = de.Wrapped
	}
	return false
}
