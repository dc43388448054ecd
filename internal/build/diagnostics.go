package build

import (
	"bufio"
	"regexp"
	"strconv"
	"strings"
)

// diagnosticPattern matches "file(line,col): level code: message".
var diagnosticPattern = regexp.MustCompile(`^(.+)\((\d+),(\d+)\):\s*(error|warning)\s+(\w+):\s*(.*)$`)

// ParseDiagnostics splits compiler stderr into errors and warnings. Lines in
// the located form become structured diagnostics; other lines containing
// "error" become message-only errors; everything else is dropped.
func ParseDiagnostics(output string) (errs, warnings []Diagnostic) {
	return parseDiagnostics(output, func(line string) bool {
		return strings.Contains(line, "error")
	})
}

// ParseStdoutDiagnostics parses compiler stdout, which also carries progress
// and emitted file listings ("TSFILE: dist/error-page.js"). Only located
// diagnostics and lines that start with "error" are kept.
func ParseStdoutDiagnostics(output string) (errs, warnings []Diagnostic) {
	return parseDiagnostics(output, func(line string) bool {
		return strings.HasPrefix(strings.TrimSpace(line), "error ")
	})
}

func parseDiagnostics(output string, isError func(line string) bool) (errs, warnings []Diagnostic) {
	scanner := bufio.NewScanner(strings.NewReader(output))
	scanner.Buffer(make([]byte, 0, 64*1024), 1024*1024)
	for scanner.Scan() {
		line := strings.TrimRight(scanner.Text(), "\r")
		if strings.TrimSpace(line) == "" {
			continue
		}

		if m := diagnosticPattern.FindStringSubmatch(line); m != nil {
			lineNo, _ := strconv.Atoi(m[2])
			col, _ := strconv.Atoi(m[3])
			d := Diagnostic{
				File:    m[1],
				Line:    lineNo,
				Column:  col,
				Code:    m[5],
				Message: m[6],
			}
			if m[4] == "warning" {
				warnings = append(warnings, d)
			} else {
				errs = append(errs, d)
			}
			continue
		}

		if isError(line) {
			errs = append(errs, Diagnostic{Message: strings.TrimSpace(line)})
		}
	}
	return errs, warnings
}
