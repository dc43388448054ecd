package dev

import (
	"bytes"
	"net/http"
	"os"
	"path"
	"path/filepath"
	"strings"

	"github.com/vango-dev/devd/internal/build"
	"github.com/vango-dev/devd/internal/reload"
)

// handleStatic serves the public directory, then the output directory, and
// falls back to the dashboard when neither has the path.
func (s *Server) handleStatic(w http.ResponseWriter, r *http.Request) {
	file, ok := s.resolveStatic(r.URL.Path)
	if !ok {
		s.handleDashboard(w, r)
		return
	}
	s.serveFile(w, r, file)
}

// resolveStatic maps a URL path to a file in the public or output directory.
// "/" and directory paths resolve to their index.html.
func (s *Server) resolveStatic(urlPath string) (string, bool) {
	clean := path.Clean("/" + urlPath)
	if clean == "/" {
		clean = "/index.html"
	}

	for _, dir := range []string{s.config.PublicPath(), s.config.DistPath()} {
		file := filepath.Join(dir, filepath.FromSlash(clean))
		info, err := os.Stat(file)
		if err != nil {
			continue
		}
		if info.IsDir() {
			file = filepath.Join(file, "index.html")
			if info, err = os.Stat(file); err != nil || info.IsDir() {
				continue
			}
		}
		return file, true
	}
	return "", false
}

func (s *Server) serveFile(w http.ResponseWriter, r *http.Request, file string) {
	f, err := os.Open(file)
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		http.Error(w, "not found", http.StatusNotFound)
		return
	}

	contentType := build.ContentType(file)
	w.Header().Set("Content-Type", contentType)
	w.Header().Set("Cache-Control", "no-cache")

	if s.config.HotReload && strings.HasPrefix(contentType, "text/html") {
		data, err := os.ReadFile(file)
		if err != nil {
			http.Error(w, "read failed", http.StatusInternalServerError)
			return
		}
		http.ServeContent(w, r, info.Name(), info.ModTime(), bytes.NewReader(reload.InjectScript(data)))
		return
	}

	http.ServeContent(w, r, info.Name(), info.ModTime(), f)
}
