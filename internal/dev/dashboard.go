package dev

import (
	"bytes"
	"fmt"
	"html/template"
	"net"
	"net/http"
	"time"

	"github.com/vango-dev/devd/internal/reload"
)

var dashboardTemplate = template.Must(template.New("dashboard").Funcs(template.FuncMap{
	"duration": func(ms int64) string {
		return (time.Duration(ms) * time.Millisecond).Round(time.Second).String()
	},
	"bytes": formatBytes,
}).Parse(`<!DOCTYPE html>
<html>
<head>
<meta charset="utf-8">
<meta http-equiv="refresh" content="5">
<title>{{.Name}} · devd</title>
<style>
body { font-family: system-ui, sans-serif; padding: 40px; background: #1a1a1a; color: #eee; }
h1 { margin-top: 0; }
table { border-collapse: collapse; margin-bottom: 24px; }
td { padding: 4px 16px 4px 0; }
td:first-child { color: #888; }
.ok { color: #50fa7b; }
.fail { color: #ff5555; }
pre { background: #111; padding: 12px; overflow-x: auto; }
</style>
</head>
<body>
<h1>{{.Name}}</h1>
<p>No file matches this path in the public or output directory.</p>
<table>
<tr><td>Environment</td><td>{{.Environment}}</td></tr>
<tr><td>Port</td><td>{{.Port}}</td></tr>
<tr><td>Hot reload</td><td>{{if .HotReload}}on{{else}}off{{end}}</td></tr>
<tr><td>Uptime</td><td>{{duration .Status.Uptime}}</td></tr>
<tr><td>Requests</td><td>{{.Status.Metrics.Requests}}</td></tr>
<tr><td>Errors</td><td>{{.Status.Metrics.Errors}}</td></tr>
<tr><td>Clients</td><td>{{.Status.Clients}}</td></tr>
<tr><td>Memory</td><td>{{bytes .Status.Metrics.Memory.Alloc}}</td></tr>
</table>
<h2>Last build</h2>
{{with .Status.LastBuild}}
<table>
<tr><td>Result</td><td>{{if .Success}}<span class="ok">success</span>{{else}}<span class="fail">failed</span>{{end}}</td></tr>
<tr><td>Strategy</td><td>{{.Strategy}}</td></tr>
<tr><td>Duration</td><td>{{.DurationMs}}ms</td></tr>
<tr><td>Assets</td><td>{{len .Assets}}</td></tr>
<tr><td>Started</td><td>{{.StartedAt.Format "15:04:05"}}</td></tr>
</table>
{{if .Errors}}<pre>{{range .Errors}}{{.}}
{{end}}</pre>{{end}}
{{else}}
<p>No build has run yet.</p>
{{end}}
{{.Script}}
</body>
</html>
`))

type dashboardData struct {
	Name        string
	Environment string
	Port        string
	HotReload   bool
	Status      StatusResponse
	Script      template.HTML
}

func (s *Server) handleDashboard(w http.ResponseWriter, r *http.Request) {
	data := dashboardData{
		Name:        s.config.Name,
		Environment: s.config.Environment,
		Port:        s.port(),
		HotReload:   s.config.HotReload,
		Status:      s.status(),
	}
	if data.Name == "" {
		data.Name = "devd"
	}
	if s.config.HotReload {
		data.Script = template.HTML(reload.ScriptTag)
	}

	var buf bytes.Buffer
	if err := dashboardTemplate.Execute(&buf, data); err != nil {
		s.logger.Error("Dashboard render failed", "error", err)
		http.Error(w, "dashboard unavailable", http.StatusInternalServerError)
		return
	}

	w.Header().Set("Content-Type", "text/html; charset=utf-8")
	w.Header().Set("Cache-Control", "no-cache")
	_, _ = w.Write(buf.Bytes())
}

func (s *Server) port() string {
	addr := s.Addr()
	if addr == "" {
		return fmt.Sprint(s.config.Port)
	}
	_, port, err := net.SplitHostPort(addr)
	if err != nil {
		return addr
	}
	return port
}

func formatBytes(n uint64) string {
	const unit = 1024
	if n < unit {
		return fmt.Sprintf("%d B", n)
	}
	div, exp := uint64(unit), 0
	for m := n / unit; m >= unit; m /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(n)/float64(div), "KMGTPE"[exp])
}
