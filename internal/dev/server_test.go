package dev

import (
	"context"
	"encoding/json"
	stderrors "errors"
	"io"
	"net"
	"net/http"
	"net/http/httptest"
	"os"
	"path/filepath"
	"runtime"
	"strconv"
	"strings"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	chimw "github.com/go-chi/chi/v5/middleware"
	"github.com/gorilla/websocket"

	"github.com/vango-dev/devd/internal/build"
	"github.com/vango-dev/devd/internal/config"
	"github.com/vango-dev/devd/internal/errors"
	"github.com/vango-dev/devd/internal/logs"
	"github.com/vango-dev/devd/internal/reload"
)

func writeFile(t *testing.T, path, content string) {
	t.Helper()
	if err := os.MkdirAll(filepath.Dir(path), 0755); err != nil {
		t.Fatal(err)
	}
	if err := os.WriteFile(path, []byte(content), 0644); err != nil {
		t.Fatal(err)
	}
}

func newTestConfig(t *testing.T) *config.Config {
	t.Helper()
	cfg := config.New()
	cfg.ProjectRoot = t.TempDir()
	cfg.Host = "127.0.0.1"
	cfg.Port = 0
	cfg.Quiet = true
	cfg.HotReload = false
	cfg.Watch.Debounce = config.Duration{Duration: 50 * time.Millisecond}
	return cfg
}

func newTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv := NewServer(ServerOptions{
		Config: cfg,
		Logs:   logs.NewBuffer(logs.Options{Quiet: true}),
	})
	t.Cleanup(func() {
		_ = srv.Stop(context.Background())
	})
	return srv
}

func startTestServer(t *testing.T, cfg *config.Config) *Server {
	t.Helper()
	srv := newTestServer(t, cfg)
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() error = %v", err)
	}
	return srv
}

func get(t *testing.T, url string) (*http.Response, string) {
	t.Helper()
	resp, err := http.Get(url)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	body, err := io.ReadAll(resp.Body)
	if err != nil {
		t.Fatal(err)
	}
	return resp, string(body)
}

func TestServer_StartStop(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	var started, stopped int
	srv.OnStart.Subscribe(func(string) { started++ })
	srv.OnStop.Subscribe(func(struct{}) { stopped++ })

	if srv.State() != StateIdle {
		t.Fatalf("State() = %q, want idle", srv.State())
	}
	if err := srv.Start(context.Background()); err != nil {
		t.Fatal(err)
	}
	if srv.State() != StateRunning {
		t.Fatalf("State() = %q, want running", srv.State())
	}
	if !srv.Metrics().Running() {
		t.Error("metrics sampler should be running")
	}
	if !srv.Hub().Enabled() {
		t.Error("broadcast hub should be enabled")
	}
	if srv.Builder().LastResult() == nil {
		t.Error("initial build should have run")
	}

	resp, body := get(t, srv.URL()+"/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("status code = %d", resp.StatusCode)
	}
	var status StatusResponse
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		t.Fatal(err)
	}
	if status.Status != StateRunning {
		t.Errorf("status = %q, want running", status.Status)
	}
	if status.Metrics.Requests == 0 {
		t.Error("request should be counted")
	}

	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("Stop() error = %v", err)
	}
	if err := srv.Stop(context.Background()); err != nil {
		t.Fatalf("second Stop() error = %v", err)
	}
	if srv.State() != StateStopped {
		t.Errorf("State() = %q, want stopped", srv.State())
	}
	if started != 1 || stopped != 1 {
		t.Errorf("events start=%d stop=%d, want 1/1", started, stopped)
	}
	if srv.Metrics().Running() {
		t.Error("metrics sampler should be stopped")
	}
	if srv.Hub().Enabled() {
		t.Error("broadcast hub should be disabled")
	}
	if _, err := http.Get(srv.URL() + "/api/status"); err == nil {
		t.Error("listener should be closed")
	}
}

func TestServer_StartWhileRunning(t *testing.T) {
	srv := startTestServer(t, newTestConfig(t))

	err := srv.Start(context.Background())
	if !stderrors.Is(err, ErrAlreadyRunning) {
		t.Fatalf("Start() error = %v, want ErrAlreadyRunning", err)
	}
	if !errors.HasCode(err, "E240") {
		t.Errorf("error should carry E240: %v", err)
	}
	if srv.State() != StateRunning {
		t.Errorf("State() = %q, want running", srv.State())
	}
}

func TestServer_InvalidConfig(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Port = 70000
	srv := newTestServer(t, cfg)

	var failures int
	srv.OnError.Subscribe(func(error) { failures++ })

	err := srv.Start(context.Background())
	if !errors.HasCode(err, "E122") {
		t.Fatalf("Start() error = %v, want E122", err)
	}
	if srv.State() != StateError {
		t.Errorf("State() = %q, want error", srv.State())
	}
	if failures != 1 {
		t.Errorf("OnError emitted %d times, want 1", failures)
	}
}

func TestServer_BindFailure(t *testing.T) {
	ln, err := net.Listen("tcp", "127.0.0.1:0")
	if err != nil {
		t.Fatal(err)
	}
	defer ln.Close()

	cfg := newTestConfig(t)
	cfg.Port = ln.Addr().(*net.TCPAddr).Port
	srv := newTestServer(t, cfg)

	err = srv.Start(context.Background())
	if !errors.HasCode(err, "E241") {
		t.Fatalf("Start() error = %v, want E241", err)
	}
	if srv.State() != StateError {
		t.Errorf("State() = %q, want error", srv.State())
	}
	if srv.Metrics().Running() {
		t.Error("metrics sampler should be stopped after a failed start")
	}

	// A failed server can be started again once the port is free.
	ln.Close()
	if err := srv.Start(context.Background()); err != nil {
		t.Fatalf("Start() after failure error = %v", err)
	}
}

func TestServer_Restart(t *testing.T) {
	srv := startTestServer(t, newTestConfig(t))

	var restarts int
	srv.OnRestart.Subscribe(func(struct{}) { restarts++ })

	if err := srv.Restart(context.Background()); err != nil {
		t.Fatal(err)
	}
	if srv.State() != StateRunning {
		t.Errorf("State() = %q, want running", srv.State())
	}
	if restarts != 1 {
		t.Errorf("OnRestart emitted %d times, want 1", restarts)
	}

	resp, _ := get(t, srv.URL()+"/api/status")
	if resp.StatusCode != http.StatusOK {
		t.Errorf("status code after restart = %d", resp.StatusCode)
	}
}

func TestServer_StaticPrecedence(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.HotReload = true
	root := cfg.ProjectRoot
	writeFile(t, filepath.Join(root, "public", "index.html"), "<html><body>public</body></html>")
	writeFile(t, filepath.Join(root, "dist", "index.html"), "<html><body>dist</body></html>")
	writeFile(t, filepath.Join(root, "dist", "app.js"), "console.log('dist')")
	writeFile(t, filepath.Join(root, "public", "docs", "index.html"), "<p>docs</p>")

	srv := startTestServer(t, cfg)

	resp, body := get(t, srv.URL()+"/")
	if !strings.Contains(body, "public") {
		t.Errorf("GET / = %q, want public index", body)
	}
	if !strings.Contains(body, reload.ScriptTag) {
		t.Error("HTML should carry the client script when hot reload is on")
	}
	if ct := resp.Header.Get("Content-Type"); ct != "text/html; charset=utf-8" {
		t.Errorf("Content-Type = %q", ct)
	}

	resp, body = get(t, srv.URL()+"/app.js")
	if body != "console.log('dist')" {
		t.Errorf("GET /app.js = %q, want dist file", body)
	}
	if ct := resp.Header.Get("Content-Type"); !strings.HasPrefix(ct, "application/javascript") {
		t.Errorf("Content-Type = %q", ct)
	}

	_, body = get(t, srv.URL()+"/docs/")
	if !strings.Contains(body, "docs") {
		t.Errorf("GET /docs/ = %q, want directory index", body)
	}

	resp, body = get(t, srv.URL()+"/missing/page")
	if resp.StatusCode != http.StatusOK || !strings.Contains(body, "Last build") {
		t.Errorf("GET /missing/page should render the dashboard, got %d", resp.StatusCode)
	}

	_, body = get(t, srv.URL()+"/../../etc/passwd")
	if strings.Contains(body, "root:") {
		t.Error("path traversal escaped the served directories")
	}

	resp, body = get(t, srv.URL()+reload.ScriptPath)
	if resp.StatusCode != http.StatusOK || body != reload.ClientScript {
		t.Errorf("client script not served")
	}

	resp, _ = get(t, srv.URL()+"/api/unknown")
	if resp.StatusCode != http.StatusNotFound {
		t.Errorf("GET /api/unknown = %d, want 404", resp.StatusCode)
	}
	if ct := resp.Header.Get("Content-Type"); ct != "application/json" {
		t.Errorf("Content-Type = %q, want application/json", ct)
	}
}

func TestServer_NoInjectionWithoutHotReload(t *testing.T) {
	cfg := newTestConfig(t)
	writeFile(t, filepath.Join(cfg.ProjectRoot, "public", "index.html"), "<html><body>x</body></html>")

	srv := startTestServer(t, cfg)

	_, body := get(t, srv.URL()+"/")
	if strings.Contains(body, reload.ScriptTag) {
		t.Error("client script injected with hot reload off")
	}
}

func TestServer_APIBuild(t *testing.T) {
	cfg := newTestConfig(t)
	writeFile(t, filepath.Join(cfg.ProjectRoot, "src", "main.js"), "export {}")
	srv := startTestServer(t, cfg)

	resp, err := http.Post(srv.URL()+"/api/build", "application/json", nil)
	if err != nil {
		t.Fatal(err)
	}
	defer resp.Body.Close()
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("POST /api/build = %d", resp.StatusCode)
	}

	var result build.Result
	if err := json.NewDecoder(resp.Body).Decode(&result); err != nil {
		t.Fatal(err)
	}
	if !result.Success {
		t.Errorf("result = %+v, want success", result)
	}
	if len(result.Assets) != 1 || result.Assets[0].Path != "main.js" {
		t.Errorf("Assets = %+v", result.Assets)
	}
}

func TestServer_APIBuildConflict(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler scripts require a POSIX shell")
	}
	cfg := newTestConfig(t)
	root := cfg.ProjectRoot
	writeFile(t, filepath.Join(root, "tsconfig.json"), "{}")
	compiler := filepath.Join(root, "fake-tsc")
	if err := os.WriteFile(compiler, []byte("#!/bin/sh\nsleep 0.5\n"), 0755); err != nil {
		t.Fatal(err)
	}
	cfg.Build.Compiler = compiler

	srv := startTestServer(t, cfg)

	started := make(chan struct{})
	unsubscribe := srv.Builder().OnStart.Subscribe(func(build.Start) { close(started) })
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = srv.Build(context.Background())
	}()
	<-started
	unsubscribe()

	resp, body := get(t, srv.URL()+"/api/build")
	if resp.StatusCode != http.StatusInternalServerError {
		t.Errorf("GET /api/build during build = %d, want 500", resp.StatusCode)
	}
	if !strings.Contains(body, "already in progress") {
		t.Errorf("body = %q, want conflict message", body)
	}
	<-done
}

func TestServer_Logs(t *testing.T) {
	srv := startTestServer(t, newTestConfig(t))

	srv.Logs().Log(logs.LevelWarn, "disk almost full", "test", nil)

	_, body := get(t, srv.URL()+"/api/logs?level=warn&source=test")
	var resp LogsResponse
	if err := json.Unmarshal([]byte(body), &resp); err != nil {
		t.Fatal(err)
	}
	if resp.Count != 1 || resp.Entries[0].Message != "disk almost full" {
		t.Errorf("logs = %+v", resp)
	}

	_, body = get(t, srv.URL()+"/api/logs?source=server")
	if !strings.Contains(body, "Server listening on") {
		t.Errorf("server logs should be buffered: %s", body)
	}

	r, _ := get(t, srv.URL()+"/api/logs?level=loud")
	if r.StatusCode != http.StatusBadRequest {
		t.Errorf("invalid level = %d, want 400", r.StatusCode)
	}

	req, _ := http.NewRequest(http.MethodDelete, srv.URL()+"/api/logs", nil)
	dr, err := http.DefaultClient.Do(req)
	if err != nil {
		t.Fatal(err)
	}
	dr.Body.Close()
	if dr.StatusCode != http.StatusNoContent {
		t.Errorf("DELETE /api/logs = %d, want 204", dr.StatusCode)
	}
	if n := srv.Logs().Len(); n != 0 {
		t.Errorf("Len() = %d after clear, want 0", n)
	}
}

func TestServer_MetricsEndpoint(t *testing.T) {
	srv := startTestServer(t, newTestConfig(t))
	get(t, srv.URL()+"/api/status")

	resp, body := get(t, srv.URL()+"/metrics")
	if resp.StatusCode != http.StatusOK {
		t.Fatalf("GET /metrics = %d", resp.StatusCode)
	}
	if !strings.Contains(body, "devd_http_requests_total") {
		t.Error("exposition should include the request counter")
	}
	if !strings.Contains(body, `devd_http_request_duration_seconds_count{method="GET",route="/api/status",status="200"}`) {
		t.Errorf("exposition should include the per-route histogram:\n%s", body)
	}
}

func TestServer_WatchPatterns(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))

	if err := srv.AddWatchPattern("lib/[a-"); !errors.HasCode(err, "E125") {
		t.Errorf("AddWatchPattern(invalid) = %v, want E125", err)
	}
	if err := srv.AddWatchPattern("lib/**/*.ts"); err != nil {
		t.Fatal(err)
	}
	if err := srv.AddWatchPattern("lib/**/*.ts"); err != nil {
		t.Fatal(err)
	}

	got := srv.WatchPatterns()
	want := append(append([]string(nil), config.DefaultWatchPatterns...), "lib/**/*.ts")
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("WatchPatterns() = %v, want %v", got, want)
	}

	srv.RemoveWatchPattern("lib/**/*.ts")
	if got := srv.WatchPatterns(); len(got) != len(config.DefaultWatchPatterns) {
		t.Errorf("WatchPatterns() after remove = %v", got)
	}
}

func TestServer_BuildFailureBroadcastsError(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.Build.Compiler = filepath.Join(cfg.ProjectRoot, "missing-compiler")
	writeFile(t, filepath.Join(cfg.ProjectRoot, "tsconfig.json"), "{}")
	srv := startTestServer(t, cfg)

	client := &recordingClient{id: "c1"}
	srv.Hub().AddClient(client)
	errorsBefore := srv.Metrics().Snapshot().Errors

	result, err := srv.Build(context.Background())
	if err != nil {
		t.Fatal(err)
	}
	if result.Success {
		t.Fatal("build should fail")
	}
	if got := srv.Metrics().Snapshot().Errors; got != errorsBefore+1 {
		t.Errorf("Errors = %d, want %d", got, errorsBefore+1)
	}

	var found bool
	for _, msg := range client.messages() {
		if msg.Type != reload.TypeError {
			continue
		}
		found = true
		if !strings.Contains(msg.Data.(map[string]any)["message"].(string), "missing-compiler") {
			t.Errorf("error message = %v", msg.Data)
		}
	}
	if !found {
		t.Error("no error broadcast after a failed build")
	}
}

func TestServer_EndToEnd(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler scripts require a POSIX shell")
	}

	cfg := newTestConfig(t)
	cfg.HotReload = true
	root := cfg.ProjectRoot
	writeFile(t, filepath.Join(root, "tsconfig.json"), "{}")
	writeFile(t, filepath.Join(root, "src", "app.ts"), "export const a = 1")
	compiler := filepath.Join(root, "fake-tsc")
	script := "#!/bin/sh\nsleep 0.1\nmkdir -p dist\ncp src/app.ts dist/app.js\n"
	if err := os.WriteFile(compiler, []byte(script), 0755); err != nil {
		t.Fatal(err)
	}
	cfg.Build.Compiler = compiler

	srv := startTestServer(t, cfg)

	var completed, failed atomic.Int32
	srv.Builder().OnComplete.Subscribe(func(*build.Result) { completed.Add(1) })
	srv.Builder().OnError.Subscribe(func(*build.Result) { failed.Add(1) })

	wsURL := "ws://" + srv.Addr() + "/ws"
	conn, _, err := websocket.DefaultDialer.Dial(wsURL, nil)
	if err != nil {
		t.Fatalf("dial: %v", err)
	}
	defer conn.Close()

	deadline := time.Now().Add(2 * time.Second)
	for srv.ConnectedClients() != 1 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	if srv.ConnectedClients() != 1 {
		t.Fatal("client not registered")
	}

	writeFile(t, filepath.Join(root, "src", "app.ts"), "export const a = 2")

	var reloadMsg struct {
		Type reload.MessageType   `json:"type"`
		Data reload.ReloadPayload `json:"data"`
	}
	_ = conn.SetReadDeadline(time.Now().Add(10 * time.Second))
	for {
		_, data, err := conn.ReadMessage()
		if err != nil {
			t.Fatalf("read: %v", err)
		}
		var envelope struct {
			Type reload.MessageType `json:"type"`
		}
		if err := json.Unmarshal(data, &envelope); err != nil {
			t.Fatal(err)
		}
		if envelope.Type != reload.TypeReload {
			continue
		}
		if err := json.Unmarshal(data, &reloadMsg); err != nil {
			t.Fatal(err)
		}
		break
	}

	if reloadMsg.Data.Action != reload.ActionReload {
		t.Errorf("Action = %q, want reload", reloadMsg.Data.Action)
	}
	if len(reloadMsg.Data.Files) != 1 || reloadMsg.Data.Files[0] != "src/app.ts" {
		t.Errorf("Files = %v, want [src/app.ts]", reloadMsg.Data.Files)
	}
	if n := completed.Load() + failed.Load(); n != 1 {
		t.Errorf("build events = %d, want 1", n)
	}

	last := srv.Builder().LastResult()
	_, body := get(t, srv.URL()+"/api/status")
	var status StatusResponse
	if err := json.Unmarshal([]byte(body), &status); err != nil {
		t.Fatal(err)
	}
	if status.Metrics.LastBuildDurationMs != last.DurationMs {
		t.Errorf("lastBuildDurationMs = %d, want %d", status.Metrics.LastBuildDurationMs, last.DurationMs)
	}
	if status.Metrics.LastBuildDurationMs < 100 {
		t.Errorf("lastBuildDurationMs = %d, want >= 100", status.Metrics.LastBuildDurationMs)
	}
	if status.Watch == nil || status.Watch.Delivered == 0 {
		t.Errorf("watch stats = %+v", status.Watch)
	}
}

func TestServer_CustomOutputDirIsNotWatched(t *testing.T) {
	cfg := newTestConfig(t)
	cfg.HotReload = true
	cfg.DistDir = "out"
	cfg.WatchPatterns = []string{"**/*.js"}
	root := cfg.ProjectRoot
	writeFile(t, filepath.Join(root, "src", "a.js"), "export const a = 1")

	srv := startTestServer(t, cfg)

	var builds atomic.Int32
	srv.Builder().OnStart.Subscribe(func(build.Start) { builds.Add(1) })
	client := &recordingClient{id: "c1"}
	srv.Hub().AddClient(client)

	writeFile(t, filepath.Join(root, "src", "a.js"), "export const a = 2")

	deadline := time.Now().Add(2 * time.Second)
	for builds.Load() == 0 && time.Now().Before(deadline) {
		time.Sleep(10 * time.Millisecond)
	}
	// Long enough for writes into out/ to come back around several times.
	time.Sleep(600 * time.Millisecond)

	if n := builds.Load(); n != 1 {
		t.Errorf("builds after one edit = %d, want 1", n)
	}
	var reloads int
	for _, msg := range client.messages() {
		if msg.Type == reload.TypeReload {
			reloads++
		}
	}
	if reloads != 1 {
		t.Errorf("reload broadcasts = %d, want 1", reloads)
	}
	if _, err := os.Stat(filepath.Join(root, "out", "a.js")); err != nil {
		t.Errorf("output not written: %v", err)
	}
}

func TestCountPanics(t *testing.T) {
	srv := newTestServer(t, newTestConfig(t))
	h := chimw.Recoverer(srv.countPanics(http.HandlerFunc(func(http.ResponseWriter, *http.Request) {
		panic("boom")
	})))

	rec := httptest.NewRecorder()
	h.ServeHTTP(rec, httptest.NewRequest(http.MethodGet, "/api/status", nil))

	if rec.Code != http.StatusInternalServerError {
		t.Errorf("status = %d, want 500", rec.Code)
	}
	if n := srv.Metrics().Metrics().Errors; n != 1 {
		t.Errorf("Errors = %d, want 1", n)
	}
	var logged bool
	for _, e := range srv.Logs().Entries(logs.Filter{Level: logs.LevelError}) {
		if strings.Contains(e.Message, "Handler panic") {
			logged = true
		}
	}
	if !logged {
		t.Error("panic should be logged")
	}
}

func TestRebuildWaitsForInFlightBuild(t *testing.T) {
	if runtime.GOOS == "windows" {
		t.Skip("fake compiler scripts require a POSIX shell")
	}
	cfg := newTestConfig(t)
	root := cfg.ProjectRoot
	writeFile(t, filepath.Join(root, "tsconfig.json"), "{}")
	compiler := filepath.Join(root, "fake-tsc")
	if err := os.WriteFile(compiler, []byte("#!/bin/sh\nsleep 0.3\n"), 0755); err != nil {
		t.Fatal(err)
	}
	cfg.Build.Compiler = compiler
	srv := newTestServer(t, cfg)

	started := make(chan struct{})
	unsubscribe := srv.Builder().OnStart.Subscribe(func(build.Start) { close(started) })
	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = srv.Build(context.Background())
	}()
	<-started
	unsubscribe()

	srv.rebuild(context.Background())
	<-done

	if n := srv.Builder().Spawned(); n != 2 {
		t.Errorf("Spawned() = %d, want 2 (in-flight build plus one trailing rebuild)", n)
	}
}

func TestCollectWatchPatterns(t *testing.T) {
	cfg := config.New()
	cfg.WatchPatterns = []string{"src/**/*", "", "src/**/*", "public"}

	got := CollectWatchPatterns(cfg, "lib/*.ts", "public")
	want := []string{"src/**/*", "public", "lib/*.ts"}
	if strings.Join(got, ",") != strings.Join(want, ",") {
		t.Errorf("CollectWatchPatterns() = %v, want %v", got, want)
	}
}

func TestParseSince(t *testing.T) {
	ms := time.Date(2024, 1, 2, 3, 4, 5, 0, time.UTC).UnixMilli()
	got, err := parseSince(strconv.FormatInt(ms, 10))
	if err != nil || got.UnixMilli() != ms {
		t.Errorf("parseSince(ms) = %v, %v", got, err)
	}

	got, err = parseSince("2024-01-02T03:04:05Z")
	if err != nil || got.UnixMilli() != ms {
		t.Errorf("parseSince(RFC3339) = %v, %v", got, err)
	}

	if _, err := parseSince("yesterday"); err == nil {
		t.Error("parseSince should reject garbage")
	}
}

func TestFormatBytes(t *testing.T) {
	tests := map[uint64]string{
		512:             "512 B",
		2048:            "2.0 KiB",
		5 * 1024 * 1024: "5.0 MiB",
	}
	for n, want := range tests {
		if got := formatBytes(n); got != want {
			t.Errorf("formatBytes(%d) = %q, want %q", n, got, want)
		}
	}
}

type recordingClient struct {
	id   string
	mu   sync.Mutex
	sent [][]byte
}

func (c *recordingClient) ID() string { return c.id }

func (c *recordingClient) Send(data []byte) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.sent = append(c.sent, append([]byte(nil), data...))
	return nil
}

func (c *recordingClient) Close() error { return nil }

func (c *recordingClient) messages() []reload.Message {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]reload.Message, 0, len(c.sent))
	for _, data := range c.sent {
		var msg reload.Message
		if err := json.Unmarshal(data, &msg); err == nil {
			out = append(out, msg)
		}
	}
	return out
}
