package config

import (
	"os"
	"path/filepath"
	"strings"
	"testing"
	"time"

	"github.com/vango-dev/devd/internal/errors"
)

func TestNew(t *testing.T) {
	cfg := New()

	if cfg.Port != DefaultPort {
		t.Errorf("Port = %d, want %d", cfg.Port, DefaultPort)
	}
	if cfg.Host != DefaultHost {
		t.Errorf("Host = %q, want %q", cfg.Host, DefaultHost)
	}
	if !cfg.HotReload {
		t.Error("HotReload should default to true")
	}
	if cfg.Watch.Debounce.Duration != DefaultDebounce {
		t.Errorf("Watch.Debounce = %v, want %v", cfg.Watch.Debounce, DefaultDebounce)
	}
	if cfg.Build.Timeout.Duration != DefaultBuildTimeout {
		t.Errorf("Build.Timeout = %v, want %v", cfg.Build.Timeout, DefaultBuildTimeout)
	}
	if cfg.Logs.BufferSize != DefaultLogBufferSize {
		t.Errorf("Logs.BufferSize = %d, want %d", cfg.Logs.BufferSize, DefaultLogBufferSize)
	}
}

func TestLoad(t *testing.T) {
	tmpDir := t.TempDir()

	// Missing config
	if _, err := Load(tmpDir); !errors.HasCode(err, "E121") {
		t.Errorf("Load on empty dir = %v, want E121", err)
	}

	configJSON := `{
  "port": 8080,
  "host": "0.0.0.0",
  "hotReload": false,
  "distDir": "build",
  "watchPatterns": ["lib/**/*.ts"],
  "build": {"compiler": "esc", "timeout": "30s"},
  "watch": {"debounce": 250}
}
`
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte(configJSON), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}

	if cfg.Port != 8080 {
		t.Errorf("Port = %d, want 8080", cfg.Port)
	}
	if cfg.Host != "0.0.0.0" {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.HotReload {
		t.Error("HotReload should be false")
	}
	if cfg.DistDir != "build" {
		t.Errorf("DistDir = %q", cfg.DistDir)
	}
	if cfg.SrcDir != DefaultSrcDir {
		t.Errorf("SrcDir = %q, want default", cfg.SrcDir)
	}
	if len(cfg.WatchPatterns) != 1 || cfg.WatchPatterns[0] != "lib/**/*.ts" {
		t.Errorf("WatchPatterns = %v", cfg.WatchPatterns)
	}
	if cfg.Build.Compiler != "esc" {
		t.Errorf("Build.Compiler = %q", cfg.Build.Compiler)
	}
	if cfg.Build.Timeout.Duration != 30*time.Second {
		t.Errorf("Build.Timeout = %v", cfg.Build.Timeout)
	}
	if cfg.Watch.Debounce.Duration != 250*time.Millisecond {
		t.Errorf("Watch.Debounce = %v", cfg.Watch.Debounce)
	}

	root, _ := filepath.Abs(tmpDir)
	if cfg.Root() != root {
		t.Errorf("Root() = %q, want %q", cfg.Root(), root)
	}
}

func TestLoadYAML(t *testing.T) {
	tmpDir := t.TempDir()
	configYAML := `port: 4000
enableMetrics: false
ignorePatterns:
  - "**/*.test.ts"
metrics:
  interval: 1s
`
	if err := os.WriteFile(filepath.Join(tmpDir, YAMLConfigFileName), []byte(configYAML), 0644); err != nil {
		t.Fatal(err)
	}

	cfg, err := Load(tmpDir)
	if err != nil {
		t.Fatalf("Load error: %v", err)
	}
	if cfg.Port != 4000 {
		t.Errorf("Port = %d, want 4000", cfg.Port)
	}
	if cfg.EnableMetrics {
		t.Error("EnableMetrics should be false")
	}
	if cfg.Metrics.Interval.Duration != time.Second {
		t.Errorf("Metrics.Interval = %v", cfg.Metrics.Interval)
	}
	if !cfg.HotReload {
		t.Error("HotReload should keep its default")
	}
}

func TestLoadFile_Invalid(t *testing.T) {
	tmpDir := t.TempDir()

	tests := []struct {
		name    string
		file    string
		content string
	}{
		{"json", ConfigFileName, "not valid json"},
		{"yaml", YAMLConfigFileName, "port: [1"},
		{"duration", ConfigFileName, `{"watch": {"debounce": "soon"}}`},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			path := filepath.Join(tmpDir, tt.name+"-"+tt.file)
			if err := os.WriteFile(path, []byte(tt.content), 0644); err != nil {
				t.Fatal(err)
			}
			_, err := LoadFile(path)
			if err == nil {
				t.Fatal("expected error")
			}
			if !strings.Contains(err.Error(), "E120") {
				t.Errorf("expected E120 error, got: %v", err)
			}
		})
	}
}

func TestSaveTo(t *testing.T) {
	tmpDir := t.TempDir()

	for _, name := range []string{ConfigFileName, YAMLConfigFileName} {
		t.Run(name, func(t *testing.T) {
			path := filepath.Join(tmpDir, name)
			cfg := New()
			cfg.Port = 9000
			cfg.Watch.Debounce = Duration{50 * time.Millisecond}

			if err := cfg.SaveTo(path); err != nil {
				t.Fatalf("SaveTo error: %v", err)
			}
			if cfg.Path() != path {
				t.Errorf("Path() = %q", cfg.Path())
			}

			loaded, err := LoadFile(path)
			if err != nil {
				t.Fatalf("LoadFile error: %v", err)
			}
			if loaded.Port != 9000 {
				t.Errorf("Port = %d, want 9000", loaded.Port)
			}
			if loaded.Watch.Debounce.Duration != 50*time.Millisecond {
				t.Errorf("Watch.Debounce = %v", loaded.Watch.Debounce)
			}
		})
	}
}

func TestValidate(t *testing.T) {
	root := t.TempDir()
	file := filepath.Join(root, "file.txt")
	if err := os.WriteFile(file, nil, 0644); err != nil {
		t.Fatal(err)
	}

	tests := []struct {
		name   string
		modify func(*Config)
		code   string
	}{
		{"valid", func(*Config) {}, ""},
		{"port zero", func(c *Config) { c.Port = 0 }, ""},
		{"negative port", func(c *Config) { c.Port = -1 }, "E122"},
		{"port too high", func(c *Config) { c.Port = 70000 }, "E122"},
		{"empty host", func(c *Config) { c.Host = "" }, "E123"},
		{"host with slash", func(c *Config) { c.Host = "local/host" }, "E123"},
		{"missing root", func(c *Config) { c.ProjectRoot = filepath.Join(root, "nope") }, "E124"},
		{"root is file", func(c *Config) { c.ProjectRoot = file }, "E124"},
		{"bad watch glob", func(c *Config) { c.WatchPatterns = []string{"src/[a"} }, "E125"},
		{"bad ignore glob", func(c *Config) { c.IgnorePatterns = []string{"{a,b"} }, "E125"},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			cfg := New()
			cfg.ProjectRoot = root
			tt.modify(cfg)
			err := cfg.Validate()
			if tt.code == "" {
				if err != nil {
					t.Errorf("Validate() = %v, want nil", err)
				}
				return
			}
			if !errors.HasCode(err, tt.code) {
				t.Errorf("Validate() = %v, want %s", err, tt.code)
			}
		})
	}
}

func TestAddressAndURL(t *testing.T) {
	cfg := New()
	cfg.Host = "127.0.0.1"
	cfg.Port = 8080

	if got := cfg.Address(); got != "127.0.0.1:8080" {
		t.Errorf("Address() = %q", got)
	}
	if got := cfg.URL(); got != "http://127.0.0.1:8080" {
		t.Errorf("URL() = %q", got)
	}
}

func TestPaths(t *testing.T) {
	root := t.TempDir()
	cfg := New()
	cfg.ProjectRoot = root

	if got, want := cfg.SrcPath(), filepath.Join(root, "src"); got != want {
		t.Errorf("SrcPath() = %q, want %q", got, want)
	}
	if got, want := cfg.DistPath(), filepath.Join(root, "dist"); got != want {
		t.Errorf("DistPath() = %q, want %q", got, want)
	}
	if got, want := cfg.PublicPath(), filepath.Join(root, "public"); got != want {
		t.Errorf("PublicPath() = %q, want %q", got, want)
	}
	if got, want := cfg.ProjectFilePath(), filepath.Join(root, "tsconfig.json"); got != want {
		t.Errorf("ProjectFilePath() = %q, want %q", got, want)
	}

	abs := filepath.Join(root, "elsewhere")
	cfg.DistDir = abs
	if cfg.DistPath() != abs {
		t.Errorf("absolute DistDir should be kept, got %q", cfg.DistPath())
	}
}

func TestIgnoreList(t *testing.T) {
	cfg := New()
	cfg.IgnorePatterns = []string{"**/.git/**", "tmp/**"}

	list := cfg.IgnoreList()
	count := 0
	for _, p := range list {
		if p == "**/.git/**" {
			count++
		}
	}
	if count != 1 {
		t.Errorf("duplicate patterns not removed: %v", list)
	}
	if list[len(list)-1] != "tmp/**" {
		t.Errorf("user pattern missing: %v", list)
	}
}

func TestIgnoreList_OutputDir(t *testing.T) {
	root := t.TempDir()
	tests := []struct {
		distDir string
		want    string
	}{
		{distDir: "out", want: "out/**"},
		{distDir: "./build/web/", want: "build/web/**"},
		{distDir: filepath.Join(root, "public-out"), want: "public-out/**"},
		{distDir: "../sibling", want: ""},
		{distDir: ".", want: ""},
	}

	for _, tt := range tests {
		t.Run(tt.distDir, func(t *testing.T) {
			cfg := New()
			cfg.ProjectRoot = root
			cfg.DistDir = tt.distDir
			cfg.IgnorePatterns = []string{"tmp/**"}

			list := cfg.IgnoreList()
			if list[len(list)-1] != "tmp/**" {
				t.Errorf("user pattern should stay last: %v", list)
			}
			var found bool
			for _, p := range list {
				if p == tt.want {
					found = true
				}
				if strings.HasPrefix(p, "..") || p == "./**" || p == "/**" {
					t.Errorf("unexpected pattern %q in %v", p, list)
				}
			}
			if tt.want != "" && !found {
				t.Errorf("IgnoreList() = %v, want it to contain %q", list, tt.want)
			}
		})
	}
}

func TestExists(t *testing.T) {
	tmpDir := t.TempDir()
	if Exists(tmpDir) {
		t.Error("Exists should be false for empty dir")
	}
	if err := os.WriteFile(filepath.Join(tmpDir, YAMLConfigFileName), []byte("port: 1\n"), 0644); err != nil {
		t.Fatal(err)
	}
	if !Exists(tmpDir) {
		t.Error("Exists should be true with devd.yaml")
	}
}

func TestFindProjectRoot(t *testing.T) {
	tmpDir := t.TempDir()
	if err := os.WriteFile(filepath.Join(tmpDir, ConfigFileName), []byte("{}"), 0644); err != nil {
		t.Fatal(err)
	}
	nested := filepath.Join(tmpDir, "src", "components")
	if err := os.MkdirAll(nested, 0755); err != nil {
		t.Fatal(err)
	}

	root, err := FindProjectRoot(nested)
	if err != nil {
		t.Fatalf("FindProjectRoot error: %v", err)
	}
	want, _ := filepath.Abs(tmpDir)
	if root != want {
		t.Errorf("FindProjectRoot = %q, want %q", root, want)
	}
}

func TestLoadOrDefault(t *testing.T) {
	tmpDir := t.TempDir()

	cfg, err := LoadOrDefault(tmpDir)
	if err != nil {
		t.Fatalf("LoadOrDefault error: %v", err)
	}
	want, _ := filepath.Abs(tmpDir)
	if cfg.ProjectRoot != want {
		t.Errorf("ProjectRoot = %q, want %q", cfg.ProjectRoot, want)
	}
	if err := cfg.Validate(); err != nil {
		t.Errorf("default config should validate: %v", err)
	}
}

func TestApplyDefaults(t *testing.T) {
	cfg := &Config{configPath: "/tmp/proj/devd.json", ProjectRoot: "app"}
	cfg.applyDefaults()

	if cfg.Host != DefaultHost {
		t.Errorf("Host = %q", cfg.Host)
	}
	if cfg.ProjectRoot != filepath.Join("/tmp/proj", "app") {
		t.Errorf("ProjectRoot = %q", cfg.ProjectRoot)
	}
	if cfg.Build.Compiler != DefaultCompiler {
		t.Errorf("Build.Compiler = %q", cfg.Build.Compiler)
	}
	if len(cfg.WatchPatterns) != len(DefaultWatchPatterns) {
		t.Errorf("WatchPatterns = %v", cfg.WatchPatterns)
	}
}
