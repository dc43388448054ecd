package config

import (
	"encoding/json"
	"net"
	"os"
	"path/filepath"
	"strconv"
	"strings"
	"time"

	"gopkg.in/yaml.v3"

	"github.com/vango-dev/devd/internal/errors"
	"github.com/vango-dev/devd/internal/glob"
)

const (
	// ConfigFileName is the name of the JSON configuration file.
	ConfigFileName = "devd.json"

	// YAMLConfigFileName is the name of the YAML configuration file.
	YAMLConfigFileName = "devd.yaml"

	// DefaultPort is the default development server port.
	DefaultPort = 3000

	// DefaultHost is the default development server host.
	DefaultHost = "localhost"

	// DefaultSrcDir is the default source directory.
	DefaultSrcDir = "src"

	// DefaultDistDir is the default build output directory.
	DefaultDistDir = "dist"

	// DefaultPublicDir is the default static asset directory.
	DefaultPublicDir = "public"

	// DefaultCompiler is the default type-checking compiler binary.
	DefaultCompiler = "tsc"

	// DefaultProjectFile is the descriptor that selects the compile strategy.
	DefaultProjectFile = "tsconfig.json"

	// DefaultDebounce is the default debounce window for file changes.
	DefaultDebounce = 100 * time.Millisecond

	// DefaultMetricsInterval is the default metrics sampling interval.
	DefaultMetricsInterval = 5 * time.Second

	// DefaultLogBufferSize is the default number of retained log entries.
	DefaultLogBufferSize = 1000

	// DefaultBuildTimeout bounds a single compiler run.
	DefaultBuildTimeout = 2 * time.Minute
)

// configFileNames lists the recognised config files in lookup order.
var configFileNames = []string{ConfigFileName, YAMLConfigFileName, "devd.yml"}

// DefaultWatchPatterns are watched when the config names none.
var DefaultWatchPatterns = []string{"src/**/*", "public/**/*"}

// DefaultIgnorePatterns are always ignored in addition to user patterns.
var DefaultIgnorePatterns = []string{
	"**/node_modules/**",
	"**/.git/**",
	"dist/**",
	"**/*.swp",
	"**/*.tmp",
	"**/*~",
	"**/.DS_Store",
}

// Config represents the complete devd configuration.
type Config struct {
	// Name is the project name shown on the dashboard.
	Name string `json:"name,omitempty" yaml:"name,omitempty"`

	// Environment is a free-form label shown on the dashboard.
	Environment string `json:"environment,omitempty" yaml:"environment,omitempty"`

	// Port is the port to run the dev server on. 0 picks a free port.
	Port int `json:"port,omitempty" yaml:"port,omitempty"`

	// Host is the host to bind to.
	Host string `json:"host,omitempty" yaml:"host,omitempty"`

	// HotReload enables the file watcher and client reload broadcasts.
	HotReload bool `json:"hotReload" yaml:"hotReload"`

	// OpenBrowser opens the browser once the server is running.
	OpenBrowser bool `json:"openBrowser,omitempty" yaml:"openBrowser,omitempty"`

	// EnableLogs forwards log entries to connected clients.
	EnableLogs bool `json:"enableLogs" yaml:"enableLogs"`

	// EnableMetrics forwards metric samples to connected clients and
	// exposes /metrics.
	EnableMetrics bool `json:"enableMetrics" yaml:"enableMetrics"`

	// ProjectRoot is the project directory. Defaults to the directory
	// containing the config file.
	ProjectRoot string `json:"projectRoot,omitempty" yaml:"projectRoot,omitempty"`

	// SrcDir is the source directory, relative to ProjectRoot.
	SrcDir string `json:"srcDir,omitempty" yaml:"srcDir,omitempty"`

	// DistDir is the build output directory, relative to ProjectRoot.
	DistDir string `json:"distDir,omitempty" yaml:"distDir,omitempty"`

	// PublicDir is the static asset directory, relative to ProjectRoot.
	PublicDir string `json:"publicDir,omitempty" yaml:"publicDir,omitempty"`

	// WatchPatterns are paths or globs to watch, relative to ProjectRoot.
	WatchPatterns []string `json:"watchPatterns,omitempty" yaml:"watchPatterns,omitempty"`

	// IgnorePatterns are globs, relative to ProjectRoot, that never
	// produce change events.
	IgnorePatterns []string `json:"ignorePatterns,omitempty" yaml:"ignorePatterns,omitempty"`

	// Verbose passes a verbosity flag to the compiler and logs debug lines.
	Verbose bool `json:"verbose,omitempty" yaml:"verbose,omitempty"`

	// Quiet disables console mirroring of log entries.
	Quiet bool `json:"quiet,omitempty" yaml:"quiet,omitempty"`

	// Build contains compiler settings.
	Build BuildConfig `json:"build,omitempty" yaml:"build,omitempty"`

	// Watch contains watcher tuning.
	Watch WatchConfig `json:"watch,omitempty" yaml:"watch,omitempty"`

	// Logs contains log buffer settings.
	Logs LogsConfig `json:"logs,omitempty" yaml:"logs,omitempty"`

	// Metrics contains sampler settings.
	Metrics MetricsConfig `json:"metrics,omitempty" yaml:"metrics,omitempty"`

	// configPath stores the path where the config was loaded from.
	configPath string
}

// BuildConfig contains compiler settings.
type BuildConfig struct {
	// Compiler is the compiler binary used by the compile strategy.
	Compiler string `json:"compiler,omitempty" yaml:"compiler,omitempty"`

	// Args are extra arguments passed to the compiler.
	Args []string `json:"args,omitempty" yaml:"args,omitempty"`

	// ProjectFile is the descriptor whose presence selects the compile
	// strategy.
	ProjectFile string `json:"projectFile,omitempty" yaml:"projectFile,omitempty"`

	// Timeout bounds one compiler run. Negative disables the timeout.
	Timeout Duration `json:"timeout,omitempty" yaml:"timeout,omitempty"`

	// CopyExtensions are the source extensions copied by the copy strategy.
	CopyExtensions []string `json:"copyExtensions,omitempty" yaml:"copyExtensions,omitempty"`
}

// WatchConfig contains watcher tuning.
type WatchConfig struct {
	// Debounce is the quiet window before a change is delivered.
	Debounce Duration `json:"debounce,omitempty" yaml:"debounce,omitempty"`
}

// LogsConfig contains log buffer settings.
type LogsConfig struct {
	// BufferSize is the maximum number of retained entries.
	BufferSize int `json:"bufferSize,omitempty" yaml:"bufferSize,omitempty"`
}

// MetricsConfig contains sampler settings.
type MetricsConfig struct {
	// Interval is the sampling period.
	Interval Duration `json:"interval,omitempty" yaml:"interval,omitempty"`
}

// New creates a new Config with default values.
func New() *Config {
	return &Config{
		Environment:    "development",
		Port:           DefaultPort,
		Host:           DefaultHost,
		HotReload:      true,
		EnableLogs:     true,
		EnableMetrics:  true,
		SrcDir:         DefaultSrcDir,
		DistDir:        DefaultDistDir,
		PublicDir:      DefaultPublicDir,
		WatchPatterns:  append([]string(nil), DefaultWatchPatterns...),
		IgnorePatterns: append([]string(nil), DefaultIgnorePatterns...),
		Build: BuildConfig{
			Compiler:       DefaultCompiler,
			ProjectFile:    DefaultProjectFile,
			Timeout:        Duration{DefaultBuildTimeout},
			CopyExtensions: []string{".js", ".json"},
		},
		Watch:   WatchConfig{Debounce: Duration{DefaultDebounce}},
		Logs:    LogsConfig{BufferSize: DefaultLogBufferSize},
		Metrics: MetricsConfig{Interval: Duration{DefaultMetricsInterval}},
	}
}

// Load reads configuration from the specified directory.
// It looks for devd.json, then devd.yaml, then devd.yml.
func Load(dir string) (*Config, error) {
	for _, name := range configFileNames {
		path := filepath.Join(dir, name)
		if _, err := os.Stat(path); err == nil {
			return LoadFile(path)
		}
	}
	return nil, errors.New("E121").
		WithDetail("No devd.json or devd.yaml found in " + dir).
		WithSuggestion("Create devd.json in the project root or run with defaults")
}

// LoadOrDefault loads configuration from dir, falling back to defaults rooted
// at dir when no config file exists.
func LoadOrDefault(dir string) (*Config, error) {
	if Exists(dir) {
		return Load(dir)
	}
	abs, err := filepath.Abs(dir)
	if err != nil {
		return nil, errors.New("E124").Wrap(err)
	}
	cfg := New()
	cfg.ProjectRoot = abs
	cfg.applyDefaults()
	return cfg, nil
}

// LoadFile reads configuration from the specified file path. The decoder is
// chosen from the file extension.
func LoadFile(path string) (*Config, error) {
	data, err := os.ReadFile(path)
	if err != nil {
		if os.IsNotExist(err) {
			return nil, errors.New("E121").
				WithDetail("No config file at " + path)
		}
		return nil, errors.New("E120").Wrap(err)
	}

	cfg := New()
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		err = yaml.Unmarshal(data, cfg)
	default:
		err = json.Unmarshal(data, cfg)
	}
	if err != nil {
		return nil, errors.New("E120").
			WithDetail("Failed to parse " + filepath.Base(path) + ": " + err.Error()).
			WithSuggestion("Check that the config file is valid " + strings.TrimPrefix(filepath.Ext(path), "."))
	}

	abs, err := filepath.Abs(path)
	if err != nil {
		return nil, errors.New("E120").Wrap(err)
	}
	cfg.configPath = abs
	cfg.applyDefaults()

	return cfg, nil
}

// SaveTo writes the configuration to the specified path as JSON or YAML,
// depending on the extension.
func (c *Config) SaveTo(path string) error {
	var (
		data []byte
		err  error
	)
	switch strings.ToLower(filepath.Ext(path)) {
	case ".yaml", ".yml":
		data, err = yaml.Marshal(c)
	default:
		data, err = json.MarshalIndent(c, "", "  ")
		data = append(data, '\n')
	}
	if err != nil {
		return errors.New("E120").Wrap(err)
	}

	if err := os.WriteFile(path, data, 0644); err != nil {
		return errors.New("E120").Wrap(err)
	}

	c.configPath = path
	return nil
}

// Path returns the path where the config was loaded from.
func (c *Config) Path() string {
	return c.configPath
}

// applyDefaults fills in default values for empty fields.
func (c *Config) applyDefaults() {
	if c.Host == "" {
		c.Host = DefaultHost
	}
	if c.Environment == "" {
		c.Environment = "development"
	}
	if c.ProjectRoot == "" && c.configPath != "" {
		c.ProjectRoot = filepath.Dir(c.configPath)
	} else if c.ProjectRoot != "" && !filepath.IsAbs(c.ProjectRoot) && c.configPath != "" {
		c.ProjectRoot = filepath.Join(filepath.Dir(c.configPath), c.ProjectRoot)
	}
	if c.SrcDir == "" {
		c.SrcDir = DefaultSrcDir
	}
	if c.DistDir == "" {
		c.DistDir = DefaultDistDir
	}
	if c.PublicDir == "" {
		c.PublicDir = DefaultPublicDir
	}
	if c.WatchPatterns == nil {
		c.WatchPatterns = append([]string(nil), DefaultWatchPatterns...)
	}
	if c.Build.Compiler == "" {
		c.Build.Compiler = DefaultCompiler
	}
	if c.Build.ProjectFile == "" {
		c.Build.ProjectFile = DefaultProjectFile
	}
	if c.Build.Timeout.Duration == 0 {
		c.Build.Timeout = Duration{DefaultBuildTimeout}
	}
	if len(c.Build.CopyExtensions) == 0 {
		c.Build.CopyExtensions = []string{".js", ".json"}
	}
	if c.Watch.Debounce.Duration <= 0 {
		c.Watch.Debounce = Duration{DefaultDebounce}
	}
	if c.Logs.BufferSize <= 0 {
		c.Logs.BufferSize = DefaultLogBufferSize
	}
	if c.Metrics.Interval.Duration <= 0 {
		c.Metrics.Interval = Duration{DefaultMetricsInterval}
	}
}

// Validate checks if the configuration is valid. All returned errors are
// configuration errors and must stop the server from starting.
func (c *Config) Validate() error {
	if c.Port < 0 || c.Port > 65535 {
		return errors.New("E122").
			WithDetail("Port must be between 0 and 65535, got " + strconv.Itoa(c.Port))
	}
	if c.Host == "" || strings.ContainsAny(c.Host, " /\\") {
		return errors.New("E123").
			WithDetail("Host " + strconv.Quote(c.Host) + " is not a valid host name or address")
	}
	if c.ProjectRoot == "" {
		return errors.New("E124").WithDetail("projectRoot is empty")
	}
	info, err := os.Stat(c.ProjectRoot)
	if err != nil {
		return errors.New("E124").WithDetail(c.ProjectRoot).Wrap(err)
	}
	if !info.IsDir() {
		return errors.New("E124").WithDetail(c.ProjectRoot + " is not a directory")
	}
	for _, pattern := range append(append([]string(nil), c.WatchPatterns...), c.IgnorePatterns...) {
		if err := glob.Validate(pattern); err != nil {
			return errors.New("E125").WithDetail(strconv.Quote(pattern)).Wrap(err)
		}
	}
	return nil
}

// Address returns the host:port string for the listener.
func (c *Config) Address() string {
	return net.JoinHostPort(c.Host, strconv.Itoa(c.Port))
}

// URL returns the full URL for the dev server.
func (c *Config) URL() string {
	return "http://" + c.Address()
}

// Root returns the absolute project root.
func (c *Config) Root() string {
	if c.ProjectRoot == "" {
		return ""
	}
	if abs, err := filepath.Abs(c.ProjectRoot); err == nil {
		return abs
	}
	return c.ProjectRoot
}

// SrcPath returns the absolute path to the source directory.
func (c *Config) SrcPath() string {
	return c.resolve(c.SrcDir)
}

// DistPath returns the absolute path to the build output directory.
func (c *Config) DistPath() string {
	return c.resolve(c.DistDir)
}

// PublicPath returns the absolute path to the public directory.
func (c *Config) PublicPath() string {
	return c.resolve(c.PublicDir)
}

// ProjectFilePath returns the absolute path of the compile-strategy
// descriptor.
func (c *Config) ProjectFilePath() string {
	return c.resolve(c.Build.ProjectFile)
}

// IgnoreList returns the default ignore patterns merged with the configured
// ones, without duplicates.
func (c *Config) IgnoreList() []string {
	patterns := append([]string(nil), DefaultIgnorePatterns...)
	if dist, ok := c.distIgnorePattern(); ok {
		patterns = append(patterns, dist)
	}
	patterns = append(patterns, c.IgnorePatterns...)

	seen := make(map[string]struct{}, len(patterns))
	out := make([]string, 0, len(patterns))
	for _, pattern := range patterns {
		if _, ok := seen[pattern]; ok {
			continue
		}
		seen[pattern] = struct{}{}
		out = append(out, pattern)
	}
	return out
}

// distIgnorePattern matches everything under the output directory when it
// lies inside the project root. Builds write there, so watching it would
// trigger a rebuild after every build.
func (c *Config) distIgnorePattern() (string, bool) {
	rel := c.DistDir
	if filepath.IsAbs(rel) {
		root := c.Root()
		if root == "" {
			return "", false
		}
		r, err := filepath.Rel(root, rel)
		if err != nil {
			return "", false
		}
		rel = r
	}
	rel = filepath.ToSlash(filepath.Clean(rel))
	if rel == "." || rel == ".." || strings.HasPrefix(rel, "../") {
		return "", false
	}
	return rel + "/**", true
}

func (c *Config) resolve(path string) string {
	if filepath.IsAbs(path) {
		return path
	}
	return filepath.Join(c.Root(), path)
}

// Exists checks if a config file exists in the given directory.
func Exists(dir string) bool {
	for _, name := range configFileNames {
		if _, err := os.Stat(filepath.Join(dir, name)); err == nil {
			return true
		}
	}
	return false
}

// FindProjectRoot walks up directories to find the project root.
// Returns the directory containing a devd config file, or an error if not found.
func FindProjectRoot(startDir string) (string, error) {
	dir, err := filepath.Abs(startDir)
	if err != nil {
		return "", err
	}

	for {
		if Exists(dir) {
			return dir, nil
		}

		parent := filepath.Dir(dir)
		if parent == dir {
			return "", errors.New("E121").
				WithDetail("No devd config found in " + startDir + " or any parent directory")
		}
		dir = parent
	}
}

// LoadFromWorkingDir loads configuration from the nearest directory at or
// above the working directory, or defaults rooted at the working directory.
func LoadFromWorkingDir() (*Config, error) {
	wd, err := os.Getwd()
	if err != nil {
		return nil, err
	}

	root, err := FindProjectRoot(wd)
	if err != nil {
		return LoadOrDefault(wd)
	}

	return Load(root)
}
