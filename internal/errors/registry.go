package errors

import "sync"

// ErrorTemplate defines a registered error type.
type ErrorTemplate struct {
	Category Category
	Message  string
	Detail   string
}

var registryMu sync.RWMutex

// registry maps error codes to their templates.
var registry = map[string]ErrorTemplate{
	// ============================================
	// Configuration Errors (E120-E139)
	// ============================================

	"E120": {
		Category: CategoryConfig,
		Message:  "Invalid configuration file",
		Detail:   "The devd.json or devd.yaml configuration file is malformed.",
	},
	"E121": {
		Category: CategoryConfig,
		Message:  "Missing required configuration",
		Detail:   "A required configuration value is not set.",
	},
	"E122": {
		Category: CategoryConfig,
		Message:  "Invalid port number",
		Detail:   "The configured port number must be between 0 and 65535.",
	},
	"E123": {
		Category: CategoryConfig,
		Message:  "Invalid host",
		Detail:   "The configured host is empty or contains illegal characters.",
	},
	"E124": {
		Category: CategoryConfig,
		Message:  "Project root not found",
		Detail:   "The configured project root does not exist or is not a directory.",
	},
	"E125": {
		Category: CategoryConfig,
		Message:  "Invalid glob pattern",
		Detail:   "A watch or ignore pattern is not a valid glob.",
	},

	// ============================================
	// Build Errors (E200-E219)
	// ============================================

	"E200": {
		Category: CategoryBuild,
		Message:  "Build failed",
		Detail:   "The compiler reported errors. Check the diagnostics for details.",
	},
	"E201": {
		Category: CategoryBuild,
		Message:  "Build already in progress",
		Detail:   "Only one build may run at a time. Wait for the current build to finish.",
	},
	"E202": {
		Category: CategoryBuild,
		Message:  "Compiler not found",
		Detail:   "The compiler binary could not be started. Is it installed and in PATH?",
	},
	"E203": {
		Category: CategoryBuild,
		Message:  "Build timed out",
		Detail:   "The compiler did not finish within the configured build timeout and was killed.",
	},
	"E204": {
		Category: CategoryBuild,
		Message:  "Output directory error",
		Detail:   "The build output directory could not be created or written.",
	},
	"E205": {
		Category: CategoryBuild,
		Message:  "Static asset copy failed",
		Detail:   "Copying the public directory into the output directory failed.",
	},

	// ============================================
	// Watch Errors (E220-E239)
	// ============================================

	"E220": {
		Category: CategoryWatch,
		Message:  "Watcher unavailable",
		Detail:   "The filesystem notification backend could not be initialised.",
	},
	"E221": {
		Category: CategoryWatch,
		Message:  "Watch failed",
		Detail:   "A path could not be added to the filesystem watcher.",
	},
	"E222": {
		Category: CategoryWatch,
		Message:  "Watcher error",
		Detail:   "The filesystem watcher reported an error. The affected watch may be stale.",
	},

	// ============================================
	// Server Errors (E240-E259)
	// ============================================

	"E240": {
		Category: CategoryServer,
		Message:  "Server already running",
		Detail:   "Start was called while the server is starting or running.",
	},
	"E241": {
		Category: CategoryServer,
		Message:  "Listener bind failed",
		Detail:   "The HTTP listener could not bind to the configured address. Is the port in use?",
	},
	"E242": {
		Category: CategoryServer,
		Message:  "Server start failed",
		Detail:   "A subsystem failed before the server reached the running state.",
	},
	"E243": {
		Category: CategoryTransport,
		Message:  "Client delivery failed",
		Detail:   "A message could not be delivered to a connected client.",
	},

	// ============================================
	// CLI Errors (E260-E279)
	// ============================================

	"E260": {
		Category: CategoryCLI,
		Message:  "Publish failed",
		Detail:   "Uploading build assets to the publish target failed.",
	},
	"E261": {
		Category: CategoryCLI,
		Message:  "Invalid publish target",
		Detail:   "Publish targets must look like s3://bucket/prefix.",
	},
	"E262": {
		Category: CategoryCLI,
		Message:  "Unknown template",
		Detail:   "The requested project template does not exist.",
	},
	"E263": {
		Category: CategoryCLI,
		Message:  "Project file exists",
		Detail:   "Scaffolding would overwrite an existing file.",
	},
}

// GetAllCodes returns all registered error codes.
func GetAllCodes() []string {
	registryMu.RLock()
	defer registryMu.RUnlock()
	codes := make([]string, 0, len(registry))
	for code := range registry {
		codes = append(codes, code)
	}
	return codes
}

// GetTemplate returns the template for an error code.
func GetTemplate(code string) (ErrorTemplate, bool) {
	registryMu.RLock()
	defer registryMu.RUnlock()
	t, ok := registry[code]
	return t, ok
}

// Register adds a new error template to the registry.
func Register(code string, template ErrorTemplate) {
	registryMu.Lock()
	defer registryMu.Unlock()
	registry[code] = template
}
