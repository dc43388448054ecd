package templates

import (
	"bytes"
	"os"
	"path/filepath"
	"sort"
	"text/template"

	"github.com/vango-dev/devd/internal/config"
	"github.com/vango-dev/devd/internal/errors"
)

// Config contains template configuration.
type Config struct {
	// ProjectName is the name of the project.
	ProjectName string

	// Port is written to devd.json. Zero means config.DefaultPort.
	Port int

	// HotReload is written to devd.json.
	HotReload bool
}

// Template represents a project template.
type Template struct {
	// Name is the template name.
	Name string

	// Description describes the template.
	Description string

	// Files is a map of slash-separated relative paths to file contents.
	Files map[string]string
}

// Available templates.
var templates = map[string]*Template{
	"typescript": typescriptTemplate(),
	"javascript": javascriptTemplate(),
}

// Get returns a template by name.
func Get(name string) (*Template, error) {
	tmpl, ok := templates[name]
	if !ok {
		return nil, errors.New("E262").
			WithDetail("Template '" + name + "' not found").
			WithSuggestion("Available templates: javascript, typescript")
	}
	return tmpl, nil
}

// List returns all available template names in sorted order.
func List() []string {
	names := make([]string, 0, len(templates))
	for name := range templates {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}

// Paths returns the template's file paths in sorted order.
func (t *Template) Paths() []string {
	paths := make([]string, 0, len(t.Files))
	for p := range t.Files {
		paths = append(paths, p)
	}
	sort.Strings(paths)
	return paths
}

// Create renders the template into dir and returns the written paths. It
// refuses to overwrite any existing file unless force is set, and checks
// every path before writing the first one.
func (t *Template) Create(dir string, cfg Config, force bool) ([]string, error) {
	if cfg.ProjectName == "" {
		cfg.ProjectName = filepath.Base(dir)
	}
	if cfg.Port == 0 {
		cfg.Port = config.DefaultPort
	}

	paths := t.Paths()
	if !force {
		for _, relPath := range paths {
			if _, err := os.Stat(filepath.Join(dir, filepath.FromSlash(relPath))); err == nil {
				return nil, errors.New("E263").
					WithDetail(relPath + " already exists in " + dir).
					WithSuggestion("Run devd init --force to overwrite it")
			}
		}
	}

	for _, relPath := range paths {
		tmpl, err := template.New(relPath).Parse(t.Files[relPath])
		if err != nil {
			return nil, errors.Newf(errors.CategoryCLI, "invalid template %s: %v", relPath, err)
		}

		var buf bytes.Buffer
		if err := tmpl.Execute(&buf, cfg); err != nil {
			return nil, errors.Newf(errors.CategoryCLI, "template execute error %s: %v", relPath, err)
		}

		fullPath := filepath.Join(dir, filepath.FromSlash(relPath))
		if err := os.MkdirAll(filepath.Dir(fullPath), 0755); err != nil {
			return nil, err
		}
		if err := os.WriteFile(fullPath, buf.Bytes(), 0644); err != nil {
			return nil, err
		}
	}

	return paths, nil
}

const configFile = `{
  "name": "{{.ProjectName}}",
  "port": {{.Port}},
  "hotReload": {{.HotReload}},
  "enableLogs": true,
  "enableMetrics": true,
  "srcDir": "src",
  "distDir": "dist",
  "publicDir": "public"
}
`

const indexHTML = `<!DOCTYPE html>
<html>
<head>
  <meta charset="utf-8">
  <title>{{.ProjectName}}</title>
</head>
<body>
  <h1>{{.ProjectName}}</h1>
  <p id="out"></p>
  <script type="module" src="/index.js"></script>
</body>
</html>
`

const gitignore = `dist/
node_modules/
`

func typescriptTemplate() *Template {
	return &Template{
		Name:        "typescript",
		Description: "TypeScript sources compiled with tsc",
		Files: map[string]string{
			"devd.json":         configFile,
			"public/index.html": indexHTML,
			".gitignore":        gitignore,
			"tsconfig.json": `{
  "compilerOptions": {
    "target": "ES2020",
    "module": "ES2020",
    "strict": true,
    "rootDir": "src",
    "outDir": "dist"
  },
  "include": ["src"]
}
`,
			"src/index.ts": `const out = document.getElementById("out");
if (out) {
  out.textContent = "Hello from {{.ProjectName}}";
}
`,
		},
	}
}

func javascriptTemplate() *Template {
	return &Template{
		Name:        "javascript",
		Description: "Plain JavaScript sources copied to the output directory",
		Files: map[string]string{
			"devd.json":         configFile,
			"public/index.html": indexHTML,
			".gitignore":        gitignore,
			"src/index.js": `const out = document.getElementById("out");
if (out) {
  out.textContent = "Hello from {{.ProjectName}}";
}
`,
		},
	}
}
