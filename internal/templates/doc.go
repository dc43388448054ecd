// Package templates provides project scaffolding for devd init.
//
// # Available Templates
//
//   - typescript: tsconfig.json plus src/index.ts, built with the compile strategy
//   - javascript: src/index.js only, built with the copy strategy
//
// Both templates write devd.json and public/index.html.
//
// # Usage
//
//	tmpl, err := templates.Get("typescript")
//	if err != nil {
//	    return err
//	}
//	files, err := tmpl.Create(projectDir, templates.Config{ProjectName: "site"})
//
// # Template Variables
//
//	{{.ProjectName}}  - Name of the project
//	{{.Port}}         - Development server port
//	{{.HotReload}}    - Whether hot reload is enabled
package templates
