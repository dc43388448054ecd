package main

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/vango-dev/devd/internal/templates"
)

type initFlags struct {
	template  string
	name      string
	port      int
	noReload  bool
	overwrite bool
}

func initCmd() *cobra.Command {
	var flags initFlags

	cmd := &cobra.Command{
		Use:   "init [dir]",
		Short: "Scaffold a devd project",
		Long: `Scaffold a devd project in dir (default: the working directory).

Templates:
  typescript  tsconfig.json and src/index.ts, built with tsc (default)
  javascript  src/index.js, copied to the output directory

Examples:
  devd init
  devd init site --template=javascript
  devd init --port=8080 --force`,
		Args: cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) == 1 {
				dir = args[0]
			}
			return runInit(dir, flags)
		},
	}

	cmd.Flags().StringVarP(&flags.template, "template", "t", "typescript", "Project template (typescript, javascript)")
	cmd.Flags().StringVarP(&flags.name, "name", "n", "", "Project name (default: directory name)")
	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "Development server port")
	cmd.Flags().BoolVar(&flags.noReload, "no-hot-reload", false, "Write hotReload: false")
	cmd.Flags().BoolVarP(&flags.overwrite, "force", "f", false, "Overwrite existing files")

	return cmd
}

func runInit(dir string, flags initFlags) error {
	tmpl, err := templates.Get(flags.template)
	if err != nil {
		return err
	}

	projectDir, err := filepath.Abs(dir)
	if err != nil {
		return err
	}
	if err := os.MkdirAll(projectDir, 0755); err != nil {
		return err
	}

	info("Creating project from '%s' template...", tmpl.Name)
	paths, err := tmpl.Create(projectDir, templates.Config{
		ProjectName: flags.name,
		Port:        flags.port,
		HotReload:   !flags.noReload,
	}, flags.overwrite)
	if err != nil {
		return err
	}

	for _, p := range paths {
		info("  %s", p)
	}
	fmt.Println()
	success("Project ready in %s", projectDir)
	fmt.Println()
	fmt.Println("  Next steps:")
	if dir != "." {
		fmt.Printf("    cd %s\n", dir)
	}
	fmt.Println("    devd dev")
	fmt.Println()
	return nil
}
