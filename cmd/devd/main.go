package main

import (
	"fmt"
	"os"

	"github.com/fatih/color"
	"github.com/spf13/cobra"

	"github.com/vango-dev/devd/internal/errors"
)

// Version information set at build time.
var (
	version = "dev"
	commit  = "none"
	date    = "unknown"
)

const banner = `
  ┌┬┐┌─┐┬  ┬┌┬┐
   ││├┤ └┐┌┘ ││
  ─┴┘└─┘ └┘ ─┴┘
`

func main() {
	if err := newRootCmd().Execute(); err != nil {
		errors.PrintError(err)
		os.Exit(1)
	}
}

func newRootCmd() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:   "devd",
		Short: "Development server with build orchestration and hot reload",
		Long: `devd runs a local development server for front-end projects.

It watches source files, rebuilds them with the TypeScript compiler
(or copies them when there is no tsconfig.json), and reloads
connected browsers when the build finishes. Features include:

  • Debounced file watching with glob patterns
  • Single-flight builds with compiler diagnostics
  • WebSocket hot reload
  • Log buffer and runtime metrics over HTTP
  • One-shot builds published to S3`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	rootCmd.AddCommand(
		initCmd(),
		devCmd(),
		buildCmd(),
		versionCmd(),
	)

	return rootCmd
}

// printBanner prints the devd ASCII art banner.
func printBanner() {
	fmt.Print(banner)
}

var (
	green  = color.New(color.FgGreen).SprintFunc()
	yellow = color.New(color.FgYellow).SprintFunc()
	red    = color.New(color.FgRed).SprintFunc()
)

// success prints a success message.
func success(format string, args ...any) {
	fmt.Printf("%s %s\n", green("✓"), fmt.Sprintf(format, args...))
}

// info prints an info message.
func info(format string, args ...any) {
	fmt.Printf("  %s\n", fmt.Sprintf(format, args...))
}

func warn(format string, args ...any) {
	fmt.Printf("%s %s\n", yellow("⚠"), fmt.Sprintf(format, args...))
}

func errorMsg(format string, args ...any) {
	fmt.Fprintf(os.Stderr, "%s %s\n", red("✗"), fmt.Sprintf(format, args...))
}
