package main

import (
	"context"
	"fmt"
	"os"
	"os/exec"
	"os/signal"
	"runtime"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/devd/internal/build"
	"github.com/vango-dev/devd/internal/config"
	"github.com/vango-dev/devd/internal/dev"
)

// stopTimeout bounds graceful shutdown after a signal.
const stopTimeout = 10 * time.Second

type devFlags struct {
	port        int
	host        string
	openBrowser bool
	quiet       bool
	verbose     bool
	noHotReload bool
}

func devCmd() *cobra.Command {
	var flags devFlags

	cmd := &cobra.Command{
		Use:   "dev",
		Short: "Start the development server",
		Long: `Start the development server with hot reload.

The dev server watches source files, rebuilds on change, and
reloads connected browsers when the build completes.

Examples:
  devd dev
  devd dev --port=8080
  devd dev --host=0.0.0.0 --open`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runDev(flags)
		},
	}

	cmd.Flags().IntVarP(&flags.port, "port", "p", 0, "Port to run on (default from devd.json)")
	cmd.Flags().StringVarP(&flags.host, "host", "H", "", "Host to bind to (default from devd.json)")
	cmd.Flags().BoolVarP(&flags.openBrowser, "open", "o", false, "Open browser on start")
	cmd.Flags().BoolVarP(&flags.quiet, "quiet", "q", false, "Do not mirror log lines to the console")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Mirror debug log lines and list emitted files")
	cmd.Flags().BoolVar(&flags.noHotReload, "no-hot-reload", false, "Disable file watching and browser reload")

	return cmd
}

// applyDevFlags applies command-line overrides to the loaded config.
func applyDevFlags(cfg *config.Config, flags devFlags) {
	if flags.port > 0 {
		cfg.Port = flags.port
	}
	if flags.host != "" {
		cfg.Host = flags.host
	}
	if flags.openBrowser {
		cfg.OpenBrowser = true
	}
	if flags.quiet {
		cfg.Quiet = true
	}
	if flags.verbose {
		cfg.Verbose = true
	}
	if flags.noHotReload {
		cfg.HotReload = false
	}
}

func runDev(flags devFlags) error {
	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	applyDevFlags(cfg, flags)

	if build.SelectStrategy(cfg.Root(), cfg.Build.ProjectFile) == build.StrategyCompile {
		if _, err := exec.LookPath(cfg.Build.Compiler); err != nil {
			warn("%s is not in PATH; builds will fail until it is installed", cfg.Build.Compiler)
		}
	}

	printBanner()
	fmt.Println("  dev")
	fmt.Println()

	server := dev.NewServer(dev.ServerOptions{
		Config:      cfg,
		OpenBrowser: openURL,
	})

	server.OnStart.Subscribe(func(url string) {
		success("Ready at %s", url)
	})
	server.Builder().OnComplete.Subscribe(func(result *build.Result) {
		success("Built in %s", result.Duration.Round(time.Millisecond))
	})
	server.Builder().OnError.Subscribe(func(result *build.Result) {
		errorMsg("Build failed with %d error(s)", len(result.Errors))
		for _, d := range result.Errors {
			info("%s", d)
		}
	})

	failed := make(chan error, 1)
	server.OnError.Subscribe(func(err error) {
		select {
		case failed <- err:
		default:
		}
	})

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	if err := server.Start(ctx); err != nil {
		return err
	}

	var runErr error
	select {
	case <-ctx.Done():
		fmt.Println("\n\n  Shutting down...")
	case runErr = <-failed:
	}

	stopCtx, cancel := context.WithTimeout(context.Background(), stopTimeout)
	defer cancel()
	if err := server.Stop(stopCtx); err != nil && runErr == nil {
		runErr = err
	}
	return runErr
}

// openURL opens a URL in the default browser.
func openURL(url string) error {
	var cmd *exec.Cmd

	switch {
	case runtime.GOOS == "windows":
		cmd = exec.Command("cmd", "/c", "start", url)
	case commandExists("xdg-open"):
		cmd = exec.Command("xdg-open", url)
	case commandExists("open"):
		cmd = exec.Command("open", url)
	default:
		return fmt.Errorf("no browser opener found")
	}

	if err := cmd.Start(); err != nil {
		return err
	}
	go cmd.Wait()
	return nil
}

// commandExists checks if a command exists in PATH.
func commandExists(name string) bool {
	_, err := exec.LookPath(name)
	return err == nil
}
