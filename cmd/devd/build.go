package main

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"os/signal"
	"syscall"
	"time"

	"github.com/spf13/cobra"

	"github.com/vango-dev/devd/internal/build"
	"github.com/vango-dev/devd/internal/config"
	"github.com/vango-dev/devd/internal/dev"
	"github.com/vango-dev/devd/internal/errors"
	"github.com/vango-dev/devd/internal/logs"
	"github.com/vango-dev/devd/internal/publish"
)

type buildFlags struct {
	publish     string
	region      string
	endpoint    string
	concurrency int
	verbose     bool
}

func buildCmd() *cobra.Command {
	var flags buildFlags

	cmd := &cobra.Command{
		Use:   "build",
		Short: "Run one build",
		Long: `Run one build of the project into the output directory.

The compile strategy is used when the project descriptor
(tsconfig.json by default) exists; otherwise sources are copied.
With --publish the build output is uploaded to S3. Credentials
are read from AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and
AWS_SESSION_TOKEN.

Examples:
  devd build
  devd build --publish=s3://my-site/releases/v1
  devd build --publish=s3://assets --endpoint=http://localhost:9000`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runBuild(flags)
		},
	}

	cmd.Flags().StringVar(&flags.publish, "publish", "", "Upload the output to s3://bucket/prefix")
	cmd.Flags().StringVar(&flags.region, "region", "", "AWS region (default from AWS_REGION)")
	cmd.Flags().StringVar(&flags.endpoint, "endpoint", "", "Endpoint of an S3-compatible store")
	cmd.Flags().IntVar(&flags.concurrency, "concurrency", publish.DefaultConcurrency, "Uploads in flight at once")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "Show debug output and emitted files")

	return cmd
}

func runBuild(flags buildFlags) error {
	var target publish.Target
	if flags.publish != "" {
		t, err := publish.ParseTarget(flags.publish)
		if err != nil {
			return err
		}
		target = t
	}

	cfg, err := config.LoadFromWorkingDir()
	if err != nil {
		return err
	}
	if flags.verbose {
		cfg.Verbose = true
	}

	buf := logs.NewBuffer(logs.Options{
		MaxEntries: cfg.Logs.BufferSize,
		Verbose:    cfg.Verbose,
	})
	logger := slog.New(buf.Handler("build", slog.LevelDebug))

	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()

	builder := build.New(dev.BuildOptions(cfg, logger))
	info("Building %s (%s strategy)...", cfg.Root(), builder.Strategy())
	fmt.Println()

	result, err := builder.Build(ctx)
	if err != nil {
		return err
	}
	if !result.Success {
		for _, d := range result.Errors {
			errors.PrintError(d.Err(cfg.Root()))
		}
		return errors.New("E200").WithDetail(fmt.Sprintf("%d error(s)", len(result.Errors)))
	}
	for _, d := range result.Warnings {
		warn("%s", d)
	}

	var total int64
	for _, asset := range result.Assets {
		total += asset.Size
	}
	success("Build complete in %s", result.Duration.Round(time.Millisecond))
	info("%d assets, %s in %s", len(result.Assets), formatBytes(total), builder.DistPath())
	fmt.Println()

	if flags.publish == "" {
		return nil
	}

	client := publish.NewS3Client(publish.ClientOptions{
		Region:   flags.region,
		Endpoint: flags.endpoint,
	})
	publisher := publish.New(client, publish.Options{
		Target:      target,
		Concurrency: flags.concurrency,
		Logger:      logger.With(logs.SourceKey, "publish"),
	})

	report, err := publisher.Publish(ctx, builder.DistPath(), result)
	if err != nil {
		return err
	}
	success("Published %d assets to %s in %s", len(report.Keys), report.Target, report.Duration.Round(time.Millisecond))
	return nil
}

// formatBytes formats bytes as a human-readable string.
func formatBytes(b int64) string {
	const unit = 1024
	if b < unit {
		return fmt.Sprintf("%d B", b)
	}
	div, exp := int64(unit), 0
	for n := b / unit; n >= unit; n /= unit {
		div *= unit
		exp++
	}
	return fmt.Sprintf("%.1f %ciB", float64(b)/float64(div), "KMGTPE"[exp])
}
