// Package publish uploads build output to S3 or an S3-compatible store.
package publish

import (
	"context"
	"fmt"
	"log/slog"
	"os"
	"path"
	"path/filepath"
	"sort"
	"strings"
	"sync"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"go.opentelemetry.io/otel"
	"go.opentelemetry.io/otel/attribute"
	"go.opentelemetry.io/otel/codes"
	"go.opentelemetry.io/otel/trace"
	"golang.org/x/sync/errgroup"

	"github.com/vango-dev/devd/internal/build"
	"github.com/vango-dev/devd/internal/errors"
	"github.com/vango-dev/devd/internal/logs"
)

const (
	// DefaultConcurrency is the number of uploads in flight at once.
	DefaultConcurrency = 8

	// DefaultRegion is used when neither the caller nor AWS_REGION sets one.
	DefaultRegion = "us-east-1"

	tracerName = "devd/publish"
)

// Target is a parsed s3://bucket/prefix location.
type Target struct {
	Bucket string
	Prefix string
}

// ParseTarget parses "s3://bucket" or "s3://bucket/some/prefix".
func ParseTarget(raw string) (Target, error) {
	rest, ok := strings.CutPrefix(raw, "s3://")
	if !ok {
		return Target{}, errors.New("E261").WithDetail(fmt.Sprintf("%q does not start with s3://", raw))
	}
	bucket, prefix, _ := strings.Cut(rest, "/")
	if bucket == "" {
		return Target{}, errors.New("E261").WithDetail(fmt.Sprintf("%q has no bucket name", raw))
	}
	return Target{Bucket: bucket, Prefix: strings.Trim(prefix, "/")}, nil
}

// Key returns the object key for a slash-separated path relative to the
// output directory.
func (t Target) Key(rel string) string {
	rel = strings.TrimPrefix(rel, "/")
	if t.Prefix == "" {
		return rel
	}
	return path.Join(t.Prefix, rel)
}

func (t Target) String() string {
	if t.Prefix == "" {
		return "s3://" + t.Bucket
	}
	return "s3://" + t.Bucket + "/" + t.Prefix
}

// Uploader is the subset of *s3.Client used for publishing.
type Uploader interface {
	PutObject(ctx context.Context, params *s3.PutObjectInput, optFns ...func(*s3.Options)) (*s3.PutObjectOutput, error)
}

// ClientOptions configures NewS3Client.
type ClientOptions struct {
	// Region defaults to AWS_REGION, then us-east-1.
	Region string
	// Endpoint points the client at an S3-compatible store. Setting it
	// switches to path-style addressing.
	Endpoint string
}

// NewS3Client builds an S3 client that reads static credentials from
// AWS_ACCESS_KEY_ID, AWS_SECRET_ACCESS_KEY and AWS_SESSION_TOKEN.
func NewS3Client(opts ClientOptions) *s3.Client {
	region := opts.Region
	if region == "" {
		region = os.Getenv("AWS_REGION")
	}
	if region == "" {
		region = DefaultRegion
	}

	o := s3.Options{
		Region:      region,
		Credentials: aws.NewCredentialsCache(aws.CredentialsProviderFunc(envCredentials)),
	}
	if opts.Endpoint != "" {
		o.BaseEndpoint = aws.String(opts.Endpoint)
		o.UsePathStyle = true
	}
	return s3.New(o)
}

func envCredentials(ctx context.Context) (aws.Credentials, error) {
	id := os.Getenv("AWS_ACCESS_KEY_ID")
	secret := os.Getenv("AWS_SECRET_ACCESS_KEY")
	if id == "" || secret == "" {
		return aws.Credentials{}, fmt.Errorf("AWS_ACCESS_KEY_ID and AWS_SECRET_ACCESS_KEY must be set")
	}
	return aws.Credentials{
		AccessKeyID:     id,
		SecretAccessKey: secret,
		SessionToken:    os.Getenv("AWS_SESSION_TOKEN"),
		Source:          "Environment",
	}, nil
}

// Options configures a Publisher.
type Options struct {
	Target      Target
	Concurrency int
	Logger      *slog.Logger
}

// Report summarizes one publish run.
type Report struct {
	Target   string        `json:"target"`
	BuildID  string        `json:"buildId"`
	Keys     []string      `json:"keys"`
	Bytes    int64         `json:"bytes"`
	Duration time.Duration `json:"duration"`
}

// Publisher uploads the assets of a build.
type Publisher struct {
	client Uploader
	opts   Options
	logger *slog.Logger
}

// New creates a Publisher.
func New(client Uploader, opts Options) *Publisher {
	if opts.Concurrency <= 0 {
		opts.Concurrency = DefaultConcurrency
	}
	logger := opts.Logger
	if logger == nil {
		logger = slog.Default().With(logs.SourceKey, "publish")
	}
	return &Publisher{client: client, opts: opts, logger: logger}
}

// Publish uploads every asset of result, read from dir, under the target
// prefix. The first failed upload cancels the rest.
func (p *Publisher) Publish(ctx context.Context, dir string, result *build.Result) (*Report, error) {
	if result == nil || !result.Success {
		return nil, errors.New("E260").WithDetail("the build did not succeed, nothing was published")
	}

	ctx, span := otel.Tracer(tracerName).Start(ctx, "devd.publish",
		trace.WithAttributes(
			attribute.String("publish.target", p.opts.Target.String()),
			attribute.String("build.id", result.ID),
			attribute.Int("publish.assets", len(result.Assets)),
		),
	)
	defer span.End()

	start := time.Now()
	report := &Report{
		Target:  p.opts.Target.String(),
		BuildID: result.ID,
		Keys:    make([]string, 0, len(result.Assets)),
	}
	var mu sync.Mutex

	g, gctx := errgroup.WithContext(ctx)
	g.SetLimit(p.opts.Concurrency)
	for _, asset := range result.Assets {
		asset := asset
		g.Go(func() error {
			key := p.opts.Target.Key(asset.Path)
			n, err := p.upload(gctx, filepath.Join(dir, filepath.FromSlash(asset.Path)), key, result.ID)
			if err != nil {
				return fmt.Errorf("upload %s: %w", asset.Path, err)
			}
			p.logger.Debug("Uploaded asset", "key", key, "bytes", n)

			mu.Lock()
			report.Keys = append(report.Keys, key)
			report.Bytes += n
			mu.Unlock()
			return nil
		})
	}

	if err := g.Wait(); err != nil {
		span.RecordError(err)
		span.SetStatus(codes.Error, err.Error())
		return nil, errors.New("E260").WithDetail(fmt.Sprintf("publishing to %s failed", p.opts.Target)).Wrap(err)
	}

	sort.Strings(report.Keys)
	report.Duration = time.Since(start)
	p.logger.Info("Published build", "target", report.Target, "assets", len(report.Keys), "bytes", report.Bytes, "duration", report.Duration)
	return report, nil
}

func (p *Publisher) upload(ctx context.Context, file, key, buildID string) (int64, error) {
	f, err := os.Open(file)
	if err != nil {
		return 0, err
	}
	defer f.Close()

	info, err := f.Stat()
	if err != nil {
		return 0, err
	}

	_, err = p.client.PutObject(ctx, &s3.PutObjectInput{
		Bucket:        aws.String(p.opts.Target.Bucket),
		Key:           aws.String(key),
		Body:          f,
		ContentLength: aws.Int64(info.Size()),
		ContentType:   aws.String(build.ContentType(file)),
		Metadata: map[string]string{
			"build-id": buildID,
		},
	})
	if err != nil {
		return 0, err
	}
	return info.Size(), nil
}
