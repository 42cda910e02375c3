// Package s3 implements the object store connector for Amazon S3 and
// S3-compatible endpoints.
//
// Buckets are the scan roots. Delimiter listings shape the flat keyspace
// into directories, object owners come from the listing's FetchOwner data
// or the object ACL, and bucket tags feed the container slot of the owner
// and tag resolution chain.
package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strconv"
	"strings"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/config"
	"github.com/aws/aws-sdk-go-v2/credentials"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	"github.com/driftlake/metascan"
	scanerrors "github.com/driftlake/metascan/errors"
	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"
)

// Kind is the connector kind and the source label stamped on records.
const Kind = "s3"

// listPageSize is the page size requested from ListObjectsV2.
const listPageSize = 1000

func init() {
	metascan.RegisterConnector(Kind, func(ctx context.Context, settings map[string]string) (scan.Connector, error) {
		return New(ctx, ConfigFromSettings(settings))
	})
}

// Config holds the connector configuration.
type Config struct {
	// Region is the AWS region. When empty the default credential chain
	// region applies, falling back to us-east-1.
	Region string

	// AccessKeyID and SecretAccessKey are static credentials. When empty
	// the default credential chain is used.
	AccessKeyID     string
	SecretAccessKey string

	// Endpoint overrides the S3 endpoint, for S3-compatible stores.
	Endpoint string

	// ForcePathStyle forces path-style addressing, required by most
	// S3-compatible endpoints.
	ForcePathStyle bool

	// Buckets restricts scanning to the named buckets instead of
	// discovering every bucket the credentials can list. Each entry is a
	// bucket name, optionally scoped as "bucket/prefix".
	Buckets []string

	// FetchObjectDetails makes every file record complete its properties
	// with HeadObject and GetObjectAcl instead of trusting listing data.
	// This adds content type, version id and user metadata at the cost of
	// two extra calls per object.
	FetchObjectDetails bool

	// SkipObjectTags disables the per-object GetObjectTagging call.
	// Records then carry bucket tags only.
	SkipObjectTags bool

	// Logger receives connector diagnostics. Defaults to a discard logger.
	Logger *slog.Logger
}

// ConfigFromSettings builds a Config from flat string settings, using the
// key names the scanner configuration exposes.
func ConfigFromSettings(settings map[string]string) Config {
	cfg := Config{
		Region:          settings["region"],
		AccessKeyID:     settings["aws_access_key_id"],
		SecretAccessKey: settings["aws_secret_access_key"],
		Endpoint:        settings["endpoint"],
	}
	if v := settings["bucket"]; v != "" {
		for _, b := range strings.Split(v, ",") {
			if b = strings.TrimSpace(b); b != "" {
				cfg.Buckets = append(cfg.Buckets, b)
			}
		}
	}
	cfg.ForcePathStyle, _ = strconv.ParseBool(settings["force_path_style"])
	cfg.FetchObjectDetails, _ = strconv.ParseBool(settings["fetch_object_details"])
	cfg.SkipObjectTags, _ = strconv.ParseBool(settings["skip_object_tags"])
	return cfg
}

// Connector scans S3 buckets. It implements scan.Connector and
// scan.AccountReporter.
type Connector struct {
	client S3API
	sts    STSAPI
	cfg    Config
	log    *slog.Logger
}

// New creates an S3 connector with the provided configuration. Credentials
// come from the config when set, otherwise from the default AWS credential
// chain.
//
// SDK-level retries are disabled; the scan engine owns retry policy.
//
// Example:
//
//	conn, err := s3.New(ctx, s3.Config{
//	    Region:  "eu-west-1",
//	    Buckets: []string{"finance-reports"},
//	})
func New(ctx context.Context, cfg Config) (*Connector, error) {
	loadOpts := []func(*config.LoadOptions) error{
		config.WithRetryMaxAttempts(1),
	}
	if cfg.Region != "" {
		loadOpts = append(loadOpts, config.WithRegion(cfg.Region))
	}
	if cfg.AccessKeyID != "" {
		loadOpts = append(loadOpts, config.WithCredentialsProvider(
			credentials.NewStaticCredentialsProvider(cfg.AccessKeyID, cfg.SecretAccessKey, "")))
	}

	awsCfg, err := config.LoadDefaultConfig(ctx, loadOpts...)
	if err != nil {
		return nil, scanerrors.NewError("configure", Kind, err)
	}
	if awsCfg.Region == "" {
		awsCfg.Region = "us-east-1" // AWS default region
	}

	var s3Opts []func(*s3.Options)
	if cfg.Endpoint != "" {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.BaseEndpoint = aws.String(cfg.Endpoint)
		})
	}
	if cfg.ForcePathStyle {
		s3Opts = append(s3Opts, func(o *s3.Options) {
			o.UsePathStyle = true
		})
	}

	c := &Connector{
		client: s3.NewFromConfig(awsCfg, s3Opts...),
		sts:    sts.NewFromConfig(awsCfg),
		cfg:    cfg,
		log:    cfg.Logger,
	}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	return c, nil
}

// NewWithClients creates a connector with custom API implementations.
// This is primarily used for testing with mocked clients.
func NewWithClients(client S3API, stsClient STSAPI, cfg Config) *Connector {
	c := &Connector{client: client, sts: stsClient, cfg: cfg, log: cfg.Logger}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	return c
}

// Source returns the source label for records produced by this connector.
func (c *Connector) Source() string { return Kind }

// DiscoverRoots returns the configured buckets, or every bucket the
// credentials can list when none are configured.
func (c *Connector) DiscoverRoots(ctx context.Context) ([]record.Root, error) {
	if len(c.cfg.Buckets) > 0 {
		roots := make([]record.Root, 0, len(c.cfg.Buckets))
		for _, id := range c.cfg.Buckets {
			bucket, _ := splitRootIdentifier(id)
			roots = append(roots, record.Root{Identifier: id, DisplayName: bucket})
		}
		return roots, nil
	}

	var roots []record.Root
	input := &s3.ListBucketsInput{}
	for {
		out, err := c.client.ListBuckets(ctx, input)
		if err != nil {
			return nil, scanerrors.NewError("discover_roots", Kind, convertError(err))
		}
		for _, b := range out.Buckets {
			name := aws.ToString(b.Name)
			root := record.Root{Identifier: name, DisplayName: name}
			if b.CreationDate != nil {
				root.Extra = map[string]any{"created": b.CreationDate.UTC().Format(time.RFC3339)}
			}
			if b.BucketRegion != nil {
				root.Location = aws.ToString(b.BucketRegion)
			}
			roots = append(roots, root)
		}
		if out.ContinuationToken == nil {
			break
		}
		input.ContinuationToken = out.ContinuationToken
	}
	return roots, nil
}

// OpenRoot validates the bucket with HeadBucket and returns the per-bucket
// scan source. The root identifier is a bucket name, optionally scoped as
// "bucket/prefix".
func (c *Connector) OpenRoot(ctx context.Context, root record.Root) (scan.RootSource, error) {
	bucket, prefix := splitRootIdentifier(root.Identifier)
	if bucket == "" {
		return nil, scanerrors.NewRootError("open_root", Kind, root.Identifier,
			fmt.Errorf("%w: empty bucket name", scanerrors.ErrInvalidInput))
	}

	if _, err := c.client.HeadBucket(ctx, &s3.HeadBucketInput{Bucket: aws.String(bucket)}); err != nil {
		cerr := convertError(err)
		if errors.Is(cerr, scanerrors.ErrNodeNotFound) {
			cerr = fmt.Errorf("%w: bucket %q", scanerrors.ErrRootNotFound, bucket)
		}
		return nil, scanerrors.NewRootError("open_root", Kind, root.Identifier, cerr)
	}

	if root.DisplayName == "" {
		root.DisplayName = bucket
	}
	return &bucketSource{
		client:         c.client,
		sts:            c.sts,
		root:           root,
		bucket:         bucket,
		prefix:         prefix,
		fetchDetails:   c.cfg.FetchObjectDetails,
		skipObjectTags: c.cfg.SkipObjectTags,
		log:            c.log.With("source", Kind, "root", root.Identifier),
	}, nil
}

// AccountRecords describes the AWS account behind the credentials as a
// single account-root record.
func (c *Connector) AccountRecords(ctx context.Context) ([]record.Record, error) {
	if c.sts == nil {
		return nil, nil
	}
	id, err := c.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
	if err != nil {
		return nil, scanerrors.NewError("account_records", Kind, convertError(err))
	}

	account := aws.ToString(id.Account)
	rec := record.NewAccountRecord(Kind, "s3://"+account, nil, map[string]any{
		"account_id": account,
		"arn":        aws.ToString(id.Arn),
		"user_id":    aws.ToString(id.UserId),
	})
	return []record.Record{rec}, nil
}

// splitRootIdentifier splits "bucket/prefix" into its parts. The prefix
// is normalized to end with a slash so it can seed delimiter listings.
func splitRootIdentifier(id string) (bucket, prefix string) {
	id = strings.TrimPrefix(id, "s3://")
	bucket, prefix, _ = strings.Cut(id, "/")
	prefix = strings.Trim(prefix, "/")
	if prefix != "" {
		prefix += "/"
	}
	return bucket, prefix
}

var (
	_ scan.Connector       = (*Connector)(nil)
	_ scan.AccountReporter = (*Connector)(nil)
)
