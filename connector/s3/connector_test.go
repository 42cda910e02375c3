package s3

import (
	"context"
	"testing"
	"time"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"
	"github.com/aws/smithy-go"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanerrors "github.com/driftlake/metascan/errors"
	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"
)

func TestConnector_DiscoverRoots(t *testing.T) {
	t.Run("lists buckets across pages", func(t *testing.T) {
		created := time.Date(2025, 6, 1, 0, 0, 0, 0, time.UTC)
		calls := 0
		mock := &mockS3Client{
			ListBucketsFunc: func(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
				calls++
				if calls == 1 {
					return &s3.ListBucketsOutput{
						Buckets: []types.Bucket{
							{Name: aws.String("alpha"), CreationDate: aws.Time(created), BucketRegion: aws.String("eu-west-1")},
						},
						ContinuationToken: aws.String("more"),
					}, nil
				}
				assert.Equal(t, "more", aws.ToString(params.ContinuationToken))
				return &s3.ListBucketsOutput{
					Buckets: []types.Bucket{{Name: aws.String("beta")}},
				}, nil
			},
		}

		conn := NewWithClients(mock, &mockSTSClient{}, Config{})
		roots, err := conn.DiscoverRoots(context.Background())
		require.NoError(t, err)
		require.Len(t, roots, 2)
		assert.Equal(t, "alpha", roots[0].Identifier)
		assert.Equal(t, "eu-west-1", roots[0].Location)
		assert.Equal(t, "2025-06-01T00:00:00Z", roots[0].Extra["created"])
		assert.Equal(t, "beta", roots[1].Identifier)
	})

	t.Run("configured buckets skip the listing call", func(t *testing.T) {
		mock := &mockS3Client{
			ListBucketsFunc: func(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
				t.Fatal("ListBuckets must not be called")
				return nil, nil
			},
		}

		conn := NewWithClients(mock, &mockSTSClient{}, Config{Buckets: []string{"alpha", "beta/archive"}})
		roots, err := conn.DiscoverRoots(context.Background())
		require.NoError(t, err)
		require.Len(t, roots, 2)
		assert.Equal(t, "beta/archive", roots[1].Identifier)
		assert.Equal(t, "beta", roots[1].DisplayName)
	})

	t.Run("denied discovery", func(t *testing.T) {
		mock := &mockS3Client{
			ListBucketsFunc: func(ctx context.Context, params *s3.ListBucketsInput, optFns ...func(*s3.Options)) (*s3.ListBucketsOutput, error) {
				return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
			},
		}

		conn := NewWithClients(mock, &mockSTSClient{}, Config{})
		_, err := conn.DiscoverRoots(context.Background())
		require.Error(t, err)
		assert.True(t, scanerrors.IsPermissionDenied(err))
	})
}

func TestConnector_OpenRoot(t *testing.T) {
	t.Run("missing bucket", func(t *testing.T) {
		mock := &mockS3Client{
			HeadBucketFunc: func(ctx context.Context, params *s3.HeadBucketInput, optFns ...func(*s3.Options)) (*s3.HeadBucketOutput, error) {
				return nil, &types.NotFound{}
			},
		}

		conn := NewWithClients(mock, &mockSTSClient{}, Config{})
		_, err := conn.OpenRoot(context.Background(), record.Root{Identifier: "ghost"})
		require.Error(t, err)
		assert.True(t, scanerrors.IsRootNotFound(err))
	})

	t.Run("empty identifier", func(t *testing.T) {
		conn := NewWithClients(&mockS3Client{}, &mockSTSClient{}, Config{})
		_, err := conn.OpenRoot(context.Background(), record.Root{})
		require.Error(t, err)
		assert.ErrorIs(t, err, scanerrors.ErrInvalidInput)
	})

	t.Run("prefix scoping", func(t *testing.T) {
		mock := &mockS3Client{
			ListObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
				assert.Equal(t, "archive/2026/", aws.ToString(params.Prefix))
				return &s3.ListObjectsV2Output{}, nil
			},
		}

		conn := NewWithClients(mock, &mockSTSClient{}, Config{})
		src, err := conn.OpenRoot(context.Background(), record.Root{Identifier: "data/archive/2026"})
		require.NoError(t, err)
		assert.Equal(t, "data", src.Root().DisplayName)

		_, err = src.ListChildren(context.Background(), scan.NodeRef{}, "")
		require.NoError(t, err)
	})
}

func TestConnector_AccountRecords(t *testing.T) {
	stsMock := &mockSTSClient{
		GetCallerIdentityFunc: func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
			return &sts.GetCallerIdentityOutput{
				Account: aws.String("123456789012"),
				Arn:     aws.String("arn:aws:iam::123456789012:user/scanner"),
				UserId:  aws.String("AIDAEXAMPLE"),
			}, nil
		},
	}

	conn := NewWithClients(&mockS3Client{}, stsMock, Config{})
	recs, err := conn.AccountRecords(context.Background())
	require.NoError(t, err)
	require.Len(t, recs, 1)
	assert.Equal(t, "s3://123456789012", recs[0].Path)
	assert.Equal(t, record.KindAccountRoot, recs[0].Kind)
	assert.Equal(t, Kind, recs[0].Source)
	assert.Equal(t, "arn:aws:iam::123456789012:user/scanner", recs[0].Extra["arn"])
	require.NoError(t, recs[0].Validate())
}

func TestSplitRootIdentifier(t *testing.T) {
	tests := []struct {
		id         string
		wantBucket string
		wantPrefix string
	}{
		{"data", "data", ""},
		{"data/archive", "data", "archive/"},
		{"data/archive/2026/", "data", "archive/2026/"},
		{"s3://data/archive", "data", "archive/"},
		{"", "", ""},
	}

	for _, tt := range tests {
		t.Run(tt.id, func(t *testing.T) {
			bucket, prefix := splitRootIdentifier(tt.id)
			assert.Equal(t, tt.wantBucket, bucket)
			assert.Equal(t, tt.wantPrefix, prefix)
		})
	}
}

func TestConfigFromSettings(t *testing.T) {
	cfg := ConfigFromSettings(map[string]string{
		"region":               "eu-central-1",
		"aws_access_key_id":    "AKIAEXAMPLE",
		"bucket":               "alpha, beta/archive ,",
		"force_path_style":     "true",
		"fetch_object_details": "1",
	})

	assert.Equal(t, "eu-central-1", cfg.Region)
	assert.Equal(t, "AKIAEXAMPLE", cfg.AccessKeyID)
	assert.Equal(t, []string{"alpha", "beta/archive"}, cfg.Buckets)
	assert.True(t, cfg.ForcePathStyle)
	assert.True(t, cfg.FetchObjectDetails)
	assert.False(t, cfg.SkipObjectTags)
}

// TestConnector_ScanThrough runs the scan engine against a mocked bucket and
// checks the assembled records end to end.
func TestConnector_ScanThrough(t *testing.T) {
	modified := time.Date(2026, 2, 2, 8, 0, 0, 0, time.UTC)

	mock := &mockS3Client{
		ListObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			switch aws.ToString(params.Prefix) {
			case "":
				return &s3.ListObjectsV2Output{
					CommonPrefixes: []types.CommonPrefix{{Prefix: aws.String("docs/")}},
					Contents: []types.Object{
						{
							Key:          aws.String("a.txt"),
							Size:         aws.Int64(100),
							LastModified: aws.Time(modified),
							Owner:        &types.Owner{DisplayName: aws.String("alice")},
						},
					},
				}, nil
			case "docs/":
				return &s3.ListObjectsV2Output{
					Contents: []types.Object{
						{Key: aws.String("docs/b.txt"), Size: aws.Int64(250)},
					},
				}, nil
			default:
				t.Fatalf("unexpected prefix %q", aws.ToString(params.Prefix))
				return nil, nil
			}
		},
		GetObjectTaggingFunc: func(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error) {
			if aws.ToString(params.Key) == "a.txt" {
				return &s3.GetObjectTaggingOutput{TagSet: []types.Tag{
					{Key: aws.String("project"), Value: aws.String("atlas")},
				}}, nil
			}
			return &s3.GetObjectTaggingOutput{}, nil
		},
		GetBucketTaggingFunc: func(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
			return &s3.GetBucketTaggingOutput{TagSet: []types.Tag{
				{Key: aws.String("owner"), Value: aws.String("data-platform")},
				{Key: aws.String("tier"), Value: aws.String("hot")},
			}}, nil
		},
		GetBucketLocationFunc: func(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
			return &s3.GetBucketLocationOutput{LocationConstraint: types.BucketLocationConstraintEuWest1}, nil
		},
	}

	conn := NewWithClients(mock, &mockSTSClient{}, Config{Buckets: []string{"reports"}})
	records, diags, err := scan.ScanBackend(context.Background(), conn, scan.Options{})
	require.NoError(t, err)
	assert.Empty(t, diags)

	paths := make([]string, len(records))
	for i, r := range records {
		paths[i] = r.Path
	}
	assert.Equal(t, []string{
		"s3://reports/docs",
		"s3://reports/docs/b.txt",
		"s3://reports/a.txt",
	}, paths)

	byPath := map[string]record.Record{}
	for _, r := range records {
		byPath[r.Path] = r
	}

	a := byPath["s3://reports/a.txt"]
	assert.Equal(t, "alice", a.Owner, "listing owner outranks the bucket owner tag")
	assert.Equal(t, int64(100), a.SizeBytes)
	assert.Equal(t, "atlas", a.Tags["project"])
	assert.Equal(t, "hot", a.Tags["tier"], "bucket tags merge under object tags")

	b := byPath["s3://reports/docs/b.txt"]
	assert.Equal(t, "data-platform", b.Owner, "bucket owner tag fills in when the listing has no owner")

	docs := byPath["s3://reports/docs"]
	assert.Equal(t, record.KindDirectory, docs.Kind)
	assert.Equal(t, int64(250), docs.SizeBytes)
}
