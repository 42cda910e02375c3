package s3

import (
	"context"
	"errors"
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

func openTestSource(t *testing.T, mock *mockS3Client, stsMock *mockSTSClient, cfg Config) *bucketSource {
	t.Helper()
	conn := NewWithClients(mock, stsMock, cfg)
	src, err := conn.OpenRoot(context.Background(), record.Root{Identifier: "reports"})
	require.NoError(t, err)
	return src.(*bucketSource)
}

func TestBucketSource_ListChildren(t *testing.T) {
	modified := time.Date(2026, 3, 14, 9, 30, 0, 0, time.UTC)

	mock := &mockS3Client{
		ListObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			assert.Equal(t, "reports", aws.ToString(params.Bucket))
			assert.Equal(t, "/", aws.ToString(params.Delimiter))
			assert.True(t, aws.ToBool(params.FetchOwner))
			return &s3.ListObjectsV2Output{
				CommonPrefixes: []types.CommonPrefix{
					{Prefix: aws.String("2026/")},
				},
				Contents: []types.Object{
					{Key: aws.String("2026/")}, // folder marker for the listed prefix shape
					{
						Key:          aws.String("summary.csv"),
						Size:         aws.Int64(2048),
						LastModified: aws.Time(modified),
						ETag:         aws.String(`"abc123"`),
						StorageClass: types.ObjectStorageClassStandard,
						Owner:        &types.Owner{DisplayName: aws.String("alice"), ID: aws.String("canonical-1")},
					},
					{
						Key:   aws.String("raw.bin"),
						Size:  aws.Int64(77),
						Owner: &types.Owner{ID: aws.String("canonical-2")},
					},
				},
			}, nil
		},
	}

	src := openTestSource(t, mock, &mockSTSClient{}, Config{})
	page, err := src.ListChildren(context.Background(), scan.NodeRef{}, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 3, "marker object is dropped")
	assert.Empty(t, page.Next)

	dir := page.Items[0]
	assert.Equal(t, record.KindDirectory, dir.Kind)
	assert.Equal(t, "2026/", dir.Ref.Key)
	assert.Equal(t, "s3://reports/2026", dir.Ref.Path)
	assert.Equal(t, "2026", dir.Name)

	file := page.Items[1]
	assert.Equal(t, record.KindFile, file.Kind)
	assert.Equal(t, "s3://reports/summary.csv", file.Ref.Path)
	require.NotNil(t, file.Props)
	assert.Equal(t, int64(2048), file.Props.SizeBytes)
	assert.Equal(t, "alice", file.Props.Owner)
	require.NotNil(t, file.Props.LastModified)
	assert.Equal(t, modified, *file.Props.LastModified)
	assert.Equal(t, `"abc123"`, file.Props.Extra["etag"])
	assert.Equal(t, "STANDARD", file.Props.Extra["storage_class"])
	assert.False(t, file.HasTags, "tags come from a separate call")

	assert.Equal(t, "canonical-2", page.Items[2].Props.Owner,
		"canonical id stands in when there is no display name")
}

func TestBucketSource_ListChildrenPaging(t *testing.T) {
	calls := 0
	mock := &mockS3Client{
		ListObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			calls++
			if calls == 1 {
				assert.Nil(t, params.ContinuationToken)
				return &s3.ListObjectsV2Output{
					Contents:              []types.Object{{Key: aws.String("a.txt"), Size: aws.Int64(1)}},
					IsTruncated:           aws.Bool(true),
					NextContinuationToken: aws.String("token-2"),
				}, nil
			}
			assert.Equal(t, "token-2", aws.ToString(params.ContinuationToken))
			return &s3.ListObjectsV2Output{
				Contents: []types.Object{{Key: aws.String("b.txt"), Size: aws.Int64(2)}},
			}, nil
		},
	}

	src := openTestSource(t, mock, &mockSTSClient{}, Config{})
	ctx := context.Background()

	first, err := src.ListChildren(ctx, scan.NodeRef{}, "")
	require.NoError(t, err)
	require.Equal(t, scan.Cursor("token-2"), first.Next)

	second, err := src.ListChildren(ctx, scan.NodeRef{}, first.Next)
	require.NoError(t, err)
	assert.Empty(t, second.Next)
	assert.Equal(t, "b.txt", second.Items[0].Name)
}

func TestBucketSource_ListChildrenFetchOwnerFallback(t *testing.T) {
	var withOwner, withoutOwner int
	mock := &mockS3Client{
		ListObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			if aws.ToBool(params.FetchOwner) {
				withOwner++
				return nil, &smithy.GenericAPIError{Code: "NotImplemented", Message: "FetchOwner not supported"}
			}
			withoutOwner++
			return &s3.ListObjectsV2Output{
				Contents: []types.Object{{Key: aws.String("a.txt"), Size: aws.Int64(1)}},
			}, nil
		},
	}

	src := openTestSource(t, mock, &mockSTSClient{}, Config{})
	ctx := context.Background()

	page, err := src.ListChildren(ctx, scan.NodeRef{}, "")
	require.NoError(t, err)
	assert.Empty(t, page.Items[0].Props.Owner)

	// The rejection latches: later listings skip FetchOwner outright.
	_, err = src.ListChildren(ctx, scan.NodeRef{}, "")
	require.NoError(t, err)
	assert.Equal(t, 1, withOwner)
	assert.Equal(t, 2, withoutOwner)
}

func TestBucketSource_ListChildrenError(t *testing.T) {
	mock := &mockS3Client{
		ListObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			return nil, &smithy.GenericAPIError{Code: "SlowDown", Message: "slow down"}
		},
	}

	src := openTestSource(t, mock, &mockSTSClient{}, Config{})
	_, err := src.ListChildren(context.Background(), scan.NodeRef{}, "")
	require.Error(t, err)
	assert.True(t, scanerrors.IsThrottled(err))
	assert.Contains(t, err.Error(), "list_children")
}

func TestBucketSource_NodeProperties(t *testing.T) {
	modified := time.Date(2026, 1, 5, 12, 0, 0, 0, time.UTC)

	t.Run("head and acl combine", func(t *testing.T) {
		mock := &mockS3Client{
			HeadObjectFunc: func(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
				assert.Equal(t, "docs/a.pdf", aws.ToString(params.Key))
				return &s3.HeadObjectOutput{
					ContentLength: aws.Int64(4096),
					LastModified:  aws.Time(modified),
					ContentType:   aws.String("application/pdf"),
					VersionId:     aws.String("v7"),
					ETag:          aws.String(`"e1"`),
					Metadata:      map[string]string{"department": "finance"},
				}, nil
			},
			GetObjectAclFunc: func(ctx context.Context, params *s3.GetObjectAclInput, optFns ...func(*s3.Options)) (*s3.GetObjectAclOutput, error) {
				return &s3.GetObjectAclOutput{
					Owner: &types.Owner{DisplayName: aws.String("bob")},
				}, nil
			},
		}

		src := openTestSource(t, mock, &mockSTSClient{}, Config{})
		props, err := src.NodeProperties(context.Background(), scan.NodeRef{Key: "docs/a.pdf", Path: "s3://reports/docs/a.pdf"})
		require.NoError(t, err)
		assert.Equal(t, int64(4096), props.SizeBytes)
		assert.Equal(t, "bob", props.Owner)
		assert.Equal(t, "application/pdf", props.Extra["content_type"])
		assert.Equal(t, "v7", props.Extra["version_id"])
		assert.Equal(t, map[string]string{"department": "finance"}, props.Extra["metadata"])
	})

	t.Run("acl denial keeps head properties", func(t *testing.T) {
		mock := &mockS3Client{
			HeadObjectFunc: func(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
				return &s3.HeadObjectOutput{ContentLength: aws.Int64(10)}, nil
			},
			GetObjectAclFunc: func(ctx context.Context, params *s3.GetObjectAclInput, optFns ...func(*s3.Options)) (*s3.GetObjectAclOutput, error) {
				return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
			},
		}

		src := openTestSource(t, mock, &mockSTSClient{}, Config{})
		props, err := src.NodeProperties(context.Background(), scan.NodeRef{Key: "a"})
		require.NoError(t, err)
		assert.Equal(t, int64(10), props.SizeBytes)
		assert.Empty(t, props.Owner)
	})

	t.Run("missing object", func(t *testing.T) {
		mock := &mockS3Client{
			HeadObjectFunc: func(ctx context.Context, params *s3.HeadObjectInput, optFns ...func(*s3.Options)) (*s3.HeadObjectOutput, error) {
				return nil, &types.NotFound{}
			},
		}

		src := openTestSource(t, mock, &mockSTSClient{}, Config{})
		_, err := src.NodeProperties(context.Background(), scan.NodeRef{Key: "gone"})
		require.Error(t, err)
		assert.True(t, scanerrors.IsNotFound(err))
	})
}

func TestBucketSource_NodeTags(t *testing.T) {
	t.Run("keys are trimmed", func(t *testing.T) {
		mock := &mockS3Client{
			GetObjectTaggingFunc: func(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error) {
				return &s3.GetObjectTaggingOutput{TagSet: []types.Tag{
					{Key: aws.String(" owner "), Value: aws.String("carol")},
					{Key: aws.String("tier"), Value: aws.String("gold")},
				}}, nil
			},
		}

		src := openTestSource(t, mock, &mockSTSClient{}, Config{})
		tags, err := src.NodeTags(context.Background(), scan.NodeRef{Key: "a"})
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"owner": "carol", "tier": "gold"}, tags)
	})

	t.Run("no tag set means empty", func(t *testing.T) {
		mock := &mockS3Client{
			GetObjectTaggingFunc: func(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error) {
				return nil, &smithy.GenericAPIError{Code: "NoSuchTagSet", Message: "no tags"}
			},
		}

		src := openTestSource(t, mock, &mockSTSClient{}, Config{})
		tags, err := src.NodeTags(context.Background(), scan.NodeRef{Key: "a"})
		require.NoError(t, err)
		assert.Empty(t, tags)
	})

	t.Run("denied", func(t *testing.T) {
		mock := &mockS3Client{
			GetObjectTaggingFunc: func(ctx context.Context, params *s3.GetObjectTaggingInput, optFns ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error) {
				return nil, &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
			},
		}

		src := openTestSource(t, mock, &mockSTSClient{}, Config{})
		_, err := src.NodeTags(context.Background(), scan.NodeRef{Key: "a"})
		require.Error(t, err)
		assert.True(t, scanerrors.IsPermissionDenied(err))
	})
}

func TestBucketSource_AccountInfo(t *testing.T) {
	t.Run("all probes succeed", func(t *testing.T) {
		mock := &mockS3Client{
			GetBucketTaggingFunc: func(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
				return &s3.GetBucketTaggingOutput{TagSet: []types.Tag{
					{Key: aws.String("owner"), Value: aws.String("data-platform")},
				}}, nil
			},
			GetBucketLocationFunc: func(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
				return &s3.GetBucketLocationOutput{LocationConstraint: types.BucketLocationConstraintEuWest1}, nil
			},
		}
		stsMock := &mockSTSClient{
			GetCallerIdentityFunc: func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
				return &sts.GetCallerIdentityOutput{
					Account: aws.String("123456789012"),
					Arn:     aws.String("arn:aws:iam::123456789012:user/scanner"),
					UserId:  aws.String("AIDAEXAMPLE"),
				}, nil
			},
		}

		src := openTestSource(t, mock, stsMock, Config{})
		info, err := src.AccountInfo(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"owner": "data-platform"}, info.RootTags)
		assert.Equal(t, "eu-west-1", info.Extra["region"])
		assert.Equal(t, "123456789012", info.Extra["account_id"])
	})

	t.Run("untagged bucket in the legacy region", func(t *testing.T) {
		mock := &mockS3Client{
			GetBucketTaggingFunc: func(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
				return nil, &smithy.GenericAPIError{Code: "NoSuchTagSet", Message: "no tags"}
			},
			GetBucketLocationFunc: func(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
				return &s3.GetBucketLocationOutput{}, nil
			},
		}

		src := openTestSource(t, mock, &mockSTSClient{}, Config{})
		info, err := src.AccountInfo(context.Background())
		require.NoError(t, err)
		assert.Nil(t, info.RootTags)
		assert.Equal(t, "us-east-1", info.Extra["region"])
	})

	t.Run("partial failures degrade", func(t *testing.T) {
		denied := &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
		mock := &mockS3Client{
			GetBucketTaggingFunc: func(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
				return nil, denied
			},
			GetBucketLocationFunc: func(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
				return &s3.GetBucketLocationOutput{LocationConstraint: types.BucketLocationConstraintEuWest1}, nil
			},
		}

		src := openTestSource(t, mock, &mockSTSClient{}, Config{})
		info, err := src.AccountInfo(context.Background())
		require.NoError(t, err, "surviving probes carry the call")
		assert.Nil(t, info.RootTags)
		assert.Equal(t, "eu-west-1", info.Extra["region"])
	})

	t.Run("total failure surfaces", func(t *testing.T) {
		denied := &smithy.GenericAPIError{Code: "AccessDenied", Message: "denied"}
		mock := &mockS3Client{
			GetBucketTaggingFunc: func(ctx context.Context, params *s3.GetBucketTaggingInput, optFns ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error) {
				return nil, denied
			},
			GetBucketLocationFunc: func(ctx context.Context, params *s3.GetBucketLocationInput, optFns ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error) {
				return nil, denied
			},
		}
		stsMock := &mockSTSClient{
			GetCallerIdentityFunc: func(ctx context.Context, params *sts.GetCallerIdentityInput, optFns ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error) {
				return nil, errors.New("sts unreachable")
			},
		}

		src := openTestSource(t, mock, stsMock, Config{})
		_, err := src.AccountInfo(context.Background())
		require.Error(t, err)
		assert.Contains(t, err.Error(), "get_account_properties")
	})
}

func TestBucketSource_DetailMode(t *testing.T) {
	mock := &mockS3Client{
		ListObjectsV2Func: func(ctx context.Context, params *s3.ListObjectsV2Input, optFns ...func(*s3.Options)) (*s3.ListObjectsV2Output, error) {
			return &s3.ListObjectsV2Output{
				Contents: []types.Object{{Key: aws.String("a.txt"), Size: aws.Int64(5)}},
			}, nil
		},
	}

	src := openTestSource(t, mock, &mockSTSClient{}, Config{FetchObjectDetails: true, SkipObjectTags: true})
	page, err := src.ListChildren(context.Background(), scan.NodeRef{}, "")
	require.NoError(t, err)
	require.Len(t, page.Items, 1)
	assert.Nil(t, page.Items[0].Props, "detail mode defers properties to HeadObject")
	assert.True(t, page.Items[0].HasTags, "skipping object tags marks them as already known")
	assert.Nil(t, page.Items[0].Tags)
}
