package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// mockS3Client implements S3API with customizable function fields.
type mockS3Client struct {
	ListObjectsV2Func     func(context.Context, *s3.ListObjectsV2Input, ...func(*s3.Options)) (*s3.ListObjectsV2Output, error)
	HeadObjectFunc        func(context.Context, *s3.HeadObjectInput, ...func(*s3.Options)) (*s3.HeadObjectOutput, error)
	HeadBucketFunc        func(context.Context, *s3.HeadBucketInput, ...func(*s3.Options)) (*s3.HeadBucketOutput, error)
	GetObjectTaggingFunc  func(context.Context, *s3.GetObjectTaggingInput, ...func(*s3.Options)) (*s3.GetObjectTaggingOutput, error)
	GetObjectAclFunc      func(context.Context, *s3.GetObjectAclInput, ...func(*s3.Options)) (*s3.GetObjectAclOutput, error)
	GetBucketTaggingFunc  func(context.Context, *s3.GetBucketTaggingInput, ...func(*s3.Options)) (*s3.GetBucketTaggingOutput, error)
	GetBucketLocationFunc func(context.Context, *s3.GetBucketLocationInput, ...func(*s3.Options)) (*s3.GetBucketLocationOutput, error)
	ListBucketsFunc       func(context.Context, *s3.ListBucketsInput, ...func(*s3.Options)) (*s3.ListBucketsOutput, error)
}

func (m *mockS3Client) ListObjectsV2(
	ctx context.Context,
	params *s3.ListObjectsV2Input,
	optFns ...func(*s3.Options),
) (*s3.ListObjectsV2Output, error) {
	if m.ListObjectsV2Func != nil {
		return m.ListObjectsV2Func(ctx, params, optFns...)
	}
	return &s3.ListObjectsV2Output{}, nil
}

func (m *mockS3Client) HeadObject(
	ctx context.Context,
	params *s3.HeadObjectInput,
	optFns ...func(*s3.Options),
) (*s3.HeadObjectOutput, error) {
	if m.HeadObjectFunc != nil {
		return m.HeadObjectFunc(ctx, params, optFns...)
	}
	return &s3.HeadObjectOutput{}, nil
}

func (m *mockS3Client) HeadBucket(
	ctx context.Context,
	params *s3.HeadBucketInput,
	optFns ...func(*s3.Options),
) (*s3.HeadBucketOutput, error) {
	if m.HeadBucketFunc != nil {
		return m.HeadBucketFunc(ctx, params, optFns...)
	}
	return &s3.HeadBucketOutput{}, nil
}

func (m *mockS3Client) GetObjectTagging(
	ctx context.Context,
	params *s3.GetObjectTaggingInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectTaggingOutput, error) {
	if m.GetObjectTaggingFunc != nil {
		return m.GetObjectTaggingFunc(ctx, params, optFns...)
	}
	return &s3.GetObjectTaggingOutput{}, nil
}

func (m *mockS3Client) GetObjectAcl(
	ctx context.Context,
	params *s3.GetObjectAclInput,
	optFns ...func(*s3.Options),
) (*s3.GetObjectAclOutput, error) {
	if m.GetObjectAclFunc != nil {
		return m.GetObjectAclFunc(ctx, params, optFns...)
	}
	return &s3.GetObjectAclOutput{}, nil
}

func (m *mockS3Client) GetBucketTagging(
	ctx context.Context,
	params *s3.GetBucketTaggingInput,
	optFns ...func(*s3.Options),
) (*s3.GetBucketTaggingOutput, error) {
	if m.GetBucketTaggingFunc != nil {
		return m.GetBucketTaggingFunc(ctx, params, optFns...)
	}
	return &s3.GetBucketTaggingOutput{}, nil
}

func (m *mockS3Client) GetBucketLocation(
	ctx context.Context,
	params *s3.GetBucketLocationInput,
	optFns ...func(*s3.Options),
) (*s3.GetBucketLocationOutput, error) {
	if m.GetBucketLocationFunc != nil {
		return m.GetBucketLocationFunc(ctx, params, optFns...)
	}
	return &s3.GetBucketLocationOutput{}, nil
}

func (m *mockS3Client) ListBuckets(
	ctx context.Context,
	params *s3.ListBucketsInput,
	optFns ...func(*s3.Options),
) (*s3.ListBucketsOutput, error) {
	if m.ListBucketsFunc != nil {
		return m.ListBucketsFunc(ctx, params, optFns...)
	}
	return &s3.ListBucketsOutput{}, nil
}

// mockSTSClient implements STSAPI with a customizable function field.
type mockSTSClient struct {
	GetCallerIdentityFunc func(context.Context, *sts.GetCallerIdentityInput, ...func(*sts.Options)) (*sts.GetCallerIdentityOutput, error)
}

func (m *mockSTSClient) GetCallerIdentity(
	ctx context.Context,
	params *sts.GetCallerIdentityInput,
	optFns ...func(*sts.Options),
) (*sts.GetCallerIdentityOutput, error) {
	if m.GetCallerIdentityFunc != nil {
		return m.GetCallerIdentityFunc(ctx, params, optFns...)
	}
	return &sts.GetCallerIdentityOutput{}, nil
}

var (
	_ S3API  = (*mockS3Client)(nil)
	_ STSAPI = (*mockSTSClient)(nil)
)
