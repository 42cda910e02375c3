package s3

import (
	"context"

	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/sts"
)

// S3API defines the subset of S3 operations the connector uses.
// This interface allows for mocking in tests and potential future implementations.
type S3API interface {
	// ListObjectsV2 lists objects in an S3 bucket
	ListObjectsV2(
		ctx context.Context,
		params *s3.ListObjectsV2Input,
		optFns ...func(*s3.Options),
	) (*s3.ListObjectsV2Output, error)

	// HeadObject retrieves metadata about an object without retrieving the object itself
	HeadObject(
		ctx context.Context,
		params *s3.HeadObjectInput,
		optFns ...func(*s3.Options),
	) (*s3.HeadObjectOutput, error)

	// HeadBucket checks whether a bucket exists and is accessible
	HeadBucket(
		ctx context.Context,
		params *s3.HeadBucketInput,
		optFns ...func(*s3.Options),
	) (*s3.HeadBucketOutput, error)

	// GetObjectTagging retrieves the tag set of an object
	GetObjectTagging(
		ctx context.Context,
		params *s3.GetObjectTaggingInput,
		optFns ...func(*s3.Options),
	) (*s3.GetObjectTaggingOutput, error)

	// GetObjectAcl retrieves the access control list of an object
	GetObjectAcl(
		ctx context.Context,
		params *s3.GetObjectAclInput,
		optFns ...func(*s3.Options),
	) (*s3.GetObjectAclOutput, error)

	// GetBucketTagging retrieves the tag set of a bucket
	GetBucketTagging(
		ctx context.Context,
		params *s3.GetBucketTaggingInput,
		optFns ...func(*s3.Options),
	) (*s3.GetBucketTaggingOutput, error)

	// GetBucketLocation retrieves the region a bucket resides in
	GetBucketLocation(
		ctx context.Context,
		params *s3.GetBucketLocationInput,
		optFns ...func(*s3.Options),
	) (*s3.GetBucketLocationOutput, error)

	// ListBuckets lists the buckets owned by the authenticated account
	ListBuckets(
		ctx context.Context,
		params *s3.ListBucketsInput,
		optFns ...func(*s3.Options),
	) (*s3.ListBucketsOutput, error)
}

// STSAPI defines the subset of STS operations the connector uses.
type STSAPI interface {
	// GetCallerIdentity returns the identity of the calling credentials
	GetCallerIdentity(
		ctx context.Context,
		params *sts.GetCallerIdentityInput,
		optFns ...func(*sts.Options),
	) (*sts.GetCallerIdentityOutput, error)
}

// Verify that the AWS clients implement our interfaces
var (
	_ S3API  = (*s3.Client)(nil)
	_ STSAPI = (*sts.Client)(nil)
)
