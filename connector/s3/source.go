package s3

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"

	"github.com/aws/aws-sdk-go-v2/aws"
	"github.com/aws/aws-sdk-go-v2/service/s3"
	"github.com/aws/aws-sdk-go-v2/service/s3/types"
	"github.com/aws/aws-sdk-go-v2/service/sts"

	scanerrors "github.com/driftlake/metascan/errors"
	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"
)

// bucketSource reads one bucket, optionally scoped to a prefix. All fields
// are immutable after OpenRoot except skipOwner, which latches when the
// endpoint rejects FetchOwner.
type bucketSource struct {
	client S3API
	sts    STSAPI
	root   record.Root
	bucket string
	prefix string

	fetchDetails   bool
	skipObjectTags bool
	skipOwner      atomic.Bool
	log            *slog.Logger
}

func (s *bucketSource) Root() record.Root { return s.root }

// ListChildren lists one delimiter page under ref. Common prefixes become
// directories, object entries become files carrying the listing's size,
// timestamp and owner.
func (s *bucketSource) ListChildren(ctx context.Context, ref scan.NodeRef, cursor scan.Cursor) (scan.Page, error) {
	prefix := ref.Key
	if prefix == "" {
		prefix = s.prefix
	}

	input := &s3.ListObjectsV2Input{
		Bucket:     aws.String(s.bucket),
		Prefix:     aws.String(prefix),
		Delimiter:  aws.String("/"),
		MaxKeys:    aws.Int32(listPageSize),
		FetchOwner: aws.Bool(!s.skipOwner.Load()),
	}
	if cursor != "" {
		input.ContinuationToken = aws.String(string(cursor))
	}

	out, err := s.client.ListObjectsV2(ctx, input)
	if err != nil && aws.ToBool(input.FetchOwner) && fetchOwnerRejected(convertError(err)) {
		// Some S3-compatible stores reject FetchOwner. Latch it off and
		// list again without owner data.
		s.skipOwner.Store(true)
		s.log.Debug("listing without owner data", "bucket", s.bucket, "reason", err)
		input.FetchOwner = aws.Bool(false)
		out, err = s.client.ListObjectsV2(ctx, input)
	}
	if err != nil {
		return scan.Page{}, scanerrors.NewNodeError("list_children", Kind, s.root.Identifier,
			s.nodePath(prefix), convertError(err))
	}

	page := scan.Page{Items: make([]scan.Node, 0, len(out.CommonPrefixes)+len(out.Contents))}
	for _, cp := range out.CommonPrefixes {
		key := aws.ToString(cp.Prefix)
		trimmed := strings.TrimSuffix(key, "/")
		page.Items = append(page.Items, scan.Node{
			Ref:  scan.NodeRef{Key: key, Path: s.nodePath(trimmed)},
			Name: path.Base(trimmed),
			Kind: record.KindDirectory,
		})
	}
	for _, obj := range out.Contents {
		key := aws.ToString(obj.Key)
		// Zero-byte folder markers stand in for directories; the common
		// prefix already covers them.
		if key == prefix || strings.HasSuffix(key, "/") {
			continue
		}
		page.Items = append(page.Items, s.fileNode(key, obj))
	}

	if aws.ToBool(out.IsTruncated) {
		page.Next = scan.Cursor(aws.ToString(out.NextContinuationToken))
	}
	return page, nil
}

func (s *bucketSource) fileNode(key string, obj types.Object) scan.Node {
	node := scan.Node{
		Ref:     scan.NodeRef{Key: key, Path: s.nodePath(key)},
		Name:    path.Base(key),
		Kind:    record.KindFile,
		HasTags: s.skipObjectTags,
	}
	if s.fetchDetails {
		return node // nil Props defers to NodeProperties
	}

	props := &scan.NodeProps{
		SizeBytes: aws.ToInt64(obj.Size),
		Extra:     map[string]any{},
	}
	if obj.LastModified != nil {
		t := obj.LastModified.UTC()
		props.LastModified = &t
	}
	if obj.Owner != nil {
		props.Owner = ownerName(obj.Owner)
	}
	if obj.StorageClass != "" {
		props.Extra["storage_class"] = string(obj.StorageClass)
	}
	if obj.ETag != nil {
		props.Extra["etag"] = aws.ToString(obj.ETag)
	}
	node.Props = props
	return node
}

// NodeProperties completes a file node with HeadObject and GetObjectAcl.
// An ACL denial degrades only the owner; the head properties survive.
func (s *bucketSource) NodeProperties(ctx context.Context, ref scan.NodeRef) (*scan.NodeProps, error) {
	out, err := s.client.HeadObject(ctx, &s3.HeadObjectInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		return nil, scanerrors.NewNodeError("get_node_properties", Kind, s.root.Identifier,
			ref.Path, convertError(err))
	}

	props := &scan.NodeProps{
		SizeBytes: aws.ToInt64(out.ContentLength),
		Extra:     map[string]any{},
	}
	if out.LastModified != nil {
		t := out.LastModified.UTC()
		props.LastModified = &t
	}
	if out.ContentType != nil {
		props.Extra["content_type"] = aws.ToString(out.ContentType)
	}
	if out.VersionId != nil {
		props.Extra["version_id"] = aws.ToString(out.VersionId)
	}
	if out.StorageClass != "" {
		props.Extra["storage_class"] = string(out.StorageClass)
	}
	if out.ETag != nil {
		props.Extra["etag"] = aws.ToString(out.ETag)
	}
	if len(out.Metadata) > 0 {
		props.Extra["metadata"] = out.Metadata
	}

	acl, err := s.client.GetObjectAcl(ctx, &s3.GetObjectAclInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		s.log.Debug("object acl unavailable", "path", ref.Path, "error", err)
	} else if acl.Owner != nil {
		props.Owner = ownerName(acl.Owner)
	}
	return props, nil
}

// NodeTags returns the object's tag set with whitespace-trimmed keys. An
// object without tags yields an empty map, not an error.
func (s *bucketSource) NodeTags(ctx context.Context, ref scan.NodeRef) (map[string]string, error) {
	out, err := s.client.GetObjectTagging(ctx, &s3.GetObjectTaggingInput{
		Bucket: aws.String(s.bucket),
		Key:    aws.String(ref.Key),
	})
	if err != nil {
		if isNoSuchTagSet(err) {
			return map[string]string{}, nil
		}
		return nil, scanerrors.NewNodeError("get_node_tags", Kind, s.root.Identifier,
			ref.Path, convertError(err))
	}
	return tagSetToMap(out.TagSet), nil
}

// AccountInfo gathers bucket tags, the bucket region and the caller
// identity. Each probe degrades independently; the call fails only when
// every probe does.
func (s *bucketSource) AccountInfo(ctx context.Context) (scan.AccountInfo, error) {
	info := scan.AccountInfo{Extra: map[string]any{}}
	var probeErrs []error

	tagging, err := s.client.GetBucketTagging(ctx, &s3.GetBucketTaggingInput{
		Bucket: aws.String(s.bucket),
	})
	switch {
	case err == nil:
		info.RootTags = tagSetToMap(tagging.TagSet)
	case isNoSuchTagSet(err):
		// an untagged bucket, not a failure
	default:
		s.log.Debug("bucket tags unavailable", "bucket", s.bucket, "error", err)
		probeErrs = append(probeErrs, fmt.Errorf("bucket tagging: %w", convertError(err)))
	}

	loc, err := s.client.GetBucketLocation(ctx, &s3.GetBucketLocationInput{
		Bucket: aws.String(s.bucket),
	})
	if err != nil {
		s.log.Debug("bucket location unavailable", "bucket", s.bucket, "error", err)
		probeErrs = append(probeErrs, fmt.Errorf("bucket location: %w", convertError(err)))
	} else {
		region := string(loc.LocationConstraint)
		if region == "" {
			region = "us-east-1" // LocationConstraint is empty for the original region
		}
		info.Extra["region"] = region
	}

	if s.sts != nil {
		id, err := s.sts.GetCallerIdentity(ctx, &sts.GetCallerIdentityInput{})
		if err != nil {
			s.log.Debug("caller identity unavailable", "bucket", s.bucket, "error", err)
			probeErrs = append(probeErrs, fmt.Errorf("caller identity: %w", convertError(err)))
		} else {
			info.Extra["account_id"] = aws.ToString(id.Account)
			info.Extra["arn"] = aws.ToString(id.Arn)
			info.Extra["user_id"] = aws.ToString(id.UserId)
		}
	}

	if len(probeErrs) > 0 && len(info.Extra) == 0 && info.RootTags == nil {
		return scan.AccountInfo{}, scanerrors.NewRootError("get_account_properties", Kind,
			s.root.Identifier, errors.Join(probeErrs...))
	}
	return info, nil
}

// nodePath builds the normalized record path for a key within the bucket.
func (s *bucketSource) nodePath(key string) string {
	if key == "" {
		return "s3://" + s.bucket
	}
	return "s3://" + s.bucket + "/" + key
}

// ownerName prefers the human-readable display name over the canonical id.
func ownerName(owner *types.Owner) string {
	if name := aws.ToString(owner.DisplayName); name != "" {
		return name
	}
	return aws.ToString(owner.ID)
}

func tagSetToMap(tags []types.Tag) map[string]string {
	m := make(map[string]string, len(tags))
	for _, t := range tags {
		m[strings.TrimSpace(aws.ToString(t.Key))] = aws.ToString(t.Value)
	}
	return m
}

var _ scan.RootSource = (*bucketSource)(nil)
