package azure

import (
	"context"
	"errors"
	"log/slog"
	"path"
	"strings"
	"sync/atomic"

	scanerrors "github.com/driftlake/metascan/errors"
	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"
)

// containerSource reads one container of one storage account. The include
// and HNS latches start permissive and switch off permanently once the
// backend refuses the richer calls, so a denial costs one failed request,
// not one per node.
type containerSource struct {
	api       AzureAPI
	conn      *Connector
	root      record.Root
	account   string
	container string
	props     ContainerProps

	includeOff atomic.Bool
	hnsOff     atomic.Bool
	log        *slog.Logger
}

func (s *containerSource) Root() record.Root { return s.root }

// ListChildren lists one delimiter page under ref. Blob prefixes become
// directories enriched with datalake properties where the namespace allows
// it; blob items become files carrying the listing's properties, metadata
// and tags.
func (s *containerSource) ListChildren(ctx context.Context, ref scan.NodeRef, cursor scan.Cursor) (scan.Page, error) {
	opts := HierarchyOptions{
		Prefix:          ref.Key,
		Marker:          string(cursor),
		IncludeMetadata: !s.includeOff.Load(),
		IncludeTags:     !s.includeOff.Load(),
	}

	listing, err := s.api.ListBlobsHierarchy(ctx, s.account, s.container, opts)
	if err != nil && opts.IncludeTags && hnsUnavailable(convertError(err)) {
		// Tag and metadata inclusion needs data permissions plain listing
		// does not. Latch the includes off and list again bare.
		s.includeOff.Store(true)
		s.log.Debug("listing without metadata and tag inclusion",
			"container", s.container, "reason", err)
		opts.IncludeMetadata, opts.IncludeTags = false, false
		listing, err = s.api.ListBlobsHierarchy(ctx, s.account, s.container, opts)
	}
	if err != nil {
		return scan.Page{}, scanerrors.NewNodeError("list_children", Kind, s.root.Identifier,
			s.nodePath(ref.Key), convertError(err))
	}

	page := scan.Page{
		Items: make([]scan.Node, 0, len(listing.Prefixes)+len(listing.Blobs)),
		Next:  scan.Cursor(listing.NextMarker),
	}
	for _, prefix := range listing.Prefixes {
		page.Items = append(page.Items, s.directoryNode(ctx, prefix))
	}
	for _, b := range listing.Blobs {
		// Folder stub blobs shadow their blob prefix entry.
		if b.IsFolder || b.Name == ref.Key || strings.HasSuffix(b.Name, "/") {
			continue
		}
		page.Items = append(page.Items, s.fileNode(ctx, b, opts.IncludeTags))
	}
	return page, nil
}

func (s *containerSource) directoryNode(ctx context.Context, prefix string) scan.Node {
	trimmed := strings.TrimSuffix(prefix, "/")
	node := scan.Node{
		Ref:  scan.NodeRef{Key: prefix, Path: s.nodePath(trimmed)},
		Name: path.Base(trimmed),
		Kind: record.KindDirectory,
	}

	if !s.hnsOff.Load() {
		props, err := s.api.DirectoryProperties(ctx, s.account, s.container, trimmed)
		if err != nil {
			s.latchHNS("directory properties", trimmed, err)
		} else {
			node.Props = &scan.NodeProps{LastModified: props.LastModified}
			if len(props.Metadata) > 0 {
				node.Props.Extra = map[string]any{"metadata": props.Metadata}
			}
			if owner, ok := s.aclOwner(ctx, trimmed, true); ok {
				node.Props.Owner = owner
			}
		}

		// Directory stubs can carry index tags through the blob surface.
		if tags, err := s.api.BlobTags(ctx, s.account, s.container, trimmed); err == nil && len(tags) > 0 {
			node.Tags = tags
			node.HasTags = true
		}
	}
	return node
}

func (s *containerSource) fileNode(ctx context.Context, b BlobEntry, tagsIncluded bool) scan.Node {
	node := scan.Node{
		Ref:  scan.NodeRef{Key: b.Name, Path: s.nodePath(b.Name)},
		Name: path.Base(b.Name),
		Kind: record.KindFile,
	}

	props := &scan.NodeProps{
		SizeBytes:    b.Size,
		LastModified: b.LastModified,
		LastAccessed: b.LastAccessed,
		Extra:        map[string]any{},
	}
	if b.ETag != "" {
		props.Extra["etag"] = b.ETag
	}
	if b.ContentType != "" {
		props.Extra["content_type"] = b.ContentType
	}
	if len(b.Metadata) > 0 {
		props.Extra["metadata"] = b.Metadata
	}
	if owner, ok := s.aclOwner(ctx, b.Name, false); ok {
		props.Owner = owner
	}
	node.Props = props

	if tagsIncluded {
		node.Tags = b.Tags
		node.HasTags = true
	}
	return node
}

// aclOwner reads the POSIX owner through the datalake plane. The second
// return is false when the namespace cannot serve access control.
func (s *containerSource) aclOwner(ctx context.Context, nodePath string, isDirectory bool) (string, bool) {
	if s.hnsOff.Load() {
		return "", false
	}
	ac, err := s.api.GetAccessControl(ctx, s.account, s.container, nodePath, isDirectory)
	if err != nil {
		s.latchHNS("access control", nodePath, err)
		return "", false
	}
	return ac.Owner, true
}

// latchHNS turns further datalake-plane probes off when the failure means
// they can never succeed on this root.
func (s *containerSource) latchHNS(op, nodePath string, err error) {
	if hnsUnavailable(convertError(err)) {
		if !s.hnsOff.Swap(true) {
			s.log.Debug("namespace probes disabled for this root",
				"container", s.container, "op", op, "reason", err)
		}
		return
	}
	s.log.Debug("datalake probe failed", "container", s.container,
		"op", op, "path", nodePath, "error", err)
}

// NodeProperties completes a file node from the blob properties surface,
// with the POSIX owner where the namespace serves it.
func (s *containerSource) NodeProperties(ctx context.Context, ref scan.NodeRef) (*scan.NodeProps, error) {
	bp, err := s.api.BlobProperties(ctx, s.account, s.container, ref.Key)
	if err != nil {
		return nil, scanerrors.NewNodeError("get_node_properties", Kind, s.root.Identifier,
			ref.Path, convertError(err))
	}

	props := &scan.NodeProps{
		SizeBytes:    bp.Size,
		LastModified: bp.LastModified,
		LastAccessed: bp.LastAccessed,
		Extra:        map[string]any{},
	}
	if bp.ETag != "" {
		props.Extra["etag"] = bp.ETag
	}
	if bp.ContentType != "" {
		props.Extra["content_type"] = bp.ContentType
	}
	if len(bp.Metadata) > 0 {
		props.Extra["metadata"] = bp.Metadata
	}
	if owner, ok := s.aclOwner(ctx, ref.Key, false); ok {
		props.Owner = owner
	}
	return props, nil
}

// NodeTags fetches the blob's index tags.
func (s *containerSource) NodeTags(ctx context.Context, ref scan.NodeRef) (map[string]string, error) {
	tags, err := s.api.BlobTags(ctx, s.account, s.container, ref.Key)
	if err != nil {
		return nil, scanerrors.NewNodeError("get_node_tags", Kind, s.root.Identifier,
			ref.Path, convertError(err))
	}
	if tags == nil {
		tags = map[string]string{}
	}
	return tags, nil
}

// AccountInfo assembles the account context: container metadata captured
// when the root was opened, management-plane account tags and location, and
// the data-plane account information. The probes degrade independently.
// A data-plane answer without a hierarchical namespace switches the POSIX
// owner probes off before the walk starts.
func (s *containerSource) AccountInfo(ctx context.Context) (scan.AccountInfo, error) {
	info := scan.AccountInfo{
		RootTags: s.props.Metadata,
		Extra:    map[string]any{},
	}

	meta, err := s.conn.accountMeta(ctx, s.account)
	switch {
	case err == nil:
		info.AccountTags = scan.MergeTags(nil, meta.Tags, s.conn.cfg.AccountTags)
		if meta.Location != "" {
			info.Extra["location"] = meta.Location
		}
		if meta.ResourceGroup != "" {
			info.Extra["resource_group"] = meta.ResourceGroup
		}
		for k, v := range meta.Extra {
			info.Extra[k] = v
		}
	case errors.Is(err, scanerrors.ErrUnsupported):
		if len(s.conn.cfg.AccountTags) > 0 {
			info.AccountTags = scan.MergeTags(nil, nil, s.conn.cfg.AccountTags)
		}
	default:
		if ctx.Err() != nil {
			return scan.AccountInfo{}, ctx.Err()
		}
		s.log.Debug("account metadata unavailable", "account", s.account, "error", err)
	}

	dai, err := s.api.AccountInfo(ctx, s.account)
	if err != nil {
		if ctx.Err() != nil {
			return scan.AccountInfo{}, ctx.Err()
		}
		s.log.Debug("data-plane account information unavailable",
			"account", s.account, "error", err)
	} else {
		info.Extra["sku_name"] = dai.SKUName
		info.Extra["account_kind"] = dai.AccountKind
		info.Extra["is_hns_enabled"] = dai.HNSEnabled
		if !dai.HNSEnabled {
			s.hnsOff.Store(true)
		}
	}
	return info, nil
}

func (s *containerSource) nodePath(name string) string {
	name = strings.TrimSuffix(name, "/")
	if name == "" {
		return "azure://" + s.container
	}
	return "azure://" + s.container + "/" + name
}

var _ scan.RootSource = (*containerSource)(nil)
