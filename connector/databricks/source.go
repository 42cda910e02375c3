package databricks

import (
	"context"
	"fmt"
	"log/slog"

	scanerrors "github.com/driftlake/metascan/errors"
	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"
)

// pathSource reads one path-rooted filesystem, volume or DBFS, through an
// injected listing function. Both planes return a directory whole, so every
// listing is a single page.
type pathSource struct {
	list func(ctx context.Context, path string) ([]Entry, error)
	kind string
	root record.Root
	base string
	info scan.AccountInfo
	log  *slog.Logger
}

func (s *pathSource) Root() record.Root { return s.root }

// ListChildren lists the immediate children of ref. The empty ref
// addresses the root path.
func (s *pathSource) ListChildren(ctx context.Context, ref scan.NodeRef, cursor scan.Cursor) (scan.Page, error) {
	path := ref.Key
	if path == "" {
		path = s.base
	}

	entries, err := s.list(ctx, path)
	if err != nil {
		if ref.Key == "" && scanerrors.IsNodeNotFound(err) {
			err = fmt.Errorf("%w: %v", scanerrors.ErrRootNotFound, err)
		}
		return scan.Page{}, scanerrors.NewNodeError("list_children", s.kind, s.root.Identifier, path, err)
	}

	page := scan.Page{Items: make([]scan.Node, 0, len(entries))}
	for _, e := range entries {
		kind := record.KindFile
		if e.IsDirectory {
			kind = record.KindDirectory
		}
		page.Items = append(page.Items, scan.Node{
			Ref:  scan.NodeRef{Key: e.Path, Path: e.Path},
			Name: e.Name,
			Kind: kind,
			Props: &scan.NodeProps{
				SizeBytes:    e.Size,
				LastModified: e.LastModified,
			},
			HasTags: true,
		})
	}
	return page, nil
}

// NodeProperties is never needed: listings always carry the full property
// set and neither plane has a per-node metadata call.
func (s *pathSource) NodeProperties(ctx context.Context, ref scan.NodeRef) (*scan.NodeProps, error) {
	return nil, scanerrors.NewNodeError("get_node_properties", s.kind, s.root.Identifier, ref.Path,
		fmt.Errorf("%w: no per-node property call", scanerrors.ErrUnsupported))
}

// NodeTags returns an empty map: volume and DBFS entries carry no tags.
func (s *pathSource) NodeTags(ctx context.Context, ref scan.NodeRef) (map[string]string, error) {
	return map[string]string{}, nil
}

// AccountInfo returns the context captured when the root was opened:
// workspace host, volume addressing and the volume owner when discovery
// reported one.
func (s *pathSource) AccountInfo(ctx context.Context) (scan.AccountInfo, error) {
	return s.info, nil
}

var _ scan.RootSource = (*pathSource)(nil)
