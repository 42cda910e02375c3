package sharepoint

import (
	"context"
	"fmt"
	"log/slog"

	scanerrors "github.com/driftlake/metascan/errors"
	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"
)

// driveSource reads one document library of one site. All fields are
// immutable after OpenRoot.
type driveSource struct {
	api     GraphAPI
	root    record.Root
	siteID  string
	driveID string
	base    string
	drive   Drive
	tenant  string
	log     *slog.Logger
}

func (s *driveSource) Root() record.Root { return s.root }

// ListChildren lists one page of an item's children. The empty ref
// addresses the drive root; cursors are Graph nextLink URLs.
func (s *driveSource) ListChildren(ctx context.Context, ref scan.NodeRef, cursor scan.Cursor) (scan.Page, error) {
	out, err := s.api.ListChildren(ctx, s.siteID, s.driveID, ref.Key, string(cursor))
	if err != nil {
		path := ref.Path
		if path == "" {
			path = s.base
		}
		cerr := err
		if ref.Key == "" && scanerrors.IsNodeNotFound(err) {
			cerr = fmt.Errorf("%w: %v", scanerrors.ErrRootNotFound, err)
		}
		return scan.Page{}, scanerrors.NewNodeError("list_children", Kind, s.root.Identifier, path, cerr)
	}

	page := scan.Page{Items: make([]scan.Node, 0, len(out.Items)), Next: scan.Cursor(out.NextLink)}
	for _, item := range out.Items {
		page.Items = append(page.Items, s.node(ref, item))
	}
	return page, nil
}

// node maps one Graph item to a listing node. Items carry everything the
// record needs, so Props is always inline; drive items have no tag store,
// so HasTags short-circuits the tag fetch.
func (s *driveSource) node(parent scan.NodeRef, item Item) scan.Node {
	kind := record.KindFile
	if item.IsFolder {
		kind = record.KindDirectory
	}

	props := &scan.NodeProps{
		SizeBytes:    item.Size,
		LastModified: item.LastModified,
		Owner:        item.CreatedBy,
		Extra:        map[string]any{},
	}
	if item.ETag != "" {
		props.Extra["etag"] = item.ETag
	}
	if item.MimeType != "" {
		props.Extra["content_type"] = item.MimeType
	}
	if item.WebURL != "" {
		props.Extra["web_url"] = item.WebURL
	}

	return scan.Node{
		Ref:     scan.NodeRef{Key: item.ID, Path: s.childPath(parent, item.Name)},
		Name:    item.Name,
		Kind:    kind,
		Props:   props,
		HasTags: true,
	}
}

// NodeProperties refetches one item. Listings are always complete, so this
// only runs for hand-built refs.
func (s *driveSource) NodeProperties(ctx context.Context, ref scan.NodeRef) (*scan.NodeProps, error) {
	item, err := s.api.Item(ctx, s.siteID, s.driveID, ref.Key)
	if err != nil {
		return nil, scanerrors.NewNodeError("get_node_properties", Kind, s.root.Identifier, ref.Path, err)
	}
	props := s.node(scan.NodeRef{}, item).Props
	return props, nil
}

// NodeTags returns an empty map: drive items carry no tag store.
func (s *driveSource) NodeTags(ctx context.Context, ref scan.NodeRef) (map[string]string, error) {
	return map[string]string{}, nil
}

// AccountInfo describes the library: the drive owner feeds the container
// slot of the owner resolution chain, tenant and addressing go to extras.
func (s *driveSource) AccountInfo(ctx context.Context) (scan.AccountInfo, error) {
	info := scan.AccountInfo{
		Extra: map[string]any{
			"site_id":  s.siteID,
			"drive_id": s.driveID,
		},
	}
	if s.tenant != "" {
		info.Extra["tenant_id"] = s.tenant
	}
	if s.drive.Owner != "" {
		info.RootTags = map[string]string{"owner": s.drive.Owner}
	}
	if s.drive.DriveType != "" {
		info.Extra["drive_type"] = s.drive.DriveType
	}
	if s.drive.WebURL != "" {
		info.Extra["web_url"] = s.drive.WebURL
	}
	return info, nil
}

func (s *driveSource) childPath(parent scan.NodeRef, name string) string {
	if parent.Path == "" {
		return s.base + "/" + name
	}
	return parent.Path + "/" + name
}

var _ scan.RootSource = (*driveSource)(nil)
