package sharepoint

import (
	"context"
	"time"
)

// Site describes one SharePoint site.
type Site struct {
	ID     string
	Name   string
	WebURL string
}

// SitePage is one page of a site listing. NextLink carries the Graph
// continuation URL, empty when the listing is complete.
type SitePage struct {
	Sites    []Site
	NextLink string
}

// Drive describes one document library within a site. Owner is the
// library owner's display name when Graph reports one.
type Drive struct {
	ID        string
	Name      string
	DriveType string
	WebURL    string
	Owner     string
}

// DrivePage is one page of a drive listing.
type DrivePage struct {
	Drives   []Drive
	NextLink string
}

// Item is one drive item, flattened to plain values. CreatedBy is the
// creating user's display name, the object-level owner candidate.
type Item struct {
	ID           string
	Name         string
	IsFolder     bool
	Size         int64
	LastModified *time.Time
	ETag         string
	MimeType     string
	CreatedBy    string
	WebURL       string
}

// ItemPage is one page of a children listing.
type ItemPage struct {
	Items    []Item
	NextLink string
}

// GraphAPI is the narrow surface of the Microsoft Graph API the connector
// uses, flattened to plain request/response values so tests can fake it
// without HTTP. Cursors are @odata.nextLink URLs and are opaque to callers.
type GraphAPI interface {
	// SiteByPath resolves a site from its hostname and server-relative
	// path, the Graph "sites/{hostname}:/{path}" addressing form.
	SiteByPath(ctx context.Context, hostname, relativePath string) (Site, error)

	// ListSites returns one page of every site the credentials can see.
	ListSites(ctx context.Context, cursor string) (SitePage, error)

	// ListDrives returns one page of a site's document libraries.
	ListDrives(ctx context.Context, siteID, cursor string) (DrivePage, error)

	// Drive fetches one document library.
	Drive(ctx context.Context, siteID, driveID string) (Drive, error)

	// Item fetches one drive item.
	Item(ctx context.Context, siteID, driveID, itemID string) (Item, error)

	// ListChildren returns one page of an item's children. The empty
	// itemID addresses the drive root.
	ListChildren(ctx context.Context, siteID, driveID, itemID, cursor string) (ItemPage, error)
}
