// Package sharepoint implements the document library connector for
// SharePoint through the Microsoft Graph API.
//
// Every (site, drive) pair is a scan root. Sites come from Graph search
// when none is configured, drives from per-site enumeration when no drive
// is pinned. Item creators supply the object-level owner candidate and the
// library owner feeds the container slot of the resolution chain.
package sharepoint

import (
	"context"
	"fmt"
	"log/slog"
	"strings"

	"github.com/Azure/azure-sdk-for-go/sdk/azidentity"

	"github.com/driftlake/metascan"
	scanerrors "github.com/driftlake/metascan/errors"
	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"
)

// Kind is the connector kind and the source label stamped on records.
const Kind = "sharepoint"

func init() {
	metascan.RegisterConnector(Kind, func(ctx context.Context, settings map[string]string) (scan.Connector, error) {
		return New(ctx, ConfigFromSettings(settings))
	})
}

// Config holds the connector configuration. TenantID, ClientID and
// ClientSecret are required; the rest narrows the scan.
type Config struct {
	// TenantID, ClientID and ClientSecret select the application
	// registration used against Graph.
	TenantID     string
	ClientID     string
	ClientSecret string

	// SiteID pins the scan to one site. When empty and SiteURL is set,
	// the site is resolved from the URL; when both are empty every
	// reachable site is discovered.
	SiteID string

	// SiteURL is the browser URL of a site, resolved to a site id at
	// discovery time.
	SiteURL string

	// DriveID pins the scan to one document library of the pinned site.
	DriveID string

	// Logger receives connector diagnostics. Defaults to a discard logger.
	Logger *slog.Logger
}

// ConfigFromSettings builds a Config from flat string settings, using the
// key names the scanner configuration exposes.
func ConfigFromSettings(settings map[string]string) Config {
	return Config{
		TenantID:     settings["sharepoint_tenant_id"],
		ClientID:     settings["sharepoint_client_id"],
		ClientSecret: settings["sharepoint_client_secret"],
		SiteID:       settings["sharepoint_site_id"],
		SiteURL:      settings["sharepoint_site_url"],
		DriveID:      settings["sharepoint_drive_id"],
	}
}

// Connector scans SharePoint document libraries. It implements
// scan.Connector.
type Connector struct {
	api GraphAPI
	cfg Config
	log *slog.Logger
}

// New creates a SharePoint connector with the provided configuration,
// authenticating as a service principal.
//
// Example:
//
//	conn, err := sharepoint.New(ctx, sharepoint.Config{
//	    TenantID:     tenant,
//	    ClientID:     client,
//	    ClientSecret: secret,
//	    SiteURL:      "https://contoso.sharepoint.com/sites/finance",
//	})
func New(ctx context.Context, cfg Config) (*Connector, error) {
	if cfg.TenantID == "" || cfg.ClientID == "" || cfg.ClientSecret == "" {
		return nil, scanerrors.NewError("configure", Kind, fmt.Errorf(
			"%w: tenant id, client id and client secret are required", scanerrors.ErrInvalidInput))
	}
	cred, err := azidentity.NewClientSecretCredential(cfg.TenantID, cfg.ClientID, cfg.ClientSecret, nil)
	if err != nil {
		return nil, scanerrors.NewError("configure", Kind, err)
	}
	return NewWithAPI(newGraphClient(cred), cfg), nil
}

// NewWithAPI creates a connector with a custom Graph implementation.
// This is primarily used for testing with a fake API.
func NewWithAPI(api GraphAPI, cfg Config) *Connector {
	c := &Connector{api: api, cfg: cfg, log: cfg.Logger}
	if c.log == nil {
		c.log = slog.New(slog.DiscardHandler)
	}
	return c
}

// Source returns the source label for records produced by this connector.
func (c *Connector) Source() string { return Kind }

// DiscoverRoots enumerates the (site, drive) pairs to scan. A pinned site
// restricts discovery to its drives, a pinned drive to exactly one root,
// and with neither every reachable site is searched. A site whose drives
// cannot be listed costs only that site.
func (c *Connector) DiscoverRoots(ctx context.Context) ([]record.Root, error) {
	sites, err := c.resolveSites(ctx)
	if err != nil {
		return nil, err
	}

	if c.cfg.DriveID != "" {
		if len(sites) != 1 {
			return nil, scanerrors.NewError("discover_roots", Kind, fmt.Errorf(
				"%w: a drive id requires a site id or site url", scanerrors.ErrInvalidInput))
		}
		return []record.Root{driveRoot(sites[0], Drive{ID: c.cfg.DriveID})}, nil
	}

	var roots []record.Root
	for _, site := range sites {
		drives, err := c.siteDrives(ctx, site.ID)
		if err != nil {
			// Spanning discovery keeps going past an unreadable site;
			// a single configured site has nothing else to offer.
			if len(sites) == 1 {
				return nil, scanerrors.NewRootError("discover_roots", Kind, site.ID, err)
			}
			c.log.Warn("skipping site with unreadable drives",
				"site", site.ID, "name", site.Name, "error", err)
			continue
		}
		for _, d := range drives {
			roots = append(roots, driveRoot(site, d))
		}
	}
	return roots, nil
}

// OpenRoot binds one "siteID/driveID" root. The drive lookup completes the
// display name and library owner for roots selected without discovery; its
// failure degrades those fields only.
func (c *Connector) OpenRoot(ctx context.Context, root record.Root) (scan.RootSource, error) {
	siteID, driveID, ok := strings.Cut(root.Identifier, "/")
	if !ok || siteID == "" || driveID == "" {
		return nil, scanerrors.NewRootError("open_root", Kind, root.Identifier, fmt.Errorf(
			"%w: root identifier must be site-id/drive-id", scanerrors.ErrInvalidInput))
	}

	drive, err := c.api.Drive(ctx, siteID, driveID)
	switch {
	case scanerrors.IsNotFound(err):
		return nil, scanerrors.NewRootError("open_root", Kind, root.Identifier,
			fmt.Errorf("%w: drive %s", scanerrors.ErrRootNotFound, driveID))
	case err != nil:
		c.log.Warn("drive lookup degraded", "root", root.Identifier, "error", err)
	case root.DisplayName == "":
		root.DisplayName = drive.Name
	}

	return &driveSource{
		api:     c.api,
		root:    root,
		siteID:  siteID,
		driveID: driveID,
		base:    fmt.Sprintf("sharepoint://%s/%s", siteID, driveID),
		drive:   drive,
		tenant:  c.cfg.TenantID,
		log:     c.log.With("source", Kind, "root", root.Identifier),
	}, nil
}

// resolveSites returns the single configured site, or every site Graph
// search can see.
func (c *Connector) resolveSites(ctx context.Context) ([]Site, error) {
	if c.cfg.SiteID != "" {
		return []Site{{ID: c.cfg.SiteID}}, nil
	}
	if c.cfg.SiteURL != "" {
		hostname, relative, err := splitSiteURL(c.cfg.SiteURL)
		if err != nil {
			return nil, scanerrors.NewError("discover_roots", Kind, err)
		}
		site, err := c.api.SiteByPath(ctx, hostname, relative)
		if err != nil {
			return nil, scanerrors.NewError("discover_roots", Kind, err)
		}
		return []Site{site}, nil
	}

	var sites []Site
	cursor := ""
	for {
		page, err := c.api.ListSites(ctx, cursor)
		if err != nil {
			return nil, scanerrors.NewError("discover_roots", Kind, err)
		}
		sites = append(sites, page.Sites...)
		if page.NextLink == "" {
			return sites, nil
		}
		cursor = page.NextLink
	}
}

func (c *Connector) siteDrives(ctx context.Context, siteID string) ([]Drive, error) {
	var drives []Drive
	cursor := ""
	for {
		page, err := c.api.ListDrives(ctx, siteID, cursor)
		if err != nil {
			return nil, err
		}
		drives = append(drives, page.Drives...)
		if page.NextLink == "" {
			return drives, nil
		}
		cursor = page.NextLink
	}
}

func driveRoot(site Site, drive Drive) record.Root {
	root := record.Root{
		Identifier: site.ID + "/" + drive.ID,
		Extra:      map[string]any{"site_id": site.ID, "drive_id": drive.ID},
	}
	switch {
	case site.Name != "" && drive.Name != "":
		root.DisplayName = site.Name + "/" + drive.Name
	case drive.Name != "":
		root.DisplayName = drive.Name
	}
	if site.Name != "" {
		root.Extra["site_name"] = site.Name
	}
	if site.WebURL != "" {
		root.Extra["site_url"] = site.WebURL
	}
	if drive.DriveType != "" {
		root.Extra["drive_type"] = drive.DriveType
	}
	return root
}

// splitSiteURL reduces a browser site URL to the hostname and
// server-relative path form Graph resolves sites by.
func splitSiteURL(raw string) (hostname, relative string, err error) {
	clean := strings.TrimPrefix(strings.TrimPrefix(raw, "https://"), "http://")
	clean = strings.TrimRight(clean, "/")
	if clean == "" {
		return "", "", fmt.Errorf("%w: empty site url", scanerrors.ErrInvalidInput)
	}
	hostname, relative, _ = strings.Cut(clean, "/")
	return hostname, relative, nil
}

var _ scan.Connector = (*Connector)(nil)
