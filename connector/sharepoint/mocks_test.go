package sharepoint

import (
	"context"
)

// fakeAPI implements GraphAPI with overridable functions. Methods without
// an override succeed with zero values, which reads as an empty tenant.
type fakeAPI struct {
	SiteByPathFunc   func(ctx context.Context, hostname, relativePath string) (Site, error)
	ListSitesFunc    func(ctx context.Context, cursor string) (SitePage, error)
	ListDrivesFunc   func(ctx context.Context, siteID, cursor string) (DrivePage, error)
	DriveFunc        func(ctx context.Context, siteID, driveID string) (Drive, error)
	ItemFunc         func(ctx context.Context, siteID, driveID, itemID string) (Item, error)
	ListChildrenFunc func(ctx context.Context, siteID, driveID, itemID, cursor string) (ItemPage, error)
}

func (f *fakeAPI) SiteByPath(ctx context.Context, hostname, relativePath string) (Site, error) {
	if f.SiteByPathFunc != nil {
		return f.SiteByPathFunc(ctx, hostname, relativePath)
	}
	return Site{}, nil
}

func (f *fakeAPI) ListSites(ctx context.Context, cursor string) (SitePage, error) {
	if f.ListSitesFunc != nil {
		return f.ListSitesFunc(ctx, cursor)
	}
	return SitePage{}, nil
}

func (f *fakeAPI) ListDrives(ctx context.Context, siteID, cursor string) (DrivePage, error) {
	if f.ListDrivesFunc != nil {
		return f.ListDrivesFunc(ctx, siteID, cursor)
	}
	return DrivePage{}, nil
}

func (f *fakeAPI) Drive(ctx context.Context, siteID, driveID string) (Drive, error) {
	if f.DriveFunc != nil {
		return f.DriveFunc(ctx, siteID, driveID)
	}
	return Drive{}, nil
}

func (f *fakeAPI) Item(ctx context.Context, siteID, driveID, itemID string) (Item, error) {
	if f.ItemFunc != nil {
		return f.ItemFunc(ctx, siteID, driveID, itemID)
	}
	return Item{}, nil
}

func (f *fakeAPI) ListChildren(ctx context.Context, siteID, driveID, itemID, cursor string) (ItemPage, error) {
	if f.ListChildrenFunc != nil {
		return f.ListChildrenFunc(ctx, siteID, driveID, itemID, cursor)
	}
	return ItemPage{}, nil
}

var _ GraphAPI = (*fakeAPI)(nil)
