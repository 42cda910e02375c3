package sharepoint

import (
	"context"
	"fmt"
	"testing"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	scanerrors "github.com/driftlake/metascan/errors"
	"github.com/driftlake/metascan/record"
)

func TestConnector_DiscoverRoots(t *testing.T) {
	t.Run("pinned site and drive make exactly one root", func(t *testing.T) {
		api := &fakeAPI{
			ListSitesFunc: func(ctx context.Context, cursor string) (SitePage, error) {
				t.Fatal("ListSites must not be called")
				return SitePage{}, nil
			},
			ListDrivesFunc: func(ctx context.Context, siteID, cursor string) (DrivePage, error) {
				t.Fatal("ListDrives must not be called")
				return DrivePage{}, nil
			},
		}

		conn := NewWithAPI(api, Config{SiteID: "contoso,s1", DriveID: "d1"})
		roots, err := conn.DiscoverRoots(context.Background())
		require.NoError(t, err)
		require.Len(t, roots, 1)
		assert.Equal(t, "contoso,s1/d1", roots[0].Identifier)
	})

	t.Run("pinned site enumerates its drives across pages", func(t *testing.T) {
		api := &fakeAPI{
			ListDrivesFunc: func(ctx context.Context, siteID, cursor string) (DrivePage, error) {
				assert.Equal(t, "contoso,s1", siteID)
				if cursor == "" {
					return DrivePage{
						Drives:   []Drive{{ID: "d1", Name: "Documents", DriveType: "documentLibrary"}},
						NextLink: "https://graph.microsoft.com/next",
					}, nil
				}
				assert.Equal(t, "https://graph.microsoft.com/next", cursor)
				return DrivePage{Drives: []Drive{{ID: "d2", Name: "Archive"}}}, nil
			},
		}

		conn := NewWithAPI(api, Config{SiteID: "contoso,s1"})
		roots, err := conn.DiscoverRoots(context.Background())
		require.NoError(t, err)
		require.Len(t, roots, 2)
		assert.Equal(t, "contoso,s1/d1", roots[0].Identifier)
		assert.Equal(t, "Documents", roots[0].DisplayName)
		assert.Equal(t, "documentLibrary", roots[0].Extra["drive_type"])
		assert.Equal(t, "contoso,s1/d2", roots[1].Identifier)
	})

	t.Run("site url resolves before drive enumeration", func(t *testing.T) {
		api := &fakeAPI{
			SiteByPathFunc: func(ctx context.Context, hostname, relativePath string) (Site, error) {
				assert.Equal(t, "contoso.sharepoint.com", hostname)
				assert.Equal(t, "sites/finance", relativePath)
				return Site{ID: "contoso,s9", Name: "Finance"}, nil
			},
			ListDrivesFunc: func(ctx context.Context, siteID, cursor string) (DrivePage, error) {
				assert.Equal(t, "contoso,s9", siteID)
				return DrivePage{Drives: []Drive{{ID: "d1", Name: "Documents"}}}, nil
			},
		}

		conn := NewWithAPI(api, Config{SiteURL: "https://contoso.sharepoint.com/sites/finance/"})
		roots, err := conn.DiscoverRoots(context.Background())
		require.NoError(t, err)
		require.Len(t, roots, 1)
		assert.Equal(t, "contoso,s9/d1", roots[0].Identifier)
		assert.Equal(t, "Finance/Documents", roots[0].DisplayName)
		assert.Equal(t, "Finance", roots[0].Extra["site_name"])
	})

	t.Run("spanning discovery skips sites with unreadable drives", func(t *testing.T) {
		api := &fakeAPI{
			ListSitesFunc: func(ctx context.Context, cursor string) (SitePage, error) {
				return SitePage{Sites: []Site{
					{ID: "contoso,s1", Name: "Finance"},
					{ID: "contoso,s2", Name: "Legal"},
					{ID: "contoso,s3", Name: "Ops"},
				}}, nil
			},
			ListDrivesFunc: func(ctx context.Context, siteID, cursor string) (DrivePage, error) {
				if siteID == "contoso,s2" {
					return DrivePage{}, fmt.Errorf("%w: drives denied", scanerrors.ErrPermissionDenied)
				}
				return DrivePage{Drives: []Drive{{ID: "d-" + siteID, Name: "Documents"}}}, nil
			},
		}

		conn := NewWithAPI(api, Config{})
		roots, err := conn.DiscoverRoots(context.Background())
		require.NoError(t, err)
		require.Len(t, roots, 2)
		assert.Equal(t, "contoso,s1/d-contoso,s1", roots[0].Identifier)
		assert.Equal(t, "contoso,s3/d-contoso,s3", roots[1].Identifier)
	})

	t.Run("site search failure fails discovery", func(t *testing.T) {
		api := &fakeAPI{
			ListSitesFunc: func(ctx context.Context, cursor string) (SitePage, error) {
				return SitePage{}, fmt.Errorf("%w: search denied", scanerrors.ErrPermissionDenied)
			},
		}

		conn := NewWithAPI(api, Config{})
		_, err := conn.DiscoverRoots(context.Background())
		require.Error(t, err)
		assert.True(t, scanerrors.IsPermissionDenied(err))
	})

	t.Run("drive id without site is invalid", func(t *testing.T) {
		conn := NewWithAPI(&fakeAPI{
			ListSitesFunc: func(ctx context.Context, cursor string) (SitePage, error) {
				return SitePage{Sites: []Site{{ID: "a"}, {ID: "b"}}}, nil
			},
		}, Config{DriveID: "d1"})
		_, err := conn.DiscoverRoots(context.Background())
		require.ErrorIs(t, err, scanerrors.ErrInvalidInput)
	})
}

func TestConnector_OpenRoot(t *testing.T) {
	t.Run("completes the display name from the drive", func(t *testing.T) {
		api := &fakeAPI{
			DriveFunc: func(ctx context.Context, siteID, driveID string) (Drive, error) {
				assert.Equal(t, "contoso,s1", siteID)
				assert.Equal(t, "d1", driveID)
				return Drive{ID: "d1", Name: "Documents", Owner: "marta"}, nil
			},
		}

		conn := NewWithAPI(api, Config{TenantID: "tenant-1"})
		src, err := conn.OpenRoot(context.Background(), record.Root{Identifier: "contoso,s1/d1"})
		require.NoError(t, err)
		assert.Equal(t, "Documents", src.Root().DisplayName)

		info, err := src.AccountInfo(context.Background())
		require.NoError(t, err)
		assert.Equal(t, map[string]string{"owner": "marta"}, info.RootTags)
		assert.Equal(t, "tenant-1", info.Extra["tenant_id"])
		assert.Equal(t, "contoso,s1", info.Extra["site_id"])
	})

	t.Run("missing drive is a missing root", func(t *testing.T) {
		api := &fakeAPI{
			DriveFunc: func(ctx context.Context, siteID, driveID string) (Drive, error) {
				return Drive{}, fmt.Errorf("%w: no such drive", scanerrors.ErrNodeNotFound)
			},
		}

		conn := NewWithAPI(api, Config{})
		_, err := conn.OpenRoot(context.Background(), record.Root{Identifier: "contoso,s1/gone"})
		require.Error(t, err)
		assert.True(t, scanerrors.IsRootNotFound(err))
	})

	t.Run("drive lookup denial degrades the name only", func(t *testing.T) {
		api := &fakeAPI{
			DriveFunc: func(ctx context.Context, siteID, driveID string) (Drive, error) {
				return Drive{}, fmt.Errorf("%w: drive read denied", scanerrors.ErrPermissionDenied)
			},
		}

		conn := NewWithAPI(api, Config{})
		src, err := conn.OpenRoot(context.Background(), record.Root{Identifier: "contoso,s1/d1"})
		require.NoError(t, err)
		assert.Empty(t, src.Root().DisplayName)
	})

	t.Run("malformed identifier", func(t *testing.T) {
		conn := NewWithAPI(&fakeAPI{}, Config{})
		_, err := conn.OpenRoot(context.Background(), record.Root{Identifier: "just-a-site"})
		require.ErrorIs(t, err, scanerrors.ErrInvalidInput)
	})
}

func TestNew_RequiresCredentials(t *testing.T) {
	_, err := New(context.Background(), Config{TenantID: "t"})
	require.ErrorIs(t, err, scanerrors.ErrInvalidInput)
}

func TestSplitSiteURL(t *testing.T) {
	tests := []struct {
		name         string
		url          string
		wantHost     string
		wantRelative string
		wantErr      bool
	}{
		{name: "full site url", url: "https://contoso.sharepoint.com/sites/finance", wantHost: "contoso.sharepoint.com", wantRelative: "sites/finance"},
		{name: "trailing slash", url: "http://contoso.sharepoint.com/sites/finance/", wantHost: "contoso.sharepoint.com", wantRelative: "sites/finance"},
		{name: "root site", url: "https://contoso.sharepoint.com", wantHost: "contoso.sharepoint.com"},
		{name: "empty", url: "https://", wantErr: true},
	}
	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			host, relative, err := splitSiteURL(tt.url)
			if tt.wantErr {
				require.Error(t, err)
				return
			}
			require.NoError(t, err)
			assert.Equal(t, tt.wantHost, host)
			assert.Equal(t, tt.wantRelative, relative)
		})
	}
}
