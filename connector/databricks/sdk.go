package databricks

import (
	"context"
	"path"
	"strings"
	"time"

	"github.com/databricks/databricks-sdk-go"
	"github.com/databricks/databricks-sdk-go/service/catalog"
	"github.com/databricks/databricks-sdk-go/service/files"
)

// sdkClient implements DatabricksAPI over the live workspace client.
type sdkClient struct {
	w *databricks.WorkspaceClient
}

func newSDKClient(cfg Config) (*sdkClient, error) {
	w, err := databricks.NewWorkspaceClient(&databricks.Config{
		Host:  cfg.Host,
		Token: cfg.Token,
	})
	if err != nil {
		return nil, err
	}
	return &sdkClient{w: w}, nil
}

func (c *sdkClient) ListVolumes(ctx context.Context, catalogName, schema string) ([]VolumeInfo, error) {
	infos, err := c.w.Volumes.ListAll(ctx, catalog.ListVolumesRequest{
		CatalogName: catalogName,
		SchemaName:  schema,
	})
	if err != nil {
		return nil, convertError(err)
	}

	out := make([]VolumeInfo, 0, len(infos))
	for _, v := range infos {
		out = append(out, VolumeInfo{
			Catalog:    v.CatalogName,
			Schema:     v.SchemaName,
			Name:       v.Name,
			FullName:   v.FullName,
			Owner:      v.Owner,
			VolumeType: string(v.VolumeType),
			Comment:    v.Comment,
		})
	}
	return out, nil
}

func (c *sdkClient) ListDirectory(ctx context.Context, dirPath string) ([]Entry, error) {
	entries, err := c.w.Files.ListDirectoryContentsAll(ctx, files.ListDirectoryContentsRequest{
		DirectoryPath: dirPath,
	})
	if err != nil {
		return nil, convertError(err)
	}

	out := make([]Entry, 0, len(entries))
	for _, e := range entries {
		entry := Entry{
			Path:        e.Path,
			Name:        e.Name,
			IsDirectory: e.IsDirectory,
			Size:        e.FileSize,
		}
		if entry.Name == "" {
			entry.Name = path.Base(strings.TrimSuffix(e.Path, "/"))
		}
		if e.LastModified > 0 {
			t := time.UnixMilli(e.LastModified).UTC()
			entry.LastModified = &t
		}
		out = append(out, entry)
	}
	return out, nil
}

func (c *sdkClient) ListDBFS(ctx context.Context, dbfsPath string) ([]Entry, error) {
	infos, err := c.w.Dbfs.ListAll(ctx, files.ListDbfsRequest{Path: dbfsPath})
	if err != nil {
		return nil, convertError(err)
	}

	out := make([]Entry, 0, len(infos))
	for _, fi := range infos {
		entry := Entry{
			Path:        fi.Path,
			Name:        path.Base(strings.TrimSuffix(fi.Path, "/")),
			IsDirectory: fi.IsDir,
			Size:        fi.FileSize,
		}
		if fi.ModificationTime > 0 {
			t := time.UnixMilli(fi.ModificationTime).UTC()
			entry.LastModified = &t
		}
		out = append(out, entry)
	}
	return out, nil
}

func (c *sdkClient) Host() string {
	return c.w.Config.Host
}

var _ DatabricksAPI = (*sdkClient)(nil)
