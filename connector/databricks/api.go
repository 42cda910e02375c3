package databricks

import (
	"context"
	"time"
)

// Entry is one filesystem entry of a volume or DBFS listing, flattened to
// plain values.
type Entry struct {
	Path         string
	Name         string
	IsDirectory  bool
	Size         int64
	LastModified *time.Time
}

// VolumeInfo describes one Unity Catalog volume.
type VolumeInfo struct {
	Catalog    string
	Schema     string
	Name       string
	FullName   string
	Owner      string
	VolumeType string
	Comment    string
}

// DatabricksAPI is the narrow surface of the Databricks SDK the connectors
// use, flattened so tests can fake it without SDK iterators. Listings are
// returned whole: the Files API paginates internally and neither plane
// exposes a stable cursor worth surfacing.
type DatabricksAPI interface {
	// ListVolumes enumerates the volumes of one catalog schema.
	ListVolumes(ctx context.Context, catalog, schema string) ([]VolumeInfo, error)

	// ListDirectory lists the immediate children of a volume path
	// ("/Volumes/catalog/schema/volume/...").
	ListDirectory(ctx context.Context, path string) ([]Entry, error)

	// ListDBFS lists the immediate children of a DBFS path ("dbfs:/...").
	ListDBFS(ctx context.Context, path string) ([]Entry, error)

	// Host returns the workspace host the client is bound to.
	Host() string
}
