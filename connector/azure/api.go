package azure

import (
	"context"
	"time"
)

// AccountMeta is the management-plane description of a storage account.
type AccountMeta struct {
	Name          string
	ResourceGroup string
	Location      string
	Tags          map[string]string
	Extra         map[string]any
}

// DataAccountInfo is the data-plane self-description of a storage account.
type DataAccountInfo struct {
	SKUName     string
	AccountKind string
	HNSEnabled  bool
}

// ContainerPage is one page of a container listing.
type ContainerPage struct {
	Containers []string
	NextMarker string
}

// ContainerProps are the properties of a blob container. Metadata carries
// the user-assigned key/value pairs that feed the container tag slot.
type ContainerProps struct {
	Metadata     map[string]string
	LastModified *time.Time
	ETag         string
	LeaseStatus  string
	LeaseState   string
}

// BlobEntry is one blob in a hierarchy listing, flattened to plain values.
type BlobEntry struct {
	Name         string
	Size         int64
	LastModified *time.Time
	LastAccessed *time.Time
	ETag         string
	ContentType  string
	Metadata     map[string]string
	Tags         map[string]string
	IsFolder     bool
}

// HierarchyPage is one delimiter page of a blob listing. Prefixes carry
// their trailing slash.
type HierarchyPage struct {
	Prefixes   []string
	Blobs      []BlobEntry
	NextMarker string
}

// HierarchyOptions shape a hierarchy listing request.
type HierarchyOptions struct {
	Prefix          string
	Marker          string
	IncludeMetadata bool
	IncludeTags     bool
}

// BlobProps is the full property set of a single blob.
type BlobProps struct {
	Size         int64
	LastModified *time.Time
	LastAccessed *time.Time
	ETag         string
	ContentType  string
	Metadata     map[string]string
}

// AccessControl is the POSIX access control of a path on a
// hierarchical-namespace account.
type AccessControl struct {
	Owner       string
	Group       string
	Permissions string
}

// DirProps are the directory properties the datalake plane reports.
type DirProps struct {
	LastModified *time.Time
	Metadata     map[string]string
}

// AzureAPI is the narrow surface of the Azure SDKs the connector uses,
// flattened to plain request/response values so tests can fake it without
// SDK pagers. The account argument selects the storage account; the empty
// string selects the configured default account.
//
// Management-plane calls return ErrUnsupported when the connector has no
// subscription configured.
type AzureAPI interface {
	// ListAccounts enumerates the subscription's storage accounts.
	ListAccounts(ctx context.Context) ([]AccountMeta, error)

	// AccountProperties fetches one storage account's management-plane
	// tags and properties.
	AccountProperties(ctx context.Context, account string) (AccountMeta, error)

	// AccountInfo fetches the data-plane account information.
	AccountInfo(ctx context.Context, account string) (DataAccountInfo, error)

	// ListContainers returns one page of the account's containers.
	ListContainers(ctx context.Context, account, marker string) (ContainerPage, error)

	// ContainerProperties fetches container metadata and lease state.
	ContainerProperties(ctx context.Context, account, container string) (ContainerProps, error)

	// ListBlobsHierarchy returns one delimiter page of a container listing.
	ListBlobsHierarchy(ctx context.Context, account, container string, opts HierarchyOptions) (HierarchyPage, error)

	// BlobProperties fetches the full property set of one blob.
	BlobProperties(ctx context.Context, account, container, name string) (BlobProps, error)

	// BlobTags fetches the index tags of one blob.
	BlobTags(ctx context.Context, account, container, name string) (map[string]string, error)

	// GetAccessControl reads the POSIX access control of a file or
	// directory on a hierarchical-namespace account.
	GetAccessControl(ctx context.Context, account, container, path string, isDirectory bool) (AccessControl, error)

	// DirectoryProperties fetches datalake directory properties.
	DirectoryProperties(ctx context.Context, account, container, path string) (DirProps, error)
}
