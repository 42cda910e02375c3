// Package scan implements the backend-independent metadata scan engine:
// the capability contract every backend connector implements, the recursive
// traversal that turns listings into normalized records, the owner and tag
// resolution rules, and the per-backend orchestration of discovery and
// walking.
//
// The engine owns all failure-containment policy. Connectors surface typed
// errors and the engine decides whether a failure kills a root, prunes a
// subtree, or degrades a single field; partial results always survive.
package scan

import (
	"context"
	"time"

	"github.com/driftlake/metascan/record"
)

// Cursor is an opaque pagination token passed back to ListChildren to fetch
// the next page. The empty cursor requests the first page; an empty Next in
// a returned Page means the listing is complete.
type Cursor string

// NodeRef addresses one node inside a root source.
type NodeRef struct {
	// Key is the backend-native address of the node within its root: an
	// object key or prefix, a blob path, a drive item identifier, or a
	// volume path. The zero value addresses the root itself.
	Key string

	// Path is the normalized record path for the node, for example
	// "s3://bucket/reports/". Connectors build it; the engine never
	// synthesizes paths.
	Path string
}

// NodeProps carries the property set of a single node.
type NodeProps struct {
	// SizeBytes is the object size in bytes. Zero for directories.
	SizeBytes int64

	// LastModified is the modification timestamp when the backend reports
	// one.
	LastModified *time.Time

	// LastAccessed is the access timestamp when the backend reports one.
	LastAccessed *time.Time

	// Owner is the backend's explicit ownership field when it has one: a
	// POSIX ACL owner, an object ACL display name, a document author. It
	// is the highest-precedence owner candidate.
	Owner string

	// Extra carries attributes outside the fixed record fields, such as
	// storage class, etag, content type or version id.
	Extra map[string]any
}

// Node is one entry in a directory listing.
type Node struct {
	Ref  NodeRef
	Name string

	// Kind is KindFile or KindDirectory. Listings never produce account
	// roots.
	Kind record.Kind

	// Props holds listing-supplied properties. Nil means the listing did
	// not include properties and NodeProperties must be called to
	// complete the node.
	Props *NodeProps

	// Tags holds listing-supplied tags, valid only when HasTags is true.
	// When HasTags is false the engine calls NodeTags for files.
	Tags    map[string]string
	HasTags bool
}

// Page is one page of a directory listing.
type Page struct {
	Items []Node
	Next  Cursor
}

// AccountInfo is the account-scope context of a root, resolved once per
// walk and cached by the engine.
type AccountInfo struct {
	// AccountTags are tags attached to the storage account. Lowest
	// precedence for both tag merging and owner resolution.
	AccountTags map[string]string

	// RootTags are tags or metadata attached to the root container
	// itself, for example bucket tags or container metadata.
	RootTags map[string]string

	// Extra carries account attributes such as account id, region or
	// resource group.
	Extra map[string]any
}

// RootSource is the per-root read surface of a backend. A RootSource is
// immutable for the duration of a walk: opening a root captures all
// addressing context up front, and concurrent walks of different roots
// never share mutable state.
//
// Failure contract: ListChildren errors are containment decisions for the
// engine (root or subtree scope). NodeProperties, NodeTags and AccountInfo
// errors degrade the affected fields only; connectors return typed errors
// (see the errors package) and never panic.
type RootSource interface {
	// Root returns the descriptor this source was opened for.
	Root() record.Root

	// ListChildren returns one page of the immediate children of ref.
	ListChildren(ctx context.Context, ref NodeRef, cursor Cursor) (Page, error)

	// NodeProperties completes the property set of a node whose listing
	// entry carried none.
	NodeProperties(ctx context.Context, ref NodeRef) (*NodeProps, error)

	// NodeTags returns the tags attached directly to a node. Backends
	// without node-level tags return an empty map.
	NodeTags(ctx context.Context, ref NodeRef) (map[string]string, error)

	// AccountInfo returns the account-scope context for this root.
	AccountInfo(ctx context.Context) (AccountInfo, error)
}

// Connector is one backend family: it discovers scannable roots and opens
// them for traversal. Implementations are safe for concurrent use.
type Connector interface {
	// Source returns the flat backend family label stamped on every
	// record, for example "s3" or "azure_blob".
	Source() string

	// DiscoverRoots enumerates every scannable root the credentials can
	// see. Connectors configured with explicit root selectors return
	// those without calling the backend.
	DiscoverRoots(ctx context.Context) ([]record.Root, error)

	// OpenRoot establishes the immutable per-root context for one
	// discovered or explicitly selected root.
	OpenRoot(ctx context.Context, root record.Root) (RootSource, error)
}

// AccountReporter is implemented by connectors that can describe the
// storage accounts behind their roots as synthetic account-root records.
// The orchestrator consults it only when account records are enabled.
type AccountReporter interface {
	AccountRecords(ctx context.Context) ([]record.Record, error)
}
