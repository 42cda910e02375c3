// Package record defines the normalized metadata record produced by every
// backend connector, the scan root descriptor, and the serialization modes
// for both.
//
// A Record describes one file, directory or account root discovered during a
// scan. Records are value types: the engine builds one, emits it, and never
// mutates it afterwards. Directory records carry the recursive sum of their
// descendant file sizes, so consumers never have to re-aggregate.
package record

import (
	"fmt"
	"time"
)

// Kind identifies what a record describes.
type Kind string

const (
	// KindFile is a leaf object carrying content.
	KindFile Kind = "file"

	// KindDirectory is a container of other nodes. Directory size is the
	// recursive sum of descendant file sizes.
	KindDirectory Kind = "directory"

	// KindAccountRoot is a synthetic record describing a storage account
	// itself rather than a node inside it. Always size zero.
	KindAccountRoot Kind = "account_root"
)

// Record is the single normalized shape every backend maps its metadata
// into. Exactly one record exists per discovered node.
type Record struct {
	// Path is the backend-specific URI of the node (for example
	// "s3://bucket/key" or "azure://container/blob"). Unique within one
	// scan pass over one root.
	Path string

	// Kind says whether the record is a file, a directory or a synthetic
	// account root.
	Kind Kind

	// SizeBytes is the object size for files and the recursive sum of
	// descendant file sizes for directories. Never negative.
	SizeBytes int64

	// LastModified is the backend modification timestamp, nil when the
	// backend does not report one.
	LastModified *time.Time

	// LastAccessed is the backend access timestamp, nil when the backend
	// does not report one.
	LastAccessed *time.Time

	// Owner is the resolved owner identity. Empty means the owner could
	// not be determined from any precedence level; it serializes as null.
	Owner string

	// Source is the flat backend family label, for example "s3" or
	// "sharepoint". No nesting.
	Source string

	// Tags is the merged tag set for the node. Keys from more specific
	// scopes override keys from broader scopes.
	Tags map[string]string

	// Extra carries backend-specific attributes that do not fit the fixed
	// fields, such as storage class, etag or version id.
	Extra map[string]any
}

// Validate checks the structural invariants of a record. The engine only
// emits valid records; Validate exists for deserialized or hand-built input.
func (r Record) Validate() error {
	if r.Path == "" {
		return fmt.Errorf("record: empty path")
	}
	switch r.Kind {
	case KindFile, KindDirectory, KindAccountRoot:
	default:
		return fmt.Errorf("record: unknown kind %q", r.Kind)
	}
	if r.SizeBytes < 0 {
		return fmt.Errorf("record %s: negative size %d", r.Path, r.SizeBytes)
	}
	if r.Source == "" {
		return fmt.Errorf("record %s: empty source", r.Path)
	}
	return nil
}

// Root describes one scannable top-level container: an object-store bucket,
// a blob container, a document drive or a managed volume. Discovery produces
// roots; the traversal engine consumes them. A Root is immutable for the
// duration of a walk.
type Root struct {
	// Identifier addresses the root within its backend, for example a
	// bucket name, "account/container", "siteID/driveID" or a volume path.
	Identifier string

	// DisplayName is the human-readable name, when the backend
	// distinguishes one from the identifier.
	DisplayName string

	// Tags holds account- or root-level tags attached to the root at
	// discovery time. They participate in tag merging at the lowest
	// precedence.
	Tags map[string]string

	// Location is the backend region or site locality, when known.
	Location string

	// Extra carries discovery-time attributes such as resource group or
	// provisioning state.
	Extra map[string]any
}

// Name returns the display name when set, falling back to the identifier.
func (r Root) Name() string {
	if r.DisplayName != "" {
		return r.DisplayName
	}
	return r.Identifier
}

// NewAccountRecord builds the synthetic account-root record for a storage
// account discovered by a connector. Path and tags come from the provided
// descriptor; size is always zero.
func NewAccountRecord(source, path string, tags map[string]string, extra map[string]any) Record {
	if tags == nil {
		tags = map[string]string{}
	}
	return Record{
		Path:      path,
		Kind:      KindAccountRoot,
		SizeBytes: 0,
		Source:    source,
		Tags:      tags,
		Extra:     extra,
	}
}
