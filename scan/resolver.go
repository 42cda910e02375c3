package scan

import (
	"sort"
	"strings"

	"github.com/samber/lo"
)

// SuperuserOwner is the reserved system-owner sentinel some hierarchical
// namespaces report as the ACL owner. It never resolves to a record owner;
// resolution falls through to the tag chain instead.
const SuperuserOwner = "$superuser"

// ownerTagKey is matched case-insensitively against tag keys, ignoring
// surrounding whitespace.
const ownerTagKey = "owner"

// OwnerCandidates carries every owner signal collected for one node, one
// slot per precedence level.
type OwnerCandidates struct {
	// ACLOwner is the backend's explicit ownership field. Highest
	// precedence.
	ACLOwner string

	// ObjectTags are the tags attached directly to the node.
	ObjectTags map[string]string

	// RootTags are the container or bucket scope tags.
	RootTags map[string]string

	// AccountTags are the storage account scope tags. Lowest precedence.
	AccountTags map[string]string
}

// ResolveOwner picks the owner for a node from the candidate slots in
// precedence order: explicit ownership field, then the owner tag at object,
// container and account scope. The reserved superuser sentinel is skipped.
// Returns the empty string when no level yields an owner.
func ResolveOwner(c OwnerCandidates) string {
	if owner := strings.TrimSpace(c.ACLOwner); owner != "" && owner != SuperuserOwner {
		return owner
	}
	for _, tags := range []map[string]string{c.ObjectTags, c.RootTags, c.AccountTags} {
		if owner := OwnerFromTags(tags); owner != "" {
			return owner
		}
	}
	return ""
}

// OwnerFromTags extracts the owner tag value from a tag set. The key match
// is case-insensitive and ignores surrounding whitespace; empty values do
// not count. When several keys normalize to "owner" the lexicographically
// smallest key wins, keeping resolution deterministic.
func OwnerFromTags(tags map[string]string) string {
	if len(tags) == 0 {
		return ""
	}
	keys := lo.Keys(tags)
	sort.Strings(keys)
	for _, k := range keys {
		if !strings.EqualFold(strings.TrimSpace(k), ownerTagKey) {
			continue
		}
		if v := strings.TrimSpace(tags[k]); v != "" {
			return v
		}
	}
	return ""
}

// MergeTags merges the three tag scopes into the record tag set. Precedence
// rises left to right: container tags overwrite account tags, object tags
// overwrite both. Keys unique to any scope all survive. The result is
// always non-nil and never aliases an input map.
func MergeTags(accountTags, rootTags, objectTags map[string]string) map[string]string {
	return lo.Assign(accountTags, rootTags, objectTags)
}
