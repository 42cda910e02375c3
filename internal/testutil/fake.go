// Package testutil provides scripted fake connectors and fixture trees for
// engine tests. Fakes serve listings from in-memory trees, support paging
// and per-path failure injection, and record call counts.
package testutil

import (
	"context"
	"fmt"
	"sort"
	"strconv"
	"strings"
	"sync"
	"time"

	scanerrors "github.com/driftlake/metascan/errors"
	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"
)

// TreeNode is one node of a fixture tree.
type TreeNode struct {
	Name     string
	Dir      bool
	Size     int64
	Modified *time.Time
	Accessed *time.Time
	Owner    string
	Tags     map[string]string
	Extra    map[string]any
	Children []*TreeNode
}

// Dir builds a directory fixture node.
func Dir(name string, children ...*TreeNode) *TreeNode {
	return &TreeNode{Name: name, Dir: true, Children: children}
}

// File builds a file fixture node.
func File(name string, size int64) *TreeNode {
	return &TreeNode{Name: name, Size: size}
}

// WithTags attaches object-level tags.
func (n *TreeNode) WithTags(tags map[string]string) *TreeNode {
	n.Tags = tags
	return n
}

// WithOwner sets the explicit ownership field, the ACL slot.
func (n *TreeNode) WithOwner(owner string) *TreeNode {
	n.Owner = owner
	return n
}

// WithModified sets the modification timestamp.
func (n *TreeNode) WithModified(t time.Time) *TreeNode {
	n.Modified = &t
	return n
}

// WithExtra attaches backend-specific extras.
func (n *TreeNode) WithExtra(extra map[string]any) *TreeNode {
	n.Extra = extra
	return n
}

// find walks the tree by slash-separated relative key. The empty key is the
// root node itself.
func (n *TreeNode) find(key string) *TreeNode {
	if key == "" {
		return n
	}
	cur := n
	for _, part := range strings.Split(key, "/") {
		var next *TreeNode
		for _, child := range cur.Children {
			if child.Name == part {
				next = child
				break
			}
		}
		if next == nil {
			return nil
		}
		cur = next
	}
	return cur
}

// FakeRoot couples a root descriptor with its fixture tree and account
// context.
type FakeRoot struct {
	Root    record.Root
	Tree    *TreeNode
	Account scan.AccountInfo
}

// FakeConnector is a scripted Connector. The zero behavior serves the
// configured roots; any func field overrides the corresponding method.
type FakeConnector struct {
	Label string
	Roots []FakeRoot

	// PageSize splits listings into pages of this many entries. Zero
	// serves each listing as a single page.
	PageSize int

	// InlineProps controls whether listings carry properties, as
	// hierarchical blob listings do. When false the engine must call
	// NodeProperties per file.
	InlineProps bool

	// InlineTags controls whether listings carry tags. When false the
	// engine must call NodeTags per file.
	InlineTags bool

	// Failure injection, keyed by relative node key ("" is the root).
	// For multi-root fixtures a "rootID:key" entry scopes the failure to
	// one root.
	FailListAt  map[string]error
	FailPropsAt map[string]error
	FailTagsAt  map[string]error
	AccountErr  error

	// FailListOnceAt injects a listing failure that clears after firing,
	// for retry behavior tests.
	FailListOnceAt map[string]error

	// OnList, when set, observes every ListChildren call before it is
	// served.
	OnList func(key string)

	DiscoverRootsFunc  func(ctx context.Context) ([]record.Root, error)
	OpenRootFunc       func(ctx context.Context, root record.Root) (scan.RootSource, error)
	AccountRecordsFunc func(ctx context.Context) ([]record.Record, error)

	mu    sync.Mutex
	calls map[string]int
}

// NewFakeConnector returns a connector serving the given fixture roots with
// listing-supplied properties and tags.
func NewFakeConnector(label string, roots ...FakeRoot) *FakeConnector {
	return &FakeConnector{
		Label:       label,
		Roots:       roots,
		InlineProps: true,
		InlineTags:  true,
	}
}

// Source implements scan.Connector.
func (f *FakeConnector) Source() string { return f.Label }

// DiscoverRoots implements scan.Connector.
func (f *FakeConnector) DiscoverRoots(ctx context.Context) ([]record.Root, error) {
	f.count("discover_roots")
	if f.DiscoverRootsFunc != nil {
		return f.DiscoverRootsFunc(ctx)
	}
	roots := make([]record.Root, len(f.Roots))
	for i, fr := range f.Roots {
		roots[i] = fr.Root
	}
	return roots, nil
}

// OpenRoot implements scan.Connector.
func (f *FakeConnector) OpenRoot(ctx context.Context, root record.Root) (scan.RootSource, error) {
	f.count("open_root")
	if f.OpenRootFunc != nil {
		return f.OpenRootFunc(ctx, root)
	}
	for i := range f.Roots {
		if f.Roots[i].Root.Identifier == root.Identifier {
			return &fakeSource{conn: f, fixture: &f.Roots[i]}, nil
		}
	}
	return nil, fmt.Errorf("open %s: %w", root.Identifier, scanerrors.ErrRootNotFound)
}

// AccountRecords implements scan.AccountReporter when a script is set.
func (f *FakeConnector) AccountRecords(ctx context.Context) ([]record.Record, error) {
	f.count("account_records")
	if f.AccountRecordsFunc != nil {
		return f.AccountRecordsFunc(ctx)
	}
	return nil, nil
}

// Calls returns how many times the named operation ran across all roots.
func (f *FakeConnector) Calls(op string) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.calls[op]
}

func (f *FakeConnector) count(op string) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.calls == nil {
		f.calls = map[string]int{}
	}
	f.calls[op]++
}

func (f *FakeConnector) takeListOnceErr(rootID, key string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, k := range []string{rootID + ":" + key, key} {
		if err, ok := f.FailListOnceAt[k]; ok {
			delete(f.FailListOnceAt, k)
			return err
		}
	}
	return nil
}

// failureFor looks up an injected failure, preferring a root-scoped entry.
func failureFor(m map[string]error, rootID, key string) error {
	if err := m[rootID+":"+key]; err != nil {
		return err
	}
	return m[key]
}

// fakeSource serves one fixture root.
type fakeSource struct {
	conn    *FakeConnector
	fixture *FakeRoot
}

func (s *fakeSource) Root() record.Root { return s.fixture.Root }

func (s *fakeSource) ListChildren(ctx context.Context, ref scan.NodeRef, cursor scan.Cursor) (scan.Page, error) {
	s.conn.count("list_children")
	if s.conn.OnList != nil {
		s.conn.OnList(ref.Key)
	}
	if err := ctx.Err(); err != nil {
		return scan.Page{}, err
	}
	if err := s.conn.takeListOnceErr(s.fixture.Root.Identifier, ref.Key); err != nil {
		return scan.Page{}, err
	}
	if err := failureFor(s.conn.FailListAt, s.fixture.Root.Identifier, ref.Key); err != nil {
		return scan.Page{}, err
	}

	node := s.fixture.Tree.find(ref.Key)
	if node == nil || !node.Dir {
		return scan.Page{}, fmt.Errorf("list %q: %w", ref.Key, scanerrors.ErrNodeNotFound)
	}

	items := make([]scan.Node, 0, len(node.Children))
	for _, child := range node.Children {
		items = append(items, s.listEntry(ref.Key, child))
	}

	start := 0
	if cursor != "" {
		n, err := strconv.Atoi(string(cursor))
		if err != nil {
			return scan.Page{}, fmt.Errorf("bad cursor %q", cursor)
		}
		start = n
	}
	end := len(items)
	next := scan.Cursor("")
	if s.conn.PageSize > 0 && start+s.conn.PageSize < len(items) {
		end = start + s.conn.PageSize
		next = scan.Cursor(strconv.Itoa(end))
	}
	return scan.Page{Items: items[start:end], Next: next}, nil
}

func (s *fakeSource) listEntry(parentKey string, child *TreeNode) scan.Node {
	key := child.Name
	if parentKey != "" {
		key = parentKey + "/" + child.Name
	}
	n := scan.Node{
		Ref: scan.NodeRef{
			Key:  key,
			Path: fmt.Sprintf("fake://%s/%s", s.fixture.Root.Identifier, key),
		},
		Name: child.Name,
		Kind: record.KindFile,
	}
	if child.Dir {
		n.Kind = record.KindDirectory
		n.HasTags = true
		n.Tags = child.Tags
		return n
	}
	if s.conn.InlineProps {
		n.Props = s.props(child)
	}
	if s.conn.InlineTags {
		n.HasTags = true
		n.Tags = child.Tags
	}
	return n
}

func (s *fakeSource) props(node *TreeNode) *scan.NodeProps {
	return &scan.NodeProps{
		SizeBytes:    node.Size,
		LastModified: node.Modified,
		LastAccessed: node.Accessed,
		Owner:        node.Owner,
		Extra:        node.Extra,
	}
}

func (s *fakeSource) NodeProperties(ctx context.Context, ref scan.NodeRef) (*scan.NodeProps, error) {
	s.conn.count("node_properties")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := failureFor(s.conn.FailPropsAt, s.fixture.Root.Identifier, ref.Key); err != nil {
		return nil, err
	}
	node := s.fixture.Tree.find(ref.Key)
	if node == nil {
		return nil, fmt.Errorf("props %q: %w", ref.Key, scanerrors.ErrNodeNotFound)
	}
	return s.props(node), nil
}

func (s *fakeSource) NodeTags(ctx context.Context, ref scan.NodeRef) (map[string]string, error) {
	s.conn.count("node_tags")
	if err := ctx.Err(); err != nil {
		return nil, err
	}
	if err := failureFor(s.conn.FailTagsAt, s.fixture.Root.Identifier, ref.Key); err != nil {
		return nil, err
	}
	node := s.fixture.Tree.find(ref.Key)
	if node == nil {
		return nil, fmt.Errorf("tags %q: %w", ref.Key, scanerrors.ErrNodeNotFound)
	}
	if node.Tags == nil {
		return map[string]string{}, nil
	}
	return node.Tags, nil
}

func (s *fakeSource) AccountInfo(ctx context.Context) (scan.AccountInfo, error) {
	s.conn.count("account_info")
	if err := ctx.Err(); err != nil {
		return scan.AccountInfo{}, err
	}
	if s.conn.AccountErr != nil {
		return scan.AccountInfo{}, s.conn.AccountErr
	}
	return s.fixture.Account, nil
}

// PathsOf extracts record paths in order, a convenience for ordering
// assertions.
func PathsOf(records []record.Record) []string {
	paths := make([]string, len(records))
	for i, r := range records {
		paths[i] = r.Path
	}
	return paths
}

// SortedPaths returns the record paths sorted, for set comparisons.
func SortedPaths(records []record.Record) []string {
	paths := PathsOf(records)
	sort.Strings(paths)
	return paths
}
