package scan

import (
	"context"
	"log/slog"
	"sync"

	"github.com/driftlake/metascan/record"
)

// walker traverses one root. The account context is resolved once before
// the walk and read-only afterwards, so concurrent subtree walkers share it
// without locking.
type walker struct {
	src     RootSource
	source  string
	rootID  string
	opts    Options
	log     *slog.Logger
	diags   *collector
	sem     chan struct{}
	account AccountInfo
}

// walkRoot scans a single opened root and returns its records in listing
// order. A non-nil error means either the top-level listing failed before
// producing anything or the context was canceled; records collected up to
// that point are still returned.
func walkRoot(ctx context.Context, source string, src RootSource, opts Options, log *slog.Logger, diags *collector) ([]record.Record, error) {
	w := &walker{
		src:    src,
		source: source,
		rootID: src.Root().Identifier,
		opts:   opts,
		log:    log,
		diags:  diags,
		sem:    make(chan struct{}, opts.DirConcurrency),
	}

	var info AccountInfo
	err := withRetry(ctx, log, opts.RetryAttempts, "account_info", func() error {
		var aerr error
		info, aerr = src.AccountInfo(ctx)
		return aerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		// Account context is an enrichment. The walk proceeds without it.
		w.warnAt("", "account_info", err)
	} else {
		w.account = info
	}

	records, total, err := w.walkDir(ctx, NodeRef{}, 0)
	if err == nil {
		log.Debug("walk complete", "records", len(records), "bytes", total)
	}
	return records, err
}

// subtreeResult is what one directory child contributes to its parent:
// records in emission order, the subtree byte total, and a cancellation
// error if the walk was cut short.
type subtreeResult struct {
	records []record.Record
	size    int64
	err     error
}

// walkDir pages through the children of dir, recursing into directories.
// It returns the emitted records and the byte total of every descendant
// file, whether or not records were emitted for them.
//
// Failure scope: a listing failure on the first page of the root is fatal
// to the root and returned. Any other listing failure prunes the remainder
// of this directory, keeps what was already collected, and emits a
// diagnostic.
func (w *walker) walkDir(ctx context.Context, dir NodeRef, depth int) ([]record.Record, int64, error) {
	var out []record.Record
	var total int64

	cursor := Cursor("")
	firstPage := true
	for {
		if err := ctx.Err(); err != nil {
			return out, total, err
		}

		var page Page
		err := withRetry(ctx, w.log, w.opts.RetryAttempts, "list_children", func() error {
			var lerr error
			page, lerr = w.src.ListChildren(ctx, dir, cursor)
			return lerr
		})
		if err != nil {
			if ctxErr := ctx.Err(); ctxErr != nil {
				return out, total, ctxErr
			}
			if firstPage && depth == 0 {
				return out, total, err
			}
			w.warnAt(dir.Path, "list_children", err)
			return out, total, nil
		}
		firstPage = false

		records, size, err := w.processPage(ctx, page.Items, depth)
		out = append(out, records...)
		total += size
		if err != nil {
			return out, total, err
		}

		if page.Next == "" {
			return out, total, nil
		}
		cursor = page.Next
	}
}

// processPage turns one listing page into records. Files are completed
// inline in listing order. Directory subtrees may walk on pool goroutines;
// each writes only its own slot, and assembly after the wait restores
// listing order, so output is deterministic regardless of scheduling.
func (w *walker) processPage(ctx context.Context, items []Node, depth int) ([]record.Record, int64, error) {
	results := make([]subtreeResult, len(items))
	var wg sync.WaitGroup

	for i := range items {
		if ctx.Err() != nil {
			break
		}
		item := items[i]
		switch item.Kind {
		case record.KindDirectory:
			select {
			case w.sem <- struct{}{}:
				wg.Add(1)
				go func(i int, item Node) {
					defer wg.Done()
					defer func() { <-w.sem }()
					results[i] = w.walkDirectoryItem(ctx, item, depth)
				}(i, item)
			default:
				// Pool exhausted: walk in place rather than wait, so
				// deep recursion can never deadlock on the semaphore.
				results[i] = w.walkDirectoryItem(ctx, item, depth)
			}
		case record.KindFile:
			rec, size := w.fileRecord(ctx, item)
			res := subtreeResult{size: size}
			if w.emitAt(depth) {
				res.records = []record.Record{rec}
			}
			results[i] = res
		default:
			w.log.Debug("skipping listing entry of unknown kind",
				"root", w.rootID, "path", item.Ref.Path, "kind", item.Kind)
		}
	}
	wg.Wait()

	var out []record.Record
	var total int64
	var failure error
	for _, res := range results {
		out = append(out, res.records...)
		total += res.size
		if res.err != nil && failure == nil {
			failure = res.err
		}
	}
	if failure == nil {
		failure = ctx.Err()
	}
	return out, total, failure
}

// walkDirectoryItem recurses into one directory child and builds its
// record. The directory record precedes its descendants in the output and
// carries the completed subtree size.
func (w *walker) walkDirectoryItem(ctx context.Context, item Node, depth int) subtreeResult {
	children, size, err := w.walkDir(ctx, item.Ref, depth+1)
	res := subtreeResult{size: size, err: err}
	if w.emitAt(depth) {
		res.records = make([]record.Record, 0, len(children)+1)
		res.records = append(res.records, w.directoryRecord(item, size))
		res.records = append(res.records, children...)
	}
	return res
}

// emitAt reports whether records at this depth are part of the output.
// Depth zero is the immediate children of the root. Beyond the configured
// depth the walk still descends for size aggregation, it just stops
// emitting.
func (w *walker) emitAt(depth int) bool {
	return w.opts.Depth <= 0 || depth < w.opts.Depth
}

// fileRecord completes a file node and builds its record. Property and tag
// fetch failures degrade the affected fields to zero values and emit a
// diagnostic; the record itself always materializes.
func (w *walker) fileRecord(ctx context.Context, item Node) (record.Record, int64) {
	props := item.Props
	if props == nil {
		var fetched *NodeProps
		err := withRetry(ctx, w.log, w.opts.RetryAttempts, "node_properties", func() error {
			var perr error
			fetched, perr = w.src.NodeProperties(ctx, item.Ref)
			return perr
		})
		if err != nil || fetched == nil {
			if err != nil {
				w.warnAt(item.Ref.Path, "node_properties", err)
			}
			fetched = &NodeProps{}
		}
		props = fetched
	}

	tags := item.Tags
	if !item.HasTags {
		var fetched map[string]string
		err := withRetry(ctx, w.log, w.opts.RetryAttempts, "node_tags", func() error {
			var terr error
			fetched, terr = w.src.NodeTags(ctx, item.Ref)
			return terr
		})
		if err != nil {
			w.warnAt(item.Ref.Path, "node_tags", err)
			fetched = nil
		}
		tags = fetched
	}

	rec := record.Record{
		Path:         item.Ref.Path,
		Kind:         record.KindFile,
		SizeBytes:    props.SizeBytes,
		LastModified: props.LastModified,
		LastAccessed: props.LastAccessed,
		Owner:        w.resolveOwner(props.Owner, tags),
		Source:       w.source,
		Tags:         MergeTags(w.account.AccountTags, w.account.RootTags, tags),
		Extra:        props.Extra,
	}
	return rec, props.SizeBytes
}

// directoryRecord builds the record for a directory child once its subtree
// size is known. Directories are never property-completed over the wire;
// whatever the listing carried is all they get.
func (w *walker) directoryRecord(item Node, size int64) record.Record {
	var props NodeProps
	if item.Props != nil {
		props = *item.Props
	}
	var tags map[string]string
	if item.HasTags {
		tags = item.Tags
	}
	return record.Record{
		Path:         item.Ref.Path,
		Kind:         record.KindDirectory,
		SizeBytes:    size,
		LastModified: props.LastModified,
		LastAccessed: props.LastAccessed,
		Owner:        w.resolveOwner(props.Owner, tags),
		Source:       w.source,
		Tags:         MergeTags(w.account.AccountTags, w.account.RootTags, tags),
		Extra:        props.Extra,
	}
}

func (w *walker) resolveOwner(aclOwner string, objectTags map[string]string) string {
	return ResolveOwner(OwnerCandidates{
		ACLOwner:    aclOwner,
		ObjectTags:  objectTags,
		RootTags:    w.account.RootTags,
		AccountTags: w.account.AccountTags,
	})
}

func (w *walker) warnAt(path, op string, err error) {
	w.log.Warn("scan operation degraded",
		"root", w.rootID, "path", path, "op", op, "error", err)
	w.diags.emit(Diagnostic{
		Severity: SeverityWarn,
		Source:   w.source,
		Root:     w.rootID,
		Path:     path,
		Op:       op,
		Err:      err,
	})
}
