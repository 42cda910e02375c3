package scan

import (
	"context"
	"log/slog"
	"sync"

	"github.com/driftlake/metascan/record"
)

// ScanBackend runs the full discovery and traversal pipeline for one
// backend: resolve roots, optionally emit account records, then walk every
// root. Records come back in root enumeration order, each root's records in
// listing order.
//
// Failures never escape as errors except cancellation: a dead backend or a
// lost root becomes diagnostics alongside whatever records were still
// collectable. On cancellation the partial result is returned with the
// context's error.
func ScanBackend(ctx context.Context, conn Connector, opts Options) ([]record.Record, []Diagnostic, error) {
	opts = opts.withDefaults()
	source := conn.Source()
	log := opts.Logger.With("source", source)
	diags := newCollector(opts.OnDiagnostic)

	roots, err := resolveRoots(ctx, conn, opts, log, diags)
	if err != nil {
		return nil, diags.all(), err
	}

	var out []record.Record
	if opts.IncludeAccountRecords {
		records, err := accountRecords(ctx, conn, opts, log, diags)
		if err != nil {
			return out, diags.all(), err
		}
		out = append(out, records...)
	}

	results := make([]rootResult, len(roots))
	sem := make(chan struct{}, opts.RootConcurrency)
	var wg sync.WaitGroup

	for i := range roots {
		select {
		case sem <- struct{}{}:
		case <-ctx.Done():
		}
		if ctx.Err() != nil {
			break
		}
		wg.Add(1)
		go func(i int, root record.Root) {
			defer wg.Done()
			defer func() { <-sem }()
			results[i] = scanOneRoot(ctx, conn, root, opts, log, diags)
		}(i, roots[i])
	}
	wg.Wait()

	var canceled error
	for _, res := range results {
		out = append(out, res.records...)
		if res.err != nil && canceled == nil {
			canceled = res.err
		}
	}
	if canceled == nil {
		canceled = ctx.Err()
	}
	return out, diags.all(), canceled
}

type rootResult struct {
	records []record.Record
	err     error
}

// resolveRoots returns the explicit selection when one is configured and
// discovers otherwise. Discovery failure is not fatal: it yields zero roots
// and an error-severity diagnostic.
func resolveRoots(ctx context.Context, conn Connector, opts Options, log *slog.Logger, diags *collector) ([]record.Root, error) {
	if len(opts.Roots) > 0 {
		roots := make([]record.Root, len(opts.Roots))
		for i, id := range opts.Roots {
			roots[i] = record.Root{Identifier: id}
		}
		log.Debug("scanning explicit roots", "count", len(roots))
		return roots, nil
	}

	var roots []record.Root
	err := withRetry(ctx, log, opts.RetryAttempts, "discover_roots", func() error {
		var derr error
		roots, derr = conn.DiscoverRoots(ctx)
		return derr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Error("root discovery failed", "error", err)
		diags.emit(Diagnostic{
			Severity: SeverityError,
			Source:   conn.Source(),
			Op:       "discover_roots",
			Err:      err,
		})
		return nil, nil
	}
	log.Info("discovered roots", "count", len(roots))
	return roots, nil
}

// accountRecords collects synthetic account-root records from connectors
// that support them. Failure degrades to a diagnostic.
func accountRecords(ctx context.Context, conn Connector, opts Options, log *slog.Logger, diags *collector) ([]record.Record, error) {
	reporter, ok := conn.(AccountReporter)
	if !ok {
		return nil, nil
	}

	var records []record.Record
	err := withRetry(ctx, log, opts.RetryAttempts, "account_records", func() error {
		var aerr error
		records, aerr = reporter.AccountRecords(ctx)
		return aerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return nil, ctx.Err()
		}
		log.Warn("account record collection failed", "error", err)
		diags.emit(Diagnostic{
			Severity: SeverityWarn,
			Source:   conn.Source(),
			Op:       "account_records",
			Err:      err,
		})
		return nil, nil
	}
	return records, nil
}

// scanOneRoot opens and walks a single root. Open or top-level listing
// failures cost only this root; partial records survive either way.
func scanOneRoot(ctx context.Context, conn Connector, root record.Root, opts Options, log *slog.Logger, diags *collector) rootResult {
	rootLog := log.With("root", root.Identifier)

	var src RootSource
	err := withRetry(ctx, rootLog, opts.RetryAttempts, "open_root", func() error {
		var oerr error
		src, oerr = conn.OpenRoot(ctx, root)
		return oerr
	})
	if err != nil {
		if ctx.Err() != nil {
			return rootResult{err: ctx.Err()}
		}
		rootLog.Error("failed to open root", "error", err)
		diags.emit(Diagnostic{
			Severity: SeverityError,
			Source:   conn.Source(),
			Root:     root.Identifier,
			Op:       "open_root",
			Err:      err,
		})
		return rootResult{}
	}

	records, err := walkRoot(ctx, conn.Source(), src, opts, rootLog, diags)
	if err != nil {
		if ctx.Err() != nil {
			return rootResult{records: records, err: ctx.Err()}
		}
		rootLog.Error("root listing failed", "error", err)
		diags.emit(Diagnostic{
			Severity: SeverityError,
			Source:   conn.Source(),
			Root:     root.Identifier,
			Op:       "list_children",
			Err:      err,
		})
		return rootResult{records: records}
	}

	rootLog.Info("root scan complete", "records", len(records))
	return rootResult{records: records}
}
