package metascan

import (
	"log/slog"

	"github.com/driftlake/metascan/scan"
)

// Option is a functional option for configuring an Aggregator.
type Option func(*Aggregator)

// WithLogger sets the structured logger for scan progress and degradations.
// If not specified, logging is discarded.
func WithLogger(log *slog.Logger) Option {
	return func(a *Aggregator) {
		if log != nil {
			a.log = log
		}
	}
}

// WithRootConcurrency bounds how many roots of one backend scan in
// parallel. Default is 4.
func WithRootConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.opts.RootConcurrency = n
		}
	}
}

// WithDirConcurrency bounds how many directory subtrees walk in parallel
// within one root. Default is 8.
func WithDirConcurrency(n int) Option {
	return func(a *Aggregator) {
		if n > 0 {
			a.opts.DirConcurrency = n
		}
	}
}

// WithDepth limits how many levels below each root are emitted.
// Depth 1 emits only immediate children; directory sizes still cover the
// whole subtree. Default is unbounded.
func WithDepth(depth int) Option {
	return func(a *Aggregator) {
		a.opts.Depth = depth
	}
}

// WithAccountRecords controls whether connectors that can describe their
// storage accounts emit synthetic account-root records. Default is false.
func WithAccountRecords(include bool) Option {
	return func(a *Aggregator) {
		a.opts.IncludeAccountRecords = include
	}
}

// WithRetryAttempts sets the retry budget for throttled and transient
// backend call failures. Default is 2 retries. Set to 0 to disable retries.
func WithRetryAttempts(attempts uint64) Option {
	return func(a *Aggregator) {
		a.opts = a.opts.WithRetryAttempts(attempts)
	}
}

// WithRoots pins a backend to an explicit set of root identifiers,
// skipping discovery for that backend. The source label must match the
// connector's Source().
func WithRoots(source string, identifiers ...string) Option {
	return func(a *Aggregator) {
		a.selectors[source] = append(a.selectors[source], identifiers...)
	}
}

// WithDiagnosticHandler registers a callback observing each diagnostic as
// it is emitted, in addition to the collected slice in the report.
func WithDiagnosticHandler(fn func(scan.Diagnostic)) Option {
	return func(a *Aggregator) {
		a.opts.OnDiagnostic = fn
	}
}
