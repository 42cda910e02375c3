package scan

import "log/slog"

// Options tune one backend scan. The zero value is usable: defaults are
// applied by the orchestrator.
type Options struct {
	// RootConcurrency bounds how many roots of one backend scan in
	// parallel. Default 4.
	RootConcurrency int

	// DirConcurrency bounds how many directory subtrees walk in parallel
	// within one root. Page fetches for a single node always run
	// sequentially. Default 8.
	DirConcurrency int

	// Depth limits how many levels below the root are emitted. Zero or
	// negative means unbounded. Depth 1 emits only the immediate children
	// of the root; directory sizes still cover their whole subtree.
	Depth int

	// IncludeAccountRecords asks connectors that can describe their
	// storage accounts to emit synthetic account-root records.
	IncludeAccountRecords bool

	// RetryAttempts is the number of retries after a throttled or
	// transient backend call failure. Default 2.
	RetryAttempts uint64

	// Roots selects explicit root identifiers to scan, skipping
	// discovery. Empty means discover.
	Roots []string

	// Logger receives structured scan progress. Nil discards.
	Logger *slog.Logger

	// OnDiagnostic, when set, observes each diagnostic as it is emitted,
	// in addition to the collected slice returned by the scan.
	OnDiagnostic func(Diagnostic)

	retrySet bool
}

// WithRetryAttempts returns a copy of the options with an explicit retry
// budget, distinguishing zero retries from the unset default.
func (o Options) WithRetryAttempts(attempts uint64) Options {
	o.RetryAttempts = attempts
	o.retrySet = true
	return o
}

func (o Options) withDefaults() Options {
	if o.RootConcurrency <= 0 {
		o.RootConcurrency = 4
	}
	if o.DirConcurrency <= 0 {
		o.DirConcurrency = 8
	}
	if o.RetryAttempts == 0 && !o.retrySet {
		o.RetryAttempts = 2
	}
	if o.Logger == nil {
		o.Logger = slog.New(slog.DiscardHandler)
	}
	return o
}
