package metascan

import (
	"context"
	"log/slog"
	"sync"
	"time"

	"github.com/samber/lo"

	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"
)

// Aggregator fans one scan out across every registered backend connector
// and merges the results into a single report. Backends run in parallel and
// share no mutable state; records concatenate in connector registration
// order.
type Aggregator struct {
	connectors []scan.Connector
	selectors  map[string][]string
	opts       scan.Options
	log        *slog.Logger
}

// New returns an aggregator with the given options applied.
func New(options ...Option) *Aggregator {
	a := &Aggregator{
		selectors: map[string][]string{},
		log:       slog.New(slog.DiscardHandler),
	}
	for _, opt := range options {
		opt(a)
	}
	return a
}

// Register adds backend connectors to the scan. Registration order fixes
// the order of each backend's records in the report.
func (a *Aggregator) Register(conns ...scan.Connector) {
	a.connectors = append(a.connectors, conns...)
}

// Report is the outcome of one aggregated scan.
type Report struct {
	// Records is the merged record sequence, grouped by backend in
	// registration order.
	Records []record.Record

	// Diagnostics collects every contained failure from every backend.
	// Diagnostics never appear in the record stream.
	Diagnostics []scan.Diagnostic

	// Stats summarizes the run.
	Stats Stats
}

// Stats summarizes one aggregated scan.
type Stats struct {
	StartedAt       time.Time
	Duration        time.Duration
	Backends        int
	Records         int
	RecordsBySource map[string]int
}

// Run scans every registered backend and returns the merged report. A
// backend that fails outright contributes diagnostics instead of records;
// Run returns a non-nil error only when the context is canceled, and even
// then the partial report is returned alongside it.
func (a *Aggregator) Run(ctx context.Context) (*Report, error) {
	started := time.Now()
	a.log.Info("scan starting", "backends", len(a.connectors))

	type backendResult struct {
		records []record.Record
		diags   []scan.Diagnostic
		err     error
	}

	results := make([]backendResult, len(a.connectors))
	var wg sync.WaitGroup
	for i := range a.connectors {
		wg.Add(1)
		go func(i int, conn scan.Connector) {
			defer wg.Done()
			opts := a.opts
			opts.Logger = a.log
			opts.Roots = a.selectors[conn.Source()]
			records, diags, err := scan.ScanBackend(ctx, conn, opts)
			results[i] = backendResult{records: records, diags: diags, err: err}
		}(i, a.connectors[i])
	}
	wg.Wait()

	report := &Report{}
	var runErr error
	for _, res := range results {
		report.Records = append(report.Records, res.records...)
		report.Diagnostics = append(report.Diagnostics, res.diags...)
		if res.err != nil && runErr == nil {
			runErr = res.err
		}
	}

	report.Stats = Stats{
		StartedAt:       started.UTC(),
		Duration:        time.Since(started),
		Backends:        len(a.connectors),
		Records:         len(report.Records),
		RecordsBySource: lo.CountValuesBy(report.Records, func(r record.Record) string { return r.Source }),
	}

	a.log.Info("scan finished",
		"records", report.Stats.Records,
		"diagnostics", len(report.Diagnostics),
		"duration", report.Stats.Duration)
	return report, runErr
}
