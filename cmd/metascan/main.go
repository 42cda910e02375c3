// Command metascan scans the configured storage backends and writes the
// aggregated metadata records to stdout or a file.
package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"sort"
	"strings"
	"syscall"
	"time"

	"github.com/maruel/natural"
	"github.com/samber/lo"
	"github.com/spf13/afero"
	"github.com/spf13/cobra"
	"gopkg.in/natefinch/lumberjack.v2"

	"github.com/driftlake/metascan"
	"github.com/driftlake/metascan/internal/config"
	"github.com/driftlake/metascan/record"
	"github.com/driftlake/metascan/scan"

	// Connector registrations.
	_ "github.com/driftlake/metascan/connector/azure"
	_ "github.com/driftlake/metascan/connector/databricks"
	_ "github.com/driftlake/metascan/connector/s3"
	_ "github.com/driftlake/metascan/connector/sharepoint"
)

func main() {
	root := newRootCmd(afero.NewOsFs())
	if err := root.Execute(); err != nil {
		fmt.Fprintln(os.Stderr, err)
		os.Exit(1)
	}
}

type scanFlags struct {
	configPath     string
	format         string
	mode           string
	output         string
	logFile        string
	verbose        bool
	sortPaths      bool
	depth          int
	rootConc       int
	dirConc        int
	retries        uint64
	accountRecords bool
	backends       []string
	roots          []string
}

func newRootCmd(fs afero.Fs) *cobra.Command {
	root := &cobra.Command{
		Use:           "metascan",
		Short:         "Aggregate file and object metadata across storage backends",
		SilenceUsage:  true,
		SilenceErrors: true,
	}
	root.AddCommand(newScanCmd(fs), newBackendsCmd())
	return root
}

func newScanCmd(fs afero.Fs) *cobra.Command {
	flags := &scanFlags{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Scan every configured backend and emit the record sequence",
		Long: `Scan reads backend credentials and selectors from the environment
(optionally layered over a YAML file), walks every backend it finds
configured, and writes the normalized metadata records in the chosen
format. Diagnostics go to stderr, never into the record stream.`,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd.Context(), fs, flags, cmd.ErrOrStderr())
		},
	}

	cmd.Flags().StringVarP(&flags.configPath, "config", "c", "", "YAML settings file layered under the environment")
	cmd.Flags().StringVarP(&flags.format, "format", "f", string(record.FormatNDJSON), "output format: ndjson, json or yaml")
	cmd.Flags().StringVarP(&flags.mode, "mode", "m", string(record.ModeStructured), "serialization mode: structured or flat")
	cmd.Flags().StringVarP(&flags.output, "output", "o", "-", "output path, - for stdout")
	cmd.Flags().StringVar(&flags.logFile, "log-file", "", "also write logs to this rotating file")
	cmd.Flags().BoolVarP(&flags.verbose, "verbose", "v", false, "log page-level detail")
	cmd.Flags().BoolVar(&flags.sortPaths, "sort", false, "order records by natural path order instead of traversal order")
	cmd.Flags().IntVar(&flags.depth, "depth", 0, "emit at most this many levels per root, 0 for unbounded")
	cmd.Flags().IntVar(&flags.rootConc, "root-concurrency", 0, "parallel roots per backend")
	cmd.Flags().IntVar(&flags.dirConc, "dir-concurrency", 0, "parallel subtrees per root")
	cmd.Flags().Uint64Var(&flags.retries, "retries", 2, "retry budget for throttled and transient failures")
	cmd.Flags().BoolVar(&flags.accountRecords, "account-records", false, "emit synthetic account records for discovered accounts")
	cmd.Flags().StringSliceVar(&flags.backends, "backend", nil, "restrict the scan to these backend kinds")
	cmd.Flags().StringSliceVar(&flags.roots, "root", nil, "explicit roots as kind=identifier, skipping discovery")
	return cmd
}

func newBackendsCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "backends",
		Short: "List the available backend kinds",
		Run: func(cmd *cobra.Command, args []string) {
			for _, kind := range metascan.ConnectorKinds() {
				fmt.Fprintln(cmd.OutOrStdout(), kind)
			}
		},
	}
}

func runScan(ctx context.Context, fs afero.Fs, flags *scanFlags, stderr io.Writer) error {
	ctx, stop := signal.NotifyContext(ctx, os.Interrupt, syscall.SIGTERM)
	defer stop()

	format, mode, err := outputContract(flags.format, flags.mode)
	if err != nil {
		return err
	}

	log, closeLog, err := buildLogger(stderr, flags.logFile, flags.verbose)
	if err != nil {
		return err
	}
	defer closeLog()

	cfg, err := config.Load(flags.configPath)
	if err != nil {
		return err
	}

	kinds := cfg.EnabledKinds()
	if len(flags.backends) > 0 {
		kinds = lo.Intersect(kinds, flags.backends)
	}
	if len(kinds) == 0 {
		return fmt.Errorf("no backend is configured; set credentials in the environment or a config file")
	}

	opts := []metascan.Option{
		metascan.WithLogger(log),
		metascan.WithRetryAttempts(flags.retries),
		metascan.WithAccountRecords(flags.accountRecords),
	}
	if flags.depth > 0 {
		opts = append(opts, metascan.WithDepth(flags.depth))
	}
	if flags.rootConc > 0 {
		opts = append(opts, metascan.WithRootConcurrency(flags.rootConc))
	}
	if flags.dirConc > 0 {
		opts = append(opts, metascan.WithDirConcurrency(flags.dirConc))
	}
	selectors, err := parseRootSelectors(flags.roots)
	if err != nil {
		return err
	}
	for kind, identifiers := range selectors {
		opts = append(opts, metascan.WithRoots(kind, identifiers...))
	}

	agg := metascan.New(opts...)
	for _, kind := range kinds {
		conn, err := metascan.NewConnector(ctx, kind, cfg.Settings(kind))
		if err != nil {
			log.Error("skipping backend", "kind", kind, "error", err)
			fmt.Fprintf(stderr, "skipping %s: %v\n", kind, err)
			continue
		}
		agg.Register(conn)
	}

	report, runErr := agg.Run(ctx)
	if flags.sortPaths {
		sort.SliceStable(report.Records, func(i, j int) bool {
			return natural.Less(report.Records[i].Path, report.Records[j].Path)
		})
	}

	if err := writeReport(fs, flags.output, report.Records, format, mode); err != nil {
		return err
	}
	printSummary(stderr, report)
	return runErr
}

func outputContract(format, mode string) (record.Format, record.Mode, error) {
	f := record.Format(format)
	switch f {
	case record.FormatNDJSON, record.FormatJSON, record.FormatYAML:
	default:
		return "", "", fmt.Errorf("unknown format %q", format)
	}
	m := record.Mode(mode)
	switch m {
	case record.ModeStructured, record.ModeFlat:
	default:
		return "", "", fmt.Errorf("unknown mode %q", mode)
	}
	return f, m, nil
}

// buildLogger wires a text handler on stderr, teed into a rotating file
// when one is configured.
func buildLogger(stderr io.Writer, logFile string, verbose bool) (*slog.Logger, func(), error) {
	level := slog.LevelInfo
	if verbose {
		level = slog.LevelDebug
	}

	out := stderr
	closeLog := func() {}
	if logFile != "" {
		rotating := &lumberjack.Logger{
			Filename:   logFile,
			MaxSize:    50,
			MaxBackups: 3,
		}
		out = io.MultiWriter(stderr, rotating)
		closeLog = func() { _ = rotating.Close() }
	}
	return slog.New(slog.NewTextHandler(out, &slog.HandlerOptions{Level: level})), closeLog, nil
}

// parseRootSelectors splits "kind=identifier" pairs into per-kind lists.
func parseRootSelectors(pairs []string) (map[string][]string, error) {
	out := map[string][]string{}
	for _, pair := range pairs {
		kind, id, ok := strings.Cut(pair, "=")
		if !ok || kind == "" || id == "" {
			return nil, fmt.Errorf("invalid --root %q, want kind=identifier", pair)
		}
		out[kind] = append(out[kind], id)
	}
	return out, nil
}

func writeReport(fs afero.Fs, path string, records []record.Record, format record.Format, mode record.Mode) error {
	var w io.Writer = os.Stdout
	if path != "" && path != "-" {
		f, err := fs.Create(path)
		if err != nil {
			return fmt.Errorf("create %s: %w", path, err)
		}
		defer f.Close()
		w = f
	}
	return record.NewEncoder(w, format, mode).Encode(records)
}

func printSummary(stderr io.Writer, report *metascan.Report) {
	fmt.Fprintf(stderr, "scanned %d backends, %d records in %s\n",
		report.Stats.Backends, report.Stats.Records, report.Stats.Duration.Round(time.Millisecond))
	for source, count := range report.Stats.RecordsBySource {
		fmt.Fprintf(stderr, "  %s: %d records\n", source, count)
	}
	if len(report.Diagnostics) > 0 {
		fmt.Fprintf(stderr, "%d diagnostics:\n", len(report.Diagnostics))
		for _, d := range report.Diagnostics {
			printDiagnostic(stderr, d)
		}
	}
}

func printDiagnostic(stderr io.Writer, d scan.Diagnostic) {
	where := d.Root
	if d.Path != "" {
		where = d.Path
	}
	if where == "" {
		where = d.Source
	}
	fmt.Fprintf(stderr, "  [%s] %s %s %s: %s\n", d.Severity, d.Source, d.Op, where, d.Message())
}
