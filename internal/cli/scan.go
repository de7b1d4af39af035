package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"log/slog"
	"strconv"
	"time"

	"github.com/charmbracelet/lipgloss"
	"github.com/charmbracelet/lipgloss/table"
	"github.com/spf13/cobra"

	"github.com/mesdx/xref/internal/catalog"
	"github.com/mesdx/xref/internal/config"
	"github.com/mesdx/xref/internal/db"
	"github.com/mesdx/xref/internal/projection"
	"github.com/mesdx/xref/internal/repo"
	"github.com/mesdx/xref/internal/source/tsmodel"
	"github.com/mesdx/xref/internal/store"
	"github.com/mesdx/xref/internal/symbols"
	"github.com/mesdx/xref/internal/xref"
)

// maxPrintedDiagnostics caps the diagnostics echoed after a scan; the
// projection and the store keep all of them.
const maxPrintedDiagnostics = 20

type scanOptions struct {
	root              string
	formats           []string
	out               string
	noStore           bool
	partitionMembers  bool
	workers           int
	metrics           string
	allowSyntaxErrors bool
}

func newScanCmd() *cobra.Command {
	opts := &scanOptions{}
	cmd := &cobra.Command{
		Use:   "scan",
		Short: "Catalog declarations and record their references",
		Long: "Scan parses the configured source roots, builds the declaration catalog, " +
			"records every reference, writes the projection files and stores the result " +
			"for 'xref show'.",
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runScan(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.root, "root", ".", "Directory inside the repository")
	cmd.Flags().StringSliceVar(&opts.formats, "format", nil, "Projection formats (json, yaml)")
	cmd.Flags().StringVar(&opts.out, "out", "", "Directory for projection files")
	cmd.Flags().BoolVar(&opts.noStore, "no-store", false, "Do not record the scan in the database")
	cmd.Flags().BoolVar(&opts.partitionMembers, "partition-members", false, "Keep member references apart per owning type")
	cmd.Flags().IntVar(&opts.workers, "workers", 0, "Parallel file workers (0 = GOMAXPROCS)")
	cmd.Flags().StringVar(&opts.metrics, "metrics", "", "Write scan metrics in Prometheus text format to this file")
	cmd.Flags().BoolVar(&opts.allowSyntaxErrors, "allow-syntax-errors", false, "Catalog files whose syntax trees contain errors")
	return cmd
}

// loadConfig finds the repository containing start and returns its saved
// configuration, or the defaults when xref was never initialized there.
func loadConfig(start string) (*config.Config, error) {
	repoRoot, err := repo.FindRoot(start)
	if err != nil {
		return nil, fmt.Errorf("failed to find repo root: %w", err)
	}
	cfg, err := config.Load(repo.Dir(repoRoot))
	if errors.Is(err, config.ErrNotInitialized) {
		slog.Debug("no saved configuration, using defaults", "path", repoRoot)
		return config.Default(repoRoot), nil
	}
	if err != nil {
		return nil, err
	}
	// The saved root may predate a move of the checkout.
	cfg.RepoRoot = repoRoot
	return cfg, nil
}

func (o *scanOptions) apply(cmd *cobra.Command, cfg *config.Config) error {
	flags := cmd.Flags()
	if flags.Changed("format") {
		cfg.Output.Formats = o.formats
	}
	if flags.Changed("out") {
		cfg.Output.Dir = o.out
	}
	if o.noStore {
		cfg.Store = false
	}
	if flags.Changed("partition-members") {
		cfg.PartitionMembersByOwner = o.partitionMembers
	}
	if flags.Changed("workers") {
		cfg.Workers = o.workers
	}
	if flags.Changed("allow-syntax-errors") {
		cfg.AllowSyntaxErrors = o.allowSyntaxErrors
	}
	return cfg.Validate()
}

func runScan(cmd *cobra.Command, opts *scanOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	cfg, err := loadConfig(opts.root)
	if err != nil {
		return err
	}
	if err := opts.apply(cmd, cfg); err != nil {
		return err
	}
	quiet, _ := cmd.Flags().GetBool("quiet")

	res, err := scanRepo(ctx, cfg, cmd.ErrOrStderr(), quiet)
	if err != nil {
		return err
	}

	formats, _ := cfg.Formats()
	written, err := projection.WriteFiles(cfg.OutputDir(), formats, res.projection)
	if err != nil {
		return fmt.Errorf("failed to write projection: %w", err)
	}

	if opts.metrics != "" {
		if err := res.report.Instrumentation.WriteTextfile(opts.metrics); err != nil {
			return fmt.Errorf("failed to write metrics: %w", err)
		}
		written = append(written, opts.metrics)
	}

	var saved *store.Scan
	if cfg.Store {
		if saved, err = saveScan(ctx, cfg, res); err != nil {
			return err
		}
	}

	out := cmd.OutOrStdout()
	printScanSummary(out, res)
	for _, path := range written {
		_, _ = fmt.Fprintf(out, "%s Wrote %s\n", successStyle.Render("✓"), path)
	}
	if saved != nil {
		_, _ = fmt.Fprintf(out, "%s Stored scan %s\n", successStyle.Render("✓"), saved.UID)
	}
	printDiagnostics(out, res.projection.Diagnostics)
	return nil
}

// scanResult is one finished scan before it is written anywhere.
type scanResult struct {
	projection *projection.Projection
	report     *xref.Report
	files      []store.FileInfo
	started    time.Time
	finished   time.Time
}

func scanRepo(ctx context.Context, cfg *config.Config, progressOut io.Writer, quiet bool) (*scanResult, error) {
	exclude, err := cfg.ExcludeGlobs()
	if err != nil {
		return nil, err
	}
	files, err := repo.DiscoverFiles(cfg.RepoRoot, cfg.SourceRoots, exclude)
	if err != nil {
		return nil, fmt.Errorf("failed to discover files: %w", err)
	}
	if len(files) == 0 {
		slog.Warn("no source files found", "path", cfg.RepoRoot)
	}
	slog.Debug("discovered files", "files", len(files))

	started := time.Now()
	progress := newParseProgress(progressOut, len(files), quiet)
	model, err := tsmodel.Open(ctx, cfg.RepoRoot, files, tsmodel.Options{
		Workers:           cfg.Workers,
		AllowSyntaxErrors: cfg.AllowSyntaxErrors,
		Progress:          progress.callback(),
	})
	progress.finish()
	if err != nil {
		return nil, fmt.Errorf("failed to open source model: %w", err)
	}
	defer model.Close()

	cat, report, err := xref.Scan(ctx, model, xref.Options{
		Denylist:                denylist(cfg),
		Workers:                 cfg.Workers,
		PartitionMembersByOwner: cfg.PartitionMembersByOwner,
	})
	if err != nil {
		return nil, fmt.Errorf("scan failed: %w", err)
	}

	res := &scanResult{
		projection: projection.Build(cat, projection.Options{Report: report}),
		report:     report,
		files:      fileInfos(model),
		started:    started,
		finished:   time.Now(),
	}
	slog.Debug("scan finished", "files", report.Files, "duration", res.finished.Sub(started))
	return res, nil
}

func denylist(cfg *config.Config) catalog.Denylist {
	if cfg.ReplaceDenylist {
		return catalog.NewDenylist(cfg.Denylist...)
	}
	return catalog.DefaultDenylist().With(cfg.Denylist...)
}

func fileInfos(model *tsmodel.Model) []store.FileInfo {
	failed := map[string]string{}
	for _, pe := range model.Failures() {
		failed[pe.File] = pe.Err.Error()
	}
	out := make([]store.FileInfo, 0, len(model.Files()))
	for _, f := range model.Files() {
		fp, size, _ := model.Fingerprint(f)
		out = append(out, store.FileInfo{Path: f, Fingerprint: fp, Size: size, ParseError: failed[f]})
	}
	return out
}

func saveScan(ctx context.Context, cfg *config.Config, res *scanResult) (*store.Scan, error) {
	d, err := db.Open(db.DatabasePath(repo.Dir(cfg.RepoRoot)))
	if err != nil {
		return nil, fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = d.Close() }()

	st, err := store.Open(ctx, d, cfg.RepoRoot)
	if err != nil {
		return nil, err
	}
	st.Keep = cfg.Keep
	saved, err := st.SaveScan(ctx, store.Run{
		StartedAt:  res.started,
		FinishedAt: res.finished,
		Files:      res.files,
		Projection: res.projection,
	})
	if err != nil {
		return nil, fmt.Errorf("failed to store scan: %w", err)
	}
	return saved, nil
}

var scanKinds = []symbols.Kind{
	symbols.KindClass, symbols.KindInterface, symbols.KindEnum,
	symbols.KindTypeAlias, symbols.KindFunction, symbols.KindExternal,
}

func printScanSummary(w io.Writer, res *scanResult) {
	sum := res.projection.Summary
	_, _ = fmt.Fprintf(w, "%s Scanned %d files in %s\n",
		successStyle.Render("✓"), res.report.Files, res.finished.Sub(res.started).Round(time.Millisecond))

	t := table.New().
		Border(lipgloss.NormalBorder()).
		BorderStyle(dimStyle).
		Headers("KIND", "SYMBOLS")
	for _, k := range scanKinds {
		t.Row(k.String(), strconv.Itoa(sum.Symbols[k.String()]))
	}
	t.Row("member", strconv.Itoa(sum.Members))
	t.Row("references", strconv.Itoa(sum.References))
	_, _ = fmt.Fprintln(w, t.Render())

	if len(sum.Top) > 0 {
		_, _ = fmt.Fprintln(w, headerStyle.Render("Most referenced"))
		for _, r := range sum.Top {
			_, _ = fmt.Fprintf(w, "  %-32s %-10s %d\n", r.Name, r.Kind, r.ReferenceCount)
		}
	}
}

func printDiagnostics(w io.Writer, diags []xref.Diagnostic) {
	if len(diags) == 0 {
		return
	}
	_, _ = fmt.Fprintf(w, "\n%s %d diagnostics\n", warnStyle.Render("!"), len(diags))
	for i, d := range diags {
		if i == maxPrintedDiagnostics {
			_, _ = fmt.Fprintf(w, "  %s\n", dimStyle.Render(fmt.Sprintf("... and %d more", len(diags)-i)))
			break
		}
		_, _ = fmt.Fprintf(w, "  %s\n", d)
	}
}
