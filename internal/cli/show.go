package cli

import (
	"context"
	"errors"
	"fmt"
	"io"
	"io/fs"
	"os"
	"path/filepath"
	"sort"

	"github.com/cespare/xxhash/v2"
	"github.com/hbollon/go-edlib"
	"github.com/spf13/cobra"

	"github.com/mesdx/xref/internal/db"
	"github.com/mesdx/xref/internal/repo"
	"github.com/mesdx/xref/internal/store"
	"github.com/mesdx/xref/internal/symbols"
)

const (
	suggestionThreshold = 0.8
	maxSuggestions      = 5
)

var errSymbolNotFound = errors.New("symbol not found")

type showOptions struct {
	root        string
	code        bool
	linesAround int
	kind        string
}

func newShowCmd() *cobra.Command {
	opts := &showOptions{}
	cmd := &cobra.Command{
		Use:   "show <name>",
		Short: "Show a symbol and where it is used",
		Long: "Show prints the definition and the references of a symbol from the latest stored scan. " +
			"Members are addressed as Owner.member.",
		Args: cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			return runShow(cmd, args[0], opts)
		},
	}
	cmd.Flags().StringVar(&opts.root, "root", ".", "Directory inside the repository")
	cmd.Flags().BoolVar(&opts.code, "code", false, "Print the source of the definition and of each usage")
	cmd.Flags().IntVar(&opts.linesAround, "context", 2, "Lines of source around each usage with --code")
	cmd.Flags().StringVar(&opts.kind, "kind", "", "Only match symbols of this kind (class, interface, enum, type_alias, function, external)")
	return cmd
}

func runShow(cmd *cobra.Command, name string, opts *showOptions) error {
	ctx := cmd.Context()
	if ctx == nil {
		ctx = context.Background()
	}
	var kinds []symbols.Kind
	if opts.kind != "" {
		k := symbols.ParseKind(opts.kind)
		if k == symbols.KindUnknown {
			return fmt.Errorf("unknown kind %q", opts.kind)
		}
		kinds = append(kinds, k)
	}
	if opts.linesAround < 0 {
		return fmt.Errorf("--context must not be negative, got %d", opts.linesAround)
	}

	repoRoot, err := repo.FindRoot(opts.root)
	if err != nil {
		return fmt.Errorf("failed to find repo root: %w", err)
	}
	dbPath := db.DatabasePath(repo.Dir(repoRoot))
	if _, err := os.Stat(dbPath); errors.Is(err, fs.ErrNotExist) {
		return store.ErrNoScans
	}
	d, err := db.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to open database: %w", err)
	}
	defer func() { _ = d.Close() }()

	st, err := store.Open(ctx, d, repoRoot)
	if err != nil {
		return err
	}
	scan, err := st.LatestScan(ctx)
	if err != nil {
		return err
	}
	rows, err := st.FindSymbols(ctx, scan.ID, name, kinds...)
	if err != nil {
		return err
	}

	out := cmd.OutOrStdout()
	if len(rows) == 0 {
		names, err := st.SymbolNames(ctx, scan.ID)
		if err != nil {
			return err
		}
		if s := suggestNames(name, names); len(s) > 0 {
			_, _ = fmt.Fprintln(out, "Did you mean:")
			for _, n := range s {
				_, _ = fmt.Fprintf(out, "  %s\n", n)
			}
		}
		return fmt.Errorf("%w: %s", errSymbolNotFound, name)
	}

	files, err := st.Files(ctx, scan.ID)
	if err != nil {
		return err
	}
	stale := staleChecker{repoRoot: repoRoot, files: files, seen: map[string]bool{}}

	for i, row := range rows {
		if i > 0 {
			_, _ = fmt.Fprintln(out)
		}
		refs, err := st.References(ctx, scan.ID, row.SymbolID)
		if err != nil {
			return err
		}
		var members []store.SymbolRow
		if !row.IsMember() {
			if members, err = st.Members(ctx, scan.ID, row.SymbolID); err != nil {
				return err
			}
		}
		printSymbol(out, row, members, refs)

		if row.IsLocal {
			stale.check(row.Location.File)
		}
		for _, r := range refs {
			stale.check(r.Location.File)
		}
		if opts.code {
			if row.IsLocal {
				_, _ = fmt.Fprint(out, fetchDefinitionsCode(repoRoot, []store.SymbolRow{row}))
			}
			_, _ = fmt.Fprint(out, fetchUsagesCode(repoRoot, refs, opts.linesAround))
		}
	}

	if len(stale.changed) > 0 {
		_, _ = fmt.Fprintf(out, "\n%s Changed since the scan of %s, run 'xref scan' to refresh:\n",
			warnStyle.Render("!"), scan.FinishedAt.Local().Format("2006-01-02 15:04:05"))
		for _, f := range stale.changed {
			_, _ = fmt.Fprintf(out, "  %s\n", f)
		}
	}
	return nil
}

func printSymbol(w io.Writer, row store.SymbolRow, members []store.SymbolRow, refs []symbols.Reference) {
	where := row.Location.String()
	if !row.IsLocal {
		where = "external"
		if row.Module != "" {
			where += " from " + row.Module
		}
	}
	_, _ = fmt.Fprintf(w, "%s %s %s\n", headerStyle.Render(row.Name), infoStyle.Render(row.Kind.String()), dimStyle.Render(where))

	if len(members) > 0 {
		_, _ = fmt.Fprintln(w, "Members:")
		for _, m := range members {
			_, _ = fmt.Fprintf(w, "  %-24s %-12s %d refs\n", m.Name, m.Kind, m.ReferenceCount)
		}
	}

	_, _ = fmt.Fprintf(w, "References: %d\n", len(refs))
	byContext := map[symbols.Context][]symbols.Reference{}
	for _, r := range refs {
		byContext[r.Context] = append(byContext[r.Context], r)
	}
	for _, c := range symbols.Contexts() {
		group := byContext[c]
		if len(group) == 0 {
			continue
		}
		_, _ = fmt.Fprintf(w, "  %s (%d)\n", c, len(group))
		for _, r := range group {
			if r.ContextLine != "" {
				_, _ = fmt.Fprintf(w, "    %s  %s\n", r.Location, dimStyle.Render(r.ContextLine))
			} else {
				_, _ = fmt.Fprintf(w, "    %s\n", r.Location)
			}
		}
	}
}

// suggestNames returns up to maxSuggestions names close to name, best first.
func suggestNames(name string, names []string) []string {
	type scored struct {
		name  string
		score float32
	}
	var candidates []scored
	for _, n := range names {
		score, err := edlib.StringsSimilarity(name, n, edlib.JaroWinkler)
		if err != nil || score < suggestionThreshold {
			continue
		}
		candidates = append(candidates, scored{n, score})
	}
	sort.SliceStable(candidates, func(i, j int) bool {
		if candidates[i].score != candidates[j].score {
			return candidates[i].score > candidates[j].score
		}
		return candidates[i].name < candidates[j].name
	})
	if len(candidates) > maxSuggestions {
		candidates = candidates[:maxSuggestions]
	}
	out := make([]string, 0, len(candidates))
	for _, c := range candidates {
		out = append(out, c.name)
	}
	return out
}

// staleChecker compares files on disk with the fingerprints of the scan.
type staleChecker struct {
	repoRoot string
	files    map[string]store.FileInfo
	seen     map[string]bool
	changed  []string
}

func (s *staleChecker) check(file string) {
	if file == "" || s.seen[file] {
		return
	}
	s.seen[file] = true
	info, ok := s.files[file]
	if !ok {
		return
	}
	data, err := os.ReadFile(filepath.Join(s.repoRoot, filepath.FromSlash(file)))
	if err != nil || xxhash.Sum64(data) != info.Fingerprint {
		s.changed = append(s.changed, file)
	}
}
