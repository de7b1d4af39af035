package cli

import (
	"errors"
	"fmt"
	"path/filepath"

	"github.com/charmbracelet/huh"
	"github.com/spf13/cobra"

	"github.com/mesdx/xref/internal/config"
	"github.com/mesdx/xref/internal/db"
	"github.com/mesdx/xref/internal/ignore"
	"github.com/mesdx/xref/internal/repo"
	"github.com/mesdx/xref/internal/store"
)

type initOptions struct {
	root string
	yes  bool
}

func newInitCmd() *cobra.Command {
	opts := &initOptions{}
	cmd := &cobra.Command{
		Use:   "init",
		Short: "Initialize xref in the current repository",
		Long:  "Initialize xref by selecting source directories and setting up the scan database.",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			return runInit(cmd, opts)
		},
	}
	cmd.Flags().StringVar(&opts.root, "root", ".", "Directory inside the repository")
	cmd.Flags().BoolVarP(&opts.yes, "yes", "y", false, "Accept defaults without prompting")
	return cmd
}

func runInit(cmd *cobra.Command, opts *initOptions) error {
	repoRoot, err := repo.FindRoot(opts.root)
	if err != nil {
		return fmt.Errorf("failed to find repo root: %w", err)
	}

	cmd.Printf("%s Initializing xref in: %s\n", infoStyle.Render("→"), repoRoot)

	selectedDirs := []string{"."}
	if !opts.yes {
		if selectedDirs, err = selectSourceRoots(repoRoot); err != nil {
			return err
		}
		if len(selectedDirs) == 0 {
			cmd.Println("No directories selected. Exiting.")
			return nil
		}
	}

	if err := repo.ValidateSelectedDirs(repoRoot, selectedDirs); err != nil {
		return fmt.Errorf("validation failed: %w", err)
	}

	// Re-running init keeps every other setting.
	xrefDir := repo.Dir(repoRoot)
	cfg, err := config.Load(xrefDir)
	if errors.Is(err, config.ErrNotInitialized) {
		cfg = config.Default(repoRoot)
	} else if err != nil {
		return err
	}
	cfg.RepoRoot = repoRoot
	cfg.SourceRoots = selectedDirs
	if err := config.Save(cfg, xrefDir); err != nil {
		return fmt.Errorf("failed to save config: %w", err)
	}
	cmd.Printf("%s Configuration saved to: %s\n", successStyle.Render("✓"), config.Path(xrefDir))

	dbPath := db.DatabasePath(xrefDir)
	d, err := db.Open(dbPath)
	if err != nil {
		return fmt.Errorf("failed to initialize database: %w", err)
	}
	defer func() { _ = d.Close() }()

	st, err := store.Open(cmd.Context(), d, repoRoot)
	if err != nil {
		return err
	}
	if err := st.SetSourceRoots(cmd.Context(), selectedDirs); err != nil {
		return fmt.Errorf("failed to record source roots: %w", err)
	}
	cmd.Printf("%s Database initialized at: %s\n", successStyle.Render("✓"), dbPath)

	confirm := ignore.Prompt
	if opts.yes {
		confirm = ignore.Always
	}
	if err := ignore.HandleIgnoreFiles(repoRoot, cmd.OutOrStdout(), confirm); err != nil {
		// Non-fatal, just report
		cmd.Printf("%s Warning: failed to update ignore files: %v\n", warnStyle.Render("!"), err)
	}

	cmd.Printf("\n%s Initialization complete!\n", successStyle.Render("✓"))
	cmd.Println("Next steps:")
	cmd.Println("  - Run 'xref scan' to catalog declarations and references")
	cmd.Println("  - Run 'xref show <Name>' to inspect a symbol")
	return nil
}

func selectSourceRoots(repoRoot string) ([]string, error) {
	allDirs, err := repo.DiscoverAllDirs(repoRoot)
	if err != nil {
		return nil, fmt.Errorf("failed to discover directories: %w", err)
	}

	options := []huh.Option[string]{huh.NewOption(". (repository root)", ".")}
	for _, dir := range allDirs {
		slashed := filepath.ToSlash(dir)
		options = append(options, huh.NewOption(slashed, slashed))
	}

	var selected []string
	form := huh.NewForm(
		huh.NewGroup(
			huh.NewMultiSelect[string]().
				Title("Select source directories to scan").
				Description("Use arrow keys to navigate, space to select, enter to confirm. Selected directories cannot be parent/child of each other.").
				Options(options...).
				Value(&selected),
		),
	)
	if err := form.Run(); err != nil {
		return nil, fmt.Errorf("interactive prompt failed: %w", err)
	}
	return selected, nil
}
