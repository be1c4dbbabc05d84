package commands

import (
	"context"
	"errors"
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/tallybooks/tally/internal/accounts"
	"github.com/tallybooks/tally/internal/config"
	"github.com/tallybooks/tally/internal/id"
	"github.com/tallybooks/tally/internal/ledger"
	"github.com/tallybooks/tally/internal/log"
	"github.com/tallybooks/tally/internal/model"
	"github.com/tallybooks/tally/internal/store"
	"github.com/tallybooks/tally/internal/verify"
)

type initOptions struct {
	name   string
	driver string
	chart  string
}

func newInitCommand() *cobra.Command {
	var opts initOptions

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Initialize a new tally project",
		Args:  cobra.MaximumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			dir := "."
			if len(args) > 0 {
				dir = args[0]
			}

			absDir, err := filepath.Abs(dir)
			if err != nil {
				return fmt.Errorf("resolving path: %w", err)
			}

			return runInit(cmd.Context(), cmd.OutOrStdout(), absDir, opts)
		},
	}

	cmd.Flags().StringVar(&opts.name, "name", "", "book name (required)")
	_ = cmd.MarkFlagRequired("name")
	cmd.Flags().StringVar(&opts.driver, "driver", "sqlite", "database driver: sqlite, postgres or mysql")
	cmd.Flags().StringVar(&opts.chart, "chart", "", "chart of accounts CSV to start from instead of the default chart")

	return cmd
}

func runInit(ctx context.Context, out io.Writer, dir string, opts initOptions) error {
	cfgPath := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(cfgPath); err == nil {
		return fmt.Errorf("%s already exists", cfgPath)
	} else if !errors.Is(err, os.ErrNotExist) {
		return fmt.Errorf("checking %s: %w", cfgPath, err)
	}

	if err := os.MkdirAll(filepath.Join(dir, "logs"), 0o755); err != nil {
		return fmt.Errorf("creating directory logs: %w", err)
	}

	// Write tally.yaml.
	cfg := config.Default(opts.name)
	cfg.Database.Driver = opts.driver
	if err := config.Validate(cfg); err != nil {
		return err
	}
	if err := config.Save(cfgPath, cfg); err != nil {
		return fmt.Errorf("writing config: %w", err)
	}

	// Write .gitignore.
	gitignore := ".env\nlogs/\n"
	if cfg.Database.Driver == "sqlite" {
		gitignore += cfg.Database.Name + "\n"
	}
	if err := os.WriteFile(filepath.Join(dir, ".gitignore"), []byte(gitignore), 0o644); err != nil {
		return fmt.Errorf("writing .gitignore: %w", err)
	}

	book, err := startingBook(opts.chart)
	if err != nil {
		return err
	}
	// An imported chart may lack top-level sections; verify adds them.
	report, err := verify.New(book, log.FromContext(ctx)).Run()
	if err != nil {
		return fmt.Errorf("checking chart: %w", err)
	}
	for _, w := range report.Warnings {
		fmt.Fprintln(out, w)
	}

	cfg.Resolve(dir)
	db, err := store.Connect(cfg.Database, log.FromContext(ctx))
	if err != nil {
		return err
	}
	if sqlDB, err := db.DB(); err == nil {
		defer sqlDB.Close()
	}
	if err := store.Save(ctx, db, opts.name, book); err != nil {
		return fmt.Errorf("writing book: %w", err)
	}

	fmt.Fprintf(out, "Initialized tally book %q at %s (%d accounts)\n", opts.name, dir, len(book.Accounts()))
	return nil
}

// startingBook loads the chart CSV at path, or the default chart when path
// is empty. A CSV chart must contain exactly one account without a parent,
// which becomes the root.
func startingBook(path string) (*ledger.Book, error) {
	var chart []model.Account
	if path == "" {
		chart = accounts.DefaultChart(id.New(), id.New)
	} else {
		f, err := os.Open(path)
		if err != nil {
			return nil, fmt.Errorf("opening chart: %w", err)
		}
		defer f.Close()
		if chart, err = accounts.ReadAccounts(f); err != nil {
			return nil, fmt.Errorf("reading chart %s: %w", path, err)
		}
	}

	var roots []string
	for _, a := range chart {
		if a.ParentID == "" {
			roots = append(roots, a.ID)
		}
	}
	if len(roots) != 1 {
		return nil, fmt.Errorf("chart must have exactly one root account, found %d", len(roots))
	}

	book := ledger.NewBook(roots[0])
	for _, a := range chart {
		book.PutAccount(a)
	}
	return book, nil
}
