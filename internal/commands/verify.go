package commands

import (
	"fmt"
	"io"
	"time"

	"github.com/prometheus/client_golang/prometheus"
	"github.com/spf13/cobra"

	"github.com/tallybooks/tally/internal/auditlog"
	"github.com/tallybooks/tally/internal/id"
	"github.com/tallybooks/tally/internal/metrics"
	"github.com/tallybooks/tally/internal/store"
	"github.com/tallybooks/tally/internal/verify"
)

func newVerifyCommand() *cobra.Command {
	var dryRun, strict bool

	cmd := &cobra.Command{
		Use:   "verify",
		Short: "Check the ledger's structure and repair what can be repaired",
		Long: `Walks the account tree and every transaction, fixes commodity links,
share quantities, orphaned splits and accounts, and reports what needs
manual correction (unbalanced transactions, duplicate symbols, misplaced
splits).`,
		Args: cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()
			return runVerify(cmd, s, dryRun, strict)
		},
	}

	cmd.Flags().BoolVar(&dryRun, "dry-run", false, "report findings without saving repairs")
	cmd.Flags().BoolVar(&strict, "strict", false, "fail when findings need manual correction")

	return cmd
}

func runVerify(cmd *cobra.Command, s *session, dryRun, strict bool) error {
	out := cmd.OutOrStdout()
	start := time.Now()

	report, err := verify.New(s.book, s.lg).Run()
	if err != nil {
		return err
	}
	finished := time.Now()

	if !dryRun {
		changes := s.book.Changes()
		if err := store.Apply(cmd.Context(), s.db, changes); err != nil {
			return fmt.Errorf("saving repairs: %w", err)
		}
		s.book.ResetChanges()
		s.lg.Info("repairs saved", "changes", len(changes))

		if path := s.cfg.Verify.AuditLog; path != "" && !report.Clean() {
			if err := auditlog.Append(path, auditlog.FromReport(id.New(), finished, report)); err != nil {
				return err
			}
		}
	}

	if path := s.cfg.Verify.MetricsFile; path != "" {
		reg := prometheus.NewRegistry()
		metrics.NewVerify(reg).Observe(report, finished, finished.Sub(start))
		if err := metrics.WriteTextfile(path, reg); err != nil {
			return err
		}
	}

	printReport(out, report, dryRun)

	if n := len(report.Outstanding()); strict && n > 0 {
		return fmt.Errorf("%d findings need manual correction", n)
	}
	return nil
}

func printReport(out io.Writer, report verify.Report, dryRun bool) {
	if report.Clean() {
		fmt.Fprintln(out, "Ledger is consistent.")
		return
	}
	for _, w := range report.Warnings {
		fmt.Fprintln(out, w)
	}
	repaired := "repaired"
	if dryRun {
		repaired = "repairable (dry run, not saved)"
	}
	fmt.Fprintf(out, "%d findings: %d %s, %d need attention\n",
		len(report.Warnings), report.Repaired(), repaired, len(report.Outstanding()))
}
