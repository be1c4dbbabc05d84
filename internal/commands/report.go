package commands

import (
	"fmt"
	"time"

	"github.com/spf13/cobra"

	"github.com/tallybooks/tally/internal/aggregate"
	"github.com/tallybooks/tally/internal/log"
	"github.com/tallybooks/tally/internal/model"
	"github.com/tallybooks/tally/internal/position"
	"github.com/tallybooks/tally/internal/report"
)

type reportOptions struct {
	begin  string
	end    string
	depth  int
	format string
}

func (o *reportOptions) register(cmd *cobra.Command) {
	cmd.Flags().StringVar(&o.end, "end", "", "last day of the period, YYYY-MM-DD (default today)")
	cmd.Flags().StringVar(&o.format, "format", "", "output format: table, markdown or csv (default from tally.yaml)")
}

func (o *reportOptions) renderer(s *session, cmd *cobra.Command) report.Renderer {
	r := report.Renderer{Format: s.cfg.Report.Format, Depth: s.cfg.Report.Depth, Currency: s.cfg.Report.Currency}
	if o.format != "" {
		r.Format = o.format
	}
	if cmd.Flags().Changed("depth") {
		r.Depth = o.depth
	}
	return r
}

// window resolves the period flags. The period starts on January 1 of the
// end date's year unless --begin says otherwise.
func (o *reportOptions) window() (aggregate.Window, error) {
	end, err := dateFlag(o.end, today())
	if err != nil {
		return aggregate.Window{}, err
	}
	begin, err := dateFlag(o.begin, model.Date(end.Year(), time.January, 1))
	if err != nil {
		return aggregate.Window{}, err
	}
	if begin.After(end) {
		return aggregate.Window{}, fmt.Errorf("period begins %s after it ends %s",
			begin.Format(model.DateLayout), end.Format(model.DateLayout))
	}
	return aggregate.Window{Begin: begin, End: end}, nil
}

func newReportCommand() *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:       "report [balance|income|positions|all]",
		Short:     "Print the balance sheet, income statement and positions",
		Args:      cobra.MatchAll(cobra.MaximumNArgs(1), cobra.OnlyValidArgs),
		ValidArgs: []string{"balance", "income", "positions", "all"},
		RunE: func(cmd *cobra.Command, args []string) error {
			which := "all"
			if len(args) > 0 {
				which = args[0]
			}
			w, err := opts.window()
			if err != nil {
				return err
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			st, err := report.Build(log.WithLogger(cmd.Context(), s.lg), s.book, w)
			if err != nil {
				return err
			}

			r := opts.renderer(s, cmd)
			out := cmd.OutOrStdout()
			if which == "balance" || which == "all" {
				if err := r.BalanceSheet(out, st); err != nil {
					return err
				}
			}
			if which == "income" || which == "all" {
				if err := r.IncomeStatement(out, st); err != nil {
					return err
				}
			}
			if which == "positions" || which == "all" {
				if err := r.Positions(out, st.Positions); err != nil {
					return err
				}
			}
			return nil
		},
	}

	opts.register(cmd)
	cmd.Flags().StringVar(&opts.begin, "begin", "", "first day of the period, YYYY-MM-DD (default January 1 of the end year)")
	cmd.Flags().IntVar(&opts.depth, "depth", 0, "account levels to show below each section, 0 for all (default from tally.yaml)")

	return cmd
}

func newPositionsCommand() *cobra.Command {
	var opts reportOptions

	cmd := &cobra.Command{
		Use:   "positions",
		Short: "Print open investment positions with basis, gains and returns",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			end, err := dateFlag(opts.end, today())
			if err != nil {
				return err
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			release := s.book.Shared()
			ps, err := position.NewEngine(s.book).OpenPositions(end)
			release()
			if err != nil {
				return err
			}
			if len(ps) == 0 {
				fmt.Fprintf(cmd.OutOrStdout(), "No open positions as of %s.\n", end.Format(model.DateLayout))
				return nil
			}
			return opts.renderer(s, cmd).Positions(cmd.OutOrStdout(), ps)
		},
	}

	opts.register(cmd)

	return cmd
}
