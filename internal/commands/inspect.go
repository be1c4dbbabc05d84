package commands

import (
	"fmt"
	"os"

	"github.com/shopspring/decimal"
	"github.com/spf13/cobra"

	"github.com/tallybooks/tally/internal/accounts"
	"github.com/tallybooks/tally/internal/classify"
	"github.com/tallybooks/tally/internal/model"
	"github.com/tallybooks/tally/internal/splitfactor"
)

const quantityPlaces = 4

func newPathCommand() *cobra.Command {
	return &cobra.Command{
		Use:   "path <account-id>...",
		Short: "Print the full path and classification of accounts",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			release := s.book.Shared()
			defer release()

			c := classify.New(s.book)
			for _, accountID := range args {
				p, err := c.FullPath(accountID)
				if err != nil {
					return err
				}
				class, err := c.Classify(accountID)
				if err != nil {
					return err
				}
				fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s\n", accountID, p, describe(class))
			}
			return nil
		},
	}
}

func describe(c classify.Class) string {
	s := c.Kind.String()
	for _, f := range []struct {
		set  bool
		name string
	}{
		{c.Marketable, "marketable"},
		{c.TaxDeferred, "tax-deferred"},
		{c.TaxRelated, "tax-related"},
		{c.NeedsCommodityLink, "needs-commodity-link"},
		{c.Placeholder, "placeholder"},
	} {
		if f.set {
			s += "," + f.name
		}
	}
	return s
}

func newAdjustCommand() *cobra.Command {
	var asOf string

	cmd := &cobra.Command{
		Use:   "adjust <split-id>",
		Short: "Print a split's share quantity adjusted for later stock splits",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			at, err := dateFlag(asOf, today())
			if err != nil {
				return err
			}

			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			release := s.book.Shared()
			defer release()

			split, err := s.book.Split(args[0])
			if err != nil {
				return err
			}
			qty, err := splitfactor.NewSplitResolver(s.book).SplitAdjustedQuantity(split.ID, at)
			if err != nil {
				return err
			}
			// Factors multiply in log space; round away the float noise.
			adjusted := decimal.NewFromFloat(qty).Round(quantityPlaces)
			fmt.Fprintf(cmd.OutOrStdout(), "%s\t%s\t%s as of %s\n",
				split.ID, split.Quantity, adjusted, at.Format(model.DateLayout))
			return nil
		},
	}

	cmd.Flags().StringVar(&asOf, "as-of", "", "date to adjust to, YYYY-MM-DD (default today)")

	return cmd
}

func newAccountsCommand() *cobra.Command {
	accountsCmd := &cobra.Command{
		Use:   "accounts",
		Short: "Chart of accounts operations",
	}
	accountsCmd.AddCommand(newAccountsExportCommand())
	return accountsCmd
}

func newAccountsExportCommand() *cobra.Command {
	var output string

	cmd := &cobra.Command{
		Use:   "export",
		Short: "Write the chart of accounts as CSV",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, _ []string) error {
			s, err := openSession(cmd)
			if err != nil {
				return err
			}
			defer s.Close()

			release := s.book.Shared()
			chart := s.book.Accounts()
			release()

			if output == "" {
				return accounts.WriteAccounts(cmd.OutOrStdout(), chart)
			}
			f, err := os.Create(output)
			if err != nil {
				return fmt.Errorf("creating %s: %w", output, err)
			}
			defer f.Close()
			if err := accounts.WriteAccounts(f, chart); err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %d accounts to %s\n", len(chart), output)
			return nil
		},
	}

	cmd.Flags().StringVarP(&output, "output", "o", "", "file to write (default stdout)")

	return cmd
}
