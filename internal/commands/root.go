package commands

import (
	"github.com/spf13/cobra"

	"github.com/tallybooks/tally/internal/buildinfo"
	"github.com/tallybooks/tally/internal/config"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	rootCmd := &cobra.Command{
		Use:     "tally",
		Short:   "Personal double-entry ledger",
		Version: buildinfo.String(),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage: true,
	}

	rootCmd.PersistentFlags().String(configFlag, config.FileName, "path to tally.yaml")

	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newVerifyCommand())
	rootCmd.AddCommand(newReportCommand())
	rootCmd.AddCommand(newPositionsCommand())
	rootCmd.AddCommand(newPathCommand())
	rootCmd.AddCommand(newAdjustCommand())
	rootCmd.AddCommand(newAccountsCommand())

	return rootCmd
}
