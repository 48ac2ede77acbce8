package commands

import (
	"fmt"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/wayex-ledger/internal/buildinfo"
)

// NewRootCommand creates the root CLI command with all subcommands registered.
func NewRootCommand() *cobra.Command {
	var buildVersion bool

	rootCmd := &cobra.Command{
		Use:     "wayex-ledger",
		Short:   "Reconcile a Wayex export against a beancount ledger",
		Version: fmt.Sprintf("%s (commit: %s, built: %s)", buildinfo.Version, buildinfo.Commit, buildinfo.Date),
		CompletionOptions: cobra.CompletionOptions{
			DisableDefaultCmd: true,
		},
		SilenceUsage:  true,
		SilenceErrors: true,
		Args:          cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			if buildVersion {
				fmt.Fprintln(cmd.OutOrStdout(), buildinfo.String())
				return nil
			}
			return cmd.Help()
		},
	}

	rootCmd.Flags().BoolVarP(&buildVersion, "build-version", "b", false, "print the build version and exit")

	rootCmd.AddCommand(newReconcileCommand())
	rootCmd.AddCommand(newInitCommand())
	rootCmd.AddCommand(newHistoryCommand())

	return rootCmd
}
