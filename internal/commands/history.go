package commands

import (
	"fmt"
	"io"
	"text/tabwriter"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/wayex-ledger/internal/history"
	"github.com/cleared-dev/wayex-ledger/internal/model"
	"github.com/cleared-dev/wayex-ledger/internal/reconcile"
)

func newHistoryCommand() *cobra.Command {
	var dbPath string
	var configPath string

	historyCmd := &cobra.Command{
		Use:   "history",
		Short: "Inspect recorded reconciliation runs",
	}
	historyCmd.PersistentFlags().StringVar(&dbPath, "history", "", "history database (default from config)")
	historyCmd.PersistentFlags().StringVar(&configPath, "config", "", "config file (default ./wayex-ledger.yaml if present)")

	open := func(cmd *cobra.Command) (*history.Store, error) {
		path := dbPath
		if path == "" {
			cfg, err := loadConfig(configPath)
			if err != nil {
				return nil, err
			}
			path = cfg.History.DatabasePath
		}
		if path == "" {
			return nil, fmt.Errorf("no history database: pass --history or set history.database_path")
		}
		return history.Open(path, zerolog.Nop())
	}

	historyCmd.AddCommand(newHistoryListCommand(open))
	historyCmd.AddCommand(newHistoryShowCommand(open))
	return historyCmd
}

type storeOpener func(cmd *cobra.Command) (*history.Store, error)

func newHistoryListCommand(open storeOpener) *cobra.Command {
	var limit int

	cmd := &cobra.Command{
		Use:   "list",
		Short: "List recorded runs, newest first",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			runs, err := store.ListRuns(cmd.Context(), limit)
			if err != nil {
				return err
			}

			tw := tabwriter.NewWriter(cmd.OutOrStdout(), 0, 0, 2, ' ', 0)
			fmt.Fprintln(tw, "ID\tSTARTED\tSTATUS\tASSET\tMATCHED\tUNMATCHED\tUNACCOUNTED\tTOTAL")
			for _, r := range runs {
				fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%d\t%d\t%d\t%s\n",
					r.ID, r.StartedAt.Local().Format(time.DateTime), r.Status, r.Asset,
					r.Matched, r.Unmatched, r.Unaccounted, r.Totals.Total.StringFixed(model.Scale))
			}
			return tw.Flush()
		},
	}
	cmd.Flags().IntVar(&limit, "limit", 20, "maximum runs to list (0 for all)")
	return cmd
}

func newHistoryShowCommand(open storeOpener) *cobra.Command {
	return &cobra.Command{
		Use:   "show <run-id>",
		Short: "Show a recorded run and its outcomes",
		Args:  cobra.ExactArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			store, err := open(cmd)
			if err != nil {
				return err
			}
			defer store.Close()

			run, err := store.GetRun(cmd.Context(), args[0])
			if err != nil {
				return err
			}
			rows, err := store.Outcomes(cmd.Context(), run.ID)
			if err != nil {
				return err
			}
			return printRun(cmd.OutOrStdout(), run, rows)
		},
	}
}

func printRun(w io.Writer, run *history.Run, rows []history.OutcomeRow) error {
	tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintf(tw, "Run:\t%s\n", run.ID)
	fmt.Fprintf(tw, "Started:\t%s\n", run.StartedAt.Local().Format(time.DateTime))
	fmt.Fprintf(tw, "Status:\t%s\n", run.Status)
	fmt.Fprintf(tw, "Export:\t%s (%s)\n", run.WayexFile, run.Revision)
	fmt.Fprintf(tw, "Ledger:\t%s\n", run.LedgerFile)
	fmt.Fprintf(tw, "Account:\t%s %s\n", run.Account, run.Asset)
	fmt.Fprintf(tw, "Window:\t%s %s\n", run.Window, run.TieBreak)
	fmt.Fprintf(tw, "Outcomes:\t%d matched, %d zero, %d date mismatches, %d unmatched, %d unaccounted of %d ledger records\n",
		run.Matched, run.ZeroAmount, run.DateMismatches, run.Unmatched, run.Unaccounted, run.PoolSize)
	fmt.Fprintf(tw, "Totals:\tspent %s paid %s total %s\n",
		run.Totals.Outflow.StringFixed(model.Scale), run.Totals.Inflow.StringFixed(model.Scale), run.Totals.Total.StringFixed(model.Scale))
	if err := tw.Flush(); err != nil {
		return err
	}

	fmt.Fprintln(w)
	tw = tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
	fmt.Fprintln(tw, "KIND\tROW\tAMOUNT\tDESCRIPTION\tLEDGER\tLEDGER DATE\tDAYS")
	for _, r := range rows {
		row, line, days := "", "", ""
		if r.Row > 0 {
			row = fmt.Sprint(r.Row)
		}
		if r.LedgerLine > 0 {
			line = fmt.Sprint(r.LedgerLine)
		}
		if r.LedgerDate != "" && r.Kind != reconcile.Unaccounted {
			days = fmt.Sprint(r.DayDiff)
		}
		amount, desc := r.Amount, r.Description
		if amount == "" {
			amount, desc = r.LedgerAmount, r.LedgerDescription
		}
		fmt.Fprintf(tw, "%s\t%s\t%s\t%s\t%s\t%s\t%s\n", r.Kind, row, amount, desc, line, r.LedgerDate, days)
	}
	return tw.Flush()
}
