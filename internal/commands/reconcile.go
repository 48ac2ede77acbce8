package commands

import (
	"errors"
	"fmt"
	"os"
	"path/filepath"
	"strings"
	"time"

	"github.com/rs/zerolog"
	"github.com/spf13/cobra"

	"github.com/cleared-dev/wayex-ledger/internal/config"
	"github.com/cleared-dev/wayex-ledger/internal/history"
	"github.com/cleared-dev/wayex-ledger/internal/importer"
	"github.com/cleared-dev/wayex-ledger/internal/ledger"
	"github.com/cleared-dev/wayex-ledger/internal/logging"
	"github.com/cleared-dev/wayex-ledger/internal/model"
	"github.com/cleared-dev/wayex-ledger/internal/reconcile"
	"github.com/cleared-dev/wayex-ledger/internal/report"
)

type reconcileOptions struct {
	wayexFile  string
	ledgerFile string
	configPath string

	revision string
	asset    string
	account  string
	timezone string
	minDays  int
	maxDays  int
	tieBreak string
	cont     bool
	format   string
	history  string
	logLevel string
}

func newReconcileCommand() *cobra.Command {
	var opts reconcileOptions

	cmd := &cobra.Command{
		Use:   "reconcile",
		Short: "Match exchange records against ledger postings",
		Args:  cobra.NoArgs,
		RunE: func(cmd *cobra.Command, args []string) error {
			cfg, err := loadConfig(opts.configPath)
			if err != nil {
				return err
			}
			opts.apply(cmd, cfg)
			if err := cfg.Validate(); err != nil {
				return fmt.Errorf("invalid configuration: %w", err)
			}
			logger := logging.New(cfg.Logging(), cmd.ErrOrStderr())
			return runReconcile(cmd, cfg, opts.wayexFile, opts.ledgerFile, logger)
		},
	}

	f := cmd.Flags()
	f.StringVarP(&opts.wayexFile, "wayex-file", "w", "", "Wayex CSV export (required)")
	f.StringVarP(&opts.ledgerFile, "ledger-file", "l", "", "beancount ledger (required)")
	f.StringVar(&opts.configPath, "config", "", "config file (default ./"+config.FileName+" if present)")
	f.StringVar(&opts.revision, "revision", "", "export revision: "+joinNames(config.Revisions()))
	f.StringVar(&opts.asset, "asset", "", "asset to reconcile")
	f.StringVar(&opts.account, "account", "", "tracked ledger account")
	f.StringVar(&opts.timezone, "timezone", "", "timezone of export timestamps")
	f.IntVar(&opts.minDays, "min-days", 0, "smallest allowed export date minus ledger date")
	f.IntVar(&opts.maxDays, "max-days", 0, "largest allowed export date minus ledger date")
	f.StringVar(&opts.tieBreak, "tie-break", "", "candidate selection: first or closest")
	f.BoolVar(&opts.cont, "continue-on-unmatched", false, "report every unmatched record instead of stopping at the first")
	f.StringVar(&opts.format, "format", "", "output format: "+joinNames(report.Formats()))
	f.StringVar(&opts.history, "history", "", "record the run in this SQLite database")
	f.StringVar(&opts.logLevel, "log-level", "", "log level: trace, debug, info, warn, error")
	_ = cmd.MarkFlagRequired("wayex-file")
	_ = cmd.MarkFlagRequired("ledger-file")

	return cmd
}

// loadConfig reads path, or the default config file when path is empty and
// one exists, or falls back to built-in defaults.
func loadConfig(path string) (*config.Config, error) {
	if path == "" {
		if _, err := os.Stat(config.FileName); err != nil {
			cfg := &config.Config{}
			cfg.ApplyDefaults()
			return cfg, nil
		}
		path = config.FileName
	}
	cfg, err := config.Load(path)
	if err != nil {
		return nil, fmt.Errorf("loading %s: %w", path, err)
	}
	return cfg, nil
}

// apply overrides cfg with every flag set on the command line.
func (o *reconcileOptions) apply(cmd *cobra.Command, cfg *config.Config) {
	changed := cmd.Flags().Changed
	if changed("revision") {
		cfg.Source.Revision = o.revision
	}
	if changed("asset") {
		cfg.Source.Asset = o.asset
	}
	if changed("account") {
		cfg.Ledger.Account = o.account
	}
	if changed("timezone") {
		cfg.Source.Timezone = o.timezone
	}
	if changed("min-days") {
		cfg.Match.MinDays = &o.minDays
	}
	if changed("max-days") {
		cfg.Match.MaxDays = &o.maxDays
	}
	if changed("tie-break") {
		cfg.Match.TieBreak = o.tieBreak
	}
	if changed("continue-on-unmatched") {
		cfg.Match.ContinueOnUnmatched = o.cont
	}
	if changed("format") {
		cfg.Output.Format = o.format
	}
	if changed("history") {
		cfg.History.DatabasePath = o.history
	}
	if changed("log-level") {
		cfg.Log.Level = o.logLevel
	}
}

func runReconcile(cmd *cobra.Command, cfg *config.Config, wayexFile, ledgerFile string, logger zerolog.Logger) error {
	if err := model.ValidateKinds(); err != nil {
		return err
	}

	// Validate has already checked each of these.
	loc, _ := cfg.Location()
	asset, _ := cfg.TargetAsset()
	account, _ := cfg.Account()
	rcfg, _ := cfg.Reconcile()

	parser := importer.DefaultRegistry(loc, cfg.AssetSet()).Get(cfg.Source.Revision)
	if parser == nil {
		return fmt.Errorf("%w: %q", config.ErrUnknownRevision, cfg.Source.Revision)
	}
	records, err := importer.ParseFile(parser, wayexFile)
	if err != nil {
		return err
	}
	external := importer.Normalize(records, asset)

	txns, err := ledger.Load(ledgerFile)
	if err != nil {
		return err
	}
	ledgerRecs, err := ledger.Extract(txns, account, asset)
	if err != nil {
		return fmt.Errorf("extracting %s: %w", account, err)
	}

	logger.Info().
		Str("revision", parser.Format()).
		Str("asset", string(asset)).
		Int("external", len(external)).
		Int("skipped", len(records)-len(external)).
		Int("ledger", len(ledgerRecs)).
		Str("window", rcfg.Window.String()).
		Msg("reconciling")

	reporter, err := report.New(cfg.Output.Format, cmd.OutOrStdout())
	if err != nil {
		return err
	}

	started := time.Now()
	rec := reconcile.New(rcfg, reconcile.NewPool(ledgerRecs), logger)
	res, runErr := rec.Run(external, reporter)

	var unmatched *reconcile.UnmatchedError
	if runErr != nil && !errors.As(runErr, &unmatched) {
		return runErr
	}
	finish := reporter.Finish
	if runErr != nil {
		finish = reporter.Stop
	}
	if err := finish(res); err != nil {
		return fmt.Errorf("writing report: %w", err)
	}

	if cfg.History.DatabasePath != "" {
		run := &history.Run{
			StartedAt:  started,
			WayexFile:  absPath(wayexFile),
			LedgerFile: absPath(ledgerFile),
			Revision:   parser.Format(),
			Asset:      string(asset),
			Account:    account.String(),
			Window:     rcfg.Window,
			TieBreak:   string(rcfg.TieBreak),
			Status:     history.StatusComplete,
		}
		if runErr != nil {
			run.Status = history.StatusIncomplete
		}
		if err := saveRun(cmd, cfg.History.DatabasePath, run, res, logger); err != nil {
			return err
		}
		logger.Info().Str("run_id", run.ID).Msg("run recorded")
	}

	if runErr != nil {
		return runErr
	}
	if n := res.Count(reconcile.Unmatched); n > 0 {
		return fmt.Errorf("%d external records without a ledger record: %w", n, reconcile.ErrUnmatched)
	}
	return nil
}

func saveRun(cmd *cobra.Command, path string, run *history.Run, res *reconcile.Result, logger zerolog.Logger) error {
	store, err := history.Open(path, logger)
	if err != nil {
		return err
	}
	defer store.Close()
	if err := store.SaveRun(cmd.Context(), run, res); err != nil {
		return fmt.Errorf("recording run: %w", err)
	}
	return nil
}

func absPath(p string) string {
	if abs, err := filepath.Abs(p); err == nil {
		return abs
	}
	return p
}

func joinNames(names []string) string {
	return strings.Join(names, ", ")
}
