package commands

import (
	"fmt"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"github.com/cleared-dev/wayex-ledger/internal/config"
)

func newInitCommand() *cobra.Command {
	var revision string
	var timezone string
	var force bool

	cmd := &cobra.Command{
		Use:   "init [directory]",
		Short: "Write a default " + config.FileName,
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

			path, err := runInit(absDir, revision, timezone, force)
			if err != nil {
				return err
			}
			fmt.Fprintf(cmd.OutOrStdout(), "Wrote %s\n", path)
			return nil
		},
	}

	cmd.Flags().StringVar(&revision, "revision", "wayex", "export revision: "+joinNames(config.Revisions()))
	cmd.Flags().StringVar(&timezone, "timezone", "Local", "timezone of export timestamps")
	cmd.Flags().BoolVar(&force, "force", false, "overwrite an existing config")

	return cmd
}

func runInit(dir, revision, timezone string, force bool) (string, error) {
	if err := os.MkdirAll(dir, 0o755); err != nil {
		return "", fmt.Errorf("creating directory %s: %w", dir, err)
	}

	path := filepath.Join(dir, config.FileName)
	if _, err := os.Stat(path); err == nil && !force {
		return "", fmt.Errorf("%s already exists (use --force to overwrite)", path)
	}

	window, err := config.RevisionWindow(revision)
	if err != nil {
		return "", err
	}

	cfg := config.Default()
	cfg.Source.Revision = revision
	cfg.Source.Timezone = timezone
	cfg.Match.MinDays = &window.MinDays
	cfg.Match.MaxDays = &window.MaxDays
	if err := cfg.Validate(); err != nil {
		return "", fmt.Errorf("invalid configuration: %w", err)
	}

	if err := config.Save(path, cfg); err != nil {
		return "", err
	}
	return path, nil
}
