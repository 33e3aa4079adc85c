// Package cmd provides the rerere command line.
package cmd

import (
	"context"
	"os"
	"os/signal"

	"github.com/spf13/cobra"

	"github.com/adalundhe/rerere/core/rerere"
)

// =============================================================================
// Global Flags
// =============================================================================

var (
	repoDir      string
	logLevel     string
	autoupdate   bool
	noAutoupdate bool
)

// =============================================================================
// Root Command
// =============================================================================

var rootCmd = &cobra.Command{
	Use:   "rerere",
	Short: "Reuse recorded resolutions of conflicted merges",
	Long: `rerere records how conflict hunks were resolved and replays those
resolutions when the same hunks conflict again.

Run without a subcommand after a merge stops with conflicts: resolutions of
hunks seen before are applied, new hunks are remembered, and files resolved by
hand since the last run have their resolutions recorded.`,
	Args:         cobra.NoArgs,
	SilenceUsage: true,
	RunE:         runDefault,
}

func init() {
	rootCmd.PersistentFlags().StringVar(&repoDir, "repo", ".", "Repository directory path")
	rootCmd.PersistentFlags().StringVar(&logLevel, "log-level", "", "Log level (debug, info, warn, error)")

	rootCmd.Flags().BoolVar(&autoupdate, "rerere-autoupdate", false, "Stage files resolved from recorded resolutions")
	rootCmd.Flags().BoolVar(&noAutoupdate, "no-rerere-autoupdate", false, "Never stage resolved files")
	rootCmd.MarkFlagsMutuallyExclusive("rerere-autoupdate", "no-rerere-autoupdate")
}

// Execute runs the root command. An interrupt cancels the running operation,
// which keeps the progress made so far.
func Execute() error {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt)
	defer stop()
	return rootCmd.ExecuteContext(ctx)
}

// =============================================================================
// Default Run
// =============================================================================

func runDefault(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	if !a.cfg.Rerere.Enabled {
		a.logger.Debug("rerere is disabled")
		return nil
	}

	result, err := a.engine.RunDefault(cmd.Context(), autoupdateMode(autoupdate, noAutoupdate))
	if result != nil {
		printRunResult(cmd.OutOrStdout(), result)
	}
	return err
}

func autoupdateMode(on, off bool) rerere.AutoupdateMode {
	switch {
	case on:
		return rerere.AutoupdateOn
	case off:
		return rerere.AutoupdateOff
	default:
		return rerere.AutoupdateDefault
	}
}
