package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

// =============================================================================
// Lifecycle Flags
// =============================================================================

var (
	statusFormat string
	gcFormat     string
)

// =============================================================================
// Lifecycle Commands
// =============================================================================

var clearCmd = &cobra.Command{
	Use:   "clear",
	Short: "Forget the merge in progress",
	Long: `Delete the records of every conflict tracked by the merge in progress and
remove the merge journal. Use this when aborting a merge.`,
	Args: cobra.NoArgs,
	RunE: runClear,
}

var forgetCmd = &cobra.Command{
	Use:   "forget <pathspec>...",
	Short: "Forget recorded resolutions for paths",
	Long: `Delete the recorded resolutions of the conflicts in the matching paths. The
next resolution of those conflicts is recorded afresh.

Pathspecs are globs where '*' does not cross '/', or directory prefixes.`,
	RunE: runForget,
}

var statusCmd = &cobra.Command{
	Use:   "status",
	Short: "List paths tracked by the merge in progress",
	Args:  cobra.NoArgs,
	RunE:  runStatus,
}

var remainingCmd = &cobra.Command{
	Use:   "remaining",
	Short: "List paths that still need a manual resolution",
	Long: `List conflicted paths that neither have been resolved by hand nor can be
resolved from recorded resolutions.`,
	Args: cobra.NoArgs,
	RunE: runRemaining,
}

var gcCmd = &cobra.Command{
	Use:   "gc",
	Short: "Prune old records",
	Long: `Delete unresolved records older than gc.unresolved (default 15 days) and
resolved records older than gc.resolved (default 60 days). Records used by the
merge in progress are kept.`,
	Args: cobra.NoArgs,
	RunE: runGC,
}

// =============================================================================
// Init
// =============================================================================

func init() {
	rootCmd.AddCommand(clearCmd)
	rootCmd.AddCommand(forgetCmd)
	rootCmd.AddCommand(statusCmd)
	rootCmd.AddCommand(remainingCmd)
	rootCmd.AddCommand(gcCmd)

	for _, c := range []*cobra.Command{statusCmd, remainingCmd} {
		c.Flags().StringVarP(&statusFormat, "format", "f", "plain", "Output format (plain, table, json)")
	}
	gcCmd.Flags().StringVarP(&gcFormat, "format", "f", "plain", "Output format (plain, json)")
}

// =============================================================================
// Command Implementations
// =============================================================================

func runClear(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	return a.engine.Clear(cmd.Context())
}

func runForget(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	return a.engine.Forget(cmd.Context(), args)
}

func runStatus(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	statuses, err := a.engine.Status(cmd.Context())
	if err != nil {
		return err
	}
	return formatStatusOutput(cmd.OutOrStdout(), statuses, parseOutputFormat(statusFormat))
}

func runRemaining(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	statuses, err := a.engine.Remaining(cmd.Context())
	if err != nil {
		return err
	}

	unresolved := statuses[:0]
	for _, st := range statuses {
		if !st.Resolved {
			unresolved = append(unresolved, st)
		}
	}
	return formatStatusOutput(cmd.OutOrStdout(), unresolved, parseOutputFormat(statusFormat))
}

func runGC(cmd *cobra.Command, _ []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	result, err := a.engine.GC(cmd.Context())
	if result == nil {
		return err
	}

	if parseOutputFormat(gcFormat) == OutputJSON {
		if encErr := encodeJSON(cmd.OutOrStdout(), result); encErr != nil {
			return encErr
		}
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "scanned %d, removed %d, kept %d, failed %d\n",
		result.Scanned, result.Removed, result.Kept, result.Failed)
	return err
}
