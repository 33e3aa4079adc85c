package cmd

import (
	"fmt"

	"github.com/spf13/cobra"
)

var diffCmd = &cobra.Command{
	Use:   "diff [path]...",
	Short: "Show changes against the recorded conflicts",
	Long: `Show a unified diff between the recorded conflict of each path and its
current content. Without paths every path of the merge in progress is shown.`,
	RunE: runDiff,
}

func init() {
	rootCmd.AddCommand(diffCmd)
}

func runDiff(cmd *cobra.Command, args []string) error {
	a, err := openApp(cmd)
	if err != nil {
		return err
	}
	out := cmd.OutOrStdout()

	if len(args) == 0 {
		diffs, err := a.engine.Diff(cmd.Context())
		for _, d := range diffs {
			fmt.Fprint(out, d.Diff)
		}
		return err
	}

	for _, path := range args {
		d, err := a.engine.DiffPath(cmd.Context(), path)
		if err != nil {
			return err
		}
		fmt.Fprint(out, d.Diff)
	}
	return nil
}
