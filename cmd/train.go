package cmd

import (
	"errors"
	"fmt"
	"os"
	"strings"

	"github.com/spf13/cobra"

	"github.com/adalundhe/rerere/core/rerere"
)

var trainOverwrite bool

var trainCmd = &cobra.Command{
	Use:   "train <conflicted>:<resolved>...",
	Short: "Record resolutions from existing files",
	Long: `Record the resolutions found in pairs of files: a file with conflict markers
and the same file after it was resolved. Existing resolutions are kept unless
--overwrite is given.`,
	Args: cobra.MinimumNArgs(1),
	RunE: runTrain,
}

func init() {
	rootCmd.AddCommand(trainCmd)
	trainCmd.Flags().BoolVarP(&trainOverwrite, "overwrite", "o", false, "Replace existing resolutions")
}

func runTrain(cmd *cobra.Command, args []string) error {
	pairs, err := readTrainPairs(args)
	if err != nil {
		return err
	}

	a, err := openApp(cmd)
	if err != nil {
		return err
	}

	result, err := a.engine.Train(cmd.Context(), pairs, trainOverwrite)
	if err != nil {
		return err
	}

	fmt.Fprintf(cmd.OutOrStdout(), "recorded %d, unchanged %d, kept %d, failed %d, skipped %d\n",
		result.Recorded, result.Unchanged, result.Kept, result.Failed, result.Skipped)
	return nil
}

func readTrainPairs(args []string) ([]rerere.TrainPair, error) {
	pairs := make([]rerere.TrainPair, 0, len(args))
	var errs []error

	for _, arg := range args {
		conflictedPath, resolvedPath, ok := strings.Cut(arg, ":")
		if !ok || conflictedPath == "" || resolvedPath == "" {
			errs = append(errs, fmt.Errorf("invalid pair %q: want <conflicted>:<resolved>", arg))
			continue
		}

		conflicted, err := os.ReadFile(conflictedPath)
		if err != nil {
			errs = append(errs, err)
			continue
		}
		resolved, err := os.ReadFile(resolvedPath)
		if err != nil {
			errs = append(errs, err)
			continue
		}

		pairs = append(pairs, rerere.TrainPair{
			Path:       resolvedPath,
			Conflicted: conflicted,
			Resolved:   resolved,
		})
	}

	return pairs, errors.Join(errs...)
}
