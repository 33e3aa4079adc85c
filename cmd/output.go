package cmd

import (
	"encoding/json"
	"fmt"
	"io"
	"strings"
	"text/tabwriter"

	"github.com/adalundhe/rerere/core/rerere"
)

// =============================================================================
// Output Format Type
// =============================================================================

// OutputFormat represents the output format of listing commands.
type OutputFormat string

const (
	// OutputPlain prints one path per line, as git does.
	OutputPlain OutputFormat = "plain"
	// OutputTable outputs as formatted table.
	OutputTable OutputFormat = "table"
	// OutputJSON outputs as JSON.
	OutputJSON OutputFormat = "json"
)

func parseOutputFormat(s string) OutputFormat {
	switch strings.ToLower(s) {
	case "json":
		return OutputJSON
	case "table":
		return OutputTable
	default:
		return OutputPlain
	}
}

// =============================================================================
// Run Output
// =============================================================================

func printRunResult(w io.Writer, result *rerere.RunResult) {
	for _, path := range result.Recorded {
		fmt.Fprintf(w, "Recorded resolution for '%s'.\n", path)
	}
	for _, rp := range result.Resolved {
		if rp.Remaining == 0 {
			fmt.Fprintf(w, "Resolved '%s' using previous resolution.\n", rp.Path)
			continue
		}
		fmt.Fprintf(w, "Resolved %d of %d conflicts in '%s' using previous resolution.\n",
			rp.Replayed, rp.Replayed+rp.Remaining, rp.Path)
	}
	for _, path := range result.Staged {
		fmt.Fprintf(w, "Staged '%s' using previous resolution.\n", path)
	}
}

// =============================================================================
// Status Output
// =============================================================================

type statusJSON struct {
	Path       string `json:"path"`
	Hunks      int    `json:"hunks"`
	Clean      bool   `json:"clean"`
	Resolvable bool   `json:"resolvable"`
	Resolved   bool   `json:"resolved"`
}

func formatStatusOutput(w io.Writer, statuses []rerere.PathStatus, format OutputFormat) error {
	switch format {
	case OutputJSON:
		out := make([]statusJSON, 0, len(statuses))
		for _, st := range statuses {
			out = append(out, statusJSON(st))
		}
		return encodeJSON(w, out)
	case OutputTable:
		tw := tabwriter.NewWriter(w, 0, 0, 2, ' ', 0)
		fmt.Fprintln(tw, "PATH\tHUNKS\tSTATE")
		fmt.Fprintln(tw, "----\t-----\t-----")
		for _, st := range statuses {
			fmt.Fprintf(tw, "%s\t%d\t%s\n", st.Path, st.Hunks, statusState(st))
		}
		return tw.Flush()
	default:
		for _, st := range statuses {
			fmt.Fprintln(w, st.Path)
		}
		return nil
	}
}

func statusState(st rerere.PathStatus) string {
	switch {
	case st.Clean:
		return "clean"
	case st.Resolvable:
		return "resolvable"
	default:
		return "conflicted"
	}
}

func encodeJSON(w io.Writer, v any) error {
	encoder := json.NewEncoder(w)
	encoder.SetIndent("", "  ")
	return encoder.Encode(v)
}
