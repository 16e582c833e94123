package main

import (
	"fmt"
	"io"

	"github.com/spf13/cobra"

	"contractrag/internal/analysis"
	"contractrag/internal/service"
)

// NewAnalyzeCmd creates the analyze command.
func NewAnalyzeCmd() *cobra.Command {
	return &cobra.Command{
		Use:   "analyze FILE...",
		Short: "Summarize contracts and list clauses and red flags",
		Args:  cobra.MinimumNArgs(1),
		RunE: func(cmd *cobra.Command, args []string) error {
			a, err := newApp(cmd)
			if err != nil {
				return err
			}
			res, err := a.ingestFiles(cmd.Context(), args)
			if err != nil {
				return err
			}
			printAnalysis(cmd.OutOrStdout(), res)
			return nil
		},
	}
}

func printAnalysis(w io.Writer, a *service.Analysis) {
	printOverview(w, a)
	for _, d := range a.Documents {
		fmt.Fprintf(w, "\n== %s (%d pages)\n%s\n", d.Name, d.PageCount, a.Summaries[d.Name])
	}

	fmt.Fprintln(w, "\nClauses:")
	if len(a.Clauses) == 0 {
		fmt.Fprintln(w, "  none detected")
	}
	for _, c := range a.Clauses {
		fmt.Fprintf(w, "  [%s] %s (page %d): %s\n", c.Importance, c.ClauseType, c.Page, c.Explanation)
	}

	fmt.Fprintln(w, "\nRed flags:")
	if len(a.RedFlags) == 0 {
		fmt.Fprintln(w, "  none detected")
	}
	for _, f := range a.RedFlags {
		fmt.Fprintf(w, "  %-6s %3.0f  %s (page %d): %s\n",
			analysis.SeverityOf(f.Confidence), f.Confidence, f.RiskType, f.Page, f.Reason)
	}
}
