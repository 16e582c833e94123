package main

import (
	"fmt"
	"io"
	"strings"

	"github.com/spf13/cobra"

	"contractrag/internal/domain"
	"contractrag/internal/ingest"
)

// NewAskCmd creates the ask command.
func NewAskCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "ask QUESTION",
		Short: "Answer a question against the indexed contracts",
		Long: `Ask answers a question using the persisted index from a previous ingest.

Examples:
  contractrag ask "What does SaaS mean?"
  contractrag ask "Can either party terminate for convenience?" --source msa.pdf

With --source, a missing or unreadable index is rebuilt from those files.`,
		Args: cobra.MinimumNArgs(1),
		RunE: runAskCmd,
	}
	cmd.Flags().StringSliceP("source", "s", nil, "Files to rebuild the index from when it is missing")
	return cmd
}

func runAskCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	patterns, _ := cmd.Flags().GetStringSlice("source")
	var sources []ingest.Source
	if len(patterns) > 0 {
		if sources, err = ingest.ReadFiles(patterns); err != nil {
			return err
		}
	}
	if err := a.service.Open(cmd.Context(), sources); err != nil {
		return fmt.Errorf("open index (run ingest first or pass --source): %w", err)
	}
	res, err := a.service.Ask(cmd.Context(), strings.Join(args, " "))
	if err != nil {
		return err
	}
	printAnswer(cmd.OutOrStdout(), res)
	return nil
}

func printAnswer(w io.Writer, res domain.QAResult) {
	fmt.Fprintln(w, res.Answer)
	if res.Confidence != nil {
		fmt.Fprintf(w, "\nConfidence: %.0f\n", *res.Confidence)
	}
	if len(res.Citations) == 0 {
		return
	}
	fmt.Fprintln(w, "\nSources:")
	for _, c := range res.Citations {
		fmt.Fprintf(w, "  [Page %d] %s\n", c.Page, c.Snippet)
	}
}
