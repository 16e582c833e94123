package main

import (
	"fmt"
	"io"
	"os"
	"path/filepath"

	"github.com/spf13/cobra"

	"contractrag/internal/report"
)

// NewExportCmd creates the export command.
func NewExportCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "export FILE...",
		Short: "Write an analysis report as JSON or Markdown",
		Long: `Export ingests the given files, optionally answers questions, and writes
a report containing summaries, clauses, red flags and the answers.

Examples:
  contractrag export msa.pdf --format markdown -o report.md
  contractrag export msa.pdf -q "What is the governing law?" -q "Is liability capped?"`,
		Args: cobra.MinimumNArgs(1),
		RunE: runExportCmd,
	}
	cmd.Flags().StringP("format", "f", string(report.FormatJSON), "Report format: json or markdown")
	cmd.Flags().StringP("output", "o", "", "Write the report to this path (default: stdout)")
	cmd.Flags().StringArrayP("question", "q", nil, "Question to answer and include in the report")
	return cmd
}

func runExportCmd(cmd *cobra.Command, args []string) error {
	formatName, _ := cmd.Flags().GetString("format")
	format, err := report.ParseFormat(formatName)
	if err != nil {
		return err
	}
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	res, err := a.ingestFiles(cmd.Context(), args)
	if err != nil {
		return err
	}
	questions, _ := cmd.Flags().GetStringArray("question")
	for _, q := range questions {
		if _, err := a.service.Ask(cmd.Context(), q); err != nil {
			return err
		}
	}

	var out io.Writer = cmd.OutOrStdout()
	path, _ := cmd.Flags().GetString("output")
	if path != "" {
		if err := os.MkdirAll(filepath.Dir(path), 0o755); err != nil {
			return fmt.Errorf("create output directory: %w", err)
		}
		f, err := os.Create(path)
		if err != nil {
			return fmt.Errorf("create report file: %w", err)
		}
		defer f.Close()
		out = f
	}

	w, err := report.NewWriter(format, out)
	if err != nil {
		return err
	}
	if err := w.Write(report.Build(res, a.service.History())); err != nil {
		return fmt.Errorf("write report: %w", err)
	}
	if path != "" {
		a.logger.Info("report written", "path", path, "format", string(format))
	}
	return nil
}
