package main

import (
	"strings"

	tea "github.com/charmbracelet/bubbletea"
	"github.com/spf13/cobra"

	"contractrag/internal/service"
	"contractrag/internal/tui"
)

// NewTUICmd creates the tui command.
func NewTUICmd() *cobra.Command {
	return &cobra.Command{
		Use:   "tui FILE...",
		Short: "Ingest contracts and ask questions interactively",
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
			m := tui.New(cmd.Context(), a.service, summaryText(res))
			_, err = tea.NewProgram(m, tea.WithAltScreen(), tea.WithContext(cmd.Context())).Run()
			return err
		},
	}
}

func summaryText(a *service.Analysis) string {
	var b strings.Builder
	for i, d := range a.Documents {
		if i > 0 {
			b.WriteString("\n\n")
		}
		b.WriteString(d.Name)
		b.WriteString("\n")
		b.WriteString(a.Summaries[d.Name])
	}
	return b.String()
}
