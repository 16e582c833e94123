package main

import (
	"context"
	"fmt"

	"github.com/spf13/cobra"

	"contractrag/internal/watch"
)

// NewWatchCmd creates the watch command.
func NewWatchCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "watch DIR",
		Short: "Re-index a folder of contracts whenever it changes",
		Long: `Watch ingests every PDF and text file in DIR, then rebuilds the index and
analysis each time a file is created, written or removed.`,
		Args: cobra.ExactArgs(1),
		RunE: runWatchCmd,
	}
	cmd.Flags().Duration("debounce", watch.DefaultDebounce, "Quiet period before a rebuild")
	return cmd
}

func runWatchCmd(cmd *cobra.Command, args []string) error {
	a, err := newApp(cmd)
	if err != nil {
		return err
	}
	debounce, _ := cmd.Flags().GetDuration("debounce")
	out := cmd.OutOrStdout()

	rebuild := func(ctx context.Context, files []string) error {
		if len(files) == 0 {
			a.logger.Info("folder is empty, clearing index")
			return a.service.Reset()
		}
		res, err := a.ingestFiles(ctx, files)
		if err != nil {
			return err
		}
		printOverview(out, res)
		return nil
	}
	w := watch.New(args[0], rebuild, watch.WithDebounce(debounce), watch.WithLogger(a.logger))

	files, err := w.Files()
	if err != nil {
		return err
	}
	if err := rebuild(cmd.Context(), files); err != nil {
		return fmt.Errorf("initial ingest: %w", err)
	}
	return w.Run(cmd.Context())
}
