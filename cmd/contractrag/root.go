package main

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"
	"github.com/spf13/cobra"

	"contractrag/internal/config"
	"contractrag/internal/embedding"
	"contractrag/internal/ingest"
	"contractrag/internal/llm"
	"contractrag/internal/logging"
	"contractrag/internal/service"
)

// NewRootCmd creates the root command.
func NewRootCmd() *cobra.Command {
	cmd := &cobra.Command{
		Use:   "contractrag",
		Short: "Contract question answering and risk review",
		Long: `contractrag ingests PDF and text contracts, builds a page-aware vector
index, extracts key clauses, scores red flags and answers questions with
page citations.

A hosted model is used when GOOGLE_API_KEY is set; otherwise a local model
or the built-in heuristics answer.`,
		SilenceUsage:  true,
		SilenceErrors: true,
	}

	cmd.PersistentFlags().StringP("config", "c", "",
		"Config file (default: ./config.yaml, then the user config directory)")
	cmd.PersistentFlags().BoolP("verbose", "v", false, "Enable debug logging")

	cmd.AddCommand(NewIngestCmd())
	cmd.AddCommand(NewAskCmd())
	cmd.AddCommand(NewAnalyzeCmd())
	cmd.AddCommand(NewExportCmd())
	cmd.AddCommand(NewTUICmd())
	cmd.AddCommand(NewWatchCmd())
	cmd.AddCommand(NewResetCmd())

	return cmd
}

// Execute runs the root command.
func Execute() {
	ctx, stop := signal.NotifyContext(context.Background(), os.Interrupt, syscall.SIGTERM)
	defer stop()
	if err := NewRootCmd().ExecuteContext(ctx); err != nil {
		fmt.Fprintln(os.Stderr, err)
		stop()
		os.Exit(1)
	}
}

// app bundles everything a subcommand needs.
type app struct {
	cfg     *config.AppConfig
	logger  *slog.Logger
	service *service.Service
}

func newApp(cmd *cobra.Command) (*app, error) {
	_ = godotenv.Load()

	cfg, err := loadConfig(cmd)
	if err != nil {
		return nil, err
	}
	if err := cfg.Validate(); err != nil {
		return nil, fmt.Errorf("configuration error: %w", err)
	}

	level := cfg.Logging.Level
	if verbose, _ := cmd.Flags().GetBool("verbose"); verbose {
		level = "debug"
	}
	logger := logging.New(cmd.ErrOrStderr(), level, cfg.Logging.Format)

	embedder := embedding.New(cfg.Embedder, logger)
	model := llm.New(cmd.Context(), cfg.LLM, logger)
	svc, err := service.New(cfg, embedder, model, logger)
	if err != nil {
		return nil, err
	}
	logger.Debug("service ready", "embedder", embedder.Name(), "model", model.Name())
	return &app{cfg: cfg, logger: logger, service: svc}, nil
}

func loadConfig(cmd *cobra.Command) (*config.AppConfig, error) {
	path, _ := cmd.Flags().GetString("config")
	if path != "" {
		return config.Load(path)
	}
	cfg, _, err := config.LoadDefault()
	return cfg, err
}

// ingestFiles reads patterns and runs a full ingestion.
func (a *app) ingestFiles(ctx context.Context, patterns []string) (*service.Analysis, error) {
	sources, err := ingest.ReadFiles(patterns)
	if err != nil {
		return nil, err
	}
	if len(sources) == 0 {
		return nil, fmt.Errorf("no files matched %v", patterns)
	}
	return a.service.Ingest(ctx, sources)
}

func printOverview(w io.Writer, a *service.Analysis) {
	fmt.Fprintf(w, "Run %s: %d document(s), %d chunk(s), %d clause(s), %d red flag(s)\n",
		a.RunID, len(a.Documents), a.ChunkCount, len(a.Clauses), len(a.RedFlags))
	fmt.Fprintf(w, "Risk index %d (%s) using %s / %s\n", a.Risk.Index, a.Risk.Level, a.Embedder, a.Model)
}
