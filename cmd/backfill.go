package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/verdad/services/notifier/config"
	"example.com/verdad/services/notifier/internal/backfill"
	"example.com/verdad/services/notifier/internal/database"
	"example.com/verdad/services/notifier/internal/liveblocks"
	"example.com/verdad/services/notifier/internal/metrics"
	"example.com/verdad/services/notifier/internal/repositories"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var backfillCmd = &cobra.Command{
	Use:   "backfill",
	Short: "Mirror all historical comments",
	Long:  `Walk every room and thread in the collaboration backend and upsert all comments into the local mirror`,
	RunE:  runBackfill,
}

func init() {
	rootCmd.AddCommand(backfillCmd)
}

func runBackfill(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// A signal cancels the context and aborts in-flight page fetches
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Initialize database connection
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)

	collab := liveblocks.NewClient(cfg.Liveblocks)
	commentRepo := repositories.NewCommentRepository(db)
	metricsCollector := metrics.NewMetrics()

	job := backfill.NewJob(collab, commentRepo, cfg.Backfill.Concurrency, cfg.Backfill.ChunkSize, metricsCollector)

	log.Info().
		Int("concurrency", cfg.Backfill.Concurrency).
		Int("chunk_size", cfg.Backfill.ChunkSize).
		Msg("Starting backfill")

	if err := job.Run(ctx); err != nil {
		return err
	}

	counters, _, _ := metricsCollector.Snapshot()
	for name, value := range counters {
		log.Info().Int64(name, value).Msg("Backfill counter")
	}
	return nil
}
