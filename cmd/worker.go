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

	"github.com/go-co-op/gocron/v2"
	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the background worker",
	Long:  `Start the background worker that periodically re-syncs the comment mirror against the collaboration backend`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	// Load configuration
	cfg, err := config.LoadConfig(".")
	if err != nil {
		return err
	}

	// Configure logging
	if cfg.Environment == "development" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}

	// Set up signal handling for graceful shutdown
	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	// Create an error group to manage goroutines
	g, ctx := errgroup.WithContext(ctx)

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

	// Run the periodic mirror sync. Webhooks keep the mirror current in
	// real time; the scheduled sweep catches deliveries that were missed.
	g.Go(func() error {
		log.Info().Dur("interval", cfg.Backfill.SyncInterval).Msg("Starting mirror sync scheduler")

		scheduler, err := gocron.NewScheduler()
		if err != nil {
			return err
		}

		_, err = scheduler.NewJob(
			gocron.DurationJob(cfg.Backfill.SyncInterval),
			gocron.NewTask(func() {
				log.Info().Msg("Running scheduled mirror sync")
				if err := job.Run(ctx); err != nil {
					log.Error().Err(err).Msg("Scheduled mirror sync failed")
				}
			}),
		)
		if err != nil {
			return err
		}

		// Start the scheduler
		scheduler.Start()

		// Wait for context cancellation
		<-ctx.Done()

		// Shutdown the scheduler
		return scheduler.Shutdown()
	})

	// Wait for any goroutine to exit
	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}
