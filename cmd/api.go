package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"example.com/verdad/services/notifier/config"
	"example.com/verdad/services/notifier/internal/api"
	"example.com/verdad/services/notifier/internal/api/handlers"
	"example.com/verdad/services/notifier/internal/cache"
	"example.com/verdad/services/notifier/internal/database"
	"example.com/verdad/services/notifier/internal/identity"
	"example.com/verdad/services/notifier/internal/liveblocks"
	"example.com/verdad/services/notifier/internal/mailer"
	"example.com/verdad/services/notifier/internal/messaging"
	"example.com/verdad/services/notifier/internal/metrics"
	"example.com/verdad/services/notifier/internal/repositories"
	"example.com/verdad/services/notifier/internal/search"
	"example.com/verdad/services/notifier/internal/services"
	"example.com/verdad/services/notifier/internal/tracing"
	"example.com/verdad/services/notifier/internal/webhook"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
)

var apiCmd = &cobra.Command{
	Use:   "api",
	Short: "Start the API server",
	Long:  `Start the HTTP API server to handle webhook deliveries, auth, and user lookups`,
	RunE:  runAPI,
}

func init() {
	rootCmd.AddCommand(apiCmd)
}

func runAPI(cmd *cobra.Command, args []string) error {
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

	// Initialize database connection
	db, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	defer database.Close(db)

	// Initialize cache
	redisCache, err := cache.NewRedisCache(cfg.Redis)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Redis cache, continuing without caching")
		redisCache = &cache.RedisCache{}
	}

	// Initialize tracer
	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
		tracer = &tracing.NewRelicTracer{}
	}

	// Initialize Elasticsearch client
	elasticClient, err := search.NewElasticClient(cfg.Elastic)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize Elasticsearch client, continuing without search functionality")
		elasticClient = &search.ElasticClient{}
	}

	// Initialize the webhook signature verifier
	verifier, err := webhook.NewVerifier(cfg.Liveblocks.WebhookSecret)
	if err != nil {
		return err
	}

	// Initialize event publisher
	publisher, err := messaging.NewEventPublisher(cfg.Azure)
	if err != nil {
		return err
	}
	defer publisher.Close()

	// Initialize external clients
	collab := liveblocks.NewClient(cfg.Liveblocks)
	identityClient := identity.NewClient(cfg.Identity)
	resend := mailer.NewResendMailer(cfg.Mail)

	// Initialize metrics
	metricsCollector := metrics.NewMetrics()

	// Initialize repositories and services
	commentRepo := repositories.NewCommentRepository(db)
	reactionRepo := repositories.NewReactionRepository(db)
	templateRepo := repositories.NewTemplateRepository(db)
	profileRepo := repositories.NewProfileRepository(db)

	alertService := services.NewAlertService(resend, cfg.Mail.SlackEmail, cfg.BaseURL, metricsCollector)
	commentService := services.NewCommentService(commentRepo, reactionRepo, collab, elasticClient, metricsCollector, tracer)
	notificationService := services.NewNotificationService(templateRepo, redisCache, collab, resend, alertService, cfg.BaseURL, metricsCollector, tracer)
	profileService := services.NewProfileService(profileRepo, redisCache)

	// Initialize and start the server
	server := api.NewServer(cfg, api.Handlers{
		Webhook:  handlers.NewWebhookHandler(verifier, commentService, notificationService, alertService, publisher, metricsCollector, tracer),
		Auth:     handlers.NewAuthHandler(collab),
		Users:    handlers.NewUsersHandler(profileService),
		Metrics:  handlers.NewMetricsHandler(metricsCollector),
		Identity: identityClient,
	})

	// Start the server in a goroutine
	go func() {
		if err := server.Start(); err != nil {
			log.Error().Err(err).Msg("Server error")
		}
	}()

	// Wait for termination signal
	<-ctx.Done()

	// Shutdown the server
	if err := server.Shutdown(context.Background()); err != nil {
		log.Error().Err(err).Msg("Server shutdown error")
	}

	log.Info().Msg("Shutting down API server")
	return nil
}
