package cmd

import (
	"context"
	"os"
	"os/signal"
	"syscall"

	"github.com/rs/zerolog"
	"github.com/rs/zerolog/log"
	"github.com/spf13/cobra"
	"golang.org/x/sync/errgroup"

	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/config"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/api"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/cache"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/database"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/eventstore"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/fanout"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/messaging"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/metrics"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/partners"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/scheduler"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/search"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/services"
	"github.com/rnrlcrm/Commodity-erp-rnrl-sub000/internal/tracing"
)

var workerCmd = &cobra.Command{
	Use:   "worker",
	Short: "Start the trade desk worker",
	Long:  `Start the background worker: outbox relay, EOD expiry sweep and ops HTTP server`,
	RunE:  runWorker,
}

func init() {
	rootCmd.AddCommand(workerCmd)
}

func runWorker(cmd *cobra.Command, args []string) error {
	cfg, err := config.LoadConfig(configPath)
	if err != nil {
		return err
	}

	configureLogging(cfg)

	ctx, stop := signal.NotifyContext(context.Background(),
		os.Interrupt, syscall.SIGTERM, syscall.SIGINT)
	defer stop()

	g, ctx := errgroup.WithContext(ctx)

	db, readOnlyDB, err := database.Connect(cfg.DB)
	if err != nil {
		return err
	}
	if err := database.Migrate(db); err != nil {
		return err
	}

	redisCache := cache.NewRedisCache(cfg.Redis)
	defer redisCache.Close()

	tracer, err := tracing.NewTracer(cfg.Tracing)
	if err != nil {
		log.Warn().Err(err).Msg("Failed to initialize tracer, continuing without tracing")
	}

	metricsCollector := metrics.New()

	var indexer fanout.Indexer
	if cfg.Elastic.Enabled {
		eventIndexer, err := search.NewEventIndexer(cfg.Elastic)
		if err != nil {
			log.Warn().Err(err).Msg("Failed to initialize Elasticsearch, continuing without search indexing")
		} else {
			indexer = eventIndexer
		}
	}

	broadcaster, err := messaging.NewBroadcaster(cfg)
	if err != nil {
		return err
	}
	defer broadcaster.Close()

	eventStore := eventstore.NewGormStore(db)

	// Partner metrics come from the master data platform; until that feed is
	// wired the directory degrades every precheck to worst-case scoring.
	directory := partners.NewCached(partners.Unavailable{}, redisCache)

	requirementService := services.NewRequirementService(db, readOnlyDB, eventStore, directory, redisCache, metricsCollector, tracer)
	availabilityService := services.NewAvailabilityService(db, readOnlyDB, eventStore, directory, redisCache, metricsCollector, tracer)

	relay := fanout.NewRelay(eventStore, fanout.NewRouter(), broadcaster, indexer, metricsCollector, cfg.Relay)
	relay.Start()
	defer relay.Stop()

	sweeper := scheduler.NewSweeper(requirementService, availabilityService, metricsCollector, cfg.Scheduler)
	if err := sweeper.Start(ctx); err != nil {
		return err
	}
	defer func() {
		if err := sweeper.Shutdown(); err != nil {
			log.Error().Err(err).Msg("Sweeper shutdown error")
		}
	}()

	server := api.NewServer(cfg, db, redisCache)
	g.Go(server.Start)
	g.Go(func() error {
		<-ctx.Done()
		return server.Shutdown(context.Background())
	})

	log.Info().
		Str("environment", cfg.Environment).
		Str("broker", cfg.Messaging.Broker).
		Msg("Trade desk worker started")

	if err := g.Wait(); err != nil {
		log.Error().Err(err).Msg("Worker error")
		return err
	}

	log.Info().Msg("Worker shutting down gracefully")
	return nil
}

func configureLogging(cfg config.Config) {
	if level, err := zerolog.ParseLevel(cfg.LogLevel); err == nil && cfg.LogLevel != "" {
		zerolog.SetGlobalLevel(level)
	}
	if cfg.Environment == "development" || cfg.LogFormat == "console" {
		log.Logger = log.Output(zerolog.ConsoleWriter{Out: os.Stderr})
	}
}
