package main

import (
	"context"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/marketsearch/config"
	"sjsage522/marketsearch/helpers"
	"sjsage522/marketsearch/internal/marketplace"
	"sjsage522/marketsearch/logger"
	"sjsage522/marketsearch/services/cache"
	"sjsage522/marketsearch/services/publisher"
	"sjsage522/marketsearch/services/worker"

	"github.com/joho/godotenv"
)

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	opts, err := parseFlags(os.Args[1:], os.Stderr)
	if err != nil {
		os.Exit(2)
	}

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	if opts.listCategories || opts.listCities {
		var v interface{} = marketplace.Categories()
		if opts.listCities {
			v = marketplace.Cities()
		}
		if err := printJSON(os.Stdout, v); err != nil {
			log.Fatal().Err(err).Msg("Failed to write output")
		}
		return
	}

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, cfg, opts.publish || opts.watch)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	client, err := marketplace.New(cfg, services.Cache)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to create marketplace client")
	}

	w := worker.NewWorker(
		ctx,
		client,
		[]worker.Watch{{Query: opts.query, Options: opts.searchOptions()}},
		services.Publisher,
		services.Cache,
		helpers.NewLogger("worker"),
		cfg.WatchInterval,
	)

	if !opts.watch {
		go func() {
			<-sigChan
			cancel()
		}()
		if err := runOnce(ctx, client, w, opts); err != nil {
			services.Cleanup()
			log.Fatal().Err(err).Str("query", opts.query).Msg("Search failed")
		}
		return
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("query", opts.query).
		Dur("watch_interval", cfg.WatchInterval).
		Msg("Starting watch")

	// Start worker in a goroutine
	workerDone := make(chan error, 1)
	go func() {
		workerDone <- w.Start()
	}()

	// Wait for shutdown signal or worker error
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		<-workerDone
	case err := <-workerDone:
		if err != nil {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// runOnce runs a single search, prints it and optionally publishes its listings
func runOnce(ctx context.Context, client *marketplace.Client, w *worker.Worker, opts *cliOptions) error {
	if opts.raw {
		page, err := client.SearchRaw(ctx, opts.query, opts.searchOptions())
		if err != nil {
			return err
		}
		return printJSON(os.Stdout, page)
	}

	result, err := client.Search(ctx, opts.query, opts.searchOptions())
	if err != nil {
		return err
	}
	if err := printJSON(os.Stdout, result); err != nil {
		return err
	}

	if opts.publish {
		published := w.PublishItems(opts.query, result.Items)
		logger.Info("Published %d of %d listings", published, len(result.Items))
	}
	return nil
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		if err := s.Publisher.Close(); err != nil {
			logger.Error("Failed to close publisher: %v", err)
		}
		s.Publisher = nil
	}
}

// initializeServices initializes the cache and, when needed, the publisher
func initializeServices(ctx context.Context, cfg *config.Config, withPublisher bool) (*Services, error) {
	services := &Services{}

	// Initialize cache service
	services.Cache = cache.New(cfg.MemcacheAddr)
	if cfg.MemcacheAddr == "" {
		logger.Debug("MEMCACHE_ADDR not set, using in-process cache")
	}
	if mc, ok := services.Cache.(*cache.MemcacheService); ok {
		if err := mc.Ping(); err != nil {
			logger.Warn("Memcache at %s unreachable, falling back to in-process cache: %v", cfg.MemcacheAddr, err)
			services.Cache = cache.NewMemoryCache()
		} else {
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	if !withPublisher {
		return services, nil
	}

	// Initialize publisher
	redisPublisher := publisher.NewRedisPublisher(
		ctx,
		cfg.RedisAddr,
		cfg.RedisDB,
		cfg.RedisStream,
		cfg.RedisStreamCount,
		cfg.RedisStreamMaxLength,
	)
	if err := redisPublisher.Ping(); err != nil {
		redisPublisher.Close()
		return nil, fmt.Errorf("failed to connect to redis at %s: %w", cfg.RedisAddr, err)
	}
	services.Publisher = redisPublisher

	logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
		cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)

	return services, nil
}
