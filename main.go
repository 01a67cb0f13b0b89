package main

import (
	"context"
	stderrors "errors"
	"fmt"
	"os"
	"os/signal"
	"syscall"

	"sjsage522/placereviewworker/config"
	"sjsage522/placereviewworker/helpers"
	"sjsage522/placereviewworker/internal/analysis"
	"sjsage522/placereviewworker/internal/browser"
	"sjsage522/placereviewworker/internal/harvest"
	"sjsage522/placereviewworker/internal/page"
	"sjsage522/placereviewworker/internal/place"
	"sjsage522/placereviewworker/logger"
	"sjsage522/placereviewworker/services/cache"
	"sjsage522/placereviewworker/services/metrics"
	"sjsage522/placereviewworker/services/proxy"
	"sjsage522/placereviewworker/services/publisher"
	"sjsage522/placereviewworker/services/sink"
	"sjsage522/placereviewworker/services/worker"

	"github.com/joho/godotenv"
)

const usage = "usage: placereviewworker [reviews|info|menus|keywords|competitors|analyze]"

func main() {
	// Load environment variables
	godotenv.Load()

	// Initialize logger first
	logger.Init()
	log := logger.Default

	// Load and validate configuration
	cfg := config.LoadConfig()
	if err := cfg.Validate(); err != nil {
		log.Fatal().Err(err).Msg("Invalid configuration")
	}

	mode := "reviews"
	if len(os.Args) > 1 {
		mode = os.Args[1]
	}

	log.Info().
		Str("environment", cfg.Environment).
		Str("mode", mode).
		Int("places", len(cfg.PlaceNames)).
		Dur("interval", cfg.HarvestInterval).
		Msg("Starting application")

	// Set up context with cancellation
	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	// Set up signal handling
	sigChan := make(chan os.Signal, 1)
	signal.Notify(sigChan, os.Interrupt, syscall.SIGTERM)

	// Initialize services
	services, err := initializeServices(ctx, cfg)
	if err != nil {
		log.Fatal().Err(err).Msg("Failed to initialize services")
	}
	defer services.Cleanup()

	metrics.Serve(ctx, cfg.MetricsAddr, metrics.InitRegistry())

	diagnostics := helpers.NewLogger(cfg.ErrorLogFile)
	job, err := buildJob(mode, cfg, services, diagnostics)
	if err != nil {
		fmt.Fprintln(os.Stderr, usage)
		log.Fatal().Err(err).Msg("Invalid job")
	}

	// Create and start worker
	w := worker.NewWorker([]worker.Job{job}, diagnostics, cfg.HarvestInterval)

	// Start worker in a goroutine
	workerDone := make(chan error, 1)
	go func() {
		log.Info().Str("job", job.Name()).Msg("Starting place review worker")
		workerDone <- w.Start(ctx)
	}()

	// Wait for shutdown signal or worker exit
	select {
	case sig := <-sigChan:
		log.Info().
			Str("signal", sig.String()).
			Msg("Received shutdown signal")
		cancel()
		// let the current place persist what it collected
		<-workerDone
	case err := <-workerDone:
		if err != nil && !stderrors.Is(err, context.Canceled) {
			log.Error().Err(err).Msg("Worker exited with error")
		} else {
			log.Info().Msg("Worker exited normally")
		}
	}

	// Graceful shutdown
	log.Info().Msg("Shutting down gracefully...")
}

// Services holds all the initialized services
type Services struct {
	Cache     cache.CacheService
	Publisher publisher.Publisher
	MySQL     *sink.MySQLSink
}

// Cleanup cleans up all services
func (s *Services) Cleanup() {
	if s.Publisher != nil {
		s.Publisher.Close()
	}
	if s.MySQL != nil {
		s.MySQL.Close()
	}
}

// initializeServices initializes the services the configured sinks need
func initializeServices(ctx context.Context, cfg *config.Config) (*Services, error) {
	services := &Services{}

	if cfg.MemcacheAddr != "" {
		cacheService := cache.NewMemcacheService(cfg.MemcacheAddr)
		if err := cacheService.Ping(); err != nil {
			logger.Warn("Memcache at %s unreachable, harvest guard disabled: %v", cfg.MemcacheAddr, err)
		} else {
			services.Cache = cacheService
			logger.Info("Connected to Memcache at %s", cfg.MemcacheAddr)
		}
	}

	if cfg.HasFormat("redis") {
		redisPublisher := publisher.NewRedisPublisher(
			cfg.RedisAddr,
			cfg.RedisDB,
			cfg.RedisStream,
			cfg.RedisStreamCount,
			cfg.RedisStreamMaxLength,
		)
		if err := redisPublisher.Ping(ctx); err != nil {
			redisPublisher.Close()
			return nil, fmt.Errorf("failed to connect to redis: %w", err)
		}
		services.Publisher = redisPublisher

		logger.Info("Connected to Redis at %s (DB: %d, Stream: %s)",
			cfg.RedisAddr, cfg.RedisDB, cfg.RedisStream)
	}

	if cfg.HasFormat("mysql") {
		mysqlSink, err := sink.OpenMySQL(ctx, cfg.MySQLDSN)
		if err != nil {
			services.Cleanup()
			return nil, fmt.Errorf("failed to connect to mysql: %w", err)
		}
		if err := mysqlSink.Migrate(ctx); err != nil {
			mysqlSink.Close()
			services.Cleanup()
			return nil, fmt.Errorf("failed to migrate mysql: %w", err)
		}
		services.MySQL = mysqlSink
		logger.Info("Connected to MySQL")
	}

	return services, nil
}

// reviewSink fans reviews out to every configured format
func reviewSink(cfg *config.Config, services *Services) harvest.Sink {
	var sinks sink.Multi
	for _, format := range cfg.OutputFormats {
		switch format {
		case "csv":
			sinks = append(sinks, sink.NewCSVSink(cfg.OutputDir))
		case "xlsx":
			sinks = append(sinks, sink.NewXLSXSink(cfg.OutputDir))
		case "redis":
			sinks = append(sinks, sink.NewStreamSink(services.Publisher))
		case "mysql":
			sinks = append(sinks, services.MySQL)
		}
	}
	if len(sinks) == 1 {
		return sinks[0]
	}
	return sinks
}

func harvestOptions(cfg *config.Config) harvest.Options {
	opts := harvest.DefaultOptions()
	opts.HardMax = cfg.HardMax
	opts.IdleThreshold = cfg.IdleThreshold
	opts.MaxRecoveryPasses = cfg.MaxRecoveryPasses
	opts.MaxRounds = cfg.MaxRounds
	opts.StepFraction = cfg.ScrollStepFraction
	opts.JitterPx = cfg.ScrollJitterPx
	return opts
}

func browserOptions(cfg *config.Config) browser.Options {
	opts := browser.DefaultOptions()
	opts.Headless = cfg.BrowserHeadless
	opts.Proxy = cfg.BrowserProxy
	opts.FrameTimeout = cfg.FrameTimeout
	opts.ActionRate = cfg.ActionRate
	return opts
}

// proxiedSessions opens every session through the fastest pooled proxy,
// falling back to BROWSER_PROXY when none answers
func proxiedSessions(opts browser.Options, selector proxy.Selector) func(ctx context.Context) (page.Page, error) {
	return func(ctx context.Context) (page.Page, error) {
		sessionOpts := opts
		server, err := selector.Fastest(ctx)
		if err != nil {
			logger.Warn("Proxy pool unavailable, using %q: %v", opts.Proxy, err)
		} else {
			sessionOpts.Proxy = server
		}
		return browser.NewSession(ctx, sessionOpts)
	}
}

// buildJob wires the job selected on the command line
func buildJob(mode string, cfg *config.Config, services *Services, diagnostics helpers.LoggerInterface) (worker.Job, error) {
	pacer := page.NewRandomPacer(cfg.PacingScale)
	sessions := browser.Factory(browserOptions(cfg))
	if len(cfg.BrowserProxies) > 0 {
		sessions = proxiedSessions(browserOptions(cfg), proxy.NewPool(cfg.BrowserProxies, cfg.ProxyRefresh))
	}

	runner := place.NewRunner(sessions, pacer, cfg.SearchURL, cfg.FrameTimeout, cfg.OutputDir)
	runner.Diagnostics = diagnostics

	requireNames := func() error {
		if len(cfg.PlaceNames) == 0 {
			return fmt.Errorf("PLACE_NAMES is required for %s", mode)
		}
		return nil
	}

	switch mode {
	case "reviews":
		if len(cfg.PlaceNames) == 0 && cfg.SearchQuery == "" {
			return nil, fmt.Errorf("PLACE_NAMES or SEARCH_QUERY is required for reviews")
		}
		h := &harvest.Harvester{
			NewSession:   harvest.SessionFactory(sessions),
			Sink:         reviewSink(cfg, services),
			Pacer:        pacer,
			Options:      harvestOptions(cfg),
			SearchURL:    cfg.SearchURL,
			FrameTimeout: cfg.FrameTimeout,
			Diagnostics:  diagnostics,
		}
		if services.Cache != nil {
			h.Guard = cache.NewHarvestGuard(services.Cache, cfg.HarvestCooldown)
			h.Force = cfg.ForceHarvest
		}
		return worker.NewJob(mode, func(ctx context.Context) error {
			names := cfg.PlaceNames
			if len(names) == 0 {
				found, _, err := runner.Competitors(ctx, cfg.SearchQuery, cfg.CompetitorLimit)
				if err != nil {
					return err
				}
				names = found
			}
			sum := h.Run(ctx, names)
			logger.ForHarvester().Info().
				Int("harvested", sum.Harvested).
				Int("failed", sum.Failed).
				Int("skipped", sum.Skipped).
				Int("collected", sum.Collected).
				Msg("batch complete")
			if sum.Failed > 0 && sum.Harvested == 0 && sum.Skipped == 0 {
				return fmt.Errorf("all %d places failed", sum.Failed)
			}
			return nil
		}), nil

	case "info":
		if err := requireNames(); err != nil {
			return nil, err
		}
		return worker.NewJob(mode, func(ctx context.Context) error {
			_, _, err := runner.Info(ctx, cfg.PlaceNames)
			return err
		}), nil

	case "menus":
		if err := requireNames(); err != nil {
			return nil, err
		}
		return worker.NewJob(mode, func(ctx context.Context) error {
			if failed := runner.Menus(ctx, cfg.PlaceNames); failed == len(cfg.PlaceNames) {
				return fmt.Errorf("menus failed for every place")
			}
			return nil
		}), nil

	case "keywords":
		if err := requireNames(); err != nil {
			return nil, err
		}
		return worker.NewJob(mode, func(ctx context.Context) error {
			_, _, err := runner.Keywords(ctx, cfg.PlaceNames)
			return err
		}), nil

	case "competitors":
		if cfg.SearchQuery == "" {
			return nil, fmt.Errorf("SEARCH_QUERY is required for competitors")
		}
		return worker.NewJob(mode, func(ctx context.Context) error {
			_, _, err := runner.Competitors(ctx, cfg.SearchQuery, cfg.CompetitorLimit)
			return err
		}), nil

	case "analyze":
		var dict map[string]analysis.Polarity
		if cfg.SentimentDictPath != "" {
			d, err := analysis.LoadDictionary(cfg.SentimentDictPath)
			if err != nil {
				return nil, err
			}
			dict = d
			logger.Info("Loaded %d sentiment dictionary entries", len(dict))
		}
		pipeline := analysis.NewPipeline(
			analysis.NewLoader(cfg.AnalysisInputDir, cfg.AnalysisInputCharset),
			analysis.NewLexicon(dict),
			cfg.OutputDir,
		)
		return worker.NewJob(mode, func(ctx context.Context) error {
			_, err := pipeline.Run(ctx)
			return err
		}), nil
	}
	return nil, fmt.Errorf("unknown mode %q", mode)
}
