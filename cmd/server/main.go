package main

import (
	"context"
	"fmt"
	"net/http"
	"os"
	"os/signal"
	"syscall"

	"github.com/joho/godotenv"

	"github.com/dkovalenko/brain-scraper/internal/api"
	"github.com/dkovalenko/brain-scraper/internal/browser"
	"github.com/dkovalenko/brain-scraper/internal/cache"
	"github.com/dkovalenko/brain-scraper/internal/config"
	"github.com/dkovalenko/brain-scraper/internal/database"
	"github.com/dkovalenko/brain-scraper/internal/extractor"
	"github.com/dkovalenko/brain-scraper/internal/normalizer"
	"github.com/dkovalenko/brain-scraper/internal/observability"
	"github.com/dkovalenko/brain-scraper/internal/pipeline"
	"github.com/dkovalenko/brain-scraper/internal/resolver"
	"github.com/dkovalenko/brain-scraper/internal/scrape"
	"github.com/dkovalenko/brain-scraper/pkg/logger"
)

func main() {
	// Missing .env is fine; real deployments configure via environment.
	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}

	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	if err := cfg.Validate(); err != nil {
		log.Error("invalid configuration", "error", err)
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	db, err := database.New(ctx, cfg.Database)
	if err != nil {
		log.Error("failed to connect to database", "error", err)
		os.Exit(1)
	}
	defer db.Close()

	if err := db.Migrate(ctx); err != nil {
		log.Error("failed to apply schema", "error", err)
		os.Exit(1)
	}

	// The URL cache is an optimization; run without it if redis is down.
	var urlCache scrape.URLCache
	redisCache, err := cache.New(ctx, cfg.Redis, log)
	if err != nil {
		log.Warn("redis unavailable, url caching disabled", "error", err)
	} else {
		defer redisCache.Close()
		urlCache = redisCache
	}

	res, err := resolver.New(cfg.Site.BaseURL, cfg.Site.SearchPath)
	if err != nil {
		log.Error("invalid site base url", "error", err)
		os.Exit(1)
	}

	browserOpts := &browser.Options{
		Engine:            "chromium",
		Headless:          cfg.Browser.Headless,
		UserAgent:         cfg.Fetch.UserAgent,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		ViewportWidth:     cfg.Browser.ViewportWidth,
		ViewportHeight:    cfg.Browser.ViewportHeight,
		AcceptLanguage:    cfg.Browser.AcceptLanguage,
		TimezoneID:        cfg.Browser.TimezoneID,
		Locale:            cfg.Browser.Locale,
	}

	registry := scrape.NewRegistry()
	registry.Register(scrape.NewStaticStrategy(scrape.StaticOptions{
		Timeout:   cfg.Fetch.Timeout,
		UserAgent: cfg.Fetch.UserAgent,
	}, log))
	registry.Register(scrape.NewPlaywrightStrategy(browserOpts, cfg.Browser.SelectorTimeout, res, urlCache, log))
	registry.Register(scrape.NewChromedpStrategy(browserOpts, cfg.Browser.SelectorTimeout, res, urlCache, log))

	metrics := observability.NewMetrics()
	pipe := pipeline.New(
		registry,
		extractor.New(log),
		normalizer.New(log),
		db,
		metrics,
		cfg.Site,
		log,
	)

	handlers := api.NewHandlers(pipe, db, log)
	router := api.NewRouter(handlers, metrics.Handler())

	server := &http.Server{
		Addr:         cfg.Server.Host + ":" + cfg.Server.Port,
		Handler:      router,
		ReadTimeout:  cfg.Server.ReadTimeout,
		WriteTimeout: cfg.Server.WriteTimeout,
	}

	go func() {
		log.Info("server listening", "addr", server.Addr, "strategies", registry.Names())
		if err := server.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server failed", "error", err)
			cancel()
		}
	}()

	sigCh := make(chan os.Signal, 1)
	signal.Notify(sigCh, syscall.SIGINT, syscall.SIGTERM)
	select {
	case sig := <-sigCh:
		log.Info("shutting down", "signal", sig.String())
	case <-ctx.Done():
	}

	shutdownCtx, shutdownCancel := context.WithTimeout(context.Background(), cfg.Server.ShutdownTimeout)
	defer shutdownCancel()
	if err := server.Shutdown(shutdownCtx); err != nil {
		log.Error("graceful shutdown failed", "error", err)
	}
}
