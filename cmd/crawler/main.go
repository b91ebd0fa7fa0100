// Command crawler runs the scraping pipeline in batch mode: over a YAML
// target list, or over product URLs discovered by crawling the storefront.
package main

import (
	"context"
	"flag"
	"fmt"
	"log/slog"
	"os"

	"github.com/jedib0t/go-pretty/v6/table"
	"github.com/joho/godotenv"
	"gopkg.in/yaml.v3"

	"github.com/dkovalenko/brain-scraper/internal/browser"
	"github.com/dkovalenko/brain-scraper/internal/cache"
	"github.com/dkovalenko/brain-scraper/internal/config"
	"github.com/dkovalenko/brain-scraper/internal/database"
	"github.com/dkovalenko/brain-scraper/internal/discovery"
	"github.com/dkovalenko/brain-scraper/internal/extractor"
	"github.com/dkovalenko/brain-scraper/internal/models"
	"github.com/dkovalenko/brain-scraper/internal/normalizer"
	"github.com/dkovalenko/brain-scraper/internal/pipeline"
	"github.com/dkovalenko/brain-scraper/internal/resolver"
	"github.com/dkovalenko/brain-scraper/internal/scrape"
	"github.com/dkovalenko/brain-scraper/pkg/logger"
)

type target struct {
	Strategy string `yaml:"strategy"`
	URL      string `yaml:"url,omitempty"`
	Query    string `yaml:"query,omitempty"`
}

type targetsFile struct {
	Targets []target `yaml:"targets"`
}

func main() {
	var (
		targetsPath = flag.String("targets", "", "path to a YAML file listing scrape targets")
		discoverURL = flag.String("discover", "", "listing page URL to crawl for product links")
		strategy    = flag.String("strategy", scrape.StrategyStatic, "strategy for discovered URLs")
		dryRun      = flag.Bool("dry-run", false, "run the pipeline without persisting")
	)
	flag.Parse()

	_ = godotenv.Load()

	cfg, err := config.Load()
	if err != nil {
		fmt.Fprintf(os.Stderr, "failed to load config: %v\n", err)
		os.Exit(1)
	}
	log := logger.New(cfg.Logging.Level, cfg.Logging.Format)

	if *targetsPath == "" && *discoverURL == "" {
		log.Error("nothing to do: pass -targets or -discover")
		os.Exit(1)
	}

	ctx, cancel := context.WithCancel(context.Background())
	defer cancel()

	res, err := resolver.New(cfg.Site.BaseURL, cfg.Site.SearchPath)
	if err != nil {
		log.Error("invalid site base url", "error", err)
		os.Exit(1)
	}

	var store pipeline.Store
	if !*dryRun {
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
		store = db
	}

	var urlCache scrape.URLCache
	if redisCache, err := cache.New(ctx, cfg.Redis, log); err != nil {
		log.Warn("redis unavailable, url caching disabled", "error", err)
	} else {
		defer redisCache.Close()
		urlCache = redisCache
	}

	browserOpts := &browser.Options{
		Engine:            "chromium",
		Headless:          cfg.Browser.Headless,
		NavigationTimeout: cfg.Browser.NavigationTimeout,
		UserAgent:         cfg.Fetch.UserAgent,
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

	pipe := pipeline.New(registry, extractor.New(log), normalizer.New(log), store, nil, cfg.Site, log)

	targets, err := collectTargets(cfg, res, *targetsPath, *discoverURL, *strategy, log)
	if err != nil {
		log.Error("failed to collect targets", "error", err)
		os.Exit(1)
	}
	if len(targets) == 0 {
		log.Warn("no targets to process")
		return
	}

	var (
		products []*models.CanonicalProduct
		failed   int
	)
	for i, t := range targets {
		result, err := pipe.Run(ctx, pipeline.Request{
			Strategy: t.Strategy,
			URL:      t.URL,
			Query:    t.Query,
			DryRun:   *dryRun,
		})
		if err != nil {
			log.Error("target failed", "index", i, "strategy", t.Strategy,
				"url", t.URL, "query", t.Query, "error", err)
			failed++
			continue
		}
		products = append(products, result.Product)
	}

	renderSummary(products)
	log.Info("batch complete", "processed", len(products), "failed", failed, "dry_run", *dryRun)
	if failed > 0 {
		os.Exit(1)
	}
}

func collectTargets(cfg *config.Config, res *resolver.Resolver, targetsPath, discoverURL, strategy string, log *slog.Logger) ([]target, error) {
	var targets []target

	if targetsPath != "" {
		data, err := os.ReadFile(targetsPath)
		if err != nil {
			return nil, fmt.Errorf("failed to read targets file: %w", err)
		}
		var file targetsFile
		if err := yaml.Unmarshal(data, &file); err != nil {
			return nil, fmt.Errorf("failed to parse targets file: %w", err)
		}
		targets = append(targets, file.Targets...)
	}

	if discoverURL != "" {
		d := discovery.New(res, discovery.Options{UserAgent: cfg.Fetch.UserAgent}, log)
		urls, err := d.Discover(discoverURL)
		if err != nil {
			return nil, err
		}
		log.Info("discovered product urls", "count", len(urls))
		for _, u := range urls {
			targets = append(targets, target{Strategy: strategy, URL: u})
		}
	}

	return targets, nil
}

// renderSummary prints a table of the processed products.
func renderSummary(products []*models.CanonicalProduct) {
	if len(products) == 0 {
		return
	}

	t := table.NewWriter()
	t.SetOutputMirror(os.Stdout)
	t.AppendHeader(table.Row{"#", "Code", "Name", "Price", "Sale", "Availability", "Color", "Storage"})
	for i, p := range products {
		t.AppendRow(table.Row{
			i + 1, p.ProductCode, p.Name,
			formatPrice(p.Price), formatPrice(p.SalePrice),
			string(p.Availability), p.Color, p.Storage,
		})
	}
	t.Render()
}

func formatPrice(v *float64) string {
	if v == nil {
		return ""
	}
	return fmt.Sprintf("%.2f", *v)
}
