// Package pipeline orchestrates a product acquisition end to end: strategy
// dispatch, extraction, normalization, validation and persistence. Each stage
// either completes or fails the whole invocation; there are no partial writes.
package pipeline

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"time"

	"github.com/dkovalenko/brain-scraper/internal/config"
	"github.com/dkovalenko/brain-scraper/internal/extractor"
	"github.com/dkovalenko/brain-scraper/internal/models"
	"github.com/dkovalenko/brain-scraper/internal/normalizer"
	"github.com/dkovalenko/brain-scraper/internal/scrape"
)

// ErrInvalidRequest covers request shapes that can be rejected before any
// network activity.
var ErrInvalidRequest = errors.New("invalid request")

// Request describes one pipeline invocation. Strategy is mandatory. URL and
// Query requirements depend on the chosen strategy; see Validate.
type Request struct {
	Strategy string `json:"strategy"`
	URL      string `json:"url,omitempty"`
	Query    string `json:"query,omitempty"`
	// DryRun runs every stage except persistence.
	DryRun bool `json:"dry_run,omitempty"`
}

// Result is the outcome of a successful invocation. Persisted is nil on dry
// runs.
type Result struct {
	Product   *models.CanonicalProduct `json:"product"`
	Persisted *models.PersistedProduct `json:"persisted,omitempty"`
	Strategy  string                   `json:"strategy"`
	SourceURL string                   `json:"source_url"`
	DryRun    bool                     `json:"dry_run"`
	Elapsed   time.Duration            `json:"-"`
}

// Store persists canonical products keyed by product code.
type Store interface {
	Upsert(ctx context.Context, product *models.CanonicalProduct) (*models.PersistedProduct, error)
}

// Metrics receives stage timings and invocation outcomes. Implementations
// must tolerate concurrent calls.
type Metrics interface {
	ObserveStage(stage string, elapsed time.Duration)
	RecordRun(strategy, outcome string)
}

// Stage names reported to metrics and logs.
const (
	StageAcquire   = "acquire"
	StageExtract   = "extract"
	StageNormalize = "normalize"
	StagePersist   = "persist"
)

type Pipeline struct {
	registry   *scrape.Registry
	extractor  *extractor.Extractor
	normalizer *normalizer.Normalizer
	store      Store
	metrics    Metrics
	site       config.SiteConfig
	logger     *slog.Logger
}

func New(
	registry *scrape.Registry,
	ext *extractor.Extractor,
	norm *normalizer.Normalizer,
	store Store,
	metrics Metrics,
	site config.SiteConfig,
	logger *slog.Logger,
) *Pipeline {
	return &Pipeline{
		registry:   registry,
		extractor:  ext,
		normalizer: norm,
		store:      store,
		metrics:    metrics,
		site:       site,
		logger:     logger.With("component", "pipeline"),
	}
}

// Validate resolves the strategy and checks the request shape against it.
// It performs no network activity. The returned target carries the effective
// URL/query after defaulting.
func (p *Pipeline) Validate(req Request) (scrape.Strategy, scrape.Target, error) {
	strategy, err := p.registry.Get(req.Strategy)
	if err != nil {
		return nil, scrape.Target{}, err
	}

	target := scrape.Target{URL: req.URL, Query: req.Query}

	if strategy.QueryDriven() {
		if target.Query == "" {
			if target.URL != "" {
				// A bare URL on a query-driven strategy is a caller mistake,
				// not something to paper over with the default query.
				return nil, scrape.Target{}, fmt.Errorf(
					"%w: strategy %q resolves targets from a query, not a url", ErrInvalidRequest, strategy.Name())
			}
			target.Query = p.site.DefaultQuery
			p.logger.Debug("no query supplied, using default",
				"strategy", strategy.Name(), "query", target.Query)
		}
		if target.URL != "" {
			// Query-driven strategies resolve their own URL; a supplied one
			// is informational at best.
			p.logger.Debug("ignoring url for query-driven strategy",
				"strategy", strategy.Name(), "url", target.URL)
			target.URL = ""
		}
		return strategy, target, nil
	}

	if target.Query != "" {
		return nil, scrape.Target{}, fmt.Errorf(
			"%w: strategy %q is url-driven and does not accept a query", ErrInvalidRequest, strategy.Name())
	}
	if target.URL == "" {
		return nil, scrape.Target{}, fmt.Errorf(
			"%w: strategy %q requires a url", ErrInvalidRequest, strategy.Name())
	}
	return strategy, target, nil
}

// Run executes the full pipeline for one request.
func (p *Pipeline) Run(ctx context.Context, req Request) (*Result, error) {
	started := time.Now()

	strategy, target, err := p.Validate(req)
	if err != nil {
		p.recordRun(req.Strategy, "rejected")
		return nil, err
	}

	logger := p.logger.With("strategy", strategy.Name())
	logger.Info("starting acquisition", "url", target.URL, "query", target.Query)

	content, err := p.acquire(ctx, strategy, target)
	if err != nil {
		p.recordRun(strategy.Name(), "acquire_failed")
		return nil, err
	}
	logger = logger.With("url", content.SourceURL)

	attrs := p.extract(content)

	product, err := p.normalize(attrs, content.SourceURL)
	if err != nil {
		p.recordRun(strategy.Name(), "normalize_failed")
		return nil, err
	}

	if problems := product.Validate(); len(problems) > 0 {
		p.recordRun(strategy.Name(), "invalid_product")
		return nil, fmt.Errorf("%w: product failed validation: %v",
			normalizer.ErrNormalization, problems)
	}

	result := &Result{
		Product:   product,
		Strategy:  strategy.Name(),
		SourceURL: content.SourceURL,
		DryRun:    req.DryRun,
	}

	if req.DryRun {
		logger.Info("dry run complete, skipping persistence",
			"product_code", product.ProductCode, "elapsed", time.Since(started))
		p.recordRun(strategy.Name(), "dry_run")
		result.Elapsed = time.Since(started)
		return result, nil
	}

	persisted, err := p.persist(ctx, product)
	if err != nil {
		p.recordRun(strategy.Name(), "persist_failed")
		return nil, err
	}
	result.Persisted = persisted
	result.Elapsed = time.Since(started)

	logger.Info("pipeline complete",
		"product_code", product.ProductCode,
		"id", persisted.ID,
		"elapsed", result.Elapsed)
	p.recordRun(strategy.Name(), "ok")
	return result, nil
}

func (p *Pipeline) acquire(ctx context.Context, strategy scrape.Strategy, target scrape.Target) (*models.RawPageContent, error) {
	defer p.observe(StageAcquire, time.Now())
	return strategy.Acquire(ctx, target)
}

func (p *Pipeline) extract(content *models.RawPageContent) models.RawAttributeMap {
	defer p.observe(StageExtract, time.Now())
	return p.extractor.Extract(content)
}

func (p *Pipeline) normalize(attrs models.RawAttributeMap, sourceURL string) (*models.CanonicalProduct, error) {
	defer p.observe(StageNormalize, time.Now())
	return p.normalizer.Normalize(attrs, sourceURL)
}

func (p *Pipeline) persist(ctx context.Context, product *models.CanonicalProduct) (*models.PersistedProduct, error) {
	defer p.observe(StagePersist, time.Now())
	return p.store.Upsert(ctx, product)
}

func (p *Pipeline) observe(stage string, started time.Time) {
	if p.metrics != nil {
		p.metrics.ObserveStage(stage, time.Since(started))
	}
}

func (p *Pipeline) recordRun(strategy, outcome string) {
	if p.metrics != nil {
		p.metrics.RecordRun(strategy, outcome)
	}
}
