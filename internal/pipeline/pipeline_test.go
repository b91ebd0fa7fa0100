package pipeline

import (
	"context"
	"log/slog"
	"sync"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkovalenko/brain-scraper/internal/config"
	"github.com/dkovalenko/brain-scraper/internal/extractor"
	"github.com/dkovalenko/brain-scraper/internal/models"
	"github.com/dkovalenko/brain-scraper/internal/normalizer"
	"github.com/dkovalenko/brain-scraper/internal/scrape"
)

const fixturePage = `<html><head><script type="application/ld+json">
{
  "@type": "Product",
  "name": "Phone X 128GB Black",
  "sku": "ABC123",
  "offers": {"price": "999.00", "priceCurrency": "UAH", "availability": "https://schema.org/InStock"}
}
</script></head><body></body></html>`

type stubStrategy struct {
	name        string
	queryDriven bool
	body        string
	err         error
	gotTarget   scrape.Target
}

func (s *stubStrategy) Name() string      { return s.name }
func (s *stubStrategy) QueryDriven() bool { return s.queryDriven }
func (s *stubStrategy) Acquire(ctx context.Context, target scrape.Target) (*models.RawPageContent, error) {
	s.gotTarget = target
	if s.err != nil {
		return nil, s.err
	}
	return &models.RawPageContent{
		Body:      s.body,
		Kind:      models.ContentRendered,
		SourceURL: "https://brain.com.ua/phone-x-p1.html",
		FetchedAt: time.Now(),
	}, nil
}

type stubStore struct {
	mu       sync.Mutex
	upserted []*models.CanonicalProduct
}

func (s *stubStore) Upsert(ctx context.Context, p *models.CanonicalProduct) (*models.PersistedProduct, error) {
	s.mu.Lock()
	defer s.mu.Unlock()
	s.upserted = append(s.upserted, p)
	return &models.PersistedProduct{
		ID:               "00000000-0000-0000-0000-000000000001",
		CanonicalProduct: *p,
		CreatedAt:        time.Now(),
		UpdatedAt:        time.Now(),
	}, nil
}

func newTestPipeline(strategies []scrape.Strategy, store Store) *Pipeline {
	registry := scrape.NewRegistry()
	for _, s := range strategies {
		registry.Register(s)
	}
	log := slog.Default()
	return New(registry, extractor.New(log), normalizer.New(log), store, nil,
		config.SiteConfig{
			BaseURL:      "https://brain.com.ua/",
			SearchPath:   "/ukr/search/",
			DefaultQuery: "Apple iPhone 15 128GB Black",
		}, log)
}

func TestPipeline_Validate(t *testing.T) {
	static := &stubStrategy{name: scrape.StrategyStatic}
	auto := &stubStrategy{name: scrape.StrategyPlaywright, queryDriven: true}
	p := newTestPipeline([]scrape.Strategy{static, auto}, &stubStore{})

	t.Run("unknown strategy", func(t *testing.T) {
		_, _, err := p.Validate(Request{Strategy: "selenium"})
		assert.ErrorIs(t, err, scrape.ErrUnknownStrategy)
	})

	t.Run("static requires url", func(t *testing.T) {
		_, _, err := p.Validate(Request{Strategy: scrape.StrategyStatic})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("static rejects query", func(t *testing.T) {
		_, _, err := p.Validate(Request{Strategy: scrape.StrategyStatic, Query: "iphone"})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("query-driven defaults query", func(t *testing.T) {
		_, target, err := p.Validate(Request{Strategy: scrape.StrategyPlaywright})
		require.NoError(t, err)
		assert.Equal(t, "Apple iPhone 15 128GB Black", target.Query)
	})

	t.Run("query-driven rejects bare url", func(t *testing.T) {
		_, _, err := p.Validate(Request{
			Strategy: scrape.StrategyPlaywright,
			URL:      "https://brain.com.ua/x-p1.html",
		})
		assert.ErrorIs(t, err, ErrInvalidRequest)
	})

	t.Run("query-driven drops supplied url", func(t *testing.T) {
		_, target, err := p.Validate(Request{
			Strategy: scrape.StrategyPlaywright,
			URL:      "https://brain.com.ua/x-p1.html",
			Query:    "iphone",
		})
		require.NoError(t, err)
		assert.Empty(t, target.URL)
		assert.Equal(t, "iphone", target.Query)
	})
}

func TestPipeline_Run(t *testing.T) {
	t.Run("full run persists", func(t *testing.T) {
		static := &stubStrategy{name: scrape.StrategyStatic, body: fixturePage}
		store := &stubStore{}
		p := newTestPipeline([]scrape.Strategy{static}, store)

		result, err := p.Run(context.Background(), Request{
			Strategy: scrape.StrategyStatic,
			URL:      "https://brain.com.ua/phone-x-p1.html",
		})
		require.NoError(t, err)

		require.NotNil(t, result.Persisted)
		assert.Equal(t, "ABC123", result.Product.ProductCode)
		assert.Equal(t, "Phone X 128GB Black", result.Product.Name)
		require.NotNil(t, result.Product.Price)
		assert.Equal(t, 999.0, *result.Product.Price)
		assert.Equal(t, models.AvailabilityInStock, result.Product.Availability)
		assert.Equal(t, "Black", result.Product.Color)
		assert.Equal(t, "128GB", result.Product.Storage)
		require.Len(t, store.upserted, 1)
	})

	t.Run("dry run skips persistence", func(t *testing.T) {
		static := &stubStrategy{name: scrape.StrategyStatic, body: fixturePage}
		store := &stubStore{}
		p := newTestPipeline([]scrape.Strategy{static}, store)

		result, err := p.Run(context.Background(), Request{
			Strategy: scrape.StrategyStatic,
			URL:      "https://brain.com.ua/phone-x-p1.html",
			DryRun:   true,
		})
		require.NoError(t, err)

		assert.Nil(t, result.Persisted)
		assert.True(t, result.DryRun)
		assert.Empty(t, store.upserted)
	})

	t.Run("acquisition failure aborts", func(t *testing.T) {
		static := &stubStrategy{name: scrape.StrategyStatic, err: scrape.ErrRetrieval}
		store := &stubStore{}
		p := newTestPipeline([]scrape.Strategy{static}, store)

		_, err := p.Run(context.Background(), Request{
			Strategy: scrape.StrategyStatic,
			URL:      "https://brain.com.ua/phone-x-p1.html",
		})
		assert.ErrorIs(t, err, scrape.ErrRetrieval)
		assert.Empty(t, store.upserted)
	})

	t.Run("page without product data fails normalization", func(t *testing.T) {
		static := &stubStrategy{name: scrape.StrategyStatic, body: "<html><body>empty</body></html>"}
		store := &stubStore{}
		p := newTestPipeline([]scrape.Strategy{static}, store)

		_, err := p.Run(context.Background(), Request{
			Strategy: scrape.StrategyStatic,
			URL:      "https://brain.com.ua/phone-x-p1.html",
		})
		assert.ErrorIs(t, err, normalizer.ErrNormalization)
		assert.Empty(t, store.upserted)
	})
}
