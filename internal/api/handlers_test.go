package api

import (
	"context"
	"encoding/json"
	"log/slog"
	"net/http"
	"net/http/httptest"
	"strings"
	"testing"
	"time"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"

	"github.com/dkovalenko/brain-scraper/internal/config"
	"github.com/dkovalenko/brain-scraper/internal/extractor"
	"github.com/dkovalenko/brain-scraper/internal/models"
	"github.com/dkovalenko/brain-scraper/internal/normalizer"
	"github.com/dkovalenko/brain-scraper/internal/pipeline"
	"github.com/dkovalenko/brain-scraper/internal/scrape"
)

const fixturePage = `<html><head><script type="application/ld+json">
{"@type": "Product", "name": "Phone X", "sku": "ABC123",
 "offers": {"price": "999.00", "priceCurrency": "UAH"}}
</script></head><body></body></html>`

type stubStrategy struct {
	name string
	body string
	err  error
}

func (s *stubStrategy) Name() string      { return s.name }
func (s *stubStrategy) QueryDriven() bool { return false }
func (s *stubStrategy) Acquire(ctx context.Context, target scrape.Target) (*models.RawPageContent, error) {
	if s.err != nil {
		return nil, s.err
	}
	return &models.RawPageContent{
		Body:      s.body,
		Kind:      models.ContentStatic,
		SourceURL: target.URL,
		FetchedAt: time.Now(),
	}, nil
}

func newTestHandlers(strategy scrape.Strategy) *Handlers {
	registry := scrape.NewRegistry()
	registry.Register(strategy)
	log := slog.Default()
	pipe := pipeline.New(registry, extractor.New(log), normalizer.New(log), nil, nil,
		config.SiteConfig{BaseURL: "https://brain.com.ua/"}, log)
	return NewHandlers(pipe, nil, log)
}

func TestScrape_DryRun(t *testing.T) {
	h := newTestHandlers(&stubStrategy{name: scrape.StrategyStatic, body: fixturePage})

	req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(
		`{"strategy":"static","url":"https://brain.com.ua/phone-x-p1.html","dry_run":true}`))
	rec := httptest.NewRecorder()
	h.Scrape(rec, req)

	require.Equal(t, http.StatusOK, rec.Code)

	var result pipeline.Result
	require.NoError(t, json.Unmarshal(rec.Body.Bytes(), &result))
	assert.Equal(t, "ABC123", result.Product.ProductCode)
	assert.True(t, result.DryRun)
	assert.Nil(t, result.Persisted)
}

func TestScrape_ErrorMapping(t *testing.T) {
	testCases := []struct {
		name       string
		strategy   scrape.Strategy
		body       string
		wantStatus int
	}{
		{
			name:       "invalid request body",
			strategy:   &stubStrategy{name: scrape.StrategyStatic},
			body:       `{not json`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "unknown strategy",
			strategy:   &stubStrategy{name: scrape.StrategyStatic},
			body:       `{"strategy":"selenium","url":"https://x/p1.html"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "missing url",
			strategy:   &stubStrategy{name: scrape.StrategyStatic},
			body:       `{"strategy":"static"}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "retrieval failure",
			strategy:   &stubStrategy{name: scrape.StrategyStatic, err: scrape.ErrRetrieval},
			body:       `{"strategy":"static","url":"https://x/p1.html"}`,
			wantStatus: http.StatusBadGateway,
		},
		{
			name:       "no search result",
			strategy:   &stubStrategy{name: scrape.StrategyStatic, err: scrape.ErrNoSearchResult},
			body:       `{"strategy":"static","url":"https://x/p1.html"}`,
			wantStatus: http.StatusNotFound,
		},
		{
			name:       "unusable page",
			strategy:   &stubStrategy{name: scrape.StrategyStatic, body: "<html></html>"},
			body:       `{"strategy":"static","url":"https://x/p1.html","dry_run":true}`,
			wantStatus: http.StatusBadRequest,
		},
		{
			name:       "timeout",
			strategy:   &stubStrategy{name: scrape.StrategyStatic, err: context.DeadlineExceeded},
			body:       `{"strategy":"static","url":"https://x/p1.html"}`,
			wantStatus: http.StatusGatewayTimeout,
		},
	}

	for _, tc := range testCases {
		t.Run(tc.name, func(t *testing.T) {
			h := newTestHandlers(tc.strategy)
			req := httptest.NewRequest(http.MethodPost, "/api/v1/scrape", strings.NewReader(tc.body))
			rec := httptest.NewRecorder()
			h.Scrape(rec, req)
			assert.Equal(t, tc.wantStatus, rec.Code)
		})
	}
}
