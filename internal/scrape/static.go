package scrape

import (
	"context"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"time"

	"github.com/dkovalenko/brain-scraper/internal/models"
)

// StaticStrategy fetches the target page with a single HTTP GET and no script
// execution. It requires a direct URL and never retries.
type StaticStrategy struct {
	client    *http.Client
	userAgent string
	logger    *slog.Logger
}

type StaticOptions struct {
	Timeout   time.Duration
	UserAgent string
}

func NewStaticStrategy(opts StaticOptions, logger *slog.Logger) *StaticStrategy {
	transport := &http.Transport{
		Proxy:                 http.ProxyFromEnvironment,
		ForceAttemptHTTP2:     true,
		MaxIdleConns:          100,
		IdleConnTimeout:       90 * time.Second,
		TLSHandshakeTimeout:   10 * time.Second,
		ExpectContinueTimeout: 1 * time.Second,
	}

	return &StaticStrategy{
		client: &http.Client{
			Timeout:   opts.Timeout,
			Transport: transport,
		},
		userAgent: opts.UserAgent,
		logger:    logger.With("component", "static_strategy"),
	}
}

func (s *StaticStrategy) Name() string { return StrategyStatic }

func (s *StaticStrategy) QueryDriven() bool { return false }

func (s *StaticStrategy) Acquire(ctx context.Context, target Target) (*models.RawPageContent, error) {
	req, err := http.NewRequestWithContext(ctx, http.MethodGet, target.URL, nil)
	if err != nil {
		return nil, fmt.Errorf("%w: building request for %s: %v", ErrRetrieval, target.URL, err)
	}

	req.Header.Set("User-Agent", s.userAgent)
	req.Header.Set("Accept", "text/html,application/xhtml+xml,application/xml;q=0.9,image/webp,*/*;q=0.8")
	req.Header.Set("Accept-Language", "uk-UA,uk;q=0.9,en;q=0.8")
	req.Header.Set("Upgrade-Insecure-Requests", "1")

	resp, err := s.client.Do(req)
	if err != nil {
		return nil, fmt.Errorf("%w: GET %s: %v", ErrRetrieval, target.URL, err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		return nil, fmt.Errorf("%w: GET %s: unexpected status %d", ErrRetrieval, target.URL, resp.StatusCode)
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		return nil, fmt.Errorf("%w: reading body of %s: %v", ErrRetrieval, target.URL, err)
	}

	s.logger.Debug("fetched static page", "url", target.URL, "bytes", len(body))

	return &models.RawPageContent{
		Body:      string(body),
		Kind:      models.ContentStatic,
		SourceURL: target.URL,
		FetchedAt: time.Now(),
	}, nil
}
