package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/chromedp/cdproto/network"
	"github.com/chromedp/chromedp"
	"github.com/chromedp/chromedp/kb"

	"github.com/dkovalenko/brain-scraper/internal/browser"
	"github.com/dkovalenko/brain-scraper/internal/models"
	"github.com/dkovalenko/brain-scraper/internal/resolver"
)

// blockedResourcePatterns keeps image and media downloads out of automation
// sessions; only markup matters here.
var blockedResourcePatterns = []string{
	"*.png", "*.jpg", "*.jpeg", "*.gif", "*.webp", "*.svg",
	"*.mp4", "*.webm", "*.woff", "*.woff2", "*.ttf",
}

// ChromedpStrategy drives headless Chrome over the DevTools protocol. Like the
// Playwright strategy it launches one browser per acquisition and guarantees
// release via the allocator context.
type ChromedpStrategy struct {
	browserOpts     *browser.Options
	selectorTimeout time.Duration
	resolver        *resolver.Resolver
	cache           URLCache
	logger          *slog.Logger
}

func NewChromedpStrategy(browserOpts *browser.Options, selectorTimeout time.Duration, res *resolver.Resolver, cache URLCache, logger *slog.Logger) *ChromedpStrategy {
	return &ChromedpStrategy{
		browserOpts:     browserOpts,
		selectorTimeout: selectorTimeout,
		resolver:        res,
		cache:           cache,
		logger:          logger.With("component", "chromedp_strategy"),
	}
}

func (s *ChromedpStrategy) Name() string { return StrategyChromedp }

func (s *ChromedpStrategy) QueryDriven() bool { return true }

func (s *ChromedpStrategy) Acquire(ctx context.Context, target Target) (*models.RawPageContent, error) {
	allocOpts := append(chromedp.DefaultExecAllocatorOptions[:],
		chromedp.Flag("headless", s.browserOpts.Headless),
		chromedp.UserAgent(s.browserOpts.UserAgent),
		chromedp.WindowSize(s.browserOpts.ViewportWidth, s.browserOpts.ViewportHeight),
	)

	allocCtx, cancelAlloc := chromedp.NewExecAllocator(ctx, allocOpts...)
	defer cancelAlloc()

	browserCtx, cancelBrowser := chromedp.NewContext(allocCtx)
	defer cancelBrowser()

	if err := chromedp.Run(browserCtx,
		network.Enable(),
		network.SetBlockedURLS(blockedResourcePatterns),
	); err != nil {
		return nil, fmt.Errorf("%w: starting chrome session: %v", ErrRetrieval, err)
	}

	productURL := target.URL
	if target.Query != "" {
		resolved, err := s.resolveProductURL(ctx, browserCtx, target.Query)
		if err != nil {
			return nil, err
		}
		productURL = resolved
	}

	html, err := s.capturePage(browserCtx, productURL)
	if err != nil {
		return nil, err
	}

	return &models.RawPageContent{
		Body:      html,
		Kind:      models.ContentRendered,
		SourceURL: productURL,
		FetchedAt: time.Now(),
	}, nil
}

func (s *ChromedpStrategy) capturePage(browserCtx context.Context, url string) (string, error) {
	navCtx, cancel := context.WithTimeout(browserCtx, s.browserOpts.NavigationTimeout)
	defer cancel()

	var html string
	err := chromedp.Run(navCtx,
		chromedp.Navigate(url),
		chromedp.WaitReady("body", chromedp.ByQuery),
		chromedp.OuterHTML("html", &html, chromedp.ByQuery),
	)
	if err != nil {
		return "", fmt.Errorf("%w: navigating to %s: %v", ErrRetrieval, url, err)
	}
	return html, nil
}

func (s *ChromedpStrategy) resolveProductURL(ctx, browserCtx context.Context, query string) (string, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetResolvedURL(ctx, s.Name(), query); ok {
			s.logger.Debug("resolved product url from cache", "query", query, "url", cached)
			return cached, nil
		}
	}

	url, err := s.resolveInteractive(browserCtx, query)
	if err != nil {
		s.logger.Warn("interactive search failed, falling back to search path", "query", query, "error", err)
		url, err = s.resolveViaSearchPath(browserCtx, query)
		if err != nil {
			return "", err
		}
	}

	if s.cache != nil {
		s.cache.SetResolvedURL(ctx, s.Name(), query, url)
	}
	return url, nil
}

func (s *ChromedpStrategy) resolveInteractive(browserCtx context.Context, query string) (string, error) {
	navCtx, cancel := context.WithTimeout(browserCtx, s.browserOpts.NavigationTimeout)
	defer cancel()

	if err := chromedp.Run(navCtx,
		chromedp.Navigate(s.resolver.ResolveHref("/")),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("%w: opening home page: %v", ErrRetrieval, err)
	}

	var filled bool
	for _, xpath := range headerSearchInputXPaths {
		inputCtx, cancelInput := context.WithTimeout(browserCtx, s.selectorTimeout)
		err := chromedp.Run(inputCtx,
			chromedp.WaitVisible(xpath, chromedp.BySearch),
			chromedp.SendKeys(xpath, query+kb.Enter, chromedp.BySearch),
		)
		cancelInput()
		if err == nil {
			filled = true
			break
		}
	}
	if !filled {
		return "", fmt.Errorf("%w: header search input not found", ErrRetrieval)
	}

	return s.pickFromResults(browserCtx, query)
}

func (s *ChromedpStrategy) resolveViaSearchPath(browserCtx context.Context, query string) (string, error) {
	navCtx, cancel := context.WithTimeout(browserCtx, s.browserOpts.NavigationTimeout)
	defer cancel()

	searchURL := s.resolver.SearchURL(query)
	if err := chromedp.Run(navCtx,
		chromedp.Navigate(searchURL),
		chromedp.WaitReady("body", chromedp.ByQuery),
	); err != nil {
		return "", fmt.Errorf("%w: navigating to %s: %v", ErrRetrieval, searchURL, err)
	}

	return s.pickFromResults(browserCtx, query)
}

func (s *ChromedpStrategy) pickFromResults(browserCtx context.Context, query string) (string, error) {
	waitCtx, cancel := context.WithTimeout(browserCtx, s.selectorTimeout)
	defer cancel()

	// Best effort: results may already be in the captured markup even if the
	// wait times out.
	_ = chromedp.Run(waitCtx, chromedp.WaitReady(searchFirstProductLinkXPath, chromedp.BySearch))

	var html string
	if err := chromedp.Run(browserCtx, chromedp.OuterHTML("html", &html, chromedp.ByQuery)); err != nil {
		return "", fmt.Errorf("%w: capturing search results: %v", ErrRetrieval, err)
	}

	url, ok := s.resolver.Pick(html)
	if !ok {
		return "", fmt.Errorf("%w: query %q matched no product links", ErrNoSearchResult, query)
	}
	return url, nil
}
