package scrape

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/playwright-community/playwright-go"

	"github.com/dkovalenko/brain-scraper/internal/browser"
	"github.com/dkovalenko/brain-scraper/internal/models"
	"github.com/dkovalenko/brain-scraper/internal/resolver"
)

// URLCache remembers which product URL a query resolved to, so repeated
// identical queries skip the browser search workflow.
type URLCache interface {
	GetResolvedURL(ctx context.Context, strategy, query string) (string, bool)
	SetResolvedURL(ctx context.Context, strategy, query, url string)
}

const searchFirstProductLinkXPath = "//a[contains(@href,'-p') and contains(@href,'.html') and normalize-space(string(.))!=''][1]"

var headerSearchInputXPaths = []string{
	"/html/body/header/div[1]/div/div/div[2]/form/input[1]",
	"/html/body/header/div[2]/div/div/div[2]/form/input[1]",
}

// PlaywrightStrategy drives a Playwright-controlled headless browser. Each
// acquisition launches its own session and releases it on every exit path.
type PlaywrightStrategy struct {
	browserOpts     *browser.Options
	selectorTimeout time.Duration
	resolver        *resolver.Resolver
	cache           URLCache
	logger          *slog.Logger
}

func NewPlaywrightStrategy(browserOpts *browser.Options, selectorTimeout time.Duration, res *resolver.Resolver, cache URLCache, logger *slog.Logger) *PlaywrightStrategy {
	return &PlaywrightStrategy{
		browserOpts:     browserOpts,
		selectorTimeout: selectorTimeout,
		resolver:        res,
		cache:           cache,
		logger:          logger.With("component", "playwright_strategy"),
	}
}

func (s *PlaywrightStrategy) Name() string { return StrategyPlaywright }

func (s *PlaywrightStrategy) QueryDriven() bool { return true }

func (s *PlaywrightStrategy) Acquire(ctx context.Context, target Target) (*models.RawPageContent, error) {
	b, err := browser.New(s.browserOpts)
	if err != nil {
		return nil, fmt.Errorf("%w: launching browser session: %v", ErrRetrieval, err)
	}
	defer b.Close()

	page, err := b.NewPage()
	if err != nil {
		return nil, fmt.Errorf("%w: opening page: %v", ErrRetrieval, err)
	}
	defer page.Close()

	productURL := target.URL
	if target.Query != "" {
		productURL, err = s.resolveProductURL(ctx, page, target.Query)
		if err != nil {
			return nil, err
		}
	}

	if _, err := page.Goto(productURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.browserOpts.NavigationTimeout.Milliseconds())),
	}); err != nil {
		return nil, fmt.Errorf("%w: navigating to %s: %v", ErrRetrieval, productURL, err)
	}

	html, err := page.Content()
	if err != nil {
		return nil, fmt.Errorf("%w: capturing content of %s: %v", ErrRetrieval, productURL, err)
	}

	return &models.RawPageContent{
		Body:      html,
		Kind:      models.ContentRendered,
		SourceURL: productURL,
		FetchedAt: time.Now(),
	}, nil
}

// resolveProductURL runs the search workflow: interactive search from the home
// page first, then direct navigation to the search path as a last resort.
func (s *PlaywrightStrategy) resolveProductURL(ctx context.Context, page playwright.Page, query string) (string, error) {
	if s.cache != nil {
		if cached, ok := s.cache.GetResolvedURL(ctx, s.Name(), query); ok {
			s.logger.Debug("resolved product url from cache", "query", query, "url", cached)
			return cached, nil
		}
	}

	url, err := s.resolveInteractive(page, query)
	if err != nil {
		s.logger.Warn("interactive search failed, falling back to search path", "query", query, "error", err)
		url, err = s.resolveViaSearchPath(page, query)
		if err != nil {
			return "", err
		}
	}

	if s.cache != nil {
		s.cache.SetResolvedURL(ctx, s.Name(), query, url)
	}
	return url, nil
}

func (s *PlaywrightStrategy) resolveInteractive(page playwright.Page, query string) (string, error) {
	navTimeout := playwright.Float(float64(s.browserOpts.NavigationTimeout.Milliseconds()))
	selTimeout := playwright.Float(float64(s.selectorTimeout.Milliseconds()))

	if _, err := page.Goto(s.resolver.ResolveHref("/"), playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   navTimeout,
	}); err != nil {
		return "", fmt.Errorf("%w: opening home page: %v", ErrRetrieval, err)
	}

	var input playwright.Locator
	for _, xpath := range headerSearchInputXPaths {
		candidate := page.Locator("xpath=" + xpath)
		if err := candidate.WaitFor(playwright.LocatorWaitForOptions{
			State:   playwright.WaitForSelectorStateVisible,
			Timeout: playwright.Float(8000),
		}); err == nil {
			input = candidate
			break
		}
	}
	if input == nil {
		return "", fmt.Errorf("%w: header search input not found", ErrRetrieval)
	}

	if err := input.Fill(query); err != nil {
		return "", fmt.Errorf("%w: filling search input: %v", ErrRetrieval, err)
	}
	if err := page.Keyboard().Press("Enter"); err != nil {
		return "", fmt.Errorf("%w: submitting search: %v", ErrRetrieval, err)
	}

	first := page.Locator("xpath=" + searchFirstProductLinkXPath)
	if err := first.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: selTimeout,
	}); err != nil {
		return "", fmt.Errorf("%w: query %q: no result link appeared: %v", ErrNoSearchResult, query, err)
	}

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("%w: capturing search results: %v", ErrRetrieval, err)
	}

	url, ok := s.resolver.Pick(html)
	if !ok {
		return "", fmt.Errorf("%w: query %q matched no product links", ErrNoSearchResult, query)
	}
	return url, nil
}

func (s *PlaywrightStrategy) resolveViaSearchPath(page playwright.Page, query string) (string, error) {
	searchURL := s.resolver.SearchURL(query)

	if _, err := page.Goto(searchURL, playwright.PageGotoOptions{
		WaitUntil: playwright.WaitUntilStateDomcontentloaded,
		Timeout:   playwright.Float(float64(s.browserOpts.NavigationTimeout.Milliseconds())),
	}); err != nil {
		return "", fmt.Errorf("%w: navigating to %s: %v", ErrRetrieval, searchURL, err)
	}

	// Results render asynchronously; the first anchor may lag domcontentloaded.
	first := page.Locator("xpath=" + searchFirstProductLinkXPath)
	_ = first.First().WaitFor(playwright.LocatorWaitForOptions{
		State:   playwright.WaitForSelectorStateAttached,
		Timeout: playwright.Float(float64(s.selectorTimeout.Milliseconds())),
	})

	html, err := page.Content()
	if err != nil {
		return "", fmt.Errorf("%w: capturing search results: %v", ErrRetrieval, err)
	}

	url, ok := s.resolver.Pick(html)
	if !ok {
		return "", fmt.Errorf("%w: query %q matched no product links", ErrNoSearchResult, query)
	}
	return url, nil
}
