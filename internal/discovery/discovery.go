// Package discovery crawls storefront listing pages and collects product page
// URLs to feed into the scraping pipeline.
package discovery

import (
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/gocolly/colly/v2"

	"github.com/dkovalenko/brain-scraper/internal/resolver"
)

type Options struct {
	MaxDepth  int
	MaxURLs   int
	UserAgent string
	Delay     time.Duration
}

type Discoverer struct {
	resolver *resolver.Resolver
	opts     Options
	logger   *slog.Logger
}

func New(res *resolver.Resolver, opts Options, logger *slog.Logger) *Discoverer {
	if opts.MaxDepth <= 0 {
		opts.MaxDepth = 2
	}
	if opts.MaxURLs <= 0 {
		opts.MaxURLs = 200
	}
	return &Discoverer{
		resolver: res,
		opts:     opts,
		logger:   logger.With("component", "discovery"),
	}
}

// Discover walks the site from startURL and returns product page URLs in
// discovery order, deduplicated, capped at MaxURLs.
func (d *Discoverer) Discover(startURL string) ([]string, error) {
	start, err := url.Parse(startURL)
	if err != nil {
		return nil, fmt.Errorf("invalid start url %q: %w", startURL, err)
	}

	var (
		mu    sync.Mutex
		seen  = make(map[string]bool)
		found []string
	)

	c := colly.NewCollector(
		colly.AllowedDomains(start.Hostname()),
		colly.MaxDepth(d.opts.MaxDepth),
	)
	if d.opts.UserAgent != "" {
		c.UserAgent = d.opts.UserAgent
	}
	if d.opts.Delay > 0 {
		if err := c.Limit(&colly.LimitRule{DomainGlob: "*", Delay: d.opts.Delay}); err != nil {
			return nil, fmt.Errorf("failed to set crawl rate limit: %w", err)
		}
	}

	c.OnHTML("a[href]", func(e *colly.HTMLElement) {
		link := e.Request.AbsoluteURL(e.Attr("href"))
		if link == "" {
			return
		}

		if d.resolver.IsProductURL(link) {
			mu.Lock()
			if !seen[link] && len(found) < d.opts.MaxURLs {
				seen[link] = true
				found = append(found, link)
			}
			full := len(found) >= d.opts.MaxURLs
			mu.Unlock()
			if full {
				return
			}
			// Product pages are leaves; no need to fetch them here.
			return
		}

		mu.Lock()
		full := len(found) >= d.opts.MaxURLs
		mu.Unlock()
		if !full {
			// Errors here are expected (depth cap, revisits) and not fatal.
			_ = e.Request.Visit(link)
		}
	})

	c.OnError(func(r *colly.Response, err error) {
		d.logger.Warn("crawl request failed", "url", r.Request.URL.String(), "error", err)
	})

	d.logger.Info("starting discovery crawl", "start_url", startURL,
		"max_depth", d.opts.MaxDepth, "max_urls", d.opts.MaxURLs)

	if err := c.Visit(startURL); err != nil {
		return nil, fmt.Errorf("failed to start crawl at %s: %w", startURL, err)
	}
	c.Wait()

	d.logger.Info("discovery crawl complete", "found", len(found))
	return found, nil
}
