// Package resolver turns a search query into a concrete product page URL.
// Query-driven strategies navigate to the site's search entry point and hand
// the rendered results markup here; the resolver picks the topmost product
// link and resolves it against the site base URL.
package resolver

import (
	"net/url"
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"

	"github.com/dkovalenko/brain-scraper/internal/models"
)

// productURLPattern matches brain.com.ua product page paths.
var productURLPattern = regexp.MustCompile(`-p\d+\.html(?:$|\?)`)

type Resolver struct {
	base       *url.URL
	searchPath string
}

func New(baseURL, searchPath string) (*Resolver, error) {
	base, err := url.Parse(baseURL)
	if err != nil {
		return nil, err
	}
	if searchPath == "" {
		searchPath = "/ukr/search/"
	}
	return &Resolver{base: base, searchPath: searchPath}, nil
}

// SearchURL builds the direct search-results URL for a query.
func (r *Resolver) SearchURL(query string) string {
	u := *r.base
	u.Path = r.searchPath
	u.RawQuery = url.Values{"Search": []string{query}}.Encode()
	return u.String()
}

// IsProductURL reports whether the URL points at a product page.
func (r *Resolver) IsProductURL(raw string) bool {
	return productURLPattern.MatchString(raw)
}

// Candidates extracts product links from search-results markup in page order.
// Duplicate URLs keep their first (topmost) position.
func (r *Resolver) Candidates(html string) []models.SearchCandidate {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	seen := make(map[string]bool)
	var candidates []models.SearchCandidate

	doc.Find("a[href]").Each(func(_ int, sel *goquery.Selection) {
		href, _ := sel.Attr("href")
		if href == "" || !productURLPattern.MatchString(href) {
			return
		}
		title := strings.TrimSpace(sel.Text())
		if title == "" {
			return
		}

		resolved := r.ResolveHref(href)
		if resolved == "" || seen[resolved] {
			return
		}
		seen[resolved] = true

		candidates = append(candidates, models.SearchCandidate{
			URL:      resolved,
			Title:    title,
			Position: len(candidates),
		})
	})

	return candidates
}

// Pick collapses the candidate list to the chosen URL: topmost result wins.
func (r *Resolver) Pick(html string) (string, bool) {
	candidates := r.Candidates(html)
	if len(candidates) == 0 {
		return "", false
	}
	return candidates[0].URL, true
}

// ResolveHref resolves a possibly relative product href against the base URL.
func (r *Resolver) ResolveHref(href string) string {
	ref, err := url.Parse(strings.TrimSpace(href))
	if err != nil {
		return ""
	}
	return r.base.ResolveReference(ref).String()
}
