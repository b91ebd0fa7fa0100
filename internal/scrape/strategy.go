package scrape

import (
	"context"
	"errors"
	"fmt"
	"sort"

	"github.com/dkovalenko/brain-scraper/internal/models"
)

var (
	// ErrRetrieval covers network failures, timeouts, non-2xx responses and
	// navigation failures. Terminal for the invocation; retry is the caller's
	// decision.
	ErrRetrieval = errors.New("retrieval failed")
	// ErrNoSearchResult means a query-driven resolution found nothing.
	ErrNoSearchResult = errors.New("no search result")
	// ErrUnknownStrategy means the requested strategy name is not registered.
	ErrUnknownStrategy = errors.New("unknown strategy")
)

// Strategy names accepted at the orchestrator boundary.
const (
	StrategyStatic     = "static"
	StrategyPlaywright = "playwright"
	StrategyChromedp   = "chromedp"
)

// Target is the input of a single acquisition. Which field must be populated
// depends on the strategy: static needs URL, query-driven strategies need Query.
type Target struct {
	URL   string
	Query string
}

// Strategy obtains raw page content for a target. Implementations are
// interchangeable at the orchestrator boundary; they differ only in side
// effects and latency.
type Strategy interface {
	Name() string
	// QueryDriven reports whether the strategy resolves targets from a search
	// query instead of requiring a direct URL.
	QueryDriven() bool
	Acquire(ctx context.Context, target Target) (*models.RawPageContent, error)
}

// Registry maps strategy names to implementations. Dispatch is a pure lookup;
// an unrecognized name fails before any network activity.
type Registry struct {
	strategies map[string]Strategy
}

func NewRegistry() *Registry {
	return &Registry{strategies: make(map[string]Strategy)}
}

func (r *Registry) Register(s Strategy) {
	r.strategies[s.Name()] = s
}

func (r *Registry) Get(name string) (Strategy, error) {
	s, ok := r.strategies[name]
	if !ok {
		return nil, fmt.Errorf("%w: %q (known: %v)", ErrUnknownStrategy, name, r.Names())
	}
	return s, nil
}

func (r *Registry) Names() []string {
	names := make([]string, 0, len(r.strategies))
	for name := range r.strategies {
		names = append(names, name)
	}
	sort.Strings(names)
	return names
}
