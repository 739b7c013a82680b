package marketplace

import (
	"context"
	"fmt"
	"net/url"
	"slices"
	"strings"
	"time"

	"sjsage522/marketsearch/config"
	"sjsage522/marketsearch/helpers"
	"sjsage522/marketsearch/logger"
	apperrors "sjsage522/marketsearch/pkg/errors"
	"sjsage522/marketsearch/services/cache"

	"github.com/google/uuid"
)

const DefaultBaseURL = "https://www.facebook.com"

var validSorts = []string{SortPriceAsc, SortPriceDesc, SortDate, SortDistance, SortRelevance}

// Client runs marketplace searches
type Client struct {
	baseURL   string
	fetcher   Fetcher
	continuer Continuer
	enricher  *Enricher
	defaults  SearchOptions
}

// Option customizes a Client
type Option func(*Client)

// WithFetcher replaces the fetch strategy chain
func WithFetcher(f Fetcher) Option {
	return func(c *Client) { c.fetcher = f }
}

// WithContinuer replaces the continuation endpoint client
func WithContinuer(n Continuer) Option {
	return func(c *Client) { c.continuer = n }
}

// WithBaseURL points search pages at another host
func WithBaseURL(u string) Option {
	return func(c *Client) { c.baseURL = strings.TrimRight(u, "/") }
}

// New creates a client from cfg. The default strategy chain is plain HTTP,
// then curl, then FlareSolverr when one is configured. cacheSvc holds
// rate-limit blocks and cached listing details and may be nil.
func New(cfg *config.Config, cacheSvc cache.CacheService, opts ...Option) (*Client, error) {
	httpClient, err := helpers.NewClient(cfg.ProxyURL)
	if err != nil {
		return nil, apperrors.NewConfiguration("invalid proxy", err)
	}

	c := &Client{
		baseURL: strings.TrimRight(cfg.BaseURL, "/"),
		defaults: SearchOptions{
			Limit:       cfg.Limit,
			Timeout:     cfg.Timeout,
			Concurrency: cfg.Concurrency,
		},
	}
	if c.baseURL == "" {
		c.baseURL = DefaultBaseURL
	}

	fetchers := []Fetcher{
		NewHTTPFetcher(httpClient, cacheSvc, cfg.RateLimitBlock),
		NewCurlFetcher(cfg.CurlBin),
	}
	if cfg.FlareSolverrURL != "" {
		fetchers = append(fetchers, NewFlareSolverrFetcher(cfg.FlareSolverrURL, nil))
	}
	c.fetcher = NewChainFetcher(fetchers...)
	c.continuer = NewGraphQLContinuer(httpClient, cfg.GraphQLURL)

	for _, opt := range opts {
		opt(c)
	}

	var detailCache cache.CacheService
	if cacheSvc != nil && cfg.DetailCacheTTL > 0 {
		detailCache = cacheSvc
	}
	c.enricher = NewEnricher(c.fetcher, detailCache, cfg.DetailCacheTTL)

	return c, nil
}

// resolved is a validated query: where it runs and which URL it starts at
type resolved struct {
	opts     SearchOptions
	city     *city
	location Location
	radius   float64
	url      string
}

func (c *Client) resolve(query string, opts SearchOptions) (*resolved, error) {
	if opts.Limit <= 0 {
		opts.Limit = c.defaults.Limit
	}
	if opts.Timeout <= 0 {
		opts.Timeout = c.defaults.Timeout
	}
	if opts.Concurrency <= 0 {
		opts.Concurrency = c.defaults.Concurrency
	}
	opts = opts.withDefaults()

	if opts.Category != "" {
		if err := validateCategory(opts.Category); err != nil {
			return nil, err
		}
	}
	if opts.Sort != "" && !slices.Contains(validSorts, opts.Sort) {
		return nil, apperrors.NewValidation("client", fmt.Sprintf(
			"Unknown sort %q. Valid sorts: %s", opts.Sort, strings.Join(validSorts, ", ")))
	}

	r := &resolved{opts: opts, location: defaultLocation, radius: defaultRadiusKm}
	if opts.City != "" {
		ct, err := resolveCity(opts.City)
		if err != nil {
			return nil, err
		}
		r.city = ct
		r.location = Location{Vanity: ct.Vanity, Lat: ct.Lat, Lng: ct.Lng}
		r.radius = cityRadiusKm
	}
	if opts.RadiusKm > 0 {
		r.radius = opts.RadiusKm
	}

	r.url = c.searchURL(query, r.location.Vanity, opts.Category)
	return r, nil
}

// searchURL builds /marketplace/{vanity}/search or /marketplace/{vanity}/{category}
func (c *Client) searchURL(query, vanity, category string) string {
	path := "/marketplace/" + vanity + "/search"
	if category != "" {
		path = "/marketplace/" + vanity + "/" + category
	}
	return c.baseURL + path + "?" + url.Values{"query": {query}}.Encode()
}

// Search returns up to opts.Limit listings for query, enriched with their
// detail pages. Only the first page can fail the search; later pages and
// detail pages degrade silently.
func (c *Client) Search(ctx context.Context, query string, opts SearchOptions) (*SearchResult, error) {
	r, err := c.resolve(query, opts)
	if err != nil {
		return nil, err
	}
	opts = r.opts

	log := logger.ForComponent("client").WithFields(logger.Fields{
		"query":     query,
		"search_id": uuid.NewString(),
	})
	started := time.Now()

	html, err := c.fetcher.Fetch(ctx, r.url, opts.Timeout)
	if err != nil {
		return nil, err
	}

	first := ExtractPageData(html)
	if first == nil || len(first.Listings) == 0 {
		return nil, apperrors.NewExtraction("extractor",
			"could not extract search results; the page structure may have changed, or the marketplace may be blocking requests")
	}

	walk := paginate(ctx, first, c.continuer, ContinuationParams{
		Query:         query,
		Location:      r.location,
		RadiusKm:      r.radius,
		MinPrice:      opts.MinPrice,
		MaxPrice:      opts.MaxPrice,
		SecurityToken: first.SecurityToken,
		QueryID:       first.QueryID,
	}, opts.Limit, opts.Timeout)

	items := assemble(walk.items, query, opts)
	if len(items) > 0 {
		c.enricher.Enrich(ctx, items, opts.Concurrency, opts.Timeout)
	}
	if items == nil {
		items = []*Listing{}
	}

	log.Debug().
		Int("items", len(items)).
		Int("pages", walk.pagesFetched).
		Bool("capped", walk.capped).
		Dur("elapsed", time.Since(started)).
		Msg("search finished")

	result := &SearchResult{
		Items: items,
		Query: QueryEcho{
			Text:     query,
			Sort:     optional(opts.Sort),
			Category: optional(opts.Category),
			Strict:   opts.Strict,
			URL:      r.url,
		},
		Pagination: Pagination{
			Total:        len(items),
			Limit:        opts.Limit,
			PagesFetched: walk.pagesFetched,
			Capped:       walk.capped,
		},
	}
	if r.city != nil {
		result.Query.City = &r.city.Name
	}
	return result, nil
}

// SearchRaw returns the first page's extracted data without normalizing,
// paginating or enriching it.
func (c *Client) SearchRaw(ctx context.Context, query string, opts SearchOptions) (*PageData, error) {
	r, err := c.resolve(query, opts)
	if err != nil {
		return nil, err
	}

	html, err := c.fetcher.Fetch(ctx, r.url, r.opts.Timeout)
	if err != nil {
		return nil, err
	}

	page := ExtractPageData(html)
	if page == nil {
		return nil, apperrors.NewExtraction("extractor", "could not extract data from the marketplace page")
	}
	return page, nil
}

// Categories lists the categories accepted by Search
func (c *Client) Categories() []Category { return Categories() }

// Cities lists the cities accepted by Search
func (c *Client) Cities() []CityInfo { return Cities() }
