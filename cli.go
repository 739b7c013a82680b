package main

import (
	"encoding/json"
	"flag"
	"fmt"
	"io"
	"strings"
	"time"

	"sjsage522/marketsearch/internal/marketplace"
)

// cliOptions are the parsed command line flags
type cliOptions struct {
	query string

	limit       int
	timeout     time.Duration
	sort        string
	concurrency int
	city        string
	category    string
	minPrice    float64
	maxPrice    float64
	radius      float64
	strict      bool

	raw            bool
	listCategories bool
	listCities     bool
	publish        bool
	watch          bool
}

func parseFlags(args []string, output io.Writer) (*cliOptions, error) {
	opts := &cliOptions{}

	fs := flag.NewFlagSet("marketsearch", flag.ContinueOnError)
	fs.SetOutput(output)
	fs.Usage = func() {
		fmt.Fprintln(output, "usage: marketsearch [flags] <query>")
		fs.PrintDefaults()
	}

	fs.IntVar(&opts.limit, "limit", 0, "maximum number of listings (default SEARCH_LIMIT)")
	fs.DurationVar(&opts.timeout, "timeout", 0, "per-request timeout (default SEARCH_TIMEOUT_MS)")
	fs.StringVar(&opts.sort, "sort", "", "price_asc, price_desc, date, distance or relevance")
	fs.IntVar(&opts.concurrency, "concurrency", 0, "detail pages fetched at once (default SEARCH_CONCURRENCY)")
	fs.StringVar(&opts.city, "city", "", "city slug or name, see -list-cities")
	fs.StringVar(&opts.category, "category", "", "category slug, see -list-categories")
	fs.Float64Var(&opts.minPrice, "min-price", 0, "minimum price")
	fs.Float64Var(&opts.maxPrice, "max-price", 0, "maximum price")
	fs.Float64Var(&opts.radius, "radius", 0, "search radius in km")
	fs.BoolVar(&opts.strict, "strict", false, "keep only listings whose title contains every query word")
	fs.BoolVar(&opts.raw, "raw", false, "print the first page's extracted data without processing")
	fs.BoolVar(&opts.listCategories, "list-categories", false, "print the supported categories")
	fs.BoolVar(&opts.listCities, "list-cities", false, "print the supported cities")
	fs.BoolVar(&opts.publish, "publish", false, "publish result listings to the Redis stream")
	fs.BoolVar(&opts.watch, "watch", false, "re-run the search every WATCH_INTERVAL_SECONDS and publish new listings")

	if err := fs.Parse(args); err != nil {
		return nil, err
	}

	opts.query = strings.TrimSpace(strings.Join(fs.Args(), " "))
	if opts.query == "" && !opts.listCategories && !opts.listCities {
		fs.Usage()
		return nil, fmt.Errorf("a search query is required")
	}
	if opts.raw && opts.watch {
		return nil, fmt.Errorf("-raw and -watch cannot be combined")
	}

	return opts, nil
}

func (o *cliOptions) searchOptions() marketplace.SearchOptions {
	return marketplace.SearchOptions{
		Limit:       o.limit,
		Timeout:     o.timeout,
		Sort:        o.sort,
		Concurrency: o.concurrency,
		City:        o.city,
		Category:    o.category,
		MinPrice:    o.minPrice,
		MaxPrice:    o.maxPrice,
		RadiusKm:    o.radius,
		Strict:      o.strict,
	}
}

// printJSON writes v as indented JSON
func printJSON(w io.Writer, v interface{}) error {
	enc := json.NewEncoder(w)
	enc.SetIndent("", "  ")
	enc.SetEscapeHTML(false)
	return enc.Encode(v)
}
