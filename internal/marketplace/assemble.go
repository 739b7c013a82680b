package marketplace

import (
	"math"
	"sort"
)

// Deduper remembers listing ids already accepted for a query
type Deduper struct {
	seen map[string]struct{}
}

func NewDeduper() *Deduper {
	return &Deduper{seen: make(map[string]struct{})}
}

// Add reports whether l is new. Listings without an id are always new.
func (d *Deduper) Add(l *Listing) bool {
	if l.ID == "" {
		return true
	}
	if _, ok := d.seen[l.ID]; ok {
		return false
	}
	d.seen[l.ID] = struct{}{}
	return true
}

// assemble applies the strict filter, the local sort and the limit, in that
// order.
func assemble(items []*Listing, query string, opts SearchOptions) []*Listing {
	if opts.Strict {
		if tokens := QueryTokens(query); len(tokens) > 0 {
			kept := make([]*Listing, 0, len(items))
			for _, l := range items {
				if MatchesTokens(l, tokens) {
					kept = append(kept, l)
				}
			}
			items = kept
		}
	}

	sortListings(items, opts.Sort)

	if len(items) > opts.Limit {
		items = items[:opts.Limit]
	}
	return items
}

// sortListings orders by price for the price sorts and leaves other orders
// untouched. Unknown prices go last ascending and count as zero descending.
func sortListings(items []*Listing, order string) {
	switch order {
	case SortPriceAsc:
		sort.SliceStable(items, func(i, j int) bool {
			return priceOr(items[i], math.Inf(1)) < priceOr(items[j], math.Inf(1))
		})
	case SortPriceDesc:
		sort.SliceStable(items, func(i, j int) bool {
			return priceOr(items[i], 0) > priceOr(items[j], 0)
		})
	}
}

func priceOr(l *Listing, fallback float64) float64 {
	if l.Price == nil {
		return fallback
	}
	return *l.Price
}
