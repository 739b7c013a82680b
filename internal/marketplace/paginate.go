package marketplace

import (
	"context"
	"time"

	"sjsage522/marketsearch/logger"
)

type pageWalk struct {
	items        []*Listing
	pagesFetched int
	hasNextPage  bool
	capped       bool
}

// paginate accumulates normalized, deduplicated listings starting from the
// first page and following continuations while fewer than limit items were
// gathered and the page budget allows it. A first page without a security
// token or query id cannot be continued. A continuation that yields nothing
// new ends the walk.
func paginate(ctx context.Context, first *PageData, next Continuer, base ContinuationParams, limit int, timeout time.Duration) pageWalk {
	dedup := NewDeduper()
	walk := pageWalk{pagesFetched: 1, hasNextPage: first.HasNextPage}

	accept := func(listings []RawListing) int {
		added := 0
		for _, raw := range listings {
			l := NormalizeListing(raw)
			if l == nil || !dedup.Add(l) {
				continue
			}
			walk.items = append(walk.items, l)
			added++
		}
		return added
	}
	accept(first.Listings)

	log := logger.ForComponent("pagination")
	cursor := first.EndCursor

	if !first.CanContinue() {
		log.Debug().Bool("has_next_page", first.HasNextPage).Msg("first page carries no continuation tokens")
		cursor = ""
	}

	for len(walk.items) < limit && walk.hasNextPage && cursor != "" && walk.pagesFetched < MaxPages {
		if ctx.Err() != nil {
			break
		}

		p := base
		p.Cursor = cursor
		page := next.NextPage(ctx, p, timeout)
		if page == nil || len(page.Listings) == 0 {
			log.Debug().Int("pages", walk.pagesFetched).Msg("no further page")
			break
		}

		if accept(page.Listings) == 0 {
			log.Debug().Int("pages", walk.pagesFetched).Msg("continuation repeated known listings")
			break
		}

		cursor = page.EndCursor
		walk.hasNextPage = page.HasNextPage
		walk.pagesFetched++
	}

	walk.capped = len(walk.items) >= limit || (walk.hasNextPage && walk.pagesFetched >= MaxPages)
	return walk
}
