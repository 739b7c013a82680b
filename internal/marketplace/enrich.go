package marketplace

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sjsage522/marketsearch/logger"
	"sjsage522/marketsearch/services/cache"
)

// Enricher fetches listing pages in bounded batches and fills in the detail
// fields. A failing listing keeps its nil fields; it never fails the batch.
type Enricher struct {
	fetcher Fetcher
	cache   cache.CacheService
	ttl     time.Duration
}

// NewEnricher creates an enricher. cacheSvc may be nil to disable the detail
// cache.
func NewEnricher(fetcher Fetcher, cacheSvc cache.CacheService, ttl time.Duration) *Enricher {
	return &Enricher{fetcher: fetcher, cache: cacheSvc, ttl: ttl}
}

// Enrich processes items with a permalink, concurrency at a time. A batch
// finishes completely before the next one starts.
func (e *Enricher) Enrich(ctx context.Context, items []*Listing, concurrency int, timeout time.Duration) {
	if concurrency <= 0 {
		concurrency = DefaultConcurrency
	}

	queue := make([]*Listing, 0, len(items))
	for _, l := range items {
		if l.Permalink != "" {
			queue = append(queue, l)
		}
	}

	log := logger.ForComponent("enricher")

	for start := 0; start < len(queue); start += concurrency {
		if ctx.Err() != nil {
			log.Debug().Err(ctx.Err()).Int("remaining", len(queue)-start).Msg("enrichment cancelled")
			return
		}

		batch := queue[start:min(start+concurrency, len(queue))]

		var wg sync.WaitGroup
		for _, l := range batch {
			wg.Add(1)
			go func(l *Listing) {
				defer wg.Done()

				d, err := e.detail(ctx, l, timeout)
				if err != nil {
					log.Debug().Err(err).Str("id", l.ID).Msg("detail fetch failed")
					return
				}
				d.Apply(l)
			}(l)
		}
		wg.Wait()
	}
}

func (e *Enricher) detail(ctx context.Context, l *Listing, timeout time.Duration) (*Detail, error) {
	key := "detail:" + l.ID
	useCache := e.cache != nil && l.ID != "" && e.ttl > 0

	if useCache {
		if data, err := e.cache.Get(key); err == nil {
			var d Detail
			if json.Unmarshal(data, &d) == nil {
				return &d, nil
			}
		}
	}

	doc, err := e.fetcher.Fetch(ctx, l.Permalink, timeout)
	if err != nil {
		return nil, err
	}
	d := ExtractDetail(doc)

	if useCache {
		if data, err := json.Marshal(d); err == nil {
			if err := e.cache.Set(key, data, e.ttl); err != nil {
				logger.ForCache().Debug().Err(err).Str("key", key).Msg("detail not cached")
			}
		}
	}
	return d, nil
}
