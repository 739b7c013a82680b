package worker

import (
	"context"
	"encoding/json"
	"sync"
	"time"

	"sjsage522/marketsearch/helpers"
	"sjsage522/marketsearch/internal/marketplace"
	"sjsage522/marketsearch/logger"
	apperrors "sjsage522/marketsearch/pkg/errors"
	"sjsage522/marketsearch/services/cache"
	"sjsage522/marketsearch/services/publisher"
)

const (
	// MessageKey is the stream field each listing is published under
	MessageKey = "listing"

	seenTTL = 24 * time.Hour
)

// Searcher runs one marketplace search
type Searcher interface {
	Search(ctx context.Context, query string, opts marketplace.SearchOptions) (*marketplace.SearchResult, error)
}

// Watch is a saved search re-run on every cycle
type Watch struct {
	Query   string
	Options marketplace.SearchOptions
}

// Name identifies the watch in logs
func (w Watch) Name() string {
	location := w.Options.City
	if location == "" {
		location = "default"
	}
	return location + ":" + w.Query
}

// Worker re-runs watches periodically and publishes listings it has not
// published before
type Worker struct {
	ctx           context.Context
	searcher      Searcher
	watches       []Watch
	publisher     publisher.Publisher
	seen          cache.CacheService
	logger        helpers.LoggerInterface
	watchInterval time.Duration
}

// NewWorker creates a new worker. seen remembers published listing ids
// between cycles; with a nil seen every listing is published every cycle.
func NewWorker(
	ctx context.Context,
	searcher Searcher,
	watches []Watch,
	pub publisher.Publisher,
	seen cache.CacheService,
	logger helpers.LoggerInterface,
	watchInterval time.Duration,
) *Worker {
	return &Worker{
		ctx:           ctx,
		searcher:      searcher,
		watches:       watches,
		publisher:     pub,
		seen:          seen,
		logger:        logger,
		watchInterval: watchInterval,
	}
}

// Start runs a cycle immediately and then every watchInterval until the
// context is cancelled
func (w *Worker) Start() error {
	ticker := time.NewTicker(w.watchInterval)
	defer ticker.Stop()

	for {
		start := time.Now()
		w.RunOnce()
		if logger.IsDebugEnabled() {
			w.logger.LogInfo("watch cycle took %s", time.Since(start))
		}

		select {
		case <-w.ctx.Done():
			return nil
		case <-ticker.C:
		}
	}
}

// RunOnce runs every watch in parallel and then trims the streams
func (w *Worker) RunOnce() {
	var wg sync.WaitGroup
	for _, watch := range w.watches {
		wg.Add(1)
		go func(watch Watch) {
			defer wg.Done()
			w.searchAndPublish(watch)
		}(watch)
	}
	wg.Wait()

	if err := w.publisher.TrimStreams(); err != nil {
		w.logger.LogError("StreamTrimming", err)
	}
}

func (w *Worker) searchAndPublish(watch Watch) {
	result, err := w.searcher.Search(w.ctx, watch.Query, watch.Options)
	if err != nil {
		w.logger.LogError(watch.Name(), err)
		return
	}

	published := w.PublishItems(watch.Name(), result.Items)
	w.logger.LogInfo("%s: %d listings, %d new", watch.Name(), len(result.Items), published)
}

// PublishItems publishes the listings not seen before and returns how many
// were published
func (w *Worker) PublishItems(source string, items []*marketplace.Listing) int {
	published := 0
	for _, item := range items {
		if w.alreadySeen(item.ID) {
			continue
		}

		data, err := json.Marshal(item)
		if err != nil {
			w.logger.LogError(source, err)
			continue
		}

		if err := w.publisher.Publish(MessageKey, data); err != nil {
			w.logger.LogError(source, apperrors.NewPublisher("worker", "publish listing "+item.ID, err))
			continue
		}
		w.markSeen(item.ID)

		if published == 0 {
			w.logSample(source, data)
		}
		published++
	}
	return published
}

func (w *Worker) alreadySeen(id string) bool {
	if w.seen == nil || id == "" {
		return false
	}
	_, err := w.seen.Get("seen:" + id)
	return err == nil
}

func (w *Worker) markSeen(id string) {
	if w.seen == nil || id == "" {
		return
	}
	if err := w.seen.Set("seen:"+id, []byte("1"), seenTTL); err != nil {
		w.logger.LogError("SeenCache", apperrors.NewCache("worker", "mark listing "+id+" seen", err))
	}
}

// logSample logs the first published listing of a batch when debug logging is on
func (w *Worker) logSample(source string, data []byte) {
	if !logger.IsDebugEnabled() {
		return
	}

	var loggable map[string]interface{}
	if err := json.Unmarshal(data, &loggable); err != nil {
		w.logger.LogError(source, err)
		return
	}
	if v, exists := loggable["thumbnail"]; exists && v != nil {
		loggable["thumbnail"] = "OK"
	}
	if v, exists := loggable["images"]; exists && v != nil {
		loggable["images"] = "OK"
	}

	out, err := json.Marshal(loggable)
	if err != nil {
		w.logger.LogError(source, err)
		return
	}
	w.logger.LogInfo("published listing: %s", string(out))
}
