package main

import (
	"bytes"
	"context"
	"encoding/base64"
	"encoding/json"
	"fmt"
	"io"
	"net/http"
	"net/http/httptest"
	"strings"
	"sync"
	"testing"
	"time"

	"sjsage522/marketsearch/config"
	"sjsage522/marketsearch/helpers"
	"sjsage522/marketsearch/internal/marketplace"
	"sjsage522/marketsearch/services/cache"
	"sjsage522/marketsearch/services/publisher"
	"sjsage522/marketsearch/services/worker"

	"github.com/redis/go-redis/v9"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

const siteHost = "https://www.facebook.com"

func listingJSON(id, title, amount string) string {
	return fmt.Sprintf(`{"node":{"listing":{"id":"%s","marketplace_listing_title":"%s",`+
		`"listing_price":{"amount":"%s","formatted_amount":"R$ %s"},"is_live":true,"is_sold":false,`+
		`"is_hidden":false,"is_pending":false,"primary_listing_photo":{"image":{"uri":"https://scontent.test/%s.jpg"}},`+
		`"location":{"reverse_geocode":{"city":"Recife","state":"PE"}}}}}`, id, title, amount, amount, id)
}

func feed(cursor string, hasNext bool, listings ...string) string {
	return fmt.Sprintf(`{"feed_units":{"edges":[%s],"page_info":{"end_cursor":"%s","has_next_page":%t}}}`,
		strings.Join(listings, ","), cursor, hasNext)
}

var testSearchHTML = `<!DOCTYPE html>
<html>
<head>
    <title>Marketplace</title>
    <script type="application/json" data-sjs>{"require":[["ServerJS","handle",null,[{"define":[["LSD",[],{"token":"tok123"},323]]}]]]}</script>
    <script>{"CometMarketplaceSearchContentContainerQuery_facebookRelayOperation",{"queryID":"555"}}</script>
</head>
<body>
    <script type="application/json" data-sjs>{"require":[["ScheduledServerJS","handle",null,[{"__bbox":{"result":{"data":{"marketplace_search":` +
	feed("cursor-1", true,
		listingJSON("101", "Bicicleta aro 29", "1200"),
		listingJSON("102", "Bicicleta infantil", "300"),
	) + `}}}}]]]}</script>
</body>
</html>
`

var testContinuationJSON = `{"data":{"viewer":{"marketplace_search":` +
	feed("", false,
		listingJSON("102", "Bicicleta infantil", "300"),
		listingJSON("103", "Capacete bicicleta", "90"),
	) + `}}}`

// marketplaceServer mimics the search page, continuation endpoint and item pages
type marketplaceServer struct {
	*httptest.Server

	mu       sync.Mutex
	requests []string
}

func newMarketplaceServer(t *testing.T) *marketplaceServer {
	s := &marketplaceServer{}
	s.Server = httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		s.mu.Lock()
		s.requests = append(s.requests, r.Method+" "+r.URL.Path)
		s.mu.Unlock()

		switch {
		case r.URL.Path == "/marketplace/recife/search":
			w.Header().Set("Content-Type", "text/html; charset=utf-8")
			io.WriteString(w, testSearchHTML)
		case r.URL.Path == "/api/graphql/" && r.Method == http.MethodPost:
			assert.NoError(t, r.ParseForm())
			assert.Equal(t, "tok123", r.PostForm.Get("lsd"))
			assert.Equal(t, "555", r.PostForm.Get("doc_id"))
			io.WriteString(w, testContinuationJSON)
		case strings.HasPrefix(r.URL.Path, "/marketplace/item/"):
			io.WriteString(w, `<script>{"redacted_description":{"text":"Em bom estado"},`+
				`"marketplace_listing_seller":{"name":"Ana"},"condition_text":"Usado - bom"}</script>`)
		default:
			http.NotFound(w, r)
		}
	}))
	t.Cleanup(s.Close)
	return s
}

func (s *marketplaceServer) Requests() []string {
	s.mu.Lock()
	defer s.mu.Unlock()
	return append([]string(nil), s.requests...)
}

// hostRewriter sends requests for the real site to the test server
type hostRewriter struct {
	inner  marketplace.Fetcher
	target string
}

func (h *hostRewriter) Name() string { return "rewrite" }

func (h *hostRewriter) Fetch(ctx context.Context, target string, timeout time.Duration) (string, error) {
	return h.inner.Fetch(ctx, strings.Replace(target, siteHost, h.target, 1), timeout)
}

func newIntegrationClient(t *testing.T, srv *marketplaceServer, mc cache.CacheService) *marketplace.Client {
	cfg := &config.Config{
		BaseURL:        siteHost,
		GraphQLURL:     srv.URL + "/api/graphql/",
		Timeout:        2 * time.Second,
		Limit:          20,
		Concurrency:    2,
		RateLimitBlock: time.Minute,
		DetailCacheTTL: time.Hour,
	}

	fetcher := &hostRewriter{inner: marketplace.NewHTTPFetcher(srv.Client(), mc, cfg.RateLimitBlock), target: srv.URL}
	client, err := marketplace.New(cfg, mc,
		marketplace.WithFetcher(fetcher),
		marketplace.WithContinuer(marketplace.NewGraphQLContinuer(srv.Client(), cfg.GraphQLURL)),
	)
	require.NoError(t, err)
	return client
}

// recordingPublisher keeps published messages in memory
type recordingPublisher struct {
	mu       sync.Mutex
	messages [][]byte
}

func (p *recordingPublisher) Publish(_ string, message []byte) error {
	p.mu.Lock()
	defer p.mu.Unlock()
	p.messages = append(p.messages, message)
	return nil
}

func (p *recordingPublisher) TrimStreams() error { return nil }
func (p *recordingPublisher) Close() error       { return nil }

func TestIntegration(t *testing.T) {
	srv := newMarketplaceServer(t)
	mc := cache.NewMemoryCache()
	client := newIntegrationClient(t, srv, mc)

	opts := marketplace.SearchOptions{City: "recife", Sort: marketplace.SortPriceAsc}
	result, err := client.Search(context.Background(), "bicicleta", opts)
	require.NoError(t, err)

	require.Len(t, result.Items, 3)
	assert.Equal(t, "103", result.Items[0].ID)
	assert.Equal(t, "102", result.Items[1].ID)
	assert.Equal(t, "101", result.Items[2].ID)
	assert.Equal(t, 2, result.Pagination.PagesFetched)
	assert.Equal(t, "Recife", *result.Query.City)

	for _, item := range result.Items {
		assert.True(t, strings.HasPrefix(item.Permalink, siteHost+"/marketplace/item/"))
		require.NotNil(t, item.SellerName)
		assert.Equal(t, "Ana", *item.SellerName)
		require.NotNil(t, item.Description)
		assert.Equal(t, "Em bom estado", *item.Description)
	}

	// Detail pages are served from the cache on the next search
	before := len(srv.Requests())
	_, err = client.Search(context.Background(), "bicicleta", opts)
	require.NoError(t, err)
	for _, r := range srv.Requests()[before:] {
		assert.NotContains(t, r, "/marketplace/item/")
	}

	// Publish through the worker; the second run finds nothing new
	pub := &recordingPublisher{}
	w := worker.NewWorker(context.Background(), client, nil, pub, mc, helpers.NewLogger("test"), time.Minute)
	assert.Equal(t, 3, w.PublishItems("bicicleta", result.Items))
	assert.Equal(t, 0, w.PublishItems("bicicleta", result.Items))

	var first marketplace.Listing
	require.NoError(t, json.Unmarshal(pub.messages[0], &first))
	assert.Equal(t, "103", first.ID)

	// Output is the indented JSON of the result
	var buf bytes.Buffer
	require.NoError(t, printJSON(&buf, result))
	assert.Contains(t, buf.String(), "\n  \"items\": [")
	assert.Contains(t, buf.String(), `"title": "Capacete bicicleta"`)
}

func TestIntegrationSearchRaw(t *testing.T) {
	srv := newMarketplaceServer(t)
	client := newIntegrationClient(t, srv, nil)

	page, err := client.SearchRaw(context.Background(), "bicicleta", marketplace.SearchOptions{City: "recife"})
	require.NoError(t, err)

	assert.Len(t, page.Listings, 2)
	assert.Equal(t, "cursor-1", page.EndCursor)
	assert.True(t, page.HasNextPage)
	assert.Equal(t, []string{"GET /marketplace/recife/search"}, srv.Requests())
}

func TestIntegrationRedis(t *testing.T) {
	ctx := context.Background()
	redisPublisher := publisher.NewRedisPublisher(ctx, "localhost:6379", 0, "test_marketsearch", 1, 100)
	defer redisPublisher.Close()

	if err := redisPublisher.Ping(); err != nil {
		t.Skip("Redis is not available, skipping test")
	}

	rdb := redis.NewClient(&redis.Options{Addr: "localhost:6379"})
	defer rdb.Close()

	stream := "test_marketsearch:0"
	rdb.Del(ctx, stream)

	srv := newMarketplaceServer(t)
	client := newIntegrationClient(t, srv, nil)

	w := worker.NewWorker(ctx, client,
		[]worker.Watch{{Query: "bicicleta", Options: marketplace.SearchOptions{City: "recife"}}},
		redisPublisher, cache.NewMemoryCache(), helpers.NewLogger("test"), time.Minute)
	w.RunOnce()

	msgs, err := rdb.XRange(ctx, stream, "-", "+").Result()
	require.NoError(t, err)
	require.Len(t, msgs, 3)

	encoded, ok := msgs[0].Values[worker.MessageKey].(string)
	require.True(t, ok)
	data, err := base64.StdEncoding.DecodeString(encoded)
	require.NoError(t, err)

	var listing marketplace.Listing
	require.NoError(t, json.Unmarshal(data, &listing))
	assert.Equal(t, "101", listing.ID)
	assert.Equal(t, "Bicicleta aro 29", listing.Title)
}
