package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"sync"
	"time"
)

const (
	testToken   = "AVq5tok"
	testQueryID = "987654321"
)

func rawListing(id, title, amount string) map[string]any {
	l := map[string]any{
		"id":                        id,
		"marketplace_listing_title": title,
		"is_live":                   true,
		"is_sold":                   false,
		"is_pending":                false,
		"is_hidden":                 false,
		"delivery_types":            []any{"IN_PERSON"},
		"location": map[string]any{
			"reverse_geocode": map[string]any{"city": "São Paulo", "state": "SP"},
		},
	}
	if amount != "" {
		l["listing_price"] = map[string]any{"amount": amount, "formatted_amount": "R$ " + amount}
	}
	return l
}

func feedUnits(listings []map[string]any, cursor string, hasNext bool) map[string]any {
	edges := make([]any, 0, len(listings))
	for _, l := range listings {
		edges = append(edges, map[string]any{"node": map[string]any{"listing": l}})
	}
	return map[string]any{
		"feed_units": map[string]any{
			"edges":     edges,
			"page_info": map[string]any{"end_cursor": cursor, "has_next_page": hasNext},
		},
	}
}

// searchPage renders a search page the way the site embeds its data: a
// relay payload inside a data-sjs script plus token and query id elsewhere.
func searchPage(listings []map[string]any, cursor string, hasNext bool) string {
	payload := map[string]any{
		"require": []any{
			[]any{"ScheduledServerJS", "handle", nil, []any{
				map[string]any{"__bbox": map[string]any{
					"result": map[string]any{
						"data": map[string]any{"marketplace_search": feedUnits(listings, cursor, hasNext)},
					},
				}},
			}},
		},
	}
	blob, _ := json.Marshal(payload)

	return fmt.Sprintf(`<!DOCTYPE html><html><head>
<script type="application/json" data-sjs>{"require":[["ServerJS","handle",null,[{"define":[["LSD",[],{"token":"%s"},323]]}]]]}</script>
<script>{"CometMarketplaceSearchContentContainerQuery_facebookRelayOperation",{"queryID":"%s"}}</script>
</head><body>
<script type="application/json" data-sjs>{"marketplace_listing_title": broken json</script>
<script type="application/json" data-sjs>%s</script>
</body></html>`, testToken, testQueryID, blob)
}

func continuationBody(listings []map[string]any, cursor string, hasNext bool) string {
	blob, _ := json.Marshal(map[string]any{
		"data": map[string]any{
			"viewer": map[string]any{"marketplace_search": feedUnits(listings, cursor, hasNext)},
		},
		"extensions": map[string]any{"is_final": true},
	})
	return string(blob)
}

// fakeFetcher serves canned documents by URL and records every call
type fakeFetcher struct {
	name  string
	pages map[string]string
	err   error

	mu    sync.Mutex
	calls []string
	delay time.Duration
}

func (f *fakeFetcher) Name() string {
	if f.name == "" {
		return "fake"
	}
	return f.name
}

func (f *fakeFetcher) Fetch(ctx context.Context, target string, timeout time.Duration) (string, error) {
	f.mu.Lock()
	f.calls = append(f.calls, target)
	f.mu.Unlock()

	if f.delay > 0 {
		time.Sleep(f.delay)
	}
	if f.err != nil {
		return "", f.err
	}
	for prefix, body := range f.pages {
		if strings.HasPrefix(target, prefix) {
			return body, nil
		}
	}
	return "", fmt.Errorf("no page for %s", target)
}

func (f *fakeFetcher) Calls() []string {
	f.mu.Lock()
	defer f.mu.Unlock()
	return append([]string(nil), f.calls...)
}

// fakeContinuer returns queued pages in order, then nil
type fakeContinuer struct {
	pages  []*PageData
	params []ContinuationParams
}

func (f *fakeContinuer) NextPage(_ context.Context, p ContinuationParams, _ time.Duration) *PageData {
	f.params = append(f.params, p)
	if len(f.params) > len(f.pages) {
		return nil
	}
	return f.pages[len(f.params)-1]
}

func rawPage(listings []map[string]any, cursor string, hasNext bool) *PageData {
	raws := make([]RawListing, 0, len(listings))
	for _, l := range listings {
		raws = append(raws, l)
	}
	return &PageData{
		Listings:      raws,
		EndCursor:     cursor,
		HasNextPage:   hasNext,
		SecurityToken: testToken,
		QueryID:       testQueryID,
	}
}

func ptr[T any](v T) *T { return &v }
