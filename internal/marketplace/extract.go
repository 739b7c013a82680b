package marketplace

import (
	"regexp"
	"strings"

	"github.com/PuerkitoBio/goquery"
)

var (
	lsdPattern     = regexp.MustCompile(`"LSD"[^}]*"token":"([^"]+)`)
	queryIDPattern = regexp.MustCompile(`CometMarketplaceSearchContentContainerQuery[^"]*"[^"]*"queryID":"(\d+)"`)
)

const (
	searchNodeKey = "marketplace_search"
	listingMarker = "marketplace_listing_title"
)

// ExtractPageData pulls the search feed out of the inline data-sjs script
// blocks of a rendered search page. It returns nil when no block carries a
// non-empty feed.
func ExtractPageData(html string) *PageData {
	doc, err := goquery.NewDocumentFromReader(strings.NewReader(html))
	if err != nil {
		return nil
	}

	var page *PageData
	doc.Find("script[data-sjs]").EachWithBreak(func(_ int, s *goquery.Selection) bool {
		content := s.Text()
		if !strings.Contains(content, listingMarker) {
			return true
		}

		tree, err := decodeTree(content)
		if err != nil {
			return true
		}

		search, ok := findNode(tree, searchNodeKey).(map[string]any)
		if !ok {
			return true
		}

		feed := parseFeed(search)
		if feed == nil || feed.edges == 0 {
			return true
		}

		page = feed.page
		return false
	})

	if page == nil {
		return nil
	}

	page.SecurityToken = firstSubmatch(lsdPattern, html)
	page.QueryID = firstSubmatch(queryIDPattern, html)
	return page
}

type feed struct {
	page  *PageData
	edges int
}

// parseFeed reads feed_units from a marketplace_search node. It returns nil
// when the node has no edges array at all.
func parseFeed(search map[string]any) *feed {
	units := getMap(search, "feed_units")
	edges, ok := units["edges"].([]any)
	if !ok {
		return nil
	}

	listings := make([]RawListing, 0, len(edges))
	for _, e := range edges {
		edge, _ := e.(map[string]any)
		if listing := getMap(getMap(edge, "node"), "listing"); listing != nil {
			listings = append(listings, listing)
		}
	}

	info := getMap(units, "page_info")
	return &feed{
		page: &PageData{
			Listings:    listings,
			EndCursor:   getString(info, "end_cursor"),
			HasNextPage: truthy(info, "has_next_page"),
		},
		edges: len(edges),
	}
}

func firstSubmatch(re *regexp.Regexp, s string) string {
	if m := re.FindStringSubmatch(s); m != nil {
		return m[1]
	}
	return ""
}
