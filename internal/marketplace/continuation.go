package marketplace

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"math"
	"net/http"
	"net/url"
	"strings"
	"time"

	"sjsage522/marketsearch/helpers"
	"sjsage522/marketsearch/logger"
)

const (
	DefaultGraphQLURL = "https://www.facebook.com/api/graphql/"

	searchQueryName   = "CometMarketplaceSearchContentContainerQuery"
	continuationCount = 24

	// maxPriceBound is the upper price filter, in cents, when none was asked for
	maxPriceBound int64 = 214748364700
)

// ContinuationParams carry everything needed to ask for the page after Cursor
type ContinuationParams struct {
	Query         string
	Cursor        string
	Location      Location
	RadiusKm      float64
	MinPrice      float64
	MaxPrice      float64
	SecurityToken string
	QueryID       string
}

// Continuer fetches result pages after the first one
type Continuer interface {
	NextPage(ctx context.Context, p ContinuationParams, timeout time.Duration) *PageData
}

// priceBounds converts the optional price filter to cents
func priceBounds(minPrice, maxPrice float64) (int64, int64) {
	lower, upper := int64(0), maxPriceBound
	if minPrice != 0 {
		lower = int64(math.Round(minPrice * 100))
	}
	if maxPrice != 0 {
		upper = int64(math.Round(maxPrice * 100))
	}
	return lower, upper
}

func continuationVariables(p ContinuationParams) map[string]interface{} {
	lower, upper := priceBounds(p.MinPrice, p.MaxPrice)

	radius := p.RadiusKm
	if radius == 0 {
		radius = cityRadiusKm
	}

	return map[string]interface{}{
		"buyLocation": map[string]interface{}{
			"latitude":  p.Location.Lat,
			"longitude": p.Location.Lng,
		},
		"contextual_data": nil,
		"count":           continuationCount,
		"cursor":          p.Cursor,
		"params": map[string]interface{}{
			"bqf": map[string]interface{}{
				"callsite": "COMMERCE_MKTPLACE_WWW",
				"query":    p.Query,
			},
			"browse_request_params": map[string]interface{}{
				"commerce_enable_local_pickup":       true,
				"commerce_enable_shipping":           true,
				"commerce_search_and_rp_available":   true,
				"commerce_search_and_rp_category_id": []string{},
				"commerce_search_and_rp_condition":   nil,
				"commerce_search_and_rp_ctime_days":  nil,
				"filter_location_latitude":           p.Location.Lat,
				"filter_location_longitude":          p.Location.Lng,
				"filter_price_lower_bound":           lower,
				"filter_price_upper_bound":           upper,
				"filter_radius_km":                   radius,
			},
			"custom_request_params": map[string]interface{}{
				"browse_context":             nil,
				"contextual_filters":         []string{},
				"referral_code":              nil,
				"referral_ui_component":      nil,
				"saved_search_strid":         nil,
				"search_vertical":            "C2C",
				"seo_url":                    nil,
				"serp_landing_settings":      map[string]interface{}{"virtual_category_id": ""},
				"surface":                    "SEARCH",
				"virtual_contextual_filters": []string{},
			},
		},
		"savedSearchID":                nil,
		"savedSearchQuery":             p.Query,
		"scale":                        1,
		"shouldIncludePopularSearches": false,
		"topicPageParams": map[string]interface{}{
			"location_id": p.Location.Vanity,
			"url":         nil,
		},
	}
}

// BuildContinuationRequest builds the form POST for the page after p.Cursor
func BuildContinuationRequest(ctx context.Context, endpoint string, p ContinuationParams) (*http.Request, error) {
	variables, err := json.Marshal(continuationVariables(p))
	if err != nil {
		return nil, fmt.Errorf("failed to encode variables: %w", err)
	}

	form := url.Values{}
	form.Set("lsd", p.SecurityToken)
	form.Set("variables", string(variables))
	form.Set("doc_id", p.QueryID)

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, endpoint, strings.NewReader(form.Encode()))
	if err != nil {
		return nil, fmt.Errorf("failed to create request: %w", err)
	}

	helpers.SetHeaders(req, []helpers.Header{
		{Key: "User-Agent", Value: helpers.UserAgent},
		{Key: "Accept", Value: "*/*"},
		{Key: "Accept-Language", Value: "pt-BR,pt;q=0.9,en;q=0.8"},
		{Key: "Content-Type", Value: "application/x-www-form-urlencoded"},
		{Key: "Sec-Fetch-Dest", Value: "empty"},
		{Key: "Sec-Fetch-Mode", Value: "cors"},
		{Key: "Sec-Fetch-Site", Value: "same-origin"},
		{Key: "X-FB-Friendly-Name", Value: searchQueryName},
		{Key: "X-FB-LSD", Value: p.SecurityToken},
	})
	return req, nil
}

// GraphQLContinuer asks the internal query endpoint for further pages.
// Every failure is reported as a nil page.
type GraphQLContinuer struct {
	client   *http.Client
	endpoint string
}

func NewGraphQLContinuer(client *http.Client, endpoint string) *GraphQLContinuer {
	if client == nil {
		client = &http.Client{}
	}
	if endpoint == "" {
		endpoint = DefaultGraphQLURL
	}
	return &GraphQLContinuer{client: client, endpoint: endpoint}
}

func (g *GraphQLContinuer) NextPage(ctx context.Context, p ContinuationParams, timeout time.Duration) *PageData {
	if p.SecurityToken == "" || p.QueryID == "" {
		return nil
	}

	log := logger.ForComponent("pagination")

	ctx, cancel := context.WithTimeout(ctx, timeout)
	defer cancel()

	req, err := BuildContinuationRequest(ctx, g.endpoint, p)
	if err != nil {
		log.Debug().Err(err).Msg("continuation request not built")
		return nil
	}

	resp, err := g.client.Do(req)
	if err != nil {
		log.Debug().Err(err).Msg("continuation request failed")
		return nil
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode > 299 {
		log.Debug().Int("status", resp.StatusCode).Msg("continuation rejected")
		return nil
	}

	body, err := io.ReadAll(resp.Body)
	if err != nil {
		log.Debug().Err(err).Msg("continuation body unreadable")
		return nil
	}

	return parseContinuation(string(body))
}

// parseContinuation reads a continuation response. The feed normally lives
// under "data", but the whole document is searched when it does not.
func parseContinuation(body string) *PageData {
	tree, err := decodeTree(body)
	if err != nil {
		return nil
	}

	root := tree
	if m, ok := tree.(map[string]any); ok {
		if data, ok := m["data"]; ok && data != nil {
			root = data
		}
	}

	search, ok := findNode(root, searchNodeKey).(map[string]any)
	if !ok {
		return nil
	}

	f := parseFeed(search)
	if f == nil {
		return nil
	}
	return f.page
}
