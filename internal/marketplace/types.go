package marketplace

import "time"

// Sort orders accepted by Search. Only the price orders are applied locally;
// the others keep the source's relevance order.
const (
	SortPriceAsc  = "price_asc"
	SortPriceDesc = "price_desc"
	SortDate      = "date"
	SortDistance  = "distance"
	SortRelevance = "relevance"
)

const (
	DefaultLimit       = 20
	DefaultTimeout     = 15 * time.Second
	DefaultConcurrency = 5

	// MaxPages is the hard page budget for one query, first page included
	MaxPages = 10

	defaultRadiusKm = 200
	cityRadiusKm    = 65
)

// SearchOptions tune a single search. Zero values mean "use the default";
// a zero MinPrice, MaxPrice or RadiusKm is treated as unset.
type SearchOptions struct {
	Limit       int
	Timeout     time.Duration
	Sort        string
	Concurrency int
	City        string
	Category    string
	MinPrice    float64
	MaxPrice    float64
	RadiusKm    float64
	Strict      bool
}

func (o SearchOptions) withDefaults() SearchOptions {
	if o.Limit <= 0 {
		o.Limit = DefaultLimit
	}
	if o.Timeout <= 0 {
		o.Timeout = DefaultTimeout
	}
	if o.Concurrency <= 0 {
		o.Concurrency = DefaultConcurrency
	}
	return o
}

// Location is the marketplace region a query runs against
type Location struct {
	Vanity string
	Lat    float64
	Lng    float64
}

// RawListing is a listing node exactly as the source serialized it
type RawListing = map[string]any

// PageData is what one search page (or continuation response) yields.
// Empty strings mean the value was absent.
type PageData struct {
	Listings      []RawListing `json:"listings"`
	EndCursor     string       `json:"endCursor,omitempty"`
	HasNextPage   bool         `json:"hasNextPage"`
	SecurityToken string       `json:"lsd,omitempty"`
	QueryID       string       `json:"queryId,omitempty"`
}

// CanContinue reports whether a continuation request can be issued at all
func (p *PageData) CanContinue() bool {
	return p.SecurityToken != "" && p.QueryID != ""
}

// Image is one full-size listing photo
type Image struct {
	URL string `json:"url"`
}

// Listing is the normalized shape of one marketplace item.
// Nil pointers are unknown values and serialize as null.
type Listing struct {
	ID              string   `json:"id"`
	Title           string   `json:"title"`
	Price           *float64 `json:"price"`
	Currency        string   `json:"currency"`
	OldPrice        *float64 `json:"oldPrice"`
	DiscountPercent *int     `json:"discountPercent"`
	Location        *string  `json:"location"`
	City            *string  `json:"city"`
	State           *string  `json:"state"`
	Thumbnail       *string  `json:"thumbnail"`
	Permalink       string   `json:"permalink"`
	CategoryID      *string  `json:"categoryId"`
	DeliveryTypes   []string `json:"deliveryTypes"`
	HasShipping     bool     `json:"hasShipping"`
	IsPending       bool     `json:"isPending"`
	Description     *string  `json:"description"`
	Images          []Image  `json:"images"`
	SellerName      *string  `json:"sellerName"`
	Condition       *string  `json:"condition"`
}

// QueryEcho repeats the inputs that produced a result
type QueryEcho struct {
	Text     string  `json:"text"`
	Sort     *string `json:"sort"`
	City     *string `json:"city"`
	Category *string `json:"category"`
	Strict   bool    `json:"strict"`
	URL      string  `json:"url"`
}

// Pagination describes how much of the source was walked
type Pagination struct {
	Total        int  `json:"total"`
	Limit        int  `json:"limit"`
	PagesFetched int  `json:"pagesFetched"`
	Capped       bool `json:"capped"`
}

// SearchResult is the outcome of Search
type SearchResult struct {
	Items      []*Listing `json:"items"`
	Query      QueryEcho  `json:"query"`
	Pagination Pagination `json:"pagination"`
}

// Category is one browsable marketplace category
type Category struct {
	Slug string `json:"slug"`
	Name string `json:"name"`
}

// CityInfo is the public view of a supported city
type CityInfo struct {
	Slug       string `json:"slug"`
	Name       string `json:"name"`
	RegionCode string `json:"regionCode"`
}
