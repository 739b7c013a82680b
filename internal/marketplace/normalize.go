package marketplace

import (
	"math"
	"regexp"
	"strings"
)

const (
	defaultCurrency = "BRL"
	itemURLPrefix   = "https://www.facebook.com/marketplace/item/"
)

var amountChars = regexp.MustCompile(`[\d.,\s]+`)

// NormalizeListing converts a raw feed listing into a Listing. It returns nil
// for listings without a title and for sold, hidden or no longer live ones.
func NormalizeListing(raw RawListing) *Listing {
	if raw == nil {
		return nil
	}

	title := getString(raw, "marketplace_listing_title")
	if title == "" {
		return nil
	}

	// is_live counts as live unless explicitly false
	notLive := false
	if live, ok := raw["is_live"].(bool); ok && !live {
		notLive = true
	}
	if truthy(raw, "is_sold") || truthy(raw, "is_hidden") || notLive {
		return nil
	}

	priceObj := getMap(raw, "listing_price")
	price := getAmount(priceObj, "amount")
	oldPrice := getAmount(getMap(raw, "strikethrough_price"), "amount")

	l := &Listing{
		ID:            getString(raw, "id"),
		Title:         title,
		Price:         price,
		Currency:      currencyOf(getString(priceObj, "formatted_amount")),
		OldPrice:      oldPrice,
		Thumbnail:     optional(getString(getMap(getMap(raw, "primary_listing_photo"), "image"), "uri")),
		CategoryID:    optional(getString(raw, "marketplace_listing_category_id")),
		DeliveryTypes: []string{},
		IsPending:     truthy(raw, "is_pending"),
	}

	if price != nil && oldPrice != nil && *price != 0 && *oldPrice > *price {
		d := int(math.Round((*oldPrice - *price) / *oldPrice * 100))
		l.DiscountPercent = &d
	}

	geo := getMap(getMap(raw, "location"), "reverse_geocode")
	l.City = optional(getString(geo, "city"))
	l.State = optional(getString(geo, "state"))
	switch {
	case l.City != nil && l.State != nil:
		loc := *l.City + ", " + *l.State
		l.Location = &loc
	case l.City != nil:
		l.Location = l.City
	case l.State != nil:
		l.Location = l.State
	}

	for _, d := range getSlice(raw, "delivery_types") {
		if s, ok := d.(string); ok {
			l.DeliveryTypes = append(l.DeliveryTypes, s)
			if s == "SHIPPING" {
				l.HasShipping = true
			}
		}
	}

	if l.ID != "" {
		l.Permalink = itemURLPrefix + l.ID + "/"
	}

	return l
}

func currencyOf(formatted string) string {
	if c := strings.TrimSpace(amountChars.ReplaceAllString(formatted, "")); c != "" {
		return c
	}
	return defaultCurrency
}

func optional(s string) *string {
	if s == "" {
		return nil
	}
	return &s
}
