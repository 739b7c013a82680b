package marketplace

import (
	"encoding/json"
	"regexp"
	"strings"
)

const (
	photosWindow = 20000
	sellerWindow = 500
)

var (
	uriPattern        = regexp.MustCompile(`"uri"\s*:\s*"((?:[^"\\]|\\.)*)"`)
	namePattern       = regexp.MustCompile(`"name"\s*:\s*"([^"]+)"`)
	storyOwnerPattern = regexp.MustCompile(`"story_bucket_owner"\s*:\s*\{[^}]*?"name"\s*:\s*"([^"]+)"`)
	conditionPattern  = regexp.MustCompile(`"condition_text":\{[^}]*"text":"([^"]+)"`)
	conditionCode     = regexp.MustCompile(`"listing_condition_type":"([^"]+)"`)

	descriptionUnescaper = strings.NewReplacer(`\n`, "\n", `\"`, `"`)
)

var conditionLabels = map[string]string{
	"NEW":           "Novo",
	"USED_GOOD":     "Usado - Bom estado",
	"USED_FAIR":     "Usado - Aceitável",
	"USED_LIKE_NEW": "Usado - Como novo",
}

// Detail is what a listing's own page adds to the search result
type Detail struct {
	Description *string `json:"description"`
	Images      []Image `json:"images"`
	SellerName  *string `json:"sellerName"`
	Condition   *string `json:"condition"`
}

// Apply copies the detail fields onto l
func (d *Detail) Apply(l *Listing) {
	l.Description = d.Description
	l.Images = d.Images
	l.SellerName = d.SellerName
	l.Condition = d.Condition
}

// ExtractDetail reads description, photos, seller and condition from a
// listing page. Each field is independent; a missing one stays nil.
func ExtractDetail(doc string) *Detail {
	return &Detail{
		Description: extractDescription(doc),
		Images:      extractImages(doc),
		SellerName:  extractSeller(doc),
		Condition:   extractCondition(doc),
	}
}

func extractDescription(doc string) *string {
	raw, ok := descriptionScanner.scan(doc)
	if !ok {
		return nil
	}

	var text string
	if err := json.Unmarshal([]byte(`"`+raw+`"`), &text); err != nil {
		text = descriptionUnescaper.Replace(raw)
	}
	return optional(strings.TrimSpace(text))
}

func extractImages(doc string) []Image {
	var images []Image
	seen := make(map[string]struct{})
	add := func(u string) {
		if _, ok := seen[u]; ok {
			return
		}
		seen[u] = struct{}{}
		images = append(images, Image{URL: u})
	}

	if start := strings.Index(doc, `"listing_photos"`); start >= 0 {
		section := doc[start:min(start+photosWindow, len(doc))]
		for _, m := range uriPattern.FindAllStringSubmatch(section, -1) {
			u := unescapeSlashes(m[1])
			if strings.Contains(u, "fbcdn.net/v/") && !strings.Contains(u, "rsrc.php") {
				add(u)
			}
		}
	}

	if len(images) == 0 {
		for _, m := range uriPattern.FindAllStringSubmatch(doc, -1) {
			if u := unescapeSlashes(m[1]); isFullSizePhoto(u) {
				add(u)
			}
		}
	}

	return images
}

// isFullSizePhoto accepts CDN photo URLs and rejects thumbnails and crops
func isFullSizePhoto(u string) bool {
	if !strings.Contains(u, "fbcdn.net/v/") || !strings.Contains(u, "_nc_cat") {
		return false
	}
	for _, small := range []string{"p60x60", "p100x100", "cp0"} {
		if strings.Contains(u, small) {
			return false
		}
	}
	for _, large := range []string{"p720x720", "s960x960", "_o.jpg"} {
		if strings.Contains(u, large) {
			return true
		}
	}
	return false
}

func unescapeSlashes(s string) string {
	return strings.ReplaceAll(s, `\/`, "/")
}

func extractSeller(doc string) *string {
	const marker = `"marketplace_listing_seller"`
	if start := strings.Index(doc, marker); start >= 0 {
		section := doc[start:min(start+sellerWindow, len(doc))]
		if !strings.HasPrefix(section, marker+":null") {
			if m := namePattern.FindStringSubmatch(section); m != nil {
				return &m[1]
			}
		}
	}

	if m := storyOwnerPattern.FindStringSubmatch(doc); m != nil {
		return &m[1]
	}
	return nil
}

func extractCondition(doc string) *string {
	if m := conditionPattern.FindStringSubmatch(doc); m != nil {
		return &m[1]
	}
	if m := conditionCode.FindStringSubmatch(doc); m != nil {
		if label, ok := conditionLabels[m[1]]; ok {
			return &label
		}
		return &m[1]
	}
	return nil
}
