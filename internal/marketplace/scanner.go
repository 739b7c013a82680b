package marketplace

import "strings"

type scanState int

const (
	seekMarker scanState = iota
	seekValueStart
	scanValue
)

// markerScanner finds the raw, still-escaped string value that follows the
// first present marker. The value has to start within window bytes of the
// marker and ends at the first quote that is not itself escaped.
type markerScanner struct {
	markers     []string
	valueMarker string
	window      int
}

var descriptionScanner = markerScanner{
	markers:     []string{`"redacted_description"`, `"description"`},
	valueMarker: `"text":"`,
	window:      200,
}

// scan returns the raw value and whether the markers were found. A value
// without a closing quote comes back empty.
func (s markerScanner) scan(doc string) (string, bool) {
	state := seekMarker
	markerAt, start := -1, 0

	for {
		switch state {
		case seekMarker:
			for _, m := range s.markers {
				if i := strings.Index(doc, m); i >= 0 {
					markerAt = i
					break
				}
			}
			if markerAt < 0 {
				return "", false
			}
			state = seekValueStart

		case seekValueStart:
			i := strings.Index(doc[markerAt:], s.valueMarker)
			if i < 0 || i > s.window {
				return "", false
			}
			start = markerAt + i + len(s.valueMarker)
			state = scanValue

		case scanValue:
			escaped := false
			for k := start; k < len(doc); k++ {
				switch {
				case escaped:
					escaped = false
				case doc[k] == '\\':
					escaped = true
				case doc[k] == '"':
					return doc[start:k], true
				}
			}
			return "", true
		}
	}
}
