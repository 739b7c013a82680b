package marketplace

import (
	"strings"
	"unicode/utf8"

	"sjsage522/marketsearch/helpers"
)

var stopWords = map[string]struct{}{
	"de": {}, "da": {}, "do": {}, "das": {}, "dos": {}, "e": {}, "ou": {}, "em": {},
	"com": {}, "para": {}, "por": {}, "um": {}, "uma": {}, "o": {}, "a": {}, "os": {},
	"as": {}, "no": {}, "na": {}, "nos": {}, "nas": {},
	"the": {}, "and": {}, "or": {}, "for": {}, "in": {}, "of": {}, "to": {}, "with": {},
}

// QueryTokens returns the significant terms of query: normalized, longer
// than one character and not a stop word.
func QueryTokens(query string) []string {
	var tokens []string
	for _, t := range strings.Split(helpers.NormalizeText(query), " ") {
		if utf8.RuneCountInString(t) <= 1 {
			continue
		}
		if _, stop := stopWords[t]; stop {
			continue
		}
		tokens = append(tokens, t)
	}
	return tokens
}

// MatchesTokens reports whether every token occurs in the listing's title or
// description. Matching is by substring, so "iphone" matches "iphones".
func MatchesTokens(l *Listing, tokens []string) bool {
	if len(tokens) == 0 {
		return true
	}

	corpus := helpers.NormalizeText(l.Title)
	if l.Description != nil {
		corpus += " " + helpers.NormalizeText(*l.Description)
	}

	for _, t := range tokens {
		if !strings.Contains(corpus, t) {
			return false
		}
	}
	return true
}
