package search

import (
	"regexp"
	"strings"
)

// multiSKUSplitRe splits pasted SKU lists on commas, newlines, or runs of
// two or more spaces. The boundary is shape-driven, not dictionary-driven:
// "blue  red" is a two-segment multi-SKU candidate because both segments
// match the SKU shape.
var multiSKUSplitRe = regexp.MustCompile(`,|\n| {2,}`)

// Query is a parsed search query: the raw input plus everything the scoring
// functions need precomputed once per search call.
type Query struct {
	Raw     string
	Lower   string
	Tokens  []string
	SKULike bool
	// SKUs holds the parsed multi-SKU segments (original case) when the
	// query has two or more SKU-shaped segments; MultiSKU is true then.
	SKUs     []string
	MultiSKU bool
}

// ParseQuery parses the raw (non-lower-cased) query into a Query. An empty
// or whitespace-only input yields a Query with empty Lower; callers treat
// that as "return nothing".
func ParseQuery(raw string) Query {
	trimmed := strings.TrimSpace(raw)
	q := Query{
		Raw:   trimmed,
		Lower: strings.ToLower(trimmed),
	}
	if trimmed == "" {
		return q
	}

	q.Tokens = Tokenize(q.Lower)
	q.SKULike = skuShapeRe.MatchString(trimmed)

	segments := parseSKUSegments(trimmed)
	if len(segments) >= 2 {
		q.MultiSKU = true
		q.SKUs = segments
	}

	return q
}

// parseSKUSegments extracts SKU-shaped segments from a raw query per the
// multi-SKU syntax contract.
func parseSKUSegments(raw string) []string {
	var segments []string
	for _, seg := range multiSKUSplitRe.Split(raw, -1) {
		seg = strings.TrimSpace(seg)
		if skuShapeRe.MatchString(seg) {
			segments = append(segments, seg)
		}
	}
	return segments
}
