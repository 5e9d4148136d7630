// Package search is the pure scoring core shared by the index manager and
// the live fallback path. It has no storage or network dependency so both
// call sites produce rank-equivalent orderings.
package search

import (
	"regexp"
	"strings"
)

var (
	skuShapeRe  = regexp.MustCompile(`^[A-Za-z0-9_-]{2,}$`)
	nonTokenRe  = regexp.MustCompile(`[^a-z0-9\s_-]+`)
	whitespace  = regexp.MustCompile(`\s+`)
	skuSepStrip = strings.NewReplacer("-", "", "_", "")
)

// Tokenize normalizes and splits text into search tokens. The input is
// expected to be lower-cased by the caller; the function is pure and
// idempotent.
//
// SKU-shaped parts (alphanumeric/-/_, length ≥2) are kept whole, and a
// separator-stripped variant is emitted alongside when it differs, so a
// query for "ABC123" can match a stored "ABC-123" and vice versa. Other
// parts are stripped of punctuation and re-split. No stemming, no stopword
// removal, no deduplication.
func Tokenize(text string) []string {
	if strings.TrimSpace(text) == "" {
		return nil
	}

	var tokens []string
	for _, part := range whitespace.Split(text, -1) {
		if part == "" {
			continue
		}

		if skuShapeRe.MatchString(part) {
			tokens = append(tokens, part)
			if stripped := skuSepStrip.Replace(part); stripped != part && len(stripped) >= 2 {
				tokens = append(tokens, stripped)
			}
			continue
		}

		cleaned := nonTokenRe.ReplaceAllString(part, "")
		for _, piece := range whitespace.Split(cleaned, -1) {
			if len(piece) >= 1 {
				tokens = append(tokens, piece)
			}
		}
	}

	return tokens
}

// SKUVariants returns the SKU itself plus its dash-stripped and
// underscore-stripped variants, skipping duplicates of the original.
// Used when composing searchable text so separator-free queries still hit.
func SKUVariants(sku string) []string {
	sku = strings.TrimSpace(sku)
	if sku == "" {
		return nil
	}

	variants := []string{sku}
	if v := strings.ReplaceAll(sku, "-", ""); v != sku {
		variants = append(variants, v)
	}
	if v := strings.ReplaceAll(sku, "_", ""); v != sku {
		variants = append(variants, v)
	}
	return variants
}
