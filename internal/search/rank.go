package search

import (
	"sort"
	"strings"

	"github.com/harborline/storefront-search/internal/domain"
)

// Score band constants. The relative ordering is a contract with the bucket
// re-partitioning and the UI's grouping logic; treat it as ordinal, not
// cardinal.
const (
	scoreMultiSKUExact   = 2000.0
	scoreMultiSKUPartial = 1500.0

	scoreSKUExactStrong    = 2000.0
	scoreSKUExactWeak      = 1000.0
	scoreSKUPrefixStrong   = 1000.0
	scoreSKUPrefixWeak     = 500.0
	scoreSKUContainsStrong = 600.0
	scoreSKUContainsWeak   = 300.0
	scoreSKUSubsequence    = 400.0

	// A direct SKU score at or above this dominates the item's score;
	// text bands are skipped for it.
	skuShortCircuit = 800.0

	scoreNameExact    = 1000.0
	scoreNamePrefix   = 500.0
	scoreNameContains = 200.0
	scoreSlugContains = 150.0

	scoreTokenExact    = 50.0
	scoreTokenPrefix   = 25.0
	scoreTokenContains = 10.0
	tokenCompleteBonus = 1.5

	weightProduct  = 5.0
	weightCategory = 2.0
	weightBrand    = 1.0
	weightTag      = 1.0

	fuzzyScale = 30.0
)

// SKUMatchKind classifies how an item's SKU relates to the query's SKUs.
type SKUMatchKind int

const (
	SKUMatchNone SKUMatchKind = iota
	SKUMatchPartial
	SKUMatchExact
)

// Score produces a non-negative relevance score for one candidate item.
// Zero means "not a match, exclude".
func Score(q Query, item *domain.SearchIndexItem) float64 {
	if q.Lower == "" {
		return 0
	}

	sku := strings.ToLower(strings.TrimSpace(item.SKU))

	if q.MultiSKU && sku != "" {
		// A batch SKU lookup short-circuits on any SKU hit so it is not
		// diluted by name-token noise.
		switch multiSKUMatch(q, sku) {
		case SKUMatchExact:
			return scoreMultiSKUExact
		case SKUMatchPartial:
			return scoreMultiSKUPartial
		}
	}

	var score float64

	if !q.MultiSKU && sku != "" {
		direct := directSKUScore(q, sku)
		if direct >= skuShortCircuit {
			return direct
		}
		score += direct
	}

	name := strings.ToLower(item.Name)
	switch {
	case name == q.Lower:
		score += scoreNameExact
	case strings.HasPrefix(name, q.Lower):
		score += scoreNamePrefix
	case strings.Contains(name, q.Lower):
		score += scoreNameContains
	}

	if strings.Contains(strings.ToLower(item.Slug), q.Lower) {
		score += scoreSlugContains
	}

	score += tokenOverlapScore(q.Tokens, item.Tokens)

	// Type weighting is a tie-breaking nudge among matches, never a reason
	// to match on its own.
	if score > 0 {
		switch item.Type {
		case domain.TypeProduct:
			score += weightProduct
		case domain.TypeCategory:
			score += weightCategory
		default:
			score += weightBrand
		}
	}

	score += fuzzyScale * orderedOverlapRatio(q.Lower, name)

	return score
}

// directSKUScore scores a single (non-multi) query against an item SKU.
// Queries that look like a SKU get the stronger boost on each relation.
func directSKUScore(q Query, sku string) float64 {
	switch {
	case sku == q.Lower:
		if q.SKULike {
			return scoreSKUExactStrong
		}
		return scoreSKUExactWeak
	case strings.HasPrefix(sku, q.Lower):
		if q.SKULike {
			return scoreSKUPrefixStrong
		}
		return scoreSKUPrefixWeak
	case strings.Contains(sku, q.Lower):
		if q.SKULike {
			return scoreSKUContainsStrong
		}
		return scoreSKUContainsWeak
	}

	// Ordered-subsequence fallback: tolerate missing or transposed
	// separator characters ("AB12" loosely matching "AB-12-X").
	if q.SKULike && len(q.Lower) >= 2 {
		matched := orderedMatches(q.Lower, sku)
		threshold := len(q.Lower)
		if threshold > 3 {
			threshold = 3
		}
		if matched >= threshold {
			return scoreSKUSubsequence * float64(matched) / float64(len(q.Lower))
		}
	}

	return 0
}

// multiSKUMatch classifies the item SKU against the parsed query SKUs.
func multiSKUMatch(q Query, sku string) SKUMatchKind {
	for _, s := range q.SKUs {
		if strings.EqualFold(s, sku) {
			return SKUMatchExact
		}
	}
	for _, s := range q.SKUs {
		ls := strings.ToLower(s)
		if strings.Contains(sku, ls) || strings.Contains(ls, sku) {
			return SKUMatchPartial
		}
	}
	return SKUMatchNone
}

// tokenOverlapScore scores query tokens against the item's precomputed
// tokens. Each query token counts at most once, at the strength of the
// first qualifying item token found. Matching every query token earns a
// completeness bonus.
func tokenOverlapScore(queryTokens, itemTokens []string) float64 {
	var total float64
	considered := 0
	matched := 0

	for _, qt := range queryTokens {
		if len(qt) < 2 {
			continue
		}
		considered++

		var ts float64
		for _, it := range itemTokens {
			switch {
			case it == qt:
				ts = scoreTokenExact
			case strings.HasPrefix(it, qt):
				ts = scoreTokenPrefix
			case strings.Contains(it, qt):
				ts = scoreTokenContains
			}
			if ts > 0 {
				break
			}
		}
		if ts > 0 {
			matched++
			total += ts
		}
	}

	if considered > 0 && matched == considered {
		total *= tokenCompleteBonus
	}

	return total
}

// orderedMatches counts how many characters of q appear, in order but not
// necessarily contiguously, in s. Cheap single-pass alignment; deliberately
// not Levenshtein.
func orderedMatches(q, s string) int {
	matched := 0
	si := 0
	for _, qc := range []byte(q) {
		for si < len(s) {
			if s[si] == qc {
				matched++
				si++
				break
			}
			si++
		}
	}
	return matched
}

// orderedOverlapRatio is the matched fraction of query characters against
// the candidate name, used as a small continuous tie-breaker.
func orderedOverlapRatio(q, name string) float64 {
	if q == "" {
		return 0
	}
	return float64(orderedMatches(q, name)) / float64(len(q))
}

type scoredItem struct {
	item  domain.SearchIndexItem
	score float64
}

// Rank scores every candidate, drops non-matches, sorts by descending score
// (ties keep the original candidate order), truncates to limit, and for
// multi-SKU queries re-partitions the result into exact/partial/other SKU
// buckets so every requested SKU's hits come ahead of unrelated hits.
func Rank(q Query, items []domain.SearchIndexItem, limit int) []domain.SearchIndexItem {
	if q.Lower == "" || limit <= 0 {
		return nil
	}

	scored := make([]scoredItem, 0, len(items))
	for i := range items {
		if s := Score(q, &items[i]); s > 0 {
			scored = append(scored, scoredItem{item: items[i], score: s})
		}
	}

	sort.SliceStable(scored, func(i, j int) bool {
		return scored[i].score > scored[j].score
	})

	if len(scored) > limit {
		scored = scored[:limit]
	}

	results := make([]domain.SearchIndexItem, 0, len(scored))
	for _, s := range scored {
		results = append(results, s.item)
	}

	if q.MultiSKU {
		results = repartitionBySKU(q, results)
	}

	return results
}

// repartitionBySKU splits an already-ranked list into exact SKU matches,
// partial SKU matches, and the rest, preserving relative order within each
// bucket. The raw score alone does not fully separate "matches SKU #2 of 3
// requested" from "matches SKU #1 exactly".
func repartitionBySKU(q Query, items []domain.SearchIndexItem) []domain.SearchIndexItem {
	var exact, partial, other []domain.SearchIndexItem
	for _, item := range items {
		switch ItemSKUMatch(q, &item) {
		case SKUMatchExact:
			exact = append(exact, item)
		case SKUMatchPartial:
			partial = append(partial, item)
		default:
			other = append(other, item)
		}
	}

	out := make([]domain.SearchIndexItem, 0, len(items))
	out = append(out, exact...)
	out = append(out, partial...)
	out = append(out, other...)
	return out
}

// ItemSKUMatch classifies an item against the query's SKU intent: the
// parsed SKU list for multi-SKU queries, or the whole query for a SKU-like
// single query. Used for bucket re-partitioning and skus-group promotion.
func ItemSKUMatch(q Query, item *domain.SearchIndexItem) SKUMatchKind {
	sku := strings.ToLower(strings.TrimSpace(item.SKU))
	if sku == "" {
		return SKUMatchNone
	}

	if q.MultiSKU {
		return multiSKUMatch(q, sku)
	}

	if !q.SKULike {
		return SKUMatchNone
	}
	switch {
	case sku == q.Lower:
		return SKUMatchExact
	case strings.Contains(sku, q.Lower), strings.Contains(q.Lower, sku):
		return SKUMatchPartial
	}
	return SKUMatchNone
}
