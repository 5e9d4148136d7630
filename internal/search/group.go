package search

import (
	"github.com/harborline/storefront-search/internal/domain"
)

// Group shapes an already-ranked item list into the grouped response both
// the index path and the live fallback path return. For SKU-like and
// multi-SKU queries, products whose SKU matches are promoted into the skus
// bucket and removed from products; relative order is preserved throughout.
func Group(q Query, ranked []domain.SearchIndexItem) domain.GroupedResult {
	res := domain.GroupedResult{
		Products:   []domain.SearchIndexItem{},
		Categories: []domain.SearchIndexItem{},
		Brands:     []domain.SearchIndexItem{},
		Tags:       []domain.SearchIndexItem{},
		SKUs:       []domain.SearchIndexItem{},
	}

	promote := q.SKULike || q.MultiSKU

	for _, item := range ranked {
		if item.Type == domain.TypeProduct && promote && ItemSKUMatch(q, &item) != SKUMatchNone {
			res.SKUs = append(res.SKUs, item)
			continue
		}

		switch item.Type {
		case domain.TypeProduct:
			res.Products = append(res.Products, item)
		case domain.TypeCategory:
			res.Categories = append(res.Categories, item)
		case domain.TypeBrand:
			res.Brands = append(res.Brands, item)
		case domain.TypeTag:
			res.Tags = append(res.Tags, item)
		}
	}

	res.Total = len(ranked)
	return res
}
