package index

import (
	"strings"

	"github.com/harborline/storefront-search/internal/domain"
	"github.com/harborline/storefront-search/internal/search"
	"github.com/harborline/storefront-search/pkg/slug"
)

// NormalizeProduct flattens a raw catalogue product into an index item with
// its searchable text and token list precomputed. The searchable text joins,
// in order: name, the SKU and its separator-stripped variant, the
// description, category names, and attribute option values, lower-cased as a
// whole. The SKU field itself keeps its original case, trimmed.
func NormalizeProduct(p domain.Product) domain.SearchIndexItem {
	sku := strings.TrimSpace(p.SKU)

	parts := make([]string, 0, 8)
	parts = append(parts, p.Name)
	parts = append(parts, search.SKUVariants(sku)...)
	if p.Description != "" {
		parts = append(parts, p.Description)
	}

	catIDs := make([]int64, 0, len(p.Categories))
	for _, c := range p.Categories {
		catIDs = append(catIDs, c.ID)
		parts = append(parts, c.Name)
	}
	for _, a := range p.Attributes {
		parts = append(parts, a.Options...)
	}

	text := strings.ToLower(strings.Join(parts, " "))

	item := domain.SearchIndexItem{
		Key:            domain.ItemKey(domain.TypeProduct, p.ID),
		ID:             p.ID,
		Type:           domain.TypeProduct,
		Name:           p.Name,
		Slug:           p.Slug,
		SKU:            sku,
		Price:          p.Price,
		RegularPrice:   p.RegularPrice,
		OnSale:         p.OnSale,
		CategoryIDs:    catIDs,
		BrandID:        p.BrandID,
		SearchableText: text,
		Tokens:         search.Tokenize(text),
	}
	if len(p.Images) > 0 {
		item.Image = p.Images[0]
	}
	if item.Slug == "" {
		item.Slug = slug.Generate(p.Name)
	}
	return item
}

// NormalizeTerm flattens a taxonomy record (category, brand, or tag).
func NormalizeTerm(t domain.Term, typ domain.ItemType) domain.SearchIndexItem {
	text := strings.ToLower(t.Name)
	s := t.Slug
	if s == "" {
		s = slug.Generate(t.Name)
	}
	return domain.SearchIndexItem{
		Key:            domain.ItemKey(typ, t.ID),
		ID:             t.ID,
		Type:           typ,
		Name:           t.Name,
		Slug:           s,
		SearchableText: text,
		Tokens:         search.Tokenize(text),
	}
}

// NormalizeBundle converts a full catalogue bundle into the flat item list
// the index holds, products first, then categories, brands, and tags.
func NormalizeBundle(b domain.Bundle) []domain.SearchIndexItem {
	items := make([]domain.SearchIndexItem, 0,
		len(b.Products)+len(b.Categories)+len(b.Brands)+len(b.Tags))

	for _, p := range b.Products {
		items = append(items, NormalizeProduct(p))
	}
	for _, t := range b.Categories {
		items = append(items, NormalizeTerm(t, domain.TypeCategory))
	}
	for _, t := range b.Brands {
		items = append(items, NormalizeTerm(t, domain.TypeBrand))
	}
	for _, t := range b.Tags {
		items = append(items, NormalizeTerm(t, domain.TypeTag))
	}
	return items
}
