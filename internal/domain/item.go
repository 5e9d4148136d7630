package domain

import "fmt"

// ItemType identifies the kind of catalogue entity behind an index item.
type ItemType string

const (
	TypeProduct  ItemType = "product"
	TypeCategory ItemType = "category"
	TypeBrand    ItemType = "brand"
	TypeTag      ItemType = "tag"
)

// SearchIndexItem is the unit of indexing: one searchable catalogue entity
// with its precomputed searchable text and tokens.
//
// Product-only fields (SKU, Price, RegularPrice, OnSale, Image, CategoryIDs,
// BrandID) are zero-valued for other types. SKU in particular is either the
// trimmed original-case SKU or empty; scoring branches on its presence.
type SearchIndexItem struct {
	Key            string   `json:"key"`
	ID             int64    `json:"id"`
	Type           ItemType `json:"type"`
	Name           string   `json:"name"`
	Slug           string   `json:"slug"`
	SKU            string   `json:"sku,omitempty"`
	Price          int64    `json:"price,omitempty"`
	RegularPrice   int64    `json:"regular_price,omitempty"`
	OnSale         bool     `json:"on_sale,omitempty"`
	Image          string   `json:"image,omitempty"`
	CategoryIDs    []int64  `json:"category_ids,omitempty"`
	BrandID        int64    `json:"brand_id,omitempty"`
	SearchableText string   `json:"searchable_text"`
	Tokens         []string `json:"tokens"`
}

// ItemKey builds the composite storage key for an entity.
func ItemKey(t ItemType, id int64) string {
	return fmt.Sprintf("%s-%d", t, id)
}

// GroupedResult is the shaped search response shared by the index path and
// the live fallback path: results grouped by entity type, plus a skus bucket
// for SKU-driven queries.
type GroupedResult struct {
	Products   []SearchIndexItem `json:"products"`
	Categories []SearchIndexItem `json:"categories"`
	Brands     []SearchIndexItem `json:"brands"`
	Tags       []SearchIndexItem `json:"tags"`
	SKUs       []SearchIndexItem `json:"skus"`
	Total      int               `json:"total"`
	Source     string            `json:"source"`
	TookMs     int64             `json:"took_ms"`
}

// Result sources.
const (
	SourceIndex = "index"
	SourceLive  = "live"
	SourceCache = "cache"
)
