package domain

// Bundle is the shaped payload fetched from the catalogue source for a full
// index sync: every indexable entity grouped by type.
type Bundle struct {
	Products   []Product `json:"products"`
	Categories []Term    `json:"categories"`
	Brands     []Term    `json:"brands"`
	Tags       []Term    `json:"tags"`
}

// Product is a raw catalogue product record.
type Product struct {
	ID           int64       `json:"id"`
	Name         string      `json:"name"`
	Slug         string      `json:"slug"`
	SKU          string      `json:"sku"`
	Description  string      `json:"description"`
	Price        int64       `json:"price"`
	RegularPrice int64       `json:"regular_price"`
	OnSale       bool        `json:"on_sale"`
	BrandID      int64       `json:"brand_id"`
	Images       []string    `json:"images"`
	Categories   []Term      `json:"categories"`
	Attributes   []Attribute `json:"attributes"`
}

// Term is a raw taxonomy record (category, brand, or tag).
type Term struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

// Attribute is a named product attribute with its option values
// (e.g. "Size" → ["S", "M", "L"]).
type Attribute struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}
