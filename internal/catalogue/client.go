package catalogue

import (
	"context"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strconv"
	"strings"

	"github.com/harborline/storefront-search/internal/domain"
	"github.com/harborline/storefront-search/pkg/httpclient"
)

// Taxonomy slugs understood by the catalogue API. Brands live under two
// taxonomies depending on which plugin populated the source catalogue; the
// legacy one is only consulted when the primary returns nothing.
const (
	TaxonomyCategory    = "product_cat"
	TaxonomyBrand       = "product_brand"
	TaxonomyBrandLegacy = "pwb-brand"
	TaxonomyTag         = "product_tag"
)

// defaultPageSize is the per_page used for full catalogue pulls.
const defaultPageSize = 100

// Client reads the product catalogue behind the search engine.
type Client interface {
	// FetchAll pulls every indexable entity for a full index rebuild.
	FetchAll(ctx context.Context) (domain.Bundle, error)

	// SearchProducts queries the catalogue's own product search.
	SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error)

	// SearchTerms queries one taxonomy's terms by name.
	SearchTerms(ctx context.Context, taxonomy, query string, limit int) ([]domain.Term, error)
}

// HTTPClient talks to the catalogue REST API through the retrying,
// circuit-broken HTTP client.
type HTTPClient struct {
	baseURL  string
	http     *httpclient.CircuitBreakerClient
	log      *slog.Logger
	pageSize int
}

func NewHTTPClient(baseURL string, hc *httpclient.CircuitBreakerClient, log *slog.Logger) *HTTPClient {
	return &HTTPClient{
		baseURL:  strings.TrimRight(baseURL, "/"),
		http:     hc,
		log:      log,
		pageSize: defaultPageSize,
	}
}

// wire types, matching the catalogue API's JSON.

type wireImage struct {
	Src string `json:"src"`
}

type wireTerm struct {
	ID   int64  `json:"id"`
	Name string `json:"name"`
	Slug string `json:"slug"`
}

type wireAttribute struct {
	Name    string   `json:"name"`
	Options []string `json:"options"`
}

type wireProduct struct {
	ID           int64           `json:"id"`
	Name         string          `json:"name"`
	Slug         string          `json:"slug"`
	SKU          string          `json:"sku"`
	Description  string          `json:"description"`
	Price        string          `json:"price"`
	RegularPrice string          `json:"regular_price"`
	OnSale       bool            `json:"on_sale"`
	Images       []wireImage     `json:"images"`
	Categories   []wireTerm      `json:"categories"`
	Brands       []wireTerm      `json:"brands"`
	Attributes   []wireAttribute `json:"attributes"`
}

func (w wireProduct) toDomain() domain.Product {
	p := domain.Product{
		ID:           w.ID,
		Name:         w.Name,
		Slug:         w.Slug,
		SKU:          w.SKU,
		Description:  w.Description,
		Price:        parsePrice(w.Price),
		RegularPrice: parsePrice(w.RegularPrice),
		OnSale:       w.OnSale,
	}
	for _, img := range w.Images {
		p.Images = append(p.Images, img.Src)
	}
	for _, c := range w.Categories {
		p.Categories = append(p.Categories, domain.Term{ID: c.ID, Name: c.Name, Slug: c.Slug})
	}
	if len(w.Brands) > 0 {
		p.BrandID = w.Brands[0].ID
	}
	for _, a := range w.Attributes {
		p.Attributes = append(p.Attributes, domain.Attribute{Name: a.Name, Options: a.Options})
	}
	return p
}

// parsePrice converts a decimal price string ("12.90", "12") to minor units.
// Unparseable prices become zero rather than failing the whole product.
func parsePrice(s string) int64 {
	s = strings.TrimSpace(s)
	if s == "" {
		return 0
	}

	whole, frac, _ := strings.Cut(s, ".")
	major, err := strconv.ParseInt(whole, 10, 64)
	if err != nil {
		return 0
	}

	if len(frac) > 2 {
		frac = frac[:2]
	}
	for len(frac) < 2 {
		frac += "0"
	}
	minor, err := strconv.ParseInt(frac, 10, 64)
	if err != nil {
		return major * 100
	}
	if major < 0 {
		return major*100 - minor
	}
	return major*100 + minor
}

// FetchAll pulls every product page plus all three term taxonomies. Term
// failures degrade the bundle instead of failing it; products are required.
func (c *HTTPClient) FetchAll(ctx context.Context) (domain.Bundle, error) {
	var bundle domain.Bundle

	products, err := c.fetchAllProducts(ctx)
	if err != nil {
		return domain.Bundle{}, fmt.Errorf("fetch products: %w", err)
	}
	bundle.Products = products

	bundle.Categories = c.fetchTermsTolerant(ctx, TaxonomyCategory)
	bundle.Brands = c.fetchBrandsTolerant(ctx)
	bundle.Tags = c.fetchTermsTolerant(ctx, TaxonomyTag)

	return bundle, nil
}

func (c *HTTPClient) fetchAllProducts(ctx context.Context) ([]domain.Product, error) {
	var all []domain.Product
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s/products?page=%d&per_page=%d", c.baseURL, page, c.pageSize)

		var wp []wireProduct
		if err := c.getJSON(ctx, u, &wp); err != nil {
			return nil, fmt.Errorf("page %d: %w", page, err)
		}
		for _, w := range wp {
			all = append(all, w.toDomain())
		}
		if len(wp) < c.pageSize {
			return all, nil
		}
	}
}

func (c *HTTPClient) fetchTermsTolerant(ctx context.Context, taxonomy string) []domain.Term {
	terms, err := c.fetchTerms(ctx, taxonomy)
	if err != nil {
		c.log.WarnContext(ctx, "taxonomy fetch failed, indexing without it",
			"taxonomy", taxonomy, "error", err)
		return nil
	}
	return terms
}

func (c *HTTPClient) fetchBrandsTolerant(ctx context.Context) []domain.Term {
	brands := c.fetchTermsTolerant(ctx, TaxonomyBrand)
	if len(brands) > 0 {
		return brands
	}
	return c.fetchTermsTolerant(ctx, TaxonomyBrandLegacy)
}

func (c *HTTPClient) fetchTerms(ctx context.Context, taxonomy string) ([]domain.Term, error) {
	var all []domain.Term
	for page := 1; ; page++ {
		u := fmt.Sprintf("%s/terms/%s?page=%d&per_page=%d", c.baseURL, taxonomy, page, c.pageSize)

		var wt []wireTerm
		if err := c.getJSON(ctx, u, &wt); err != nil {
			return nil, fmt.Errorf("taxonomy %s page %d: %w", taxonomy, page, err)
		}
		for _, w := range wt {
			all = append(all, domain.Term{ID: w.ID, Name: w.Name, Slug: w.Slug})
		}
		if len(wt) < c.pageSize {
			return all, nil
		}
	}
}

func (c *HTTPClient) SearchProducts(ctx context.Context, query string, limit int) ([]domain.Product, error) {
	u := fmt.Sprintf("%s/products?search=%s&per_page=%d",
		c.baseURL, url.QueryEscape(query), limit)

	var wp []wireProduct
	if err := c.getJSON(ctx, u, &wp); err != nil {
		return nil, fmt.Errorf("search products: %w", err)
	}

	out := make([]domain.Product, 0, len(wp))
	for _, w := range wp {
		out = append(out, w.toDomain())
	}
	return out, nil
}

func (c *HTTPClient) SearchTerms(ctx context.Context, taxonomy, query string, limit int) ([]domain.Term, error) {
	u := fmt.Sprintf("%s/terms/%s?search=%s&per_page=%d",
		c.baseURL, taxonomy, url.QueryEscape(query), limit)

	var wt []wireTerm
	if err := c.getJSON(ctx, u, &wt); err != nil {
		return nil, fmt.Errorf("search taxonomy %s: %w", taxonomy, err)
	}

	out := make([]domain.Term, 0, len(wt))
	for _, w := range wt {
		out = append(out, domain.Term{ID: w.ID, Name: w.Name, Slug: w.Slug})
	}
	return out, nil
}

func (c *HTTPClient) getJSON(ctx context.Context, url string, v any) error {
	resp, err := c.http.Get(ctx, url)
	if err != nil {
		return err
	}
	defer resp.Body.Close()

	if resp.StatusCode != http.StatusOK {
		body, _ := io.ReadAll(io.LimitReader(resp.Body, 4<<10))
		return fmt.Errorf("unexpected status %d: %s", resp.StatusCode, string(body))
	}

	if err := json.NewDecoder(resp.Body).Decode(v); err != nil {
		return fmt.Errorf("decode response: %w", err)
	}
	return nil
}
