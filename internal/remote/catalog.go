package remote

import (
	"context"
	"net/http"
	"net/url"
	"strconv"

	"github.com/fjod/storefront/domain"
)

type ProductClient struct {
	*Client
}

func NewProductClient(opts Options) *ProductClient {
	if opts.Service == "" {
		opts.Service = "product"
	}
	return &ProductClient{Client: NewClient(opts)}
}

// GetProduct is public; it is used to resolve a size and colour selection to
// a variant id before adding to the server cart.
func (c *ProductClient) GetProduct(ctx context.Context, productID string) (*domain.Product, error) {
	var product domain.Product
	_, err := c.do(ctx, call{
		op:     "get_product",
		method: http.MethodGet,
		path:   "/product/admin/prod/product_details/" + url.PathEscape(productID),
		out:    &product,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	return &product, nil
}

type productList struct {
	Products []domain.Product `json:"products"`
}

// ListByCategory returns the products of a sub-category in the service's
// order.
func (c *ProductClient) ListByCategory(ctx context.Context, subcategoryID string) ([]domain.Product, error) {
	var list productList
	_, err := c.do(ctx, call{
		op:     "list_by_category",
		method: http.MethodGet,
		path:   "/product/admin/prod/get_product_BySubcategory3/" + url.PathEscape(subcategoryID),
		out:    &list,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	return nonNil(list.Products), nil
}

// Search proxies the catalog search; results keep the service's ranking.
func (c *ProductClient) Search(ctx context.Context, query string) ([]domain.Product, error) {
	var list productList
	_, err := c.do(ctx, call{
		op:     "search",
		method: http.MethodGet,
		path:   "/product/admin/prod/searchAnything?" + url.Values{"query": {query}}.Encode(),
		out:    &list,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	return nonNil(list.Products), nil
}

// Similar returns one page of products similar to productID. A short page
// is the last one.
func (c *ProductClient) Similar(ctx context.Context, productID string, page, limit int) (*domain.ProductPage, error) {
	q := url.Values{
		"product_id": {productID},
		"page":       {strconv.Itoa(page)},
		"limit":      {strconv.Itoa(limit)},
	}
	var list productList
	_, err := c.do(ctx, call{
		op:     "similar",
		method: http.MethodGet,
		path:   "/products/similar-products?" + q.Encode(),
		out:    &list,
		public: true,
	})
	if err != nil {
		return nil, err
	}
	products := nonNil(list.Products)
	return &domain.ProductPage{
		Products: products,
		Page:     page,
		Limit:    limit,
		HasMore:  len(products) >= limit,
	}, nil
}

func nonNil(products []domain.Product) []domain.Product {
	if products == nil {
		return []domain.Product{}
	}
	return products
}

// PushClient registers device tokens for push notifications.
type PushClient struct {
	*Client
}

func NewPushClient(opts Options) *PushClient {
	if opts.Service == "" {
		opts.Service = "push"
	}
	return &PushClient{Client: NewClient(opts)}
}

type registerDeviceRequest struct {
	DeviceToken string `json:"deviceToken"`
	Platform    string `json:"platform"`
}

// RegisterDevice is fire-and-forget: failures are logged and dropped.
func (c *PushClient) RegisterDevice(ctx context.Context, deviceToken, platform string) {
	if platform == "" {
		platform = "web"
	}
	_, err := c.do(ctx, call{
		op:     "register_device",
		method: http.MethodPost,
		path:   "/notification/device/register",
		body:   registerDeviceRequest{DeviceToken: deviceToken, Platform: platform},
	})
	if err != nil {
		c.log.WarnContext(ctx, "device registration failed", "error", err)
	}
}
