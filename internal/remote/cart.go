package remote

import (
	"context"
	"net/http"
	"net/url"

	"github.com/fjod/storefront/domain"
)

// CartClient talks to the cart service, the authority for the canonical cart
// and its pricing.
type CartClient struct {
	*Client
}

func NewCartClient(opts Options) *CartClient {
	if opts.Service == "" {
		opts.Service = "cart"
	}
	return &CartClient{Client: NewClient(opts)}
}

type addToCartRequest struct {
	ProductID string `json:"productId"`
	VariantID string `json:"variantId"`
	Quantity  int    `json:"quantity"`
}

type updateQuantityRequest struct {
	Quantity int `json:"quantity"`
}

func (c *CartClient) FetchCart(ctx context.Context) (*domain.ServerCart, error) {
	var cart domain.ServerCart
	if _, err := c.do(ctx, call{op: "fetch_cart", method: http.MethodGet, path: "/cart", out: &cart}); err != nil {
		return nil, err
	}
	return &cart, nil
}

// AddToCart adds quantity units of a variant. The server merges duplicates
// and returns the updated cart.
func (c *CartClient) AddToCart(ctx context.Context, productID, variantID string, quantity int) (*domain.ServerCart, error) {
	var cart domain.ServerCart
	_, err := c.do(ctx, call{
		op:     "add_to_cart",
		method: http.MethodPost,
		path:   "/cart/items",
		body:   addToCartRequest{ProductID: productID, VariantID: variantID, Quantity: quantity},
		out:    &cart,
	})
	if err != nil {
		return nil, err
	}
	return &cart, nil
}

func (c *CartClient) UpdateQuantity(ctx context.Context, itemID string, quantity int) error {
	_, err := c.do(ctx, call{
		op:     "update_quantity",
		method: http.MethodPatch,
		path:   "/cart/items/" + url.PathEscape(itemID),
		body:   updateQuantityRequest{Quantity: quantity},
	})
	return err
}

func (c *CartClient) RemoveItem(ctx context.Context, itemID string) error {
	_, err := c.do(ctx, call{
		op:     "remove_item",
		method: http.MethodDelete,
		path:   "/cart/items/" + url.PathEscape(itemID),
	})
	return err
}
