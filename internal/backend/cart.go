package backend

import (
	"context"
	"net/http"

	"github.com/xenking/pasta-storefront/internal/domain/cart"
)

// Cart implements cart.Remote over the server-side cart endpoints.
type Cart struct {
	c *Client
}

var _ cart.Remote = (*Cart)(nil)

func (r *Cart) Clear(ctx context.Context) error {
	_, err := r.c.do(ctx, call{method: http.MethodDelete, path: "/cart/clear"}, nil)
	return err
}

type addToCartRequest struct {
	ProductID int64 `json:"productId"`
	Quantity  int   `json:"quantity"`
}

func (r *Cart) Add(ctx context.Context, productID int64, quantity int) error {
	_, err := r.c.do(ctx, call{
		method: http.MethodPost,
		path:   "/cart/add",
		body:   addToCartRequest{ProductID: productID, Quantity: quantity},
	}, nil)
	return err
}
