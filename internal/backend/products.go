package backend

import (
	"context"
	"net/http"
	"strconv"

	"github.com/xenking/pasta-storefront/internal/domain/product"
)

// Products implements product.Repository over the catalog endpoints.
type Products struct {
	c *Client
}

var _ product.Repository = (*Products)(nil)

func (p *Products) List(ctx context.Context) ([]product.Product, error) {
	var out []product.Product
	if _, err := p.c.do(ctx, call{method: http.MethodGet, path: "/products"}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []product.Product{}
	}
	return out, nil
}

func (p *Products) Create(ctx context.Context, in product.Input) (*product.Product, error) {
	var out product.Product
	ok, err := p.c.do(ctx, call{method: http.MethodPost, path: "/products", body: in}, &out)
	if err != nil {
		return nil, err
	}
	if !ok || out.ID == 0 {
		return nil, nil
	}
	return &out, nil
}

func (p *Products) Update(ctx context.Context, id int64, in product.Input) (*product.Product, error) {
	var out product.Product
	ok, err := p.c.do(ctx, call{
		method:   http.MethodPatch,
		path:     productPath(id),
		body:     in,
		notFound: product.ErrNotFound,
	}, &out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &out, nil
}

func (p *Products) Delete(ctx context.Context, id int64) error {
	_, err := p.c.do(ctx, call{
		method:   http.MethodDelete,
		path:     productPath(id),
		notFound: product.ErrNotFound,
	}, nil)
	return err
}

func productPath(id int64) string {
	return "/products/" + strconv.FormatInt(id, 10)
}
