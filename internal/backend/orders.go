package backend

import (
	"context"
	"encoding/json"
	"net/http"
	"strconv"

	"github.com/go-faster/errors"

	"github.com/xenking/pasta-storefront/internal/domain/order"
)

// Orders implements order.Repository over the order endpoints.
type Orders struct {
	c *Client
}

var _ order.Repository = (*Orders)(nil)

func (o *Orders) ListMine(ctx context.Context) ([]order.Order, error) {
	return o.list(ctx, "/orders")
}

func (o *Orders) ListAll(ctx context.Context) ([]order.Order, error) {
	return o.list(ctx, "/orders/all")
}

func (o *Orders) list(ctx context.Context, path string) ([]order.Order, error) {
	var out []order.Order
	if _, err := o.c.do(ctx, call{method: http.MethodGet, path: path}, &out); err != nil {
		return nil, err
	}
	if out == nil {
		out = []order.Order{}
	}
	return out, nil
}

// placement is the POST /orders response: the created order, optionally
// carrying a payment link.
type placement struct {
	order.Order
	PaymentURL string `json:"paymentUrl"`
}

// Place creates an order from the explicit payload. The response may be the
// order itself, an order carrying "paymentUrl", or {"order": ..., "paymentUrl": ...}.
func (o *Orders) Place(ctx context.Context, req order.PlaceRequest) (*order.Placement, error) {
	_, data, err := o.c.send(ctx, call{method: http.MethodPost, path: "/orders", body: req})
	if err != nil {
		return nil, err
	}
	return decodePlacement(data)
}

func decodePlacement(data []byte) (*order.Placement, error) {
	if len(data) == 0 {
		return &order.Placement{}, nil
	}

	var wrapped struct {
		Order      *order.Order `json:"order"`
		PaymentURL string       `json:"paymentUrl"`
	}
	if err := json.Unmarshal(data, &wrapped); err != nil {
		return nil, errors.Wrap(err, "decode order placement")
	}
	if wrapped.Order != nil {
		return &order.Placement{Order: wrapped.Order, PaymentURL: wrapped.PaymentURL}, nil
	}

	var flat placement
	if err := json.Unmarshal(data, &flat); err != nil {
		return nil, errors.Wrap(err, "decode order placement")
	}
	res := &order.Placement{PaymentURL: flat.PaymentURL}
	if flat.ID != 0 {
		res.Order = &flat.Order
	}
	return res, nil
}

func (o *Orders) UpdateStatus(ctx context.Context, id int64, status order.Status) (*order.Order, error) {
	var out order.Order
	ok, err := o.c.do(ctx, call{
		method:   http.MethodPatch,
		path:     "/orders/" + strconv.FormatInt(id, 10) + "/status",
		body:     map[string]order.Status{"status": status},
		notFound: order.ErrNotFound,
	}, &out)
	if err != nil {
		return nil, err
	}
	if !ok {
		return nil, nil
	}
	return &out, nil
}
