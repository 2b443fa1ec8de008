package product

import (
	"context"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

// ErrNotFound is returned when a requested product does not exist.
var ErrNotFound = errors.New("product not found")

// Product represents a catalog item available for purchase.
//
// Price decodes from either a JSON number or a numeric string, since the
// backend serializes NUMERIC columns as strings.
type Product struct {
	ID          int64           `json:"id"`
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image,omitempty"`
}

// InStock reports whether at least one unit is available.
func (p Product) InStock() bool {
	return p.Stock > 0
}

// Repository defines the catalog operations exposed by the backend.
type Repository interface {
	List(ctx context.Context) ([]Product, error)
	// Create returns the backend's echoed product, or nil when the backend
	// acknowledged the creation without identifying the new product.
	Create(ctx context.Context, in Input) (*Product, error)
	// Update returns the backend's echoed product, or nil when the backend
	// acknowledged the change without a body.
	Update(ctx context.Context, id int64, in Input) (*Product, error)
	Delete(ctx context.Context, id int64) error
}
