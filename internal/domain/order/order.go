package order

import (
	"context"
	"encoding/json"
	"fmt"
	"strings"
	"time"

	"github.com/go-faster/errors"
	"github.com/shopspring/decimal"
)

var (
	// ErrNotFound is returned when the targeted order does not exist.
	ErrNotFound = errors.New("order not found")
	// ErrInvalidStatus is returned for status values outside the fixed set.
	ErrInvalidStatus = errors.New("invalid order status")
	// ErrEmptyItems is returned when a placement request has no line items.
	ErrEmptyItems = errors.New("items required")
	// ErrAddressRequired is returned when a placement request has no delivery
	// address or phone.
	ErrAddressRequired = errors.New("address and phone required")
)

// InvalidQuantityError indicates a line item has a non-positive quantity.
type InvalidQuantityError struct {
	ProductID int64
}

func (e *InvalidQuantityError) Error() string {
	return fmt.Sprintf("quantity must be greater than 0 for product %d", e.ProductID)
}

// Status is the lifecycle state of an order. Values are case-sensitive.
type Status string

const (
	StatusPaid      Status = "PAID"
	StatusPreparing Status = "PREPARING"
	StatusShipped   Status = "SHIPPED"
	StatusDelivered Status = "DELIVERED"
	StatusCancelled Status = "CANCELLED"
)

// Statuses lists every valid status in lifecycle order.
var Statuses = []Status{
	StatusPaid,
	StatusPreparing,
	StatusShipped,
	StatusDelivered,
	StatusCancelled,
}

// Valid reports whether s is one of the known statuses.
func (s Status) Valid() bool {
	for _, v := range Statuses {
		if s == v {
			return true
		}
	}
	return false
}

// ParseStatus validates a raw status string without case folding.
func ParseStatus(raw string) (Status, error) {
	s := Status(raw)
	if !s.Valid() {
		return "", errors.Wrapf(ErrInvalidStatus, "%q", raw)
	}
	return s, nil
}

// Order is a placed order as reported by the backend. Line items capture the
// product name and price at the time of purchase.
type Order struct {
	ID        int64           `json:"id"`
	CreatedAt time.Time       `json:"orderDate"`
	Status    Status          `json:"status"`
	Total     decimal.Decimal `json:"total"`
	Buyer     *Buyer          `json:"user,omitempty"`
	Items     []Item          `json:"items"`
}

// Buyer identifies who placed an order. Only present in admin listings.
type Buyer struct {
	FirstName string `json:"firstName"`
	LastName  string `json:"lastName"`
	Email     string `json:"email"`
}

// Item is an ordered line item.
type Item struct {
	ID              int64           `json:"id"`
	Quantity        int             `json:"quantity"`
	PriceAtPurchase decimal.Decimal `json:"priceAtPurchase"`
	Product         Snapshot        `json:"product"`
}

// Snapshot is the product reference embedded in an ordered line item.
type Snapshot struct {
	ID    int64           `json:"id,omitempty"`
	Name  string          `json:"name"`
	Price decimal.Decimal `json:"price"`
}

// Subtotal returns priceAtPurchase × quantity.
func (i Item) Subtotal() decimal.Decimal {
	return i.PriceAtPurchase.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// PlaceItem is a line item in an order placement request.
type PlaceItem struct {
	ProductID int64           `json:"productId"`
	Quantity  int             `json:"quantity"`
	Price     decimal.Decimal `json:"price"`
}

// MarshalJSON writes the price as a JSON number.
func (i PlaceItem) MarshalJSON() ([]byte, error) {
	type plain PlaceItem
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain: plain(i), Price: json.Number(i.Price.String())})
}

// PlaceRequest is the explicit order-creation payload.
type PlaceRequest struct {
	Items   []PlaceItem     `json:"items"`
	Total   decimal.Decimal `json:"total"`
	Address string          `json:"address"`
	Phone   string          `json:"phone"`
}

// MarshalJSON writes the total as a JSON number.
func (r PlaceRequest) MarshalJSON() ([]byte, error) {
	type plain PlaceRequest
	return json.Marshal(struct {
		plain
		Total json.Number `json:"total"`
	}{plain: plain(r), Total: json.Number(r.Total.String())})
}

// Validate checks the request before it is sent.
func (r PlaceRequest) Validate() error {
	if len(r.Items) == 0 {
		return ErrEmptyItems
	}
	for _, item := range r.Items {
		if item.Quantity <= 0 {
			return &InvalidQuantityError{ProductID: item.ProductID}
		}
	}
	if strings.TrimSpace(r.Address) == "" || strings.TrimSpace(r.Phone) == "" {
		return ErrAddressRequired
	}
	return nil
}

// Placement is the backend's answer to an order placement. PaymentURL is set
// when the buyer must be redirected to an external payment page.
type Placement struct {
	Order      *Order
	PaymentURL string
}

// Repository defines the order operations exposed by the backend.
type Repository interface {
	// ListMine returns the current user's orders.
	ListMine(ctx context.Context) ([]Order, error)
	// ListAll returns every order. Admin only.
	ListAll(ctx context.Context) ([]Order, error)
	Place(ctx context.Context, req PlaceRequest) (*Placement, error)
	// UpdateStatus returns the backend's echoed order, or nil when the
	// backend acknowledged the change without a body.
	UpdateStatus(ctx context.Context, id int64, status Status) (*Order, error)
}
