package product

import (
	"encoding/json"
	"fmt"
	"strconv"
	"strings"

	"github.com/shopspring/decimal"
)

// DefaultCategory is preselected for new products.
const DefaultCategory = "Simples"

// Form holds raw admin form values before validation.
type Form struct {
	Name        string
	Description string
	Category    string
	Price       string
	Stock       string
	Image       string
}

// Input is a validated product payload sent on create and update.
type Input struct {
	Name        string          `json:"name"`
	Description string          `json:"description"`
	Category    string          `json:"category"`
	Price       decimal.Decimal `json:"price"`
	Stock       int             `json:"stock"`
	Image       string          `json:"image,omitempty"`
}

// MarshalJSON writes the price as a JSON number.
func (in Input) MarshalJSON() ([]byte, error) {
	type plain Input
	return json.Marshal(struct {
		plain
		Price json.Number `json:"price"`
	}{plain: plain(in), Price: json.Number(in.Price.String())})
}

// ValidationError describes a malformed form field.
type ValidationError struct {
	Field  string
	Reason string
}

func (e *ValidationError) Error() string {
	return fmt.Sprintf("%s: %s", e.Field, e.Reason)
}

// FormFrom prefills a form from an existing product for editing.
func FormFrom(p Product) Form {
	return Form{
		Name:        p.Name,
		Description: p.Description,
		Category:    p.Category,
		Price:       p.Price.String(),
		Stock:       strconv.Itoa(p.Stock),
		Image:       p.Image,
	}
}

// Parse validates the form and converts it to an Input. Prices accept a
// decimal comma ("12,50").
func (f Form) Parse() (Input, error) {
	name := strings.TrimSpace(f.Name)
	if name == "" {
		return Input{}, &ValidationError{Field: "name", Reason: "required"}
	}

	category := strings.TrimSpace(f.Category)
	if category == "" {
		category = DefaultCategory
	}

	rawPrice := strings.Replace(strings.TrimSpace(f.Price), ",", ".", 1)
	if rawPrice == "" {
		return Input{}, &ValidationError{Field: "price", Reason: "required"}
	}
	price, err := decimal.NewFromString(rawPrice)
	if err != nil {
		return Input{}, &ValidationError{Field: "price", Reason: "must be a number"}
	}
	if price.IsNegative() {
		return Input{}, &ValidationError{Field: "price", Reason: "must not be negative"}
	}

	stock := 0
	if s := strings.TrimSpace(f.Stock); s != "" {
		stock, err = strconv.Atoi(s)
		if err != nil {
			return Input{}, &ValidationError{Field: "stock", Reason: "must be an integer"}
		}
		if stock < 0 {
			return Input{}, &ValidationError{Field: "stock", Reason: "must not be negative"}
		}
	}

	return Input{
		Name:        name,
		Description: strings.TrimSpace(f.Description),
		Category:    category,
		Price:       price,
		Stock:       stock,
		Image:       strings.TrimSpace(f.Image),
	}, nil
}

// Apply merges the input over p, used when the backend acknowledges an update
// without echoing the stored product.
func (in Input) Apply(p Product) Product {
	p.Name = in.Name
	p.Description = in.Description
	p.Category = in.Category
	p.Price = in.Price
	p.Stock = in.Stock
	p.Image = in.Image
	return p
}
