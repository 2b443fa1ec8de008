package postgres

import (
	"context"
	"fmt"

	"github.com/go-faster/sdk/zctx"
	"github.com/jackc/pgx/v5"
	"github.com/jackc/pgx/v5/pgxpool"
	"github.com/shopspring/decimal"
	"go.uber.org/zap"

	"github.com/xenking/pasta-storefront/internal/domain/cart"
	"github.com/xenking/pasta-storefront/internal/storage"
)

const (
	listLineItemsSQL = `SELECT product_id, name, description, category, price, stock, image, quantity
		FROM cart_line_items WHERE slot = $1 ORDER BY position`

	deleteLineItemsSQL = `DELETE FROM cart_line_items WHERE slot = $1`
)

var lineItemColumns = []string{
	"slot", "position", "product_id", "name", "description", "category", "price", "stock", "image", "quantity",
}

var _ cart.Store = (*CartStore)(nil)

// CartStore keeps the cart as one row per line item, ordered by position.
type CartStore struct {
	pool *pgxpool.Pool
	slot string
}

// NewCartStore returns a CartStore for the namespaced cart slot.
func NewCartStore(pool *pgxpool.Pool, namespace string) *CartStore {
	return &CartStore{pool: pool, slot: namespace + storage.KeyCart}
}

// Load reads the line items. Query failures are logged and yield an empty list.
func (s *CartStore) Load(ctx context.Context) []cart.LineItem {
	rows, err := s.pool.Query(ctx, listLineItemsSQL, s.slot)
	if err != nil {
		zctx.From(ctx).Warn("Read stored cart", zap.String("slot", s.slot), zap.Error(err))
		return []cart.LineItem{}
	}

	items, err := pgx.CollectRows(rows, scanLineItem)
	if err != nil {
		zctx.From(ctx).Warn("Discarding unreadable stored cart", zap.String("slot", s.slot), zap.Error(err))
		return []cart.LineItem{}
	}
	return items
}

// Save replaces all rows of the slot in a single transaction.
func (s *CartStore) Save(ctx context.Context, items []cart.LineItem) error {
	err := pgx.BeginFunc(ctx, s.pool, func(tx pgx.Tx) error {
		if _, err := tx.Exec(ctx, deleteLineItemsSQL, s.slot); err != nil {
			return fmt.Errorf("clearing line items: %w", err)
		}
		if len(items) == 0 {
			return nil
		}

		_, err := tx.CopyFrom(ctx, pgx.Identifier{"cart_line_items"}, lineItemColumns,
			pgx.CopyFromSlice(len(items), func(i int) ([]any, error) {
				it := items[i]
				return []any{
					s.slot, i, it.ID, it.Name, it.Description, it.Category,
					it.Price, it.Stock, it.Image, it.Quantity,
				}, nil
			}),
		)
		if err != nil {
			return fmt.Errorf("copying line items: %w", err)
		}
		return nil
	})
	if err != nil {
		return fmt.Errorf("saving cart %q: %w", s.slot, err)
	}
	return nil
}

func scanLineItem(row pgx.CollectableRow) (cart.LineItem, error) {
	var (
		li    cart.LineItem
		price decimal.Decimal
	)
	err := row.Scan(
		&li.ID, &li.Name, &li.Description, &li.Category,
		&price, &li.Stock, &li.Image, &li.Quantity,
	)
	li.Price = price
	return li, err
}
