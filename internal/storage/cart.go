package storage

import (
	"context"
	"encoding/json"

	"github.com/go-faster/errors"
	"github.com/go-faster/sdk/zctx"
	"go.uber.org/zap"

	"github.com/xenking/pasta-storefront/internal/domain/cart"
)

var _ cart.Store = (*CartStore)(nil)

// CartStore persists the cart as a JSON array in a single slot.
type CartStore struct {
	slots Slots
	key   string
}

// NewCartStore returns a CartStore writing to the KeyCart slot.
func NewCartStore(slots Slots) *CartStore {
	return &CartStore{slots: slots, key: KeyCart}
}

// Load reads the stored line items. A missing slot, a read failure, or a
// value that is not a JSON array of line items all yield an empty list; the
// last two are logged.
func (s *CartStore) Load(ctx context.Context) []cart.LineItem {
	lg := zctx.From(ctx).With(zap.String("slot", s.key))

	data, err := s.slots.Get(ctx, s.key)
	if err != nil {
		if !errors.Is(err, ErrNotFound) {
			lg.Warn("Read stored cart", zap.Error(err))
		}
		return []cart.LineItem{}
	}

	var items []cart.LineItem
	if err := json.Unmarshal(data, &items); err != nil {
		lg.Warn("Discarding corrupt stored cart", zap.Error(err), zap.Int("bytes", len(data)))
		return []cart.LineItem{}
	}

	items, changed := cart.Normalize(items)
	if changed {
		lg.Warn("Stored cart violated invariants, normalized", zap.Int("items", len(items)))
	}
	return items
}

// Save overwrites the slot with the JSON encoding of items.
func (s *CartStore) Save(ctx context.Context, items []cart.LineItem) error {
	if items == nil {
		items = []cart.LineItem{}
	}
	data, err := json.Marshal(items)
	if err != nil {
		return errors.Wrap(err, "encode cart")
	}
	if err := s.slots.Set(ctx, s.key, data); err != nil {
		return errors.Wrap(err, "write cart slot")
	}
	return nil
}
