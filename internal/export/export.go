// Package export writes order listings as gzip-compressed JSON lines.
package export

import (
	"bufio"
	"context"
	"encoding/json"
	"io"

	"github.com/go-faster/errors"
	pgzip "github.com/klauspost/pgzip"

	"github.com/xenking/pasta-storefront/internal/domain/order"
)

// maxLineSize bounds a single exported order when reading back.
const maxLineSize = 1 << 20

// Orders writes one JSON object per order to w, gzip-compressed. It returns
// the number of orders written.
func Orders(ctx context.Context, w io.Writer, orders []order.Order) (int, error) {
	gz := pgzip.NewWriter(w)
	enc := json.NewEncoder(gz)

	n := 0
	for i := range orders {
		if err := ctx.Err(); err != nil {
			_ = gz.Close()
			return n, err
		}
		if err := enc.Encode(&orders[i]); err != nil {
			_ = gz.Close()
			return n, errors.Wrapf(err, "encode order %d", orders[i].ID)
		}
		n++
	}

	if err := gz.Close(); err != nil {
		return n, errors.Wrap(err, "flush gzip")
	}
	return n, nil
}

// Read streams an export produced by Orders and calls fn for each order.
func Read(ctx context.Context, r io.Reader, fn func(order.Order) error) error {
	gz, err := pgzip.NewReader(r)
	if err != nil {
		return errors.Wrap(err, "create gzip reader")
	}
	defer func() { _ = gz.Close() }()

	scanner := bufio.NewScanner(gz)
	scanner.Buffer(make([]byte, 0, 64*1024), maxLineSize)
	line := 0
	for scanner.Scan() {
		if err := ctx.Err(); err != nil {
			return err
		}
		line++
		var o order.Order
		if err := json.Unmarshal(scanner.Bytes(), &o); err != nil {
			return errors.Wrapf(err, "decode line %d", line)
		}
		if err := fn(o); err != nil {
			return err
		}
	}
	if err := scanner.Err(); err != nil {
		return errors.Wrap(err, "scan export")
	}
	return nil
}
