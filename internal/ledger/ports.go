package ledger

import (
	"context"
	"errors"

	"paytrack/internal/core"
)

// ErrNotFound is returned when a payment id does not exist in the store.
var ErrNotFound = errors.New("payment not found")

// Ports for storage backends.
type (
	// PaymentStore is the persistence surface the HTTP layer depends on.
	// List and ForEach return payments ordered by date descending, ties
	// broken by id descending (newest first).
	PaymentStore interface {
		Create(ctx context.Context, p core.Payment) (id int64, err error)
		Get(ctx context.Context, id int64) (core.Payment, error)
		Update(ctx context.Context, p core.Payment) error
		Delete(ctx context.Context, id int64) error
		List(ctx context.Context) ([]core.Payment, error)

		// ForEach streams payments one row at a time, without materializing
		// the whole table. Iteration stops at the first error from fn.
		ForEach(ctx context.Context, fn func(core.Payment) error) error
	}
)
