package services

import (
	"context"
	"errors"
	"fmt"

	"lapak/internal/repositories"
)

// InventoryLedger owns the per-product stock counts. TryReserve and
// Release are the only paths that move stock; nothing else in the
// codebase writes the stock column.
type InventoryLedger struct {
	products repositories.ProductRepository
}

// NewInventoryLedger creates a ledger over a product repository. Pass a
// transaction-bound repository to make reservations part of that
// transaction.
func NewInventoryLedger(products repositories.ProductRepository) *InventoryLedger {
	return &InventoryLedger{
		products: products,
	}
}

// TryReserve atomically checks and decrements the product's available
// stock. On success it returns the unit price read in the same call, the
// price-at-purchase for the line being reserved. It returns
// ErrProductNotFound for an unknown product, ErrInsufficientStock when
// the conditional decrement matched no row, and ErrInvalidQuantity for a
// non-positive quantity.
//
// The decrement is a single conditional update executed by the store, not
// a read-then-write in this layer, so two callers racing for the last
// units can never both win.
func (l *InventoryLedger) TryReserve(ctx context.Context, productID string, qty int) (float64, error) {
	if qty <= 0 {
		return 0, ErrInvalidQuantity
	}

	product, err := l.products.GetByID(ctx, productID)
	if err != nil {
		if errors.Is(err, repositories.ErrNotFound) {
			return 0, ErrProductNotFound
		}
		return 0, fmt.Errorf("failed to load product %s: %w", productID, err)
	}

	affected, err := l.products.DecrementStock(ctx, productID, qty)
	if err != nil {
		return 0, fmt.Errorf("failed to reserve stock for product %s: %w", productID, err)
	}
	if affected == 0 {
		return 0, ErrInsufficientStock
	}

	return product.Price, nil
}

// Release returns qty units to the product's available stock. It is only
// called to undo a prior successful TryReserve of the same attempt, once
// per reservation.
func (l *InventoryLedger) Release(ctx context.Context, productID string, qty int) error {
	if err := l.products.IncrementStock(ctx, productID, qty); err != nil {
		return fmt.Errorf("failed to release %d units of product %s: %w", qty, productID, err)
	}
	return nil
}
