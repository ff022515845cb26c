package services

import (
	"errors"
	"fmt"
)

// Expected outcomes of order placement. All of them describe a legitimate
// state of the world and are surfaced to the caller as-is; only
// ErrPersistenceFailure is worth a retry, which is safe because a failed
// attempt leaves no visible change.
var (
	ErrEmptyOrder         = errors.New("order has no line items")
	ErrInvalidQuantity    = errors.New("quantity must be greater than zero")
	ErrProductNotFound    = errors.New("product not found")
	ErrInsufficientStock  = errors.New("insufficient stock")
	ErrPersistenceFailure = errors.New("order could not be persisted")
)

// LineError reports which line of a purchase request failed and why.
// Reason is one of ErrInvalidQuantity, ErrProductNotFound or
// ErrInsufficientStock.
type LineError struct {
	ProductID string
	Reason    error
}

func (e *LineError) Error() string {
	return fmt.Sprintf("product %s: %v", e.ProductID, e.Reason)
}

func (e *LineError) Unwrap() error {
	return e.Reason
}
