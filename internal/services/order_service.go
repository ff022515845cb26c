package services

import (
	"context"
	"errors"
	"fmt"
	"log"
	"time"

	"lapak/internal/models"
	"lapak/internal/repositories"
	"lapak/pkg/rabbitmq"

	"github.com/google/uuid"
)

// OrderService is the order placement engine. A PlaceOrder call either
// commits a complete order (all stock decrements, the header and every
// line record) or leaves the store exactly as it found it.
type OrderService struct {
	store    repositories.Store
	mqClient *rabbitmq.Client
}

// NewOrderService creates a new OrderService. mqClient may be nil, in
// which case order events are not published.
func NewOrderService(store repositories.Store, mqClient *rabbitmq.Client) *OrderService {
	return &OrderService{
		store:    store,
		mqClient: mqClient,
	}
}

// PlaceOrder reserves stock for every requested line in the order given,
// captures each line's unit price at reservation time, and persists the
// order with its computed total as one atomic unit.
//
// Lines are processed in caller order. When a line fails (unknown product
// or not enough stock) every reservation already made in this attempt is
// released in reverse order before the error is returned, and the
// surrounding transaction is rolled back. Failures come back as
// ErrEmptyOrder, a *LineError, or an error wrapping
// ErrPersistenceFailure.
func (s *OrderService) PlaceOrder(ctx context.Context, buyerID string, lines []models.OrderLine) (*models.Order, error) {
	if len(lines) == 0 {
		return nil, ErrEmptyOrder
	}
	// Validate all quantities before touching the ledger.
	for _, line := range lines {
		if line.Quantity <= 0 {
			return nil, &LineError{ProductID: line.ProductID, Reason: ErrInvalidQuantity}
		}
	}

	var placed *models.Order
	err := s.store.WithinTx(ctx, func(tx repositories.Store) error {
		ledger := NewInventoryLedger(tx.Products())

		reserved := make([]models.OrderLine, 0, len(lines))
		items := make([]models.OrderItem, 0, len(lines))
		var total float64

		for _, line := range lines {
			price, err := ledger.TryReserve(ctx, line.ProductID, line.Quantity)
			if err != nil {
				releaseReservations(ctx, ledger, reserved)
				if errors.Is(err, ErrProductNotFound) || errors.Is(err, ErrInsufficientStock) {
					return &LineError{ProductID: line.ProductID, Reason: err}
				}
				return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
			}
			reserved = append(reserved, line)
			items = append(items, models.OrderItem{
				ProductID: line.ProductID,
				Quantity:  line.Quantity,
				Price:     price,
			})
			total += price * float64(line.Quantity)
		}

		order := &models.Order{
			ID:          uuid.New().String(),
			UserID:      buyerID,
			Items:       items,
			TotalAmount: total,
			CreatedAt:   time.Now(),
		}
		if err := tx.Orders().Create(ctx, order); err != nil {
			releaseReservations(ctx, ledger, reserved)
			return fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
		}

		placed = order
		return nil
	})
	if err != nil {
		var lineErr *LineError
		if errors.As(err, &lineErr) || errors.Is(err, ErrPersistenceFailure) {
			return nil, err
		}
		// Anything else escaping the transaction (a failed commit, a
		// store timeout) means nothing was applied.
		return nil, fmt.Errorf("%w: %v", ErrPersistenceFailure, err)
	}

	s.publishOrderPlaced(placed)
	return placed, nil
}

// releaseReservations undoes the reservations of one attempt in reverse
// order of acquisition. Release failures are logged, not surfaced: the
// transaction rollback is the authoritative undo, this keeps stores
// without a real transaction honest too.
func releaseReservations(ctx context.Context, ledger *InventoryLedger, reserved []models.OrderLine) {
	for i := len(reserved) - 1; i >= 0; i-- {
		line := reserved[i]
		if err := ledger.Release(ctx, line.ProductID, line.Quantity); err != nil {
			log.Printf("Warning: failed to release reservation for product %s: %v", line.ProductID, err)
		}
	}
}

// publishOrderPlaced emits an order.placed event after a successful
// commit. Publishing is best effort and never affects the outcome of the
// order.
func (s *OrderService) publishOrderPlaced(order *models.Order) {
	if s.mqClient == nil {
		log.Println("RabbitMQ client is not initialized. Skipping order event publication.")
		return
	}

	event := map[string]interface{}{
		"order_id": order.ID,
		"user_id":  order.UserID,
		"total":    order.TotalAmount,
	}
	if err := s.mqClient.PublishOrderPlaced(event); err != nil {
		log.Printf("Warning: failed to publish order placed event for order %s: %v", order.ID, err)
	} else {
		log.Printf("Published order placed event for order %s", order.ID)
	}
}

// GetAllOrders retrieves all orders.
func (s *OrderService) GetAllOrders(ctx context.Context) ([]models.Order, error) {
	return s.store.Orders().GetAll(ctx)
}

// GetOrderByID retrieves a single order by its ID.
func (s *OrderService) GetOrderByID(ctx context.Context, id string) (*models.Order, error) {
	return s.store.Orders().GetByID(ctx, id)
}

// GetOrdersForUser retrieves a user's order history, newest first.
func (s *OrderService) GetOrdersForUser(ctx context.Context, userID string) ([]models.Order, error) {
	return s.store.Orders().GetByUser(ctx, userID)
}
