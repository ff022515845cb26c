package repositories

import (
	"context"
	"errors"

	"lapak/internal/models"
)

// ErrNotFound is returned when a record does not exist.
var ErrNotFound = errors.New("record not found")

// ProductRepository defines the interface for product data access.
// DecrementStock and IncrementStock are the only write paths for stock.
type ProductRepository interface {
	GetAll(ctx context.Context) ([]models.Product, error)
	GetByID(ctx context.Context, id string) (*models.Product, error)
	Create(ctx context.Context, product *models.Product) error
	Update(ctx context.Context, product *models.Product) error
	Delete(ctx context.Context, id string) error

	// DecrementStock subtracts qty from the product's stock only if the
	// current stock covers it, as one atomic conditional update. It
	// returns the number of rows affected: 1 when the decrement was
	// applied, 0 when stock was insufficient or the product is missing.
	DecrementStock(ctx context.Context, id string, qty int) (int64, error)

	// IncrementStock adds qty back to the product's stock.
	IncrementStock(ctx context.Context, id string, qty int) error
}

// OrderRepository defines the interface for order data access. Orders are
// append-only; Create persists the header and all items together.
type OrderRepository interface {
	GetAll(ctx context.Context) ([]models.Order, error)
	GetByID(ctx context.Context, id string) (*models.Order, error)
	GetByUser(ctx context.Context, userID string) ([]models.Order, error)
	Create(ctx context.Context, order *models.Order) error
}

// UserRepository defines the interface for user data access.
type UserRepository interface {
	Create(ctx context.Context, user *models.User) error
	GetByUsername(ctx context.Context, username string) (*models.User, error)
	GetByEmail(ctx context.Context, email string) (*models.User, error)
	GetByID(ctx context.Context, id string) (*models.User, error)
}

// Store aggregates the repositories of one consistency domain and exposes
// its transactional scope.
type Store interface {
	Products() ProductRepository
	Orders() OrderRepository
	Users() UserRepository

	// WithinTx runs fn against a Store bound to a single transaction.
	// If fn returns an error every write made through that Store is
	// rolled back; otherwise all writes commit together.
	WithinTx(ctx context.Context, fn func(Store) error) error
}
