package repositories

import (
	"context"
	"fmt"
	"sort"
	"sync"
	"time"

	"lapak/internal/models"

	"github.com/google/uuid"
)

// MemoryStore is an in-memory implementation of Store. It backs tests and
// demo runs that have no database at hand. Transactions are serialized
// under a store-wide lock: WithinTx runs fn against a snapshot and only
// merges the snapshot back when fn succeeds, so a failed attempt leaves
// no trace, matching the rollback semantics of the GORM store.
type MemoryStore struct {
	mu       sync.Mutex
	products map[string]models.Product
	orders   map[string]models.Order
	users    map[string]models.User
}

// NewMemoryStore creates an empty MemoryStore.
func NewMemoryStore() *MemoryStore {
	return &MemoryStore{
		products: make(map[string]models.Product),
		orders:   make(map[string]models.Order),
		users:    make(map[string]models.User),
	}
}

func (s *MemoryStore) Products() ProductRepository { return &memProductRepository{s} }
func (s *MemoryStore) Orders() OrderRepository     { return &memOrderRepository{s} }
func (s *MemoryStore) Users() UserRepository       { return &memUserRepository{s} }

// WithinTx runs fn against a private copy of the store. The outer lock is
// held for the whole transaction, so concurrent transactions serialize;
// fn must only touch the Store it is handed.
func (s *MemoryStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	s.mu.Lock()
	defer s.mu.Unlock()

	if err := ctx.Err(); err != nil {
		return err
	}

	tx := s.snapshot()
	if err := fn(tx); err != nil {
		return err
	}

	s.products = tx.products
	s.orders = tx.orders
	s.users = tx.users
	return nil
}

// snapshot deep-copies the store state. Caller must hold s.mu.
func (s *MemoryStore) snapshot() *MemoryStore {
	clone := NewMemoryStore()
	for id, p := range s.products {
		clone.products[id] = p
	}
	for id, o := range s.orders {
		o.Items = append([]models.OrderItem(nil), o.Items...)
		clone.orders[id] = o
	}
	for id, u := range s.users {
		clone.users[id] = u
	}
	return clone
}

type memProductRepository struct{ s *MemoryStore }

func (r *memProductRepository) GetAll(ctx context.Context) ([]models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	products := make([]models.Product, 0, len(r.s.products))
	for _, p := range r.s.products {
		products = append(products, p)
	}
	sort.Slice(products, func(i, j int) bool { return products[i].Price < products[j].Price })
	return products, nil
}

func (r *memProductRepository) GetByID(ctx context.Context, id string) (*models.Product, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	product, ok := r.s.products[id]
	if !ok {
		return nil, fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	return &product, nil
}

func (r *memProductRepository) Create(ctx context.Context, product *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if product.ID == "" {
		product.ID = uuid.New().String()
	}
	r.s.products[product.ID] = *product
	return nil
}

func (r *memProductRepository) Update(ctx context.Context, product *models.Product) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[product.ID]; !ok {
		return fmt.Errorf("product %s: %w", product.ID, ErrNotFound)
	}
	r.s.products[product.ID] = *product
	return nil
}

func (r *memProductRepository) Delete(ctx context.Context, id string) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if _, ok := r.s.products[id]; !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	delete(r.s.products, id)
	return nil
}

// DecrementStock checks and decrements under the store lock, mirroring the
// single conditional UPDATE of the SQL implementation.
func (r *memProductRepository) DecrementStock(ctx context.Context, id string, qty int) (int64, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	product, ok := r.s.products[id]
	if !ok || product.Stock < qty {
		return 0, nil
	}
	product.Stock -= qty
	r.s.products[id] = product
	return 1, nil
}

func (r *memProductRepository) IncrementStock(ctx context.Context, id string, qty int) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	product, ok := r.s.products[id]
	if !ok {
		return fmt.Errorf("product %s: %w", id, ErrNotFound)
	}
	product.Stock += qty
	r.s.products[id] = product
	return nil
}

type memOrderRepository struct{ s *MemoryStore }

func (r *memOrderRepository) GetAll(ctx context.Context) ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	orders := make([]models.Order, 0, len(r.s.orders))
	for _, o := range r.s.orders {
		orders = append(orders, o)
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (r *memOrderRepository) GetByID(ctx context.Context, id string) (*models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	order, ok := r.s.orders[id]
	if !ok {
		return nil, fmt.Errorf("order %s: %w", id, ErrNotFound)
	}
	return &order, nil
}

func (r *memOrderRepository) GetByUser(ctx context.Context, userID string) ([]models.Order, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	var orders []models.Order
	for _, o := range r.s.orders {
		if o.UserID == userID {
			orders = append(orders, o)
		}
	}
	sort.Slice(orders, func(i, j int) bool { return orders[i].CreatedAt.After(orders[j].CreatedAt) })
	return orders, nil
}

func (r *memOrderRepository) Create(ctx context.Context, order *models.Order) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if order.ID == "" {
		order.ID = uuid.New().String()
	}
	if order.CreatedAt.IsZero() {
		order.CreatedAt = time.Now()
	}
	for i := range order.Items {
		order.Items[i].OrderID = order.ID
	}
	stored := *order
	stored.Items = append([]models.OrderItem(nil), order.Items...)
	r.s.orders[order.ID] = stored
	return nil
}

type memUserRepository struct{ s *MemoryStore }

func (r *memUserRepository) Create(ctx context.Context, user *models.User) error {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	if user.ID == "" {
		user.ID = uuid.New().String()
	}
	r.s.users[user.ID] = *user
	return nil
}

func (r *memUserRepository) GetByUsername(ctx context.Context, username string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Username == username {
			user := u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", username, ErrNotFound)
}

func (r *memUserRepository) GetByEmail(ctx context.Context, email string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	for _, u := range r.s.users {
		if u.Email == email {
			user := u
			return &user, nil
		}
	}
	return nil, fmt.Errorf("user %s: %w", email, ErrNotFound)
}

func (r *memUserRepository) GetByID(ctx context.Context, id string) (*models.User, error) {
	r.s.mu.Lock()
	defer r.s.mu.Unlock()

	user, ok := r.s.users[id]
	if !ok {
		return nil, fmt.Errorf("user %s: %w", id, ErrNotFound)
	}
	return &user, nil
}
