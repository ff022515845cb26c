package repositories

import (
	"context"

	"gorm.io/gorm"
)

// GormStore is a GORM implementation of Store.
type GormStore struct {
	db       *gorm.DB
	products *GORMProductRepository
	orders   *GORMOrderRepository
	users    *GORMUserRepository
}

// NewGormStore creates a new GormStore around an open database handle.
func NewGormStore(db *gorm.DB) *GormStore {
	return &GormStore{
		db:       db,
		products: NewGORMProductRepository(db),
		orders:   NewGORMOrderRepository(db),
		users:    NewGORMUserRepository(db),
	}
}

func (s *GormStore) Products() ProductRepository { return s.products }
func (s *GormStore) Orders() OrderRepository     { return s.orders }
func (s *GormStore) Users() UserRepository       { return s.users }

// WithinTx wraps fn in a database transaction. fn receives a Store whose
// repositories are bound to that transaction; returning an error rolls
// back, returning nil commits.
func (s *GormStore) WithinTx(ctx context.Context, fn func(Store) error) error {
	return s.db.WithContext(ctx).Transaction(func(tx *gorm.DB) error {
		return fn(NewGormStore(tx))
	})
}
