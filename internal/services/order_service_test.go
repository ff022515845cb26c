package services_test

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"testing"

	"lapak/internal/models"
	"lapak/internal/repositories"
	"lapak/internal/services"

	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func newStoreWithProducts(t *testing.T, products ...models.Product) *repositories.MemoryStore {
	t.Helper()
	store := repositories.NewMemoryStore()
	for i := range products {
		require.NoError(t, store.Products().Create(context.Background(), &products[i]))
	}
	return store
}

func productStock(t *testing.T, store repositories.Store, id string) int {
	t.Helper()
	product, err := store.Products().GetByID(context.Background(), id)
	require.NoError(t, err)
	return product.Stock
}

func TestPlaceOrder_Success(t *testing.T) {
	store := newStoreWithProducts(t,
		models.Product{ID: "p1", Name: "Laptop", Price: 10.0, Stock: 5},
	)
	service := services.NewOrderService(store, nil)

	order, err := service.PlaceOrder(context.Background(), "buyer1", []models.OrderLine{
		{ProductID: "p1", Quantity: 3},
	})
	require.NoError(t, err)
	require.NotNil(t, order)

	assert.NotEmpty(t, order.ID)
	assert.Equal(t, "buyer1", order.UserID)
	assert.Equal(t, 30.0, order.TotalAmount)
	require.Len(t, order.Items, 1)
	assert.Equal(t, "p1", order.Items[0].ProductID)
	assert.Equal(t, 3, order.Items[0].Quantity)
	assert.Equal(t, 10.0, order.Items[0].Price)
	assert.Equal(t, 2, productStock(t, store, "p1"))

	// A second buyer asking for more than what is left is refused and
	// nothing changes.
	order2, err := service.PlaceOrder(context.Background(), "buyer2", []models.OrderLine{
		{ProductID: "p1", Quantity: 3},
	})
	require.Error(t, err)
	assert.Nil(t, order2)
	assert.ErrorIs(t, err, services.ErrInsufficientStock)

	var lineErr *services.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, "p1", lineErr.ProductID)

	assert.Equal(t, 2, productStock(t, store, "p1"))
	orders, err := store.Orders().GetAll(context.Background())
	require.NoError(t, err)
	assert.Len(t, orders, 1)
}

func TestPlaceOrder_MultiLineTotal(t *testing.T) {
	store := newStoreWithProducts(t,
		models.Product{ID: "p1", Name: "Laptop", Price: 1200.0, Stock: 10},
		models.Product{ID: "p2", Name: "Mouse", Price: 25.0, Stock: 50},
	)
	service := services.NewOrderService(store, nil)

	order, err := service.PlaceOrder(context.Background(), "buyer1", []models.OrderLine{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p2", Quantity: 4},
	})
	require.NoError(t, err)

	assert.Equal(t, 2*1200.0+4*25.0, order.TotalAmount)
	require.Len(t, order.Items, 2)
	assert.Equal(t, 8, productStock(t, store, "p1"))
	assert.Equal(t, 46, productStock(t, store, "p2"))

	// Derived invariant: the stored total equals the sum of its lines.
	var sum float64
	for _, item := range order.Items {
		sum += item.Price * float64(item.Quantity)
	}
	assert.Equal(t, order.TotalAmount, sum)
}

func TestPlaceOrder_EmptyOrder(t *testing.T) {
	store := newStoreWithProducts(t)
	service := services.NewOrderService(store, nil)

	order, err := service.PlaceOrder(context.Background(), "buyer1", nil)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, services.ErrEmptyOrder)
}

func TestPlaceOrder_InvalidQuantity(t *testing.T) {
	store := newStoreWithProducts(t,
		models.Product{ID: "p1", Name: "Laptop", Price: 10.0, Stock: 5},
	)
	service := services.NewOrderService(store, nil)

	for _, qty := range []int{0, -3} {
		order, err := service.PlaceOrder(context.Background(), "buyer1", []models.OrderLine{
			{ProductID: "p1", Quantity: qty},
		})
		assert.Nil(t, order)
		assert.ErrorIs(t, err, services.ErrInvalidQuantity)

		var lineErr *services.LineError
		require.ErrorAs(t, err, &lineErr)
		assert.Equal(t, "p1", lineErr.ProductID)
	}

	// The ledger was never touched.
	assert.Equal(t, 5, productStock(t, store, "p1"))
}

func TestPlaceOrder_UnknownProductRollsBack(t *testing.T) {
	store := newStoreWithProducts(t,
		models.Product{ID: "p1", Name: "Laptop", Price: 10.0, Stock: 5},
	)
	service := services.NewOrderService(store, nil)

	order, err := service.PlaceOrder(context.Background(), "buyer1", []models.OrderLine{
		{ProductID: "p1", Quantity: 2},
		{ProductID: "p99", Quantity: 1},
	})
	require.Error(t, err)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, services.ErrProductNotFound)

	var lineErr *services.LineError
	require.ErrorAs(t, err, &lineErr)
	assert.Equal(t, "p99", lineErr.ProductID)

	// The reservation of p1 made earlier in the attempt was undone.
	assert.Equal(t, 5, productStock(t, store, "p1"))
	orders, err := store.Orders().GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

// releaseLog records the order in which stock is released back.
type releaseLog struct {
	mu  sync.Mutex
	ids []string
}

func (l *releaseLog) add(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()
	l.ids = append(l.ids, id)
}

type recordingProducts struct {
	repositories.ProductRepository
	log *releaseLog
}

func (p *recordingProducts) IncrementStock(ctx context.Context, id string, qty int) error {
	p.log.add(id)
	return p.ProductRepository.IncrementStock(ctx, id, qty)
}

type recordingStore struct {
	repositories.Store
	log *releaseLog
}

func (s *recordingStore) Products() repositories.ProductRepository {
	return &recordingProducts{ProductRepository: s.Store.Products(), log: s.log}
}

func (s *recordingStore) WithinTx(ctx context.Context, fn func(repositories.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repositories.Store) error {
		return fn(&recordingStore{Store: tx, log: s.log})
	})
}

func TestPlaceOrder_ReleasesInReverseOrder(t *testing.T) {
	store := newStoreWithProducts(t,
		models.Product{ID: "p1", Name: "Laptop", Price: 10.0, Stock: 5},
		models.Product{ID: "p2", Name: "Mouse", Price: 5.0, Stock: 5},
	)
	log := &releaseLog{}
	service := services.NewOrderService(&recordingStore{Store: store, log: log}, nil)

	_, err := service.PlaceOrder(context.Background(), "buyer1", []models.OrderLine{
		{ProductID: "p1", Quantity: 1},
		{ProductID: "p2", Quantity: 1},
		{ProductID: "p99", Quantity: 1},
	})
	require.Error(t, err)
	assert.ErrorIs(t, err, services.ErrProductNotFound)

	// LIFO unwind: the last reservation is released first.
	assert.Equal(t, []string{"p2", "p1"}, log.ids)
	assert.Equal(t, 5, productStock(t, store, "p1"))
	assert.Equal(t, 5, productStock(t, store, "p2"))
}

// failingOrders rejects every order insert, simulating a store failure
// after all reservations succeeded.
type failingOrders struct {
	repositories.OrderRepository
}

func (failingOrders) Create(ctx context.Context, order *models.Order) error {
	return fmt.Errorf("simulated store failure")
}

type failingOrderStore struct {
	repositories.Store
}

func (s *failingOrderStore) Orders() repositories.OrderRepository {
	return failingOrders{s.Store.Orders()}
}

func (s *failingOrderStore) WithinTx(ctx context.Context, fn func(repositories.Store) error) error {
	return s.Store.WithinTx(ctx, func(tx repositories.Store) error {
		return fn(&failingOrderStore{tx})
	})
}

func TestPlaceOrder_PersistenceFailureLeavesNoTrace(t *testing.T) {
	store := newStoreWithProducts(t,
		models.Product{ID: "p1", Name: "Laptop", Price: 10.0, Stock: 5},
	)
	service := services.NewOrderService(&failingOrderStore{store}, nil)

	order, err := service.PlaceOrder(context.Background(), "buyer1", []models.OrderLine{
		{ProductID: "p1", Quantity: 3},
	})
	require.Error(t, err)
	assert.Nil(t, order)
	assert.ErrorIs(t, err, services.ErrPersistenceFailure)

	// All reservations were released and nothing committed, so the call
	// is safe to retry as a whole.
	assert.Equal(t, 5, productStock(t, store, "p1"))
	orders, err := store.Orders().GetAll(context.Background())
	require.NoError(t, err)
	assert.Empty(t, orders)
}

func TestPlaceOrder_PriceSnapshot(t *testing.T) {
	store := newStoreWithProducts(t,
		models.Product{ID: "p1", Name: "Laptop", Price: 10.0, Stock: 10},
	)
	service := services.NewOrderService(store, nil)
	ctx := context.Background()

	order, err := service.PlaceOrder(ctx, "buyer1", []models.OrderLine{
		{ProductID: "p1", Quantity: 2},
	})
	require.NoError(t, err)
	assert.Equal(t, 20.0, order.TotalAmount)

	// Raise the catalog price after the order committed.
	product, err := store.Products().GetByID(ctx, "p1")
	require.NoError(t, err)
	product.Price = 99.0
	require.NoError(t, store.Products().Update(ctx, product))

	stored, err := service.GetOrderByID(ctx, order.ID)
	require.NoError(t, err)
	assert.Equal(t, 20.0, stored.TotalAmount)
	require.Len(t, stored.Items, 1)
	assert.Equal(t, 10.0, stored.Items[0].Price)

	// A new order pays the new price.
	order2, err := service.PlaceOrder(ctx, "buyer2", []models.OrderLine{
		{ProductID: "p1", Quantity: 1},
	})
	require.NoError(t, err)
	assert.Equal(t, 99.0, order2.TotalAmount)
}

func TestPlaceOrder_ConcurrentLastUnit(t *testing.T) {
	store := newStoreWithProducts(t,
		models.Product{ID: "p1", Name: "Laptop", Price: 10.0, Stock: 1},
	)
	service := services.NewOrderService(store, nil)

	results := make(chan error, 2)
	var wg sync.WaitGroup
	for i := 0; i < 2; i++ {
		wg.Add(1)
		go func(buyer string) {
			defer wg.Done()
			_, err := service.PlaceOrder(context.Background(), buyer, []models.OrderLine{
				{ProductID: "p1", Quantity: 1},
			})
			results <- err
		}(fmt.Sprintf("buyer%d", i))
	}
	wg.Wait()
	close(results)

	var successes, insufficient int
	for err := range results {
		switch {
		case err == nil:
			successes++
		case errors.Is(err, services.ErrInsufficientStock):
			insufficient++
		default:
			t.Fatalf("unexpected error: %v", err)
		}
	}

	assert.Equal(t, 1, successes)
	assert.Equal(t, 1, insufficient)
	assert.Equal(t, 0, productStock(t, store, "p1"))
}

func TestPlaceOrder_NoOversellAndConservation(t *testing.T) {
	const initialStock = 20
	store := newStoreWithProducts(t,
		models.Product{ID: "p1", Name: "Laptop", Price: 10.0, Stock: initialStock},
	)
	service := services.NewOrderService(store, nil)

	const buyers = 30
	var wg sync.WaitGroup
	for i := 0; i < buyers; i++ {
		wg.Add(1)
		go func(i int) {
			defer wg.Done()
			_, err := service.PlaceOrder(context.Background(), fmt.Sprintf("buyer%d", i), []models.OrderLine{
				{ProductID: "p1", Quantity: 1 + i%2},
			})
			if err != nil && !errors.Is(err, services.ErrInsufficientStock) {
				t.Errorf("unexpected error: %v", err)
			}
		}(i)
	}
	wg.Wait()

	orders, err := store.Orders().GetAll(context.Background())
	require.NoError(t, err)

	var committed int
	for _, order := range orders {
		for _, item := range order.Items {
			committed += item.Quantity
		}
	}

	remaining := productStock(t, store, "p1")
	assert.LessOrEqual(t, committed, initialStock, "oversold")
	assert.GreaterOrEqual(t, remaining, 0, "stock went negative")
	// Conservation: what is left plus what was sold is what we started
	// with.
	assert.Equal(t, initialStock, remaining+committed)
}

func TestGetOrdersForUser(t *testing.T) {
	store := newStoreWithProducts(t,
		models.Product{ID: "p1", Name: "Laptop", Price: 10.0, Stock: 10},
	)
	service := services.NewOrderService(store, nil)
	ctx := context.Background()

	_, err := service.PlaceOrder(ctx, "buyer1", []models.OrderLine{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)
	_, err = service.PlaceOrder(ctx, "buyer1", []models.OrderLine{{ProductID: "p1", Quantity: 2}})
	require.NoError(t, err)
	_, err = service.PlaceOrder(ctx, "buyer2", []models.OrderLine{{ProductID: "p1", Quantity: 1}})
	require.NoError(t, err)

	orders, err := service.GetOrdersForUser(ctx, "buyer1")
	require.NoError(t, err)
	assert.Len(t, orders, 2)
	for _, order := range orders {
		assert.Equal(t, "buyer1", order.UserID)
	}

	all, err := service.GetAllOrders(ctx)
	require.NoError(t, err)
	assert.Len(t, all, 3)
}
