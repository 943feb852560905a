//go:build integration

package service_test

import (
	"context"
	"database/sql"
	"errors"
	"fmt"
	"sync"
	"testing"
	"time"

	"github.com/golang-migrate/migrate/v4"
	_ "github.com/golang-migrate/migrate/v4/database/postgres"
	_ "github.com/golang-migrate/migrate/v4/source/file"
	_ "github.com/lib/pq"
	"github.com/linemk/dental-mall/internal/authz"
	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/ordernumber"
	"github.com/linemk/dental-mall/internal/service"
	"github.com/linemk/dental-mall/internal/storage"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
	"github.com/testcontainers/testcontainers-go"
	"github.com/testcontainers/testcontainers-go/modules/postgres"
	"github.com/testcontainers/testcontainers-go/wait"
)

// продукты из сидов миграции
const (
	compositeKitID = int64(1)
	glovesID       = int64(2)
)

func setupPostgres(t *testing.T) *sql.DB {
	t.Helper()
	ctx := context.Background()

	pgContainer, err := postgres.Run(ctx,
		"postgres:16-alpine",
		postgres.WithDatabase("dental_mall"),
		postgres.WithUsername("testuser"),
		postgres.WithPassword("testpass"),
		testcontainers.WithWaitStrategy(
			wait.ForLog("database system is ready to accept connections").
				WithOccurrence(2).
				WithStartupTimeout(30*time.Second),
		),
	)
	require.NoError(t, err)
	t.Cleanup(func() {
		if err := pgContainer.Terminate(ctx); err != nil {
			t.Logf("failed to terminate container: %s", err)
		}
	})

	dsn, err := pgContainer.ConnectionString(ctx, "sslmode=disable")
	require.NoError(t, err)

	m, err := migrate.New("file://../../migrations", dsn)
	require.NoError(t, err)
	require.NoError(t, m.Up())

	db, err := sql.Open("postgres", dsn)
	require.NoError(t, err)
	t.Cleanup(func() { db.Close() })
	return db
}

type integrationEnv struct {
	db        *sql.DB
	users     storage.UserStorage
	carts     storage.CartStorage
	orders    storage.OrderStorage
	cart      service.CartService
	addresses service.AddressService
	notifier  *fakeNotifier
	guard     *authz.Guard
	numbers   *ordernumber.Generator
}

func newIntegrationEnv(t *testing.T) *integrationEnv {
	db := setupPostgres(t)
	users := storage.NewUserRepository(db)
	guard := authz.NewGuard(testLogger(), users)
	carts := storage.NewCartRepository(db)
	return &integrationEnv{
		db:        db,
		users:     users,
		carts:     carts,
		orders:    storage.NewOrderRepository(db),
		cart:      service.NewCartService(testLogger(), guard, carts, storage.NewProductRepository(db)),
		addresses: service.NewAddressService(testLogger(), db, guard, storage.NewAddressRepository(db)),
		notifier:  &fakeNotifier{},
		guard:     guard,
		numbers:   ordernumber.New(testLogger()),
	}
}

func (e *integrationEnv) checkout(orders storage.OrderStorage) service.CheckoutService {
	return service.NewCheckoutService(testLogger(), e.db, e.guard, e.carts, storage.NewAddressRepository(e.db), orders, e.numbers, e.notifier, nil)
}

// newShopper создает пользователя с адресом и двумя позициями в корзине
func (e *integrationEnv) newShopper(t *testing.T, email string) (*models.User, *models.Address) {
	t.Helper()
	ctx := context.Background()

	user, err := e.users.CreateUser(ctx, &models.User{Email: email, PassHash: []byte("hash"), Role: models.RoleClinic})
	require.NoError(t, err)
	address, err := e.addresses.Create(ctx, user.ID, service.CreateAddressRequest{Recipient: "Dr. Smile", Line1: "1 Main st", City: "Almaty"})
	require.NoError(t, err)

	_, err = e.cart.AddItem(ctx, user.ID, service.AddItemRequest{ProductID: compositeKitID, Quantity: 2})
	require.NoError(t, err)
	_, err = e.cart.AddItem(ctx, user.ID, service.AddItemRequest{ProductID: glovesID, Quantity: 1})
	require.NoError(t, err)
	return user, address
}

func countRows(t *testing.T, db *sql.DB, query string, args ...any) int {
	t.Helper()
	var n int
	require.NoError(t, db.QueryRow(query, args...).Scan(&n))
	return n
}

func TestIntegration_CheckoutCommitsOrderAndClearsCart(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	user, address := env.newShopper(t, "clinic@example.com")

	// повторное добавление сливается в одну строку
	_, err := env.cart.AddItem(ctx, user.ID, service.AddItemRequest{ProductID: glovesID, Quantity: 2})
	require.NoError(t, err)
	cart, err := env.cart.GetCart(ctx, user.ID)
	require.NoError(t, err)
	require.Len(t, cart.Items, 2)
	assert.Equal(t, 3, cart.Items[1].Quantity)

	order, err := env.checkout(env.orders).PlaceOrder(ctx, user.ID, service.PlaceOrderRequest{
		AddressID:     address.ID,
		PaymentMethod: models.PaymentMethodInvoice,
	})
	require.NoError(t, err)

	// 2 x 129.99 + 3 x 45.00
	assert.Equal(t, "435.00", order.Subtotal.StringFixed(2))
	assert.Equal(t, "40.02", order.Discount.StringFixed(2))
	assert.Equal(t, "394.98", order.Total.StringFixed(2))

	stored, err := env.orders.GetOrderForUser(ctx, user.ID, order.ID)
	require.NoError(t, err)
	assert.True(t, stored.Reconciles())
	assert.Len(t, stored.Items, 2)
	assert.Equal(t, 0, countRows(t, env.db, "SELECT COUNT(*) FROM cart_items WHERE user_id = $1", user.ID))
	assert.Len(t, env.notifier.placed, 1)
}

// failingOrders вставляет заказ, а затем сообщает об ошибке, чтобы проверить откат
type failingOrders struct {
	storage.OrderStorage
}

func (f failingOrders) CreateOrderWithItems(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	if err := f.OrderStorage.CreateOrderWithItems(ctx, tx, order); err != nil {
		return err
	}
	return errors.New("disk full")
}

func TestIntegration_FailedCheckoutLeavesNoTrace(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	user, address := env.newShopper(t, "clinic@example.com")

	_, err := env.checkout(failingOrders{env.orders}).PlaceOrder(ctx, user.ID, service.PlaceOrderRequest{
		AddressID:     address.ID,
		PaymentMethod: models.PaymentMethodInvoice,
	})
	require.Error(t, err)

	assert.Equal(t, 0, countRows(t, env.db, "SELECT COUNT(*) FROM orders"))
	assert.Equal(t, 0, countRows(t, env.db, "SELECT COUNT(*) FROM order_items"))
	assert.Equal(t, 2, countRows(t, env.db, "SELECT COUNT(*) FROM cart_items WHERE user_id = $1", user.ID))
	assert.Empty(t, env.notifier.placed)
}

func TestIntegration_ConcurrentCheckoutsGetDistinctNumbers(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	svc := env.checkout(env.orders)

	const shoppers = 8
	type shopper struct {
		user    *models.User
		address *models.Address
	}
	list := make([]shopper, 0, shoppers)
	for i := 0; i < shoppers; i++ {
		u, a := env.newShopper(t, fmt.Sprintf("clinic%d@example.com", i))
		list = append(list, shopper{u, a})
	}

	var wg sync.WaitGroup
	numbers := make(chan string, shoppers)
	for _, s := range list {
		wg.Add(1)
		go func(s shopper) {
			defer wg.Done()
			order, err := svc.PlaceOrder(ctx, s.user.ID, service.PlaceOrderRequest{AddressID: s.address.ID, PaymentMethod: models.PaymentMethodInvoice})
			if assert.NoError(t, err) {
				numbers <- order.OrderNumber
			}
		}(s)
	}
	wg.Wait()
	close(numbers)

	seen := make(map[string]bool)
	for n := range numbers {
		assert.False(t, seen[n], "duplicate order number %s", n)
		seen[n] = true
	}
	assert.Len(t, seen, shoppers)
}

func TestIntegration_SameCartCheckedOutOnce(t *testing.T) {
	env := newIntegrationEnv(t)
	ctx := context.Background()
	svc := env.checkout(env.orders)
	user, address := env.newShopper(t, "clinic@example.com")

	const attempts = 4
	var wg sync.WaitGroup
	errs := make(chan error, attempts)
	for i := 0; i < attempts; i++ {
		wg.Add(1)
		go func() {
			defer wg.Done()
			_, err := svc.PlaceOrder(ctx, user.ID, service.PlaceOrderRequest{AddressID: address.ID, PaymentMethod: models.PaymentMethodInvoice})
			errs <- err
		}()
	}
	wg.Wait()
	close(errs)

	succeeded := 0
	for err := range errs {
		if err == nil {
			succeeded++
			continue
		}
		assert.True(t, errors.Is(err, storage.ErrCartLocked) || errors.Is(err, models.ErrEmptyCart), "unexpected error: %v", err)
	}
	assert.Equal(t, 1, succeeded)
	assert.Equal(t, 1, countRows(t, env.db, "SELECT COUNT(*) FROM orders WHERE user_id = $1", user.ID))
}
