package service_test

import (
	"context"
	"database/sql"
	"log/slog"
	"os"
	"sort"
	"sync"
	"time"

	"github.com/linemk/dental-mall/internal/authz"
	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/storage"
	"github.com/shopspring/decimal"
)

func testLogger() *slog.Logger {
	return slog.New(slog.NewTextHandler(os.Stdout, nil))
}

func dec(s string) decimal.Decimal {
	return decimal.RequireFromString(s)
}

func sale(s string) decimal.NullDecimal {
	return decimal.NewNullDecimal(decimal.RequireFromString(s))
}

// fakeUserRepo — пользователи в памяти
type fakeUserRepo struct {
	mu    sync.Mutex
	users map[string]*models.User // ключ — email
	err   error
}

var _ storage.UserStorage = (*fakeUserRepo)(nil)

func newFakeUserRepo(users ...*models.User) *fakeUserRepo {
	f := &fakeUserRepo{users: make(map[string]*models.User)}
	for _, u := range users {
		f.users[u.Email] = u
	}
	return f
}

func (f *fakeUserRepo) GetUserByEmail(ctx context.Context, email string) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.err != nil {
		return nil, f.err
	}
	user, ok := f.users[email]
	if !ok {
		return nil, storage.ErrUserNotFound
	}
	return user, nil
}

func (f *fakeUserRepo) CreateUser(ctx context.Context, user *models.User) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	user.ID = int64(len(f.users) + 100)
	f.users[user.Email] = user
	return user, nil
}

func (f *fakeUserRepo) GetUserByID(ctx context.Context, id int64) (*models.User, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, u := range f.users {
		if u.ID == id {
			return u, nil
		}
	}
	return nil, storage.ErrUserNotFound
}

var (
	customer    = &models.User{ID: 1, Email: "clinic@example.com", Role: models.RoleClinic}
	otherClient = &models.User{ID: 2, Email: "other@example.com", Role: models.RoleCustomer}
	admin       = &models.User{ID: 9, Email: "admin@example.com", Role: models.RoleAdmin}
)

func newGuard(users *fakeUserRepo) *authz.Guard {
	return authz.NewGuard(testLogger(), users)
}

// fakeCartRepo эмулирует корзину, включая слияние строк по (товар, вариант)
type fakeCartRepo struct {
	mu        sync.Mutex
	lines     []*models.CartLineView
	nextID    int64
	lockErr   error
	deleteErr error
	deleted   []int64
}

var _ storage.CartStorage = (*fakeCartRepo)(nil)

func (f *fakeCartRepo) add(userID, productID int64, name string, list string, salePrice decimal.NullDecimal, qty int) *models.CartLineView {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	line := &models.CartLineView{
		CartLine:    models.CartLine{ID: f.nextID, UserID: userID, ProductID: productID, Quantity: qty, CreatedAt: time.Now()},
		ProductName: name,
		ListPrice:   dec(list),
		SalePrice:   salePrice,
	}
	f.lines = append(f.lines, line)
	return line
}

func (f *fakeCartRepo) userLines(userID int64) []*models.CartLineView {
	out := make([]*models.CartLineView, 0)
	for _, l := range f.lines {
		if l.UserID == userID {
			cp := *l
			out = append(out, &cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out
}

func (f *fakeCartRepo) ListCartLines(ctx context.Context, userID int64) ([]*models.CartLineView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	return f.userLines(userID), nil
}

func (f *fakeCartRepo) LockCartLinesTx(ctx context.Context, tx *sql.Tx, userID int64) ([]*models.CartLineView, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.lockErr != nil {
		return nil, f.lockErr
	}
	return f.userLines(userID), nil
}

func sameVariant(a, b *int64) bool {
	if a == nil || b == nil {
		return a == nil && b == nil
	}
	return *a == *b
}

func (f *fakeCartRepo) UpsertCartLine(ctx context.Context, userID, productID int64, variantID *int64, quantity int) (*models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines {
		if l.UserID == userID && l.ProductID == productID && sameVariant(l.VariantID, variantID) {
			l.Quantity += quantity
			cp := l.CartLine
			return &cp, nil
		}
	}
	f.nextID++
	line := &models.CartLineView{CartLine: models.CartLine{ID: f.nextID, UserID: userID, ProductID: productID, VariantID: variantID, Quantity: quantity}}
	f.lines = append(f.lines, line)
	cp := line.CartLine
	return &cp, nil
}

func (f *fakeCartRepo) UpdateCartLineQuantity(ctx context.Context, userID, lineID int64, quantity int) (*models.CartLine, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, l := range f.lines {
		if l.ID == lineID && l.UserID == userID {
			l.Quantity = quantity
			cp := l.CartLine
			return &cp, nil
		}
	}
	return nil, storage.ErrCartLineNotFound
}

func (f *fakeCartRepo) DeleteCartLine(ctx context.Context, userID, lineID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for i, l := range f.lines {
		if l.ID == lineID && l.UserID == userID {
			f.lines = append(f.lines[:i], f.lines[i+1:]...)
			return nil
		}
	}
	return storage.ErrCartLineNotFound
}

func (f *fakeCartRepo) DeleteCartLines(ctx context.Context, userID int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	kept := f.lines[:0]
	var removed int64
	for _, l := range f.lines {
		if l.UserID == userID {
			removed++
			continue
		}
		kept = append(kept, l)
	}
	f.lines = kept
	return removed, nil
}

func (f *fakeCartRepo) DeleteCartLinesTx(ctx context.Context, tx *sql.Tx, userID int64, lineIDs []int64) (int64, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	if f.deleteErr != nil {
		return 0, f.deleteErr
	}
	ids := make(map[int64]bool, len(lineIDs))
	for _, id := range lineIDs {
		ids[id] = true
	}
	kept := f.lines[:0]
	var removed int64
	for _, l := range f.lines {
		if l.UserID == userID && ids[l.ID] {
			removed++
			f.deleted = append(f.deleted, l.ID)
			continue
		}
		kept = append(kept, l)
	}
	f.lines = kept
	return removed, nil
}

func (f *fakeCartRepo) count(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.userLines(userID))
}

type fakeProductRepo struct {
	products map[int64]*models.Product
	variants map[int64]*models.Variant
}

var _ storage.ProductStorage = (*fakeProductRepo)(nil)

func (f *fakeProductRepo) GetProduct(ctx context.Context, id int64) (*models.Product, error) {
	p, ok := f.products[id]
	if !ok || !p.IsActive {
		return nil, storage.ErrProductNotFound
	}
	return p, nil
}

func (f *fakeProductRepo) GetVariant(ctx context.Context, productID, variantID int64) (*models.Variant, error) {
	v, ok := f.variants[variantID]
	if !ok || v.ProductID != productID {
		return nil, storage.ErrVariantNotFound
	}
	return v, nil
}

type fakeAddressRepo struct {
	mu        sync.Mutex
	addresses map[int64]*models.Address
	nextID    int64
}

var _ storage.AddressStorage = (*fakeAddressRepo)(nil)

func newFakeAddressRepo(addresses ...*models.Address) *fakeAddressRepo {
	f := &fakeAddressRepo{addresses: make(map[int64]*models.Address), nextID: 100}
	for _, a := range addresses {
		f.addresses[a.ID] = a
	}
	return f
}

func (f *fakeAddressRepo) ListAddresses(ctx context.Context, userID int64) ([]*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Address, 0)
	for _, a := range f.addresses {
		if a.UserID == userID {
			out = append(out, a)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID < out[j].ID })
	return out, nil
}

func (f *fakeAddressRepo) GetAddressForUser(ctx context.Context, userID, addressID int64) (*models.Address, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addresses[addressID]
	if !ok || a.UserID != userID {
		return nil, storage.ErrAddressNotFound
	}
	cp := *a
	return &cp, nil
}

func (f *fakeAddressRepo) CountAddressesTx(ctx context.Context, tx *sql.Tx, userID int64) (int, error) {
	list, _ := f.ListAddresses(ctx, userID)
	return len(list), nil
}

func (f *fakeAddressRepo) CreateAddressTx(ctx context.Context, tx *sql.Tx, a *models.Address) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.nextID++
	a.ID = f.nextID
	cp := *a
	f.addresses[a.ID] = &cp
	return nil
}

func (f *fakeAddressRepo) ClearDefaultTx(ctx context.Context, tx *sql.Tx, userID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	for _, a := range f.addresses {
		if a.UserID == userID {
			a.IsDefault = false
		}
	}
	return nil
}

func (f *fakeAddressRepo) SetDefaultTx(ctx context.Context, tx *sql.Tx, userID, addressID int64) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	a, ok := f.addresses[addressID]
	if !ok || a.UserID != userID {
		return storage.ErrAddressNotFound
	}
	a.IsDefault = true
	return nil
}

func (f *fakeAddressRepo) defaults(userID int64) int {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, a := range f.addresses {
		if a.UserID == userID && a.IsDefault {
			n++
		}
	}
	return n
}

// fakeOrderRepo хранит заказы в памяти. createErrs возвращаются по очереди при вставке
type fakeOrderRepo struct {
	mu         sync.Mutex
	orders     map[int64]*models.Order
	nextID     int64
	createErrs []error
	creates    int
}

var _ storage.OrderStorage = (*fakeOrderRepo)(nil)

func newFakeOrderRepo(orders ...*models.Order) *fakeOrderRepo {
	f := &fakeOrderRepo{orders: make(map[int64]*models.Order), nextID: 1000}
	for _, o := range orders {
		f.orders[o.ID] = o
	}
	return f
}

func cloneOrder(o *models.Order) *models.Order {
	cp := *o
	cp.Items = append([]models.OrderItem(nil), o.Items...)
	return &cp
}

func (f *fakeOrderRepo) CreateOrderWithItems(ctx context.Context, tx *sql.Tx, order *models.Order) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.creates++
	if len(f.createErrs) > 0 {
		err := f.createErrs[0]
		f.createErrs = f.createErrs[1:]
		if err != nil {
			return err
		}
	}
	f.nextID++
	order.ID = f.nextID
	order.CreatedAt = time.Now()
	order.UpdatedAt = order.CreatedAt
	for i := range order.Items {
		order.Items[i].ID = int64(i + 1)
		order.Items[i].OrderID = order.ID
	}
	f.orders[order.ID] = cloneOrder(order)
	return nil
}

func (f *fakeOrderRepo) CountOrdersWithNumber(ctx context.Context, number string) (int, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	n := 0
	for _, o := range f.orders {
		if o.OrderNumber == number {
			n++
		}
	}
	return n, nil
}

func (f *fakeOrderRepo) GetOrderByID(ctx context.Context, id int64) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	return cloneOrder(o), nil
}

func (f *fakeOrderRepo) GetOrderForUser(ctx context.Context, userID, id int64) (*models.Order, error) {
	o, err := f.GetOrderByID(ctx, id)
	if err != nil {
		return nil, err
	}
	if o.UserID != userID {
		return nil, storage.ErrOrderNotFound
	}
	return o, nil
}

func (f *fakeOrderRepo) GetOrdersByUserID(ctx context.Context, userID int64) ([]*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	out := make([]*models.Order, 0)
	for _, o := range f.orders {
		if o.UserID == userID {
			cp := cloneOrder(o)
			cp.Items = nil
			out = append(out, cp)
		}
	}
	sort.Slice(out, func(i, j int) bool { return out[i].ID > out[j].ID })
	return out, nil
}

func (f *fakeOrderRepo) LockOrderTx(ctx context.Context, tx *sql.Tx, id int64) (*models.Order, error) {
	return f.GetOrderByID(ctx, id)
}

func (f *fakeOrderRepo) UpdateOrderStatusTx(ctx context.Context, tx *sql.Tx, id int64, upd models.OrderStatusUpdate) (*models.Order, error) {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return nil, storage.ErrOrderNotFound
	}
	if upd.Status != nil {
		o.Status = *upd.Status
	}
	if upd.PaymentStatus != nil {
		o.PaymentStatus = *upd.PaymentStatus
	}
	if upd.AdminNotes != nil {
		o.AdminNotes = upd.AdminNotes
	}
	o.UpdatedAt = time.Now()
	cp := cloneOrder(o)
	cp.Items = nil
	return cp, nil
}

func (f *fakeOrderRepo) UpdateInvoiceURL(ctx context.Context, id int64, url string) error {
	f.mu.Lock()
	defer f.mu.Unlock()
	o, ok := f.orders[id]
	if !ok {
		return storage.ErrOrderNotFound
	}
	o.InvoiceURL = &url
	return nil
}

func (f *fakeOrderRepo) count() int {
	f.mu.Lock()
	defer f.mu.Unlock()
	return len(f.orders)
}

type statusChange struct {
	user        *models.User
	order       *models.Order
	prevStatus  models.OrderStatus
	prevPayment models.PaymentStatus
}

// fakeNotifier записывает вызовы пост-коммитной обработки
type fakeNotifier struct {
	mu         sync.Mutex
	invoiceURL string
	placed     []*models.Order
	changes    []statusChange
}

func (f *fakeNotifier) OrderPlaced(ctx context.Context, user *models.User, order *models.Order, address *models.Address) string {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.placed = append(f.placed, order)
	if f.invoiceURL != "" {
		url := f.invoiceURL
		order.InvoiceURL = &url
	}
	return f.invoiceURL
}

func (f *fakeNotifier) StatusChanged(ctx context.Context, user *models.User, order *models.Order, prevStatus models.OrderStatus, prevPayment models.PaymentStatus) {
	f.mu.Lock()
	defer f.mu.Unlock()
	f.changes = append(f.changes, statusChange{user: user, order: order, prevStatus: prevStatus, prevPayment: prevPayment})
}

func noSale() decimal.NullDecimal {
	return decimal.NullDecimal{}
}
