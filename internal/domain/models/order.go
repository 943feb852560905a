package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// OrderStatus — статус выполнения заказа
type OrderStatus string

const (
	OrderStatusPending    OrderStatus = "PENDING"
	OrderStatusConfirmed  OrderStatus = "CONFIRMED"
	OrderStatusProcessing OrderStatus = "PROCESSING"
	OrderStatusShipped    OrderStatus = "SHIPPED"
	OrderStatusDelivered  OrderStatus = "DELIVERED"
	OrderStatusCancelled  OrderStatus = "CANCELLED"
)

// PaymentStatus — статус оплаты заказа
type PaymentStatus string

const (
	PaymentStatusPending     PaymentStatus = "PENDING"
	PaymentStatusInvoiceSent PaymentStatus = "INVOICE_SENT"
	PaymentStatusPaid        PaymentStatus = "PAID"
	PaymentStatusFailed      PaymentStatus = "FAILED"
	PaymentStatusRefunded    PaymentStatus = "REFUNDED"
)

// PaymentMethod — способ оплаты. Сейчас поддерживается только оплата по счету
type PaymentMethod string

const PaymentMethodInvoice PaymentMethod = "INVOICE"

// порядок статусов выполнения, CANCELLED в цепочку не входит
var orderStatusRank = map[OrderStatus]int{
	OrderStatusPending:    0,
	OrderStatusConfirmed:  1,
	OrderStatusProcessing: 2,
	OrderStatusShipped:    3,
	OrderStatusDelivered:  4,
}

var paymentTransitions = map[PaymentStatus][]PaymentStatus{
	PaymentStatusPending:     {PaymentStatusInvoiceSent, PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusInvoiceSent: {PaymentStatusPaid, PaymentStatusFailed},
	PaymentStatusPaid:        {PaymentStatusRefunded},
}

// Valid проверяет, что значение входит в перечисление
func (s OrderStatus) Valid() bool {
	if s == OrderStatusCancelled {
		return true
	}
	_, ok := orderStatusRank[s]
	return ok
}

// Terminal — из DELIVERED и CANCELLED переходов нет
func (s OrderStatus) Terminal() bool {
	return s == OrderStatusDelivered || s == OrderStatusCancelled
}

// CanTransitionTo допускает движение вперед по цепочке (с пропуском шагов)
// и отмену из любого нетерминального статуса
func (s OrderStatus) CanTransitionTo(next OrderStatus) bool {
	if s == next {
		return true
	}
	if s.Terminal() || !next.Valid() {
		return false
	}
	if next == OrderStatusCancelled {
		return true
	}
	return orderStatusRank[next] > orderStatusRank[s]
}

func (s PaymentStatus) Valid() bool {
	switch s {
	case PaymentStatusPending, PaymentStatusInvoiceSent, PaymentStatusPaid, PaymentStatusFailed, PaymentStatusRefunded:
		return true
	}
	return false
}

func (s PaymentStatus) CanTransitionTo(next PaymentStatus) bool {
	if s == next {
		return true
	}
	for _, allowed := range paymentTransitions[s] {
		if allowed == next {
			return true
		}
	}
	return false
}

func (m PaymentMethod) Supported() bool {
	return m == PaymentMethodInvoice
}

// Order — финансовая запись заказа. После создания меняются только статусы и заметки администратора
type Order struct {
	ID            int64           `json:"id"`
	OrderNumber   string          `json:"order_number"`
	UserID        int64           `json:"user_id"`
	AddressID     int64           `json:"address_id"`
	Status        OrderStatus     `json:"status"`
	PaymentStatus PaymentStatus   `json:"payment_status"`
	PaymentMethod PaymentMethod   `json:"payment_method"`
	Subtotal      decimal.Decimal `json:"subtotal"`
	Discount      decimal.Decimal `json:"discount"`
	DeliveryFee   decimal.Decimal `json:"delivery_fee"`
	Total         decimal.Decimal `json:"total"`
	Notes         *string         `json:"notes"`
	AdminNotes    *string         `json:"admin_notes,omitempty"`
	InvoiceURL    *string         `json:"invoice_url"`
	CreatedAt     time.Time       `json:"created_at"`
	UpdatedAt     time.Time       `json:"updated_at"`
	Items         []OrderItem     `json:"items,omitempty"`
}

// Reconciles проверяет равенство total = subtotal - discount + delivery_fee
func (o *Order) Reconciles() bool {
	return o.Total.Equal(o.Subtotal.Sub(o.Discount).Add(o.DeliveryFee))
}

// OrderItem — позиция заказа с ценой на момент покупки
type OrderItem struct {
	ID          int64           `json:"id"`
	OrderID     int64           `json:"order_id"`
	ProductID   int64           `json:"product_id"`
	VariantID   *int64          `json:"variant_id,omitempty"`
	ProductName string          `json:"product_name"`
	Quantity    int             `json:"quantity"`
	Price       decimal.Decimal `json:"price"`
}

// LineTotal считается от сохраненной цены, а не от текущей цены товара
func (i OrderItem) LineTotal() decimal.Decimal {
	return i.Price.Mul(decimal.NewFromInt(int64(i.Quantity)))
}

// OrderStatusUpdate — частичное изменение заказа администратором. nil-поля не меняются
type OrderStatusUpdate struct {
	Status        *OrderStatus
	PaymentStatus *PaymentStatus
	AdminNotes    *string
}

func (u OrderStatusUpdate) Empty() bool {
	return u.Status == nil && u.PaymentStatus == nil && u.AdminNotes == nil
}
