package models

import (
	"time"

	"github.com/shopspring/decimal"
)

// CartLine — строка корзины пользователя. На пару (товар, вариант) у пользователя не больше одной строки
type CartLine struct {
	ID        int64     `json:"id"`
	UserID    int64     `json:"user_id"`
	ProductID int64     `json:"product_id"`
	VariantID *int64    `json:"variant_id,omitempty"`
	Quantity  int       `json:"quantity"`
	CreatedAt time.Time `json:"created_at"`
}

// CartLineView — строка корзины вместе с данными товара и текущими ценами (только чтение)
type CartLineView struct {
	CartLine
	ProductName string              `json:"product_name"`
	SKU         string              `json:"sku"`
	VariantName string              `json:"variant_name,omitempty"`
	ListPrice   decimal.Decimal     `json:"list_price"`
	SalePrice   decimal.NullDecimal `json:"sale_price"`
}

// DisplayName возвращает название позиции для счета и письма
func (v CartLineView) DisplayName() string {
	if v.VariantName == "" {
		return v.ProductName
	}
	return v.ProductName + " (" + v.VariantName + ")"
}
