package models

import "github.com/shopspring/decimal"

// Product — товар каталога. Цены хранятся как NUMERIC(12,2)
type Product struct {
	ID        int64               `json:"id"`
	Name      string              `json:"name"`
	SKU       string              `json:"sku"`
	Price     decimal.Decimal     `json:"price"`
	SalePrice decimal.NullDecimal `json:"sale_price"`
	IsActive  bool                `json:"is_active"`
}

// Variant — вариант товара (размер, фасовка). Пустые цены наследуются от товара
type Variant struct {
	ID        int64               `json:"id"`
	ProductID int64               `json:"product_id"`
	Name      string              `json:"name"`
	Price     decimal.NullDecimal `json:"price"`
	SalePrice decimal.NullDecimal `json:"sale_price"`
}
