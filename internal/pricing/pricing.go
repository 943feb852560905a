// Package pricing считает деньги корзины: эффективную цену, суммы по строкам и итоги.
// Пакет не делает ввода-вывода, все вычисления в decimal.
package pricing

import "github.com/shopspring/decimal"

// количество знаков после запятой для денежных сумм
const scale = 2

// Line — входные данные одной строки корзины
type Line struct {
	ListPrice decimal.Decimal
	SalePrice decimal.NullDecimal
	Quantity  int
}

// LineQuote — рассчитанная строка
type LineQuote struct {
	UnitPrice    decimal.Decimal `json:"unit_price"`
	LineTotal    decimal.Decimal `json:"line_total"`
	LineDiscount decimal.Decimal `json:"line_discount"`
}

// Quote — итог по набору строк. Total не включает стоимость доставки
type Quote struct {
	Lines    []LineQuote     `json:"lines"`
	Subtotal decimal.Decimal `json:"subtotal"`
	Discount decimal.Decimal `json:"discount"`
	Total    decimal.Decimal `json:"total"`
}

// EffectivePrice возвращает цену со скидкой, если она задана и ниже базовой.
// Иначе возвращается базовая цена, поэтому скидка строки никогда не отрицательна
func EffectivePrice(list decimal.Decimal, sale decimal.NullDecimal) decimal.Decimal {
	list = list.Round(scale)
	if sale.Valid && sale.Decimal.LessThan(list) {
		return sale.Decimal.Round(scale)
	}
	return list
}

// PriceLine считает одну строку
func PriceLine(l Line) LineQuote {
	qty := decimal.NewFromInt(int64(l.Quantity))
	list := l.ListPrice.Round(scale)
	unit := EffectivePrice(list, l.SalePrice)
	return LineQuote{
		UnitPrice:    unit,
		LineTotal:    unit.Mul(qty),
		LineDiscount: list.Sub(unit).Mul(qty),
	}
}

// Calculate считает строки и итоги. subtotal берется по базовой цене,
// discount — сумма скидок строк, total = subtotal - discount
func Calculate(lines []Line) Quote {
	q := Quote{
		Lines:    make([]LineQuote, 0, len(lines)),
		Subtotal: decimal.Zero,
		Discount: decimal.Zero,
	}
	for _, l := range lines {
		lq := PriceLine(l)
		q.Lines = append(q.Lines, lq)
		q.Subtotal = q.Subtotal.Add(l.ListPrice.Round(scale).Mul(decimal.NewFromInt(int64(l.Quantity))))
		q.Discount = q.Discount.Add(lq.LineDiscount)
	}
	q.Total = q.Subtotal.Sub(q.Discount)
	return q
}
