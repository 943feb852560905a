// Package invoice рисует PDF-счет по снимку заказа.
package invoice

import (
	"bytes"
	"errors"
	"fmt"
	"time"

	"github.com/go-pdf/fpdf"
	"github.com/linemk/dental-mall/internal/domain/models"
)

// Snapshot — все, что нужно для счета. Суммы берутся из заказа, а не пересчитываются
type Snapshot struct {
	Order         *models.Order
	CustomerEmail string
	Address       *models.Address
	IssuedAt      time.Time
}

type PDFRenderer struct {
	seller string
}

func NewPDFRenderer(seller string) *PDFRenderer {
	if seller == "" {
		seller = "Dental Mall"
	}
	return &PDFRenderer{seller: seller}
}

var errNoOrder = errors.New("invoice: order is required")

// Render возвращает байты PDF
func (r *PDFRenderer) Render(s Snapshot) ([]byte, error) {
	if s.Order == nil {
		return nil, errNoOrder
	}
	o := s.Order
	issued := s.IssuedAt
	if issued.IsZero() {
		issued = o.CreatedAt
	}

	pdf := fpdf.New("P", "mm", "A4", "")
	// встроенные шрифты в cp1252, UTF-8 перекодируется, неизвестные символы заменяются
	tr := pdf.UnicodeTranslatorFromDescriptor("")
	pdf.SetTitle("Invoice "+o.OrderNumber, true)
	pdf.SetAuthor(r.seller, true)
	pdf.AddPage()

	pdf.SetFont("Helvetica", "B", 18)
	pdf.CellFormat(0, 10, tr(r.seller), "", 1, "L", false, 0, "")
	pdf.SetFont("Helvetica", "", 11)
	pdf.CellFormat(0, 6, "Invoice "+o.OrderNumber, "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Date: "+issued.Format("2006-01-02"), "", 1, "L", false, 0, "")
	pdf.CellFormat(0, 6, "Payment: "+string(o.PaymentMethod)+" (pay later)", "", 1, "L", false, 0, "")
	if s.CustomerEmail != "" {
		pdf.CellFormat(0, 6, tr("Customer: "+s.CustomerEmail), "", 1, "L", false, 0, "")
	}
	if a := s.Address; a != nil {
		pdf.CellFormat(0, 6, tr("Ship to: "+a.Recipient+", "+a.Line1+", "+a.City+" "+a.PostalCode), "", 1, "L", false, 0, "")
	}
	pdf.Ln(6)

	// таблица позиций
	widths := []float64{90, 20, 35, 35}
	pdf.SetFont("Helvetica", "B", 10)
	for i, h := range []string{"Item", "Qty", "Unit price", "Amount"} {
		align := "R"
		if i == 0 {
			align = "L"
		}
		pdf.CellFormat(widths[i], 8, h, "B", 0, align, false, 0, "")
	}
	pdf.Ln(-1)

	pdf.SetFont("Helvetica", "", 10)
	for _, item := range o.Items {
		pdf.CellFormat(widths[0], 7, tr(item.ProductName), "", 0, "L", false, 0, "")
		pdf.CellFormat(widths[1], 7, fmt.Sprintf("%d", item.Quantity), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[2], 7, item.Price.StringFixed(2), "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, item.LineTotal().StringFixed(2), "", 1, "R", false, 0, "")
	}
	pdf.Ln(4)

	totals := [][2]string{
		{"Subtotal", o.Subtotal.StringFixed(2)},
		{"Discount", "-" + o.Discount.StringFixed(2)},
		{"Delivery", o.DeliveryFee.StringFixed(2)},
		{"Total", o.Total.StringFixed(2)},
	}
	for i, row := range totals {
		if i == len(totals)-1 {
			pdf.SetFont("Helvetica", "B", 11)
		}
		pdf.CellFormat(widths[0]+widths[1]+widths[2], 7, row[0], "", 0, "R", false, 0, "")
		pdf.CellFormat(widths[3], 7, row[1], "", 1, "R", false, 0, "")
	}

	if o.Notes != nil && *o.Notes != "" {
		pdf.Ln(6)
		pdf.SetFont("Helvetica", "I", 9)
		pdf.MultiCell(0, 5, tr("Notes: "+*o.Notes), "", "L", false)
	}

	var buf bytes.Buffer
	if err := pdf.Output(&buf); err != nil {
		return nil, fmt.Errorf("invoice: render %s: %w", o.OrderNumber, err)
	}
	return buf.Bytes(), nil
}

// ObjectPath — путь счета в хранилище
func ObjectPath(o *models.Order) string {
	return fmt.Sprintf("invoices/%04d/%s.pdf", o.CreatedAt.Year(), o.OrderNumber)
}
