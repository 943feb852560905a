package mailer

import (
	"bytes"
	"fmt"
	htmltemplate "html/template"
	texttemplate "text/template"

	"github.com/linemk/dental-mall/internal/domain/models"
)

// OrderPlacedData — данные письма о новом заказе
type OrderPlacedData struct {
	Order      *models.Order
	InvoiceURL string
}

// StatusChangedData — данные письма об изменении статуса
type StatusChangedData struct {
	Order             *models.Order
	PreviousStatus    models.OrderStatus
	PreviousPayStatus models.PaymentStatus
}

var templateFuncs = map[string]any{
	"money": func(o *models.Order, field string) string {
		switch field {
		case "subtotal":
			return o.Subtotal.StringFixed(2)
		case "discount":
			return o.Discount.StringFixed(2)
		case "delivery":
			return o.DeliveryFee.StringFixed(2)
		default:
			return o.Total.StringFixed(2)
		}
	},
	"price": func(item models.OrderItem) string { return item.Price.StringFixed(2) },
}

const orderPlacedText = `Thank you for your order {{.Order.OrderNumber}}.
{{range .Order.Items}}
- {{.ProductName}} x{{.Quantity}} @ {{price .}}{{end}}

Subtotal: {{money .Order "subtotal"}}
Discount: {{money .Order "discount"}}
Delivery: {{money .Order "delivery"}}
Total: {{money .Order "total"}}

Payment method: invoice, pay later.
{{if .InvoiceURL}}Invoice: {{.InvoiceURL}}{{else}}Your invoice is being prepared and will be available in your account.{{end}}
`

const orderPlacedHTML = `<h2>Thank you for your order {{.Order.OrderNumber}}</h2>
<table>
{{range .Order.Items}}<tr><td>{{.ProductName}}</td><td>x{{.Quantity}}</td><td>{{price .}}</td></tr>
{{end}}</table>
<p>Subtotal: {{money .Order "subtotal"}}<br>Discount: {{money .Order "discount"}}<br>Delivery: {{money .Order "delivery"}}<br><b>Total: {{money .Order "total"}}</b></p>
<p>Payment method: invoice, pay later.</p>
{{if .InvoiceURL}}<p><a href="{{.InvoiceURL}}">Download invoice</a></p>{{else}}<p>Your invoice is being prepared and will be available in your account.</p>{{end}}
`

const statusChangedText = `Order {{.Order.OrderNumber}} was updated.
Status: {{.PreviousStatus}} -> {{.Order.Status}}
Payment: {{.PreviousPayStatus}} -> {{.Order.PaymentStatus}}
`

const statusChangedHTML = `<h2>Order {{.Order.OrderNumber}} was updated</h2>
<p>Status: {{.PreviousStatus}} &rarr; <b>{{.Order.Status}}</b></p>
<p>Payment: {{.PreviousPayStatus}} &rarr; <b>{{.Order.PaymentStatus}}</b></p>
`

var (
	orderPlacedTextTmpl   = texttemplate.Must(texttemplate.New("placed").Funcs(templateFuncs).Parse(orderPlacedText))
	orderPlacedHTMLTmpl   = htmltemplate.Must(htmltemplate.New("placed").Funcs(templateFuncs).Parse(orderPlacedHTML))
	statusChangedTextTmpl = texttemplate.Must(texttemplate.New("status").Parse(statusChangedText))
	statusChangedHTMLTmpl = htmltemplate.Must(htmltemplate.New("status").Parse(statusChangedHTML))
)

// OrderPlacedMessage собирает письмо-подтверждение заказа
func OrderPlacedMessage(to string, data OrderPlacedData) (Message, error) {
	var text, html bytes.Buffer
	if err := orderPlacedTextTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("mailer: render text: %w", err)
	}
	if err := orderPlacedHTMLTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("mailer: render html: %w", err)
	}
	return Message{
		To:      to,
		Subject: "Order " + data.Order.OrderNumber + " confirmed",
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}

// StatusChangedMessage собирает письмо об изменении статуса заказа
func StatusChangedMessage(to string, data StatusChangedData) (Message, error) {
	var text, html bytes.Buffer
	if err := statusChangedTextTmpl.Execute(&text, data); err != nil {
		return Message{}, fmt.Errorf("mailer: render text: %w", err)
	}
	if err := statusChangedHTMLTmpl.Execute(&html, data); err != nil {
		return Message{}, fmt.Errorf("mailer: render html: %w", err)
	}
	return Message{
		To:      to,
		Subject: "Order " + data.Order.OrderNumber + " status update",
		Text:    text.String(),
		HTML:    html.String(),
	}, nil
}
