// Package notify выполняет побочные эффекты после коммита заказа: счет, письмо, событие.
// Ошибки шагов логируются и считаются в метриках, но никогда не возвращаются вызывающему.
package notify

import (
	"context"
	"fmt"
	"log/slog"
	"time"

	"github.com/linemk/dental-mall/internal/domain/models"
	"github.com/linemk/dental-mall/internal/events"
	"github.com/linemk/dental-mall/internal/invoice"
	"github.com/linemk/dental-mall/internal/lib/metrics"
	"github.com/linemk/dental-mall/internal/mailer"
	"github.com/linemk/dental-mall/internal/objectstore"
)

const DefaultTimeout = 15 * time.Second

type Renderer interface {
	Render(s invoice.Snapshot) ([]byte, error)
}

// InvoiceURLStore сохраняет ссылку на счет в заказе
type InvoiceURLStore interface {
	UpdateInvoiceURL(ctx context.Context, id int64, url string) error
}

type FailureCounter interface {
	SideEffectFailed(step string)
}

type Deps struct {
	Renderer  Renderer
	Uploader  objectstore.Uploader
	Orders    InvoiceURLStore
	Mailer    mailer.Mailer
	Publisher events.Publisher
	Failures  FailureCounter
}

type Pipeline struct {
	log     *slog.Logger
	deps    Deps
	timeout time.Duration
}

func New(log *slog.Logger, deps Deps, timeout time.Duration) *Pipeline {
	if timeout <= 0 {
		timeout = DefaultTimeout
	}
	if deps.Publisher == nil {
		deps.Publisher = events.NopPublisher{}
	}
	return &Pipeline{log: log, deps: deps, timeout: timeout}
}

// detach отвязывает шаги от отмены запроса, но ограничивает их общим таймаутом
func (p *Pipeline) detach(ctx context.Context) (context.Context, context.CancelFunc) {
	return context.WithTimeout(context.WithoutCancel(ctx), p.timeout)
}

func (p *Pipeline) fail(logger *slog.Logger, step string, err error) {
	logger.Error("side effect failed", slog.String("step", step), slog.Any("error", err))
	if p.deps.Failures != nil {
		p.deps.Failures.SideEffectFailed(step)
	}
}

// run выполняет один шаг. Ошибка и паника шага логируются и считаются, наружу не выходят
func (p *Pipeline) run(logger *slog.Logger, step string, fn func() error) (ok bool) {
	defer func() {
		if r := recover(); r != nil {
			p.fail(logger, step, fmt.Errorf("panic: %v", r))
			ok = false
		}
	}()
	if err := fn(); err != nil {
		p.fail(logger, step, err)
		return false
	}
	return true
}

// OrderPlaced рисует и загружает счет, сохраняет ссылку, отправляет письмо и событие.
// Возвращает ссылку на счет, только если она сохранена в заказе, иначе пустую строку
func (p *Pipeline) OrderPlaced(ctx context.Context, user *models.User, order *models.Order, address *models.Address) string {
	const op = "notify.Pipeline.OrderPlaced"
	logger := p.log.With(slog.String("op", op), slog.String("orderNumber", order.OrderNumber))

	ctx, cancel := p.detach(ctx)
	defer cancel()

	invoiceURL := p.issueInvoice(ctx, logger, user, order, address)
	if invoiceURL != "" {
		order.InvoiceURL = &invoiceURL
	}

	if user != nil && user.Email != "" {
		p.run(logger, metrics.StepEmail, func() error {
			msg, err := mailer.OrderPlacedMessage(user.Email, mailer.OrderPlacedData{Order: order, InvoiceURL: invoiceURL})
			if err != nil {
				return err
			}
			return p.deps.Mailer.Send(ctx, msg)
		})
	}

	p.run(logger, metrics.StepPublish, func() error {
		return p.deps.Publisher.Publish(ctx, events.OrderPlaced(order, invoiceURL))
	})

	logger.Info("post-commit processing finished", slog.Bool("invoice", invoiceURL != ""))
	return invoiceURL
}

func (p *Pipeline) issueInvoice(ctx context.Context, logger *slog.Logger, user *models.User, order *models.Order, address *models.Address) string {
	snapshot := invoice.Snapshot{Order: order, Address: address, IssuedAt: time.Now()}
	if user != nil {
		snapshot.CustomerEmail = user.Email
	}

	var pdf []byte
	if !p.run(logger, metrics.StepRender, func() (err error) {
		pdf, err = p.deps.Renderer.Render(snapshot)
		return err
	}) {
		return ""
	}

	var url string
	if !p.run(logger, metrics.StepUpload, func() (err error) {
		url, err = p.deps.Uploader.Upload(ctx, pdf, invoice.ObjectPath(order), "application/pdf")
		return err
	}) {
		return ""
	}

	if !p.run(logger, metrics.StepPersist, func() error {
		return p.deps.Orders.UpdateInvoiceURL(ctx, order.ID, url)
	}) {
		return ""
	}
	return url
}

// StatusChanged уведомляет покупателя об изменении статусов заказа
func (p *Pipeline) StatusChanged(ctx context.Context, user *models.User, order *models.Order, prevStatus models.OrderStatus, prevPayment models.PaymentStatus) {
	const op = "notify.Pipeline.StatusChanged"
	logger := p.log.With(slog.String("op", op), slog.String("orderNumber", order.OrderNumber))

	ctx, cancel := p.detach(ctx)
	defer cancel()

	if user != nil && user.Email != "" {
		p.run(logger, metrics.StepEmail, func() error {
			msg, err := mailer.StatusChangedMessage(user.Email, mailer.StatusChangedData{
				Order:             order,
				PreviousStatus:    prevStatus,
				PreviousPayStatus: prevPayment,
			})
			if err != nil {
				return err
			}
			return p.deps.Mailer.Send(ctx, msg)
		})
	}

	p.run(logger, metrics.StepPublish, func() error {
		return p.deps.Publisher.Publish(ctx, events.StatusChanged(order, prevStatus, prevPayment))
	})
}
