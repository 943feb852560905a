package main

import (
	"context"
	"log/slog"
	"net/http"
	"os"
	"os/signal"
	"syscall"
	"time"

	gcs "cloud.google.com/go/storage"
	"github.com/go-chi/chi/v5"
	"github.com/go-chi/chi/v5/middleware"
	"github.com/linemk/dental-mall/internal/app"
	"github.com/linemk/dental-mall/internal/app/handlers"
	"github.com/linemk/dental-mall/internal/authz"
	"github.com/linemk/dental-mall/internal/config"
	"github.com/linemk/dental-mall/internal/events"
	"github.com/linemk/dental-mall/internal/idempotency"
	"github.com/linemk/dental-mall/internal/invoice"
	"github.com/linemk/dental-mall/internal/jwt-new/jwtmiddleware"
	"github.com/linemk/dental-mall/internal/lib/logger"
	"github.com/linemk/dental-mall/internal/lib/logger/handlers/urllog"
	"github.com/linemk/dental-mall/internal/lib/metrics"
	"github.com/linemk/dental-mall/internal/mailer"
	"github.com/linemk/dental-mall/internal/notify"
	"github.com/linemk/dental-mall/internal/objectstore"
	"github.com/linemk/dental-mall/internal/ordernumber"
	"github.com/linemk/dental-mall/internal/service"
	"github.com/linemk/dental-mall/internal/storage"
	"github.com/pkg/errors"
)

func main() {
	// загрузка конфигурации
	cfg := config.MustLoad()

	log := logger.SetupLogger(cfg.Env)
	log.Info("starting app", slog.String("env", cfg.Env))

	application, err := app.NewApp(log, cfg)
	if err != nil {
		log.Error("failed to initialize app", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize app"))
	}
	defer application.Close()

	m := metrics.New()

	uploader, closeUploader, err := newUploader(cfg.Storage)
	if err != nil {
		log.Error("failed to initialize invoice storage", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize invoice storage"))
	}
	defer closeUploader()

	mail, err := newMailer(log, cfg.Mailer)
	if err != nil {
		log.Error("failed to initialize mailer", slog.Any("error", err))
		panic(errors.Wrap(err, "failed to initialize mailer"))
	}

	publisher := events.NewPublisher(events.NewClient(cfg.Kafka.Brokers), cfg.Kafka.Topic)
	defer func() {
		if err := publisher.Close(); err != nil {
			log.Error("failed to close event publisher", slog.Any("error", err))
		}
	}()

	// репозитории
	userRepo := storage.NewUserRepository(application.DB)
	productRepo := storage.NewProductRepository(application.DB)
	cartRepo := storage.NewCartRepository(application.DB)
	addressRepo := storage.NewAddressRepository(application.DB)
	orderRepo := storage.NewOrderRepository(application.DB)

	guard := authz.NewGuard(log, userRepo)
	numbers := ordernumber.New(log,
		ordernumber.WithPrefix(cfg.Checkout.OrderPrefix),
		ordernumber.WithMaxAttempts(cfg.Checkout.MaxNumberAttempts),
		ordernumber.WithCollisionObserver(m.OrderNumberCollision),
	)
	pipeline := notify.New(log, notify.Deps{
		Renderer:  invoice.NewPDFRenderer(""),
		Uploader:  uploader,
		Orders:    orderRepo,
		Mailer:    mail,
		Publisher: publisher,
		Failures:  m,
	}, cfg.Checkout.SideEffectTimeout)

	authService := service.NewAuthService(log, userRepo, cfg.JWT.Secret, time.Duration(cfg.JWT.TokenTTL)*time.Minute)
	cartService := service.NewCartService(log, guard, cartRepo, productRepo)
	addressService := service.NewAddressService(log, application.DB, guard, addressRepo)
	checkoutService := service.NewCheckoutService(log, application.DB, guard, cartRepo, addressRepo, orderRepo, numbers, pipeline, m)
	orderService := service.NewOrderService(log, guard, orderRepo)
	adminService := service.NewOrderAdminService(log, application.DB, guard, userRepo, orderRepo, pipeline)

	router := chi.NewRouter()
	router.Use(middleware.RequestID)
	router.Use(urllog.CustomLoggerMiddleware(log, m))
	router.Use(middleware.Recoverer)
	router.Use(middleware.URLFormat)

	router.Handle("/metrics", m.Handler())
	if cfg.Storage.Driver == config.StorageDriverLocal {
		// отдаем локально сохраненные счета
		router.Handle("/files/*", http.StripPrefix("/files/", http.FileServer(http.Dir(cfg.Storage.LocalDir))))
	}

	router.Post("/api/auth", handlers.AuthHandler(log, authService))

	router.Group(func(r chi.Router) {
		r.Use(jwtmiddleware.NewJWTMiddleware(cfg.JWT.Secret))

		r.Get("/api/cart", handlers.GetCartHandler(log, cartService))
		r.Delete("/api/cart", handlers.ClearCartHandler(log, cartService))
		r.Post("/api/cart/items", handlers.AddCartItemHandler(log, cartService))
		r.Patch("/api/cart/items/{lineID}", handlers.UpdateCartItemHandler(log, cartService))
		r.Delete("/api/cart/items/{lineID}", handlers.RemoveCartItemHandler(log, cartService))

		r.Get("/api/addresses", handlers.ListAddressesHandler(log, addressService))
		r.Post("/api/addresses", handlers.CreateAddressHandler(log, addressService))
		r.Post("/api/addresses/{addressID}/default", handlers.SetDefaultAddressHandler(log, addressService))

		checkout := handlers.CheckoutHandler(log, checkoutService)
		if application.Redis != nil {
			store := idempotency.NewRedisStore(application.Redis)
			r.With(idempotency.Middleware(log, store, cfg.Redis.IdempotencyTTL)).Post("/api/checkout", checkout)
		} else {
			r.Post("/api/checkout", checkout)
		}

		r.Get("/api/orders", handlers.ListOrdersHandler(log, orderService))
		r.Get("/api/orders/{orderID}", handlers.GetOrderHandler(log, orderService))

		r.Get("/api/admin/orders/{orderID}", handlers.AdminGetOrderHandler(log, adminService))
		r.Patch("/api/admin/orders/{orderID}/status", handlers.AdminUpdateOrderStatusHandler(log, adminService))
	})

	srv := &http.Server{
		Addr:    cfg.HTTPServer.Address,
		Handler: router,
		// оформление заказа ждет счет и письмо, поэтому запас на побочные эффекты
		ReadTimeout:  cfg.HTTPServer.Timeout,
		WriteTimeout: cfg.HTTPServer.Timeout + cfg.Checkout.SideEffectTimeout,
		IdleTimeout:  cfg.HTTPServer.IdleTimeout,
	}

	go func() {
		log.Info("starting server", slog.String("address", cfg.HTTPServer.Address))
		if err := srv.ListenAndServe(); err != nil && err != http.ErrServerClosed {
			log.Error("server error", slog.Any("error", err))
		}
	}()

	// graceful shutdown
	stop := make(chan os.Signal, 1)
	signal.Notify(stop, syscall.SIGINT, syscall.SIGTERM)
	stopSign := <-stop
	log.Info("received shutdown signal", slog.String("signal", stopSign.String()))

	ctx, cancel := context.WithTimeout(context.Background(), cfg.Checkout.SideEffectTimeout+5*time.Second)
	defer cancel()

	if err := srv.Shutdown(ctx); err != nil {
		log.Error("server shutdown failed", slog.Any("error", err))
	}
	log.Info("server gracefully stopped")
}

// newUploader выбирает хранилище счетов по драйверу из конфига
func newUploader(cfg config.StorageConfig) (objectstore.Uploader, func(), error) {
	if cfg.Driver == config.StorageDriverLocal {
		return objectstore.NewLocalUploader(cfg.LocalDir, cfg.PublicBaseURL), func() {}, nil
	}

	client, err := gcs.NewClient(context.Background())
	if err != nil {
		return nil, nil, errors.Wrap(err, "failed to create gcs client")
	}
	uploader, err := objectstore.NewGCSUploader(client, cfg.Bucket, cfg.PublicBaseURL)
	if err != nil {
		client.Close()
		return nil, nil, err
	}
	return uploader, func() { client.Close() }, nil
}

// newMailer возвращает SMTP-клиент или, если хост не задан, мейлер, пишущий в лог
func newMailer(log *slog.Logger, cfg config.MailerConfig) (mailer.Mailer, error) {
	if cfg.Host == "" {
		log.Warn("smtp host is empty, emails will only be logged")
		return mailer.NewLogMailer(log), nil
	}
	return mailer.NewSMTPMailer(mailer.SMTPConfig{
		Host:     cfg.Host,
		Port:     cfg.Port,
		Username: cfg.Username,
		Password: cfg.Password,
		From:     cfg.From,
	})
}
