package licensing

import (
	"context"
	"errors"
	"log/slog"
	"net/http"
	"time"

	"github.com/go-chi/chi"
	"github.com/streadway/amqp"

	"github.com/magabrotheeeer/subscription-licensing/internal/cache"
	"github.com/magabrotheeeer/subscription-licensing/internal/config"
	"github.com/magabrotheeeer/subscription-licensing/internal/licenseauthority"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/jwt"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/rabbitmq"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/sl"
	"github.com/magabrotheeeer/subscription-licensing/internal/migrations"
	"github.com/magabrotheeeer/subscription-licensing/internal/paymentgateway"
	activationservice "github.com/magabrotheeeer/subscription-licensing/internal/services/activation"
	gateservice "github.com/magabrotheeeer/subscription-licensing/internal/services/gate"
	invoiceservice "github.com/magabrotheeeer/subscription-licensing/internal/services/invoice"
	"github.com/magabrotheeeer/subscription-licensing/internal/services/notifier"
	"github.com/magabrotheeeer/subscription-licensing/internal/services/reconciler"
	"github.com/magabrotheeeer/subscription-licensing/internal/storage/repository"
)

// App инкапсулирует HTTP-сервер, фоновую сверку и разделяемые ресурсы.
type App struct {
	server   *http.Server
	sweeper  *reconciler.Sweeper
	logger   *slog.Logger
	db       *repository.Storage
	rabbitCh *amqp.Channel
	rabbit   *amqp.Connection
}

// New собирает приложение из конфигурации: хранилище с миграциями,
// Redis, RabbitMQ, клиенты внешних центров и платежного шлюза, сервисы
// и маршруты. RabbitMQ необязателен: без него уведомления пропускаются.
func New(ctx context.Context, cfg *config.Config, logger *slog.Logger) (*App, error) {
	db, err := repository.New(cfg.StorageConnectionString)
	if err != nil {
		return nil, err
	}
	if err = migrations.Run(db.DB, cfg.MigrationsPath); err != nil {
		return nil, err
	}

	cacheRedis, err := cache.InitServer(ctx, cfg.RedisConnection)
	if err != nil {
		return nil, err
	}

	var rabbitConn *amqp.Connection
	var rabbitCh *amqp.Channel
	rabbitConn, rabbitCh, err = rabbitmq.Connect(cfg.RabbitConnection.AddressRabbit)
	if err != nil {
		logger.Warn("rabbitmq unavailable, notifications disabled", sl.Err(err))
		rabbitConn, rabbitCh = nil, nil
	} else if err := rabbitmq.SetupExchange(rabbitCh, cfg.RabbitConnection.Exchange); err != nil {
		return nil, err
	}

	authorityClient := licenseauthority.NewClient(cfg.LicenseAuthority, logger)
	gatewayClient := paymentgateway.NewClient(cfg.PaymentGateway)
	jwtMaker := jwt.NewJWTMaker(cfg.JWTToken.JWTSecretKey, cfg.JWTToken.TokenTTL)

	notifierService := notifier.New(rabbitCh, cfg.RabbitConnection.Exchange, logger)
	activationService := activationservice.New(db, logger)
	invoiceService := invoiceservice.New(db, gatewayClient, activationService, notifierService,
		cfg.PaymentGateway.RedirectURL, cfg.Billing.DurationDays, logger)
	gateService := gateservice.New(db, db, db, invoiceService, authorityClient, cacheRedis,
		jwtMaker, cfg.Billing, logger)
	sweeper := reconciler.NewSweeper(db, authorityClient, notifierService,
		cfg.Reconciler.SweepInterval, logger)

	router := chi.NewRouter()
	RegisterRoutes(router, logger, gateService, invoiceService, db, cacheRedis, jwtMaker)

	srv := &http.Server{
		Addr:         cfg.AddressHTTP,
		Handler:      router,
		ReadTimeout:  cfg.TimeoutHTTP,
		WriteTimeout: cfg.TimeoutHTTP,
		IdleTimeout:  cfg.IdleTimeout,
	}

	return &App{
		server:   srv,
		sweeper:  sweeper,
		logger:   logger,
		db:       db,
		rabbitCh: rabbitCh,
		rabbit:   rabbitConn,
	}, nil
}

// Run запускает HTTP-сервер и фоновую сверку, блокируется до отмены
// контекста и останавливает сервер gracefully.
func (a *App) Run(ctx context.Context) error {
	go a.sweeper.Run(ctx)

	errCh := make(chan error, 1)
	go func() {
		a.logger.Info("HTTP server starting on", slog.String("address", a.server.Addr))
		err := a.server.ListenAndServe()
		if errors.Is(err, http.ErrServerClosed) {
			errCh <- nil
		} else {
			errCh <- err
		}
	}()

	select {
	case err := <-errCh:
		return err
	case <-ctx.Done():
		timeoutCtx, cancel := context.WithTimeout(context.Background(), 15*time.Second)
		defer cancel()
		a.logger.Info("shutting down HTTP server gracefully")
		err := a.server.Shutdown(timeoutCtx)
		if a.rabbitCh != nil {
			_ = a.rabbitCh.Close()
		}
		if a.rabbit != nil {
			_ = a.rabbit.Close()
		}
		a.db.DB.Close()
		return err
	}
}
