// Package licensing собирает приложение: хранилище, внешние клиенты,
// сервисы, HTTP-маршруты и фоновую сверку лицензий.
package licensing

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/subscription-licensing/internal/cache"
	"github.com/magabrotheeeer/subscription-licensing/internal/http/handlers/auth/login"
	"github.com/magabrotheeeer/subscription-licensing/internal/http/handlers/auth/register"
	"github.com/magabrotheeeer/subscription-licensing/internal/http/handlers/health"
	invoicestatus "github.com/magabrotheeeer/subscription-licensing/internal/http/handlers/invoice/status"
	"github.com/magabrotheeeer/subscription-licensing/internal/http/handlers/payment/redirect"
	"github.com/magabrotheeeer/subscription-licensing/internal/http/handlers/subscription/daysleft"
	"github.com/magabrotheeeer/subscription-licensing/internal/http/middlewarectx"
	"github.com/magabrotheeeer/subscription-licensing/internal/lib/jwt"
	gateservice "github.com/magabrotheeeer/subscription-licensing/internal/services/gate"
	invoiceservice "github.com/magabrotheeeer/subscription-licensing/internal/services/invoice"
	"github.com/magabrotheeeer/subscription-licensing/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, gateService *gateservice.Service,
	invoiceService *invoiceservice.Service, storage *repository.Storage,
	cacheRedis *cache.Cache, jwtMaker jwt.Maker) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки; register и login под rate limit
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/register", register.New(logger, gateService).ServeHTTP)
			r.Post("/login", login.New(logger, gateService).ServeHTTP)
		})
		r.Get("/payments/redirect", redirect.New(logger, invoiceService).ServeHTTP)
		r.Get("/invoices/{number}", invoicestatus.New(logger, invoiceService, cacheRedis).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Get("/subscription/days-left", daysleft.New(logger, gateService).ServeHTTP)
		})
	})

	r.Get("/health", health.New(logger, storage).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
