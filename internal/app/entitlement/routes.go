package entitlement

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/entitlement-engine/internal/config"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/entitlement/activate"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/entitlement/check"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/entitlement/consume"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/entitlement/health"
	packagecreate "github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/packages/create"
	packagelist "github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/packages/list"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/payment/paymentlist"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/entitlement-engine/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-engine/internal/lib/jwt"
	activationservice "github.com/magabrotheeeer/entitlement-engine/internal/services/activation"
	catalogservice "github.com/magabrotheeeer/entitlement-engine/internal/services/catalog"
	entitlementservice "github.com/magabrotheeeer/entitlement-engine/internal/services/entitlement"
	"github.com/magabrotheeeer/entitlement-engine/internal/storage/repository"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, cfg *config.Config, jwtMaker jwt.Maker,
	db *repository.Storage, entitlementSvc *entitlementservice.Service,
	activationSvc *activationservice.Service, catalogSvc *catalogservice.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(jwtMaker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))
			r.Post("/entitlements/check", check.New(logger, entitlementSvc).ServeHTTP)
			r.Post("/entitlements/consume", consume.New(logger, entitlementSvc).ServeHTTP)
			r.Post("/entitlements/activate", activate.New(logger, activationSvc).ServeHTTP)
			r.Post("/packages", packagecreate.New(logger, catalogSvc).ServeHTTP)
			r.Get("/packages/list", packagelist.New(logger, catalogSvc).ServeHTTP)
			r.Get("/payments/list", paymentlist.New(logger, db).ServeHTTP)
		})

		// Webhook endpoint (без аутентификации, подпись проверяет обработчик)
		r.Post("/payments/webhook", paymentwebhook.New(logger, activationSvc, cfg.WebhookSecret).ServeHTTP)
	})

	r.Get("/health", health.New(logger, db).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
