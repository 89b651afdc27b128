package entitlementreconciler

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"
	"golang.org/x/time/rate"

	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/handlers/admin/adminauditlist"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/handlers/admin/adminmanualsub"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/handlers/admin/adminoverride"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/handlers/admin/adminsetrole"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/handlers/checkout/checkoutcreate"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/handlers/discount/discountcreate"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/handlers/discount/discountvalidate"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/handlers/health"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/handlers/payment/paymentwebhook"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/handlers/subscription/substatus"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/http/middlewarectx"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/lib/jwt"
	"github.com/magabrotheeeer/entitlement-reconciler/internal/storage/repository"

	accessservice "github.com/magabrotheeeer/entitlement-reconciler/internal/services/access"
	adminservice "github.com/magabrotheeeer/entitlement-reconciler/internal/services/admin"
	checkoutservice "github.com/magabrotheeeer/entitlement-reconciler/internal/services/checkout"
	discountservice "github.com/magabrotheeeer/entitlement-reconciler/internal/services/discount"
	reconcilerservice "github.com/magabrotheeeer/entitlement-reconciler/internal/services/reconciler"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, maker jwt.Maker,
	checkoutService *checkoutservice.Service,
	reconcilerService *reconcilerservice.Service,
	adminService *adminservice.Service,
	accessService *accessservice.Service,
	discountService *discountservice.Service,
	storage *repository.Storage,
	webhookSecret string) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	limiter := rate.NewLimiter(10, 30)

	r.Route("/api/v1", func(r chi.Router) {
		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(maker, logger))
			r.Use(middlewarectx.RateLimitMiddleware(limiter, logger))
			r.Post("/checkout", checkoutcreate.New(logger, checkoutService).ServeHTTP)
			r.Get("/subscription/status", substatus.New(logger, accessService).ServeHTTP)
			r.Get("/discount/{code}", discountvalidate.New(logger, discountService).ServeHTTP)
		})

		// Административный шлюз
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(maker, logger))
			r.Use(middlewarectx.RequireAdminMiddleware(logger))
			r.Post("/admin/role", adminsetrole.New(logger, adminService).ServeHTTP)
			r.Post("/admin/subscription", adminmanualsub.New(logger, adminService).ServeHTTP)
			r.Post("/admin/override", adminoverride.NewSet(logger, accessService).ServeHTTP)
			r.Delete("/admin/override", adminoverride.NewClear(logger, accessService).ServeHTTP)
			r.Post("/admin/discount", discountcreate.New(logger, discountService).ServeHTTP)
			r.Get("/admin/audit", adminauditlist.New(logger, storage).ServeHTTP)
		})

		// Webhook endpoint (подпись вместо аутентификации)
		r.Post("/payments/webhook", paymentwebhook.New(logger, reconcilerService, webhookSecret).ServeHTTP)
	})

	r.Get("/health", health.New(logger, storage).ServeHTTP)
	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
