package planner

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/magabrotheeeer/coin-planner/internal/app/bootstrap"
	coinruleget "github.com/magabrotheeeer/coin-planner/internal/http/handlers/coinrule/get"
	"github.com/magabrotheeeer/coin-planner/internal/http/handlers/coinrule/upsert"
	"github.com/magabrotheeeer/coin-planner/internal/http/handlers/health"
	notificationlist "github.com/magabrotheeeer/coin-planner/internal/http/handlers/notification/list"
	notificationread "github.com/magabrotheeeer/coin-planner/internal/http/handlers/notification/read"
	"github.com/magabrotheeeer/coin-planner/internal/http/handlers/payment/verify"
	plancreate "github.com/magabrotheeeer/coin-planner/internal/http/handlers/plan/create"
	"github.com/magabrotheeeer/coin-planner/internal/http/handlers/plan/edittask"
	planlist "github.com/magabrotheeeer/coin-planner/internal/http/handlers/plan/list"
	"github.com/magabrotheeeer/coin-planner/internal/http/handlers/plan/optin"
	planread "github.com/magabrotheeeer/coin-planner/internal/http/handlers/plan/read"
	"github.com/magabrotheeeer/coin-planner/internal/http/handlers/plan/status"
	remarklist "github.com/magabrotheeeer/coin-planner/internal/http/handlers/remark/list"
	"github.com/magabrotheeeer/coin-planner/internal/http/handlers/remark/submit"
	settingsget "github.com/magabrotheeeer/coin-planner/internal/http/handlers/settings/get"
	settingsupdate "github.com/magabrotheeeer/coin-planner/internal/http/handlers/settings/update"
	"github.com/magabrotheeeer/coin-planner/internal/http/handlers/user/me"
	"github.com/magabrotheeeer/coin-planner/internal/http/handlers/user/provision"
	"github.com/magabrotheeeer/coin-planner/internal/http/middlewarectx"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, svc *bootstrap.Services, parser middlewarectx.TokenParser,
	limiter *middlewarectx.Limiter, db bootstrap.Pinger) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.RealIP,
		middleware.Logger,
		middleware.Recoverer,
	)

	healthHandler := health.New(logger, db)
	r.Get("/health", healthHandler.ServeHTTP)

	r.Route("/api/v1", func(r chi.Router) {
		r.Get("/health", healthHandler.ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(parser, logger))
			r.Use(middlewarectx.RateLimitMiddleware(limiter, logger))

			r.Post("/plans", plancreate.New(logger, svc.Plans).ServeHTTP)
			r.Get("/plans", planlist.New(logger, svc.Plans).ServeHTTP)
			r.Post("/plans/opt-in", optin.New(logger, svc.Plans).ServeHTTP)
			r.Get("/plans/{id}", planread.New(logger, svc.Plans).ServeHTTP)
			r.Put("/plans/{id}/status", status.New(logger, svc.Plans).ServeHTTP)
			r.Put("/plans/{id}/tasks/{taskId}", edittask.New(logger, svc.Plans).ServeHTTP)

			r.Post("/remarks", submit.New(logger, svc.Accrual).ServeHTTP)
			r.Get("/remarks", remarklist.New(logger, svc.Remarks).ServeHTTP)

			r.Get("/coin-rule", coinruleget.New(logger, svc.Rules).ServeHTTP)
			r.Get("/settings", settingsget.New(logger, svc.Settings).ServeHTTP)

			r.Get("/notifications", notificationlist.New(logger, svc.Inbox).ServeHTTP)
			r.Post("/notifications/read", notificationread.New(logger, svc.Inbox).ServeHTTP)

			r.Post("/payments/verify", verify.New(logger, svc.Payments).ServeHTTP)

			r.Get("/users/me", me.New(logger, svc.Users).ServeHTTP)

			// Только для администратора
			r.Group(func(r chi.Router) {
				r.Use(middlewarectx.AdminOnly(logger))
				r.Post("/coin-rule", upsert.New(logger, svc.Rules).ServeHTTP)
				r.Put("/settings", settingsupdate.New(logger, svc.Settings).ServeHTTP)
				r.Post("/users", provision.New(logger, svc.Users).ServeHTTP)
			})
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
