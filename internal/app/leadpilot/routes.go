// Package leadpilot предоставляет маршруты ядра сервиса.
package leadpilot

import (
	"log/slog"

	"github.com/go-chi/chi"
	"github.com/go-chi/chi/middleware"
	"github.com/prometheus/client_golang/prometheus/promhttp"

	httpSwagger "github.com/swaggo/http-swagger"

	"github.com/leadpilot/leadpilot/internal/http/handlers/auth/login"
	"github.com/leadpilot/leadpilot/internal/http/handlers/auth/register"
	channelconnect "github.com/leadpilot/leadpilot/internal/http/handlers/channel/connect"
	channeldisconnect "github.com/leadpilot/leadpilot/internal/http/handlers/channel/disconnect"
	channelsend "github.com/leadpilot/leadpilot/internal/http/handlers/channel/send"
	channelstatus "github.com/leadpilot/leadpilot/internal/http/handlers/channel/status"
	leadcreate "github.com/leadpilot/leadpilot/internal/http/handlers/lead/create"
	leadlist "github.com/leadpilot/leadpilot/internal/http/handlers/lead/list"
	synclast "github.com/leadpilot/leadpilot/internal/http/handlers/sync/last"
	syncrun "github.com/leadpilot/leadpilot/internal/http/handlers/sync/run"
	usageshow "github.com/leadpilot/leadpilot/internal/http/handlers/usage/show"
	"github.com/leadpilot/leadpilot/internal/http/middlewarectx"
	"github.com/leadpilot/leadpilot/internal/services/auth"
	"github.com/leadpilot/leadpilot/internal/services/channel"
	"github.com/leadpilot/leadpilot/internal/services/entitlement"
	"github.com/leadpilot/leadpilot/internal/services/lead"
	syncservice "github.com/leadpilot/leadpilot/internal/services/sync"
)

// RegisterRoutes регистрирует все маршруты приложения.
func RegisterRoutes(r chi.Router, logger *slog.Logger, authService *auth.Service,
	guard *entitlement.Guard, controller *channel.Controller,
	reconciler *syncservice.Reconciler, leadService *lead.Service) {
	// Глобальные middleware
	r.Use(
		middleware.RequestID,
		middleware.Logger,
		middleware.Recoverer,
		middleware.URLFormat,
	)

	r.Route("/api/v1", func(r chi.Router) {
		// Открытые конечные точки
		r.Post("/register", register.New(logger, authService).ServeHTTP)
		r.Post("/login", login.New(logger, authService).ServeHTTP)

		// Группа с JWT аутентификацией
		r.Group(func(r chi.Router) {
			r.Use(middlewarectx.JWTMiddleware(authService, logger))
			r.Use(middlewarectx.RateLimitMiddleware(logger))

			r.Post("/leads", leadcreate.New(logger, leadService).ServeHTTP)
			r.Get("/leads", leadlist.New(logger, leadService).ServeHTTP)

			r.Post("/channel/connect", channelconnect.New(logger, controller).ServeHTTP)
			r.Get("/channel/status", channelstatus.New(logger, controller).ServeHTTP)
			r.Post("/channel/disconnect", channeldisconnect.New(logger, controller).ServeHTTP)
			r.Post("/channel/send", channelsend.New(logger, controller, guard).ServeHTTP)

			r.Post("/sync/run", syncrun.New(logger, reconciler).ServeHTTP)
			r.Get("/sync/last", synclast.New(logger, reconciler).ServeHTTP)

			r.Get("/usage", usageshow.New(logger, guard).ServeHTTP)
		})
	})

	r.Handle("/metrics", promhttp.Handler())
	// Swagger docs endpoint
	r.Get("/docs/*", httpSwagger.WrapHandler)
}
