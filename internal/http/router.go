package http

import (
	"context"
	"log/slog"
	"net/http"

	"github.com/geocoder89/bookinghub/internal/config"
	"github.com/geocoder89/bookinghub/internal/http/handlers"
	"github.com/geocoder89/bookinghub/internal/http/middlewares"
	"github.com/geocoder89/bookinghub/internal/observability"
	"github.com/gin-gonic/gin"
	"github.com/prometheus/client_golang/prometheus"
	"github.com/prometheus/client_golang/prometheus/promhttp"
	"go.opentelemetry.io/contrib/instrumentation/github.com/gin-gonic/gin/otelgin"
)

const maxBodyBytes = 1 << 20

type BookingService interface {
	handlers.AppointmentBooker
	handlers.AvailabilityReader
}

type UserReader interface {
	handlers.ProviderLister
	middlewares.UserLookup
}

type Deps struct {
	Booking       BookingService
	Users         UserReader
	Notifications handlers.NotificationStore
	Tokens        middlewares.TokenVerifier
	Limiter       *middlewares.RateLimiter

	// Ping backs /readyz. Nil means always ready.
	Ping func(ctx context.Context) error

	Prom     *observability.Prom
	Gatherer prometheus.Gatherer
}

func NewRouter(log *slog.Logger, d Deps, cfg config.Config) *gin.Engine {
	if cfg.Env != "dev" {
		gin.SetMode(gin.ReleaseMode)
	}
	r := gin.New()

	// middleware
	r.Use(gin.Recovery())
	r.Use(otelgin.Middleware("bookinghub-api"))
	r.Use(middlewares.RequestID())
	r.Use(middlewares.RequestLogger(log))
	r.Use(middlewares.SecurityHeaders())
	r.Use(middlewares.CORSMiddleware(cfg.CORSOrigins))
	if d.Prom != nil {
		r.Use(d.Prom.GinHandleMiddleware())
	}
	r.Use(middlewares.MaxBodyBytes(maxBodyBytes))

	// health
	h := handlers.NewHealthHandler(d.Ping)
	r.GET("/healthz", h.Healthz)
	r.GET("/readyz", h.Readyz)
	if d.Gatherer != nil {
		r.GET("/metrics", gin.WrapH(promhttp.HandlerFor(d.Gatherer, promhttp.HandlerOpts{})))
	}

	limiter := d.Limiter
	if limiter == nil {
		limiter = middlewares.NewRateLimiter(cfg.RateLimitRPS, cfg.RateLimitBurst)
	}

	authMW := middlewares.NewAuthMiddleware(d.Tokens)
	authed := r.Group("/")
	authed.Use(
		authMW.RequireAuth(),
		limiter.RateLimiterMiddleware(middlewares.KeyByUserOrIP),
		middlewares.RequireJSON(),
	)

	appointments := handlers.NewAppointmentsHandler(d.Booking)
	authed.GET("/appointments", appointments.List)
	authed.POST("/appointments", appointments.Create)
	authed.DELETE("/appointments/:id", appointments.Cancel)

	providers := handlers.NewProvidersHandler(d.Users, d.Booking)
	authed.GET("/providers", providers.List)
	authed.GET("/providers/:id/available", providers.Available)

	notifications := handlers.NewNotificationsHandler(d.Notifications)
	providerOnly := authed.Group("/notifications", middlewares.RequireProvider(d.Users))
	providerOnly.GET("", notifications.List)
	providerOnly.PUT("/:id", notifications.MarkRead)

	r.NoRoute(func(ctx *gin.Context) {
		handlers.RespondError(ctx, http.StatusNotFound, "not_found", "Route not found", nil)
	})

	return r
}
