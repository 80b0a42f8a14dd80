package routes

import (
	"context"
	"net/http"

	"github.com/go-chi/chi/v5"

	"github.com/cashdash/cashdash-backend/api/controllers"
	"github.com/cashdash/cashdash-backend/api/middleware"
	"github.com/cashdash/cashdash-backend/internal/auth"
	"github.com/cashdash/cashdash-backend/internal/banks"
	"github.com/cashdash/cashdash-backend/internal/devices"
	"github.com/cashdash/cashdash-backend/internal/notifications"
	"github.com/cashdash/cashdash-backend/internal/orders"
	"github.com/cashdash/cashdash-backend/internal/refunds"
	"github.com/cashdash/cashdash-backend/pkg/auth/session"
	"github.com/cashdash/cashdash-backend/pkg/config"
	"github.com/cashdash/cashdash-backend/pkg/db"
	"github.com/cashdash/cashdash-backend/pkg/enums"
	"github.com/cashdash/cashdash-backend/pkg/logger"
	"github.com/cashdash/cashdash-backend/pkg/redis"
)

type sessionManager interface {
	session.AccessSessionChecker
	Rotate(context.Context, string, string) (string, string, error)
	Revoke(context.Context, string) error
}

// Deps carries everything the router wires into handlers.
type Deps struct {
	Config         *config.Config
	Logger         *logger.Logger
	DB             db.Pinger
	Redis          *redis.Client
	SessionManager sessionManager
	AuthService    auth.Service
	Register       auth.RegisterService
	Orders         orders.Service
	Banks          banks.Service
	Devices        devices.Service
	Notifications  notifications.Service
	Refunds        refunds.Service
}

func NewRouter(deps Deps) http.Handler {
	cfg := deps.Config
	logg := deps.Logger

	// A typed nil *redis.Client must not masquerade as a live store.
	var idemStore redis.IdempotencyStore
	if deps.Redis != nil {
		idemStore = deps.Redis
	}

	r := chi.NewRouter()
	r.Use(
		middleware.Recoverer(logg),
		middleware.RequestID(logg),
		middleware.Logging(logg),
		middleware.CORS(),
	)

	loginPolicy := middleware.NewAuthRateLimitPolicy(
		"login",
		cfg.AuthRateLimit.LoginWindow,
		cfg.AuthRateLimit.LoginIPLimit,
		cfg.AuthRateLimit.LoginEmailLimit,
	)
	registerPolicy := middleware.NewAuthRateLimitPolicy(
		"register",
		cfg.AuthRateLimit.RegisterWindow,
		cfg.AuthRateLimit.RegisterIPLimit,
		cfg.AuthRateLimit.RegisterEmailLimit,
	)

	r.Route("/health", func(r chi.Router) {
		r.Get("/live", controllers.HealthLive(cfg))
		r.Get("/ready", controllers.HealthReady(cfg, deps.DB, logg))
	})

	r.Route("/api/v1/auth", func(r chi.Router) {
		r.With(middleware.AuthRateLimit(loginPolicy, deps.Redis, logg)).Post("/login", controllers.AuthLogin(deps.AuthService, logg))
		r.With(middleware.AuthRateLimit(registerPolicy, deps.Redis, logg), middleware.Idempotency(idemStore, logg)).
			Post("/register", controllers.AuthRegister(deps.Register, deps.AuthService, logg))
		r.Post("/refresh", controllers.AuthRefresh(deps.AuthService, logg))
		r.Post("/logout", controllers.AuthLogout(deps.AuthService, cfg.JWT, logg))
	})

	r.Route("/api/v1", func(r chi.Router) {
		r.Use(middleware.Auth(cfg.JWT, deps.SessionManager, logg))
		r.Use(middleware.Idempotency(idemStore, logg))

		r.Route("/orders", func(r chi.Router) {
			r.Get("/", controllers.ListOrders(deps.Orders, logg))
			r.With(middleware.RequireRole(logg, enums.UserRoleCustomer)).
				Post("/", controllers.CreateOrder(deps.Orders, logg))
			r.Route("/{orderID}", func(r chi.Router) {
				r.Get("/", controllers.GetOrder(deps.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.UserRoleRunner)).
					Post("/claim", controllers.ClaimOrder(deps.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.UserRoleRunner)).
					Post("/advance", controllers.AdvanceOrder(deps.Orders, logg))
				r.With(middleware.RequireRole(logg, enums.UserRoleCustomer)).
					Post("/verify-otp", controllers.VerifyOrderOtp(deps.Orders, logg))
				r.Post("/cancel", controllers.CancelOrder(deps.Orders, logg))
				r.Get("/messages", controllers.ListOrderMessages(deps.Orders, logg))
				r.Post("/messages", controllers.PostOrderMessage(deps.Orders, logg))
			})
		})

		r.Route("/banks", func(r chi.Router) {
			r.Get("/", controllers.ListBanks(deps.Banks, logg))
			r.Post("/", controllers.CreateBank(deps.Banks, logg))
			r.Post("/{bankID}/primary", controllers.SetPrimaryBank(deps.Banks, logg))
			r.Delete("/{bankID}", controllers.DeactivateBank(deps.Banks, logg))
		})

		r.Route("/devices", func(r chi.Router) {
			r.Post("/", controllers.RegisterDevice(deps.Devices, logg))
			r.Delete("/{deviceID}", controllers.UnregisterDevice(deps.Devices, logg))
		})

		r.Route("/notifications", func(r chi.Router) {
			r.Get("/", controllers.ListNotifications(deps.Notifications, logg))
			r.Post("/{notificationID}/read", controllers.MarkNotificationRead(deps.Notifications, logg))
			r.Post("/read-all", controllers.MarkAllNotificationsRead(deps.Notifications, logg))
		})
	})

	r.Route("/internal/v1", func(r chi.Router) {
		r.Use(middleware.InternalAuth(cfg.InternalAuth.SharedSecret, logg))
		r.Use(middleware.Idempotency(idemStore, logg))
		r.Post("/orders/{orderID}/refund", controllers.RouteRefund(deps.Refunds, logg))
	})

	return r
}
