// Package router defines how HTTP routes are registered for the API.
package router

import (
	"github.com/labstack/echo/v4"
	"github.com/redis/go-redis/v9"

	"github.com/iliyamo/cinema-checkout/internal/config"
	"github.com/iliyamo/cinema-checkout/internal/handler"
	"github.com/iliyamo/cinema-checkout/internal/middleware"
)

// RegisterRoutes registers routes that do not require authentication
// on the provided Echo instance.  Currently it exposes only a health
// check, used by load balancers to verify the service is up.
func RegisterRoutes(e *echo.Echo) {
	e.GET("/healthz", handler.Health)
}

// RegisterAuth registers the account endpoints.  Register and login
// are open; /v1/me requires a valid access token.
func RegisterAuth(e *echo.Echo, a *handler.AuthHandler, jwtSecret string) {
	g := e.Group("/v1/auth")
	g.POST("/register", a.Register)
	g.POST("/login", a.Login)

	auth := e.Group("/v1", middleware.JWTAuth(jwtSecret))
	auth.GET("/me", a.Me)
}

// RegisterBrowse registers the unauthenticated catalog endpoints.
// Showtime details are cacheable; the seat snapshot is deliberately
// left uncached because it must reflect live holds.
func RegisterBrowse(e *echo.Echo, b *handler.BrowseHandler, rdb *redis.Client) {
	cached := middleware.ResponseCache(config.LoadCacheConfig(), rdb)
	e.GET("/v1/showtimes/:id", b.GetShowtime, cached)
	e.GET("/v1/showtimes/:id/seats", b.GetSeatSnapshot)
}

// RegisterCheckout registers the reservation/checkout flow.  All
// session-mutating endpoints require an authenticated CUSTOMER and sit
// behind the Redis token-bucket rate limiter so one client cannot
// hammer the seat inventory.  The QR payment callback is the external
// confirming party's entry point and is only rate limited.
func RegisterCheckout(e *echo.Echo, h *handler.CheckoutHandler, jwtSecret string, rdb *redis.Client) {
	limited := middleware.NewTokenBucket(config.LoadRateLimitConfig(), rdb)

	g := e.Group(
		"/v1/checkout",
		limited,
		middleware.JWTAuth(jwtSecret),
		middleware.RequireRole("CUSTOMER"),
	)
	g.GET("/payment-methods", h.PaymentMethods)
	g.POST("/reservations", h.CreateReservation)
	g.GET("/reservations/:id", h.GetSession)
	g.POST("/reservations/:id/customer", h.SubmitCustomerInfo)
	g.POST("/reservations/:id/payment", h.ChoosePayment)
	g.POST("/reservations/:id/payment/cancel", h.CancelQR)
	g.POST("/reservations/:id/back", h.GoBack)
	g.GET("/reservations/:id/status", h.ConfirmationStatus)
	g.DELETE("/reservations/:id", h.CancelReservation)

	e.POST("/v1/payments/qr/callback", h.QRCallback, limited)
}
