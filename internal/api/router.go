package api

import (
	"log/slog"

	"github.com/consultation-booking/internal/api/handler"
	"github.com/consultation-booking/internal/api/middleware"
	"github.com/gin-gonic/gin"
)

// Handlers groups the HTTP handlers mounted by the router
type Handlers struct {
	Payment      *handler.PaymentHandler
	OTP          *handler.OTPHandler
	Notification *handler.NotificationHandler
	Health       *handler.HealthHandler
}

// rateLimits holds the per-IP limiters. A nil limiter is not applied.
type rateLimits struct {
	global *middleware.RateLimiter
	strict *middleware.RateLimiter
}

// with prepends limiter to handlers when it is set
func with(limiter *middleware.RateLimiter, handlers ...gin.HandlerFunc) []gin.HandlerFunc {
	if limiter == nil {
		return handlers
	}
	return append([]gin.HandlerFunc{limiter.Handler()}, handlers...)
}

// setupRouter configures API routes and middleware for the application
func setupRouter(logger *slog.Logger, r *gin.Engine, allowedOrigins []string, limits rateLimits, h Handlers) {
	r.Use(middleware.Recovery(logger))
	r.Use(middleware.CorrelationID())
	r.Use(middleware.Logger(logger))
	r.Use(middleware.CORS(allowedOrigins))

	// API v1 endpoints
	v1 := r.Group("/api/v1")
	{
		// Gateway callbacks are not rate limited
		v1.POST("/payments/webhook", h.Payment.Webhook)

		limited := v1.Group("", with(limits.global)...)

		payments := limited.Group("/payments")
		{
			payments.POST("", with(limits.strict, h.Payment.Create)...)
			payments.GET("/:id/status", h.Payment.GetStatus)
		}

		otp := limited.Group("/otp")
		{
			otp.POST("/send", h.OTP.Send)
			otp.POST("/verify", h.OTP.Verify)
		}

		notifications := limited.Group("/notifications", with(limits.strict)...)
		{
			notifications.POST("/confirmation", h.Notification.Confirmation)
			notifications.POST("/failure", h.Notification.Failure)
		}

		limited.POST("/contact", h.Notification.Contact)
	}

	// Health check endpoint for monitoring
	r.GET("/health", h.Health.Health)
}
