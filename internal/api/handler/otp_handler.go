package handler

import (
	"errors"
	"log/slog"

	"github.com/consultation-booking/internal/api/middleware"
	"github.com/consultation-booking/internal/api/service"
	"github.com/consultation-booking/internal/domain/booking"
	"github.com/consultation-booking/internal/logger"
	"github.com/consultation-booking/internal/otp"
	"github.com/gin-gonic/gin"
)

// OTPHandler handles email verification requests
type OTPHandler struct {
	otpService service.OTPService
	logger     *slog.Logger
}

// NewOTPHandler creates a new OTP handler
func NewOTPHandler(log *slog.Logger, otpService service.OTPService) *OTPHandler {
	return &OTPHandler{
		otpService: otpService,
		logger:     log,
	}
}

// Send mails a fresh verification code
func (h *OTPHandler) Send(c *gin.Context) {
	log := middleware.RequestLogger(c, h.logger)

	var req SendOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Missing required fields: email")
		return
	}
	if !booking.ValidEmail(req.Email) {
		RespondBadRequest(c, "Invalid email format")
		return
	}

	if err := h.otpService.Send(c.Request.Context(), req.Email); err != nil {
		log.Error("Failed to send OTP", "email", logger.MaskEmail(req.Email), "error", err)
		RespondInternalError(c, "Failed to send OTP")
		return
	}

	RespondOK(c, MessageResponse{Message: "OTP sent successfully"})
}

// Verify consumes a verification code
func (h *OTPHandler) Verify(c *gin.Context) {
	log := middleware.RequestLogger(c, h.logger)

	var req VerifyOTPRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Missing required fields: email, otp")
		return
	}

	err := h.otpService.Verify(c.Request.Context(), req.Email, req.OTP)
	switch {
	case err == nil:
		RespondOK(c, VerifyOTPResponse{EmailVerified: true, Message: "Email verified successfully"})
	case errors.Is(err, otp.ErrNotFound), errors.Is(err, otp.ErrExpired), errors.Is(err, otp.ErrInvalid),
		errors.Is(err, otp.ErrTooManyAttempts):
		RespondBadRequest(c, err.Error())
	default:
		log.Error("Failed to verify OTP", "email", logger.MaskEmail(req.Email), "error", err)
		RespondInternalError(c, "Failed to verify OTP")
	}
}
