package handler

import (
	"log/slog"

	"github.com/consultation-booking/internal/api/middleware"
	"github.com/consultation-booking/internal/api/service"
	"github.com/consultation-booking/internal/domain/booking"
	"github.com/gin-gonic/gin"
)

// NotificationHandler handles emails requested by the booking frontend
type NotificationHandler struct {
	notificationService service.NotificationService
	logger              *slog.Logger
}

// NewNotificationHandler creates a new notification handler
func NewNotificationHandler(logger *slog.Logger, notificationService service.NotificationService) *NotificationHandler {
	return &NotificationHandler{
		notificationService: notificationService,
		logger:              logger,
	}
}

// Confirmation sends the booking confirmation for a paid transaction
func (h *NotificationHandler) Confirmation(c *gin.Context) {
	logger := middleware.RequestLogger(c, h.logger)

	var req ConfirmationRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Transaction ID is required")
		return
	}

	result, err := h.notificationService.SendConfirmation(c.Request.Context(), service.ConfirmationRequest{
		TransactionID: req.TransactionID,
		Customer:      req.BookingData,
		Service:       req.ServiceData,
	})
	if err != nil {
		logger.Error("Failed to send confirmation emails", "transaction_id", req.TransactionID, "error", err)
		respondServiceError(c, err, "Failed to send confirmation emails")
		return
	}

	RespondOK(c, DeliveryResponse{Sent: result.Sent, Reason: result.Reason})
}

// Failure alerts the owner about a payment that did not go through
func (h *NotificationHandler) Failure(c *gin.Context) {
	logger := middleware.RequestLogger(c, h.logger)

	var req FailureNoticeRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Transaction ID and reason are required")
		return
	}

	err := h.notificationService.SendFailureNotice(c.Request.Context(), service.FailureNoticeRequest{
		TransactionID: req.TransactionID,
		Reason:        req.Reason,
		Customer:      req.BookingData,
		Service:       req.ServiceData,
	})
	if err != nil {
		logger.Error("Failed to send failure notification", "transaction_id", req.TransactionID, "error", err)
		respondServiceError(c, err, "Failed to send failure notification")
		return
	}

	RespondOK(c, DeliveryResponse{Sent: true})
}

// Contact forwards a contact form message to the owner
func (h *NotificationHandler) Contact(c *gin.Context) {
	logger := middleware.RequestLogger(c, h.logger)

	var req ContactRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		RespondBadRequest(c, "Invalid request body")
		return
	}

	err := h.notificationService.SendContactMessage(c.Request.Context(), booking.ContactMessage{
		Name:    req.Name,
		Email:   req.Email,
		Subject: req.Subject,
		Message: req.Message,
	})
	if err != nil {
		logger.Error("Failed to send contact message", "error", err)
		respondServiceError(c, err, "Failed to send message")
		return
	}

	RespondOK(c, DeliveryResponse{Sent: true})
}
