package handler

import (
	"log/slog"
	"time"

	"github.com/consultation-booking/internal/api/middleware"
	"github.com/consultation-booking/internal/api/service"
	"github.com/consultation-booking/internal/domain/payment"
	"github.com/gin-gonic/gin"
)

// PaymentHandler handles HTTP requests for payment intake
type PaymentHandler struct {
	paymentService service.PaymentService
	logger         *slog.Logger
}

// NewPaymentHandler creates a new payment handler
func NewPaymentHandler(logger *slog.Logger, paymentService service.PaymentService) *PaymentHandler {
	return &PaymentHandler{
		paymentService: paymentService,
		logger:         logger,
	}
}

// Create starts a payment for a booking and returns where to send the customer
func (h *PaymentHandler) Create(c *gin.Context) {
	logger := middleware.RequestLogger(c, h.logger)

	var req CreatePaymentRequest
	if err := c.ShouldBindJSON(&req); err != nil {
		logger.Warn("Invalid request body", "error", err)
		RespondBadRequest(c, "Invalid request body: "+err.Error())
		return
	}

	result, err := h.paymentService.CreatePayment(c.Request.Context(), service.PaymentRequest{
		Amount:   req.Amount,
		Customer: req.CustomerData,
		Service:  req.ServiceData,
	})
	if err != nil {
		logger.Warn("Failed to create payment", "error", err)
		respondServiceError(c, err, "Failed to create payment request")
		return
	}

	RespondCreated(c, PaymentResponse{
		TransactionID: result.TransactionID,
		PaymentURL:    result.PaymentURL,
		Amount:        result.Amount,
		Status:        string(result.Status),
		PaymentMethod: result.PaymentMethod,
	})
}

// GetStatus reports the gateway's current state of an order
func (h *PaymentHandler) GetStatus(c *gin.Context) {
	logger := middleware.RequestLogger(c, h.logger)
	transactionID := c.Param("id")

	status, err := h.paymentService.CheckStatus(c.Request.Context(), transactionID)
	if err != nil {
		logger.Error("Payment status check failed", "transaction_id", transactionID, "error", err)
		if isInvalidRequest(err) {
			respondServiceError(c, err, "")
			return
		}
		RespondBadGateway(c, "Failed to check payment status")
		return
	}

	response := PaymentStatusResponse{
		TransactionID: transactionID,
		OrderID:       status.OrderID,
		State:         string(status.State),
		Amount:        payment.FromPaisa(status.Amount),
	}
	if !status.ExpireAt.IsZero() {
		response.ExpireAt = status.ExpireAt.UTC().Format(time.RFC3339)
	}
	RespondOK(c, response)
}

// Webhook receives gateway callbacks
func (h *PaymentHandler) Webhook(c *gin.Context) {
	logger := middleware.RequestLogger(c, h.logger)

	body, err := c.GetRawData()
	if err != nil {
		logger.Warn("Failed to read webhook body", "error", err)
		RespondBadRequest(c, "Invalid request body")
		return
	}

	if _, err := h.paymentService.HandleWebhook(c.Request.Context(), c.GetHeader("Authorization"), body); err != nil {
		logger.Warn("Gateway webhook rejected", "error", err)
		respondServiceError(c, err, "Failed to process webhook")
		return
	}

	RespondOK(c, WebhookResponse{Received: true})
}
