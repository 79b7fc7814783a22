package handler

import (
	"github.com/consultation-booking/internal/domain/booking"
	"github.com/shopspring/decimal"
)

// Request bodies keep the field names the booking frontend sends

// CreatePaymentRequest represents a request to start paying for a booking. Amount is in rupees.
type CreatePaymentRequest struct {
	Amount       decimal.Decimal   `json:"amount"`
	ServiceData  *booking.Service  `json:"serviceData"`
	CustomerData *booking.Customer `json:"customerData"`
}

// PaymentResponse represents a created payment in API responses
type PaymentResponse struct {
	TransactionID string          `json:"transaction_id"`
	PaymentURL    string          `json:"payment_url"`
	Amount        decimal.Decimal `json:"amount"`
	Status        string          `json:"status"`
	PaymentMethod string          `json:"payment_method"`
}

// PaymentStatusResponse represents the gateway's view of an order
type PaymentStatusResponse struct {
	TransactionID string          `json:"transaction_id"`
	OrderID       string          `json:"order_id"`
	State         string          `json:"state"`
	Amount        decimal.Decimal `json:"amount"`
	ExpireAt      string          `json:"expire_at,omitempty"`
}

// WebhookResponse acknowledges a gateway callback
type WebhookResponse struct {
	Received bool `json:"received"`
}

// SendOTPRequest represents a request for an email verification code
type SendOTPRequest struct {
	Email string `json:"email" binding:"required"`
}

// VerifyOTPRequest represents a verification code submitted by the customer
type VerifyOTPRequest struct {
	Email string `json:"email" binding:"required"`
	OTP   string `json:"otp" binding:"required"`
}

// VerifyOTPResponse represents a successful email verification
type VerifyOTPResponse struct {
	EmailVerified bool   `json:"email_verified"`
	Message       string `json:"message"`
}

// MessageResponse carries a human readable confirmation
type MessageResponse struct {
	Message string `json:"message"`
}

// ConfirmationRequest asks for the booking confirmation emails of a transaction
type ConfirmationRequest struct {
	TransactionID string            `json:"transactionId" binding:"required"`
	BookingData   *booking.Customer `json:"bookingData,omitempty"`
	ServiceData   *booking.Service  `json:"serviceData,omitempty"`
}

// FailureNoticeRequest asks for a payment failure alert
type FailureNoticeRequest struct {
	TransactionID string            `json:"transactionId" binding:"required"`
	Reason        string            `json:"reason" binding:"required"`
	BookingData   *booking.Customer `json:"bookingData,omitempty"`
	ServiceData   *booking.Service  `json:"serviceData,omitempty"`
}

// DeliveryResponse reports whether an email went out
type DeliveryResponse struct {
	Sent   bool   `json:"sent"`
	Reason string `json:"reason,omitempty"`
}

// ContactRequest represents a contact form submission
type ContactRequest struct {
	Name    string `json:"name"`
	Email   string `json:"email"`
	Subject string `json:"subject,omitempty"`
	Message string `json:"message"`
}

// HealthResponse reports process liveness and ledger occupancy
type HealthResponse struct {
	Status        string         `json:"status"`
	Timestamp     string         `json:"timestamp"`
	UptimeSeconds float64        `json:"uptime_seconds"`
	Environment   string         `json:"environment"`
	Scheduler     string         `json:"scheduler"`
	Transactions  map[string]int `json:"transactions"`
}
