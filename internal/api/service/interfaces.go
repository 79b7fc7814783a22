package service

import (
	"context"
	"time"

	"github.com/consultation-booking/internal/domain/booking"
	"github.com/consultation-booking/internal/domain/payment"
	"github.com/consultation-booking/internal/domain/transaction"
)

// PaymentGateway is the subset of the gateway client used at intake
type PaymentGateway interface {
	CreatePayment(ctx context.Context, req payment.Request) (*payment.Session, error)
	CheckStatus(ctx context.Context, transactionID string) (*payment.OrderStatus, error)
	ValidateCallback(authorization string, body []byte) (*payment.CallbackEvent, error)
}

// TransactionStore is the ledger as seen by the intake boundary
type TransactionStore interface {
	Put(id string, entry transaction.Entry)
	Get(id string) (transaction.Transaction, bool)
	MarkNotified(id string, status transaction.Status) bool
}

// CallbackHandler applies verified gateway callbacks to the ledger
type CallbackHandler interface {
	HandleCallback(ctx context.Context, event payment.CallbackEvent) error
}

// ManualNotifier sends a ledgered transaction's notification on request, at most once
type ManualNotifier interface {
	NotifyManually(ctx context.Context, id string, want transaction.Status) error
}

// BookingMailer delivers the emails triggered directly by the booking form
type BookingMailer interface {
	SendConfirmation(ctx context.Context, customer *booking.Customer, service *booking.Service) error
	SendBookingAlert(ctx context.Context, customer *booking.Customer, service *booking.Service) error
	SendFailure(ctx context.Context, customer *booking.Customer, service *booking.Service, reason, transactionID string) error
	SendContactMessage(ctx context.Context, msg booking.ContactMessage) error
}

// PaymentService defines the interface for payment intake operations
type PaymentService interface {
	// CreatePayment starts a gateway checkout, or returns a UPI deep link when the gateway is unavailable
	// Returns ErrInvalidRequest when the amount or booking details are invalid
	CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error)

	// CheckStatus asks the gateway for the current state of an order. The ledger is not consulted.
	CheckStatus(ctx context.Context, transactionID string) (*payment.OrderStatus, error)

	// HandleWebhook verifies a gateway callback and applies it
	// Returns ErrInvalidRequest when the callback cannot be verified
	HandleWebhook(ctx context.Context, authorization string, body []byte) (*payment.CallbackEvent, error)
}

// NotificationService defines the interface for emails requested by the frontend
type NotificationService interface {
	// SendConfirmation sends the booking confirmation for a paid transaction, never twice
	SendConfirmation(ctx context.Context, req ConfirmationRequest) (*DeliveryResult, error)

	// SendFailureNotice alerts the owner that a payment did not go through
	SendFailureNotice(ctx context.Context, req FailureNoticeRequest) error

	// SendContactMessage forwards a contact form message to the owner
	SendContactMessage(ctx context.Context, msg booking.ContactMessage) error
}

// ManualPaymentStore is the optional record of fallback bookings
type ManualPaymentStore interface {
	Create(ctx context.Context, p *payment.ManualPayment) error
	GetByTransactionID(ctx context.Context, transactionID string) (*payment.ManualPayment, error)
	MarkConfirmationSent(ctx context.Context, transactionID string, at time.Time) (bool, error)
}

// OTPService issues and checks email verification codes
type OTPService interface {
	Send(ctx context.Context, email string) error
	Verify(ctx context.Context, email, code string) error
}
