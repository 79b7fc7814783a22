package payment

import (
	"context"
	"time"
)

// ManualPaymentRepository stores fallback bookings for manual follow-up
type ManualPaymentRepository interface {
	Create(ctx context.Context, payment *ManualPayment) error
	GetByTransactionID(ctx context.Context, transactionID string) (*ManualPayment, error)
	// MarkConfirmationSent flags the booking as confirmed. It reports false when it already was.
	MarkConfirmationSent(ctx context.Context, transactionID string, at time.Time) (bool, error)
}

// ErrManualPaymentNotFound indicates missing manual payment record
type ErrManualPaymentNotFound struct {
	TransactionID string
}

func (e ErrManualPaymentNotFound) Error() string {
	return "manual payment not found: " + e.TransactionID
}

// ErrDuplicateManualPayment indicates transaction id uniqueness violation
type ErrDuplicateManualPayment struct {
	TransactionID string
}

func (e ErrDuplicateManualPayment) Error() string {
	return "duplicate manual payment: " + e.TransactionID
}
