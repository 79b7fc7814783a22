package reconciler

import (
	"context"

	"github.com/consultation-booking/internal/domain/booking"
	"github.com/consultation-booking/internal/domain/payment"
	"github.com/consultation-booking/internal/domain/transaction"
)

// Ledger is the transaction store the scheduler reconciles
type Ledger interface {
	Get(id string) (transaction.Transaction, bool)
	Update(id string, status transaction.Status, patch transaction.Patch)
	MarkNotified(id string, status transaction.Status) bool
	MarkRecipientNotified(id string, recipient transaction.Recipient)
	RecordNotificationAttempt(id string)
	ListPending() []transaction.Transaction
	ListUnnotified(maxAttempts int) []transaction.Transaction
	Prune() int
}

// StatusChecker reports the gateway's authoritative state of an order
type StatusChecker interface {
	CheckStatus(ctx context.Context, transactionID string) (*payment.OrderStatus, error)
}

// Dispatcher delivers outcome emails. It does not deduplicate; callers track delivery.
type Dispatcher interface {
	SendConfirmation(ctx context.Context, customer *booking.Customer, service *booking.Service) error
	SendBookingAlert(ctx context.Context, customer *booking.Customer, service *booking.Service) error
	SendFailure(ctx context.Context, customer *booking.Customer, service *booking.Service, reason, transactionID string) error
}

// OutcomeNotifier sends the single notification for a terminal transaction. It returns the
// recipients reached by the call, including when another recipient could not be reached.
type OutcomeNotifier interface {
	Notify(ctx context.Context, txn transaction.Transaction) ([]transaction.Recipient, error)
}
