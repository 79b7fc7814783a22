package reconciler

import (
	"errors"
	"fmt"

	"github.com/consultation-booking/internal/domain/transaction"
)

var (
	ErrAlreadyNotified       = errors.New("notification already sent for this transaction")
	ErrMissingBookingDetails = errors.New("transaction has no booking details to notify with")
)

// ErrStatusMismatch is returned when a manual notification does not match the transaction's status
type ErrStatusMismatch struct {
	ID     string
	Status transaction.Status
}

func (e ErrStatusMismatch) Error() string {
	return fmt.Sprintf("transaction %s is %s", e.ID, e.Status)
}
