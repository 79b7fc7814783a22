package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"

	"github.com/consultation-booking/internal/domain/booking"
	"github.com/consultation-booking/internal/domain/transaction"
	"github.com/consultation-booking/internal/logger"
	"github.com/consultation-booking/internal/platform/messaging/producers"
)

// Notifier maps terminal statuses to emails and dead-letters the ones that fail
type Notifier struct {
	dispatcher Dispatcher
	dlq        producers.DeadLetterPublisher
	logger     *slog.Logger
}

// NewNotifier creates a notifier. dlq may be nil when no dead-letter topic is configured.
func NewNotifier(dispatcher Dispatcher, dlq producers.DeadLetterPublisher, logger *slog.Logger) *Notifier {
	return &Notifier{
		dispatcher: dispatcher,
		dlq:        dlq,
		logger:     logger,
	}
}

type undeliveredNotice struct {
	TransactionID string             `json:"transaction_id"`
	Status        transaction.Status `json:"status"`
	Reason        string             `json:"reason,omitempty"`
	Reached       []string           `json:"reached,omitempty"`
	Customer      *booking.Customer  `json:"customer"`
	Service       *booking.Service   `json:"service"`
}

// Notify sends the outcome notification for txn. Recipients txn records as already reached are skipped.
func (n *Notifier) Notify(ctx context.Context, txn transaction.Transaction) ([]transaction.Recipient, error) {
	switch txn.Status {
	case transaction.StatusCompleted:
		return n.notifySuccess(ctx, txn)
	case transaction.StatusFailed, transaction.StatusTimeout:
		reason := txn.NoticeReason()
		if err := n.dispatcher.SendFailure(ctx, txn.Customer, txn.Service, reason, txn.ID); err != nil {
			n.deadLetter(ctx, txn, reason, err)
			return nil, fmt.Errorf("failed to send %s notification: %w", txn.Status, err)
		}
		n.sent(txn)
		return []transaction.Recipient{transaction.RecipientOwner}, nil
	default:
		return nil, fmt.Errorf("no notification defined for status %s", txn.Status)
	}
}

// notifySuccess tries the customer confirmation and the owner alert independently
func (n *Notifier) notifySuccess(ctx context.Context, txn transaction.Transaction) ([]transaction.Recipient, error) {
	var (
		reached []transaction.Recipient
		errs    []error
	)
	if !txn.Reached(transaction.RecipientCustomer) {
		if err := n.dispatcher.SendConfirmation(ctx, txn.Customer, txn.Service); err != nil {
			errs = append(errs, err)
		} else {
			reached = append(reached, transaction.RecipientCustomer)
		}
	}
	if !txn.Reached(transaction.RecipientOwner) {
		if err := n.dispatcher.SendBookingAlert(ctx, txn.Customer, txn.Service); err != nil {
			errs = append(errs, err)
		} else {
			reached = append(reached, transaction.RecipientOwner)
		}
	}

	if err := errors.Join(errs...); err != nil {
		n.deadLetter(ctx, txn, "", err)
		return reached, fmt.Errorf("failed to send %s notification: %w", txn.Status, err)
	}
	n.sent(txn)
	return reached, nil
}

func (n *Notifier) sent(txn transaction.Transaction) {
	n.logger.Info("Outcome notification sent",
		"transaction_id", txn.ID,
		"status", txn.Status,
		"customer_email", logger.MaskEmail(txn.Customer.Email),
	)
}

func (n *Notifier) deadLetter(ctx context.Context, txn transaction.Transaction, reason string, sendErr error) {
	if n.dlq == nil {
		return
	}
	value, err := json.Marshal(undeliveredNotice{
		TransactionID: txn.ID,
		Status:        txn.Status,
		Reason:        reason,
		Reached:       reachedRecipients(txn),
		Customer:      txn.Customer,
		Service:       txn.Service,
	})
	if err != nil {
		n.logger.Error("Failed to marshal undelivered notification", "transaction_id", txn.ID, "error", err)
		return
	}
	if err := n.dlq.PublishToDLQ(ctx, txn.ID, value, sendErr.Error()); err != nil {
		n.logger.Error("Failed to dead-letter undelivered notification", "transaction_id", txn.ID, "error", err)
	}
}

func reachedRecipients(txn transaction.Transaction) []string {
	var out []string
	for _, r := range []transaction.Recipient{transaction.RecipientCustomer, transaction.RecipientOwner} {
		if txn.Reached(r) {
			out = append(out, string(r))
		}
	}
	return out
}
