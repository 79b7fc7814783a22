package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"strings"
	"sync"
	"time"

	"github.com/consultation-booking/internal/domain/booking"
	"github.com/consultation-booking/internal/domain/payment"
	"github.com/consultation-booking/internal/domain/transaction"
	"github.com/consultation-booking/internal/logger"
	"github.com/consultation-booking/internal/reconciler"
)

// Reasons a confirmation request did not send anything
const (
	ReasonAlreadySent    = "already_sent"
	ReasonPaymentPending = "payment_pending"
)

var errMissingBookingDetails = fmt.Errorf("%w: booking and service data are required", ErrInvalidRequest)

// ConfirmationRequest asks for the booking confirmation of a transaction. The payloads are
// used only when the ledger has no usable entry for it.
type ConfirmationRequest struct {
	TransactionID string
	Customer      *booking.Customer
	Service       *booking.Service
}

// FailureNoticeRequest asks for an owner alert about a payment that did not go through
type FailureNoticeRequest struct {
	TransactionID string
	Reason        string
	Customer      *booking.Customer
	Service       *booking.Service
}

// DeliveryResult reports whether a confirmation went out, and why not when it did not
type DeliveryResult struct {
	Sent   bool
	Reason string
}

// NotificationServiceImpl implements the NotificationService interface
type NotificationServiceImpl struct {
	ledger   TransactionStore
	notifier ManualNotifier
	mailer   BookingMailer
	manual   ManualPaymentStore
	logger   *slog.Logger
	now      func() time.Time

	mu   sync.Mutex
	sent map[string]struct{} // Unledgered transactions confirmed, or being confirmed
}

// NewNotificationService creates a new notification service. manual may be nil.
func NewNotificationService(
	logger *slog.Logger,
	ledger TransactionStore,
	notifier ManualNotifier,
	mailer BookingMailer,
	manual ManualPaymentStore,
) *NotificationServiceImpl {
	return &NotificationServiceImpl{
		ledger:   ledger,
		notifier: notifier,
		mailer:   mailer,
		manual:   manual,
		logger:   logger,
		now:      time.Now,
		sent:     make(map[string]struct{}),
	}
}

// SendConfirmation sends the customer confirmation and owner alert for a transaction.
// Ledgered transactions go through the reconciler so a confirmation cannot race the scheduler.
// Transactions the ledger does not know (fallback bookings, pruned entries) use the request payloads.
func (s *NotificationServiceImpl) SendConfirmation(ctx context.Context, req ConfirmationRequest) (*DeliveryResult, error) {
	id := strings.TrimSpace(req.TransactionID)
	if id == "" {
		return nil, fmt.Errorf("%w: transaction ID is required", ErrInvalidRequest)
	}
	txLogger := s.logger.With("transaction_id", id)

	err := s.notifier.NotifyManually(ctx, id, transaction.StatusCompleted)

	var (
		notFound transaction.ErrTransactionNotFound
		mismatch reconciler.ErrStatusMismatch
	)
	switch {
	case err == nil:
		return &DeliveryResult{Sent: true}, nil
	case errors.Is(err, reconciler.ErrAlreadyNotified):
		txLogger.Info("Confirmation already sent for this transaction")
		return &DeliveryResult{Reason: ReasonAlreadySent}, nil
	case errors.As(err, &mismatch):
		if mismatch.Status == transaction.StatusPending {
			txLogger.Info("Payment still pending, confirmation left to reconciliation")
			return &DeliveryResult{Reason: ReasonPaymentPending}, nil
		}
		return nil, fmt.Errorf("%w: %v", ErrStatusConflict, err)
	case errors.As(err, &notFound):
		return s.confirmUnledgered(ctx, txLogger, id, req)
	case errors.Is(err, reconciler.ErrMissingBookingDetails):
		result, err := s.confirmUnledgered(ctx, txLogger, id, req)
		if err == nil && result.Sent {
			s.ledger.MarkNotified(id, transaction.StatusCompleted)
		}
		return result, err
	default:
		return nil, err
	}
}

func (s *NotificationServiceImpl) confirmUnledgered(ctx context.Context, txLogger *slog.Logger, id string, req ConfirmationRequest) (*DeliveryResult, error) {
	if !complete(req.Customer, req.Service) {
		return nil, errMissingBookingDetails
	}

	if !s.claim(id) {
		txLogger.Info("Confirmation already sent for this transaction")
		return &DeliveryResult{Reason: ReasonAlreadySent}, nil
	}

	record := s.manualRecord(ctx, txLogger, id)
	if record != nil && record.ConfirmationSentAt != nil {
		txLogger.Info("Confirmation already recorded for manual payment")
		return &DeliveryResult{Reason: ReasonAlreadySent}, nil
	}

	if err := s.mailer.SendConfirmation(ctx, req.Customer, req.Service); err != nil {
		s.release(id)
		return nil, fmt.Errorf("failed to send confirmation emails: %w", err)
	}

	if record != nil {
		if _, err := s.manual.MarkConfirmationSent(ctx, id, s.now()); err != nil {
			txLogger.Warn("Failed to record manual payment confirmation", "error", err)
		}
	}

	// The customer has their confirmation; a failed alert must not get it resent
	if err := s.mailer.SendBookingAlert(ctx, req.Customer, req.Service); err != nil {
		txLogger.Error("Failed to send booking alert after customer confirmation", "error", err)
	}

	txLogger.Info("Confirmation emails sent", "customer_email", logger.MaskEmail(req.Customer.Email))
	return &DeliveryResult{Sent: true}, nil
}

func (s *NotificationServiceImpl) manualRecord(ctx context.Context, txLogger *slog.Logger, id string) *payment.ManualPayment {
	if s.manual == nil {
		return nil
	}
	record, err := s.manual.GetByTransactionID(ctx, id)
	if err != nil {
		var notFound payment.ErrManualPaymentNotFound
		if !errors.As(err, &notFound) {
			txLogger.Warn("Failed to look up manual payment", "error", err)
		}
		return nil
	}
	return record
}

func (s *NotificationServiceImpl) claim(id string) bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	if _, ok := s.sent[id]; ok {
		return false
	}
	s.sent[id] = struct{}{}
	return true
}

func (s *NotificationServiceImpl) release(id string) {
	s.mu.Lock()
	delete(s.sent, id)
	s.mu.Unlock()
}

// SendFailureNotice alerts the owner. Missing payloads are taken from the ledger when it has the transaction.
func (s *NotificationServiceImpl) SendFailureNotice(ctx context.Context, req FailureNoticeRequest) error {
	id := strings.TrimSpace(req.TransactionID)
	if id == "" || strings.TrimSpace(req.Reason) == "" {
		return fmt.Errorf("%w: transaction ID and reason are required", ErrInvalidRequest)
	}

	customer, service := req.Customer, req.Service
	if customer == nil || service == nil {
		if txn, ok := s.ledger.Get(id); ok {
			if customer == nil {
				customer = txn.Customer
			}
			if service == nil {
				service = txn.Service
			}
		}
	}
	if customer == nil || strings.TrimSpace(customer.FullName) == "" || service == nil || strings.TrimSpace(service.Title) == "" {
		return errMissingBookingDetails
	}

	if err := s.mailer.SendFailure(ctx, customer, service, req.Reason, id); err != nil {
		return err
	}

	s.logger.Info("Payment failure notification sent",
		"transaction_id", id,
		"customer_email", logger.MaskEmail(customer.Email),
		"reason", req.Reason,
	)
	return nil
}

// SendContactMessage forwards a contact form message to the owner
func (s *NotificationServiceImpl) SendContactMessage(ctx context.Context, msg booking.ContactMessage) error {
	if strings.TrimSpace(msg.Name) == "" || strings.TrimSpace(msg.Email) == "" || strings.TrimSpace(msg.Message) == "" {
		return fmt.Errorf("%w: name, email, and message are required", ErrInvalidRequest)
	}
	if !booking.ValidEmail(msg.Email) {
		return fmt.Errorf("%w: invalid email format", ErrInvalidRequest)
	}

	if err := s.mailer.SendContactMessage(ctx, msg); err != nil {
		return err
	}

	s.logger.Info("Contact message sent", "sender_email", logger.MaskEmail(msg.Email), "sender_name", msg.Name)
	return nil
}

func complete(customer *booking.Customer, service *booking.Service) bool {
	return customer != nil && customer.Validate() == nil && service != nil && strings.TrimSpace(service.Title) != ""
}
