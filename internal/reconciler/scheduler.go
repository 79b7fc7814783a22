// Package reconciler drives PENDING payments to a terminal status by polling the gateway,
// and sends the single notification each terminal outcome is owed.
package reconciler

import (
	"context"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/consultation-booking/internal/config"
	"github.com/consultation-booking/internal/domain/payment"
	"github.com/consultation-booking/internal/domain/transaction"
	"github.com/consultation-booking/internal/platform/messaging/producers"
	"github.com/google/uuid"
	"github.com/panjf2000/ants/v2"
)

// Scheduler runs reconciliation passes on a fixed interval.
// Passes never overlap; within a pass transactions are checked on a bounded worker pool.
type Scheduler struct {
	ledger   Ledger
	gateway  StatusChecker
	notifier OutcomeNotifier
	events   producers.OutcomePublisher
	logger   *slog.Logger
	now      func() time.Time
	locks    *keyedMutex
	pool     *ants.Pool

	interval               time.Duration
	retryLimit             int
	retryNotifications     bool
	notificationRetryLimit int

	mu      sync.Mutex
	running bool
	stopCh  chan struct{}
	done    chan struct{}
}

// NewScheduler creates a stopped scheduler. events may be nil when outcome publishing is disabled.
func NewScheduler(
	cfg *config.ReconciliationConfig,
	ledger Ledger,
	gateway StatusChecker,
	notifier OutcomeNotifier,
	events producers.OutcomePublisher,
	logger *slog.Logger,
) (*Scheduler, error) {
	pool, err := ants.NewPool(cfg.Workers)
	if err != nil {
		return nil, fmt.Errorf("failed to create reconciliation worker pool: %w", err)
	}

	return &Scheduler{
		ledger:                 ledger,
		gateway:                gateway,
		notifier:               notifier,
		events:                 events,
		logger:                 logger,
		now:                    time.Now,
		locks:                  newKeyedMutex(),
		pool:                   pool,
		interval:               cfg.Interval,
		retryLimit:             cfg.RetryLimit,
		retryNotifications:     cfg.RetryNotifications,
		notificationRetryLimit: cfg.NotificationRetryLimit,
	}, nil
}

// Start runs one pass immediately and then one per interval until Stop is called or ctx is done.
// It returns at once; calling it on a running scheduler only logs a warning.
func (s *Scheduler) Start(ctx context.Context) {
	s.mu.Lock()
	if s.running {
		s.mu.Unlock()
		s.logger.Warn("Reconciliation scheduler already running, ignoring start")
		return
	}
	if s.pool.IsClosed() {
		s.pool.Reboot()
	}
	s.running = true
	s.stopCh = make(chan struct{})
	s.done = make(chan struct{})
	stopCh, done := s.stopCh, s.done
	s.mu.Unlock()

	s.logger.Info("Starting reconciliation scheduler",
		"interval", s.interval.String(),
		"retry_limit", s.retryLimit,
		"workers", s.pool.Cap(),
		"retry_notifications", s.retryNotifications,
	)

	go s.loop(ctx, stopCh, done)
}

func (s *Scheduler) loop(ctx context.Context, stopCh <-chan struct{}, done chan<- struct{}) {
	defer close(done)

	// Passes that have started always finish, even after ctx is cancelled
	work := context.WithoutCancel(ctx)

	s.reconcile(work)

	ticker := time.NewTicker(s.interval)
	defer ticker.Stop()

	for {
		select {
		case <-ctx.Done():
			s.logger.Info("Reconciliation scheduler stopping due to context cancellation")
			s.mu.Lock()
			if s.stopCh == stopCh {
				s.running = false
			}
			s.mu.Unlock()
			return
		case <-stopCh:
			return
		case <-ticker.C:
			s.reconcile(work)
		}
	}
}

// Stop halts future passes and waits for the pass in flight to finish
func (s *Scheduler) Stop() {
	s.mu.Lock()
	if !s.running {
		s.mu.Unlock()
		return
	}
	s.running = false
	close(s.stopCh)
	done := s.done
	s.mu.Unlock()

	<-done
	s.pool.Release()
	s.logger.Info("Reconciliation scheduler stopped")
}

// Running reports whether Start has been called without a matching Stop
func (s *Scheduler) Running() bool {
	s.mu.Lock()
	defer s.mu.Unlock()
	return s.running
}

// reconcile performs one pass: check every eligible transaction, retry missed
// notifications when enabled, then prune settled entries
func (s *Scheduler) reconcile(ctx context.Context) {
	logger := s.logger.With("trace_id", uuid.NewString())
	pending := s.ledger.ListPending()

	if len(pending) == 0 {
		logger.Debug("No pending transactions to reconcile")
	} else {
		logger.Info("Reconciling pending transactions", "count", len(pending))

		var wg sync.WaitGroup
		for _, txn := range pending {
			id := txn.ID
			wg.Add(1)
			task := func() {
				defer wg.Done()
				s.processSafely(ctx, logger, id)
			}
			if err := s.pool.Submit(task); err != nil {
				logger.Warn("Worker pool rejected reconciliation task, running inline", "transaction_id", id, "error", err)
				task()
			}
		}
		wg.Wait()
	}

	if s.retryNotifications {
		s.retryMissedNotifications(ctx, logger)
	}

	if removed := s.ledger.Prune(); removed > 0 {
		logger.Info("Pruned settled transactions", "count", removed)
	}
}

func (s *Scheduler) processSafely(ctx context.Context, logger *slog.Logger, id string) {
	defer func() {
		if r := recover(); r != nil {
			logger.Error("Panic while reconciling transaction", "transaction_id", id, "panic", r)
		}
	}()
	s.processTransaction(ctx, logger, id)
}

// processTransaction applies one reconciliation attempt under the transaction's lock
func (s *Scheduler) processTransaction(ctx context.Context, logger *slog.Logger, id string) {
	unlock := s.locks.Lock(id)
	defer unlock()

	// A callback may have settled the transaction since the snapshot was taken
	current, ok := s.ledger.Get(id)
	if !ok || current.Status != transaction.StatusPending {
		return
	}
	logger = logger.With("transaction_id", id)
	attempt := current.RetryCount + 1

	status, err := s.gateway.CheckStatus(ctx, id)
	now := s.now()

	var (
		next  = transaction.StatusPending
		patch transaction.Patch
	)
	switch {
	case err != nil:
		logger.Error("Gateway status check failed", "attempt", attempt, "error", err)
	case status == nil:
		logger.Error("Gateway returned no status", "attempt", attempt)
	case status.State == payment.StateCompleted:
		next, patch = transaction.StatusCompleted, transaction.Completed(status.OrderID, now)
	case status.State == payment.StateFailed:
		next, patch = transaction.StatusFailed, transaction.Failed(now)
	case status.State != payment.StatePending:
		logger.Warn("Unknown gateway state, counting as a pending attempt", "state", status.State, "attempt", attempt)
	}

	if next == transaction.StatusPending && attempt >= s.retryLimit {
		logger.Warn("Retry budget exhausted, marking transaction as timed out", "attempts_made", attempt)
		next, patch = transaction.StatusTimeout, transaction.TimedOut(now)
	}

	s.ledger.Update(id, next, patch)

	if !next.IsTerminal() {
		logger.Debug("Transaction still pending", "attempt", attempt)
		return
	}
	logger.Info("Transaction reached terminal status", "status", next, "attempts_made", attempt)
	s.settle(ctx, logger, id)
}

// HandleCallback applies a verified gateway callback. Callbacks for settled
// transactions are ignored, so a callback racing a pass never notifies twice.
func (s *Scheduler) HandleCallback(ctx context.Context, event payment.CallbackEvent) error {
	id := event.MerchantOrderID
	logger := s.logger.With("transaction_id", id, "event_type", event.Type)

	unlock := s.locks.Lock(id)
	defer unlock()

	current, ok := s.ledger.Get(id)
	if !ok {
		return transaction.ErrTransactionNotFound{ID: id}
	}
	if current.Status != transaction.StatusPending {
		logger.Info("Ignoring callback for settled transaction", "status", current.Status)
		return nil
	}

	now := s.now()
	switch {
	case event.Type == payment.EventOrderCompleted || event.State == payment.StateCompleted:
		s.ledger.Update(id, transaction.StatusCompleted, transaction.Completed(event.OrderID, now))
	case event.Type == payment.EventOrderFailed || event.State == payment.StateFailed:
		s.ledger.Update(id, transaction.StatusFailed, transaction.Failed(now))
	default:
		logger.Info("Callback does not settle the transaction", "state", event.State)
		return nil
	}

	logger.Info("Transaction settled by gateway callback")
	s.settle(context.WithoutCancel(ctx), logger, id)
	return nil
}

// settle publishes the outcome and sends the notification for a transaction that just became terminal
func (s *Scheduler) settle(ctx context.Context, logger *slog.Logger, id string) {
	txn, ok := s.ledger.Get(id)
	if !ok {
		return
	}

	if s.events != nil {
		if err := s.events.PublishOutcome(ctx, producers.NewOutcomeEvent(txn)); err != nil {
			logger.Error("Failed to publish payment outcome", "error", err)
		}
	}

	s.notify(ctx, logger, txn)
}

func (s *Scheduler) notify(ctx context.Context, logger *slog.Logger, txn transaction.Transaction) {
	if txn.EmailSent {
		return
	}
	if !txn.Notifiable() {
		logger.Warn("Booking details missing, skipping notification", "status", txn.Status)
		return
	}

	if err := s.deliver(ctx, logger, txn); err != nil {
		logger.Error("Failed to send outcome notification", "status", txn.Status, "error", err)
	}
}

// deliver sends the notification and flags the transaction on success.
// Recipients reached by a partly failed send are recorded so a retry skips them.
func (s *Scheduler) deliver(ctx context.Context, logger *slog.Logger, txn transaction.Transaction) error {
	reached, err := s.notifier.Notify(ctx, txn)
	for _, recipient := range reached {
		s.ledger.MarkRecipientNotified(txn.ID, recipient)
	}
	if err != nil {
		s.ledger.RecordNotificationAttempt(txn.ID)
		return err
	}

	if !s.ledger.MarkNotified(txn.ID, txn.Status) {
		logger.Warn("Notification sent but the transaction could not be flagged", "status", txn.Status)
	}
	return nil
}

// NotifyManually sends the notification a transaction in status want is owed, on request.
// It never sends twice: a transaction already notified returns ErrAlreadyNotified.
func (s *Scheduler) NotifyManually(ctx context.Context, id string, want transaction.Status) error {
	unlock := s.locks.Lock(id)
	defer unlock()

	txn, ok := s.ledger.Get(id)
	switch {
	case !ok:
		return transaction.ErrTransactionNotFound{ID: id}
	case txn.EmailSent:
		return ErrAlreadyNotified
	case txn.Status != want:
		return ErrStatusMismatch{ID: id, Status: txn.Status}
	case !txn.Notifiable():
		return ErrMissingBookingDetails
	}

	logger := s.logger.With("transaction_id", id)
	if err := s.deliver(context.WithoutCancel(ctx), logger, txn); err != nil {
		return err
	}
	logger.Info("Notification sent on request", "status", txn.Status)
	return nil
}

// retryMissedNotifications gives terminal transactions whose notification failed another attempt
func (s *Scheduler) retryMissedNotifications(ctx context.Context, logger *slog.Logger) {
	for _, candidate := range s.ledger.ListUnnotified(s.notificationRetryLimit) {
		func() {
			unlock := s.locks.Lock(candidate.ID)
			defer unlock()

			txn, ok := s.ledger.Get(candidate.ID)
			if !ok || !txn.Status.IsTerminal() {
				return
			}
			txLogger := logger.With("transaction_id", txn.ID)
			txLogger.Info("Retrying outcome notification", "previous_attempts", txn.NotificationAttempts)
			s.notify(ctx, txLogger, txn)
		}()
	}
}
