// Package ledger keeps the in-memory transaction ledger reconciled by the scheduler.
// The ledger lives for the lifetime of the process; nothing is persisted.
package ledger

import (
	"sort"
	"sync"
	"time"

	"github.com/consultation-booking/internal/domain/transaction"
)

// Ledger is a concurrency-safe map of transactions keyed by id.
// Every read returns a copy; callers never share memory with stored entries.
type Ledger struct {
	mu         sync.RWMutex
	entries    map[string]*transaction.Transaction
	retryLimit int
	retention  time.Duration
	now        func() time.Time
}

// New creates an empty ledger. A nil clock defaults to time.Now.
func New(retryLimit int, retention time.Duration, now func() time.Time) *Ledger {
	if now == nil {
		now = time.Now
	}
	return &Ledger{
		entries:    make(map[string]*transaction.Transaction),
		retryLimit: retryLimit,
		retention:  retention,
		now:        now,
	}
}

// RetryLimit is the number of reconciliation attempts a PENDING entry gets
func (l *Ledger) RetryLimit() int {
	return l.retryLimit
}

// Put inserts a fresh PENDING entry, replacing any entry with the same id
func (l *Ledger) Put(id string, entry transaction.Entry) {
	now := l.now()
	txn := transaction.Transaction{
		ID:             id,
		Status:         transaction.StatusPending,
		Amount:         entry.Amount,
		Customer:       entry.Customer,
		Service:        entry.Service,
		GatewayOrderID: entry.GatewayOrderID,
		CreatedAt:      now,
		LastChecked:    now,
	}.Clone()

	l.mu.Lock()
	l.entries[id] = &txn
	l.mu.Unlock()
}

// Get returns a copy of the entry and whether it exists
func (l *Ledger) Get(id string) (transaction.Transaction, bool) {
	l.mu.RLock()
	defer l.mu.RUnlock()

	txn, ok := l.entries[id]
	if !ok {
		return transaction.Transaction{}, false
	}
	return txn.Clone(), true
}

// Update merges patch, sets status, refreshes lastChecked and counts one attempt.
// Unknown ids are ignored.
func (l *Ledger) Update(id string, status transaction.Status, patch transaction.Patch) {
	l.mu.Lock()
	defer l.mu.Unlock()

	txn, ok := l.entries[id]
	if !ok {
		return
	}
	patch.Apply(txn)
	txn.Status = status
	txn.LastChecked = l.now()
	txn.RetryCount++
}

// MarkNotified flags the terminal notification as sent. It succeeds only once per
// entry and only while the entry is still in the status the notification reported.
func (l *Ledger) MarkNotified(id string, status transaction.Status) bool {
	l.mu.Lock()
	defer l.mu.Unlock()

	txn, ok := l.entries[id]
	if !ok || !status.IsTerminal() || txn.Status != status || txn.EmailSent {
		return false
	}
	txn.EmailSent = true
	return true
}

// MarkRecipientNotified records that one recipient of a terminal entry's notification was reached.
// Partly delivered notifications are resumed from here without emailing that recipient again.
func (l *Ledger) MarkRecipientNotified(id string, recipient transaction.Recipient) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if txn, ok := l.entries[id]; ok && txn.Status.IsTerminal() {
		txn.MarkReached(recipient)
	}
}

// RecordNotificationAttempt counts a failed notification for the retry sweep
func (l *Ledger) RecordNotificationAttempt(id string) {
	l.mu.Lock()
	defer l.mu.Unlock()

	if txn, ok := l.entries[id]; ok {
		txn.NotificationAttempts++
	}
}

// ListPending returns a snapshot of entries eligible for reconciliation, oldest first
func (l *Ledger) ListPending() []transaction.Transaction {
	return l.list(func(t *transaction.Transaction) bool {
		return t.Status == transaction.StatusPending && t.RetryCount < l.retryLimit
	})
}

// ListUnnotified returns terminal entries whose notification has not been delivered
// and that have been attempted fewer than maxAttempts times
func (l *Ledger) ListUnnotified(maxAttempts int) []transaction.Transaction {
	return l.list(func(t *transaction.Transaction) bool {
		return t.Status.IsTerminal() && !t.EmailSent && t.Notifiable() && t.NotificationAttempts < maxAttempts
	})
}

func (l *Ledger) list(keep func(*transaction.Transaction) bool) []transaction.Transaction {
	l.mu.RLock()
	out := make([]transaction.Transaction, 0, len(l.entries))
	for _, txn := range l.entries {
		if keep(txn) {
			out = append(out, txn.Clone())
		}
	}
	l.mu.RUnlock()

	sort.Slice(out, func(i, j int) bool {
		if out[i].CreatedAt.Equal(out[j].CreatedAt) {
			return out[i].ID < out[j].ID
		}
		return out[i].CreatedAt.Before(out[j].CreatedAt)
	})
	return out
}

// Prune removes terminal entries last checked before the retention window and
// returns how many were removed. PENDING entries are never removed.
func (l *Ledger) Prune() int {
	cutoff := l.now().Add(-l.retention)

	l.mu.Lock()
	defer l.mu.Unlock()

	removed := 0
	for id, txn := range l.entries {
		if txn.Status != transaction.StatusPending && txn.LastChecked.Before(cutoff) {
			delete(l.entries, id)
			removed++
		}
	}
	return removed
}

// Stats counts entries by status
func (l *Ledger) Stats() map[transaction.Status]int {
	l.mu.RLock()
	defer l.mu.RUnlock()

	stats := map[transaction.Status]int{
		transaction.StatusPending:   0,
		transaction.StatusCompleted: 0,
		transaction.StatusFailed:    0,
		transaction.StatusTimeout:   0,
	}
	for _, txn := range l.entries {
		stats[txn.Status]++
	}
	return stats
}
