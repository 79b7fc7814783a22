package transaction

import (
	"time"

	"github.com/consultation-booking/internal/domain/booking"
	"github.com/shopspring/decimal"
)

// Status is the reconciliation state of a payment
type Status string

const (
	StatusPending   Status = "PENDING"
	StatusCompleted Status = "COMPLETED"
	StatusFailed    Status = "FAILED"
	StatusTimeout   Status = "TIMEOUT"
)

// IsTerminal reports whether no further reconciliation happens from this status
func (s Status) IsTerminal() bool {
	return s == StatusCompleted || s == StatusFailed || s == StatusTimeout
}

// Failure reasons stored on the transaction itself
const (
	ReasonGatewayFailed   = "Payment failed at gateway"
	ReasonRetriesExceeded = "Exceeded maximum retry attempts"
)

// Reasons shown to the business owner in failure notices
const (
	NoticeFailed  = "Payment failed during processing"
	NoticeTimeout = "Payment timeout - exceeded maximum retry attempts"
)

// Recipient is one addressee of an outcome notification
type Recipient string

const (
	RecipientCustomer Recipient = "customer"
	RecipientOwner    Recipient = "owner"
)

// Transaction is one attempted payment, tracked from initiation through its terminal outcome
type Transaction struct {
	ID                   string            `json:"id"`
	Status               Status            `json:"status"`
	RetryCount           int               `json:"retry_count"`
	EmailSent            bool              `json:"email_sent"`
	CustomerNotified     bool              `json:"customer_notified,omitempty"`
	OwnerNotified        bool              `json:"owner_notified,omitempty"`
	NotificationAttempts int               `json:"notification_attempts,omitempty"`
	Amount               decimal.Decimal   `json:"amount"` // Rupees
	Customer             *booking.Customer `json:"customer,omitempty"`
	Service              *booking.Service  `json:"service,omitempty"`
	GatewayOrderID       string            `json:"gateway_order_id,omitempty"`
	FailureReason        string            `json:"failure_reason,omitempty"`
	CreatedAt            time.Time         `json:"created_at"`
	LastChecked          time.Time         `json:"last_checked"`
	CompletedAt          *time.Time        `json:"completed_at,omitempty"`
	FailedAt             *time.Time        `json:"failed_at,omitempty"`
	TimeoutAt            *time.Time        `json:"timeout_at,omitempty"`
}

// Notifiable reports whether both payloads needed by the email templates are present
func (t Transaction) Notifiable() bool {
	return t.Customer != nil && t.Service != nil
}

// Reached reports whether recipient already received this transaction's outcome notification
func (t Transaction) Reached(recipient Recipient) bool {
	switch recipient {
	case RecipientCustomer:
		return t.CustomerNotified
	case RecipientOwner:
		return t.OwnerNotified
	}
	return false
}

// MarkReached records that recipient received the outcome notification
func (t *Transaction) MarkReached(recipient Recipient) {
	switch recipient {
	case RecipientCustomer:
		t.CustomerNotified = true
	case RecipientOwner:
		t.OwnerNotified = true
	}
}

// NoticeReason returns the owner-facing reason for a failed or timed out transaction
func (t Transaction) NoticeReason() string {
	if t.Status == StatusTimeout {
		return NoticeTimeout
	}
	return NoticeFailed
}

// Entry holds the caller-supplied fields of a new ledger entry
type Entry struct {
	Amount         decimal.Decimal
	Customer       *booking.Customer
	Service        *booking.Service
	GatewayOrderID string
}

// Patch lists the fields an update may set. Nil fields are left untouched.
type Patch struct {
	GatewayOrderID *string
	FailureReason  *string
	CompletedAt    *time.Time
	FailedAt       *time.Time
	TimeoutAt      *time.Time
	EmailSent      *bool
}

// Apply merges the non-nil fields of p into t
func (p Patch) Apply(t *Transaction) {
	if p.GatewayOrderID != nil {
		t.GatewayOrderID = *p.GatewayOrderID
	}
	if p.FailureReason != nil {
		t.FailureReason = *p.FailureReason
	}
	if p.CompletedAt != nil {
		at := *p.CompletedAt
		t.CompletedAt = &at
	}
	if p.FailedAt != nil {
		at := *p.FailedAt
		t.FailedAt = &at
	}
	if p.TimeoutAt != nil {
		at := *p.TimeoutAt
		t.TimeoutAt = &at
	}
	if p.EmailSent != nil {
		t.EmailSent = *p.EmailSent
	}
}

// Completed builds the patch for a payment the gateway reports as completed
func Completed(gatewayOrderID string, at time.Time) Patch {
	p := Patch{CompletedAt: &at}
	if gatewayOrderID != "" {
		p.GatewayOrderID = &gatewayOrderID
	}
	return p
}

// Failed builds the patch for a payment the gateway reports as failed
func Failed(at time.Time) Patch {
	reason := ReasonGatewayFailed
	return Patch{FailureReason: &reason, FailedAt: &at}
}

// TimedOut builds the patch for a payment that exhausted its retry budget
func TimedOut(at time.Time) Patch {
	reason := ReasonRetriesExceeded
	return Patch{FailureReason: &reason, TimeoutAt: &at}
}

// Clone returns a deep copy so callers never share pointers with the ledger
func (t Transaction) Clone() Transaction {
	out := t
	if t.Customer != nil {
		c := *t.Customer
		out.Customer = &c
	}
	if t.Service != nil {
		s := *t.Service
		out.Service = &s
	}
	out.CompletedAt = cloneTime(t.CompletedAt)
	out.FailedAt = cloneTime(t.FailedAt)
	out.TimeoutAt = cloneTime(t.TimeoutAt)
	return out
}

func cloneTime(t *time.Time) *time.Time {
	if t == nil {
		return nil
	}
	v := *t
	return &v
}
