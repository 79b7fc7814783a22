package transaction

import (
	"testing"
	"time"

	"github.com/consultation-booking/internal/domain/booking"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/require"
)

func TestStatus_IsTerminal(t *testing.T) {
	assert.False(t, StatusPending.IsTerminal())
	assert.True(t, StatusCompleted.IsTerminal())
	assert.True(t, StatusFailed.IsTerminal())
	assert.True(t, StatusTimeout.IsTerminal())
	assert.False(t, Status("UNKNOWN").IsTerminal())
}

func TestPatch_Apply(t *testing.T) {
	at := time.Date(2025, 3, 1, 10, 0, 0, 0, time.UTC)
	txn := &Transaction{ID: "T1", FailureReason: "keep"}

	Completed("OMO123", at).Apply(txn)

	assert.Equal(t, "OMO123", txn.GatewayOrderID)
	require.NotNil(t, txn.CompletedAt)
	assert.Equal(t, at, *txn.CompletedAt)
	assert.Equal(t, "keep", txn.FailureReason, "nil patch fields are untouched")
	assert.Nil(t, txn.FailedAt)

	Completed("", at).Apply(txn)
	assert.Equal(t, "OMO123", txn.GatewayOrderID, "an empty gateway order id does not erase the stored one")
}

func TestPatchBuilders(t *testing.T) {
	at := time.Now()

	failed := &Transaction{}
	Failed(at).Apply(failed)
	assert.Equal(t, ReasonGatewayFailed, failed.FailureReason)
	assert.NotNil(t, failed.FailedAt)

	timedOut := &Transaction{}
	TimedOut(at).Apply(timedOut)
	assert.Equal(t, ReasonRetriesExceeded, timedOut.FailureReason)
	assert.NotNil(t, timedOut.TimeoutAt)
}

func TestTransaction_NoticeReason(t *testing.T) {
	assert.Equal(t, NoticeTimeout, Transaction{Status: StatusTimeout}.NoticeReason())
	assert.Equal(t, NoticeFailed, Transaction{Status: StatusFailed}.NoticeReason())
}

func TestTransaction_Clone(t *testing.T) {
	at := time.Now()
	original := Transaction{
		ID:          "T1",
		Customer:    &booking.Customer{FullName: "Jane Doe"},
		Service:     &booking.Service{Title: "Strategy Call"},
		CompletedAt: &at,
	}

	clone := original.Clone()
	clone.Customer.FullName = "Changed"
	clone.Service.Title = "Changed"
	*clone.CompletedAt = at.Add(time.Hour)

	assert.Equal(t, "Jane Doe", original.Customer.FullName)
	assert.Equal(t, "Strategy Call", original.Service.Title)
	assert.Equal(t, at, *original.CompletedAt)
	assert.True(t, original.Notifiable())
	assert.False(t, Transaction{Customer: original.Customer}.Notifiable())
}

func TestErrTransactionNotFound(t *testing.T) {
	assert.Equal(t, "transaction not found: T9", ErrTransactionNotFound{ID: "T9"}.Error())
}
