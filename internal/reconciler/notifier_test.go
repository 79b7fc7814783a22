package reconciler

import (
	"context"
	"encoding/json"
	"errors"
	"testing"

	"github.com/consultation-booking/internal/domain/booking"
	"github.com/consultation-booking/internal/domain/transaction"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

// MockDeadLetterPublisher mocks the notification dead-letter producer
type MockDeadLetterPublisher struct {
	mock.Mock
}

func (m *MockDeadLetterPublisher) PublishToDLQ(ctx context.Context, key string, originalMessageValue []byte, reason string) error {
	args := m.Called(ctx, key, originalMessageValue, reason)
	return args.Error(0)
}

func (m *MockDeadLetterPublisher) Close() error {
	args := m.Called()
	return args.Error(0)
}

func terminal(status transaction.Status) transaction.Transaction {
	return transaction.Transaction{
		ID:       "T1",
		Status:   status,
		Customer: &booking.Customer{FullName: "Jane Doe", Email: "jane@example.com"},
		Service:  &booking.Service{ID: "strategy-call", Title: "Strategy Call"},
	}
}

func TestNotifier_Notify(t *testing.T) {
	tests := []struct {
		name          string
		txn           transaction.Transaction
		setupMocks    func(d *MockDispatcher, dlq *MockDeadLetterPublisher)
		expectReached []transaction.Recipient
		expectedError string
	}{
		{
			name: "completed sends confirmation",
			txn:  terminal(transaction.StatusCompleted),
			setupMocks: func(d *MockDispatcher, dlq *MockDeadLetterPublisher) {
				d.On("SendConfirmation", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
				d.On("SendBookingAlert", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
			},
			expectReached: []transaction.Recipient{transaction.RecipientCustomer, transaction.RecipientOwner},
		},
		{
			name: "completed skips the recipient already reached",
			txn: func() transaction.Transaction {
				txn := terminal(transaction.StatusCompleted)
				txn.CustomerNotified = true
				return txn
			}(),
			setupMocks: func(d *MockDispatcher, dlq *MockDeadLetterPublisher) {
				d.On("SendBookingAlert", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
			},
			expectReached: []transaction.Recipient{transaction.RecipientOwner},
		},
		{
			name: "completed reports the customer reached when the owner alert fails",
			txn:  terminal(transaction.StatusCompleted),
			setupMocks: func(d *MockDispatcher, dlq *MockDeadLetterPublisher) {
				d.On("SendConfirmation", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()
				d.On("SendBookingAlert", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("mailbox full")).Once()
				dlq.On("PublishToDLQ", mock.Anything, "T1", mock.MatchedBy(func(value []byte) bool {
					var notice map[string]any
					if err := json.Unmarshal(value, &notice); err != nil {
						return false
					}
					return notice["status"] == "COMPLETED"
				}), "mailbox full").Return(nil).Once()
			},
			expectReached: []transaction.Recipient{transaction.RecipientCustomer},
			expectedError: "failed to send COMPLETED notification: mailbox full",
		},
		{
			name: "failed sends failure notice",
			txn:  terminal(transaction.StatusFailed),
			setupMocks: func(d *MockDispatcher, dlq *MockDeadLetterPublisher) {
				d.On("SendFailure", mock.Anything, mock.Anything, mock.Anything, "Payment failed during processing", "T1").Return(nil).Once()
			},
			expectReached: []transaction.Recipient{transaction.RecipientOwner},
		},
		{
			name: "timeout sends timeout notice",
			txn:  terminal(transaction.StatusTimeout),
			setupMocks: func(d *MockDispatcher, dlq *MockDeadLetterPublisher) {
				d.On("SendFailure", mock.Anything, mock.Anything, mock.Anything, "Payment timeout - exceeded maximum retry attempts", "T1").Return(nil).Once()
			},
			expectReached: []transaction.Recipient{transaction.RecipientOwner},
		},
		{
			name:          "pending has no notification",
			txn:           terminal(transaction.StatusPending),
			setupMocks:    func(d *MockDispatcher, dlq *MockDeadLetterPublisher) {},
			expectedError: "no notification defined for status PENDING",
		},
		{
			name: "dispatch failure is dead-lettered",
			txn:  terminal(transaction.StatusTimeout),
			setupMocks: func(d *MockDispatcher, dlq *MockDeadLetterPublisher) {
				d.On("SendFailure", mock.Anything, mock.Anything, mock.Anything, mock.Anything, "T1").Return(errors.New("smtp down")).Once()
				dlq.On("PublishToDLQ", mock.Anything, "T1", mock.MatchedBy(func(value []byte) bool {
					var notice map[string]any
					if err := json.Unmarshal(value, &notice); err != nil {
						return false
					}
					return notice["status"] == "TIMEOUT" && notice["reason"] == transaction.NoticeTimeout
				}), "smtp down").Return(errors.New("broker down")).Once()
			},
			expectedError: "failed to send TIMEOUT notification: smtp down",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			dispatcher := &MockDispatcher{}
			dlq := &MockDeadLetterPublisher{}
			tt.setupMocks(dispatcher, dlq)
			notifier := NewNotifier(dispatcher, dlq, testLogger())

			reached, err := notifier.Notify(context.Background(), tt.txn)

			assert.Equal(t, tt.expectReached, reached)
			if tt.expectedError != "" {
				require.Error(t, err)
				assert.Contains(t, err.Error(), tt.expectedError)
			} else {
				assert.NoError(t, err)
			}
			dispatcher.AssertExpectations(t)
			dlq.AssertExpectations(t)
		})
	}
}

func TestNotifier_WithoutDeadLetter(t *testing.T) {
	dispatcher := &MockDispatcher{}
	dispatcher.On("SendConfirmation", mock.Anything, mock.Anything, mock.Anything).Return(errors.New("smtp down")).Once()
	dispatcher.On("SendBookingAlert", mock.Anything, mock.Anything, mock.Anything).Return(nil).Once()

	reached, err := NewNotifier(dispatcher, nil, testLogger()).Notify(context.Background(), terminal(transaction.StatusCompleted))

	assert.Error(t, err)
	assert.Equal(t, []transaction.Recipient{transaction.RecipientOwner}, reached)
	dispatcher.AssertExpectations(t)
}

func TestKeyedMutex(t *testing.T) {
	k := newKeyedMutex()

	unlockA := k.Lock("A")
	acquired := make(chan struct{})
	released := make(chan struct{})
	go func() {
		unlock := k.Lock("A")
		close(acquired)
		unlock()
		close(released)
	}()

	unlockB := k.Lock("B")
	unlockB()

	select {
	case <-acquired:
		t.Fatal("second lock on the same key acquired while held")
	default:
	}
	unlockA()
	<-acquired
	<-released

	k.mu.Lock()
	defer k.mu.Unlock()
	assert.Empty(t, k.locks, "released keys are forgotten")
}
