package service

import (
	"context"
	"errors"
	"testing"
	"time"

	"github.com/consultation-booking/internal/domain/booking"
	"github.com/consultation-booking/internal/domain/payment"
	"github.com/consultation-booking/internal/domain/transaction"
	"github.com/consultation-booking/internal/reconciler"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

type notificationMocks struct {
	ledger   *MockTransactionStore
	notifier *MockManualNotifier
	mailer   *MockBookingMailer
	manual   *MockManualPaymentStore
}

func newNotificationService(withManual bool) (*NotificationServiceImpl, *notificationMocks) {
	m := &notificationMocks{
		ledger:   new(MockTransactionStore),
		notifier: new(MockManualNotifier),
		mailer:   new(MockBookingMailer),
		manual:   new(MockManualPaymentStore),
	}
	var manual ManualPaymentStore
	if withManual {
		manual = m.manual
	}
	s := NewNotificationService(discardLogger(), m.ledger, m.notifier, m.mailer, manual)
	s.now = func() time.Time { return time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC) }
	return s, m
}

func TestNotificationServiceImpl_SendConfirmation(t *testing.T) {
	ctx := context.Background()
	withPayloads := ConfirmationRequest{TransactionID: "T1", Customer: testCustomer(), Service: testService()}

	tests := []struct {
		name           string
		req            ConfirmationRequest
		withManual     bool
		setupMocks     func(m *notificationMocks)
		expectedResult *DeliveryResult
		expectedErr    error
	}{
		{
			name: "ledgered transaction is confirmed by the reconciler",
			req:  ConfirmationRequest{TransactionID: "T1"},
			setupMocks: func(m *notificationMocks) {
				m.notifier.On("NotifyManually", ctx, "T1", transaction.StatusCompleted).Return(nil).Once()
			},
			expectedResult: &DeliveryResult{Sent: true},
		},
		{
			name: "already notified",
			req:  ConfirmationRequest{TransactionID: "T1"},
			setupMocks: func(m *notificationMocks) {
				m.notifier.On("NotifyManually", ctx, "T1", transaction.StatusCompleted).Return(reconciler.ErrAlreadyNotified).Once()
			},
			expectedResult: &DeliveryResult{Reason: ReasonAlreadySent},
		},
		{
			name: "pending payment is left to reconciliation",
			req:  withPayloads,
			setupMocks: func(m *notificationMocks) {
				m.notifier.On("NotifyManually", ctx, "T1", transaction.StatusCompleted).
					Return(reconciler.ErrStatusMismatch{ID: "T1", Status: transaction.StatusPending}).Once()
			},
			expectedResult: &DeliveryResult{Reason: ReasonPaymentPending},
		},
		{
			name: "failed payment conflicts",
			req:  withPayloads,
			setupMocks: func(m *notificationMocks) {
				m.notifier.On("NotifyManually", ctx, "T1", transaction.StatusCompleted).
					Return(reconciler.ErrStatusMismatch{ID: "T1", Status: transaction.StatusFailed}).Once()
			},
			expectedErr: ErrStatusConflict,
		},
		{
			name: "unledgered transaction uses request payloads",
			req:  withPayloads,
			setupMocks: func(m *notificationMocks) {
				m.notifier.On("NotifyManually", ctx, "T1", transaction.StatusCompleted).
					Return(transaction.ErrTransactionNotFound{ID: "T1"}).Once()
				m.mailer.On("SendConfirmation", ctx, withPayloads.Customer, withPayloads.Service).Return(nil).Once()
				m.mailer.On("SendBookingAlert", ctx, withPayloads.Customer, withPayloads.Service).Return(nil).Once()
			},
			expectedResult: &DeliveryResult{Sent: true},
		},
		{
			name: "unledgered transaction without payloads",
			req:  ConfirmationRequest{TransactionID: "T1"},
			setupMocks: func(m *notificationMocks) {
				m.notifier.On("NotifyManually", ctx, "T1", transaction.StatusCompleted).
					Return(transaction.ErrTransactionNotFound{ID: "T1"}).Once()
			},
			expectedErr: ErrInvalidRequest,
		},
		{
			name: "ledger entry without details is confirmed from the request and flagged",
			req:  withPayloads,
			setupMocks: func(m *notificationMocks) {
				m.notifier.On("NotifyManually", ctx, "T1", transaction.StatusCompleted).
					Return(reconciler.ErrMissingBookingDetails).Once()
				m.mailer.On("SendConfirmation", ctx, withPayloads.Customer, withPayloads.Service).Return(nil).Once()
				m.mailer.On("SendBookingAlert", ctx, withPayloads.Customer, withPayloads.Service).Return(nil).Once()
				m.ledger.On("MarkNotified", "T1", transaction.StatusCompleted).Return(true).Once()
			},
			expectedResult: &DeliveryResult{Sent: true},
		},
		{
			name:       "manual payment already confirmed",
			req:        withPayloads,
			withManual: true,
			setupMocks: func(m *notificationMocks) {
				sentAt := time.Date(2025, 1, 14, 9, 0, 0, 0, time.UTC)
				m.notifier.On("NotifyManually", ctx, "T1", transaction.StatusCompleted).
					Return(transaction.ErrTransactionNotFound{ID: "T1"}).Once()
				m.manual.On("GetByTransactionID", ctx, "T1").
					Return(&payment.ManualPayment{TransactionID: "T1", ConfirmationSentAt: &sentAt}, nil).Once()
			},
			expectedResult: &DeliveryResult{Reason: ReasonAlreadySent},
		},
		{
			name:       "manual payment confirmation is recorded",
			req:        withPayloads,
			withManual: true,
			setupMocks: func(m *notificationMocks) {
				m.notifier.On("NotifyManually", ctx, "T1", transaction.StatusCompleted).
					Return(transaction.ErrTransactionNotFound{ID: "T1"}).Once()
				m.manual.On("GetByTransactionID", ctx, "T1").Return(&payment.ManualPayment{TransactionID: "T1"}, nil).Once()
				m.mailer.On("SendConfirmation", ctx, withPayloads.Customer, withPayloads.Service).Return(nil).Once()
				m.mailer.On("SendBookingAlert", ctx, withPayloads.Customer, withPayloads.Service).Return(nil).Once()
				m.manual.On("MarkConfirmationSent", ctx, "T1", time.Date(2025, 1, 15, 9, 0, 0, 0, time.UTC)).Return(true, nil).Once()
			},
			expectedResult: &DeliveryResult{Sent: true},
		},
		{
			name:       "unknown manual payment still sends",
			req:        withPayloads,
			withManual: true,
			setupMocks: func(m *notificationMocks) {
				m.notifier.On("NotifyManually", ctx, "T1", transaction.StatusCompleted).
					Return(transaction.ErrTransactionNotFound{ID: "T1"}).Once()
				m.manual.On("GetByTransactionID", ctx, "T1").
					Return(nil, payment.ErrManualPaymentNotFound{TransactionID: "T1"}).Once()
				m.mailer.On("SendConfirmation", ctx, withPayloads.Customer, withPayloads.Service).Return(nil).Once()
				m.mailer.On("SendBookingAlert", ctx, withPayloads.Customer, withPayloads.Service).Return(nil).Once()
			},
			expectedResult: &DeliveryResult{Sent: true},
		},
		{
			name:        "missing transaction id",
			req:         ConfirmationRequest{},
			setupMocks:  func(m *notificationMocks) {},
			expectedErr: ErrInvalidRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newNotificationService(tt.withManual)
			tt.setupMocks(m)

			result, err := s.SendConfirmation(ctx, tt.req)

			if tt.expectedErr != nil {
				assert.ErrorIs(t, err, tt.expectedErr)
				assert.Nil(t, result)
			} else {
				require.NoError(t, err)
				assert.Equal(t, tt.expectedResult, result)
			}
			m.notifier.AssertExpectations(t)
			m.mailer.AssertExpectations(t)
			m.manual.AssertExpectations(t)
			m.ledger.AssertExpectations(t)
		})
	}
}

func TestNotificationServiceImpl_UnledgeredConfirmationIsSentOnce(t *testing.T) {
	ctx := context.Background()
	s, m := newNotificationService(false)
	req := ConfirmationRequest{TransactionID: "MT1", Customer: testCustomer(), Service: testService()}

	m.notifier.On("NotifyManually", ctx, "MT1", transaction.StatusCompleted).Return(transaction.ErrTransactionNotFound{ID: "MT1"})
	m.mailer.On("SendConfirmation", ctx, req.Customer, req.Service).Return(errors.New("smtp down")).Once()
	m.mailer.On("SendConfirmation", ctx, req.Customer, req.Service).Return(nil).Once()
	m.mailer.On("SendBookingAlert", ctx, req.Customer, req.Service).Return(nil).Once()

	_, err := s.SendConfirmation(ctx, req)
	require.Error(t, err)
	assert.Contains(t, err.Error(), "smtp down")

	// A failed send does not use up the claim
	result, err := s.SendConfirmation(ctx, req)
	require.NoError(t, err)
	assert.True(t, result.Sent)

	result, err = s.SendConfirmation(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, &DeliveryResult{Reason: ReasonAlreadySent}, result)

	m.mailer.AssertNumberOfCalls(t, "SendConfirmation", 2)
	m.mailer.AssertNumberOfCalls(t, "SendBookingAlert", 1)
}

func TestNotificationServiceImpl_UnledgeredAlertFailureKeepsConfirmation(t *testing.T) {
	ctx := context.Background()
	s, m := newNotificationService(false)
	req := ConfirmationRequest{TransactionID: "MT2", Customer: testCustomer(), Service: testService()}

	m.notifier.On("NotifyManually", ctx, "MT2", transaction.StatusCompleted).Return(transaction.ErrTransactionNotFound{ID: "MT2"})
	m.mailer.On("SendConfirmation", ctx, req.Customer, req.Service).Return(nil).Once()
	m.mailer.On("SendBookingAlert", ctx, req.Customer, req.Service).Return(errors.New("owner mailbox full")).Once()

	result, err := s.SendConfirmation(ctx, req)
	require.NoError(t, err)
	assert.True(t, result.Sent)

	result, err = s.SendConfirmation(ctx, req)
	require.NoError(t, err)
	assert.Equal(t, &DeliveryResult{Reason: ReasonAlreadySent}, result)

	m.mailer.AssertNumberOfCalls(t, "SendConfirmation", 1)
	m.mailer.AssertExpectations(t)
}

func TestNotificationServiceImpl_SendFailureNotice(t *testing.T) {
	ctx := context.Background()
	customer, service := testCustomer(), testService()

	tests := []struct {
		name        string
		req         FailureNoticeRequest
		setupMocks  func(m *notificationMocks)
		expectedErr error
	}{
		{
			name: "uses request payloads",
			req:  FailureNoticeRequest{TransactionID: "T1", Reason: "Payment cancelled", Customer: customer, Service: service},
			setupMocks: func(m *notificationMocks) {
				m.mailer.On("SendFailure", ctx, customer, service, "Payment cancelled", "T1").Return(nil).Once()
			},
		},
		{
			name: "falls back to ledger payloads",
			req:  FailureNoticeRequest{TransactionID: "T1", Reason: "Payment cancelled"},
			setupMocks: func(m *notificationMocks) {
				m.ledger.On("Get", "T1").Return(transaction.Transaction{ID: "T1", Customer: customer, Service: service}, true).Once()
				m.mailer.On("SendFailure", ctx, customer, service, "Payment cancelled", "T1").Return(nil).Once()
			},
		},
		{
			name: "no payloads anywhere",
			req:  FailureNoticeRequest{TransactionID: "T1", Reason: "Payment cancelled"},
			setupMocks: func(m *notificationMocks) {
				m.ledger.On("Get", "T1").Return(transaction.Transaction{}, false).Once()
			},
			expectedErr: ErrInvalidRequest,
		},
		{
			name:        "reason required",
			req:         FailureNoticeRequest{TransactionID: "T1", Customer: customer, Service: service},
			setupMocks:  func(m *notificationMocks) {},
			expectedErr: ErrInvalidRequest,
		},
		{
			name: "mailer error",
			req:  FailureNoticeRequest{TransactionID: "T1", Reason: "Payment cancelled", Customer: customer, Service: service},
			setupMocks: func(m *notificationMocks) {
				m.mailer.On("SendFailure", ctx, customer, service, "Payment cancelled", "T1").Return(errors.New("smtp down")).Once()
			},
			expectedErr: errors.New("smtp down"),
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			s, m := newNotificationService(false)
			tt.setupMocks(m)

			err := s.SendFailureNotice(ctx, tt.req)

			switch {
			case tt.expectedErr == nil:
				assert.NoError(t, err)
			case errors.Is(tt.expectedErr, ErrInvalidRequest):
				assert.ErrorIs(t, err, ErrInvalidRequest)
			default:
				assert.EqualError(t, err, tt.expectedErr.Error())
			}
			m.mailer.AssertExpectations(t)
			m.ledger.AssertExpectations(t)
		})
	}
}

func TestNotificationServiceImpl_SendContactMessage(t *testing.T) {
	ctx := context.Background()

	t.Run("Success", func(t *testing.T) {
		s, m := newNotificationService(false)
		msg := booking.ContactMessage{Name: "Sam", Email: "sam@example.com", Message: "Hello"}
		m.mailer.On("SendContactMessage", ctx, msg).Return(nil).Once()

		assert.NoError(t, s.SendContactMessage(ctx, msg))
		m.mailer.AssertExpectations(t)
	})

	t.Run("MissingFields", func(t *testing.T) {
		s, m := newNotificationService(false)

		err := s.SendContactMessage(ctx, booking.ContactMessage{Name: "Sam", Email: "sam@example.com"})
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Contains(t, err.Error(), "name, email, and message are required")
		m.mailer.AssertNotCalled(t, "SendContactMessage", mock.Anything, mock.Anything)
	})

	t.Run("InvalidEmail", func(t *testing.T) {
		s, _ := newNotificationService(false)

		err := s.SendContactMessage(ctx, booking.ContactMessage{Name: "Sam", Email: "sam@", Message: "Hi"})
		assert.ErrorIs(t, err, ErrInvalidRequest)
		assert.Contains(t, err.Error(), "invalid email format")
	})
}
