package service

import (
	"context"
	"io"
	"log/slog"
	"time"

	"github.com/consultation-booking/internal/domain/booking"
	"github.com/consultation-booking/internal/domain/payment"
	"github.com/consultation-booking/internal/domain/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/mock"
)

type MockPaymentGateway struct {
	mock.Mock
}

func (m *MockPaymentGateway) CreatePayment(ctx context.Context, req payment.Request) (*payment.Session, error) {
	args := m.Called(ctx, req)
	if fn, ok := args.Get(0).(func(context.Context, payment.Request) *payment.Session); ok {
		return fn(ctx, req), args.Error(1)
	}
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.Session), args.Error(1)
}

func (m *MockPaymentGateway) CheckStatus(ctx context.Context, transactionID string) (*payment.OrderStatus, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.OrderStatus), args.Error(1)
}

func (m *MockPaymentGateway) ValidateCallback(authorization string, body []byte) (*payment.CallbackEvent, error) {
	args := m.Called(authorization, body)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.CallbackEvent), args.Error(1)
}

type MockTransactionStore struct {
	mock.Mock
}

func (m *MockTransactionStore) Put(id string, entry transaction.Entry) {
	m.Called(id, entry)
}

func (m *MockTransactionStore) Get(id string) (transaction.Transaction, bool) {
	args := m.Called(id)
	return args.Get(0).(transaction.Transaction), args.Bool(1)
}

func (m *MockTransactionStore) MarkNotified(id string, status transaction.Status) bool {
	args := m.Called(id, status)
	return args.Bool(0)
}

type MockCallbackHandler struct {
	mock.Mock
}

func (m *MockCallbackHandler) HandleCallback(ctx context.Context, event payment.CallbackEvent) error {
	args := m.Called(ctx, event)
	return args.Error(0)
}

type MockManualNotifier struct {
	mock.Mock
}

func (m *MockManualNotifier) NotifyManually(ctx context.Context, id string, want transaction.Status) error {
	args := m.Called(ctx, id, want)
	return args.Error(0)
}

type MockBookingMailer struct {
	mock.Mock
}

func (m *MockBookingMailer) SendConfirmation(ctx context.Context, customer *booking.Customer, service *booking.Service) error {
	args := m.Called(ctx, customer, service)
	return args.Error(0)
}

func (m *MockBookingMailer) SendBookingAlert(ctx context.Context, customer *booking.Customer, service *booking.Service) error {
	args := m.Called(ctx, customer, service)
	return args.Error(0)
}

func (m *MockBookingMailer) SendFailure(ctx context.Context, customer *booking.Customer, service *booking.Service, reason, transactionID string) error {
	args := m.Called(ctx, customer, service, reason, transactionID)
	return args.Error(0)
}

func (m *MockBookingMailer) SendContactMessage(ctx context.Context, msg booking.ContactMessage) error {
	args := m.Called(ctx, msg)
	return args.Error(0)
}

type MockManualPaymentStore struct {
	mock.Mock
}

func (m *MockManualPaymentStore) Create(ctx context.Context, p *payment.ManualPayment) error {
	args := m.Called(ctx, p)
	return args.Error(0)
}

func (m *MockManualPaymentStore) GetByTransactionID(ctx context.Context, transactionID string) (*payment.ManualPayment, error) {
	args := m.Called(ctx, transactionID)
	if args.Get(0) == nil {
		return nil, args.Error(1)
	}
	return args.Get(0).(*payment.ManualPayment), args.Error(1)
}

func (m *MockManualPaymentStore) MarkConfirmationSent(ctx context.Context, transactionID string, at time.Time) (bool, error) {
	args := m.Called(ctx, transactionID, at)
	return args.Bool(0), args.Error(1)
}

func discardLogger() *slog.Logger {
	return slog.New(slog.NewJSONHandler(io.Discard, nil))
}

func testCustomer() *booking.Customer {
	return &booking.Customer{FullName: "Jane Doe", Email: "jane@example.com"}
}

func testService() *booking.Service {
	return &booking.Service{ID: "strategy-call", Title: "Strategy Call", Price: decimal.NewFromInt(1499)}
}
