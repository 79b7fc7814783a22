package service

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"strings"
	"time"

	"github.com/consultation-booking/internal/config"
	"github.com/consultation-booking/internal/domain/booking"
	"github.com/consultation-booking/internal/domain/payment"
	"github.com/consultation-booking/internal/domain/transaction"
	"github.com/consultation-booking/internal/logger"
	"github.com/google/uuid"
	"github.com/shopspring/decimal"
)

var maxAmount = decimal.NewFromInt(999999)

// PaymentRequest is a booking form submitted for payment. Amount is in rupees.
type PaymentRequest struct {
	Amount   decimal.Decimal
	Customer *booking.Customer
	Service  *booking.Service
}

func (r PaymentRequest) validate() error {
	if !r.Amount.IsPositive() {
		return fmt.Errorf("%w: amount must be greater than 0", ErrInvalidRequest)
	}
	if r.Amount.GreaterThan(maxAmount) {
		return fmt.Errorf("%w: amount exceeds maximum limit", ErrInvalidRequest)
	}
	if r.Customer == nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, booking.ErrMissingFullName)
	}
	if err := r.Customer.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	if r.Service == nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, booking.ErrMissingService)
	}
	if err := r.Service.Validate(); err != nil {
		return fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}
	return nil
}

// PaymentResult is what the booking form needs to send the customer to pay
type PaymentResult struct {
	TransactionID string
	PaymentURL    string
	Amount        decimal.Decimal
	Status        transaction.Status
	PaymentMethod string
}

// PaymentServiceImpl implements the PaymentService interface
type PaymentServiceImpl struct {
	gateway   PaymentGateway
	ledger    TransactionStore
	callbacks CallbackHandler
	manual    ManualPaymentStore
	fallback  config.FallbackConfig
	logger    *slog.Logger
	now       func() time.Time
}

// NewPaymentService creates a new payment service. manual may be nil when fallback bookings are not recorded.
func NewPaymentService(
	logger *slog.Logger,
	fallback config.FallbackConfig,
	gateway PaymentGateway,
	ledger TransactionStore,
	callbacks CallbackHandler,
	manual ManualPaymentStore,
) *PaymentServiceImpl {
	return &PaymentServiceImpl{
		gateway:   gateway,
		ledger:    ledger,
		callbacks: callbacks,
		manual:    manual,
		fallback:  fallback,
		logger:    logger,
		now:       time.Now,
	}
}

// CreatePayment registers a gateway checkout as PENDING in the ledger. When the gateway call
// fails the customer is offered a UPI deep link instead, which is not ledgered.
func (s *PaymentServiceImpl) CreatePayment(ctx context.Context, req PaymentRequest) (*PaymentResult, error) {
	if err := req.validate(); err != nil {
		return nil, err
	}

	transactionID := uuid.NewString()
	session, err := s.gateway.CreatePayment(ctx, payment.Request{
		MerchantOrderID: transactionID,
		Amount:          req.Amount,
		Description:     req.Service.Title,
	})
	if err != nil {
		s.logger.Error("Gateway payment creation failed, offering UPI fallback",
			"transaction_id", transactionID,
			"error", err,
		)
		return s.createFallback(ctx, req, err)
	}

	s.ledger.Put(session.TransactionID, transaction.Entry{
		Amount:         req.Amount,
		Customer:       req.Customer,
		Service:        req.Service,
		GatewayOrderID: session.OrderID,
	})

	s.logger.Info("Payment initiated and stored as pending",
		"transaction_id", session.TransactionID,
		"order_id", session.OrderID,
		"amount", req.Amount.StringFixed(2),
		"customer_email", logger.MaskEmail(req.Customer.Email),
	)

	return &PaymentResult{
		TransactionID: session.TransactionID,
		PaymentURL:    session.RedirectURL,
		Amount:        req.Amount,
		Status:        transaction.StatusPending,
		PaymentMethod: payment.MethodPhonePe,
	}, nil
}

func (s *PaymentServiceImpl) createFallback(ctx context.Context, req PaymentRequest, gatewayErr error) (*PaymentResult, error) {
	transactionID := fmt.Sprintf("MT%d", s.now().UnixMilli())
	link := s.deepLink(req.Amount, req.Service.Title)

	if s.manual != nil {
		record := &payment.ManualPayment{
			TransactionID: transactionID,
			Amount:        req.Amount,
			ServiceID:     req.Service.ID,
			ServiceTitle:  req.Service.Title,
			CustomerName:  req.Customer.FullName,
			CustomerEmail: req.Customer.Email,
			DeepLink:      link,
			GatewayError:  gatewayErr.Error(),
		}
		if err := s.manual.Create(ctx, record); err != nil {
			s.logger.Error("Failed to record manual payment", "transaction_id", transactionID, "error", err)
		}
	}

	s.logger.Info("Fallback UPI payment created", "transaction_id", transactionID)

	return &PaymentResult{
		TransactionID: transactionID,
		PaymentURL:    link,
		Amount:        req.Amount,
		Status:        transaction.StatusPending,
		PaymentMethod: payment.MethodUPI,
	}, nil
}

func (s *PaymentServiceImpl) deepLink(amount decimal.Decimal, note string) string {
	return "upi://pay?pa=" + escape(s.fallback.MerchantVPA) +
		"&pn=" + escape(s.fallback.PayeeName) +
		"&am=" + amount.StringFixed(2) +
		"&cu=INR" +
		"&tn=" + escape(note)
}

// escape percent-encodes a query value, spaces included, since UPI apps do not decode '+'
func escape(v string) string {
	return strings.ReplaceAll(url.QueryEscape(v), "+", "%20")
}

// CheckStatus is a synchronous passthrough to the gateway
func (s *PaymentServiceImpl) CheckStatus(ctx context.Context, transactionID string) (*payment.OrderStatus, error) {
	if strings.TrimSpace(transactionID) == "" {
		return nil, fmt.Errorf("%w: transaction ID is required", ErrInvalidRequest)
	}

	status, err := s.gateway.CheckStatus(ctx, transactionID)
	if err != nil {
		return nil, err
	}
	s.logger.Info("Payment status checked", "transaction_id", transactionID, "state", status.State)
	return status, nil
}

// HandleWebhook verifies the callback and hands it to the reconciler. Callbacks for
// transactions the ledger does not know are acknowledged and dropped.
func (s *PaymentServiceImpl) HandleWebhook(ctx context.Context, authorization string, body []byte) (*payment.CallbackEvent, error) {
	if authorization == "" {
		return nil, fmt.Errorf("%w: missing authorization header", ErrInvalidRequest)
	}

	event, err := s.gateway.ValidateCallback(authorization, body)
	if err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidRequest, err)
	}

	txLogger := s.logger.With("transaction_id", event.MerchantOrderID, "event_type", event.Type)
	txLogger.Info("Gateway callback validated", "order_id", event.OrderID, "state", event.State)

	if err := s.callbacks.HandleCallback(ctx, *event); err != nil {
		var notFound transaction.ErrTransactionNotFound
		if errors.As(err, &notFound) {
			txLogger.Warn("Callback for unknown transaction ignored")
			return event, nil
		}
		return nil, fmt.Errorf("failed to apply gateway callback: %w", err)
	}

	return event, nil
}
