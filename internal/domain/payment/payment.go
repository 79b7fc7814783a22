package payment

import (
	"time"

	"github.com/shopspring/decimal"
)

// State is the gateway's authoritative view of an order
type State string

const (
	StatePending   State = "PENDING"
	StateCompleted State = "COMPLETED"
	StateFailed    State = "FAILED"
)

// Callback event types sent by the gateway
const (
	EventOrderCompleted = "CHECKOUT_ORDER_COMPLETED"
	EventOrderFailed    = "CHECKOUT_ORDER_FAILED"
)

// Payment methods reported back to the booking form
const (
	MethodPhonePe = "phonepe"
	MethodUPI     = "upi_fallback"
)

// OrderStatus is the result of a status check
type OrderStatus struct {
	OrderID  string    `json:"order_id"`
	State    State     `json:"state"`
	Amount   int64     `json:"amount"` // Paisa
	ExpireAt time.Time `json:"expire_at,omitempty"`
}

// Request describes a payment to create with the gateway
type Request struct {
	MerchantOrderID string
	Amount          decimal.Decimal // Rupees
	Description     string
}

// Session is a created gateway payment the customer is redirected to
type Session struct {
	TransactionID string // Merchant order id, also the ledger key
	OrderID       string // Gateway order id
	RedirectURL   string
	State         State
	ExpireAt      time.Time
}

// CallbackEvent is a verified gateway webhook
type CallbackEvent struct {
	Type            string `json:"type"`
	OrderID         string `json:"order_id"`
	MerchantOrderID string `json:"merchant_order_id"`
	State           State  `json:"state"`
	Amount          int64  `json:"amount"` // Paisa
}

// ManualPayment records a booking paid through the UPI fallback link
type ManualPayment struct {
	ID            int64           `json:"id"`
	TransactionID string          `json:"transaction_id"`
	Amount        decimal.Decimal `json:"amount"`
	ServiceID     string          `json:"service_id"`
	ServiceTitle  string          `json:"service_title"`
	CustomerName  string          `json:"customer_name"`
	CustomerEmail string          `json:"customer_email"`
	DeepLink      string          `json:"deep_link"`
	GatewayError  string          `json:"gateway_error,omitempty"`
	CreatedAt     time.Time       `json:"created_at"`

	ConfirmationSentAt *time.Time `json:"confirmation_sent_at,omitempty"`
}

// ToPaisa converts a rupee amount to the gateway's minor unit
func ToPaisa(rupees decimal.Decimal) int64 {
	return rupees.Mul(decimal.NewFromInt(100)).Round(0).IntPart()
}

// FromPaisa converts a gateway amount to rupees
func FromPaisa(paisa int64) decimal.Decimal {
	return decimal.New(paisa, -2)
}
