// Package phonepe is a client for the PhonePe Standard Checkout v2 API.
package phonepe

import (
	"bytes"
	"context"
	"crypto/sha256"
	"crypto/subtle"
	"encoding/hex"
	"encoding/json"
	"fmt"
	"io"
	"log/slog"
	"net/http"
	"net/url"
	"strings"
	"sync"
	"time"

	"github.com/consultation-booking/internal/config"
	"github.com/consultation-booking/internal/domain/payment"
)

const (
	sandboxBaseURL    = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	sandboxAuthURL    = "https://api-preprod.phonepe.com/apis/pg-sandbox"
	productionBaseURL = "https://api.phonepe.com/apis/pg"
	productionAuthURL = "https://api.phonepe.com/apis/identity-manager"

	tokenPath  = "/v1/oauth/token"
	payPath    = "/checkout/v2/pay"
	statusPath = "/checkout/v2/order/%s/status"

	// Tokens are refreshed this long before the gateway's expiry
	tokenRefreshMargin = time.Minute
	maxErrorBody       = 4096
)

// Client talks to the PhonePe checkout API with a cached OAuth token
type Client struct {
	httpClient      *http.Client
	logger          *slog.Logger
	baseURL         string
	authURL         string
	clientID        string
	clientSecret    string
	clientVersion   string
	webhookUsername string
	webhookPassword string
	frontendURL     string
	now             func() time.Time

	mu          sync.Mutex
	token       string
	tokenType   string
	tokenExpiry time.Time
}

// NewClient creates a client for the configured environment. Explicit base URLs win over the environment.
func NewClient(cfg *config.PhonePeConfig, logger *slog.Logger) *Client {
	baseURL, authURL := sandboxBaseURL, sandboxAuthURL
	if cfg.Env == "production" {
		baseURL, authURL = productionBaseURL, productionAuthURL
	}
	if cfg.BaseURL != "" {
		baseURL = cfg.BaseURL
	}
	if cfg.AuthURL != "" {
		authURL = cfg.AuthURL
	}

	return &Client{
		httpClient:      &http.Client{Timeout: cfg.Timeout},
		logger:          logger.With("component", "phonepe"),
		baseURL:         strings.TrimRight(baseURL, "/"),
		authURL:         strings.TrimRight(authURL, "/"),
		clientID:        cfg.ClientID,
		clientSecret:    cfg.ClientSecret,
		clientVersion:   cfg.ClientVersion,
		webhookUsername: cfg.WebhookUsername,
		webhookPassword: cfg.WebhookPassword,
		frontendURL:     cfg.FrontendURL,
		now:             time.Now,
	}
}

type tokenResponse struct {
	AccessToken string `json:"access_token"`
	TokenType   string `json:"token_type"`
	ExpiresAt   int64  `json:"expires_at"`
}

type payRequest struct {
	MerchantOrderID string      `json:"merchantOrderId"`
	Amount          int64       `json:"amount"`
	ExpireAfter     int64       `json:"expireAfter,omitempty"`
	PaymentFlow     paymentFlow `json:"paymentFlow"`
}

type paymentFlow struct {
	Type         string       `json:"type"`
	Message      string       `json:"message,omitempty"`
	MerchantUrls merchantUrls `json:"merchantUrls"`
}

type merchantUrls struct {
	RedirectURL string `json:"redirectUrl"`
}

type payResponse struct {
	OrderID     string        `json:"orderId"`
	State       payment.State `json:"state"`
	ExpireAt    int64         `json:"expireAt"`
	RedirectURL string        `json:"redirectUrl"`
}

type statusResponse struct {
	OrderID  string        `json:"orderId"`
	State    payment.State `json:"state"`
	Amount   int64         `json:"amount"`
	ExpireAt int64         `json:"expireAt"`
}

type errorResponse struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// CreatePayment starts a checkout for req and returns the page the customer is sent to
func (c *Client) CreatePayment(ctx context.Context, req payment.Request) (*payment.Session, error) {
	body := payRequest{
		MerchantOrderID: req.MerchantOrderID,
		Amount:          payment.ToPaisa(req.Amount),
		PaymentFlow: paymentFlow{
			Type:    "PG_CHECKOUT",
			Message: req.Description,
			MerchantUrls: merchantUrls{
				RedirectURL: c.RedirectURL(req.MerchantOrderID),
			},
		},
	}

	var resp payResponse
	if err := c.do(ctx, http.MethodPost, c.baseURL+payPath, body, &resp); err != nil {
		return nil, fmt.Errorf("failed to create phonepe payment: %w", err)
	}

	c.logger.Info("Created PhonePe payment",
		"transaction_id", req.MerchantOrderID,
		"order_id", resp.OrderID,
		"state", resp.State,
	)

	return &payment.Session{
		TransactionID: req.MerchantOrderID,
		OrderID:       resp.OrderID,
		RedirectURL:   resp.RedirectURL,
		State:         resp.State,
		ExpireAt:      millisToTime(resp.ExpireAt),
	}, nil
}

// CheckStatus returns the gateway's current view of a merchant order
func (c *Client) CheckStatus(ctx context.Context, transactionID string) (*payment.OrderStatus, error) {
	endpoint := c.baseURL + fmt.Sprintf(statusPath, url.PathEscape(transactionID)) + "?details=false"

	var resp statusResponse
	if err := c.do(ctx, http.MethodGet, endpoint, nil, &resp); err != nil {
		return nil, fmt.Errorf("failed to check phonepe order status: %w", err)
	}

	return &payment.OrderStatus{
		OrderID:  resp.OrderID,
		State:    resp.State,
		Amount:   resp.Amount,
		ExpireAt: millisToTime(resp.ExpireAt),
	}, nil
}

// RedirectURL is where the gateway sends the customer after payment
func (c *Client) RedirectURL(transactionID string) string {
	return c.frontendURL + "/payment-success?txnId=" + url.QueryEscape(transactionID)
}

type callbackBody struct {
	Type    string `json:"type"`
	Event   string `json:"event"`
	Payload struct {
		OrderID                 string        `json:"orderId"`
		MerchantOrderID         string        `json:"merchantOrderId"`
		OriginalMerchantOrderID string        `json:"originalMerchantOrderId"`
		State                   payment.State `json:"state"`
		Amount                  int64         `json:"amount"`
	} `json:"payload"`
}

// ValidateCallback checks the webhook Authorization header, which the gateway sets to
// the hex SHA-256 of "username:password", and decodes the event
func (c *Client) ValidateCallback(authorization string, body []byte) (*payment.CallbackEvent, error) {
	if c.webhookUsername == "" || c.webhookPassword == "" {
		return nil, fmt.Errorf("%w: webhook credentials are not configured", ErrInvalidCallback)
	}

	sum := sha256.Sum256([]byte(c.webhookUsername + ":" + c.webhookPassword))
	expected := hex.EncodeToString(sum[:])
	got := strings.ToLower(strings.TrimSpace(strings.TrimPrefix(authorization, "SHA256 ")))
	if subtle.ConstantTimeCompare([]byte(expected), []byte(got)) != 1 {
		return nil, fmt.Errorf("%w: authorization mismatch", ErrInvalidCallback)
	}

	var cb callbackBody
	if err := json.Unmarshal(body, &cb); err != nil {
		return nil, fmt.Errorf("%w: %v", ErrInvalidCallback, err)
	}

	eventType := cb.Type
	if eventType == "" {
		// checkout.order.completed -> CHECKOUT_ORDER_COMPLETED
		eventType = strings.ToUpper(strings.ReplaceAll(cb.Event, ".", "_"))
	}
	merchantOrderID := cb.Payload.OriginalMerchantOrderID
	if merchantOrderID == "" {
		merchantOrderID = cb.Payload.MerchantOrderID
	}
	if merchantOrderID == "" {
		return nil, fmt.Errorf("%w: merchant order id missing", ErrInvalidCallback)
	}

	return &payment.CallbackEvent{
		Type:            eventType,
		OrderID:         cb.Payload.OrderID,
		MerchantOrderID: merchantOrderID,
		State:           cb.Payload.State,
		Amount:          cb.Payload.Amount,
	}, nil
}

func (c *Client) do(ctx context.Context, method, endpoint string, in, out any) error {
	auth, err := c.authorization(ctx)
	if err != nil {
		return err
	}

	var body io.Reader
	if in != nil {
		payload, err := json.Marshal(in)
		if err != nil {
			return fmt.Errorf("failed to marshal request: %w", err)
		}
		body = bytes.NewReader(payload)
	}

	req, err := http.NewRequestWithContext(ctx, method, endpoint, body)
	if err != nil {
		return fmt.Errorf("failed to build request: %w", err)
	}
	req.Header.Set("Authorization", auth)
	req.Header.Set("Accept", "application/json")
	if in != nil {
		req.Header.Set("Content-Type", "application/json")
	}

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return fmt.Errorf("request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode == http.StatusUnauthorized {
		c.invalidateToken()
	}
	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return decodeError(resp)
	}

	if err := json.NewDecoder(resp.Body).Decode(out); err != nil {
		return fmt.Errorf("failed to decode response: %w", err)
	}
	return nil
}

// authorization returns the header value, fetching a new token when the cached one is about to expire
func (c *Client) authorization(ctx context.Context) (string, error) {
	c.mu.Lock()
	defer c.mu.Unlock()

	if c.token != "" && c.now().Add(tokenRefreshMargin).Before(c.tokenExpiry) {
		return c.tokenType + " " + c.token, nil
	}

	form := url.Values{}
	form.Set("client_id", c.clientID)
	form.Set("client_version", c.clientVersion)
	form.Set("client_secret", c.clientSecret)
	form.Set("grant_type", "client_credentials")

	req, err := http.NewRequestWithContext(ctx, http.MethodPost, c.authURL+tokenPath, strings.NewReader(form.Encode()))
	if err != nil {
		return "", fmt.Errorf("failed to build token request: %w", err)
	}
	req.Header.Set("Content-Type", "application/x-www-form-urlencoded")

	resp, err := c.httpClient.Do(req)
	if err != nil {
		return "", fmt.Errorf("token request failed: %w", err)
	}
	defer resp.Body.Close()

	if resp.StatusCode < 200 || resp.StatusCode >= 300 {
		return "", fmt.Errorf("failed to fetch phonepe token: %w", decodeError(resp))
	}

	var token tokenResponse
	if err := json.NewDecoder(resp.Body).Decode(&token); err != nil {
		return "", fmt.Errorf("failed to decode token response: %w", err)
	}
	if token.AccessToken == "" {
		return "", fmt.Errorf("phonepe token response has no access token")
	}

	c.token = token.AccessToken
	c.tokenType = token.TokenType
	if c.tokenType == "" {
		c.tokenType = "O-Bearer"
	}
	c.tokenExpiry = time.Unix(token.ExpiresAt, 0)
	c.logger.Debug("Fetched PhonePe access token", "expires_at", c.tokenExpiry)

	return c.tokenType + " " + c.token, nil
}

func (c *Client) invalidateToken() {
	c.mu.Lock()
	c.token = ""
	c.mu.Unlock()
}

func decodeError(resp *http.Response) error {
	raw, _ := io.ReadAll(io.LimitReader(resp.Body, maxErrorBody))
	apiErr := &APIError{StatusCode: resp.StatusCode}

	var parsed errorResponse
	if err := json.Unmarshal(raw, &parsed); err == nil && (parsed.Code != "" || parsed.Message != "") {
		apiErr.Code = parsed.Code
		apiErr.Message = parsed.Message
	} else {
		apiErr.Message = strings.TrimSpace(string(raw))
	}
	return apiErr
}

func millisToTime(ms int64) time.Time {
	if ms == 0 {
		return time.Time{}
	}
	return time.UnixMilli(ms)
}
