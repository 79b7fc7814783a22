package handler

import (
	"bytes"
	"encoding/json"
	"errors"
	"fmt"
	"net/http"
	"net/http/httptest"
	"testing"
	"time"

	"github.com/consultation-booking/internal/api/service"
	"github.com/consultation-booking/internal/domain/payment"
	"github.com/consultation-booking/internal/domain/transaction"
	"github.com/shopspring/decimal"
	"github.com/stretchr/testify/assert"
	"github.com/stretchr/testify/mock"
	"github.com/stretchr/testify/require"
)

const createPaymentBody = `{
	"amount": 1499,
	"serviceData": {"id": "strategy-call", "title": "Strategy Call", "price": 1499},
	"customerData": {"fullName": "Jane Doe", "email": "jane@example.com"}
}`

func TestPaymentHandler_Create(t *testing.T) {
	tests := []struct {
		name           string
		body           string
		setupMocks     func(m *MockPaymentService)
		expectedStatus int
		expectedCode   string
	}{
		{
			name: "Success",
			body: createPaymentBody,
			setupMocks: func(m *MockPaymentService) {
				m.On("CreatePayment", mock.Anything, mock.MatchedBy(func(req service.PaymentRequest) bool {
					return req.Amount.Equal(decimal.NewFromInt(1499)) &&
						req.Customer.FullName == "Jane Doe" &&
						req.Service.ID == "strategy-call"
				})).Return(&service.PaymentResult{
					TransactionID: "T1",
					PaymentURL:    "https://pay.example/checkout",
					Amount:        decimal.NewFromInt(1499),
					Status:        transaction.StatusPending,
					PaymentMethod: payment.MethodPhonePe,
				}, nil).Once()
			},
			expectedStatus: http.StatusCreated,
		},
		{
			name:           "MalformedBody",
			body:           `{"amount": `,
			setupMocks:     func(m *MockPaymentService) {},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name: "ValidationError",
			body: createPaymentBody,
			setupMocks: func(m *MockPaymentService) {
				m.On("CreatePayment", mock.Anything, mock.Anything).
					Return(nil, fmt.Errorf("%w: amount exceeds maximum limit", service.ErrInvalidRequest)).Once()
			},
			expectedStatus: http.StatusBadRequest,
			expectedCode:   "BAD_REQUEST",
		},
		{
			name: "ServiceError",
			body: createPaymentBody,
			setupMocks: func(m *MockPaymentService) {
				m.On("CreatePayment", mock.Anything, mock.Anything).Return(nil, errors.New("boom")).Once()
			},
			expectedStatus: http.StatusInternalServerError,
			expectedCode:   "INTERNAL_SERVER_ERROR",
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockPaymentService)
			tt.setupMocks(mockService)

			router := newTestRouter()
			router.POST("/payments", NewPaymentHandler(testLogger(), mockService).Create)

			w, resp := doJSON(t, router, http.MethodPost, "/payments", tt.body)

			assert.Equal(t, tt.expectedStatus, w.Code)
			if tt.expectedCode != "" {
				require.NotNil(t, resp.Error)
				assert.Equal(t, tt.expectedCode, resp.Error.Code)
			} else {
				var data PaymentResponse
				require.NoError(t, json.Unmarshal(resp.Data, &data))
				assert.Equal(t, "T1", data.TransactionID)
				assert.Equal(t, "https://pay.example/checkout", data.PaymentURL)
				assert.Equal(t, "PENDING", data.Status)
				assert.Equal(t, "phonepe", data.PaymentMethod)
				assert.True(t, data.Amount.Equal(decimal.NewFromInt(1499)))
			}
			mockService.AssertExpectations(t)
		})
	}
}

func TestPaymentHandler_CreateValidationMessage(t *testing.T) {
	mockService := new(MockPaymentService)
	mockService.On("CreatePayment", mock.Anything, mock.Anything).
		Return(nil, fmt.Errorf("%w: amount exceeds maximum limit", service.ErrInvalidRequest)).Once()

	router := newTestRouter()
	router.POST("/payments", NewPaymentHandler(testLogger(), mockService).Create)

	_, resp := doJSON(t, router, http.MethodPost, "/payments", createPaymentBody)

	require.NotNil(t, resp.Error)
	assert.Equal(t, "amount exceeds maximum limit", resp.Error.Message)
}

func TestPaymentHandler_GetStatus(t *testing.T) {
	t.Run("Success", func(t *testing.T) {
		mockService := new(MockPaymentService)
		expireAt := time.Date(2025, 1, 15, 9, 20, 0, 0, time.UTC)
		mockService.On("CheckStatus", mock.Anything, "T1").
			Return(&payment.OrderStatus{OrderID: "OMO1", State: payment.StateCompleted, Amount: 149950, ExpireAt: expireAt}, nil).Once()

		router := newTestRouter()
		router.GET("/payments/:id/status", NewPaymentHandler(testLogger(), mockService).GetStatus)

		w, resp := doJSON(t, router, http.MethodGet, "/payments/T1/status", nil)

		assert.Equal(t, http.StatusOK, w.Code)
		var data PaymentStatusResponse
		require.NoError(t, json.Unmarshal(resp.Data, &data))
		assert.Equal(t, "T1", data.TransactionID)
		assert.Equal(t, "COMPLETED", data.State)
		assert.True(t, data.Amount.Equal(decimal.RequireFromString("1499.50")))
		assert.Equal(t, "2025-01-15T09:20:00Z", data.ExpireAt)
	})

	t.Run("GatewayError", func(t *testing.T) {
		mockService := new(MockPaymentService)
		mockService.On("CheckStatus", mock.Anything, "T1").Return(nil, errors.New("timeout")).Once()

		router := newTestRouter()
		router.GET("/payments/:id/status", NewPaymentHandler(testLogger(), mockService).GetStatus)

		w, resp := doJSON(t, router, http.MethodGet, "/payments/T1/status", nil)

		assert.Equal(t, http.StatusBadGateway, w.Code)
		require.NotNil(t, resp.Error)
		assert.Equal(t, "Failed to check payment status", resp.Error.Message)
	})
}

func TestPaymentHandler_Webhook(t *testing.T) {
	body := []byte(`{"event":"checkout.order.completed","payload":{"merchantOrderId":"T1","state":"COMPLETED"}}`)

	tests := []struct {
		name           string
		setupMocks     func(m *MockPaymentService)
		expectedStatus int
	}{
		{
			name: "Accepted",
			setupMocks: func(m *MockPaymentService) {
				m.On("HandleWebhook", mock.Anything, "SHA256 abc", body).
					Return(&payment.CallbackEvent{MerchantOrderID: "T1"}, nil).Once()
			},
			expectedStatus: http.StatusOK,
		},
		{
			name: "InvalidSignature",
			setupMocks: func(m *MockPaymentService) {
				m.On("HandleWebhook", mock.Anything, "SHA256 abc", body).
					Return(nil, fmt.Errorf("%w: authorization mismatch", service.ErrInvalidRequest)).Once()
			},
			expectedStatus: http.StatusBadRequest,
		},
	}

	for _, tt := range tests {
		t.Run(tt.name, func(t *testing.T) {
			mockService := new(MockPaymentService)
			tt.setupMocks(mockService)

			router := newTestRouter()
			router.POST("/payments/webhook", NewPaymentHandler(testLogger(), mockService).Webhook)

			req := httptest.NewRequest(http.MethodPost, "/payments/webhook", bytes.NewReader(body))
			req.Header.Set("Authorization", "SHA256 abc")
			w := httptest.NewRecorder()
			router.ServeHTTP(w, req)

			assert.Equal(t, tt.expectedStatus, w.Code)
			mockService.AssertExpectations(t)
		})
	}
}
