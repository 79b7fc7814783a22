package handler

import (
	"errors"
	"net/http"
	"strings"

	"github.com/consultation-booking/internal/api/middleware"
	"github.com/consultation-booking/internal/api/service"
	"github.com/gin-gonic/gin"
)

// Response represents a standard API response
type Response struct {
	Data          interface{} `json:"data,omitempty"`
	Error         *ErrorInfo  `json:"error,omitempty"`
	CorrelationID string      `json:"correlation_id,omitempty"`
}

// ErrorInfo represents error information in a response
type ErrorInfo struct {
	Code    string `json:"code"`
	Message string `json:"message"`
}

// NewResponse creates a new response with data
func NewResponse(data interface{}) *Response {
	return &Response{
		Data: data,
	}
}

// NewErrorResponse creates a new error response
func NewErrorResponse(code, message string) *Response {
	return &Response{
		Error: &ErrorInfo{
			Code:    code,
			Message: message,
		},
	}
}

// RespondWithData sends a JSON response with data
func RespondWithData(c *gin.Context, statusCode int, data interface{}) {
	response := NewResponse(data)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondWithError sends a JSON response with an error
func RespondWithError(c *gin.Context, statusCode int, code, message string) {
	response := NewErrorResponse(code, message)
	response.CorrelationID = middleware.GetCorrelationID(c)
	c.JSON(statusCode, response)
}

// RespondOK sends a 200 OK response with data
func RespondOK(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusOK, data)
}

// RespondCreated sends a 201 Created response with data
func RespondCreated(c *gin.Context, data interface{}) {
	RespondWithData(c, http.StatusCreated, data)
}

// RespondBadRequest sends a 400 Bad Request response with an error
func RespondBadRequest(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadRequest, "BAD_REQUEST", message)
}

// RespondConflict sends a 409 Conflict response with an error
func RespondConflict(c *gin.Context, message string) {
	RespondWithError(c, http.StatusConflict, "CONFLICT", message)
}

// RespondBadGateway sends a 502 Bad Gateway response when an upstream dependency fails
func RespondBadGateway(c *gin.Context, message string) {
	RespondWithError(c, http.StatusBadGateway, "BAD_GATEWAY", message)
}

// RespondInternalError sends a 500 Internal Server Error response with an error
func RespondInternalError(c *gin.Context, message string) {
	if message == "" {
		message = "An internal server error occurred"
	}
	RespondWithError(c, http.StatusInternalServerError, "INTERNAL_SERVER_ERROR", message)
}

// respondServiceError maps service errors to responses. Anything that is not the
// caller's fault is reported with fallback so internals do not leak.
func respondServiceError(c *gin.Context, err error, fallback string) {
	switch {
	case errors.Is(err, service.ErrInvalidRequest):
		RespondBadRequest(c, clientMessage(err, service.ErrInvalidRequest))
	case errors.Is(err, service.ErrStatusConflict):
		RespondConflict(c, clientMessage(err, service.ErrStatusConflict))
	default:
		RespondInternalError(c, fallback)
	}
}

// clientMessage strips the sentinel prefix from a wrapped error
func clientMessage(err, sentinel error) string {
	if msg := strings.TrimPrefix(err.Error(), sentinel.Error()+": "); msg != "" {
		return msg
	}
	return sentinel.Error()
}

func isInvalidRequest(err error) bool {
	return errors.Is(err, service.ErrInvalidRequest)
}
