package apperror

import (
	"fmt"
	"net/http"
)

// AppError is a structured error that maps to HTTP responses.
type AppError struct {
	Code       string `json:"error_code"`
	Message    string `json:"message"`
	HTTPStatus int    `json:"-"`
	Err        error  `json:"-"` // Wrapped internal error (not exposed to client)
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("[%s] %s: %v", e.Code, e.Message, e.Err)
	}
	return fmt.Sprintf("[%s] %s", e.Code, e.Message)
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// New creates a new AppError.
func New(code string, message string, httpStatus int) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
	}
}

// Wrap wraps an internal error with an AppError.
func Wrap(code string, message string, httpStatus int, err error) *AppError {
	return &AppError{
		Code:       code,
		Message:    message,
		HTTPStatus: httpStatus,
		Err:        err,
	}
}

// ---- Webhook ingestion (WHK) ----
// Messages are sent verbatim to the provider in the {"error": ...} body.

// ErrInvalidWebhookSignature is answered 200 so a misconfigured secret does not
// trigger a provider retry storm.
func ErrInvalidWebhookSignature() *AppError {
	return New("WHK_001", "Invalid webhook signature", http.StatusOK)
}

func ErrMissingRequestID() *AppError {
	return New("WHK_002", "Missing request id", http.StatusOK)
}

func ErrEventStore(err error) *AppError {
	return Wrap("WHK_003", "DB error", http.StatusInternalServerError, err)
}

func ErrUpstreamPaymentNotFound(err error) *AppError {
	return Wrap("WHK_004", "Payment not found", http.StatusNotFound, err)
}

func ErrWebhookProcessing(err error) *AppError {
	return Wrap("WHK_005", "Webhook processing failed", http.StatusInternalServerError, err)
}

func ErrUnknownProvider() *AppError {
	return New("WHK_006", "Unknown provider", http.StatusNotFound)
}

func ErrEventInFlight() *AppError {
	return New("WHK_007", "Event is being processed by another worker", http.StatusConflict)
}

// ---- Resources (RES) ----

func ErrNotFound(entity string) *AppError {
	return New("RES_001", fmt.Sprintf("%s not found", entity), http.StatusNotFound)
}

// Validation returns a RES_002 validation error.
func Validation(message string) *AppError {
	return New("RES_002", message, http.StatusBadRequest)
}

// ---- Authentication (AUTH) ----

func ErrInvalidToken() *AppError {
	return New("AUTH_003", "Invalid or expired token", http.StatusUnauthorized)
}

// ---- Rate Limiting (RATE) ----

func ErrRateLimitExceeded() *AppError {
	return New("RATE_001", "Rate limit exceeded", http.StatusTooManyRequests)
}

// ---- System & Infrastructure (SYS) ----

func ErrDatabaseError(err error) *AppError {
	return Wrap("SYS_001", "Internal database error", http.StatusInternalServerError, err)
}

// InternalError wraps an internal error as a SYS_001 error.
func InternalError(err error) *AppError {
	return Wrap("SYS_001", "Internal server error", http.StatusInternalServerError, err)
}
