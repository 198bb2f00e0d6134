package domain

import (
	"errors"
	"fmt"
	"net/http"
)

// Error codes returned to API clients in the "error" field.
const (
	CodeAuthRequired        = "AUTH_REQUIRED"
	CodeNoToken             = "NO_TOKEN"
	CodeInvalidAPIKey       = "INVALID_API_KEY"
	CodeBotAPIKeyNotSet     = "BOT_API_KEY_NOT_SET"
	CodeInvalidBody         = "INVALID_BODY"
	CodeInvalidRequest      = "INVALID_REQUEST"
	CodeEmptyCart           = "EMPTY_CART"
	CodeInvalidItems        = "INVALID_ITEMS"
	CodeQuoteFailed         = "QUOTE_FAILED"
	CodeStripeNotConfigured = "STRIPE_NOT_CONFIGURED"
	CodeCheckoutFailed      = "CHECKOUT_FAILED"
	CodeMissingGuildID      = "MISSING_GUILD_ID"
	CodeNoGuildPermission   = "NO_GUILD_PERMISSION"
	CodeSlotNotFound        = "SLOT_NOT_FOUND"
	CodeSlotNotActive       = "SLOT_NOT_ACTIVE"
	CodeSlotExpired         = "SLOT_EXPIRED"
	CodeSlotAlreadyAssigned = "SLOT_ALREADY_ASSIGNED"
	// The bot client matches on this exact spelling.
	CodeMissingProductID   = "MISSING_productId"
	CodeDiscordUnavailable = "DISCORD_UNAVAILABLE"
	CodeRateLimited        = "RATE_LIMITED"
	CodeInternal           = "INTERNAL_ERROR"

	CodeWebhookNotConfigured = "WEBHOOK_NOT_CONFIGURED"
	CodeInvalidSignature     = "INVALID_SIGNATURE"
	CodeWebhookFailed        = "WEBHOOK_FAILED"
)

// AppError is a structured application error with an HTTP status and a
// stable machine-readable code.
type AppError struct {
	Status int    `json:"-"`
	Code   string `json:"error"`
	Err    error  `json:"-"`
}

func (e *AppError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Err)
	}
	return e.Code
}

func (e *AppError) Unwrap() error {
	return e.Err
}

// Is matches another AppError by code, so errors.Is(err, ErrBadRequest(CodeEmptyCart)) works.
func (e *AppError) Is(target error) bool {
	t, ok := target.(*AppError)
	if !ok {
		return false
	}
	return t.Code == e.Code
}

// Common error constructors.

func ErrBadRequest(code string) *AppError {
	return &AppError{Status: http.StatusBadRequest, Code: code}
}

func ErrUnauthorized(code string) *AppError {
	return &AppError{Status: http.StatusUnauthorized, Code: code}
}

func ErrForbidden(code string) *AppError {
	return &AppError{Status: http.StatusForbidden, Code: code}
}

func ErrNotFound(code string) *AppError {
	return &AppError{Status: http.StatusNotFound, Code: code}
}

func ErrConflict(code string) *AppError {
	return &AppError{Status: http.StatusConflict, Code: code}
}

func ErrTooManyRequests(code string) *AppError {
	return &AppError{Status: http.StatusTooManyRequests, Code: code}
}

func ErrInternal(code string, err error) *AppError {
	return &AppError{Status: http.StatusInternalServerError, Code: code, Err: err}
}

func ErrUnavailable(code string, err error) *AppError {
	return &AppError{Status: http.StatusBadGateway, Code: code, Err: err}
}

// AsAppError attempts to extract an AppError from an error chain.
func AsAppError(err error) (*AppError, bool) {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr, true
	}
	return nil, false
}

// ErrorCode returns the AppError code of err, or "" when err carries none.
func ErrorCode(err error) string {
	if appErr, ok := AsAppError(err); ok {
		return appErr.Code
	}
	return ""
}
