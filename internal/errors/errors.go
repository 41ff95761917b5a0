package errors

import (
	"context"
	"errors"
	"fmt"
	"strings"
)

// ErrorCode represents a category of client error.
type ErrorCode string

const (
	// ErrCodeTransport indicates a network failure or an unexpected HTTP status.
	ErrCodeTransport ErrorCode = "transport"
	// ErrCodeAuthRejected indicates the backend answered HTTP 401 for the current credential.
	ErrCodeAuthRejected ErrorCode = "auth_rejected"
	// ErrCodeEnvelope indicates the backend envelope carried a non-success application code.
	ErrCodeEnvelope ErrorCode = "envelope"
	// ErrCodeKeyFetch indicates the RSA public key could not be retrieved.
	ErrCodeKeyFetch ErrorCode = "key_fetch"
	// ErrCodeEncryption indicates RSA encryption produced no output.
	ErrCodeEncryption ErrorCode = "encryption"
	// ErrCodeVerificationFailed indicates the post-login session check did not confirm the session.
	ErrCodeVerificationFailed ErrorCode = "verification_failed"
	// ErrCodeValidation indicates invalid input data.
	ErrCodeValidation ErrorCode = "validation"
	// ErrCodeNotFound indicates a resource (for example a route) was not found.
	ErrCodeNotFound ErrorCode = "not_found"
	// ErrCodeInternal indicates an unexpected client-side failure.
	ErrCodeInternal ErrorCode = "internal"
	// ErrCodeTimeout indicates a timeout occurred.
	ErrCodeTimeout ErrorCode = "timeout"
	// ErrCodeCanceled indicates the operation was canceled.
	ErrCodeCanceled ErrorCode = "canceled"
)

// DefaultMessage is surfaced when an envelope or transport failure carries no message.
const DefaultMessage = "request failed"

// AppError represents a structured error with a code, message, and optional cause.
// It supports error wrapping and unwrapping for use with errors.Is and errors.As.
type AppError struct {
	// Code categorizes the error type
	Code ErrorCode
	// Message is a human-readable error message
	Message string
	// Cause is the underlying error that caused this error (optional)
	Cause error
	// Field is the specific field that caused the error (optional, for validation errors)
	Field string
	// Status is the HTTP status observed on the wire, when one exists.
	Status int
	// EnvelopeCode is the application code carried by the response envelope, when one exists.
	EnvelopeCode int
}

// Error implements the error interface.
func (e *AppError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Message, e.Cause)
	}
	return e.Message
}

// Unwrap returns the underlying cause, enabling errors.Is and errors.As.
func (e *AppError) Unwrap() error {
	return e.Cause
}

// Transport creates a new Transport error wrapping a network-level cause.
// Context cancellation and deadlines are reported as Canceled and Timeout.
func Transport(message string, cause error) *AppError {
	code := ErrCodeTransport
	switch {
	case errors.Is(cause, context.Canceled):
		code = ErrCodeCanceled
	case errors.Is(cause, context.DeadlineExceeded):
		code = ErrCodeTimeout
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   cause,
	}
}

// UnexpectedStatus creates a Transport error for a non-success, non-401 HTTP status.
func UnexpectedStatus(status int) *AppError {
	return &AppError{
		Code:    ErrCodeTransport,
		Message: fmt.Sprintf("%s: status %d", DefaultMessage, status),
		Status:  status,
	}
}

// AuthRejected creates a new AuthRejected error for an HTTP 401 response.
func AuthRejected(path string) *AppError {
	return &AppError{
		Code:    ErrCodeAuthRejected,
		Message: "credential rejected by " + path,
		Status:  401,
	}
}

// Envelope creates a new Envelope error from a non-success envelope.
// An empty message is replaced by DefaultMessage.
func Envelope(code int, message string) *AppError {
	if strings.TrimSpace(message) == "" {
		message = DefaultMessage
	}
	return &AppError{
		Code:         ErrCodeEnvelope,
		Message:      message,
		EnvelopeCode: code,
	}
}

// KeyFetch wraps a public key retrieval failure.
func KeyFetch(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeKeyFetch,
		Message: "fetch public key",
		Cause:   cause,
	}
}

// Encryption wraps an RSA encryption failure.
func Encryption(cause error) *AppError {
	return &AppError{
		Code:    ErrCodeEncryption,
		Message: "rsa encryption failed",
		Cause:   cause,
	}
}

// VerificationFailed creates a new VerificationFailed error.
func VerificationFailed(message string) *AppError {
	return &AppError{
		Code:    ErrCodeVerificationFailed,
		Message: message,
	}
}

// NotFound creates a new NotFound error.
func NotFound(message string) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: message,
	}
}

// NotFoundf creates a new NotFound error with formatted message.
func NotFoundf(format string, args ...any) *AppError {
	return &AppError{
		Code:    ErrCodeNotFound,
		Message: fmt.Sprintf(format, args...),
	}
}

// Validation creates a new Validation error.
func Validation(message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
	}
}

// ValidationField creates a new Validation error for a specific field.
func ValidationField(field, message string) *AppError {
	return &AppError{
		Code:    ErrCodeValidation,
		Message: message,
		Field:   field,
	}
}

// Internal creates a new Internal error.
func Internal(message string) *AppError {
	return &AppError{
		Code:    ErrCodeInternal,
		Message: message,
	}
}

// Wrap wraps an existing error with an AppError, preserving the cause.
func Wrap(err error, code ErrorCode, message string) *AppError {
	if err == nil {
		return nil
	}
	return &AppError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// Wrapf wraps an existing error with an AppError and formatted message.
func Wrapf(err error, code ErrorCode, format string, args ...any) *AppError {
	return Wrap(err, code, fmt.Sprintf(format, args...))
}

// isCode checks if an error has a specific error code.
func isCode(err error, code ErrorCode) bool {
	var appErr *AppError
	return errors.As(err, &appErr) && appErr.Code == code
}

// IsTransport checks if an error is a Transport error (including timeouts and cancellations).
func IsTransport(err error) bool {
	return isCode(err, ErrCodeTransport) || isCode(err, ErrCodeTimeout) || isCode(err, ErrCodeCanceled)
}

// IsAuthRejected checks if an error is an AuthRejected error.
func IsAuthRejected(err error) bool {
	return isCode(err, ErrCodeAuthRejected)
}

// IsEnvelope checks if an error is an Envelope error.
func IsEnvelope(err error) bool {
	return isCode(err, ErrCodeEnvelope)
}

// IsKeyFetch checks if an error is a KeyFetch error.
func IsKeyFetch(err error) bool {
	return isCode(err, ErrCodeKeyFetch)
}

// IsEncryption checks if an error is an Encryption error.
func IsEncryption(err error) bool {
	return isCode(err, ErrCodeEncryption)
}

// IsVerificationFailed checks if an error is a VerificationFailed error.
func IsVerificationFailed(err error) bool {
	return isCode(err, ErrCodeVerificationFailed)
}

// IsValidation checks if an error is a Validation error.
func IsValidation(err error) bool {
	return isCode(err, ErrCodeValidation)
}

// IsNotFound checks if an error is a NotFound error.
func IsNotFound(err error) bool {
	return isCode(err, ErrCodeNotFound)
}

// GetCode returns the ErrorCode from an error, or empty string if not an AppError.
func GetCode(err error) ErrorCode {
	var appErr *AppError
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return ""
}

// UserMessage returns the human-readable message to surface to a caller.
// Envelope, verification and validation errors surface their own message;
// everything else falls back to the provided default.
func UserMessage(err error, fallback string) string {
	if err == nil {
		return ""
	}
	var appErr *AppError
	if errors.As(err, &appErr) {
		switch appErr.Code {
		case ErrCodeEnvelope, ErrCodeVerificationFailed, ErrCodeValidation:
			if appErr.Message != "" {
				return appErr.Message
			}
		}
	}
	if fallback == "" {
		return DefaultMessage
	}
	return fallback
}
