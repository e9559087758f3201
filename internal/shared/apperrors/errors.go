// Package apperrors defines the typed error kinds returned by the registration core.
package apperrors

import (
	"errors"
	"net/http"
)

// Code is a machine-readable error kind.
type Code string

const (
	CodeCapacityExceeded          Code = "CAPACITY_EXCEEDED"
	CodeAlreadyRegistered         Code = "ALREADY_REGISTERED"
	CodeReservationNotFound       Code = "RESERVATION_NOT_FOUND"
	CodePaymentRequired           Code = "PAYMENT_REQUIRED"
	CodePaymentVerificationFailed Code = "PAYMENT_VERIFICATION_FAILED"
	CodePaymentAlreadyUsed        Code = "PAYMENT_ALREADY_USED"
	CodePaymentNotFound           Code = "PAYMENT_NOT_FOUND"
	CodeRefundFailed              Code = "REFUND_FAILED"
	CodeInvalidTierOrSubEvent     Code = "INVALID_TIER_OR_SUB_EVENT"

	CodeEventNotFound         Code = "EVENT_NOT_FOUND"
	CodeRegistrationNotFound  Code = "REGISTRATION_NOT_FOUND"
	CodeRefundRequestNotFound Code = "REFUND_REQUEST_NOT_FOUND"
	CodeRefundNotAllowed      Code = "REFUND_NOT_ALLOWED"
	CodeInsufficientCredits   Code = "INSUFFICIENT_CREDITS"
	CodeInvalidRequest        Code = "INVALID_REQUEST"
	CodeInternal              Code = "INTERNAL"
)

// HTTPStatus maps an error kind to the status the API answers with.
func (c Code) HTTPStatus() int {
	switch c {
	case CodeCapacityExceeded, CodeAlreadyRegistered, CodePaymentAlreadyUsed, CodeRefundNotAllowed:
		return http.StatusConflict
	case CodeReservationNotFound, CodeEventNotFound, CodeRegistrationNotFound, CodeRefundRequestNotFound, CodePaymentNotFound:
		return http.StatusNotFound
	case CodePaymentRequired, CodePaymentVerificationFailed:
		return http.StatusPaymentRequired
	case CodeRefundFailed:
		return http.StatusBadGateway
	case CodeInvalidTierOrSubEvent, CodeInsufficientCredits:
		return http.StatusUnprocessableEntity
	case CodeInvalidRequest:
		return http.StatusBadRequest
	default:
		return http.StatusInternalServerError
	}
}

// Error is the domain error type.
type Error struct {
	Code    Code   // Machine-readable error kind
	Message string // Safe to show to the caller
	Cause   error  // Wrapped underlying error
}

// Error implements the error interface.
func (e *Error) Error() string {
	if e.Cause != nil {
		return e.Message + ": " + e.Cause.Error()
	}
	return e.Message
}

// Unwrap returns the underlying cause for error chain traversal.
func (e *Error) Unwrap() error {
	return e.Cause
}

// Is reports whether target matches this error by code.
func (e *Error) Is(target error) bool {
	if t, ok := target.(*Error); ok {
		return e.Code == t.Code
	}
	return false
}

// New creates a domain error with a code and message.
func New(code Code, message string) *Error {
	return &Error{Code: code, Message: message}
}

// Wrap creates a domain error that wraps an underlying cause.
func Wrap(code Code, message string, cause error) *Error {
	return &Error{Code: code, Message: message, Cause: cause}
}

// Sentinels for errors.Is checks. Matching is by code, so any *Error with the
// same code satisfies errors.Is(err, ErrX).
var (
	ErrCapacityExceeded          = New(CodeCapacityExceeded, "no capacity left for the requested selection")
	ErrAlreadyRegistered         = New(CodeAlreadyRegistered, "user is already registered for this event")
	ErrReservationNotFound       = New(CodeReservationNotFound, "reservation not found or no longer held")
	ErrPaymentRequired           = New(CodePaymentRequired, "a payment reference is required for this price")
	ErrPaymentVerificationFailed = New(CodePaymentVerificationFailed, "payment could not be confirmed, any charge will be automatically refunded")
	ErrPaymentAlreadyUsed        = New(CodePaymentAlreadyUsed, "this payment already paid for a registration")
	ErrRefundFailed              = New(CodeRefundFailed, "refund could not be issued")
	ErrInvalidTierOrSubEvent     = New(CodeInvalidTierOrSubEvent, "ticket tier or sub-event is not valid for this event")
	ErrEventNotFound             = New(CodeEventNotFound, "event not found")
	ErrRegistrationNotFound      = New(CodeRegistrationNotFound, "registration not found")
	ErrRefundRequestNotFound     = New(CodeRefundRequestNotFound, "refund request not found")
	ErrRefundNotAllowed          = New(CodeRefundNotAllowed, "refund is not allowed for this registration")
	ErrInsufficientCredits       = New(CodeInsufficientCredits, "not enough credits")
)

// CodeOf extracts the error kind, defaulting to CodeInternal.
func CodeOf(err error) Code {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Code
	}
	return CodeInternal
}

// MessageOf returns the caller-facing message. Internal errors never leak their cause.
func MessageOf(err error) string {
	var appErr *Error
	if errors.As(err, &appErr) {
		return appErr.Message
	}
	return "internal server error"
}

// HTTPStatus resolves the response status for any error.
func HTTPStatus(err error) int {
	return CodeOf(err).HTTPStatus()
}
