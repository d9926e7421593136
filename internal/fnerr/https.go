package fnerr

import (
	"errors"
	"net/http"
)

// Code is a callable error code as seen by clients.
type Code string

const (
	OK                 Code = "OK"
	Cancelled          Code = "CANCELLED"
	Unknown            Code = "UNKNOWN"
	InvalidArgument    Code = "INVALID_ARGUMENT"
	DeadlineExceeded   Code = "DEADLINE_EXCEEDED"
	NotFound           Code = "NOT_FOUND"
	AlreadyExists      Code = "ALREADY_EXISTS"
	PermissionDenied   Code = "PERMISSION_DENIED"
	ResourceExhausted  Code = "RESOURCE_EXHAUSTED"
	FailedPrecondition Code = "FAILED_PRECONDITION"
	Aborted            Code = "ABORTED"
	OutOfRange         Code = "OUT_OF_RANGE"
	Unimplemented      Code = "UNIMPLEMENTED"
	Internal           Code = "INTERNAL"
	Unavailable        Code = "UNAVAILABLE"
	DataLoss           Code = "DATA_LOSS"
	Unauthenticated    Code = "UNAUTHENTICATED"
)

var httpStatus = map[Code]int{
	OK:                 http.StatusOK,
	Cancelled:          499,
	Unknown:            http.StatusInternalServerError,
	InvalidArgument:    http.StatusBadRequest,
	DeadlineExceeded:   http.StatusGatewayTimeout,
	NotFound:           http.StatusNotFound,
	AlreadyExists:      http.StatusConflict,
	PermissionDenied:   http.StatusForbidden,
	ResourceExhausted:  http.StatusTooManyRequests,
	FailedPrecondition: http.StatusBadRequest,
	Aborted:            http.StatusConflict,
	OutOfRange:         http.StatusBadRequest,
	Unimplemented:      http.StatusNotImplemented,
	Internal:           http.StatusInternalServerError,
	Unavailable:        http.StatusServiceUnavailable,
	DataLoss:           http.StatusInternalServerError,
	Unauthenticated:    http.StatusUnauthorized,
}

// HTTPStatus returns the HTTP status paired with c.
func (c Code) HTTPStatus() int {
	if s, ok := httpStatus[c]; ok {
		return s
	}
	return http.StatusInternalServerError
}

// HTTPSError is the typed failure returned to callable and request clients.
type HTTPSError struct {
	Code    Code
	Message string
	Details any
}

func (e *HTTPSError) Error() string {
	return string(e.Code) + ": " + e.Message
}

// New returns an HTTPSError.
func New(code Code, message string) *HTTPSError {
	return &HTTPSError{Code: code, Message: message}
}

// Fixed client-facing messages for the taxonomy.
const (
	InvalidPayloadMsg       = "The request payload is invalid."
	MissingConfigurationMsg = "The function is not configured."
	DeliveryFailureMsg      = "An upstream service call failed."
	InternalMsg             = "Internal server error"
)

// ToHTTPS maps any error to the HTTPSError a client receives. An HTTPSError
// passes through untouched; the taxonomy kinds map to fixed codes and
// messages; anything else is INTERNAL.
func ToHTTPS(err error) *HTTPSError {
	if err == nil {
		return nil
	}
	var he *HTTPSError
	if errors.As(err, &he) {
		return he
	}
	switch {
	case IsInvalidPayload(err):
		return New(InvalidArgument, InvalidPayloadMsg)
	case IsMissingConfiguration(err):
		return New(FailedPrecondition, MissingConfigurationMsg)
	case IsDeliveryFailure(err):
		return New(Unavailable, DeliveryFailureMsg)
	default:
		return New(Internal, InternalMsg)
	}
}

// CodeFor returns the callable code err maps to, or OK for nil.
func CodeFor(err error) Code {
	if err == nil {
		return OK
	}
	return ToHTTPS(err).Code
}
