// Package fnerr holds the failure taxonomy shared by every handler and the
// typed error returned to callable and request clients.
package fnerr

import (
	"errors"
	"fmt"
	"net/http"
)

// InvalidPayload reports a missing or ill-typed field in an inbound event.
type InvalidPayload struct {
	Field  string
	Reason string
}

func (e *InvalidPayload) Error() string {
	if e.Field == "" {
		return "invalid payload: " + e.Reason
	}
	return fmt.Sprintf("invalid payload: field %q %s", e.Field, e.Reason)
}

// MissingConfiguration reports a required parameter or secret that resolved empty.
type MissingConfiguration struct {
	Name string
}

func (e *MissingConfiguration) Error() string {
	return fmt.Sprintf("missing configuration: %s is not set", e.Name)
}

// DeliveryFailure reports an outbound call that did not succeed.
type DeliveryFailure struct {
	Target     string
	StatusCode int
	Status     string
	Err        error
}

func (e *DeliveryFailure) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("delivery to %s failed: %v", e.Target, e.Err)
	}
	return fmt.Sprintf("delivery to %s failed: %s", e.Target, e.Status)
}

func (e *DeliveryFailure) Unwrap() error { return e.Err }

// Missing returns an InvalidPayload for an absent required field.
func Missing(field string) error {
	return &InvalidPayload{Field: field, Reason: "is required"}
}

// WrongType returns an InvalidPayload for a field of the wrong shape.
func WrongType(field, want string) error {
	return &InvalidPayload{Field: field, Reason: "must be " + want}
}

// NotConfigured returns a MissingConfiguration for name.
func NotConfigured(name string) error {
	return &MissingConfiguration{Name: name}
}

// Status returns a DeliveryFailure for a non-2xx response.
func Status(target string, resp *http.Response) error {
	return &DeliveryFailure{Target: target, StatusCode: resp.StatusCode, Status: resp.Status}
}

// Transport returns a DeliveryFailure for a call that never produced a response.
func Transport(target string, err error) error {
	return &DeliveryFailure{Target: target, Err: err}
}

// IsInvalidPayload reports whether err is or wraps an InvalidPayload.
func IsInvalidPayload(err error) bool {
	var target *InvalidPayload
	return errors.As(err, &target)
}

// IsMissingConfiguration reports whether err is or wraps a MissingConfiguration.
func IsMissingConfiguration(err error) bool {
	var target *MissingConfiguration
	return errors.As(err, &target)
}

// IsDeliveryFailure reports whether err is or wraps a DeliveryFailure.
func IsDeliveryFailure(err error) bool {
	var target *DeliveryFailure
	return errors.As(err, &target)
}

// Successful reports whether code is in the 2xx class.
func Successful(code int) bool {
	return code >= 200 && code < 300
}
