// Package apperrors defines the error kinds the bot distinguishes when
// deciding what to tell a user and what to log.
package apperrors

import (
	"errors"
	"fmt"
)

// ParseError reports free text that could not be resolved (e.g. a time expression).
type ParseError struct {
	Input string
	Err   error
}

func (e *ParseError) Error() string {
	if e.Err != nil {
		return fmt.Sprintf("could not parse %q: %v", e.Input, e.Err)
	}
	return fmt.Sprintf("could not parse %q", e.Input)
}

func (e *ParseError) Unwrap() error { return e.Err }

// ValidationError reports semantically invalid input.
type ValidationError struct {
	Msg string
}

func (e *ValidationError) Error() string { return e.Msg }

// NotFoundError reports a lookup that matched nothing.
type NotFoundError struct {
	Resource string
	Msg      string
}

func (e *NotFoundError) Error() string {
	if e.Msg != "" {
		return e.Msg
	}
	return e.Resource + " not found"
}

// DeliveryError reports a failed attempt to send a message to the chat platform.
type DeliveryError struct {
	Target string
	Err    error
}

func (e *DeliveryError) Error() string {
	return fmt.Sprintf("failed to deliver to %s: %v", e.Target, e.Err)
}

func (e *DeliveryError) Unwrap() error { return e.Err }

// NewValidation builds a ValidationError with a formatted message.
func NewValidation(format string, args ...interface{}) error {
	return &ValidationError{Msg: fmt.Sprintf(format, args...)}
}

// NewNotFound builds a NotFoundError for resource with an optional user-facing message.
func NewNotFound(resource, msg string) error {
	return &NotFoundError{Resource: resource, Msg: msg}
}

// IsParse reports whether err wraps a ParseError.
func IsParse(err error) bool {
	var target *ParseError
	return errors.As(err, &target)
}

// IsValidation reports whether err wraps a ValidationError.
func IsValidation(err error) bool {
	var target *ValidationError
	return errors.As(err, &target)
}

// IsNotFound reports whether err wraps a NotFoundError.
func IsNotFound(err error) bool {
	var target *NotFoundError
	return errors.As(err, &target)
}

// IsDelivery reports whether err wraps a DeliveryError.
func IsDelivery(err error) bool {
	var target *DeliveryError
	return errors.As(err, &target)
}

// IsUserFacing reports whether err carries a message meant for the person
// who issued the command rather than for the operator.
func IsUserFacing(err error) bool {
	return IsParse(err) || IsValidation(err) || IsNotFound(err)
}

// UserMessage returns the message of the user-facing error wrapped in err,
// without the context added by wrapping. ok is false for operator errors.
func UserMessage(err error) (msg string, ok bool) {
	var parseErr *ParseError
	if errors.As(err, &parseErr) {
		return parseErr.Error(), true
	}
	var validationErr *ValidationError
	if errors.As(err, &validationErr) {
		return validationErr.Error(), true
	}
	var notFoundErr *NotFoundError
	if errors.As(err, &notFoundErr) {
		return notFoundErr.Error(), true
	}
	return "", false
}
