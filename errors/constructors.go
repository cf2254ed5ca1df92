package errors

import (
	"fmt"
)

// ConfigNotFound creates a configuration not found error
func ConfigNotFound(path string) *WizardError {
	return New(ErrCodeConfigNotFound, fmt.Sprintf("configuration file not found: %s", path)).
		WithDetail("path", path)
}

// ConfigInvalid creates an invalid configuration error
func ConfigInvalid(reason string) *WizardError {
	return New(ErrCodeConfigInvalid, fmt.Sprintf("invalid configuration: %s", reason))
}

// BusUnavailable creates a bus connection error for the given scope
func BusUnavailable(scope string, err error) *WizardError {
	return Wrap(err, ErrCodeBusUnavailable, fmt.Sprintf("cannot connect to the %s bus", scope)).
		WithDetail("scope", scope)
}

// TransactionFailed creates the error for an ErrorCode signal reported by
// the package manager.
func TransactionFailed(code uint32, message string) *WizardError {
	return New(ErrCodeTransactionFailed, message).
		WithDetail("code", code)
}

// TransactionCall creates the error for a failed remote method call
func TransactionCall(method string, err error) *WizardError {
	return Wrap(err, ErrCodeTransactionCall, fmt.Sprintf("call to %s failed", method)).
		WithDetail("method", method)
}

// MalformedSignal creates the error for a fixed-shape signal whose payload
// does not match the protocol
func MalformedSignal(member string, reason string) *WizardError {
	return New(ErrCodeMalformedSignal, fmt.Sprintf("malformed %s signal: %s", member, reason)).
		WithDetail("member", member)
}

// ConnectionClosed creates the error for a signal stream that ended before
// a terminal signal arrived
func ConnectionClosed() *WizardError {
	return New(ErrCodeConnectionClosed, "connection closed unexpectedly")
}

// GateFailed creates an authorization plumbing error
func GateFailed(stage string, err error) *WizardError {
	return Wrap(err, ErrCodeGateFailed, fmt.Sprintf("authorization check failed: %s", stage)).
		WithDetail("stage", stage)
}

// Denied creates the error surfaced when policy refused the action
func Denied(action string) *WizardError {
	return New(ErrCodePermissionDenied, fmt.Sprintf("operation not permitted: %s", action)).
		WithDetail("action", action)
}

// Cancelled creates the error for an operation stopped by its context
func Cancelled(err error) *WizardError {
	return Wrap(err, ErrCodeCancelled, "operation cancelled")
}

// InvalidInput creates an invalid input error
func InvalidInput(reason string) *WizardError {
	return New(ErrCodeInvalidInput, reason)
}
