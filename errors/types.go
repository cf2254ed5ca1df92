package errors

import (
	"encoding/json"
	"fmt"
)

// ErrorCode represents a specific error condition
type ErrorCode string

const (
	// Configuration errors
	ErrCodeConfigNotFound   ErrorCode = "CONFIG_NOT_FOUND"
	ErrCodeConfigInvalid    ErrorCode = "CONFIG_INVALID"
	ErrCodeConfigValidation ErrorCode = "CONFIG_VALIDATION"

	// Bus errors
	ErrCodeBusUnavailable ErrorCode = "BUS_UNAVAILABLE"

	// Transaction errors
	ErrCodeTransactionFailed ErrorCode = "TRANSACTION_FAILED"
	ErrCodeTransactionCall   ErrorCode = "TRANSACTION_CALL"
	ErrCodeMalformedSignal   ErrorCode = "MALFORMED_SIGNAL"
	ErrCodeConnectionClosed  ErrorCode = "CONNECTION_CLOSED"

	// Authorization errors
	ErrCodeGateFailed       ErrorCode = "AUTHORIZATION_CHECK_FAILED"
	ErrCodePermissionDenied ErrorCode = "PERMISSION_DENIED"

	// General errors
	ErrCodeCancelled    ErrorCode = "CANCELLED"
	ErrCodeInternal     ErrorCode = "INTERNAL_ERROR"
	ErrCodeInvalidInput ErrorCode = "INVALID_INPUT"
)

// WizardError represents a structured error with context
type WizardError struct {
	Code    ErrorCode              `json:"code"`
	Message string                 `json:"message"`
	Details map[string]interface{} `json:"details,omitempty"`
	Cause   error                  `json:"-"`
}

// Error implements the error interface
func (e *WizardError) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %s (caused by: %v)", e.Code, e.Message, e.Cause)
	}
	return fmt.Sprintf("%s: %s", e.Code, e.Message)
}

// Unwrap implements the errors.Unwrap interface
func (e *WizardError) Unwrap() error {
	return e.Cause
}

// WithDetail adds a detail to the error
func (e *WizardError) WithDetail(key string, value interface{}) *WizardError {
	if e.Details == nil {
		e.Details = make(map[string]interface{})
	}
	e.Details[key] = value
	return e
}

// ToJSON converts the error to JSON
func (e *WizardError) ToJSON() string {
	data, _ := json.MarshalIndent(e, "", "  ")
	return string(data)
}

// New creates a new WizardError
func New(code ErrorCode, message string) *WizardError {
	return &WizardError{
		Code:    code,
		Message: message,
	}
}

// Wrap wraps an existing error with a WizardError
func Wrap(err error, code ErrorCode, message string) *WizardError {
	return &WizardError{
		Code:    code,
		Message: message,
		Cause:   err,
	}
}

// As returns the outermost WizardError in err's chain.
func As(err error) (*WizardError, bool) {
	for err != nil {
		if wizErr, ok := err.(*WizardError); ok {
			return wizErr, true
		}
		unwrapper, ok := err.(interface{ Unwrap() error })
		if !ok {
			return nil, false
		}
		err = unwrapper.Unwrap()
	}
	return nil, false
}

// Is checks if an error is a specific WizardError code
func Is(err error, code ErrorCode) bool {
	if err == nil {
		return false
	}

	wizErr, ok := err.(*WizardError)
	if !ok {
		// Try to unwrap
		if unwrapper, ok := err.(interface{ Unwrap() error }); ok {
			return Is(unwrapper.Unwrap(), code)
		}
		return false
	}

	return wizErr.Code == code
}

// GetCode extracts the error code from an error
func GetCode(err error) ErrorCode {
	wizErr, ok := As(err)
	if !ok {
		return ""
	}
	return wizErr.Code
}

// IsTransactionError reports whether err belongs to the transaction error
// class: a remote failure, a failed remote call, a malformed signal, or a
// stream that ended without a terminal signal.
func IsTransactionError(err error) bool {
	switch GetCode(err) {
	case ErrCodeTransactionFailed, ErrCodeTransactionCall, ErrCodeMalformedSignal, ErrCodeConnectionClosed:
		return true
	}
	return false
}

// IsDenied reports whether err means the action was refused by policy
// rather than having failed.
func IsDenied(err error) bool {
	return Is(err, ErrCodePermissionDenied)
}

// RemoteCode returns the numeric error code reported by the package
// manager for a TRANSACTION_FAILED error.
func RemoteCode(err error) (uint32, bool) {
	wizErr, ok := As(err)
	if !ok || wizErr.Code != ErrCodeTransactionFailed {
		return 0, false
	}
	code, ok := wizErr.Details["code"].(uint32)
	return code, ok
}
