package cli

import (
	"fmt"
	"io"
	"os"

	"github.com/grovetools/wizard/errors"
)

// Exit codes returned by Handle.
const (
	ExitOK        = 0
	ExitFailure   = 1
	ExitDenied    = 2
	ExitCancelled = 130
)

// ErrorHandler turns wizard errors into user-facing messages and exit codes.
type ErrorHandler struct {
	Verbose bool
	JSON    bool
	Out     io.Writer
}

// NewErrorHandler creates an error handler writing to stderr.
func NewErrorHandler(verbose, json bool) *ErrorHandler {
	return &ErrorHandler{
		Verbose: verbose,
		JSON:    json,
		Out:     os.Stderr,
	}
}

// Handle prints err and returns the process exit code for it.
func (h *ErrorHandler) Handle(err error) int {
	if err == nil {
		return ExitOK
	}

	if h.JSON {
		if wizErr, ok := errors.As(err); ok {
			fmt.Fprintln(h.Out, wizErr.ToJSON())
		} else {
			fmt.Fprintln(h.Out, errors.Wrap(err, errors.ErrCodeInternal, err.Error()).ToJSON())
		}
		return exitCode(err)
	}

	wizErr, _ := errors.As(err)
	detail := func(key string) interface{} {
		if wizErr == nil {
			return nil
		}
		return wizErr.Details[key]
	}

	switch errors.GetCode(err) {
	case errors.ErrCodePermissionDenied:
		fmt.Fprintf(h.Out, "❌ Not authorized: %v\n", detail("action"))
		fmt.Fprintln(h.Out, "The request was refused by the system policy. Nothing was installed.")

	case errors.ErrCodeGateFailed:
		fmt.Fprintf(h.Out, "❌ Could not check authorization (%v)\n", detail("stage"))
		fmt.Fprintln(h.Out, "Make sure polkit is running on the system bus.")

	case errors.ErrCodeBusUnavailable:
		fmt.Fprintf(h.Out, "❌ Cannot reach the %v D-Bus\n", detail("scope"))
		fmt.Fprintln(h.Out, "Check that dbus is running and DBUS_SESSION_BUS_ADDRESS is set for session helpers.")

	case errors.ErrCodeConfigNotFound:
		fmt.Fprintf(h.Out, "❌ Configuration not found: %v\n", detail("path"))

	case errors.ErrCodeConfigInvalid, errors.ErrCodeConfigValidation:
		fmt.Fprintf(h.Out, "❌ Invalid configuration: %v\n", err)
		fmt.Fprintln(h.Out, "Run 'wizard config validate' to check the file.")

	case errors.ErrCodeTransactionFailed:
		fmt.Fprintf(h.Out, "❌ Package manager reported %v: %s\n", detail("kind"), wizErr.Message)

	case errors.ErrCodeConnectionClosed:
		fmt.Fprintln(h.Out, "❌ The package manager went away before the transaction finished.")

	case errors.ErrCodeCancelled:
		fmt.Fprintln(h.Out, "Cancelled.")

	case errors.ErrCodeInvalidInput:
		fmt.Fprintf(h.Out, "❌ %s\n", wizErr.Message)

	default:
		fmt.Fprintf(h.Out, "❌ Error: %v\n", err)
	}

	if h.Verbose && wizErr != nil {
		fmt.Fprintf(h.Out, "\nError details:\n%s\n", wizErr.ToJSON())
	}
	return exitCode(err)
}

func exitCode(err error) int {
	switch {
	case errors.IsDenied(err):
		return ExitDenied
	case errors.Is(err, errors.ErrCodeCancelled):
		return ExitCancelled
	default:
		return ExitFailure
	}
}
