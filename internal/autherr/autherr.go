// Package autherr defines the closed error taxonomy shared by the token
// acquisition engine and the dialog fallback protocol, and the mapper
// that classifies raw failures into it.
package autherr

import (
	"errors"
	"fmt"
)

// Code identifies a failure class. The set is closed: callers switch on
// these values and must never see anything else.
type Code string

// Engine and identity-client codes.
const (
	CodeNotInitialized  Code = "NOT_INITIALIZED"
	CodeSilentFailed    Code = "SILENT_FAILED"
	CodeUserCancelled   Code = "USER_CANCELLED"
	CodePopupBlocked    Code = "POPUP_BLOCKED"
	CodeNetworkError    Code = "NETWORK_ERROR"
	CodeTokenInvalid    Code = "TOKEN_INVALID"
	CodeNAANotSupported Code = "NAA_NOT_SUPPORTED"
	CodeUnknown         Code = "UNKNOWN"
)

// Dialog protocol codes.
const (
	CodeDialogClosed       Code = "DIALOG_CLOSED"
	CodeDialogOpenFailed   Code = "DIALOG_OPEN_FAILED"
	CodeAuthTimeout        Code = "AUTH_TIMEOUT"
	CodeInvalidMessage     Code = "INVALID_MESSAGE"
	CodeCommunicationError Code = "COMMUNICATION_ERROR"
	CodeMSALError          Code = "MSAL_ERROR"
)

// userMessages maps each code to the message shown to end users.
// Diagnostic detail lives in the wrapped cause, not here.
var userMessages = map[Code]string{
	CodeNotInitialized:     "Sign-in is not ready yet. Please try again in a moment.",
	CodeSilentFailed:       "Your session could not be refreshed. Please sign in again.",
	CodeUserCancelled:      "Sign-in was cancelled.",
	CodePopupBlocked:       "The sign-in window was blocked. Please allow popups and try again.",
	CodeNetworkError:       "A network problem interrupted sign-in. Check your connection and try again.",
	CodeTokenInvalid:       "The sign-in response was invalid. Please sign in again.",
	CodeNAANotSupported:    "This host does not support embedded sign-in.",
	CodeDialogClosed:       "The sign-in window was closed before completing.",
	CodeDialogOpenFailed:   "The sign-in window could not be opened.",
	CodeAuthTimeout:        "Sign-in timed out. Please try again.",
	CodeInvalidMessage:     "The sign-in window sent an unrecognized response.",
	CodeCommunicationError: "Communication with the sign-in window failed.",
	CodeMSALError:          "The identity provider reported an error. Please try again.",
	CodeUnknown:            "Sign-in failed unexpectedly. Please try again.",
}

// Error is a classified authentication failure. Code is stable and
// machine-readable; UserMessage is safe to surface; Cause carries the
// original failure for diagnostics.
type Error struct {
	Code        Code
	UserMessage string
	Cause       error
}

func (e *Error) Error() string {
	if e.Cause != nil {
		return fmt.Sprintf("%s: %v", e.Code, e.Cause)
	}

	return string(e.Code)
}

func (e *Error) Unwrap() error { return e.Cause }

// New creates an Error with the canonical user message for code.
func New(code Code, cause error) *Error {
	msg, ok := userMessages[code]
	if !ok {
		msg = userMessages[CodeUnknown]
	}

	return &Error{Code: code, UserMessage: msg, Cause: cause}
}

// WithMessage creates an Error with an explicit user message, used when
// the provider supplies its own text (e.g. a dialog auth-error message).
func WithMessage(code Code, userMessage string, cause error) *Error {
	if userMessage == "" {
		return New(code, cause)
	}

	return &Error{Code: code, UserMessage: userMessage, Cause: cause}
}

// CodeOf extracts the taxonomy code from err, or CodeUnknown when err
// carries no classification.
func CodeOf(err error) Code {
	var ae *Error
	if errors.As(err, &ae) {
		return ae.Code
	}

	return CodeUnknown
}

// Is reports whether err is classified under code.
func Is(err error, code Code) bool {
	return CodeOf(err) == code
}
