package autherr

import (
	"context"
	"errors"
	"net"
	"strings"
)

// ErrInteractionRequired is a control-flow signal, not a user-visible
// failure: silent acquisition raises it when the identity provider needs
// user interaction, and the engine responds by escalating to the
// interactive path instead of propagating an error.
var ErrInteractionRequired = errors.New("interaction required")

// IsInteractionRequired reports whether err (or any error in its chain)
// signals that interactive consent is needed.
func IsInteractionRequired(err error) bool {
	if errors.Is(err, ErrInteractionRequired) {
		return true
	}

	return containsAny(err,
		"interaction_required",
		"invalid_grant",
		"consent_required",
		"login_required",
		"no_tokens_found",
		"AADSTS50058",
		"AADSTS65001",
	)
}

// Map classifies a caught value from the identity client or the dialog
// protocol into the taxonomy, choosing the most specific applicable
// code. Already-classified errors pass through unchanged.
func Map(err error) *Error {
	if err == nil {
		return nil
	}

	var ae *Error
	if errors.As(err, &ae) {
		return ae
	}

	switch {
	case errors.Is(err, context.DeadlineExceeded):
		return New(CodeAuthTimeout, err)
	case errors.Is(err, context.Canceled):
		return New(CodeUserCancelled, err)
	case isNetworkError(err):
		return New(CodeNetworkError, err)
	case containsAny(err, "popup_window_error", "popup blocked", "empty_window_error"):
		return New(CodePopupBlocked, err)
	case containsAny(err, "user_cancelled", "user_canceled", "access_denied"):
		return New(CodeUserCancelled, err)
	case containsAny(err, "invalid_token", "token is expired", "token validation"):
		return New(CodeTokenInvalid, err)
	case containsAny(err, "AADSTS", "invalid_client", "unauthorized_client", "invalid_scope"):
		return New(CodeMSALError, err)
	}

	return New(CodeUnknown, err)
}

// isNetworkError matches transport-level failures from the identity
// client's HTTP stack.
func isNetworkError(err error) bool {
	var ne net.Error
	if errors.As(err, &ne) {
		return true
	}

	return containsAny(err,
		"connection refused",
		"no such host",
		"network is unreachable",
		"TLS handshake",
	)
}

func containsAny(err error, substrs ...string) bool {
	if err == nil {
		return false
	}

	msg := strings.ToLower(err.Error())
	for _, s := range substrs {
		if strings.Contains(msg, strings.ToLower(s)) {
			return true
		}
	}

	return false
}
