// Package host abstracts the add-in host runtime: readiness signaling,
// environment diagnostics, and modal dialog windows. The production
// implementation speaks to a host shim over a websocket; tests inject
// fakes.
package host

import "context"

// Diagnostics describes the hosting environment as reported by the host
// once it signals readiness.
type Diagnostics struct {
	Host     string `json:"host"`
	Platform string `json:"platform"`
	Version  string `json:"version"`
}

// Known platform identifiers reported by the host.
const (
	PlatformPC        = "PC"
	PlatformMac       = "Mac"
	PlatformWeb       = "OfficeOnline"
	PlatformIOS       = "iOS"
	PlatformAndroid   = "Android"
	PlatformUniversal = "Universal"
)

// IsWebPlatform reports whether the platform identifier is a web-hosted
// variant of the application.
func IsWebPlatform(platform string) bool {
	return platform == PlatformWeb
}

// DialogOptions controls how the host displays a modal dialog.
// Width and Height are percentages of the host window.
type DialogOptions struct {
	Width           int  `json:"width"`
	Height          int  `json:"height"`
	DisplayInIframe bool `json:"displayInIframe"`
}

// LifecycleEvent is a dialog lifecycle notification from the host
// (navigation failure, blocked domain, user closed the window, ...).
// Code follows the host's numeric convention.
type LifecycleEvent struct {
	Code    int    `json:"code"`
	Message string `json:"message,omitempty"`
}

// Host dialog lifecycle codes.
const (
	EventNavigationError   = 12002
	EventDomainBlocked     = 12003
	EventHTTPSRequired     = 12004
	EventDialogAlreadyOpen = 12005
	EventDialogClosed      = 12006
)

// Dialog is a handle to an open modal dialog. Messages carries raw
// payload strings posted by the dialog page; Events carries lifecycle
// notifications. Both channels are closed when the dialog goes away.
type Dialog interface {
	Messages() <-chan string
	Events() <-chan LifecycleEvent

	// Close dismisses the dialog. Closing an already-closed dialog
	// returns ErrDialogNotOpen, which callers on cleanup paths ignore.
	Close() error
}

// Bridge is the connection to the add-in host runtime.
type Bridge interface {
	// Ready blocks until the host signals it is initialized and
	// diagnostics can be read.
	Ready(ctx context.Context) error

	// Diagnostics returns the host environment description. Only valid
	// after Ready has returned.
	Diagnostics(ctx context.Context) (Diagnostics, error)

	// OpenDialog asks the host to display url as a modal dialog.
	OpenDialog(ctx context.Context, url string, opts DialogOptions) (Dialog, error)
}
