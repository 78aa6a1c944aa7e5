// Package dialogauth implements the dialog fallback protocol: when the
// host cannot broker tokens natively, a modal dialog window runs the
// interactive sign-in and reports the outcome back through the host's
// message channel.
package dialogauth

import (
	"context"
	"errors"
	"fmt"
	"log/slog"
	"net/url"
	"sync"
	"time"

	"github.com/google/uuid"

	"github.com/tasksuite/addin-auth/internal/autherr"
	"github.com/tasksuite/addin-auth/internal/host"
	"github.com/tasksuite/addin-auth/internal/models"
)

const (
	// DefaultTimeout bounds one authentication attempt.
	DefaultTimeout = 120 * time.Second

	// Default dialog dimensions, percent of the host window.
	defaultWidthPercent  = 60
	defaultHeightPercent = 70
)

// Config carries the identity parameters baked into the dialog URL.
type Config struct {
	ClientID    string
	TenantID    string
	APIClientID string

	// BaseURL is where the dialog page is served. The dialog path and
	// query parameters are appended to it.
	BaseURL string
}

// Options configures one authentication attempt. Zero values fall back
// to the defaults above.
type Options struct {
	WidthPercent    int
	HeightPercent   int
	Timeout         time.Duration
	DisplayInIframe bool

	// Prompt is an optional hint forwarded to the identity provider
	// (e.g. "select_account").
	Prompt string
}

// Result is a successful dialog authentication outcome.
type Result struct {
	Token   models.TokenResult
	Account models.Account
}

// flowState tracks the protocol state machine, exposed for logging.
type flowState int

const (
	stateIdle flowState = iota
	stateDialogOpening
	stateDialogOpen
)

func (s flowState) String() string {
	switch s {
	case stateDialogOpening:
		return "dialog-opening"
	case stateDialogOpen:
		return "dialog-open"
	default:
		return "idle"
	}
}

// attempt is one in-flight authentication. Exactly one may exist per
// Flow; cancelCh rejects it, done closes when its cleanup has finished.
type attempt struct {
	id         string
	cancelOnce sync.Once
	cancelCh   chan struct{}
	done       chan struct{}
}

func (a *attempt) cancel() {
	a.cancelOnce.Do(func() { close(a.cancelCh) })
}

// Flow runs the dialog fallback protocol against a host bridge.
// Construct one per engine instance; tests construct their own.
type Flow struct {
	bridge host.Bridge
	cfg    Config
	logger *slog.Logger

	mu      sync.Mutex
	state   flowState
	pending *attempt
}

// New creates a Flow. The bridge must outlive the flow.
func New(bridge host.Bridge, cfg Config, logger *slog.Logger) *Flow {
	return &Flow{
		bridge: bridge,
		cfg:    cfg,
		logger: logger,
	}
}

// Authenticate opens the auth dialog and blocks until it reports an
// outcome, the timeout fires, the attempt is cancelled, or ctx ends.
// Starting a new attempt while one is pending first rejects the pending
// one with USER_CANCELLED.
func (f *Flow) Authenticate(ctx context.Context, opts Options) (Result, error) {
	att, err := f.begin()
	if err != nil {
		return Result{}, err
	}

	defer f.finish(att)

	// No windowing capability at all: fail typed instead of panicking.
	if f.bridge == nil {
		return Result{}, autherr.New(autherr.CodeDialogOpenFailed, fmt.Errorf("no host integration context"))
	}

	dialogURL, err := f.buildDialogURL(att.id, opts.Prompt)
	if err != nil {
		return Result{}, autherr.New(autherr.CodeDialogOpenFailed, err)
	}

	f.logger.Debug("opening auth dialog",
		slog.String("attempt", att.id),
		slog.String("url", dialogURL),
	)

	// Cancellation must interrupt the open request itself, not just the
	// wait loop below, so a superseding attempt is not stuck behind the
	// host's acknowledgment timeout.
	attCtx, cancelAttempt := context.WithCancel(ctx)
	defer cancelAttempt()

	go func() {
		select {
		case <-att.cancelCh:
			cancelAttempt()
		case <-attCtx.Done():
		}
	}()

	dialog, err := f.bridge.OpenDialog(attCtx, dialogURL, host.DialogOptions{
		Width:           valueOr(opts.WidthPercent, defaultWidthPercent),
		Height:          valueOr(opts.HeightPercent, defaultHeightPercent),
		DisplayInIframe: opts.DisplayInIframe,
	})
	if err != nil {
		select {
		case <-att.cancelCh:
			return Result{}, autherr.New(autherr.CodeUserCancelled, fmt.Errorf("attempt cancelled"))
		default:
		}

		return Result{}, autherr.New(autherr.CodeDialogOpenFailed, err)
	}

	f.setState(stateDialogOpen)

	timeout := opts.Timeout
	if timeout <= 0 {
		timeout = DefaultTimeout
	}

	timer := time.NewTimer(timeout)

	// Cleanup runs on every exit path. Closing an already-dismissed
	// dialog reports ErrDialogNotOpen, which is fine here.
	defer func() {
		timer.Stop()

		if err := dialog.Close(); err != nil && !errors.Is(err, host.ErrDialogNotOpen) {
			f.logger.Warn("closing auth dialog failed",
				slog.String("attempt", att.id),
				slog.String("error", err.Error()),
			)
		}
	}()

	for {
		select {
		case <-timer.C:
			f.logger.Warn("auth dialog timed out", slog.String("attempt", att.id))
			return Result{}, autherr.New(autherr.CodeAuthTimeout, fmt.Errorf("no response within %s", timeout))

		case <-att.cancelCh:
			return Result{}, autherr.New(autherr.CodeUserCancelled, fmt.Errorf("attempt cancelled"))

		case <-ctx.Done():
			return Result{}, autherr.Map(ctx.Err())

		case raw, ok := <-dialog.Messages():
			if !ok {
				return Result{}, autherr.New(autherr.CodeCommunicationError, fmt.Errorf("host message channel closed"))
			}

			res, done, err := f.handleMessage(att, raw)
			if err != nil {
				return Result{}, err
			}

			if done {
				return res, nil
			}

		case ev, ok := <-dialog.Events():
			if !ok {
				return Result{}, autherr.New(autherr.CodeCommunicationError, fmt.Errorf("host event channel closed"))
			}

			if ev.Code == host.EventDialogClosed {
				return Result{}, autherr.New(autherr.CodeDialogClosed, fmt.Errorf("host event %d: %s", ev.Code, ev.Message))
			}

			return Result{}, autherr.New(autherr.CodeCommunicationError, fmt.Errorf("host event %d: %s", ev.Code, ev.Message))
		}
	}
}

// handleMessage processes one inbound payload. done=true with a nil
// error and a populated Result resolves the attempt; a non-nil error
// rejects it; neither means the message was informational.
func (f *Flow) handleMessage(att *attempt, raw string) (Result, bool, error) {
	parsed, err := parseMessage(raw)
	if err != nil {
		return Result{}, false, autherr.New(autherr.CodeInvalidMessage, err)
	}

	switch msg := parsed.(type) {
	case completeMessage:
		f.logger.Info("dialog authentication complete",
			slog.String("attempt", att.id),
			slog.String("username", msg.Account.Username),
		)

		return msg.toResult(), true, nil

	case errorMessage:
		return Result{}, false, autherr.WithMessage(
			autherr.CodeMSALError,
			msg.ErrorMessage,
			fmt.Errorf("provider error %s: %s", msg.ErrorCode, msg.ErrorMessage),
		)

	case cancelledMessage:
		return Result{}, false, autherr.New(autherr.CodeUserCancelled, fmt.Errorf("cancelled inside dialog"))

	case readyMessage:
		f.logger.Debug("dialog page ready", slog.String("attempt", att.id))
		return Result{}, false, nil
	}

	// parseMessage only returns the variants above.
	return Result{}, false, autherr.New(autherr.CodeInvalidMessage, fmt.Errorf("unhandled message variant"))
}

// CancelAuthentication rejects the pending attempt with USER_CANCELLED
// and waits for its cleanup to finish. With nothing pending it is a
// no-op and never fails.
func (f *Flow) CancelAuthentication() {
	f.mu.Lock()
	att := f.pending
	f.mu.Unlock()

	if att == nil {
		return
	}

	att.cancel()
	<-att.done
}

// begin cancels any pending attempt, then installs a new one.
func (f *Flow) begin() (*attempt, error) {
	for {
		f.mu.Lock()
		if f.pending == nil {
			att := &attempt{
				id:       uuid.NewString(),
				cancelCh: make(chan struct{}),
				done:     make(chan struct{}),
			}
			f.pending = att
			f.state = stateDialogOpening
			f.mu.Unlock()

			return att, nil
		}

		prev := f.pending
		f.mu.Unlock()

		f.logger.Debug("cancelling stale auth attempt", slog.String("attempt", prev.id))
		prev.cancel()
		<-prev.done
	}
}

// finish releases the attempt's ownership of the dialog slot.
func (f *Flow) finish(att *attempt) {
	f.mu.Lock()
	if f.pending == att {
		f.pending = nil
		f.state = stateIdle
	}
	f.mu.Unlock()

	close(att.done)
}

func (f *Flow) setState(s flowState) {
	f.mu.Lock()
	f.state = s
	f.mu.Unlock()
}

// buildDialogURL appends the identity query parameters to the dialog
// page URL. The attempt ID rides along as state for correlation.
func (f *Flow) buildDialogURL(attemptID, prompt string) (string, error) {
	base, err := url.Parse(f.cfg.BaseURL)
	if err != nil {
		return "", fmt.Errorf("parsing dialog base URL: %w", err)
	}

	base = base.JoinPath("auth-dialog")

	q := base.Query()
	q.Set("clientId", f.cfg.ClientID)
	q.Set("tenantId", f.cfg.TenantID)
	q.Set("bffApiClientId", f.cfg.APIClientID)
	q.Set("state", attemptID)

	if prompt != "" {
		q.Set("prompt", prompt)
	}

	base.RawQuery = q.Encode()

	return base.String(), nil
}

func valueOr(v, fallback int) int {
	if v > 0 {
		return v
	}

	return fallback
}
