package host

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"log/slog"
	"sync"
	"time"

	"github.com/coder/websocket"
	"github.com/google/uuid"
	"github.com/tidwall/gjson"
)

const (
	// responseTimeout bounds the wait for a host acknowledgment to a
	// single request (diagnostics, dialog open).
	responseTimeout = 30 * time.Second

	// inboundChanSize is the buffer size for the channel carrying
	// messages from the websocket reader goroutine to the dispatcher.
	inboundChanSize = 64

	// dialogChanSize buffers dialog messages and lifecycle events so a
	// slow consumer does not stall the dispatcher.
	dialogChanSize = 16

	// wsReadLimit caps inbound frames. Host shim messages are small
	// JSON envelopes; anything larger indicates a broken peer.
	wsReadLimit = 1 * 1024 * 1024
)

// ErrDialogNotOpen is returned by Dialog.Close when the dialog has
// already been dismissed.
var ErrDialogNotOpen = errors.New("dialog is not open")

// ErrBridgeClosed is returned when the host connection has gone away.
var ErrBridgeClosed = errors.New("host bridge closed")

// WSConn abstracts the websocket connection so WSBridge can be tested
// without a real server. *websocket.Conn satisfies this interface.
type WSConn interface {
	Read(ctx context.Context) (websocket.MessageType, []byte, error)
	Write(ctx context.Context, typ websocket.MessageType, p []byte) error
	Close(code websocket.StatusCode, reason string) error
	SetReadLimit(n int64)
}

// inboundMsg wraps a frame read from the websocket by the reader goroutine.
type inboundMsg struct {
	data []byte
	err  error
}

// envelope is the outbound op frame sent to the host shim.
type envelope struct {
	Op              string `json:"op"`
	ID              string `json:"id,omitempty"`
	URL             string `json:"url,omitempty"`
	Width           int    `json:"width,omitempty"`
	Height          int    `json:"height,omitempty"`
	DisplayInIframe bool   `json:"displayInIframe,omitempty"`
}

// WSBridge talks to the add-in host shim over a websocket.
//
// Architecture mirrors a single-reader event pump: a reader goroutine
// feeds inboundCh with raw frames, and Listen dispatches them by op to
// the ready latch, the pending diagnostics waiter, per-dialog channels,
// or pending dialog-open acks. All state lives behind one mutex.
type WSBridge struct {
	conn   WSConn
	logger *slog.Logger

	readyOnce sync.Once
	readyCh   chan struct{}

	mu          sync.Mutex
	diag        *Diagnostics
	diagWaiters []chan Diagnostics
	openAcks    map[string]chan error
	dialogs     map[string]*wsDialog
	closed      bool
}

// Dial connects to the host shim at url and returns a bridge ready for
// Listen to be started.
func Dial(ctx context.Context, url string, logger *slog.Logger) (*WSBridge, error) {
	conn, _, err := websocket.Dial(ctx, url, nil)
	if err != nil {
		return nil, fmt.Errorf("dialing host shim: %w", err)
	}

	conn.SetReadLimit(wsReadLimit)

	return newWSBridge(conn, logger), nil
}

func newWSBridge(conn WSConn, logger *slog.Logger) *WSBridge {
	return &WSBridge{
		conn:     conn,
		logger:   logger,
		readyCh:  make(chan struct{}),
		openAcks: make(map[string]chan error),
		dialogs:  make(map[string]*wsDialog),
	}
}

// Listen runs the reader and dispatcher until ctx is cancelled or the
// connection fails. It must be running for any Bridge method to make
// progress.
func (b *WSBridge) Listen(ctx context.Context) error {
	inboundCh := make(chan inboundMsg, inboundChanSize)

	readCtx, cancelRead := context.WithCancel(ctx)
	defer cancelRead()

	go func() {
		for {
			_, data, err := b.conn.Read(readCtx)
			select {
			case inboundCh <- inboundMsg{data: data, err: err}:
			case <-readCtx.Done():
				return
			}

			if err != nil {
				return
			}
		}
	}()

	defer b.shutdown()

	for {
		select {
		case <-ctx.Done():
			b.conn.Close(websocket.StatusGoingAway, "shutting down")
			return ctx.Err()

		case msg := <-inboundCh:
			if msg.err != nil {
				return fmt.Errorf("reading from host shim: %w", msg.err)
			}

			b.dispatch(msg.data)
		}
	}
}

// dispatch routes one inbound frame by its op tag. Unknown ops are
// logged and skipped; the host may be newer than this client.
func (b *WSBridge) dispatch(data []byte) {
	op := gjson.GetBytes(data, "op").String()

	switch op {
	case "ready":
		b.readyOnce.Do(func() { close(b.readyCh) })

	case "diag":
		var d Diagnostics
		if err := json.Unmarshal(data, &d); err != nil {
			b.logger.Warn("malformed diag frame", slog.String("error", err.Error()))
			return
		}

		b.deliverDiagnostics(d)

	case "dialog.opened":
		b.deliverOpenAck(gjson.GetBytes(data, "id").String(), nil)

	case "dialog.failed":
		reason := gjson.GetBytes(data, "reason").String()
		b.deliverOpenAck(gjson.GetBytes(data, "id").String(), fmt.Errorf("host refused dialog: %s", reason))

	case "dialog.message":
		id := gjson.GetBytes(data, "id").String()
		payload := gjson.GetBytes(data, "payload").String()
		b.deliverDialogMessage(id, payload)

	case "dialog.event":
		id := gjson.GetBytes(data, "id").String()
		ev := LifecycleEvent{
			Code:    int(gjson.GetBytes(data, "code").Int()),
			Message: gjson.GetBytes(data, "message").String(),
		}
		b.deliverDialogEvent(id, ev)

	default:
		b.logger.Debug("unknown host op", slog.String("op", op))
	}
}

// Ready blocks until the host signals readiness.
func (b *WSBridge) Ready(ctx context.Context) error {
	select {
	case <-b.readyCh:
		return nil
	case <-ctx.Done():
		return ctx.Err()
	}
}

// Diagnostics requests the host environment description. The first
// response is cached; the host's platform and version do not change
// within a session.
func (b *WSBridge) Diagnostics(ctx context.Context) (Diagnostics, error) {
	b.mu.Lock()
	if b.diag != nil {
		d := *b.diag
		b.mu.Unlock()

		return d, nil
	}

	waiter := make(chan Diagnostics, 1)
	b.diagWaiters = append(b.diagWaiters, waiter)
	b.mu.Unlock()

	if err := b.writeJSON(ctx, envelope{Op: "diag"}); err != nil {
		return Diagnostics{}, err
	}

	timer := time.NewTimer(responseTimeout)
	defer timer.Stop()

	select {
	case d, ok := <-waiter:
		if !ok {
			return Diagnostics{}, ErrBridgeClosed
		}

		return d, nil
	case <-timer.C:
		return Diagnostics{}, fmt.Errorf("timed out waiting for host diagnostics")
	case <-ctx.Done():
		return Diagnostics{}, ctx.Err()
	}
}

// OpenDialog asks the host to display url as a modal dialog and waits
// for the open acknowledgment.
func (b *WSBridge) OpenDialog(ctx context.Context, url string, opts DialogOptions) (Dialog, error) {
	id := uuid.NewString()
	ack := make(chan error, 1)

	b.mu.Lock()
	if b.closed {
		b.mu.Unlock()
		return nil, ErrBridgeClosed
	}

	b.openAcks[id] = ack
	b.mu.Unlock()

	err := b.writeJSON(ctx, envelope{
		Op:              "dialog.open",
		ID:              id,
		URL:             url,
		Width:           opts.Width,
		Height:          opts.Height,
		DisplayInIframe: opts.DisplayInIframe,
	})
	if err != nil {
		b.dropOpenAck(id)
		return nil, err
	}

	timer := time.NewTimer(responseTimeout)
	defer timer.Stop()

	select {
	case err := <-ack:
		if err != nil {
			return nil, err
		}
	case <-timer.C:
		b.dropOpenAck(id)
		return nil, fmt.Errorf("timed out waiting for dialog open acknowledgment")
	case <-ctx.Done():
		b.dropOpenAck(id)
		return nil, ctx.Err()
	}

	d := &wsDialog{
		id:     id,
		bridge: b,
		msgCh:  make(chan string, dialogChanSize),
		evtCh:  make(chan LifecycleEvent, dialogChanSize),
	}

	b.mu.Lock()
	b.dialogs[id] = d
	b.mu.Unlock()

	return d, nil
}

func (b *WSBridge) writeJSON(ctx context.Context, v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("marshalling host frame: %w", err)
	}

	if err := b.conn.Write(ctx, websocket.MessageText, data); err != nil {
		return fmt.Errorf("writing to host shim: %w", err)
	}

	return nil
}

func (b *WSBridge) deliverDiagnostics(d Diagnostics) {
	b.mu.Lock()
	b.diag = &d
	waiters := b.diagWaiters
	b.diagWaiters = nil
	b.mu.Unlock()

	for _, w := range waiters {
		w <- d
	}
}

func (b *WSBridge) deliverOpenAck(id string, err error) {
	b.mu.Lock()
	ack, ok := b.openAcks[id]
	delete(b.openAcks, id)
	b.mu.Unlock()

	if !ok {
		b.logger.Debug("open ack for unknown dialog", slog.String("id", id))
		return
	}

	ack <- err
}

func (b *WSBridge) dropOpenAck(id string) {
	b.mu.Lock()
	delete(b.openAcks, id)
	b.mu.Unlock()
}

// deliverDialogMessage sends under b.mu so it cannot race markClosed,
// which only runs with b.mu held. The send is non-blocking and cannot
// stall the dispatcher. A message for a dialog that has already been
// closed is dropped: anything arriving after resolution is stale.
func (b *WSBridge) deliverDialogMessage(id, payload string) {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.dialogs[id]
	if !ok {
		b.logger.Debug("message for dialog no longer open", slog.String("id", id))
		return
	}

	select {
	case d.msgCh <- payload:
	default:
		b.logger.Warn("dialog message dropped, consumer too slow", slog.String("id", id))
	}
}

func (b *WSBridge) deliverDialogEvent(id string, ev LifecycleEvent) {
	b.mu.Lock()
	defer b.mu.Unlock()

	d, ok := b.dialogs[id]
	if !ok {
		b.logger.Debug("event for dialog no longer open", slog.String("id", id))
		return
	}

	select {
	case d.evtCh <- ev:
	default:
		b.logger.Warn("dialog event dropped, consumer too slow", slog.String("id", id))
	}
}

// shutdown releases every waiter so callers do not hang when the
// connection dies.
func (b *WSBridge) shutdown() {
	b.mu.Lock()
	defer b.mu.Unlock()

	b.closed = true

	for id, ack := range b.openAcks {
		ack <- ErrBridgeClosed
		delete(b.openAcks, id)
	}

	for _, w := range b.diagWaiters {
		close(w)
	}
	b.diagWaiters = nil

	for id, d := range b.dialogs {
		d.markClosed()
		delete(b.dialogs, id)
	}
}

// unregisterDialog removes the dialog from routing and notifies the
// host. Returns ErrDialogNotOpen if already removed. The channels are
// closed while b.mu is held so no dispatcher send can be in flight.
func (b *WSBridge) unregisterDialog(id string) error {
	b.mu.Lock()
	d, ok := b.dialogs[id]
	if ok {
		delete(b.dialogs, id)
		d.markClosed()
	}
	closed := b.closed
	b.mu.Unlock()

	if !ok {
		return ErrDialogNotOpen
	}

	if closed {
		return nil
	}

	ctx, cancel := context.WithTimeout(context.Background(), responseTimeout)
	defer cancel()

	if err := b.writeJSON(ctx, envelope{Op: "dialog.close", ID: id}); err != nil {
		b.logger.Warn("failed to notify host of dialog close", slog.String("error", err.Error()))
	}

	return nil
}

// wsDialog is the handle for one open dialog routed through the bridge.
type wsDialog struct {
	id     string
	bridge *WSBridge

	closeOnce sync.Once
	msgCh     chan string
	evtCh     chan LifecycleEvent
}

func (d *wsDialog) Messages() <-chan string       { return d.msgCh }
func (d *wsDialog) Events() <-chan LifecycleEvent { return d.evtCh }

func (d *wsDialog) Close() error {
	return d.bridge.unregisterDialog(d.id)
}

// markClosed must only be called with the bridge mutex held; that is
// what keeps it mutually exclusive with the dispatcher's sends.
func (d *wsDialog) markClosed() {
	d.closeOnce.Do(func() {
		close(d.msgCh)
		close(d.evtCh)
	})
}
