package realtime

import (
	"context"
	"encoding/json"
	"errors"
	"fmt"
	"sync"

	"github.com/gorilla/websocket"
	"github.com/rs/zerolog"
)

// ErrProtocol marks an unclassifiable frame from the upstream service.
// Protocol faults are fatal to the session.
var ErrProtocol = errors.New("protocol error")

// Conn is the duplex text-frame connection the bridge runs over. It is
// satisfied by *websocket.Conn; tests substitute in-process pipes.
type Conn interface {
	ReadMessage() (messageType int, p []byte, err error)
	WriteMessage(messageType int, data []byte) error
	Close() error
}

// writeConn serializes writes to one connection. The upstream write side is
// shared between the client relay and concurrent tool responders; gorilla
// connections support only one writer at a time.
type writeConn struct {
	mu   sync.Mutex
	conn Conn
}

func (w *writeConn) writeText(data []byte) error {
	w.mu.Lock()
	defer w.mu.Unlock()
	return w.conn.WriteMessage(websocket.TextMessage, data)
}

func (w *writeConn) writeJSON(v any) error {
	data, err := json.Marshal(v)
	if err != nil {
		return fmt.Errorf("encode frame: %w", err)
	}
	return w.writeText(data)
}

// Bridge relays frames between the client and the upstream speech service
// for one session, intercepting tool calls on the way.
//
// Each connection side has exactly one reader: the client reader relays
// verbatim, and the upstream reader demultiplexes by frame type. Running a
// second reader against either socket would silently lose frames, since each
// inbound frame can be consumed only once.
type Bridge struct {
	client   *writeConn
	upstream *writeConn
	registry *Registry
	log      zerolog.Logger

	handlers sync.WaitGroup
}

func NewBridge(client, upstream Conn, registry *Registry, log zerolog.Logger) *Bridge {
	return &Bridge{
		client:   &writeConn{conn: client},
		upstream: &writeConn{conn: upstream},
		registry: registry,
		log:      log,
	}
}

// Configure sends the one-time session configuration frame declaring the
// instructions and the tool catalog.
func (b *Bridge) Configure(instructions string) error {
	frame := NewSessionUpdate(instructions, b.registry.Catalog())
	if err := b.upstream.writeJSON(frame); err != nil {
		return fmt.Errorf("send session update: %w", err)
	}
	return nil
}

// Run relays frames until either connection fails or ctx is cancelled. It
// returns the fault that ended the session after both connections are closed
// and all in-flight tool handlers have finished.
func (b *Bridge) Run(ctx context.Context) error {
	ctx, cancel := context.WithCancel(ctx)
	defer cancel()

	errc := make(chan error, 2)

	go func() { errc <- b.relayClient(ctx) }()
	go func() { errc <- b.demuxUpstream(ctx) }()

	var cause error
	select {
	case cause = <-errc:
	case <-ctx.Done():
		cause = ctx.Err()
	}

	// Unblock the surviving reader and abort in-flight tool work. The close
	// frame must go out before the client socket is torn down or the client
	// never learns why the session ended.
	cancel()
	b.closeClient(cause)
	_ = b.client.conn.Close()
	_ = b.upstream.conn.Close()
	b.handlers.Wait()

	return cause
}

// closeClient sends the client a close frame whose code and reason reflect
// what ended the session. Best effort: when the client side is the one that
// failed, the write fails and the fault still surfaces through Run's return.
func (b *Bridge) closeClient(cause error) {
	code := websocket.CloseNormalClosure
	reason := "session ended"
	switch {
	case cause == nil || isExpectedClose(cause):
	case errors.Is(cause, context.Canceled):
		code = websocket.CloseGoingAway
		reason = "server shutting down"
	case errors.Is(cause, ErrProtocol):
		code = websocket.CloseInternalServerErr
		reason = fmt.Sprintf("Error: %v", cause)
	default:
		code = websocket.CloseInternalServerErr
		reason = fmt.Sprintf("Connection error: %v", cause)
	}
	// Close reasons ride in the control frame payload, capped at 125 bytes.
	if len(reason) > 120 {
		reason = reason[:120]
	}
	msg := websocket.FormatCloseMessage(code, reason)

	b.client.mu.Lock()
	defer b.client.mu.Unlock()
	_ = b.client.conn.WriteMessage(websocket.CloseMessage, msg)
}

// relayClient forwards client frames to upstream verbatim, preserving order.
// No inspection: client traffic is opaque to this core.
func (b *Bridge) relayClient(ctx context.Context) error {
	for {
		_, data, err := b.client.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("client read: %w", err)
		}
		if err := b.upstream.writeText(data); err != nil {
			return fmt.Errorf("upstream write: %w", err)
		}
		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

// demuxUpstream owns the upstream read side. Tool-call frames are dispatched
// concurrently, with responses written back upstream; everything else goes to
// the client unchanged and in upstream order.
func (b *Bridge) demuxUpstream(ctx context.Context) error {
	for {
		_, data, err := b.upstream.conn.ReadMessage()
		if err != nil {
			return fmt.Errorf("upstream read: %w", err)
		}

		kind, err := frameType(data)
		if err != nil {
			return fmt.Errorf("%w: %v", ErrProtocol, err)
		}

		if kind != TypeToolCall {
			if err := b.client.writeText(data); err != nil {
				return fmt.Errorf("client write: %w", err)
			}
			continue
		}

		var call ToolCallFrame
		if err := json.Unmarshal(data, &call); err != nil {
			return fmt.Errorf("%w: bad tool_call frame: %v", ErrProtocol, err)
		}

		b.handlers.Add(1)
		go func() {
			defer b.handlers.Done()
			b.handleToolCall(ctx, call)
		}()

		if ctx.Err() != nil {
			return ctx.Err()
		}
	}
}

func (b *Bridge) handleToolCall(ctx context.Context, call ToolCallFrame) {
	b.log.Debug().Str("tool", call.Name).Str("call_id", call.ID).Msg("dispatching tool call")

	resp := b.registry.Dispatch(ctx, call)

	if ctx.Err() != nil {
		return
	}
	if err := b.upstream.writeJSON(resp); err != nil {
		// The demultiplexer will observe the broken connection and end the
		// session; nothing to do here beyond recording it.
		b.log.Warn().Str("call_id", call.ID).Err(err).Msg("failed to send tool response")
	}
}
