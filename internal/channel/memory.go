package channel

import (
	"context"
	"encoding/json"
	"fmt"
	"sync/atomic"
)

// MemConn is an in-process transport endpoint. Pipe wires two of them
// together; tests and broker-less local runs drive the server end.
type MemConn struct {
	registry
	peer   *MemConn
	closed atomic.Bool
}

// Pipe returns a connected client/server pair. Delivery is synchronous:
// an Emit on one end runs the other end's handlers before returning.
func Pipe() (client, server *MemConn) {
	a := &MemConn{}
	b := &MemConn{}
	a.peer = b
	b.peer = a
	return a, b
}

func (c *MemConn) Emit(ctx context.Context, event, id string, payload any) error {
	if c.closed.Load() || c.peer.closed.Load() {
		return ErrClosed
	}
	if err := ctx.Err(); err != nil {
		return err
	}
	data, err := marshalPayload(payload)
	if err != nil {
		return fmt.Errorf("marshal %s payload: %w", event, err)
	}
	c.peer.dispatch(Message{Event: event, ID: id, Data: data})
	return nil
}

// EmitRaw pushes a pre-encoded payload, letting tests exercise both
// wire shapes the normalizer accepts.
func (c *MemConn) EmitRaw(event, id string, data json.RawMessage) {
	c.peer.dispatch(Message{Event: event, ID: id, Data: data})
}

// SignalConnect fires this end's connect hooks, simulating a
// (re)connect.
func (c *MemConn) SignalConnect() { c.notifyConnect() }

func (c *MemConn) On(event string, h Handler) func() { return c.on(event, h) }
func (c *MemConn) OnConnect(fn func()) func()        { return c.onConnect(fn) }

func (c *MemConn) Close() error {
	c.closed.Store(true)
	return nil
}

// DialLoopback is a Dialer for broker-less runs: every domain gets a
// pipe whose server end answers nothing. Loads fail by deadline instead
// of crashing, and the app stays usable for cart-only flows.
func DialLoopback() Dialer {
	return func(domain string) (Conn, error) {
		client, _ := Pipe()
		return client, nil
	}
}
