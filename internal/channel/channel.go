// Package channel is the client side of the push channel: one logical
// event-stream connection per domain (products, orders), carrying both
// request/response pairs and server-pushed notifications.
package channel

import (
	"context"
	"encoding/json"
	"errors"
	"sync"
)

var ErrClosed = errors.New("channel: connection closed")

// Handler receives inbound messages for a subscribed event. Handlers
// run on the transport's reader goroutine and must not block.
type Handler func(msg Message)

// Conn is a single shared connection for one logical domain.
type Conn interface {
	// Emit sends an event to the server. id is optional correlation.
	Emit(ctx context.Context, event, id string, payload any) error
	// On subscribes to an inbound event; the returned func unsubscribes.
	On(event string, h Handler) (off func())
	// OnConnect registers a hook invoked whenever the connection is
	// (re)established. Used to re-issue full loads after reconnect.
	OnConnect(fn func()) (off func())
	Close() error
}

// Request emits a request event and waits for the next inbound event of
// the same name, socket.io style. Bounded by ctx.
func Request(ctx context.Context, c Conn, event string, payload any) (Result, error) {
	return Await(ctx, c, event, "", event, payload)
}

// Await emits reqEvent and waits for replyEvent. When id is non-empty,
// only a reply carrying the same id matches; others are ignored.
func Await(ctx context.Context, c Conn, reqEvent, id, replyEvent string, payload any) (Result, error) {
	reply := make(chan Message, 1)
	off := c.On(replyEvent, func(m Message) {
		if id != "" && m.ID != id {
			return
		}
		select {
		case reply <- m:
		default:
		}
	})
	defer off()

	if err := c.Emit(ctx, reqEvent, id, payload); err != nil {
		return Result{}, err
	}
	select {
	case <-ctx.Done():
		return Result{}, ctx.Err()
	case m := <-reply:
		return Normalize(m.Data), nil
	}
}

// registry is the subscription bookkeeping shared by transports.
type registry struct {
	mu       sync.Mutex
	nextID   int
	handlers map[string]map[int]Handler
	connect  map[int]func()
}

func (r *registry) on(event string, h Handler) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.handlers == nil {
		r.handlers = make(map[string]map[int]Handler)
	}
	if r.handlers[event] == nil {
		r.handlers[event] = make(map[int]Handler)
	}
	r.nextID++
	id := r.nextID
	r.handlers[event][id] = h
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.handlers[event], id)
	}
}

func (r *registry) onConnect(fn func()) func() {
	r.mu.Lock()
	defer r.mu.Unlock()
	if r.connect == nil {
		r.connect = make(map[int]func())
	}
	r.nextID++
	id := r.nextID
	r.connect[id] = fn
	return func() {
		r.mu.Lock()
		defer r.mu.Unlock()
		delete(r.connect, id)
	}
}

// dispatch invokes subscribers outside the lock; a handler may
// subscribe or emit without deadlocking.
func (r *registry) dispatch(msg Message) {
	r.mu.Lock()
	hs := make([]Handler, 0, len(r.handlers[msg.Event]))
	for _, h := range r.handlers[msg.Event] {
		hs = append(hs, h)
	}
	r.mu.Unlock()
	for _, h := range hs {
		h(msg)
	}
}

func (r *registry) notifyConnect() {
	r.mu.Lock()
	fns := make([]func(), 0, len(r.connect))
	for _, fn := range r.connect {
		fns = append(fns, fn)
	}
	r.mu.Unlock()
	for _, fn := range fns {
		fn()
	}
}

// Dialer opens a transport connection for one logical domain.
type Dialer func(domain string) (Conn, error)

// Hub hands out one shared Conn per domain. Multiple components asking
// for the same domain get the same connection; dialing is idempotent.
type Hub struct {
	mu    sync.Mutex
	dial  Dialer
	conns map[string]Conn
}

func NewHub(dial Dialer) *Hub {
	return &Hub{dial: dial, conns: make(map[string]Conn)}
}

func (h *Hub) Domain(name string) (Conn, error) {
	h.mu.Lock()
	defer h.mu.Unlock()
	if c, ok := h.conns[name]; ok {
		return c, nil
	}
	c, err := h.dial(name)
	if err != nil {
		return nil, err
	}
	h.conns[name] = c
	return c, nil
}

func (h *Hub) Close() error {
	h.mu.Lock()
	defer h.mu.Unlock()
	var first error
	for name, c := range h.conns {
		if err := c.Close(); err != nil && first == nil {
			first = err
		}
		delete(h.conns, name)
	}
	return first
}

func marshalPayload(payload any) (json.RawMessage, error) {
	if payload == nil {
		return nil, nil
	}
	b, err := json.Marshal(payload)
	if err != nil {
		return nil, err
	}
	return b, nil
}
