package checkout_test

import (
	"context"
	"encoding/json"
	"net/http"
	"net/http/httptest"
	"sync"
	"sync/atomic"
	"testing"
	"time"

	"github.com/stretchr/testify/require"

	"storefront/internal/cart"
	"storefront/internal/channel"
	"storefront/internal/checkout"
	"storefront/internal/domain"
	"storefront/internal/orders"
)

type memStore struct{ data []byte }

func (s *memStore) Load() ([]byte, error) { return s.data, nil }
func (s *memStore) Save(b []byte) error   { s.data = b; return nil }

type productMap map[string]domain.Product

func (m productMap) FindByID(id string) (domain.Product, bool) {
	p, ok := m[id]
	return p, ok
}

// recorder captures state transitions for sequence assertions.
type recorder struct {
	mu    sync.Mutex
	moves []checkout.State
}

func (r *recorder) observe(from, to checkout.State) {
	r.mu.Lock()
	r.moves = append(r.moves, to)
	r.mu.Unlock()
}

func (r *recorder) sequence() []checkout.State {
	r.mu.Lock()
	defer r.mu.Unlock()
	return append([]checkout.State(nil), r.moves...)
}

func validForm() checkout.Form {
	return checkout.Form{
		Street:     "1 Main St",
		City:       "College Park",
		State:      "MD",
		PostalCode: "20740",
		Email:      "alice@example.com",
	}
}

// fixture wires a cart, a product source, a pipe-backed channel and a
// hosted-payment test server behind one orchestrator.
type fixture struct {
	orch     *checkout.Orchestrator
	cart     *cart.Cart
	server   *channel.MemConn
	rec      *recorder
	sessions atomic.Int32
}

func newFixture(t *testing.T, ackWait time.Duration, sessionURL string, sessionStatus int) *fixture {
	t.Helper()
	f := &fixture{rec: &recorder{}}

	ts := httptest.NewServer(http.HandlerFunc(func(w http.ResponseWriter, r *http.Request) {
		f.sessions.Add(1)
		if sessionStatus != http.StatusOK {
			w.WriteHeader(sessionStatus)
			return
		}
		_ = json.NewEncoder(w).Encode(map[string]string{"url": sessionURL})
	}))
	t.Cleanup(ts.Close)

	client, server := channel.Pipe()
	f.server = server

	f.cart = cart.New(&memStore{}, cart.Pricing{Shipping: 5})
	products := productMap{
		"p1": {ID: "p1", Name: "Game Boy Color", Price: 129.99, Weight: 0.2},
		"p2": {ID: "p2", Name: "Philco 1939", Price: 349.50, Weight: 12},
	}
	f.orch = checkout.New(f.cart, products, client, checkout.NewSessionClient(ts.URL), ackWait)
	f.orch.OnTransition(f.rec.observe)
	return f
}

func (f *fixture) ackCredit(orderID string) {
	f.server.On(orders.EventCreateOrder, func(m channel.Message) {
		b, _ := json.Marshal(map[string]any{"success": true, "data": map[string]string{"orderId": orderID}})
		f.server.EmitRaw(orders.EventOrderSubmitAck, m.ID, b)
	})
}

func TestCreditPathSubmitsOverChannelOnly(t *testing.T) {
	f := newFixture(t, time.Second, "https://pay.example.com/s1", http.StatusOK)
	f.ackCredit("ord-42")
	require.NoError(t, f.cart.AddLine(domain.Product{ID: "p1", Price: 129.99}, 2))
	require.NoError(t, f.cart.SetMode(cart.ModeCredit, true))

	out, err := f.orch.Submit(context.Background(), validForm())
	require.NoError(t, err)
	require.Equal(t, checkout.StateSubmitted, out.State)
	require.Equal(t, checkout.PathCreditOrder, out.Path)
	require.True(t, out.Acknowledged)
	require.Equal(t, "ord-42", out.OrderID)
	require.NotEmpty(t, out.SubmissionID)
	require.Empty(t, out.RedirectURL)

	// Credit orders never touch the hosted-payment endpoint.
	require.Equal(t, int32(0), f.sessions.Load())

	require.Equal(t, []checkout.State{checkout.StateSubmitting, checkout.StateSubmitted}, f.rec.sequence())
	require.True(t, f.cart.Empty()) // cleared only after the ack
}

func TestCreditAckTimeoutLandsUnknown(t *testing.T) {
	f := newFixture(t, 50*time.Millisecond, "https://pay.example.com/s1", http.StatusOK)
	// Server receives the order but never acknowledges it.
	f.server.On(orders.EventCreateOrder, func(m channel.Message) {})
	require.NoError(t, f.cart.AddLine(domain.Product{ID: "p1", Price: 129.99}, 1))
	require.NoError(t, f.cart.SetMode(cart.ModeCredit, true))

	out, err := f.orch.Submit(context.Background(), validForm())
	require.NoError(t, err)
	require.Equal(t, checkout.StateUnknown, out.State)
	require.False(t, out.Acknowledged)

	// Outcome unresolved: the cart must survive for either outcome.
	require.False(t, f.cart.Empty())
	require.Equal(t, checkout.StateUnknown, f.orch.State())
}

func TestCreditRejectionFailsAndKeepsCart(t *testing.T) {
	f := newFixture(t, time.Second, "https://pay.example.com/s1", http.StatusOK)
	f.server.On(orders.EventCreateOrder, func(m channel.Message) {
		f.server.EmitRaw(orders.EventOrderSubmitAck, m.ID, json.RawMessage(`{"success":false,"error":"credit limit exceeded"}`))
	})
	require.NoError(t, f.cart.AddLine(domain.Product{ID: "p1", Price: 129.99}, 1))
	require.NoError(t, f.cart.SetMode(cart.ModeCredit, true))

	_, err := f.orch.Submit(context.Background(), validForm())
	require.Error(t, err)
	require.Contains(t, err.Error(), "credit limit exceeded")

	require.Equal(t, []checkout.State{checkout.StateSubmitting, checkout.StateFailed, checkout.StateIdle}, f.rec.sequence())
	require.False(t, f.cart.Empty())
	require.Error(t, f.orch.LastError())
}

func TestHostedPathRedirectsAndKeepsCart(t *testing.T) {
	f := newFixture(t, time.Second, "https://pay.example.com/s1", http.StatusOK)
	require.NoError(t, f.cart.AddLine(domain.Product{ID: "p1", Price: 129.99}, 2))

	out, err := f.orch.Submit(context.Background(), validForm())
	require.NoError(t, err)
	require.Equal(t, checkout.StateRedirecting, out.State)
	require.Equal(t, checkout.PathHostedPayment, out.Path)
	require.Equal(t, "https://pay.example.com/s1", out.RedirectURL)
	require.Equal(t, int32(1), f.sessions.Load())

	// Payment has not happened yet; the cart waits for confirmation.
	require.False(t, f.cart.Empty())
	require.Equal(t, []checkout.State{checkout.StateSubmitting, checkout.StateRedirecting}, f.rec.sequence())
}

func TestHostedFailureReturnsToIdleCartUnchanged(t *testing.T) {
	f := newFixture(t, time.Second, "", http.StatusBadGateway)
	require.NoError(t, f.cart.AddLine(domain.Product{ID: "p1", Price: 129.99}, 2))
	before := f.cart.Lines()

	_, err := f.orch.Submit(context.Background(), validForm())
	require.Error(t, err)
	require.Equal(t, checkout.StateIdle, f.orch.State())
	require.Equal(t, []checkout.State{checkout.StateSubmitting, checkout.StateFailed, checkout.StateIdle}, f.rec.sequence())
	require.Equal(t, before, f.cart.Lines())
}

func TestInvalidFormNeverEntersSubmitting(t *testing.T) {
	f := newFixture(t, time.Second, "https://pay.example.com/s1", http.StatusOK)
	require.NoError(t, f.cart.AddLine(domain.Product{ID: "p1", Price: 129.99}, 1))

	form := validForm()
	form.Email = "not-an-email"
	out, err := f.orch.Submit(context.Background(), form)
	require.Error(t, err)
	require.Equal(t, checkout.StateIdle, out.State)
	require.Empty(t, f.rec.sequence())
	require.Equal(t, int32(0), f.sessions.Load())
}

func TestEmptyCartRejected(t *testing.T) {
	f := newFixture(t, time.Second, "https://pay.example.com/s1", http.StatusOK)

	_, err := f.orch.Submit(context.Background(), validForm())
	require.ErrorIs(t, err, checkout.ErrEmptyCart)
	require.Equal(t, checkout.StateIdle, f.orch.State())
	require.Equal(t, int32(0), f.sessions.Load())
}

func TestSecondSubmitWhileInFlight(t *testing.T) {
	f := newFixture(t, 500*time.Millisecond, "https://pay.example.com/s1", http.StatusOK)
	f.server.On(orders.EventCreateOrder, func(m channel.Message) {}) // never acks
	require.NoError(t, f.cart.AddLine(domain.Product{ID: "p1", Price: 129.99}, 1))
	require.NoError(t, f.cart.SetMode(cart.ModeCredit, true))

	entered := make(chan struct{})
	f.orch.OnTransition(func(from, to checkout.State) {
		if to == checkout.StateSubmitting {
			close(entered)
		}
	})

	done := make(chan struct{})
	go func() {
		defer close(done)
		_, _ = f.orch.Submit(context.Background(), validForm())
	}()

	<-entered
	_, err := f.orch.Submit(context.Background(), validForm())
	require.ErrorIs(t, err, checkout.ErrSubmitInFlight)
	<-done
}

func TestPriceDriftWarnsWithoutBlocking(t *testing.T) {
	f := newFixture(t, time.Second, "https://pay.example.com/s1", http.StatusOK)
	// Snapshot taken at 99.99; the catalog has since moved to 129.99.
	require.NoError(t, f.cart.AddLine(domain.Product{ID: "p1", Price: 99.99}, 1))

	out, err := f.orch.Submit(context.Background(), validForm())
	require.NoError(t, err)
	require.Equal(t, checkout.StateRedirecting, out.State)
	require.Len(t, out.PriceDrift, 1)
	require.Equal(t, "p1", out.PriceDrift[0].ProductID)
	require.Equal(t, 99.99, out.PriceDrift[0].Snapshot)
	require.Equal(t, 129.99, out.PriceDrift[0].Current)
}
