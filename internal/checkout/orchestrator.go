// Package checkout drives a single checkout attempt across its two
// divergent paths: hosted payment (redirect) and credit order
// (channel submission with acknowledgment).
package checkout

import (
	"context"
	"errors"
	"fmt"
	"sync"
	"time"

	"github.com/go-playground/validator/v10"
	"github.com/google/uuid"

	"storefront/internal/cart"
	"storefront/internal/channel"
	"storefront/internal/domain"
	applog "storefront/internal/log"
	"storefront/internal/orders"
)

type State int

const (
	StateIdle State = iota
	StateSubmitting
	StateRedirecting
	StateSubmitted
	StateFailed
	StateUnknown
)

func (s State) String() string {
	switch s {
	case StateIdle:
		return "idle"
	case StateSubmitting:
		return "submitting"
	case StateRedirecting:
		return "redirecting"
	case StateSubmitted:
		return "submitted"
	case StateFailed:
		return "failed"
	case StateUnknown:
		return "unknown"
	}
	return "invalid"
}

type Path string

const (
	PathHostedPayment Path = "hosted-payment"
	PathCreditOrder   Path = "credit-order"
)

var (
	// ErrSubmitInFlight rejects a second submission while one is
	// running. The machine itself is the source of truth, not UI
	// debouncing.
	ErrSubmitInFlight = errors.New("checkout: submission already in flight")
	ErrEmptyCart      = errors.New("checkout: cart is empty")
)

// Form is the user-entered checkout data, validated before the state
// machine is entered. Invalid forms never reach Submitting.
type Form struct {
	Street     string `json:"street" validate:"required"`
	City       string `json:"city" validate:"required"`
	State      string `json:"state" validate:"required"`
	PostalCode string `json:"postalCode" validate:"required"`
	Email      string `json:"email" validate:"required,email"`
}

// DriftWarning reports a line whose snapshot price no longer matches
// the catalog. Submission proceeds; the user sees the warning.
type DriftWarning struct {
	ProductID string  `json:"productId"`
	Snapshot  float64 `json:"snapshot"`
	Current   float64 `json:"current"`
}

// Outcome is what one submission attempt produced.
type Outcome struct {
	State        State          `json:"-"`
	StateName    string         `json:"state"`
	Path         Path           `json:"path,omitempty"`
	RedirectURL  string         `json:"redirectUrl,omitempty"`
	SubmissionID string         `json:"submissionId,omitempty"`
	Acknowledged bool           `json:"acknowledged"`
	OrderID      string         `json:"orderId,omitempty"`
	PriceDrift   []DriftWarning `json:"priceDrift,omitempty"`
}

// ProductSource is the catalog view the orchestrator needs: weight and
// current price lookups at submission time.
type ProductSource interface {
	FindByID(id string) (domain.Product, bool)
}

// Orchestrator runs checkout attempts over the session cart. One
// instance per session, shared by the surface handlers.
type Orchestrator struct {
	cart     *cart.Cart
	products ProductSource
	conn     channel.Conn
	sessions *SessionClient
	validate *validator.Validate
	ackWait  time.Duration

	mu       sync.Mutex
	state    State
	lastErr  error
	observer func(from, to State)
}

func New(c *cart.Cart, products ProductSource, conn channel.Conn, sessions *SessionClient, ackWait time.Duration) *Orchestrator {
	return &Orchestrator{
		cart:     c,
		products: products,
		conn:     conn,
		sessions: sessions,
		validate: validator.New(),
		ackWait:  ackWait,
		state:    StateIdle,
	}
}

// OnTransition registers an observer for state changes, mainly for the
// surface to reflect progress and for tests.
func (o *Orchestrator) OnTransition(fn func(from, to State)) {
	o.mu.Lock()
	o.observer = fn
	o.mu.Unlock()
}

func (o *Orchestrator) State() State {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.state
}

// LastError reports why the previous attempt failed; nil otherwise.
func (o *Orchestrator) LastError() error {
	o.mu.Lock()
	defer o.mu.Unlock()
	return o.lastErr
}

// Submit runs one checkout attempt. Credit mode submits over the push
// channel and waits a bounded time for the acknowledgment; otherwise a
// hosted-payment session is created and the caller redirects to it.
// Failure never clears the cart.
func (o *Orchestrator) Submit(ctx context.Context, form Form) (Outcome, error) {
	if err := o.validate.Struct(form); err != nil {
		return o.outcome(StateIdle, "", ""), fmt.Errorf("checkout: invalid form: %w", err)
	}

	o.mu.Lock()
	if o.state == StateSubmitting {
		o.mu.Unlock()
		return o.outcome(StateSubmitting, "", ""), ErrSubmitInFlight
	}
	from := o.state
	o.state = StateSubmitting
	o.lastErr = nil
	obs := o.observer
	o.mu.Unlock()
	if obs != nil {
		obs(from, StateSubmitting)
	}

	draft, drift := o.buildDraft(form)
	if len(draft.Items) == 0 {
		o.fail(ErrEmptyCart)
		return o.outcome(StateFailed, "", ""), ErrEmptyCart
	}

	if draft.IsCredit {
		out, err := o.submitCredit(ctx, draft)
		out.PriceDrift = drift
		return out, err
	}
	out, err := o.submitHosted(ctx, draft, form)
	out.PriceDrift = drift
	return out, err
}

func (o *Orchestrator) submitCredit(ctx context.Context, draft domain.OrderDraft) (Outcome, error) {
	submissionID := uuid.NewString()
	actx, cancel := context.WithTimeout(ctx, o.ackWait)
	defer cancel()

	res, err := channel.Await(actx, o.conn, orders.EventCreateOrder, submissionID, orders.EventOrderSubmitAck, draft)
	if err != nil {
		if errors.Is(err, context.DeadlineExceeded) && ctx.Err() == nil {
			// No ack within the window. The order may or may not have
			// been accepted; surface that honestly and leave the cart
			// alone so nothing is lost either way.
			o.transition(StateUnknown)
			applog.Warn(nil, "checkout.credit.noack", map[string]any{"submission_id": submissionID})
			out := o.outcome(StateUnknown, PathCreditOrder, submissionID)
			return out, nil
		}
		o.fail(err)
		return o.outcome(StateFailed, PathCreditOrder, submissionID), err
	}
	if !res.OK {
		err := fmt.Errorf("checkout: order rejected: %s", res.Err)
		o.fail(err)
		return o.outcome(StateFailed, PathCreditOrder, submissionID), err
	}

	o.transition(StateSubmitted)
	if err := o.cart.Clear(); err != nil {
		applog.Error(nil, "checkout.cart.clear", err, nil)
	}
	out := o.outcome(StateSubmitted, PathCreditOrder, submissionID)
	out.Acknowledged = true
	// Ack data is informational; decode best effort.
	var ack struct {
		OrderID string `json:"orderId"`
	}
	if derr := res.Decode(&ack); derr == nil {
		out.OrderID = ack.OrderID
	}
	applog.Audit(nil, "checkout.credit.ok", map[string]any{"submission_id": submissionID, "order_id": out.OrderID})
	return out, nil
}

func (o *Orchestrator) submitHosted(ctx context.Context, draft domain.OrderDraft, form Form) (Outcome, error) {
	url, err := o.sessions.Create(ctx, draft, form)
	if err != nil {
		o.fail(err)
		return o.outcome(StateFailed, PathHostedPayment, ""), err
	}
	// Clearing is deferred to post-payment confirmation, which happens
	// outside this client after the redirect.
	o.transition(StateRedirecting)
	applog.Audit(nil, "checkout.session.ok", nil)
	out := o.outcome(StateRedirecting, PathHostedPayment, "")
	out.RedirectURL = url
	return out, nil
}

// buildDraft snapshots the cart into the submission payload. Lines
// without a product id are dropped; quantities and unit prices come
// verbatim from the cart, with drift against the current catalog
// reported rather than blocking.
func (o *Orchestrator) buildDraft(form Form) (domain.OrderDraft, []DriftWarning) {
	bulk, credit := o.cart.Modes()
	draft := domain.OrderDraft{
		Address: domain.Address{
			Street:     form.Street,
			City:       form.City,
			State:      form.State,
			PostalCode: form.PostalCode,
		},
		Email:         form.Email,
		OrderType:     "standard",
		IsBulkOrder:   bulk,
		IsCredit:      credit,
		PaymentMethod: "pending",
	}
	if credit {
		draft.OrderType = "credit"
	}
	var drift []DriftWarning
	for _, l := range o.cart.Lines() {
		if l.ProductID == "" {
			continue
		}
		draft.Items = append(draft.Items, domain.DraftItem{
			ProductID: l.ProductID,
			Quantity:  l.Quantity,
			UnitPrice: l.UnitPrice,
		})
		if p, ok := o.products.FindByID(l.ProductID); ok {
			draft.TotalWeight += p.Weight * float64(l.Quantity)
			if p.Price != l.UnitPrice {
				drift = append(drift, DriftWarning{ProductID: l.ProductID, Snapshot: l.UnitPrice, Current: p.Price})
			}
		}
	}
	return draft, drift
}

func (o *Orchestrator) transition(to State) {
	o.mu.Lock()
	from := o.state
	o.state = to
	obs := o.observer
	o.mu.Unlock()
	if obs != nil && from != to {
		obs(from, to)
	}
}

// fail records the error, surfaces Failed, and returns the machine to
// Idle with the cart untouched, ready for an edited retry.
func (o *Orchestrator) fail(err error) {
	o.mu.Lock()
	o.lastErr = err
	o.mu.Unlock()
	applog.Error(nil, "checkout.fail", err, nil)
	o.transition(StateFailed)
	o.transition(StateIdle)
}

func (o *Orchestrator) outcome(s State, p Path, submissionID string) Outcome {
	return Outcome{State: s, StateName: s.String(), Path: p, SubmissionID: submissionID}
}
