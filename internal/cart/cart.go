// Package cart owns the session cart: an insertion-ordered set of
// price-snapshotted lines plus the two order-mode flags, persisted
// write-through so no mutation is lost on abrupt navigation.
package cart

import (
	"encoding/json"
	"sync"

	"storefront/internal/domain"
	applog "storefront/internal/log"
)

type ModeFlag string

const (
	ModeBulkOrder ModeFlag = "bulkOrder"
	ModeCredit    ModeFlag = "credit"
)

// document is the persisted JSON shape under the fixed storage key.
// It must round-trip exactly.
type document struct {
	Items       []domain.CartLine `json:"items"`
	IsBulkOrder bool              `json:"isBulkOrder"`
	IsCredit    bool              `json:"isCredit"`
}

type Totals struct {
	Subtotal float64 `json:"subtotal"`
	Shipping float64 `json:"shipping"`
	Discount float64 `json:"discount"`
	Total    float64 `json:"total"`
}

// Store is opaque durable storage for the serialized cart. Load returns
// (nil, nil) when nothing was stored yet.
type Store interface {
	Load() ([]byte, error)
	Save([]byte) error
}

// Pricing supplies the externally decided shipping and discount amounts
// used by Totals.
type Pricing struct {
	Shipping float64
	Discount float64
}

// Cart is the single session-scoped aggregate. It enforces its own
// invariants: at most one line per product, quantity >= 1 on every
// present line.
type Cart struct {
	mu      sync.Mutex
	doc     document
	store   Store
	pricing Pricing
}

// New restores the cart from the store. Absent or corrupt stored state
// yields an empty cart rather than a failure.
func New(store Store, pricing Pricing) *Cart {
	c := &Cart{store: store, pricing: pricing}
	c.doc.Items = []domain.CartLine{}
	raw, err := store.Load()
	if err != nil {
		applog.Error(nil, "cart.restore", err, nil)
		return c
	}
	if len(raw) == 0 {
		return c
	}
	var doc document
	if err := json.Unmarshal(raw, &doc); err != nil {
		applog.Warn(nil, "cart.restore.corrupt", map[string]any{"err": err.Error()})
		return c
	}
	if doc.Items == nil {
		doc.Items = []domain.CartLine{}
	}
	// Drop anything a buggy writer may have left behind.
	kept := doc.Items[:0]
	seen := map[string]bool{}
	for _, l := range doc.Items {
		if l.ProductID == "" || l.Quantity < 1 || seen[l.ProductID] {
			continue
		}
		seen[l.ProductID] = true
		kept = append(kept, l)
	}
	doc.Items = kept
	c.doc = doc
	return c
}

// AddLine merges by product id: an existing line's quantity grows by
// qty, a new line snapshots the product's price at call time and goes
// to the end of the display order.
func (c *Cart) AddLine(p domain.Product, qty int) error {
	if qty < 1 {
		qty = 1
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.doc.Items {
		if c.doc.Items[i].ProductID == p.ID {
			c.doc.Items[i].Quantity += qty
			return c.persist()
		}
	}
	c.doc.Items = append(c.doc.Items, domain.CartLine{ProductID: p.ID, Quantity: qty, UnitPrice: p.Price})
	return c.persist()
}

// SetQuantity replaces a line's quantity. Below 1 the line is removed —
// the one policy applied uniformly, so a quantity under 1 can never
// remain in the cart.
func (c *Cart) SetQuantity(productID string, qty int) error {
	if qty < 1 {
		return c.RemoveLine(productID)
	}
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.doc.Items {
		if c.doc.Items[i].ProductID == productID {
			c.doc.Items[i].Quantity = qty
			return c.persist()
		}
	}
	return nil
}

// RemoveLine deletes the line if present; no-op otherwise.
func (c *Cart) RemoveLine(productID string) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	for i := range c.doc.Items {
		if c.doc.Items[i].ProductID == productID {
			c.doc.Items = append(c.doc.Items[:i], c.doc.Items[i+1:]...)
			return c.persist()
		}
	}
	return nil
}

// SetMode toggles a checkout mode flag. Existing lines are unaffected.
func (c *Cart) SetMode(flag ModeFlag, value bool) error {
	c.mu.Lock()
	defer c.mu.Unlock()
	switch flag {
	case ModeBulkOrder:
		c.doc.IsBulkOrder = value
	case ModeCredit:
		c.doc.IsCredit = value
	default:
		return nil
	}
	return c.persist()
}

// Clear empties the cart. Mode flags survive; they describe the
// session, not the lines.
func (c *Cart) Clear() error {
	c.mu.Lock()
	defer c.mu.Unlock()
	c.doc.Items = []domain.CartLine{}
	return c.persist()
}

// Lines returns the lines in display (insertion) order.
func (c *Cart) Lines() []domain.CartLine {
	c.mu.Lock()
	defer c.mu.Unlock()
	out := make([]domain.CartLine, len(c.doc.Items))
	copy(out, c.doc.Items)
	return out
}

func (c *Cart) Modes() (bulkOrder, credit bool) {
	c.mu.Lock()
	defer c.mu.Unlock()
	return c.doc.IsBulkOrder, c.doc.IsCredit
}

func (c *Cart) Empty() bool {
	c.mu.Lock()
	defer c.mu.Unlock()
	return len(c.doc.Items) == 0
}

// Totals is recomputed on every call, never cached. An empty cart
// carries no shipping or discount.
func (c *Cart) Totals() Totals {
	c.mu.Lock()
	defer c.mu.Unlock()
	t := Totals{}
	for _, l := range c.doc.Items {
		t.Subtotal += l.UnitPrice * float64(l.Quantity)
	}
	if len(c.doc.Items) > 0 {
		t.Shipping = c.pricing.Shipping
		t.Discount = c.pricing.Discount
	}
	t.Total = t.Subtotal + t.Shipping - t.Discount
	return t
}

// persist writes through under the mutex, so storage sees mutations in
// exactly the order they were applied.
func (c *Cart) persist() error {
	b, err := json.Marshal(c.doc)
	if err != nil {
		return err
	}
	return c.store.Save(b)
}
